// Package feed connects to the upstream publish/subscribe endpoint and
// delivers raw frames to the ingestor (spec.md §4.4, §6 "Upstream feed").
package feed

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
)

const (
	dialTimeout = 30 * time.Second

	baseReconnectDelay   = 5 * time.Second
	maxReconnectDelay    = 5 * time.Minute
	maxReconnectAttempts = 10
)

// Subscriber delivers raw frames from the upstream feed on a channel.
// Grounded nearly line-for-line on the teacher's
// MarketStatusWebSocket (dial, context-scoped read loop, exponential
// backoff reconnect, stop channel) generalized from a JSON market-array
// protocol to a raw-bytes frame stream — the empty-string topic
// subscribe step is dropped since this transport has no channel concept.
type Subscriber struct {
	url string

	mu         sync.RWMutex
	conn       *websocket.Conn
	connCtx    context.Context
	cancelFunc context.CancelFunc
	connected  bool

	stopChan chan struct{}
	stopped  bool
	frames   chan []byte

	log zerolog.Logger
}

// New creates a Subscriber for the given feed URL. The returned channel
// delivers every frame as it arrives; callers must drain it promptly.
func New(url string, log zerolog.Logger) *Subscriber {
	return &Subscriber{
		url:      url,
		stopChan: make(chan struct{}),
		frames:   make(chan []byte, 256),
		log:      log.With().Str("component", "feed_subscriber").Logger(),
	}
}

// Frames returns the channel frames are delivered on.
func (s *Subscriber) Frames() <-chan []byte {
	return s.frames
}

// Start dials the upstream feed and begins the read loop in the
// background. A failed initial dial still starts the reconnect loop.
func (s *Subscriber) Start() error {
	s.log.Info().Str("url", s.url).Msg("starting feed subscriber")

	if err := s.connect(); err != nil {
		s.log.Warn().Err(err).Msg("initial feed connection failed, retrying in background")
		go s.reconnectLoop()
		return nil
	}

	s.mu.RLock()
	ctx := s.connCtx
	s.mu.RUnlock()
	go s.readLoop(ctx)
	return nil
}

// Stop gracefully closes the connection and stops delivering frames.
func (s *Subscriber) Stop() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	s.mu.Unlock()

	close(s.stopChan)
	return s.disconnect()
}

// IsConnected reports the current connection state.
func (s *Subscriber) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

func (s *Subscriber) connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dialCtx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()

	conn, _, err := websocket.Dial(dialCtx, s.url, nil)
	if err != nil {
		return fmt.Errorf("dial feed: %w", err)
	}

	connCtx, connCancel := context.WithCancel(context.Background())
	s.conn = conn
	s.connCtx = connCtx
	s.cancelFunc = connCancel
	s.connected = true

	s.log.Info().Msg("connected to upstream feed")
	return nil
}

func (s *Subscriber) disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return nil
	}
	if s.cancelFunc != nil {
		s.cancelFunc()
		s.cancelFunc = nil
	}
	err := s.conn.Close(websocket.StatusNormalClosure, "")
	s.conn = nil
	s.connected = false
	if err != nil {
		return fmt.Errorf("close feed connection: %w", err)
	}
	return nil
}

func (s *Subscriber) readLoop(ctx context.Context) {
	defer func() {
		s.mu.RLock()
		stopped := s.stopped
		s.mu.RUnlock()
		if !stopped {
			go s.reconnectLoop()
		}
	}()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ctx.Done():
			return
		default:
		}

		s.mu.RLock()
		conn := s.conn
		s.mu.RUnlock()
		if conn == nil {
			return
		}

		msgType, data, err := conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				s.log.Info().Msg("feed closed normally")
			} else if ctx.Err() == nil {
				s.log.Error().Err(err).Msg("unexpected feed read error")
			}
			return
		}
		if msgType != websocket.MessageBinary && msgType != websocket.MessageText {
			continue
		}

		select {
		case s.frames <- data:
		case <-s.stopChan:
			return
		}
	}
}

func (s *Subscriber) reconnectLoop() {
	attempt := 0
	for {
		select {
		case <-s.stopChan:
			return
		default:
		}

		s.mu.RLock()
		stopped := s.stopped
		s.mu.RUnlock()
		if stopped {
			return
		}

		attempt++
		delay := backoff(attempt)
		s.log.Info().Int("attempt", attempt).Dur("delay", delay).Msg("reconnecting to upstream feed")

		select {
		case <-time.After(delay):
		case <-s.stopChan:
			return
		}

		if err := s.connect(); err != nil {
			s.log.Error().Err(err).Int("attempt", attempt).Msg("feed reconnect failed")
			continue
		}

		s.mu.RLock()
		ctx := s.connCtx
		s.mu.RUnlock()
		go s.readLoop(ctx)
		return
	}
}

func backoff(attempt int) time.Duration {
	delay := float64(baseReconnectDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(maxReconnectDelay) {
		delay = float64(maxReconnectDelay)
	}
	return time.Duration(delay)
}
