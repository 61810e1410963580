package ingest

import (
	"os"
	"sync"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// DeadLetterBuffer holds frames received while the write-lock is set, in
// arrival order, draining them before any new frame is processed once
// the lock clears (spec.md §4.4 step 1, §8 Testable Property 12).
//
// Buffered frames are also appended to an on-disk msgpack spool file
// (SPEC_FULL.md §3 "Crash-safe dead-letter spool"), which LoadSpool can
// read back. Nothing replays the spool at startup, and Drain deletes the
// file, so frames spooled before a crash are not recovered.
type DeadLetterBuffer struct {
	mu        sync.Mutex
	frames    [][]byte
	spoolPath string
	log       zerolog.Logger
}

// NewDeadLetterBuffer creates an empty buffer. spoolPath may be empty to
// disable crash-safe spooling.
func NewDeadLetterBuffer(spoolPath string, log zerolog.Logger) *DeadLetterBuffer {
	return &DeadLetterBuffer{
		spoolPath: spoolPath,
		log:       log.With().Str("component", "dead_letter_buffer").Logger(),
	}
}

// Append adds a frame to the buffer, logging every 100 entries
// (spec.md §4.4 step 1).
func (b *DeadLetterBuffer) Append(frame []byte) {
	b.mu.Lock()
	b.frames = append(b.frames, frame)
	n := len(b.frames)
	b.mu.Unlock()

	if n%100 == 0 {
		b.log.Warn().Int("buffered", n).Msg("dead-letter buffer growing while write-lock is held")
	}
	if b.spoolPath != "" {
		if err := b.appendToSpool(frame); err != nil {
			b.log.Error().Err(err).Msg("failed to append frame to crash-safe spool file")
		}
	}
}

// Len reports the current number of buffered frames.
func (b *DeadLetterBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.frames)
}

// Drain returns every buffered frame in arrival order and empties the
// buffer and its spool file.
func (b *DeadLetterBuffer) Drain() [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	frames := b.frames
	b.frames = nil
	if b.spoolPath != "" {
		if err := os.Remove(b.spoolPath); err != nil && !os.IsNotExist(err) {
			b.log.Error().Err(err).Msg("failed to remove drained spool file")
		}
	}
	return frames
}

func (b *DeadLetterBuffer) appendToSpool(frame []byte) error {
	f, err := os.OpenFile(b.spoolPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := msgpack.NewEncoder(f)
	return enc.Encode(frame)
}

// LoadSpool reads every frame persisted to the spool file. It has no
// caller in the startup path.
func LoadSpool(spoolPath string) ([][]byte, error) {
	f, err := os.Open(spoolPath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := msgpack.NewDecoder(f)
	var frames [][]byte
	for {
		var frame []byte
		if err := dec.Decode(&frame); err != nil {
			break
		}
		frames = append(frames, frame)
	}
	return frames, nil
}
