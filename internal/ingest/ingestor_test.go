package ingest

import (
	"bytes"
	"compress/zlib"
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/mattn/go-sqlite3"

	"github.com/EDDataAPI/eddata-collector/internal/handlers"
	"github.com/EDDataAPI/eddata-collector/internal/sector"
	"github.com/EDDataAPI/eddata-collector/internal/statementcache"
	locstore "github.com/EDDataAPI/eddata-collector/internal/stores/locations"
	stastore "github.com/EDDataAPI/eddata-collector/internal/stores/stations"
	sysstore "github.com/EDDataAPI/eddata-collector/internal/stores/systems"
	tradestore "github.com/EDDataAPI/eddata-collector/internal/stores/trade"
)

type fakeSubscriber struct {
	ch chan []byte
}

func newFakeSubscriber() *fakeSubscriber {
	return &fakeSubscriber{ch: make(chan []byte, 64)}
}

func (f *fakeSubscriber) Frames() <-chan []byte { return f.ch }

func (f *fakeSubscriber) emit(raw []byte) { f.ch <- raw }

func compressFrame(t *testing.T, plain []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	_, err := w.Write(plain)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func openSchema(t *testing.T, schema string) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	_, err = db.Exec(schema)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestIngestor(t *testing.T, sub Subscriber) (*Ingestor, *handlers.Deps) {
	cache := statementcache.New()
	deps := &handlers.Deps{
		Systems:          sysstore.NewRepository(openSchema(t, sysstore.Schema), zerolog.Nop()),
		Locations:        locstore.NewRepository(openSchema(t, locstore.Schema), "locations.db", cache, zerolog.Nop()),
		Stations:         stastore.NewRepository(openSchema(t, stastore.Schema), "stations.db", cache, zerolog.Nop()),
		Trade:            tradestore.NewRepository(openSchema(t, tradestore.Schema), "trade.db", cache, zerolog.Nop()),
		Sector:           sector.New(100, 16),
		OriginSystemName: "Sol",
		Log:              zerolog.Nop(),
	}
	ing := New(sub, NewWriteLock(), NewDeadLetterBuffer("", zerolog.Nop()), NewDedupSet(100), deps, zerolog.Nop())
	return ing, deps
}

const commodityFrameTemplate = `{
	"$schemaRef": "https://eddn.edcd.io/schemas/commodity/3",
	"header": {"gatewayTimestamp": "%s", "gameversion": "%s"},
	"message": {"marketId": 1000, "stationName": "Abe", "timestamp": "%s",
		"commodities": [{"name":"Gold","buyPrice":9100,"sellPrice":10334,"stock":500,"demand":0,"meanPrice":9500}]}
}`

// S4 in spec.md §8: version gate.
func TestIngestor_DropsFrameBelowMinimumVersion(t *testing.T) {
	sub := newFakeSubscriber()
	ing, deps := newTestIngestor(t, sub)

	plain := []byte(fmtFrame(commodityFrameTemplate, "2026-01-01T00:00:00Z", "3.9.0.0"))
	sub.emit(compressFrame(t, plain))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	go ing.Run(ctx)
	<-ctx.Done()

	count, err := deps.Trade.CountAll()
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

// S5 in spec.md §8: dedup.
func TestIngestor_DedupDropsRepeatedFrame(t *testing.T) {
	sub := newFakeSubscriber()
	ing, deps := newTestIngestor(t, sub)

	plain := []byte(fmtFrame(commodityFrameTemplate, "2026-01-01T00:00:00Z", "4.0.0.0"))
	compressed := compressFrame(t, plain)
	sub.emit(compressed)
	sub.emit(compressed)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	go ing.Run(ctx)
	<-ctx.Done()

	assert.Equal(t, uint64(1), ing.ProcessedCount())
	rows, err := deps.Trade.ForCommodity("Gold")
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

// S3 in spec.md §8: write-lock buffering.
func TestIngestor_BuffersWhileWriteLockIsSetAndDrainsInOrder(t *testing.T) {
	sub := newFakeSubscriber()
	ing, deps := newTestIngestor(t, sub)

	ing.writeLock.Set()

	for day := 1; day <= 5; day++ {
		ts := time.Date(2026, 1, day, 0, 0, 0, 0, time.UTC).Format(time.RFC3339)
		plain := []byte(fmtFrame(commodityFrameTemplate, ts, "4.0.0.0"))
		sub.emit(compressFrame(t, plain))
	}

	ctx, cancel := context.WithCancel(context.Background())
	go ing.Run(ctx)
	time.Sleep(100 * time.Millisecond)

	count, err := deps.Trade.CountAll()
	require.NoError(t, err)
	assert.Equal(t, int64(0), count, "no frame should be processed while the write-lock is set")
	assert.Equal(t, 5, ing.deadLetter.Len())

	ing.writeLock.Clear()
	// One more frame nudges the drain since Run only checks the buffer
	// when a new frame arrives.
	plain := []byte(fmtFrame(commodityFrameTemplate, "2026-01-06T00:00:00Z", "4.0.0.0"))
	sub.emit(compressFrame(t, plain))

	time.Sleep(200 * time.Millisecond)
	cancel()

	rows, err := deps.Trade.ForCommodity("Gold")
	require.NoError(t, err)
	require.Len(t, rows, 1, "latest write wins for the single (commodity, market) row")
	assert.Equal(t, "2026-01-06T00:00:00Z", rows[0].UpdatedAt)
}

func fmtFrame(tmpl, timestamp, version string) string {
	return fmt.Sprintf(tmpl, timestamp, version, timestamp)
}
