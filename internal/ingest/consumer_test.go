package ingest

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"priceradar-backend/internal/model"
	"priceradar-backend/internal/source"
)

func newTestConsumer(t *testing.T) (*Consumer, *source.MemoryAdapter) {
	t.Helper()
	store := source.NewMemoryAdapter(model.SourceSaturn)
	writers := map[model.SourceTag]source.Writer{model.SourceSaturn: store}
	c := NewConsumer(Config{Broker: "localhost:9092", Topic: "products.scraped", GroupID: "test"},
		writers, nil, nil, nil, zap.NewNop())
	return c, store
}

func message(t *testing.T, sp model.ScrapedProduct) []byte {
	t.Helper()
	data, err := json.Marshal(sp)
	require.NoError(t, err)
	return data
}

func TestHandleAcceptsValidSnapshot(t *testing.T) {
	c, store := newTestConsumer(t)
	now := time.Now().UTC()

	c.handle(context.Background(), message(t, model.ScrapedProduct{
		Source: "saturn", ID: "p1", Title: "Toaster", Category: "Küche",
		Price: 29.99, GTIN: "4009999999999", ScrapedAt: &now,
	}))

	rec, err := store.GetByID(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "Toaster", rec.Title)
	assert.Equal(t, "EUR", rec.Currency, "missing currency defaults to EUR")
}

func TestHandleUpsertsLatestSnapshot(t *testing.T) {
	c, store := newTestConsumer(t)

	c.handle(context.Background(), message(t, model.ScrapedProduct{
		Source: "saturn", ID: "p1", Title: "Toaster", Category: "Küche", Price: 29.99,
	}))
	c.handle(context.Background(), message(t, model.ScrapedProduct{
		Source: "saturn", ID: "p1", Title: "Toaster", Category: "Küche", Price: 24.99,
	}))

	rec, err := store.GetByID(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 24.99, rec.Price)

	n, err := store.Count(context.Background(), source.Filter{})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestHandleRejectsInvalidSnapshots(t *testing.T) {
	c, store := newTestConsumer(t)
	ctx := context.Background()

	c.handle(ctx, []byte("{not json"))
	c.handle(ctx, message(t, model.ScrapedProduct{ // missing title
		Source: "saturn", ID: "p2", Category: "Küche", Price: 10,
	}))
	c.handle(ctx, message(t, model.ScrapedProduct{ // negative price
		Source: "saturn", ID: "p3", Title: "X", Category: "Küche", Price: -1,
	}))
	c.handle(ctx, message(t, model.ScrapedProduct{ // gtin must be numeric
		Source: "saturn", ID: "p4", Title: "X", Category: "Küche", Price: 1, GTIN: "abc",
	}))
	c.handle(ctx, message(t, model.ScrapedProduct{ // unknown source tag
		Source: "amazon", ID: "p5", Title: "X", Category: "Küche", Price: 1,
	}))

	n, err := store.Count(ctx, source.Filter{})
	require.NoError(t, err)
	assert.Equal(t, 0, n, "no invalid snapshot may reach the store")
}

func TestHandleWritesRejectionsAndArchive(t *testing.T) {
	dir := t.TempDir()
	store := source.NewMemoryAdapter(model.SourceSaturn)
	c := NewConsumer(Config{},
		map[model.SourceTag]source.Writer{model.SourceSaturn: store},
		nil,
		NewRejectionStore(filepath.Join(dir, "rejections")),
		NewArchive(filepath.Join(dir, "archive")),
		zap.NewNop())
	ctx := context.Background()

	c.handle(ctx, message(t, model.ScrapedProduct{
		Source: "saturn", ID: "ok", Title: "Wasserkocher", Category: "Küche", Price: 19.99,
	}))
	c.handle(ctx, message(t, model.ScrapedProduct{
		Source: "saturn", ID: "bad", Category: "Küche", Price: 19.99,
	}))

	rejFiles, err := filepath.Glob(filepath.Join(dir, "rejections", "*.jsonl"))
	require.NoError(t, err)
	require.Len(t, rejFiles, 1)
	rejData, err := os.ReadFile(rejFiles[0])
	require.NoError(t, err)
	assert.Contains(t, string(rejData), `"id":"bad"`)

	archFiles, err := filepath.Glob(filepath.Join(dir, "archive", "saturn", "*.jsonl"))
	require.NoError(t, err)
	require.Len(t, archFiles, 1)
	archData, err := os.ReadFile(archFiles[0])
	require.NoError(t, err)
	assert.Contains(t, string(archData), `"id":"ok"`)
	assert.NotContains(t, string(archData), `"id":"bad"`)
}
