package feed

import (
	"context"
	"encoding/xml"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"priceradar-backend/internal/model"
	"priceradar-backend/internal/source"
)

func testRegistry(t *testing.T) *source.Registry {
	t.Helper()
	now := time.Now().UTC()
	saturn := source.NewMemoryAdapter(model.SourceSaturn)
	require.NoError(t, saturn.Upsert(context.Background(), model.ProductRecord{
		ID: "s1", Title: "Kaffeevollautomat", Brand: "DeLonghi", Category: "Küche",
		Description: "Vollautomat mit Mahlwerk", GTIN: "4002222222222",
		Price: 399.5, Currency: "EUR", ImageURL: "https://img/s1.jpg", ScrapedAt: &now,
	}))
	excluded := source.NewMemoryAdapter(model.SourceOtto)
	require.NoError(t, excluded.Upsert(context.Background(), model.ProductRecord{
		ID: "o1", Title: "Sofa", Category: "Möbel", Price: 899, Currency: "EUR", ScrapedAt: &now,
	}))

	reg := source.NewRegistry()
	require.NoError(t, reg.Register(saturn, source.DefaultOptions))
	require.NoError(t, reg.Register(excluded, source.Options{Similar: true, Feed: false}))
	return reg
}

func TestBuildFeed(t *testing.T) {
	b := NewBuilder(testRegistry(t), "https://priceradar.example.com/", zap.NewNop())
	f := b.Build(context.Background())

	require.Len(t, f.Channel.Items, 1, "non-participating sources are excluded")
	item := f.Channel.Items[0]
	assert.Equal(t, "saturn-s1", item.ID)
	assert.Equal(t, "Kaffeevollautomat", item.Title)
	assert.Equal(t, "399.50 EUR", item.Price)
	assert.Equal(t, "https://priceradar.example.com/product/s1", item.Link)
	assert.Equal(t, "4002222222222", item.GTIN)
	assert.Equal(t, "Küche", item.ProductType)
	assert.Equal(t, "in stock", item.Availability)
	assert.Equal(t, "new", item.Condition)
}

func TestFeedMarshalsAsRSS(t *testing.T) {
	b := NewBuilder(testRegistry(t), "https://priceradar.example.com", zap.NewNop())
	data, err := xml.Marshal(b.Build(context.Background()))
	require.NoError(t, err)

	s := string(data)
	assert.True(t, strings.HasPrefix(s, `<rss version="2.0"`))
	assert.Contains(t, s, `xmlns:g="http://base.google.com/ns/1.0"`)
	assert.Contains(t, s, "<g:id>saturn-s1</g:id>")
}

func TestFeedTruncatesLongFields(t *testing.T) {
	long := strings.Repeat("ä", 200)
	ad := source.NewMemoryAdapter(model.SourceSaturn)
	require.NoError(t, ad.Upsert(context.Background(), model.ProductRecord{
		ID: "s1", Title: long, Category: "X", Price: 1, Currency: "EUR",
	}))
	reg := source.NewRegistry()
	require.NoError(t, reg.Register(ad, source.DefaultOptions))

	f := NewBuilder(reg, "https://x", zap.NewNop()).Build(context.Background())
	require.Len(t, f.Channel.Items, 1)
	assert.Equal(t, 150, len([]rune(f.Channel.Items[0].Title)))
}

func TestFeedDescriptionFallsBackToTitle(t *testing.T) {
	ad := source.NewMemoryAdapter(model.SourceSaturn)
	require.NoError(t, ad.Upsert(context.Background(), model.ProductRecord{
		ID: "s1", Title: "Mixer", Category: "Küche", Price: 25, Currency: "EUR",
	}))
	reg := source.NewRegistry()
	require.NoError(t, reg.Register(ad, source.DefaultOptions))

	f := NewBuilder(reg, "https://x", zap.NewNop()).Build(context.Background())
	require.Len(t, f.Channel.Items, 1)
	assert.Equal(t, "Mixer", f.Channel.Items[0].Description)
}
