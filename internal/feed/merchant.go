// Package feed renders the product stores as a Google Merchant RSS 2.0 feed.
// The feed file is the integration surface; no Merchant API client is used.
package feed

import (
	"context"
	"encoding/xml"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"priceradar-backend/internal/model"
	"priceradar-backend/internal/source"
)

// Merchant Center field limits.
const (
	maxTitleLen = 150
	maxDescLen  = 5000
	maxBrandLen = 70
)

// defaultItemsPerSource bounds the feed so one giant store cannot blow up the
// response; Merchant Center re-fetches the feed anyway.
const defaultItemsPerSource = 5000

// Item is one <item> in the g: namespace.
type Item struct {
	ID           string `xml:"g:id"`
	Title        string `xml:"g:title"`
	Description  string `xml:"g:description,omitempty"`
	Link         string `xml:"g:link,omitempty"`
	ImageLink    string `xml:"g:image_link,omitempty"`
	Price        string `xml:"g:price"`
	Brand        string `xml:"g:brand,omitempty"`
	GTIN         string `xml:"g:gtin,omitempty"`
	ProductType  string `xml:"g:product_type,omitempty"`
	Availability string `xml:"g:availability"`
	Condition    string `xml:"g:condition"`
}

type channel struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	Items       []Item `xml:"item"`
}

// Feed is the RSS 2.0 document with the Google Merchant namespace.
type Feed struct {
	XMLName xml.Name `xml:"rss"`
	Version string   `xml:"version,attr"`
	NSG     string   `xml:"xmlns:g,attr"`
	Channel channel  `xml:"channel"`
}

// Builder assembles the feed from every source configured to participate.
type Builder struct {
	sources *source.Registry
	baseURL string
	limit   int
	log     *zap.Logger
}

// NewBuilder wires the feed builder. baseURL is the public site root used for
// product deep links.
func NewBuilder(sources *source.Registry, baseURL string, log *zap.Logger) *Builder {
	return &Builder{
		sources: sources,
		baseURL: strings.TrimRight(baseURL, "/"),
		limit:   defaultItemsPerSource,
		log:     log.Named("feed"),
	}
}

// Build scans the participating sources and renders the feed. A failing
// source is skipped with a warning, never fatal.
func (b *Builder) Build(ctx context.Context) *Feed {
	var items []Item
	for _, ad := range b.sources.ForFeed() {
		recs, err := ad.Scan(ctx, source.Filter{}, b.limit)
		if err != nil {
			b.log.Warn("feed scan failed",
				zap.String("source", string(ad.Tag())), zap.Error(err))
			continue
		}
		for i := range recs {
			items = append(items, b.item(ad.Tag(), &recs[i]))
		}
	}

	return &Feed{
		Version: "2.0",
		NSG:     "http://base.google.com/ns/1.0",
		Channel: channel{
			Title:       "Priceradar product feed",
			Link:        b.baseURL,
			Description: "Aggregated product listings across retailers",
			Items:       items,
		},
	}
}

func (b *Builder) item(tag model.SourceTag, rec *model.ProductRecord) Item {
	desc := rec.Description
	if desc == "" {
		desc = rec.Title
	}
	currency := rec.Currency
	if currency == "" {
		currency = "EUR"
	}
	return Item{
		ID:           fmt.Sprintf("%s-%s", tag, rec.ID),
		Title:        truncate(rec.Title, maxTitleLen),
		Description:  truncate(desc, maxDescLen),
		Link:         fmt.Sprintf("%s/product/%s", b.baseURL, rec.ID),
		ImageLink:    rec.ImageURL,
		Price:        fmt.Sprintf("%.2f %s", rec.Price, currency),
		Brand:        truncate(rec.Brand, maxBrandLen),
		GTIN:         rec.GTIN,
		ProductType:  rec.Category,
		Availability: "in stock",
		Condition:    "new",
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
