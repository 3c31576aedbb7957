package source

import (
	"context"
	"errors"

	"priceradar-backend/internal/model"
)

// ErrNotFound is returned by lookups that miss. Callers translate it to a
// 404-equivalent; it never indicates a source failure.
var ErrNotFound = errors.New("source: record not found")

// Filter narrows a Count or Scan to matching records. Zero values mean "no
// constraint". Term is split on whitespace and every token must match as a
// case-insensitive substring of title, sku, gtin, description or brand;
// Category and Brand match exactly.
type Filter struct {
	Term     string
	Category string
	Brand    string
}

// IsZero reports whether the filter constrains nothing.
func (f Filter) IsZero() bool {
	return f.Term == "" && f.Category == "" && f.Brand == ""
}

// Adapter is the read surface of one retailer's product store. One instance
// per retailer; implementations must be safe for concurrent use because the
// search pipeline fans out across adapters.
type Adapter interface {
	// Tag identifies the retailer this adapter serves.
	Tag() model.SourceTag

	// Count returns the number of records matching the filter.
	Count(ctx context.Context, f Filter) (int, error)

	// Scan returns up to limit matching records, most recently scraped first.
	// Records without a scrape timestamp sort last.
	Scan(ctx context.Context, f Filter, limit int) ([]model.ProductRecord, error)

	// DistinctCategories returns every category name present in the store.
	DistinctCategories(ctx context.Context) ([]string, error)

	// AggregateByCategory returns per-category record counts.
	AggregateByCategory(ctx context.Context) (map[string]int, error)

	// GetByID returns the record with the given id or ErrNotFound.
	GetByID(ctx context.Context, id string) (model.ProductRecord, error)

	// GetByGTIN returns the record with the given GTIN or ErrNotFound.
	GetByGTIN(ctx context.Context, gtin string) (model.ProductRecord, error)
}

// Writer is the append/update surface used by ingest. The search core never
// sees it; stores are read-only from the core's perspective.
type Writer interface {
	Upsert(ctx context.Context, rec model.ProductRecord) error
}
