package model

import "time"

// SourceTag identifies the retailer a record was scraped from. Tags are never
// inferred from record data; the adapter that produced the record attaches one.
type SourceTag string

const (
	SourceSaturn     SourceTag = "saturn"
	SourceMediaMarkt SourceTag = "mediamarkt"
	SourceOtto       SourceTag = "otto"
	SourceKaufland   SourceTag = "kaufland"

	// RetailerAll selects every registered source in a SearchQuery.
	RetailerAll = "all"
)

// KnownSourceTags lists every tag the system ships with, in display order.
var KnownSourceTags = []SourceTag{SourceSaturn, SourceMediaMarkt, SourceOtto, SourceKaufland}

// IsKnownSourceTag reports whether s names a shipped retailer tag.
func IsKnownSourceTag(s string) bool {
	for _, t := range KnownSourceTags {
		if string(t) == s {
			return true
		}
	}
	return false
}

// ProductRecord is the latest scraped snapshot of one product at one retailer.
// The search core is a read-only consumer; only ingest mutates stores.
type ProductRecord struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Brand       string     `json:"brand,omitempty"`
	Category    string     `json:"category"`
	Description string     `json:"description,omitempty"`
	GTIN        string     `json:"gtin,omitempty"`
	SKU         string     `json:"sku,omitempty"`
	Price       float64    `json:"price"`
	OldPrice    float64    `json:"old_price,omitempty"`
	Discount    string     `json:"discount,omitempty"`
	Currency    string     `json:"currency"`
	ImageURL    string     `json:"image_url,omitempty"`
	SourceURL   string     `json:"source_url,omitempty"`
	ScrapedAt   *time.Time `json:"scraped_at,omitempty"`
}

// ScrapedAtEpoch returns the scrape time as Unix seconds, or 0 when the record
// carries no timestamp. Missing timestamps rank as infinitely old.
func (p *ProductRecord) ScrapedAtEpoch() int64 {
	if p.ScrapedAt == nil {
		return 0
	}
	return p.ScrapedAt.Unix()
}

// SearchQuery is the canonical, bounds-checked form of a product search request.
type SearchQuery struct {
	Term     string `json:"term"`
	Category string `json:"category"`
	Brand    string `json:"brand"`
	Retailer string `json:"retailer"` // "all" or a known SourceTag, lower-case
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
}

// IsDefaultView reports whether the query is the unfiltered home view, which
// gets the long cache TTL.
func (q SearchQuery) IsDefaultView() bool {
	return q.Term == "" && q.Category == "" && q.Brand == "" &&
		q.Retailer == RetailerAll && q.Page == 1
}

// ScoredCandidate pairs a record with the source it came from and its relevance
// score. The score orders results but is stripped from serialized responses.
type ScoredCandidate struct {
	ProductRecord
	Source SourceTag `json:"retailer"`
	Score  int       `json:"-" xml:"-"`
}

// SearchResponse is the paginated result of one search pipeline run.
// Count is the total number of matching records in storage, which can exceed
// the bounded sample that was actually fetched and ranked.
type SearchResponse struct {
	Count   int               `json:"count"`
	Page    int               `json:"page"`
	HasNext bool              `json:"has_next"`
	Results []ScoredCandidate `json:"results"`
}

// CategoryCount is one row of the merged cross-source category listing.
type CategoryCount struct {
	Name      string            `json:"name"`
	Total     int               `json:"total"`
	PerSource map[SourceTag]int `json:"per_source" xml:"-"`
}

// CategoryPage is a paginated slice of the ranked category listing.
type CategoryPage struct {
	Count   int             `json:"count"`
	Page    int             `json:"page"`
	HasNext bool            `json:"has_next"`
	Results []CategoryCount `json:"results"`
}

// Retailer is the static directory entry for one source.
type Retailer struct {
	Name    string    `json:"name"`
	Slug    SourceTag `json:"slug"`
	Website string    `json:"website,omitempty"`
}
