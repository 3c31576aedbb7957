package model

import "time"

// ScrapedProduct is one message on the products.scraped topic: a scraper's
// latest snapshot of a product page. Validated before it touches a store.
type ScrapedProduct struct {
	Source      string     `json:"source" validate:"required,lowercase"`
	ID          string     `json:"id" validate:"required"`
	Title       string     `json:"title" validate:"required"`
	Brand       string     `json:"brand,omitempty"`
	Category    string     `json:"category" validate:"required"`
	Description string     `json:"description,omitempty"`
	GTIN        string     `json:"gtin,omitempty" validate:"omitempty,numeric"`
	SKU         string     `json:"sku,omitempty"`
	Price       float64    `json:"price" validate:"gte=0"`
	OldPrice    float64    `json:"old_price,omitempty" validate:"omitempty,gte=0"`
	Discount    string     `json:"discount,omitempty"`
	Currency    string     `json:"currency,omitempty" validate:"omitempty,len=3"`
	ImageURL    string     `json:"image_url,omitempty" validate:"omitempty,url"`
	SourceURL   string     `json:"source_url,omitempty" validate:"omitempty,url"`
	ScrapedAt   *time.Time `json:"scraped_at,omitempty"`
}

// Record converts the scraped payload into the store representation,
// defaulting the currency to EUR the way the scrapers historically did.
func (s *ScrapedProduct) Record() ProductRecord {
	currency := s.Currency
	if currency == "" {
		currency = "EUR"
	}
	return ProductRecord{
		ID:          s.ID,
		Title:       s.Title,
		Brand:       s.Brand,
		Category:    s.Category,
		Description: s.Description,
		GTIN:        s.GTIN,
		SKU:         s.SKU,
		Price:       s.Price,
		OldPrice:    s.OldPrice,
		Discount:    s.Discount,
		Currency:    currency,
		ImageURL:    s.ImageURL,
		SourceURL:   s.SourceURL,
		ScrapedAt:   s.ScrapedAt,
	}
}
