package source

import (
	"context"
	"sort"
	"strings"
	"sync"

	"priceradar-backend/internal/model"
)

// MemoryAdapter is an in-process store used by tests and local development
// fixtures. Filter semantics mirror the Postgres adapter: every term token is
// a case-insensitive substring match, category and brand are exact.
type MemoryAdapter struct {
	tag model.SourceTag

	mu      sync.RWMutex
	records []model.ProductRecord
}

// NewMemoryAdapter returns an empty in-memory store for tag.
func NewMemoryAdapter(tag model.SourceTag) *MemoryAdapter {
	return &MemoryAdapter{tag: tag}
}

func (a *MemoryAdapter) Tag() model.SourceTag { return a.tag }

// Upsert inserts or replaces the record with the same id.
func (a *MemoryAdapter) Upsert(_ context.Context, rec model.ProductRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := range a.records {
		if a.records[i].ID == rec.ID {
			a.records[i] = rec
			return nil
		}
	}
	a.records = append(a.records, rec)
	return nil
}

func (f Filter) matches(rec *model.ProductRecord) bool {
	if f.Category != "" && rec.Category != f.Category {
		return false
	}
	if f.Brand != "" && rec.Brand != f.Brand {
		return false
	}
	for _, token := range strings.Fields(strings.ToLower(f.Term)) {
		hit := false
		for _, field := range []string{rec.Title, rec.SKU, rec.GTIN, rec.Description, rec.Brand} {
			if field != "" && strings.Contains(strings.ToLower(field), token) {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	return true
}

func (a *MemoryAdapter) Count(_ context.Context, f Filter) (int, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	n := 0
	for i := range a.records {
		if f.matches(&a.records[i]) {
			n++
		}
	}
	return n, nil
}

func (a *MemoryAdapter) Scan(_ context.Context, f Filter, limit int) ([]model.ProductRecord, error) {
	a.mu.RLock()
	var out []model.ProductRecord
	for i := range a.records {
		if f.matches(&a.records[i]) {
			out = append(out, a.records[i])
		}
	}
	a.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ScrapedAtEpoch() > out[j].ScrapedAtEpoch()
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (a *MemoryAdapter) DistinctCategories(_ context.Context) ([]string, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	seen := make(map[string]struct{})
	var cats []string
	for i := range a.records {
		c := a.records[i].Category
		if _, dup := seen[c]; !dup {
			seen[c] = struct{}{}
			cats = append(cats, c)
		}
	}
	sort.Strings(cats)
	return cats, nil
}

func (a *MemoryAdapter) AggregateByCategory(_ context.Context) (map[string]int, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	counts := make(map[string]int)
	for i := range a.records {
		counts[a.records[i].Category]++
	}
	return counts, nil
}

func (a *MemoryAdapter) GetByID(_ context.Context, id string) (model.ProductRecord, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for i := range a.records {
		if a.records[i].ID == id {
			return a.records[i], nil
		}
	}
	return model.ProductRecord{}, ErrNotFound
}

func (a *MemoryAdapter) GetByGTIN(_ context.Context, gtin string) (model.ProductRecord, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for i := range a.records {
		if a.records[i].GTIN != "" && a.records[i].GTIN == gtin {
			return a.records[i], nil
		}
	}
	return model.ProductRecord{}, ErrNotFound
}
