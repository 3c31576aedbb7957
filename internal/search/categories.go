package search

import (
	"context"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"priceradar-backend/internal/cache"
	"priceradar-backend/internal/metrics"
	"priceradar-backend/internal/model"
	"priceradar-backend/internal/source"
)

// Categories merges per-source category counts into one ranked list, sorted
// by total descending, optionally filtered by a case-insensitive substring.
// It never invokes the relevance scorer; this is the cheap sibling pipeline.
func (s *Service) Categories(ctx context.Context, term string, page, pageSize int) (model.CategoryPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	// The filter is case-insensitive, so differently-cased terms share one
	// cache entry.
	term = strings.ToLower(strings.TrimSpace(term))

	key := cache.Key("categories", term, page, pageSize)
	var resp model.CategoryPage
	if s.cache.Get(ctx, key, &resp) {
		metrics.CacheHit()
		return resp, nil
	}
	metrics.CacheMiss()

	merged := s.aggregateAll(ctx)

	list := make([]model.CategoryCount, 0, len(merged))
	for _, cc := range merged {
		if term != "" && !strings.Contains(strings.ToLower(cc.Name), term) {
			continue
		}
		list = append(list, cc)
	}

	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Total != list[j].Total {
			return list[i].Total > list[j].Total
		}
		return list[i].Name < list[j].Name
	})

	resp = model.CategoryPage{
		Count:   len(list),
		Page:    page,
		HasNext: page*pageSize < len(list),
		Results: sliceCategories(list, page, pageSize),
	}
	s.cache.Set(ctx, key, resp, s.cfg.FilteredTTL)
	return resp, nil
}

// aggregateAll fans out the per-source category aggregation and joins the
// results. A failing source contributes zero counts, never an error.
func (s *Service) aggregateAll(ctx context.Context) []model.CategoryCount {
	adapters := s.sources.All()
	perSource := make([]map[string]int, len(adapters))

	var wg sync.WaitGroup
	for i, ad := range adapters {
		wg.Add(1)
		go func(i int, ad source.Adapter) {
			defer wg.Done()
			counts, err := ad.AggregateByCategory(ctx)
			if err != nil {
				s.log.Warn("category aggregation failed",
					zap.String("source", string(ad.Tag())), zap.Error(err))
				metrics.SourceFailure(string(ad.Tag()), "aggregate")
				counts = map[string]int{}
			}
			perSource[i] = counts
		}(i, ad)
	}
	wg.Wait()

	byName := make(map[string]*model.CategoryCount)
	for i, ad := range adapters {
		tag := ad.Tag()
		for name, n := range perSource[i] {
			cc, ok := byName[name]
			if !ok {
				cc = &model.CategoryCount{Name: name, PerSource: make(map[model.SourceTag]int)}
				byName[name] = cc
			}
			cc.Total += n
			cc.PerSource[tag] = n
		}
	}

	// Every registered source appears in each row, failed or empty ones as 0.
	out := make([]model.CategoryCount, 0, len(byName))
	for _, cc := range byName {
		for _, ad := range adapters {
			if _, ok := cc.PerSource[ad.Tag()]; !ok {
				cc.PerSource[ad.Tag()] = 0
			}
		}
		out = append(out, *cc)
	}
	return out
}

func sliceCategories(cs []model.CategoryCount, page, pageSize int) []model.CategoryCount {
	offset := (page - 1) * pageSize
	if offset >= len(cs) {
		return []model.CategoryCount{}
	}
	end := offset + pageSize
	if end > len(cs) {
		end = len(cs)
	}
	return cs[offset:end]
}
