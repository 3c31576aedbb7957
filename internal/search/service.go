// Package search implements the cross-source relevance search and
// merge-pagination engine: fan out to every selected retailer store, score
// each candidate against the query, merge, rank, paginate, cache.
package search

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"priceradar-backend/internal/cache"
	"priceradar-backend/internal/metrics"
	"priceradar-backend/internal/model"
	"priceradar-backend/internal/source"
)

const (
	// Per-source fetch bounds. Ranking happens over a bounded sample of the
	// most recent matches, never over the full store.
	fetchCap          = 10000
	allSourcesMinimum = 250

	defaultSimilarLimit = 10
	maxSimilarLimit     = 50
)

// Config carries the cache TTLs. The unfiltered home view changes rarely and
// gets the long TTL; filtered and searched views expire quickly.
type Config struct {
	DefaultViewTTL time.Duration
	FilteredTTL    time.Duration
}

func (c Config) withDefaults() Config {
	if c.DefaultViewTTL <= 0 {
		c.DefaultViewTTL = time.Hour
	}
	if c.FilteredTTL <= 0 {
		c.FilteredTTL = 10 * time.Minute
	}
	return c
}

// Service is the search engine over all registered sources.
type Service struct {
	sources *source.Registry
	cache   cache.Store
	cfg     Config
	log     *zap.Logger
	now     func() time.Time
}

// NewService wires the engine. The cache store may be Redis-backed or
// in-process; the engine does not care.
func NewService(sources *source.Registry, store cache.Store, cfg Config, log *zap.Logger) *Service {
	return &Service{
		sources: sources,
		cache:   store,
		cfg:     cfg.withDefaults(),
		log:     log.Named("search"),
		now:     time.Now,
	}
}

// Search runs the full pipeline for a normalized query, write-through cached.
//
// Count is the true number of matching records in storage while the ranked
// results come from a bounded per-source sample, so for queries matching more
// than the sample size the last pages of the reported count have no ranked
// records behind them. This mirrors the historical API contract; callers that
// page deeply must tolerate short pages.
func (s *Service) Search(ctx context.Context, q model.SearchQuery) (model.SearchResponse, error) {
	key := cache.Key("search", q.Term, q.Category, q.Brand, q.Retailer, q.Page, q.PageSize)
	var resp model.SearchResponse
	if s.cache.Get(ctx, key, &resp) {
		metrics.CacheHit()
		return resp, nil
	}
	metrics.CacheMiss()

	start := s.now()
	resp, err := s.runPipeline(ctx, q)
	if err != nil {
		// Failed runs are never cached.
		return model.SearchResponse{}, err
	}
	metrics.ObserveSearch(s.now().Sub(start))

	ttl := s.cfg.FilteredTTL
	if q.IsDefaultView() {
		ttl = s.cfg.DefaultViewTTL
	}
	s.cache.Set(ctx, key, resp, ttl)
	return resp, nil
}

type fetchResult struct {
	tag     model.SourceTag
	records []model.ProductRecord
	count   int
}

func (s *Service) runPipeline(ctx context.Context, q model.SearchQuery) (model.SearchResponse, error) {
	filter := source.Filter{Term: q.Term, Category: q.Category, Brand: q.Brand}

	adapters, limit := s.selectSources(q)
	results := s.fetchAll(ctx, adapters, filter, limit)

	total := 0
	candidates := make([]model.ScoredCandidate, 0, len(adapters)*32)
	now := s.now().UTC()
	for _, r := range results {
		total += r.count
		for i := range r.records {
			candidates = append(candidates, model.ScoredCandidate{
				ProductRecord: r.records[i],
				Source:        r.tag,
				Score:         scoreAt(&r.records[i], q.Term, now),
			})
		}
	}

	sortCandidates(candidates)

	page := slicePage(candidates, q.Page, q.PageSize)
	// Scores only order the merged list and never leave the pipeline, so a
	// cached response and a fresh one carry identical records.
	for i := range page {
		page[i].Score = 0
	}

	return model.SearchResponse{
		Count:   total,
		Page:    q.Page,
		HasNext: q.Page*q.PageSize < total,
		Results: page,
	}, nil
}

// selectSources resolves the retailer selector into adapters plus the
// per-source fetch bound. A single retailer fetches a sample proportional to
// the page; the all-retailers path over-fetches so the merged ranking has
// enough candidates from every source.
func (s *Service) selectSources(q model.SearchQuery) ([]source.Adapter, int) {
	if q.Retailer != model.RetailerAll {
		if ad, ok := s.sources.Get(model.SourceTag(q.Retailer)); ok {
			return []source.Adapter{ad}, clampLimit(q.PageSize * 2)
		}
	}
	limit := q.PageSize * 5
	if limit < allSourcesMinimum {
		limit = allSourcesMinimum
	}
	return s.sources.All(), clampLimit(limit)
}

func clampLimit(n int) int {
	if n > fetchCap {
		return fetchCap
	}
	return n
}

// fetchAll issues one bounded scan plus one count per adapter concurrently and
// joins on all of them. A failing source contributes an empty result set and a
// zero count; it is logged and never propagated.
func (s *Service) fetchAll(ctx context.Context, adapters []source.Adapter, f source.Filter, limit int) []fetchResult {
	results := make([]fetchResult, len(adapters))
	var wg sync.WaitGroup
	for i, ad := range adapters {
		wg.Add(1)
		go func(i int, ad source.Adapter) {
			defer wg.Done()
			tag := ad.Tag()
			res := fetchResult{tag: tag}

			recs, err := ad.Scan(ctx, f, limit)
			if err != nil {
				s.log.Warn("source scan failed",
					zap.String("source", string(tag)), zap.Error(err))
				metrics.SourceFailure(string(tag), "scan")
			} else {
				res.records = recs
			}

			count, err := ad.Count(ctx, f)
			if err != nil {
				s.log.Warn("source count failed",
					zap.String("source", string(tag)), zap.Error(err))
				metrics.SourceFailure(string(tag), "count")
			} else {
				res.count = count
			}

			results[i] = res
		}(i, ad)
	}
	wg.Wait()
	return results
}

// sortCandidates orders by score descending, then most recently scraped
// first. Records without a timestamp sort as infinitely old.
func sortCandidates(cs []model.ScoredCandidate) {
	sort.SliceStable(cs, func(i, j int) bool {
		if cs[i].Score != cs[j].Score {
			return cs[i].Score > cs[j].Score
		}
		return cs[i].ScrapedAtEpoch() > cs[j].ScrapedAtEpoch()
	})
}

func slicePage(cs []model.ScoredCandidate, page, pageSize int) []model.ScoredCandidate {
	offset := (page - 1) * pageSize
	if offset >= len(cs) {
		return []model.ScoredCandidate{}
	}
	end := offset + pageSize
	if end > len(cs) {
		end = len(cs)
	}
	return cs[offset:end]
}

// ByGTIN returns at most one match per source, unscored, in stable source
// order. ErrNotFound when every source misses.
func (s *Service) ByGTIN(ctx context.Context, gtin string) ([]model.ScoredCandidate, error) {
	var out []model.ScoredCandidate
	for _, ad := range s.sources.All() {
		rec, err := ad.GetByGTIN(ctx, gtin)
		if errors.Is(err, source.ErrNotFound) {
			continue
		}
		if err != nil {
			s.log.Warn("gtin lookup failed",
				zap.String("source", string(ad.Tag())), zap.Error(err))
			metrics.SourceFailure(string(ad.Tag()), "get_by_gtin")
			continue
		}
		out = append(out, model.ScoredCandidate{ProductRecord: rec, Source: ad.Tag()})
	}
	if len(out) == 0 {
		return nil, source.ErrNotFound
	}
	return out, nil
}

// ByID locates a record by id across all sources, in stable source order.
func (s *Service) ByID(ctx context.Context, id string) (model.ScoredCandidate, error) {
	for _, ad := range s.sources.All() {
		rec, err := ad.GetByID(ctx, id)
		if errors.Is(err, source.ErrNotFound) {
			continue
		}
		if err != nil {
			s.log.Warn("id lookup failed",
				zap.String("source", string(ad.Tag())), zap.Error(err))
			metrics.SourceFailure(string(ad.Tag()), "get_by_id")
			continue
		}
		return model.ScoredCandidate{ProductRecord: rec, Source: ad.Tag()}, nil
	}
	return model.ScoredCandidate{}, source.ErrNotFound
}

// Similar returns up to limit same-category records for the product with the
// given id, preferring the owning source and filling the remainder from the
// other sources configured to participate in this view.
func (s *Service) Similar(ctx context.Context, id string, limit int) ([]model.ScoredCandidate, error) {
	if limit < 1 {
		limit = defaultSimilarLimit
	}
	if limit > maxSimilarLimit {
		limit = maxSimilarLimit
	}

	seed, err := s.ByID(ctx, id)
	if err != nil {
		return nil, err
	}

	filter := source.Filter{Category: seed.Category}
	out := make([]model.ScoredCandidate, 0, limit)

	appendFrom := func(ad source.Adapter) {
		if len(out) >= limit {
			return
		}
		recs, err := ad.Scan(ctx, filter, limit+1)
		if err != nil {
			s.log.Warn("similar scan failed",
				zap.String("source", string(ad.Tag())), zap.Error(err))
			metrics.SourceFailure(string(ad.Tag()), "scan")
			return
		}
		for i := range recs {
			if len(out) >= limit {
				return
			}
			if ad.Tag() == seed.Source && recs[i].ID == seed.ID {
				continue
			}
			out = append(out, model.ScoredCandidate{ProductRecord: recs[i], Source: ad.Tag()})
		}
	}

	if owner, ok := s.sources.Get(seed.Source); ok {
		appendFrom(owner)
	}
	for _, ad := range s.sources.ForSimilar() {
		if ad.Tag() != seed.Source {
			appendFrom(ad)
		}
	}
	return out, nil
}
