package search

import (
	"net/url"
	"strconv"
	"strings"

	"priceradar-backend/internal/model"
)

const (
	defaultPageSize = 20
	maxPageSize     = 10000
)

// NormalizeQuery turns raw request parameters into a canonical SearchQuery.
// All values are coerced, never rejected: malformed numbers fall back to
// defaults, out-of-range values are clamped, unknown retailers widen to "all".
func NormalizeQuery(params url.Values) model.SearchQuery {
	q := model.SearchQuery{
		Term:     strings.TrimSpace(params.Get("search")),
		Category: strings.TrimSpace(params.Get("category")),
		Brand:    strings.TrimSpace(params.Get("brand")),
		Retailer: strings.ToLower(strings.TrimSpace(params.Get("retailer"))),
		Page:     intParam(params.Get("page"), 1),
		PageSize: intParam(params.Get("page_size"), defaultPageSize),
	}
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 {
		q.PageSize = 1
	}
	if q.PageSize > maxPageSize {
		q.PageSize = maxPageSize
	}
	if q.Retailer == "" || !model.IsKnownSourceTag(q.Retailer) {
		q.Retailer = model.RetailerAll
	}
	return q
}

func intParam(raw string, def int) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return def
	}
	return n
}
