package source

import (
	"fmt"
	"sort"

	"priceradar-backend/internal/model"
)

// Options controls which derived views a registered source takes part in.
// Search always includes every registered source; participation in the
// similar-products view and the merchant feed varies per retailer and is a
// deployment decision, not code.
type Options struct {
	Similar bool
	Feed    bool
}

// DefaultOptions enables a source everywhere.
var DefaultOptions = Options{Similar: true, Feed: true}

type entry struct {
	adapter Adapter
	opts    Options
}

// Registry maps SourceTags to their adapters. Built once at startup and
// read-only afterwards, so it needs no locking.
type Registry struct {
	entries map[model.SourceTag]entry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[model.SourceTag]entry)}
}

// Register adds an adapter under its own tag. Registering two adapters for
// the same tag is a wiring bug and fails loudly.
func (r *Registry) Register(a Adapter, opts Options) error {
	tag := a.Tag()
	if _, dup := r.entries[tag]; dup {
		return fmt.Errorf("source %q registered twice", tag)
	}
	r.entries[tag] = entry{adapter: a, opts: opts}
	return nil
}

// Get returns the adapter for tag, if one is registered.
func (r *Registry) Get(tag model.SourceTag) (Adapter, bool) {
	e, ok := r.entries[tag]
	return e.adapter, ok
}

// All returns every registered adapter in stable tag order.
func (r *Registry) All() []Adapter {
	return r.collect(func(Options) bool { return true })
}

// ForSimilar returns the adapters participating in the similar-products view.
func (r *Registry) ForSimilar() []Adapter {
	return r.collect(func(o Options) bool { return o.Similar })
}

// ForFeed returns the adapters participating in the merchant feed.
func (r *Registry) ForFeed() []Adapter {
	return r.collect(func(o Options) bool { return o.Feed })
}

// Tags returns the registered tags in stable order.
func (r *Registry) Tags() []model.SourceTag {
	tags := make([]model.SourceTag, 0, len(r.entries))
	for t := range r.entries {
		tags = append(tags, t)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })
	return tags
}

func (r *Registry) collect(keep func(Options) bool) []Adapter {
	out := make([]Adapter, 0, len(r.entries))
	for _, t := range r.Tags() {
		e := r.entries[t]
		if keep(e.opts) {
			out = append(out, e.adapter)
		}
	}
	return out
}
