// Package cache memoizes fully-built API responses keyed by the normalized
// query signature. Entries self-expire; there is no active eviction and no
// stampede protection, since concurrent misses recompute the same
// deterministic answer and the pipeline is side-effect-free.
package cache

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"time"
)

// Store is the response cache surface. Get reports a hit and decodes the
// cached payload into dst; Set stores val under key for ttl. Implementations
// must treat backend failures as misses, never as request failures.
type Store interface {
	Get(ctx context.Context, key string, dst any) bool
	Set(ctx context.Context, key string, val any, ttl time.Duration)
}

// Key builds a stable cache key from the normalized query tuple. The parts
// are joined and FNV-hashed so keys stay short regardless of term length.
func Key(kind string, parts ...any) string {
	h := fnv.New64a()
	strs := make([]string, len(parts))
	for i, p := range parts {
		strs[i] = fmt.Sprint(p)
	}
	_, _ = h.Write([]byte(strings.Join(strs, "|")))
	return fmt.Sprintf("%s:%016x", kind, h.Sum64())
}
