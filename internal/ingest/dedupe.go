package ingest

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"priceradar-backend/internal/model"
)

// snapshotBloomKey is the RedisBloom filter tracking already-seen snapshots.
const snapshotBloomKey = "priceradar:snapshots"

// Dedupe drops repeated identical snapshots before they hit a store. It is a
// RedisBloom filter keyed on (source, id, scraped_at, price), so a re-scrape
// with a new timestamp or price always passes. Requires redis-stack; when the
// module is missing every check degrades to "not seen".
type Dedupe struct {
	rdb *redis.Client
	log *zap.Logger
}

// NewDedupe reserves the Bloom filter (idempotent) and returns the checker.
func NewDedupe(ctx context.Context, rdb *redis.Client, log *zap.Logger) *Dedupe {
	d := &Dedupe{rdb: rdb, log: log.Named("dedupe")}
	if err := rdb.Do(ctx, "BF.RESERVE", snapshotBloomKey, 0.001, 10_000_000).Err(); err != nil {
		// Either the filter already exists or RedisBloom is unavailable.
		d.log.Debug("bloom reserve", zap.Error(err))
	}
	return d
}

// SeenSnapshot reports whether this exact snapshot probably arrived before,
// adding it as a side effect.
func (d *Dedupe) SeenSnapshot(ctx context.Context, tag model.SourceTag, rec *model.ProductRecord) bool {
	key := fmt.Sprintf("%s:%s:%d:%.2f", tag, rec.ID, rec.ScrapedAtEpoch(), rec.Price)
	res := d.rdb.Do(ctx, "BF.ADD", snapshotBloomKey, key)
	if res.Err() != nil {
		d.log.Debug("bloom add failed", zap.Error(res.Err()))
		return false
	}
	// BF.ADD returns 1/true when the item was new.
	if added, err := res.Bool(); err == nil {
		return !added
	}
	if added, err := res.Int(); err == nil {
		return added == 0
	}
	return false
}
