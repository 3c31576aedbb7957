// Package ingest consumes scraped product snapshots from Kafka and applies
// them to the per-retailer stores. Scraping itself runs out-of-band; this is
// the only writer the stores ever see.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-playground/validator/v10"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"priceradar-backend/internal/metrics"
	"priceradar-backend/internal/model"
	"priceradar-backend/internal/source"
)

// Config carries the Kafka wiring for the scraped-products topic.
type Config struct {
	Broker  string
	Topic   string
	GroupID string
}

// Consumer reads products.scraped, validates each snapshot with partial
// acceptance, and upserts accepted records into the owning retailer store.
type Consumer struct {
	cfg      Config
	writers  map[model.SourceTag]source.Writer
	dedupe   *Dedupe
	rejects  *RejectionStore
	archive  *Archive
	validate *validator.Validate
	log      *zap.Logger
}

// NewConsumer wires the consumer. dedupe may be nil when no Redis is
// configured; archive and rejects may be nil to disable the JSONL side files.
func NewConsumer(cfg Config, writers map[model.SourceTag]source.Writer, dedupe *Dedupe, rejects *RejectionStore, archive *Archive, log *zap.Logger) *Consumer {
	return &Consumer{
		cfg:      cfg,
		writers:  writers,
		dedupe:   dedupe,
		rejects:  rejects,
		archive:  archive,
		validate: validator.New(),
		log:      log.Named("ingest"),
	}
}

func (c *Consumer) newReader() *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        []string{c.cfg.Broker},
		Topic:          c.cfg.Topic,
		GroupID:        c.cfg.GroupID,
		MinBytes:       10e3,
		MaxBytes:       10e6,
		CommitInterval: time.Second,
	})
}

// Run consumes until ctx is cancelled, reconnecting with exponential backoff
// after broker errors. A malformed or invalid message is rejected and skipped,
// never fatal.
func (c *Consumer) Run(ctx context.Context) error {
	reader := c.newReader()
	defer reader.Close()

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 0 // retry forever; only ctx stops the consumer

	c.log.Info("consuming scraped products",
		zap.String("broker", c.cfg.Broker), zap.String("topic", c.cfg.Topic))

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			wait := bo.NextBackOff()
			c.log.Warn("kafka read failed, backing off",
				zap.Duration("wait", wait), zap.Error(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			continue
		}
		bo.Reset()
		c.handle(ctx, msg.Value)
	}
}

func (c *Consumer) handle(ctx context.Context, raw []byte) {
	var sp model.ScrapedProduct
	if err := json.Unmarshal(raw, &sp); err != nil {
		c.reject(ctx, "unknown", "", "malformed JSON: "+err.Error())
		return
	}
	if err := c.validate.Struct(&sp); err != nil {
		c.reject(ctx, sp.Source, sp.ID, validationReason(err))
		return
	}

	tag := model.SourceTag(sp.Source)
	writer, ok := c.writers[tag]
	if !ok {
		c.reject(ctx, sp.Source, sp.ID, "unknown source tag")
		return
	}

	rec := sp.Record()

	// Dedupe is advisory: a repeated identical snapshot is dropped early, a
	// Bloom false positive only costs one redundant upsert check.
	if c.dedupe != nil && c.dedupe.SeenSnapshot(ctx, tag, &rec) {
		metrics.IngestOutcome(sp.Source, "duplicate")
		return
	}

	if c.archive != nil {
		if err := c.archive.Append(tag, &rec); err != nil {
			c.log.Warn("archive append failed",
				zap.String("source", sp.Source), zap.Error(err))
		}
	}

	if err := writer.Upsert(ctx, rec); err != nil {
		c.log.Error("upsert failed",
			zap.String("source", sp.Source), zap.String("id", sp.ID), zap.Error(err))
		metrics.IngestOutcome(sp.Source, "error")
		return
	}
	metrics.IngestOutcome(sp.Source, "accepted")
}

func (c *Consumer) reject(ctx context.Context, src, id, reason string) {
	c.log.Warn("rejected scraped product",
		zap.String("source", src), zap.String("id", id), zap.String("reason", reason))
	metrics.IngestOutcome(src, "rejected")
	if c.rejects != nil {
		if err := c.rejects.Write(Rejection{Source: src, ID: id, Reason: reason}); err != nil {
			c.log.Warn("rejection store write failed", zap.Error(err))
		}
	}
}

func validationReason(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return "invalid field " + verrs[0].Namespace() + " (" + verrs[0].Tag() + ")"
	}
	return err.Error()
}
