package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"priceradar-backend/internal/cache"
	"priceradar-backend/internal/config"
	"priceradar-backend/internal/feed"
	"priceradar-backend/internal/httpapi"
	"priceradar-backend/internal/ingest"
	"priceradar-backend/internal/model"
	"priceradar-backend/internal/search"
	"priceradar-backend/internal/source"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := newLogger(cfg)
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := sql.Open("postgres", cfg.PostgresDSN)
	if err != nil {
		logger.Fatal("open postgres", zap.Error(err))
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		// Per-source failures are absorbed by the pipeline, so a missing
		// database at boot degrades rather than aborts.
		logger.Warn("postgres unreachable at startup", zap.Error(err))
	}

	registry, writers, retailers := buildSources(ctx, cfg, db, logger)

	var rdb *redis.Client
	var store cache.Store = cache.NewMemory()
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		store = cache.NewRedis(rdb, logger)
	}

	searchSvc := search.NewService(registry, store, search.Config{
		DefaultViewTTL: cfg.DefaultViewTTL,
		FilteredTTL:    cfg.FilteredTTL,
	}, logger)

	feedBuilder := feed.NewBuilder(registry, cfg.PublicURL, logger)

	if cfg.KafkaBroker != "" {
		var dedupe *ingest.Dedupe
		if rdb != nil {
			dedupe = ingest.NewDedupe(ctx, rdb, logger)
		}
		consumer := ingest.NewConsumer(
			ingest.Config{Broker: cfg.KafkaBroker, Topic: cfg.IngestTopic, GroupID: cfg.IngestGroup},
			writers,
			dedupe,
			ingest.NewRejectionStore("./data/rejections"),
			ingest.NewArchive("./data/archive"),
			logger,
		)
		go func() {
			if err := consumer.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error("ingest consumer stopped", zap.Error(err))
			}
		}()
	} else {
		logger.Info("no kafka broker configured, ingest disabled")
	}

	r := mux.NewRouter()
	httpapi.NewServer(searchSvc, feedBuilder, registry, retailers, logger).RegisterRoutes(r)

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		logger.Info("shutting down")
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info("priceradar api listening", zap.String("addr", cfg.HTTPAddr))
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server error", zap.Error(err))
	}
}

// buildSources registers one Postgres adapter per configured retailer and
// collects the ingest writers plus the retailer directory.
func buildSources(ctx context.Context, cfg *config.Config, db *sql.DB, logger *zap.Logger) (*source.Registry, map[model.SourceTag]source.Writer, []model.Retailer) {
	registry := source.NewRegistry()
	writers := make(map[model.SourceTag]source.Writer)
	var retailers []model.Retailer

	for _, sc := range cfg.Sources {
		if !model.IsKnownSourceTag(sc.Tag) {
			logger.Warn("ignoring unknown source tag", zap.String("tag", sc.Tag))
			continue
		}
		tag := model.SourceTag(sc.Tag)
		adapter := source.NewPostgresAdapter(db, tag)
		if err := adapter.EnsureSchema(ctx); err != nil {
			logger.Warn("schema setup failed", zap.String("source", sc.Tag), zap.Error(err))
		}
		if err := registry.Register(adapter, source.Options{
			Similar: config.Participates(sc.Similar),
			Feed:    config.Participates(sc.Feed),
		}); err != nil {
			logger.Fatal("source registration failed", zap.Error(err))
		}
		writers[tag] = adapter
		retailers = append(retailers, model.Retailer{Name: sc.Name, Slug: tag, Website: sc.Website})
	}

	if len(registry.All()) == 0 {
		logger.Fatal("no sources configured")
	}
	return registry, writers, retailers
}

func newLogger(cfg *config.Config) *zap.Logger {
	var zcfg zap.Config
	if cfg.Environment == "development" {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
	}
	if lvl, err := zap.ParseAtomicLevel(cfg.LogLevel); err == nil {
		zcfg.Level = lvl
	}
	logger, err := zcfg.Build()
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	return logger.With(zap.String("service", "priceradar-api"))
}
