package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/amp-memory/amp/internal/api"
	"github.com/amp-memory/amp/internal/artifact"
	"github.com/amp-memory/amp/internal/cache"
	"github.com/amp-memory/amp/internal/chunker"
	"github.com/amp-memory/amp/internal/config"
	"github.com/amp-memory/amp/internal/embeddings"
	"github.com/amp-memory/amp/internal/events"
	"github.com/amp-memory/amp/internal/filesync"
	"github.com/amp-memory/amp/internal/graphtraversal"
	"github.com/amp-memory/amp/internal/indexer/pipeline"
	"github.com/amp-memory/amp/internal/leases"
	"github.com/amp-memory/amp/internal/retrieval"
	"github.com/amp-memory/amp/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the amp HTTP API",
	PreRunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return nil
	},
	RunE: runServe,
}

// dsn resolves a storage.database_url setting to the value storage.Open
// expects, stripping the optional "file://" scheme.
func dsn(databaseURL string) string {
	return strings.TrimPrefix(databaseURL, "file://")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Get()
	logger := logManager.Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := storage.Open(ctx, dsn(cfg.Storage.DatabaseURL))
	if err != nil {
		return fmt.Errorf("open storage; %w", err)
	}
	defer db.Close()

	objects := storage.NewObjectStore(db)
	rels := storage.NewRelationshipStore(db)
	cacheStore := storage.NewCacheStore(db)
	settings := storage.NewSettingsStore(db)
	_ = storage.NewAgentStore(db) // agent connection tracking; no HTTP surface yet

	embedder := embeddings.New(cfg.Embeddings)
	logger.Info("embeddings provider configured", "provider", cfg.Embeddings.Provider, "status", embeddings.Describe(embedder))

	ch, err := chunker.New(chunker.DefaultConfig())
	if err != nil {
		return fmt.Errorf("build chunker; %w", err)
	}

	traverser := graphtraversal.New(rels)
	bus := events.NewBus(events.WithLogger(logger))

	leaseManager, ttlMirror := buildRedisBackedServices(cfg, db, logger)

	cacheSvc := cache.New(cacheStore, embedder, cfg.Cache, ttlMirror)
	retrievalEngine := retrieval.New(objects, embedder, traverser, cfg.Retrieval)
	artifactWriter := artifact.New(objects, rels, embedder, logger)
	fileSyncSvc := filesync.New(objects, rels, embedder, ch, logger)
	indexPipeline := pipeline.New(objects, rels, embedder, ch, bus, logger)

	deps := api.Deps{
		Objects:   objects,
		Rels:      rels,
		Settings:  settings,
		Cache:     cacheSvc,
		Retrieval: retrievalEngine,
		Traverser: traverser,
		Artifacts: artifactWriter,
		FileSync:  fileSyncSvc,
		Pipeline:  indexPipeline,
		Leases:    leaseManager,
		Embedder:  embedder,
		Chunker:   ch,
		Config:    cfg,
	}

	server := api.New(deps, logger)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting amp", "bind", cfg.Server.Bind, "port", cfg.Server.Port)
		serveErr <- server.Start(ctx)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server error; %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// buildRedisBackedServices wires a Redis client for leases and cache TTLs
// when cfg.Redis.Addr is configured, falling back to the SQLite-backed
// lease manager (and no cache TTL mirror) otherwise.
func buildRedisBackedServices(cfg *config.Config, db *storage.DB, logger *slog.Logger) (leases.Manager, cache.TTLMirror) {
	if cfg.Redis.Addr == "" {
		return leases.NewSQLiteManager(db.SQL()), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		logger.Warn("redis unreachable, falling back to sqlite lease manager", "addr", cfg.Redis.Addr, "error", err)
		return leases.NewSQLiteManager(db.SQL()), nil
	}

	return leases.NewRedisManager(client), leases.NewRedisTTLMirror(client)
}
