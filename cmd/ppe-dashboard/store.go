package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"ppe-dashboard/internal/backend"
	"ppe-dashboard/internal/cache"
	"ppe-dashboard/internal/config"
	"ppe-dashboard/internal/db"
	"ppe-dashboard/internal/poller"
	"ppe-dashboard/internal/repository"
)

const pruneInterval = time.Hour

// fallbackStore is the configured last-good-response store plus the hooks
// the server needs around it.
type fallbackStore struct {
	backend.Store
	ready func(ctx context.Context) error
	close func()
}

func (s *fallbackStore) Ready(ctx context.Context) error {
	if s.ready == nil {
		return nil
	}
	return s.ready(ctx)
}

func (s *fallbackStore) Close() {
	if s.close != nil {
		s.close()
	}
}

func openStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*fallbackStore, error) {
	switch cfg.Cache.Backend {
	case config.CacheRedis:
		store, err := cache.NewRedis(ctx, cache.RedisConfig{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		}, cfg.Cache.TTL)
		if err != nil {
			return nil, err
		}
		log.Info().Str("addr", cfg.Cache.RedisAddr).Msg("fallback cache: redis")
		return &fallbackStore{
			Store: store,
			ready: store.Ping,
			close: func() {
				if err := store.Close(); err != nil {
					log.Warn().Err(err).Msg("failed to close redis client")
				}
			},
		}, nil

	case config.CachePostgres:
		gdb, err := db.New(ctx, cfg.DB)
		if err != nil {
			return nil, err
		}
		repo := repository.NewSnapshotRepository(gdb, cfg.Cache.TTL)
		pruneCtx, cancel := context.WithCancel(context.Background())
		pruner := poller.Go(pruneCtx, func(ctx context.Context) {
			prune(ctx, repo, log)
		})
		log.Info().Msg("fallback cache: postgres")
		return &fallbackStore{
			Store: repo,
			ready: func(ctx context.Context) error { return db.HealthCheck(ctx, gdb) },
			close: func() {
				cancel()
				pruner.Stop()
				if err := db.Close(gdb); err != nil {
					log.Warn().Err(err).Msg("failed to close database")
				}
			},
		}, nil

	case config.CacheMemory:
		log.Info().Msg("fallback cache: memory")
		return &fallbackStore{Store: cache.NewMemory(cfg.Cache.TTL)}, nil

	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}
}

// prune drops expired snapshots until ctx ends.
func prune(ctx context.Context, repo *repository.SnapshotRepository, log zerolog.Logger) {
	ticker := poller.RealClock{}.Ticker(pruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			n, err := repo.Prune(ctx)
			if err != nil {
				log.Warn().Err(err).Msg("failed to prune fallback snapshots")
				continue
			}
			if n > 0 {
				log.Debug().Int64("removed", n).Msg("pruned fallback snapshots")
			}
		}
	}
}
