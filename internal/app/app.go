// Package app opens the stores both binaries run on.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"kasirpos/backend/internal/config"
	"kasirpos/backend/internal/draft"
	"kasirpos/backend/internal/kv"
	"kasirpos/backend/internal/store"
	"kasirpos/backend/internal/store/memory"
	pgstore "kasirpos/backend/internal/store/postgres"
)

type Resources struct {
	Repo     store.Repository
	Postgres *pgstore.Store
	Slot     kv.Slot
	closers  []func() error
}

// OpenRepository connects to postgres when DATABASE_URL is set and refuses
// to fall back to memory if that fails.
func OpenRepository(ctx context.Context, cfg config.Config, logger *zap.Logger, res *Resources) error {
	if cfg.DatabaseURL == "" {
		res.Repo = memory.NewSeeded()
		logger.Info("repository: in-memory")
		return nil
	}

	pg, err := pgstore.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("postgres unavailable and DATABASE_URL is set: %w", err)
	}
	res.Repo = pg
	res.Postgres = pg
	res.closers = append(res.closers, pg.Close)
	logger.Info("repository: postgres")
	return nil
}

// OpenDraftSlot opens the configured draft backend. An unreachable redis
// degrades to an in-memory slot.
func OpenDraftSlot(ctx context.Context, cfg config.Config, logger *zap.Logger, res *Resources) error {
	switch cfg.DraftBackend {
	case config.DraftBackendMemory:
		res.Slot = kv.NewMemory()
	case config.DraftBackendRedis:
		r := kv.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.DraftMaxAge)
		if err := r.Ping(ctx); err != nil {
			_ = r.Close()
			logger.Warn("redis unavailable, drafts kept in memory", zap.Error(err))
			res.Slot = kv.NewMemory()
			return nil
		}
		res.Slot = r
		res.closers = append(res.closers, r.Close)
	case config.DraftBackendSQLite:
		s, err := kv.OpenSQLite(ctx, cfg.DraftSQLitePath)
		if err != nil {
			return fmt.Errorf("open draft database %s: %w", cfg.DraftSQLitePath, err)
		}
		res.Slot = s
		res.closers = append(res.closers, s.Close)
	default:
		return fmt.Errorf("unknown draft backend %q", cfg.DraftBackend)
	}
	logger.Info("draft store", zap.String("backend", cfg.DraftBackend))
	return nil
}

func NewKeeper(cfg config.Config, slot kv.Slot, logger *zap.Logger) *draft.Keeper {
	return draft.NewKeeper(slot,
		draft.WithKey(cfg.DraftKey),
		draft.WithMaxAge(cfg.DraftMaxAge),
		draft.WithLogger(logger))
}

// Close releases resources in reverse opening order.
func (r *Resources) Close(logger *zap.Logger) {
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			logger.Warn("close error", zap.Error(err))
		}
	}
	r.closers = nil
}
