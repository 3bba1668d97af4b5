package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"kasirpos/backend/internal/app"
	"kasirpos/backend/internal/config"
	"kasirpos/backend/internal/httpapi"
	"kasirpos/backend/internal/logging"
	"kasirpos/backend/internal/money"
	"kasirpos/backend/internal/service"
)

func main() {
	cfg := config.Load()
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := validateConfig(cfg); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	res := &app.Resources{}
	if err := app.OpenRepository(ctx, cfg, logger, res); err != nil {
		logger.Fatal("refusing to start with in-memory fallback", zap.Error(err))
	}
	if err := app.OpenDraftSlot(ctx, cfg, logger, res); err != nil {
		res.Close(logger)
		logger.Fatal("draft store unavailable", zap.Error(err))
	}

	svc := service.New(service.Deps{
		Repo:            res.Repo,
		Drafts:          app.NewKeeper(cfg, res.Slot, logger),
		Formatter:       money.NewFormatter(cfg.CurrencySymbol, money.DefaultPrecision),
		Logger:          logger,
		CheckoutTimeout: cfg.CheckoutTimeout,
		SaveInterval:    cfg.DraftSaveInterval,
	})
	if offer, ok := svc.CheckDraft(ctx); ok {
		logger.Info("restorable draft found", zap.Time("saved_at", offer.SavedAt), zap.Int("lines", offer.LineCount))
	}

	api, err := httpapi.New(svc, httpapi.Options{
		AllowedOrigin:     cfg.AllowedOrigin,
		CheckoutRateLimit: cfg.CheckoutRateLimit,
		Logger:            logger,
	})
	if err != nil {
		res.Close(logger)
		logger.Fatal("http api", zap.Error(err))
	}

	runCtx, stopRun := context.WithCancel(context.Background())
	autosaveDone := make(chan struct{})
	go func() {
		svc.RunDraftAutosave(runCtx)
		close(autosaveDone)
	}()

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.CheckoutTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("POS terminal listening", zap.String("addr", cfg.Address()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown error", zap.Error(err))
	}
	stopRun()
	<-autosaveDone

	res.Close(logger)
	logger.Info("server stopped")
}

func validateConfig(cfg config.Config) error {
	switch cfg.DraftBackend {
	case config.DraftBackendSQLite:
		if cfg.DraftSQLitePath == "" {
			return fmt.Errorf("DRAFT_SQLITE_PATH must be set for the sqlite draft backend")
		}
	case config.DraftBackendRedis:
		if cfg.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR must be set for the redis draft backend")
		}
	case config.DraftBackendMemory:
	default:
		return fmt.Errorf("DRAFT_BACKEND %q is not one of sqlite, redis, memory", cfg.DraftBackend)
	}
	if cfg.DraftKey == "" {
		return fmt.Errorf("DRAFT_KEY must not be empty")
	}
	return nil
}
