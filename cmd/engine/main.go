package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"papertrade/internal/engine"
	"papertrade/internal/infra"
	"papertrade/internal/quotes"
	"papertrade/internal/storage"
	"papertrade/internal/stream"

	_ "net/http/pprof" // For pprof profiling
)

func main() {
	// 1. Pprof Server (for performance profiling)
	go func() {
		// Localhost only for security
		slog.Info("🕵️ Pprof server started on localhost:6060")
		if err := http.ListenAndServe("localhost:6060", nil); err != nil {
			slog.Error("Pprof server failed", slog.Any("error", err))
		}
	}()

	// 2. Configuration & Logging
	cfg, err := infra.LoadConfig(infra.ResolveConfigPath())
	if err != nil {
		slog.Error("❌ Failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	slog.SetDefault(infra.NewLogger(cfg))

	// 3. Workspace & single-instance lock
	workDir := infra.GetWorkspaceDir()
	if err := infra.EnsureDir(workDir); err != nil {
		slog.Error("❌ Failed to create workspace", slog.Any("error", err))
		os.Exit(1)
	}
	unlock, err := infra.CreateLockFile(workDir)
	if err != nil {
		slog.Error("❌ Failed to acquire instance lock", slog.Any("error", err))
		os.Exit(1)
	}
	defer unlock()

	// 4. Persistent store
	dbPath := cfg.Store.Path
	if dbPath == "" {
		dbPath = filepath.Join(workDir, "papertrade.db")
	}
	store, err := storage.Open(dbPath)
	if err != nil {
		slog.Error("❌ Failed to open store", slog.Any("error", err))
		os.Exit(1)
	}
	defer store.Close()
	slog.Info("✅ Store opened", slog.String("path", dbPath))

	// 5. Optional redis quote cache
	var quotePublisher engine.QuotePublisher
	if cfg.Redis.Enabled {
		client, err := quotes.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			slog.Error("❌ Redis unavailable", slog.Any("error", err))
			os.Exit(1)
		}
		defer client.Close()
		quotePublisher = quotes.NewCache(client, cfg.QuoteTTL())
		slog.Info("✅ Quote cache enabled", slog.String("addr", cfg.Redis.Addr))
	}

	// 6. Graceful Shutdown Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 7. Worker manager
	dialer := stream.NewWSDialer(cfg.Market.WSURL)
	manager := engine.NewManager(store, dialer, quotePublisher,
		cfg.ReconnectDelay(), cfg.MatchInterval(), cfg.ReconcileInterval())
	if err := manager.Start(ctx); err != nil {
		slog.Error("❌ Failed to start worker manager", slog.Any("error", err))
		os.Exit(1)
	}
	defer manager.Stop()

	slog.InfoContext(ctx, "✨ Matching engine fully operational. Press Ctrl+C to exit.")

	// Wait for shutdown signal
	<-ctx.Done()

	slog.InfoContext(ctx, "👋 Shutting down gracefully...")
}
