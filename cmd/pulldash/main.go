package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	githubadapter "github.com/ericfisherdev/pulldash/internal/adapter/driven/github"
	sqliteadapter "github.com/ericfisherdev/pulldash/internal/adapter/driven/sqlite"
	httphandler "github.com/ericfisherdev/pulldash/internal/adapter/driving/http"
	"github.com/ericfisherdev/pulldash/internal/application"
	"github.com/ericfisherdev/pulldash/internal/config"
	"github.com/ericfisherdev/pulldash/internal/domain/model"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (.env first, then the environment).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"pull_interval", cfg.PullInterval,
		"viewer_interval", cfg.ViewerInterval,
		"token_encryption", cfg.SecretKey != nil,
	)
	if cfg.SecretKey == nil {
		slog.Warn("PULLDASH_SECRET_KEY not set, connection tokens are stored unencrypted")
	}

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	slog.Info("database opened", "path", cfg.DBPath)

	// 4. Run migrations on writer connection.
	if err := db.Migrate(); err != nil {
		return err
	}
	slog.Info("migrations complete")

	// 5. Wire adapters.
	connectionStore := sqliteadapter.NewConnectionRepo(db, cfg.SecretKey)
	sectionStore := sqliteadapter.NewSectionRepo(db)
	starStore := sqliteadapter.NewStarRepo(db)
	pullStore := sqliteadapter.NewPullRepo(db)
	activityStore := sqliteadapter.NewActivityRepo(db)
	provider := githubadapter.NewRegistry(githubadapter.DefaultMaxClients)

	// 6. Seed first-run data.
	if _, err := application.SeedDefaultSections(ctx, sectionStore); err != nil {
		return err
	}
	if cfg.HasBootstrapConnection() {
		conn := model.Connection{
			ID:      uuid.NewString(),
			Label:   "GitHub",
			BaseURL: cfg.GitHubURL,
			Token:   cfg.GitHubToken,
			Orgs:    cfg.GitHubOrgs,
		}
		if _, err := application.EnsureConnection(ctx, connectionStore, conn); err != nil {
			return err
		}
	}

	// 7. Create and start the sync service.
	scheduler := application.NewScheduler(activityStore)
	pullSync := application.NewPullSync(provider, connectionStore, sectionStore, starStore, pullStore)
	viewerSync := application.NewViewerSync(provider, connectionStore)
	syncSvc := application.NewSyncService(scheduler, pullSync, viewerSync, cfg.PullInterval, cfg.ViewerInterval)
	if err := syncSvc.Start(ctx); err != nil {
		return err
	}
	defer syncSvc.Stop()

	// 8. Create HTTP handler and server.
	apiHandler := httphandler.NewHandler(
		pullStore,
		starStore,
		sectionStore,
		connectionStore,
		activityStore,
		provider,
		syncSvc,
		slog.Default(),
	)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           httphandler.NewServeMux(apiHandler, slog.Default()),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	slog.Info("pulldash started", "listen_addr", cfg.ListenAddr)

	// 9. Wait for shutdown signal or a failed listener.
	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case err := <-serveErr:
		if err != nil {
			return err
		}
	}

	// 10. Graceful shutdown with 10s timeout for in-flight requests.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}
