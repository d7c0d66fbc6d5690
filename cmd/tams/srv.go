package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"tams/internal/auth"
	"tams/internal/config"
	"tams/internal/deletion"
	"tams/internal/objectstore"
	"tams/internal/segindex"
	"tams/internal/server"
	"tams/internal/store"
	"tams/internal/webhook"
)

func newSrvCmd(cfg *config.Config) *cobra.Command {
	var ephemeral bool

	cmd := &cobra.Command{
		Use:   "srv",
		Short: "Run the TAMS API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg == nil {
				return fmt.Errorf("config not initialized")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, *cfg, ephemeral, slog.Default())
		},
	}

	cmd.Flags().BoolVar(&ephemeral, "ephemeral", false, "keep the catalog and media in a temporary directory removed on exit")
	return cmd
}

func runServer(ctx context.Context, cfg config.Config, ephemeral bool, logger *slog.Logger) error {
	if ephemeral {
		dir, err := os.MkdirTemp("", "tams-ephemeral-*")
		if err != nil {
			return err
		}
		defer os.RemoveAll(dir)
		cfg.Database.Path = filepath.Join(dir, "tams.db")
		cfg.MediaStorage.BasePath = filepath.Join(dir, "media")
		cfg.MediaStorage.StagingPath = ""
	}
	if cfg.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if cfg.Auth.RequireAuth {
		if err := checkAuthConfig(cfg.Auth); err != nil {
			return err
		}
	}

	logger.Info("opening database", "path", cfg.Database.Path, "ephemeral", ephemeral)
	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	objects, err := objectstore.NewLocal(objectstore.Options{
		Root:        cfg.MediaStorage.BasePath,
		StagingDir:  cfg.MediaStorage.StagingPath,
		MaxFileSize: cfg.MediaStorage.MaxFileSize,
		PublicURL:   cfg.Service.PublicURLBase,
		Logger:      logger.With("component", "objectstore"),
	})
	if err != nil {
		return err
	}

	registry, err := loadWebhooks(ctx, st, cfg.Webhooks.SeedFile, logger)
	if err != nil {
		return err
	}
	dispatcher := webhook.NewDispatcher(registry, webhook.Options{
		Timeout:       time.Duration(cfg.Webhooks.TimeoutSeconds) * time.Second,
		MaxConcurrent: int64(cfg.Webhooks.MaxConcurrentDeliveries),
		UserAgent:     cfg.Service.Name + "/" + version,
		Logger:        logger.With("component", "webhook"),
	})
	defer dispatcher.Wait()

	index := segindex.New(st)
	reaper := deletion.NewReaper(st, objects, index, logger.With("component", "reaper"))
	executor := deletion.NewExecutor(deletion.ExecutorOptions{
		Requests:     st,
		Segments:     index,
		Reaper:       reaper,
		Publisher:    dispatcher,
		PollInterval: time.Duration(cfg.Deletion.PollIntervalSeconds) * time.Second,
		Logger:       logger.With("component", "deletion"),
	})
	stagingRetention := time.Duration(cfg.Cleanup.StagingRetentionHours) * time.Hour
	orphanRetention := time.Duration(cfg.Cleanup.OrphanedObjectRetentionDays) * 24 * time.Hour
	janitor := deletion.NewJanitor(deletion.JanitorOptions{
		Objects:          objects,
		Reaper:           reaper,
		Interval:         time.Duration(cfg.Cleanup.IntervalMinutes) * time.Minute,
		StagingRetention: stagingRetention,
		OrphanRetention:  orphanRetention,
		Logger:           logger.With("component", "janitor"),
	})

	srv, err := server.New(server.Options{
		Addr:             cfg.Server.ListenAddr,
		Store:            st,
		Objects:          objects,
		Index:            index,
		Webhooks:         registry,
		Publisher:        dispatcher,
		Reaper:           reaper,
		Deletions:        executor,
		Gate:             auth.NewGate(cfg.Auth.JWTSecret, cfg.Auth.BasicAuthUsername, cfg.Auth.BasicAuthPasswordHash),
		RequireAuth:      cfg.Auth.RequireAuth,
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		Info:             server.ServiceInfo{Name: cfg.Service.Name, Description: cfg.Service.Description, Version: cfg.Service.Version},
		DefaultLimit:     cfg.Pagination.DefaultLimit,
		MaxLimit:         cfg.Pagination.MaxLimit,
		StagingRetention: stagingRetention,
		OrphanRetention:  orphanRetention,
		Logger:           logger.With("component", "server"),
	})
	if err != nil {
		return err
	}

	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()
	workersDone := make(chan struct{}, 2)
	go func() {
		defer func() { workersDone <- struct{}{} }()
		if err := executor.Run(workerCtx); err != nil {
			logger.Error("deletion executor stopped", "error", err)
		}
	}()
	go func() {
		defer func() { workersDone <- struct{}{} }()
		janitor.Run(workerCtx)
	}()

	serveErr := srv.ListenAndServe(ctx)
	cancelWorkers()
	<-workersDone
	<-workersDone
	return serveErr
}

// loadWebhooks fills the registry from the catalog, then from the seed file.
// Persisted subscriptions win over seeded ones with the same URL.
func loadWebhooks(ctx context.Context, st *store.Store, seedPath string, logger *slog.Logger) (*webhook.Registry, error) {
	seeded, err := webhook.LoadSeedFile(seedPath)
	if err != nil {
		return nil, err
	}
	persisted, err := st.ListWebhooks(ctx)
	if err != nil {
		return nil, fmt.Errorf("load webhooks: %w", err)
	}

	registry := webhook.NewRegistry()
	registry.BulkLoad(seeded)
	for _, hook := range persisted {
		registry.Register(hook)
	}
	if n := len(seeded) + len(persisted); n > 0 {
		logger.Info("webhooks loaded", "persisted", len(persisted), "seeded", len(seeded))
	}
	return registry, nil
}

func checkAuthConfig(cfg config.AuthConfig) error {
	if cfg.JWTSecret != "" {
		return nil
	}
	if cfg.BasicAuthUsername != "" && cfg.BasicAuthPasswordHash != "" {
		return nil
	}
	return errors.New("auth.require_auth is set but neither auth.jwt_secret nor basic auth credentials are configured")
}
