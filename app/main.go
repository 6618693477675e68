package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lysyi3m/feedsync/app/api"
	"github.com/lysyi3m/feedsync/app/assets"
	"github.com/lysyi3m/feedsync/app/bus"
	"github.com/lysyi3m/feedsync/app/cfg"
	"github.com/lysyi3m/feedsync/app/database"
	"github.com/lysyi3m/feedsync/app/dom"
	"github.com/lysyi3m/feedsync/app/feed"
	"github.com/lysyi3m/feedsync/app/tasks"
)

func main() {
	appConfig, err := cfg.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if appConfig == nil {
		// Help was shown
		return
	}

	logLevel := slog.LevelInfo
	if appConfig.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("Starting feedsync", "version", appConfig.Version, "live", appConfig.Live)

	db, err := database.Open(appConfig.DBPath)
	if err != nil {
		slog.Error("Failed to open database", "path", appConfig.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Debug("Database ready", "path", appConfig.DBPath, "schema_version", version, "dirty", dirty)

	configCache := feed.NewConfigCache(appConfig.FeedsDir)
	if err := configCache.Run(); err != nil {
		slog.Error("Failed to load feed configurations", "dir", appConfig.FeedsDir, "error", err)
		os.Exit(1)
	}
	slog.Info("Feed configurations loaded", "count", configCache.GetConfigCount())

	feedRepo := database.NewFeedRepository(db)
	snapshotRepo := database.NewSnapshotRepository(db)

	httpClient := &http.Client{}
	pipeline, err := feed.NewPipeline(httpClient, appConfig.Endpoint, appConfig.UserAgent, appConfig.GetTimeout())
	if err != nil {
		slog.Error("Invalid endpoint", "endpoint", appConfig.Endpoint, "error", err)
		os.Exit(1)
	}
	loader, err := assets.NewHTTPLoader(httpClient, appConfig.Endpoint, appConfig.UserAgent, appConfig.GetTimeout())
	if err != nil {
		slog.Error("Invalid endpoint", "endpoint", appConfig.Endpoint, "error", err)
		os.Exit(1)
	}

	page := dom.NewPage()
	cache := assets.NewCache(page, loader)
	eventBus := bus.New()
	registry := feed.NewRegistry()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for _, name := range configCache.GetNames() {
		feedConfig, err := configCache.GetConfig(name)
		if err != nil {
			slog.Warn("Skipping feed", "feed", name, "error", err)
			continue
		}
		if !feedConfig.Settings.Enabled {
			slog.Debug("Feed disabled, not mounting", "feed", name)
			continue
		}

		opts := []feed.Option{feed.WithLive(appConfig.Live)}
		snapshot, err := snapshotRepo.GetSnapshot(name)
		if err != nil {
			slog.Warn("Failed to read snapshot", "feed", name, "error", err)
		} else if snapshot != nil {
			opts = append(opts, feed.WithSnapshot(tasks.SnapshotState(snapshot)))
		}

		inst := feed.NewInstance(feedConfig, page, cache, pipeline, eventBus, opts...)
		inst.Mount(ctx)
		registry.Add(name, inst)
	}

	scheduler := tasks.NewScheduler(configCache, feedRepo, snapshotRepo, pipeline,
		appConfig.WorkerCount, appConfig.GetSchedulerInterval())
	scheduler.Start()

	handler := api.NewHandler(registry, configCache, feedRepo, scheduler, page, eventBus)
	server := api.NewServer(handler, appConfig.APIAccessKey, appConfig.Version)

	// No WriteTimeout: the bus websocket is long-lived.
	httpServer := &http.Server{
		Addr:        ":" + appConfig.Port,
		Handler:     server,
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", appConfig.Port, "feeds", registry.Len())
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig)
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	slog.Info("Shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	scheduler.Stop()
	cancel()
	registry.UnmountAll()
	eventBus.Close()

	slog.Info("Shutdown complete")
}
