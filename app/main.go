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

	"cloud.google.com/go/storage"

	"github.com/lysyi3m/news-comb/app/api"
	"github.com/lysyi3m/news-comb/app/archive"
	"github.com/lysyi3m/news-comb/app/cfg"
	"github.com/lysyi3m/news-comb/app/database"
	"github.com/lysyi3m/news-comb/app/feed"
	"github.com/lysyi3m/news-comb/app/ingest"
	"github.com/lysyi3m/news-comb/app/realtime"
	"github.com/lysyi3m/news-comb/app/routing"
	"github.com/lysyi3m/news-comb/app/session"
	"github.com/lysyi3m/news-comb/app/sound"
	"github.com/lysyi3m/news-comb/app/tasks"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown
		return
	}

	level := slog.LevelInfo
	if appCfg.Debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	if err := appCfg.Validate(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting News Comb server", "version", appCfg.Version, "port", appCfg.Port)

	db, err := database.Open(appCfg.DBPath)
	if err != nil {
		slog.Error("Failed to open database", "path", appCfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	hub := realtime.NewHub()
	db.SetPublisher(hub)

	newsRepo := database.NewNewsRepository(db)
	sourceRepo := database.NewSourceRepository(db)
	logRepo := database.NewLogRepository(db)
	statusRepo := database.NewStatusRepository(db)
	readRepo := database.NewReadRepository(db)
	savedRepo := database.NewSavedRepository(db)

	ctx := context.Background()

	ruleStore := routing.NewStore(database.NewPaneRepository(db))
	if err := ruleStore.Load(ctx); err != nil {
		slog.Error("Failed to load pane rules", "error", err)
		os.Exit(1)
	}

	configCache := feed.NewConfigCache(appCfg.ConfigDir)
	if err := configCache.Run(); err != nil {
		slog.Error("Failed to load seed configuration", "dir", appCfg.ConfigDir, "error", err)
		os.Exit(1)
	}

	soundService := sound.NewService(database.NewSoundRepository(db))
	sessions := session.NewManager(hub, session.Deps{
		News:  newsRepo,
		Read:  readRepo,
		Saved: savedRepo,
		Rules: ruleStore,
	}, soundService, appCfg.SoundCooldown())
	defer sessions.Shutdown()

	fetcher := feed.NewFetcher(&http.Client{}, appCfg.UserAgent)
	pipeline := ingest.NewPipeline(sourceRepo, fetcher, feed.NewParser(), newsRepo, logRepo, statusRepo,
		appCfg.FetchTimeoutDuration())

	sink, closeSink, err := newArchiveSink(ctx, appCfg)
	if err != nil {
		slog.Error("Failed to create archive sink", "error", err)
		os.Exit(1)
	}
	defer closeSink()
	archiver := archive.NewArchiver(database.NewArchiveRepository(db), sink, appCfg.Retention())

	scheduler := tasks.NewScheduler(configCache, sourceRepo, ruleStore, pipeline, archiver, tasks.Options{
		ConfigDir:       appCfg.ConfigDir,
		WorkerCount:     appCfg.WorkerCount,
		Interval:        time.Duration(appCfg.SchedulerInterval) * time.Second,
		IngestInterval:  time.Duration(appCfg.IngestInterval) * time.Second,
		ArchiveInterval: time.Duration(appCfg.ArchiveInterval) * time.Second,
	})
	scheduler.Start()
	defer scheduler.Stop()

	handler := api.NewHandler(api.Services{
		Ingester:  pipeline,
		Archiver:  archiver,
		News:      newsRepo,
		Status:    statusRepo,
		Read:      readRepo,
		Saved:     savedRepo,
		Sound:     soundService,
		Panes:     ruleStore,
		Sessions:  sessions,
		Hub:       hub,
		Generator: feed.NewGenerator(appCfg.BaseUrl, appCfg.Version),
		Stats:     database.NewStats(db),
		Configs:   configCache,
	})
	router := api.NewServer(handler, appCfg.InternalSecret, appCfg.JWTSecret)

	// No write timeout: SSE connections stay open.
	httpServer := &http.Server{
		Addr:              ":" + appCfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", httpServer.Addr)
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

	slog.Info("Shutting down server gracefully")

	// Close sessions first so open SSE handlers return.
	sessions.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("News Comb server shutdown complete")
}

// newArchiveSink picks the cold export target. A local directory wins over a
// bucket; with neither configured, archival only moves rows.
func newArchiveSink(ctx context.Context, appCfg *cfg.Cfg) (archive.Sink, func(), error) {
	noop := func() {}

	switch {
	case appCfg.ArchiveDir != "":
		slog.Info("Archive exports go to local directory", "dir", appCfg.ArchiveDir)
		return archive.NewObjectSink(nil, "", appCfg.ArchiveDir), noop, nil
	case appCfg.ArchiveBucket != "":
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to create storage client: %w", err)
		}
		slog.Info("Archive exports go to bucket", "bucket", appCfg.ArchiveBucket)
		return archive.NewObjectSink(client, appCfg.ArchiveBucket, ""), func() { client.Close() }, nil
	default:
		slog.Info("Archive export disabled")
		return nil, noop, nil
	}
}
