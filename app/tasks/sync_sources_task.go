package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/news-comb/app/database"
	"github.com/lysyi3m/news-comb/app/feed"
)

// SyncSourcesTask writes the YAML seed files into rss_sources and adds any
// missing panes. Existing panes keep their stored rules.
type SyncSourcesTask struct {
	Task
	configCache *feed.ConfigCache
	sources     SourceUpserter
	panes       PaneSeeder
}

func NewSyncSourcesTask(configDir string, configCache *feed.ConfigCache, sources SourceUpserter, panes PaneSeeder) *SyncSourcesTask {
	return &SyncSourcesTask{
		Task:        NewTask(TaskTypeSyncSources, configDir),
		configCache: configCache,
		sources:     sources,
		panes:       panes,
	}
}

func (t *SyncSourcesTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	configs := t.configCache.GetConfigs()
	for _, config := range configs {
		_, err := t.sources.Upsert(ctx, database.RSSSource{
			Name:   config.Title(),
			URL:    config.URL,
			Region: config.Region,
			Active: config.Settings.Enabled,
		})
		if err != nil {
			slog.Error("Task failed", "type", "SyncSources", "source", config.Name, "error", err)
			return fmt.Errorf("failed to sync source %s: %w", config.Name, err)
		}
	}

	added, err := t.panes.Seed(ctx, t.configCache.GetPanes())
	if err != nil {
		return fmt.Errorf("failed to seed panes: %w", err)
	}

	slog.Info("Task completed",
		"type", "SyncSources",
		"sources", len(configs),
		"panes_added", added,
		"duration", t.Elapsed())

	return nil
}
