package tasks

import (
	"context"
	"time"

	"github.com/lysyi3m/news-comb/app/archive"
	"github.com/lysyi3m/news-comb/app/database"
	"github.com/lysyi3m/news-comb/app/ingest"
	"github.com/lysyi3m/news-comb/app/routing"
)

// TaskSchedulerInterface defines the interface for task scheduling operations.
// Used by the main application to run ingestion, archival and seed syncing
// in the background.
// Example usage:
//
//	scheduler := NewScheduler(configCache, sources, panes, pipeline, archiver, opts)
//	scheduler.Start()
//	defer scheduler.Stop()
//	scheduler.EnqueueTask(NewIngestTask(pipeline))
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
}

type Ingester interface {
	Run(ctx context.Context) (*ingest.Result, error)
}

type Archiver interface {
	Run(ctx context.Context, now time.Time) (*archive.Result, error)
}

type SourceUpserter interface {
	Upsert(ctx context.Context, source database.RSSSource) (*database.RSSSource, error)
}

type PaneSeeder interface {
	Seed(ctx context.Context, panes []routing.Pane) (int, error)
}
