package archive

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lysyi3m/news-comb/app/database"
)

const DefaultRetention = 10 * 24 * time.Hour

type Repository interface {
	ListPublishedBefore(ctx context.Context, cutoff time.Time) ([]database.NewsItem, error)
	Move(ctx context.Context, items []database.NewsItem, archivedAt time.Time) (int, error)
}

type Result struct {
	Archived   int       `json:"archived"`
	CutoffDate time.Time `json:"cutoffDate"`
}

// Archiver moves items past the retention window out of the live table.
type Archiver struct {
	repo      Repository
	sink      Sink
	retention time.Duration
}

// NewArchiver returns an archiver. sink may be nil to skip cold export.
func NewArchiver(repo Repository, sink Sink, retention time.Duration) *Archiver {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Archiver{repo: repo, sink: sink, retention: retention}
}

// Run archives every item published strictly before now minus the retention
// window. Only the items read at the start of the run are moved, so rows
// inserted concurrently are never touched. Nothing is deleted unless the
// copy succeeded.
func (a *Archiver) Run(ctx context.Context, now time.Time) (*Result, error) {
	cutoff := now.UTC().Add(-a.retention)
	result := &Result{CutoffDate: cutoff}

	items, err := a.repo.ListPublishedBefore(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to select items to archive: %w", err)
	}
	if len(items) == 0 {
		slog.Debug("No items to archive", "cutoff", cutoff)
		return result, nil
	}

	if a.sink != nil {
		if err := a.sink.Export(ctx, ObjectKey(cutoff), items); err != nil {
			return nil, fmt.Errorf("failed to export archive: %w", err)
		}
	}

	moved, err := a.repo.Move(ctx, items, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to move items to archive: %w", err)
	}
	result.Archived = moved

	slog.Info("Task completed",
		"type", "Archive",
		"cutoff", cutoff,
		"archived", moved)

	return result, nil
}
