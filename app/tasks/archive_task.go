package tasks

import (
	"context"
	"fmt"
	"time"
)

type ArchiveTask struct {
	Task
	archiver Archiver
	now      func() time.Time
}

func NewArchiveTask(archiver Archiver) *ArchiveTask {
	return &ArchiveTask{
		Task:     NewTask(TaskTypeArchive, "news_items"),
		archiver: archiver,
		now:      time.Now,
	}
}

func (t *ArchiveTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if _, err := t.archiver.Run(ctx, t.now()); err != nil {
		return fmt.Errorf("failed to archive news items: %w", err)
	}

	return nil
}
