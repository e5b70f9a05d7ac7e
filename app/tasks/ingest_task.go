package tasks

import (
	"context"
	"fmt"
)

type IngestTask struct {
	Task
	ingester Ingester
}

func NewIngestTask(ingester Ingester) *IngestTask {
	return &IngestTask{
		Task:     NewTask(TaskTypeIngest, "rss_sources"),
		ingester: ingester,
	}
}

func (t *IngestTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if _, err := t.ingester.Run(ctx); err != nil {
		return fmt.Errorf("failed to run ingestion: %w", err)
	}

	return nil
}
