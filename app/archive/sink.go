package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"cloud.google.com/go/storage"
	"github.com/codeGROOVE-dev/retry"

	"github.com/lysyi3m/news-comb/app/database"
)

// Sink is cold storage for archived items.
type Sink interface {
	Export(ctx context.Context, key string, items []database.NewsItem) error
}

// ObjectSink writes newline-delimited JSON either to a Cloud Storage bucket
// or, when localPath is set, to a local directory.
type ObjectSink struct {
	client    *storage.Client
	bucket    string
	localPath string
}

func NewObjectSink(client *storage.Client, bucket, localPath string) *ObjectSink {
	return &ObjectSink{client: client, bucket: bucket, localPath: localPath}
}

// ObjectKey names the export for a run.
func ObjectKey(cutoff time.Time) string {
	return fmt.Sprintf("news-archive-%s.ndjson", cutoff.UTC().Format("20060102T150405Z"))
}

func (s *ObjectSink) Export(ctx context.Context, key string, items []database.NewsItem) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i := range items {
		if err := enc.Encode(&items[i]); err != nil {
			return fmt.Errorf("marshal archived item: %w", err)
		}
	}
	data := buf.Bytes()

	if s.localPath != "" {
		if err := os.MkdirAll(s.localPath, 0o755); err != nil {
			return fmt.Errorf("create local archive directory: %w", err)
		}
		filePath := filepath.Join(s.localPath, key)
		if err := os.WriteFile(filePath, data, 0o600); err != nil {
			return fmt.Errorf("write to local storage: %w", err)
		}
		slog.Info("Archive exported to local storage", "path", filePath, "items", len(items))
		return nil
	}

	if s.client == nil {
		return fmt.Errorf("no storage client configured for bucket %q", s.bucket)
	}

	err := retry.Do(
		func() error {
			w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
			w.ContentType = "application/x-ndjson"
			if _, writeErr := w.Write(data); writeErr != nil {
				if closeErr := w.Close(); closeErr != nil {
					slog.Warn("Failed to close writer after error", "error", closeErr)
				}
				return fmt.Errorf("write to storage: %w", writeErr)
			}
			if closeErr := w.Close(); closeErr != nil {
				return fmt.Errorf("close storage writer: %w", closeErr)
			}
			return nil
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(2*time.Minute),
		retry.MaxJitter(10*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, retryErr error) {
			slog.Info("Retrying archive export after error", "attempt", n, "key", key, "error", retryErr)
		}),
	)
	if err != nil {
		return fmt.Errorf("export after retries: %w", err)
	}

	slog.Info("Archive exported", "bucket", s.bucket, "key", key, "items", len(items))
	return nil
}
