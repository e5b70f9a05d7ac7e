package tasks

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/lysyi3m/news-comb/app/archive"
	"github.com/lysyi3m/news-comb/app/database"
	"github.com/lysyi3m/news-comb/app/feed"
	"github.com/lysyi3m/news-comb/app/ingest"
	"github.com/lysyi3m/news-comb/app/routing"
)

// MockIngester counts ingestion runs
type MockIngester struct {
	mu    sync.Mutex
	runs  int
	errAt int
}

func (m *MockIngester) Run(ctx context.Context) (*ingest.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs++
	if m.runs == m.errAt {
		return nil, errors.New("database is locked")
	}
	return &ingest.Result{}, nil
}

func (m *MockIngester) Runs() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runs
}

// MockArchiver records the times it was run with
type MockArchiver struct {
	mu    sync.Mutex
	times []time.Time
}

func (m *MockArchiver) Run(ctx context.Context, now time.Time) (*archive.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.times = append(m.times, now)
	return &archive.Result{}, nil
}

func (m *MockArchiver) Runs() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.times)
}

// MockSourceRepository keeps upserted sources in memory
type MockSourceRepository struct {
	mu      sync.Mutex
	sources map[string]database.RSSSource
	err     error
}

func (m *MockSourceRepository) Upsert(ctx context.Context, source database.RSSSource) (*database.RSSSource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if m.sources == nil {
		m.sources = make(map[string]database.RSSSource)
	}
	m.sources[source.URL] = source
	return &source, nil
}

// MockPaneSeeder records seeded panes
type MockPaneSeeder struct {
	mu     sync.Mutex
	seeded []routing.Pane
}

func (m *MockPaneSeeder) Seed(ctx context.Context, panes []routing.Pane) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seeded = append(m.seeded, panes...)
	return len(panes), nil
}

func writeSeedFiles(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "sources"), 0o755); err != nil {
		t.Fatal(err)
	}
	files := map[string]string{
		"sources/reuters.yml": "name: Reuters\nurl: https://example.com/reuters.xml\nregion: GLOBAL\n",
		"sources/paused.yml":  "url: https://example.com/paused.xml\nsettings:\n  enabled: false\n",
		"panes.yml":           "panes:\n  - id: risk_events\n    title: Risk Events\n    rules:\n      keywords: [sanctions]\n",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func loadConfigCache(t *testing.T, dir string) *feed.ConfigCache {
	t.Helper()
	cache := feed.NewConfigCache(dir)
	if err := cache.Run(); err != nil {
		t.Fatal(err)
	}
	return cache
}

func TestSyncSourcesTask(t *testing.T) {
	dir := writeSeedFiles(t)
	sources := &MockSourceRepository{}
	panes := &MockPaneSeeder{}

	task := NewSyncSourcesTask(dir, loadConfigCache(t, dir), sources, panes)
	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if len(sources.sources) != 2 {
		t.Fatalf("Expected 2 sources, got %d", len(sources.sources))
	}
	reuters := sources.sources["https://example.com/reuters.xml"]
	if reuters.Name != "Reuters" || !reuters.Active || reuters.Region != "GLOBAL" {
		t.Errorf("Unexpected source %+v", reuters)
	}
	paused := sources.sources["https://example.com/paused.xml"]
	if paused.Name != "paused" || paused.Active {
		t.Errorf("Expected inactive source named after its file, got %+v", paused)
	}

	if len(panes.seeded) != 1 || panes.seeded[0].ID != "risk_events" {
		t.Errorf("Expected risk_events pane to be seeded, got %v", panes.seeded)
	}
}

func TestSyncSourcesTaskError(t *testing.T) {
	dir := writeSeedFiles(t)
	sources := &MockSourceRepository{err: errors.New("disk full")}

	task := NewSyncSourcesTask(dir, loadConfigCache(t, dir), sources, &MockPaneSeeder{})
	if err := task.Execute(context.Background()); err == nil {
		t.Error("Expected error when source upsert fails")
	}
}

func TestTaskRespectsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ingester := &MockIngester{}
	if err := NewIngestTask(ingester).Execute(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if ingester.Runs() != 0 {
		t.Errorf("Expected no runs, got %d", ingester.Runs())
	}
}

func TestTaskRetryBookkeeping(t *testing.T) {
	task := NewArchiveTask(&MockArchiver{})
	info := task.Info()

	if info.Type != TaskTypeArchive {
		t.Errorf("Expected archive task, got %s", info.Type)
	}
	if info.ID == "" {
		t.Error("Expected task id to be set")
	}

	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	info.begin(start)
	delay, ok := info.NextDelay()
	if !ok {
		t.Fatal("Expected a retry after the first attempt")
	}
	if delay != info.Policy.BaseDelay {
		t.Errorf("Expected first retry after %s, got %s", info.Policy.BaseDelay, delay)
	}

	info.begin(start)
	if _, ok := info.NextDelay(); ok {
		t.Errorf("Expected attempts to be exhausted after %d runs", info.Attempt)
	}
}

func TestNextDelayDoublesUpToCap(t *testing.T) {
	task := NewTask(TaskTypeSyncSources, "config")
	task.Policy = RetryPolicy{Attempts: 10, BaseDelay: time.Second, MaxDelay: 5 * time.Second}

	expected := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second, 5 * time.Second}
	for i, want := range expected {
		task.begin(time.Now())
		got, ok := task.NextDelay()
		if !ok {
			t.Fatalf("Attempt %d: expected a retry", i+1)
		}
		if got != want {
			t.Errorf("Attempt %d: expected delay %s, got %s", i+1, want, got)
		}
	}
}

func TestUnknownTaskTypeRunsOnce(t *testing.T) {
	task := NewTask(TaskType("reindex"), "")
	task.begin(time.Now())
	if _, ok := task.NextDelay(); ok {
		t.Error("Expected no retry for a task type without a policy")
	}
	if task.Policy.Timeout <= 0 {
		t.Error("Expected a default timeout")
	}
}

func TestEnqueueTasksHonoursIntervals(t *testing.T) {
	ingester := &MockIngester{}
	archiver := &MockArchiver{}
	s := NewScheduler(feed.NewConfigCache(t.TempDir()), &MockSourceRepository{}, &MockPaneSeeder{},
		ingester, archiver, Options{
			WorkerCount:     1,
			Interval:        time.Second,
			IngestInterval:  5 * time.Minute,
			ArchiveInterval: time.Hour,
		})
	defer s.Stop()

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	s.enqueueTasks()
	if len(s.taskQueue) != 2 {
		t.Fatalf("Expected ingest and archive tasks, got %d", len(s.taskQueue))
	}

	now = now.Add(time.Minute)
	s.enqueueTasks()
	if len(s.taskQueue) != 2 {
		t.Errorf("Expected nothing new after one minute, got %d queued", len(s.taskQueue))
	}

	now = now.Add(5 * time.Minute)
	s.enqueueTasks()
	if len(s.taskQueue) != 3 {
		t.Errorf("Expected another ingest task, got %d queued", len(s.taskQueue))
	}
}

func TestSchedulerRunsAndRetries(t *testing.T) {
	dir := writeSeedFiles(t)
	ingester := &MockIngester{errAt: 1}
	archiver := &MockArchiver{}
	sources := &MockSourceRepository{}

	s := NewScheduler(loadConfigCache(t, dir), sources, &MockPaneSeeder{}, ingester, archiver, Options{
		ConfigDir:       dir,
		WorkerCount:     2,
		Interval:        time.Hour,
		IngestInterval:  time.Hour,
		ArchiveInterval: time.Hour,
	})
	s.Start()
	defer s.Stop()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if ingester.Runs() >= 2 && archiver.Runs() >= 1 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	if ingester.Runs() < 2 {
		t.Errorf("Expected failed ingestion to be retried, got %d runs", ingester.Runs())
	}
	if archiver.Runs() != 1 {
		t.Errorf("Expected one archive run, got %d", archiver.Runs())
	}
	sources.mu.Lock()
	defer sources.mu.Unlock()
	if len(sources.sources) != 2 {
		t.Errorf("Expected startup sync of 2 sources, got %d", len(sources.sources))
	}
}
