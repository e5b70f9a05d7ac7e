package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lysyi3m/news-comb/app/feed"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

type Options struct {
	ConfigDir       string
	WorkerCount     int
	Interval        time.Duration
	IngestInterval  time.Duration
	ArchiveInterval time.Duration
}

type Scheduler struct {
	configCache *feed.ConfigCache
	sources     SourceUpserter
	panes       PaneSeeder
	ingester    Ingester
	archiver    Archiver
	opts        Options
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	taskQueue   chan TaskInterface

	lastIngest  time.Time
	lastArchive time.Time
	now         func() time.Time
}

func NewScheduler(configCache *feed.ConfigCache, sources SourceUpserter, panes PaneSeeder,
	ingester Ingester, archiver Archiver, opts Options) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		configCache: configCache,
		sources:     sources,
		panes:       panes,
		ingester:    ingester,
		archiver:    archiver,
		opts:        opts,
		ctx:         ctx,
		cancel:      cancel,
		taskQueue:   make(chan TaskInterface, 32),
		now:         time.Now,
	}
}

func (s *Scheduler) Start() {
	for i := 0; i < s.opts.WorkerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.opts.Interval)
		defer ticker.Stop()

		s.enqueueStartupTasks()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.enqueueTasks()
			}
		}
	}()

}

// Stop cancels running tasks and waits for workers to exit. The queue is
// left open so pending retries cannot send on a closed channel.
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	select {
	case s.taskQueue <- task:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
		return fmt.Errorf("task queue is full")
	}
}

func (s *Scheduler) enqueueStartupTasks() {
	slog.Debug("Syncing seed configuration", "sources", s.configCache.GetConfigCount(), "panes", len(s.configCache.GetPanes()))

	syncTask := NewSyncSourcesTask(s.opts.ConfigDir, s.configCache, s.sources, s.panes)
	if err := s.EnqueueTask(syncTask); err != nil {
		slog.Warn("Failed to enqueue SyncSourcesTask", "error", err)
	}

	s.enqueueTasks()
}

// enqueueTasks queues each periodic job whose interval has elapsed.
func (s *Scheduler) enqueueTasks() {
	now := s.now()

	if s.lastIngest.IsZero() || now.Sub(s.lastIngest) >= s.opts.IngestInterval {
		if err := s.EnqueueTask(NewIngestTask(s.ingester)); err != nil {
			slog.Warn("Failed to enqueue IngestTask", "error", err)
		} else {
			s.lastIngest = now
		}
	} else {
		slog.Debug("Ingestion not due yet", "last_ingest", s.lastIngest)
	}

	if s.lastArchive.IsZero() || now.Sub(s.lastArchive) >= s.opts.ArchiveInterval {
		if err := s.EnqueueTask(NewArchiveTask(s.archiver)); err != nil {
			slog.Warn("Failed to enqueue ArchiveTask", "error", err)
		} else {
			s.lastArchive = now
		}
	}
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task, ok := <-s.taskQueue:
			if !ok {
				return
			}
			s.executeTask(id, task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	info := task.Info()
	info.begin(s.now())

	taskCtx, cancel := context.WithTimeout(s.ctx, info.Policy.Timeout)
	defer cancel()

	err := task.Execute(taskCtx)
	if err == nil {
		slog.Debug("Task finished", "worker_id", workerID, "type", string(info.Type), "attempt", info.Attempt, "duration", info.Elapsed())
		return
	}

	log := slog.With("type", string(info.Type), "id", info.ID, "attempt", info.Attempt, "max_attempts", info.Policy.Attempts)
	delay, ok := info.NextDelay()
	if !ok {
		log.Error("Task gave up", "worker_id", workerID, "error", err)
		return
	}
	log.Warn("Task failed, retrying", "worker_id", workerID, "target", info.Target, "delay", delay.String(), "error", err)

	go func() {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-s.ctx.Done():
			return
		}
		if err := s.EnqueueTask(task); err != nil {
			log.Error("Failed to re-enqueue task", "error", err)
		}
	}()
}
