package tasks

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type TaskType string

const (
	TaskTypeIngest      TaskType = "ingest"
	TaskTypeArchive     TaskType = "archive"
	TaskTypeSyncSources TaskType = "sync_sources"
)

// RetryPolicy bounds one run of a task and how it is re-queued on failure.
// Attempts includes the first run.
type RetryPolicy struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
	Timeout   time.Duration
}

var policies = map[TaskType]RetryPolicy{
	// An ingestion run walks the sources one by one; a later tick covers for
	// a failed run, so retries are few and quick.
	TaskTypeIngest:      {Attempts: 3, BaseDelay: 2 * time.Second, MaxDelay: 30 * time.Second, Timeout: 5 * time.Minute},
	TaskTypeArchive:     {Attempts: 2, BaseDelay: 30 * time.Second, MaxDelay: 2 * time.Minute, Timeout: 10 * time.Minute},
	TaskTypeSyncSources: {Attempts: 5, BaseDelay: time.Second, MaxDelay: 30 * time.Second, Timeout: time.Minute},
}

func policyFor(taskType TaskType) RetryPolicy {
	if p, ok := policies[taskType]; ok {
		return p
	}
	return RetryPolicy{Attempts: 1, Timeout: 5 * time.Minute}
}

type TaskInterface interface {
	Execute(ctx context.Context) error
	Info() *Task
}

// Task is the bookkeeping shared by every queued job. Implementations embed
// it and only provide Execute.
type Task struct {
	ID      string
	Type    TaskType
	Target  string
	Attempt int
	Policy  RetryPolicy

	startedAt time.Time
}

func NewTask(taskType TaskType, target string) Task {
	return Task{
		ID:     uuid.NewString(),
		Type:   taskType,
		Target: target,
		Policy: policyFor(taskType),
	}
}

func (t *Task) Info() *Task {
	return t
}

// begin records the start of the next attempt.
func (t *Task) begin(now time.Time) {
	t.Attempt++
	t.startedAt = now
}

// Elapsed reports how long the current attempt has been running.
func (t *Task) Elapsed() time.Duration {
	if t.startedAt.IsZero() {
		return 0
	}
	return time.Since(t.startedAt)
}

// NextDelay returns the wait before re-running a failed attempt, doubling
// from BaseDelay up to MaxDelay. ok is false once the attempts are spent.
func (t *Task) NextDelay() (delay time.Duration, ok bool) {
	if t.Attempt >= t.Policy.Attempts {
		return 0, false
	}
	delay = t.Policy.BaseDelay
	for i := 1; i < t.Attempt && delay < t.Policy.MaxDelay; i++ {
		delay *= 2
	}
	if t.Policy.MaxDelay > 0 && delay > t.Policy.MaxDelay {
		delay = t.Policy.MaxDelay
	}
	return delay, true
}
