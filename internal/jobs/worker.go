// Package jobs runs background work from the SQLite job queue.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/michaelshimeles/youpac-ai-sub001/internal/storage"
)

// Job types understood by the worker.
const (
	TypeTranscribeVideo   = "transcribe_video"
	TypeGenerateThumbnail = "generate_thumbnail"
)

// InterruptedMessage is recorded on jobs that were running when the
// previous server process stopped.
const InterruptedMessage = "interrupted before it finished"

// Store abstracts the job queue operations.
type Store interface {
	EnqueueJob(job storage.Job) error
	ClaimNextJob(types []string) (*storage.Job, error)
	CompleteJob(id string) error
	FailJob(id string, errMsg string) error
	FailRunningJobs(errMsg string) ([]storage.Job, error)
	HasOpenJob(jobType, subjectID string) (bool, error)
}

// Handler executes one job. A returned error is recorded on the job row.
type Handler func(ctx context.Context, payload json.RawMessage) error

// Enqueue schedules a job of jobType on the video or agent subjectID and
// returns its id. The job runs once, as soon as a worker is free.
func Enqueue(store Store, jobType, subjectID string, payload any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshaling %s payload: %w", jobType, err)
	}
	job := storage.Job{
		ID:          uuid.NewString(),
		Type:        jobType,
		SubjectID:   subjectID,
		PayloadJSON: string(body),
	}
	if err := store.EnqueueJob(job); err != nil {
		return "", fmt.Errorf("enqueueing %s job: %w", jobType, err)
	}
	return job.ID, nil
}

// Worker claims jobs for its registered types and dispatches them to handlers.
type Worker struct {
	store  Store
	poll   time.Duration
	logger *slog.Logger

	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewWorker creates a Worker. If pollInterval is <= 0, it defaults to 500ms.
func NewWorker(store Store, pollInterval time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	return &Worker{
		store:    store,
		poll:     pollInterval,
		logger:   slog.Default(),
		handlers: make(map[string]Handler),
	}
}

// Handle registers h for jobType, replacing any previous handler.
func (w *Worker) Handle(jobType string, h Handler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[jobType] = h
}

func (w *Worker) types() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	types := make([]string, 0, len(w.handlers))
	for t := range w.handlers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

func (w *Worker) handler(jobType string) (Handler, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	h, ok := w.handlers[jobType]
	return h, ok
}

// Recover fails the jobs a previous process claimed but never finished and
// returns how many there were. Call it once, before Run.
func (w *Worker) Recover() (int, error) {
	stale, err := w.store.FailRunningJobs(InterruptedMessage)
	if err != nil {
		return 0, err
	}
	for _, j := range stale {
		w.logger.Warn("interrupted job failed", "job_id", j.ID, "type", j.Type, "subject_id", j.SubjectID)
	}
	return len(stale), nil
}

// Run starts concurrency polling loops and blocks until ctx is cancelled
// and every loop has returned.
func (w *Worker) Run(ctx context.Context, concurrency int) {
	if concurrency < 1 {
		concurrency = 1
	}
	var wg sync.WaitGroup
	for range concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.loop(ctx)
		}()
	}
	wg.Wait()
}

func (w *Worker) loop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		done, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error("worker iteration failed", "error", err)
		}
		if done {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.poll):
		}
	}
}

// RunOnce claims and processes a single job.
// Returns true if a job was processed (regardless of success/failure).
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.store.ClaimNextJob(w.types())
	if err != nil {
		return false, fmt.Errorf("claiming job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	if err := w.processJob(ctx, job); err != nil {
		w.logger.Warn("job failed", "job_id", job.ID, "type", job.Type, "subject_id", job.SubjectID, "error", err)
		if failErr := w.store.FailJob(job.ID, err.Error()); failErr != nil {
			w.logger.Error("failed to mark job as failed", "job_id", job.ID, "error", failErr)
		}
		return true, nil
	}

	if err := w.store.CompleteJob(job.ID); err != nil {
		return true, fmt.Errorf("completing job %s: %w", job.ID, err)
	}
	w.logger.Debug("job completed", "job_id", job.ID, "type", job.Type)
	return true, nil
}

func (w *Worker) processJob(ctx context.Context, job *storage.Job) (err error) {
	h, ok := w.handler(job.Type)
	if !ok {
		return fmt.Errorf("no handler for job type %q", job.Type)
	}
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("job handler panicked", "job_id", job.ID, "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("internal error while processing %s job", job.Type)
		}
	}()
	return h(ctx, json.RawMessage(job.PayloadJSON))
}
