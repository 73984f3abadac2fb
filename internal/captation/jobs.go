package captation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"workflow-backend/internal/cache"

	"github.com/google/uuid"
)

const (
	JobRunning   = "running"
	JobCompleted = "completed"
	JobCancelled = "cancelled"

	DefaultJobTTL = 24 * time.Hour
)

var (
	ErrJobNotFound = errors.New("import job not found")
	ErrJobFinished = errors.New("import job already finished")
)

// Job is the pollable snapshot of a background import.
type Job struct {
	ID         string        `json:"id"`
	Status     string        `json:"status"`
	Processed  int           `json:"processed"`
	Total      int           `json:"total"`
	Result     *ImportResult `json:"result,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt *time.Time    `json:"finished_at,omitempty"`
}

// JobTracker runs imports in the background and keeps their snapshots in a
// cache so any API instance can answer progress polls. Cancellation only
// reaches jobs started by this process.
type JobTracker struct {
	store    cache.Cache
	importer *Importer
	ttl      time.Duration
	location *time.Location
	log      *slog.Logger

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

func NewJobTracker(store cache.Cache, importer *Importer, ttl time.Duration, location *time.Location, log *slog.Logger) *JobTracker {
	if ttl <= 0 {
		ttl = DefaultJobTTL
	}
	return &JobTracker{
		store:    store,
		importer: importer,
		ttl:      ttl,
		location: location,
		log:      log,
		cancels:  make(map[string]context.CancelFunc),
	}
}

func jobKey(id string) string {
	return "captation:import:" + id
}

// Start stores the initial snapshot and launches the import. The run is
// detached from ctx, which only bounds the initial write.
func (t *JobTracker) Start(ctx context.Context, items []PreviewItem, opts ImportOptions) (Job, error) {
	job := Job{
		ID:        uuid.NewString(),
		Status:    JobRunning,
		Total:     len(items),
		StartedAt: nowIn(t.location),
	}
	if err := t.save(ctx, job); err != nil {
		return Job{}, fmt.Errorf("store import job: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	t.mu.Lock()
	t.cancels[job.ID] = cancel
	t.mu.Unlock()

	t.wg.Add(1)
	go t.run(runCtx, cancel, job, items, opts)

	t.log.Info("captation import: started", slog.String("job_id", job.ID), slog.Int("total", job.Total))
	return job, nil
}

func (t *JobTracker) run(ctx context.Context, cancel context.CancelFunc, job Job, items []PreviewItem, opts ImportOptions) {
	defer t.wg.Done()
	defer func() {
		t.mu.Lock()
		delete(t.cancels, job.ID)
		t.mu.Unlock()
		cancel()
	}()

	progress := func(processed, total int) {
		job.Processed = processed
		t.saveDetached(job)
	}
	result := t.importer.Import(ctx, items, opts, progress)

	finished := nowIn(t.location)
	job.Result = &result
	job.FinishedAt = &finished
	job.Status = JobCompleted
	if result.Cancelled {
		job.Status = JobCancelled
	}
	job.Processed = result.Success + result.Duplicates + result.Errors
	t.saveDetached(job)
}

// Get returns the latest snapshot of a job.
func (t *JobTracker) Get(ctx context.Context, id string) (Job, error) {
	var job Job
	ok, err := cache.GetJSON(ctx, t.store, jobKey(id), &job)
	if err != nil {
		return Job{}, err
	}
	if !ok {
		return Job{}, ErrJobNotFound
	}
	return job, nil
}

// Cancel stops a running job. Records already started finish normally.
func (t *JobTracker) Cancel(ctx context.Context, id string) error {
	t.mu.Lock()
	cancel, ok := t.cancels[id]
	t.mu.Unlock()
	if ok {
		cancel()
		t.log.Info("captation import: cancel requested", slog.String("job_id", id))
		return nil
	}

	job, err := t.Get(ctx, id)
	if err != nil {
		return err
	}
	if job.Status != JobRunning {
		return ErrJobFinished
	}
	// Running on another instance.
	return ErrJobNotFound
}

// Shutdown cancels every running job and waits for the workers to drain.
func (t *JobTracker) Shutdown(ctx context.Context) error {
	t.mu.Lock()
	for _, cancel := range t.cancels {
		cancel()
	}
	t.mu.Unlock()

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *JobTracker) save(ctx context.Context, job Job) error {
	return cache.SetJSON(ctx, t.store, jobKey(job.ID), job, t.ttl)
}

func (t *JobTracker) saveDetached(job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := t.save(ctx, job); err != nil {
		t.log.Warn("captation import: snapshot write failed",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
	}
}
