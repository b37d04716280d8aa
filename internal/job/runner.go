package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/echoscribe/echoscribe-api/internal/domain"
	"github.com/echoscribe/echoscribe-api/internal/redact"
	"github.com/echoscribe/echoscribe-api/internal/store"
	"github.com/echoscribe/echoscribe-api/internal/track"
)

// RunnerConfig holds configuration for the job runner
type RunnerConfig struct {
	// WorkerCount determines how many concurrent workers process jobs
	WorkerCount int

	// QueueSize determines the buffer size for the in-memory job queue
	QueueSize int

	// ClaimTTL defines how long a job can hold a processing claim before the
	// sweeper considers its worker dead and resets it. Must exceed the
	// pipeline's wall clock budget, or live jobs would be reset mid-flight.
	ClaimTTL time.Duration

	// SweepInterval defines how often to check for expired claims
	// If zero, defaults to 1 minute
	SweepInterval time.Duration
}

// DefaultRunnerConfig returns a RunnerConfig with reasonable defaults
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		WorkerCount:   4,
		QueueSize:     64,
		ClaimTTL:      10 * time.Minute,
		SweepInterval: time.Minute,
	}
}

// Runner manages background job processing. It owns the in-memory queue, the
// worker pool that drains it, and the sweeper that returns expired claims to
// the queue.
type Runner struct {
	store      Store
	factory    Factory
	queue      *JobQueue
	metrics    *track.Metrics
	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	config     RunnerConfig
	logger     *slog.Logger
}

// NewRunner creates a new Runner
func NewRunner(store Store, factory Factory, config RunnerConfig, metrics *track.Metrics, logger *slog.Logger) *Runner {
	if config.SweepInterval == 0 {
		config.SweepInterval = time.Minute
	}
	if config.WorkerCount <= 0 {
		logger.Warn("worker count not positive, running a single worker",
			"worker_count", config.WorkerCount)
		config.WorkerCount = 1
	}

	ctx, cancel := context.WithCancel(context.Background())

	queue := NewJobQueue(config.QueueSize, logger)
	if metrics != nil {
		metrics.RegisterGauge(track.GaugeQueueDepth, func() float64 {
			return float64(queue.Len())
		})
	}

	return &Runner{
		store:      store,
		factory:    factory,
		queue:      queue,
		metrics:    metrics,
		ctx:        ctx,
		cancelFunc: cancel,
		wg:         sync.WaitGroup{},
		config:     config,
		logger:     logger,
	}
}

// Submit adds a job to the in-memory queue. The job's record must already be
// persisted; restart recovery reloads the queue from those records. A job
// already queued for the same note is treated as an idempotent no-op.
func (r *Runner) Submit(ctx context.Context, j Job) error {
	err := r.queue.Enqueue(j)
	if errors.Is(err, ErrDuplicateNote) {
		r.logger.Debug("job already queued for note, skipping",
			"job_id", j.ID(),
			"note_id", j.NoteID())
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to enqueue job: %w", err)
	}

	if r.metrics != nil {
		r.metrics.Inc(track.CounterJobsEnqueued)
	}
	return nil
}

// Start recovers unfinished jobs and begins processing
func (r *Runner) Start() error {
	if err := r.Recover(); err != nil {
		return fmt.Errorf("failed to recover jobs: %w", err)
	}

	for i := 0; i < r.config.WorkerCount; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}

	r.wg.Add(1)
	go r.claimSweeper()

	return nil
}

// Stop gracefully shuts down the runner. Queued jobs stay persisted as
// pending and are reloaded on the next start.
func (r *Runner) Stop() {
	r.queue.Close()
	r.cancelFunc()
	r.wg.Wait()
}

// Recover reloads unfinished jobs from the database. Claims from a previous
// run are reset regardless of age: this process is the only claim holder, so
// any existing claim belongs to a worker that no longer exists.
func (r *Runner) Recover() error {
	ctx := context.Background()

	// Reset jobs that were mid-processing when the previous run stopped
	interrupted, err := r.store.ResetExpiredClaims(ctx, 0)
	if err != nil {
		return fmt.Errorf("failed to reset interrupted jobs: %w", err)
	}

	// Get jobs that were in "pending" state
	pending, err := r.store.GetPendingJobs(ctx)
	if err != nil {
		return fmt.Errorf("failed to get pending jobs: %w", err)
	}

	r.logger.Info("recovering unfinished jobs",
		"interrupted_count", len(interrupted),
		"pending_count", len(pending))

	// ResetExpiredClaims already returned the interrupted jobs to pending, so
	// GetPendingJobs covers both sets; requeue everything it returned.
	for _, rec := range pending {
		r.requeueRecord(rec)
	}

	return nil
}

// requeueRecord rebuilds the runtime job for a stored record and enqueues it.
// Duplicates and a full queue are logged and skipped; the record stays
// pending, so a later sweep or restart picks it up again.
func (r *Runner) requeueRecord(rec *domain.Job) {
	j, err := r.factory.FromRecord(rec)
	if err != nil {
		r.logger.Error("failed to rebuild job from record",
			"job_id", rec.ID,
			"note_id", rec.NoteID,
			"error", err)
		return
	}

	err = r.queue.Enqueue(j)
	switch {
	case errors.Is(err, ErrDuplicateNote):
		// Already queued, nothing to do
	case err != nil:
		r.logger.Error("failed to requeue job",
			"job_id", rec.ID,
			"note_id", rec.NoteID,
			"error", err)
	}
}

// worker processes jobs from the queue
func (r *Runner) worker(id int) {
	defer r.wg.Done()

	r.logger.Debug("starting worker", "worker_id", id)

	for {
		j, err := r.queue.Dequeue(r.ctx)
		if err != nil {
			// Context cancelled or queue closed, stop worker
			r.logger.Debug("stopping worker", "worker_id", id, "reason", err)
			return
		}

		r.processJob(j, id)
	}
}

// processJob handles execution of a single job
func (r *Runner) processJob(j Job, workerID int) {
	ctx := r.ctx
	logger := r.logger.With(
		"job_id", j.ID(),
		"job_type", j.Type(),
		"note_id", j.NoteID(),
		"worker_id", workerID,
	)

	// Claim the job so no other worker processes it
	claimed, err := r.store.ClaimJob(ctx, j.ID())
	if err != nil {
		if errors.Is(err, store.ErrClaimConflict) {
			// Another worker got there first or the job was already resolved
			logger.Debug("job claim lost, skipping")
			return
		}
		logger.Error("failed to claim job", "error", err)
		return
	}

	if r.metrics != nil {
		r.metrics.Observe(track.LatencyQueueWait, time.Since(j.EnqueuedAt()))
	}

	logger.Info("processing job", "attempt", claimed.AttemptCount)

	// Execute the job, turning a worker panic into a failed job rather than
	// a crashed process
	err = r.executeJob(ctx, j, logger)

	if err != nil {
		logger.Error("job execution failed", "error", err)
		if updateErr := r.store.MarkFailed(ctx, j.ID(), redact.Error(err)); updateErr != nil {
			logger.Error("failed to mark job failed", "error", updateErr)
		}
		if r.metrics != nil {
			r.metrics.Inc(track.CounterJobsFailed)
		}
	} else {
		logger.Info("job completed successfully")
		if updateErr := r.store.MarkCompleted(ctx, j.ID()); updateErr != nil {
			logger.Error("failed to mark job completed", "error", updateErr)
		}
		if r.metrics != nil {
			r.metrics.Inc(track.CounterJobsCompleted)
		}
	}
}

// executeJob runs the job and converts panics into errors.
func (r *Runner) executeJob(ctx context.Context, j Job, logger *slog.Logger) (err error) {
	defer func() {
		if p := recover(); p != nil {
			logger.Error("job panicked", "panic", p)
			if r.metrics != nil {
				r.metrics.Inc(track.CounterWorkerPanics)
			}
			err = fmt.Errorf("job panicked: %v", p)
		}
	}()

	return j.Execute(ctx)
}

// claimSweeper periodically resets jobs whose processing claim outlived the
// TTL and returns them to the queue. The claim TTL exceeds the pipeline
// budget, so a claim that old means its worker died without resolving it.
func (r *Runner) claimSweeper() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			// Context cancelled, stop sweeper
			return

		case <-ticker.C:
			ctx := context.Background()

			swept, err := r.store.ResetExpiredClaims(ctx, r.config.ClaimTTL)
			if err != nil {
				r.logger.Error("failed to sweep expired claims", "error", err)
				continue
			}

			if len(swept) > 0 {
				r.logger.Info("reset expired job claims", "count", len(swept))

				for _, rec := range swept {
					if r.metrics != nil {
						r.metrics.Inc(track.CounterJobsSwept)
					}
					r.requeueRecord(rec)
				}
			}
		}
	}
}
