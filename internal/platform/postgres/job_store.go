package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/echoscribe/echoscribe-api/internal/domain"
	"github.com/echoscribe/echoscribe-api/internal/platform/logger"
	"github.com/echoscribe/echoscribe-api/internal/store"
)

// jobColumns is the select list shared by every job query.
const jobColumns = `id, note_id, audio_ref, priority, status, attempt_count,
	enqueued_at, claimed_at, last_error, created_at, updated_at`

// PostgresJobStore implements the store.JobStore interface using a
// PostgreSQL database as the storage backend.
type PostgresJobStore struct {
	db store.DBTX
}

// NewPostgresJobStore creates a new PostgreSQL implementation of the
// JobStore interface.
func NewPostgresJobStore(db store.DBTX) *PostgresJobStore {
	if db == nil {
		panic("db cannot be nil")
	}
	return &PostgresJobStore{db: db}
}

// Ensure PostgresJobStore implements store.JobStore interface
var _ store.JobStore = (*PostgresJobStore)(nil)

// CreateJob implements store.JobStore.CreateJob
// A partial unique index on note_id over active jobs enforces the one active
// job per note rule; its violation maps to store.ErrActiveJobExists.
func (s *PostgresJobStore) CreateJob(ctx context.Context, job *domain.Job) error {
	log := logger.FromContext(ctx)

	if err := job.Validate(); err != nil {
		log.Warn("job validation failed during create",
			slog.String("error", err.Error()),
			slog.String("job_id", job.ID.String()))
		return err
	}

	query := `
		INSERT INTO jobs (id, note_id, audio_ref, priority, status, attempt_count,
			enqueued_at, claimed_at, last_error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := s.db.ExecContext(
		ctx,
		query,
		job.ID,
		job.NoteID,
		job.AudioRef,
		int(job.Priority),
		job.Status,
		job.AttemptCount,
		job.EnqueuedAt,
		job.ClaimedAt,
		job.LastError,
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			log.Debug("active job already exists for note",
				slog.String("note_id", job.NoteID.String()))
			return fmt.Errorf("%w: note %s", store.ErrActiveJobExists, job.NoteID)
		}
		if IsForeignKeyViolation(err) {
			log.Warn("foreign key violation during job creation",
				slog.String("error", err.Error()),
				slog.String("note_id", job.NoteID.String()))
			return fmt.Errorf("%w: note with ID %s not found", store.ErrInvalidEntity, job.NoteID)
		}
		log.Error("failed to create job",
			slog.String("error", err.Error()),
			slog.String("job_id", job.ID.String()))
		return MapError(err)
	}

	log.Info("job created successfully",
		slog.String("job_id", job.ID.String()),
		slog.String("note_id", job.NoteID.String()),
		slog.Int("priority", int(job.Priority)))
	return nil
}

// GetByID implements store.JobStore.GetByID
// Returns store.ErrJobNotFound if the job does not exist.
func (s *PostgresJobStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	log := logger.FromContext(ctx)

	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1`

	job, err := scanJob(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("job not found", slog.String("job_id", id.String()))
			return nil, store.ErrJobNotFound
		}
		log.Error("failed to get job by ID",
			slog.String("error", err.Error()),
			slog.String("job_id", id.String()))
		return nil, err
	}
	return job, nil
}

// GetActiveByNoteID implements store.JobStore.GetActiveByNoteID
// Returns store.ErrJobNotFound when the note has no pending or processing job.
func (s *PostgresJobStore) GetActiveByNoteID(ctx context.Context, noteID uuid.UUID) (*domain.Job, error) {
	log := logger.FromContext(ctx)

	query := `
		SELECT ` + jobColumns + `
		FROM jobs
		WHERE note_id = $1 AND status IN ('pending', 'processing')
		LIMIT 1
	`

	job, err := scanJob(s.db.QueryRowContext(ctx, query, noteID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrJobNotFound
		}
		log.Error("failed to get active job for note",
			slog.String("error", err.Error()),
			slog.String("note_id", noteID.String()))
		return nil, err
	}
	return job, nil
}

// ClaimJob implements store.JobStore.ClaimJob
// The status guard in the WHERE clause makes the claim atomic: of two
// workers racing for the same job, exactly one sees a pending row.
func (s *PostgresJobStore) ClaimJob(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	log := logger.FromContext(ctx)

	now := time.Now().UTC()
	query := `
		UPDATE jobs
		SET status = 'processing', claimed_at = $2, attempt_count = attempt_count + 1, updated_at = $2
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + jobColumns

	job, err := scanJob(s.db.QueryRowContext(ctx, query, id, now))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("job claim conflict", slog.String("job_id", id.String()))
			return nil, store.ErrClaimConflict
		}
		log.Error("failed to claim job",
			slog.String("error", err.Error()),
			slog.String("job_id", id.String()))
		return nil, err
	}

	log.Debug("job claimed",
		slog.String("job_id", job.ID.String()),
		slog.Int("attempt_count", job.AttemptCount))
	return job, nil
}

// MarkCompleted implements store.JobStore.MarkCompleted
// Returns store.ErrJobNotFound if the job does not exist.
func (s *PostgresJobStore) MarkCompleted(ctx context.Context, id uuid.UUID) error {
	log := logger.FromContext(ctx)

	query := `
		UPDATE jobs
		SET status = 'completed', claimed_at = NULL, updated_at = $2
		WHERE id = $1
	`
	result, err := s.db.ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		log.Error("failed to mark job completed",
			slog.String("error", err.Error()),
			slog.String("job_id", id.String()))
		return MapError(err)
	}
	if err := CheckRowsAffected(result, "job"); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: %s", store.ErrJobNotFound, id)
		}
		return err
	}

	log.Info("job completed", slog.String("job_id", id.String()))
	return nil
}

// MarkFailed implements store.JobStore.MarkFailed
// Returns store.ErrJobNotFound if the job does not exist.
func (s *PostgresJobStore) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	log := logger.FromContext(ctx)

	query := `
		UPDATE jobs
		SET status = 'failed', last_error = $2, claimed_at = NULL, updated_at = $3
		WHERE id = $1
	`
	result, err := s.db.ExecContext(ctx, query, id, reason, time.Now().UTC())
	if err != nil {
		log.Error("failed to mark job failed",
			slog.String("error", err.Error()),
			slog.String("job_id", id.String()))
		return MapError(err)
	}
	if err := CheckRowsAffected(result, "job"); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: %s", store.ErrJobNotFound, id)
		}
		return err
	}

	log.Warn("job failed",
		slog.String("job_id", id.String()),
		slog.String("reason", reason))
	return nil
}

// GetPendingJobs implements store.JobStore.GetPendingJobs
// Jobs come back in dispatch order: highest priority first, oldest first
// within a priority.
func (s *PostgresJobStore) GetPendingJobs(ctx context.Context) ([]*domain.Job, error) {
	log := logger.FromContext(ctx)

	query := `
		SELECT ` + jobColumns + `
		FROM jobs
		WHERE status = 'pending'
		ORDER BY priority DESC, enqueued_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		log.Error("failed to query pending jobs", slog.String("error", err.Error()))
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	jobs, err := collectJobs(rows)
	if err != nil {
		log.Error("failed to scan pending jobs", slog.String("error", err.Error()))
		return nil, err
	}

	log.Debug("loaded pending jobs", slog.Int("count", len(jobs)))
	return jobs, nil
}

// ResetExpiredClaims implements store.JobStore.ResetExpiredClaims
// The UPDATE re-evaluates its WHERE clause under the row lock, so two
// overlapping sweeps cannot both return the same job.
func (s *PostgresJobStore) ResetExpiredClaims(ctx context.Context, olderThan time.Duration) ([]*domain.Job, error) {
	log := logger.FromContext(ctx)

	cutoff := time.Now().UTC().Add(-olderThan)
	query := `
		UPDATE jobs
		SET status = 'pending', claimed_at = NULL, updated_at = $2
		WHERE status = 'processing' AND claimed_at IS NOT NULL AND claimed_at < $1
		RETURNING ` + jobColumns

	rows, err := s.db.QueryContext(ctx, query, cutoff, time.Now().UTC())
	if err != nil {
		log.Error("failed to reset expired claims", slog.String("error", err.Error()))
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	jobs, err := collectJobs(rows)
	if err != nil {
		log.Error("failed to scan reset jobs", slog.String("error", err.Error()))
		return nil, err
	}

	if len(jobs) > 0 {
		log.Warn("reset expired job claims",
			slog.Int("count", len(jobs)),
			slog.Duration("older_than", olderThan))
	}
	return jobs, nil
}

// WithTx implements store.JobStore.WithTx
func (s *PostgresJobStore) WithTx(tx *sql.Tx) store.JobStore {
	return &PostgresJobStore{db: tx}
}

// scanJob reads one job row.
func scanJob(row rowScanner) (*domain.Job, error) {
	var job domain.Job
	var priority int
	var status string
	var claimedAt sql.NullTime
	var lastError sql.NullString

	err := row.Scan(
		&job.ID,
		&job.NoteID,
		&job.AudioRef,
		&priority,
		&status,
		&job.AttemptCount,
		&job.EnqueuedAt,
		&claimedAt,
		&lastError,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	job.Priority = domain.JobPriority(priority)
	job.Status = domain.JobStatus(status)
	if claimedAt.Valid {
		t := claimedAt.Time
		job.ClaimedAt = &t
	}
	job.LastError = nullableString(lastError)
	return &job, nil
}

func collectJobs(rows *sql.Rows) ([]*domain.Job, error) {
	jobs := []*domain.Job{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return jobs, nil
}
