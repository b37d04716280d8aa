package postgres

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/google/uuid"

	"github.com/echoscribe/echoscribe-api/internal/domain"
	"github.com/echoscribe/echoscribe-api/internal/platform/logger"
	"github.com/echoscribe/echoscribe-api/internal/store"
)

const attemptColumns = `id, job_id, note_id, provider, stage, outcome,
	error_kind, confidence, started_at, ended_at`

// PostgresAttemptStore implements the store.AttemptStore interface using a
// PostgreSQL database as the storage backend. Attempt rows are append-only.
type PostgresAttemptStore struct {
	db store.DBTX
}

// NewPostgresAttemptStore creates a new PostgreSQL implementation of the
// AttemptStore interface.
func NewPostgresAttemptStore(db store.DBTX) *PostgresAttemptStore {
	if db == nil {
		panic("db cannot be nil")
	}
	return &PostgresAttemptStore{db: db}
}

// Ensure PostgresAttemptStore implements store.AttemptStore interface
var _ store.AttemptStore = (*PostgresAttemptStore)(nil)

// Record implements store.AttemptStore.Record
func (s *PostgresAttemptStore) Record(ctx context.Context, attempt *domain.ProviderAttempt) error {
	log := logger.FromContext(ctx)

	if err := attempt.Validate(); err != nil {
		log.Warn("attempt validation failed during record",
			slog.String("error", err.Error()),
			slog.String("attempt_id", attempt.ID.String()))
		return err
	}

	query := `
		INSERT INTO provider_attempts (id, job_id, note_id, provider, stage, outcome,
			error_kind, confidence, started_at, ended_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := s.db.ExecContext(
		ctx,
		query,
		attempt.ID,
		attempt.JobID,
		attempt.NoteID,
		attempt.Provider,
		attempt.Stage,
		attempt.Outcome,
		attempt.ErrorKind,
		attempt.Confidence,
		attempt.StartedAt,
		attempt.EndedAt,
	)
	if err != nil {
		log.Error("failed to record provider attempt",
			slog.String("error", err.Error()),
			slog.String("job_id", attempt.JobID.String()),
			slog.String("provider", attempt.Provider))
		return MapError(err)
	}

	log.Debug("provider attempt recorded",
		slog.String("job_id", attempt.JobID.String()),
		slog.String("provider", attempt.Provider),
		slog.String("stage", string(attempt.Stage)),
		slog.String("outcome", string(attempt.Outcome)))
	return nil
}

// ListByJobID implements store.AttemptStore.ListByJobID
func (s *PostgresAttemptStore) ListByJobID(ctx context.Context, jobID uuid.UUID) ([]*domain.ProviderAttempt, error) {
	query := `
		SELECT ` + attemptColumns + `
		FROM provider_attempts
		WHERE job_id = $1
		ORDER BY started_at ASC
	`
	return s.listAttempts(ctx, query, jobID)
}

// ListByNoteID implements store.AttemptStore.ListByNoteID
func (s *PostgresAttemptStore) ListByNoteID(ctx context.Context, noteID uuid.UUID) ([]*domain.ProviderAttempt, error) {
	query := `
		SELECT ` + attemptColumns + `
		FROM provider_attempts
		WHERE note_id = $1
		ORDER BY started_at ASC
	`
	return s.listAttempts(ctx, query, noteID)
}

func (s *PostgresAttemptStore) listAttempts(ctx context.Context, query string, id uuid.UUID) ([]*domain.ProviderAttempt, error) {
	log := logger.FromContext(ctx)

	rows, err := s.db.QueryContext(ctx, query, id)
	if err != nil {
		log.Error("failed to query provider attempts",
			slog.String("error", err.Error()),
			slog.String("id", id.String()))
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	attempts := []*domain.ProviderAttempt{}
	for rows.Next() {
		attempt, err := scanAttempt(rows)
		if err != nil {
			log.Error("failed to scan provider attempt", slog.String("error", err.Error()))
			return nil, err
		}
		attempts = append(attempts, attempt)
	}
	if err := rows.Err(); err != nil {
		log.Error("error iterating provider attempts", slog.String("error", err.Error()))
		return nil, err
	}

	return attempts, nil
}

func scanAttempt(row rowScanner) (*domain.ProviderAttempt, error) {
	var attempt domain.ProviderAttempt
	var stage string
	var outcome string
	var errorKind sql.NullString
	var confidence sql.NullFloat64

	err := row.Scan(
		&attempt.ID,
		&attempt.JobID,
		&attempt.NoteID,
		&attempt.Provider,
		&stage,
		&outcome,
		&errorKind,
		&confidence,
		&attempt.StartedAt,
		&attempt.EndedAt,
	)
	if err != nil {
		return nil, err
	}

	attempt.Stage = domain.PipelineStage(stage)
	attempt.Outcome = domain.AttemptOutcome(outcome)
	attempt.ErrorKind = nullableString(errorKind)
	if confidence.Valid {
		v := confidence.Float64
		attempt.Confidence = &v
	}
	return &attempt, nil
}
