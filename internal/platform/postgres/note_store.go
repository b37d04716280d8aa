package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/echoscribe/echoscribe-api/internal/domain"
	"github.com/echoscribe/echoscribe-api/internal/platform/logger"
	"github.com/echoscribe/echoscribe-api/internal/store"
)

// PostgresNoteStore implements the store.NoteStore interface using a
// PostgreSQL database as the storage backend.
type PostgresNoteStore struct {
	db store.DBTX
}

// NewPostgresNoteStore creates a new PostgreSQL implementation of the
// NoteStore interface. The database connection or transaction is initialized
// and managed by the caller.
func NewPostgresNoteStore(db store.DBTX) *PostgresNoteStore {
	if db == nil {
		panic("db cannot be nil")
	}
	return &PostgresNoteStore{db: db}
}

// Ensure PostgresNoteStore implements store.NoteStore interface
var _ store.NoteStore = (*PostgresNoteStore)(nil)

// Create implements store.NoteStore.Create
// It saves a new note to the database, handling domain validation.
func (s *PostgresNoteStore) Create(ctx context.Context, note *domain.Note) error {
	log := logger.FromContext(ctx)

	if err := note.Validate(); err != nil {
		log.Warn("note validation failed during create",
			slog.String("error", err.Error()),
			slog.String("note_id", note.ID.String()))
		return err
	}

	embedding, err := encodeEmbedding(note.Embedding)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO notes (id, audio_ref, status, transcript, summary, embedding,
			provider_used, failure_reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = s.db.ExecContext(
		ctx,
		query,
		note.ID,
		note.AudioRef,
		note.Status,
		note.Transcript,
		note.Summary,
		embedding,
		note.ProviderUsed,
		note.FailureReason,
		note.CreatedAt,
		note.UpdatedAt,
	)
	if err != nil {
		log.Error("failed to create note",
			slog.String("error", err.Error()),
			slog.String("note_id", note.ID.String()))
		return MapError(err)
	}

	log.Info("note created successfully",
		slog.String("note_id", note.ID.String()),
		slog.String("status", string(note.Status)))
	return nil
}

// GetByID implements store.NoteStore.GetByID
// Returns store.ErrNoteNotFound if the note does not exist.
func (s *PostgresNoteStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Note, error) {
	log := logger.FromContext(ctx)

	query := `
		SELECT id, audio_ref, status, transcript, summary, embedding,
			provider_used, failure_reason, created_at, updated_at
		FROM notes
		WHERE id = $1
	`

	note, err := scanNote(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("note not found", slog.String("note_id", id.String()))
			return nil, store.ErrNoteNotFound
		}
		log.Error("failed to get note by ID",
			slog.String("error", err.Error()),
			slog.String("note_id", id.String()))
		return nil, err
	}

	return note, nil
}

// Update implements store.NoteStore.Update
// It saves every mutable field of the note: status, transcript, summary,
// embedding, provider and failure reason.
// Returns store.ErrNoteNotFound if the note does not exist.
func (s *PostgresNoteStore) Update(ctx context.Context, note *domain.Note) error {
	log := logger.FromContext(ctx)

	if err := note.Validate(); err != nil {
		log.Warn("note validation failed during update",
			slog.String("error", err.Error()),
			slog.String("note_id", note.ID.String()))
		return err
	}

	embedding, err := encodeEmbedding(note.Embedding)
	if err != nil {
		return err
	}

	note.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE notes
		SET status = $1, transcript = $2, summary = $3, embedding = $4,
			provider_used = $5, failure_reason = $6, updated_at = $7
		WHERE id = $8
	`
	result, err := s.db.ExecContext(
		ctx,
		query,
		note.Status,
		note.Transcript,
		note.Summary,
		embedding,
		note.ProviderUsed,
		note.FailureReason,
		note.UpdatedAt,
		note.ID,
	)
	if err != nil {
		log.Error("failed to update note",
			slog.String("error", err.Error()),
			slog.String("note_id", note.ID.String()))
		return MapError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		log.Error("failed to get rows affected",
			slog.String("error", err.Error()),
			slog.String("note_id", note.ID.String()))
		return err
	}
	if rowsAffected == 0 {
		log.Debug("note not found for update", slog.String("note_id", note.ID.String()))
		return store.ErrNoteNotFound
	}

	log.Debug("note updated successfully",
		slog.String("note_id", note.ID.String()),
		slog.String("status", string(note.Status)))
	return nil
}

// UpdateStatus implements store.NoteStore.UpdateStatus
// The status value is checked against the domain rules before the row is
// touched; store.ErrNoteNotFound is returned when the note does not exist.
func (s *PostgresNoteStore) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.NoteStatus) error {
	log := logger.FromContext(ctx)

	// A temp note validates the status value without touching the stored row.
	tempNote := &domain.Note{
		ID:        id,
		AudioRef:  "status-validation",
		Status:    status,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if err := tempNote.Validate(); err != nil {
		log.Warn("note validation failed during status update",
			slog.String("error", err.Error()),
			slog.String("note_id", id.String()),
			slog.String("status", string(status)))
		return err
	}

	query := `
		UPDATE notes
		SET status = $1, updated_at = $2
		WHERE id = $3
	`
	result, err := s.db.ExecContext(ctx, query, status, time.Now().UTC(), id)
	if err != nil {
		log.Error("failed to update note status",
			slog.String("error", err.Error()),
			slog.String("note_id", id.String()),
			slog.String("status", string(status)))
		return MapError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		log.Error("failed to get rows affected",
			slog.String("error", err.Error()),
			slog.String("note_id", id.String()))
		return err
	}
	if rowsAffected == 0 {
		log.Debug("note not found for status update", slog.String("note_id", id.String()))
		return store.ErrNoteNotFound
	}

	log.Info("note status updated successfully",
		slog.String("note_id", id.String()),
		slog.String("status", string(status)))
	return nil
}

// WithTx implements store.NoteStore.WithTx
func (s *PostgresNoteStore) WithTx(tx *sql.Tx) store.NoteStore {
	return &PostgresNoteStore{db: tx}
}

// scanNote reads one note row.
func scanNote(row rowScanner) (*domain.Note, error) {
	var note domain.Note
	var status string
	var transcript, summary, providerUsed, failureReason sql.NullString
	var embedding []byte

	err := row.Scan(
		&note.ID,
		&note.AudioRef,
		&status,
		&transcript,
		&summary,
		&embedding,
		&providerUsed,
		&failureReason,
		&note.CreatedAt,
		&note.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	note.Status = domain.NoteStatus(status)
	note.Transcript = nullableString(transcript)
	note.Summary = nullableString(summary)
	note.ProviderUsed = nullableString(providerUsed)
	note.FailureReason = nullableString(failureReason)

	note.Embedding, err = decodeEmbedding(embedding)
	if err != nil {
		return nil, err
	}
	return &note, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func nullableString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

// encodeEmbedding serializes a vector for the JSONB embedding column. An
// empty vector stores as NULL.
func encodeEmbedding(vector []float32) (any, error) {
	if len(vector) == 0 {
		return nil, nil
	}
	encoded, err := json.Marshal(vector)
	if err != nil {
		return nil, fmt.Errorf("failed to encode embedding: %w", err)
	}
	return encoded, nil
}

func decodeEmbedding(raw []byte) ([]float32, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var vector []float32
	if err := json.Unmarshal(raw, &vector); err != nil {
		return nil, fmt.Errorf("failed to decode embedding: %w", err)
	}
	return vector, nil
}
