package store

import (
	"context"
	"database/sql"

	"github.com/echoscribe/echoscribe-api/internal/domain"
	"github.com/google/uuid"
)

// NoteStore defines the interface for note data persistence.
// Version: 1.0
type NoteStore interface {
	// Create saves a new note to the store. The note is validated first and
	// domain validation errors are returned as-is.
	Create(ctx context.Context, note *domain.Note) error

	// GetByID retrieves a note by its unique ID.
	// Returns ErrNoteNotFound if the note does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Note, error)

	// Update saves changes to an existing note, including transcript, summary,
	// embedding, provider and failure fields.
	// Returns ErrNoteNotFound if the note does not exist.
	Update(ctx context.Context, note *domain.Note) error

	// UpdateStatus updates only the status of an existing note. The status
	// value is validated first.
	// Returns ErrNoteNotFound if the note does not exist.
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.NoteStatus) error

	// WithTx returns a NoteStore whose operations run on tx, so several store
	// calls can commit or roll back together. Transaction lifecycle belongs to
	// the caller, normally a service using RunInTransaction.
	WithTx(tx *sql.Tx) NoteStore
}

// TaskStore defines the interface for extracted note task persistence.
// Version: 1.0
type TaskStore interface {
	// CreateBatch saves all tasks in one statement set. Callers that need the
	// write to be atomic with a note update should run it inside a transaction
	// via WithTx.
	CreateBatch(ctx context.Context, tasks []*domain.NoteTask) error

	// DeleteByNoteID removes every task belonging to a note. Used before a
	// re-run of extraction so tasks are never duplicated.
	DeleteByNoteID(ctx context.Context, noteID uuid.UUID) error

	// ListByNoteID retrieves all tasks for a note ordered by position.
	ListByNoteID(ctx context.Context, noteID uuid.UUID) ([]*domain.NoteTask, error)

	// WithTx returns a TaskStore whose operations run on tx.
	WithTx(tx *sql.Tx) TaskStore
}
