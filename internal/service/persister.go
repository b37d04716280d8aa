package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/echoscribe/echoscribe-api/internal/domain"
	"github.com/echoscribe/echoscribe-api/internal/pipeline"
	"github.com/echoscribe/echoscribe-api/internal/store"
)

// NotePersister implements the persistence the pipeline coordinator needs
// between stages. Single-row stage writes go straight to the note store; the
// extraction write replaces the note's tasks and saves the summary in one
// transaction so a crash can never leave a summary without its tasks.
//
// Every save writes the full derived state of the note, which is what makes
// stage re-runs after a claim sweep idempotent.
type NotePersister struct {
	db    *sql.DB
	notes store.NoteStore
	tasks store.TaskStore

	// runTx is swappable so unit tests can run transactional paths without a
	// live database
	runTx func(ctx context.Context, db *sql.DB, fn store.TxFn) error
}

// NewNotePersister creates the store-backed persister used by the pipeline.
func NewNotePersister(db *sql.DB, notes store.NoteStore, tasks store.TaskStore) (*NotePersister, error) {
	if db == nil {
		return nil, errors.New("note persister requires a database handle")
	}
	if notes == nil {
		return nil, errors.New("note persister requires a note store")
	}
	if tasks == nil {
		return nil, errors.New("note persister requires a task store")
	}

	return &NotePersister{
		db:    db,
		notes: notes,
		tasks: tasks,
		runTx: store.RunInTransaction,
	}, nil
}

// Ensure NotePersister satisfies the coordinator's persistence interface
var _ pipeline.NotePersister = (*NotePersister)(nil)

// GetNote loads the note.
func (p *NotePersister) GetNote(ctx context.Context, noteID uuid.UUID) (*domain.Note, error) {
	return p.notes.GetByID(ctx, noteID)
}

// SaveStatus persists the note's current status and failure fields.
func (p *NotePersister) SaveStatus(ctx context.Context, note *domain.Note) error {
	return p.notes.Update(ctx, note)
}

// SaveTranscript persists the transcript, the winning provider and the
// advance to the extraction stage in one write.
func (p *NotePersister) SaveTranscript(ctx context.Context, note *domain.Note) error {
	return p.notes.Update(ctx, note)
}

// SaveExtraction persists the summary and replaces the note's tasks in one
// transaction. The delete-then-insert keeps re-runs from duplicating tasks.
func (p *NotePersister) SaveExtraction(ctx context.Context, note *domain.Note, tasks []*domain.NoteTask) error {
	return p.runTx(ctx, p.db, func(ctx context.Context, tx *sql.Tx) error {
		if err := p.notes.WithTx(tx).Update(ctx, note); err != nil {
			return fmt.Errorf("failed to save extraction summary: %w", err)
		}

		txTasks := p.tasks.WithTx(tx)
		if err := txTasks.DeleteByNoteID(ctx, note.ID); err != nil {
			return fmt.Errorf("failed to clear previous tasks: %w", err)
		}
		if err := txTasks.CreateBatch(ctx, tasks); err != nil {
			return fmt.Errorf("failed to save extracted tasks: %w", err)
		}
		return nil
	})
}

// SaveCompletion persists the embedding, which may be empty, and the terminal
// done status.
func (p *NotePersister) SaveCompletion(ctx context.Context, note *domain.Note) error {
	return p.notes.Update(ctx, note)
}
