package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/echoscribe/echoscribe-api/internal/domain"
	"github.com/echoscribe/echoscribe-api/internal/store"
)

func newTestPersister(t *testing.T, notes *mockNoteStore, tasks *mockTaskStore) *NotePersister {
	t.Helper()
	p, err := NewNotePersister(&sql.DB{}, notes, tasks)
	require.NoError(t, err)
	p.runTx = noTx
	return p
}

func TestNewNotePersister(t *testing.T) {
	tests := []struct {
		name     string
		db       *sql.DB
		notes    store.NoteStore
		tasks    store.TaskStore
		errorMsg string
	}{
		{
			name:  "valid_dependencies",
			db:    &sql.DB{},
			notes: newMockNoteStore(),
			tasks: newMockTaskStore(),
		},
		{
			name:     "nil_db",
			notes:    newMockNoteStore(),
			tasks:    newMockTaskStore(),
			errorMsg: "database handle",
		},
		{
			name:     "nil_note_store",
			db:       &sql.DB{},
			tasks:    newMockTaskStore(),
			errorMsg: "note store",
		},
		{
			name:     "nil_task_store",
			db:       &sql.DB{},
			notes:    newMockNoteStore(),
			errorMsg: "task store",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewNotePersister(tt.db, tt.notes, tt.tasks)

			if tt.errorMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorMsg)
				assert.Nil(t, p)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, p)
		})
	}
}

func TestNotePersister_GetNote(t *testing.T) {
	note, err := domain.NewNote("file:///audio/standup.m4a")
	require.NoError(t, err)
	p := newTestPersister(t, newMockNoteStore(note), newMockTaskStore())

	t.Run("found", func(t *testing.T) {
		got, err := p.GetNote(context.Background(), note.ID)
		require.NoError(t, err)
		assert.Equal(t, note.ID, got.ID)
	})

	t.Run("store_errors_pass_through", func(t *testing.T) {
		_, err := p.GetNote(context.Background(), uuid.New())
		assert.ErrorIs(t, err, store.ErrNoteNotFound)
	})
}

func TestNotePersister_SingleRowSaves(t *testing.T) {
	note, err := domain.NewNote("file:///audio/standup.m4a")
	require.NoError(t, err)
	notes := newMockNoteStore(note)
	p := newTestPersister(t, notes, newMockTaskStore())

	t.Run("save_status", func(t *testing.T) {
		loaded, _ := notes.Stored(note.ID)
		require.NoError(t, loaded.TransitionTo(domain.NoteStatusTranscribing))

		require.NoError(t, p.SaveStatus(context.Background(), loaded))

		stored, ok := notes.Stored(note.ID)
		require.True(t, ok)
		assert.Equal(t, domain.NoteStatusTranscribing, stored.Status)
	})

	t.Run("save_transcript", func(t *testing.T) {
		loaded, _ := notes.Stored(note.ID)
		loaded.SetTranscript("We discussed the launch.", "openai")

		require.NoError(t, p.SaveTranscript(context.Background(), loaded))

		stored, _ := notes.Stored(note.ID)
		require.NotNil(t, stored.Transcript)
		assert.Equal(t, "We discussed the launch.", *stored.Transcript)
		require.NotNil(t, stored.ProviderUsed)
		assert.Equal(t, "openai", *stored.ProviderUsed)
	})

	t.Run("update_failure_surfaces", func(t *testing.T) {
		broken := newMockNoteStore(note)
		broken.UpdateFn = func(ctx context.Context, n *domain.Note) error {
			return errors.New("connection reset")
		}
		p := newTestPersister(t, broken, newMockTaskStore())

		loaded, _ := broken.Stored(note.ID)
		assert.Error(t, p.SaveStatus(context.Background(), loaded))
	})
}

func TestNotePersister_SaveExtraction(t *testing.T) {
	newExtractedNote := func(t *testing.T) (*domain.Note, []*domain.NoteTask) {
		t.Helper()
		note, err := domain.NewNote("file:///audio/standup.m4a")
		require.NoError(t, err)
		note.SetSummary("Launch readiness review.")

		task, err := domain.NewNoteTask(note.ID, "Confirm rollout window", domain.TaskPriorityHigh, 0)
		require.NoError(t, err)
		return note, []*domain.NoteTask{task}
	}

	t.Run("replaces_tasks_atomically", func(t *testing.T) {
		note, extracted := newExtractedNote(t)
		notes := newMockNoteStore(note)
		tasks := newMockTaskStore()

		stale, err := domain.NewNoteTask(note.ID, "Old task from a previous run", domain.TaskPriorityMedium, 0)
		require.NoError(t, err)
		require.NoError(t, tasks.CreateBatch(context.Background(), []*domain.NoteTask{stale}))

		p := newTestPersister(t, notes, tasks)
		require.NoError(t, p.SaveExtraction(context.Background(), note, extracted))

		stored, _ := notes.Stored(note.ID)
		require.NotNil(t, stored.Summary)
		assert.Equal(t, "Launch readiness review.", *stored.Summary)

		remaining, err := tasks.ListByNoteID(context.Background(), note.ID)
		require.NoError(t, err)
		require.Len(t, remaining, 1)
		assert.Equal(t, "Confirm rollout window", remaining[0].Description)

		assert.Equal(t, []string{"delete_by_note_id", "create_batch"}, tasks.Journal(),
			"stale tasks must be cleared before the new batch lands")
	})

	t.Run("summary_write_failure_stops_task_writes", func(t *testing.T) {
		note, extracted := newExtractedNote(t)
		notes := newMockNoteStore(note)
		notes.UpdateFn = func(ctx context.Context, n *domain.Note) error {
			return errors.New("connection reset")
		}
		tasks := newMockTaskStore()

		p := newTestPersister(t, notes, tasks)
		err := p.SaveExtraction(context.Background(), note, extracted)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to save extraction summary")
		assert.Empty(t, tasks.Journal(), "task writes must not run after a failed summary write")
	})

	t.Run("task_clear_failure_surfaces", func(t *testing.T) {
		note, extracted := newExtractedNote(t)
		tasks := newMockTaskStore()
		tasks.DeleteFn = func(ctx context.Context, noteID uuid.UUID) error {
			return errors.New("connection reset")
		}

		p := newTestPersister(t, newMockNoteStore(note), tasks)
		err := p.SaveExtraction(context.Background(), note, extracted)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to clear previous tasks")
	})

	t.Run("task_insert_failure_surfaces", func(t *testing.T) {
		note, extracted := newExtractedNote(t)
		tasks := newMockTaskStore()
		tasks.CreateBatchFn = func(ctx context.Context, batch []*domain.NoteTask) error {
			return errors.New("connection reset")
		}

		p := newTestPersister(t, newMockNoteStore(note), tasks)
		err := p.SaveExtraction(context.Background(), note, extracted)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to save extracted tasks")
	})
}

func TestNotePersister_SaveCompletion(t *testing.T) {
	note, err := domain.NewNote("file:///audio/standup.m4a")
	require.NoError(t, err)
	note.SetEmbedding([]float32{0.25, -0.5, 0.75})
	note.Status = domain.NoteStatusDone

	notes := newMockNoteStore()
	require.NoError(t, notes.Create(context.Background(), note))

	p := newTestPersister(t, notes, newMockTaskStore())
	require.NoError(t, p.SaveCompletion(context.Background(), note))

	stored, ok := notes.Stored(note.ID)
	require.True(t, ok)
	assert.Equal(t, domain.NoteStatusDone, stored.Status)
	assert.Equal(t, []float32{0.25, -0.5, 0.75}, stored.Embedding)
}
