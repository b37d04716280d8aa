package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/echoscribe/echoscribe-api/internal/domain"
	"github.com/echoscribe/echoscribe-api/internal/platform/logger"
	"github.com/echoscribe/echoscribe-api/internal/store"
)

// PostgresTaskStore implements the store.TaskStore interface using a
// PostgreSQL database as the storage backend.
type PostgresTaskStore struct {
	db store.DBTX
}

// NewPostgresTaskStore creates a new PostgreSQL implementation of the
// TaskStore interface.
func NewPostgresTaskStore(db store.DBTX) *PostgresTaskStore {
	if db == nil {
		panic("db cannot be nil")
	}
	return &PostgresTaskStore{db: db}
}

// Ensure PostgresTaskStore implements store.TaskStore interface
var _ store.TaskStore = (*PostgresTaskStore)(nil)

// CreateBatch implements store.TaskStore.CreateBatch
// Each task is validated before any row is written.
func (s *PostgresTaskStore) CreateBatch(ctx context.Context, tasks []*domain.NoteTask) error {
	log := logger.FromContext(ctx)

	if len(tasks) == 0 {
		return nil
	}

	for _, task := range tasks {
		if err := task.Validate(); err != nil {
			log.Warn("task validation failed during batch create",
				slog.String("error", err.Error()),
				slog.String("task_id", task.ID.String()))
			return err
		}
	}

	query := `
		INSERT INTO note_tasks (id, note_id, description, priority, deadline,
			assignees, position, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	for _, task := range tasks {
		assignees, err := encodeAssignees(task.Assignees)
		if err != nil {
			return err
		}

		_, err = s.db.ExecContext(
			ctx,
			query,
			task.ID,
			task.NoteID,
			task.Description,
			task.Priority,
			task.Deadline,
			assignees,
			task.Position,
			task.CreatedAt,
		)
		if err != nil {
			log.Error("failed to create task",
				slog.String("error", err.Error()),
				slog.String("task_id", task.ID.String()),
				slog.String("note_id", task.NoteID.String()))
			return MapError(err)
		}
	}

	log.Debug("tasks created successfully",
		slog.String("note_id", tasks[0].NoteID.String()),
		slog.Int("count", len(tasks)))
	return nil
}

// DeleteByNoteID implements store.TaskStore.DeleteByNoteID
// Deleting for a note with no tasks is a no-op, not an error.
func (s *PostgresTaskStore) DeleteByNoteID(ctx context.Context, noteID uuid.UUID) error {
	log := logger.FromContext(ctx)

	query := `DELETE FROM note_tasks WHERE note_id = $1`
	if _, err := s.db.ExecContext(ctx, query, noteID); err != nil {
		log.Error("failed to delete tasks for note",
			slog.String("error", err.Error()),
			slog.String("note_id", noteID.String()))
		return MapError(err)
	}
	return nil
}

// ListByNoteID implements store.TaskStore.ListByNoteID
// Returns an empty slice when the note has no tasks.
func (s *PostgresTaskStore) ListByNoteID(ctx context.Context, noteID uuid.UUID) ([]*domain.NoteTask, error) {
	log := logger.FromContext(ctx)

	query := `
		SELECT id, note_id, description, priority, deadline, assignees,
			position, created_at
		FROM note_tasks
		WHERE note_id = $1
		ORDER BY position ASC
	`
	rows, err := s.db.QueryContext(ctx, query, noteID)
	if err != nil {
		log.Error("failed to query tasks for note",
			slog.String("error", err.Error()),
			slog.String("note_id", noteID.String()))
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	tasks := []*domain.NoteTask{}
	for rows.Next() {
		var task domain.NoteTask
		var priority string
		var deadline sql.NullTime
		var assignees []byte

		err := rows.Scan(
			&task.ID,
			&task.NoteID,
			&task.Description,
			&priority,
			&deadline,
			&assignees,
			&task.Position,
			&task.CreatedAt,
		)
		if err != nil {
			log.Error("failed to scan task row",
				slog.String("error", err.Error()),
				slog.String("note_id", noteID.String()))
			return nil, err
		}

		task.Priority = domain.TaskPriority(priority)
		if deadline.Valid {
			t := deadline.Time
			task.Deadline = &t
		}
		task.Assignees, err = decodeAssignees(assignees)
		if err != nil {
			return nil, err
		}

		tasks = append(tasks, &task)
	}
	if err := rows.Err(); err != nil {
		log.Error("error after scanning task rows",
			slog.String("error", err.Error()),
			slog.String("note_id", noteID.String()))
		return nil, err
	}

	return tasks, nil
}

// WithTx implements store.TaskStore.WithTx
func (s *PostgresTaskStore) WithTx(tx *sql.Tx) store.TaskStore {
	return &PostgresTaskStore{db: tx}
}

// encodeAssignees serializes the assignee list for the JSONB column. An
// empty list stores as an empty JSON array rather than NULL.
func encodeAssignees(assignees []string) ([]byte, error) {
	if assignees == nil {
		assignees = []string{}
	}
	encoded, err := json.Marshal(assignees)
	if err != nil {
		return nil, fmt.Errorf("failed to encode assignees: %w", err)
	}
	return encoded, nil
}

func decodeAssignees(raw []byte) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var assignees []string
	if err := json.Unmarshal(raw, &assignees); err != nil {
		return nil, fmt.Errorf("failed to decode assignees: %w", err)
	}
	if len(assignees) == 0 {
		return nil, nil
	}
	return assignees, nil
}
