package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// TaskPriority classifies how urgent an extracted task is.
type TaskPriority string

// Possible task priority values, as produced by the structured extractor.
const (
	TaskPriorityLow    TaskPriority = "low"
	TaskPriorityMedium TaskPriority = "medium"
	TaskPriorityHigh   TaskPriority = "high"
)

// NoteTask-specific validation errors
var (
	ErrEmptyTaskID          = errors.New("task ID cannot be empty")
	ErrEmptyTaskNoteID      = errors.New("task note ID cannot be empty")
	ErrEmptyTaskDescription = errors.New("task description cannot be empty")
	ErrInvalidTaskPriority  = errors.New("invalid task priority")
)

// NoteTask is an actionable item extracted from a note's transcript. Tasks are
// only ever created from a validated extraction result, atomically with the
// summary write, and never standalone by the pipeline.
type NoteTask struct {
	ID          uuid.UUID    `json:"id"`
	NoteID      uuid.UUID    `json:"note_id"`
	Description string       `json:"description"`
	Priority    TaskPriority `json:"priority"`
	Deadline    *time.Time   `json:"deadline,omitempty"`
	Assignees   []string     `json:"assignees,omitempty"`
	Position    int          `json:"position"`
	CreatedAt   time.Time    `json:"created_at"`
}

// NewNoteTask creates a task extracted from the given note. Position preserves
// the order the extractor produced the tasks in.
func NewNoteTask(noteID uuid.UUID, description string, priority TaskPriority, position int) (*NoteTask, error) {
	task := &NoteTask{
		ID:          uuid.New(),
		NoteID:      noteID,
		Description: description,
		Priority:    priority,
		Position:    position,
		CreatedAt:   time.Now().UTC(),
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}

	return task, nil
}

// Validate checks if the NoteTask has valid data.
func (t *NoteTask) Validate() error {
	if t.ID == uuid.Nil {
		return ErrEmptyTaskID
	}

	if t.NoteID == uuid.Nil {
		return ErrEmptyTaskNoteID
	}

	if t.Description == "" {
		return ErrEmptyTaskDescription
	}

	if !isValidTaskPriority(t.Priority) {
		return ErrInvalidTaskPriority
	}

	return nil
}

// isValidTaskPriority checks if the given priority is a valid TaskPriority.
func isValidTaskPriority(p TaskPriority) bool {
	switch p {
	case TaskPriorityLow, TaskPriorityMedium, TaskPriorityHigh:
		return true
	default:
		return false
	}
}
