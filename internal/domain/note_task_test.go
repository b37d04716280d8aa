package domain

import (
	"testing"

	"github.com/google/uuid"
)

func TestNewNoteTask(t *testing.T) {
	t.Parallel() // Enable parallel execution
	// Test valid task creation
	noteID := uuid.New()
	description := "Send the revised estimate to the client"

	task, err := NewNoteTask(noteID, description, TaskPriorityHigh, 0)

	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if task.ID == uuid.Nil {
		t.Error("Expected non-nil UUID, got nil UUID")
	}

	if task.NoteID != noteID {
		t.Errorf("Expected note ID %s, got %s", noteID, task.NoteID)
	}

	if task.Description != description {
		t.Errorf("Expected description %s, got %s", description, task.Description)
	}

	if task.Priority != TaskPriorityHigh {
		t.Errorf("Expected priority %s, got %s", TaskPriorityHigh, task.Priority)
	}

	if task.Position != 0 {
		t.Errorf("Expected position 0, got %d", task.Position)
	}

	if task.CreatedAt.IsZero() {
		t.Error("Expected non-zero CreatedAt time")
	}

	// Test invalid noteID
	_, err = NewNoteTask(uuid.Nil, description, TaskPriorityHigh, 0)
	if err != ErrEmptyTaskNoteID {
		t.Errorf("Expected error %v, got %v", ErrEmptyTaskNoteID, err)
	}

	// Test invalid description
	_, err = NewNoteTask(noteID, "", TaskPriorityHigh, 0)
	if err != ErrEmptyTaskDescription {
		t.Errorf("Expected error %v, got %v", ErrEmptyTaskDescription, err)
	}

	// Test invalid priority
	_, err = NewNoteTask(noteID, description, "urgent", 0)
	if err != ErrInvalidTaskPriority {
		t.Errorf("Expected error %v, got %v", ErrInvalidTaskPriority, err)
	}
}

func TestNoteTaskValidate(t *testing.T) {
	t.Parallel() // Enable parallel execution
	validTask := NoteTask{
		ID:          uuid.New(),
		NoteID:      uuid.New(),
		Description: "Book the conference room",
		Priority:    TaskPriorityMedium,
		Position:    2,
	}

	// Test valid task
	if err := validTask.Validate(); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}

	// Test invalid ID
	invalidTask := validTask
	invalidTask.ID = uuid.Nil
	if err := invalidTask.Validate(); err != ErrEmptyTaskID {
		t.Errorf("Expected error %v, got %v", ErrEmptyTaskID, err)
	}

	// Test invalid NoteID
	invalidTask = validTask
	invalidTask.NoteID = uuid.Nil
	if err := invalidTask.Validate(); err != ErrEmptyTaskNoteID {
		t.Errorf("Expected error %v, got %v", ErrEmptyTaskNoteID, err)
	}

	// Test invalid Description
	invalidTask = validTask
	invalidTask.Description = ""
	if err := invalidTask.Validate(); err != ErrEmptyTaskDescription {
		t.Errorf("Expected error %v, got %v", ErrEmptyTaskDescription, err)
	}

	// Test invalid Priority
	invalidTask = validTask
	invalidTask.Priority = "critical"
	if err := invalidTask.Validate(); err != ErrInvalidTaskPriority {
		t.Errorf("Expected error %v, got %v", ErrInvalidTaskPriority, err)
	}
}
