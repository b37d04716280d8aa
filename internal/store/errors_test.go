package store

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsNotFoundError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "nil",
			err:  nil,
			want: false,
		},
		{
			name: "unrelated error",
			err:  errors.New("connection reset"),
			want: false,
		},
		{
			name: "wrapped unrelated error",
			err:  fmt.Errorf("loading note: %w", errors.New("connection reset")),
			want: false,
		},
		{
			name: "bare ErrNotFound",
			err:  ErrNotFound,
			want: true,
		},
		{
			name: "wrapped ErrNotFound",
			err:  fmt.Errorf("loading note: %w", ErrNotFound),
			want: true,
		},
		{
			name: "bare ErrNoteNotFound",
			err:  ErrNoteNotFound,
			want: true,
		},
		{
			name: "double-wrapped ErrNoteNotFound",
			err:  fmt.Errorf("status lookup: %w", fmt.Errorf("loading note: %w", ErrNoteNotFound)),
			want: true,
		},
		{
			name: "bare ErrJobNotFound",
			err:  ErrJobNotFound,
			want: true,
		},
		{
			name: "duplicate error is not a not-found error",
			err:  ErrActiveJobExists,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsNotFoundError(tt.err); got != tt.want {
				t.Errorf("IsNotFoundError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestIsDuplicateError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "nil",
			err:  nil,
			want: false,
		},
		{
			name: "unrelated error",
			err:  errors.New("connection reset"),
			want: false,
		},
		{
			name: "bare ErrDuplicate",
			err:  ErrDuplicate,
			want: true,
		},
		{
			name: "wrapped ErrDuplicate",
			err:  fmt.Errorf("inserting note: %w", ErrDuplicate),
			want: true,
		},
		{
			name: "bare ErrActiveJobExists",
			err:  ErrActiveJobExists,
			want: true,
		},
		{
			name: "wrapped ErrActiveJobExists",
			err:  fmt.Errorf("admitting note: %w", ErrActiveJobExists),
			want: true,
		},
		{
			name: "claim conflict is not a duplicate",
			err:  ErrClaimConflict,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsDuplicateError(tt.err); got != tt.want {
				t.Errorf("IsDuplicateError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestStoreError(t *testing.T) {
	t.Run("with wrapped error", func(t *testing.T) {
		cause := errors.New("connection refused")
		serr := NewStoreError("note", "create", "database error", cause)

		want := "create note failed: database error: connection refused"
		if got := serr.Error(); got != want {
			t.Errorf("Error() = %q, want %q", got, want)
		}
		if serr.Unwrap() != cause {
			t.Error("Unwrap() did not return the cause")
		}
		if !errors.Is(serr, cause) {
			t.Error("errors.Is does not see through StoreError")
		}
	})

	t.Run("without wrapped error", func(t *testing.T) {
		serr := NewStoreError("job", "claim", "already claimed", nil)

		want := "claim job failed: already claimed"
		if got := serr.Error(); got != want {
			t.Errorf("Error() = %q, want %q", got, want)
		}
		if serr.Unwrap() != nil {
			t.Error("Unwrap() should be nil when no cause was wrapped")
		}
	})

	t.Run("sentinel survives wrapping", func(t *testing.T) {
		serr := NewStoreError("note", "update", "no matching row", ErrNoteNotFound)

		if !IsNotFoundError(serr) {
			t.Error("StoreError wrapping ErrNoteNotFound should register as not-found")
		}
	})
}
