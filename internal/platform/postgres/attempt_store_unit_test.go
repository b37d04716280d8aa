package postgres

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/echoscribe/echoscribe-api/internal/domain"
)

// fakeAttemptRow feeds scanAttempt a fixed set of column values.
type fakeAttemptRow struct {
	values []any
	err    error
}

func (r fakeAttemptRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		switch out := d.(type) {
		case *uuid.UUID:
			*out = r.values[i].(uuid.UUID)
		case *string:
			*out = r.values[i].(string)
		case *sql.NullString:
			*out = r.values[i].(sql.NullString)
		case *sql.NullFloat64:
			*out = r.values[i].(sql.NullFloat64)
		case *time.Time:
			*out = r.values[i].(time.Time)
		}
	}
	return nil
}

func TestNewPostgresAttemptStore(t *testing.T) {
	t.Run("nil_db_panics", func(t *testing.T) {
		assert.Panics(t, func() {
			NewPostgresAttemptStore(nil)
		})
	})

	t.Run("valid_db", func(t *testing.T) {
		s := NewPostgresAttemptStore(&mockDBTX{})
		assert.NotNil(t, s)
		assert.NotNil(t, s.db)
	})
}

func TestScanAttempt(t *testing.T) {
	id := uuid.New()
	jobID := uuid.New()
	noteID := uuid.New()
	started := time.Now().UTC().Add(-time.Second)
	ended := time.Now().UTC()

	t.Run("failed_attempt_row", func(t *testing.T) {
		row := fakeAttemptRow{values: []any{
			id, jobID, noteID, "assemblyai", "transcription", "error",
			sql.NullString{String: "transient", Valid: true},
			sql.NullFloat64{},
			started, ended,
		}}

		attempt, err := scanAttempt(row)
		require.NoError(t, err)

		assert.Equal(t, id, attempt.ID)
		assert.Equal(t, jobID, attempt.JobID)
		assert.Equal(t, noteID, attempt.NoteID)
		assert.Equal(t, "assemblyai", attempt.Provider)
		assert.Equal(t, domain.StageTranscription, attempt.Stage)
		assert.Equal(t, domain.AttemptOutcomeError, attempt.Outcome)
		require.NotNil(t, attempt.ErrorKind)
		assert.Equal(t, "transient", *attempt.ErrorKind)
		assert.Nil(t, attempt.Confidence)
		assert.Equal(t, started, attempt.StartedAt)
		assert.Equal(t, ended, attempt.EndedAt)
	})

	t.Run("success_row_with_confidence", func(t *testing.T) {
		row := fakeAttemptRow{values: []any{
			id, jobID, noteID, "openai", "transcription", "success",
			sql.NullString{},
			sql.NullFloat64{Float64: 0.92, Valid: true},
			started, ended,
		}}

		attempt, err := scanAttempt(row)
		require.NoError(t, err)

		assert.Equal(t, domain.AttemptOutcomeSuccess, attempt.Outcome)
		assert.Nil(t, attempt.ErrorKind)
		require.NotNil(t, attempt.Confidence)
		assert.InDelta(t, 0.92, *attempt.Confidence, 1e-9)
	})

	t.Run("scan_failure_propagates", func(t *testing.T) {
		scanErr := errors.New("bad column")
		_, err := scanAttempt(fakeAttemptRow{err: scanErr})
		assert.ErrorIs(t, err, scanErr)
	})
}
