package postgres

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/echoscribe/echoscribe-api/internal/store"
)

func TestNewPostgresTaskStore(t *testing.T) {
	tests := []struct {
		name        string
		db          store.DBTX
		expectPanic bool
	}{
		{
			name:        "nil_db_panics",
			db:          nil,
			expectPanic: true,
		},
		{
			name: "valid_db",
			db:   &sql.DB{},
		},
		{
			name: "mock_dbtx",
			db:   &mockDBTX{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.expectPanic {
				assert.Panics(t, func() {
					NewPostgresTaskStore(tt.db)
				})
				return
			}

			s := NewPostgresTaskStore(tt.db)
			assert.NotNil(t, s)
			assert.Equal(t, tt.db, s.db)
		})
	}
}

func TestPostgresTaskStore_WithTx(t *testing.T) {
	original := NewPostgresTaskStore(&sql.DB{})
	tx := &sql.Tx{}

	txStore := original.WithTx(tx)

	require.IsType(t, &PostgresTaskStore{}, txStore)
	assert.Same(t, tx, txStore.(*PostgresTaskStore).db)
}

func TestEncodeAssignees(t *testing.T) {
	t.Run("nil_stores_empty_array", func(t *testing.T) {
		encoded, err := encodeAssignees(nil)
		require.NoError(t, err)
		assert.Equal(t, []byte("[]"), encoded)
	})

	t.Run("names_encode_as_json_array", func(t *testing.T) {
		encoded, err := encodeAssignees([]string{"dana", "lee"})
		require.NoError(t, err)
		assert.Equal(t, []byte(`["dana","lee"]`), encoded)
	})
}

func TestDecodeAssignees(t *testing.T) {
	t.Run("null_column_decodes_as_nil", func(t *testing.T) {
		assignees, err := decodeAssignees(nil)
		require.NoError(t, err)
		assert.Nil(t, assignees)
	})

	t.Run("empty_array_decodes_as_nil", func(t *testing.T) {
		assignees, err := decodeAssignees([]byte("[]"))
		require.NoError(t, err)
		assert.Nil(t, assignees)
	})

	t.Run("names_round_trip", func(t *testing.T) {
		assignees, err := decodeAssignees([]byte(`["dana","lee"]`))
		require.NoError(t, err)
		assert.Equal(t, []string{"dana", "lee"}, assignees)
	})

	t.Run("malformed_json_fails", func(t *testing.T) {
		_, err := decodeAssignees([]byte(`{"dana"`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to decode assignees")
	})
}
