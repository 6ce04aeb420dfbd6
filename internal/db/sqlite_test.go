package db

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func connectRaw(t *testing.T) *DB {
	t.Helper()
	database, err := Connect(filepath.Join(t.TempDir(), "od.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return database
}

func TestEnsureSchema_StampsVersion(t *testing.T) {
	ctx := context.Background()
	database := connectRaw(t)

	v, err := database.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, v)

	require.NoError(t, database.EnsureSchema(ctx))
	v, err = database.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, SchemaVersion, v)
}

func TestEnsureSchema_RejectsNewerVersion(t *testing.T) {
	ctx := context.Background()
	database := connectRaw(t)
	_, err := database.Conn().Exec("PRAGMA user_version = 99")
	require.NoError(t, err)

	err = database.EnsureSchema(ctx)
	var schemaErr *SchemaError
	require.True(t, errors.As(err, &schemaErr))
	assert.Equal(t, 99, schemaErr.Version)
	assert.Empty(t, schemaErr.Missing)

	assert.Zero(t, countRows(t, database, "SELECT COUNT(*) FROM sqlite_master WHERE name = 'survey_trips'"))
}

func TestEnsureSchema_RejectsForeignDatasetsTable(t *testing.T) {
	ctx := context.Background()
	database := connectRaw(t)
	_, err := database.Conn().Exec("CREATE TABLE survey_datasets (dataset_id TEXT PRIMARY KEY, source_file TEXT)")
	require.NoError(t, err)

	err = database.EnsureSchema(ctx)
	var schemaErr *SchemaError
	require.True(t, errors.As(err, &schemaErr))
	assert.ElementsMatch(t, []string{"snapshot_id", "record_count", "attributes", "imported_at_utc"}, schemaErr.Missing)
	assert.ErrorContains(t, err, "snapshot_id")

	v, err := database.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, v, "version is only stamped on a valid schema")
}
