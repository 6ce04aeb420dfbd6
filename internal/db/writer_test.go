package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmgsl/mapa-od/internal/geo"
	"github.com/rmgsl/mapa-od/internal/survey"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	database, err := Connect(filepath.Join(t.TempDir(), "od.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, database.EnsureSchema(context.Background()))
	return database
}

func sampleTable(n int) *survey.Table {
	records := make([]survey.TripRecord, n)
	for i := range records {
		records[i] = survey.TripRecord{
			Origin: "Raposa", Destination: "São Luís", OriginGroup: "Raposa", DestinationGroup: "São Luís",
			Motive: "Trabalho", Frequency: "Diariamente", Period: "Manhã", Mode: "Ônibus",
		}
	}
	return &survey.Table{
		SnapshotID: "snap",
		LoadedAt:   time.Now().UTC(),
		Attributes: []survey.Attribute{survey.AttrOrigin, survey.AttrDestination, survey.AttrMotive},
		Records:    records,
	}
}

func countRows(t *testing.T, database *DB, query string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, database.Conn().QueryRow(query, args...).Scan(&n))
	return n
}

func TestEnsureSchema_Idempotent(t *testing.T) {
	database := openTestDB(t)
	assert.NoError(t, database.EnsureSchema(context.Background()))
	assert.Contains(t, SchemaSQL(), "survey_trips")
}

func TestImportDataset(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, database.ImportDataset(ctx, "2025", "od.xlsx", sampleTable(3)))

	assert.Equal(t, 3, countRows(t, database, "SELECT COUNT(*) FROM survey_trips WHERE dataset_id = ?", "2025"))

	datasets, err := database.ListDatasets(ctx)
	require.NoError(t, err)
	require.Len(t, datasets, 1)
	assert.Equal(t, "2025", datasets[0].DatasetID)
	assert.Equal(t, 3, datasets[0].RecordCount)
	assert.Equal(t, "od.xlsx", datasets[0].SourceFile)
	assert.Equal(t, []survey.Attribute{survey.AttrOrigin, survey.AttrDestination, survey.AttrMotive}, datasets[0].Attributes)
	assert.False(t, datasets[0].ImportedAt.IsZero())
}

func TestImportDataset_ReplacesExisting(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, database.ImportDataset(ctx, "2025", "old.csv", sampleTable(5)))
	require.NoError(t, database.ImportDataset(ctx, "2025", "new.csv", sampleTable(2)))
	require.NoError(t, database.ImportDataset(ctx, "2024", "prev.csv", sampleTable(1)))

	assert.Equal(t, 2, countRows(t, database, "SELECT COUNT(*) FROM survey_trips WHERE dataset_id = ?", "2025"))
	assert.Equal(t, 3, countRows(t, database, "SELECT COUNT(*) FROM survey_trips"))
	assert.Equal(t, 2, countRows(t, database, "SELECT COUNT(*) FROM survey_datasets"))
}

func TestUpsertLocations(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, database.UpsertLocations(ctx, geo.DefaultLocations()))
	require.NoError(t, database.UpsertLocations(ctx, []geo.Location{{Name: "Cachoeira Grande"}}))

	assert.Equal(t, len(geo.DefaultLocations()), countRows(t, database, "SELECT COUNT(*) FROM locations"))
	assert.Equal(t, 1, countRows(t, database, "SELECT COUNT(*) FROM locations WHERE lat IS NULL"))
}

func TestParseAttributeList(t *testing.T) {
	assert.Equal(t,
		[]survey.Attribute{survey.AttrOrigin, survey.AttrMode},
		ParseAttributeList("origin, mode,income,"),
	)
	assert.Empty(t, ParseAttributeList(""))
}
