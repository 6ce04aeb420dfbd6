package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmgsl/mapa-od/internal/survey"
)

func TestPostgresSource(t *testing.T) {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		t.Skip("DATABASE_URL not set - skipping integration test")
	}

	src, err := NewPostgresSource("pg", databaseURL, "")
	require.NoError(t, err)
	defer src.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, src.EnsureSchema(ctx))

	table, err := src.Load(ctx)
	if _, ok := survey.AsLoadError(err); ok {
		t.Log("Warning: no dataset imported into Postgres. Load returned a LoadError as expected.")
		return
	}
	require.NoError(t, err)
	t.Logf("Successfully loaded %d trips from Postgres", table.Len())
	assert.Contains(t, table.Attributes, survey.AttrOrigin)
}

func TestMongoSource(t *testing.T) {
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		t.Skip("MONGO_URI not set - skipping integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dataset := "test-" + uuid.New().String()
	src, err := NewMongoSource(ctx, "mongo", uri, "mapa_od_test", "trips", dataset)
	require.NoError(t, err)
	defer src.Close(context.Background())

	require.NoError(t, src.InsertTrips(ctx, dataset, []survey.TripRecord{
		{Origin: "Raposa", Destination: " São  Luís", Mode: "Ônibus"},
		{Origin: "São Luís", Destination: "Raposa"},
	}))

	table, err := src.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, table.Len())
	assert.Equal(t, "São Luís", table.Records[0].Destination)
	assert.Contains(t, table.Attributes, survey.AttrMode)

	_, err = src.coll.DeleteMany(ctx, src.filter())
	assert.NoError(t, err)
}
