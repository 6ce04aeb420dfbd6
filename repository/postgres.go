package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rmgsl/mapa-od/internal/db"
	"github.com/rmgsl/mapa-od/internal/survey"
)

// PostgresSource reads an imported dataset from a Postgres copy of the
// survey tables
type PostgresSource struct {
	id       string
	location string
	pool     *pgxpool.Pool
	dataset  string
}

// NewPostgresSource connects to databaseURL. An empty dataset selects the
// most recently imported one.
func NewPostgresSource(id, databaseURL, dataset string) (*PostgresSource, error) {
	pool, err := pgxpool.New(context.Background(), databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresSource{id: id, location: redact(databaseURL), pool: pool, dataset: dataset}, nil
}

func (s *PostgresSource) ID() string       { return s.id }
func (s *PostgresSource) Location() string { return s.location }

// Close releases the connection pool
func (s *PostgresSource) Close() {
	s.pool.Close()
}

// EnsureSchema creates the survey tables if they don't exist
func (s *PostgresSource) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, db.SchemaSQL()); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Load reads every trip of the dataset
func (s *PostgresSource) Load(ctx context.Context) (*survey.Table, error) {
	query := `
		SELECT dataset_id, snapshot_id, attributes
		FROM survey_datasets
		WHERE dataset_id = $1 OR $1 = ''
		ORDER BY imported_at_utc DESC
		LIMIT 1
	`
	var datasetID, snapshotID, attrs string
	err := s.pool.QueryRow(ctx, query, s.dataset).Scan(&datasetID, &snapshotID, &attrs)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &survey.LoadError{Source: s.id, Err: fmt.Errorf("dataset not found: %q", s.dataset)}
		}
		return nil, &survey.LoadError{Source: s.id, Err: fmt.Errorf("failed to query dataset: %w", err)}
	}

	rows, err := s.pool.Query(ctx,
		"SELECT "+tripColumns+" FROM survey_trips WHERE dataset_id = $1 ORDER BY row_number",
		datasetID,
	)
	if err != nil {
		return nil, &survey.LoadError{Source: s.id, Err: fmt.Errorf("failed to query trips: %w", err)}
	}
	defer rows.Close()

	records, err := scanTrips(rows)
	if err != nil {
		return nil, &survey.LoadError{Source: s.id, Err: err}
	}

	attributes := db.ParseAttributeList(attrs)
	if len(attributes) == 0 {
		attributes = presentAttributes(records)
	}

	log.Infof("Loaded %d trips of dataset %s from Postgres", len(records), datasetID)
	return &survey.Table{
		SourceID:   s.id,
		SnapshotID: snapshotID,
		LoadedAt:   time.Now().UTC(),
		Attributes: attributes,
		Records:    records,
	}, nil
}
