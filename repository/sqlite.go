package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rmgsl/mapa-od/internal/db"
	"github.com/rmgsl/mapa-od/internal/geo"
	"github.com/rmgsl/mapa-od/internal/survey"

	_ "modernc.org/sqlite"
)

// SQLiteDB wraps a read-side SQL database connection for SQLite
type SQLiteDB struct {
	db *sql.DB
}

// NewSQLiteDB creates a new SQLite database connection
func NewSQLiteDB(dbPath string) (*SQLiteDB, error) {
	conn, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(time.Hour)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteDB{db: conn}, nil
}

// Close closes the database connection
func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *SQLiteDB) GetDB() *sql.DB {
	return s.db
}

// SQLiteSource reads an imported dataset from survey_trips
type SQLiteSource struct {
	id       string
	location string
	db       *sql.DB
	dataset  string
}

// NewSQLiteSource reads dataset from db. An empty dataset selects the most
// recently imported one.
func NewSQLiteSource(id, location string, conn *sql.DB, dataset string) *SQLiteSource {
	return &SQLiteSource{id: id, location: location, db: conn, dataset: dataset}
}

func (s *SQLiteSource) ID() string       { return s.id }
func (s *SQLiteSource) Location() string { return s.location }

// Load reads every trip of the dataset
func (s *SQLiteSource) Load(ctx context.Context) (*survey.Table, error) {
	query := `
		SELECT dataset_id, snapshot_id, attributes
		FROM survey_datasets
		WHERE dataset_id = ? OR ? = ''
		ORDER BY imported_at_utc DESC, rowid DESC
		LIMIT 1
	`
	var datasetID, snapshotID, attrs string
	err := s.db.QueryRowContext(ctx, query, s.dataset, s.dataset).Scan(&datasetID, &snapshotID, &attrs)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &survey.LoadError{Source: s.id, Err: fmt.Errorf("dataset not found: %q", s.dataset)}
		}
		return nil, &survey.LoadError{Source: s.id, Err: fmt.Errorf("failed to query dataset: %w", err)}
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+tripColumns+" FROM survey_trips WHERE dataset_id = ? ORDER BY row_number",
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

	log.Infof("Loaded %d trips of dataset %s from SQLite", len(records), datasetID)
	return &survey.Table{
		SourceID:   s.id,
		SnapshotID: snapshotID,
		LoadedAt:   time.Now().UTC(),
		Attributes: attributes,
		Records:    records,
	}, nil
}

// SQLiteLocationRepository reads the locations table
type SQLiteLocationRepository struct {
	db *sql.DB
}

// NewSQLiteLocationRepository creates a new SQLiteLocationRepository
func NewSQLiteLocationRepository(conn *sql.DB) *SQLiteLocationRepository {
	return &SQLiteLocationRepository{db: conn}
}

// GetAllLocations returns every stored place ordered by name
func (r *SQLiteLocationRepository) GetAllLocations(ctx context.Context) ([]geo.Location, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT name, lat, lon FROM locations ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to query locations: %w", err)
	}
	defer rows.Close()

	var locations []geo.Location
	for rows.Next() {
		var loc geo.Location
		var lat, lon sql.NullFloat64
		if err := rows.Scan(&loc.Name, &lat, &lon); err != nil {
			return nil, fmt.Errorf("failed to scan location row: %w", err)
		}
		if lat.Valid && lon.Valid {
			loc.Coord = &geo.Coordinate{Lat: lat.Float64, Lon: lon.Float64}
		}
		locations = append(locations, loc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating location rows: %w", err)
	}
	return locations, nil
}
