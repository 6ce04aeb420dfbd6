package db

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	_ "modernc.org/sqlite"
)

var log = logrus.WithField("module", "db")

// schemaSQL holds the survey tables, shared with Postgres
//
//go:embed schema.sql
var schemaSQL string

// SchemaVersion is stored in PRAGMA user_version once the survey tables
// exist. Bump it whenever schema.sql changes a column.
const SchemaVersion = 1

// Columns the API reads from survey_datasets
var datasetColumns = []string{
	"dataset_id", "snapshot_id", "source_file", "record_count", "attributes", "imported_at_utc",
}

// SchemaError reports a database file that the importer cannot write to
type SchemaError struct {
	Path    string
	Version int
	Missing []string
}

func (e *SchemaError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("%s: survey_datasets is missing columns %s", e.Path, strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("%s: schema version %d is newer than supported version %d", e.Path, e.Version, SchemaVersion)
}

// DB is the importer's handle on a survey database. Writes are serialized.
type DB struct {
	conn    *sql.DB
	path    string
	writeMu sync.Mutex
}

// Connect opens a survey database in WAL mode so the API can keep reading
// while an import runs
func Connect(dbPath string) (*DB, error) {
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open survey database: %w", err)
	}

	// one writer at a time
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(time.Hour)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping survey database: %w", err)
	}

	for _, pragma := range []string{"PRAGMA synchronous = NORMAL", "PRAGMA temp_store = MEMORY"} {
		if _, err := conn.Exec(pragma); err != nil {
			log.Warnf("Failed to set %s: %v", pragma, err)
		}
	}

	log.Infof("Opened survey database: %s", dbPath)
	return &DB{conn: conn, path: dbPath}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn returns the underlying connection for readers and tests
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// LockWrite acquires the write mutex. Must be paired with UnlockWrite.
func (db *DB) LockWrite() {
	db.writeMu.Lock()
}

// UnlockWrite releases the write mutex.
func (db *DB) UnlockWrite() {
	db.writeMu.Unlock()
}

// Version returns the stored schema version; 0 for a database that never
// went through EnsureSchema
func (db *DB) Version(ctx context.Context) (int, error) {
	var v int
	if err := db.conn.QueryRowContext(ctx, "PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return v, nil
}

// EnsureSchema creates the survey tables and stamps SchemaVersion. A
// database from a newer importer, or a survey_datasets table written by
// something else, is rejected with a SchemaError instead of being modified.
func (db *DB) EnsureSchema(ctx context.Context) error {
	db.LockWrite()
	defer db.UnlockWrite()

	version, err := db.Version(ctx)
	if err != nil {
		return err
	}
	if version > SchemaVersion {
		return &SchemaError{Path: db.path, Version: version}
	}

	if _, err := db.conn.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	missing, err := db.missingDatasetColumns(ctx)
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		return &SchemaError{Path: db.path, Version: version, Missing: missing}
	}

	if version < SchemaVersion {
		// PRAGMA does not take bind parameters
		if _, err := db.conn.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", SchemaVersion)); err != nil {
			return fmt.Errorf("failed to set schema version: %w", err)
		}
		log.Infof("Survey schema at version %d (was %d)", SchemaVersion, version)
	}
	return nil
}

// missingDatasetColumns compares survey_datasets with the columns the API
// reads. CREATE TABLE IF NOT EXISTS leaves an older table untouched.
func (db *DB) missingDatasetColumns(ctx context.Context) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx, "SELECT name FROM pragma_table_info('survey_datasets')")
	if err != nil {
		return nil, fmt.Errorf("failed to inspect survey_datasets: %w", err)
	}
	defer rows.Close()

	var present []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		present = append(present, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	missing, _ := lo.Difference(datasetColumns, present)
	return missing, nil
}

// SchemaSQL returns the embedded schema, also applied to Postgres sources
func SchemaSQL() string {
	return schemaSQL
}
