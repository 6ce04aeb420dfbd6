package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/rmgsl/mapa-od/internal/geo"
	"github.com/rmgsl/mapa-od/internal/survey"
)

// Dataset is one imported survey snapshot
type Dataset struct {
	DatasetID   string
	SnapshotID  string
	SourceFile  string
	RecordCount int
	Attributes  []survey.Attribute
	ImportedAt  time.Time
}

// ImportDataset replaces datasetID with the records of table
func (db *DB) ImportDataset(ctx context.Context, datasetID, sourceFile string, table *survey.Table) error {
	db.LockWrite()
	defer db.UnlockWrite()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM survey_trips WHERE dataset_id = ?", datasetID); err != nil {
		return fmt.Errorf("failed to clear trips of dataset %s: %w", datasetID, err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM survey_datasets WHERE dataset_id = ?", datasetID); err != nil {
		return fmt.Errorf("failed to clear dataset %s: %w", datasetID, err)
	}

	attrs := lo.Map(table.Attributes, func(a survey.Attribute, _ int) string { return string(a) })
	_, err = tx.ExecContext(ctx, `
		INSERT INTO survey_datasets (dataset_id, snapshot_id, source_file, record_count, attributes, imported_at_utc)
		VALUES (?, ?, ?, ?, ?, ?)
	`, datasetID, table.SnapshotID, sourceFile, table.Len(), strings.Join(attrs, ","), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to insert dataset: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO survey_trips (
			dataset_id, row_number, origin, destination, origin_group, destination_group,
			motive, frequency, period, mode
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare trip statement: %w", err)
	}
	defer stmt.Close()

	for i, r := range table.Records {
		_, err := stmt.ExecContext(ctx,
			datasetID, i+1, r.Origin, r.Destination, r.OriginGroup, r.DestinationGroup,
			r.Motive, r.Frequency, r.Period, r.Mode,
		)
		if err != nil {
			return fmt.Errorf("failed to insert trip %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit dataset: %w", err)
	}

	log.Infof("Imported dataset %s: %d trips from %s", datasetID, table.Len(), sourceFile)
	return nil
}

// UpsertLocations stores the coordinate table. Places without a coordinate
// are stored with NULL lat/lon.
func (db *DB) UpsertLocations(ctx context.Context, locations []geo.Location) error {
	db.LockWrite()
	defer db.UnlockWrite()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO locations (name, lat, lon) VALUES (?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET lat = excluded.lat, lon = excluded.lon
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare location statement: %w", err)
	}
	defer stmt.Close()

	for _, loc := range locations {
		var lat, lon sql.NullFloat64
		if loc.Coord != nil {
			lat = sql.NullFloat64{Float64: loc.Coord.Lat, Valid: true}
			lon = sql.NullFloat64{Float64: loc.Coord.Lon, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, loc.Name, lat, lon); err != nil {
			return fmt.Errorf("failed to upsert location %s: %w", loc.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit locations: %w", err)
	}
	return nil
}

// ListDatasets returns imported datasets, newest first
func (db *DB) ListDatasets(ctx context.Context) ([]Dataset, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT dataset_id, snapshot_id, source_file, record_count, attributes, imported_at_utc
		FROM survey_datasets
		ORDER BY imported_at_utc DESC, dataset_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query datasets: %w", err)
	}
	defer rows.Close()

	var datasets []Dataset
	for rows.Next() {
		var d Dataset
		var attrs, importedAt string
		if err := rows.Scan(&d.DatasetID, &d.SnapshotID, &d.SourceFile, &d.RecordCount, &attrs, &importedAt); err != nil {
			return nil, fmt.Errorf("failed to scan dataset row: %w", err)
		}
		d.Attributes = ParseAttributeList(attrs)
		d.ImportedAt, _ = time.Parse(time.RFC3339, importedAt)
		datasets = append(datasets, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating dataset rows: %w", err)
	}
	return datasets, nil
}

// ParseAttributeList decodes the comma separated attribute column
func ParseAttributeList(s string) []survey.Attribute {
	return lo.FilterMap(strings.Split(s, ","), func(name string, _ int) (survey.Attribute, bool) {
		attr, err := survey.ParseAttribute(strings.TrimSpace(name))
		return attr, err == nil
	})
}
