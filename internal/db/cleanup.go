package db

import (
	"context"
	"fmt"
)

// Cleanup keeps the keep most recently imported datasets and deletes the
// rest with their trips. keep < 1 keeps everything.
func (db *DB) Cleanup(ctx context.Context, keep int) error {
	if keep < 1 {
		return nil
	}

	db.LockWrite()
	defer db.UnlockWrite()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Older datasets, newest first, after skipping the ones to keep
	const older = `
		SELECT dataset_id FROM survey_datasets
		ORDER BY imported_at_utc DESC, rowid DESC
		LIMIT -1 OFFSET ?
	`

	queries := []struct {
		name  string
		query string
	}{
		{name: "survey_trips", query: "DELETE FROM survey_trips WHERE dataset_id IN (" + older + ")"},
		{name: "survey_datasets", query: "DELETE FROM survey_datasets WHERE dataset_id IN (" + older + ")"},
	}

	deleted := make(map[string]int64, len(queries))
	for _, q := range queries {
		result, err := tx.ExecContext(ctx, q.query, keep)
		if err != nil {
			return fmt.Errorf("failed to cleanup %s: %w", q.name, err)
		}
		deleted[q.name], _ = result.RowsAffected()
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit cleanup: %w", err)
	}

	if deleted["survey_datasets"] > 0 {
		log.Infof("Cleanup: deleted %d datasets (%d trips), kept the %d newest",
			deleted["survey_datasets"], deleted["survey_trips"], keep)
	}
	return nil
}
