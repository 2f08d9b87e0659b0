// Package migrations provides embedded SQL migration files.
package migrations

import (
	"database/sql"
	_ "embed"
	"fmt"
)

//go:embed sql/001_jobs.sql
var JobsSQL string

//go:embed sql/002_metadata_cache.sql
var MetadataCacheSQL string

// Apply brings the database up to the current schema. Statements are
// idempotent, so running it on every startup is safe.
func Apply(db *sql.DB) error {
	for _, stmt := range []string{JobsSQL, MetadataCacheSQL} {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("applying schema: %w", err)
		}
	}
	return nil
}
