package db

import (
	"fmt"

	"gorm.io/gorm"
)

var migrationStatements = []string{
	// Last good backend response per endpoint, served when the backend is down.
	`CREATE TABLE IF NOT EXISTS dashboard_snapshots (
		key         TEXT PRIMARY KEY,
		method      TEXT NOT NULL,
		path        TEXT NOT NULL,
		body        JSONB NOT NULL,
		fetched_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_dashboard_snapshots_fetched_at ON dashboard_snapshots(fetched_at);`,
	`CREATE INDEX IF NOT EXISTS idx_dashboard_snapshots_path ON dashboard_snapshots(path);`,
}

func runMigrations(db *gorm.DB) error {
	for i, stmt := range migrationStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
