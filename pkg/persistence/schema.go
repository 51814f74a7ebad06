package persistence

import (
	"database/sql"
	"fmt"
)

// CurrentSchemaVersion defines the current schema version for migration support.
const CurrentSchemaVersion = 3

// GetSchemaVersion returns the schema version recorded in the database, or 0
// for a fresh database.
func GetSchemaVersion(db *sql.DB) (int, error) {
	var exists int
	err := db.QueryRow(
		`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'`,
	).Scan(&exists)
	if err != nil {
		return 0, fmt.Errorf("failed to check schema_version table: %w", err)
	}
	if exists == 0 {
		return 0, nil
	}

	var version int
	err = db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}

func setSchemaVersion(db *sql.DB, version int) error {
	if _, err := db.Exec(`INSERT INTO schema_version (version) VALUES (?)`, version); err != nil {
		return fmt.Errorf("failed to record schema version %d: %w", version, err)
	}
	return nil
}

// initializeSchemaWithMigrations ensures the database schema is at the
// current version.
func initializeSchemaWithMigrations(db *sql.DB) error {
	currentVersion, err := GetSchemaVersion(db)
	if err != nil {
		return fmt.Errorf("failed to get current schema version: %w", err)
	}

	// Fresh database: create the full schema at the current version.
	if currentVersion == 0 {
		return createSchema(db)
	}

	if currentVersion == CurrentSchemaVersion {
		return nil
	}

	return runMigrations(db, currentVersion, CurrentSchemaVersion)
}

func runMigrations(db *sql.DB, fromVersion, toVersion int) error {
	for version := fromVersion + 1; version <= toVersion; version++ {
		if err := runMigration(db, version); err != nil {
			return fmt.Errorf("migration to version %d failed: %w", version, err)
		}
		if err := setSchemaVersion(db, version); err != nil {
			return fmt.Errorf("failed to update schema version to %d: %w", version, err)
		}
	}
	return nil
}

func runMigration(db *sql.DB, version int) error {
	switch version {
	case 2:
		return migrateToVersion2(db)
	case 3:
		return migrateToVersion3(db)
	default:
		return fmt.Errorf("unknown migration version: %d", version)
	}
}

// migrateToVersion2 adds CI and version-bump snapshot columns to pr_tracking.
func migrateToVersion2(db *sql.DB) error {
	migrations := []string{
		"ALTER TABLE pr_tracking ADD COLUMN ci_status TEXT NOT NULL DEFAULT 'unknown'",
		"ALTER TABLE pr_tracking ADD COLUMN version_bump TEXT NOT NULL DEFAULT 'unknown'",
		"ALTER TABLE pr_tracking ADD COLUMN is_dependabot INTEGER NOT NULL DEFAULT 0",
	}
	for _, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("failed to execute migration: %s: %w", migration, err)
		}
	}
	return nil
}

// migrateToVersion3 adds the tree root hash to repo_summaries so a summary
// can be invalidated together with the tree cache.
func migrateToVersion3(db *sql.DB) error {
	if _, err := db.Exec(
		"ALTER TABLE repo_summaries ADD COLUMN tree_root_hash TEXT NOT NULL DEFAULT ''",
	); err != nil {
		return fmt.Errorf("failed to add tree_root_hash column: %w", err)
	}
	return nil
}

// createSchema creates the full schema at CurrentSchemaVersion.
func createSchema(db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS seen_events (
			repo TEXT NOT NULL,
			event_id TEXT NOT NULL,
			seen_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (repo, event_id)
		)`,
		`CREATE TABLE IF NOT EXISTS posted_comments (
			id TEXT PRIMARY KEY,
			repo TEXT NOT NULL,
			issue_number INTEGER NOT NULL,
			content_hash TEXT NOT NULL,
			posted_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_posted_comments_issue
			ON posted_comments(repo, issue_number)`,
		`CREATE TABLE IF NOT EXISTS repo_trees (
			repo TEXT PRIMARY KEY,
			root_hash TEXT NOT NULL,
			refreshed_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS repo_files (
			repo TEXT NOT NULL,
			path TEXT NOT NULL,
			blob_hash TEXT NOT NULL,
			size INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (repo, path)
		)`,
		`CREATE TABLE IF NOT EXISTS file_blobs (
			repo TEXT NOT NULL,
			blob_hash TEXT NOT NULL,
			content TEXT NOT NULL,
			size INTEGER NOT NULL,
			cached_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (repo, blob_hash)
		)`,
		`CREATE TABLE IF NOT EXISTS repo_summaries (
			repo TEXT PRIMARY KEY,
			summary TEXT NOT NULL,
			tree_root_hash TEXT NOT NULL DEFAULT '',
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS goals (
			name TEXT PRIMARY KEY,
			description TEXT NOT NULL,
			priority INTEGER NOT NULL DEFAULT 50,
			status TEXT NOT NULL DEFAULT 'active',
			progress REAL NOT NULL DEFAULT 0.0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS action_log (
			id TEXT PRIMARY KEY,
			tick INTEGER NOT NULL,
			action_type TEXT NOT NULL,
			repo TEXT NOT NULL,
			target_number INTEGER NOT NULL DEFAULT 0,
			target TEXT NOT NULL DEFAULT '',
			priority INTEGER NOT NULL DEFAULT 0,
			reasoning TEXT NOT NULL DEFAULT '',
			success INTEGER NOT NULL,
			result TEXT NOT NULL DEFAULT '',
			duration_ms INTEGER NOT NULL DEFAULT 0,
			executed_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_action_log_tick ON action_log(tick)`,
		`CREATE TABLE IF NOT EXISTS learnings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			tick INTEGER NOT NULL,
			category TEXT NOT NULL,
			insight TEXT NOT NULL,
			confidence REAL NOT NULL DEFAULT 0.5,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS tick_log (
			tick INTEGER PRIMARY KEY,
			started_at DATETIME NOT NULL,
			finished_at DATETIME NOT NULL,
			observations INTEGER NOT NULL DEFAULT 0,
			planned_actions INTEGER NOT NULL DEFAULT 0,
			executed_actions INTEGER NOT NULL DEFAULT 0,
			succeeded_actions INTEGER NOT NULL DEFAULT 0,
			reasoning TEXT NOT NULL DEFAULT '',
			duration_ms INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS pr_tracking (
			repo TEXT NOT NULL,
			number INTEGER NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			author TEXT NOT NULL DEFAULT '',
			state TEXT NOT NULL DEFAULT '',
			auto_merged INTEGER NOT NULL DEFAULT 0,
			ci_status TEXT NOT NULL DEFAULT 'unknown',
			version_bump TEXT NOT NULL DEFAULT 'unknown',
			is_dependabot INTEGER NOT NULL DEFAULT 0,
			last_seen_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (repo, number)
		)`,
	}

	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return setSchemaVersion(db, CurrentSchemaVersion)
}
