package store

import (
	"context"
	"fmt"
	"time"
)

// migration is one forward-only schema step. Versions are applied in order
// and recorded in schema_migrations.
type migration struct {
	version    int
	statements []string
}

var migrations = []migration{
	{
		version: 1,
		statements: []string{
			`CREATE TABLE IF NOT EXISTS resolutions (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				video_id TEXT NOT NULL,
				source TEXT NOT NULL,
				resolver TEXT,
				format_code TEXT NOT NULL,
				url TEXT NOT NULL,
				primary_link TEXT NOT NULL,
				resolved_at INTEGER NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_resolutions_resolved_at ON resolutions(resolved_at)`,
			`CREATE INDEX IF NOT EXISTS idx_resolutions_video ON resolutions(video_id)`,
		},
	},
	{
		version: 2,
		statements: []string{
			`ALTER TABLE resolutions ADD COLUMN failed_attempts INTEGER NOT NULL DEFAULT 0`,
		},
	},
}

// Migrate brings the schema up to the latest version.
func (s *Store) Migrate(ctx context.Context) error {
	if s == nil || s.DB == nil {
		return errNotInitialized
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if _, err := s.DB.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at INTEGER NOT NULL
	)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	current, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if err := s.apply(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

// SchemaVersion returns the highest applied migration, 0 for a new database.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	if s == nil || s.DB == nil {
		return 0, errNotInitialized
	}
	var version int
	if err := s.DB.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&version); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return version, nil
}

func (s *Store) apply(ctx context.Context, m migration) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("migration %d: %w", m.version, err)
	}
	defer tx.Rollback() // nolint:errcheck // no-op after commit

	for _, stmt := range m.statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", m.version, err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)`,
		m.version, time.Now().Unix()); err != nil {
		return fmt.Errorf("record migration %d: %w", m.version, err)
	}
	return tx.Commit()
}

// latestSchemaVersion is the version Migrate converges to.
func latestSchemaVersion() int {
	return migrations[len(migrations)-1].version
}
