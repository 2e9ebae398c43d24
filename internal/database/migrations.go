package database

import (
	"context"
	"fmt"
	"strings"
)

// migration defines a single idempotent schema migration.
type migration struct {
	name  string
	sql   string
	check string // query that returns true if the migration is already applied
}

// migrations is the ordered list of schema migrations to apply.
// Each must be idempotent (use IF NOT EXISTS, IF EXISTS, etc.).
var migrations = []migration{
	{
		name:  "add meeting_jobs.upload timestamps",
		sql:   `ALTER TABLE meeting_jobs ADD COLUMN IF NOT EXISTS upload_started_at timestamptz, ADD COLUMN IF NOT EXISTS upload_finished_at timestamptz`,
		check: `SELECT EXISTS (SELECT 1 FROM information_schema.columns WHERE table_name = 'meeting_jobs' AND column_name = 'upload_started_at')`,
	},
	{
		name:  "add transcripts.edited",
		sql:   `ALTER TABLE transcripts ADD COLUMN IF NOT EXISTS edited boolean NOT NULL DEFAULT false`,
		check: `SELECT EXISTS (SELECT 1 FROM information_schema.columns WHERE table_name = 'transcripts' AND column_name = 'edited')`,
	},
	{
		name:  "add chat_entries job+time index",
		sql:   `CREATE INDEX IF NOT EXISTS idx_chat_entries_job ON chat_entries (job_id, created_at)`,
		check: `SELECT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'idx_chat_entries_job')`,
	},
}

// Migrate runs all pending schema migrations.
// For each migration, it first checks whether the change is already present.
// If not, it attempts to apply it. If the apply fails (e.g. insufficient
// privileges), the error is returned — the caller should treat this as fatal
// since the application's queries depend on these columns existing.
func (db *DB) Migrate(ctx context.Context) error {
	var pending []migration
	for _, m := range migrations {
		if m.check != "" {
			var exists bool
			if err := db.Pool.QueryRow(ctx, m.check).Scan(&exists); err == nil && exists {
				continue
			}
		}
		pending = append(pending, m)
	}

	if len(pending) == 0 {
		db.log.Debug().Msg("no pending migrations")
		return nil
	}

	var applied []string
	for _, m := range pending {
		if _, err := db.Pool.Exec(ctx, m.sql); err != nil {
			return fmt.Errorf("migration %q: %w", m.name, err)
		}
		applied = append(applied, m.name)
	}

	db.log.Info().Str("applied", strings.Join(applied, ", ")).Msg("schema migrations applied")
	return nil
}
