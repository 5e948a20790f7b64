package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EnsureSchema creates the version-engine tables if they do not exist.
// Applied at startup when AUTO_MIGRATE is set; production environments run
// migrations out of band against the same DDL.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool, tables *TableNames) error {
	statements := []string{
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id UUID PRIMARY KEY,
				session_id UUID NOT NULL UNIQUE,
				content TEXT NOT NULL DEFAULT '',
				spec JSONB NOT NULL DEFAULT '{}'::jsonb,
				current_history_id UUID,
				created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
			)`, tables.ProductDocs),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id UUID PRIMARY KEY,
				session_id UUID NOT NULL,
				title TEXT NOT NULL DEFAULT '',
				html TEXT NOT NULL DEFAULT '',
				current_version_id UUID,
				created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
			)`, tables.Pages),
		fmt.Sprintf(`
			CREATE INDEX IF NOT EXISTS %s_session_idx ON %s (session_id)`,
			tables.Pages, tables.Pages),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id UUID PRIMARY KEY,
				session_id UUID NOT NULL,
				snapshot_number INT NOT NULL,
				source TEXT NOT NULL,
				label TEXT,
				doc_content TEXT NOT NULL DEFAULT '',
				doc_spec JSONB NOT NULL DEFAULT '{}'::jsonb,
				pages JSONB NOT NULL DEFAULT '[]'::jsonb,
				pinned BOOLEAN NOT NULL DEFAULT FALSE,
				released BOOLEAN NOT NULL DEFAULT FALSE,
				content_cleared BOOLEAN NOT NULL DEFAULT FALSE,
				created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
				UNIQUE (session_id, snapshot_number)
			)`, tables.Snapshots),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id UUID PRIMARY KEY,
				doc_id UUID NOT NULL,
				version_number INT NOT NULL,
				source TEXT NOT NULL,
				change_summary TEXT,
				content TEXT NOT NULL DEFAULT '',
				spec JSONB NOT NULL DEFAULT '{}'::jsonb,
				pinned BOOLEAN NOT NULL DEFAULT FALSE,
				released BOOLEAN NOT NULL DEFAULT FALSE,
				created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
				UNIQUE (doc_id, version_number)
			)`, tables.DocHistory),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id UUID PRIMARY KEY,
				page_id UUID NOT NULL,
				version_number INT NOT NULL,
				source TEXT NOT NULL,
				html TEXT NOT NULL DEFAULT '',
				pinned BOOLEAN NOT NULL DEFAULT FALSE,
				released BOOLEAN NOT NULL DEFAULT FALSE,
				content_cleared BOOLEAN NOT NULL DEFAULT FALSE,
				created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
				UNIQUE (page_id, version_number)
			)`, tables.PageVersions),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				lineage TEXT NOT NULL,
				parent_id UUID NOT NULL,
				value INT NOT NULL,
				PRIMARY KEY (lineage, parent_id)
			)`, tables.VersionCounters),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				plan_id TEXT PRIMARY KEY,
				created_at TIMESTAMPTZ NOT NULL DEFAULT now()
			)`, tables.SnapshotTriggers),
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}

	return nil
}
