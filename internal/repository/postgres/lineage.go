package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"sitesmith/internal/domain"
	"sitesmith/internal/domain/models"
	"sitesmith/internal/domain/repositories"
)

// lineageStore implements the repositories.VersionStore contract for one
// version table. The three lineage repositories embed it, parameterized by
// table, parent column, sequence column and the SET fragment that scrubs
// the payload on release (empty for lineages that retain content).
type lineageStore struct {
	pool      *pgxpool.Pool
	table     string
	parentCol string
	seqCol    string
	clearSet  string
}

// ListEntries returns every entry for a parent, released included.
func (s *lineageStore) ListEntries(ctx context.Context, parentID string) ([]repositories.VersionEntry, error) {
	query := fmt.Sprintf(`
		SELECT id, %s, %s, source, pinned, released, created_at
		FROM %s
		WHERE %s = $1
		ORDER BY %s DESC
	`, s.parentCol, s.seqCol, s.table, s.parentCol, s.seqCol)

	executor := GetExecutor(ctx, s.pool)
	rows, err := executor.Query(ctx, query, parentID)
	if err != nil {
		return nil, fmt.Errorf("list %s entries: %w", s.table, err)
	}
	defer rows.Close()

	var entries []repositories.VersionEntry
	for rows.Next() {
		var e repositories.VersionEntry
		var source string
		err := rows.Scan(&e.ID, &e.ParentID, &e.Sequence, &source, &e.Pinned, &e.Released, &e.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan %s entry: %w", s.table, err)
		}
		e.Source = models.Source(source)
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s entries: %w", s.table, err)
	}

	return entries, nil
}

// GetEntry returns the entry for a record id.
func (s *lineageStore) GetEntry(ctx context.Context, id string) (repositories.VersionEntry, error) {
	query := fmt.Sprintf(`
		SELECT id, %s, %s, source, pinned, released, created_at
		FROM %s
		WHERE id = $1
	`, s.parentCol, s.seqCol, s.table)

	var e repositories.VersionEntry
	var source string
	executor := GetExecutor(ctx, s.pool)
	err := executor.QueryRow(ctx, query, id).Scan(
		&e.ID, &e.ParentID, &e.Sequence, &source, &e.Pinned, &e.Released, &e.CreatedAt,
	)
	if err != nil {
		if IsPgNoRowsError(err) {
			return repositories.VersionEntry{}, fmt.Errorf("version %s: %w", id, domain.ErrNotFound)
		}
		return repositories.VersionEntry{}, fmt.Errorf("get %s entry: %w", s.table, err)
	}

	e.Source = models.Source(source)
	return e, nil
}

// ListPinned returns the ids of currently pinned records for a parent,
// oldest pin first.
func (s *lineageStore) ListPinned(ctx context.Context, parentID string) ([]string, error) {
	query := fmt.Sprintf(`
		SELECT id
		FROM %s
		WHERE %s = $1 AND pinned
		ORDER BY %s ASC
	`, s.table, s.parentCol, s.seqCol)

	executor := GetExecutor(ctx, s.pool)
	rows, err := executor.Query(ctx, query, parentID)
	if err != nil {
		return nil, fmt.Errorf("list pinned %s: %w", s.table, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan pinned id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pinned %s: %w", s.table, err)
	}

	return ids, nil
}

// SetPinned toggles the pinned flag.
func (s *lineageStore) SetPinned(ctx context.Context, id string, pinned bool) error {
	query := fmt.Sprintf(`UPDATE %s SET pinned = $2 WHERE id = $1`, s.table)

	executor := GetExecutor(ctx, s.pool)
	result, err := executor.Exec(ctx, query, id, pinned)
	if err != nil {
		return fmt.Errorf("set pinned on %s: %w", s.table, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("version %s: %w", id, domain.ErrNotFound)
	}

	return nil
}

// MarkReleased releases a record, scrubbing the payload when asked and the
// lineage supports it. Idempotent: releasing a released record is a no-op
// row update.
func (s *lineageStore) MarkReleased(ctx context.Context, id string, clearPayload bool) error {
	set := "released = TRUE"
	if clearPayload && s.clearSet != "" {
		set += ", " + s.clearSet
	}
	query := fmt.Sprintf(`UPDATE %s SET %s WHERE id = $1`, s.table, set)

	executor := GetExecutor(ctx, s.pool)
	result, err := executor.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("release %s version: %w", s.table, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("version %s: %w", id, domain.ErrNotFound)
	}

	return nil
}

// MarkRetained flips a released record back into the working set. Payload
// cleared by an earlier release stays cleared.
func (s *lineageStore) MarkRetained(ctx context.Context, id string) error {
	query := fmt.Sprintf(`UPDATE %s SET released = FALSE WHERE id = $1`, s.table)

	executor := GetExecutor(ctx, s.pool)
	result, err := executor.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("retain %s version: %w", s.table, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("version %s: %w", id, domain.ErrNotFound)
	}

	return nil
}
