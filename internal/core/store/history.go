package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/namelens/tubelens/internal/core"
)

// DefaultHistoryLimit caps list queries without an explicit limit.
const DefaultHistoryLimit = 50

// HistoryFilter narrows ListResolutions.
type HistoryFilter struct {
	VideoID string
	Since   time.Time
	Limit   int
}

// RecordResolution appends a completed resolution to the history table.
func (s *Store) RecordResolution(ctx context.Context, resolution *core.Resolution) error {
	if s == nil || s.DB == nil {
		return errNotInitialized
	}
	if resolution == nil {
		return errors.New("resolution is required")
	}
	if strings.TrimSpace(resolution.VideoID) == "" {
		return errors.New("resolution video id is required")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	resolvedAt := resolution.ResolvedAt
	if resolvedAt.IsZero() {
		resolvedAt = time.Now()
	}

	var resolver sql.NullString
	if name := strings.TrimSpace(resolution.Resolver); name != "" {
		resolver = sql.NullString{String: name, Valid: true}
	}

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO resolutions (video_id, source, resolver, format_code, url, primary_link, failed_attempts, resolved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, resolution.VideoID, string(resolution.Source), resolver, resolution.FormatCode, resolution.URL,
		resolution.Links.Primary, len(resolution.Attempts), resolvedAt.UTC().Unix())
	if err != nil {
		return fmt.Errorf("store resolution: %w", err)
	}

	return nil
}

// ListResolutions returns history entries, newest first.
func (s *Store) ListResolutions(ctx context.Context, filter HistoryFilter) ([]core.HistoryEntry, error) {
	if s == nil || s.DB == nil {
		return nil, errNotInitialized
	}

	if ctx == nil {
		ctx = context.Background()
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	var (
		clauses []string
		args    []any
	)
	if videoID := strings.TrimSpace(filter.VideoID); videoID != "" {
		clauses = append(clauses, "video_id = ?")
		args = append(args, videoID)
	}
	if !filter.Since.IsZero() {
		clauses = append(clauses, "resolved_at >= ?")
		args = append(args, filter.Since.UTC().Unix())
	}

	query := `
		SELECT id, video_id, source, resolver, format_code, url, primary_link, failed_attempts, resolved_at
		FROM resolutions`
	if len(clauses) > 0 {
		query += "\n\t\tWHERE " + strings.Join(clauses, " AND ")
	}
	query += "\n\t\tORDER BY resolved_at DESC, id DESC\n\t\tLIMIT ?"
	args = append(args, limit)

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list resolutions: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup on SQL rows

	var entries []core.HistoryEntry
	for rows.Next() {
		var (
			entry      core.HistoryEntry
			source     string
			resolver   sql.NullString
			resolvedAt int64
		)
		if err := rows.Scan(&entry.ID, &entry.VideoID, &source, &resolver, &entry.FormatCode,
			&entry.URL, &entry.PrimaryLink, &entry.FailedAttempts, &resolvedAt); err != nil {
			return nil, fmt.Errorf("scan resolution: %w", err)
		}
		entry.Source = core.Source(source)
		if resolver.Valid {
			entry.Resolver = resolver.String
		}
		entry.ResolvedAt = time.Unix(resolvedAt, 0).UTC()
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list resolutions: %w", err)
	}

	return entries, nil
}

// PruneResolutions deletes entries resolved before cutoff and returns the count removed.
func (s *Store) PruneResolutions(ctx context.Context, cutoff time.Time) (int64, error) {
	if s == nil || s.DB == nil {
		return 0, errNotInitialized
	}

	if ctx == nil {
		ctx = context.Background()
	}

	res, err := s.DB.ExecContext(ctx, `DELETE FROM resolutions WHERE resolved_at < ?`, cutoff.UTC().Unix())
	if err != nil {
		return 0, fmt.Errorf("prune resolutions: %w", err)
	}

	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune resolutions: %w", err)
	}
	return removed, nil
}
