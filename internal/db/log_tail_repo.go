package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

type LogTailRepo struct {
	db *sql.DB
}

func NewLogTailRepo(db *sql.DB) *LogTailRepo {
	return &LogTailRepo{db: db}
}

const logTailColumns = `id, log_group_name, filter_pattern, profile, region, status, last_error, error_count, created_at, ended_at`

func (r *LogTailRepo) Create(ctx context.Context, t *LogTail) error {
	if t.ID == "" {
		return fmt.Errorf("log tail id is required")
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = nowUTC()
	}

	_, err := r.db.ExecContext(ctx, `
INSERT INTO log_tails (id, log_group_name, filter_pattern, profile, region, status, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
`, t.ID, t.LogGroupName, t.FilterPattern, t.Profile, t.Region, t.Status, formatTimestamp(t.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to create log tail: %w", err)
	}
	return nil
}

// Get returns nil without error when id is unknown.
func (r *LogTailRepo) Get(ctx context.Context, id string) (*LogTail, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+logTailColumns+` FROM log_tails WHERE id = ?`, id)
	t, err := scanLogTail(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get log tail %q: %w", id, err)
	}
	return t, nil
}

// List returns tails newest first.
func (r *LogTailRepo) List(ctx context.Context, filter ListFilter) ([]*LogTail, error) {
	query := `SELECT ` + logTailColumns + ` FROM log_tails`
	args := []any{}
	if filter.Status != "" {
		query += " WHERE status = ?"
		args = append(args, filter.Status)
	}
	query += " ORDER BY created_at DESC, id" + limitClause(filter.Limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list log tails: %w", err)
	}
	defer rows.Close()

	tails := []*LogTail{}
	for rows.Next() {
		t, err := scanLogTail(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan log tail: %w", err)
		}
		tails = append(tails, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed while iterating log tails: %w", err)
	}
	return tails, nil
}

// RecordError stores the latest poll failure of a running tail.
func (r *LogTailRepo) RecordError(ctx context.Context, id, message string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
UPDATE log_tails SET last_error = ?, error_count = error_count + 1
WHERE id = ? AND ended_at IS NULL
`, message, id)
	if err != nil {
		return false, fmt.Errorf("failed to record error for log tail %q: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read updated rows for log tail %q: %w", id, err)
	}
	return affected > 0, nil
}

// MarkEnded records status and the end time unless the tail already ended.
func (r *LogTailRepo) MarkEnded(ctx context.Context, id, status string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
UPDATE log_tails SET status = ?, ended_at = ?
WHERE id = ? AND ended_at IS NULL
`, status, formatTimestamp(nowUTC()), id)
	if err != nil {
		return false, fmt.Errorf("failed to end log tail %q: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read updated rows for log tail %q: %w", id, err)
	}
	return affected > 0, nil
}

// SetFinalStatus overwrites the status of a tail and sets its end time if
// missing. Used when the caller knows the authoritative outcome.
func (r *LogTailRepo) SetFinalStatus(ctx context.Context, id, status string) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE log_tails SET status = ?, ended_at = COALESCE(ended_at, ?)
WHERE id = ?
`, status, formatTimestamp(nowUTC()), id)
	if err != nil {
		return fmt.Errorf("failed to set status of log tail %q: %w", id, err)
	}
	return nil
}

func scanLogTail(row rowScanner) (*LogTail, error) {
	var t LogTail
	var createdAtRaw string
	var endedAtRaw sql.NullString
	if err := row.Scan(&t.ID, &t.LogGroupName, &t.FilterPattern, &t.Profile, &t.Region, &t.Status, &t.LastError, &t.ErrorCount, &createdAtRaw, &endedAtRaw); err != nil {
		return nil, err
	}
	var err error
	if t.CreatedAt, err = parseTimestamp(createdAtRaw); err != nil {
		return nil, err
	}
	if t.EndedAt, err = parseNullTimestamp(endedAtRaw); err != nil {
		return nil, err
	}
	return &t, nil
}
