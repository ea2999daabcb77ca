package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

type TerminalSessionRepo struct {
	db *sql.DB
}

func NewTerminalSessionRepo(db *sql.DB) *TerminalSessionRepo {
	return &TerminalSessionRepo{db: db}
}

const terminalSessionColumns = `id, title, session_type, kind, status, cols, rows, detail, created_at, ended_at`

func (r *TerminalSessionRepo) Create(ctx context.Context, s *TerminalSession) error {
	if s.ID == "" {
		return fmt.Errorf("terminal session id is required")
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = nowUTC()
	}

	_, err := r.db.ExecContext(ctx, `
INSERT INTO terminal_sessions (id, title, session_type, kind, status, cols, rows, detail, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`, s.ID, s.Title, s.SessionType, s.Kind, s.Status, s.Cols, s.Rows, s.Detail, formatTimestamp(s.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to create terminal session: %w", err)
	}
	return nil
}

// Get returns nil without error when id is unknown.
func (r *TerminalSessionRepo) Get(ctx context.Context, id string) (*TerminalSession, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+terminalSessionColumns+` FROM terminal_sessions WHERE id = ?`, id)
	s, err := scanTerminalSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get terminal session %q: %w", id, err)
	}
	return s, nil
}

// List returns sessions newest first.
func (r *TerminalSessionRepo) List(ctx context.Context, filter ListFilter) ([]*TerminalSession, error) {
	query := `SELECT ` + terminalSessionColumns + ` FROM terminal_sessions`
	args := []any{}
	if filter.Status != "" {
		query += " WHERE status = ?"
		args = append(args, filter.Status)
	}
	query += " ORDER BY created_at DESC, id" + limitClause(filter.Limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list terminal sessions: %w", err)
	}
	defer rows.Close()

	sessions := []*TerminalSession{}
	for rows.Next() {
		s, err := scanTerminalSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan terminal session: %w", err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed while iterating terminal sessions: %w", err)
	}
	return sessions, nil
}

func (r *TerminalSessionRepo) UpdateGeometry(ctx context.Context, id string, cols, rows int) error {
	_, err := r.db.ExecContext(ctx, `UPDATE terminal_sessions SET cols = ?, rows = ? WHERE id = ?`, cols, rows, id)
	if err != nil {
		return fmt.Errorf("failed to update geometry of terminal session %q: %w", id, err)
	}
	return nil
}

// MarkEnded records the final status unless the session already ended. It
// reports whether a row changed.
func (r *TerminalSessionRepo) MarkEnded(ctx context.Context, id, status, detail string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
UPDATE terminal_sessions SET status = ?, detail = ?, ended_at = ?
WHERE id = ? AND ended_at IS NULL
`, status, detail, formatTimestamp(nowUTC()), id)
	if err != nil {
		return false, fmt.Errorf("failed to end terminal session %q: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read updated rows for terminal session %q: %w", id, err)
	}
	return affected > 0, nil
}

// Delete removes the record of an ended session. It reports false when no
// ended session with that id exists.
func (r *TerminalSessionRepo) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM terminal_sessions WHERE id = ? AND ended_at IS NOT NULL`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete terminal session %q: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read deleted rows for terminal session %q: %w", id, err)
	}
	return affected > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTerminalSession(row rowScanner) (*TerminalSession, error) {
	var s TerminalSession
	var createdAtRaw string
	var endedAtRaw sql.NullString
	if err := row.Scan(&s.ID, &s.Title, &s.SessionType, &s.Kind, &s.Status, &s.Cols, &s.Rows, &s.Detail, &createdAtRaw, &endedAtRaw); err != nil {
		return nil, err
	}
	var err error
	if s.CreatedAt, err = parseTimestamp(createdAtRaw); err != nil {
		return nil, err
	}
	if s.EndedAt, err = parseNullTimestamp(endedAtRaw); err != nil {
		return nil, err
	}
	return &s, nil
}
