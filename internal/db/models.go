package db

import (
	"database/sql"
	"fmt"
	"time"
)

// TerminalSession is the persisted record of one PTY session. SessionType
// holds the JSON form of the session kind.
type TerminalSession struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	SessionType string     `json:"session_type"`
	Kind        string     `json:"kind"`
	Status      string     `json:"status"`
	Cols        int        `json:"cols"`
	Rows        int        `json:"rows"`
	Detail      string     `json:"detail,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
}

// LogTail is the persisted record of one log tail.
type LogTail struct {
	ID            string     `json:"id"`
	LogGroupName  string     `json:"log_group_name"`
	FilterPattern string     `json:"filter_pattern,omitempty"`
	Profile       string     `json:"profile,omitempty"`
	Region        string     `json:"region,omitempty"`
	Status        string     `json:"status"`
	LastError     string     `json:"last_error,omitempty"`
	ErrorCount    int        `json:"error_count"`
	CreatedAt     time.Time  `json:"created_at"`
	EndedAt       *time.Time `json:"ended_at,omitempty"`
}

// timestampLayout has fixed-width fractions so stored values sort as text.
const timestampLayout = "2006-01-02T15:04:05.000000Z07:00"

type ListFilter struct {
	Status string
	Limit  int
}

func nowUTC() time.Time {
	return time.Now().UTC()
}

func formatTimestamp(ts time.Time) string {
	if ts.IsZero() {
		ts = nowUTC()
	}
	return ts.UTC().Format(timestampLayout)
}

func parseTimestamp(v string) (time.Time, error) {
	ts, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp %q: %w", v, err)
	}
	return ts, nil
}

func parseNullTimestamp(v sql.NullString) (*time.Time, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	ts, err := parseTimestamp(v.String)
	if err != nil {
		return nil, err
	}
	return &ts, nil
}

func limitClause(limit int) string {
	if limit <= 0 {
		return ""
	}
	return fmt.Sprintf(" LIMIT %d", limit)
}
