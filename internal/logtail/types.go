// Package logtail follows a remote log group by polling it on a fixed
// cadence and publishing new events to an event sink.
package logtail

import (
	"context"
	"errors"
	"time"
)

// ErrSessionNotFound is returned for ids with no live tail.
var ErrSessionNotFound = errors.New("log tail session not found")

// LogEvent is one log line returned by a Source.
type LogEvent struct {
	// Timestamp is the event time in Unix milliseconds.
	Timestamp     int64  `json:"timestamp"`
	Message       string `json:"message"`
	LogStreamName string `json:"log_stream_name"`
	IngestionTime *int64 `json:"ingestion_time,omitempty"`
}

// Query selects events at or after Since (Unix milliseconds).
type Query struct {
	LogGroup string
	Filter   string
	Profile  string
	Region   string
	Since    int64
}

// Source fetches log events. A failed call is treated as transient.
type Source interface {
	Tail(ctx context.Context, q Query) ([]LogEvent, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context, q Query) ([]LogEvent, error)

func (f SourceFunc) Tail(ctx context.Context, q Query) ([]LogEvent, error) { return f(ctx, q) }

// Status of a tail session.
type Status string

const (
	StatusRunning Status = "running"
	StatusStopped Status = "stopped"
	// StatusError marks a tail that was stopped while its last poll was
	// failing.
	StatusError Status = "error"
)

// StartRequest describes a tail to start.
type StartRequest struct {
	LogGroupName  string `json:"log_group_name"`
	FilterPattern string `json:"filter_pattern,omitempty"`
	Profile       string `json:"profile,omitempty"`
	Region        string `json:"region,omitempty"`
}

// SessionInfo is the serializable summary of a tail session. It carries none
// of the cancellation machinery.
type SessionInfo struct {
	ID            string    `json:"id"`
	LogGroupName  string    `json:"log_group_name"`
	FilterPattern string    `json:"filter_pattern,omitempty"`
	Profile       string    `json:"profile,omitempty"`
	Region        string    `json:"region,omitempty"`
	Status        Status    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}
