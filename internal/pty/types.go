package pty

import "time"

const (
	defaultCols uint16 = 80
	defaultRows uint16 = 24
)

// Status is a session's lifecycle state. It only moves forward:
// starting → running → closing → closed, with error reachable from
// starting or running. Closed and error are terminal.
type Status string

const (
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusClosing  Status = "closing"
	StatusClosed   Status = "closed"
	StatusError    Status = "error"
)

func (s Status) rank() int {
	switch s {
	case StatusStarting:
		return 0
	case StatusRunning:
		return 1
	case StatusClosing:
		return 2
	case StatusClosed:
		return 3
	default:
		return -1
	}
}

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s == StatusClosed || s == StatusError
}

// Live reports whether the session still accepts input and resizes.
func (s Status) Live() bool {
	return s == StatusStarting || s == StatusRunning
}

// CanTransition reports whether moving from s to next is allowed.
func (s Status) CanTransition(next Status) bool {
	if s.Terminal() {
		return false
	}
	if next == StatusError {
		return s.Live()
	}
	return next.rank() > s.rank()
}

// SessionInfo is a read-only snapshot of session metadata. It never holds
// references into the live session.
type SessionInfo struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	SessionType KindSpec  `json:"session_type"`
	CreatedAt   time.Time `json:"created_at"`
	Status      Status    `json:"status"`
	Cols        uint16    `json:"cols"`
	Rows        uint16    `json:"rows"`
}
