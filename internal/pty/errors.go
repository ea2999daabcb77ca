package pty

import "fmt"

// ErrorCode classifies terminal failures.
type ErrorCode string

const (
	CodeSessionNotFound      ErrorCode = "session_not_found"
	CodePtyCreationFailed    ErrorCode = "pty_creation_failed"
	CodeSpawnFailed          ErrorCode = "spawn_failed"
	CodeWriteFailed          ErrorCode = "write_failed"
	CodeResizeFailed         ErrorCode = "resize_failed"
	CodeSessionAlreadyExists ErrorCode = "session_already_exists"
	CodeDecodeError          ErrorCode = "decode_error"
	CodeInvalidSessionType   ErrorCode = "invalid_session_type"
)

var errorPrefixes = map[ErrorCode]string{
	CodeSessionNotFound:      "session not found",
	CodePtyCreationFailed:    "failed to create pty",
	CodeSpawnFailed:          "failed to spawn process",
	CodeWriteFailed:          "failed to write to pty",
	CodeResizeFailed:         "failed to resize pty",
	CodeSessionAlreadyExists: "session already exists",
	CodeDecodeError:          "failed to decode input",
	CodeInvalidSessionType:   "invalid session type",
}

// Error is returned by every terminal operation that fails. Match on the
// class with errors.Is against the Err* values below.
type Error struct {
	Code   ErrorCode
	Detail string
	Err    error
}

var (
	ErrSessionNotFound   = &Error{Code: CodeSessionNotFound}
	ErrPtyCreationFailed = &Error{Code: CodePtyCreationFailed}
	ErrSpawnFailed       = &Error{Code: CodeSpawnFailed}
	ErrWriteFailed       = &Error{Code: CodeWriteFailed}
	ErrResizeFailed      = &Error{Code: CodeResizeFailed}
	ErrDecode            = &Error{Code: CodeDecodeError}
	ErrInvalidKind       = &Error{Code: CodeInvalidSessionType}
)

func newError(code ErrorCode, detail string, err error) *Error {
	if detail == "" && err != nil {
		detail = err.Error()
	}
	return &Error{Code: code, Detail: detail, Err: err}
}

func (e *Error) Error() string {
	prefix, ok := errorPrefixes[e.Code]
	if !ok {
		prefix = string(e.Code)
	}
	if e.Detail == "" {
		return prefix
	}
	return fmt.Sprintf("%s: %s", prefix, e.Detail)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}
