package pty

import (
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	creackpty "github.com/creack/pty"
)

// Session wraps a child process running inside a PTY.
type Session struct {
	id        string
	title     string
	kind      Kind
	createdAt time.Time

	cmd  *exec.Cmd
	ptmx *os.File

	// mu guards status and geometry. It is never held across a write to
	// the PTY.
	mu     sync.Mutex
	status Status
	cols   uint16
	rows   uint16

	// writeMu serializes writers so chunks from different callers never
	// interleave.
	writeMu sync.Mutex

	// reader is the read half of the PTY. It has exactly one owner: the
	// session until TakeReader is called, the streamer afterwards.
	readerMu sync.Mutex
	reader   io.Reader

	exited    chan struct{}
	closeOnce sync.Once
}

// Open allocates a PTY, spawns argv attached to its follower side and
// returns the session in the starting state with an 80x24 geometry.
func Open(id, title string, kind Kind, argv []string, env []string) (*Session, error) {
	if len(argv) == 0 {
		return nil, newError(CodeSpawnFailed, "argv must not be empty", nil)
	}

	ptmx, tty, err := creackpty.Open()
	if err != nil {
		return nil, newError(CodePtyCreationFailed, "", err)
	}
	// The child keeps its own copy of the follower side.
	defer tty.Close()

	if err := creackpty.Setsize(ptmx, &creackpty.Winsize{Cols: defaultCols, Rows: defaultRows}); err != nil {
		_ = ptmx.Close()
		return nil, newError(CodePtyCreationFailed, "", err)
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Env = append(os.Environ(), env...)
	cmd.Stdin = tty
	cmd.Stdout = tty
	cmd.Stderr = tty
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true, Setctty: true}

	if err := cmd.Start(); err != nil {
		_ = ptmx.Close()
		return nil, newError(CodeSpawnFailed, "", err)
	}

	s := &Session{
		id:        id,
		title:     title,
		kind:      kind,
		createdAt: time.Now().UTC(),
		status:    StatusStarting,
		cmd:       cmd,
		ptmx:      ptmx,
		cols:      defaultCols,
		rows:      defaultRows,
		reader:    ptmx,
		exited:    make(chan struct{}),
	}

	go s.reap()

	return s, nil
}

// reap waits for the child so it never lingers as a zombie.
func (s *Session) reap() {
	err := s.cmd.Wait()
	close(s.exited)
	slog.Debug("pty child exited", "session", s.id, "error", err)
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Kind returns the session kind it was created with.
func (s *Session) Kind() Kind { return s.kind }

// Exited is closed once the child process has been reaped.
func (s *Session) Exited() <-chan struct{} { return s.exited }

// Info returns a snapshot of the session's metadata.
func (s *Session) Info() SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionInfo{
		ID:          s.id,
		Title:       s.title,
		SessionType: SpecOf(s.kind),
		CreatedAt:   s.createdAt,
		Status:      s.status,
		Cols:        s.cols,
		Rows:        s.rows,
	}
}

// Status returns the current lifecycle status.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// advance moves to next if the state machine allows it. Callers hold s.mu.
func (s *Session) advance(next Status) bool {
	if !s.status.CanTransition(next) {
		return false
	}
	s.status = next
	return true
}

// MarkRunning moves a starting session to running.
func (s *Session) MarkRunning() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advance(StatusRunning)
}

// TakeReader transfers ownership of the read half to the caller. It returns
// nil once the reader has already been taken; the session never reads from
// it itself.
func (s *Session) TakeReader() io.Reader {
	s.readerMu.Lock()
	defer s.readerMu.Unlock()
	r := s.reader
	s.reader = nil
	return r
}

// Write sends data to the PTY (and therefore to the child process's stdin).
// The write completes before Write returns. A write blocked on a full PTY
// buffer is released with an error once the session is closed.
func (s *Session) Write(data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if status := s.Status(); !status.Live() {
		return newError(CodeWriteFailed, "session is "+string(status), nil)
	}
	if _, err := s.ptmx.Write(data); err != nil {
		return newError(CodeWriteFailed, "", err)
	}
	return nil
}

// Resize changes the PTY window size. The master side is retained for the
// session's whole life, so the child sees the new size immediately.
func (s *Session) Resize(cols, rows uint16) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.status.Live() {
		return newError(CodeResizeFailed, "session is "+string(s.status), nil)
	}
	if cols == 0 || rows == 0 {
		return newError(CodeResizeFailed, "cols and rows must be positive", nil)
	}
	if err := creackpty.Setsize(s.ptmx, &creackpty.Winsize{Cols: cols, Rows: rows}); err != nil {
		return newError(CodeResizeFailed, "", err)
	}

	s.cols = cols
	s.rows = rows
	return nil
}

// Close kills the child process and closes the PTY master. It waits neither
// for the process to exit nor for an in-progress Write; the kill hangs up
// the PTY, which fails that write. It is safe to call Close multiple times.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.advance(StatusClosing)
		s.mu.Unlock()

		// The process may already be gone; Kill then reports an error we
		// have no use for.
		if s.cmd.Process != nil {
			_ = s.cmd.Process.Kill()
		}
		_ = s.ptmx.Close()

		s.mu.Lock()
		s.advance(StatusClosed)
		s.mu.Unlock()
	})
}

// markEnded records how the output stream finished.
func (s *Session) markEnded(streamErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if streamErr != nil {
		s.advance(StatusError)
		return
	}
	s.advance(StatusClosed)
}
