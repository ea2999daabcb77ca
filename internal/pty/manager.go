package pty

import (
	"encoding/base64"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/user/cloudmux/internal/events"
)

// Options configure a Manager.
type Options struct {
	Commands CommandConfig
	// Env is appended to the environment of every spawned process.
	Env []string
	// Sink receives output:<id>, closed:<id> and error:<id> events.
	Sink events.Sink
	// OnCreate runs for every new session before its output is streamed,
	// so it sees the session ahead of any event published for it.
	OnCreate func(SessionInfo)
}

// CreateRequest describes a session to open.
type CreateRequest struct {
	SessionType KindSpec `json:"session_type"`
	Title       string   `json:"title,omitempty"`
	// Shell overrides the configured shell for this session.
	Shell string `json:"shell,omitempty"`
}

// CreateResult is returned by Manager.Create.
type CreateResult struct {
	SessionID string      `json:"session_id"`
	Info      SessionInfo `json:"info"`
}

// Manager owns the registry of PTY sessions and implements the request-level
// operations on it: every caller goes through the Manager, never through a
// retained *Session.
type Manager struct {
	registry *Registry
	commands CommandConfig
	env      []string
	sink     events.Sink
	onCreate func(SessionInfo)
	newID    func() string
}

// NewManager creates a Manager with an empty registry.
func NewManager(opts Options) *Manager {
	sink := opts.Sink
	if sink == nil {
		sink = events.Discard
	}
	return &Manager{
		registry: NewRegistry(),
		commands: opts.Commands.withDefaults(),
		env:      append([]string(nil), opts.Env...),
		sink:     sink,
		onCreate: opts.OnCreate,
		newID:    uuid.NewString,
	}
}

// Registry returns the underlying session registry.
func (m *Manager) Registry() *Registry { return m.registry }

// Create builds the command for the requested kind, spawns it in a PTY,
// starts streaming its output and registers the session. A session that
// fails to spawn is never registered.
func (m *Manager) Create(req CreateRequest) (CreateResult, error) {
	kind, err := req.SessionType.Kind()
	if err != nil {
		return CreateResult{}, newError(CodeInvalidSessionType, "", err)
	}

	cfg := m.commands
	if shell := strings.TrimSpace(req.Shell); shell != "" {
		cfg.Shell = shell
	}
	argv, err := BuildCommand(kind, cfg)
	if err != nil {
		return CreateResult{}, newError(CodeInvalidSessionType, "", err)
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = DefaultTitle(kind)
	}

	id := m.newID()
	sess, err := Open(id, title, kind, argv, m.env)
	if err != nil {
		return CreateResult{}, err
	}

	sess.MarkRunning()
	info := sess.Info()
	if m.onCreate != nil {
		m.onCreate(info)
	}
	sess.startStreaming(m.sink)
	m.registry.Add(sess)

	slog.Info("terminal session created", "session", id, "type", info.SessionType.Type, "command", argv[0])

	return CreateResult{SessionID: id, Info: info}, nil
}

// Write decodes base64 data and writes it to the session. An unknown id is
// reported before the payload is decoded.
func (m *Manager) Write(id, data string) error {
	if _, ok := m.registry.Get(id); !ok {
		return newError(CodeSessionNotFound, id, nil)
	}
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return newError(CodeDecodeError, "", err)
	}
	return m.WriteBytes(id, raw)
}

// WriteBytes writes raw bytes to the session.
func (m *Manager) WriteBytes(id string, data []byte) error {
	sess, ok := m.registry.Get(id)
	if !ok {
		return newError(CodeSessionNotFound, id, nil)
	}
	return sess.Write(data)
}

// Resize changes the session's terminal geometry.
func (m *Manager) Resize(id string, cols, rows uint16) error {
	sess, ok := m.registry.Get(id)
	if !ok {
		return newError(CodeSessionNotFound, id, nil)
	}
	return sess.Resize(cols, rows)
}

// Close removes the session and terminates its process. Closing an unknown
// id is a no-op; ok reports whether a session was removed.
func (m *Manager) Close(id string) (info SessionInfo, ok bool) {
	sess, ok := m.registry.Remove(id)
	if !ok {
		return SessionInfo{}, false
	}
	sess.Close()
	slog.Info("terminal session closed", "session", id)
	return sess.Info(), true
}

// Get returns a snapshot of one session.
func (m *Manager) Get(id string) (SessionInfo, error) {
	sess, ok := m.registry.Get(id)
	if !ok {
		return SessionInfo{}, newError(CodeSessionNotFound, id, nil)
	}
	return sess.Info(), nil
}

// List returns a snapshot of every live session.
func (m *Manager) List() []SessionInfo {
	return m.registry.List()
}

// CloseAll terminates and removes all sessions.
func (m *Manager) CloseAll() {
	for _, sess := range m.registry.drain() {
		sess.Close()
	}
}
