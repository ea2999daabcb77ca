// Package history keeps a durable record of terminal sessions and log
// tails after they leave the in-memory registries.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/user/cloudmux/internal/db"
	"github.com/user/cloudmux/internal/events"
	"github.com/user/cloudmux/internal/logtail"
	"github.com/user/cloudmux/internal/pty"
)

type Store struct {
	terminals *db.TerminalSessionRepo
	tails     *db.LogTailRepo
}

func NewStore(database *db.DB) *Store {
	return &Store{
		terminals: db.NewTerminalSessionRepo(database.SQL()),
		tails:     db.NewLogTailRepo(database.SQL()),
	}
}

func (s *Store) RecordTerminal(ctx context.Context, info pty.SessionInfo) error {
	spec, err := json.Marshal(info.SessionType)
	if err != nil {
		return fmt.Errorf("encode session type: %w", err)
	}
	return s.terminals.Create(ctx, &db.TerminalSession{
		ID:          info.ID,
		Title:       info.Title,
		SessionType: string(spec),
		Kind:        info.SessionType.Type,
		Status:      string(info.Status),
		Cols:        int(info.Cols),
		Rows:        int(info.Rows),
		CreatedAt:   info.CreatedAt,
	})
}

// TerminalCreated records a new session. It matches pty.Options.OnCreate,
// which runs before the session publishes anything.
func (s *Store) TerminalCreated(info pty.SessionInfo) {
	if err := s.RecordTerminal(context.Background(), info); err != nil {
		slog.Warn("record terminal session failed", "session", info.ID, "error", err)
	}
}

func (s *Store) TerminalResized(ctx context.Context, id string, cols, rows uint16) error {
	return s.terminals.UpdateGeometry(ctx, id, int(cols), int(rows))
}

// TerminalEnded records the first terminal status reported for id.
func (s *Store) TerminalEnded(ctx context.Context, id string, status pty.Status, detail string) error {
	_, err := s.terminals.MarkEnded(ctx, id, string(status), detail)
	return err
}

func (s *Store) Terminals(ctx context.Context, filter db.ListFilter) ([]*db.TerminalSession, error) {
	return s.terminals.List(ctx, filter)
}

// ForgetTerminal deletes the record of an ended session.
func (s *Store) ForgetTerminal(ctx context.Context, id string) (bool, error) {
	return s.terminals.Delete(ctx, id)
}

func (s *Store) RecordTail(ctx context.Context, info logtail.SessionInfo) error {
	return s.tails.Create(ctx, &db.LogTail{
		ID:            info.ID,
		LogGroupName:  info.LogGroupName,
		FilterPattern: info.FilterPattern,
		Profile:       info.Profile,
		Region:        info.Region,
		Status:        string(info.Status),
		CreatedAt:     info.CreatedAt,
	})
}

// TailStarted records a new tail. It matches logtail.Options.OnStart.
func (s *Store) TailStarted(info logtail.SessionInfo) {
	if err := s.RecordTail(context.Background(), info); err != nil {
		slog.Warn("record log tail failed", "session", info.ID, "error", err)
	}
}

// TailStopped stores the status the registry reported when the tail was
// stopped. It overrides whatever the event stream recorded.
func (s *Store) TailStopped(ctx context.Context, info logtail.SessionInfo) error {
	return s.tails.SetFinalStatus(ctx, info.ID, string(info.Status))
}

func (s *Store) Tails(ctx context.Context, filter db.ListFilter) ([]*db.LogTail, error) {
	return s.tails.List(ctx, filter)
}

// apply updates history for one non-output event. Channel ids are unique
// across both tables, so each update lands in at most one of them.
func (s *Store) apply(ctx context.Context, kind events.Kind, id string, payload any) error {
	switch kind {
	case events.KindClosed:
		_, err := s.terminals.MarkEnded(ctx, id, string(pty.StatusClosed), "")
		return err
	case events.KindStopped:
		_, err := s.tails.MarkEnded(ctx, id, string(logtail.StatusStopped))
		return err
	case events.KindError:
		msg := fmt.Sprint(payload)
		if _, err := s.terminals.MarkEnded(ctx, id, string(pty.StatusError), msg); err != nil {
			return err
		}
		_, err := s.tails.RecordError(ctx, id, msg)
		return err
	}
	return nil
}
