package history

import (
	"context"
	"log/slog"

	"github.com/user/cloudmux/internal/events"
)

const queueSize = 256

type update struct {
	kind    events.Kind
	id      string
	payload any
}

// Sink forwards every event to next and records session endings in the
// store. Store writes happen on the Run goroutine so Emit never waits on
// the database.
type Sink struct {
	next  events.Sink
	store *Store
	queue chan update
}

func NewSink(next events.Sink, store *Store) *Sink {
	if next == nil {
		next = events.Discard
	}
	return &Sink{next: next, store: store, queue: make(chan update, queueSize)}
}

func (s *Sink) Emit(channel string, payload any) {
	s.next.Emit(channel, payload)

	kind, id, ok := events.Split(channel)
	if !ok || kind == events.KindOutput {
		return
	}
	select {
	case s.queue <- update{kind: kind, id: id, payload: payload}:
	default:
		slog.Warn("history queue full, dropping update", "channel", channel)
	}
}

// Run applies queued updates until ctx is done, then drains what is left.
func (s *Sink) Run(ctx context.Context) {
	for {
		select {
		case u := <-s.queue:
			s.apply(u)
		case <-ctx.Done():
			for {
				select {
				case u := <-s.queue:
					s.apply(u)
				default:
					return
				}
			}
		}
	}
}

func (s *Sink) apply(u update) {
	if err := s.store.apply(context.Background(), u.kind, u.id, u.payload); err != nil {
		slog.Warn("history update failed", "kind", u.kind, "session", u.id, "error", err)
	}
}
