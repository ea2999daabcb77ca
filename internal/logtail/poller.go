package logtail

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/user/cloudmux/internal/events"
)

// session is one running tail.
//
// Stopping uses two signals on purpose. stopped is checked at the top of
// each loop iteration, which covers a stop that lands while a query is in
// flight or between iterations. shutdown is closed once and interrupts the
// wait between polls, which the flag alone cannot do. Stop sets both.
type session struct {
	id string

	mu      sync.Mutex
	info    SessionInfo
	lastErr error

	stopped  atomic.Bool
	shutdown chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	query     Query
	watermark int64
}

func newSession(info SessionInfo, q Query, watermark int64) *session {
	return &session{
		id:        info.ID,
		info:      info,
		query:     q,
		watermark: watermark,
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// stop fires both cancellation signals and records the final status.
func (s *session) stop() SessionInfo {
	s.stopped.Store(true)
	s.stopOnce.Do(func() { close(s.shutdown) })

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.info.Status == StatusRunning {
		if s.lastErr != nil {
			s.info.Status = StatusError
		} else {
			s.info.Status = StatusStopped
		}
	}
	return s.info
}

func (s *session) snapshot() SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.info
}

func (s *session) setLastErr(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
}

// run polls until stopped or ctx is done, then publishes stopped:<id>.
func (s *session) run(ctx context.Context, src Source, sink events.Sink, interval time.Duration) {
	id := s.id
	defer func() {
		sink.Emit(events.Channel(events.KindStopped, id), nil)
		close(s.done)
		slog.Debug("log tail stopped", "session", id)
	}()

	for {
		if s.stopped.Load() {
			return
		}

		s.poll(ctx, src, sink)

		timer := time.NewTimer(interval)
		select {
		case <-timer.C:
		case <-s.shutdown:
			timer.Stop()
			return
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}

// poll issues one query at the current watermark. Failures are published
// and otherwise ignored; the next tick simply tries again.
func (s *session) poll(ctx context.Context, src Source, sink events.Sink) {
	id := s.id
	q := s.query
	q.Since = s.watermark

	batch, err := src.Tail(ctx, q)
	if err != nil {
		s.setLastErr(err)
		sink.Emit(events.Channel(events.KindError, id), err.Error())
		slog.Warn("log tail poll failed", "session", id, "log_group", q.LogGroup, "error", err)
		return
	}
	s.setLastErr(nil)

	// Anything before the watermark was already published.
	fresh := batch[:0:0]
	for _, e := range batch {
		if e.Timestamp >= q.Since {
			fresh = append(fresh, e)
		}
	}
	if len(fresh) == 0 {
		return
	}

	sink.Emit(events.Channel(events.KindOutput, id), fresh)
	s.watermark = nextWatermark(s.watermark, fresh)
}

// nextWatermark returns one millisecond past the newest event, never moving
// backwards. Events that share the boundary millisecond but arrive after
// the query ran are skipped; that loss is accepted in exchange for never
// publishing an event twice.
func nextWatermark(current int64, batch []LogEvent) int64 {
	next := current
	for _, e := range batch {
		if e.Timestamp+1 > next {
			next = e.Timestamp + 1
		}
	}
	return next
}
