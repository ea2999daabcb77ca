package events

import (
	"context"
	"sync"
	"time"
)

// Event is one recorded emission.
type Event struct {
	Channel string
	Payload any
	At      time.Time
}

// Recorder is an in-memory Sink that keeps every event in arrival order.
// It is mainly useful in tests, where WaitFor lets a caller block until a
// background worker has published something.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	notify chan struct{}
}

func NewRecorder() *Recorder {
	return &Recorder{notify: make(chan struct{})}
}

func (r *Recorder) Emit(channel string, payload any) {
	r.mu.Lock()
	r.events = append(r.events, Event{Channel: channel, Payload: payload, At: time.Now()})
	close(r.notify)
	r.notify = make(chan struct{})
	r.mu.Unlock()
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// OnChannel returns the recorded events published on channel.
func (r *Recorder) OnChannel(channel string) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.Channel == channel {
			out = append(out, e)
		}
	}
	return out
}

// Count returns how many events were published on channel.
func (r *Recorder) Count(channel string) int {
	return len(r.OnChannel(channel))
}

// WaitFor blocks until match returns true for the recorded events or ctx is
// done. It returns false on timeout.
func (r *Recorder) WaitFor(ctx context.Context, match func([]Event) bool) bool {
	for {
		r.mu.Lock()
		ok := match(r.events)
		ch := r.notify
		r.mu.Unlock()
		if ok {
			return true
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return false
		}
	}
}

// WaitForChannel blocks until at least n events arrived on channel.
func (r *Recorder) WaitForChannel(ctx context.Context, channel string, n int) bool {
	return r.WaitFor(ctx, func(evts []Event) bool {
		count := 0
		for _, e := range evts {
			if e.Channel == channel {
				count++
			}
		}
		return count >= n
	})
}
