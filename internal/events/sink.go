// Package events defines the channel-based sink that background session
// workers publish to, and the channel naming shared by every publisher.
package events

import (
	"strings"
)

// Kind is the event family encoded as the channel prefix.
type Kind string

const (
	KindOutput  Kind = "output"
	KindClosed  Kind = "closed"
	KindStopped Kind = "stopped"
	KindError   Kind = "error"
)

// Sink receives events published under a session-scoped channel name.
// Implementations must be safe for concurrent use and must not block the
// caller for long: streamers and pollers call Emit from their own goroutine.
type Sink interface {
	Emit(channel string, payload any)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(channel string, payload any)

func (f SinkFunc) Emit(channel string, payload any) { f(channel, payload) }

// Channel returns the channel name for an event kind and session id,
// e.g. "output:7f3c...".
func Channel(kind Kind, sessionID string) string {
	return string(kind) + ":" + sessionID
}

// Split parses a channel name produced by Channel. ok is false when the name
// has no recognised kind prefix.
func Split(channel string) (kind Kind, sessionID string, ok bool) {
	prefix, id, found := strings.Cut(channel, ":")
	if !found || id == "" {
		return "", "", false
	}
	switch Kind(prefix) {
	case KindOutput, KindClosed, KindStopped, KindError:
		return Kind(prefix), id, true
	default:
		return "", "", false
	}
}

// Multi fans every event out to each sink in order. Nil sinks are skipped.
type Multi []Sink

func (m Multi) Emit(channel string, payload any) {
	for _, s := range m {
		if s != nil {
			s.Emit(channel, payload)
		}
	}
}

// Discard drops every event.
var Discard Sink = SinkFunc(func(string, any) {})
