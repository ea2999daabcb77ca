package events

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/nats-io/nats.go"
)

const defaultSubjectPrefix = "cloudmux"

type publisher interface {
	Publish(subject string, data []byte) error
}

// NATSSink mirrors every event onto a NATS subject so that other processes can
// follow session output without a websocket. Channel "output:<id>" becomes
// subject "<prefix>.output.<id>".
type NATSSink struct {
	conn   *nats.Conn
	pub    publisher
	prefix string
}

// DialNATS connects to url and returns a sink publishing under prefix
// (defaults to "cloudmux").
func DialNATS(url, prefix string) (*NATSSink, error) {
	if url == "" {
		url = nats.DefaultURL
	}
	conn, err := nats.Connect(url, nats.Name("cloudmux-events"))
	if err != nil {
		return nil, err
	}
	s := newNATSSink(conn, prefix)
	s.conn = conn
	return s, nil
}

func newNATSSink(pub publisher, prefix string) *NATSSink {
	if prefix == "" {
		prefix = defaultSubjectPrefix
	}
	return &NATSSink{pub: pub, prefix: prefix}
}

// Subject maps a channel name to its NATS subject.
func (s *NATSSink) Subject(channel string) string {
	kind, id, ok := Split(channel)
	if !ok {
		return s.prefix + ".misc." + sanitizeToken(channel)
	}
	return s.prefix + "." + string(kind) + "." + sanitizeToken(id)
}

func (s *NATSSink) Emit(channel string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Warn("nats sink: marshal payload", "channel", channel, "error", err)
		return
	}
	if err := s.pub.Publish(s.Subject(channel), data); err != nil {
		slog.Warn("nats sink: publish", "channel", channel, "error", err)
	}
}

// Close drains and closes the underlying connection, if this sink owns one.
func (s *NATSSink) Close() {
	if s.conn != nil {
		_ = s.conn.Drain()
		s.conn.Close()
	}
}

// NATS subject tokens may not contain separators or wildcards.
func sanitizeToken(v string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\n', '\r':
			return '_'
		}
		return r
	}, v)
}
