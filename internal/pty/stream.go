package pty

import (
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"os"
	"syscall"

	"github.com/user/cloudmux/internal/events"
)

const streamBufferSize = 4096

// Stream drains r and republishes every nonempty chunk on output:<id> as
// standard base64, so arbitrary bytes survive a text-only sink. It
// publishes closed:<id> at end of stream, or error:<id> with the read
// error's text, and then returns. Chunks are published in read order.
func Stream(sink events.Sink, sessionID string, r io.Reader) error {
	buf := make([]byte, streamBufferSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			sink.Emit(events.Channel(events.KindOutput, sessionID), base64.StdEncoding.EncodeToString(buf[:n]))
		}
		if err != nil {
			if isEndOfStream(err) {
				sink.Emit(events.Channel(events.KindClosed, sessionID), nil)
				return nil
			}
			sink.Emit(events.Channel(events.KindError, sessionID), err.Error())
			return err
		}
		if n == 0 {
			sink.Emit(events.Channel(events.KindClosed, sessionID), nil)
			return nil
		}
	}
}

// A PTY master reports the child's hangup as EIO on Linux, and a master
// closed by Session.Close reports ErrClosed. Both mean the session is over.
func isEndOfStream(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, syscall.EIO) ||
		errors.Is(err, os.ErrClosed)
}

// startStreaming claims the session's reader and runs Stream on its own
// goroutine. It returns false if the reader was already claimed.
func (s *Session) startStreaming(sink events.Sink) bool {
	r := s.TakeReader()
	if r == nil {
		return false
	}
	go func() {
		err := Stream(sink, s.id, r)
		s.markEnded(err)
		if err != nil {
			slog.Debug("pty stream ended with error", "session", s.id, "error", err)
			return
		}
		slog.Debug("pty stream ended", "session", s.id)
	}()
	return true
}
