package pty

import (
	"bytes"
	"encoding/base64"
	"errors"
	"io"
	"testing"

	"github.com/user/cloudmux/internal/events"
)

type chunkReader struct {
	chunks [][]byte
	err    error
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if len(r.chunks) == 0 {
		return 0, r.err
	}
	n := copy(p, r.chunks[0])
	r.chunks = r.chunks[1:]
	return n, nil
}

func decodeOutputs(t *testing.T, rec *events.Recorder, id string) []byte {
	t.Helper()
	var out []byte
	for _, e := range rec.OnChannel(events.Channel(events.KindOutput, id)) {
		raw, err := base64.StdEncoding.DecodeString(e.Payload.(string))
		if err != nil {
			t.Fatalf("output payload is not base64: %v", err)
		}
		out = append(out, raw...)
	}
	return out
}

func TestStreamPublishesChunksThenClosed(t *testing.T) {
	rec := events.NewRecorder()
	r := &chunkReader{chunks: [][]byte{[]byte("one"), []byte("two")}, err: io.EOF}

	if err := Stream(rec, "s1", r); err != nil {
		t.Fatalf("Stream() error = %v", err)
	}

	evts := rec.Events()
	want := []string{"output:s1", "output:s1", "closed:s1"}
	if len(evts) != len(want) {
		t.Fatalf("got %d events, want %d: %+v", len(evts), len(want), evts)
	}
	for i, ch := range want {
		if evts[i].Channel != ch {
			t.Errorf("event %d channel = %q, want %q", i, evts[i].Channel, ch)
		}
	}
	if got := decodeOutputs(t, rec, "s1"); string(got) != "onetwo" {
		t.Fatalf("decoded output = %q", got)
	}
}

func TestStreamPublishesReadError(t *testing.T) {
	rec := events.NewRecorder()
	boom := errors.New("device gone")
	r := &chunkReader{chunks: [][]byte{[]byte("partial")}, err: boom}

	if err := Stream(rec, "s2", r); !errors.Is(err, boom) {
		t.Fatalf("Stream() error = %v, want %v", err, boom)
	}

	errs := rec.OnChannel("error:s2")
	if len(errs) != 1 || errs[0].Payload != "device gone" {
		t.Fatalf("error events = %+v", errs)
	}
	if rec.Count("closed:s2") != 0 {
		t.Fatal("closed must not be published after a read error")
	}
}

func TestStreamBinarySafe(t *testing.T) {
	rec := events.NewRecorder()
	payload := []byte{0x00, 0xff, 0xfe, 0x1b, '[', 'A', 0x80}
	r := &chunkReader{chunks: [][]byte{payload}, err: io.EOF}

	if err := Stream(rec, "bin", r); err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	if got := decodeOutputs(t, rec, "bin"); !bytes.Equal(got, payload) {
		t.Fatalf("decoded = %v, want %v", got, payload)
	}
}

func TestStreamPreservesOrder(t *testing.T) {
	rec := events.NewRecorder()
	pr, pw := io.Pipe()

	var want bytes.Buffer
	go func() {
		for i := 0; i < 500; i++ {
			chunk := bytes.Repeat([]byte{byte('a' + i%26)}, 1+i%37)
			want.Write(chunk)
			_, _ = pw.Write(chunk)
		}
		_ = pw.Close()
	}()

	if err := Stream(rec, "ord", pr); err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	if got := decodeOutputs(t, rec, "ord"); !bytes.Equal(got, want.Bytes()) {
		t.Fatalf("stream reordered or lost bytes: got %d bytes, want %d", len(got), want.Len())
	}
	if rec.Count("closed:ord") != 1 {
		t.Fatal("expected exactly one closed event")
	}
}

func TestIsEndOfStream(t *testing.T) {
	if !isEndOfStream(io.EOF) {
		t.Error("io.EOF should end the stream")
	}
	if isEndOfStream(errors.New("other")) {
		t.Error("arbitrary errors should not be treated as end of stream")
	}
}
