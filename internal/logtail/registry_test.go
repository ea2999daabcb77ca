package logtail

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/user/cloudmux/internal/events"
)

func newTestRegistry(t *testing.T, src Source, rec *events.Recorder) *Registry {
	t.Helper()
	r := NewRegistry(Options{
		Source:       src,
		Sink:         rec,
		PollInterval: 5 * time.Millisecond,
		Lookback:     30 * time.Second,
		Now:          func() time.Time { return time.UnixMilli(1_700_000_000_000) },
	})
	t.Cleanup(r.StopAll)
	return r
}

func TestRegistryStartUsesLookbackWatermark(t *testing.T) {
	src := &scriptedSource{}
	rec := events.NewRecorder()
	r := newTestRegistry(t, src, rec)

	info, err := r.Start(StartRequest{LogGroupName: "/ecs/api", FilterPattern: "ERROR"})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if info.ID == "" || info.Status != StatusRunning {
		t.Fatalf("info = %+v", info)
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(src.Queries()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("no query issued")
		}
		time.Sleep(time.Millisecond)
	}
	q := src.Queries()[0]
	if want := int64(1_700_000_000_000 - 30_000); q.Since != want {
		t.Fatalf("first Since = %d, want %d", q.Since, want)
	}
	if q.LogGroup != "/ecs/api" || q.Filter != "ERROR" {
		t.Fatalf("query = %+v", q)
	}
}

func TestRegistryStartRequiresLogGroup(t *testing.T) {
	r := newTestRegistry(t, &scriptedSource{}, events.NewRecorder())
	if _, err := r.Start(StartRequest{LogGroupName: "  "}); err == nil {
		t.Fatal("expected error for empty log group")
	}
	if len(r.List()) != 0 {
		t.Fatal("failed start must not register a session")
	}
}

func TestRegistryAppliesDefaultProfileAndRegion(t *testing.T) {
	src := &scriptedSource{}
	r := NewRegistry(Options{Source: src, Profile: "dev", Region: "eu-west-1", PollInterval: time.Hour})
	defer r.StopAll()

	info, err := r.Start(StartRequest{LogGroupName: "g", Region: "us-east-1"})
	if err != nil {
		t.Fatal(err)
	}
	if info.Profile != "dev" || info.Region != "us-east-1" {
		t.Fatalf("profile/region = %q/%q", info.Profile, info.Region)
	}
}

func TestRegistryStopRemovesSessionAndSilencesOutput(t *testing.T) {
	var calls int
	var mu sync.Mutex
	src := SourceFunc(func(_ context.Context, q Query) ([]LogEvent, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		return []LogEvent{evt(q.Since, fmt.Sprintf("line %d", calls))}, nil
	})
	rec := events.NewRecorder()
	r := newTestRegistry(t, src, rec)

	info, err := r.Start(StartRequest{LogGroupName: "g"})
	if err != nil {
		t.Fatal(err)
	}
	output := events.Channel(events.KindOutput, info.ID)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if !rec.WaitForChannel(ctx, output, 2) {
		t.Fatal("expected output before stop")
	}

	stopped, err := r.Stop(info.ID)
	if err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if stopped.Status != StatusStopped {
		t.Fatalf("status = %q", stopped.Status)
	}
	if !rec.WaitForChannel(ctx, events.Channel(events.KindStopped, info.ID), 1) {
		t.Fatal("stopped event not published")
	}

	settled := rec.Count(output)
	time.Sleep(30 * time.Millisecond)
	if got := rec.Count(output); got != settled {
		t.Fatalf("output grew after stop: %d -> %d", settled, got)
	}

	if _, err := r.Get(info.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("Get() after stop error = %v", err)
	}
	if _, err := r.Stop(info.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("second Stop() error = %v", err)
	}
}

func TestRegistrySessionsAreIndependent(t *testing.T) {
	src := SourceFunc(func(_ context.Context, q Query) ([]LogEvent, error) {
		if q.LogGroup == "broken" {
			return nil, errors.New("no such group")
		}
		return []LogEvent{evt(q.Since, q.LogGroup)}, nil
	})
	rec := events.NewRecorder()
	r := newTestRegistry(t, src, rec)

	good, err := r.Start(StartRequest{LogGroupName: "good"})
	if err != nil {
		t.Fatal(err)
	}
	bad, err := r.Start(StartRequest{LogGroupName: "broken"})
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if !rec.WaitForChannel(ctx, events.Channel(events.KindOutput, good.ID), 3) {
		t.Fatal("healthy tail stalled next to a failing one")
	}
	if !rec.WaitForChannel(ctx, events.Channel(events.KindError, bad.ID), 1) {
		t.Fatal("failing tail did not report")
	}
	if rec.Count(events.Channel(events.KindOutput, bad.ID)) != 0 {
		t.Fatal("failing tail published output")
	}

	if _, err := r.Stop(bad.ID); err != nil {
		t.Fatal(err)
	}
	list := r.List()
	if len(list) != 1 || list[0].ID != good.ID {
		t.Fatalf("List() = %+v, want only %s", list, good.ID)
	}
}

func TestRegistryStopAll(t *testing.T) {
	block := make(chan struct{})
	src := SourceFunc(func(ctx context.Context, _ Query) ([]LogEvent, error) {
		select {
		case <-block:
		case <-ctx.Done():
		}
		return nil, ctx.Err()
	})
	rec := events.NewRecorder()
	r := NewRegistry(Options{Source: src, Sink: rec})

	for i := 0; i < 3; i++ {
		if _, err := r.Start(StartRequest{LogGroupName: fmt.Sprintf("g%d", i)}); err != nil {
			t.Fatal(err)
		}
	}

	done := make(chan struct{})
	go func() {
		r.StopAll()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		close(block)
		t.Fatal("StopAll did not cancel in-flight queries")
	}

	if len(r.List()) != 0 {
		t.Fatal("sessions remain after StopAll")
	}
	stopped := 0
	for _, e := range rec.Events() {
		if kind, _, ok := events.Split(e.Channel); ok && kind == events.KindStopped {
			stopped++
		}
	}
	if stopped != 3 {
		t.Fatalf("stopped events = %d, want 3", stopped)
	}
	if _, err := r.Start(StartRequest{LogGroupName: "late"}); err == nil {
		t.Fatal("Start after StopAll should fail")
	}
}
