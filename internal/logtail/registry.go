package logtail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc"

	"github.com/user/cloudmux/internal/events"
)

const (
	defaultPollInterval = 2 * time.Second
	defaultLookback     = 30 * time.Second
)

// Options configure a Registry.
type Options struct {
	Source Source
	Sink   events.Sink
	// PollInterval is the wait between polls. Defaults to 2s.
	PollInterval time.Duration
	// Lookback is how far before start the first poll reaches. Defaults to 30s.
	Lookback time.Duration
	// Profile and Region apply when a request leaves them empty.
	Profile string
	Region  string
	Now     func() time.Time
	// OnStart runs for every new tail before its first poll.
	OnStart func(SessionInfo)
}

// Registry tracks running tails by id. Each tail runs its own polling
// goroutine, started by Start and stopped by Stop or StopAll.
type Registry struct {
	source   Source
	sink     events.Sink
	interval time.Duration
	lookback time.Duration
	profile  string
	region   string
	now      func() time.Time
	onStart  func(SessionInfo)
	newID    func() string

	ctx    context.Context
	cancel context.CancelFunc
	wg     conc.WaitGroup

	mu       sync.Mutex
	sessions map[string]*session
	closed   bool
}

// NewRegistry creates an empty Registry.
func NewRegistry(opts Options) *Registry {
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.Lookback <= 0 {
		opts.Lookback = defaultLookback
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Sink == nil {
		opts.Sink = events.Discard
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Registry{
		source:   opts.Source,
		sink:     opts.Sink,
		interval: opts.PollInterval,
		lookback: opts.Lookback,
		profile:  opts.Profile,
		region:   opts.Region,
		now:      opts.Now,
		onStart:  opts.OnStart,
		newID:    uuid.NewString,
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[string]*session),
	}
}

// Start registers a new tail and begins polling immediately.
func (r *Registry) Start(req StartRequest) (SessionInfo, error) {
	group := strings.TrimSpace(req.LogGroupName)
	if group == "" {
		return SessionInfo{}, errors.New("log_group_name is required")
	}
	if r.source == nil {
		return SessionInfo{}, errors.New("no log source configured")
	}
	profile := req.Profile
	if profile == "" {
		profile = r.profile
	}
	region := req.Region
	if region == "" {
		region = r.region
	}

	now := r.now()
	info := SessionInfo{
		ID:            r.newID(),
		LogGroupName:  group,
		FilterPattern: req.FilterPattern,
		Profile:       profile,
		Region:        region,
		Status:        StatusRunning,
		CreatedAt:     now.UTC(),
	}
	q := Query{LogGroup: group, Filter: req.FilterPattern, Profile: profile, Region: region}
	sess := newSession(info, q, now.Add(-r.lookback).UnixMilli())

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return SessionInfo{}, errors.New("log tail registry is shut down")
	}
	if _, exists := r.sessions[info.ID]; exists {
		r.mu.Unlock()
		panic(fmt.Sprintf("logtail: session %q already registered", info.ID))
	}
	r.sessions[info.ID] = sess
	r.mu.Unlock()

	if r.onStart != nil {
		r.onStart(info)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		// StopAll ran while onStart was busy and already stopped sess.
		r.sink.Emit(events.Channel(events.KindStopped, info.ID), nil)
		return SessionInfo{}, errors.New("log tail registry is shut down")
	}
	r.wg.Go(func() {
		sess.run(r.ctx, r.source, r.sink, r.interval)
	})

	slog.Info("log tail started", "session", info.ID, "log_group", group)
	return info, nil
}

// Stop removes the tail and signals its poller. A query already in flight
// may still complete and publish once.
func (r *Registry) Stop(id string) (SessionInfo, error) {
	r.mu.Lock()
	sess, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	if !ok {
		return SessionInfo{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	info := sess.stop()
	slog.Info("log tail stopped", "session", id, "status", info.Status)
	return info, nil
}

// Get returns the summary of one running tail.
func (r *Registry) Get(id string) (SessionInfo, error) {
	r.mu.Lock()
	sess, ok := r.sessions[id]
	r.mu.Unlock()
	if !ok {
		return SessionInfo{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return sess.snapshot(), nil
}

// List returns summaries of every running tail, oldest first.
func (r *Registry) List() []SessionInfo {
	r.mu.Lock()
	sessions := make([]*session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.Unlock()

	infos := make([]SessionInfo, 0, len(sessions))
	for _, s := range sessions {
		infos = append(infos, s.snapshot())
	}
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].CreatedAt.Equal(infos[j].CreatedAt) {
			return infos[i].ID < infos[j].ID
		}
		return infos[i].CreatedAt.Before(infos[j].CreatedAt)
	})
	return infos
}

// StopAll stops every tail, cancels in-flight queries and waits for all
// pollers to exit. The registry accepts no new tails afterwards.
func (r *Registry) StopAll() {
	r.mu.Lock()
	r.closed = true
	sessions := make([]*session, 0, len(r.sessions))
	for id, s := range r.sessions {
		sessions = append(sessions, s)
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	for _, s := range sessions {
		s.stop()
	}
	r.cancel()
	r.wg.Wait()
}
