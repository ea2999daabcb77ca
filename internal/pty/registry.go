package pty

import (
	"fmt"
	"sort"
	"sync"
)

// Registry tracks all live PTY sessions by id. The map lock is held only for
// the map operation itself and never while a session's own lock is held.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates a new, empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
	}
}

// Add registers sess under its own id and returns that id. Ids are generated
// fresh for every session, so a duplicate is a bug in the caller and Add
// panics rather than replacing a live session.
func (r *Registry) Add(sess *Session) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[sess.id]; exists {
		panic(fmt.Sprintf("pty: session %q already registered", sess.id))
	}
	r.sessions[sess.id] = sess
	return sess.id
}

// Get returns the session with the given id. Callers must not keep the
// session beyond the operation they looked it up for.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sess, ok := r.sessions[id]
	return sess, ok
}

// Remove atomically pops the session with the given id. It does not close
// the session.
func (r *Registry) Remove(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	return sess, ok
}

// List returns a snapshot of every registered session, oldest first.
func (r *Registry) List() []SessionInfo {
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		sessions = append(sessions, sess)
	}
	r.mu.RUnlock()

	infos := make([]SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		infos = append(infos, sess.Info())
	}
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].CreatedAt.Equal(infos[j].CreatedAt) {
			return infos[i].ID < infos[j].ID
		}
		return infos[i].CreatedAt.Before(infos[j].CreatedAt)
	})
	return infos
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// drain removes and returns every session.
func (r *Registry) drain() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Session, 0, len(r.sessions))
	for id, sess := range r.sessions {
		out = append(out, sess)
		delete(r.sessions, id)
	}
	return out
}
