// Package realtime pushes booking events to connected websocket sessions.
package realtime

import (
	"sync"

	"github.com/reignacare/service-booking/internal/domain/party"
)

const defaultOutboxSize = 32

// Session is one live connection's outbound queue.
type Session struct {
	ref    party.Ref
	outbox chan []byte
	done   chan struct{}
	once   sync.Once
}

// NewSession creates a session for ref with a buffered outbox.
func NewSession(ref party.Ref, buffer int) *Session {
	if buffer <= 0 {
		buffer = defaultOutboxSize
	}
	return &Session{
		ref:    ref,
		outbox: make(chan []byte, buffer),
		done:   make(chan struct{}),
	}
}

// Ref returns the party the session belongs to.
func (s *Session) Ref() party.Ref { return s.ref }

// Outbox returns the channel the writer drains.
func (s *Session) Outbox() <-chan []byte { return s.outbox }

// Done is closed when the session is closed.
func (s *Session) Done() <-chan struct{} { return s.done }

// Close marks the session closed. The outbox is never closed, so late offers cannot panic.
func (s *Session) Close() {
	s.once.Do(func() { close(s.done) })
}

// offer queues msg without blocking. A full or closed outbox drops it.
func (s *Session) offer(msg []byte) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.outbox <- msg:
		return true
	default:
		return false
	}
}

// Registry tracks live sessions by party.
type Registry struct {
	mu       sync.RWMutex
	sessions map[party.Ref]map[*Session]struct{}
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[party.Ref]map[*Session]struct{})}
}

// Register adds s under its party.
func (r *Registry) Register(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.sessions[s.ref]
	if !ok {
		set = make(map[*Session]struct{})
		r.sessions[s.ref] = set
	}
	set[s] = struct{}{}
}

// Unregister removes and closes s.
func (r *Registry) Unregister(s *Session) {
	r.mu.Lock()
	if set, ok := r.sessions[s.ref]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(r.sessions, s.ref)
		}
	}
	r.mu.Unlock()
	s.Close()
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, set := range r.sessions {
		n += len(set)
	}
	return n
}

// IsOnline reports whether ref has at least one live session.
func (r *Registry) IsOnline(ref party.Ref) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions[ref]) > 0
}

func (r *Registry) each(fn func(*Session)) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, set := range r.sessions {
		for s := range set {
			fn(s)
		}
	}
}

func (r *Registry) eachOf(ref party.Ref, fn func(*Session)) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for s := range r.sessions[ref] {
		fn(s)
	}
}
