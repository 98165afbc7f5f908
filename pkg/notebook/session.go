package notebook

import (
	"context"
	"sync"
	"time"
)

// Session is one logical conversation bound to one tab. The Registry owns
// every Session; other components only hold one for the duration of a question.
type Session struct {
	id        string
	target    string
	createdAt time.Time

	// slot holds a token while a question is in flight.
	slot chan struct{}

	mu           sync.Mutex
	adapter      PageSignalAdapter
	lastActivity time.Time
	questions    int
	inFlight     bool
	closing      bool
	closed       bool
}

func newSession(id, target string, adapter PageSignalAdapter, now time.Time) *Session {
	return &Session{
		id:           id,
		target:       target,
		createdAt:    now,
		slot:         make(chan struct{}, 1),
		adapter:      adapter,
		lastActivity: now,
	}
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// TargetResourceID returns the resource the session was created for.
func (s *Session) TargetResourceID() string { return s.target }

// CreatedAt returns the creation time.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// LastActivityAt returns the time of the last successful question.
func (s *Session) LastActivityAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// Adapter returns the tab currently bound to the session.
func (s *Session) Adapter() PageSignalAdapter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.adapter
}

// Info returns a metadata snapshot.
func (s *Session) Info() SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionInfo{
		ID:               s.id,
		TargetResourceID: s.target,
		CreatedAt:        s.createdAt,
		LastActivityAt:   s.lastActivity,
		QuestionCount:    s.questions,
		InFlight:         s.inFlight,
	}
}

// acquire waits for the in-flight slot. It fails with ErrSessionClosed when
// the session was closed or evicted while waiting.
func (s *Session) acquire(ctx context.Context) error {
	select {
	case s.slot <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.closing {
		<-s.slot
		return ErrSessionClosed
	}
	s.inFlight = true
	return nil
}

// release frees the slot. A close requested during the question happens now.
func (s *Session) release() {
	s.mu.Lock()
	s.inFlight = false
	var adapter PageSignalAdapter
	if s.closing && !s.closed {
		s.closed = true
		adapter = s.adapter
	}
	s.mu.Unlock()
	<-s.slot

	if adapter != nil {
		_ = adapter.Close()
	}
}

// touch records a successful question.
func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActivity = now
	s.questions++
}

// idleSince reports whether the session has no question in flight and has
// been inactive since before cutoff.
func (s *Session) idleSince(cutoff time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.inFlight && !s.closed && s.lastActivity.Before(cutoff)
}

// claimIdle marks an idle session closed and returns its adapter for
// release. It refuses sessions with a question in flight.
func (s *Session) claimIdle() (PageSignalAdapter, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight || s.closed || s.closing {
		return nil, false
	}
	s.closed = true
	return s.adapter, true
}

// requestClose closes the session now when idle, or after the in-flight
// question otherwise. It returns the adapter to release immediately, if any,
// and whether the close waits for a question.
func (s *Session) requestClose() (PageSignalAdapter, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, false
	}
	if s.closing {
		return nil, true
	}
	if s.inFlight {
		s.closing = true
		return nil, true
	}
	s.closed = true
	return s.adapter, false
}

// isClosing reports whether the session is closed or will close once its
// question ends.
func (s *Session) isClosing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed || s.closing
}

// drained reports whether the session is closed with no question running.
func (s *Session) drained() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed && !s.inFlight
}

// awaitIdle waits until no question holds the slot.
func (s *Session) awaitIdle(ctx context.Context) error {
	select {
	case s.slot <- struct{}{}:
		<-s.slot
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// forceClose marks the session closed regardless of state.
func (s *Session) forceClose() PageSignalAdapter {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.adapter
}

// swapAdapter replaces the tab and returns the previous one. It refuses a
// session that is closed or closing.
func (s *Session) swapAdapter(adapter PageSignalAdapter, now time.Time) (PageSignalAdapter, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.closing {
		return nil, false
	}
	old := s.adapter
	s.adapter = adapter
	s.lastActivity = now
	return old, true
}
