package notebook

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/entrhq/notebook-mcp/pkg/logging"
	"github.com/entrhq/notebook-mcp/pkg/metrics"
)

// DefaultCapacity is the session limit when none is configured.
const DefaultCapacity = 10

// acquireAttempts bounds how often Acquire re-resolves a session that was
// evicted while the caller waited for it.
const acquireAttempts = 3

// RegistryOptions configures a Registry.
type RegistryOptions struct {
	// Capacity is the maximum number of concurrent sessions
	Capacity int

	Logger  logging.Logger
	Metrics *metrics.Metrics

	// Now and NewID are overridable for tests
	Now   func() time.Time
	NewID func() string
}

// Registry owns every session. It enforces the capacity limit, evicts the
// least recently active idle session when full, and serializes creation per id.
type Registry struct {
	factory AdapterFactory
	cap     int
	log     logging.Logger
	metrics *metrics.Metrics
	now     func() time.Time
	newID   func() string

	mu       sync.Mutex
	sessions map[string]*Session
	pending  int

	// draining holds sessions removed while a question was in flight. A new
	// session with the same id is not created until the question ends.
	draining map[string]*Session

	creating singleflight.Group

	// identity is held for reading while tabs are opened and for writing
	// while the shared browser identity is replaced by a login.
	identity sync.RWMutex
}

// NewRegistry creates a registry that opens tabs through factory.
func NewRegistry(factory AdapterFactory, opts RegistryOptions) *Registry {
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = func() string { return uuid.New().String() }
	}
	return &Registry{
		factory:  factory,
		cap:      opts.Capacity,
		log:      logging.OrNop(opts.Logger),
		metrics:  opts.Metrics,
		now:      opts.Now,
		newID:    opts.NewID,
		sessions: make(map[string]*Session),
		draining: make(map[string]*Session),
	}
}

// Capacity returns the session limit.
func (r *Registry) Capacity() int { return r.cap }

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Get returns the live session with the given id.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

// List returns metadata for every live session, oldest first.
func (r *Registry) List() []SessionInfo {
	r.mu.Lock()
	all := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		all = append(all, s)
	}
	r.mu.Unlock()

	infos := make([]SessionInfo, 0, len(all))
	for _, s := range all {
		infos = append(infos, s.Info())
	}
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].CreatedAt.Equal(infos[j].CreatedAt) {
			return infos[i].ID < infos[j].ID
		}
		return infos[i].CreatedAt.Before(infos[j].CreatedAt)
	})
	return infos
}

// Resolve returns the session for id, creating it for target when absent.
// An empty id gets a fresh generated one. When an existing session is bound
// to a different target it is recreated under the same id once its current
// question, if any, has finished. Concurrent calls for the same absent id
// observe a single creation.
func (r *Registry) Resolve(ctx context.Context, id, target string) (*Session, error) {
	return r.resolve(ctx, id, target, "")
}

// resolve is Resolve with a target to use only when the id must be created.
func (r *Registry) resolve(ctx context.Context, id, target, fallback string) (*Session, error) {
	if id == "" {
		id = r.newID()
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if s, ok := r.Get(id); ok {
			if target == "" || target == s.target {
				return s, nil
			}
			r.log.Infof("Session %s switching target from %s to %s", id, s.target, target)
			if err := r.detach(id, s, metrics.EvictionRetarget); err != nil {
				return nil, err
			}
			continue
		}

		if err := r.awaitDrained(ctx, id); err != nil {
			return nil, err
		}

		want := target
		if want == "" {
			want = fallback
		}
		if want == "" {
			return nil, ErrMissingTarget
		}

		v, err, _ := r.creating.Do(id, func() (interface{}, error) {
			return r.create(ctx, id, want)
		})
		if errors.Is(err, errDraining) {
			continue
		}
		if err != nil {
			return nil, err
		}
		s := v.(*Session)
		if target != "" && target != s.target {
			// A concurrent caller created it for another target.
			continue
		}
		return s, nil
	}
}

// awaitDrained waits until no question of a removed session with this id is
// still running.
func (r *Registry) awaitDrained(ctx context.Context, id string) error {
	r.mu.Lock()
	old, ok := r.draining[id]
	r.mu.Unlock()
	if !ok {
		return nil
	}

	if err := old.awaitIdle(ctx); err != nil {
		return err
	}
	r.mu.Lock()
	if r.draining[id] == old {
		delete(r.draining, id)
	}
	r.mu.Unlock()
	return nil
}

// Acquire resolves the session and waits for exclusive use of it. The
// returned release function must be called once the question is finished.
func (r *Registry) Acquire(ctx context.Context, id, target string) (*Session, func(), error) {
	if id == "" {
		id = r.newID()
	}

	var (
		lastErr  error
		fallback string
	)
	for attempt := 0; attempt < acquireAttempts; attempt++ {
		s, err := r.resolve(ctx, id, target, fallback)
		if err != nil {
			return nil, nil, err
		}
		err = s.acquire(ctx)
		if err == nil {
			return s, s.release, nil
		}
		if !errors.Is(err, ErrSessionClosed) {
			return nil, nil, err
		}
		// Closed while waiting; resolve again, recreating it for the same
		// target unless the id was rebound meanwhile.
		lastErr = err
		fallback = s.target
	}
	return nil, nil, fmt.Errorf("acquire session %s: %w", id, lastErr)
}

func (r *Registry) create(ctx context.Context, id, target string) (*Session, error) {
	r.identity.RLock()
	defer r.identity.RUnlock()

	r.mu.Lock()
	if s, ok := r.sessions[id]; ok {
		r.mu.Unlock()
		return s, nil
	}
	if _, ok := r.draining[id]; ok {
		r.mu.Unlock()
		return nil, errDraining
	}
	victim, err := r.reserveLocked()
	if err != nil {
		r.mu.Unlock()
		return nil, err
	}
	r.pending++
	r.mu.Unlock()

	if victim != nil {
		r.closeAdapter(victim)
	}

	adapter, err := r.factory.Open(ctx, target)

	r.mu.Lock()
	r.pending--
	if err != nil {
		r.mu.Unlock()
		return nil, fmt.Errorf("open session %s: %w", id, err)
	}
	s := newSession(id, target, adapter, r.now())
	r.sessions[id] = s
	active := len(r.sessions)
	r.mu.Unlock()

	r.metrics.SetActiveSessions(active)
	r.log.Infof("Created session %s for %s (%d/%d)", id, target, active, r.cap)
	return s, nil
}

// reserveLocked makes room for one more session. When the registry is full
// it evicts the least recently active idle session and returns it for the
// caller to close outside the lock. Callers must hold r.mu.
func (r *Registry) reserveLocked() (*Session, error) {
	if len(r.sessions)+r.pending < r.cap {
		return nil, nil
	}

	candidates := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		candidates = append(candidates, s)
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].LastActivityAt().Before(candidates[j].LastActivityAt())
	})

	for _, s := range candidates {
		if _, ok := s.claimIdle(); !ok {
			continue
		}
		delete(r.sessions, s.id)
		r.metrics.RecordEviction(metrics.EvictionCapacity)
		r.log.Infof("Evicted session %s to make room", s.id)
		return s, nil
	}
	return nil, fmt.Errorf("%w: %d sessions in use", ErrCapacityExceeded, r.cap)
}

// Close removes the session and releases its tab. A question in flight is
// allowed to finish first; the tab is closed when it does, and the id cannot
// be reused until then. Closing an unknown id is a no-op.
func (r *Registry) Close(id string) error {
	s, ok := r.Get(id)
	if !ok {
		return nil
	}
	return r.detach(id, s, metrics.EvictionClosed)
}

// detach removes s from the registry if it is still bound to id and closes
// its tab, deferring the close to the end of an in-flight question.
func (r *Registry) detach(id string, s *Session, reason string) error {
	r.mu.Lock()
	if r.sessions[id] != s {
		r.mu.Unlock()
		return nil
	}
	delete(r.sessions, id)
	adapter, deferred := s.requestClose()
	if deferred {
		r.draining[id] = s
	}
	active := len(r.sessions)
	r.mu.Unlock()

	r.metrics.SetActiveSessions(active)
	r.metrics.RecordEviction(reason)
	r.log.Infof("Closed session %s (%s)", id, reason)

	if adapter != nil {
		if err := adapter.Close(); err != nil {
			return fmt.Errorf("close session %s: %w", id, err)
		}
	}
	return nil
}

// EvictIdle closes every session that has no question in flight and has
// been inactive for longer than threshold. It returns the number evicted.
func (r *Registry) EvictIdle(threshold time.Duration) int {
	cutoff := r.now().Add(-threshold)

	r.mu.Lock()
	var evicted []*Session
	for id, s := range r.sessions {
		if !s.idleSince(cutoff) {
			continue
		}
		if _, ok := s.claimIdle(); !ok {
			continue
		}
		delete(r.sessions, id)
		evicted = append(evicted, s)
	}
	for id, s := range r.draining {
		if s.drained() {
			delete(r.draining, id)
		}
	}
	active := len(r.sessions)
	r.mu.Unlock()

	if len(evicted) == 0 {
		return 0
	}

	r.metrics.SetActiveSessions(active)
	for _, s := range evicted {
		r.metrics.RecordEviction(metrics.EvictionIdle)
		r.log.Infof("Evicted idle session %s", s.id)
		r.closeAdapter(s)
	}
	return len(evicted)
}

// Reset replaces the tab of an existing session, discarding its
// conversation while keeping the id. When the id is unknown and target is
// set, a fresh session is created instead.
func (r *Registry) Reset(ctx context.Context, id, target string) (*Session, error) {
	existing, ok := r.Get(id)
	if !ok && target == "" {
		return nil, fmt.Errorf("reset %s: %w", id, ErrSessionNotFound)
	}
	if !ok || (target != "" && target != existing.target) {
		// A new or retargeted session already starts with a fresh tab.
		return r.Resolve(ctx, id, target)
	}

	s, release, err := r.Acquire(ctx, id, existing.target)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := r.Reconnect(ctx, s); err != nil {
		return nil, err
	}
	r.log.Infof("Reset session %s", id)
	return s, nil
}

// Reconnect opens a new tab for the session's target and swaps it in. The
// caller must hold the session. A session closed meanwhile keeps no new tab
// and fails with ErrSessionClosed.
func (r *Registry) Reconnect(ctx context.Context, s *Session) error {
	if s.isClosing() {
		return fmt.Errorf("reconnect session %s: %w", s.id, ErrSessionClosed)
	}

	r.identity.RLock()
	adapter, err := r.factory.Open(ctx, s.target)
	r.identity.RUnlock()
	if err != nil {
		return fmt.Errorf("reconnect session %s: %w", s.id, err)
	}

	old, ok := s.swapAdapter(adapter, r.now())
	if !ok {
		_ = adapter.Close()
		return fmt.Errorf("reconnect session %s: %w", s.id, ErrSessionClosed)
	}
	if old != nil {
		_ = old.Close()
	}
	r.metrics.RecordReconnect()
	r.log.Infof("Reconnected session %s", s.id)
	return nil
}

// RunExclusive runs fn while no tab is being opened. Login uses it to
// replace the shared browser identity.
func (r *Registry) RunExclusive(fn func() error) error {
	r.identity.Lock()
	defer r.identity.Unlock()
	return fn()
}

// CloseAll closes every session regardless of in-flight questions. It is
// used at shutdown and before a re-login. Ids with a question still running
// stay reserved until it returns.
func (r *Registry) CloseAll() error {
	r.mu.Lock()
	all := make([]*Session, 0, len(r.sessions))
	for id, s := range r.sessions {
		all = append(all, s)
		delete(r.sessions, id)
		if s.Info().InFlight {
			r.draining[id] = s
		}
	}
	r.mu.Unlock()

	r.metrics.SetActiveSessions(0)

	var g errgroup.Group
	for _, s := range all {
		s := s
		g.Go(func() error {
			adapter := s.forceClose()
			if adapter == nil {
				return nil
			}
			if err := adapter.Close(); err != nil {
				return fmt.Errorf("close session %s: %w", s.id, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (r *Registry) closeAdapter(s *Session) {
	s.mu.Lock()
	adapter := s.adapter
	s.mu.Unlock()
	if adapter == nil {
		return
	}
	if err := adapter.Close(); err != nil {
		r.log.Warnf("Failed to close tab of session %s: %v", s.id, err)
	}
}
