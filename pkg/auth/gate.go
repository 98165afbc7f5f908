package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/entrhq/notebook-mcp/pkg/logging"
	"github.com/entrhq/notebook-mcp/pkg/notebook"
)

// Loginer runs an interactive login and stores the resulting credential.
type Loginer interface {
	Login(ctx context.Context, timeout time.Duration) error
}

// Options configures a Gate.
type Options struct {
	// StatePath is the exported browser state holding the cookies
	StatePath string

	// MaxAge treats a state file older than this as stale; zero disables it
	MaxAge time.Duration

	// RequiredCookies must all be present and unexpired
	RequiredCookies []string

	// HostProcesses are the process names of a user-controlled browser
	HostProcesses []string

	// Probe lists processes; SystemProbe when nil
	Probe ProcessProbe

	Logger logging.Logger
	Now    func() time.Time
}

// Gate implements notebook.CredentialGate over the exported browser state.
type Gate struct {
	login Loginer
	opts  Options
	log   logging.Logger

	mu      sync.Mutex
	cached  *credentialState
	watcher *fsnotify.Watcher
	stopCh  chan struct{}
	doneCh  chan struct{}
}

var _ notebook.CredentialGate = (*Gate)(nil)

// NewGate creates a gate that logs in through login.
func NewGate(login Loginer, opts Options) *Gate {
	if opts.Probe == nil {
		opts.Probe = SystemProbe
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Gate{
		login: login,
		opts:  opts,
		log:   logging.OrNop(opts.Logger),
	}
}

// Status describes the stored credential.
type Status struct {
	StatePath      string    `json:"state_path"`
	Exists         bool      `json:"exists"`
	SavedAt        time.Time `json:"saved_at,omitempty"`
	Stale          bool      `json:"stale"`
	MissingCookies []string  `json:"missing_cookies,omitempty"`
	ExpiredCookies []string  `json:"expired_cookies,omitempty"`
	ExpiresAt      time.Time `json:"expires_at,omitempty"`
	Valid          bool      `json:"valid"`
}

// Describe inspects the stored credential.
func (g *Gate) Describe() Status {
	status := Status{StatePath: g.opts.StatePath}

	st, err := g.state()
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			g.log.Warnf("Browser state unreadable: %v", err)
		}
		return status
	}

	now := g.opts.Now()
	status.Exists = true
	status.SavedAt = st.modTime
	status.Stale = g.opts.MaxAge > 0 && now.Sub(st.modTime) > g.opts.MaxAge

	for _, name := range g.opts.RequiredCookies {
		c, ok := st.cookies[name]
		if !ok {
			status.MissingCookies = append(status.MissingCookies, name)
			continue
		}
		exp := c.expiry()
		if exp.IsZero() {
			continue
		}
		if !exp.After(now) {
			status.ExpiredCookies = append(status.ExpiredCookies, name)
			continue
		}
		if status.ExpiresAt.IsZero() || exp.Before(status.ExpiresAt) {
			status.ExpiresAt = exp
		}
	}
	sort.Strings(status.MissingCookies)
	sort.Strings(status.ExpiredCookies)

	status.Valid = !status.Stale && len(status.MissingCookies) == 0 && len(status.ExpiredCookies) == 0
	return status
}

// HasValidCredential reports whether the stored state is fresh and holds
// every required cookie unexpired.
func (g *Gate) HasValidCredential(ctx context.Context) bool {
	status := g.Describe()
	if !status.Valid && status.Exists {
		g.log.Debugf("Credential invalid: stale=%t missing=%v expired=%v",
			status.Stale, status.MissingCookies, status.ExpiredCookies)
	}
	return status.Valid
}

// IsHostProcessRunning reports whether a user-controlled browser is
// running. A failed probe counts as running.
func (g *Gate) IsHostProcessRunning(ctx context.Context) bool {
	if len(g.opts.HostProcesses) == 0 {
		return false
	}
	running, err := g.opts.Probe(ctx, g.opts.HostProcesses)
	if err != nil {
		g.log.Warnf("Process probe failed, assuming browser is running: %v", err)
		return true
	}
	return running
}

// StartInteractiveLogin delegates to the Loginer and drops any cached state.
func (g *Gate) StartInteractiveLogin(ctx context.Context, timeout time.Duration) error {
	if g.login == nil {
		return notebook.NewAuthenticationError("interactive login unavailable", nil)
	}
	defer g.Invalidate()
	return g.login.Login(ctx, timeout)
}

// Invalidate forces the next check to re-read the state file.
func (g *Gate) Invalidate() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cached = nil
}

// state returns the parsed state file. It is cached only while a watcher
// guarantees invalidation on change.
func (g *Gate) state() (*credentialState, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.watcher != nil && g.cached != nil {
		return g.cached, nil
	}
	st, err := readState(g.opts.StatePath)
	if err != nil {
		return nil, err
	}
	if g.watcher != nil {
		g.cached = st
	}
	return st, nil
}

// Watch caches the parsed state and invalidates it whenever the state file
// changes on disk.
func (g *Gate) Watch() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.watcher != nil {
		return nil
	}

	dir := filepath.Dir(g.opts.StatePath)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	// Watch the directory: the state file is replaced, not edited in place.
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	g.watcher = watcher
	g.cached = nil
	g.stopCh = make(chan struct{})
	g.doneCh = make(chan struct{})
	go g.watchLoop(watcher, g.stopCh, g.doneCh)
	return nil
}

// Close stops watching.
func (g *Gate) Close() error {
	g.mu.Lock()
	watcher, stopCh, doneCh := g.watcher, g.stopCh, g.doneCh
	g.watcher = nil
	g.cached = nil
	g.mu.Unlock()

	if watcher == nil {
		return nil
	}
	close(stopCh)
	err := watcher.Close()
	<-doneCh
	return err
}

func (g *Gate) watchLoop(watcher *fsnotify.Watcher, stopCh, doneCh chan struct{}) {
	defer close(doneCh)

	target := filepath.Clean(g.opts.StatePath)
	for {
		select {
		case <-stopCh:
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			g.log.Debugf("Browser state changed (%s)", event.Op)
			g.Invalidate()

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			g.log.Warnf("Browser state watcher error: %v", err)
		}
	}
}
