package tools

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/entrhq/notebook-mcp/pkg/library"
	"github.com/entrhq/notebook-mcp/pkg/notebook"
)

// fakePage answers every question with "Answer: <question>".
type fakePage struct {
	mu      sync.Mutex
	target  string
	answers []string
	closed  bool
}

func (p *fakePage) IsBusy(context.Context) (bool, error) { return false, nil }

func (p *fakePage) ListVisibleAnswers(context.Context) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.answers...), nil
}

func (p *fakePage) SubmitQuestion(_ context.Context, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.answers = append(p.answers, "Answer: "+text)
	return nil
}

func (p *fakePage) IsSessionAlive(context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.closed
}

func (p *fakePage) ErrorMessages(context.Context) ([]string, error) { return nil, nil }

func (p *fakePage) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

type fakeFactory struct {
	mu      sync.Mutex
	targets []string
}

func (f *fakeFactory) Open(_ context.Context, target string) (notebook.PageSignalAdapter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.targets = append(f.targets, target)
	return &fakePage{target: target}, nil
}

func (f *fakeFactory) opened() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.targets...)
}

type fakeCredentials struct {
	mu          sync.Mutex
	valid       bool
	hostRunning bool
	loginErr    error
	logins      int
	clears      int
}

func (c *fakeCredentials) HasValidCredential(context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.valid
}

func (c *fakeCredentials) IsHostProcessRunning(context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hostRunning
}

func (c *fakeCredentials) StartInteractiveLogin(context.Context, time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logins++
	if c.loginErr != nil {
		return c.loginErr
	}
	c.valid = true
	return nil
}

func (c *fakeCredentials) ClearCredentials() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clears++
	c.valid = false
	return nil
}

func (c *fakeCredentials) set(fn func(c *fakeCredentials)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(c)
}

type testEnv struct {
	tools    *Registry
	sessions *notebook.Registry
	store    *library.Store
	factory  *fakeFactory
	creds    *fakeCredentials
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	factory := &fakeFactory{}
	creds := &fakeCredentials{valid: true}
	sessions := notebook.NewRegistry(factory, notebook.RegistryOptions{Capacity: 2})
	gate := notebook.NewReadinessGate(creds, nil)
	dispatcher := notebook.NewDispatcher(sessions, gate, creds, notebook.DispatcherOptions{
		Acquire: notebook.AcquireOptions{
			Timeout:      2 * time.Second,
			PollInterval: time.Millisecond,
			StablePolls:  2,
		},
		LoginTimeout: time.Second,
	})

	store, err := library.Open(filepath.Join(t.TempDir(), "library.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = sessions.CloseAll()
		_ = store.Close()
	})

	return &testEnv{
		tools: NewDefaultRegistry(Services{
			Dispatcher:   dispatcher,
			Sessions:     sessions,
			Readiness:    gate,
			Library:      store,
			Credentials:  creds,
			LoginTimeout: time.Second,
		}),
		sessions: sessions,
		store:    store,
		factory:  factory,
		creds:    creds,
	}
}

// call runs a tool and decodes its text result.
func (e *testEnv) call(t *testing.T, name, args string) (map[string]interface{}, error) {
	t.Helper()
	tool, ok := e.tools.Get(name)
	require.True(t, ok, "tool %s not registered", name)

	text, structured, err := tool.Execute(context.Background(), json.RawMessage(args))
	if err != nil {
		return nil, err
	}
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(text), &decoded))
	require.Equal(t, decoded, structured)
	return decoded, nil
}

func (e *testEnv) addNotebook(t *testing.T, name, url string) {
	t.Helper()
	_, err := e.call(t, "add_notebook", `{"name":"`+name+`","url":"`+url+`"}`)
	require.NoError(t, err)
}
