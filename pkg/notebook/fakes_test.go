package notebook

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// fakeAdapter is a scripted tab. With frames set, each ListVisibleAnswers
// call returns the next frame and the last frame repeats. Otherwise it
// returns the current answers, which onSubmit may extend.
type fakeAdapter struct {
	mu sync.Mutex

	target        string
	frames        [][]string
	answers       []string
	busy          []bool
	listErrs      map[int]error
	errorMessages []string
	dead          bool
	submitErr     error
	onSubmit      func(a *fakeAdapter, text string)

	listCalls int
	busyCalls int
	submitted []string
	closed    bool
}

func newFakeAdapter(target string) *fakeAdapter {
	return &fakeAdapter{target: target}
}

func (a *fakeAdapter) IsBusy(ctx context.Context) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	i := a.busyCalls
	a.busyCalls++
	if i < len(a.busy) {
		return a.busy[i], nil
	}
	return false, nil
}

func (a *fakeAdapter) ListVisibleAnswers(ctx context.Context) ([]string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	i := a.listCalls
	a.listCalls++
	if err, ok := a.listErrs[i]; ok {
		return nil, err
	}
	if a.dead {
		return nil, errors.New("target closed")
	}
	if len(a.frames) > 0 {
		if i >= len(a.frames) {
			i = len(a.frames) - 1
		}
		return append([]string(nil), a.frames[i]...), nil
	}
	return append([]string(nil), a.answers...), nil
}

func (a *fakeAdapter) SubmitQuestion(ctx context.Context, text string) error {
	a.mu.Lock()
	if a.submitErr != nil {
		a.mu.Unlock()
		return a.submitErr
	}
	a.submitted = append(a.submitted, text)
	hook := a.onSubmit
	a.mu.Unlock()

	if hook != nil {
		hook(a, text)
	}
	return nil
}

func (a *fakeAdapter) IsSessionAlive(ctx context.Context) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return !a.dead && !a.closed
}

func (a *fakeAdapter) ErrorMessages(ctx context.Context) ([]string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.errorMessages...), nil
}

func (a *fakeAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	return nil
}

func (a *fakeAdapter) appendAnswer(text string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.answers = append(a.answers, text)
}

func (a *fakeAdapter) setDead(dead bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.dead = dead
}

func (a *fakeAdapter) isClosed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closed
}

func (a *fakeAdapter) submissions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.submitted...)
}

func (a *fakeAdapter) listCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.listCalls
}

// fakeFactory opens fakeAdapters. configure, when set, prepares each new
// adapter. gate, when set, blocks Open until it is closed.
type fakeFactory struct {
	mu        sync.Mutex
	opened    []*fakeAdapter
	err       error
	gate      chan struct{}
	configure func(n int, a *fakeAdapter)
}

func (f *fakeFactory) Open(ctx context.Context, target string) (PageSignalAdapter, error) {
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	a := newFakeAdapter(target)
	if f.configure != nil {
		f.configure(len(f.opened), a)
	}
	f.opened = append(f.opened, a)
	return a, nil
}

func (f *fakeFactory) opens() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.opened)
}

func (f *fakeFactory) adapter(i int) *fakeAdapter {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opened[i]
}

// fakeCredentials scripts the credential collaborator.
type fakeCredentials struct {
	mu sync.Mutex

	valid bool
	// hostRunning is consumed one value per probe; the last value repeats
	hostRunning []bool
	loginErr    error
	loginValid  bool

	// loginGate, when set, blocks StartInteractiveLogin until it is closed
	loginGate chan struct{}

	hostProbes int
	logins     int
}

func (c *fakeCredentials) HasValidCredential(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.valid
}

func (c *fakeCredentials) IsHostProcessRunning(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.hostProbes
	c.hostProbes++
	if len(c.hostRunning) == 0 {
		return false
	}
	if i >= len(c.hostRunning) {
		i = len(c.hostRunning) - 1
	}
	return c.hostRunning[i]
}

func (c *fakeCredentials) StartInteractiveLogin(ctx context.Context, timeout time.Duration) error {
	if c.loginGate != nil {
		<-c.loginGate
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logins++
	if c.loginErr != nil {
		return c.loginErr
	}
	c.valid = c.loginValid
	return nil
}

func (c *fakeCredentials) loginCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.logins
}

func (c *fakeCredentials) probes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hostProbes
}

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func sequentialIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("session-%d", n)
	}
}

// fastOptions keeps acquisition tests quick.
func fastOptions(stable int) AcquireOptions {
	return AcquireOptions{
		Timeout:      time.Second,
		PollInterval: time.Millisecond,
		StablePolls:  stable,
	}
}
