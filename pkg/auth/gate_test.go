package auth

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/notebook-mcp/pkg/notebook"
)

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func writeState(t *testing.T, path string, cookies ...storedCookie) {
	t.Helper()
	data, err := json.Marshal(storedState{Cookies: cookies})
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o700))
	require.NoError(t, os.WriteFile(path, data, 0o600))
	require.NoError(t, os.Chtimes(path, testNow, testNow))
}

func cookie(name string, expires time.Time) storedCookie {
	c := storedCookie{Name: name, Domain: ".google.com", Expires: -1}
	if !expires.IsZero() {
		c.Expires = float64(expires.Unix())
	}
	return c
}

func newTestGate(t *testing.T, path string) *Gate {
	return NewGate(nil, Options{
		StatePath:       path,
		MaxAge:          24 * time.Hour,
		RequiredCookies: []string{"SID", "HSID"},
		HostProcesses:   []string{"chrome"},
		Probe:           func(context.Context, []string) (bool, error) { return false, nil },
		Now:             func() time.Time { return testNow.Add(time.Hour) },
	})
}

func TestGate_HasValidCredential(t *testing.T) {
	future := testNow.Add(30 * 24 * time.Hour)
	past := testNow.Add(-time.Hour)

	tests := []struct {
		name    string
		cookies []storedCookie
		now     time.Time
		want    bool
		missing []string
		expired []string
	}{
		{
			name:    "all cookies present",
			cookies: []storedCookie{cookie("SID", future), cookie("HSID", future), cookie("NID", past)},
			want:    true,
		},
		{
			name:    "session cookies never expire",
			cookies: []storedCookie{cookie("SID", time.Time{}), cookie("HSID", future)},
			want:    true,
		},
		{
			name:    "missing cookie",
			cookies: []storedCookie{cookie("SID", future)},
			missing: []string{"HSID"},
		},
		{
			name:    "expired cookie",
			cookies: []storedCookie{cookie("SID", past), cookie("HSID", future)},
			expired: []string{"SID"},
		},
		{
			name:    "duplicate names keep the longest lived",
			cookies: []storedCookie{cookie("SID", past), cookie("SID", future), cookie("HSID", future)},
			want:    true,
		},
		{
			name:    "stale file",
			cookies: []storedCookie{cookie("SID", future), cookie("HSID", future)},
			now:     testNow.Add(25 * time.Hour),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "state.json")
			writeState(t, path, tt.cookies...)
			gate := newTestGate(t, path)
			if !tt.now.IsZero() {
				gate.opts.Now = func() time.Time { return tt.now }
			}

			assert.Equal(t, tt.want, gate.HasValidCredential(context.Background()))
			status := gate.Describe()
			assert.True(t, status.Exists)
			assert.Equal(t, tt.missing, status.MissingCookies)
			assert.Equal(t, tt.expired, status.ExpiredCookies)
		})
	}
}

func TestGate_MissingOrCorruptState(t *testing.T) {
	dir := t.TempDir()
	gate := newTestGate(t, filepath.Join(dir, "absent.json"))
	assert.False(t, gate.HasValidCredential(context.Background()))
	assert.False(t, gate.Describe().Exists)

	corrupt := filepath.Join(dir, "corrupt.json")
	require.NoError(t, os.WriteFile(corrupt, []byte("{not json"), 0o600))
	gate = newTestGate(t, corrupt)
	assert.False(t, gate.HasValidCredential(context.Background()))
}

func TestGate_IsHostProcessRunning(t *testing.T) {
	tests := []struct {
		name    string
		running bool
		err     error
		want    bool
	}{
		{name: "not running", want: false},
		{name: "running", running: true, want: true},
		{name: "probe failure fails safe", err: errors.New("pgrep: not found"), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gate := NewGate(nil, Options{
				HostProcesses: []string{"chrome"},
				Probe: func(_ context.Context, names []string) (bool, error) {
					assert.Equal(t, []string{"chrome"}, names)
					return tt.running, tt.err
				},
			})
			assert.Equal(t, tt.want, gate.IsHostProcessRunning(context.Background()))
		})
	}

	t.Run("no process names configured", func(t *testing.T) {
		gate := NewGate(nil, Options{Probe: func(context.Context, []string) (bool, error) {
			t.Fatal("probe must not run")
			return true, nil
		}})
		assert.False(t, gate.IsHostProcessRunning(context.Background()))
	})
}

type fakeLoginer struct {
	calls int
	write func()
	err   error
}

func (l *fakeLoginer) Login(ctx context.Context, timeout time.Duration) error {
	l.calls++
	if l.write != nil {
		l.write()
	}
	return l.err
}

func TestGate_StartInteractiveLogin(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	future := testNow.Add(time.Hour * 48)

	login := &fakeLoginer{write: func() {
		writeState(t, path, cookie("SID", future), cookie("HSID", future))
	}}
	gate := newTestGate(t, path)
	gate.login = login
	require.NoError(t, gate.Watch())
	defer gate.Close()

	assert.False(t, gate.HasValidCredential(context.Background()))
	require.NoError(t, gate.StartInteractiveLogin(context.Background(), time.Minute))
	assert.True(t, gate.HasValidCredential(context.Background()))
	assert.Equal(t, 1, login.calls)
}

func TestGate_LoginUnavailable(t *testing.T) {
	gate := NewGate(nil, Options{})
	err := gate.StartInteractiveLogin(context.Background(), time.Second)
	assert.ErrorIs(t, err, notebook.ErrAuthentication)
}

func TestGate_WatchInvalidatesCache(t *testing.T) {
	path := filepath.Join(t.TempDir(), "browser_state", "state.json")
	future := testNow.Add(48 * time.Hour)
	gate := newTestGate(t, path)

	require.NoError(t, gate.Watch())
	defer gate.Close()
	require.NoError(t, gate.Watch(), "second Watch is a no-op")

	assert.False(t, gate.HasValidCredential(context.Background()))

	writeState(t, path, cookie("SID", future), cookie("HSID", future))
	assert.Eventually(t, func() bool {
		return gate.HasValidCredential(context.Background())
	}, 2*time.Second, 10*time.Millisecond)

	// The valid state is now cached; removal must clear it.
	require.NoError(t, os.Remove(path))
	assert.Eventually(t, func() bool {
		return !gate.HasValidCredential(context.Background())
	}, 2*time.Second, 10*time.Millisecond)
}

func TestGate_CloseWithoutWatch(t *testing.T) {
	assert.NoError(t, NewGate(nil, Options{}).Close())
}
