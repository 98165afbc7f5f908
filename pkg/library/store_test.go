package library

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "data", "library.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	return s
}

func TestAddAssignsSlugAndActivatesFirst(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	first, err := s.Add(ctx, Notebook{
		URL:    "https://notebooklm.google.com/notebook/abc#frag",
		Name:   "  Go Concurrency Notes ",
		Topics: []string{"go", " Go ", "", "channels"},
	})
	require.NoError(t, err)
	assert.Equal(t, "go-concurrency-notes", first.ID)
	assert.Equal(t, "https://notebooklm.google.com/notebook/abc", first.URL)
	assert.Equal(t, []string{"go", "channels"}, first.Topics)
	assert.True(t, first.Active)

	second, err := s.Add(ctx, Notebook{URL: "https://notebooklm.google.com/notebook/def", Name: "Go Concurrency Notes"})
	require.NoError(t, err)
	assert.Equal(t, "go-concurrency-notes-2", second.ID)
	assert.False(t, second.Active)
}

func TestAddRejectsInvalidInput(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Add(ctx, Notebook{URL: "http://notebooklm.google.com/notebook/abc", Name: "x"})
	assert.ErrorIs(t, err, ErrInvalidURL)

	_, err = s.Add(ctx, Notebook{URL: "https://notebooklm.google.com/notebook/abc", Name: "   "})
	assert.Error(t, err)

	_, err = s.Add(ctx, Notebook{URL: "https://notebooklm.google.com/notebook/abc", Name: "one"})
	require.NoError(t, err)
	_, err = s.Add(ctx, Notebook{URL: "https://notebooklm.google.com/notebook/abc", Name: "two"})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestListSelectAndActive(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Active(ctx)
	assert.ErrorIs(t, err, ErrNoActive)

	for _, name := range []string{"alpha", "beta", "gamma"} {
		_, err := s.Add(ctx, Notebook{URL: "https://notebooklm.google.com/notebook/" + name, Name: name})
		require.NoError(t, err)
	}

	selected, err := s.Select(ctx, "beta")
	require.NoError(t, err)
	assert.True(t, selected.Active)

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "alpha", list[0].ID)
	assert.False(t, list[0].Active)
	assert.True(t, list[1].Active)

	active, err := s.Active(ctx)
	require.NoError(t, err)
	assert.Equal(t, "beta", active.ID)

	_, err = s.Select(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTouchCountsUsage(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Add(ctx, Notebook{URL: "https://notebooklm.google.com/notebook/a", Name: "a"})
	require.NoError(t, err)

	require.NoError(t, s.Touch(ctx, "a"))
	require.NoError(t, s.Touch(ctx, "a"))

	nb, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 2, nb.UseCount)
	require.NotNil(t, nb.LastUsedAt)

	assert.ErrorIs(t, s.Touch(ctx, "missing"), ErrNotFound)
}

func TestRemoveReassignsActive(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for _, name := range []string{"a", "b", "c"} {
		_, err := s.Add(ctx, Notebook{URL: "https://notebooklm.google.com/notebook/" + name, Name: name})
		require.NoError(t, err)
	}
	require.NoError(t, s.Touch(ctx, "b"))

	require.NoError(t, s.Remove(ctx, "a"))
	active, err := s.Active(ctx)
	require.NoError(t, err)
	assert.Equal(t, "b", active.ID, "most recently used notebook takes over")

	require.NoError(t, s.Remove(ctx, "c"))
	active, err = s.Active(ctx)
	require.NoError(t, err)
	assert.Equal(t, "b", active.ID, "removing an inactive notebook keeps the selection")

	require.NoError(t, s.Remove(ctx, "b"))
	_, err = s.Active(ctx)
	assert.ErrorIs(t, err, ErrNoActive)

	assert.ErrorIs(t, s.Remove(ctx, "b"), ErrNotFound)
}

func TestResolve(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Resolve(ctx, "")
	assert.ErrorIs(t, err, ErrNoActive)

	_, err = s.Add(ctx, Notebook{URL: "https://notebooklm.google.com/notebook/known", Name: "known"})
	require.NoError(t, err)

	target, err := s.Resolve(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, Target{ID: "known", URL: "https://notebooklm.google.com/notebook/known"}, target)

	target, err = s.Resolve(ctx, "known")
	require.NoError(t, err)
	assert.Equal(t, "https://notebooklm.google.com/notebook/known", target.URL)

	target, err = s.Resolve(ctx, "https://notebooklm.google.com/notebook/known")
	require.NoError(t, err)
	assert.Equal(t, "known", target.ID)

	target, err = s.Resolve(ctx, "https://notebooklm.google.com/notebook/other")
	require.NoError(t, err)
	assert.Empty(t, target.ID)
	assert.Equal(t, "https://notebooklm.google.com/notebook/other", target.URL)

	_, err = s.Resolve(ctx, "ftp://example.com/x")
	assert.ErrorIs(t, err, ErrInvalidURL)

	_, err = s.Resolve(ctx, "nope")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "library.db")

	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.Add(ctx, Notebook{URL: "https://notebooklm.google.com/notebook/a", Name: "persisted"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	active, err := s.Active(ctx)
	require.NoError(t, err)
	assert.Equal(t, "persisted", active.ID)
}

func TestSlugify(t *testing.T) {
	tests := map[string]string{
		"Hello, World!":   "hello-world",
		"***":             "notebook",
		"  Trim  Me  ":    "trim-me",
		"Ünïcode Letters": "n-code-letters",
	}
	for in, want := range tests {
		assert.Equal(t, want, slugify(in), in)
	}
}
