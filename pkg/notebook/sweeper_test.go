package notebook

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweeper_SweepOnce(t *testing.T) {
	clock := newFakeClock()
	r := newTestRegistry(&fakeFactory{}, 3, clock)
	ctx := context.Background()

	_, err := r.Resolve(ctx, "old", "nb-1")
	require.NoError(t, err)
	clock.Advance(20 * time.Minute)
	_, err = r.Resolve(ctx, "new", "nb-1")
	require.NoError(t, err)

	s := NewSweeper(r, 15*time.Minute, time.Minute, nil)
	assert.Equal(t, 1, s.SweepOnce())
	assert.Equal(t, 0, s.SweepOnce())
	assert.Equal(t, 1, r.Len())
}

func TestSweeper_StartStop(t *testing.T) {
	clock := newFakeClock()
	r := newTestRegistry(&fakeFactory{}, 3, clock)
	_, err := r.Resolve(context.Background(), "a", "nb-1")
	require.NoError(t, err)

	s := NewSweeper(r, time.Minute, 2*time.Millisecond, nil)
	s.Start(context.Background())
	s.Start(context.Background())
	assert.True(t, s.IsRunning())

	clock.Advance(2 * time.Minute)
	assert.Eventually(t, func() bool { return r.Len() == 0 }, time.Second, 2*time.Millisecond)

	s.Stop()
	assert.False(t, s.IsRunning())
	s.Stop()
}

func TestSweeper_StopsWithContext(t *testing.T) {
	r := newTestRegistry(&fakeFactory{}, 1, newFakeClock())
	ctx, cancel := context.WithCancel(context.Background())

	s := NewSweeper(r, 0, 0, nil)
	s.Start(ctx)
	cancel()

	assert.Eventually(t, func() bool { return !s.IsRunning() }, time.Second, time.Millisecond)
}
