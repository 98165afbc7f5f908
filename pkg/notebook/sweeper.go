package notebook

import (
	"context"
	"sync"
	"time"

	"github.com/entrhq/notebook-mcp/pkg/logging"
)

// Sweeper defaults.
const (
	DefaultIdleTimeout   = 15 * time.Minute
	DefaultSweepInterval = 1 * time.Minute
)

// Sweeper periodically evicts sessions that have been idle too long.
type Sweeper struct {
	registry  *Registry
	threshold time.Duration
	interval  time.Duration
	log       logging.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// NewSweeper creates a sweeper. Zero durations use the defaults.
func NewSweeper(registry *Registry, threshold, interval time.Duration, logger logging.Logger) *Sweeper {
	if threshold <= 0 {
		threshold = DefaultIdleTimeout
	}
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{
		registry:  registry,
		threshold: threshold,
		interval:  interval,
		log:       logging.OrNop(logger),
	}
}

// Start launches the sweep loop. Calling Start on a running sweeper is a no-op.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}

	sweepCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true

	go s.run(sweepCtx, s.done)
}

// Stop cancels the loop and waits for it to exit.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	<-done
}

// IsRunning reports whether the loop is active.
func (s *Sweeper) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// SweepOnce evicts idle sessions now and returns how many were removed.
func (s *Sweeper) SweepOnce() int {
	removed := s.registry.EvictIdle(s.threshold)
	if removed > 0 {
		s.log.Infof("Swept %d idle sessions, %d remaining", removed, s.registry.Len())
	}
	return removed
}

func (s *Sweeper) run(ctx context.Context, done chan struct{}) {
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		close(done)
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Debugf("Idle sweeper stopping")
			return
		case <-ticker.C:
			s.SweepOnce()
		}
	}
}
