package config

import (
	"fmt"
	"sync"
	"time"
)

const (
	// SectionIDSessions is the identifier for the session settings section
	SectionIDSessions = "sessions"

	defaultMaxSessions      = 10
	defaultIdleTimeout      = 15 * time.Minute
	defaultCleanupInterval  = 1 * time.Minute
	defaultAnswerTimeout    = 120 * time.Second
	defaultPollInterval     = 1 * time.Second
	defaultStablePolls      = 3
	defaultQueriesPerMinute = 0
)

// SessionsSection holds session lifecycle and answer acquisition defaults.
type SessionsSection struct {
	MaxSessions      int
	IdleTimeout      time.Duration
	CleanupInterval  time.Duration
	AnswerTimeout    time.Duration
	PollInterval     time.Duration
	StablePolls      int
	QueriesPerMinute float64
	mu               sync.RWMutex
}

// NewSessionsSection creates a sessions section with default settings.
func NewSessionsSection() *SessionsSection {
	s := &SessionsSection{}
	s.Reset()
	return s
}

// ID returns the section identifier.
func (s *SessionsSection) ID() string {
	return SectionIDSessions
}

// Title returns the section title.
func (s *SessionsSection) Title() string {
	return "Sessions"
}

// Description returns the section description.
func (s *SessionsSection) Description() string {
	return "Session capacity, idle eviction and answer polling defaults."
}

// Data returns the current configuration data.
func (s *SessionsSection) Data() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return map[string]interface{}{
		"max_sessions":       s.MaxSessions,
		"idle_timeout":       s.IdleTimeout.String(),
		"cleanup_interval":   s.CleanupInterval.String(),
		"answer_timeout":     s.AnswerTimeout.String(),
		"poll_interval":      s.PollInterval.String(),
		"stable_polls":       s.StablePolls,
		"queries_per_minute": s.QueriesPerMinute,
	}
}

// SetData updates the configuration from the provided data.
func (s *SessionsSection) SetData(data map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	for key, value := range data {
		switch key {
		case "max_sessions":
			s.MaxSessions, err = asInt(key, value)
		case "idle_timeout":
			s.IdleTimeout, err = asDuration(key, value)
		case "cleanup_interval":
			s.CleanupInterval, err = asDuration(key, value)
		case "answer_timeout":
			s.AnswerTimeout, err = asDuration(key, value)
		case "poll_interval":
			s.PollInterval, err = asDuration(key, value)
		case "stable_polls":
			s.StablePolls, err = asInt(key, value)
		case "queries_per_minute":
			s.QueriesPerMinute, err = asFloat(key, value)
		default:
			// Ignore unknown keys for forward compatibility
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Validate validates the current configuration.
func (s *SessionsSection) Validate() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.MaxSessions < 1 {
		return fmt.Errorf("max_sessions must be at least 1, got %d", s.MaxSessions)
	}
	if s.IdleTimeout <= 0 {
		return fmt.Errorf("idle_timeout must be positive, got %v", s.IdleTimeout)
	}
	if s.CleanupInterval <= 0 {
		return fmt.Errorf("cleanup_interval must be positive, got %v", s.CleanupInterval)
	}
	if s.PollInterval < 10*time.Millisecond {
		return fmt.Errorf("poll_interval must be at least 10ms, got %v", s.PollInterval)
	}
	if s.AnswerTimeout < s.PollInterval {
		return fmt.Errorf("answer_timeout (%v) must not be shorter than poll_interval (%v)", s.AnswerTimeout, s.PollInterval)
	}
	if s.StablePolls < 1 {
		return fmt.Errorf("stable_polls must be at least 1, got %d", s.StablePolls)
	}
	if s.QueriesPerMinute < 0 {
		return fmt.Errorf("queries_per_minute cannot be negative")
	}
	return nil
}

// Reset resets the section to default configuration.
func (s *SessionsSection) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.MaxSessions = defaultMaxSessions
	s.IdleTimeout = defaultIdleTimeout
	s.CleanupInterval = defaultCleanupInterval
	s.AnswerTimeout = defaultAnswerTimeout
	s.PollInterval = defaultPollInterval
	s.StablePolls = defaultStablePolls
	s.QueriesPerMinute = defaultQueriesPerMinute
}

// Snapshot returns a copy of the values safe to read without locking.
func (s *SessionsSection) Snapshot() SessionsSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return SessionsSettings{
		MaxSessions:      s.MaxSessions,
		IdleTimeout:      s.IdleTimeout,
		CleanupInterval:  s.CleanupInterval,
		AnswerTimeout:    s.AnswerTimeout,
		PollInterval:     s.PollInterval,
		StablePolls:      s.StablePolls,
		QueriesPerMinute: s.QueriesPerMinute,
	}
}

// SessionsSettings is an immutable copy of SessionsSection values.
type SessionsSettings struct {
	MaxSessions      int
	IdleTimeout      time.Duration
	CleanupInterval  time.Duration
	AnswerTimeout    time.Duration
	PollInterval     time.Duration
	StablePolls      int
	QueriesPerMinute float64
}
