package notebook

import (
	"context"
	"time"
)

// PageSignalAdapter translates polling calls into operations on one tab.
// Each adapter is owned by exactly one session.
type PageSignalAdapter interface {
	// IsBusy reports whether a "still composing" indicator is visible
	IsBusy(ctx context.Context) (bool, error)

	// ListVisibleAnswers returns the text of every answer container in document order
	ListVisibleAnswers(ctx context.Context) ([]string, error)

	// SubmitQuestion types text into the query box and sends it
	SubmitQuestion(ctx context.Context, text string) error

	// IsSessionAlive reports whether the tab and its context are still usable
	IsSessionAlive(ctx context.Context) bool

	// ErrorMessages returns the text of any visible error banners
	ErrorMessages(ctx context.Context) ([]string, error)

	// Close releases the tab
	Close() error
}

// AdapterFactory opens tabs under the shared browser identity.
type AdapterFactory interface {
	// Open creates a new tab showing the resource identified by targetResourceID
	Open(ctx context.Context, targetResourceID string) (PageSignalAdapter, error)
}

// CredentialGate is the stored-credential and login collaborator.
type CredentialGate interface {
	// HasValidCredential reports whether the stored credential is still usable
	HasValidCredential(ctx context.Context) bool

	// IsHostProcessRunning reports whether a user-controlled browser holds the
	// profile. Implementations return true when the probe itself fails.
	IsHostProcessRunning(ctx context.Context) bool

	// StartInteractiveLogin runs a visible login flow and stores the resulting
	// credential. It fails with an authentication error on timeout.
	StartInteractiveLogin(ctx context.Context, timeout time.Duration) error
}

// ConnectionCheckResult is an immutable readiness snapshot.
type ConnectionCheckResult struct {
	IsReady            bool   `json:"is_ready"`
	AuthValid          bool   `json:"auth_valid"`
	HostProcessRunning bool   `json:"host_process_running"`
	RequiresUserAction bool   `json:"requires_user_action"`
	CanAutoRemediate   bool   `json:"can_auto_remediate"`
	Message            string `json:"message,omitempty"`
}

// SessionInfo is the externally visible metadata of a session. It carries no transcript.
type SessionInfo struct {
	ID               string    `json:"id"`
	TargetResourceID string    `json:"target_resource_id"`
	CreatedAt        time.Time `json:"created_at"`
	LastActivityAt   time.Time `json:"last_activity_at"`
	QuestionCount    int       `json:"question_count"`
	InFlight         bool      `json:"in_flight"`
}

// Status is the outcome kind of a dispatched question.
type Status string

const (
	// StatusAnswered means a stable answer was acquired
	StatusAnswered Status = "answered"

	// StatusBlocked means the user must act (close the host browser) first
	StatusBlocked Status = "blocked"

	// StatusTimedOut means no stable answer appeared before the deadline
	StatusTimedOut Status = "timed_out"
)

// AnswerResult is the structured outcome of Dispatcher.Ask.
type AnswerResult struct {
	Status    Status        `json:"status"`
	Answer    string        `json:"answer,omitempty"`
	Blocked   string        `json:"blocked,omitempty"`
	SessionID string        `json:"session_id,omitempty"`
	Session   *SessionInfo  `json:"session,omitempty"`
	Elapsed   time.Duration `json:"elapsed"`
}

// AcquireOptions tunes one acquisition. Zero fields fall back to defaults.
type AcquireOptions struct {
	Timeout      time.Duration
	PollInterval time.Duration
	StablePolls  int
}

// Default acquisition values used when neither config nor caller sets them.
const (
	DefaultAcquireTimeout = 120 * time.Second
	DefaultPollInterval   = 1 * time.Second
	DefaultStablePolls    = 3
)

// withDefaults fills zero fields from fallback, then from package defaults.
func (o AcquireOptions) withDefaults(fallback AcquireOptions) AcquireOptions {
	if o.Timeout <= 0 {
		o.Timeout = fallback.Timeout
	}
	if o.PollInterval <= 0 {
		o.PollInterval = fallback.PollInterval
	}
	if o.StablePolls <= 0 {
		o.StablePolls = fallback.StablePolls
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultAcquireTimeout
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.StablePolls <= 0 {
		o.StablePolls = DefaultStablePolls
	}
	return o
}
