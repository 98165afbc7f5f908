package notebook

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/entrhq/notebook-mcp/pkg/logging"
	"github.com/entrhq/notebook-mcp/pkg/metrics"
)

// DefaultLoginTimeout bounds an automatically started interactive login.
const DefaultLoginTimeout = 10 * time.Minute

// DispatcherOptions configures a Dispatcher.
type DispatcherOptions struct {
	// Acquire holds process-wide acquisition defaults
	Acquire AcquireOptions

	// LoginTimeout bounds automatic and explicit logins
	LoginTimeout time.Duration

	// QueriesPerMinute paces submissions across all sessions; zero disables it
	QueriesPerMinute float64

	// RateLimitPhrases mark visible error banners as remote rate limiting
	RateLimitPhrases []string

	Logger  logging.Logger
	Metrics *metrics.Metrics
}

// AskRequest is one question to dispatch.
type AskRequest struct {
	Question string

	// SessionID selects an existing conversation; empty starts a new one
	SessionID string

	// TargetResourceID is required when the session does not exist yet
	TargetResourceID string

	// Options override the dispatcher defaults for this question
	Options AcquireOptions
}

// Dispatcher runs a question through readiness, session resolution,
// submission and answer acquisition.
type Dispatcher struct {
	registry    *Registry
	gate        *ReadinessGate
	credentials CredentialGate
	acquirer    *Acquirer
	limiter     *rate.Limiter
	opts        DispatcherOptions
	log         logging.Logger
	metrics     *metrics.Metrics
}

// NewDispatcher wires a dispatcher.
func NewDispatcher(registry *Registry, gate *ReadinessGate, credentials CredentialGate, opts DispatcherOptions) *Dispatcher {
	if opts.LoginTimeout <= 0 {
		opts.LoginTimeout = DefaultLoginTimeout
	}
	opts.Acquire = opts.Acquire.withDefaults(AcquireOptions{})

	d := &Dispatcher{
		registry:    registry,
		gate:        gate,
		credentials: credentials,
		acquirer:    NewAcquirer(opts.Logger, opts.RateLimitPhrases),
		opts:        opts,
		log:         logging.OrNop(opts.Logger),
		metrics:     opts.Metrics,
	}
	if opts.QueriesPerMinute > 0 {
		d.limiter = rate.NewLimiter(rate.Limit(opts.QueriesPerMinute/60), 1)
	}
	return d
}

// Registry returns the session registry.
func (d *Dispatcher) Registry() *Registry { return d.registry }

// Gate returns the readiness gate.
func (d *Dispatcher) Gate() *ReadinessGate { return d.gate }

// Ask dispatches one question. A user-blocked connection and an acquisition
// timeout are reported as result statuses; other failures are errors.
func (d *Dispatcher) Ask(ctx context.Context, req AskRequest) (*AnswerResult, error) {
	start := time.Now()

	if strings.TrimSpace(req.Question) == "" {
		return nil, ErrEmptyQuestion
	}

	check, err := d.EnsureReady(ctx)
	if err != nil {
		d.metrics.ObserveQuestion(metrics.OutcomeAuthFailed, time.Since(start))
		return nil, err
	}
	if !check.IsReady {
		d.metrics.ObserveQuestion(metrics.OutcomeBlocked, time.Since(start))
		return &AnswerResult{
			Status:  StatusBlocked,
			Blocked: check.Message,
			Elapsed: time.Since(start),
		}, nil
	}

	s, release, err := d.registry.Acquire(ctx, req.SessionID, req.TargetResourceID)
	if err != nil {
		d.observeFailure(err, start)
		return nil, err
	}
	answer, err := d.dispatch(ctx, s, release, req)

	info := s.Info()
	if errors.Is(err, ErrAcquisitionTimeout) {
		d.log.Warnf("Session %s timed out waiting for an answer", s.ID())
		d.metrics.ObserveQuestion(metrics.OutcomeTimedOut, time.Since(start))
		return &AnswerResult{
			Status:    StatusTimedOut,
			SessionID: s.ID(),
			Session:   &info,
			Elapsed:   time.Since(start),
		}, nil
	}
	if err != nil {
		d.observeFailure(err, start)
		return nil, err
	}

	elapsed := time.Since(start)
	d.metrics.ObserveQuestion(metrics.OutcomeAnswered, elapsed)
	d.log.Infof("Session %s answered in %s", s.ID(), elapsed.Round(time.Millisecond))

	return &AnswerResult{
		Status:    StatusAnswered,
		Answer:    answer,
		SessionID: s.ID(),
		Session:   &info,
		Elapsed:   elapsed,
	}, nil
}

// dispatch runs the question on a held session and releases it, recreating
// its tab once when it disconnects mid-question.
func (d *Dispatcher) dispatch(ctx context.Context, s *Session, release func(), req AskRequest) (string, error) {
	defer release()
	opts := req.Options.withDefaults(d.opts.Acquire)

	answer, err := d.askOnce(ctx, s, req.Question, opts)
	if errors.Is(err, ErrSessionDisconnected) {
		d.log.Warnf("Session %s disconnected, reconnecting: %v", s.ID(), err)
		if rerr := d.registry.Reconnect(ctx, s); rerr != nil {
			return "", fmt.Errorf("%w: %v", ErrSessionDisconnected, rerr)
		}
		answer, err = d.askOnce(ctx, s, req.Question, opts)
	}
	if err != nil {
		return "", err
	}

	s.touch(d.registry.now())
	return answer, nil
}

func (d *Dispatcher) askOnce(ctx context.Context, s *Session, question string, opts AcquireOptions) (string, error) {
	adapter := s.Adapter()
	if !adapter.IsSessionAlive(ctx) {
		return "", fmt.Errorf("%w: tab closed", ErrSessionDisconnected)
	}

	visible, err := adapter.ListVisibleAnswers(ctx)
	if err != nil {
		return "", d.pageError(ctx, adapter, "snapshot answers", err)
	}
	known := NewKnownSet(visible...)

	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}

	if err := adapter.SubmitQuestion(ctx, question); err != nil {
		return "", d.pageError(ctx, adapter, "submit question", err)
	}

	return d.acquirer.AwaitAnswer(ctx, adapter, question, known, opts)
}

func (d *Dispatcher) pageError(ctx context.Context, adapter PageSignalAdapter, what string, err error) error {
	if !adapter.IsSessionAlive(ctx) {
		return fmt.Errorf("%w: %s: %v", ErrSessionDisconnected, what, err)
	}
	return fmt.Errorf("%s: %w", what, err)
}

// EnsureReady runs the readiness gate and, when the credential can be
// repaired unattended, an interactive login followed by one re-check. A
// result that is not ready with a nil error means the user must act.
// Concurrent callers share one login: whoever runs second finds the
// credential repaired and skips it.
func (d *Dispatcher) EnsureReady(ctx context.Context) (ConnectionCheckResult, error) {
	check := d.gate.Check(ctx)
	if check.IsReady || check.RequiresUserAction {
		return check, nil
	}

	if err := d.login(ctx, d.opts.LoginTimeout, true); err != nil {
		return check, err
	}

	check = d.gate.Check(ctx)
	if !check.IsReady {
		return check, NewAuthenticationError("credential still invalid after login", nil)
	}
	return check, nil
}

// Login runs an interactive login while no tab is being opened.
func (d *Dispatcher) Login(ctx context.Context, timeout time.Duration) error {
	return d.login(ctx, timeout, false)
}

func (d *Dispatcher) login(ctx context.Context, timeout time.Duration, skipIfReady bool) error {
	if timeout <= 0 {
		timeout = d.opts.LoginTimeout
	}

	skipped := false
	err := d.registry.RunExclusive(func() error {
		if skipIfReady && d.credentials.HasValidCredential(ctx) {
			skipped = true
			return nil
		}
		d.log.Infof("Starting interactive login (timeout %s)", timeout)
		return d.credentials.StartInteractiveLogin(ctx, timeout)
	})
	if skipped {
		d.log.Debugf("Credential repaired by a concurrent login")
		return nil
	}
	d.metrics.RecordLogin(err == nil)
	if err != nil {
		d.log.Errorf("Interactive login failed: %v", err)
		var authErr *AuthenticationError
		if errors.As(err, &authErr) {
			return err
		}
		return NewAuthenticationError("interactive login", err)
	}
	d.log.Infof("Interactive login completed")
	return nil
}

func (d *Dispatcher) observeFailure(err error, start time.Time) {
	outcome := metrics.OutcomeError
	switch {
	case errors.Is(err, ErrCapacityExceeded):
		outcome = metrics.OutcomeCapacity
	case errors.Is(err, ErrRateLimited):
		outcome = metrics.OutcomeRateLimited
	case errors.Is(err, ErrSessionDisconnected):
		outcome = metrics.OutcomeDisconnected
	case errors.Is(err, ErrAuthentication):
		outcome = metrics.OutcomeAuthFailed
	}
	d.metrics.ObserveQuestion(outcome, time.Since(start))
}
