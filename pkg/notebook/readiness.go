package notebook

import (
	"context"
	"time"

	"github.com/entrhq/notebook-mcp/pkg/logging"
)

const (
	msgReady          = "Authenticated and ready."
	msgCloseHost      = "A browser is running with the automation profile. Close all Chrome windows, then retry or run setup_auth."
	msgAutoRemediable = "No valid credential. An interactive login will be started."
)

// ReadinessGate decides whether a question may proceed, must wait for the
// user, or can trigger an automatic login.
type ReadinessGate struct {
	credentials CredentialGate
	log         logging.Logger
}

// NewReadinessGate creates a gate backed by credentials.
func NewReadinessGate(credentials CredentialGate, logger logging.Logger) *ReadinessGate {
	return &ReadinessGate{
		credentials: credentials,
		log:         logging.OrNop(logger),
	}
}

// Check returns a readiness snapshot. The host process probe only runs when
// the credential is missing or stale.
func (g *ReadinessGate) Check(ctx context.Context) ConnectionCheckResult {
	if g.credentials.HasValidCredential(ctx) {
		return ConnectionCheckResult{
			IsReady:   true,
			AuthValid: true,
			Message:   msgReady,
		}
	}

	if g.credentials.IsHostProcessRunning(ctx) {
		g.log.Warnf("Credential invalid and host browser running; user action required")
		return ConnectionCheckResult{
			HostProcessRunning: true,
			RequiresUserAction: true,
			Message:            msgCloseHost,
		}
	}

	g.log.Infof("Credential invalid; login can be started automatically")
	return ConnectionCheckResult{
		CanAutoRemediate: true,
		Message:          msgAutoRemediable,
	}
}

// AwaitHostProcessExit polls until no host browser is running or timeout
// elapses. It reports whether the process is gone.
func (g *ReadinessGate) AwaitHostProcessExit(ctx context.Context, timeout, interval time.Duration) bool {
	if interval <= 0 {
		interval = time.Second
	}
	if !g.credentials.IsHostProcessRunning(ctx) {
		return true
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-deadline.C:
			return false
		case <-ticker.C:
			if !g.credentials.IsHostProcessRunning(ctx) {
				return true
			}
		}
	}
}
