package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/entrhq/notebook-mcp/pkg/notebook"
)

const hostExitPollInterval = time.Second

// AuthInput holds the parameters shared by the authentication tools.
type AuthInput struct {
	WaitForHostExitMS int `json:"wait_for_host_exit_ms"`
	TimeoutMS         int `json:"timeout_ms"`
}

type authOutput struct {
	Authenticated bool                           `json:"authenticated"`
	Blocked       bool                           `json:"blocked,omitempty"`
	Message       string                         `json:"message"`
	Readiness     notebook.ConnectionCheckResult `json:"readiness"`
}

func authSchema() map[string]interface{} {
	return BaseToolSchema(
		map[string]interface{}{
			"wait_for_host_exit_ms": integerProperty("How long to wait for a running Chrome to be closed before giving up", 0),
			"timeout_ms":            integerProperty("How long the sign-in window stays open", 0),
		},
		nil,
	)
}

// signIn runs an interactive login unless a host browser holds the profile.
// With force unset an already valid credential is left alone.
func signIn(ctx context.Context, s Services, input AuthInput, force bool) (string, map[string]interface{}, error) {
	wait, err := millisArg("wait_for_host_exit_ms", input.WaitForHostExitMS)
	if err != nil {
		return "", nil, err
	}
	timeout, err := millisArg("timeout_ms", input.TimeoutMS)
	if err != nil {
		return "", nil, err
	}
	if timeout == 0 {
		timeout = s.LoginTimeout
	}

	check := s.Readiness.Check(ctx)
	if check.IsReady && !force {
		return render(authOutput{Authenticated: true, Message: "Already authenticated.", Readiness: check})
	}
	if check.RequiresUserAction {
		if wait <= 0 || !s.Readiness.AwaitHostProcessExit(ctx, wait, hostExitPollInterval) {
			return render(authOutput{Blocked: true, Message: check.Message, Readiness: check})
		}
	}

	if err := s.Dispatcher.Login(ctx, timeout); err != nil {
		return "", nil, withHint(err)
	}

	check = s.Readiness.Check(ctx)
	out := authOutput{Authenticated: check.IsReady, Message: "Signed in.", Readiness: check}
	if !check.IsReady {
		out.Message = "Sign-in finished but the stored credential is still not usable: " + check.Message
	}
	return render(out)
}

// SetupAuthTool opens a visible browser for the user to sign in.
type SetupAuthTool struct {
	services Services
}

// NewSetupAuthTool creates a new setup auth tool.
func NewSetupAuthTool(s Services) *SetupAuthTool {
	return &SetupAuthTool{services: s}
}

// Name returns the tool name.
func (t *SetupAuthTool) Name() string {
	return "setup_auth"
}

// Description returns the tool description.
func (t *SetupAuthTool) Description() string {
	return "Open a visible browser window so the user can sign in to Google. " +
		"Does nothing when already authenticated. Chrome must be closed first; " +
		"wait_for_host_exit_ms waits for the user to close it."
}

// Schema returns the tool's JSON schema.
func (t *SetupAuthTool) Schema() map[string]interface{} {
	return authSchema()
}

// Execute runs the login flow.
func (t *SetupAuthTool) Execute(ctx context.Context, arguments json.RawMessage) (string, map[string]interface{}, error) {
	var input AuthInput
	if err := decodeArgs(arguments, &input); err != nil {
		return "", nil, err
	}
	return signIn(ctx, t.services, input, false)
}

// ReAuthTool signs out and back in, for example to switch accounts.
type ReAuthTool struct {
	services Services
}

// NewReAuthTool creates a new re-auth tool.
func NewReAuthTool(s Services) *ReAuthTool {
	return &ReAuthTool{services: s}
}

// Name returns the tool name.
func (t *ReAuthTool) Name() string {
	return "re_auth"
}

// Description returns the tool description.
func (t *ReAuthTool) Description() string {
	return "Close all sessions, clear the stored sign-in and sign in again. " +
		"Use it to switch Google accounts after hitting a usage limit."
}

// Schema returns the tool's JSON schema.
func (t *ReAuthTool) Schema() map[string]interface{} {
	return authSchema()
}

// Execute clears the credential and runs the login flow.
func (t *ReAuthTool) Execute(ctx context.Context, arguments json.RawMessage) (string, map[string]interface{}, error) {
	var input AuthInput
	if err := decodeArgs(arguments, &input); err != nil {
		return "", nil, err
	}

	if err := t.services.Sessions.CloseAll(); err != nil {
		return "", nil, fmt.Errorf("failed to close sessions: %w", err)
	}
	if err := t.services.Credentials.ClearCredentials(); err != nil {
		return "", nil, fmt.Errorf("failed to clear credentials: %w", err)
	}
	return signIn(ctx, t.services, input, true)
}
