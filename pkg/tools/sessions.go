package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/entrhq/notebook-mcp/pkg/notebook"
)

// ListSessionsTool lists the open notebook sessions.
type ListSessionsTool struct {
	services Services
}

// NewListSessionsTool creates a new list sessions tool.
func NewListSessionsTool(s Services) *ListSessionsTool {
	return &ListSessionsTool{services: s}
}

// Name returns the tool name.
func (t *ListSessionsTool) Name() string {
	return "list_sessions"
}

// Description returns the tool description.
func (t *ListSessionsTool) Description() string {
	return "List all open notebook sessions with their notebook, age and question count."
}

// Schema returns the tool's JSON schema.
func (t *ListSessionsTool) Schema() map[string]interface{} {
	return BaseToolSchema(map[string]interface{}{}, nil)
}

// Execute lists all sessions.
func (t *ListSessionsTool) Execute(ctx context.Context, arguments json.RawMessage) (string, map[string]interface{}, error) {
	var input struct{}
	if err := decodeArgs(arguments, &input); err != nil {
		return "", nil, err
	}
	sessions := t.services.Sessions.List()
	return render(map[string]interface{}{
		"count":    len(sessions),
		"capacity": t.services.Sessions.Capacity(),
		"sessions": sessions,
	})
}

// SessionInput names one session.
type SessionInput struct {
	SessionID  string `json:"session_id"`
	NotebookID string `json:"notebook_id"`
}

// CloseSessionTool closes a notebook session.
type CloseSessionTool struct {
	services Services
}

// NewCloseSessionTool creates a new close session tool.
func NewCloseSessionTool(s Services) *CloseSessionTool {
	return &CloseSessionTool{services: s}
}

// Name returns the tool name.
func (t *CloseSessionTool) Name() string {
	return "close_session"
}

// Description returns the tool description.
func (t *CloseSessionTool) Description() string {
	return "Close a notebook session and its browser tab. A question in progress finishes first."
}

// Schema returns the tool's JSON schema.
func (t *CloseSessionTool) Schema() map[string]interface{} {
	return BaseToolSchema(
		map[string]interface{}{
			"session_id": stringProperty("Session to close"),
		},
		[]string{"session_id"},
	)
}

// Execute closes the session.
func (t *CloseSessionTool) Execute(ctx context.Context, arguments json.RawMessage) (string, map[string]interface{}, error) {
	var input SessionInput
	if err := decodeArgs(arguments, &input); err != nil {
		return "", nil, err
	}
	if input.SessionID == "" {
		return "", nil, invalid("session_id is required")
	}

	_, existed := t.services.Sessions.Get(input.SessionID)
	if err := t.services.Sessions.Close(input.SessionID); err != nil {
		return "", nil, fmt.Errorf("failed to close session: %w", err)
	}
	return render(map[string]interface{}{
		"session_id": input.SessionID,
		"closed":     existed,
	})
}

// ResetSessionTool starts a fresh conversation in an existing session.
type ResetSessionTool struct {
	services Services
}

// NewResetSessionTool creates a new reset session tool.
func NewResetSessionTool(s Services) *ResetSessionTool {
	return &ResetSessionTool{services: s}
}

// Name returns the tool name.
func (t *ResetSessionTool) Name() string {
	return "reset_session"
}

// Description returns the tool description.
func (t *ResetSessionTool) Description() string {
	return "Discard the conversation of a session and start over in a new tab, keeping the session id. " +
		"Pass notebook_id to move the session to another notebook."
}

// Schema returns the tool's JSON schema.
func (t *ResetSessionTool) Schema() map[string]interface{} {
	return BaseToolSchema(
		map[string]interface{}{
			"session_id":  stringProperty("Session to reset"),
			"notebook_id": stringProperty("Optional library id or https URL to switch to"),
		},
		[]string{"session_id"},
	)
}

// Execute resets the session.
func (t *ResetSessionTool) Execute(ctx context.Context, arguments json.RawMessage) (string, map[string]interface{}, error) {
	var input SessionInput
	if err := decodeArgs(arguments, &input); err != nil {
		return "", nil, err
	}
	if input.SessionID == "" {
		return "", nil, invalid("session_id is required")
	}

	var target string
	if input.NotebookID != "" {
		resolved, err := t.services.Library.Resolve(ctx, input.NotebookID)
		if err != nil {
			return "", nil, withHint(err)
		}
		target = resolved.URL
	}

	// Every reset opens a tab, so it waits for a usable sign-in like a
	// question does. An unknown id without a notebook fails below instead.
	if _, known := t.services.Sessions.Get(input.SessionID); known || target != "" {
		check, err := t.services.Dispatcher.EnsureReady(ctx)
		if err != nil {
			return "", nil, withHint(err)
		}
		if !check.IsReady {
			return render(map[string]interface{}{
				"session_id": input.SessionID,
				"reset":      false,
				"status":     notebook.StatusBlocked,
				"message":    check.Message,
			})
		}
	}

	s, err := t.services.Sessions.Reset(ctx, input.SessionID, target)
	if err != nil {
		return "", nil, withHint(err)
	}
	info := s.Info()
	return render(map[string]interface{}{
		"session_id": info.ID,
		"reset":      true,
		"session":    info,
	})
}
