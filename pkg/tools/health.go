package tools

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/entrhq/notebook-mcp/pkg/library"
	"github.com/entrhq/notebook-mcp/pkg/notebook"
)

// GetHealthTool reports authentication, session and library state.
type GetHealthTool struct {
	services Services
}

// NewGetHealthTool creates a new health tool.
func NewGetHealthTool(s Services) *GetHealthTool {
	return &GetHealthTool{services: s}
}

// Name returns the tool name.
func (t *GetHealthTool) Name() string {
	return "get_health"
}

// Description returns the tool description.
func (t *GetHealthTool) Description() string {
	return "Report whether the server is signed in and ready, how many sessions are open and which notebook is active."
}

// Schema returns the tool's JSON schema.
func (t *GetHealthTool) Schema() map[string]interface{} {
	return BaseToolSchema(map[string]interface{}{}, nil)
}

type healthOutput struct {
	Status         string                         `json:"status"`
	Readiness      notebook.ConnectionCheckResult `json:"readiness"`
	ActiveSessions int                            `json:"active_sessions"`
	MaxSessions    int                            `json:"max_sessions"`
	ActiveNotebook *library.Notebook              `json:"active_notebook,omitempty"`
}

// Execute collects the health snapshot.
func (t *GetHealthTool) Execute(ctx context.Context, arguments json.RawMessage) (string, map[string]interface{}, error) {
	var input struct{}
	if err := decodeArgs(arguments, &input); err != nil {
		return "", nil, err
	}

	check := t.services.Readiness.Check(ctx)
	out := healthOutput{
		Status:         healthStatus(check),
		Readiness:      check,
		ActiveSessions: t.services.Sessions.Len(),
		MaxSessions:    t.services.Sessions.Capacity(),
	}

	active, err := t.services.Library.Active(ctx)
	switch {
	case err == nil:
		out.ActiveNotebook = active
	case !errors.Is(err, library.ErrNoActive):
		return "", nil, err
	}
	return render(out)
}

func healthStatus(check notebook.ConnectionCheckResult) string {
	switch {
	case check.IsReady:
		return "ready"
	case check.RequiresUserAction:
		return "blocked"
	default:
		return "needs_login"
	}
}
