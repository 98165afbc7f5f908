package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/entrhq/notebook-mcp/pkg/library"
	"github.com/entrhq/notebook-mcp/pkg/notebook"
)

// AskQuestionTool sends a question to a notebook and waits for a stable answer.
type AskQuestionTool struct {
	services Services
}

// NewAskQuestionTool creates a new ask question tool.
func NewAskQuestionTool(s Services) *AskQuestionTool {
	return &AskQuestionTool{services: s}
}

// Name returns the tool name.
func (t *AskQuestionTool) Name() string {
	return "ask_question"
}

// Description returns the tool description.
func (t *AskQuestionTool) Description() string {
	return "Ask a question to a NotebookLM notebook and wait for its complete answer. " +
		"Pass session_id from a previous answer to ask a follow-up in the same conversation. " +
		"Without notebook_id the active notebook from the library is used."
}

// Schema returns the tool's JSON schema.
func (t *AskQuestionTool) Schema() map[string]interface{} {
	return BaseToolSchema(
		map[string]interface{}{
			"question":         stringProperty("The question to ask"),
			"session_id":       stringProperty("Existing session to continue; omit to start a new conversation"),
			"notebook_id":      stringProperty("Library id or https URL of the notebook; defaults to the active notebook"),
			"timeout_ms":       integerProperty("How long to wait for a stable answer", 0),
			"poll_interval_ms": integerProperty("Delay between answer polls", 0),
			"stable_polls":     integerProperty("Identical consecutive polls required before the answer is final", 0),
		},
		[]string{"question"},
	)
}

// AskQuestionInput represents the parameters for a question.
type AskQuestionInput struct {
	Question       string `json:"question"`
	SessionID      string `json:"session_id"`
	NotebookID     string `json:"notebook_id"`
	TimeoutMS      int    `json:"timeout_ms"`
	PollIntervalMS int    `json:"poll_interval_ms"`
	StablePolls    int    `json:"stable_polls"`
}

type askOutput struct {
	Status     notebook.Status       `json:"status"`
	Answer     string                `json:"answer,omitempty"`
	Message    string                `json:"message,omitempty"`
	SessionID  string                `json:"session_id,omitempty"`
	NotebookID string                `json:"notebook_id,omitempty"`
	Session    *notebook.SessionInfo `json:"session,omitempty"`
	ElapsedMS  int64                 `json:"elapsed_ms"`
}

// Execute asks the question.
func (t *AskQuestionTool) Execute(ctx context.Context, arguments json.RawMessage) (string, map[string]interface{}, error) {
	var input AskQuestionInput
	if err := decodeArgs(arguments, &input); err != nil {
		return "", nil, err
	}
	if strings.TrimSpace(input.Question) == "" {
		return "", nil, invalid("question is required")
	}
	if input.StablePolls < 0 {
		return "", nil, invalid("stable_polls must not be negative")
	}
	timeout, err := millisArg("timeout_ms", input.TimeoutMS)
	if err != nil {
		return "", nil, err
	}
	interval, err := millisArg("poll_interval_ms", input.PollIntervalMS)
	if err != nil {
		return "", nil, err
	}

	target, notebookID, err := t.target(ctx, input)
	if err != nil {
		return "", nil, withHint(err)
	}

	result, err := t.services.Dispatcher.Ask(ctx, notebook.AskRequest{
		Question:         input.Question,
		SessionID:        input.SessionID,
		TargetResourceID: target,
		Options: notebook.AcquireOptions{
			Timeout:      timeout,
			PollInterval: interval,
			StablePolls:  input.StablePolls,
		},
	})
	if err != nil {
		return "", nil, withHint(err)
	}

	out := askOutput{
		Status:     result.Status,
		Answer:     result.Answer,
		SessionID:  result.SessionID,
		NotebookID: notebookID,
		Session:    result.Session,
		ElapsedMS:  result.Elapsed.Milliseconds(),
	}
	switch result.Status {
	case notebook.StatusBlocked:
		out.Message = result.Blocked
	case notebook.StatusTimedOut:
		out.Message = "No stable answer before the timeout. Ask again with the same session_id or a larger timeout_ms."
	case notebook.StatusAnswered:
		if out.NotebookID == "" && result.Session != nil {
			out.NotebookID = t.libraryID(ctx, result.Session.TargetResourceID)
		}
		if out.NotebookID != "" {
			// The notebook may have been removed while the question ran.
			if err := t.services.Library.Touch(ctx, out.NotebookID); err != nil && !errors.Is(err, library.ErrNotFound) {
				return "", nil, fmt.Errorf("record notebook usage: %w", err)
			}
		}
	}
	return render(out)
}

// target picks the notebook URL for the question. A known session keeps
// its notebook unless one is named explicitly.
func (t *AskQuestionTool) target(ctx context.Context, input AskQuestionInput) (string, string, error) {
	if input.NotebookID == "" && input.SessionID != "" {
		if _, ok := t.services.Sessions.Get(input.SessionID); ok {
			return "", "", nil
		}
	}
	resolved, err := t.services.Library.Resolve(ctx, input.NotebookID)
	if err != nil {
		return "", "", err
	}
	return resolved.URL, resolved.ID, nil
}

func (t *AskQuestionTool) libraryID(ctx context.Context, url string) string {
	if url == "" {
		return ""
	}
	resolved, err := t.services.Library.Resolve(ctx, url)
	if err != nil {
		return ""
	}
	return resolved.ID
}
