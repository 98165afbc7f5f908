package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/entrhq/notebook-mcp/pkg/library"
	"github.com/entrhq/notebook-mcp/pkg/notebook"
)

// Tool is one operation exposed to MCP clients.
type Tool interface {
	// Name returns the unique identifier for this tool (e.g., "ask_question")
	Name() string

	// Description returns a human-readable description of what this tool does
	Description() string

	// Schema returns the JSON schema for this tool's input parameters
	Schema() map[string]interface{}

	// Execute runs the tool with the given JSON arguments.
	// Returns: (result text, structured result, error)
	// The structured result is optional and may be nil.
	Execute(ctx context.Context, arguments json.RawMessage) (string, map[string]interface{}, error)
}

// ErrInvalidArguments marks a call whose arguments do not match the schema.
var ErrInvalidArguments = errors.New("invalid arguments")

// BaseToolSchema creates a common JSON schema structure for a tool
// with the given properties and required fields
func BaseToolSchema(properties map[string]interface{}, required []string) map[string]interface{} {
	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func stringProperty(description string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "description": description}
}

func integerProperty(description string, minimum int) map[string]interface{} {
	return map[string]interface{}{"type": "integer", "description": description, "minimum": minimum}
}

// decodeArgs unmarshals arguments into v. Missing or null arguments decode
// as an empty object.
func decodeArgs(arguments json.RawMessage, v interface{}) error {
	trimmed := bytes.TrimSpace(arguments)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		trimmed = []byte("{}")
	}
	if err := json.Unmarshal(trimmed, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	return nil
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidArguments, fmt.Sprintf(format, args...))
}

func millisArg(name string, ms int) (time.Duration, error) {
	if ms < 0 {
		return 0, invalid("%s must not be negative", name)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

// render encodes v as indented JSON for the text result and as a map for
// the structured one.
func render(v interface{}) (string, map[string]interface{}, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", nil, fmt.Errorf("encode result: %w", err)
	}
	var structured map[string]interface{}
	if err := json.Unmarshal(data, &structured); err != nil {
		structured = nil
	}
	return string(data), structured, nil
}

// withHint appends the remediation a client should attempt next.
func withHint(err error) error {
	var hint string
	switch {
	case errors.Is(err, notebook.ErrRateLimited):
		hint = "the account hit the remote usage limit; wait or run re_auth with another account"
	case errors.Is(err, notebook.ErrCapacityExceeded):
		hint = "all sessions are busy; close one with close_session or retry later"
	case errors.Is(err, notebook.ErrAuthentication):
		hint = "run setup_auth to sign in again"
	case errors.Is(err, notebook.ErrSessionNotFound):
		hint = "list_sessions shows the open sessions"
	case errors.Is(err, notebook.ErrMissingTarget), errors.Is(err, library.ErrNoActive):
		hint = "pass notebook_id or select a notebook with select_notebook"
	case errors.Is(err, library.ErrNotFound):
		hint = "list_notebooks shows the library"
	default:
		return err
	}
	return fmt.Errorf("%w (%s)", err, hint)
}
