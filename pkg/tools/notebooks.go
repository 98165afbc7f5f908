package tools

import (
	"context"
	"encoding/json"

	"github.com/entrhq/notebook-mcp/pkg/library"
)

// NotebookInput names a library entry.
type NotebookInput struct {
	ID string `json:"id"`
}

// AddNotebookInput describes a notebook to register.
type AddNotebookInput struct {
	URL         string   `json:"url"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Topics      []string `json:"topics"`
}

// AddNotebookTool registers a notebook in the library.
type AddNotebookTool struct {
	services Services
}

// NewAddNotebookTool creates a new add notebook tool.
func NewAddNotebookTool(s Services) *AddNotebookTool {
	return &AddNotebookTool{services: s}
}

// Name returns the tool name.
func (t *AddNotebookTool) Name() string {
	return "add_notebook"
}

// Description returns the tool description.
func (t *AddNotebookTool) Description() string {
	return "Add a NotebookLM notebook to the library under a short id derived from its name. " +
		"The first notebook added becomes the active one."
}

// Schema returns the tool's JSON schema.
func (t *AddNotebookTool) Schema() map[string]interface{} {
	return BaseToolSchema(
		map[string]interface{}{
			"url":         stringProperty("Notebook share URL (https)"),
			"name":        stringProperty("Display name"),
			"description": stringProperty("What the notebook contains"),
			"topics": map[string]interface{}{
				"type":        "array",
				"items":       map[string]interface{}{"type": "string"},
				"description": "Topics covered by the notebook",
			},
		},
		[]string{"url", "name"},
	)
}

// Execute adds the notebook.
func (t *AddNotebookTool) Execute(ctx context.Context, arguments json.RawMessage) (string, map[string]interface{}, error) {
	var input AddNotebookInput
	if err := decodeArgs(arguments, &input); err != nil {
		return "", nil, err
	}
	if input.URL == "" || input.Name == "" {
		return "", nil, invalid("url and name are required")
	}

	nb, err := t.services.Library.Add(ctx, library.Notebook{
		URL:         input.URL,
		Name:        input.Name,
		Description: input.Description,
		Topics:      input.Topics,
	})
	if err != nil {
		return "", nil, err
	}
	return render(nb)
}

// ListNotebooksTool lists the library.
type ListNotebooksTool struct {
	services Services
}

// NewListNotebooksTool creates a new list notebooks tool.
func NewListNotebooksTool(s Services) *ListNotebooksTool {
	return &ListNotebooksTool{services: s}
}

// Name returns the tool name.
func (t *ListNotebooksTool) Name() string {
	return "list_notebooks"
}

// Description returns the tool description.
func (t *ListNotebooksTool) Description() string {
	return "List the notebooks in the library and mark the active one."
}

// Schema returns the tool's JSON schema.
func (t *ListNotebooksTool) Schema() map[string]interface{} {
	return BaseToolSchema(map[string]interface{}{}, nil)
}

// Execute lists the notebooks.
func (t *ListNotebooksTool) Execute(ctx context.Context, arguments json.RawMessage) (string, map[string]interface{}, error) {
	var input struct{}
	if err := decodeArgs(arguments, &input); err != nil {
		return "", nil, err
	}
	notebooks, err := t.services.Library.List(ctx)
	if err != nil {
		return "", nil, err
	}
	if notebooks == nil {
		notebooks = []library.Notebook{}
	}
	return render(map[string]interface{}{
		"count":     len(notebooks),
		"notebooks": notebooks,
	})
}

// SelectNotebookTool makes a notebook the default for new questions.
type SelectNotebookTool struct {
	services Services
}

// NewSelectNotebookTool creates a new select notebook tool.
func NewSelectNotebookTool(s Services) *SelectNotebookTool {
	return &SelectNotebookTool{services: s}
}

// Name returns the tool name.
func (t *SelectNotebookTool) Name() string {
	return "select_notebook"
}

// Description returns the tool description.
func (t *SelectNotebookTool) Description() string {
	return "Make a library notebook the active one used when ask_question has no notebook_id."
}

// Schema returns the tool's JSON schema.
func (t *SelectNotebookTool) Schema() map[string]interface{} {
	return BaseToolSchema(
		map[string]interface{}{"id": stringProperty("Library id of the notebook")},
		[]string{"id"},
	)
}

// Execute selects the notebook.
func (t *SelectNotebookTool) Execute(ctx context.Context, arguments json.RawMessage) (string, map[string]interface{}, error) {
	var input NotebookInput
	if err := decodeArgs(arguments, &input); err != nil {
		return "", nil, err
	}
	if input.ID == "" {
		return "", nil, invalid("id is required")
	}
	nb, err := t.services.Library.Select(ctx, input.ID)
	if err != nil {
		return "", nil, withHint(err)
	}
	return render(nb)
}

// RemoveNotebookTool deletes a notebook from the library.
type RemoveNotebookTool struct {
	services Services
}

// NewRemoveNotebookTool creates a new remove notebook tool.
func NewRemoveNotebookTool(s Services) *RemoveNotebookTool {
	return &RemoveNotebookTool{services: s}
}

// Name returns the tool name.
func (t *RemoveNotebookTool) Name() string {
	return "remove_notebook"
}

// Description returns the tool description.
func (t *RemoveNotebookTool) Description() string {
	return "Remove a notebook from the library. Open sessions on it stay open."
}

// Schema returns the tool's JSON schema.
func (t *RemoveNotebookTool) Schema() map[string]interface{} {
	return BaseToolSchema(
		map[string]interface{}{"id": stringProperty("Library id of the notebook")},
		[]string{"id"},
	)
}

// Execute removes the notebook.
func (t *RemoveNotebookTool) Execute(ctx context.Context, arguments json.RawMessage) (string, map[string]interface{}, error) {
	var input NotebookInput
	if err := decodeArgs(arguments, &input); err != nil {
		return "", nil, err
	}
	if input.ID == "" {
		return "", nil, invalid("id is required")
	}
	if err := t.services.Library.Remove(ctx, input.ID); err != nil {
		return "", nil, withHint(err)
	}

	out := map[string]interface{}{"id": input.ID, "removed": true}
	if active, err := t.services.Library.Active(ctx); err == nil {
		out["active_notebook"] = active.ID
	}
	return render(out)
}
