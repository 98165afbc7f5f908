package tools

import (
	"fmt"
	"sync"
)

// Registry holds the tools by name in registration order.
type Registry struct {
	mu     sync.RWMutex
	tools  []Tool
	byName map[string]Tool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Tool)}
}

// Register adds tools. Names must be unique.
func (r *Registry) Register(tools ...Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, t := range tools {
		if _, exists := r.byName[t.Name()]; exists {
			return fmt.Errorf("tool %q already registered", t.Name())
		}
		r.byName[t.Name()] = t
		r.tools = append(r.tools, t)
	}
	return nil
}

// Get returns the tool named name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byName[name]
	return t, ok
}

// List returns every tool in registration order.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, len(r.tools))
	copy(out, r.tools)
	return out
}

// NewDefaultRegistry registers the full notebook tool set against s.
func NewDefaultRegistry(s Services) *Registry {
	r := NewRegistry()
	// Names are distinct, so registration cannot fail.
	_ = r.Register(
		NewAskQuestionTool(s),
		NewResetSessionTool(s),
		NewListSessionsTool(s),
		NewCloseSessionTool(s),
		NewGetHealthTool(s),
		NewSetupAuthTool(s),
		NewReAuthTool(s),
		NewAddNotebookTool(s),
		NewListNotebooksTool(s),
		NewSelectNotebookTool(s),
		NewRemoveNotebookTool(s),
	)
	return r
}
