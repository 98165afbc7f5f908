package config

import (
	"os"
	"strings"
	"sync"
)

// EnvPrefix prefixes environment overrides: NOTEBOOK_MCP_<SECTION>_<KEY>.
const EnvPrefix = "NOTEBOOK_MCP_"

var (
	// globalManager is the singleton configuration manager instance
	globalManager *Manager
	globalMu      sync.Mutex
)

// Initialize creates and initializes the global configuration manager.
// This should be called once at application startup.
func Initialize(configPath string) error {
	manager, err := Load(configPath, os.Environ())
	if err != nil {
		return err
	}

	globalMu.Lock()
	defer globalMu.Unlock()
	globalManager = manager
	return nil
}

// Load builds a manager with the default sections, applies the file at
// configPath and then environment overrides from environ.
func Load(configPath string, environ []string) (*Manager, error) {
	store, err := NewFileStore(configPath)
	if err != nil {
		return nil, err
	}

	manager := NewManager(store)
	for _, section := range []Section{NewSessionsSection(), NewBrowserSection(), NewLibrarySection()} {
		if err := manager.RegisterSection(section); err != nil {
			return nil, err
		}
	}

	if err := manager.LoadAll(); err != nil {
		return nil, err
	}
	if err := applyEnv(manager, environ); err != nil {
		return nil, err
	}
	return manager, nil
}

// applyEnv overlays NOTEBOOK_MCP_<SECTION>_<KEY> variables onto sections.
func applyEnv(manager *Manager, environ []string) error {
	for _, section := range manager.GetSections() {
		prefix := EnvPrefix + strings.ToUpper(section.ID()) + "_"
		overrides := make(map[string]interface{})
		for _, kv := range environ {
			name, value, ok := strings.Cut(kv, "=")
			if !ok || !strings.HasPrefix(name, prefix) {
				continue
			}
			overrides[strings.ToLower(strings.TrimPrefix(name, prefix))] = value
		}
		if len(overrides) == 0 {
			continue
		}
		if err := section.SetData(overrides); err != nil {
			return err
		}
		if err := section.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Global returns the global configuration manager.
// Panics if Initialize has not been called.
func Global() *Manager {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalManager == nil {
		panic("config not initialized: call config.Initialize first")
	}

	return globalManager
}

// IsInitialized returns true if the global configuration has been initialized.
func IsInitialized() bool {
	globalMu.Lock()
	defer globalMu.Unlock()
	return globalManager != nil
}

// GetSessions returns the sessions section from global config.
// Returns nil if config is not initialized.
func GetSessions() *SessionsSection {
	return sectionAs[*SessionsSection](SectionIDSessions)
}

// GetBrowser returns the browser section from global config.
// Returns nil if config is not initialized.
func GetBrowser() *BrowserSection {
	return sectionAs[*BrowserSection](SectionIDBrowser)
}

// GetLibrary returns the library section from global config.
// Returns nil if config is not initialized.
func GetLibrary() *LibrarySection {
	return sectionAs[*LibrarySection](SectionIDLibrary)
}

func sectionAs[T Section](id string) T {
	var zero T
	if !IsInitialized() {
		return zero
	}
	section, ok := Global().GetSection(id)
	if !ok {
		return zero
	}
	typed, ok := section.(T)
	if !ok {
		return zero
	}
	return typed
}
