package config

import (
	"path/filepath"
	"sync"
)

// SectionIDLibrary is the identifier for the notebook library section
const SectionIDLibrary = "library"

// LibrarySection configures where the notebook library is stored.
type LibrarySection struct {
	DBPath string
	mu     sync.RWMutex
}

// NewLibrarySection creates a library section with default settings.
func NewLibrarySection() *LibrarySection {
	return &LibrarySection{}
}

// ID returns the section identifier.
func (s *LibrarySection) ID() string { return SectionIDLibrary }

// Title returns the section title.
func (s *LibrarySection) Title() string { return "Notebook Library" }

// Description returns the section description.
func (s *LibrarySection) Description() string {
	return "Location of the SQLite database holding saved notebooks."
}

// Data returns the current configuration data.
func (s *LibrarySection) Data() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return map[string]interface{}{"db_path": s.DBPath}
}

// SetData updates the configuration from the provided data.
func (s *LibrarySection) SetData(data map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if value, ok := data["db_path"]; ok {
		path, err := asString("db_path", value)
		if err != nil {
			return err
		}
		s.DBPath = path
	}
	return nil
}

// Validate validates the current configuration.
func (s *LibrarySection) Validate() error { return nil }

// Reset resets the section to default configuration.
func (s *LibrarySection) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.DBPath = ""
}

// ResolveDBPath returns the configured path, or library.db under baseDir.
func (s *LibrarySection) ResolveDBPath(baseDir string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.DBPath != "" {
		return s.DBPath
	}
	return filepath.Join(baseDir, "library.db")
}
