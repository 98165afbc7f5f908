package browser

import (
	"time"

	"github.com/entrhq/notebook-mcp/pkg/logging"
)

// Selectors locate the page elements the adapter reads and drives.
type Selectors struct {
	// Input is the question text box
	Input string

	// Answer matches every answer container, in document order
	Answer string

	// Busy matches the "still composing" indicator; empty disables the check
	Busy string

	// Error matches visible error banners; empty disables the check
	Error string
}

// Options configures the shared browser identity.
type Options struct {
	// Headless controls whether session tabs run without a visible window.
	// Interactive login always runs headed.
	Headless bool

	// ProfileDir is the persistent browser profile shared by all sessions
	ProfileDir string

	// StatePath receives the exported cookie state after a login
	StatePath string

	// BaseURL is the site root; targets must live under its host
	BaseURL string

	// NavigationTimeout bounds page loads and waits for the input box
	NavigationTimeout time.Duration

	// Viewport sets the window size of new tabs
	Viewport *Viewport

	Selectors Selectors
	Logger    logging.Logger
}

// Viewport represents the browser viewport dimensions.
type Viewport struct {
	Width  int
	Height int
}

// Default values
const (
	DefaultNavigationTimeout = 30 * time.Second
	DefaultViewportWidth     = 1280
	DefaultViewportHeight    = 720
	DefaultBaseURL           = "https://notebooklm.google.com/"
)

// signInHost is where the site redirects when the profile is signed out.
const signInHost = "accounts.google.com"

func (o Options) withDefaults() Options {
	if o.NavigationTimeout <= 0 {
		o.NavigationTimeout = DefaultNavigationTimeout
	}
	if o.Viewport == nil {
		o.Viewport = &Viewport{Width: DefaultViewportWidth, Height: DefaultViewportHeight}
	}
	if o.BaseURL == "" {
		o.BaseURL = DefaultBaseURL
	}
	return o
}

func millis(d time.Duration) float64 {
	return float64(d / time.Millisecond)
}
