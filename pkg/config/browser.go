package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"sync"
	"time"
)

const (
	// SectionIDBrowser is the identifier for the browser settings section
	SectionIDBrowser = "browser"

	defaultHeadless          = true
	defaultBaseURL           = "https://notebooklm.google.com/"
	defaultLoginTimeout      = 10 * time.Minute
	defaultNavigationTimeout = 30 * time.Second
	defaultCredentialMaxAge  = 24 * time.Hour
	defaultInputSelector     = "textarea.query-box-input"
	defaultAnswerSelector    = ".to-user-container .message-text-content"
	defaultBusySelector      = "div.thinking-message"
	defaultErrorSelector     = "mat-snack-bar-container, .error-message"
)

var (
	defaultHostProcesses    = []string{"chrome", "Google Chrome", "chrome.exe"}
	defaultAuthCookies      = []string{"SID", "HSID", "SSID", "APISID", "SAPISID"}
	defaultRateLimitPhrases = []string{
		"rate limit",
		"too many requests",
		"daily limit",
		"quota exceeded",
		"try again later",
	}
)

// BrowserSection configures the shared browser identity and page selectors.
type BrowserSection struct {
	Headless          bool
	ProfileDir        string
	StatePath         string
	BaseURL           string
	LoginTimeout      time.Duration
	NavigationTimeout time.Duration
	CredentialMaxAge  time.Duration
	HostProcesses     []string
	AuthCookies       []string
	InputSelector     string
	AnswerSelector    string
	BusySelector      string
	ErrorSelector     string
	RateLimitPhrases  []string
	mu                sync.RWMutex
}

// NewBrowserSection creates a browser section with default settings.
func NewBrowserSection() *BrowserSection {
	s := &BrowserSection{}
	s.Reset()
	return s
}

// ID returns the section identifier.
func (s *BrowserSection) ID() string {
	return SectionIDBrowser
}

// Title returns the section title.
func (s *BrowserSection) Title() string {
	return "Browser"
}

// Description returns the section description.
func (s *BrowserSection) Description() string {
	return "Browser profile, credential storage, login flow and page selectors."
}

// Data returns the current configuration data.
func (s *BrowserSection) Data() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return map[string]interface{}{
		"headless":           s.Headless,
		"profile_dir":        s.ProfileDir,
		"state_path":         s.StatePath,
		"base_url":           s.BaseURL,
		"login_timeout":      s.LoginTimeout.String(),
		"navigation_timeout": s.NavigationTimeout.String(),
		"credential_max_age": s.CredentialMaxAge.String(),
		"host_processes":     append([]string(nil), s.HostProcesses...),
		"auth_cookies":       append([]string(nil), s.AuthCookies...),
		"input_selector":     s.InputSelector,
		"answer_selector":    s.AnswerSelector,
		"busy_selector":      s.BusySelector,
		"error_selector":     s.ErrorSelector,
		"rate_limit_phrases": append([]string(nil), s.RateLimitPhrases...),
	}
}

// SetData updates the configuration from the provided data.
//
//nolint:gocyclo
func (s *BrowserSection) SetData(data map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	for key, value := range data {
		switch key {
		case "headless":
			s.Headless, err = asBool(key, value)
		case "profile_dir":
			s.ProfileDir, err = asString(key, value)
		case "state_path":
			s.StatePath, err = asString(key, value)
		case "base_url":
			s.BaseURL, err = asString(key, value)
		case "login_timeout":
			s.LoginTimeout, err = asDuration(key, value)
		case "navigation_timeout":
			s.NavigationTimeout, err = asDuration(key, value)
		case "credential_max_age":
			s.CredentialMaxAge, err = asDuration(key, value)
		case "host_processes":
			s.HostProcesses, err = asStringSlice(key, value)
		case "auth_cookies":
			s.AuthCookies, err = asStringSlice(key, value)
		case "input_selector":
			s.InputSelector, err = asString(key, value)
		case "answer_selector":
			s.AnswerSelector, err = asString(key, value)
		case "busy_selector":
			s.BusySelector, err = asString(key, value)
		case "error_selector":
			s.ErrorSelector, err = asString(key, value)
		case "rate_limit_phrases":
			s.RateLimitPhrases, err = asStringSlice(key, value)
		default:
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Validate validates the current configuration.
func (s *BrowserSection) Validate() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, err := url.Parse(s.BaseURL)
	if err != nil || u.Scheme != "https" || u.Host == "" {
		return fmt.Errorf("base_url must be an absolute https URL, got %q", s.BaseURL)
	}
	if s.LoginTimeout < time.Minute {
		return fmt.Errorf("login_timeout must be at least 1m, got %v", s.LoginTimeout)
	}
	if s.NavigationTimeout <= 0 {
		return fmt.Errorf("navigation_timeout must be positive, got %v", s.NavigationTimeout)
	}
	if s.CredentialMaxAge <= 0 {
		return fmt.Errorf("credential_max_age must be positive, got %v", s.CredentialMaxAge)
	}
	if s.InputSelector == "" || s.AnswerSelector == "" {
		return fmt.Errorf("input_selector and answer_selector are required")
	}
	return nil
}

// Reset resets the section to default configuration.
func (s *BrowserSection) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Headless = defaultHeadless
	s.ProfileDir = ""
	s.StatePath = ""
	s.BaseURL = defaultBaseURL
	s.LoginTimeout = defaultLoginTimeout
	s.NavigationTimeout = defaultNavigationTimeout
	s.CredentialMaxAge = defaultCredentialMaxAge
	s.HostProcesses = append([]string(nil), defaultHostProcesses...)
	s.AuthCookies = append([]string(nil), defaultAuthCookies...)
	s.InputSelector = defaultInputSelector
	s.AnswerSelector = defaultAnswerSelector
	s.BusySelector = defaultBusySelector
	s.ErrorSelector = defaultErrorSelector
	s.RateLimitPhrases = append([]string(nil), defaultRateLimitPhrases...)
}

// SetHeadless overrides the headless flag (CLI precedence).
func (s *BrowserSection) SetHeadless(headless bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Headless = headless
}

// Snapshot returns a copy of the values with empty paths resolved under baseDir.
func (s *BrowserSection) Snapshot(baseDir string) BrowserSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()

	settings := BrowserSettings{
		Headless:          s.Headless,
		ProfileDir:        s.ProfileDir,
		StatePath:         s.StatePath,
		BaseURL:           s.BaseURL,
		LoginTimeout:      s.LoginTimeout,
		NavigationTimeout: s.NavigationTimeout,
		CredentialMaxAge:  s.CredentialMaxAge,
		HostProcesses:     append([]string(nil), s.HostProcesses...),
		AuthCookies:       append([]string(nil), s.AuthCookies...),
		InputSelector:     s.InputSelector,
		AnswerSelector:    s.AnswerSelector,
		BusySelector:      s.BusySelector,
		ErrorSelector:     s.ErrorSelector,
		RateLimitPhrases:  append([]string(nil), s.RateLimitPhrases...),
	}
	if settings.ProfileDir == "" {
		settings.ProfileDir = filepath.Join(baseDir, "chrome_profile")
	}
	if settings.StatePath == "" {
		settings.StatePath = filepath.Join(baseDir, "browser_state", "state.json")
	}
	return settings
}

// BrowserSettings is an immutable copy of BrowserSection values.
type BrowserSettings struct {
	Headless          bool
	ProfileDir        string
	StatePath         string
	BaseURL           string
	LoginTimeout      time.Duration
	NavigationTimeout time.Duration
	CredentialMaxAge  time.Duration
	HostProcesses     []string
	AuthCookies       []string
	InputSelector     string
	AnswerSelector    string
	BusySelector      string
	ErrorSelector     string
	RateLimitPhrases  []string
}
