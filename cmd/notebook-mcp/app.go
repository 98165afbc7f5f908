package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/entrhq/notebook-mcp/pkg/auth"
	"github.com/entrhq/notebook-mcp/pkg/browser"
	"github.com/entrhq/notebook-mcp/pkg/config"
	"github.com/entrhq/notebook-mcp/pkg/library"
	"github.com/entrhq/notebook-mcp/pkg/logging"
	"github.com/entrhq/notebook-mcp/pkg/metrics"
	"github.com/entrhq/notebook-mcp/pkg/notebook"
	"github.com/entrhq/notebook-mcp/pkg/tools"
)

// app holds the wired components of one process.
type app struct {
	log        *logging.FileLogger
	metrics    *metrics.Metrics
	identity   *browser.Identity
	creds      *auth.Gate
	sessions   *notebook.Registry
	readiness  *notebook.ReadinessGate
	dispatcher *notebook.Dispatcher
	sweeper    *notebook.Sweeper
	library    *library.Store
	settings   config.SessionsSettings
	browser    config.BrowserSettings
}

// newApp loads configuration and builds every component. Flags take
// precedence over the environment and the config file.
func newApp(cmd *cobra.Command, flags *rootFlags) (*app, error) {
	level, err := logging.ParseLevel(flags.logLevel)
	if err != nil {
		return nil, err
	}
	logger, err := logging.NewFileLogger(flags.logDir, "main", level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: logging to stderr: %v\n", err)
	}

	fail := func(err error) (*app, error) {
		_ = logger.Close()
		return nil, err
	}

	if err := config.Initialize(flags.configPath); err != nil {
		return fail(fmt.Errorf("failed to initialize configuration: %w", err))
	}
	if cmd.Flags().Changed("headless") {
		config.GetBrowser().SetHeadless(flags.headless)
	}

	dataDir := flags.dataDir
	if dataDir == "" {
		if dataDir, err = config.DefaultDir(); err != nil {
			return fail(err)
		}
	}

	a := &app{
		log:      logger,
		metrics:  metrics.New(),
		settings: config.GetSessions().Snapshot(),
		browser:  config.GetBrowser().Snapshot(dataDir),
	}

	b := a.browser
	a.identity = browser.NewIdentity(browser.Options{
		Headless:          b.Headless,
		ProfileDir:        b.ProfileDir,
		StatePath:         b.StatePath,
		BaseURL:           b.BaseURL,
		NavigationTimeout: b.NavigationTimeout,
		Selectors: browser.Selectors{
			Input:  b.InputSelector,
			Answer: b.AnswerSelector,
			Busy:   b.BusySelector,
			Error:  b.ErrorSelector,
		},
		Logger: logger.With("browser"),
	})

	a.creds = auth.NewGate(a.identity, auth.Options{
		StatePath:       b.StatePath,
		MaxAge:          b.CredentialMaxAge,
		RequiredCookies: b.AuthCookies,
		HostProcesses:   b.HostProcesses,
		Logger:          logger.With("auth"),
	})

	s := a.settings
	a.sessions = notebook.NewRegistry(a.identity, notebook.RegistryOptions{
		Capacity: s.MaxSessions,
		Logger:   logger.With("registry"),
		Metrics:  a.metrics,
	})
	a.readiness = notebook.NewReadinessGate(a.creds, logger.With("readiness"))
	a.dispatcher = notebook.NewDispatcher(a.sessions, a.readiness, a.creds, notebook.DispatcherOptions{
		Acquire: notebook.AcquireOptions{
			Timeout:      s.AnswerTimeout,
			PollInterval: s.PollInterval,
			StablePolls:  s.StablePolls,
		},
		LoginTimeout:     b.LoginTimeout,
		QueriesPerMinute: s.QueriesPerMinute,
		RateLimitPhrases: b.RateLimitPhrases,
		Logger:           logger.With("dispatcher"),
		Metrics:          a.metrics,
	})
	a.sweeper = notebook.NewSweeper(a.sessions, s.IdleTimeout, s.CleanupInterval, logger.With("sweeper"))

	dbPath := config.GetLibrary().ResolveDBPath(dataDir)
	if a.library, err = library.Open(dbPath); err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("failed to open library at %s: %w", dbPath, err)
	}

	logger.Infof("Configured: max_sessions=%d idle_timeout=%s headless=%t profile=%s",
		s.MaxSessions, s.IdleTimeout, b.Headless, b.ProfileDir)
	return a, nil
}

// services exposes the components to the tools.
func (a *app) services() tools.Services {
	return tools.Services{
		Dispatcher:   a.dispatcher,
		Sessions:     a.sessions,
		Readiness:    a.readiness,
		Library:      a.library,
		Credentials:  signOut{identity: a.identity, gate: a.creds},
		LoginTimeout: a.browser.LoginTimeout,
	}
}

// Close releases every component in reverse order of use.
func (a *app) Close() error {
	var errs []error
	if a.sweeper != nil {
		a.sweeper.Stop()
	}
	if a.sessions != nil {
		errs = append(errs, a.sessions.CloseAll())
	}
	if a.identity != nil {
		errs = append(errs, a.identity.Shutdown())
	}
	if a.creds != nil {
		errs = append(errs, a.creds.Close())
	}
	if a.library != nil {
		errs = append(errs, a.library.Close())
	}
	if a.log != nil {
		errs = append(errs, a.log.Close())
	}
	return errors.Join(errs...)
}

// signOut clears the browser cookies and drops the cached credential.
type signOut struct {
	identity *browser.Identity
	gate     *auth.Gate
}

func (s signOut) ClearCredentials() error {
	defer s.gate.Invalidate()
	return s.identity.ClearCredentials()
}
