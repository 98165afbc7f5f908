package browser

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/entrhq/notebook-mcp/pkg/logging"
	"github.com/entrhq/notebook-mcp/pkg/notebook"
)

// Identity owns the single persistent browser profile. Every session tab is
// a page of the same browser context, so all sessions share one signed-in
// account. Identity implements notebook.AdapterFactory.
type Identity struct {
	opts Options
	log  logging.Logger

	mu          sync.Mutex
	playwright  *playwright.Playwright
	context     playwright.BrowserContext
	contextDown *atomic.Bool
	initialized bool
}

// NewIdentity creates an identity. Initialize must be called before use.
func NewIdentity(opts Options) *Identity {
	opts = opts.withDefaults()
	return &Identity{
		opts: opts,
		log:  logging.OrNop(opts.Logger),
	}
}

// Initialize installs the browser driver if needed and starts Playwright.
func (i *Identity) Initialize() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.initialized {
		return nil
	}

	// Driver output would corrupt the protocol stream on stdout.
	opts := &playwright.RunOptions{
		Verbose: false,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}

	if err := playwright.Install(opts); err != nil {
		return fmt.Errorf("failed to install playwright: %w", err)
	}

	pw, err := playwright.Run(opts)
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	i.playwright = pw
	i.initialized = true
	return nil
}

// Open creates a tab for target and waits until its question box is ready.
func (i *Identity) Open(ctx context.Context, target string) (notebook.PageSignalAdapter, error) {
	targetURL, err := i.resolveTarget(target)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := i.Initialize(); err != nil {
		return nil, err
	}

	i.mu.Lock()
	bctx, err := i.browserContextLocked(i.opts.Headless)
	if err != nil {
		i.mu.Unlock()
		return nil, err
	}
	page, err := bctx.NewPage()
	i.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	timeout := millis(i.opts.NavigationTimeout)
	page.SetDefaultTimeout(timeout)

	waitUntil := playwright.WaitUntilState("domcontentloaded")
	if _, err := page.Goto(targetURL, playwright.PageGotoOptions{WaitUntil: &waitUntil, Timeout: &timeout}); err != nil {
		_ = page.Close()
		return nil, fmt.Errorf("navigation failed: %w", err)
	}

	if isSignInURL(page.URL()) {
		_ = page.Close()
		return nil, notebook.NewAuthenticationError("redirected to sign-in", nil)
	}

	state := playwright.WaitForSelectorState("visible")
	if _, err := page.WaitForSelector(i.opts.Selectors.Input, playwright.PageWaitForSelectorOptions{State: &state, Timeout: &timeout}); err != nil {
		_ = page.Close()
		if isSignInURL(page.URL()) {
			return nil, notebook.NewAuthenticationError("redirected to sign-in", err)
		}
		return nil, fmt.Errorf("question input not ready: %w", err)
	}

	i.log.Debugf("Opened tab for %s", targetURL)
	return newPage(page, targetURL, i.opts.Selectors, i.log), nil
}

// Login opens a visible window on the site and waits for the user to sign
// in. The resulting cookies are exported to the state file. Existing tabs
// are closed because the profile can only be held by one browser at a time.
func (i *Identity) Login(ctx context.Context, timeout time.Duration) error {
	if err := i.Initialize(); err != nil {
		return err
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	i.closeContextLocked()
	bctx, err := i.browserContextLocked(false)
	if err != nil {
		return notebook.NewAuthenticationError("launch visible browser", err)
	}
	// The next Open relaunches with the configured headless mode.
	defer i.closeContextLocked()

	var page playwright.Page
	if pages := bctx.Pages(); len(pages) > 0 {
		page = pages[0]
	} else if page, err = bctx.NewPage(); err != nil {
		return notebook.NewAuthenticationError("open login page", err)
	}

	if _, err := page.Goto(i.opts.BaseURL); err != nil {
		return notebook.NewAuthenticationError("open login page", err)
	}

	i.log.Infof("Waiting for sign-in at %s", i.opts.BaseURL)
	pattern, err := signedInPattern(i.opts.BaseURL)
	if err != nil {
		return err
	}
	timeoutMillis := millis(timeout)
	if err := page.WaitForURL(pattern, playwright.PageWaitForURLOptions{Timeout: &timeoutMillis}); err != nil {
		return notebook.NewAuthenticationError("sign-in not completed in time", err)
	}
	if err := ctx.Err(); err != nil {
		return notebook.NewAuthenticationError("login cancelled", err)
	}

	if err := os.MkdirAll(filepath.Dir(i.opts.StatePath), 0o700); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	if _, err := bctx.StorageState(i.opts.StatePath); err != nil {
		return fmt.Errorf("failed to save browser state: %w", err)
	}

	i.log.Infof("Sign-in complete, state saved to %s", i.opts.StatePath)
	return nil
}

// ClearCredentials signs the profile out by dropping its cookies and the
// exported state file.
func (i *Identity) ClearCredentials() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.context != nil && !i.contextDown.Load() {
		if err := i.context.ClearCookies(); err != nil {
			return fmt.Errorf("failed to clear cookies: %w", err)
		}
	}
	if err := os.Remove(i.opts.StatePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove browser state: %w", err)
	}
	return nil
}

// Shutdown closes the browser and stops Playwright.
func (i *Identity) Shutdown() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.closeContextLocked()

	if i.initialized && i.playwright != nil {
		if err := i.playwright.Stop(); err != nil {
			return fmt.Errorf("failed to stop playwright: %w", err)
		}
		i.initialized = false
	}
	return nil
}

// browserContextLocked returns the running profile context, launching it
// when absent or crashed. Callers must hold i.mu.
func (i *Identity) browserContextLocked(headless bool) (playwright.BrowserContext, error) {
	if !i.initialized {
		return nil, fmt.Errorf("browser identity not initialized")
	}
	if i.context != nil && !i.contextDown.Load() {
		return i.context, nil
	}

	if err := os.MkdirAll(i.opts.ProfileDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create profile directory: %w", err)
	}

	bctx, err := i.playwright.Chromium.LaunchPersistentContext(i.opts.ProfileDir, playwright.BrowserTypeLaunchPersistentContextOptions{
		Headless: &headless,
		Viewport: &playwright.Size{
			Width:  i.opts.Viewport.Width,
			Height: i.opts.Viewport.Height,
		},
		Args: []string{"--disable-blink-features=AutomationControlled"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	// The close event is delivered on the driver goroutine, so it must not
	// take i.mu.
	down := &atomic.Bool{}
	bctx.OnClose(func(playwright.BrowserContext) { down.Store(true) })

	i.context = bctx
	i.contextDown = down
	i.log.Infof("Launched browser profile %s (headless=%t)", i.opts.ProfileDir, headless)
	return bctx, nil
}

func (i *Identity) closeContextLocked() {
	if i.context == nil {
		return
	}
	if !i.contextDown.Load() {
		_ = i.context.Close() // Ignore errors, continue cleanup
	}
	i.context = nil
	i.contextDown = nil
}

// resolveTarget accepts an absolute https URL on the site's host.
func (i *Identity) resolveTarget(target string) (string, error) {
	base, err := url.Parse(i.opts.BaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base url: %w", err)
	}
	u, err := url.Parse(strings.TrimSpace(target))
	if err != nil {
		return "", fmt.Errorf("invalid notebook url %q: %w", target, err)
	}
	if u.Scheme != "https" || u.Host == "" {
		return "", fmt.Errorf("invalid notebook url %q: must be an absolute https url", target)
	}
	if !strings.EqualFold(u.Hostname(), base.Hostname()) {
		return "", fmt.Errorf("invalid notebook url %q: host must be %s", target, base.Hostname())
	}
	return u.String(), nil
}

func signedInPattern(baseURL string) (*regexp.Regexp, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", baseURL)
	}
	return regexp.MustCompile("^" + regexp.QuoteMeta(u.Scheme+"://"+u.Host) + "(/|$)"), nil
}

func isSignInURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Hostname(), signInHost)
}
