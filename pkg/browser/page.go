package browser

import (
	"context"
	"fmt"
	"strings"

	"github.com/playwright-community/playwright-go"

	"github.com/entrhq/notebook-mcp/pkg/logging"
)

// Page adapts one tab to notebook.PageSignalAdapter.
type Page struct {
	page      playwright.Page
	url       string
	selectors Selectors
	log       logging.Logger
}

func newPage(page playwright.Page, url string, selectors Selectors, logger logging.Logger) *Page {
	return &Page{
		page:      page,
		url:       url,
		selectors: selectors,
		log:       logging.OrNop(logger),
	}
}

// URL returns the notebook the tab was opened on.
func (p *Page) URL() string { return p.url }

// IsBusy reports whether any busy indicator is visible.
func (p *Page) IsBusy(ctx context.Context) (bool, error) {
	if p.selectors.Busy == "" {
		return false, nil
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	elements, err := p.page.QuerySelectorAll(p.selectors.Busy)
	if err != nil {
		return false, fmt.Errorf("busy query failed: %w", err)
	}
	for _, el := range elements {
		if visible, err := el.IsVisible(); err == nil && visible {
			return true, nil
		}
	}
	return false, nil
}

// ListVisibleAnswers returns the rendered text of every answer container.
func (p *Page) ListVisibleAnswers(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	elements, err := p.page.QuerySelectorAll(p.selectors.Answer)
	if err != nil {
		return nil, fmt.Errorf("answer query failed: %w", err)
	}

	texts := make([]string, 0, len(elements))
	for _, el := range elements {
		text, err := answerText(el)
		if err != nil {
			return nil, fmt.Errorf("answer extraction failed: %w", err)
		}
		texts = append(texts, text)
	}
	return texts, nil
}

// answerText renders the container's markup, falling back to the
// browser's own text rendering when the markup cannot be read.
func answerText(el playwright.ElementHandle) (string, error) {
	if markup, err := el.InnerHTML(); err == nil {
		if text, err := renderAnswer(markup); err == nil {
			return text, nil
		}
	}
	text, err := el.InnerText()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// SubmitQuestion fills the question box and presses Enter.
func (p *Page) SubmitQuestion(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := p.page.Fill(p.selectors.Input, text); err != nil {
		return fmt.Errorf("fill failed: %w", err)
	}
	if err := p.page.Press(p.selectors.Input, "Enter"); err != nil {
		return fmt.Errorf("submit failed: %w", err)
	}
	p.log.Debugf("Submitted question (%d chars) on %s", len(text), p.url)
	return nil
}

// IsSessionAlive reports whether the tab is open and still executing script.
func (p *Page) IsSessionAlive(ctx context.Context) bool {
	if p.page.IsClosed() {
		return false
	}
	_, err := p.page.Evaluate("() => document.readyState")
	return err == nil
}

// ErrorMessages returns the text of visible error banners.
func (p *Page) ErrorMessages(ctx context.Context) ([]string, error) {
	if p.selectors.Error == "" {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	elements, err := p.page.QuerySelectorAll(p.selectors.Error)
	if err != nil {
		return nil, fmt.Errorf("error banner query failed: %w", err)
	}

	var messages []string
	for _, el := range elements {
		if visible, err := el.IsVisible(); err != nil || !visible {
			continue
		}
		text, err := el.InnerText()
		if err != nil {
			continue
		}
		if text = strings.TrimSpace(text); text != "" {
			messages = append(messages, text)
		}
	}
	return messages, nil
}

// Close closes the tab.
func (p *Page) Close() error {
	if p.page.IsClosed() {
		return nil
	}
	return p.page.Close()
}
