package notebook

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/entrhq/notebook-mcp/pkg/logging"
)

// Acquirer waits for a streamed answer to settle. An answer is accepted only
// after the same text has been observed on StablePolls consecutive polls
// while the page reports no activity.
type Acquirer struct {
	log              logging.Logger
	rateLimitPhrases []string
	now              func() time.Time
}

// NewAcquirer creates an Acquirer. Visible error banners containing any of
// rateLimitPhrases abort the wait with ErrRateLimited.
func NewAcquirer(logger logging.Logger, rateLimitPhrases []string) *Acquirer {
	phrases := make([]string, 0, len(rateLimitPhrases))
	for _, p := range rateLimitPhrases {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			phrases = append(phrases, p)
		}
	}
	return &Acquirer{
		log:              logging.OrNop(logger),
		rateLimitPhrases: phrases,
		now:              time.Now,
	}
}

// AwaitAnswer polls adapter until a new answer is stable, the timeout
// elapses, or ctx is done. known holds the answers visible before the
// question was submitted; they are never returned. The first poll happens
// immediately.
func (a *Acquirer) AwaitAnswer(ctx context.Context, adapter PageSignalAdapter, question string, known KnownSet, opts AcquireOptions) (string, error) {
	opts = opts.withDefaults(AcquireOptions{})
	deadline := a.now().Add(opts.Timeout)

	p := &poll{
		adapter:  adapter,
		known:    known.Clone(),
		question: normalize(question),
	}

	var (
		last   string
		stable int
		polls  int
	)

	for {
		polls++
		candidate, found, err := a.tick(ctx, p)
		if err != nil {
			return "", err
		}

		if found {
			if stable > 0 && candidate == last {
				stable++
			} else {
				last = candidate
				stable = 1
			}
			if stable >= opts.StablePolls {
				a.log.Debugf("Answer stable after %d polls (%d chars)", polls, len(candidate))
				return candidate, nil
			}
		}

		remaining := deadline.Sub(a.now())
		if remaining <= 0 {
			return "", fmt.Errorf("%w after %s (%d polls)", ErrAcquisitionTimeout, opts.Timeout, polls)
		}
		wait := opts.PollInterval
		if wait > remaining {
			wait = remaining
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", ctx.Err()
		case <-timer.C:
		}
	}
}

type poll struct {
	adapter  PageSignalAdapter
	known    KnownSet
	question string
}

// tick runs one poll. It reports the first new answer text, if any.
func (a *Acquirer) tick(ctx context.Context, p *poll) (string, bool, error) {
	busy, err := p.adapter.IsBusy(ctx)
	if err != nil {
		return "", false, a.pollError(ctx, p, "busy check", err)
	}
	if busy {
		return "", false, nil
	}

	answers, err := p.adapter.ListVisibleAnswers(ctx)
	if err != nil {
		return "", false, a.pollError(ctx, p, "answer scan", err)
	}

	if len(answers) > p.known.Len() {
		for _, text := range answers {
			if p.known.Contains(text) {
				continue
			}
			if strings.TrimSpace(text) == "" {
				// Container rendered before any text arrived.
				continue
			}
			if normalize(text) == p.question {
				p.known.Add(text)
				continue
			}
			return text, true, nil
		}
	}

	return "", false, a.checkRateLimit(ctx, p)
}

// pollError swallows transient page errors unless the tab has gone away.
func (a *Acquirer) pollError(ctx context.Context, p *poll, what string, err error) error {
	if !p.adapter.IsSessionAlive(ctx) {
		return fmt.Errorf("%w: %s: %v", ErrSessionDisconnected, what, err)
	}
	a.log.Debugf("Ignoring %s error: %v", what, err)
	return nil
}

func (a *Acquirer) checkRateLimit(ctx context.Context, p *poll) error {
	if len(a.rateLimitPhrases) == 0 {
		return nil
	}
	messages, err := p.adapter.ErrorMessages(ctx)
	if err != nil {
		return nil
	}
	for _, msg := range messages {
		lower := strings.ToLower(msg)
		for _, phrase := range a.rateLimitPhrases {
			if strings.Contains(lower, phrase) {
				return fmt.Errorf("%w: %s", ErrRateLimited, strings.TrimSpace(msg))
			}
		}
	}
	return nil
}

// normalize folds case and whitespace for echo comparison.
func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
