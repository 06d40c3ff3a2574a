// Package locator finds the message composer on a live page by walking a
// prioritized cascade of selector patterns.
package locator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"grouplock/internal/browser"
	"grouplock/internal/heuristics"
	"grouplock/internal/logging"

	"go.uber.org/zap"
)

// ErrElementNotFound means no pattern in the cascade produced an acceptable
// element.
var ErrElementNotFound = errors.New("message input not found")

// Locator holds the pauses taken before and during discovery.
type Locator struct {
	Settle      time.Duration
	ScrollPause time.Duration
	Log         browser.Logf
}

func (l *Locator) logf(format string, args ...any) {
	if l.Log != nil {
		l.Log(format, args...)
	}
}

// Find waits for the page to settle, scrolls to trigger lazy content and then
// returns the first acceptable element of the highest priority pattern.
// Cancellation is observed only during the waits.
func (l *Locator) Find(ctx context.Context, f Finder, p *heuristics.Profile) (Element, error) {
	log := logging.Get(logging.CategoryLocator)
	op := context.WithoutCancel(ctx)

	l.logf("Looking for message input...")
	if !browser.Sleep(ctx, l.Settle) {
		return Element{}, ctx.Err()
	}

	for _, bottom := range []bool{true, false} {
		if err := f.Scroll(op, bottom); err != nil {
			log.Debug("scroll failed", zap.Bool("bottom", bottom), zap.Error(err))
		}
		if !browser.Sleep(ctx, l.ScrollPause) {
			return Element{}, ctx.Err()
		}
	}

	if title, url := f.PageInfo(op); title != "" || url != "" {
		l.logf("Page: %s (%s)", title, url)
	}

	for i, pattern := range p.ComposerSelectors {
		els, err := f.Query(op, pattern)
		if err != nil {
			log.Debug("pattern query failed", zap.String("pattern", pattern), zap.Error(err))
			continue
		}
		if el, ok := pick(els, pattern, p); ok {
			l.logf("Found message input with pattern %d: %s", i+1, pattern)
			log.Info("composer located",
				zap.Int("priority", i+1),
				zap.String("pattern", pattern),
				zap.String("tag", el.Tag),
				zap.String("label", el.Label))
			return el, nil
		}
	}
	return Element{}, fmt.Errorf("%w after %d patterns", ErrElementNotFound, len(p.ComposerSelectors))
}

func pick(els []Element, pattern string, p *heuristics.Profile) (Element, bool) {
	fallback := p.IsFallback(pattern)
	for _, el := range els {
		if !el.Visible() || !el.Editable {
			continue
		}
		if fallback || p.MatchesKeyword(el.Label) {
			return el, true
		}
	}
	return Element{}, false
}
