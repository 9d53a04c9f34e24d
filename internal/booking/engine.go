// File: internal/booking/engine.go
package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fairwaylabs/teesnipe/internal/browser"
)

// Interaction pacing. The widget is an Angular app that re-renders between
// steps, so every successful click is followed by a settle delay before the
// next lookup.
const (
	pollInterval        = 250 * time.Millisecond
	minCandidateSlice   = 500 * time.Millisecond
	clickAttempts       = 3
	settleDelay         = 500 * time.Millisecond
	interAttemptDelay   = 500 * time.Millisecond
	notInteractableWait = 1 * time.Second
	scrollPause         = 500 * time.Millisecond
	staleRefindTimeout  = 2 * time.Second
	readyStatePause     = 500 * time.Millisecond
)

// Engine executes resilient element interactions against a Driver. It owns
// the retry budget for locator fallbacks and the click contract; page objects
// describe intent and leave pacing here.
type Engine struct {
	driver         browser.Driver
	logger         *zap.Logger
	defaultTimeout time.Duration

	// sleep is swappable so tests can run the pacing logic without wall
	// clock delays.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewEngine creates an interaction engine. defaultTimeout bounds lookups
// whose caller does not specify one.
func NewEngine(driver browser.Driver, defaultTimeout time.Duration, logger *zap.Logger) *Engine {
	if defaultTimeout <= 0 {
		defaultTimeout = 3 * time.Second
	}
	return &Engine{
		driver:         driver,
		logger:         logger.Named("engine"),
		defaultTimeout: defaultTimeout,
		sleep:          sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Driver exposes the underlying driver for callers that need raw access
// (screenshots, page evaluation).
func (e *Engine) Driver() browser.Driver { return e.driver }

// FindElement resolves a locator set: each candidate gets an equal slice of
// the overall timeout and is polled within it, first hit wins. A found
// element is liveness-checked; one that went stale between the query and the
// check gets a single bounded re-resolution before the candidate is given up.
func (e *Engine) FindElement(ctx context.Context, set browser.LocatorSet, cond browser.WaitCondition, timeout time.Duration) (browser.Element, error) {
	if timeout <= 0 {
		timeout = e.defaultTimeout
	}
	if len(set.Candidates) == 0 {
		return nil, fmt.Errorf("locator set %q has no candidates", set.Name)
	}

	slice := timeout / time.Duration(len(set.Candidates))
	if slice < minCandidateSlice {
		slice = minCandidateSlice
	}

	log := e.logger.With(zap.String("element", set.Name), zap.Stringer("condition", cond))

	var lastErr error
	for i, loc := range set.Candidates {
		el, err := e.pollCandidate(ctx, loc, cond, slice)
		if err == nil {
			if i > 0 {
				log.Debug("Element resolved via fallback selector.",
					zap.Int("candidate", i), zap.Stringer("locator", loc))
			}
			return el, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		log.Debug("Candidate selector did not match.",
			zap.Int("candidate", i), zap.Stringer("locator", loc), zap.Error(err))
	}

	log.Warn("All candidate selectors exhausted.", zap.Duration("timeout", timeout))
	if lastErr != nil && !errors.Is(lastErr, browser.ErrElementNotFound) {
		return nil, lastErr
	}
	return nil, fmt.Errorf("%s: %w", set.Name, browser.ErrElementNotFound)
}

// FindAll resolves a locator set to every current match: candidates are
// polled in order under the same per-candidate slicing as FindElement, and
// the first locator that yields any matches returns all of them. Exhausting
// every candidate wraps ErrElementNotFound.
func (e *Engine) FindAll(ctx context.Context, set browser.LocatorSet, timeout time.Duration) ([]browser.Element, error) {
	if timeout <= 0 {
		timeout = e.defaultTimeout
	}
	if len(set.Candidates) == 0 {
		return nil, fmt.Errorf("locator set %q has no candidates", set.Name)
	}

	slice := timeout / time.Duration(len(set.Candidates))
	if slice < minCandidateSlice {
		slice = minCandidateSlice
	}

	for i, loc := range set.Candidates {
		deadline := time.Now().Add(slice)
		for {
			found, err := e.driver.ProbeAll(ctx, loc)
			if err != nil {
				return nil, err
			}
			if len(found) > 0 {
				if i > 0 {
					e.logger.Debug("Elements resolved via fallback selector.",
						zap.String("element", set.Name), zap.Stringer("locator", loc))
				}
				return found, nil
			}
			if time.Now().Add(pollInterval).After(deadline) {
				break
			}
			if err := e.sleep(ctx, pollInterval); err != nil {
				return nil, err
			}
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("%s: %w", set.Name, browser.ErrElementNotFound)
}

// pollCandidate probes a single locator repeatedly until it matches or its
// time slice runs out.
func (e *Engine) pollCandidate(ctx context.Context, loc browser.Locator, cond browser.WaitCondition, slice time.Duration) (browser.Element, error) {
	deadline := time.Now().Add(slice)
	for {
		el, err := e.driver.Probe(ctx, loc, cond)
		if err == nil {
			return e.ensureLive(ctx, el, loc, cond)
		}
		if !errors.Is(err, browser.ErrElementNotFound) {
			return nil, err
		}
		if time.Now().Add(pollInterval).After(deadline) {
			return nil, err
		}
		if err := e.sleep(ctx, pollInterval); err != nil {
			return nil, err
		}
	}
}

// ensureLive verifies a freshly matched element is still attached. If it
// detached in the window between query and use, the locator is resolved once
// more under a short timeout; a second staleness is a miss.
func (e *Engine) ensureLive(ctx context.Context, el browser.Element, loc browser.Locator, cond browser.WaitCondition) (browser.Element, error) {
	attached, err := el.Attached(ctx)
	if err != nil {
		return nil, err
	}
	if attached {
		return el, nil
	}

	e.logger.Debug("Element detached immediately after match, re-resolving once.",
		zap.Stringer("locator", loc))

	refindCtx, cancel := context.WithTimeout(ctx, staleRefindTimeout)
	defer cancel()
	for {
		fresh, err := e.driver.Probe(refindCtx, loc, cond)
		if err == nil {
			if attached, aerr := fresh.Attached(refindCtx); aerr == nil && attached {
				return fresh, nil
			}
		} else if !errors.Is(err, browser.ErrElementNotFound) && refindCtx.Err() == nil {
			return nil, err
		}
		if err := e.sleep(refindCtx, pollInterval); err != nil {
			return nil, fmt.Errorf("%s: %w", loc, browser.ErrStaleElement)
		}
	}
}

// Click resolves the locator set and applies the click contract. The return
// value reports whether a click landed; failures are logged, never raised.
func (e *Engine) Click(ctx context.Context, set browser.LocatorSet, timeout time.Duration) bool {
	el, err := e.FindElement(ctx, set, browser.Clickable, timeout)
	if err != nil {
		e.logger.Warn("Click target not found.", zap.String("element", set.Name), zap.Error(err))
		return false
	}
	return e.ClickElement(ctx, el, set.Name)
}

// ClickElement applies the click contract to an already-resolved element:
// up to clickAttempts tries; an intercepted click earns one scripted-click
// fallback per attempt; a not-interactable element earns a brief wait before
// the next attempt; a stale element aborts immediately since the handle
// cannot recover.
func (e *Engine) ClickElement(ctx context.Context, el browser.Element, name string) bool {
	log := e.logger.With(zap.String("element", name))

	// The widget disables controls by class alone; clicking them anyway
	// silently does nothing, so refuse up front.
	if class, ok, err := el.Attribute(ctx, "class"); err == nil && ok &&
		strings.Contains(class, "disabled") {
		log.Warn("Element is disabled, refusing to click.", zap.String("class", class))
		return false
	}

	if err := el.ScrollIntoView(ctx); err != nil {
		if errors.Is(err, browser.ErrStaleElement) {
			log.Warn("Element went stale before click.")
			return false
		}
		log.Debug("Scroll into view failed, clicking anyway.", zap.Error(err))
	} else if err := e.sleep(ctx, scrollPause); err != nil {
		return false
	}

	for attempt := 1; attempt <= clickAttempts; attempt++ {
		err := el.Click(ctx)
		if err == nil {
			log.Debug("Click landed.", zap.Int("attempt", attempt))
			if err := e.sleep(ctx, settleDelay); err != nil {
				return true
			}
			return true
		}

		switch {
		case errors.Is(err, browser.ErrClickIntercepted):
			log.Debug("Click intercepted, trying scripted click.", zap.Int("attempt", attempt))
			if scriptErr := el.ScriptClick(ctx); scriptErr == nil {
				log.Debug("Scripted click landed.", zap.Int("attempt", attempt))
				if err := e.sleep(ctx, settleDelay); err != nil {
					return true
				}
				return true
			} else if errors.Is(scriptErr, browser.ErrStaleElement) {
				log.Warn("Element went stale during scripted click.")
				return false
			}

		case errors.Is(err, browser.ErrNotInteractable):
			log.Debug("Element not interactable yet, waiting.", zap.Int("attempt", attempt))
			if err := e.sleep(ctx, notInteractableWait); err != nil {
				return false
			}
			continue

		case errors.Is(err, browser.ErrStaleElement):
			log.Warn("Element went stale during click.")
			return false

		default:
			if ctx.Err() != nil {
				return false
			}
			log.Debug("Click attempt failed.", zap.Int("attempt", attempt), zap.Error(err))
		}

		if attempt < clickAttempts {
			if err := e.sleep(ctx, interAttemptDelay); err != nil {
				return false
			}
		}
	}

	log.Warn("All click attempts exhausted.", zap.Int("attempts", clickAttempts))
	return false
}

// Type resolves the locator set, clears the field, and sends the text.
func (e *Engine) Type(ctx context.Context, set browser.LocatorSet, text string, timeout time.Duration) error {
	el, err := e.FindElement(ctx, set, browser.Visible, timeout)
	if err != nil {
		return err
	}
	if err := el.Clear(ctx); err != nil {
		return fmt.Errorf("clear %s: %w", set.Name, err)
	}
	if err := el.Type(ctx, text); err != nil {
		return fmt.Errorf("type into %s: %w", set.Name, err)
	}
	return nil
}

// Text resolves the locator set and returns its text content.
func (e *Engine) Text(ctx context.Context, set browser.LocatorSet, timeout time.Duration) (string, error) {
	el, err := e.FindElement(ctx, set, browser.Visible, timeout)
	if err != nil {
		return "", err
	}
	return el.Text(ctx)
}

// WaitPageReady blocks until the document reports readyState "complete" and,
// when jQuery is on the page, no AJAX requests are in flight. Both checks
// share one deadline. Callers treat a timeout as a warning, not a failure:
// a slow page may still be usable.
func (e *Engine) WaitPageReady(ctx context.Context, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = e.defaultTimeout
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for {
		ready, err := e.pageReady(waitCtx)
		if err == nil && ready {
			// Give the render loop a beat before the next interaction.
			_ = e.sleep(ctx, readyStatePause)
			return nil
		}
		if waitCtx.Err() != nil {
			return fmt.Errorf("%w (waited %s)", browser.ErrPageLoadTimeout, timeout)
		}
		if err != nil {
			e.logger.Debug("Readiness probe failed, retrying.", zap.Error(err))
		}
		if err := e.sleep(waitCtx, pollInterval); err != nil {
			return fmt.Errorf("%w (waited %s)", browser.ErrPageLoadTimeout, timeout)
		}
	}
}

func (e *Engine) pageReady(ctx context.Context) (bool, error) {
	var state string
	if err := e.driver.Eval(ctx, `document.readyState`, &state); err != nil {
		return false, err
	}
	if state != "complete" {
		return false, nil
	}

	var active int
	err := e.driver.Eval(ctx,
		`(typeof window.jQuery === 'undefined') ? 0 : window.jQuery.active`, &active)
	if err != nil {
		return false, err
	}
	return active == 0, nil
}
