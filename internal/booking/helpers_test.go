// File: internal/booking/helpers_test.go
package booking

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fairwaylabs/teesnipe/internal/browser"
)

// -- Driver fake --

// fakeDriver implements browser.Driver. Behavior is injected per test via
// the function fields; unset fields fall back to permissive defaults (pages
// ready, nothing found).
type fakeDriver struct {
	mu sync.Mutex

	probeFn    func(loc browser.Locator, cond browser.WaitCondition) (browser.Element, error)
	probeAllFn func(loc browser.Locator) ([]browser.Element, error)
	evalFn     func(expr string, out any) error

	probed      []browser.Locator
	navigations []string
	refreshes   int
	screenshots int
	closed      int
}

func (d *fakeDriver) Navigate(ctx context.Context, url string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.navigations = append(d.navigations, url)
	return nil
}

func (d *fakeDriver) Refresh(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.refreshes++
	return nil
}

func (d *fakeDriver) Probe(ctx context.Context, loc browser.Locator, cond browser.WaitCondition) (browser.Element, error) {
	d.mu.Lock()
	d.probed = append(d.probed, loc)
	fn := d.probeFn
	d.mu.Unlock()
	if fn == nil {
		return nil, fmt.Errorf("%s: %w", loc, browser.ErrElementNotFound)
	}
	return fn(loc, cond)
}

func (d *fakeDriver) ProbeAll(ctx context.Context, loc browser.Locator) ([]browser.Element, error) {
	d.mu.Lock()
	fn := d.probeAllFn
	d.mu.Unlock()
	if fn == nil {
		return nil, nil
	}
	return fn(loc)
}

func (d *fakeDriver) Eval(ctx context.Context, expr string, out any) error {
	d.mu.Lock()
	fn := d.evalFn
	d.mu.Unlock()
	if fn != nil {
		return fn(expr, out)
	}
	// Default: the page is always ready.
	if strings.Contains(expr, "readyState") {
		if p, ok := out.(*string); ok {
			*p = "complete"
		}
		return nil
	}
	if p, ok := out.(*int); ok {
		*p = 0
	}
	return nil
}

func (d *fakeDriver) Screenshot(ctx context.Context) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.screenshots++
	return []byte("png"), nil
}

func (d *fakeDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed++
	return nil
}

func (d *fakeDriver) probedValues() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	values := make([]string, len(d.probed))
	for i, loc := range d.probed {
		values[i] = loc.Value
	}
	return values
}

// -- Element fake --

// fakeElement implements browser.Element. Click results are consumed in
// order; once the script runs out, clicks succeed.
type fakeElement struct {
	loc browser.Locator

	clickResults []error
	clickCalls   int

	scriptErr   error
	scriptCalls int

	scrollErr error

	text  string
	attrs map[string]string

	typed   []string
	cleared int

	attachedResults []bool
	attachedCalls   int

	parent    browser.Element
	parentErr error

	// children routes scoped Query calls by selector.
	children map[string]browser.Element
}

func (e *fakeElement) Locator() browser.Locator { return e.loc }

func (e *fakeElement) Click(ctx context.Context) error {
	idx := e.clickCalls
	e.clickCalls++
	if idx < len(e.clickResults) {
		return e.clickResults[idx]
	}
	return nil
}

func (e *fakeElement) ScriptClick(ctx context.Context) error {
	e.scriptCalls++
	return e.scriptErr
}

func (e *fakeElement) ScrollIntoView(ctx context.Context) error { return e.scrollErr }

func (e *fakeElement) Clear(ctx context.Context) error {
	e.cleared++
	return nil
}

func (e *fakeElement) Type(ctx context.Context, text string) error {
	e.typed = append(e.typed, text)
	return nil
}

func (e *fakeElement) Text(ctx context.Context) (string, error) { return e.text, nil }

func (e *fakeElement) Attribute(ctx context.Context, name string) (string, bool, error) {
	v, ok := e.attrs[name]
	return v, ok, nil
}

func (e *fakeElement) Parent(ctx context.Context) (browser.Element, error) {
	if e.parentErr != nil {
		return nil, e.parentErr
	}
	if e.parent == nil {
		return nil, fmt.Errorf("parent: %w", browser.ErrElementNotFound)
	}
	return e.parent, nil
}

func (e *fakeElement) Query(ctx context.Context, selector string) (browser.Element, error) {
	if child, ok := e.children[selector]; ok {
		return child, nil
	}
	return nil, fmt.Errorf("%q: %w", selector, browser.ErrElementNotFound)
}

func (e *fakeElement) Attached(ctx context.Context) (bool, error) {
	idx := e.attachedCalls
	e.attachedCalls++
	if idx < len(e.attachedResults) {
		return e.attachedResults[idx], nil
	}
	return true, nil
}

// -- Engine construction --

// sleepRecorder replaces the engine's sleep so pacing logic runs without
// wall-clock delays.
type sleepRecorder struct {
	mu        sync.Mutex
	durations []time.Duration
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	r.durations = append(r.durations, d)
	r.mu.Unlock()
	// Yield briefly so deadline-bound poll loops make progress in real time
	// without busy-spinning.
	time.Sleep(time.Millisecond)
	return nil
}

func (r *sleepRecorder) recorded() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.durations...)
}

func newTestEngine(driver browser.Driver) (*Engine, *sleepRecorder) {
	rec := &sleepRecorder{}
	e := NewEngine(driver, 3*time.Second, zap.NewNop())
	e.sleep = rec.sleep
	return e, rec
}

func newTestPages(driver browser.Driver) (*Pages, *sleepRecorder) {
	engine, rec := newTestEngine(driver)
	pages := NewPages(engine, zap.NewNop())
	pages.loginTimeout = 200 * time.Millisecond
	pages.sheetTimeout = 200 * time.Millisecond
	return pages, rec
}
