// File: internal/browser/driver.go
package browser

import "context"

// Driver abstracts the live page. The production implementation drives a
// Chrome instance over CDP; tests substitute fakes.
//
// Probe calls are single-shot: they answer "does this selector match a node
// satisfying cond right now" and return quickly. Polling across candidates
// and deadlines belongs to the caller, which lets one engine own the retry
// budget for an entire locator set instead of each selector blocking
// independently.
type Driver interface {
	// Navigate loads a URL and waits for the initial load event.
	Navigate(ctx context.Context, url string) error

	// Refresh reloads the current page.
	Refresh(ctx context.Context) error

	// Probe returns the first element matching loc that satisfies cond, or
	// ErrElementNotFound if no such element exists right now.
	Probe(ctx context.Context, loc Locator, cond WaitCondition) (Element, error)

	// ProbeAll returns every element currently matching loc. An empty page
	// yields an empty slice, not an error.
	ProbeAll(ctx context.Context, loc Locator) ([]Element, error)

	// Eval runs a JavaScript expression in the page and unmarshals the
	// result into out. Pass nil to discard the result.
	Eval(ctx context.Context, expr string, out any) error

	// Screenshot captures the visible viewport as PNG bytes.
	Screenshot(ctx context.Context) ([]byte, error)

	// Close tears down the browser. Safe to call more than once.
	Close() error
}

// Element is a handle to a matched DOM node. Handles are snapshots: if the
// page re-renders, the handle goes stale and interactions return
// ErrStaleElement.
type Element interface {
	// Click dispatches a real mouse click at the element's center. Returns
	// ErrClickIntercepted, ErrNotInteractable, or ErrStaleElement for the
	// recoverable failure classes.
	Click(ctx context.Context) error

	// ScriptClick invokes the element's click() method directly, bypassing
	// hit testing. Used as a fallback when a real click is intercepted.
	ScriptClick(ctx context.Context) error

	// ScrollIntoView scrolls the element to the center of the viewport.
	ScrollIntoView(ctx context.Context) error

	// Clear empties the element's value, then Type sends keystrokes.
	Clear(ctx context.Context) error
	Type(ctx context.Context, text string) error

	// Text returns the element's trimmed text content.
	Text(ctx context.Context) (string, error)

	// Attribute returns the named attribute and whether it is set.
	Attribute(ctx context.Context, name string) (string, bool, error)

	// Parent returns the element's parent element.
	Parent(ctx context.Context) (Element, error)

	// Query returns the first descendant matching the CSS selector, or
	// ErrElementNotFound. Scoped lookups keep sibling structures apart when
	// the page repeats the same markup per item.
	Query(ctx context.Context, selector string) (Element, error)

	// Attached reports whether the underlying node is still connected to
	// the document. A false result with a nil error is the normal way to
	// learn a handle went stale.
	Attached(ctx context.Context) (bool, error)

	// Locator returns the locator that matched this element.
	Locator() Locator
}
