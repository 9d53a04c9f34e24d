// File: internal/browser/errors.go
package browser

import (
	"errors"
	"strings"
)

// Sentinel errors for element interaction failures. Callers classify
// recoverable conditions with errors.Is and decide whether to retry,
// fall back, or abort.
var (
	// ErrElementNotFound indicates that no candidate selector matched a node
	// within the allotted time.
	ErrElementNotFound = errors.New("element not found")

	// ErrStaleElement indicates that the element reference (NodeID) is no
	// longer valid, likely due to a page navigation or DOM modification.
	ErrStaleElement = errors.New("element is stale or detached from the document")

	// ErrClickIntercepted indicates another element covers the click target's
	// center point and would receive the click instead.
	ErrClickIntercepted = errors.New("click intercepted by overlapping element")

	// ErrNotInteractable indicates the element exists but cannot currently
	// receive input (zero-size box, hidden, or pointer events disabled).
	ErrNotInteractable = errors.New("element is not interactable")

	// ErrPageLoadTimeout indicates the page readiness gate did not pass
	// within its timeout.
	ErrPageLoadTimeout = errors.New("page did not reach ready state in time")
)

// isStaleCDPError reports whether a raw CDP error means the backing node is
// gone. CDP surfaces this as error -32000 or a "Could not find node" message
// rather than a typed error.
func isStaleCDPError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "Could not find node") ||
		strings.Contains(msg, "No node with given id") ||
		strings.Contains(msg, "-32000")
}
