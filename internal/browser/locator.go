// File: internal/browser/locator.go
package browser

import "fmt"

// By identifies a selector language.
type By string

const (
	ByCSS   By = "css"
	ByXPath By = "xpath"
)

// Locator is a single selector in a specific language.
type Locator struct {
	By    By
	Value string
}

func (l Locator) String() string {
	return fmt.Sprintf("%s=%s", l.By, l.Value)
}

// CSS builds a CSS locator.
func CSS(value string) Locator { return Locator{By: ByCSS, Value: value} }

// XPath builds an XPath locator.
func XPath(value string) Locator { return Locator{By: ByXPath, Value: value} }

// ID targets an element by its id attribute. Compiles to a CSS query so the
// driver only speaks two selector languages.
func ID(value string) Locator { return CSS("#" + value) }

// Name targets an element by its name attribute.
func Name(value string) Locator { return CSS(fmt.Sprintf(`[name=%q]`, value)) }

// LocatorSet names a logical page element and carries an ordered list of
// candidate selectors for it. Candidates are tried in order; the first one
// that matches wins. Site markup drifts, so most elements carry a primary
// selector plus older or looser fallbacks.
type LocatorSet struct {
	Name       string
	Candidates []Locator
}

// NewLocatorSet builds a locator set from candidates in priority order.
func NewLocatorSet(name string, candidates ...Locator) LocatorSet {
	return LocatorSet{Name: name, Candidates: candidates}
}

// Formatf returns a copy of the set with every candidate value treated as a
// fmt format string and expanded with args. Used for templated selectors
// such as player-count buttons.
func (ls LocatorSet) Formatf(args ...any) LocatorSet {
	out := LocatorSet{Name: ls.Name, Candidates: make([]Locator, len(ls.Candidates))}
	for i, c := range ls.Candidates {
		out.Candidates[i] = Locator{By: c.By, Value: fmt.Sprintf(c.Value, args...)}
	}
	return out
}

// WaitCondition is the readiness state a caller requires of a matched element.
type WaitCondition int

const (
	// Present requires only that a node matching the selector exists.
	Present WaitCondition = iota
	// Visible additionally requires a non-zero rendered box that is not
	// hidden by CSS.
	Visible
	// Clickable additionally requires the element to be enabled.
	Clickable
)

func (w WaitCondition) String() string {
	switch w {
	case Present:
		return "present"
	case Visible:
		return "visible"
	case Clickable:
		return "clickable"
	default:
		return fmt.Sprintf("WaitCondition(%d)", int(w))
	}
}
