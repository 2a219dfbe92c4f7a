// Package browser is the only boundary to the automated browser. Callers
// locate elements with XPath Locators, wait for them with WaitUntil and act
// on the returned Elements.
package browser

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/cdp"
)

// Condition is the state a located element must reach before WaitUntil
// returns.
type Condition int

const (
	// Present means attached to the document.
	Present Condition = iota
	// Visible means rendered with a non-empty box.
	Visible
	// Clickable means visible and not disabled.
	Clickable
)

func (c Condition) String() string {
	switch c {
	case Present:
		return "present"
	case Visible:
		return "visible"
	case Clickable:
		return "clickable"
	default:
		return fmt.Sprintf("condition(%d)", int(c))
	}
}

// Locator addresses elements by XPath. Role names what the element is for
// and only shows up in logs and errors.
type Locator struct {
	Role  string
	XPath string
}

func (l Locator) String() string {
	if l.Role == "" {
		return l.XPath
	}
	return l.Role + " " + l.XPath
}

// Nth narrows the locator to its i-th match (zero based) in document order.
func (l Locator) Nth(i int) Locator {
	return Locator{Role: l.Role, XPath: fmt.Sprintf("(%s)[%d]", l.XPath, i+1)}
}

// Within scopes a relative locator (starting with "//" or "/") to parent.
func (l Locator) Within(parent Locator) Locator {
	return Locator{Role: l.Role, XPath: parent.XPath + l.XPath}
}

// Element is a node found in the window that was current at lookup time.
type Element struct {
	ID cdp.NodeID
}

// Page is the set of UI operations the booking workflow needs.
//
// Content that renders after a navigation or click must be awaited with
// WaitUntil before Find, FindAll, Click or TypeText touch it. WaitUntil
// uses a single per-deployment timeout.
type Page interface {
	// Navigate replaces the current window's document. Failures are
	// reported as *NavigationError.
	Navigate(ctx context.Context, url string) error
	// WaitUntil blocks until loc matches an element meeting cond and
	// returns all matches. Expiry is reported as *WaitTimeoutError.
	WaitUntil(ctx context.Context, loc Locator, cond Condition) ([]Element, error)
	// Find returns the first match, if any, without waiting.
	Find(ctx context.Context, loc Locator) (Element, bool, error)
	// FindAll returns every match without waiting; zero matches is not an error.
	FindAll(ctx context.Context, loc Locator) ([]Element, error)
	Click(ctx context.Context, el Element) error
	TypeText(ctx context.Context, el Element, text string) error
	Text(ctx context.Context, el Element) (string, error)
	Value(ctx context.Context, el Element) (string, error)
	// Windows returns the number of open windows.
	Windows(ctx context.Context) (int, error)
	// SwitchToWindow makes window index (in opening order) the target of
	// every following call, waiting for it to open if necessary.
	SwitchToWindow(ctx context.Context, index int) error
}
