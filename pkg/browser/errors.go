package browser

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrWindowNotFound = errors.New("window not found")
	ErrSessionClosed  = errors.New("browser session closed")
)

// NavigationError reports a page load that failed in transport.
type NavigationError struct {
	URL string
	Err error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("navigate to %s: %v", e.URL, e.Err)
}

func (e *NavigationError) Unwrap() error {
	return e.Err
}

// WaitTimeoutError reports a locator that did not reach its condition in
// time.
type WaitTimeoutError struct {
	Locator   Locator
	Condition Condition
	Timeout   time.Duration
}

func (e *WaitTimeoutError) Error() string {
	role := e.Locator.Role
	if role == "" {
		role = e.Locator.XPath
	}
	return fmt.Sprintf("%s not %s within %s", role, e.Condition, e.Timeout)
}

// IsWaitTimeout returns true if err is or wraps a *WaitTimeoutError.
func IsWaitTimeout(err error) bool {
	var wt *WaitTimeoutError
	return errors.As(err, &wt)
}

// IsNavigationError returns true if err is or wraps a *NavigationError.
func IsNavigationError(err error) bool {
	var ne *NavigationError
	return errors.As(err, &ne)
}
