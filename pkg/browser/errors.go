package browser

import (
	"context"
	"errors"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/cdp"
)

var (
	// ErrTransient marks a failure caused by page timing (stale node, element
	// not rendered yet, pending requests). Wrap it to make an error retryable.
	ErrTransient = errors.New("transient browser failure")

	// ErrWaitTimeout is returned when a condition wait runs out of time.
	ErrWaitTimeout = errors.New("timed out waiting for condition")

	// ErrElementNotFound is returned when a locator matches nothing within the wait.
	ErrElementNotFound = errors.New("element not found")
)

// cdp messages that mean the node we hold was detached or re-rendered.
var staleMessages = []string{
	"Could not find node with given id",
	"Cannot find context with specified id",
	"Node is detached from document",
	"Node is not an element",
}

// IsTransient reports whether err is a timing failure that a page refresh and
// another attempt may cure. Cancellation of the caller's context is never
// transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, ErrTransient) ||
		errors.Is(err, ErrWaitTimeout) ||
		errors.Is(err, ErrElementNotFound) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var notFound *rod.ElementNotFoundError
	var notInteractable *rod.NotInteractableError
	var covered *rod.CoveredError
	var invisible *rod.InvisibleShapeError
	var noPointer *rod.NoPointerEventsError
	var objectGone *rod.ObjectNotFoundError
	switch {
	case errors.As(err, &notFound),
		errors.As(err, &notInteractable),
		errors.As(err, &covered),
		errors.As(err, &invisible),
		errors.As(err, &noPointer),
		errors.As(err, &objectGone):
		return true
	}

	var cdpErr *cdp.Error
	if errors.As(err, &cdpErr) {
		for _, msg := range staleMessages {
			if strings.Contains(cdpErr.Message, msg) {
				return true
			}
		}
	}
	return false
}
