// Package browser is the boundary between AirGun and the browser-automation
// toolkit. Page objects and navigation steps only ever talk to a Driver; the
// rod-backed implementation lives in rod.go and an in-memory fake in
// browser/browsertest.
package browser

import (
	"context"
	"strings"
)

// Driver controls a single browser tab. Implementations are not safe for
// concurrent use: one test session owns one Driver.
type Driver interface {
	// Navigate loads url and waits for the load event.
	Navigate(ctx context.Context, url string) error

	// Refresh reloads the current page and waits for the load event.
	Refresh(ctx context.Context) error

	// Find waits until an element matching locator is present and returns it.
	Find(ctx context.Context, locator string) (Element, error)

	// FindAll returns every element currently matching locator without waiting.
	FindAll(ctx context.Context, locator string) ([]Element, error)

	// Exists reports whether locator currently matches an element, without waiting.
	Exists(ctx context.Context, locator string) (bool, error)

	// EnsurePageSafe blocks until no asynchronous page work is pending.
	EnsurePageSafe(ctx context.Context) error

	// URL returns the address of the current page.
	URL(ctx context.Context) (string, error)

	// Screenshot captures the viewport as PNG.
	Screenshot(ctx context.Context) ([]byte, error)

	Close() error
}

// Element is a located DOM node.
type Element interface {
	Hover(ctx context.Context) error
	Click(ctx context.Context) error
	WaitVisible(ctx context.Context) error
	WaitEnabled(ctx context.Context) error
	Visible(ctx context.Context) (bool, error)
	Text(ctx context.Context) (string, error)
	Value(ctx context.Context) (string, error)
	// Fill replaces the current value of an input with value.
	Fill(ctx context.Context, value string) error
	Checked(ctx context.Context) (bool, error)
	// SelectOption selects the option of a <select> whose visible text is text.
	SelectOption(ctx context.Context, text string) error
}

// IsXPath reports whether locator is an XPath expression rather than a CSS selector.
func IsXPath(locator string) bool {
	return strings.HasPrefix(locator, "/") ||
		strings.HasPrefix(locator, "(") ||
		strings.HasPrefix(locator, "./")
}
