package view

import (
	"context"
	"strings"

	"github.com/SatelliteQE/airgun-sub001/pkg/browser"
)

// FlashError carries the error banners shown after an action.
type FlashError struct {
	Messages []string
}

func (e *FlashError) Error() string {
	return "application reported: " + strings.Join(e.Messages, "; ")
}

// FlashMessages reads the transient banners rendered after an action.
type FlashMessages struct {
	Success string
	Error   string
}

// DefaultFlashMessages matches the PatternFly alert toasts of the console.
var DefaultFlashMessages = FlashMessages{
	Success: "//div[contains(@class, 'pf-c-alert') and contains(@class, 'pf-m-success')]//h4",
	Error:   "//div[contains(@class, 'pf-c-alert') and contains(@class, 'pf-m-danger')]//h4",
}

func (f FlashMessages) texts(ctx context.Context, d browser.Driver, locator string) ([]string, error) {
	els, err := d.FindAll(ctx, locator)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, el := range els {
		text, err := el.Text(ctx)
		if err != nil {
			return nil, err
		}
		if text = strings.TrimSpace(text); text != "" {
			out = append(out, text)
		}
	}
	return out, nil
}

// Successes returns the text of every success banner.
func (f FlashMessages) Successes(ctx context.Context, d browser.Driver) ([]string, error) {
	return f.texts(ctx, d, f.Success)
}

// AssertNoError returns a *FlashError when any error banner is shown.
func (f FlashMessages) AssertNoError(ctx context.Context, d browser.Driver) error {
	msgs, err := f.texts(ctx, d, f.Error)
	if err != nil {
		return err
	}
	if len(msgs) > 0 {
		return &FlashError{Messages: msgs}
	}
	return nil
}
