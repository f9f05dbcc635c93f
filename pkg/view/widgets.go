package view

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/SatelliteQE/airgun-sub001/pkg/browser"
)

// ErrUnknownAction is returned when a named action is not one the dropdown
// offers. It is a configuration error and is never retried.
var ErrUnknownAction = errors.New("unknown action")

// Widget fills and reads one control.
type Widget interface {
	Fill(ctx context.Context, d browser.Driver, value string) error
	Read(ctx context.Context, d browser.Driver) (string, error)
}

func visible(ctx context.Context, d browser.Driver, locator string) (browser.Element, error) {
	el, err := d.Find(ctx, locator)
	if err != nil {
		return nil, err
	}
	if err := el.WaitVisible(ctx); err != nil {
		return nil, err
	}
	return el, nil
}

// TextInput is an <input> or <textarea>.
type TextInput struct {
	Locator string
}

func (w TextInput) Fill(ctx context.Context, d browser.Driver, value string) error {
	el, err := visible(ctx, d, w.Locator)
	if err != nil {
		return err
	}
	return el.Fill(ctx, value)
}

func (w TextInput) Read(ctx context.Context, d browser.Driver) (string, error) {
	el, err := d.Find(ctx, w.Locator)
	if err != nil {
		return "", err
	}
	return el.Value(ctx)
}

// Checkbox is filled with any strconv.ParseBool value and read as "true"/"false".
type Checkbox struct {
	Locator string
}

func (w Checkbox) Fill(ctx context.Context, d browser.Driver, value string) error {
	want, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("checkbox %s: %w", w.Locator, err)
	}
	el, err := visible(ctx, d, w.Locator)
	if err != nil {
		return err
	}
	got, err := el.Checked(ctx)
	if err != nil {
		return err
	}
	if got == want {
		return nil
	}
	return el.Click(ctx)
}

func (w Checkbox) Read(ctx context.Context, d browser.Driver) (string, error) {
	el, err := d.Find(ctx, w.Locator)
	if err != nil {
		return "", err
	}
	checked, err := el.Checked(ctx)
	if err != nil {
		return "", err
	}
	return strconv.FormatBool(checked), nil
}

// Select is a native <select>; values are option texts.
type Select struct {
	Locator string
}

func (w Select) Fill(ctx context.Context, d browser.Driver, value string) error {
	el, err := visible(ctx, d, w.Locator)
	if err != nil {
		return err
	}
	return el.SelectOption(ctx, value)
}

func (w Select) Read(ctx context.Context, d browser.Driver) (string, error) {
	el, err := d.Find(ctx, w.Locator)
	if err != nil {
		return "", err
	}
	return el.Value(ctx)
}

// Text displays a value.
type Text struct {
	Locator string
}

func (w Text) Fill(context.Context, browser.Driver, string) error {
	return fmt.Errorf("%w: %s", ErrReadOnly, w.Locator)
}

func (w Text) Read(ctx context.Context, d browser.Driver) (string, error) {
	el, err := d.Find(ctx, w.Locator)
	if err != nil {
		return "", err
	}
	text, err := el.Text(ctx)
	return strings.TrimSpace(text), err
}

// Button is clicked, never filled.
type Button struct {
	Locator string
}

// Click waits for the button to be enabled, clicks it and waits for the page to settle.
func (w *Button) Click(ctx context.Context, d browser.Driver) error {
	el, err := visible(ctx, d, w.Locator)
	if err != nil {
		return err
	}
	if err := el.WaitEnabled(ctx); err != nil {
		return err
	}
	if err := el.Click(ctx); err != nil {
		return err
	}
	return d.EnsurePageSafe(ctx)
}

func (w *Button) Fill(context.Context, browser.Driver, string) error {
	return fmt.Errorf("%w: %s", ErrReadOnly, w.Locator)
}

func (w *Button) Read(ctx context.Context, d browser.Driver) (string, error) {
	return Text{Locator: w.Locator}.Read(ctx, d)
}

// SearchBar is a query input with a search button.
type SearchBar struct {
	Input  string
	Submit string
}

func (w SearchBar) Search(ctx context.Context, d browser.Driver, query string) error {
	if err := (TextInput{Locator: w.Input}).Fill(ctx, d, query); err != nil {
		return err
	}
	return (&Button{Locator: w.Submit}).Click(ctx, d)
}

// Table is a results table whose rows are read as their text.
type Table struct {
	Locator string
}

func (w Table) rows() string {
	return w.Locator + "//tbody/tr"
}

// Rows returns the trimmed text of every body row.
func (w Table) Rows(ctx context.Context, d browser.Driver) ([]string, error) {
	els, err := d.FindAll(ctx, w.rows())
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(els))
	for _, el := range els {
		text, err := el.Text(ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, strings.TrimSpace(text))
	}
	return out, nil
}

// ClickLink clicks the link whose text is name.
func (w Table) ClickLink(ctx context.Context, d browser.Driver, name string) error {
	return (&Button{Locator: fmt.Sprintf("%s//a[normalize-space(.)=%s]", w.Locator, Literal(name))}).Click(ctx, d)
}

// ActionsDropdown is a toggle revealing a fixed set of named actions.
type ActionsDropdown struct {
	Toggle string
	// Items maps an action name to the locator of its menu entry.
	Items map[string]string
}

// Actions lists the known action names, sorted.
func (w ActionsDropdown) Actions() []string {
	names := make([]string, 0, len(w.Items))
	for name := range w.Items {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Select opens the dropdown and clicks action. An action outside the known
// set fails with ErrUnknownAction before the browser is touched.
func (w ActionsDropdown) Select(ctx context.Context, d browser.Driver, action string) error {
	item, ok := w.Items[action]
	if !ok {
		return fmt.Errorf("%w %q, expected one of %v", ErrUnknownAction, action, w.Actions())
	}
	toggle, err := visible(ctx, d, w.Toggle)
	if err != nil {
		return err
	}
	if err := toggle.Click(ctx); err != nil {
		return err
	}
	return (&Button{Locator: item}).Click(ctx, d)
}

// Literal quotes s as an XPath string literal.
func Literal(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	return "concat('" + strings.Join(parts, `', "'", '`) + "')"
}
