// Package browsertest provides an in-memory browser.Driver that records every
// interaction, for testing page objects and navigation without a browser.
package browsertest

import (
	"context"
	"fmt"
	"strings"

	"github.com/SatelliteQE/airgun-sub001/pkg/browser"
)

// Driver is a scripted fake. Every locator is considered present unless it was
// marked missing. Interactions are appended to Events as "kind:locator" (or
// "kind:locator=value" for fills and selections).
type Driver struct {
	Events []string

	url      string
	missing  map[string]bool
	hidden   map[string]bool
	texts    map[string]string
	values   map[string]string
	checked  map[string]bool
	lists    map[string][]string
	failures map[string][]error
	closed   bool
}

// New returns an empty fake driver.
func New() *Driver {
	return &Driver{
		url:      "about:blank",
		missing:  make(map[string]bool),
		hidden:   make(map[string]bool),
		texts:    make(map[string]string),
		values:   make(map[string]string),
		checked:  make(map[string]bool),
		lists:    make(map[string][]string),
		failures: make(map[string][]error),
	}
}

// Missing makes Find fail for locator with browser.ErrElementNotFound.
func (d *Driver) Missing(locator string) *Driver {
	d.missing[locator] = true
	return d
}

// Present undoes Missing.
func (d *Driver) Present(locator string) *Driver {
	delete(d.missing, locator)
	return d
}

// Hidden makes the element at locator report itself invisible.
func (d *Driver) Hidden(locator string) *Driver {
	d.hidden[locator] = true
	return d
}

// SetText sets the rendered text of locator.
func (d *Driver) SetText(locator, text string) *Driver {
	d.texts[locator] = text
	return d
}

// SetValue sets the input value of locator.
func (d *Driver) SetValue(locator, value string) *Driver {
	d.values[locator] = value
	return d
}

// SetChecked sets the checkbox state of locator.
func (d *Driver) SetChecked(locator string, checked bool) *Driver {
	d.checked[locator] = checked
	return d
}

// SetAll makes FindAll(locator) return one element per text.
func (d *Driver) SetAll(locator string, texts ...string) *Driver {
	d.lists[locator] = texts
	return d
}

// Fail queues errors returned, in order, by the next interactions matching
// event (for example "click://a" or "refresh").
func (d *Driver) Fail(event string, errs ...error) *Driver {
	d.failures[event] = append(d.failures[event], errs...)
	return d
}

// Count returns how many recorded events equal event.
func (d *Driver) Count(event string) int {
	n := 0
	for _, e := range d.Events {
		if e == event {
			n++
		}
	}
	return n
}

// Kind returns the locators of every recorded event of the given kind, in order.
func (d *Driver) Kind(kind string) []string {
	var out []string
	prefix := kind + ":"
	for _, e := range d.Events {
		if strings.HasPrefix(e, prefix) {
			out = append(out, strings.TrimPrefix(e, prefix))
		}
	}
	return out
}

// Closed reports whether Close was called.
func (d *Driver) Closed() bool { return d.closed }

func (d *Driver) record(event string) error {
	d.Events = append(d.Events, event)
	if errs := d.failures[event]; len(errs) > 0 {
		d.failures[event] = errs[1:]
		return errs[0]
	}
	return nil
}

func (d *Driver) Navigate(ctx context.Context, url string) error {
	if err := d.record("navigate:" + url); err != nil {
		return err
	}
	d.url = url
	return ctx.Err()
}

func (d *Driver) Refresh(ctx context.Context) error {
	if err := d.record("refresh"); err != nil {
		return err
	}
	return ctx.Err()
}

func (d *Driver) Find(ctx context.Context, locator string) (browser.Element, error) {
	if err := d.record("find:" + locator); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.missing[locator] {
		return nil, fmt.Errorf("%w: %s", browser.ErrElementNotFound, locator)
	}
	return &Element{d: d, locator: locator}, nil
}

func (d *Driver) FindAll(ctx context.Context, locator string) ([]browser.Element, error) {
	if err := d.record("findall:" + locator); err != nil {
		return nil, err
	}
	texts := d.lists[locator]
	out := make([]browser.Element, 0, len(texts))
	for i, text := range texts {
		out = append(out, &Element{d: d, locator: fmt.Sprintf("%s[%d]", locator, i+1), text: text, fixed: true})
	}
	return out, ctx.Err()
}

func (d *Driver) Exists(ctx context.Context, locator string) (bool, error) {
	if err := d.record("exists:" + locator); err != nil {
		return false, err
	}
	return !d.missing[locator], ctx.Err()
}

func (d *Driver) EnsurePageSafe(ctx context.Context) error {
	if err := d.record("pagesafe"); err != nil {
		return err
	}
	return ctx.Err()
}

func (d *Driver) URL(context.Context) (string, error) { return d.url, nil }

func (d *Driver) Screenshot(context.Context) ([]byte, error) {
	if err := d.record("screenshot"); err != nil {
		return nil, err
	}
	// PNG signature is enough for anything that only stores the bytes.
	return []byte("\x89PNG\r\n\x1a\n"), nil
}

func (d *Driver) Close() error {
	d.closed = true
	return nil
}

// Element is a fake element bound to its locator.
type Element struct {
	d       *Driver
	locator string
	text    string
	fixed   bool
}

func (e *Element) Hover(ctx context.Context) error {
	return e.d.record("hover:" + e.locator)
}

func (e *Element) Click(ctx context.Context) error {
	if err := e.d.record("click:" + e.locator); err != nil {
		return err
	}
	e.d.checked[e.locator] = !e.d.checked[e.locator]
	return nil
}

func (e *Element) WaitVisible(ctx context.Context) error {
	if err := e.d.record("waitvisible:" + e.locator); err != nil {
		return err
	}
	if e.d.hidden[e.locator] {
		return fmt.Errorf("%w: %s visible", browser.ErrWaitTimeout, e.locator)
	}
	return nil
}

func (e *Element) WaitEnabled(ctx context.Context) error {
	return e.d.record("waitenabled:" + e.locator)
}

func (e *Element) Visible(ctx context.Context) (bool, error) {
	return !e.d.hidden[e.locator], nil
}

func (e *Element) Text(ctx context.Context) (string, error) {
	if e.fixed {
		return e.text, nil
	}
	return e.d.texts[e.locator], nil
}

func (e *Element) Value(ctx context.Context) (string, error) {
	return e.d.values[e.locator], nil
}

func (e *Element) Fill(ctx context.Context, value string) error {
	if err := e.d.record("fill:" + e.locator + "=" + value); err != nil {
		return err
	}
	e.d.values[e.locator] = value
	return nil
}

func (e *Element) Checked(ctx context.Context) (bool, error) {
	return e.d.checked[e.locator], nil
}

func (e *Element) SelectOption(ctx context.Context, text string) error {
	if err := e.d.record("select:" + e.locator + "=" + text); err != nil {
		return err
	}
	e.d.values[e.locator] = text
	return nil
}
