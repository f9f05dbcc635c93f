// Package view holds the declarative page-object layer: widgets that know how
// to fill and read one kind of control, and views that group widgets under the
// locator that proves the screen is displayed.
package view

import (
	"context"
	"errors"
	"fmt"

	"github.com/SatelliteQE/airgun-sub001/pkg/browser"
)

var (
	// ErrUnknownField is returned when Fill is given a key the form does not declare.
	ErrUnknownField = errors.New("unknown form field")

	// ErrReadOnly is returned when filling a widget that only displays a value.
	ErrReadOnly = errors.New("widget is read-only")
)

// View is one screen of the application.
type View interface {
	Name() string
	IsDisplayed(ctx context.Context) (bool, error)
}

// Factory builds a view bound to a driver. It is only called with the driver
// of a live navigation.
type Factory func(d browser.Driver) View

// Field is a named widget of a Form.
type Field struct {
	Name   string
	Widget Widget
}

// Form is a view made of ordered fields and an optional submit button.
type Form struct {
	Title  string
	Root   string
	Fields []Field
	Submit *Button

	driver browser.Driver
}

// NewForm binds a form declaration to d.
func NewForm(d browser.Driver, title, root string, submit *Button, fields ...Field) *Form {
	return &Form{Title: title, Root: root, Fields: fields, Submit: submit, driver: d}
}

func (f *Form) Name() string { return f.Title }

func (f *Form) IsDisplayed(ctx context.Context) (bool, error) {
	return f.driver.Exists(ctx, f.Root)
}

// Driver returns the driver the form is bound to.
func (f *Form) Driver() browser.Driver { return f.driver }

func (f *Form) field(name string) (Widget, bool) {
	for _, fl := range f.Fields {
		if fl.Name == name {
			return fl.Widget, true
		}
	}
	return nil, false
}

// Fill sets every value by field name, in declaration order. Unknown keys are
// rejected before any field is touched.
func (f *Form) Fill(ctx context.Context, values map[string]string) error {
	for name := range values {
		if _, ok := f.field(name); !ok {
			return fmt.Errorf("%w: %s.%s", ErrUnknownField, f.Title, name)
		}
	}
	for _, fl := range f.Fields {
		value, ok := values[fl.Name]
		if !ok {
			continue
		}
		if err := fl.Widget.Fill(ctx, f.driver, value); err != nil {
			return fmt.Errorf("fill %s.%s: %w", f.Title, fl.Name, err)
		}
	}
	return nil
}

// Read returns the value of every readable field.
func (f *Form) Read(ctx context.Context) (map[string]string, error) {
	out := make(map[string]string, len(f.Fields))
	for _, fl := range f.Fields {
		v, err := fl.Widget.Read(ctx, f.driver)
		if err != nil {
			return nil, fmt.Errorf("read %s.%s: %w", f.Title, fl.Name, err)
		}
		out[fl.Name] = v
	}
	return out, nil
}

// Save clicks the submit button.
func (f *Form) Save(ctx context.Context) error {
	if f.Submit == nil {
		return fmt.Errorf("%s has no submit button", f.Title)
	}
	return f.Submit.Click(ctx, f.driver)
}

// ListView is the searchable table screen most entities start from.
type ListView struct {
	Title     string
	Root      string
	Search    SearchBar
	Table     Table
	NewButton *Button

	driver browser.Driver
}

// NewListView binds a list declaration to d.
func NewListView(d browser.Driver, lv ListView) *ListView {
	lv.driver = d
	return &lv
}

func (v *ListView) Name() string { return v.Title }

func (v *ListView) IsDisplayed(ctx context.Context) (bool, error) {
	return v.driver.Exists(ctx, v.Root)
}

// Find searches for query and returns the text of every result row.
func (v *ListView) Find(ctx context.Context, query string) ([]string, error) {
	if err := v.Search.Search(ctx, v.driver, query); err != nil {
		return nil, err
	}
	return v.Table.Rows(ctx, v.driver)
}

// Open searches for name and clicks its link in the table.
func (v *ListView) Open(ctx context.Context, name string) error {
	if err := v.Search.Search(ctx, v.driver, fmt.Sprintf("name = %q", name)); err != nil {
		return err
	}
	return v.Table.ClickLink(ctx, v.driver, name)
}

// StartNew clicks the create button.
func (v *ListView) StartNew(ctx context.Context) error {
	if v.NewButton == nil {
		return fmt.Errorf("%s has no create button", v.Title)
	}
	return v.NewButton.Click(ctx, v.driver)
}

// DetailsView is an entity's edit screen: a form plus an actions dropdown.
type DetailsView struct {
	*Form
	Actions ActionsDropdown
}
