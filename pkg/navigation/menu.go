package navigation

import (
	"context"
	"errors"
	"fmt"

	"github.com/SatelliteQE/airgun-sub001/pkg/browser"
	"github.com/SatelliteQE/airgun-sub001/pkg/view"
)

// DefaultMenuPrefix locates the console's vertical navigation.
const DefaultMenuPrefix = "//nav[contains(@class, 'pf-c-nav')]"

var ErrEmptyMenuPath = errors.New("empty menu path")

// MenuPath is a cascading menu click sequence: top-level menu first, leaf item
// last. Each fragment is appended to the menu prefix.
type MenuPath []string

// MenuItems builds a path of links matched by their visible text.
func MenuItems(texts ...string) MenuPath {
	path := make(MenuPath, 0, len(texts))
	for _, text := range texts {
		path = append(path, fmt.Sprintf("//a[normalize-space(.)=%s]", view.Literal(text)))
	}
	return path
}

// Menu walks flyout menus under Prefix.
type Menu struct {
	Prefix string
}

// NewMenu returns a menu rooted at prefix, or DefaultMenuPrefix when empty.
func NewMenu(prefix string) *Menu {
	if prefix == "" {
		prefix = DefaultMenuPrefix
	}
	return &Menu{Prefix: prefix}
}

// Select hovers every level of path in order and clicks the leaf.
//
// Each level is waited for until visible and the page is safe before the
// pointer moves onto it, so the wait at level i+1 is what lets the submenu
// opened by hovering level i render.
func (m *Menu) Select(ctx context.Context, d browser.Driver, path MenuPath) error {
	if len(path) == 0 {
		return ErrEmptyMenuPath
	}
	for i, fragment := range path {
		locator := m.Prefix + fragment

		el, err := d.Find(ctx, locator)
		if err != nil {
			return fmt.Errorf("menu level %d: %w", i+1, err)
		}
		if err := el.WaitVisible(ctx); err != nil {
			return fmt.Errorf("menu level %d: %w", i+1, err)
		}
		if err := d.EnsurePageSafe(ctx); err != nil {
			return err
		}
		if err := el.Hover(ctx); err != nil {
			return fmt.Errorf("menu level %d: %w", i+1, err)
		}

		if i < len(path)-1 {
			continue
		}
		if err := el.WaitEnabled(ctx); err != nil {
			return fmt.Errorf("menu item %s: %w", locator, err)
		}
		if err := el.Click(ctx); err != nil {
			return fmt.Errorf("menu item %s: %w", locator, err)
		}
	}
	return d.EnsurePageSafe(ctx)
}
