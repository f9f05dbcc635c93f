// Package entities declares the screens of the application under test and the
// navigation steps that reach them.
//
// Every entity follows the same shape: an All list page reached through the
// main menu, a New create form and an Edit details page opened by name from
// the list. Definition captures what differs between entities; Register turns
// the definitions into navigation steps.
package entities

import (
	"context"
	"errors"
	"fmt"

	"github.com/SatelliteQE/airgun-sub001/pkg/browser"
	"github.com/SatelliteQE/airgun-sub001/pkg/navigation"
	"github.com/SatelliteQE/airgun-sub001/pkg/view"
)

// EntityNameParam names the entity an Edit step opens.
const EntityNameParam = "entity_name"

const (
	StepAll  = "All"
	StepNew  = "New"
	StepEdit = "Edit"
)

var ErrMissingParam = errors.New("missing navigation parameter")

// Shared PatternFly locators.
const (
	searchInput   = "//input[@aria-label='Search input']"
	searchSubmit  = "//button[@aria-label='Search']"
	resultsTable  = "//table[contains(@class, 'pf-c-table')]"
	submitButton  = "//button[@type='submit']"
	actionsToggle = "//div[@data-ouia-component-id='details-actions']//button[contains(@class, 'pf-c-dropdown__toggle')]"
	confirmDelete = "//div[contains(@class, 'pf-c-modal-box')]//button[normalize-space(.)='Delete']"
)

func heading(title string) string {
	return fmt.Sprintf("//h1[normalize-space(.)=%s]", view.Literal(title))
}

func labelled(text string) string {
	return fmt.Sprintf("//*[self::a or self::button][normalize-space(.)=%s]", view.Literal(text))
}

func formRoot(id string) string {
	return fmt.Sprintf("//form[@id=%s]", view.Literal(id))
}

func actionItem(label string) string {
	return fmt.Sprintf("//ul[@role='menu']//*[self::a or self::button][normalize-space(.)=%s]", view.Literal(label))
}

// Definition declares the screens of one entity.
type Definition struct {
	Entity string
	// Menu is the main menu path to the list page, top level first.
	Menu     []string
	Title    string
	NewLabel string
	FormID   string
	Fields   []view.Field

	// DetailsRoot and Details describe the Edit page when it differs from
	// the create form.
	DetailsRoot string
	Details     []view.Field

	// Actions are the labels offered by the details page dropdown.
	Actions []string
}

// View names of an entity's screens.
func (def Definition) listViewName() string    { return def.Entity + "ListView" }
func (def Definition) createViewName() string  { return def.Entity + "CreateView" }
func (def Definition) detailsViewName() string { return def.Entity + "DetailsView" }

func (def Definition) listView(d browser.Driver) *view.ListView {
	return view.NewListView(d, view.ListView{
		Title:     def.listViewName(),
		Root:      heading(def.Title),
		Search:    view.SearchBar{Input: searchInput, Submit: searchSubmit},
		Table:     view.Table{Locator: resultsTable},
		NewButton: &view.Button{Locator: labelled(def.NewLabel)},
	})
}

func (def Definition) createView(d browser.Driver) *view.Form {
	return view.NewForm(d, def.createViewName(), formRoot(def.FormID), &view.Button{Locator: submitButton}, def.Fields...)
}

func (def Definition) detailsView(d browser.Driver) *view.DetailsView {
	root, fields := def.DetailsRoot, def.Details
	if root == "" {
		root = formRoot(def.FormID)
	}
	if fields == nil {
		fields = def.Fields
	}
	items := make(map[string]string, len(def.Actions))
	for _, label := range def.Actions {
		items[label] = actionItem(label)
	}
	return &view.DetailsView{
		Form:    view.NewForm(d, def.detailsViewName(), root, &view.Button{Locator: submitButton}, fields...),
		Actions: view.ActionsDropdown{Toggle: actionsToggle, Items: items},
	}
}

func (def Definition) steps() []navigation.Step {
	return []navigation.Step{
		{
			Entity:       def.Entity,
			Name:         StepAll,
			Prerequisite: navigation.Requires(SessionEntity, StepDashboard),
			View:         func(d browser.Driver) view.View { return def.listView(d) },
			ViewName:     def.listViewName(),
			Action: func(ctx context.Context, sc navigation.StepContext) error {
				return sc.Menu.Select(ctx, sc.Driver, navigation.MenuItems(def.Menu...))
			},
			AmIHere: func(ctx context.Context, sc navigation.StepContext) (bool, error) {
				return def.listView(sc.Driver).IsDisplayed(ctx)
			},
		},
		{
			Entity:       def.Entity,
			Name:         StepNew,
			Prerequisite: navigation.Requires("", StepAll),
			View:         func(d browser.Driver) view.View { return def.createView(d) },
			ViewName:     def.createViewName(),
			Action: func(ctx context.Context, sc navigation.StepContext) error {
				return def.listView(sc.Driver).StartNew(ctx)
			},
		},
		{
			Entity:       def.Entity,
			Name:         StepEdit,
			Prerequisite: navigation.Requires("", StepAll),
			View:         func(d browser.Driver) view.View { return def.detailsView(d) },
			ViewName:     def.detailsViewName(),
			Action: func(ctx context.Context, sc navigation.StepContext) error {
				name := sc.Params.Get(EntityNameParam)
				if name == "" {
					return fmt.Errorf("%w: %s.%s needs %s", ErrMissingParam, def.Entity, StepEdit, EntityNameParam)
				}
				return def.listView(sc.Driver).Open(ctx, name)
			},
		},
	}
}

// Register adds the steps of every known screen to r.
func Register(r *navigation.Registry) error {
	steps := sessionSteps()
	for _, def := range Catalog() {
		steps = append(steps, def.steps()...)
	}
	steps = append(steps, jobInvocationSteps()...)

	for _, s := range steps {
		if err := r.Register(s); err != nil {
			return err
		}
	}
	return nil
}

// Entity performs the create/read/update/delete flows of one definition.
type Entity struct {
	def   Definition
	nav   *navigation.Navigator
	flash view.FlashMessages
}

// New binds def to a navigator whose registry holds def's steps.
func New(nav *navigation.Navigator, def Definition) *Entity {
	return &Entity{def: def, nav: nav, flash: view.DefaultFlashMessages}
}

func (e *Entity) Name() string { return e.def.Entity }

// Create fills the create form with values and saves it.
func (e *Entity) Create(ctx context.Context, values map[string]string) error {
	form, err := navigation.NavigateAs[*view.Form](ctx, e.nav, e.def.Entity, StepNew, nil)
	if err != nil {
		return err
	}
	return e.submit(ctx, form, values)
}

// Search runs query on the list page and returns the matching rows.
func (e *Entity) Search(ctx context.Context, query string) ([]string, error) {
	list, err := navigation.NavigateAs[*view.ListView](ctx, e.nav, e.def.Entity, StepAll, nil)
	if err != nil {
		return nil, err
	}
	return list.Find(ctx, query)
}

// Read opens the entity called name and returns its field values.
func (e *Entity) Read(ctx context.Context, name string) (map[string]string, error) {
	details, err := e.details(ctx, name)
	if err != nil {
		return nil, err
	}
	return details.Read(ctx)
}

// Update opens the entity called name and saves values over it.
func (e *Entity) Update(ctx context.Context, name string, values map[string]string) error {
	details, err := e.details(ctx, name)
	if err != nil {
		return err
	}
	return e.submit(ctx, details.Form, values)
}

// Delete removes the entity called name through the details page dropdown.
func (e *Entity) Delete(ctx context.Context, name string) error {
	details, err := e.details(ctx, name)
	if err != nil {
		return err
	}
	d := e.nav.Driver()
	if err := details.Actions.Select(ctx, d, "Delete"); err != nil {
		return err
	}
	if err := (&view.Button{Locator: confirmDelete}).Click(ctx, d); err != nil {
		return err
	}
	return e.flash.AssertNoError(ctx, d)
}

func (e *Entity) details(ctx context.Context, name string) (*view.DetailsView, error) {
	return navigation.NavigateAs[*view.DetailsView](ctx, e.nav, e.def.Entity, StepEdit,
		navigation.Params{EntityNameParam: name})
}

func (e *Entity) submit(ctx context.Context, form *view.Form, values map[string]string) error {
	if err := form.Fill(ctx, values); err != nil {
		return err
	}
	if err := form.Save(ctx); err != nil {
		return err
	}
	return e.flash.AssertNoError(ctx, form.Driver())
}
