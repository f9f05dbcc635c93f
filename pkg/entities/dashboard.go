package entities

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/SatelliteQE/airgun-sub001/pkg/browser"
	"github.com/SatelliteQE/airgun-sub001/pkg/navigation"
	"github.com/SatelliteQE/airgun-sub001/pkg/view"
)

const (
	SessionEntity = "Session"
	StepDashboard = "Dashboard"
)

// ErrNotLoggedIn is returned when the landing page is requested before any
// application page was loaded.
var ErrNotLoggedIn = errors.New("no application page loaded, log in first")

const (
	dashboardRoot = "//div[@id='dashboard']"
	loginRoot     = "//form[@id='login-form']"
	loginTimeout  = 30 * time.Second

	dashboardViewName = "DashboardView"
)

// DashboardView is the landing page shown after login.
func DashboardView(d browser.Driver) *view.Form {
	return view.NewForm(d, dashboardViewName, dashboardRoot, nil)
}

// LoginView is the sign-in form.
func LoginView(d browser.Driver) *view.Form {
	return view.NewForm(d, "LoginView", loginRoot, &view.Button{Locator: loginRoot + "//button[@type='submit']"},
		view.Field{Name: "username", Widget: view.TextInput{Locator: "//input[@id='login_login']"}},
		view.Field{Name: "password", Widget: view.TextInput{Locator: "//input[@id='login_password']"}},
	)
}

// Login opens baseURL, signs in and waits for the dashboard.
func Login(ctx context.Context, d browser.Driver, baseURL, username, password string) error {
	if err := d.Navigate(ctx, baseURL); err != nil {
		return err
	}
	form := LoginView(d)
	if err := form.Fill(ctx, map[string]string{"username": username, "password": password}); err != nil {
		return err
	}
	if err := form.Save(ctx); err != nil {
		return err
	}
	if err := view.DefaultFlashMessages.AssertNoError(ctx, d); err != nil {
		return fmt.Errorf("login as %s: %w", username, err)
	}
	return browser.Until(ctx, loginTimeout, "dashboard after login", DashboardView(d).IsDisplayed)
}

func sessionSteps() []navigation.Step {
	return []navigation.Step{{
		Entity:   SessionEntity,
		Name:     StepDashboard,
		View:     func(d browser.Driver) view.View { return DashboardView(d) },
		ViewName: dashboardViewName,
		Action:   openDashboard,
	}}
}

// openDashboard loads the root of whatever application host the tab is on.
func openDashboard(ctx context.Context, sc navigation.StepContext) error {
	current, err := sc.Driver.URL(ctx)
	if err != nil {
		return err
	}
	u, err := url.Parse(current)
	if err != nil || u.Host == "" {
		return ErrNotLoggedIn
	}
	if err := sc.Driver.Navigate(ctx, u.Scheme+"://"+u.Host+"/"); err != nil {
		return err
	}
	return sc.Driver.EnsurePageSafe(ctx)
}
