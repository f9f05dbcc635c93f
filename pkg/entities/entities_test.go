package entities

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/SatelliteQE/airgun-sub001/pkg/browser/browsertest"
	"github.com/SatelliteQE/airgun-sub001/pkg/models"
	"github.com/SatelliteQE/airgun-sub001/pkg/navigation"
	"github.com/SatelliteQE/airgun-sub001/pkg/retry"
	"github.com/SatelliteQE/airgun-sub001/pkg/view"
)

const baseURL = "https://sat.example.com"

func newNavigator(t *testing.T, d *browsertest.Driver) *navigation.Navigator {
	t.Helper()
	r := navigation.NewRegistry()
	require.NoError(t, Register(r))
	p := retry.DefaultPolicy()
	p.Delay = 0
	return navigation.New(r, d, navigation.WithPolicy(p))
}

func menuItem(text string) string {
	return navigation.DefaultMenuPrefix + navigation.MenuItems(text)[0]
}

func TestRegister(t *testing.T) {
	r := navigation.NewRegistry()
	require.NoError(t, Register(r))
	require.Equal(t, 1+3*len(Catalog())+1, r.Len())
	require.ErrorIs(t, Register(r), navigation.ErrDuplicateStep)

	chain, err := r.Resolve("JobInvocation", StepRun)
	require.NoError(t, err)
	var refs []string
	for _, s := range chain {
		refs = append(refs, s.Ref().String())
	}
	require.Equal(t, []string{"Session.Dashboard", "JobInvocation.All", "JobInvocation.Edit", "JobInvocation.Run"}, refs)

	for _, info := range r.Steps() {
		require.NotEmpty(t, info.Chain, info.Entity+"."+info.Step)
		require.Equal(t, models.StepRef{Entity: SessionEntity, Step: StepDashboard}, info.Chain[0])
	}
}

func TestCreateWalksFromDashboard(t *testing.T) {
	d := browsertest.New().Missing(heading(Host.Title))
	require.NoError(t, d.Navigate(context.Background(), baseURL+"/users/login"))
	hosts := New(newNavigator(t, d), Host)

	err := hosts.Create(context.Background(), map[string]string{"name": "web01", "organization": "Default Organization"})
	require.NoError(t, err)

	require.Equal(t, []string{baseURL + "/users/login", baseURL + "/"}, d.Kind("navigate"))
	require.Equal(t, []string{menuItem("Hosts"), menuItem("All Hosts")}, d.Kind("hover"))
	require.Equal(t, []string{menuItem("All Hosts"), labelled("Create Host"), submitButton}, d.Kind("click"))
	require.Equal(t, []string{"//*[self::input or self::textarea][@id='host_name']=web01"}, d.Kind("fill"))
	require.Equal(t, []string{"//select[@id='host_organization_id']=Default Organization"}, d.Kind("select"))
}

func TestCreateSurfacesFlashError(t *testing.T) {
	d := browsertest.New().SetAll(view.DefaultFlashMessages.Error, "Name has already been taken")
	keys := New(newNavigator(t, d), ActivationKey)

	err := keys.Create(context.Background(), map[string]string{"name": "ak"})
	var flash *view.FlashError
	require.ErrorAs(t, err, &flash)
	require.Equal(t, []string{"Name has already been taken"}, flash.Messages)
}

func TestCreateRejectsUnknownField(t *testing.T) {
	d := browsertest.New()
	cvs := New(newNavigator(t, d), ContentView)

	err := cvs.Create(context.Background(), map[string]string{"colour": "red"})
	require.ErrorIs(t, err, view.ErrUnknownField)
	require.Empty(t, d.Kind("fill"))
}

func TestSearch(t *testing.T) {
	d := browsertest.New().SetAll(resultsTable+"//tbody/tr", " cv-1 ", "cv-2")
	cvs := New(newNavigator(t, d), ContentView)

	rows, err := cvs.Search(context.Background(), "name ~ cv")
	require.NoError(t, err)
	require.Equal(t, []string{"cv-1", "cv-2"}, rows)
	require.Equal(t, []string{searchInput + "=name ~ cv"}, d.Kind("fill"))
	require.Empty(t, d.Kind("hover"), "list page already displayed")
}

func TestReadAndUpdate(t *testing.T) {
	d := browsertest.New().SetValue("//*[self::input or self::textarea][@id='host_name']", "web01")
	hosts := New(newNavigator(t, d), Host)

	values, err := hosts.Read(context.Background(), "web01")
	require.NoError(t, err)
	require.Equal(t, "web01", values["name"])
	require.Equal(t, "false", values["managed"])
	require.Contains(t, d.Kind("click"), resultsTable+"//a[normalize-space(.)='web01']")

	require.NoError(t, hosts.Update(context.Background(), "web01", map[string]string{"comment": "rack 4"}))
	require.Contains(t, d.Kind("fill"), "//*[self::input or self::textarea][@id='host_comment']=rack 4")
}

func TestDelete(t *testing.T) {
	d := browsertest.New()
	hosts := New(newNavigator(t, d), Host)

	require.NoError(t, hosts.Delete(context.Background(), "web01"))
	require.Equal(t, []string{
		searchSubmit,
		resultsTable + "//a[normalize-space(.)='web01']",
		actionsToggle,
		actionItem("Delete"),
		confirmDelete,
	}, d.Kind("click"))
}

func TestDeleteUnsupported(t *testing.T) {
	d := browsertest.New()
	jobs := NewJobInvocations(newNavigator(t, d))

	err := jobs.Delete(context.Background(), "job-1")
	require.ErrorIs(t, err, view.ErrUnknownAction)
	require.NotContains(t, d.Kind("click"), actionsToggle)
	require.NotContains(t, d.Kind("click"), confirmDelete)
}

func TestEditNeedsEntityName(t *testing.T) {
	d := browsertest.New()
	nav := newNavigator(t, d)

	_, err := nav.Navigate(context.Background(), Host.Entity, StepEdit, nil)
	require.ErrorIs(t, err, ErrMissingParam)
	require.Zero(t, d.Count("refresh"))
}

func TestDashboardNeedsLogin(t *testing.T) {
	d := browsertest.New()
	nav := newNavigator(t, d)

	_, err := nav.Navigate(context.Background(), SessionEntity, StepDashboard, nil)
	require.ErrorIs(t, err, ErrNotLoggedIn)
	require.Empty(t, d.Kind("navigate"))
}

func TestLogin(t *testing.T) {
	d := browsertest.New()
	require.NoError(t, Login(context.Background(), d, baseURL, "admin", "changeme"))
	require.Equal(t, []string{baseURL}, d.Kind("navigate"))
	require.Equal(t, []string{
		"//input[@id='login_login']=admin",
		"//input[@id='login_password']=changeme",
	}, d.Kind("fill"))

	d = browsertest.New().SetAll(view.DefaultFlashMessages.Error, "Incorrect username or password")
	var flash *view.FlashError
	require.ErrorAs(t, Login(context.Background(), d, baseURL, "admin", "wrong"), &flash)
}

func TestJobInvocationRun(t *testing.T) {
	tests := []struct {
		name       string
		status     string
		wantStatus string
		wantErr    error
	}{
		{"succeeded", "Succeeded", "succeeded", nil},
		{"failed", "Failed", "failed", ErrJobFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := browsertest.New().SetText(text(jobStatusID).Locator, tt.status)
			jobs := NewJobInvocations(newNavigator(t, d))

			status, err := jobs.Run(context.Background(), map[string]string{
				"job_category": "Commands",
				"search_query": "name = web01",
			})
			require.Equal(t, tt.wantStatus, status)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Contains(t, d.Kind("click"), labelled("Run Job"))
		})
	}
}

func TestJobInvocationRerun(t *testing.T) {
	d := browsertest.New().SetText(text(jobStatusID).Locator, "succeeded")
	jobs := NewJobInvocations(newNavigator(t, d))

	status, err := jobs.Rerun(context.Background(), "Run ls")
	require.NoError(t, err)
	require.Equal(t, "succeeded", status)

	clicks := d.Kind("click")
	require.Equal(t, []string{labelled("Rerun"), submitButton}, clicks[len(clicks)-2:])
}
