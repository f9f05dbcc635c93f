package entities

import (
	"fmt"

	"github.com/SatelliteQE/airgun-sub001/pkg/view"
)

func input(id string) view.TextInput {
	return view.TextInput{Locator: fmt.Sprintf("//*[self::input or self::textarea][@id=%s]", view.Literal(id))}
}

func checkbox(id string) view.Checkbox {
	return view.Checkbox{Locator: fmt.Sprintf("//input[@type='checkbox'][@id=%s]", view.Literal(id))}
}

func dropdown(id string) view.Select {
	return view.Select{Locator: fmt.Sprintf("//select[@id=%s]", view.Literal(id))}
}

func text(ouia string) view.Text {
	return view.Text{Locator: fmt.Sprintf("//*[@data-ouia-component-id=%s]", view.Literal(ouia))}
}

var ActivationKey = Definition{
	Entity:   "ActivationKey",
	Menu:     []string{"Content", "Lifecycle", "Activation Keys"},
	Title:    "Activation Keys",
	NewLabel: "Create Activation Key",
	FormID:   "activation-key-form",
	Fields: []view.Field{
		{Name: "name", Widget: input("name")},
		{Name: "description", Widget: input("description")},
		{Name: "unlimited_hosts", Widget: checkbox("unlimited_hosts")},
		{Name: "max_hosts", Widget: input("max_hosts")},
		{Name: "lce", Widget: dropdown("lifecycle_environment")},
		{Name: "content_view", Widget: dropdown("content_view")},
	},
	Actions: []string{"Copy", "Delete"},
}

var Host = Definition{
	Entity:   "Host",
	Menu:     []string{"Hosts", "All Hosts"},
	Title:    "Hosts",
	NewLabel: "Create Host",
	FormID:   "host-form",
	Fields: []view.Field{
		{Name: "name", Widget: input("host_name")},
		{Name: "organization", Widget: dropdown("host_organization_id")},
		{Name: "location", Widget: dropdown("host_location_id")},
		{Name: "hostgroup", Widget: dropdown("host_hostgroup_id")},
		{Name: "comment", Widget: input("host_comment")},
		{Name: "managed", Widget: checkbox("host_managed")},
	},
	Actions: []string{"Build", "Change Content Source", "Delete"},
}

var ContentView = Definition{
	Entity:   "ContentView",
	Menu:     []string{"Content", "Lifecycle", "Content Views"},
	Title:    "Content Views",
	NewLabel: "Create content view",
	FormID:   "content-view-form",
	Fields: []view.Field{
		{Name: "name", Widget: input("name")},
		{Name: "label", Widget: input("label")},
		{Name: "description", Widget: input("description")},
		{Name: "composite", Widget: checkbox("composite")},
		{Name: "auto_publish", Widget: checkbox("auto_publish")},
	},
	Actions: []string{"Copy", "Publish", "Delete"},
}

// JobInvocation is created through the Run Job wizard and never deleted; its
// details page is read-only.
var JobInvocation = Definition{
	Entity:   "JobInvocation",
	Menu:     []string{"Monitor", "Jobs"},
	Title:    "Jobs",
	NewLabel: "Run Job",
	FormID:   "job-invocation-form",
	Fields: []view.Field{
		{Name: "job_category", Widget: dropdown("job_category")},
		{Name: "job_template", Widget: dropdown("job_template")},
		{Name: "search_query", Widget: input("search_query")},
		{Name: "description", Widget: input("description")},
	},
	DetailsRoot: "//div[@id='job-invocation-details']",
	Details: []view.Field{
		{Name: "status", Widget: text(jobStatusID)},
		{Name: "template", Widget: text("job-template")},
		{Name: "hosts", Widget: text("job-target-hosts")},
	},
	Actions: []string{"Rerun failed", "Cancel Job"},
}

// Catalog lists every definition Register turns into steps.
func Catalog() []Definition {
	return []Definition{ActivationKey, Host, ContentView, JobInvocation}
}
