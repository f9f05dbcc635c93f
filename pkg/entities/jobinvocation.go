package entities

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/SatelliteQE/airgun-sub001/pkg/browser"
	"github.com/SatelliteQE/airgun-sub001/pkg/navigation"
	"github.com/SatelliteQE/airgun-sub001/pkg/view"
)

// StepRun reopens the run form of an existing invocation, prefilled.
const StepRun = "Run"

const (
	jobStatusID       = "job-invocation-status"
	DefaultJobTimeout = 5 * time.Minute
)

// ErrJobFailed is returned when a job invocation finishes unsuccessfully.
var ErrJobFailed = errors.New("job invocation failed")

func jobInvocationSteps() []navigation.Step {
	def := JobInvocation
	return []navigation.Step{{
		Entity:       def.Entity,
		Name:         StepRun,
		Prerequisite: navigation.Requires("", StepEdit),
		View:         func(d browser.Driver) view.View { return def.createView(d) },
		ViewName:     def.createViewName(),
		Action: func(ctx context.Context, sc navigation.StepContext) error {
			return (&view.Button{Locator: labelled("Rerun")}).Click(ctx, sc.Driver)
		},
	}}
}

// JobInvocations runs remote execution jobs.
type JobInvocations struct {
	*Entity
	// StatusTimeout bounds how long Run waits for a job to finish.
	StatusTimeout time.Duration
}

func NewJobInvocations(nav *navigation.Navigator) *JobInvocations {
	return &JobInvocations{Entity: New(nav, JobInvocation), StatusTimeout: DefaultJobTimeout}
}

// Run submits a new job with values and waits for it to finish. It returns
// the final status text; a job that did not succeed also yields ErrJobFailed.
func (j *JobInvocations) Run(ctx context.Context, values map[string]string) (string, error) {
	if err := j.Create(ctx, values); err != nil {
		return "", err
	}
	return j.wait(ctx)
}

// Rerun submits the run form of the invocation called name unchanged.
func (j *JobInvocations) Rerun(ctx context.Context, name string) (string, error) {
	form, err := navigation.NavigateAs[*view.Form](ctx, j.nav, j.def.Entity, StepRun,
		navigation.Params{EntityNameParam: name})
	if err != nil {
		return "", err
	}
	if err := j.submit(ctx, form, nil); err != nil {
		return "", err
	}
	return j.wait(ctx)
}

func (j *JobInvocations) wait(ctx context.Context) (string, error) {
	status := text(jobStatusID)
	var last string
	err := browser.Until(ctx, j.StatusTimeout, "job invocation to finish", func(ctx context.Context) (bool, error) {
		s, err := status.Read(ctx, j.nav.Driver())
		if err != nil {
			return false, err
		}
		last = strings.ToLower(s)
		return finished(last), nil
	})
	if err != nil {
		return last, err
	}
	if last != "succeeded" {
		return last, fmt.Errorf("%w: %s", ErrJobFailed, last)
	}
	return last, nil
}

func finished(status string) bool {
	switch status {
	case "succeeded", "failed", "cancelled", "warning":
		return true
	}
	return false
}
