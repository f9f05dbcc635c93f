package workflows_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"

	"github.com/SatelliteQE/airgun-sub001/pkg/models"
	"github.com/SatelliteQE/airgun-sub001/pkg/temporal/activities"
	"github.com/SatelliteQE/airgun-sub001/pkg/temporal/workflows"
)

var destinations = []models.Destination{
	{Entity: "Host", Step: "All"},
	{Entity: "Host", Step: "Edit", Params: map[string]string{"entity_name": "web01"}},
	{Entity: "ContentView", Step: "New"},
}

// setup mocks every activity; NavigateActivity fails for the destinations in failing.
func setup(t *testing.T, failing map[string]bool) (*testsuite.TestWorkflowEnvironment, *workflows.FinishRunInput) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	acts := &activities.Activities{}
	env.RegisterActivity(acts)

	env.OnActivity(acts.InitializeSessionActivity, mock.Anything, mock.Anything).
		Return(workflows.SessionInfo{SessionID: "session-1"}, nil)
	env.OnActivity(acts.NavigateActivity, mock.Anything, mock.Anything).
		Return(func(_ context.Context, in workflows.NavigateInput) (models.DestinationResult, error) {
			if failing[in.Destination.Ref().String()] {
				return models.DestinationResult{}, temporal.NewNonRetryableApplicationError("menu missing", workflows.NavigationError, nil)
			}
			return models.DestinationResult{
				Entity: in.Destination.Entity,
				Step:   in.Destination.Step,
				View:   in.Destination.Entity + "View",
				Status: models.StatusSuccess,
			}, nil
		})
	env.OnActivity(acts.TakeScreenshotActivity, mock.Anything, mock.Anything).Return("/tmp/failure.png", nil)
	env.OnActivity(acts.CloseSessionActivity, mock.Anything, "session-1").Return(nil).Once()

	finished := &workflows.FinishRunInput{}
	env.OnActivity(acts.FinishRunActivity, mock.Anything, mock.Anything).
		Return(func(_ context.Context, in workflows.FinishRunInput) error {
			*finished = in
			return nil
		}).Once()
	return env, finished
}

func run(t *testing.T, env *testsuite.TestWorkflowEnvironment, req models.NavigationRequest) models.NavigationResult {
	env.ExecuteWorkflow(workflows.NavigationWorkflow, req)
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result models.NavigationResult
	require.NoError(t, env.GetWorkflowResult(&result))
	return result
}

func TestNavigationWorkflowVisitsEveryDestination(t *testing.T) {
	env, finished := setup(t, nil)

	result := run(t, env, models.NavigationRequest{RunID: "run-1", Destinations: destinations})
	require.Equal(t, models.StatusSuccess, result.Status)
	require.Len(t, result.Destinations, 3)
	require.Equal(t, "ContentViewView", result.Destinations[2].View)

	env.AssertExpectations(t)
	require.Equal(t, models.StatusSuccess, finished.Status)
	require.Equal(t, "run-1", finished.RunID)
}

func TestNavigationWorkflowStopsOnFailure(t *testing.T) {
	env, finished := setup(t, map[string]bool{"Host.Edit": true})

	result := run(t, env, models.NavigationRequest{RunID: "run-2", Destinations: destinations})
	require.Equal(t, models.StatusFailed, result.Status)
	require.Len(t, result.Destinations, 2)
	require.Equal(t, models.StatusFailed, result.Destinations[1].Status)
	require.Equal(t, "/tmp/failure.png", result.Destinations[1].ScreenshotPath)
	require.Contains(t, result.ErrorMessage, "Host.Edit")

	env.AssertActivityNumberOfCalls(t, "NavigateActivity", 2)
	env.AssertExpectations(t)
	require.Equal(t, models.StatusFailed, finished.Status)
}

func TestNavigationWorkflowContinueOnFailure(t *testing.T) {
	env, _ := setup(t, map[string]bool{"Host.All": true})

	result := run(t, env, models.NavigationRequest{RunID: "run-3", Destinations: destinations, ContinueOnFailure: true})
	require.Equal(t, models.StatusFailed, result.Status)
	require.Len(t, result.Destinations, 3)
	require.Equal(t, models.StatusSuccess, result.Destinations[2].Status)
	env.AssertActivityNumberOfCalls(t, "NavigateActivity", 3)
}

func TestNavigationWorkflowSessionFailure(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	acts := &activities.Activities{}
	env.RegisterActivity(acts)

	env.OnActivity(acts.InitializeSessionActivity, mock.Anything, mock.Anything).
		Return(workflows.SessionInfo{}, temporal.NewNonRetryableApplicationError("no url", workflows.ConfigurationError, nil))
	var finished workflows.FinishRunInput
	env.OnActivity(acts.FinishRunActivity, mock.Anything, mock.Anything).
		Return(func(_ context.Context, in workflows.FinishRunInput) error {
			finished = in
			return nil
		})

	result := run(t, env, models.NavigationRequest{RunID: "run-4", Destinations: destinations})
	require.Equal(t, models.StatusFailed, result.Status)
	require.Contains(t, result.ErrorMessage, "Failed to initialize session")
	require.Empty(t, result.Destinations)
	env.AssertActivityNumberOfCalls(t, "NavigateActivity", 0)
	env.AssertActivityNumberOfCalls(t, "CloseSessionActivity", 0)
	require.Equal(t, models.StatusFailed, finished.Status)
}

func TestNavigationWorkflowDoesNotRedispatchBrowserActivities(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	acts := &activities.Activities{}
	env.RegisterActivity(acts)

	env.OnActivity(acts.InitializeSessionActivity, mock.Anything, mock.Anything).
		Return(workflows.SessionInfo{SessionID: "session-1"}, nil)
	// A plain error is retryable by default, like a heartbeat timeout.
	env.OnActivity(acts.NavigateActivity, mock.Anything, mock.Anything).
		Return(models.DestinationResult{}, errors.New("activity heartbeat timeout"))
	env.OnActivity(acts.TakeScreenshotActivity, mock.Anything, mock.Anything).Return("", nil)
	env.OnActivity(acts.CloseSessionActivity, mock.Anything, "session-1").Return(nil)
	env.OnActivity(acts.FinishRunActivity, mock.Anything, mock.Anything).Return(nil)

	result := run(t, env, models.NavigationRequest{RunID: "run-5", Destinations: destinations[:1]})
	require.Equal(t, models.StatusFailed, result.Status)
	env.AssertActivityNumberOfCalls(t, "NavigateActivity", 1)
	env.AssertActivityNumberOfCalls(t, "CloseSessionActivity", 1)
}
