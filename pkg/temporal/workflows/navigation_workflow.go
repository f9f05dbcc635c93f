package workflows

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/SatelliteQE/airgun-sub001/pkg/models"
)

// Activity names, registered by the worker from activities.Activities.
const (
	InitializeSessionActivity = "InitializeSessionActivity"
	NavigateActivity          = "NavigateActivity"
	TakeScreenshotActivity    = "TakeScreenshotActivity"
	FinishRunActivity         = "FinishRunActivity"
	CloseSessionActivity      = "CloseSessionActivity"
)

// Application error types that are never retried by Temporal. Navigation
// failures already went through the navigator's own retry policy.
const (
	UnknownStepError      = "UnknownStepError"
	ConfigurationError    = "ConfigurationError"
	NavigationError       = "NavigationError"
	SessionNotFoundError  = "SessionNotFoundError"
	SessionBusyError      = "SessionBusyError"
	DefaultTimeoutSeconds = 300
)

// HeartbeatTimeout bounds the silence of a browser activity. Activities
// heartbeat well inside it while a step or login is still running.
const HeartbeatTimeout = 30 * time.Second

// ProgressQuery returns the NavigationResult accumulated so far.
const ProgressQuery = "getProgress"

// NavigationWorkflow visits every destination of the request, in order, in one
// browser session owned by the worker.
func NavigationWorkflow(ctx workflow.Context, input models.NavigationRequest) (result models.NavigationResult, err error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting navigation workflow", "runID", input.RunID, "destinations", len(input.Destinations))

	result = models.NavigationResult{
		RunID:        input.RunID,
		Status:       models.StatusRunning,
		Destinations: make([]models.DestinationResult, 0, len(input.Destinations)),
	}

	// Register query handler for real-time progress
	err = workflow.SetQueryHandler(ctx, ProgressQuery, func() (models.NavigationResult, error) {
		return result, nil
	})
	if err != nil {
		logger.Error("Failed to register query handler", "error", err)
	}

	startTime := workflow.Now(ctx)

	timeout := input.TimeoutSeconds
	if timeout <= 0 {
		timeout = DefaultTimeoutSeconds
	}
	nonRetryable := []string{UnknownStepError, ConfigurationError, NavigationError, SessionNotFoundError, SessionBusyError}
	activityOptions := workflow.ActivityOptions{
		StartToCloseTimeout: time.Duration(timeout) * time.Second,
		HeartbeatTimeout:    HeartbeatTimeout,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:        time.Second,
			BackoffCoefficient:     2.0,
			MaximumInterval:        time.Minute,
			MaximumAttempts:        3,
			NonRetryableErrorTypes: nonRetryable,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, activityOptions)

	// Activities that drive the browser run exactly once: a timed-out attempt
	// may still own the tab, so a second attempt would share the session.
	browserOptions := activityOptions
	browserOptions.RetryPolicy = &temporal.RetryPolicy{
		MaximumAttempts:        1,
		NonRetryableErrorTypes: nonRetryable,
	}
	browserCtx := workflow.WithActivityOptions(ctx, browserOptions)

	defer func() {
		result.TotalDuration = workflow.Now(ctx).Sub(startTime).Milliseconds()
		finishCtx, _ := workflow.NewDisconnectedContext(ctx)
		finishErr := workflow.ExecuteActivity(finishCtx, FinishRunActivity, FinishRunInput{
			RunID:        input.RunID,
			Status:       result.Status,
			ErrorMessage: result.ErrorMessage,
		}).Get(finishCtx, nil)
		if finishErr != nil {
			logger.Warn("Failed to record run status", "error", finishErr)
		}
	}()

	var session SessionInfo
	err = workflow.ExecuteActivity(browserCtx, InitializeSessionActivity, SessionInput{
		RunID:    input.RunID,
		Headless: input.Headless,
	}).Get(browserCtx, &session)
	if err != nil {
		result.Status = models.StatusFailed
		result.ErrorMessage = "Failed to initialize session: " + err.Error()
		return result, nil
	}

	defer func() {
		// Cleanup browser session even when the workflow is canceled
		closeCtx, _ := workflow.NewDisconnectedContext(ctx)
		_ = workflow.ExecuteActivity(closeCtx, CloseSessionActivity, session.SessionID).Get(closeCtx, nil)
	}()

	for i, dest := range input.Destinations {
		logger.Info("Navigating", "entity", dest.Entity, "step", dest.Step, "index", i)

		var destResult models.DestinationResult
		err := workflow.ExecuteActivity(browserCtx, NavigateActivity, NavigateInput{
			SessionID:   session.SessionID,
			RunID:       input.RunID,
			Destination: dest,
		}).Get(browserCtx, &destResult)

		if err == nil {
			result.Destinations = append(result.Destinations, destResult)
			continue
		}

		if temporal.IsCanceledError(err) {
			result.Status = models.StatusCanceled
			result.ErrorMessage = "Run canceled"
			return result, nil
		}

		destResult = models.DestinationResult{
			Entity:       dest.Entity,
			Step:         dest.Step,
			Status:       models.StatusFailed,
			ErrorMessage: err.Error(),
		}

		// Take screenshot on failure
		var screenshotPath string
		_ = workflow.ExecuteActivity(browserCtx, TakeScreenshotActivity, ScreenshotInput{
			SessionID: session.SessionID,
			Filename:  fmt.Sprintf("%s_%d_%s_%s_failure.png", input.RunID, i, dest.Entity, dest.Step),
		}).Get(browserCtx, &screenshotPath)
		destResult.ScreenshotPath = screenshotPath

		result.Destinations = append(result.Destinations, destResult)

		if !input.ContinueOnFailure {
			result.ErrorMessage = fmt.Sprintf("Navigation to %s failed: %v", dest.Ref(), err)
			break
		}
	}

	result.Status = models.StatusSuccess
	for _, dr := range result.Destinations {
		if dr.Status != models.StatusSuccess {
			result.Status = models.StatusFailed
			break
		}
	}
	if len(result.Destinations) < len(input.Destinations) {
		result.Status = models.StatusFailed
	}

	logger.Info("Workflow completed", "status", result.Status)
	return result, nil
}

// SessionInput is the input for session initialization
type SessionInput struct {
	RunID    string `json:"run_id"`
	Headless bool   `json:"headless"`
}

// SessionInfo identifies a logged-in session held by the worker
type SessionInfo struct {
	SessionID string `json:"session_id"`
	PageURL   string `json:"page_url"`
}

// NavigateInput is the input for navigating to one destination
type NavigateInput struct {
	SessionID   string             `json:"session_id"`
	RunID       string             `json:"run_id"`
	Destination models.Destination `json:"destination"`
}

// ScreenshotInput is the input for taking a screenshot
type ScreenshotInput struct {
	SessionID string `json:"session_id"`
	Filename  string `json:"filename"`
}

// FinishRunInput records the final state of a run
type FinishRunInput struct {
	RunID        string           `json:"run_id"`
	Status       models.RunStatus `json:"status"`
	ErrorMessage string           `json:"error_message,omitempty"`
}
