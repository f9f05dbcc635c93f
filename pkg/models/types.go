package models

import (
	"time"
)

// ==================== Navigation Types ====================

// StepRef identifies a registered navigation step.
type StepRef struct {
	Entity string `json:"entity"`
	Step   string `json:"step"`
}

func (r StepRef) String() string {
	return r.Entity + "." + r.Step
}

// Destination is a step to navigate to together with its keyword parameters.
type Destination struct {
	Entity string            `json:"entity"`
	Step   string            `json:"step"`
	Params map[string]string `json:"params,omitempty"`
}

// Ref returns the step reference of the destination.
func (d Destination) Ref() StepRef {
	return StepRef{Entity: d.Entity, Step: d.Step}
}

// StepInfo describes a registered step for listings.
type StepInfo struct {
	Entity       string    `json:"entity"`
	Step         string    `json:"step"`
	Prerequisite *StepRef  `json:"prerequisite,omitempty"`
	View         string    `json:"view,omitempty"`
	Chain        []StepRef `json:"chain"` // root-to-leaf, including the step itself
}

// ==================== Run Types ====================

// NavigationRun is one execution of a list of destinations in a browser session.
type NavigationRun struct {
	ID                 string     `json:"id" db:"id"`
	TemporalRunID      string     `json:"temporal_run_id" db:"temporal_run_id"`
	TemporalWorkflowID string     `json:"temporal_workflow_id" db:"temporal_workflow_id"`
	Status             RunStatus  `json:"status" db:"status"`
	DestinationsJSON   string     `json:"-" db:"destinations"` // JSON string
	StartedAt          *time.Time `json:"started_at" db:"started_at"`
	CompletedAt        *time.Time `json:"completed_at" db:"completed_at"`
	ErrorMessage       string     `json:"error_message,omitempty" db:"error_message"`

	// Computed fields
	Destinations []Destination `json:"destinations,omitempty"`
	StepResults  []StepResult  `json:"step_results,omitempty"`
}

// RunStatus represents the status of a run or of a single step
type RunStatus string

const (
	StatusPending  RunStatus = "pending"
	StatusRunning  RunStatus = "running"
	StatusSuccess  RunStatus = "success"
	StatusFailed   RunStatus = "failed"
	StatusCanceled RunStatus = "canceled"
	StatusSkipped  RunStatus = "skipped" // step already displayed, action not needed
)

// Terminal reports whether no further updates will follow.
func (s RunStatus) Terminal() bool {
	switch s {
	case StatusSuccess, StatusFailed, StatusCanceled:
		return true
	}
	return false
}

// StepResult is the outcome of executing a single navigation step
type StepResult struct {
	ID             string     `json:"id" db:"id"`
	RunID          string     `json:"run_id" db:"run_id"`
	Entity         string     `json:"entity" db:"entity"`
	Step           string     `json:"step" db:"step"`
	SequenceID     int        `json:"sequence_id" db:"sequence_id"`
	Status         RunStatus  `json:"status" db:"status"`
	RetryCount     int        `json:"retry_count" db:"retry_count"`
	ScreenshotPath string     `json:"screenshot_path,omitempty" db:"screenshot_path"`
	ErrorMessage   string     `json:"error_message,omitempty" db:"error_message"`
	ExecutedAt     *time.Time `json:"executed_at" db:"executed_at"`
	Duration       int64      `json:"duration_ms,omitempty" db:"duration_ms"`
}

// ==================== Workflow Types ====================

// NavigationRequest is the input of a navigation workflow
type NavigationRequest struct {
	RunID          string        `json:"run_id"`
	Destinations   []Destination `json:"destinations"`
	Headless       bool          `json:"headless"`
	TimeoutSeconds int           `json:"timeout_seconds"`
	// ContinueOnFailure keeps visiting the remaining destinations after one fails.
	ContinueOnFailure bool `json:"continue_on_failure"`
}

// DestinationResult is the outcome of navigating to one destination
type DestinationResult struct {
	Entity         string    `json:"entity"`
	Step           string    `json:"step"`
	View           string    `json:"view,omitempty"`
	URL            string    `json:"url,omitempty"`
	Status         RunStatus `json:"status"`
	ScreenshotPath string    `json:"screenshot_path,omitempty"`
	ErrorMessage   string    `json:"error_message,omitempty"`
	Duration       int64     `json:"duration_ms"`
}

// NavigationResult is the result of a navigation workflow
type NavigationResult struct {
	RunID         string              `json:"run_id"`
	Status        RunStatus           `json:"status"`
	Destinations  []DestinationResult `json:"destinations"`
	TotalDuration int64               `json:"total_duration_ms"`
	ErrorMessage  string              `json:"error_message,omitempty"`
}

// ==================== API Request/Response Types ====================

// StartRunRequest represents a request to start a navigation run
type StartRunRequest struct {
	Destinations      []Destination `json:"destinations"`
	Headless          *bool         `json:"headless,omitempty"`
	TimeoutSeconds    int           `json:"timeout_seconds,omitempty"`
	ContinueOnFailure bool          `json:"continue_on_failure,omitempty"`
}

// ==================== WebSocket Message Types ====================

// WSMessage represents a WebSocket message for real-time updates
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}
