// Package events defines what an orchestration run reports about itself and
// the contract for anything that wants to record it (the run journal, logs).
package events

import (
	"context"
	"time"
)

// EventType represents the type of event that occurred during a run.
type EventType string

const (
	// EventTypeRunStarted indicates an orchestration run began
	EventTypeRunStarted EventType = "run_started"
	// EventTypeRunCompleted indicates an orchestration run finished (successfully or not)
	EventTypeRunCompleted EventType = "run_completed"

	// Identification events
	// EventTypeStepStarted indicates an identification step began
	EventTypeStepStarted EventType = "identification_step_started"
	// EventTypeStepCompleted indicates every module of a step has been joined
	EventTypeStepCompleted EventType = "identification_step_completed"
	// EventTypeModuleInvoked indicates an identification module returned headers
	EventTypeModuleInvoked EventType = "module_invoked"
	// EventTypeModuleFailed indicates an identification module contributed nothing because it failed
	EventTypeModuleFailed EventType = "module_failed"
	// EventTypeFixpointReached indicates a step added no new header
	EventTypeFixpointReached EventType = "fixpoint_reached"
	// EventTypeDominanceComputed indicates the accumulated set was reduced to its dominant subset
	EventTypeDominanceComputed EventType = "dominance_computed"

	// Exploration events
	// EventTypeBidReceived indicates an exploration module answered a bid request
	EventTypeBidReceived EventType = "bid_received"
	// EventTypeExplorerSelected indicates an exploration module was chosen for a decision model
	EventTypeExplorerSelected EventType = "explorer_selected"
	// EventTypeExplorationStarted indicates an exploration process was spawned
	EventTypeExplorationStarted EventType = "exploration_started"
	// EventTypeSolutionFound indicates an exploration module reported a solution
	EventTypeSolutionFound EventType = "solution_found"
	// EventTypeExplorationProgress indicates periodic progress of a running exploration
	EventTypeExplorationProgress EventType = "exploration_progress"
	// EventTypeExplorationCompleted indicates the solution stream was closed
	EventTypeExplorationCompleted EventType = "exploration_completed"
)

// EventSeverity represents the severity level of an event.
type EventSeverity string

const (
	// SeverityInfo is for informational events
	SeverityInfo EventSeverity = "info"
	// SeverityWarning is for recoverable problems (a module that failed a step)
	SeverityWarning EventSeverity = "warning"
	// SeverityError is for failures that end a run
	SeverityError EventSeverity = "error"
)

// Event is one thing that happened during a run.
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	RunID     string                 `json:"run_id"`
	Severity  EventSeverity          `json:"severity"`
	Message   string                 `json:"message"`
	Data      map[string]interface{} `json:"data"`
}

// RunData accompanies run_started and run_completed.
type RunData struct {
	RunDir      string `json:"run_dir"`
	Steps       int    `json:"steps,omitempty"`
	Identified  int    `json:"identified,omitempty"`
	Dominant    int    `json:"dominant,omitempty"`
	Solutions   int    `json:"solutions,omitempty"`
	Success     bool   `json:"success"`
	Error       string `json:"error,omitempty"`
	DurationMs  int64  `json:"duration_ms,omitempty"`
	ModuleCount int    `json:"module_count,omitempty"`
}

// StepData accompanies identification step events.
type StepData struct {
	Step       int `json:"step"`
	NewHeaders int `json:"new_headers"`
	Total      int `json:"total"`
}

// ModuleInvocationData accompanies module_invoked and module_failed.
type ModuleInvocationData struct {
	ModuleID   string `json:"module_id"`
	Step       int    `json:"step"`
	Headers    int    `json:"headers"`
	ExitCode   int    `json:"exit_code"`
	DurationMs int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// BidData accompanies bid_received and explorer_selected.
type BidData struct {
	ModuleID   string             `json:"module_id"`
	Category   string             `json:"category"`
	CanExplore bool               `json:"can_explore"`
	Criteria   map[string]float64 `json:"criteria,omitempty"`
}

// SolutionData accompanies solution_found.
type SolutionData struct {
	ModuleID   string `json:"module_id"`
	Index      int    `json:"index"`
	Category   string `json:"category"`
	HeaderPath string `json:"header_path"`
}

// ExplorationData accompanies exploration_started, exploration_progress and
// exploration_completed.
type ExplorationData struct {
	ModuleID   string `json:"module_id"`
	Category   string `json:"category"`
	Solutions  int    `json:"solutions"`
	ElapsedMs  int64  `json:"elapsed_ms"`
	StopReason string `json:"stop_reason,omitempty"`
}

// Recorder receives events as they happen.
type Recorder interface {
	Record(ctx context.Context, event *Event) error
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(ctx context.Context, event *Event) error

// Record calls f.
func (f RecorderFunc) Record(ctx context.Context, event *Event) error {
	return f(ctx, event)
}
