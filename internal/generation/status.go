package generation

import "fmt"

// WorkflowStatus is the lifecycle state of a single generation workflow run.
// PENDING is the initial state; SUCCESS, REJECTED and FAILED are terminal.
type WorkflowStatus string

const (
	StatusPending    WorkflowStatus = "pending"
	StatusValidating WorkflowStatus = "validating"
	StatusGenerating WorkflowStatus = "generating"
	StatusAssessing  WorkflowStatus = "assessing"
	StatusSuccess    WorkflowStatus = "success"
	StatusRejected   WorkflowStatus = "rejected"
	StatusFailed     WorkflowStatus = "failed"
)

// IsTerminal reports whether no further transitions are possible from s.
func (s WorkflowStatus) IsTerminal() bool {
	switch s {
	case StatusSuccess, StatusRejected, StatusFailed:
		return true
	}
	return false
}

// Event is a routing decision produced by one pipeline stage.
type Event string

const (
	EventStart           Event = "start"            // execute() invoked
	EventApproved        Event = "approved"         // validator approved the request
	EventRejected        Event = "rejected"         // validator rejected the request (or failed)
	EventAttemptReady    Event = "attempt_ready"    // generation attempt appended, content present
	EventRetry           Event = "retry"            // score below threshold, budget remains
	EventAccepted        Event = "accepted"         // score reached the quality threshold
	EventBudgetExhausted Event = "budget_exhausted" // max attempts reached, best attempt selected
	EventFatal           Event = "fatal"            // unrecoverable failure at any stage
)

// transitions is the explicit state machine table of §routing: the original
// callback-graph wiring re-expressed as data so it can be tested directly.
var transitions = map[WorkflowStatus]map[Event]WorkflowStatus{
	StatusPending: {
		EventStart: StatusValidating,
	},
	StatusValidating: {
		EventApproved: StatusGenerating,
		EventRejected: StatusRejected,
	},
	StatusGenerating: {
		EventAttemptReady:    StatusAssessing,
		EventRetry:           StatusGenerating, // transport failure consumed an attempt slot
		EventBudgetExhausted: StatusSuccess,
	},
	StatusAssessing: {
		EventRetry:           StatusGenerating,
		EventAccepted:        StatusSuccess,
		EventBudgetExhausted: StatusSuccess,
	},
}

// Next returns the successor state for (current, event). An unknown pair is a
// programming error and surfaces as FAILED with a fatal error in the caller.
func Next(current WorkflowStatus, event Event) (WorkflowStatus, error) {
	if event == EventFatal {
		return StatusFailed, nil
	}
	byEvent, ok := transitions[current]
	if !ok {
		return StatusFailed, fmt.Errorf("no transitions defined from status %q", current)
	}
	next, ok := byEvent[event]
	if !ok {
		return StatusFailed, fmt.Errorf("invalid transition: status %q does not accept event %q", current, event)
	}
	return next, nil
}
