package core

import (
	"context"
	"time"
)

// EventType defines the lifecycle events emitted while a suite is expanded
// and while its cases run.
type EventType string

const (
	SourceResolved  EventType = "source:resolved"
	RowsLoaded      EventType = "rows:loaded"
	RowsFiltered    EventType = "rows:filtered"
	RowsTransformed EventType = "rows:transformed"
	ExpandFailed    EventType = "expand:failed"
	CaseRegistered  EventType = "case:registered"
	CaseStart       EventType = "case:start"
	CaseSuccess     EventType = "case:success"
	CaseFailed      EventType = "case:failed"
)

// Event describes one step of a run.
type Event struct {
	Type      EventType      `json:"type"`               // The type of event (e.g., 'rows:loaded', 'case:failed').
	Timestamp int64          `json:"timestamp"`          // Unix milliseconds.
	RunID     string         `json:"runId"`              // Identifier shared by every event of one Run call.
	Suite     string         `json:"suite,omitempty"`    // The test name prefix of the suite, if any.
	CaseID    *string        `json:"caseId,omitempty"`   // Set on case:* events.
	Name      *string        `json:"name,omitempty"`     // Case name, on case:* events.
	Origin    *string        `json:"origin,omitempty"`   // Where the rows came from, on source:resolved.
	Count     *int           `json:"count,omitempty"`    // Number of rows after the stage, on rows:* events.
	Error     *string        `json:"error,omitempty"`    // Error message if the step failed.
	Duration  *int64         `json:"duration,omitempty"` // Duration of the step in milliseconds.
	Context   map[string]any `json:"context,omitempty"`  // Additional context specific to the step.
}

// EventCallback receives events for a subscription.
type EventCallback func(ctx context.Context, event Event) error

func createEvent(eventType EventType, runID, suite string, startTime time.Time) Event {
	var duration *int64
	if !startTime.IsZero() {
		d := time.Since(startTime).Milliseconds()
		duration = &d
	}
	return Event{
		Type:      eventType,
		Timestamp: time.Now().UnixMilli(),
		RunID:     runID,
		Suite:     suite,
		Duration:  duration,
	}
}

func (e Event) withCount(n int) Event {
	e.Count = &n
	return e
}

func (e Event) withCase(c Case) Event {
	id, name := c.ID, c.Name
	e.CaseID = &id
	e.Name = &name
	return e
}

func (e Event) withError(err error) Event {
	msg := err.Error()
	e.Error = &msg
	return e
}
