package events

import "time"

// EventType identifies the kind of event emitted during a test run.
type EventType string

const (
	EventSuiteLoaded   EventType = "suite.loaded"
	EventRunStart      EventType = "run.start"
	EventRunEnd        EventType = "run.end"
	EventCaseStart     EventType = "case.start"
	EventCaseVerdict   EventType = "case.verdict"
	EventCheckerError  EventType = "checker.error"
	EventCompareLine   EventType = "compare.line"
	EventHistorySaved  EventType = "history.saved"
	EventReportPublish EventType = "report.published"
)

// Event represents a single run event. CaseID and Index identify the test
// case for case.* events.
type Event struct {
	Type      EventType     `json:"type"`
	Timestamp time.Time     `json:"timestamp"`
	Data      any           `json:"data"`
	CaseID    string        `json:"case_id,omitempty"`
	Index     int           `json:"index,omitempty"`
	Duration  time.Duration `json:"duration,omitempty"`
}

// NewEvent creates a new Event with the current timestamp.
func NewEvent(typ EventType, data any) Event {
	return Event{
		Type:      typ,
		Timestamp: time.Now(),
		Data:      data,
	}
}

// NewCaseEvent creates an event about the index-th case of a run.
func NewCaseEvent(typ EventType, caseID string, index int, data any) Event {
	e := NewEvent(typ, data)
	e.CaseID = caseID
	e.Index = index
	return e
}
