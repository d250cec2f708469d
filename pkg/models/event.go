package models

import (
	"net/url"
	"strconv"
	"time"

	"github.com/agent-matrix/matrix-system/pkg/validation"
)

// EventType identifies what happened. The set is open: types introduced by
// the server decode unchanged and classify as neither critical nor success.
type EventType string

const (
	EventHealthUpdate      EventType = "health.update"
	EventPlanCreated       EventType = "guardian.plan"
	EventPlanApproved      EventType = "guardian.approve"
	EventPlanRejected      EventType = "guardian.reject"
	EventPlanExecuted      EventType = "guardian.execute"
	EventAutopilotAction   EventType = "autopilot.action"
	EventErrorDetected     EventType = "error.detected"
	EventRecoveryStarted   EventType = "recovery.started"
	EventRecoveryCompleted EventType = "recovery.completed"
	EventSystemStartup     EventType = "system.startup"
	EventSystemShutdown    EventType = "system.shutdown"
)

type eventClass int

const (
	classNeutral eventClass = iota
	classCritical
	classSuccess
)

var eventClasses = map[EventType]eventClass{
	EventHealthUpdate:      classNeutral,
	EventPlanCreated:       classNeutral,
	EventPlanApproved:      classSuccess,
	EventPlanRejected:      classCritical,
	EventPlanExecuted:      classSuccess,
	EventAutopilotAction:   classSuccess,
	EventErrorDetected:     classCritical,
	EventRecoveryStarted:   classNeutral,
	EventRecoveryCompleted: classSuccess,
	EventSystemStartup:     classNeutral,
	EventSystemShutdown:    classCritical,
}

// IsKnown reports whether t is one of the predefined event types.
func (t EventType) IsKnown() bool {
	_, ok := eventClasses[t]
	return ok
}

// Event is a single entry of the append-only audit trail
type Event struct {
	ID        *int64                 `json:"id,omitempty"`
	EventType EventType              `json:"event_type" validate:"required"`
	AppUID    string                 `json:"app_uid,omitempty" validate:"max=255"`
	Payload   map[string]interface{} `json:"payload"`
	Actor     string                 `json:"actor" validate:"required,max=255"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// NewEvent fills in defaults and validates e.
func NewEvent(e Event) (*Event, error) {
	e.SetDefaults()
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return &e, nil
}

// SetDefaults fills the fields the server may omit: actor "system", an
// empty payload and the current time.
func (e *Event) SetDefaults() {
	if e.Actor == "" {
		e.Actor = "system"
	}
	if e.Payload == nil {
		e.Payload = map[string]interface{}{}
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
}

func (e Event) Validate() error {
	return validation.Struct("event", e)
}

// IsCritical is true for failures and security relevant occurrences.
func (e Event) IsCritical() bool {
	return eventClasses[e.EventType] == classCritical
}

// IsSuccess is true for successful completions.
func (e Event) IsSuccess() bool {
	return eventClasses[e.EventType] == classSuccess
}

// EventFilter narrows a GET /events query
type EventFilter struct {
	EventTypes []EventType `json:"event_types,omitempty"`
	AppUID     string      `json:"app_uid,omitempty"`
	Actor      string      `json:"actor,omitempty"`
	StartTime  *time.Time  `json:"start_time,omitempty"`
	EndTime    *time.Time  `json:"end_time,omitempty"`
	Limit      int         `json:"limit" validate:"gte=1,lte=1000"`
	Offset     int         `json:"offset" validate:"gte=0"`
}

const DefaultEventLimit = 100

// NewEventFilter returns a filter with the default page size.
func NewEventFilter() EventFilter {
	return EventFilter{Limit: DefaultEventLimit}
}

func (f EventFilter) Validate() error {
	if err := validation.Struct("event filter", f); err != nil {
		return err
	}
	if f.StartTime != nil && f.EndTime != nil && f.StartTime.After(*f.EndTime) {
		return validation.Fail("event filter", "start_time", "must not be after end_time", *f.StartTime)
	}
	return nil
}

// Query renders the filter as URL query parameters.
func (f EventFilter) Query() url.Values {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(f.Limit))
	if f.Offset > 0 {
		q.Set("offset", strconv.Itoa(f.Offset))
	}
	if f.AppUID != "" {
		q.Set("app_uid", f.AppUID)
	}
	if f.Actor != "" {
		q.Set("actor", f.Actor)
	}
	for _, t := range f.EventTypes {
		q.Add("event_type", string(t))
	}
	if f.StartTime != nil {
		q.Set("start_time", f.StartTime.UTC().Format(time.RFC3339))
	}
	if f.EndTime != nil {
		q.Set("end_time", f.EndTime.UTC().Format(time.RFC3339))
	}
	return q
}
