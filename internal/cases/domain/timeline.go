package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventKind identifies a timeline entry. It is the "event" field on the wire.
type EventKind string

const (
	EventCaseSubmitted        EventKind = "case_submitted"
	EventAnalysisStarted      EventKind = "analysis_started"
	EventAnalysisCompleted    EventKind = "analysis_completed"
	EventAdvocatesRecommended EventKind = "advocates_recommended"
	EventAdvocateAssigned     EventKind = "advocate_assigned"
	EventWorkStarted          EventKind = "work_started"
	EventCaseOnHold           EventKind = "case_on_hold"
	EventCaseResumed          EventKind = "case_resumed"
	EventCaseResolved         EventKind = "case_resolved"
	EventCaseClosed           EventKind = "case_closed"
	EventCaseWithdrawn        EventKind = "case_withdrawn"
)

// TimelineEvent is one immutable audit entry. Payload holds the fields that
// only make sense for Kind.
type TimelineEvent struct {
	Kind        EventKind
	Description string
	Timestamp   time.Time
	ActorID     *uuid.UUID
	Payload     EventPayload
}

// EventPayload is implemented only by the payload types in this file.
type EventPayload interface {
	Kind() EventKind
	isEventPayload()
}

type CaseSubmitted struct {
	CaseNumber string `json:"caseNumber"`
}

type AnalysisStarted struct{}

type AnalysisCompleted struct {
	UrgencyLevel      string     `json:"urgencyLevel"`
	RiskScore         int        `json:"riskScore"`
	Provenance        Provenance `json:"provenance"`
	PriorityEscalated bool       `json:"priorityEscalated,omitempty"`
}

type AdvocatesRecommended struct {
	Count      int        `json:"count"`
	Provenance Provenance `json:"provenance"`
}

type AdvocateAssigned struct {
	AdvocateID uuid.UUID `json:"advocateId"`
}

type WorkStarted struct{}

type CaseOnHold struct {
	Reason string `json:"reason"`
}

type CaseResumed struct{}

type CaseResolved struct {
	Outcome OutcomeResult `json:"outcome"`
}

type CaseClosed struct{}

type CaseWithdrawn struct {
	Reason     string `json:"reason,omitempty"`
	FromStatus Status `json:"fromStatus"`
}

func (CaseSubmitted) Kind() EventKind        { return EventCaseSubmitted }
func (AnalysisStarted) Kind() EventKind      { return EventAnalysisStarted }
func (AnalysisCompleted) Kind() EventKind    { return EventAnalysisCompleted }
func (AdvocatesRecommended) Kind() EventKind { return EventAdvocatesRecommended }
func (AdvocateAssigned) Kind() EventKind     { return EventAdvocateAssigned }
func (WorkStarted) Kind() EventKind          { return EventWorkStarted }
func (CaseOnHold) Kind() EventKind           { return EventCaseOnHold }
func (CaseResumed) Kind() EventKind          { return EventCaseResumed }
func (CaseResolved) Kind() EventKind         { return EventCaseResolved }
func (CaseClosed) Kind() EventKind           { return EventCaseClosed }
func (CaseWithdrawn) Kind() EventKind        { return EventCaseWithdrawn }

func (CaseSubmitted) isEventPayload()        {}
func (AnalysisStarted) isEventPayload()      {}
func (AnalysisCompleted) isEventPayload()    {}
func (AdvocatesRecommended) isEventPayload() {}
func (AdvocateAssigned) isEventPayload()     {}
func (WorkStarted) isEventPayload()          {}
func (CaseOnHold) isEventPayload()           {}
func (CaseResumed) isEventPayload()          {}
func (CaseResolved) isEventPayload()         {}
func (CaseClosed) isEventPayload()           {}
func (CaseWithdrawn) isEventPayload()        {}

type timelineWire struct {
	Event       EventKind       `json:"event"`
	Description string          `json:"description"`
	Timestamp   time.Time       `json:"timestamp"`
	ActorID     *uuid.UUID      `json:"actorId,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`
}

// MarshalJSON writes {"event", "description", "timestamp", "actorId", "payload"}.
func (e TimelineEvent) MarshalJSON() ([]byte, error) {
	wire := timelineWire{
		Event:       e.Kind,
		Description: e.Description,
		Timestamp:   e.Timestamp,
		ActorID:     e.ActorID,
	}
	if e.Payload != nil {
		if e.Payload.Kind() != e.Kind {
			return nil, fmt.Errorf("timeline event %s carries %s payload", e.Kind, e.Payload.Kind())
		}
		raw, err := json.Marshal(e.Payload)
		if err != nil {
			return nil, err
		}
		wire.Payload = raw
	}
	return json.Marshal(wire)
}

// UnmarshalJSON decodes the payload into the concrete type selected by "event".
func (e *TimelineEvent) UnmarshalJSON(data []byte) error {
	var wire timelineWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	payload, err := decodePayload(wire.Event, wire.Payload)
	if err != nil {
		return err
	}
	*e = TimelineEvent{
		Kind:        wire.Event,
		Description: wire.Description,
		Timestamp:   wire.Timestamp,
		ActorID:     wire.ActorID,
		Payload:     payload,
	}
	return nil
}

func decodePayload(kind EventKind, raw json.RawMessage) (EventPayload, error) {
	switch kind {
	case EventCaseSubmitted:
		return decodeInto[CaseSubmitted](raw)
	case EventAnalysisStarted:
		return decodeInto[AnalysisStarted](raw)
	case EventAnalysisCompleted:
		return decodeInto[AnalysisCompleted](raw)
	case EventAdvocatesRecommended:
		return decodeInto[AdvocatesRecommended](raw)
	case EventAdvocateAssigned:
		return decodeInto[AdvocateAssigned](raw)
	case EventWorkStarted:
		return decodeInto[WorkStarted](raw)
	case EventCaseOnHold:
		return decodeInto[CaseOnHold](raw)
	case EventCaseResumed:
		return decodeInto[CaseResumed](raw)
	case EventCaseResolved:
		return decodeInto[CaseResolved](raw)
	case EventCaseClosed:
		return decodeInto[CaseClosed](raw)
	case EventCaseWithdrawn:
		return decodeInto[CaseWithdrawn](raw)
	default:
		return nil, fmt.Errorf("unknown timeline event %q", kind)
	}
}

func decodeInto[T EventPayload](raw json.RawMessage) (EventPayload, error) {
	var payload T
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, &payload); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", payload.Kind(), err)
		}
	}
	return payload, nil
}
