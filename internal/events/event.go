// Package events defines the case events published on the bus. The bus
// itself lives in platform/events; its types are aliased here so modules
// import a single package.
package events

import (
	"lexmatch_backend/platform/events"

	"github.com/google/uuid"
)

type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	BaseEvent   = events.BaseEvent
	InMemoryBus = events.InMemoryBus
)

var (
	NewBaseEventAt = events.NewBaseEventAt
	NewInMemoryBus = events.NewInMemoryBus
)

// =============================================================================
// Case Domain Events
// =============================================================================

// CaseAnalysisUrgent is published when analysis rates a case critical.
type CaseAnalysisUrgent struct {
	BaseEvent
	CaseID      uuid.UUID `json:"caseId"`
	CaseNumber  string    `json:"caseNumber"`
	ClientID    uuid.UUID `json:"clientId"`
	ClientEmail string    `json:"clientEmail"`
	Title       string    `json:"title"`
	RiskScore   int       `json:"riskScore"`
}

func (e CaseAnalysisUrgent) EventName() string { return "cases.analysis.urgent" }

// CaseAdvocatesRecommended is published after every matching pass.
type CaseAdvocatesRecommended struct {
	BaseEvent
	CaseID      uuid.UUID `json:"caseId"`
	CaseNumber  string    `json:"caseNumber"`
	ClientID    uuid.UUID `json:"clientId"`
	ClientEmail string    `json:"clientEmail"`
	Count       int       `json:"count"`
	Provenance  string    `json:"provenance"`
}

func (e CaseAdvocatesRecommended) EventName() string { return "cases.advocates.recommended" }

// CaseAdvocateHired is published when a client hires an advocate.
type CaseAdvocateHired struct {
	BaseEvent
	CaseID        uuid.UUID `json:"caseId"`
	CaseNumber    string    `json:"caseNumber"`
	ClientID      uuid.UUID `json:"clientId"`
	ClientEmail   string    `json:"clientEmail"`
	AdvocateID    uuid.UUID `json:"advocateId"`
	AdvocateName  string    `json:"advocateName"`
	AdvocateEmail string    `json:"advocateEmail"`
}

func (e CaseAdvocateHired) EventName() string { return "cases.advocate.hired" }

// CaseResolved is published when a case receives its outcome.
type CaseResolved struct {
	BaseEvent
	CaseID      uuid.UUID `json:"caseId"`
	CaseNumber  string    `json:"caseNumber"`
	ClientID    uuid.UUID `json:"clientId"`
	ClientEmail string    `json:"clientEmail"`
	Outcome     string    `json:"outcome"`
	Summary     string    `json:"summary"`
}

func (e CaseResolved) EventName() string { return "cases.resolved" }
