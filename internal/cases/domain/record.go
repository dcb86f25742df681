// Package domain contains the case entity, its lifecycle state machine and
// the value objects produced by analysis and matching.
//
// Everything here is pure: operations take a record value and return a new
// one, so a failed operation can never leave a half-applied change behind.
package domain

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// Provenance tells whether a value came from the language model or from the
// deterministic fallback.
type Provenance string

const (
	ProvenanceAI       Provenance = "ai"
	ProvenanceFallback Provenance = "fallback"
)

// CaseRecord is a client's legal matter.
type CaseRecord struct {
	ID                   uuid.UUID
	CaseNumber           string
	ClientID             uuid.UUID
	ClientEmail          string
	Title                string
	Description          string
	Category             string
	Status               Status
	Priority             Priority
	AIAnalysis           *AIAnalysis
	Timeline             []TimelineEvent
	RecommendedAdvocates []MatchResult
	AdvocateID           *uuid.UUID
	AssignedAt           *time.Time
	ResolvedAt           *time.Time
	ClosedDate           *time.Time
	Outcome              *Outcome
	// Version increments on every persisted change and backs optimistic
	// concurrency in the repositories.
	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AIAnalysis is the structured classification of a case.
type AIAnalysis struct {
	UrgencyLevel           string     `json:"urgencyLevel"`
	RiskScore              int        `json:"riskScore"`
	CaseType               string     `json:"caseType"`
	RequiredSpecialization []string   `json:"requiredSpecialization"`
	EstimatedDuration      string     `json:"estimatedDuration"`
	KeyIssues              []string   `json:"keyIssues"`
	RecommendedActions     []string   `json:"recommendedActions"`
	Reasoning              string     `json:"reasoning"`
	AnalyzedAt             time.Time  `json:"analyzedAt"`
	Provenance             Provenance `json:"provenance"`
}

// MatchResult is one scored advocate recommendation.
type MatchResult struct {
	AdvocateID    uuid.UUID `json:"advocateId"`
	MatchScore    int       `json:"matchScore"`
	Reason        string    `json:"reason"`
	RecommendedAt time.Time `json:"recommendedAt"`
}

// Outcome is recorded when a case is resolved.
type Outcome struct {
	Result  OutcomeResult `json:"result"`
	Summary string        `json:"summary,omitempty"`
}

// VerificationVerified is the only verification status eligible for matching.
const VerificationVerified = "verified"

// AdvocateCandidate is the read-only view of an advocate used for matching.
type AdvocateCandidate struct {
	ID                 uuid.UUID
	Name               string
	Email              string
	Specializations    []string
	YearsOfExperience  int
	SuccessRate        int
	Rating             float64
	AcceptingNewCases  bool
	VerificationStatus string
}

// Eligible reports whether the advocate may be recommended or hired.
func (a AdvocateCandidate) Eligible() bool {
	return a.AcceptingNewCases && a.VerificationStatus == VerificationVerified
}

// Clone returns a deep copy of the analysis.
func (a *AIAnalysis) Clone() *AIAnalysis {
	if a == nil {
		return nil
	}
	out := *a
	out.RequiredSpecialization = slices.Clone(a.RequiredSpecialization)
	out.KeyIssues = slices.Clone(a.KeyIssues)
	out.RecommendedActions = slices.Clone(a.RecommendedActions)
	return &out
}

// Clone returns a copy of the record that shares no mutable state with r.
func (r CaseRecord) Clone() CaseRecord {
	out := r
	out.AIAnalysis = r.AIAnalysis.Clone()
	out.Timeline = slices.Clone(r.Timeline)
	out.RecommendedAdvocates = slices.Clone(r.RecommendedAdvocates)
	out.AdvocateID = clonePtr(r.AdvocateID)
	out.AssignedAt = clonePtr(r.AssignedAt)
	out.ResolvedAt = clonePtr(r.ResolvedAt)
	out.ClosedDate = clonePtr(r.ClosedDate)
	out.Outcome = clonePtr(r.Outcome)
	return out
}

// IsRecommended reports whether advocateID is in the current recommendations.
func (r CaseRecord) IsRecommended(advocateID uuid.UUID) bool {
	return slices.ContainsFunc(r.RecommendedAdvocates, func(m MatchResult) bool {
		return m.AdvocateID == advocateID
	})
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
