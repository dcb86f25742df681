package transport

import (
	"time"

	"lexmatch_backend/internal/cases/domain"

	"github.com/google/uuid"
)

type SubmitCaseRequest struct {
	Title       string `json:"title" validate:"required,notblank,max=200"`
	Description string `json:"description" validate:"required,notblank,max=10000"`
	Category    string `json:"category" validate:"required,category"`
	Priority    string `json:"priority,omitempty" validate:"omitempty,priority"`
	ClientEmail string `json:"clientEmail,omitempty" validate:"omitempty,email"`
}

type ListCasesRequest struct {
	ClientID string `form:"clientId" validate:"omitempty,uuid"`
	Status   string `form:"status" validate:"omitempty,max=32"`
	Limit    int    `form:"limit" validate:"omitempty,min=1,max=200"`
	Offset   int    `form:"offset" validate:"omitempty,min=0"`
}

type HireRequest struct {
	AdvocateID uuid.UUID `json:"advocateId" validate:"required"`
}

type HoldRequest struct {
	Reason string `json:"reason" validate:"required,notblank,max=500"`
}

type ResolveRequest struct {
	Outcome string `json:"outcome" validate:"required,outcome"`
	Summary string `json:"summary,omitempty" validate:"omitempty,max=2000"`
}

type WithdrawRequest struct {
	Reason string `json:"reason,omitempty" validate:"omitempty,max=500"`
}

type AnalysisResponse struct {
	UrgencyLevel           string    `json:"urgencyLevel"`
	RiskScore              int       `json:"riskScore"`
	CaseType               string    `json:"caseType"`
	RequiredSpecialization []string  `json:"requiredSpecialization"`
	EstimatedDuration      string    `json:"estimatedDuration"`
	KeyIssues              []string  `json:"keyIssues"`
	RecommendedActions     []string  `json:"recommendedActions"`
	Reasoning              string    `json:"reasoning"`
	AnalyzedAt             time.Time `json:"analyzedAt"`
	Provenance             string    `json:"provenance"`
}

type RecommendationResponse struct {
	AdvocateID    uuid.UUID `json:"advocateId"`
	MatchScore    int       `json:"matchScore"`
	Reason        string    `json:"reason"`
	RecommendedAt time.Time `json:"recommendedAt"`
}

type OutcomeResponse struct {
	Result  string `json:"result"`
	Summary string `json:"summary,omitempty"`
}

type CaseResponse struct {
	ID                   uuid.UUID                `json:"id"`
	CaseNumber           string                   `json:"caseNumber"`
	ClientID             uuid.UUID                `json:"clientId"`
	Title                string                   `json:"title"`
	Description          string                   `json:"description"`
	Category             string                   `json:"category"`
	Status               string                   `json:"status"`
	Priority             string                   `json:"priority"`
	AllowedActions       []string                 `json:"allowedActions"`
	AIAnalysis           *AnalysisResponse        `json:"aiAnalysis,omitempty"`
	RecommendedAdvocates []RecommendationResponse `json:"recommendedAdvocates"`
	AdvocateID           *uuid.UUID               `json:"advocateId,omitempty"`
	AssignedAt           *time.Time               `json:"assignedAt,omitempty"`
	ResolvedAt           *time.Time               `json:"resolvedAt,omitempty"`
	ClosedDate           *time.Time               `json:"closedDate,omitempty"`
	Outcome              *OutcomeResponse         `json:"outcome,omitempty"`
	Timeline             []domain.TimelineEvent   `json:"timeline"`
	Version              int                      `json:"version"`
	CreatedAt            time.Time                `json:"createdAt"`
	UpdatedAt            time.Time                `json:"updatedAt"`
}

type CaseSummaryResponse struct {
	ID         uuid.UUID  `json:"id"`
	CaseNumber string     `json:"caseNumber"`
	Title      string     `json:"title"`
	Category   string     `json:"category"`
	Status     string     `json:"status"`
	Priority   string     `json:"priority"`
	AdvocateID *uuid.UUID `json:"advocateId,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

type CaseListResponse struct {
	Items  []CaseSummaryResponse `json:"items"`
	Limit  int                   `json:"limit"`
	Offset int                   `json:"offset"`
}

type TimelineResponse struct {
	Items []domain.TimelineEvent `json:"items"`
}

type RecommendationListResponse struct {
	Items []RecommendationResponse `json:"items"`
}
