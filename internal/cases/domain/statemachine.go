package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// StateMachine applies lifecycle actions to case records. Every method
// returns a new record with the status change and its single timeline event
// applied together; on error the zero record is returned and the input is
// untouched.
type StateMachine struct {
	now func() time.Time
}

// NewStateMachine creates a state machine reading time from clock.
// A nil clock uses time.Now.
func NewStateMachine(clock func() time.Time) *StateMachine {
	if clock == nil {
		clock = time.Now
	}
	return &StateMachine{now: clock}
}

// SubmitInput carries everything needed to open a case.
type SubmitInput struct {
	// ID is generated when zero.
	ID          uuid.UUID
	ClientID    uuid.UUID
	ClientEmail string
	Title       string
	Description string
	Category    string
	// Priority defaults to normal when empty.
	Priority Priority
	// SubmittedAt stamps the record and picks the case number year. The
	// caller sets it when seq was allocated for a specific year; zero means
	// now.
	SubmittedAt time.Time
}

// Submit creates a record in submitted with its case number built from the
// submission year and seq. The number is never changed afterwards.
func (m *StateMachine) Submit(in SubmitInput, seq int) (CaseRecord, error) {
	id := in.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	if _, ok := Next(StatusNone, ActionSubmit); !ok {
		return CaseRecord{}, &TransitionError{CaseID: id, Action: ActionSubmit, From: StatusNone}
	}

	invalid := func(field, msg string) (CaseRecord, error) {
		return CaseRecord{}, &ValidationError{CaseID: id, Action: ActionSubmit, Field: field, Message: msg}
	}
	switch {
	case in.ClientID == uuid.Nil:
		return invalid("clientId", "is required")
	case strings.TrimSpace(in.Title) == "":
		return invalid("title", "is required")
	case strings.TrimSpace(in.Description) == "":
		return invalid("description", "is required")
	case strings.TrimSpace(in.Category) == "":
		return invalid("category", "is required")
	case seq < 1 || seq > MaxCaseSequence:
		return invalid("caseNumber", fmt.Sprintf("sequence %d out of range", seq))
	}

	priority := in.Priority
	if priority == "" {
		priority = PriorityNormal
	}
	if !priority.Valid() {
		return invalid("priority", "must be one of low, normal, high, urgent")
	}

	at := in.SubmittedAt.UTC()
	if in.SubmittedAt.IsZero() {
		at = m.stamp()
	}
	caseNumber := FormatCaseNumber(at.Year(), seq)
	actor := in.ClientID

	return CaseRecord{
		ID:          id,
		CaseNumber:  caseNumber,
		ClientID:    in.ClientID,
		ClientEmail: strings.TrimSpace(in.ClientEmail),
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Category:    strings.TrimSpace(in.Category),
		Status:      StatusSubmitted,
		Priority:    priority,
		Timeline: []TimelineEvent{{
			Kind:        EventCaseSubmitted,
			Description: "Case submitted as " + caseNumber,
			Timestamp:   at,
			ActorID:     &actor,
			Payload:     CaseSubmitted{CaseNumber: caseNumber},
		}},
		RecommendedAdvocates: []MatchResult{},
		CreatedAt:            at,
		UpdatedAt:            at,
	}, nil
}

// BeginAnalysis marks a submitted case as being analysed.
func (m *StateMachine) BeginAnalysis(rec CaseRecord, actor *uuid.UUID) (CaseRecord, error) {
	to, err := m.check(rec, ActionStartAnalysis)
	if err != nil {
		return CaseRecord{}, err
	}
	return m.apply(rec, to, actor, "AI analysis started", AnalysisStarted{}, nil), nil
}

// CompleteAnalysis stores analysis and moves the case to pending_advocate.
// A critical urgency raises the priority to urgent in the same step.
func (m *StateMachine) CompleteAnalysis(rec CaseRecord, analysis AIAnalysis, actor *uuid.UUID) (CaseRecord, error) {
	to, err := m.check(rec, ActionCompleteAnalysis)
	if err != nil {
		return CaseRecord{}, err
	}
	switch {
	case !ValidUrgency(analysis.UrgencyLevel):
		return CaseRecord{}, m.invalid(rec, ActionCompleteAnalysis, "urgencyLevel", "must be one of low, medium, high, critical")
	case analysis.RiskScore < 0 || analysis.RiskScore > 100:
		return CaseRecord{}, m.invalid(rec, ActionCompleteAnalysis, "riskScore", "must be between 0 and 100")
	case strings.TrimSpace(analysis.CaseType) == "":
		return CaseRecord{}, m.invalid(rec, ActionCompleteAnalysis, "caseType", "is required")
	}
	if analysis.Provenance == "" {
		analysis.Provenance = ProvenanceAI
	}

	escalate := analysis.UrgencyLevel == UrgencyCritical && rec.Priority != PriorityUrgent
	payload := AnalysisCompleted{
		UrgencyLevel:      analysis.UrgencyLevel,
		RiskScore:         analysis.RiskScore,
		Provenance:        analysis.Provenance,
		PriorityEscalated: escalate,
	}
	desc := fmt.Sprintf("Case analysed: %s urgency, risk score %d", analysis.UrgencyLevel, analysis.RiskScore)
	if analysis.Provenance == ProvenanceFallback {
		desc += " (default assessment)"
	}

	return m.apply(rec, to, actor, desc, payload, func(next *CaseRecord, at time.Time) {
		a := analysis.Clone()
		if a.AnalyzedAt.IsZero() {
			a.AnalyzedAt = at
		}
		next.AIAnalysis = a
		if escalate {
			next.Priority = PriorityUrgent
		}
	}), nil
}

// RecordRecommendations replaces the recommendation list wholesale. Scores
// must lie in [0,100] and each advocate may appear only once.
func (m *StateMachine) RecordRecommendations(rec CaseRecord, results []MatchResult, provenance Provenance, actor *uuid.UUID) (CaseRecord, error) {
	to, err := m.check(rec, ActionRecordRecommendations)
	if err != nil {
		return CaseRecord{}, err
	}
	seen := make(map[uuid.UUID]struct{}, len(results))
	for _, r := range results {
		if r.MatchScore < 0 || r.MatchScore > 100 {
			return CaseRecord{}, m.invalid(rec, ActionRecordRecommendations, "matchScore", "must be between 0 and 100")
		}
		if _, dup := seen[r.AdvocateID]; dup {
			return CaseRecord{}, m.invalid(rec, ActionRecordRecommendations, "advocateId", "appears more than once")
		}
		seen[r.AdvocateID] = struct{}{}
	}

	desc := fmt.Sprintf("%d advocates recommended", len(results))
	if len(results) == 1 {
		desc = "1 advocate recommended"
	}
	payload := AdvocatesRecommended{Count: len(results), Provenance: provenance}

	return m.apply(rec, to, actor, desc, payload, func(next *CaseRecord, _ time.Time) {
		next.RecommendedAdvocates = append([]MatchResult{}, results...)
	}), nil
}

// Hire assigns advocateID. The advocate must be in the current
// recommendations or be supplied as an eligible candidate; a supplied
// candidate that is no longer eligible is always rejected.
func (m *StateMachine) Hire(rec CaseRecord, advocateID uuid.UUID, candidate *AdvocateCandidate, actor *uuid.UUID) (CaseRecord, error) {
	if rec.AdvocateID != nil {
		return CaseRecord{}, &TransitionError{CaseID: rec.ID, Action: ActionHire, From: rec.Status}
	}
	to, err := m.check(rec, ActionHire)
	if err != nil {
		return CaseRecord{}, err
	}
	if advocateID == uuid.Nil {
		return CaseRecord{}, m.invalid(rec, ActionHire, "advocateId", "is required")
	}
	if candidate != nil && candidate.ID != advocateID {
		candidate = nil
	}
	switch {
	case candidate != nil && !candidate.Eligible():
		return CaseRecord{}, m.invalid(rec, ActionHire, "advocateId", "is not eligible for new cases")
	case candidate == nil && !rec.IsRecommended(advocateID):
		return CaseRecord{}, m.invalid(rec, ActionHire, "advocateId", "is not among the recommended advocates")
	}

	desc := "Advocate assigned to case"
	if candidate != nil && candidate.Name != "" {
		desc = "Advocate " + candidate.Name + " assigned to case"
	}

	return m.apply(rec, to, actor, desc, AdvocateAssigned{AdvocateID: advocateID}, func(next *CaseRecord, at time.Time) {
		id := advocateID
		assignedAt := at
		next.AdvocateID = &id
		next.AssignedAt = &assignedAt
	}), nil
}

// Start moves an assigned case into progress.
func (m *StateMachine) Start(rec CaseRecord, actor *uuid.UUID) (CaseRecord, error) {
	to, err := m.check(rec, ActionStart)
	if err != nil {
		return CaseRecord{}, err
	}
	return m.apply(rec, to, actor, "Work started on case", WorkStarted{}, nil), nil
}

// Hold pauses work. reason is required and appears in the event description.
func (m *StateMachine) Hold(rec CaseRecord, reason string, actor *uuid.UUID) (CaseRecord, error) {
	to, err := m.check(rec, ActionHold)
	if err != nil {
		return CaseRecord{}, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return CaseRecord{}, m.invalid(rec, ActionHold, "reason", "is required")
	}
	return m.apply(rec, to, actor, "Case put on hold: "+reason, CaseOnHold{Reason: reason}, nil), nil
}

// Resume continues work on a held case.
func (m *StateMachine) Resume(rec CaseRecord, actor *uuid.UUID) (CaseRecord, error) {
	to, err := m.check(rec, ActionResume)
	if err != nil {
		return CaseRecord{}, err
	}
	return m.apply(rec, to, actor, "Work resumed on case", CaseResumed{}, nil), nil
}

// Resolve records the outcome of the case.
func (m *StateMachine) Resolve(rec CaseRecord, outcome Outcome, actor *uuid.UUID) (CaseRecord, error) {
	to, err := m.check(rec, ActionResolve)
	if err != nil {
		return CaseRecord{}, err
	}
	outcome.Result = OutcomeResult(strings.ToLower(strings.TrimSpace(string(outcome.Result))))
	if !outcome.Result.Valid() {
		return CaseRecord{}, m.invalid(rec, ActionResolve, "outcome", "must be one of success, partial, failure")
	}
	outcome.Summary = strings.TrimSpace(outcome.Summary)

	return m.apply(rec, to, actor, "Case resolved: "+string(outcome.Result), CaseResolved{Outcome: outcome.Result}, func(next *CaseRecord, at time.Time) {
		o := outcome
		resolvedAt := at
		next.Outcome = &o
		next.ResolvedAt = &resolvedAt
	}), nil
}

// Close archives a resolved case and sets its closed date.
func (m *StateMachine) Close(rec CaseRecord, actor *uuid.UUID) (CaseRecord, error) {
	to, err := m.check(rec, ActionClose)
	if err != nil {
		return CaseRecord{}, err
	}
	return m.apply(rec, to, actor, "Case closed", CaseClosed{}, func(next *CaseRecord, at time.Time) {
		closed := at
		next.ClosedDate = &closed
	}), nil
}

// Withdraw ends a case before work starts. reason is optional.
func (m *StateMachine) Withdraw(rec CaseRecord, reason string, actor *uuid.UUID) (CaseRecord, error) {
	to, err := m.check(rec, ActionWithdraw)
	if err != nil {
		return CaseRecord{}, err
	}
	reason = strings.TrimSpace(reason)
	desc := "Case withdrawn"
	if reason != "" {
		desc += ": " + reason
	}
	return m.apply(rec, to, actor, desc, CaseWithdrawn{Reason: reason, FromStatus: rec.Status}, nil), nil
}

func (m *StateMachine) check(rec CaseRecord, action Action) (Status, error) {
	to, ok := Next(rec.Status, action)
	if !ok {
		return "", &TransitionError{CaseID: rec.ID, Action: action, From: rec.Status}
	}
	return to, nil
}

func (m *StateMachine) invalid(rec CaseRecord, action Action, field, msg string) error {
	return &ValidationError{CaseID: rec.ID, Action: action, Field: field, Message: msg}
}

// apply builds the successor of rec in one step: status, the optional
// mutation and exactly one timeline event.
func (m *StateMachine) apply(rec CaseRecord, to Status, actor *uuid.UUID, desc string, payload EventPayload, mutate func(next *CaseRecord, at time.Time)) CaseRecord {
	at := m.stamp()
	next := rec.Clone()
	next.Status = to
	if mutate != nil {
		mutate(&next, at)
	}
	next.Timeline = append(next.Timeline, TimelineEvent{
		Kind:        payload.Kind(),
		Description: desc,
		Timestamp:   at,
		ActorID:     clonePtr(actor),
		Payload:     payload,
	})
	next.UpdatedAt = at
	return next
}

func (m *StateMachine) stamp() time.Time {
	return m.now().UTC()
}
