package domain

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"lexmatch_backend/platform/apperr"

	"github.com/google/uuid"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time {
	c.t = c.t.Add(time.Minute)
	return c.t
}

func newMachine() *StateMachine {
	clock := &fakeClock{t: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	return NewStateMachine(clock.Now)
}

func submitted(t *testing.T, m *StateMachine) CaseRecord {
	t.Helper()
	rec, err := m.Submit(SubmitInput{
		ClientID:    uuid.New(),
		Title:       "Unpaid wages",
		Description: "Employer withheld three months of salary.",
		Category:    "Employment",
	}, 42)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	return rec
}

func analysis(urgency string) AIAnalysis {
	return AIAnalysis{
		UrgencyLevel:           urgency,
		RiskScore:              70,
		CaseType:               "Wage Dispute",
		RequiredSpecialization: []string{"Employment Law"},
		EstimatedDuration:      "1-3 months",
		KeyIssues:              []string{"Unpaid salary"},
		RecommendedActions:     []string{"Send demand letter"},
		Reasoning:              "Clear statutory claim.",
		Provenance:             ProvenanceAI,
	}
}

func recommendations(n int) []MatchResult {
	out := make([]MatchResult, n)
	for i := range out {
		out[i] = MatchResult{AdvocateID: uuid.New(), MatchScore: 90 - 10*i, Reason: "fit"}
	}
	return out
}

func mustStep(t *testing.T) func(CaseRecord, error) CaseRecord {
	return func(rec CaseRecord, err error) CaseRecord {
		t.Helper()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return rec
	}
}

func TestSubmitAssignsCaseNumberAndFirstEvent(t *testing.T) {
	m := newMachine()
	rec := submitted(t, m)

	if rec.CaseNumber != "LSP-2024-000042" {
		t.Fatalf("unexpected case number %q", rec.CaseNumber)
	}
	if rec.Status != StatusSubmitted || rec.Priority != PriorityNormal {
		t.Fatalf("unexpected status/priority %s/%s", rec.Status, rec.Priority)
	}
	if len(rec.Timeline) != 1 || rec.Timeline[0].Kind != EventCaseSubmitted {
		t.Fatalf("expected single case_submitted event, got %#v", rec.Timeline)
	}
	if rec.Timeline[0].ActorID == nil || *rec.Timeline[0].ActorID != rec.ClientID {
		t.Fatalf("submission must be attributed to the client")
	}
}

func TestSubmitUsesSubmissionYear(t *testing.T) {
	m := newMachine()
	at := time.Date(2023, 12, 31, 23, 59, 59, 0, time.UTC)
	rec, err := m.Submit(SubmitInput{ClientID: uuid.New(), Title: "t", Description: "d", Category: "c", SubmittedAt: at}, 7)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if rec.CaseNumber != "LSP-2023-000007" || !rec.CreatedAt.Equal(at) || !rec.Timeline[0].Timestamp.Equal(at) {
		t.Fatalf("expected record stamped at %s, got %q at %s", at, rec.CaseNumber, rec.CreatedAt)
	}
}

func TestSubmitValidation(t *testing.T) {
	m := newMachine()
	base := SubmitInput{ClientID: uuid.New(), Title: "t", Description: "d", Category: "c"}

	tests := []struct {
		name  string
		mut   func(*SubmitInput)
		seq   int
		field string
	}{
		{"missing client", func(in *SubmitInput) { in.ClientID = uuid.Nil }, 1, "clientId"},
		{"blank title", func(in *SubmitInput) { in.Title = "  " }, 1, "title"},
		{"blank description", func(in *SubmitInput) { in.Description = "" }, 1, "description"},
		{"blank category", func(in *SubmitInput) { in.Category = "" }, 1, "category"},
		{"bad priority", func(in *SubmitInput) { in.Priority = "medium" }, 1, "priority"},
		{"sequence zero", func(*SubmitInput) {}, 0, "caseNumber"},
		{"sequence overflow", func(*SubmitInput) {}, MaxCaseSequence + 1, "caseNumber"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := base
			tt.mut(&in)
			_, err := m.Submit(in, tt.seq)
			var verr *ValidationError
			if !errors.As(err, &verr) || verr.Field != tt.field {
				t.Fatalf("expected validation error on %s, got %v", tt.field, err)
			}
		})
	}
}

func TestTimelineGrowsByOnePerTransitionAndCaseNumberIsStable(t *testing.T) {
	m := newMachine()
	rec := submitted(t, m)
	number := rec.CaseNumber
	advocates := recommendations(3)

	steps := []func(CaseRecord) (CaseRecord, error){
		func(r CaseRecord) (CaseRecord, error) { return m.BeginAnalysis(r, nil) },
		func(r CaseRecord) (CaseRecord, error) { return m.CompleteAnalysis(r, analysis(UrgencyHigh), nil) },
		func(r CaseRecord) (CaseRecord, error) {
			return m.RecordRecommendations(r, advocates, ProvenanceAI, nil)
		},
		func(r CaseRecord) (CaseRecord, error) {
			return m.RecordRecommendations(r, advocates[:2], ProvenanceFallback, nil)
		},
		func(r CaseRecord) (CaseRecord, error) { return m.Hire(r, advocates[1].AdvocateID, nil, &r.ClientID) },
		func(r CaseRecord) (CaseRecord, error) { return m.Start(r, nil) },
		func(r CaseRecord) (CaseRecord, error) { return m.Hold(r, "awaiting documents", nil) },
		func(r CaseRecord) (CaseRecord, error) { return m.Resume(r, nil) },
		func(r CaseRecord) (CaseRecord, error) { return m.Hold(r, "court recess", nil) },
		func(r CaseRecord) (CaseRecord, error) {
			return m.Resolve(r, Outcome{Result: OutcomePartial, Summary: "Settled"}, nil)
		},
		func(r CaseRecord) (CaseRecord, error) { return m.Close(r, nil) },
	}

	for i, step := range steps {
		rec = mustStep(t)(step(rec))
		if got, want := len(rec.Timeline), i+2; got != want {
			t.Fatalf("after step %d: timeline length %d, want %d", i, got, want)
		}
		if rec.CaseNumber != number {
			t.Fatalf("case number changed from %s to %s", number, rec.CaseNumber)
		}
	}

	if rec.Status != StatusClosed || rec.ClosedDate == nil || rec.ResolvedAt == nil {
		t.Fatalf("expected closed case with dates, got %s", rec.Status)
	}
	if len(rec.RecommendedAdvocates) != 2 {
		t.Fatalf("second matching pass must replace the first, got %d entries", len(rec.RecommendedAdvocates))
	}
	for i := 1; i < len(rec.Timeline); i++ {
		if rec.Timeline[i].Timestamp.Before(rec.Timeline[i-1].Timestamp) {
			t.Fatalf("timeline out of order at %d", i)
		}
	}
}

func TestHireTwiceFailsAndKeepsFirstAdvocate(t *testing.T) {
	m := newMachine()
	advocates := recommendations(2)
	rec := submitted(t, m)
	rec = mustStep(t)(m.CompleteAnalysis(rec, analysis(UrgencyMedium), nil))
	rec = mustStep(t)(m.RecordRecommendations(rec, advocates, ProvenanceAI, nil))
	rec = mustStep(t)(m.Hire(rec, advocates[0].AdvocateID, nil, nil))

	again, err := m.Hire(rec, advocates[1].AdvocateID, nil, nil)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	if again.ID != uuid.Nil {
		t.Fatalf("failed transition must return the zero record")
	}
	if rec.AdvocateID == nil || *rec.AdvocateID != advocates[0].AdvocateID {
		t.Fatalf("first assignment must be intact")
	}
}

func TestResolveFromPendingAdvocateFails(t *testing.T) {
	m := newMachine()
	rec := submitted(t, m)
	rec = mustStep(t)(m.CompleteAnalysis(rec, analysis(UrgencyLow), nil))

	_, err := m.Resolve(rec, Outcome{Result: OutcomeSuccess}, nil)
	var terr *TransitionError
	if !errors.As(err, &terr) {
		t.Fatalf("expected TransitionError, got %v", err)
	}
	if terr.CaseID != rec.ID || terr.Action != ActionResolve || terr.From != StatusPendingAdvocate {
		t.Fatalf("error must name case, action and status: %+v", terr)
	}
}

func TestCriticalScenario(t *testing.T) {
	m := newMachine()
	advocates := recommendations(3)
	rec := submitted(t, m)
	rec = mustStep(t)(m.CompleteAnalysis(rec, analysis(UrgencyCritical), nil))
	rec = mustStep(t)(m.RecordRecommendations(rec, advocates, ProvenanceAI, nil))
	rec = mustStep(t)(m.Hire(rec, advocates[1].AdvocateID, nil, &rec.ClientID))

	if rec.Status != StatusAdvocateAssigned {
		t.Fatalf("expected advocate_assigned, got %s", rec.Status)
	}
	if len(rec.Timeline) != 4 {
		t.Fatalf("expected 4 timeline entries, got %d", len(rec.Timeline))
	}
	if !reflect.DeepEqual(rec.RecommendedAdvocates, advocates) {
		t.Fatalf("recommendations must keep all entries and scores")
	}
	if rec.Priority != PriorityUrgent {
		t.Fatalf("critical urgency must escalate priority, got %s", rec.Priority)
	}
	if rec.AssignedAt == nil {
		t.Fatalf("assignedAt must be recorded")
	}
	completed, ok := rec.Timeline[1].Payload.(AnalysisCompleted)
	if !ok || !completed.PriorityEscalated {
		t.Fatalf("analysis event must record the escalation: %#v", rec.Timeline[1].Payload)
	}
}

func TestFailedTransitionsDoNotMutateInput(t *testing.T) {
	m := newMachine()
	advocates := recommendations(2)
	rec := submitted(t, m)
	rec = mustStep(t)(m.CompleteAnalysis(rec, analysis(UrgencyMedium), nil))
	rec = mustStep(t)(m.RecordRecommendations(rec, advocates, ProvenanceAI, nil))
	snapshot := rec.Clone()

	attempts := []func() error{
		func() error { _, err := m.Start(rec, nil); return err },
		func() error { _, err := m.Close(rec, nil); return err },
		func() error { _, err := m.Hire(rec, uuid.New(), nil, nil); return err },
		func() error {
			_, err := m.RecordRecommendations(rec, []MatchResult{{AdvocateID: uuid.New(), MatchScore: 101}}, ProvenanceAI, nil)
			return err
		},
		func() error { _, err := m.CompleteAnalysis(rec, analysis(UrgencyHigh), nil); return err },
	}
	for i, attempt := range attempts {
		if err := attempt(); err == nil {
			t.Fatalf("attempt %d: expected error", i)
		}
	}
	if !reflect.DeepEqual(rec, snapshot) {
		t.Fatalf("input record mutated by failed transitions")
	}
}

func TestSuccessfulTransitionDoesNotAliasInput(t *testing.T) {
	m := newMachine()
	rec := submitted(t, m)
	next := mustStep(t)(m.BeginAnalysis(rec, nil))

	next.Timeline[0].Description = "edited"
	if rec.Timeline[0].Description == "edited" {
		t.Fatalf("new record shares timeline storage with input")
	}
	if len(rec.Timeline) != 1 || rec.Status != StatusSubmitted {
		t.Fatalf("input changed by successful transition")
	}
}

func TestHireEligibility(t *testing.T) {
	m := newMachine()
	advocates := recommendations(1)
	rec := submitted(t, m)
	rec = mustStep(t)(m.CompleteAnalysis(rec, analysis(UrgencyMedium), nil))
	rec = mustStep(t)(m.RecordRecommendations(rec, advocates, ProvenanceAI, nil))

	outsider := AdvocateCandidate{ID: uuid.New(), Name: "Ada", AcceptingNewCases: true, VerificationStatus: VerificationVerified}
	if _, err := m.Hire(rec, outsider.ID, &outsider, nil); err != nil {
		t.Fatalf("eligible supplied candidate must be hireable: %v", err)
	}

	unverified := AdvocateCandidate{ID: advocates[0].AdvocateID, AcceptingNewCases: true, VerificationStatus: "pending"}
	if _, err := m.Hire(rec, unverified.ID, &unverified, nil); !errors.Is(err, ErrValidation) {
		t.Fatalf("ineligible candidate must be rejected even when recommended, got %v", err)
	}

	if _, err := m.Hire(rec, uuid.New(), nil, nil); !errors.Is(err, ErrValidation) {
		t.Fatalf("unknown advocate must be rejected, got %v", err)
	}
}

func TestHoldAndResolveValidation(t *testing.T) {
	m := newMachine()
	advocates := recommendations(1)
	rec := submitted(t, m)
	rec = mustStep(t)(m.CompleteAnalysis(rec, analysis(UrgencyMedium), nil))
	rec = mustStep(t)(m.RecordRecommendations(rec, advocates, ProvenanceAI, nil))
	rec = mustStep(t)(m.Hire(rec, advocates[0].AdvocateID, nil, nil))
	rec = mustStep(t)(m.Start(rec, nil))

	if _, err := m.Hold(rec, "   ", nil); !errors.Is(err, ErrValidation) {
		t.Fatalf("hold without reason must fail validation, got %v", err)
	}
	held := mustStep(t)(m.Hold(rec, "client travelling", nil))
	if got := held.Timeline[len(held.Timeline)-1].Description; got != "Case put on hold: client travelling" {
		t.Fatalf("hold reason missing from description: %q", got)
	}

	if _, err := m.Resolve(held, Outcome{Result: "won"}, nil); !errors.Is(err, ErrValidation) {
		t.Fatalf("unknown outcome must fail validation, got %v", err)
	}
	resolved := mustStep(t)(m.Resolve(held, Outcome{Result: "Failure"}, nil))
	if resolved.Outcome == nil || resolved.Outcome.Result != OutcomeFailure {
		t.Fatalf("outcome not normalised: %#v", resolved.Outcome)
	}
}

func TestWithdrawSources(t *testing.T) {
	allowed := map[Status]bool{
		StatusSubmitted:        true,
		StatusAnalyzing:        true,
		StatusPendingAdvocate:  true,
		StatusAdvocateAssigned: true,
	}
	statuses := []Status{
		StatusSubmitted, StatusAnalyzing, StatusPendingAdvocate, StatusAdvocateAssigned,
		StatusInProgress, StatusOnHold, StatusResolved, StatusClosed, StatusWithdrawn,
	}
	m := newMachine()

	for _, status := range statuses {
		rec := submitted(t, m)
		rec.Status = status
		next, err := m.Withdraw(rec, "changed my mind", nil)
		if allowed[status] {
			if err != nil || next.Status != StatusWithdrawn {
				t.Fatalf("withdraw from %s: %v", status, err)
			}
			payload := next.Timeline[len(next.Timeline)-1].Payload.(CaseWithdrawn)
			if payload.FromStatus != status {
				t.Fatalf("withdraw payload must record source status")
			}
			continue
		}
		if !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("withdraw from %s should be rejected, got %v", status, err)
		}
	}
}

func TestTerminalStatesAllowNothing(t *testing.T) {
	for _, s := range []Status{StatusClosed, StatusWithdrawn} {
		if !s.Terminal() || len(AllowedActions(s)) != 0 {
			t.Fatalf("%s must be terminal with no actions", s)
		}
	}
	if got := AllowedActions(StatusInProgress); !reflect.DeepEqual(got, []Action{ActionHold, ActionResolve}) {
		t.Fatalf("unexpected in_progress actions %v", got)
	}
}

func TestErrorsConvertToAppErrors(t *testing.T) {
	caseID := uuid.New()
	if got := apperr.GetKind(&TransitionError{CaseID: caseID, Action: ActionHire, From: StatusClosed}); got != apperr.KindConflict {
		t.Fatalf("transition error kind = %v", got)
	}
	verr := &ValidationError{CaseID: caseID, Action: ActionHold, Field: "reason", Message: "is required"}
	app, ok := apperr.From(verr)
	if !ok || app.Kind != apperr.KindValidation || app.HTTPStatus() != 400 {
		t.Fatalf("validation error must map to 400, got %#v", app)
	}
}
