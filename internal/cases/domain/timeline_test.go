package domain

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestTimelineJSONShape(t *testing.T) {
	actor := uuid.MustParse("7d1b4c1e-6a57-4c1f-9a40-2b8f5e0d9a11")
	event := TimelineEvent{
		Kind:        EventCaseOnHold,
		Description: "Case put on hold: awaiting documents",
		Timestamp:   time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC),
		ActorID:     &actor,
		Payload:     CaseOnHold{Reason: "awaiting documents"},
	}

	raw, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"event":"case_on_hold","description":"Case put on hold: awaiting documents","timestamp":"2024-05-02T10:00:00Z","actorId":"7d1b4c1e-6a57-4c1f-9a40-2b8f5e0d9a11","payload":{"reason":"awaiting documents"}}`
	if string(raw) != want {
		t.Fatalf("unexpected JSON:\n got %s\nwant %s", raw, want)
	}
}

func TestTimelineDecodesConcretePayloads(t *testing.T) {
	m := newMachine()
	advocates := recommendations(2)
	rec := submitted(t, m)
	rec = mustStep(t)(m.BeginAnalysis(rec, nil))
	rec = mustStep(t)(m.CompleteAnalysis(rec, analysis(UrgencyCritical), nil))
	rec = mustStep(t)(m.RecordRecommendations(rec, advocates, ProvenanceAI, nil))
	rec = mustStep(t)(m.Hire(rec, advocates[0].AdvocateID, nil, nil))
	rec = mustStep(t)(m.Start(rec, nil))
	rec = mustStep(t)(m.Hold(rec, "waiting", nil))
	rec = mustStep(t)(m.Resume(rec, nil))
	rec = mustStep(t)(m.Resolve(rec, Outcome{Result: OutcomeSuccess}, nil))
	rec = mustStep(t)(m.Close(rec, nil))

	raw, err := json.Marshal(rec.Timeline)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded []TimelineEvent
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !reflect.DeepEqual(decoded, rec.Timeline) {
		t.Fatalf("decoded timeline differs:\n got %#v\nwant %#v", decoded, rec.Timeline)
	}
	if _, ok := decoded[4].Payload.(AdvocateAssigned); !ok {
		t.Fatalf("expected AdvocateAssigned payload, got %T", decoded[4].Payload)
	}
}

func TestTimelineRejectsUnknownKindsAndMismatchedPayloads(t *testing.T) {
	var event TimelineEvent
	err := json.Unmarshal([]byte(`{"event":"case_teleported","description":"?","timestamp":"2024-01-01T00:00:00Z"}`), &event)
	if err == nil || !strings.Contains(err.Error(), "case_teleported") {
		t.Fatalf("expected unknown event error, got %v", err)
	}

	bad := TimelineEvent{Kind: EventCaseClosed, Payload: CaseOnHold{Reason: "x"}}
	if _, err := json.Marshal(bad); err == nil {
		t.Fatalf("expected error for payload of another kind")
	}
}

func TestCaseNumberFormat(t *testing.T) {
	if got := FormatCaseNumber(2024, 42); got != "LSP-2024-000042" {
		t.Fatalf("FormatCaseNumber = %s", got)
	}
	if got := FormatCaseNumber(2031, MaxCaseSequence); got != "LSP-2031-999999" {
		t.Fatalf("FormatCaseNumber = %s", got)
	}
}
