package matching

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"lexmatch_backend/internal/cases/domain"
	"lexmatch_backend/platform/ai"

	"github.com/google/uuid"
)

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func candidates(n int) []domain.AdvocateCandidate {
	out := make([]domain.AdvocateCandidate, n)
	for i := range out {
		out[i] = domain.AdvocateCandidate{
			ID:                 uuid.New(),
			Name:               fmt.Sprintf("Advocate %d", i),
			Specializations:    []string{"Employment Law"},
			YearsOfExperience:  5 + i,
			SuccessRate:        70,
			Rating:             4.5,
			AcceptingNewCases:  true,
			VerificationStatus: domain.VerificationVerified,
		}
	}
	return out
}

func testAnalysis() domain.AIAnalysis {
	return domain.AIAnalysis{UrgencyLevel: "high", RiskScore: 60, CaseType: "Wage Dispute", RequiredSpecialization: []string{"Employment Law"}}
}

func newTestEngine(c ai.Completer) *Engine {
	return NewEngine(c, WithClock(func() time.Time { return fixedNow }), WithTimeout(50*time.Millisecond))
}

func replying(text string, err error) ai.Completer {
	return ai.CompleterFunc(func(context.Context, string) (string, error) { return text, err })
}

func reply(t *testing.T, entries ...map[string]any) string {
	t.Helper()
	raw, err := json.Marshal(entries)
	if err != nil {
		t.Fatalf("marshal reply: %v", err)
	}
	return string(raw)
}

func entry(id uuid.UUID, score any) map[string]any {
	return map[string]any{"advocateId": id.String(), "matchScore": score, "reason": "fit"}
}

func assertPermutation(t *testing.T, got []domain.MatchResult, in []domain.AdvocateCandidate) {
	t.Helper()
	if len(got) != len(in) {
		t.Fatalf("expected %d matches, got %d", len(in), len(got))
	}
	want := make(map[uuid.UUID]bool, len(in))
	for _, c := range in {
		want[c.ID] = true
	}
	for i, m := range got {
		if !want[m.AdvocateID] {
			t.Fatalf("match %d references unknown or repeated advocate %s", i, m.AdvocateID)
		}
		delete(want, m.AdvocateID)
		if m.MatchScore < 0 || m.MatchScore > 100 {
			t.Fatalf("score %d out of range", m.MatchScore)
		}
		if i > 0 && got[i-1].MatchScore < m.MatchScore {
			t.Fatalf("matches not sorted descending at %d", i)
		}
	}
}

func TestRankUsesValidModelReply(t *testing.T) {
	in := candidates(3)
	text := "```json\n" + reply(t, entry(in[2].ID, 91), entry(in[0].ID, 55), entry(in[1].ID, 91)) + "\n```"

	res := newTestEngine(replying(text, nil)).Rank(context.Background(), testAnalysis(), in)

	if res.Provenance != domain.ProvenanceAI || res.Call.Status != ai.CallSuccess {
		t.Fatalf("expected AI result, got %s / %s (%s)", res.Provenance, res.Call.Status, res.Call.Error)
	}
	assertPermutation(t, res.Matches, in)
	order := []uuid.UUID{res.Matches[0].AdvocateID, res.Matches[1].AdvocateID, res.Matches[2].AdvocateID}
	if !reflect.DeepEqual(order, []uuid.UUID{in[1].ID, in[2].ID, in[0].ID}) {
		t.Fatalf("ties must follow input order, got %v", order)
	}
	for _, m := range res.Matches {
		if !m.RecommendedAt.Equal(fixedNow) {
			t.Fatalf("every match must share the pass timestamp")
		}
	}
}

func TestRankFallsBackOnInvalidReplies(t *testing.T) {
	in := candidates(3)
	stuck := ai.CompleterFunc(func(ctx context.Context, _ string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})

	tests := []struct {
		name      string
		completer ai.Completer
		status    ai.CallStatus
	}{
		{"service error", replying("", ai.ErrServiceError), ai.CallError},
		{"timeout", stuck, ai.CallTimeout},
		{"not json", replying("Advocate 1 is best", nil), ai.CallMalformed},
		{"object not array", replying(`{"advocateId":"x"}`, nil), ai.CallMalformed},
		{"missing id", replying(reply(t, entry(in[0].ID, 90), entry(in[1].ID, 80)), nil), ai.CallMalformed},
		{"duplicate id", replying(reply(t, entry(in[0].ID, 90), entry(in[1].ID, 80), entry(in[1].ID, 70)), nil), ai.CallMalformed},
		{"unknown id", replying(reply(t, entry(in[0].ID, 90), entry(in[1].ID, 80), entry(uuid.New(), 70)), nil), ai.CallMalformed},
		{"score too high", replying(reply(t, entry(in[0].ID, 101), entry(in[1].ID, 80), entry(in[2].ID, 70)), nil), ai.CallMalformed},
		{"negative score", replying(reply(t, entry(in[0].ID, -1), entry(in[1].ID, 80), entry(in[2].ID, 70)), nil), ai.CallMalformed},
		{"fractional score", replying(reply(t, entry(in[0].ID, 90.5), entry(in[1].ID, 80), entry(in[2].ID, 70)), nil), ai.CallMalformed},
		{"string score", replying(reply(t, entry(in[0].ID, "90"), entry(in[1].ID, 80), entry(in[2].ID, 70)), nil), ai.CallMalformed},
		{"unconfigured", nil, ai.CallError},
	}

	want := Fallback(in, fixedNow)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := newTestEngine(tt.completer).Rank(context.Background(), testAnalysis(), in)
			if res.Provenance != domain.ProvenanceFallback {
				t.Fatalf("expected fallback provenance")
			}
			if !reflect.DeepEqual(res.Matches, want) {
				t.Fatalf("partial AI output must never be salvaged: %+v", res.Matches)
			}
			if res.Call.Status != tt.status || res.Call.Error == "" {
				t.Fatalf("call status = %s (%q), want %s", res.Call.Status, res.Call.Error, tt.status)
			}
		})
	}
}

func TestFallbackIsDeterministicAndOrderPreserving(t *testing.T) {
	in := candidates(20)
	engine := newTestEngine(nil)

	first := engine.Rank(context.Background(), testAnalysis(), in)
	second := engine.Rank(context.Background(), testAnalysis(), in)
	if !reflect.DeepEqual(first.Matches, second.Matches) {
		t.Fatalf("fallback ranking must be identical across runs")
	}
	assertPermutation(t, first.Matches, in)

	for i, m := range first.Matches {
		if m.AdvocateID != in[i].ID {
			t.Fatalf("fallback must preserve input order at %d", i)
		}
		if want := max(0, 80-5*i); m.MatchScore != want {
			t.Fatalf("score at %d = %d, want %d", i, m.MatchScore, want)
		}
		if m.Reason != "Default matching applied" {
			t.Fatalf("unexpected reason %q", m.Reason)
		}
	}
	if first.Matches[19].MatchScore != 0 {
		t.Fatalf("scores must floor at zero")
	}
}

func TestRankEmptyCandidates(t *testing.T) {
	called := false
	c := ai.CompleterFunc(func(context.Context, string) (string, error) {
		called = true
		return "[]", nil
	})

	res := newTestEngine(c).Rank(context.Background(), testAnalysis(), nil)
	if called {
		t.Fatalf("model must not be called without candidates")
	}
	if res.Matches == nil || len(res.Matches) != 0 {
		t.Fatalf("expected empty non-nil matches, got %#v", res.Matches)
	}
	if res.Call.Status != ai.CallSkipped {
		t.Fatalf("expected skipped call, got %s", res.Call.Status)
	}
}

func TestRankDropsDuplicateCandidates(t *testing.T) {
	in := candidates(2)
	res := newTestEngine(nil).Rank(context.Background(), testAnalysis(), append(in, in[0]))
	assertPermutation(t, res.Matches, in)
}

func TestPromptCarriesReducedProjection(t *testing.T) {
	in := candidates(1)
	in[0].Email = "private@example.com"
	prompt, err := BuildPrompt(testAnalysis(), in)
	if err != nil {
		t.Fatalf("BuildPrompt: %v", err)
	}
	for _, want := range []string{in[0].ID.String(), "Advocate 0", "successRate", "Wage Dispute"} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q", want)
		}
	}
	if strings.Contains(prompt, "private@example.com") {
		t.Fatalf("prompt must not leak contact details")
	}
}

func TestParseErrorsWrapMalformed(t *testing.T) {
	_, err := Parse("nope", candidates(1), fixedNow)
	if !errors.Is(err, ai.ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
}
