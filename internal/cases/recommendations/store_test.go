package recommendations

import (
	"context"
	"testing"
	"time"

	"lexmatch_backend/internal/cases/domain"

	"github.com/google/uuid"
)

func TestReplaceDiscardsPreviousPass(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	caseID := uuid.New()
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	stale := domain.MatchResult{AdvocateID: uuid.New(), MatchScore: 99, RecommendedAt: at}
	_ = store.Replace(ctx, caseID, []domain.MatchResult{stale})

	fresh := []domain.MatchResult{
		{AdvocateID: uuid.New(), MatchScore: 60, RecommendedAt: at.Add(time.Hour)},
		{AdvocateID: uuid.New(), MatchScore: 70, RecommendedAt: at.Add(time.Hour)},
	}
	_ = store.Replace(ctx, caseID, fresh)

	got, err := store.Latest(ctx, caseID)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected only the fresh pass, got %d entries", len(got))
	}
	for _, r := range got {
		if r.AdvocateID == stale.AdvocateID {
			t.Fatalf("stale recommendation survived a replace")
		}
	}
	if got[0].MatchScore != 70 {
		t.Fatalf("expected highest score first, got %d", got[0].MatchScore)
	}
}

func TestLatestOrdering(t *testing.T) {
	older := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(time.Minute)
	a, b, c, d := uuid.New(), uuid.New(), uuid.New(), uuid.New()

	results := []domain.MatchResult{
		{AdvocateID: a, MatchScore: 50, RecommendedAt: older},
		{AdvocateID: b, MatchScore: 80, RecommendedAt: older},
		{AdvocateID: c, MatchScore: 50, RecommendedAt: newer},
		{AdvocateID: d, MatchScore: 50, RecommendedAt: older},
	}
	store := NewMemoryStore()
	_ = store.Replace(context.Background(), uuid.Nil, results)

	got, _ := store.Latest(context.Background(), uuid.Nil)
	want := []uuid.UUID{b, c, a, d}
	for i, id := range want {
		if got[i].AdvocateID != id {
			t.Fatalf("position %d: got %s, want %s", i, got[i].AdvocateID, id)
		}
	}

	results[0].MatchScore = 1
	again, _ := store.Latest(context.Background(), uuid.Nil)
	if again[2].MatchScore != 50 {
		t.Fatalf("store must not alias caller slices")
	}
}

func TestLatestUnknownCase(t *testing.T) {
	got, err := NewMemoryStore().Latest(context.Background(), uuid.New())
	if err != nil || got == nil || len(got) != 0 {
		t.Fatalf("expected empty slice, got %#v %v", got, err)
	}
}

func TestEqual(t *testing.T) {
	at := time.Date(2024, 1, 1, 0, 0, 0, 123456789, time.UTC)
	a := domain.MatchResult{AdvocateID: uuid.New(), MatchScore: 90, Reason: "fit", RecommendedAt: at}
	b := domain.MatchResult{AdvocateID: uuid.New(), MatchScore: 80, Reason: "fit", RecommendedAt: at}

	stored := a
	stored.RecommendedAt = at.Truncate(time.Microsecond)
	rescored := a
	rescored.MatchScore = 75

	tests := []struct {
		name string
		x, y []domain.MatchResult
		want bool
	}{
		{"both empty", []domain.MatchResult{}, nil, true},
		{"same pass", []domain.MatchResult{a, b}, []domain.MatchResult{a, b}, true},
		{"microsecond precision", []domain.MatchResult{a}, []domain.MatchResult{stored}, true},
		{"different order", []domain.MatchResult{a, b}, []domain.MatchResult{b, a}, false},
		{"different score", []domain.MatchResult{a}, []domain.MatchResult{rescored}, false},
		{"different length", []domain.MatchResult{a}, []domain.MatchResult{a, b}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Equal(tt.x, tt.y); got != tt.want {
				t.Fatalf("Equal = %v, want %v", got, tt.want)
			}
		})
	}
}
