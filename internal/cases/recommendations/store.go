// Package recommendations keeps the latest advocate ranking per case.
// Each matching pass replaces the previous one entirely.
package recommendations

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"lexmatch_backend/internal/cases/domain"

	"github.com/google/uuid"
)

// Store holds the most recent ranking of each case.
type Store interface {
	// Replace discards any stored ranking for caseID and stores results.
	Replace(ctx context.Context, caseID uuid.UUID, results []domain.MatchResult) error
	// Latest returns the stored ranking sorted for display. A case without
	// recommendations yields an empty slice.
	Latest(ctx context.Context, caseID uuid.UUID) ([]domain.MatchResult, error)
}

// SortForDisplay orders results by score descending, then by recency (most
// recent first), then by stored position. It sorts in place.
func SortForDisplay(results []domain.MatchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.MatchScore != b.MatchScore {
			return a.MatchScore > b.MatchScore
		}
		return a.RecommendedAt.After(b.RecommendedAt)
	})
}

// Equal reports whether a and b hold the same pass in the same order.
// Timestamps are compared at the database's microsecond precision.
func Equal(a, b []domain.MatchResult) bool {
	return slices.EqualFunc(a, b, func(x, y domain.MatchResult) bool {
		return x.AdvocateID == y.AdvocateID &&
			x.MatchScore == y.MatchScore &&
			x.Reason == y.Reason &&
			x.RecommendedAt.Truncate(time.Microsecond).Equal(y.RecommendedAt.Truncate(time.Microsecond))
	})
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu     sync.RWMutex
	byCase map[uuid.UUID][]domain.MatchResult
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byCase: make(map[uuid.UUID][]domain.MatchResult)}
}

func (s *MemoryStore) Replace(_ context.Context, caseID uuid.UUID, results []domain.MatchResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byCase[caseID] = slices.Clone(results)
	return nil
}

func (s *MemoryStore) Latest(_ context.Context, caseID uuid.UUID) ([]domain.MatchResult, error) {
	s.mu.RLock()
	out := append([]domain.MatchResult{}, s.byCase[caseID]...)
	s.mu.RUnlock()
	SortForDisplay(out)
	return out, nil
}
