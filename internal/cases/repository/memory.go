package repository

import (
	"context"
	"slices"
	"sync"

	"lexmatch_backend/internal/cases/domain"
	"lexmatch_backend/platform/ai"

	"github.com/google/uuid"
)

// Memory implements CaseRepository, AdvocateReader and CallLogWriter in
// process memory. Records are cloned on the way in and out.
type Memory struct {
	mu        sync.RWMutex
	cases     map[uuid.UUID]domain.CaseRecord
	advocates map[uuid.UUID]domain.AdvocateCandidate
	sequences map[int]int
	calls     []LoggedCall
}

// LoggedCall is a call record kept by the memory backend.
type LoggedCall struct {
	CaseID uuid.UUID
	Record ai.CallRecord
}

var (
	_ CaseRepository = (*Memory)(nil)
	_ AdvocateReader = (*Memory)(nil)
	_ CallLogWriter  = (*Memory)(nil)
)

func NewMemory() *Memory {
	return &Memory{
		cases:     make(map[uuid.UUID]domain.CaseRecord),
		advocates: make(map[uuid.UUID]domain.AdvocateCandidate),
		sequences: make(map[int]int),
	}
}

func (m *Memory) Create(_ context.Context, rec domain.CaseRecord) (domain.CaseRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.cases[rec.ID]; exists {
		return domain.CaseRecord{}, ErrVersionConflict
	}
	rec = rec.Clone()
	rec.Version = 1
	m.cases[rec.ID] = rec
	return rec.Clone(), nil
}

func (m *Memory) Get(_ context.Context, id uuid.UUID) (domain.CaseRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.cases[id]
	if !ok {
		return domain.CaseRecord{}, ErrNotFound
	}
	return rec.Clone(), nil
}

func (m *Memory) Update(_ context.Context, rec domain.CaseRecord, expectedVersion int) (domain.CaseRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.cases[rec.ID]
	if !ok {
		return domain.CaseRecord{}, ErrNotFound
	}
	if current.Version != expectedVersion {
		return domain.CaseRecord{}, ErrVersionConflict
	}
	rec = rec.Clone()
	rec.Version = expectedVersion + 1
	m.cases[rec.ID] = rec
	return rec.Clone(), nil
}

func (m *Memory) ListByClient(_ context.Context, clientID uuid.UUID, params ListParams) ([]domain.CaseRecord, error) {
	params = params.normalized()
	m.mu.RLock()
	matched := make([]domain.CaseRecord, 0)
	for _, rec := range m.cases {
		if rec.ClientID != clientID {
			continue
		}
		if params.Status != "" && rec.Status != params.Status {
			continue
		}
		matched = append(matched, rec.Clone())
	}
	m.mu.RUnlock()

	slices.SortFunc(matched, func(a, b domain.CaseRecord) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return compareUUID(a.ID, b.ID)
	})

	if params.Offset >= len(matched) {
		return []domain.CaseRecord{}, nil
	}
	end := min(params.Offset+params.Limit, len(matched))
	return matched[params.Offset:end], nil
}

func (m *Memory) NextCaseSequence(_ context.Context, year int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sequences[year]++
	return m.sequences[year], nil
}

// PutAdvocate adds or replaces an advocate in the directory.
func (m *Memory) PutAdvocate(a domain.AdvocateCandidate) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a.Specializations = slices.Clone(a.Specializations)
	m.advocates[a.ID] = a
}

func (m *Memory) ListEligible(_ context.Context) ([]domain.AdvocateCandidate, error) {
	m.mu.RLock()
	out := make([]domain.AdvocateCandidate, 0, len(m.advocates))
	for _, a := range m.advocates {
		if a.Eligible() {
			a.Specializations = slices.Clone(a.Specializations)
			out = append(out, a)
		}
	}
	m.mu.RUnlock()
	slices.SortFunc(out, byPreference)
	return out, nil
}

func (m *Memory) GetByID(_ context.Context, id uuid.UUID) (domain.AdvocateCandidate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.advocates[id]
	if !ok {
		return domain.AdvocateCandidate{}, ErrAdvocateNotFound
	}
	a.Specializations = slices.Clone(a.Specializations)
	return a, nil
}

func (m *Memory) InsertAICall(_ context.Context, caseID uuid.UUID, rec ai.CallRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, LoggedCall{CaseID: caseID, Record: rec})
	return nil
}

// Calls returns every recorded model call in insertion order.
func (m *Memory) Calls() []LoggedCall {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.calls)
}
