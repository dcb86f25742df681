// Package repository persists cases, reads advocates and records model
// calls. Postgres is the production backend; the memory backend serves
// tests and database-less local runs.
package repository

import (
	"context"
	"errors"

	"lexmatch_backend/internal/cases/domain"
	"lexmatch_backend/platform/ai"

	"github.com/google/uuid"
)

var (
	ErrNotFound         = errors.New("case not found")
	ErrAdvocateNotFound = errors.New("advocate not found")
	// ErrVersionConflict means the case changed since it was read.
	ErrVersionConflict = errors.New("case was modified concurrently")
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// ListParams filters a client's case list.
type ListParams struct {
	Status domain.Status
	Limit  int
	Offset int
}

func (p ListParams) normalized() ListParams {
	if p.Limit <= 0 {
		p.Limit = defaultListLimit
	}
	if p.Limit > maxListLimit {
		p.Limit = maxListLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// CaseRepository stores case records with optimistic versioning.
type CaseRepository interface {
	// Create stores a new record and returns it at version 1.
	Create(ctx context.Context, rec domain.CaseRecord) (domain.CaseRecord, error)
	Get(ctx context.Context, id uuid.UUID) (domain.CaseRecord, error)
	// Update writes rec if the stored version still equals expectedVersion
	// and returns it with the incremented version. Otherwise it fails with
	// ErrVersionConflict and writes nothing.
	Update(ctx context.Context, rec domain.CaseRecord, expectedVersion int) (domain.CaseRecord, error)
	// ListByClient returns the client's cases, newest first.
	ListByClient(ctx context.Context, clientID uuid.UUID, params ListParams) ([]domain.CaseRecord, error)
	// NextCaseSequence hands out the next per-year case number sequence.
	NextCaseSequence(ctx context.Context, year int) (int, error)
}

// AdvocateReader is the read side of the advocate directory.
type AdvocateReader interface {
	// ListEligible returns accepting, verified advocates ordered by rating,
	// success rate and experience, best first.
	ListEligible(ctx context.Context) ([]domain.AdvocateCandidate, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.AdvocateCandidate, error)
}

// CallLogWriter persists model call records.
type CallLogWriter interface {
	InsertAICall(ctx context.Context, caseID uuid.UUID, rec ai.CallRecord) error
}

// CallLogger adapts a CallLogWriter to ai.CallLogger.
func CallLogger(w CallLogWriter) ai.CallLogger {
	return callLogger{w: w}
}

type callLogger struct {
	w CallLogWriter
}

func (c callLogger) LogCall(ctx context.Context, caseID uuid.UUID, rec ai.CallRecord) error {
	return c.w.InsertAICall(ctx, caseID, rec)
}

func provenanceOf(rec ai.CallRecord) string {
	switch rec.Status {
	case ai.CallSuccess:
		return string(domain.ProvenanceAI)
	case ai.CallSkipped:
		return ""
	default:
		return string(domain.ProvenanceFallback)
	}
}

// byPreference orders candidates best first for the fallback ranking.
func byPreference(a, b domain.AdvocateCandidate) int {
	switch {
	case a.Rating != b.Rating:
		if a.Rating > b.Rating {
			return -1
		}
		return 1
	case a.SuccessRate != b.SuccessRate:
		return b.SuccessRate - a.SuccessRate
	case a.YearsOfExperience != b.YearsOfExperience:
		return b.YearsOfExperience - a.YearsOfExperience
	default:
		return compareUUID(a.ID, b.ID)
	}
}

func compareUUID(a, b uuid.UUID) int {
	for i := range a {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}
