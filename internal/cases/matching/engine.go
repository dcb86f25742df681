// Package matching ranks candidate advocates for an analysed case.
package matching

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"lexmatch_backend/internal/cases/domain"
	"lexmatch_backend/platform/ai"

	"github.com/google/uuid"
)

const (
	// Operation is the call-log name of a ranking request.
	Operation = "advocate_matching"

	DefaultTimeout = 30 * time.Second

	fallbackReason = "Default matching applied"
)

// Result is one ranking pass.
type Result struct {
	// Matches covers every candidate exactly once, sorted by score descending.
	Matches    []domain.MatchResult
	Provenance domain.Provenance
	Call       ai.CallRecord
}

// Engine ranks candidates with a language model and falls back to a
// deterministic order-preserving ranking.
type Engine struct {
	completer ai.Completer
	timeout   time.Duration
	now       func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithTimeout bounds each model call. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine creates an Engine. A nil completer always uses the fallback.
func NewEngine(completer ai.Completer, opts ...Option) *Engine {
	e := &Engine{completer: completer, timeout: DefaultTimeout, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Rank scores candidates against analysis. The caller passes candidates in
// its preferred default order, which the fallback preserves. Rank never
// fails; an empty candidate list yields an empty ranking without a model call.
func (e *Engine) Rank(ctx context.Context, analysis domain.AIAnalysis, candidates []domain.AdvocateCandidate) Result {
	started := e.now()
	at := started.UTC()
	candidates = uniqueByID(candidates)

	if len(candidates) == 0 {
		return Result{
			Matches:    []domain.MatchResult{},
			Provenance: domain.ProvenanceFallback,
			Call:       ai.CallRecord{Operation: Operation, StartedAt: started, Status: ai.CallSkipped},
		}
	}

	prompt, err := BuildPrompt(analysis, candidates)
	call := ai.CallRecord{Operation: Operation, Input: prompt, StartedAt: started}
	if err != nil {
		call.Status = ai.CallError
		call.Error = err.Error()
		return Result{Matches: Fallback(candidates, at), Provenance: domain.ProvenanceFallback, Call: call}
	}
	if e.completer == nil {
		call.Status = ai.CallError
		call.Error = "matching model not configured"
		return Result{Matches: Fallback(candidates, at), Provenance: domain.ProvenanceFallback, Call: call}
	}

	reply, err := ai.CompleteWithin(ctx, e.completer, e.timeout, prompt)
	call.Latency = e.now().Sub(started)
	call.Output = reply

	var matches []domain.MatchResult
	if err == nil {
		matches, err = Parse(reply, candidates, at)
	}
	call.Status = ai.StatusFor(err)
	if err != nil {
		call.Error = err.Error()
		return Result{Matches: Fallback(candidates, at), Provenance: domain.ProvenanceFallback, Call: call}
	}
	return Result{Matches: matches, Provenance: domain.ProvenanceAI, Call: call}
}

// Fallback scores candidates by input position: 80, 75, 70, ... floored at 0.
func Fallback(candidates []domain.AdvocateCandidate, at time.Time) []domain.MatchResult {
	out := make([]domain.MatchResult, len(candidates))
	for i, c := range candidates {
		out[i] = domain.MatchResult{
			AdvocateID:    c.ID,
			MatchScore:    max(0, 80-5*i),
			Reason:        fallbackReason,
			RecommendedAt: at,
		}
	}
	return out
}

func uniqueByID(candidates []domain.AdvocateCandidate) []domain.AdvocateCandidate {
	seen := make(map[uuid.UUID]struct{}, len(candidates))
	out := make([]domain.AdvocateCandidate, 0, len(candidates))
	for _, c := range candidates {
		if _, dup := seen[c.ID]; dup {
			continue
		}
		seen[c.ID] = struct{}{}
		out = append(out, c)
	}
	return out
}

type candidateView struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Specialization []string `json:"specialization"`
	Experience     int      `json:"experience"`
	SuccessRate    int      `json:"successRate"`
	Rating         float64  `json:"rating"`
}

type analysisView struct {
	UrgencyLevel           string   `json:"urgencyLevel"`
	RiskScore              int      `json:"riskScore"`
	CaseType               string   `json:"caseType"`
	RequiredSpecialization []string `json:"requiredSpecialization"`
	EstimatedDuration      string   `json:"estimatedDuration"`
	KeyIssues              []string `json:"keyIssues"`
}

// BuildPrompt renders the ranking request with a reduced projection of each
// candidate.
func BuildPrompt(analysis domain.AIAnalysis, candidates []domain.AdvocateCandidate) (string, error) {
	views := make([]candidateView, len(candidates))
	for i, c := range candidates {
		views[i] = candidateView{
			ID:             c.ID.String(),
			Name:           c.Name,
			Specialization: c.Specializations,
			Experience:     c.YearsOfExperience,
			SuccessRate:    c.SuccessRate,
			Rating:         c.Rating,
		}
	}
	caseJSON, err := json.MarshalIndent(analysisView{
		UrgencyLevel:           analysis.UrgencyLevel,
		RiskScore:              analysis.RiskScore,
		CaseType:               analysis.CaseType,
		RequiredSpecialization: analysis.RequiredSpecialization,
		EstimatedDuration:      analysis.EstimatedDuration,
		KeyIssues:              analysis.KeyIssues,
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode analysis: %w", err)
	}
	candidatesJSON, err := json.MarshalIndent(views, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode candidates: %w", err)
	}

	var b strings.Builder
	b.WriteString("Rank these advocates for the case below.\n\nCase analysis:\n")
	b.Write(caseJSON)
	b.WriteString("\n\nCandidates:\n")
	b.Write(candidatesJSON)
	b.WriteString("\n\nRespond with a JSON array containing every candidate exactly once:\n")
	b.WriteString(`[{"advocateId": "candidate id", "matchScore": 0-100, "reason": "string"}]`)
	return b.String(), nil
}

type rankedEntry struct {
	AdvocateID *string  `json:"advocateId"`
	MatchScore *float64 `json:"matchScore"`
	Reason     string   `json:"reason"`
}

// Parse validates a ranking reply against candidates. The reply is accepted
// only if it names every candidate exactly once with an integer score in
// [0,100]; otherwise the whole reply is rejected. Errors wrap
// ai.ErrMalformedResponse.
func Parse(text string, candidates []domain.AdvocateCandidate, at time.Time) ([]domain.MatchResult, error) {
	var entries []rankedEntry
	if err := json.Unmarshal([]byte(ai.StripFences(text)), &entries); err != nil {
		return nil, fmt.Errorf("%w: %v", ai.ErrMalformedResponse, err)
	}
	if len(entries) != len(candidates) {
		return nil, fmt.Errorf("%w: %d entries for %d candidates", ai.ErrMalformedResponse, len(entries), len(candidates))
	}

	position := make(map[uuid.UUID]int, len(candidates))
	for i, c := range candidates {
		position[c.ID] = i
	}

	type scored struct {
		pos   int
		match domain.MatchResult
	}
	seen := make(map[uuid.UUID]bool, len(entries))
	ranked := make([]scored, 0, len(entries))
	for _, entry := range entries {
		if entry.AdvocateID == nil || entry.MatchScore == nil {
			return nil, fmt.Errorf("%w: entry missing advocateId or matchScore", ai.ErrMalformedResponse)
		}
		id, err := uuid.Parse(strings.TrimSpace(*entry.AdvocateID))
		if err != nil {
			return nil, fmt.Errorf("%w: advocateId %q", ai.ErrMalformedResponse, *entry.AdvocateID)
		}
		pos, known := position[id]
		if !known {
			return nil, fmt.Errorf("%w: unknown advocate %s", ai.ErrMalformedResponse, id)
		}
		if seen[id] {
			return nil, fmt.Errorf("%w: duplicate advocate %s", ai.ErrMalformedResponse, id)
		}
		seen[id] = true

		score := *entry.MatchScore
		if score != math.Trunc(score) || score < 0 || score > 100 {
			return nil, fmt.Errorf("%w: matchScore %v for %s", ai.ErrMalformedResponse, score, id)
		}
		ranked = append(ranked, scored{pos: pos, match: domain.MatchResult{
			AdvocateID:    id,
			MatchScore:    int(score),
			Reason:        strings.TrimSpace(entry.Reason),
			RecommendedAt: at,
		}})
	}

	// Ties keep the caller's candidate order, not the model's.
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].match.MatchScore != ranked[j].match.MatchScore {
			return ranked[i].match.MatchScore > ranked[j].match.MatchScore
		}
		return ranked[i].pos < ranked[j].pos
	})

	out := make([]domain.MatchResult, len(ranked))
	for i, r := range ranked {
		out[i] = r.match
	}
	return out, nil
}
