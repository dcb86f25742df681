package transport

import "lexmatch_backend/internal/cases/domain"

// ToCaseResponse maps a record to its full API shape.
func ToCaseResponse(rec domain.CaseRecord) CaseResponse {
	actions := domain.AllowedActions(rec.Status)
	allowed := make([]string, len(actions))
	for i, a := range actions {
		allowed[i] = string(a)
	}

	resp := CaseResponse{
		ID:                   rec.ID,
		CaseNumber:           rec.CaseNumber,
		ClientID:             rec.ClientID,
		Title:                rec.Title,
		Description:          rec.Description,
		Category:             rec.Category,
		Status:               string(rec.Status),
		Priority:             string(rec.Priority),
		AllowedActions:       allowed,
		RecommendedAdvocates: ToRecommendations(rec.RecommendedAdvocates),
		AdvocateID:           rec.AdvocateID,
		AssignedAt:           rec.AssignedAt,
		ResolvedAt:           rec.ResolvedAt,
		ClosedDate:           rec.ClosedDate,
		Timeline:             rec.Timeline,
		Version:              rec.Version,
		CreatedAt:            rec.CreatedAt,
		UpdatedAt:            rec.UpdatedAt,
	}
	if resp.Timeline == nil {
		resp.Timeline = []domain.TimelineEvent{}
	}
	if a := rec.AIAnalysis; a != nil {
		resp.AIAnalysis = &AnalysisResponse{
			UrgencyLevel:           string(a.UrgencyLevel),
			RiskScore:              a.RiskScore,
			CaseType:               a.CaseType,
			RequiredSpecialization: a.RequiredSpecialization,
			EstimatedDuration:      a.EstimatedDuration,
			KeyIssues:              a.KeyIssues,
			RecommendedActions:     a.RecommendedActions,
			Reasoning:              a.Reasoning,
			AnalyzedAt:             a.AnalyzedAt,
			Provenance:             string(a.Provenance),
		}
	}
	if rec.Outcome != nil {
		resp.Outcome = &OutcomeResponse{Result: string(rec.Outcome.Result), Summary: rec.Outcome.Summary}
	}
	return resp
}

// ToCaseSummary maps a record to its list entry.
func ToCaseSummary(rec domain.CaseRecord) CaseSummaryResponse {
	return CaseSummaryResponse{
		ID:         rec.ID,
		CaseNumber: rec.CaseNumber,
		Title:      rec.Title,
		Category:   rec.Category,
		Status:     string(rec.Status),
		Priority:   string(rec.Priority),
		AdvocateID: rec.AdvocateID,
		CreatedAt:  rec.CreatedAt,
		UpdatedAt:  rec.UpdatedAt,
	}
}

func ToRecommendations(results []domain.MatchResult) []RecommendationResponse {
	out := make([]RecommendationResponse, len(results))
	for i, r := range results {
		out[i] = RecommendationResponse{
			AdvocateID:    r.AdvocateID,
			MatchScore:    r.MatchScore,
			Reason:        r.Reason,
			RecommendedAt: r.RecommendedAt,
		}
	}
	return out
}
