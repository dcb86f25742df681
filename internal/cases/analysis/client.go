// Package analysis classifies cases with a language model. Every failure
// is absorbed into a deterministic default assessment.
package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"lexmatch_backend/internal/cases/domain"
	"lexmatch_backend/platform/ai"
)

const (
	// Operation is the call-log name of a classification request.
	Operation = "case_analysis"

	DefaultTimeout = 30 * time.Second

	defaultCaseType  = "General Legal Matter"
	defaultReasoning = "AI analysis unavailable, default assessment provided"
)

// Result pairs the analysis with the record of the model call behind it.
type Result struct {
	Analysis domain.AIAnalysis
	Call     ai.CallRecord
}

// Client talks to the classification model.
type Client struct {
	completer ai.Completer
	timeout   time.Duration
	now       func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout bounds each model call. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// NewClient creates a Client. A nil completer makes every call fall back.
func NewClient(completer ai.Completer, opts ...Option) *Client {
	c := &Client{completer: completer, timeout: DefaultTimeout, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Analyze classifies a case. It never returns an error: on any failure the
// default analysis is returned with ProvenanceFallback and the failure is
// described in Result.Call.
func (c *Client) Analyze(ctx context.Context, title, description, category string) Result {
	prompt := BuildPrompt(title, description, category)
	started := c.now()
	call := ai.CallRecord{Operation: Operation, Input: prompt, StartedAt: started}

	if c.completer == nil {
		call.Status = ai.CallError
		call.Error = "analysis model not configured"
		return Result{Analysis: Default(category, started), Call: call}
	}

	reply, err := ai.CompleteWithin(ctx, c.completer, c.timeout, prompt)
	call.Latency = c.now().Sub(started)
	call.Output = reply

	var parsed domain.AIAnalysis
	if err == nil {
		parsed, err = Parse(reply)
	}
	call.Status = ai.StatusFor(err)
	if err != nil {
		call.Error = err.Error()
		return Result{Analysis: Default(category, started), Call: call}
	}

	parsed.AnalyzedAt = started.UTC()
	parsed.Provenance = domain.ProvenanceAI
	return Result{Analysis: parsed, Call: call}
}

// Default is the deterministic assessment used whenever the model cannot
// provide one.
func Default(category string, at time.Time) domain.AIAnalysis {
	caseType := strings.TrimSpace(category)
	if caseType == "" {
		caseType = defaultCaseType
	}
	return domain.AIAnalysis{
		UrgencyLevel:           domain.UrgencyMedium,
		RiskScore:              50,
		CaseType:               caseType,
		RequiredSpecialization: []string{"General Practice"},
		EstimatedDuration:      "1-3 months",
		KeyIssues:              []string{"Requires manual review"},
		RecommendedActions:     []string{"Consult with a legal professional"},
		Reasoning:              defaultReasoning,
		AnalyzedAt:             at.UTC(),
		Provenance:             domain.ProvenanceFallback,
	}
}

// BuildPrompt renders the classification request.
func BuildPrompt(title, description, category string) string {
	var b strings.Builder
	b.WriteString("Analyze the following legal case.\n\n")
	fmt.Fprintf(&b, "Title: %s\n", strings.TrimSpace(title))
	fmt.Fprintf(&b, "Category: %s\n", strings.TrimSpace(category))
	fmt.Fprintf(&b, "Description:\n%s\n\n", strings.TrimSpace(description))
	b.WriteString(`Respond with a single JSON object with exactly these keys:
{"urgencyLevel": "low|medium|high|critical", "riskScore": 1-100, "caseType": "string", "requiredSpecialization": ["string"], "estimatedDuration": "string", "keyIssues": ["string"], "recommendedActions": ["string"], "reasoning": "string"}`)
	return b.String()
}

// reply mirrors the expected JSON. Pointers distinguish a missing key from a
// zero value.
type reply struct {
	UrgencyLevel           *string   `json:"urgencyLevel"`
	RiskScore              *float64  `json:"riskScore"`
	CaseType               *string   `json:"caseType"`
	RequiredSpecialization *[]string `json:"requiredSpecialization"`
	EstimatedDuration      *string   `json:"estimatedDuration"`
	KeyIssues              *[]string `json:"keyIssues"`
	RecommendedActions     *[]string `json:"recommendedActions"`
	Reasoning              *string   `json:"reasoning"`
}

// Parse decodes and validates a model reply. Errors wrap
// ai.ErrMalformedResponse.
func Parse(text string) (domain.AIAnalysis, error) {
	cleaned := ai.StripFences(text)
	if cleaned == "" {
		return domain.AIAnalysis{}, fmt.Errorf("%w: empty reply", ai.ErrMalformedResponse)
	}

	dec := json.NewDecoder(strings.NewReader(cleaned))
	var r reply
	if err := dec.Decode(&r); err != nil {
		return domain.AIAnalysis{}, fmt.Errorf("%w: %v", ai.ErrMalformedResponse, err)
	}
	if dec.More() {
		return domain.AIAnalysis{}, fmt.Errorf("%w: trailing data after JSON object", ai.ErrMalformedResponse)
	}

	missing := func(key string) (domain.AIAnalysis, error) {
		return domain.AIAnalysis{}, fmt.Errorf("%w: missing %s", ai.ErrMalformedResponse, key)
	}
	switch {
	case r.UrgencyLevel == nil:
		return missing("urgencyLevel")
	case r.RiskScore == nil:
		return missing("riskScore")
	case r.CaseType == nil:
		return missing("caseType")
	case r.RequiredSpecialization == nil:
		return missing("requiredSpecialization")
	case r.EstimatedDuration == nil:
		return missing("estimatedDuration")
	case r.KeyIssues == nil:
		return missing("keyIssues")
	case r.RecommendedActions == nil:
		return missing("recommendedActions")
	case r.Reasoning == nil:
		return missing("reasoning")
	}

	urgency := *r.UrgencyLevel
	if !domain.ValidUrgency(urgency) {
		return domain.AIAnalysis{}, fmt.Errorf("%w: urgencyLevel %q", ai.ErrMalformedResponse, *r.UrgencyLevel)
	}
	score := *r.RiskScore
	if score != float64(int(score)) || score < 1 || score > 100 {
		return domain.AIAnalysis{}, fmt.Errorf("%w: riskScore %v", ai.ErrMalformedResponse, score)
	}
	caseType := strings.TrimSpace(*r.CaseType)
	if caseType == "" {
		return domain.AIAnalysis{}, fmt.Errorf("%w: empty caseType", ai.ErrMalformedResponse)
	}

	return domain.AIAnalysis{
		UrgencyLevel:           urgency,
		RiskScore:              int(score),
		CaseType:               caseType,
		RequiredSpecialization: nonNil(*r.RequiredSpecialization),
		EstimatedDuration:      *r.EstimatedDuration,
		KeyIssues:              nonNil(*r.KeyIssues),
		RecommendedActions:     nonNil(*r.RecommendedActions),
		Reasoning:              *r.Reasoning,
	}, nil
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
