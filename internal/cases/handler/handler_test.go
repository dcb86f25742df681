package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync"
	"testing"
	"time"

	"lexmatch_backend/internal/cases/analysis"
	"lexmatch_backend/internal/cases/domain"
	"lexmatch_backend/internal/cases/matching"
	"lexmatch_backend/internal/cases/recommendations"
	"lexmatch_backend/internal/cases/repository"
	"lexmatch_backend/internal/cases/service"
	"lexmatch_backend/internal/cases/transport"
	"lexmatch_backend/platform/apperr"
	"lexmatch_backend/platform/httpkit"
	"lexmatch_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type queuedTask struct {
	match  bool
	caseID uuid.UUID
}

// taskQueue records dispatched passes once per case and pass, like task ids
// on the real queue.
type taskQueue struct {
	mu      sync.Mutex
	pending []queuedTask
}

func (q *taskQueue) add(task queuedTask) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !slices.Contains(q.pending, task) {
		q.pending = append(q.pending, task)
	}
}

func (q *taskQueue) DispatchAnalysis(_ context.Context, caseID uuid.UUID) error {
	q.add(queuedTask{caseID: caseID})
	return nil
}

func (q *taskQueue) DispatchMatch(_ context.Context, caseID uuid.UUID) error {
	q.add(queuedTask{match: true, caseID: caseID})
	return nil
}

type testServer struct {
	engine   *gin.Engine
	svc      *service.Service
	repo     *repository.Memory
	queue    *taskQueue
	clientID uuid.UUID
	advocate domain.AdvocateCandidate
}

func newTestServer(t *testing.T, authenticated bool) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ts := &testServer{repo: repository.NewMemory(), queue: &taskQueue{}, clientID: uuid.New()}
	ts.advocate = domain.AdvocateCandidate{
		ID: uuid.New(), Name: "Ama Owusu", Rating: 4.6, SuccessRate: 81, YearsOfExperience: 9,
		AcceptingNewCases: true, VerificationStatus: domain.VerificationVerified,
	}
	ts.repo.PutAdvocate(ts.advocate)

	clock := func() time.Time { return time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC) }
	ts.svc = service.New(service.Dependencies{
		Cases:           ts.repo,
		Advocates:       ts.repo,
		Recommendations: recommendations.NewMemoryStore(),
		Analyzer:        analysis.NewClient(nil, analysis.WithClock(clock)),
		Ranker:          matching.NewEngine(nil, matching.WithClock(clock)),
		Clock:           clock,
	})
	ts.svc.SetDispatcher(ts.queue)

	ts.engine = gin.New()
	group := ts.engine.Group("/api/v1/cases")
	if authenticated {
		group.Use(func(c *gin.Context) {
			c.Set(httpkit.ContextUserIDKey, ts.clientID)
			c.Next()
		})
	}
	New(ts.svc, validator.New()).RegisterRoutes(group)
	return ts
}

// drain runs every queued pass, ignoring cases that already moved on.
func (ts *testServer) drain(t *testing.T) {
	t.Helper()
	ts.queue.mu.Lock()
	tasks := ts.queue.pending
	ts.queue.pending = nil
	ts.queue.mu.Unlock()

	for _, task := range tasks {
		run := ts.svc.Analyze
		if task.match {
			run = ts.svc.Match
		}
		if _, err := run(context.Background(), task.caseID, nil); err != nil && apperr.GetKind(err) != apperr.KindConflict {
			t.Fatalf("queued pass for %s: %v", task.caseID, err)
		}
	}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %s: %v", rec.Body.String(), err)
	}
	return out
}

func (ts *testServer) submit(t *testing.T) transport.CaseResponse {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/api/v1/cases", map[string]string{
		"title":       "Unpaid overtime",
		"description": "Employer refuses to pay overtime for six months.",
		"category":    "Employment",
		"priority":    "High",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("submit: %d %s", rec.Code, rec.Body.String())
	}
	return decode[transport.CaseResponse](t, rec)
}

func TestSubmitCase(t *testing.T) {
	ts := newTestServer(t, true)
	resp := ts.submit(t)

	if resp.CaseNumber != "LSP-2024-000001" || resp.Status != "submitted" || resp.Priority != "high" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if resp.ClientID != ts.clientID {
		t.Fatalf("client id must come from the token")
	}
	if len(resp.Timeline) != 1 || resp.Timeline[0].Kind != domain.EventCaseSubmitted {
		t.Fatalf("unexpected timeline %+v", resp.Timeline)
	}
	if len(resp.AllowedActions) == 0 {
		t.Fatalf("allowed actions missing")
	}
}

func TestSubmitValidation(t *testing.T) {
	ts := newTestServer(t, true)
	rec := ts.do(t, http.MethodPost, "/api/v1/cases", map[string]string{
		"title":       "   ",
		"description": "x",
		"category":    "Employment",
		"priority":    "someday",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	body := decode[struct {
		Details map[string]string `json:"details"`
	}](t, rec)
	if body.Details["title"] != "notblank" || body.Details["priority"] != "priority" {
		t.Fatalf("unexpected details %+v", body.Details)
	}
}

func TestRequiresAuthentication(t *testing.T) {
	ts := newTestServer(t, false)
	rec := ts.do(t, http.MethodPost, "/api/v1/cases", map[string]string{
		"title": "t", "description": "d", "category": "c",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestLifecycleOverHTTP(t *testing.T) {
	ts := newTestServer(t, true)
	created := ts.submit(t)
	base := "/api/v1/cases/" + created.ID.String()

	rec := ts.do(t, http.MethodPost, base+"/resolve", map[string]string{"outcome": "success"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("resolve from submitted: expected 409, got %d", rec.Code)
	}

	rec = ts.do(t, http.MethodPost, base+"/match", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("match before analysis: expected 409, got %d", rec.Code)
	}

	rec = ts.do(t, http.MethodPost, base+"/analyze", nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("analyze: %d %s", rec.Code, rec.Body.String())
	}
	if queued := decode[transport.CaseResponse](t, rec); queued.Status != "submitted" {
		t.Fatalf("analysis must not run on the request path, got %s", queued.Status)
	}
	ts.drain(t)

	rec = ts.do(t, http.MethodGet, base, nil)
	analysed := decode[transport.CaseResponse](t, rec)
	if analysed.Status != "pending_advocate" || analysed.AIAnalysis == nil || analysed.AIAnalysis.Provenance != "fallback" {
		t.Fatalf("unexpected analysed case %+v", analysed)
	}
	if len(analysed.RecommendedAdvocates) != 1 || analysed.RecommendedAdvocates[0].MatchScore != 80 {
		t.Fatalf("unexpected recommendations %+v", analysed.RecommendedAdvocates)
	}

	rec = ts.do(t, http.MethodPost, base+"/analyze", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("analyze after matching: expected 409, got %d", rec.Code)
	}

	rec = ts.do(t, http.MethodPost, base+"/match", nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("match: %d %s", rec.Code, rec.Body.String())
	}
	ts.drain(t)

	rec = ts.do(t, http.MethodPost, base+"/hire", map[string]string{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("hire without advocate: expected 400, got %d", rec.Code)
	}

	rec = ts.do(t, http.MethodPost, base+"/hire", map[string]string{"advocateId": ts.advocate.ID.String()})
	if rec.Code != http.StatusOK {
		t.Fatalf("hire: %d %s", rec.Code, rec.Body.String())
	}
	hired := decode[transport.CaseResponse](t, rec)
	if hired.Status != "assigned" || hired.AdvocateID == nil || *hired.AdvocateID != ts.advocate.ID {
		t.Fatalf("unexpected hired case %+v", hired)
	}
	last := hired.Timeline[len(hired.Timeline)-1]
	if last.ActorID == nil || *last.ActorID != ts.clientID {
		t.Fatalf("actor not recorded on timeline")
	}

	rec = ts.do(t, http.MethodPost, base+"/hold", map[string]string{"reason": ""})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("hold without reason: expected 400, got %d", rec.Code)
	}

	rec = ts.do(t, http.MethodGet, base+"/timeline", nil)
	timeline := decode[transport.TimelineResponse](t, rec)
	if len(timeline.Items) != 6 {
		t.Fatalf("expected 6 events, got %d", len(timeline.Items))
	}

	rec = ts.do(t, http.MethodGet, base+"/recommendations", nil)
	recs := decode[transport.RecommendationListResponse](t, rec)
	if len(recs.Items) != 1 || recs.Items[0].AdvocateID != ts.advocate.ID {
		t.Fatalf("unexpected recommendations %+v", recs.Items)
	}
}

func TestWithdrawWithoutBody(t *testing.T) {
	ts := newTestServer(t, true)
	created := ts.submit(t)

	rec := ts.do(t, http.MethodPost, "/api/v1/cases/"+created.ID.String()+"/withdraw", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("withdraw: %d %s", rec.Code, rec.Body.String())
	}
	if got := decode[transport.CaseResponse](t, rec); got.Status != "withdrawn" || len(got.AllowedActions) != 0 {
		t.Fatalf("unexpected withdrawn case %+v", got)
	}
}

func TestGetAndList(t *testing.T) {
	ts := newTestServer(t, true)
	created := ts.submit(t)
	ts.submit(t)

	if rec := ts.do(t, http.MethodGet, "/api/v1/cases/not-a-uuid", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad id, got %d", rec.Code)
	}
	if rec := ts.do(t, http.MethodGet, "/api/v1/cases/"+uuid.NewString(), nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if rec := ts.do(t, http.MethodGet, "/api/v1/cases/"+created.ID.String(), nil); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec := ts.do(t, http.MethodGet, "/api/v1/cases?limit=1", nil)
	list := decode[transport.CaseListResponse](t, rec)
	if rec.Code != http.StatusOK || len(list.Items) != 1 {
		t.Fatalf("unexpected list %d %+v", rec.Code, list)
	}

	rec = ts.do(t, http.MethodGet, "/api/v1/cases?status=archived", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", rec.Code)
	}
}
