package handler

import (
	"context"
	"net/http"

	"lexmatch_backend/internal/cases/domain"
	"lexmatch_backend/internal/cases/repository"
	"lexmatch_backend/internal/cases/service"
	"lexmatch_backend/internal/cases/transport"
	"lexmatch_backend/platform/httpkit"
	"lexmatch_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// Handler handles HTTP requests for cases.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new cases handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterRoutes registers case routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.Submit)
	rg.GET("", h.List)
	rg.GET("/:id", h.GetByID)
	rg.GET("/:id/timeline", h.Timeline)
	rg.GET("/:id/recommendations", h.Recommendations)

	rg.POST("/:id/analyze", h.Analyze)
	rg.POST("/:id/match", h.Match)
	rg.POST("/:id/hire", h.Hire)
	rg.POST("/:id/start", h.Start)
	rg.POST("/:id/hold", h.Hold)
	rg.POST("/:id/resume", h.Resume)
	rg.POST("/:id/resolve", h.Resolve)
	rg.POST("/:id/close", h.Close)
	rg.POST("/:id/withdraw", h.Withdraw)
}

func (h *Handler) Submit(c *gin.Context) {
	var req transport.SubmitCaseRequest
	if !h.bindJSON(c, &req) {
		return
	}

	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	rec, err := h.svc.Submit(c.Request.Context(), domain.SubmitInput{
		ClientID:    identity.UserID(),
		ClientEmail: req.ClientEmail,
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Priority:    domain.Priority(req.Priority),
	})
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.Created(c, transport.ToCaseResponse(rec))
}

func (h *Handler) List(c *gin.Context) {
	var req transport.ListCasesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return
	}

	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	clientID := identity.UserID()
	if req.ClientID != "" {
		parsed, err := uuid.Parse(req.ClientID)
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
			return
		}
		clientID = parsed
	}

	items, err := h.svc.List(c.Request.Context(), clientID, repository.ListParams{
		Status: domain.Status(req.Status),
		Limit:  req.Limit,
		Offset: req.Offset,
	})
	if httpkit.HandleError(c, err) {
		return
	}

	resp := transport.CaseListResponse{Items: make([]transport.CaseSummaryResponse, len(items)), Limit: req.Limit, Offset: req.Offset}
	for i, rec := range items {
		resp.Items[i] = transport.ToCaseSummary(rec)
	}
	httpkit.OK(c, resp)
}

func (h *Handler) GetByID(c *gin.Context) {
	id, ok := parseCaseID(c)
	if !ok {
		return
	}

	rec, err := h.svc.Get(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.ToCaseResponse(rec))
}

func (h *Handler) Timeline(c *gin.Context) {
	id, ok := parseCaseID(c)
	if !ok {
		return
	}

	items, err := h.svc.Timeline(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.TimelineResponse{Items: items})
}

func (h *Handler) Recommendations(c *gin.Context) {
	id, ok := parseCaseID(c)
	if !ok {
		return
	}

	items, err := h.svc.Recommendations(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.RecommendationListResponse{Items: transport.ToRecommendations(items)})
}

// Analyze queues analysis and answers 202 with the case as it stands.
func (h *Handler) Analyze(c *gin.Context) {
	h.enqueue(c, h.svc.RequestAnalysis)
}

// Match queues a new matching pass and answers 202 with the case as it stands.
func (h *Handler) Match(c *gin.Context) {
	h.enqueue(c, h.svc.RequestMatch)
}

func (h *Handler) Hire(c *gin.Context) {
	var req transport.HireRequest
	if !h.bindJSON(c, &req) {
		return
	}
	h.transition(c, func(id uuid.UUID, actor *uuid.UUID) (domain.CaseRecord, error) {
		return h.svc.Hire(c.Request.Context(), id, req.AdvocateID, actor)
	})
}

func (h *Handler) Start(c *gin.Context) {
	h.transition(c, func(id uuid.UUID, actor *uuid.UUID) (domain.CaseRecord, error) {
		return h.svc.Start(c.Request.Context(), id, actor)
	})
}

func (h *Handler) Hold(c *gin.Context) {
	var req transport.HoldRequest
	if !h.bindJSON(c, &req) {
		return
	}
	h.transition(c, func(id uuid.UUID, actor *uuid.UUID) (domain.CaseRecord, error) {
		return h.svc.Hold(c.Request.Context(), id, req.Reason, actor)
	})
}

func (h *Handler) Resume(c *gin.Context) {
	h.transition(c, func(id uuid.UUID, actor *uuid.UUID) (domain.CaseRecord, error) {
		return h.svc.Resume(c.Request.Context(), id, actor)
	})
}

func (h *Handler) Resolve(c *gin.Context) {
	var req transport.ResolveRequest
	if !h.bindJSON(c, &req) {
		return
	}
	outcome := domain.Outcome{Result: domain.OutcomeResult(req.Outcome), Summary: req.Summary}
	h.transition(c, func(id uuid.UUID, actor *uuid.UUID) (domain.CaseRecord, error) {
		return h.svc.Resolve(c.Request.Context(), id, outcome, actor)
	})
}

func (h *Handler) Close(c *gin.Context) {
	h.transition(c, func(id uuid.UUID, actor *uuid.UUID) (domain.CaseRecord, error) {
		return h.svc.Close(c.Request.Context(), id, actor)
	})
}

func (h *Handler) Withdraw(c *gin.Context) {
	var req transport.WithdrawRequest
	// The body is optional for withdraw.
	if c.Request.ContentLength > 0 && !h.bindJSON(c, &req) {
		return
	}
	h.transition(c, func(id uuid.UUID, actor *uuid.UUID) (domain.CaseRecord, error) {
		return h.svc.Withdraw(c.Request.Context(), id, req.Reason, actor)
	})
}

// transition runs a lifecycle action for the case in the path, recording the
// caller as the acting user.
func (h *Handler) transition(c *gin.Context, run func(id uuid.UUID, actor *uuid.UUID) (domain.CaseRecord, error)) {
	id, ok := parseCaseID(c)
	if !ok {
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	actor := identity.UserID()

	rec, err := run(id, &actor)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.ToCaseResponse(rec))
}

func (h *Handler) enqueue(c *gin.Context, request func(ctx context.Context, id uuid.UUID) (domain.CaseRecord, error)) {
	id, ok := parseCaseID(c)
	if !ok {
		return
	}
	if httpkit.MustGetIdentity(c) == nil {
		return
	}

	rec, err := request(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.Accepted(c, transport.ToCaseResponse(rec))
}

func (h *Handler) bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return false
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return false
	}
	return true
}

func parseCaseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return uuid.Nil, false
	}
	return id, true
}
