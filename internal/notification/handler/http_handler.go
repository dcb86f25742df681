// Package handler serves a user's in-app notification inbox.
package handler

import (
	"context"
	"net/http"

	"lexmatch_backend/internal/notification/inapp"
	"lexmatch_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	defaultPageSize = 20
	maxPageSize     = 50
)

type inboxQuery struct {
	Page  int `form:"page"`
	Limit int `form:"limit"`
}

func (q inboxQuery) normalized() inboxQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	switch {
	case q.Limit < 1:
		q.Limit = defaultPageSize
	case q.Limit > maxPageSize:
		q.Limit = maxPageSize
	}
	return q
}

type inboxPage struct {
	Items []inapp.Notification `json:"items"`
	Total int                  `json:"total"`
	Page  int                  `json:"page"`
	Limit int                  `json:"limit"`
}

type unreadCount struct {
	Count int `json:"count"`
}

// HTTPHandler exposes the inbox of the authenticated user. Every lookup is
// scoped to that user, so foreign notifications read as not found.
type HTTPHandler struct {
	svc *inapp.Service
}

func NewHTTPHandler(svc *inapp.Service) *HTTPHandler {
	return &HTTPHandler{svc: svc}
}

func (h *HTTPHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.GET("/unread", h.CountUnread)
	rg.PATCH("/read-all", h.MarkAllRead)
	rg.PATCH("/:id/read", h.MarkRead)
	rg.DELETE("/:id", h.Delete)
}

func (h *HTTPHandler) List(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var q inboxQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid paging", nil)
		return
	}
	q = q.normalized()

	items, total, err := h.svc.List(c.Request.Context(), userID, q.Page, q.Limit)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, inboxPage{Items: items, Total: total, Page: q.Page, Limit: q.Limit})
}

func (h *HTTPHandler) CountUnread(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	count, err := h.svc.CountUnread(c.Request.Context(), userID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, unreadCount{Count: count})
}

func (h *HTTPHandler) MarkRead(c *gin.Context) {
	h.withNotification(c, h.svc.MarkRead)
}

func (h *HTTPHandler) Delete(c *gin.Context) {
	h.withNotification(c, h.svc.Delete)
}

func (h *HTTPHandler) MarkAllRead(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	if httpkit.HandleError(c, h.svc.MarkAllRead(c.Request.Context(), userID)) {
		return
	}
	c.Status(http.StatusNoContent)
}

// withNotification runs fn for the notification in the path and answers
// 204 on success.
func (h *HTTPHandler) withNotification(c *gin.Context, fn func(ctx context.Context, userID, id uuid.UUID) error) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid notification id", nil)
		return
	}
	if httpkit.HandleError(c, fn(c.Request.Context(), userID, id)) {
		return
	}
	c.Status(http.StatusNoContent)
}

func currentUser(c *gin.Context) (uuid.UUID, bool) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return uuid.Nil, false
	}
	return identity.UserID(), true
}
