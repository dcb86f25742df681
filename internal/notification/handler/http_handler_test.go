package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"lexmatch_backend/internal/notification/inapp"
	"lexmatch_backend/platform/apperr"
	"lexmatch_backend/platform/httpkit"
	"lexmatch_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type fakeStore struct {
	items  []inapp.Notification
	limit  int
	offset int
}

func (s *fakeStore) Create(_ context.Context, p inapp.CreateParams) (inapp.Notification, error) {
	n := inapp.Notification{ID: uuid.New(), UserID: p.UserID, Title: p.Title, Content: p.Content, Category: p.Category}
	s.items = append(s.items, n)
	return n, nil
}

func (s *fakeStore) List(_ context.Context, userID uuid.UUID, limit, offset int) ([]inapp.Notification, int, error) {
	s.limit, s.offset = limit, offset
	out := make([]inapp.Notification, 0)
	for _, n := range s.items {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out, len(out), nil
}

func (s *fakeStore) CountUnread(_ context.Context, userID uuid.UUID) (int, error) {
	count := 0
	for _, n := range s.items {
		if n.UserID == userID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (s *fakeStore) MarkRead(_ context.Context, userID, id uuid.UUID) error {
	for i := range s.items {
		if s.items[i].ID == id && s.items[i].UserID == userID {
			s.items[i].IsRead = true
			return nil
		}
	}
	return apperr.NotFound("notification not found")
}

func (s *fakeStore) MarkAllRead(_ context.Context, userID uuid.UUID) error {
	for i := range s.items {
		if s.items[i].UserID == userID {
			s.items[i].IsRead = true
		}
	}
	return nil
}

func (s *fakeStore) Delete(_ context.Context, userID, id uuid.UUID) error {
	for i := range s.items {
		if s.items[i].ID == id && s.items[i].UserID == userID {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return nil
		}
	}
	return apperr.NotFound("notification not found")
}

func newEngine(store *fakeStore, userID uuid.UUID) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	group := engine.Group("/notifications")
	group.Use(func(c *gin.Context) {
		c.Set(httpkit.ContextUserIDKey, userID)
		c.Next()
	})
	NewHTTPHandler(inapp.NewService(store, logger.Discard())).RegisterRoutes(group)
	return engine
}

func serve(engine *gin.Engine, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestInboxFlow(t *testing.T) {
	userID := uuid.New()
	store := &fakeStore{}
	svc := inapp.NewService(store, logger.Discard())
	first, err := svc.Send(context.Background(), inapp.SendParams{UserID: userID, Title: "Case resolved", Content: "done"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if first.Category != "info" {
		t.Fatalf("expected default category, got %q", first.Category)
	}
	_, _ = svc.Send(context.Background(), inapp.SendParams{UserID: uuid.New(), Title: "other", Content: "other"})

	engine := newEngine(store, userID)

	rec := serve(engine, http.MethodGet, "/notifications?limit=500")
	if rec.Code != http.StatusOK {
		t.Fatalf("list: %d", rec.Code)
	}
	var list struct {
		Items []inapp.Notification `json:"items"`
		Total int                  `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if list.Total != 1 || len(list.Items) != 1 || store.limit != maxPageSize {
		t.Fatalf("unexpected list %+v (limit %d)", list, store.limit)
	}

	rec = serve(engine, http.MethodPatch, "/notifications/"+first.ID.String()+"/read")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("mark read: %d", rec.Code)
	}

	rec = serve(engine, http.MethodGet, "/notifications/unread")
	var unread struct {
		Count int `json:"count"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &unread)
	if unread.Count != 0 {
		t.Fatalf("expected 0 unread, got %d", unread.Count)
	}

	if rec := serve(engine, http.MethodPatch, "/notifications/"+uuid.NewString()+"/read"); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown notification, got %d", rec.Code)
	}
	if rec := serve(engine, http.MethodDelete, "/notifications/not-a-uuid"); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad id, got %d", rec.Code)
	}
	if rec := serve(engine, http.MethodDelete, "/notifications/"+first.ID.String()); rec.Code != http.StatusNoContent {
		t.Fatalf("delete: %d", rec.Code)
	}
	if rec := serve(engine, http.MethodDelete, "/notifications/"+first.ID.String()); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 deleting twice, got %d", rec.Code)
	}
}

func TestInboxPaging(t *testing.T) {
	userID := uuid.New()
	store := &fakeStore{}
	engine := newEngine(store, userID)

	tests := []struct {
		query      string
		wantLimit  int
		wantOffset int
		wantCode   int
	}{
		{"", defaultPageSize, 0, http.StatusOK},
		{"?page=3&limit=10", 10, 20, http.StatusOK},
		{"?page=-1&limit=0", defaultPageSize, 0, http.StatusOK},
		{"?limit=lots", 0, 0, http.StatusBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.query, func(t *testing.T) {
			store.limit, store.offset = 0, 0
			rec := serve(engine, http.MethodGet, "/notifications"+tc.query)
			if rec.Code != tc.wantCode {
				t.Fatalf("expected %d, got %d", tc.wantCode, rec.Code)
			}
			if store.limit != tc.wantLimit || store.offset != tc.wantOffset {
				t.Fatalf("store paged with limit %d offset %d", store.limit, store.offset)
			}
		})
	}
}

func TestMarkAllRead(t *testing.T) {
	userID := uuid.New()
	store := &fakeStore{}
	svc := inapp.NewService(store, logger.Discard())
	for i := 0; i < 2; i++ {
		_, _ = svc.Send(context.Background(), inapp.SendParams{UserID: userID, Title: "Advocates recommended", Content: "x"})
	}
	engine := newEngine(store, userID)

	if rec := serve(engine, http.MethodPatch, "/notifications/read-all"); rec.Code != http.StatusNoContent {
		t.Fatalf("read all: %d", rec.Code)
	}
	if n, _ := store.CountUnread(context.Background(), userID); n != 0 {
		t.Fatalf("expected all read, %d unread", n)
	}
}
