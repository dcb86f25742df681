package moonshot

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"lexmatch_backend/platform/ai"

	"google.golang.org/adk/model"
	"google.golang.org/genai"
)

func newRequest(system, user string) *model.LLMRequest {
	return &model.LLMRequest{
		Contents: []*genai.Content{genai.NewContentFromText(user, genai.RoleUser)},
		Config: &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		},
	}
}

func firstResponse(t *testing.T, m *KimiModel, req *model.LLMRequest) (*model.LLMResponse, error) {
	t.Helper()
	for resp, err := range m.GenerateContent(context.Background(), req, false) {
		return resp, err
	}
	t.Fatalf("GenerateContent yielded nothing")
	return nil, nil
}

func TestGenerateContentSendsSystemAndUserMessages(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer key" {
			t.Errorf("missing bearer token")
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"ok\":true}"}}]}`))
	}))
	defer srv.Close()

	m := NewModel(Config{APIKey: "key", BaseURL: srv.URL + "/", JSONMode: true})
	resp, err := firstResponse(t, m, newRequest("be terse", "classify this"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content.Parts[0].Text != `{"ok":true}` {
		t.Fatalf("unexpected content %q", resp.Content.Parts[0].Text)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Content != "classify this" {
		t.Fatalf("unexpected messages: %#v", got.Messages)
	}
	if got.ResponseFormat["type"] != "json_object" {
		t.Fatalf("expected json_object response format")
	}
}

func TestGenerateContentMapsProviderErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	}))
	defer srv.Close()

	m := NewModel(Config{APIKey: "key", BaseURL: srv.URL})
	_, err := firstResponse(t, m, newRequest("s", "u"))
	if !errors.Is(err, ai.ErrServiceError) {
		t.Fatalf("expected ErrServiceError, got %v", err)
	}
}
