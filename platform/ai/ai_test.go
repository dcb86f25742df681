package ai

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestStripFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n[1,2]\n```", `[1,2]`},
		{"padded", "  \n```JSON\n {\"a\":1} \n```\n ", `{"a":1}`},
		{"unterminated", "```json\n{\"a\":1}", "```json\n{\"a\":1}"},
		{"prose", "Sure! here you go", "Sure! here you go"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripFences(tt.in); got != tt.want {
				t.Fatalf("StripFences(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want CallStatus
	}{
		{nil, CallSuccess},
		{context.DeadlineExceeded, CallTimeout},
		{fmt.Errorf("wrapped: %w", ErrTimeout), CallTimeout},
		{fmt.Errorf("decode: %w", ErrMalformedResponse), CallMalformed},
		{ErrServiceError, CallError},
		{errors.New("connection refused"), CallError},
	}

	for _, tt := range tests {
		if got := StatusFor(tt.err); got != tt.want {
			t.Errorf("StatusFor(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}

func TestCallRecordFailed(t *testing.T) {
	for status, want := range map[CallStatus]bool{
		CallSuccess:   false,
		CallSkipped:   false,
		CallError:     true,
		CallTimeout:   true,
		CallMalformed: true,
	} {
		if got := (CallRecord{Status: status}).Failed(); got != want {
			t.Errorf("Failed() for %s = %v, want %v", status, got, want)
		}
	}
}

func TestCompleteWithinHonoursDeadline(t *testing.T) {
	stuck := CompleterFunc(func(ctx context.Context, prompt string) (string, error) {
		time.Sleep(time.Second)
		return "late", nil
	})

	start := time.Now()
	reply, err := CompleteWithin(context.Background(), stuck, 20*time.Millisecond, "p")
	if !errors.Is(err, ErrTimeout) || reply != "" {
		t.Fatalf("expected timeout, got %q %v", reply, err)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Fatalf("CompleteWithin waited for a completer that ignores its context")
	}

	echo := CompleterFunc(func(ctx context.Context, prompt string) (string, error) { return prompt, nil })
	if reply, err := CompleteWithin(context.Background(), echo, time.Second, "hi"); err != nil || reply != "hi" {
		t.Fatalf("unexpected result %q %v", reply, err)
	}
}
