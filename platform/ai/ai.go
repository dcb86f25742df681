// Package ai holds the provider-neutral pieces shared by every language
// model integration: the completion port, call records for the audit log,
// and helpers for cleaning model output.
package ai

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"lexmatch_backend/platform/logger"

	"github.com/google/uuid"
)

var (
	// ErrMalformedResponse means the model replied but the reply did not
	// satisfy the expected JSON contract.
	ErrMalformedResponse = errors.New("ai: malformed response")
	// ErrTimeout means the model did not answer within the call deadline.
	ErrTimeout = errors.New("ai: request timed out")
	// ErrServiceError covers transport failures and provider-side errors.
	ErrServiceError = errors.New("ai: service error")
)

// Completer sends one prompt to a model and returns its text reply. The
// system instruction is bound when the Completer is constructed.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, prompt string) (string, error)

// Complete calls f.
func (f CompleterFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// CompleteWithin runs one completion bounded by timeout. The deadline holds
// even if the completer ignores its context; a late reply is discarded.
func CompleteWithin(ctx context.Context, c Completer, timeout time.Duration, prompt string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		reply string
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		reply, err := c.Complete(callCtx, prompt)
		done <- outcome{reply: reply, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil && callCtx.Err() != nil && !errors.Is(out.err, ErrTimeout) {
			return out.reply, fmt.Errorf("%w: %v", ErrTimeout, out.err)
		}
		return out.reply, out.err
	case <-callCtx.Done():
		return "", fmt.Errorf("%w: %v", ErrTimeout, callCtx.Err())
	}
}

// CallStatus is the outcome of one model call as recorded in the audit log.
type CallStatus string

const (
	CallSuccess   CallStatus = "success"
	CallError     CallStatus = "error"
	CallTimeout   CallStatus = "timeout"
	CallMalformed CallStatus = "malformed"
	CallSkipped   CallStatus = "skipped"
)

// CallRecord describes a single model call: what was sent, what came back,
// how long it took and how it ended. It is populated for every call,
// including calls that ended in a fallback.
type CallRecord struct {
	Operation string
	Input     string
	Output    string
	StartedAt time.Time
	Latency   time.Duration
	Status    CallStatus
	Error     string
}

// Failed reports whether the call was attempted and did not succeed.
func (r CallRecord) Failed() bool {
	return r.Status != CallSuccess && r.Status != CallSkipped
}

// StatusFor classifies a call error. A nil error is a success.
func StatusFor(err error) CallStatus {
	switch {
	case err == nil:
		return CallSuccess
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return CallTimeout
	case errors.Is(err, ErrMalformedResponse):
		return CallMalformed
	default:
		return CallError
	}
}

// CallLogger records model calls for a case.
type CallLogger interface {
	LogCall(ctx context.Context, caseID uuid.UUID, rec CallRecord) error
}

// LogCallLogger writes call records to the structured log only.
type LogCallLogger struct {
	log *logger.Logger
}

// NewLogCallLogger returns a CallLogger backed by log.
func NewLogCallLogger(log *logger.Logger) *LogCallLogger {
	return &LogCallLogger{log: log}
}

// LogCall implements CallLogger.
func (l *LogCallLogger) LogCall(ctx context.Context, caseID uuid.UUID, rec CallRecord) error {
	var err error
	if rec.Error != "" {
		err = errors.New(rec.Error)
	}
	l.log.WithContext(ctx).WithCaseID(caseID.String()).AICall(rec.Operation, string(rec.Status), rec.Latency, err)
	return nil
}

var fencePattern = regexp.MustCompile("(?s)^```[a-zA-Z0-9_-]*\\s*\\n?(.*?)\\n?\\s*```$")

// StripFences removes a surrounding markdown code fence (```json ... ```)
// from a model reply. Unfenced text is returned trimmed.
func StripFences(text string) string {
	trimmed := strings.TrimSpace(text)
	if m := fencePattern.FindStringSubmatch(trimmed); m != nil {
		return strings.TrimSpace(m[1])
	}
	return trimmed
}
