// Package llm runs single-turn prompts through an ADK agent so that callers
// only deal with the ai.Completer port.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"lexmatch_backend/platform/ai"

	"github.com/google/uuid"
	"google.golang.org/adk/agent"
	"google.golang.org/adk/agent/llmagent"
	"google.golang.org/adk/model"
	"google.golang.org/adk/runner"
	"google.golang.org/adk/session"
	"google.golang.org/genai"
)

const systemUserID = "lexmatch-system"

// Options configures one agent.
type Options struct {
	Name        string
	Description string
	Instruction string
}

// Runner is an ai.Completer backed by an ADK llmagent. Every Complete call
// runs in a fresh session that is deleted afterwards, so calls never share
// conversation history.
type Runner struct {
	runner         *runner.Runner
	sessionService session.Service
	appName        string
}

var _ ai.Completer = (*Runner)(nil)

// New builds a Runner around llm.
func New(llm model.LLM, opts Options) (*Runner, error) {
	if llm == nil {
		return nil, errors.New("llm: model is required")
	}
	if strings.TrimSpace(opts.Name) == "" {
		return nil, errors.New("llm: agent name is required")
	}

	adkAgent, err := llmagent.New(llmagent.Config{
		Name:        opts.Name,
		Model:       llm,
		Description: opts.Description,
		Instruction: opts.Instruction,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create %s agent: %w", opts.Name, err)
	}

	sessionService := session.InMemoryService()
	r, err := runner.New(runner.Config{
		AppName:        opts.Name,
		Agent:          adkAgent,
		SessionService: sessionService,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create %s runner: %w", opts.Name, err)
	}

	return &Runner{runner: r, sessionService: sessionService, appName: opts.Name}, nil
}

// Complete implements ai.Completer.
func (r *Runner) Complete(ctx context.Context, prompt string) (string, error) {
	sessionID := uuid.NewString()
	if _, err := r.sessionService.Create(ctx, &session.CreateRequest{
		AppName:   r.appName,
		UserID:    systemUserID,
		SessionID: sessionID,
	}); err != nil {
		return "", fmt.Errorf("%w: create session: %v", ai.ErrServiceError, err)
	}
	defer func() {
		_ = r.sessionService.Delete(context.WithoutCancel(ctx), &session.DeleteRequest{
			AppName:   r.appName,
			UserID:    systemUserID,
			SessionID: sessionID,
		})
	}()

	userMessage := &genai.Content{Role: "user", Parts: []*genai.Part{{Text: prompt}}}
	runConfig := agent.RunConfig{StreamingMode: agent.StreamingModeNone}

	var output strings.Builder
	for event, err := range r.runner.Run(ctx, systemUserID, sessionID, userMessage, runConfig) {
		if err != nil {
			if ctx.Err() != nil {
				return "", fmt.Errorf("%w: %v", ai.ErrTimeout, ctx.Err())
			}
			return "", fmt.Errorf("%s run failed: %w", r.appName, err)
		}
		if event == nil || event.Content == nil {
			continue
		}
		for _, part := range event.Content.Parts {
			if part != nil {
				output.WriteString(part.Text)
			}
		}
	}
	if ctx.Err() != nil {
		return "", fmt.Errorf("%w: %v", ai.ErrTimeout, ctx.Err())
	}

	return output.String(), nil
}
