package cases

import (
	"fmt"

	"lexmatch_backend/platform/ai"
	"lexmatch_backend/platform/ai/llm"
	"lexmatch_backend/platform/ai/moonshot"
	"lexmatch_backend/platform/ai/prompts"
	"lexmatch_backend/platform/config"
)

// Agents are the model-backed completers used by analysis and matching.
// Both are nil when no model is configured, which makes every call fall
// back to the deterministic defaults.
type Agents struct {
	Analyst ai.Completer
	Matcher ai.Completer
}

// NewAgents builds one ADK runner per agent over the Moonshot model.
func NewAgents(cfg config.AIConfig) (Agents, error) {
	if !cfg.IsAIEnabled() {
		return Agents{}, nil
	}

	set, err := prompts.Load()
	if err != nil {
		return Agents{}, err
	}

	// The classification reply is a JSON object; the ranking reply is an
	// array, which the provider's JSON mode does not allow.
	analyst, err := newAgent(cfg, set.Analysis, true)
	if err != nil {
		return Agents{}, err
	}
	matcher, err := newAgent(cfg, set.Matching, false)
	if err != nil {
		return Agents{}, err
	}
	return Agents{Analyst: analyst, Matcher: matcher}, nil
}

func newAgent(cfg config.AIConfig, agent prompts.Agent, jsonMode bool) (ai.Completer, error) {
	kimi := moonshot.NewModel(moonshot.Config{
		APIKey:          cfg.GetMoonshotAPIKey(),
		BaseURL:         cfg.GetAIBaseURL(),
		Model:           cfg.GetAIModel(),
		DisableThinking: true,
		JSONMode:        jsonMode,
	})
	runner, err := llm.New(kimi, llm.Options{
		Name:        agent.Name,
		Description: agent.Description,
		Instruction: agent.Instruction,
	})
	if err != nil {
		return nil, fmt.Errorf("init %s agent: %w", agent.Name, err)
	}
	return runner, nil
}
