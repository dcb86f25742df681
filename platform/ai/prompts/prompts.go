// Package prompts loads the agent instructions shipped with the binary.
package prompts

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var raw []byte

// Agent is the static configuration of one model-backed agent.
type Agent struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Instruction string `yaml:"instruction"`
}

// Set holds every agent prompt.
type Set struct {
	Analysis Agent `yaml:"analysis"`
	Matching Agent `yaml:"matching"`
}

// Load parses the embedded prompt file.
func Load() (Set, error) {
	return Parse(raw)
}

// Parse decodes a prompt file and checks every agent is complete.
func Parse(data []byte) (Set, error) {
	var set Set
	if err := yaml.Unmarshal(data, &set); err != nil {
		return Set{}, fmt.Errorf("parse prompts: %w", err)
	}
	for key, a := range map[string]Agent{"analysis": set.Analysis, "matching": set.Matching} {
		if strings.TrimSpace(a.Name) == "" || strings.TrimSpace(a.Instruction) == "" {
			return Set{}, fmt.Errorf("prompts: %s agent needs a name and instruction", key)
		}
	}
	return set, nil
}
