package plan

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"gopkg.in/yaml.v3"
)

// ParseOptions controls how a proposed plan is tightened into the strict model.
type ParseOptions struct {
	// Goal overrides whatever goal the proposal restates.
	Goal string
	// Models maps aliases such as WRITER_MODEL onto concrete model names.
	Models map[string]string
	// ToolsEnabled drops tool ids and tool typing when false.
	ToolsEnabled bool
}

type proposal struct {
	Goal    string           `json:"goal" yaml:"goal"`
	Actions []proposedAction `json:"actions" yaml:"actions"`
}

type proposedAction struct {
	ID           string   `json:"id" yaml:"id"`
	Type         string   `json:"type" yaml:"type"`
	Description  string   `json:"description" yaml:"description"`
	Dependencies []string `json:"dependencies" yaml:"dependencies"`
	ToolIDs      []string `json:"tool_ids" yaml:"tool_ids"`
	Model        string   `json:"model" yaml:"model"`
}

// Parse converts a backend-proposed JSON plan into a Plan. Nothing loosely typed
// survives past this point.
func Parse(data []byte, opts ParseOptions) (*Plan, error) {
	var prop proposal
	if err := json.Unmarshal(data, &prop); err != nil {
		return nil, goerr.Wrap(err, "failed to decode proposed plan")
	}
	return prop.build(opts), nil
}

// LoadFile reads a plan from a YAML or JSON file.
func LoadFile(path string, opts ParseOptions) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read plan file", goerr.V("path", path))
	}
	var prop proposal
	if err := yaml.Unmarshal(data, &prop); err != nil {
		return nil, goerr.Wrap(err, "failed to decode plan file", goerr.V("path", path))
	}
	return prop.build(opts), nil
}

func (prop proposal) build(opts ParseOptions) *Plan {
	goal := strings.TrimSpace(opts.Goal)
	if goal == "" {
		goal = strings.TrimSpace(prop.Goal)
	}

	actions := make([]*Action, 0, len(prop.Actions))
	for _, pa := range prop.Actions {
		a := &Action{
			ID:           strings.TrimSpace(pa.ID),
			Type:         ParseActionType(strings.ToLower(strings.TrimSpace(pa.Type))),
			Description:  pa.Description,
			Dependencies: cleanIDs(pa.Dependencies),
			Model:        resolveModel(pa.Model, opts.Models),
			Status:       StatusPending,
		}
		if opts.ToolsEnabled {
			a.ToolIDs = cleanIDs(pa.ToolIDs)
		} else if a.Type == TypeTool {
			a.Type = TypeText
		}
		actions = append(actions, a)
	}
	return New(goal, actions...)
}

func cleanIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool)
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func resolveModel(model string, aliases map[string]string) string {
	model = strings.TrimSpace(model)
	if resolved, ok := aliases[strings.ToUpper(model)]; ok {
		return resolved
	}
	return model
}
