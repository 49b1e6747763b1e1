package agent

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Directive names. A file <name>.md in the prompts directory replaces the built-in text.
const (
	DirectivePlanner    = "planner"
	DirectiveAction     = "action"
	DirectiveReflection = "reflection"
	DirectiveReview     = "review"
	DirectiveTemplate   = "template"
)

var builtinDirectives = map[string]string{
	DirectivePlanner: `You are a planning engine. Break the user's goal into a small set of concrete actions that together produce the requested deliverable.
- Each action has a unique snake_case id, a type (text, tool or template) and a precise description.
- Reference the output of an earlier action with {{action_id}} and list that id in dependencies.
- The last action must have the id final_synthesis and assemble the deliverable from the other actions.
- Keep the plan as short as the goal allows.`,

	DirectiveAction: `You execute one step of a larger plan. Produce the complete deliverable for this step only, building on the outputs of earlier steps that are included in the task.`,

	DirectiveReflection: `You are a strict quality reviewer. Judge whether an output fully satisfies its task and the overall goal. Be specific: every issue must point at something concrete in the output, every suggestion must be actionable.`,

	DirectiveReview: `You are a senior reviewer writing a design review of a finished multi-step deliverable. Summarize the request and the work, then assess each step's strengths and improvement areas, then list prioritized next steps. Never copy code or long excerpts from the deliverable.`,

	DirectiveTemplate: `You improve the instructions of the final assembly step of a plan. Keep every {{placeholder}} exactly as written, keep them all, and add guidance on structure and tone that fits the goal.`,
}

var personaOrder = map[string]int{
	"identity.md":     1,
	"soul.md":         2,
	"capabilities.md": 3,
	"user.md":         4,
}

// PromptManager serves system prompts: persona files plus one directive.
type PromptManager struct {
	Directory string
}

func NewPromptManager(dir string) *PromptManager {
	return &PromptManager{Directory: dir}
}

func isDirectiveFile(name string) bool {
	_, ok := builtinDirectives[strings.TrimSuffix(name, ".md")]
	return ok
}

// Persona joins the persona files in a fixed order, then any others by name.
// A missing directory yields an empty persona.
func (pm *PromptManager) Persona() (string, error) {
	if pm == nil || pm.Directory == "" {
		return "", nil
	}
	files, err := os.ReadDir(pm.Directory)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read prompts directory: %w", err)
	}

	sort.Slice(files, func(i, j int) bool {
		oi, okI := personaOrder[files[i].Name()]
		oj, okJ := personaOrder[files[j].Name()]
		if okI && okJ {
			return oi < oj
		}
		if okI {
			return true
		}
		if okJ {
			return false
		}
		return files[i].Name() < files[j].Name()
	})

	var contents []string
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".md") || isDirectiveFile(f.Name()) {
			continue
		}
		path := filepath.Join(pm.Directory, f.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			log.Printf("Warning: Failed to read prompt file %s: %v", path, err)
			continue
		}
		contents = append(contents, strings.TrimSpace(string(data)))
	}
	return strings.Join(contents, "\n\n---\n\n"), nil
}

// Directive returns the override file for name if present, else the built-in text.
func (pm *PromptManager) Directive(name string) string {
	if pm != nil && pm.Directory != "" {
		data, err := os.ReadFile(filepath.Join(pm.Directory, name+".md"))
		if err == nil && strings.TrimSpace(string(data)) != "" {
			return strings.TrimSpace(string(data))
		}
	}
	return builtinDirectives[name]
}

// System builds the system prompt for a directive, persona first.
func (pm *PromptManager) System(name string) string {
	persona, err := pm.Persona()
	if err != nil {
		log.Printf("Warning: %v", err)
	}
	directive := pm.Directive(name)
	if persona == "" {
		return directive
	}
	return persona + "\n\n---\n\n" + directive
}
