package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"slices"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/rahul/karya/internal/llm"
	"github.com/rahul/karya/internal/observability"
	"github.com/rahul/karya/internal/plan"
	"github.com/rahul/karya/internal/tools"
	"github.com/rahul/karya/internal/validator"
	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/tmc/langchaingo/llms"
)

const actionSchemaText = `{"id": "snake_case_id", "type": "text|tool|template", "description": "what to produce; reference earlier outputs with {{other_id}}", "dependencies": ["other_id"], "tool_ids": ["tool"], "model": "ACTION_MODEL|WRITER_MODEL|CODER_MODEL|ANALYSIS_MODEL"}`

// Planner turns a goal into a plan proposed by the backend.
type Planner struct {
	Backend  llm.Backend
	Prompts  *PromptManager
	Registry *tools.Registry
	History  HistoryStore
	Settings Settings
	// Models resolves model aliases in proposed actions.
	Models map[string]string
}

func NewPlanner(backend llm.Backend, prompts *PromptManager, registry *tools.Registry, history HistoryStore, settings Settings, models map[string]string) *Planner {
	return &Planner{
		Backend:  backend,
		Prompts:  prompts,
		Registry: registry,
		History:  history,
		Settings: settings,
		Models:   models,
	}
}

// Plan asks the backend for a plan for goal. The result is strictly typed but
// not yet repaired or validated.
func (pl *Planner) Plan(ctx context.Context, chatID, goal string) (*plan.Plan, error) {
	observability.SetStatus(observability.PhasePlanning, goal)

	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, pl.systemPrompt()),
	}
	if pl.History != nil && chatID != "" {
		history, err := pl.History.GetHistory(chatID, pl.Settings.HistoryLimit)
		if err != nil {
			log.Printf("Warning: failed to load history for %s: %v", chatID, err)
		}
		messages = append(messages, history...)
	}
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, goal))

	resp, err := pl.Backend.Complete(ctx, llm.Prompt{Messages: messages}, llm.Options{
		Model:  pl.Settings.ActionModel,
		Schema: &validator.PlanSchema,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "planning call failed", goerr.V("goal", goal))
	}

	raw, err := validator.ExtractJSON(resp.Text)
	if err != nil {
		return nil, goerr.Wrap(err, "planner returned no plan", goerr.V("goal", goal))
	}
	var doc any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, goerr.Wrap(err, "planner returned invalid JSON", goerr.V("goal", goal))
	}
	if err := validator.PlanSchema.Validate(doc); err != nil {
		return nil, goerr.Wrap(err, "planner response rejected", goerr.V("goal", goal))
	}

	return plan.Parse([]byte(raw), plan.ParseOptions{
		Goal:         goal,
		Models:       pl.Models,
		ToolsEnabled: pl.Settings.ToolsEnabled,
	})
}

func (pl *Planner) systemPrompt() string {
	var b strings.Builder
	b.WriteString(pl.Prompts.System(DirectivePlanner))
	b.WriteString("\n\n## Plan structure")
	if pl.Settings.ToolsEnabled {
		b.WriteString("\n- Your output must be a JSON object with a \"goal\" and a list of \"actions\". Each action must follow this schema:")
		b.WriteString("\n" + actionSchemaText)
		b.WriteString("\n- tool_ids: only ids from the available tools below; use type \"tool\" when the action needs them.")
		if pl.Registry != nil && len(pl.Registry.Tools) > 0 {
			b.WriteString("\n\n## Available Tools:\n")
			b.WriteString(pl.Registry.Catalog())
		}
	} else {
		b.WriteString("\n- Your output must be a JSON object with a \"goal\" and a list of \"actions\" (id, type, description, dependencies, tool_ids, model).")
		b.WriteString("\n- tool_ids: Provide an empty array [] because external tools cannot be used.")
	}
	return b.String()
}

// EnhanceTemplate lets the writer model enrich the final_synthesis
// description. A proposal is kept only if it references exactly the terminal
// action's dependencies. It reports whether the description changed.
func (pl *Planner) EnhanceTemplate(ctx context.Context, p *plan.Plan, rep Reporter) bool {
	rep = reporterOrNop(rep)
	terminal := p.Terminal()
	if terminal == nil || len(terminal.Dependencies) == 0 {
		return false
	}

	var b strings.Builder
	fmt.Fprintf(&b, "GOAL:\n%s\n\n", p.Goal)
	b.WriteString("STEPS:\n")
	for _, a := range p.Actions {
		if a.ID != plan.FinalSynthesisID {
			fmt.Fprintf(&b, "- %s: %s\n", plan.Placeholder(a.ID), a.Description)
		}
	}
	fmt.Fprintf(&b, "\nCURRENT FINAL STEP INSTRUCTIONS:\n%s\n\n", terminal.Description)
	b.WriteString("Rewrite the final step instructions so the assembled deliverable answers the goal well. Keep every placeholder listed above. Reply with the new instructions only.")

	resp, err := pl.Backend.Complete(ctx,
		llm.ChatPrompt(pl.Prompts.System(DirectiveTemplate), b.String()),
		llm.Options{Model: pl.Settings.WriterModel, ActionID: plan.FinalSynthesisID})
	if err != nil {
		rep.Status(observability.LevelWarning, fmt.Sprintf("Template enhancement skipped: %v", err), false)
		return false
	}

	proposed := strings.TrimSpace(resp.Text)
	if proposed == "" || proposed == terminal.Description {
		return false
	}
	refs := plan.Placeholders(proposed)
	for _, dep := range terminal.Dependencies {
		if !slices.Contains(refs, dep) {
			rep.Status(observability.LevelWarning, fmt.Sprintf("Template enhancement rejected: placeholder %s missing", plan.Placeholder(dep)), false)
			return false
		}
	}
	for _, ref := range refs {
		if !slices.Contains(terminal.Dependencies, ref) {
			rep.Status(observability.LevelWarning, fmt.Sprintf("Template enhancement rejected: unknown placeholder %s", plan.Placeholder(ref)), false)
			return false
		}
	}

	rep.Status(observability.LevelInfo, "Final synthesis template enhanced ("+DiffSummary(terminal.Description, proposed)+")", false)
	terminal.Description = proposed
	return true
}

// DiffSummary describes a text change as inserted and deleted character counts.
func DiffSummary(before, after string) string {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffCleanupSemantic(dmp.DiffMain(before, after, false))
	var ins, del int
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			ins += len([]rune(d.Text))
		case diffmatchpatch.DiffDelete:
			del += len([]rune(d.Text))
		}
	}
	return fmt.Sprintf("+%d/-%d chars", ins, del)
}
