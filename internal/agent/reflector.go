package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/rahul/karya/internal/llm"
	"github.com/rahul/karya/internal/observability"
	"github.com/rahul/karya/internal/plan"
	"github.com/rahul/karya/internal/validator"
)

// Outcome is the result of an action's draft/reflect loop.
type Outcome struct {
	Output     plan.Output
	Reflection plan.Reflection
	Accepted   bool
	Attempts   int
	// ToolCalls are the tools used across all attempts, in order.
	ToolCalls []string
}

// Reflector drafts an action, has the draft evaluated and retries with the
// latest evaluation as feedback. It is the only writer of action quality metadata.
type Reflector struct {
	Backend  llm.Backend
	Prompts  *PromptManager
	Settings Settings
}

func NewReflector(backend llm.Backend, prompts *PromptManager, settings Settings) *Reflector {
	return &Reflector{Backend: backend, Prompts: prompts, Settings: settings}
}

// toolCapable reports whether tool usage is expected and verified for a.
func (r *Reflector) toolCapable(a *plan.Action) bool {
	return r.Settings.ToolsEnabled && (a.Type == plan.TypeTool || len(a.ToolIDs) > 0)
}

// Run executes the loop for one action. task is the description with
// placeholders already substituted. Run never fails: backend errors become
// failed attempts. Only an accepted output is recorded as the raw output.
func (r *Reflector) Run(ctx context.Context, p *plan.Plan, a *plan.Action, task string, rep Reporter) *Outcome {
	rep = reporterOrNop(rep)
	step := p.StepNumber(a.ID)
	maxAttempts := 1 + max(r.Settings.MaxRetries, 0)

	out := &Outcome{}
	var last *plan.Reflection
	var lastCalls []string

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if ctx.Err() != nil {
			break
		}
		out.Attempts = attempt

		draft, calls, err := r.draft(ctx, p, a, task, step, last, lastCalls)
		out.ToolCalls = append(out.ToolCalls, calls...)
		lastCalls = calls

		var reflection plan.Reflection
		if err != nil {
			reflection = plan.Reflection{
				QualityScore: 0,
				Issues:       []string{fmt.Sprintf("Generation failed: %v", err)},
				Suggestions:  []string{},
			}
		} else {
			out.Output = draft
			reflection = r.reflect(ctx, p, a, task, draft, calls)
		}

		p.Metadata.ActionQuality[a.ID] = reflection
		out.Reflection = reflection
		last = &reflection

		if reflection.IsSuccessful {
			out.Accepted = true
			level := observability.LevelSuccess
			if reflection.QualityScore < r.Settings.QualityThreshold {
				level = observability.LevelWarning
			}
			rep.Status(level, fmt.Sprintf("Step %d (%s): accepted with quality %s after %d attempt(s)",
				step, a.ID, plan.FormatScore(reflection.QualityScore), attempt), false)
			break
		}

		if attempt < maxAttempts {
			rep.Status(observability.LevelWarning, fmt.Sprintf("Step %d (%s): quality %s, retrying (%d/%d)",
				step, a.ID, plan.FormatScore(reflection.QualityScore), attempt+1, maxAttempts), false)
		} else {
			rep.Status(observability.LevelError, fmt.Sprintf("Step %d (%s): quality %s, retries exhausted",
				step, a.ID, plan.FormatScore(reflection.QualityScore)), false)
		}
	}

	if out.Accepted {
		p.Metadata.RawActionOutputs[a.ID] = out.Output
	}
	return out
}

func (r *Reflector) draft(ctx context.Context, p *plan.Plan, a *plan.Action, task string, step int, last *plan.Reflection, lastCalls []string) (plan.Output, []string, error) {
	prompt := llm.ChatPrompt(
		r.Prompts.System(DirectiveAction),
		r.actionPrompt(p, a, task, step, last, lastCalls),
	)
	opts := llm.Options{
		Model:    a.Model,
		Schema:   &validator.OutputSchema,
		ActionID: a.ID,
	}
	if r.toolCapable(a) {
		opts.UseTools = true
		opts.ToolIDs = a.ToolIDs
	}

	resp, err := r.Backend.Complete(ctx, prompt, opts)
	if err != nil {
		return plan.Output{}, nil, err
	}
	return parseDraft(resp.Text), resp.ToolCalls, nil
}

// parseDraft reads {primary_output, supporting_details}; anything else is taken
// as the primary output itself.
func parseDraft(text string) plan.Output {
	var out plan.Output
	if err := validator.OutputSchema.Decode(text, &out); err == nil {
		return out
	}
	return plan.Output{PrimaryOutput: strings.TrimSpace(text)}
}

func (r *Reflector) actionPrompt(p *plan.Plan, a *plan.Action, task string, step int, last *plan.Reflection, lastCalls []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "GOAL:\n%s\n\n", p.Goal)
	fmt.Fprintf(&b, "STEP %d OF %d (action %q, type %s)\n\n", step, len(p.Actions), a.ID, a.Type)
	fmt.Fprintf(&b, "TASK:\n%s\n\n", strings.TrimSpace(task))

	b.WriteString("REQUIREMENTS:\n")
	b.WriteString("- LANGUAGE CONSISTENCY: write the whole answer in the same language as the goal.\n")
	b.WriteString("- Format the whole response using Markdown (headings, lists, tables, fenced code where relevant).\n")
	b.WriteString("- Respond with a JSON object: {\"primary_output\": \"<the deliverable>\", \"supporting_details\": \"<sources, assumptions, notes>\"}.\n")
	if r.toolCapable(a) {
		if len(a.ToolIDs) > 0 {
			fmt.Fprintf(&b, "- Use the permitted tools (%s) to ground the answer and cite what they return.\n", strings.Join(a.ToolIDs, ", "))
		} else {
			b.WriteString("- Use the available tools to ground the answer and cite what they return.\n")
		}
	}

	if last != nil {
		b.WriteString("\n")
		b.WriteString(r.feedback(a, last, lastCalls))
	}
	return b.String()
}

// feedback is built from the latest reflection only.
func (r *Reflector) feedback(a *plan.Action, last *plan.Reflection, lastCalls []string) string {
	var b strings.Builder
	b.WriteString("PREVIOUS ATTEMPT FEEDBACK (fix every point below):\n")
	fmt.Fprintf(&b, "Quality score last attempt: %s\n", plan.FormatScore(last.QualityScore))
	if len(last.Issues) > 0 {
		b.WriteString("Issues:\n")
		for _, issue := range last.Issues {
			fmt.Fprintf(&b, "- %s\n", issue)
		}
	}
	if len(last.Suggestions) > 0 {
		b.WriteString("Suggestions:\n")
		for _, s := range last.Suggestions {
			fmt.Fprintf(&b, "- %s\n", s)
		}
	}
	if r.toolCapable(a) {
		if called := distinct(lastCalls); len(called) > 0 {
			fmt.Fprintf(&b, "Tools previously called: %s\n", strings.Join(called, ", "))
		} else {
			b.WriteString("The previous attempt did not use any tools.\n")
		}
	}
	return b.String()
}

func (r *Reflector) reflect(ctx context.Context, p *plan.Plan, a *plan.Action, task string, draft plan.Output, calls []string) plan.Reflection {
	prompt := llm.ChatPrompt(r.Prompts.System(DirectiveReflection), r.reflectionPrompt(p, a, task, draft, calls))
	resp, err := r.Backend.Complete(ctx, prompt, llm.Options{
		Model:    r.Settings.reviewModel(),
		Schema:   &validator.ReflectionSchema,
		ActionID: a.ID,
	})
	if err != nil {
		return plan.Reflection{
			Issues:      []string{fmt.Sprintf("Quality evaluation failed: %v", err)},
			Suggestions: []string{},
		}
	}

	var res plan.Reflection
	if err := validator.ReflectionSchema.Decode(resp.Text, &res); err != nil {
		return plan.Reflection{
			Issues:      []string{fmt.Sprintf("Quality evaluation was unreadable: %v", err)},
			Suggestions: []string{},
		}
	}
	res.QualityScore = min(max(res.QualityScore, 0), 1)
	return res
}

func (r *Reflector) reflectionPrompt(p *plan.Plan, a *plan.Action, task string, draft plan.Output, calls []string) string {
	var b strings.Builder
	b.WriteString("Evaluate the output of one step of a plan against its task and the overall goal.\n\n")
	fmt.Fprintf(&b, "GOAL:\n%s\n\n", p.Goal)
	fmt.Fprintf(&b, "TASK (action %q, type %s):\n%s\n\n", a.ID, a.Type, strings.TrimSpace(task))
	fmt.Fprintf(&b, "OUTPUT:\n%s\n\n", draft.PrimaryOutput)
	if strings.TrimSpace(draft.SupportingDetails) != "" {
		fmt.Fprintf(&b, "SUPPORTING DETAILS:\n%s\n\n", draft.SupportingDetails)
	}

	if r.Settings.ToolsEnabled {
		expected := "none"
		if len(a.ToolIDs) > 0 {
			expected = strings.Join(a.ToolIDs, ", ")
		} else if a.Type == plan.TypeTool {
			expected = "any available tool"
		}
		called := "none"
		if d := distinct(calls); len(d) > 0 {
			called = strings.Join(d, ", ")
		}
		fmt.Fprintf(&b, "Expected Tool(s): %s\n", expected)
		fmt.Fprintf(&b, "Tools actually called: %s\n", called)
		b.WriteString("Tool Usage Verification: check that the output is grounded in the results of the expected tools. If tools were expected and not called, the attempt is not successful.\n\n")
	} else {
		b.WriteString("Tool integration is disabled for this run. Do not penalize the output for missing tool calls; judge the content only.\n\n")
	}

	b.WriteString("Respond with a JSON object:\n")
	b.WriteString(`{"is_successful": true|false, "quality_score": 0.0-1.0, "issues": ["..."], "suggestions": ["..."], "summary": "one sentence on overall quality"}`)
	b.WriteString("\nSet is_successful to true only if the output can be delivered as is.")
	return b.String()
}

func distinct(ids []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
