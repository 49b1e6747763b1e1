package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/rahul/karya/internal/llm"
	"github.com/rahul/karya/internal/markdown"
	"github.com/rahul/karya/internal/observability"
	"github.com/rahul/karya/internal/plan"
	"github.com/rahul/karya/internal/validator"
)

// Synthesizer assembles the final_synthesis output: a deterministic stepwise
// summary, optionally followed by a design review.
type Synthesizer struct {
	Backend  llm.Backend
	Prompts  *PromptManager
	Settings Settings
}

func NewSynthesizer(backend llm.Backend, prompts *PromptManager, settings Settings) *Synthesizer {
	return &Synthesizer{Backend: backend, Prompts: prompts, Settings: settings}
}

// Synthesize produces the terminal output and records the report artifacts in
// the plan metadata. It always returns a deliverable.
func (s *Synthesizer) Synthesize(ctx context.Context, p *plan.Plan, rep Reporter) plan.Output {
	rep = reporterOrNop(rep)
	cat := CatalogFor(s.Settings.ReportLanguage, p.Goal)

	summary := StepwiseSummary(p, cat)
	report := &p.Metadata.FinalSynthesis
	report.StepwiseSummary = summary
	report.Review = nil
	report.ReviewError = ""
	report.RolledBack = false

	fallback := plan.Output{PrimaryOutput: summary}
	if !s.Settings.DesignReview || s.Backend == nil {
		return fallback
	}

	observability.SetStatus(observability.PhaseReviewing, "design review")
	review, err := s.requestReview(ctx, p, summary, cat)
	if err != nil {
		report.ReviewError = err.Error()
		report.RolledBack = true
		rep.Status(observability.LevelWarning, fmt.Sprintf("Design review unavailable, rolled back to the stepwise summary: %v", err), false)
		return plan.Output{
			PrimaryOutput:     summary,
			SupportingDetails: cat.Unavailable(reasonOf(err)),
		}
	}

	report.Review = review
	rep.Status(observability.LevelSuccess, "Design review appended to the final deliverable", false)
	return RenderReview(p, summary, review, cat)
}

func reasonOf(err error) string {
	if errors.Is(err, llm.ErrBackend) {
		return "backend error"
	}
	return "malformed response"
}

// StepwiseSummary renders every non-terminal action in plan order. Primary
// outputs are reproduced verbatim.
func StepwiseSummary(p *plan.Plan, cat Catalog) string {
	var blocks []string
	for i, a := range p.Actions {
		if a.ID == plan.FinalSynthesisID {
			continue
		}
		step := i + 1

		var b strings.Builder
		fmt.Fprintf(&b, "### %s %d · %s\n\n", cat.Step, step, stepTitle(a, step, cat))
		if r, ok := p.Metadata.ActionQuality[a.ID]; ok {
			fmt.Fprintf(&b, "%s%s\n", cat.QualityScore, plan.FormatScore(r.QualityScore))
			if strings.TrimSpace(r.Summary) != "" {
				fmt.Fprintf(&b, "%s%s\n", cat.QualityNotes, strings.TrimSpace(r.Summary))
			}
			if len(r.Issues) > 0 {
				b.WriteString(cat.IssuesNoted + "\n")
				for _, issue := range r.Issues {
					fmt.Fprintf(&b, "- %s\n", issue)
				}
			}
			b.WriteString("\n")
		}
		if a.Output != nil && strings.TrimSpace(a.Output.PrimaryOutput) != "" {
			b.WriteString(a.Output.PrimaryOutput)
		} else {
			b.WriteString(cat.NoOutput)
		}
		blocks = append(blocks, strings.TrimRight(b.String(), "\n"))
	}

	if len(blocks) == 0 {
		return cat.StepResults + "\n\n" + cat.NoOutput
	}
	return cat.StepResults + "\n\n" + strings.Join(blocks, "\n\n---\n\n")
}

// stepTitle is the description when it reads as a title, otherwise a short label.
func stepTitle(a *plan.Action, step int, cat Catalog) string {
	desc := strings.TrimSpace(a.Description)
	if desc == "" || strings.Contains(desc, "\n") || len([]rune(desc)) > 120 || len(plan.Placeholders(desc)) > 0 {
		return ShortLabel(desc, step, cat)
	}
	return desc
}

type reviewStepContext struct {
	ActionID       string   `json:"action_id"`
	Description    string   `json:"description"`
	QualityScore   *float64 `json:"quality_score"`
	QualitySummary string   `json:"quality_summary"`
	Issues         []string `json:"issues"`
	Suggestions    []string `json:"suggestions"`
}

type reviewContext struct {
	Goal  string              `json:"goal"`
	Steps []reviewStepContext `json:"steps"`
}

func buildReviewContext(p *plan.Plan) reviewContext {
	ctx := reviewContext{Goal: p.Goal, Steps: []reviewStepContext{}}
	for _, a := range p.Actions {
		if a.ID == plan.FinalSynthesisID {
			continue
		}
		sc := reviewStepContext{
			ActionID:    a.ID,
			Description: a.Description,
			Issues:      []string{},
			Suggestions: []string{},
		}
		if r, ok := p.Metadata.ActionQuality[a.ID]; ok {
			score := r.QualityScore
			sc.QualityScore = &score
			sc.QualitySummary = r.Summary
			sc.Issues = append(sc.Issues, r.Issues...)
			sc.Suggestions = append(sc.Suggestions, r.Suggestions...)
		}
		ctx.Steps = append(ctx.Steps, sc)
	}
	return ctx
}

// requestReview asks the backend for the structured review. Any failure is
// returned to the caller, which keeps the deterministic summary.
func (s *Synthesizer) requestReview(ctx context.Context, p *plan.Plan, summary string, cat Catalog) (*plan.DesignReview, error) {
	payload, err := json.MarshalIndent(buildReviewContext(p), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode review context: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n\n", cat.GoalLabel, p.Goal)
	fmt.Fprintf(&b, "%s\n%s\n\n", cat.SummaryLabel, summary)
	b.WriteString("Write the review in the same language as the goal. Respond only with a JSON object:\n")
	b.WriteString(`{"request_summary": "...", "work_summary": "...", "steps": [{"action_id": "...", "step_overview": "...", "strengths": ["..."], "improvements": ["..."]}], "priorities": ["..."]}`)
	b.WriteString("\nInclude one entry in steps per action_id of the context. Keep each step_overview to a short title of two to six words. Never include code blocks.\n\n")
	fmt.Fprintf(&b, "%s\n%s", cat.ContextLabel, payload)

	resp, err := s.Backend.Complete(ctx,
		llm.ChatPrompt(s.Prompts.System(DirectiveReview), b.String()),
		llm.Options{
			Model:    s.Settings.reviewModel(),
			Schema:   &validator.ReviewSchema,
			ActionID: plan.FinalSynthesisID,
		})
	if err != nil {
		return nil, err
	}

	var review plan.DesignReview
	if err := validator.ReviewSchema.Decode(resp.Text, &review); err != nil {
		return nil, err
	}
	return &review, nil
}

type reviewRow struct {
	step         int
	action       *plan.Action
	label        string
	score        string
	value        float64
	scored       bool
	strengths    []string
	improvements []string
	suggestions  []string
}

func (r reviewRow) ref(cat Catalog) string {
	prefix := fmt.Sprintf("%s %d", cat.Step, r.step)
	if r.label == prefix {
		return prefix
	}
	return prefix + " – " + r.label
}

func reviewRows(p *plan.Plan, review *plan.DesignReview, cat Catalog) []reviewRow {
	byID := make(map[string]plan.StepReview)
	for _, sr := range review.Steps {
		byID[sr.ActionID] = sr
	}

	var rows []reviewRow
	for i, a := range p.Actions {
		if a.ID == plan.FinalSynthesisID {
			continue
		}
		row := reviewRow{
			step:   i + 1,
			action: a,
			label:  ShortLabel(a.Description, i+1, cat),
			score:  cat.NotAvailable,
		}
		if r, ok := p.Metadata.ActionQuality[a.ID]; ok {
			row.score = plan.FormatScore(r.QualityScore)
			row.value, row.scored = r.QualityScore, true
			row.suggestions = r.Suggestions
			row.improvements = r.Issues
		}
		if sr, ok := byID[a.ID]; ok {
			row.strengths = sr.Strengths
			if label, ok := OverviewLabel(sr.StepOverview); ok {
				row.label = label
			} else if strings.TrimSpace(sr.StepOverview) != "" {
				row.strengths = append([]string{sr.StepOverview}, sr.Strengths...)
			}
			if len(sr.Improvements) > 0 {
				row.improvements = sr.Improvements
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// RenderReview appends the three-section review to the stepwise summary. The
// summary stays the exact prefix of the primary output.
func RenderReview(p *plan.Plan, summary string, review *plan.DesignReview, cat Catalog) plan.Output {
	rows := reviewRows(p, review, cat)
	priorities := prioritize(review.Priorities, rows, cat)

	var b strings.Builder
	b.WriteString(summary)
	b.WriteString("\n\n---\n\n")
	b.WriteString(cat.ReviewHeading + "\n\n")

	b.WriteString(cat.Section1 + "\n\n")
	for _, line := range sectionOne(review, rows, cat) {
		fmt.Fprintf(&b, "- %s\n", line)
	}

	b.WriteString("\n" + cat.Section2 + "\n\n")
	b.WriteString(cat.TableHeader + "\n")
	b.WriteString("|---|---|---|---|\n")
	for _, row := range rows {
		fmt.Fprintf(&b, "| %s | %s | %s | %s |\n",
			cell(row.ref(cat)), row.score, cell(joinOrDash(row.strengths)), cell(joinOrDash(row.improvements)))
	}

	b.WriteString("\n" + cat.Section3 + "\n\n")
	b.WriteString(cat.Analysis(goalSubject(p.Goal), len(priorities)) + "\n\n")
	for _, pr := range priorities {
		fmt.Fprintf(&b, "- %s\n", pr)
	}

	return plan.Output{
		PrimaryOutput:     strings.TrimRight(b.String(), "\n"),
		SupportingDetails: supportingDetails(rows, priorities, cat),
	}
}

func sectionOne(review *plan.DesignReview, rows []reviewRow, cat Catalog) []string {
	var lines []string
	if s := clean(review.RequestSummary); s != "" {
		lines = append(lines, cat.RequestSummary+s)
	}
	if s := clean(review.WorkSummary); s != "" {
		lines = append(lines, cat.WorkSummary+s)
	}

	var highlights, concerns []string
	for _, row := range rows {
		if len(row.strengths) > 0 && len(highlights) < 2 {
			highlights = append(highlights, clean(row.strengths[0]))
		}
		if len(row.improvements) > 0 && len(concerns) < 2 {
			concerns = append(concerns, clean(row.improvements[0]))
		}
	}
	if len(highlights) > 0 {
		lines = append(lines, cat.Highlights+strings.Join(highlights, "; "))
	}
	if len(concerns) > 0 {
		lines = append(lines, cat.Concerns+strings.Join(concerns, "; "))
	}
	if len(lines) == 0 {
		lines = append(lines, cat.RequestSummary+cat.NotAvailable)
	}
	if len(lines) > 6 {
		lines = lines[:6]
	}
	return lines
}

var stepRefRe = regexp.MustCompile(`(?i)(?:^|[^\p{L}])(?:step|étape)\s+(\d+)`)

// prioritize returns the priority bullets, each referencing the step it stems
// from: the review's priorities first, then the first suggestion of every step
// not already covered.
func prioritize(priorities []string, rows []reviewRow, cat Catalog) []string {
	var out, seen []string
	for _, pr := range priorities {
		pr = clean(pr)
		if pr == "" {
			continue
		}
		seen = append(seen, strings.ToLower(pr))
		if row, ok := rowFor(pr, rows); ok {
			pr = fmt.Sprintf("%s (%s)", pr, row.ref(cat))
		}
		out = append(out, pr)
	}
	for _, row := range rows {
		if len(row.suggestions) == 0 {
			continue
		}
		s := clean(row.suggestions[0])
		if s == "" || covered(s, seen) {
			continue
		}
		out = append(out, fmt.Sprintf("%s (%s)", s, row.ref(cat)))
	}
	return out
}

func covered(s string, seen []string) bool {
	s = strings.ToLower(s)
	for _, prev := range seen {
		if strings.Contains(prev, s) || strings.Contains(s, prev) {
			return true
		}
	}
	return false
}

// rowFor finds the step a priority is about: an explicit step number, an
// action id, else the lowest scored step.
func rowFor(text string, rows []reviewRow) (reviewRow, bool) {
	if len(rows) == 0 {
		return reviewRow{}, false
	}
	if m := stepRefRe.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			for _, row := range rows {
				if row.step == n {
					return row, true
				}
			}
		}
	}
	lower := strings.ToLower(text)
	for _, row := range rows {
		if strings.Contains(lower, strings.ToLower(row.action.ID)) {
			return row, true
		}
	}
	lowest := rows[0]
	for _, row := range rows[1:] {
		if row.scored && (!lowest.scored || row.value < lowest.value) {
			lowest = row
		}
	}
	return lowest, true
}

func supportingDetails(rows []reviewRow, priorities []string, cat Catalog) string {
	var b strings.Builder
	b.WriteString(cat.Strengths + "\n")
	for _, row := range rows {
		fmt.Fprintf(&b, "- **%s** : %s\n", row.ref(cat), joinOrDash(row.strengths))
	}
	b.WriteString("\n" + cat.Improvements + "\n")
	for _, row := range rows {
		fmt.Fprintf(&b, "- **%s** : %s\n", row.ref(cat), joinOrDash(row.improvements))
	}
	b.WriteString("\n" + cat.Priorities + "\n")
	for _, pr := range priorities {
		fmt.Fprintf(&b, "- %s\n", pr)
	}
	return markdown.StripFences(b.String())
}

// goalSubject shortens the goal for the analysis line.
func goalSubject(goal string) string {
	g := clean(goal)
	g = strings.TrimRight(g, ".!?")
	if r := []rune(g); len(r) > 80 {
		return strings.TrimSpace(string(r[:77])) + "..."
	}
	return g
}

// clean flattens text to one fence-free line.
func clean(s string) string {
	s = markdown.StripFences(s)
	return strings.Join(strings.Fields(s), " ")
}

func joinOrDash(items []string) string {
	var parts []string
	for _, it := range items {
		if c := clean(it); c != "" {
			parts = append(parts, c)
		}
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, "; ")
}

// cell makes text safe for a markdown table cell.
func cell(s string) string {
	s = strings.ReplaceAll(s, "`", "")
	return strings.ReplaceAll(s, "|", "\\|")
}
