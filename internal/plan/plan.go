package plan

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// FinalSynthesisID is the id of the terminal action that assembles the deliverable.
const FinalSynthesisID = "final_synthesis"

// ActionType controls prompt shape and whether tool usage is expected.
type ActionType string

const (
	TypeText     ActionType = "text"
	TypeTool     ActionType = "tool"
	TypeTemplate ActionType = "template"
)

// ParseActionType maps loosely-typed input onto a known type. Unknown values become text.
func ParseActionType(s string) ActionType {
	switch ActionType(s) {
	case TypeTool:
		return TypeTool
	case TypeTemplate:
		return TypeTemplate
	default:
		return TypeText
	}
}

// ActionStatus tracks an action through a single run.
type ActionStatus string

const (
	StatusPending   ActionStatus = "pending"
	StatusRunning   ActionStatus = "running"
	StatusCompleted ActionStatus = "completed"
	StatusFailed    ActionStatus = "failed"
)

// Terminal reports whether no further transitions are allowed.
func (s ActionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Output is what a completed action produced.
type Output struct {
	PrimaryOutput     string `json:"primary_output" yaml:"primary_output"`
	SupportingDetails string `json:"supporting_details" yaml:"supporting_details"`
}

// Action is a single unit of work in a plan.
type Action struct {
	ID           string       `json:"id" yaml:"id"`
	Type         ActionType   `json:"type" yaml:"type"`
	Description  string       `json:"description" yaml:"description"`
	Dependencies []string     `json:"dependencies" yaml:"dependencies"`
	ToolIDs      []string     `json:"tool_ids,omitempty" yaml:"tool_ids,omitempty"`
	Model        string       `json:"model,omitempty" yaml:"model,omitempty"`
	Status       ActionStatus `json:"status" yaml:"-"`
	Output       *Output      `json:"output,omitempty" yaml:"-"`
	ToolCalls    []string     `json:"tool_calls,omitempty" yaml:"-"`
	Attempts     int          `json:"attempts,omitempty" yaml:"-"`
	StartTime    time.Time    `json:"start_time,omitzero" yaml:"-"`
	EndTime      time.Time    `json:"end_time,omitzero" yaml:"-"`
}

// Transition moves the action to next. Status is monotonic: nothing goes back to
// pending and terminal states are final.
func (a *Action) Transition(next ActionStatus) error {
	if a.Status == "" {
		a.Status = StatusPending
	}
	switch {
	case a.Status == next:
		return nil
	case next == StatusPending:
		return fmt.Errorf("action %s: cannot return to pending from %s", a.ID, a.Status)
	case a.Status.Terminal():
		return fmt.Errorf("action %s: already %s", a.ID, a.Status)
	}
	a.Status = next
	return nil
}

// RecordToolCalls appends the tools used in one attempt to the action's log.
func (a *Action) RecordToolCalls(calls []string) {
	a.ToolCalls = append(a.ToolCalls, calls...)
}

// Reflection is the evaluation of one action attempt.
type Reflection struct {
	IsSuccessful bool     `json:"is_successful"`
	QualityScore float64  `json:"quality_score"`
	Issues       []string `json:"issues"`
	Suggestions  []string `json:"suggestions"`
	Summary      string   `json:"summary,omitempty"`
}

// FormatScore renders a quality score with exactly two decimals.
func FormatScore(score float64) string {
	return fmt.Sprintf("%.2f", score)
}

// StepReview is the reviewer's take on one step.
type StepReview struct {
	ActionID     string   `json:"action_id"`
	StepOverview string   `json:"step_overview"`
	Strengths    []string `json:"strengths"`
	Improvements []string `json:"improvements"`
}

// DesignReview is the structured design review of a finished plan.
type DesignReview struct {
	RequestSummary string       `json:"request_summary"`
	WorkSummary    string       `json:"work_summary"`
	Steps          []StepReview `json:"steps"`
	Priorities     []string     `json:"priorities"`
}

// FinalSynthesisReport holds the artifacts assembled for the terminal action.
type FinalSynthesisReport struct {
	StepwiseSummary string        `json:"stepwise_summary"`
	Review          *DesignReview `json:"review,omitempty"`
	ReviewError     string        `json:"review_error,omitempty"`
	RolledBack      bool          `json:"rolled_back,omitempty"`
}

// Metadata carries run-scoped auxiliary records.
type Metadata struct {
	ActionQuality    map[string]Reflection `json:"action_quality"`
	RawActionOutputs map[string]Output     `json:"raw_action_outputs"`
	FinalSynthesis   FinalSynthesisReport  `json:"final_synthesis"`
}

// Plan is the whole unit of work for one run.
type Plan struct {
	ID       string    `json:"id" yaml:"-"`
	Goal     string    `json:"goal" yaml:"goal"`
	Actions  []*Action `json:"actions" yaml:"actions"`
	Metadata Metadata  `json:"metadata" yaml:"-"`
}

// New builds a plan with initialised metadata and pending actions.
func New(goal string, actions ...*Action) *Plan {
	p := &Plan{Goal: goal, Actions: actions}
	p.init()
	return p
}

func (p *Plan) init() {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.Metadata.ActionQuality == nil {
		p.Metadata.ActionQuality = make(map[string]Reflection)
	}
	if p.Metadata.RawActionOutputs == nil {
		p.Metadata.RawActionOutputs = make(map[string]Output)
	}
	for _, a := range p.Actions {
		if a.Status == "" {
			a.Status = StatusPending
		}
		if a.Type == "" {
			a.Type = TypeText
		}
	}
}

// Action returns the action with the given id, or nil.
func (p *Plan) Action(id string) *Action {
	for _, a := range p.Actions {
		if a.ID == id {
			return a
		}
	}
	return nil
}

// IDs returns the action ids in plan order.
func (p *Plan) IDs() []string {
	ids := make([]string, 0, len(p.Actions))
	for _, a := range p.Actions {
		ids = append(ids, a.ID)
	}
	return ids
}

// StepNumber is the 1-based position of the action in plan order, or 0.
func (p *Plan) StepNumber(id string) int {
	for i, a := range p.Actions {
		if a.ID == id {
			return i + 1
		}
	}
	return 0
}

// Terminal returns the final synthesis action, or nil.
func (p *Plan) Terminal() *Action {
	return p.Action(FinalSynthesisID)
}
