package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/rahul/karya/internal/markdown"
	"github.com/rahul/karya/internal/observability"
	"github.com/rahul/karya/internal/plan"
)

// Executor runs a validated plan in dependency order. It is the only component
// that changes action status.
type Executor struct {
	Reflector   *Reflector
	Synthesizer *Synthesizer
	Decider     Decider
	Settings    Settings
}

func NewExecutor(reflector *Reflector, synthesizer *Synthesizer, decider Decider, settings Settings) *Executor {
	if decider == nil {
		decider = StaticDecider{Decision: DecisionAbort}
	}
	return &Executor{
		Reflector:   reflector,
		Synthesizer: synthesizer,
		Decider:     decider,
		Settings:    settings,
	}
}

// Execute runs every action once. A dependency cycle fails with
// plan.ErrStructural before anything runs; a failing action that is not
// approved stops the run with ErrAborted.
func (e *Executor) Execute(ctx context.Context, p *plan.Plan, rep Reporter) error {
	rep = reporterOrNop(rep)

	order, err := plan.ExecutionOrder(p)
	if err != nil {
		return err
	}

	observability.SetPhase(observability.PhaseExecuting)
	defer observability.SetPhase(observability.PhaseIdle)

	cat := CatalogFor(e.Settings.ReportLanguage, p.Goal)
	rendered := make(map[string]string, len(p.Actions))
	total := len(p.Actions)

	for _, a := range order {
		if err := ctx.Err(); err != nil {
			return goerr.Wrap(err, "plan run cancelled", goerr.V("plan_id", p.ID), goerr.V("action_id", a.ID))
		}

		step := p.StepNumber(a.ID)
		task, err := substitute(p, a, rendered)
		if err != nil {
			return err
		}

		if err := a.Transition(plan.StatusRunning); err != nil {
			return goerr.Wrap(err, "invalid status transition", goerr.V("action_id", a.ID))
		}
		a.StartTime = time.Now()
		rep.Status(observability.LevelInfo, fmt.Sprintf("Step %d/%d: %s", step, total, a.ID), true)

		if a.ID == plan.FinalSynthesisID {
			e.finish(ctx, p, a, task, rep)
		} else if err := e.runAction(ctx, p, a, task, rep); err != nil {
			return err
		}

		if a.Output != nil {
			rendered[a.ID] = markdown.Render(*a.Output, cat.DetailsLabel)
		}
	}
	return nil
}

func (e *Executor) runAction(ctx context.Context, p *plan.Plan, a *plan.Action, task string, rep Reporter) error {
	outcome := e.Reflector.Run(ctx, p, a, task, rep)
	a.Attempts = outcome.Attempts
	a.RecordToolCalls(outcome.ToolCalls)

	if !outcome.Accepted {
		if err := ctx.Err(); err != nil {
			e.fail(a)
			return goerr.Wrap(err, "plan run cancelled", goerr.V("plan_id", p.ID), goerr.V("action_id", a.ID))
		}

		last := outcome.Reflection
		decision, err := e.Decider.Decide(ctx, a, &last)
		if err != nil {
			rep.Status(observability.LevelError, fmt.Sprintf("Failure decision for %s failed: %v", a.ID, err), false)
			decision = DecisionAbort
		}
		if decision != DecisionApprove {
			e.fail(a)
			rep.Status(observability.LevelError, fmt.Sprintf("Run aborted at %s", a.ID), true)
			return goerr.Wrap(ErrAborted, "action failed quality checks and was not approved",
				goerr.V("plan_id", p.ID),
				goerr.V("action_id", a.ID),
				goerr.V("quality_score", plan.FormatScore(last.QualityScore)),
				goerr.V("attempts", outcome.Attempts))
		}
		rep.Status(observability.LevelWarning, fmt.Sprintf("Step %s approved despite quality %s", a.ID, plan.FormatScore(last.QualityScore)), false)
		p.Metadata.RawActionOutputs[a.ID] = outcome.Output
	}

	out := outcome.Output
	a.Output = &out
	e.complete(a)
	return nil
}

// finish assembles the terminal action. The substituted template is kept as
// its raw output; the deliverable is the synthesized report.
func (e *Executor) finish(ctx context.Context, p *plan.Plan, a *plan.Action, task string, rep Reporter) {
	p.Metadata.RawActionOutputs[a.ID] = plan.Output{PrimaryOutput: task}

	var out plan.Output
	if e.Synthesizer != nil {
		out = e.Synthesizer.Synthesize(ctx, p, rep)
	} else {
		out = plan.Output{PrimaryOutput: task}
	}
	a.Output = &out
	a.Attempts = 1
	e.complete(a)
	rep.Status(observability.LevelSuccess, "Final deliverable assembled", true)
}

func (e *Executor) complete(a *plan.Action) {
	_ = a.Transition(plan.StatusCompleted)
	a.EndTime = time.Now()
}

func (e *Executor) fail(a *plan.Action) {
	_ = a.Transition(plan.StatusFailed)
	a.EndTime = time.Now()
}

// substitute fills the action's placeholders with rendered dependency outputs.
func substitute(p *plan.Plan, a *plan.Action, rendered map[string]string) (string, error) {
	for _, dep := range a.Dependencies {
		d := p.Action(dep)
		if d == nil || d.Status != plan.StatusCompleted {
			return "", goerr.Wrap(plan.ErrStructural, "dependency not completed before its dependent",
				goerr.V("action_id", a.ID),
				goerr.V("dependency", dep))
		}
	}
	return plan.Substitute(a.Description, rendered), nil
}
