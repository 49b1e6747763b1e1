package agent

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/rahul/karya/internal/observability"
	"github.com/rahul/karya/internal/plan"
)

func newTestExecutor(backend *fakeBackend, decider Decider, settings Settings) *Executor {
	return NewExecutor(
		NewReflector(backend, nil, settings),
		NewSynthesizer(backend, nil, settings),
		decider,
		settings,
	)
}

func TestExecutor_DependencyOrderAndSubstitution(t *testing.T) {
	backend := newFakeBackend().
		on(kindDraft, draftFor()).
		on(kindReflection, sequence(reflectionJSON(true, 0.9, nil, nil)))

	settings := testSettings()
	settings.DesignReview = false

	p := plan.New("Write a migration guide",
		&plan.Action{ID: "expand", Description: "Expand {{outline}} into full prose", Dependencies: []string{"outline"}},
		&plan.Action{ID: "outline", Description: "Outline the guide"},
		&plan.Action{ID: plan.FinalSynthesisID, Description: "{{outline}}\n{{expand}}", Dependencies: []string{"outline", "expand"}},
	)

	if err := newTestExecutor(backend, nil, settings).Execute(context.Background(), p, nil); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	var order []string
	for _, c := range backend.callsOf(kindDraft) {
		order = append(order, c.Opts.ActionID)
	}
	if !slices.Equal(order, []string{"outline", "expand"}) {
		t.Fatalf("expected drafts in dependency order, got %v", order)
	}
	if got := backend.callsOf(kindDraft)[1].user(); !strings.Contains(got, "Expand output of outline into full prose") {
		t.Errorf("expected substituted dependency output in prompt:\n%s", got)
	}

	for _, a := range p.Actions {
		if a.Status != plan.StatusCompleted {
			t.Errorf("action %s: expected completed, got %s", a.ID, a.Status)
		}
		if a.StartTime.IsZero() || a.EndTime.IsZero() {
			t.Errorf("action %s: timestamps not set", a.ID)
		}
	}

	raw := p.Metadata.RawActionOutputs[plan.FinalSynthesisID].PrimaryOutput
	if raw != "output of outline\noutput of expand" {
		t.Errorf("unexpected substituted terminal template: %q", raw)
	}
	if _, ok := p.Metadata.ActionQuality[plan.FinalSynthesisID]; ok {
		t.Error("terminal action must not be quality checked")
	}

	final := p.Terminal().Output
	if final == nil || final.PrimaryOutput != p.Metadata.FinalSynthesis.StepwiseSummary {
		t.Fatalf("expected the stepwise summary as deliverable, got %+v", final)
	}
	if !strings.Contains(final.PrimaryOutput, "output of expand") {
		t.Errorf("deliverable should reproduce step outputs:\n%s", final.PrimaryOutput)
	}
}

func TestExecutor_AbortStopsTheRun(t *testing.T) {
	backend := newFakeBackend().
		on(kindDraft, draftFor()).
		on(kindReflection, sequence(reflectionJSON(false, 0.3, []string{"Wrong topic"}, nil)))

	settings := testSettings()
	settings.MaxRetries = 1

	p := plan.New("goal",
		&plan.Action{ID: "first", Description: "First"},
		&plan.Action{ID: "second", Description: "Second {{first}}", Dependencies: []string{"first"}},
		&plan.Action{ID: plan.FinalSynthesisID, Description: "{{first}}\n{{second}}", Dependencies: []string{"first", "second"}},
	)

	rep := &recordingReporter{}
	err := newTestExecutor(backend, StaticDecider{Decision: DecisionAbort}, settings).Execute(context.Background(), p, rep)
	if !errors.Is(err, ErrAborted) {
		t.Fatalf("expected ErrAborted, got %v", err)
	}

	if got := p.Action("first").Status; got != plan.StatusFailed {
		t.Errorf("expected first to be failed, got %s", got)
	}
	if got := p.Action("second").Status; got != plan.StatusPending {
		t.Errorf("expected second untouched, got %s", got)
	}
	if got := p.Action("first").Attempts; got != 2 {
		t.Errorf("expected 2 attempts, got %d", got)
	}
	for _, c := range backend.callsOf(kindDraft) {
		if c.Opts.ActionID != "first" {
			t.Errorf("no action should run after an abort, got a draft for %s", c.Opts.ActionID)
		}
	}
	if rep.count(observability.LevelError) == 0 {
		t.Error("expected an error status for the abort")
	}
	if _, ok := p.Metadata.RawActionOutputs["first"]; ok {
		t.Error("a rejected output that was not approved must not be recorded")
	}
}

func TestExecutor_ApproveContinuesWithLastOutput(t *testing.T) {
	backend := newFakeBackend().
		on(kindDraft, draftFor()).
		on(kindReflection, sequence(reflectionJSON(false, 0.4, []string{"Shallow"}, nil)))

	settings := testSettings()
	settings.MaxRetries = 0
	settings.DesignReview = false

	p := plan.New("goal",
		&plan.Action{ID: "first", Description: "First"},
		&plan.Action{ID: plan.FinalSynthesisID, Description: "{{first}}", Dependencies: []string{"first"}},
	)

	err := newTestExecutor(backend, StaticDecider{Decision: DecisionApprove}, settings).Execute(context.Background(), p, nil)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	first := p.Action("first")
	if first.Status != plan.StatusCompleted || first.Output == nil || first.Output.PrimaryOutput != "output of first" {
		t.Errorf("expected approved output, got status=%s output=%+v", first.Status, first.Output)
	}
	if !strings.Contains(p.Terminal().Output.PrimaryOutput, "Quality score: 0.40") {
		t.Errorf("summary should carry the low score:\n%s", p.Terminal().Output.PrimaryOutput)
	}
	if got := p.Metadata.RawActionOutputs["first"].PrimaryOutput; got != "output of first" {
		t.Errorf("approved output should be recorded, got %q", got)
	}
}

func TestExecutor_FencedDraftReachesSummary(t *testing.T) {
	fenced := "```sql\nSELECT id, total FROM invoices;\n```"
	backend := newFakeBackend().
		on(kindDraft, sequence(outputJSON(fenced))).
		on(kindReflection, sequence(reflectionJSON(true, 0.9, nil, []string{"Mention the ```sql dialect```"})))

	settings := testSettings()
	settings.DesignReview = false

	p := plan.New("goal",
		&plan.Action{ID: "query", Description: "Write the invoice query"},
		&plan.Action{ID: plan.FinalSynthesisID, Description: "{{query}}", Dependencies: []string{"query"}},
	)

	if err := newTestExecutor(backend, nil, settings).Execute(context.Background(), p, nil); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if got := p.Action("query").Output.PrimaryOutput; got != fenced {
		t.Errorf("expected the fenced draft as primary output, got %q", got)
	}
	if got := p.Metadata.ActionQuality["query"].Suggestions; len(got) != 1 || !strings.Contains(got[0], "```sql") {
		t.Errorf("reflection with a fence should be readable, got %v", got)
	}
	if summary := p.Metadata.FinalSynthesis.StepwiseSummary; !strings.Contains(summary, fenced) {
		t.Errorf("stepwise summary should carry the fence verbatim:\n%s", summary)
	}
}

func TestExecutor_CycleIsStructural(t *testing.T) {
	backend := newFakeBackend()

	p := plan.New("goal",
		&plan.Action{ID: "a", Description: "A", Dependencies: []string{"b"}},
		&plan.Action{ID: "b", Description: "B", Dependencies: []string{"a"}},
		&plan.Action{ID: plan.FinalSynthesisID, Description: "{{a}}\n{{b}}", Dependencies: []string{"a", "b"}},
	)

	err := newTestExecutor(backend, nil, testSettings()).Execute(context.Background(), p, nil)
	if !errors.Is(err, plan.ErrStructural) {
		t.Fatalf("expected ErrStructural, got %v", err)
	}
	if len(backend.calls) != 0 {
		t.Error("nothing should run when the plan has a cycle")
	}
}

func TestExecutor_CancelledContext(t *testing.T) {
	backend := newFakeBackend()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := plan.New("goal",
		&plan.Action{ID: "first", Description: "First"},
		&plan.Action{ID: plan.FinalSynthesisID, Description: "{{first}}", Dependencies: []string{"first"}},
	)
	err := newTestExecutor(backend, nil, testSettings()).Execute(ctx, p, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
