package plan

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestRepair_InsertsFinalSynthesis(t *testing.T) {
	p := New("Goal without final synthesis",
		&Action{ID: "research_topic", Description: "Research the topic"},
		&Action{ID: "write_summary", Description: "Write the summary", Dependencies: []string{"research_topic"}},
	)

	warnings := Repair(p, "writer-model")

	last := p.Actions[len(p.Actions)-1]
	if last.ID != FinalSynthesisID {
		t.Fatalf("Expected last action to be %s, got %s", FinalSynthesisID, last.ID)
	}
	if !reflect.DeepEqual(last.Dependencies, []string{"research_topic", "write_summary"}) {
		t.Errorf("Unexpected dependencies: %v", last.Dependencies)
	}
	for _, id := range []string{"research_topic", "write_summary"} {
		if strings.Count(last.Description, Placeholder(id)) != 1 {
			t.Errorf("Expected one placeholder for %s in %q", id, last.Description)
		}
	}
	if last.Description != "{{research_topic}}\n{{write_summary}}" {
		t.Errorf("Expected one placeholder per line, got %q", last.Description)
	}
	if last.Model != "writer-model" {
		t.Errorf("Expected writer model, got %q", last.Model)
	}

	found := false
	for _, w := range warnings {
		if strings.Contains(strings.ToLower(w.Message), "auto-inserting default final_synthesis") {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected an auto-insert warning, got %v", warnings)
	}
}

func TestRepair_EmptyPlan(t *testing.T) {
	p := New("Goal with empty plan")

	Repair(p, "writer-model")

	if len(p.Actions) != 1 {
		t.Fatalf("Expected one action, got %d", len(p.Actions))
	}
	final := p.Actions[0]
	if final.ID != FinalSynthesisID {
		t.Fatalf("Expected %s, got %s", FinalSynthesisID, final.ID)
	}
	if len(final.Dependencies) != 0 {
		t.Errorf("Expected no dependencies, got %v", final.Dependencies)
	}
	if strings.Contains(final.Description, "{{") {
		t.Errorf("Expected no placeholders, got %q", final.Description)
	}
	if !strings.Contains(final.Description, "Final Deliverable") {
		t.Errorf("Expected deliverable marker, got %q", final.Description)
	}
	if err := Validate(p); err != nil {
		t.Errorf("Repaired empty plan should validate: %v", err)
	}
}

func TestRepair_Idempotent(t *testing.T) {
	p := New("Goal",
		&Action{ID: "a", Description: "First"},
		&Action{ID: "b", Description: "Second uses {{a}}", Dependencies: []string{"a"}},
	)
	Repair(p, "writer")

	before := clonePlan(p)
	warnings := Repair(p, "writer")

	if len(warnings) != 0 {
		t.Errorf("Expected no warnings on second repair, got %v", warnings)
	}
	if !reflect.DeepEqual(before, p) {
		t.Errorf("Second repair changed the plan")
	}
}

func TestRepair_MovesTerminalLastAndDerivesDependencies(t *testing.T) {
	p := New("Goal",
		&Action{ID: FinalSynthesisID, Description: "Wrap up"},
		&Action{ID: "a", Description: "First"},
	)

	warnings := Repair(p, "writer")

	if p.Actions[len(p.Actions)-1].ID != FinalSynthesisID {
		t.Fatalf("Expected terminal action last, got order %v", p.IDs())
	}
	if !reflect.DeepEqual(p.Terminal().Dependencies, []string{"a"}) {
		t.Errorf("Expected derived dependencies [a], got %v", p.Terminal().Dependencies)
	}
	if len(warnings) != 2 {
		t.Errorf("Expected 2 warnings, got %v", warnings)
	}
}

func TestRepair_OrphanWarnsButKeepsPlan(t *testing.T) {
	p := New("Goal",
		&Action{ID: "a", Description: "First"},
		&Action{ID: "b", Description: "Second"},
		&Action{ID: FinalSynthesisID, Description: "{{a}}", Dependencies: []string{"a"}},
	)

	warnings := Repair(p, "writer")

	if len(warnings) != 1 {
		t.Fatalf("Expected 1 warning, got %v", warnings)
	}
	if !reflect.DeepEqual(warnings[0].ActionIDs, []string{"b"}) {
		t.Errorf("Expected orphan b, got %v", warnings[0].ActionIDs)
	}
	if !reflect.DeepEqual(p.Terminal().Dependencies, []string{"a"}) {
		t.Errorf("Orphan repair must not rewrite dependencies, got %v", p.Terminal().Dependencies)
	}
	if err := Validate(p); err != nil {
		t.Errorf("Plan with orphan should still validate: %v", err)
	}
}

func TestValidate_StructuralErrors(t *testing.T) {
	tests := []struct {
		name    string
		actions []*Action
		want    string
	}{
		{
			name: "cycle",
			actions: []*Action{
				{ID: "a", Dependencies: []string{"b"}},
				{ID: "b", Dependencies: []string{"a"}},
				{ID: FinalSynthesisID, Dependencies: []string{"a", "b"}},
			},
			want: "dependency cycle",
		},
		{
			name: "dangling placeholder",
			actions: []*Action{
				{ID: "a", Description: "Use {{b}}"},
				{ID: "b"},
				{ID: FinalSynthesisID, Dependencies: []string{"a", "b"}},
			},
			want: "references {{b}}",
		},
		{
			name: "unknown dependency",
			actions: []*Action{
				{ID: "a", Dependencies: []string{"ghost"}},
				{ID: FinalSynthesisID, Dependencies: []string{"a"}},
			},
			want: "unknown action",
		},
		{
			name: "duplicate id",
			actions: []*Action{
				{ID: "a"},
				{ID: "a"},
				{ID: FinalSynthesisID, Dependencies: []string{"a"}},
			},
			want: "duplicate action id",
		},
		{
			name: "self dependency",
			actions: []*Action{
				{ID: "a", Dependencies: []string{"a"}},
				{ID: FinalSynthesisID, Dependencies: []string{"a"}},
			},
			want: "depends on itself",
		},
		{
			name: "depends on terminal",
			actions: []*Action{
				{ID: "a"},
				{ID: "b", Dependencies: []string{FinalSynthesisID}},
				{ID: FinalSynthesisID, Dependencies: []string{"a"}},
			},
			want: "b depends on final_synthesis",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(New("Goal", tt.actions...))
			if err == nil {
				t.Fatal("Expected a structural error")
			}
			if !errors.Is(err, ErrStructural) {
				t.Errorf("Expected ErrStructural, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected %q in %q", tt.want, err.Error())
			}
		})
	}
}

func TestExecutionOrder(t *testing.T) {
	p := New("Goal",
		&Action{ID: "c", Dependencies: []string{"b"}},
		&Action{ID: "a"},
		&Action{ID: "b", Dependencies: []string{"a"}},
		&Action{ID: FinalSynthesisID, Dependencies: []string{"c", "a", "b"}},
	)

	order, err := ExecutionOrder(p)
	if err != nil {
		t.Fatalf("ExecutionOrder failed: %v", err)
	}
	var ids []string
	for _, a := range order {
		ids = append(ids, a.ID)
	}
	want := []string{"a", "b", "c", FinalSynthesisID}
	if !reflect.DeepEqual(ids, want) {
		t.Errorf("Expected %v, got %v", want, ids)
	}
}

func TestExecutionOrder_PlanOrderWhenAlreadySorted(t *testing.T) {
	p := New("Goal", &Action{ID: "x"}, &Action{ID: "y"}, &Action{ID: "z"})
	Repair(p, "")

	order, err := ExecutionOrder(p)
	if err != nil {
		t.Fatal(err)
	}
	for i, a := range order {
		if a != p.Actions[i] {
			t.Fatalf("Expected plan order, got %s at %d", a.ID, i)
		}
	}
}

func TestExecutionOrder_Cycle(t *testing.T) {
	p := New("Goal",
		&Action{ID: "a", Dependencies: []string{"b"}},
		&Action{ID: "b", Dependencies: []string{"a"}},
	)
	if _, err := ExecutionOrder(p); !errors.Is(err, ErrStructural) {
		t.Errorf("Expected ErrStructural, got %v", err)
	}
}

func TestTransition_Monotonic(t *testing.T) {
	a := &Action{ID: "a"}
	if err := a.Transition(StatusRunning); err != nil {
		t.Fatal(err)
	}
	if err := a.Transition(StatusPending); err == nil {
		t.Error("Expected error moving back to pending")
	}
	if err := a.Transition(StatusCompleted); err != nil {
		t.Fatal(err)
	}
	if err := a.Transition(StatusFailed); err == nil {
		t.Error("Expected error leaving a terminal state")
	}
}

func clonePlan(p *Plan) *Plan {
	c := &Plan{ID: p.ID, Goal: p.Goal, Metadata: p.Metadata}
	for _, a := range p.Actions {
		cp := *a
		cp.Dependencies = append([]string(nil), a.Dependencies...)
		c.Actions = append(c.Actions, &cp)
	}
	return c
}
