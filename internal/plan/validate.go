package plan

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

// ErrStructural marks a malformed plan graph. It is never auto-repaired.
var ErrStructural = errors.New("structural plan error")

// EmptyDeliverableDescription is used for a terminal action that has nothing to assemble.
const EmptyDeliverableDescription = "Final Deliverable: placeholder for the final deliverable of this plan."

// Warning is a non-fatal structural gap that was repaired or tolerated.
type Warning struct {
	Message   string
	ActionIDs []string
}

func (w Warning) String() string {
	return w.Message
}

// Repair makes sure the plan has a terminal final_synthesis action that is last and
// depends on the other actions. Running it on a valid plan changes nothing.
func Repair(p *Plan, writerModel string) []Warning {
	p.init()

	var warnings []Warning
	terminal := p.Terminal()

	if terminal == nil {
		others := p.IDs()
		terminal = &Action{
			ID:     FinalSynthesisID,
			Type:   TypeText,
			Model:  writerModel,
			Status: StatusPending,
		}
		if len(others) == 0 {
			terminal.Dependencies = []string{}
			terminal.Description = EmptyDeliverableDescription
		} else {
			terminal.Dependencies = slices.Clone(others)
			terminal.Description = placeholderTemplate(others)
		}
		p.Actions = append(p.Actions, terminal)
		warnings = append(warnings, Warning{
			Message:   fmt.Sprintf("Plan has no %s action; auto-inserting default final_synthesis over %d action(s)", FinalSynthesisID, len(others)),
			ActionIDs: others,
		})
		return warnings
	}

	if idx := slices.Index(p.Actions, terminal); idx != len(p.Actions)-1 {
		p.Actions = append(slices.Delete(p.Actions, idx, idx+1), terminal)
		warnings = append(warnings, Warning{
			Message:   fmt.Sprintf("Moved %s to the end of the plan", FinalSynthesisID),
			ActionIDs: []string{FinalSynthesisID},
		})
	}

	others := otherIDs(p)
	if len(terminal.Dependencies) == 0 && len(others) > 0 {
		terminal.Dependencies = slices.Clone(others)
		warnings = append(warnings, Warning{
			Message:   fmt.Sprintf("%s had no dependencies; derived them from all %d action(s)", FinalSynthesisID, len(others)),
			ActionIDs: others,
		})
	}

	if orphans := orphanedActions(p); len(orphans) > 0 {
		warnings = append(warnings, Warning{
			Message:   fmt.Sprintf("%s does not reference: %s; their output will not reach the deliverable", FinalSynthesisID, strings.Join(orphans, ", ")),
			ActionIDs: orphans,
		})
	}
	return warnings
}

func placeholderTemplate(ids []string) string {
	lines := make([]string, 0, len(ids))
	for _, id := range ids {
		lines = append(lines, Placeholder(id))
	}
	return strings.Join(lines, "\n")
}

func otherIDs(p *Plan) []string {
	var ids []string
	for _, a := range p.Actions {
		if a.ID != FinalSynthesisID {
			ids = append(ids, a.ID)
		}
	}
	return ids
}

// orphanedActions returns non-terminal actions that nothing depends on and that
// the terminal action does not list.
func orphanedActions(p *Plan) []string {
	referenced := make(map[string]bool)
	for _, a := range p.Actions {
		for _, dep := range a.Dependencies {
			referenced[dep] = true
		}
	}
	var orphans []string
	for _, id := range otherIDs(p) {
		if !referenced[id] {
			orphans = append(orphans, id)
		}
	}
	return orphans
}

// Validate checks the graph invariants a run depends on.
func Validate(p *Plan) error {
	var problems []string

	known := make(map[string]bool, len(p.Actions))
	for _, a := range p.Actions {
		switch {
		case strings.TrimSpace(a.ID) == "":
			problems = append(problems, "action with empty id")
		case known[a.ID]:
			problems = append(problems, fmt.Sprintf("duplicate action id %q", a.ID))
		}
		known[a.ID] = true
	}

	terminals := 0
	for _, a := range p.Actions {
		if a.ID == FinalSynthesisID {
			terminals++
		}
		for _, dep := range a.Dependencies {
			switch {
			case dep == a.ID:
				problems = append(problems, fmt.Sprintf("%s depends on itself", a.ID))
			case dep == FinalSynthesisID:
				problems = append(problems, fmt.Sprintf("%s depends on %s, which must run last", a.ID, FinalSynthesisID))
			case !known[dep]:
				problems = append(problems, fmt.Sprintf("%s depends on unknown action %q", a.ID, dep))
			}
		}
		for _, ref := range Placeholders(a.Description) {
			if !slices.Contains(a.Dependencies, ref) {
				problems = append(problems, fmt.Sprintf("%s references {{%s}} which is not one of its dependencies", a.ID, ref))
			}
		}
	}
	if terminals != 1 {
		problems = append(problems, fmt.Sprintf("expected exactly one %s action, found %d", FinalSynthesisID, terminals))
	}

	if cycle := detectCycle(p); cycle != nil {
		problems = append(problems, "dependency cycle: "+strings.Join(cycle, " -> "))
	}

	if len(problems) > 0 {
		return goerr.Wrap(ErrStructural, strings.Join(problems, "; "),
			goerr.V("plan_id", p.ID),
			goerr.V("problems", len(problems)))
	}
	return nil
}

// detectCycle returns the ids forming a cycle, or nil.
func detectCycle(p *Plan) []string {
	visited := make(map[string]bool)
	onStack := make(map[string]bool)
	var stack []string

	var dfs func(id string) []string
	dfs = func(id string) []string {
		visited[id] = true
		onStack[id] = true
		stack = append(stack, id)

		if a := p.Action(id); a != nil {
			for _, dep := range a.Dependencies {
				if onStack[dep] {
					start := slices.Index(stack, dep)
					return append(slices.Clone(stack[start:]), dep)
				}
				if !visited[dep] {
					if cycle := dfs(dep); cycle != nil {
						return cycle
					}
				}
			}
		}

		stack = stack[:len(stack)-1]
		onStack[id] = false
		return nil
	}

	for _, a := range p.Actions {
		if !visited[a.ID] {
			if cycle := dfs(a.ID); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

// ExecutionOrder sorts actions topologically. Among ready actions plan order wins,
// so a plan that already respects its dependencies runs in plan order.
func ExecutionOrder(p *Plan) ([]*Action, error) {
	inDegree := make(map[string]int, len(p.Actions))
	dependents := make(map[string][]string)
	for _, a := range p.Actions {
		inDegree[a.ID] = len(a.Dependencies)
		for _, dep := range a.Dependencies {
			dependents[dep] = append(dependents[dep], a.ID)
		}
	}

	done := make(map[string]bool, len(p.Actions))
	order := make([]*Action, 0, len(p.Actions))
	for len(order) < len(p.Actions) {
		var next *Action
		for _, a := range p.Actions {
			if !done[a.ID] && inDegree[a.ID] == 0 {
				next = a
				break
			}
		}
		if next == nil {
			return nil, goerr.Wrap(ErrStructural, "dependency cycle prevents ordering",
				goerr.V("plan_id", p.ID),
				goerr.V("scheduled", len(order)),
				goerr.V("total", len(p.Actions)))
		}
		done[next.ID] = true
		order = append(order, next)
		for _, id := range dependents[next.ID] {
			inDegree[id]--
		}
	}
	return order, nil
}
