package agent

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rahul/karya/internal/plan"
	"golang.org/x/term"
)

// Decision is the outcome of a failure escalation.
type Decision string

const (
	DecisionAbort   Decision = "abort"
	DecisionApprove Decision = "approve"
)

// ParseDecision accepts abort or approve; anything else is an error.
func ParseDecision(s string) (Decision, error) {
	switch Decision(strings.ToLower(strings.TrimSpace(s))) {
	case DecisionAbort:
		return DecisionAbort, nil
	case DecisionApprove:
		return DecisionApprove, nil
	}
	return "", fmt.Errorf("unknown decision %q", s)
}

// Decider is asked what to do with an action that ran out of retries.
type Decider interface {
	Decide(ctx context.Context, action *plan.Action, last *plan.Reflection) (Decision, error)
}

// StaticDecider always answers the same way.
type StaticDecider struct {
	Decision Decision
}

func (d StaticDecider) Decide(ctx context.Context, action *plan.Action, last *plan.Reflection) (Decision, error) {
	return d.Decision, nil
}

// TerminalDecider asks on the terminal. Without a TTY it answers Fallback.
type TerminalDecider struct {
	In       io.Reader
	Out      io.Writer
	Fallback Decision
	// Interactive reports whether In is a terminal.
	Interactive func() bool
}

func NewTerminalDecider(fallback Decision) *TerminalDecider {
	return &TerminalDecider{
		In:       os.Stdin,
		Out:      os.Stdout,
		Fallback: fallback,
		Interactive: func() bool {
			return term.IsTerminal(int(os.Stdin.Fd()))
		},
	}
}

func (d *TerminalDecider) Decide(ctx context.Context, action *plan.Action, last *plan.Reflection) (Decision, error) {
	if d.Interactive == nil || !d.Interactive() {
		return d.Fallback, nil
	}

	fmt.Fprintf(d.Out, "\nAction %q did not pass the quality check.\n", action.ID)
	if last != nil {
		fmt.Fprintf(d.Out, "Quality score: %s\n", plan.FormatScore(last.QualityScore))
		for _, issue := range last.Issues {
			fmt.Fprintf(d.Out, "  - %s\n", issue)
		}
	}

	answers := make(chan string, 1)
	go func() {
		reader := bufio.NewReader(d.In)
		for {
			fmt.Fprint(d.Out, "Approve the last attempt anyway or abort the run? [approve/abort]: ")
			line, err := reader.ReadString('\n')
			if _, perr := ParseDecision(line); perr == nil || err != nil {
				answers <- line
				return
			}
		}
	}()

	select {
	case <-ctx.Done():
		return DecisionAbort, ctx.Err()
	case line := <-answers:
		dec, err := ParseDecision(line)
		if err != nil {
			return d.Fallback, nil
		}
		return dec, nil
	}
}
