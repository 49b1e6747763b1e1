package agent

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rahul/karya/internal/plan"
)

func TestParseDecision(t *testing.T) {
	tests := []struct {
		in      string
		want    Decision
		wantErr bool
	}{
		{"abort", DecisionAbort, false},
		{" Approve\n", DecisionApprove, false},
		{"ask", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseDecision(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseDecision(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestTerminalDecider(t *testing.T) {
	action := &plan.Action{ID: "draft"}
	last := &plan.Reflection{QualityScore: 0.25, Issues: []string{"Off topic"}}

	t.Run("non-interactive uses fallback", func(t *testing.T) {
		d := &TerminalDecider{
			In:          strings.NewReader("approve\n"),
			Out:         &bytes.Buffer{},
			Fallback:    DecisionAbort,
			Interactive: func() bool { return false },
		}
		got, err := d.Decide(context.Background(), action, last)
		if err != nil || got != DecisionAbort {
			t.Errorf("expected fallback abort, got %q, %v", got, err)
		}
	})

	t.Run("asks until a valid answer", func(t *testing.T) {
		out := &bytes.Buffer{}
		d := &TerminalDecider{
			In:          strings.NewReader("maybe\napprove\n"),
			Out:         out,
			Fallback:    DecisionAbort,
			Interactive: func() bool { return true },
		}
		got, err := d.Decide(context.Background(), action, last)
		if err != nil || got != DecisionApprove {
			t.Fatalf("expected approve, got %q, %v", got, err)
		}
		if !strings.Contains(out.String(), "Quality score: 0.25") || !strings.Contains(out.String(), "Off topic") {
			t.Errorf("prompt should show the last evaluation:\n%s", out.String())
		}
	})

	t.Run("closed input uses fallback", func(t *testing.T) {
		d := &TerminalDecider{
			In:          strings.NewReader(""),
			Out:         &bytes.Buffer{},
			Fallback:    DecisionApprove,
			Interactive: func() bool { return true },
		}
		got, err := d.Decide(context.Background(), action, last)
		if err != nil || got != DecisionApprove {
			t.Errorf("expected fallback approve, got %q, %v", got, err)
		}
	})
}
