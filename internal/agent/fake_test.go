package agent

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/rahul/karya/internal/llm"
	"github.com/rahul/karya/internal/observability"
	"github.com/rahul/karya/internal/plan"
	"github.com/tmc/langchaingo/llms"
)

// Call kinds, keyed by the schema a call asks for.
const (
	kindPlan       = "plan"
	kindDraft      = "action_output"
	kindReflection = "reflection"
	kindReview     = "design_review"
	kindText       = "text"
)

type recordedCall struct {
	Kind   string
	Prompt llm.Prompt
	Opts   llm.Options
}

type reply func(n int, opts llm.Options) (*llm.Completion, error)

// fakeBackend answers by call kind and records every call.
type fakeBackend struct {
	mu      sync.Mutex
	calls   []recordedCall
	replies map[string]reply
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{replies: make(map[string]reply)}
}

func kindOf(opts llm.Options) string {
	if opts.Schema == nil {
		return kindText
	}
	return opts.Schema.Name
}

func (f *fakeBackend) Complete(ctx context.Context, prompt llm.Prompt, opts llm.Options) (*llm.Completion, error) {
	kind := kindOf(opts)

	f.mu.Lock()
	n := 0
	for _, c := range f.calls {
		if c.Kind == kind {
			n++
		}
	}
	f.calls = append(f.calls, recordedCall{Kind: kind, Prompt: prompt, Opts: opts})
	h := f.replies[kind]
	f.mu.Unlock()

	if h == nil {
		return nil, llm.Wrap(errors.New("no reply scripted"), "fake backend")
	}
	return h(n, opts)
}

func (f *fakeBackend) on(kind string, h reply) *fakeBackend {
	f.replies[kind] = h
	return f
}

func (f *fakeBackend) callsOf(kind string) []recordedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []recordedCall
	for _, c := range f.calls {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

func (c recordedCall) user() string {
	return c.Prompt.Text(llms.ChatMessageTypeHuman)
}

// sequence replies with texts in order and repeats the last one.
func sequence(texts ...string) reply {
	return func(n int, _ llm.Options) (*llm.Completion, error) {
		return &llm.Completion{Text: texts[min(n, len(texts)-1)]}, nil
	}
}

func failing(msg string) reply {
	return func(int, llm.Options) (*llm.Completion, error) {
		return nil, llm.Wrap(errors.New(msg), "completion failed")
	}
}

// draftFor answers each draft with a primary output naming the action.
func draftFor() reply {
	return func(_ int, opts llm.Options) (*llm.Completion, error) {
		return &llm.Completion{Text: outputJSON("output of " + opts.ActionID)}, nil
	}
}

func outputJSON(primary string) string {
	data, _ := json.Marshal(plan.Output{PrimaryOutput: primary})
	return string(data)
}

func reflectionJSON(ok bool, score float64, issues, suggestions []string) string {
	if issues == nil {
		issues = []string{}
	}
	if suggestions == nil {
		suggestions = []string{}
	}
	data, _ := json.Marshal(plan.Reflection{
		IsSuccessful: ok,
		QualityScore: score,
		Issues:       issues,
		Suggestions:  suggestions,
		Summary:      "evaluated",
	})
	return string(data)
}

type statusLine struct {
	Level   observability.Level
	Message string
}

type recordingReporter struct {
	mu    sync.Mutex
	lines []statusLine
}

func (r *recordingReporter) Status(level observability.Level, message string, sticky bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, statusLine{Level: level, Message: message})
}

func (r *recordingReporter) count(level observability.Level) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, l := range r.lines {
		if l.Level == level {
			n++
		}
	}
	return n
}

func testSettings() Settings {
	s := DefaultSettings()
	s.WriterModel = "writer"
	s.ActionModel = "action"
	return s
}
