// Package llm is the boundary to the text-generation backend.
package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/rahul/karya/internal/validator"
	"github.com/tmc/langchaingo/llms"
)

// ErrBackend marks failures of the generation backend itself.
var ErrBackend = errors.New("generation backend failure")

// Wrap tags err as a backend failure while keeping it in the chain.
func Wrap(err error, msg string, opts ...goerr.Option) error {
	return goerr.Wrap(errors.Join(ErrBackend, err), msg, opts...)
}

// Prompt is either a flat instruction string or role-tagged messages.
type Prompt struct {
	Flat     string
	Messages []llms.MessageContent
}

func TextPrompt(text string) Prompt {
	return Prompt{Flat: text}
}

// ChatPrompt builds a system + user message pair. An empty system part is omitted.
func ChatPrompt(system, user string) Prompt {
	var msgs []llms.MessageContent
	if system != "" {
		msgs = append(msgs, llms.TextParts(llms.ChatMessageTypeSystem, system))
	}
	msgs = append(msgs, llms.TextParts(llms.ChatMessageTypeHuman, user))
	return Prompt{Messages: msgs}
}

// MessageList returns the prompt as messages; a flat prompt becomes one human turn.
func (p Prompt) MessageList() []llms.MessageContent {
	if len(p.Messages) > 0 {
		return p.Messages
	}
	return []llms.MessageContent{llms.TextParts(llms.ChatMessageTypeHuman, p.Flat)}
}

// Text returns all text parts of the given role joined by blank lines.
func (p Prompt) Text(role llms.ChatMessageType) string {
	var parts []string
	for _, m := range p.MessageList() {
		if m.Role != role {
			continue
		}
		for _, part := range m.Parts {
			if tc, ok := part.(llms.TextContent); ok {
				parts = append(parts, tc.Text)
			}
		}
	}
	return strings.Join(parts, "\n\n")
}

// String flattens the prompt for logs and assertions.
func (p Prompt) String() string {
	if len(p.Messages) == 0 {
		return p.Flat
	}
	var parts []string
	for _, m := range p.Messages {
		for _, part := range m.Parts {
			if tc, ok := part.(llms.TextContent); ok {
				parts = append(parts, tc.Text)
			}
		}
	}
	return strings.Join(parts, "\n\n")
}

// Options are the recognized per-call settings.
type Options struct {
	// Model overrides the backend's default model.
	Model string
	// Schema is the JSON shape the answer must have. The backend asks for JSON
	// output; callers still decode and validate.
	Schema *validator.Schema
	// UseTools offers tools to the model for this call.
	UseTools bool
	// ToolIDs narrows the offered tools. Empty with UseTools means all tools.
	ToolIDs []string
	// ActionID ties the call to a plan action for policy and logs.
	ActionID string
}

// Completion is the backend's answer.
type Completion struct {
	Text string
	// ToolCalls lists tool ids executed while producing Text, in call order.
	ToolCalls []string
}

// Backend produces text for a prompt. Implementations must return errors that
// satisfy errors.Is(err, ErrBackend).
type Backend interface {
	Complete(ctx context.Context, prompt Prompt, opts Options) (*Completion, error)
}

// BackendFunc adapts a function to Backend.
type BackendFunc func(ctx context.Context, prompt Prompt, opts Options) (*Completion, error)

func (f BackendFunc) Complete(ctx context.Context, prompt Prompt, opts Options) (*Completion, error) {
	return f(ctx, prompt, opts)
}
