package llm

import (
	"context"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/rahul/karya/internal/governance"
	"github.com/rahul/karya/internal/observability"
	"github.com/rahul/karya/internal/tools"
	"github.com/tmc/langchaingo/llms"
)

const defaultMaxToolSteps = 8

// LangchainBackend serves completions from a langchaingo model and runs the
// tool-calling loop for tool-enabled calls.
type LangchainBackend struct {
	Model        llms.Model
	DefaultModel string
	Registry     *tools.Registry
	Policy       governance.PolicyEngine
	Logger       *observability.Logger
	MaxToolSteps int
	// JSONMode asks the provider for JSON output when a schema is requested.
	JSONMode bool
}

func NewLangchainBackend(model llms.Model, defaultModel string, registry *tools.Registry, policy governance.PolicyEngine, logger *observability.Logger) *LangchainBackend {
	if logger == nil {
		logger = observability.Discard()
	}
	return &LangchainBackend{
		Model:        model,
		DefaultModel: defaultModel,
		Registry:     registry,
		Policy:       policy,
		Logger:       logger,
		MaxToolSteps: defaultMaxToolSteps,
	}
}

func (b *LangchainBackend) Complete(ctx context.Context, prompt Prompt, opts Options) (*Completion, error) {
	model := opts.Model
	if model == "" {
		model = b.DefaultModel
	}

	var callOpts []llms.CallOption
	if model != "" {
		callOpts = append(callOpts, llms.WithModel(model))
	}
	if opts.Schema != nil && b.JSONMode {
		callOpts = append(callOpts, llms.WithJSONMode())
	}

	var offered []tools.Tool
	if opts.UseTools && b.Registry != nil {
		offered = b.Registry.Select(opts.ToolIDs)
	}
	toolOpts := callOpts
	if len(offered) > 0 {
		toolOpts = append(append([]llms.CallOption(nil), callOpts...), llms.WithTools(toolDefinitions(offered)))
	}

	messages := append([]llms.MessageContent(nil), prompt.MessageList()...)
	maxSteps := b.MaxToolSteps
	if maxSteps <= 0 {
		maxSteps = defaultMaxToolSteps
	}

	var called []string
	for step := 0; step < maxSteps; step++ {
		choice, err := b.generate(ctx, model, opts.ActionID, messages, toolOpts)
		if err != nil {
			return nil, err
		}

		if len(choice.ToolCalls) == 0 || len(offered) == 0 {
			return &Completion{Text: choice.Content, ToolCalls: called}, nil
		}

		var assistantParts []llms.ContentPart
		if choice.Content != "" {
			assistantParts = append(assistantParts, llms.TextContent{Text: choice.Content})
		}
		for _, tc := range choice.ToolCalls {
			assistantParts = append(assistantParts, tc)
		}
		messages = append(messages, llms.MessageContent{
			Role:  llms.ChatMessageTypeAI,
			Parts: assistantParts,
		})

		for _, tc := range choice.ToolCalls {
			result, ran := b.runTool(ctx, opts, tc)
			if ran {
				called = append(called, tc.FunctionCall.Name)
			}
			messages = append(messages, llms.MessageContent{
				Role: llms.ChatMessageTypeTool,
				Parts: []llms.ContentPart{
					llms.ToolCallResponse{
						ToolCallID: tc.ID,
						Name:       tc.FunctionCall.Name,
						Content:    result,
					},
				},
			})
		}
	}

	// Out of tool steps: ask for the answer with what has been gathered.
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman,
		"Tool budget exhausted. Answer now using the information gathered so far."))
	choice, err := b.generate(ctx, model, opts.ActionID, messages, callOpts)
	if err != nil {
		return nil, err
	}
	return &Completion{Text: choice.Content, ToolCalls: called}, nil
}

func (b *LangchainBackend) generate(ctx context.Context, model, actionID string, messages []llms.MessageContent, callOpts []llms.CallOption) (*llms.ContentChoice, error) {
	resp, err := b.Model.GenerateContent(ctx, messages, callOpts...)
	if err != nil {
		b.Logger.LogLLM(model, messages, "", nil)
		return nil, Wrap(err, "generate content failed",
			goerr.V("model", model),
			goerr.V("action_id", actionID))
	}
	if resp == nil || len(resp.Choices) == 0 {
		return nil, Wrap(fmt.Errorf("empty response"), "generate content returned no choices",
			goerr.V("model", model),
			goerr.V("action_id", actionID))
	}
	choice := resp.Choices[0]
	b.Logger.LogLLM(model, messages, choice.Content, choice.ToolCalls)
	return choice, nil
}

// runTool executes one requested call. The bool reports whether the tool ran.
func (b *LangchainBackend) runTool(ctx context.Context, opts Options, tc llms.ToolCall) (string, bool) {
	name := tc.FunctionCall.Name
	args := tc.FunctionCall.Arguments

	tool := b.Registry.Get(name)
	if tool == nil {
		b.Logger.LogToolCall(opts.ActionID, name, args, "unknown")
		return fmt.Sprintf("Error: Tool %s not found", name), false
	}

	if b.Policy != nil {
		res, err := b.Policy.Evaluate(ctx, governance.Request{
			Tool:      name,
			Arguments: args,
			ActionID:  opts.ActionID,
			Permitted: opts.ToolIDs,
		})
		if err != nil {
			b.Logger.LogToolCall(opts.ActionID, name, args, "policy_error")
			return fmt.Sprintf("Error: policy evaluation failed: %v", err), false
		}
		if res.Effect == governance.EffectDeny {
			b.Logger.LogToolCall(opts.ActionID, name, args, "denied")
			return fmt.Sprintf("Error: %s", res.Reason), false
		}
	}

	b.Logger.LogToolCall(opts.ActionID, name, args, "allowed")
	out, err := tool.Execute(ctx, args)
	if err != nil {
		return fmt.Sprintf("Error: %v", err), true
	}
	return out, true
}

func toolDefinitions(ts []tools.Tool) []llms.Tool {
	defs := make([]llms.Tool, 0, len(ts))
	for _, t := range ts {
		defs = append(defs, llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}
	return defs
}
