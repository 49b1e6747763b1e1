package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Tool defines the interface for all agent capabilities.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]any // JSON Schema for the tool's inputs
	Execute(ctx context.Context, input string) (string, error)
}

// Registry manages the set of available tools.
type Registry struct {
	Tools map[string]Tool
}

func NewRegistry() *Registry {
	return &Registry{
		Tools: make(map[string]Tool),
	}
}

func (r *Registry) Register(t Tool) {
	r.Tools[t.Name()] = t
}

func (r *Registry) Get(name string) Tool {
	return r.Tools[name]
}

// Names returns the registered tool ids in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.Tools))
	for name := range r.Tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Select returns the tools named by ids, or every tool when ids is empty.
// Unknown ids are skipped.
func (r *Registry) Select(ids []string) []Tool {
	if len(ids) == 0 {
		ids = r.Names()
	}
	var out []Tool
	for _, id := range ids {
		if t, ok := r.Tools[id]; ok {
			out = append(out, t)
		}
	}
	return out
}

// Catalog lists tools as "- id: description" lines for planning prompts.
func (r *Registry) Catalog() string {
	var b strings.Builder
	for _, name := range r.Names() {
		fmt.Fprintf(&b, "- %s: %s\n", name, r.Tools[name].Description())
	}
	return strings.TrimRight(b.String(), "\n")
}

func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "\n... (content truncated) ..."
}
