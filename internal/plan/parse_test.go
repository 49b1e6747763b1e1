package plan

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestParse_ResolvesAliasesAndTools(t *testing.T) {
	raw := `{"goal": "stub goal", "actions": [
		{"id": "research_topic", "type": "tool", "description": "Research", "tool_ids": ["search", "search"], "dependencies": [], "model": "WRITER_MODEL"},
		{"id": "write_summary", "type": "weird", "description": "Write {{research_topic}}", "dependencies": ["research_topic", " "], "model": ""}
	]}`

	p, err := Parse([]byte(raw), ParseOptions{
		Goal:         "Real goal",
		Models:       map[string]string{"WRITER_MODEL": "writer-model"},
		ToolsEnabled: true,
	})
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if p.Goal != "Real goal" {
		t.Errorf("Expected caller goal to win, got %q", p.Goal)
	}
	first := p.Actions[0]
	if first.Model != "writer-model" {
		t.Errorf("Expected alias resolved, got %q", first.Model)
	}
	if !reflect.DeepEqual(first.ToolIDs, []string{"search"}) {
		t.Errorf("Expected deduplicated tool ids, got %v", first.ToolIDs)
	}
	second := p.Actions[1]
	if second.Type != TypeText {
		t.Errorf("Expected unknown type to become text, got %s", second.Type)
	}
	if !reflect.DeepEqual(second.Dependencies, []string{"research_topic"}) {
		t.Errorf("Expected blank dependency dropped, got %v", second.Dependencies)
	}
	if second.Status != StatusPending {
		t.Errorf("Expected pending status, got %s", second.Status)
	}
}

func TestParse_ToolsDisabled(t *testing.T) {
	raw := `{"goal": "g", "actions": [{"id": "a", "type": "tool", "description": "d", "tool_ids": ["search"]}]}`

	p, err := Parse([]byte(raw), ParseOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if p.Actions[0].Type != TypeText || len(p.Actions[0].ToolIDs) != 0 {
		t.Errorf("Expected tool typing dropped, got %s %v", p.Actions[0].Type, p.Actions[0].ToolIDs)
	}
}

func TestParse_InvalidJSON(t *testing.T) {
	if _, err := Parse([]byte("not json"), ParseOptions{}); err == nil {
		t.Error("Expected an error for invalid JSON")
	}
}

func TestLoadFile_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.yaml")
	content := `goal: Ship the report
actions:
  - id: outline
    type: text
    description: Outline the report
  - id: draft
    description: Draft from {{outline}}
    dependencies: [outline]
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	p, err := LoadFile(path, ParseOptions{})
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if p.Goal != "Ship the report" || len(p.Actions) != 2 {
		t.Fatalf("Unexpected plan: %+v", p)
	}
	Repair(p, "")
	if err := Validate(p); err != nil {
		t.Errorf("Expected loaded plan to validate after repair: %v", err)
	}
}

func TestSubstitute(t *testing.T) {
	text := "Intro\n{{ a }}\n{{b}}\n{{missing}}"
	got := Substitute(text, map[string]string{"a": "A-out", "b": "B-out"})
	want := "Intro\nA-out\nB-out\n{{missing}}"
	if got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
	if ids := Placeholders(text); !reflect.DeepEqual(ids, []string{"a", "b", "missing"}) {
		t.Errorf("Unexpected placeholders %v", ids)
	}
}

func TestFormatScore(t *testing.T) {
	for in, want := range map[float64]string{0.2: "0.20", 0.956: "0.96", 1: "1.00", 0: "0.00"} {
		if got := FormatScore(in); got != want {
			t.Errorf("FormatScore(%v) = %s, want %s", in, got, want)
		}
	}
}
