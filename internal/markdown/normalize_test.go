package markdown

import (
	"strings"
	"testing"

	"github.com/rahul/karya/internal/plan"
)

func TestRender_UnwrapsMarkdownBlock(t *testing.T) {
	rendered := Render(plan.Output{PrimaryOutput: "```markdown\n# Heading\n\nParagraph text.\n```"}, "")

	if strings.Contains(rendered, "```markdown") {
		t.Errorf("Expected markdown fence removed, got %q", rendered)
	}
	if !strings.Contains(rendered, "# Heading") {
		t.Errorf("Expected heading kept, got %q", rendered)
	}
}

func TestRender_UnwrapsGenericBlock(t *testing.T) {
	rendered := Render(plan.Output{PrimaryOutput: "```\n## Section\n- Item 1\n- Item 2\n```"}, "")

	if strings.Count(rendered, "```") != 0 {
		t.Errorf("Expected no fences, got %q", rendered)
	}
	if !strings.Contains(rendered, "## Section") {
		t.Errorf("Expected section kept, got %q", rendered)
	}
}

func TestRender_PreservesLanguageBlocks(t *testing.T) {
	rendered := Render(plan.Output{PrimaryOutput: "```python\nprint(\"Hello\")\n```"}, "")

	if !strings.Contains(rendered, "```python") {
		t.Errorf("Expected python fence kept, got %q", rendered)
	}
}

func TestRender_UnwrapsFenceInsideImage(t *testing.T) {
	rendered := Render(plan.Output{
		PrimaryOutput: "![Measurement Process Diagram](```mermaid\ngraph TD\n    A-->B\n```)",
	}, "")

	if strings.Contains(rendered, "![Measurement Process Diagram]") {
		t.Errorf("Expected image syntax removed, got %q", rendered)
	}
	if !strings.Contains(rendered, "```mermaid\ngraph TD\n    A-->B\n```") {
		t.Errorf("Expected mermaid block kept, got %q", rendered)
	}
}

func TestRender_SupportingDetailsBlock(t *testing.T) {
	rendered := Render(plan.Output{
		SupportingDetails: "```markdown\n### Notes\n- Detail\n```",
	}, "Notes")

	if strings.Contains(rendered, "```markdown") {
		t.Errorf("Expected fence removed, got %q", rendered)
	}
	if !strings.Contains(rendered, "### Notes") || !strings.Contains(rendered, "<details>") {
		t.Errorf("Expected details block, got %q", rendered)
	}
}

func TestUnwrap_KeepsMultipleBlocks(t *testing.T) {
	text := "```\na\n```\n\ntext\n\n```\nb\n```"
	if got := Unwrap(text); got != text {
		t.Errorf("Expected text untouched, got %q", got)
	}
}

func TestStripFences(t *testing.T) {
	got := StripFences("Before\n```sql\nSELECT 1;\n```\nAfter")
	if got != "Before\nAfter" {
		t.Errorf("Unexpected result %q", got)
	}
}
