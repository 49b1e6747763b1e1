package agent

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestPromptManager_Persona(t *testing.T) {
	tempDir := t.TempDir()

	files := map[string]string{
		"identity.md":     "Identity Content",
		"soul.md":         "Soul Content",
		"capabilities.md": "Capabilities Content",
		"user.md":         "User Content",
		"extra.md":        "Extra Content",
		"planner.md":      "Planner Override",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(tempDir, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	pm := NewPromptManager(tempDir)
	prompt, err := pm.Persona()
	if err != nil {
		t.Fatal(err)
	}

	for _, part := range []string{"Identity Content", "Soul Content", "Capabilities Content", "User Content", "Extra Content"} {
		if !strings.Contains(prompt, part) {
			t.Errorf("Prompt missing expected part: %s", part)
		}
	}
	if strings.Contains(prompt, "Planner Override") {
		t.Error("Directive files must not leak into the persona")
	}

	// Verify order
	if strings.Index(prompt, "Identity Content") >= strings.Index(prompt, "Soul Content") {
		t.Error("Identity should be before Soul")
	}
	if strings.Index(prompt, "Soul Content") >= strings.Index(prompt, "Capabilities Content") {
		t.Error("Soul should be before Capabilities")
	}
	if strings.Index(prompt, "Capabilities Content") >= strings.Index(prompt, "User Content") {
		t.Error("Capabilities should be before User")
	}
	if strings.Index(prompt, "User Content") >= strings.Index(prompt, "Extra Content") {
		t.Error("Unordered files should come last")
	}
}

func TestPromptManager_Directive(t *testing.T) {
	tempDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(tempDir, "planner.md"), []byte("Planner Override"), 0644); err != nil {
		t.Fatal(err)
	}
	pm := NewPromptManager(tempDir)

	if got := pm.Directive(DirectivePlanner); got != "Planner Override" {
		t.Errorf("Expected override, got %q", got)
	}
	if got := pm.Directive(DirectiveReflection); got != builtinDirectives[DirectiveReflection] {
		t.Errorf("Expected built-in reflection directive, got %q", got)
	}
}

func TestPromptManager_MissingDirectory(t *testing.T) {
	pm := NewPromptManager(filepath.Join(t.TempDir(), "absent"))
	if got := pm.System(DirectiveAction); got != builtinDirectives[DirectiveAction] {
		t.Errorf("Expected bare directive without persona, got %q", got)
	}
}
