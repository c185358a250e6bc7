package extractor

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestPromptManager_GetExtractorPrompt(t *testing.T) {
	dir := t.TempDir()

	files := map[string]string{
		"role.md":     "Role Content",
		"kinds.md":    "Kinds Content",
		"matching.md": "Matching Content",
		"extra.md":    "Extra Content",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	pm := NewPromptManager(dir)
	prompt, err := pm.GetExtractorPrompt()
	if err != nil {
		t.Fatal(err)
	}

	for _, part := range []string{"Role Content", "Kinds Content", "Matching Content", "Extra Content"} {
		if !strings.Contains(prompt, part) {
			t.Errorf("prompt missing expected part: %s", part)
		}
	}

	if strings.Index(prompt, "Role Content") >= strings.Index(prompt, "Kinds Content") {
		t.Error("role should come before kinds")
	}
	if strings.Index(prompt, "Kinds Content") >= strings.Index(prompt, "Matching Content") {
		t.Error("kinds should come before matching")
	}
}

func TestPromptManager_MissingDirectory(t *testing.T) {
	pm := NewPromptManager(filepath.Join(t.TempDir(), "nope"))
	if _, err := pm.GetExtractorPrompt(); err == nil {
		t.Error("expected error for missing directory")
	}
}
