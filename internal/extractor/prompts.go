package extractor

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const defaultSystemPrompt = `You are the intent classifier of a browser-test generator.
The user describes, turn by turn, what an automated browser test should do.
Each utterance maps to exactly ONE change to the step sequence.

Classify the utterance and answer by calling a tool:
- A brand-new action (navigate, click, fill, assert_text, assert_visible, scroll, wait) -> propose_delta with operation "add".
- A correction to an action already in the sequence -> propose_delta with operation "modify". Match the step by recency and by how much its target wording overlaps the utterance.
- A retraction of an action -> propose_delta with operation "remove".
- If the utterance refers to a step that does not exist in the sequence, or you genuinely cannot tell what it means, call request_clarification instead of guessing.

Never invent steps the user did not describe. Never answer in free text.`

// PromptManager assembles the extractor system prompt from markdown
// files in a directory, so the prompt can be tuned without a rebuild.
// Files are concatenated in a fixed order; a missing or empty directory
// falls back to the built-in prompt.
type PromptManager struct {
	Directory string
}

func NewPromptManager(dir string) *PromptManager {
	return &PromptManager{Directory: dir}
}

func (pm *PromptManager) GetExtractorPrompt() (string, error) {
	files, err := os.ReadDir(pm.Directory)
	if err != nil {
		return "", fmt.Errorf("failed to read prompts directory: %v", err)
	}

	// Fixed order first, everything else alphabetically after.
	order := map[string]int{
		"role.md":     1,
		"kinds.md":    2,
		"matching.md": 3,
		"examples.md": 4,
	}

	sort.Slice(files, func(i, j int) bool {
		oi, okI := order[files[i].Name()]
		oj, okJ := order[files[j].Name()]
		if okI && okJ {
			return oi < oj
		}
		if okI {
			return true
		}
		if okJ {
			return false
		}
		return files[i].Name() < files[j].Name()
	})

	var contents []string
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".md") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(pm.Directory, f.Name()))
		if err != nil {
			continue
		}
		contents = append(contents, string(data))
	}

	if len(contents) == 0 {
		return "", fmt.Errorf("no prompt files found in %s", pm.Directory)
	}

	return strings.Join(contents, "\n\n---\n\n"), nil
}
