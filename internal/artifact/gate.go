// Package artifact is the persistence gate: rendered code reaches disk
// only through an explicit save, never implicitly.
package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rahul/scout/internal/governance"
	"github.com/rahul/scout/internal/render"
	"github.com/rahul/scout/internal/store"
)

// Gate writes rendered test sources into the workspace. Writes are
// overwrite-safe: saving the same name again replaces the file.
type Gate struct {
	Root  string
	Index *store.Store // optional artifact index
}

func NewGate(root string) *Gate {
	absRoot, _ := filepath.Abs(root)
	return &Gate{Root: absRoot}
}

// Save writes source under <root>/tests/<name>_test.go and returns the
// absolute path. The name is screened before it touches a path.
func (g *Gate) Save(name, source string) (string, error) {
	if !governance.ValidArtifactName(name) {
		return "", fmt.Errorf("unsafe artifact name %q", name)
	}

	targetPath := filepath.Join(g.Root, "tests", name+"_test.go")

	rel, err := filepath.Rel(g.Root, targetPath)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("unsafe artifact path for %q", name)
	}

	if err := os.MkdirAll(filepath.Dir(targetPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create tests directory: %w", err)
	}
	if err := os.WriteFile(targetPath, []byte(source), 0644); err != nil {
		return "", fmt.Errorf("failed to write artifact: %w", err)
	}

	if g.Index != nil {
		if err := g.Index.RecordArtifact(name, targetPath, len(source), render.TemplateVersion); err != nil {
			return "", fmt.Errorf("artifact written but not indexed: %w", err)
		}
	}

	return targetPath, nil
}
