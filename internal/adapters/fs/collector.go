package fs

import (
	"os"
	"path/filepath"
	"slices"

	"github.com/bmatcuk/doublestar/v4"
	"go.trai.ch/matrix/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.ArtifactCollector = (*Collector)(nil)

// Collector implements ports.ArtifactCollector with doublestar globs.
type Collector struct {
	walker *Walker
}

// NewCollector creates a new Collector.
func NewCollector(walker *Walker) *Collector {
	return &Collector{walker: walker}
}

// Collect returns the files under root matching any include pattern, as sorted
// absolute paths. Patterns are matched against slash-separated paths relative
// to root. An empty include list selects every file.
func (c *Collector) Collect(root string, include []string) ([]string, error) {
	for _, pattern := range include {
		if !doublestar.ValidatePattern(pattern) {
			return nil, zerr.With(zerr.New("invalid artifact pattern"), "pattern", pattern)
		}
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to resolve artifact root"), "path", root)
	}
	if info, err := os.Stat(abs); err != nil || !info.IsDir() {
		return nil, zerr.With(zerr.New("artifact root is not a directory"), "path", abs)
	}

	var (
		files   []string
		walkErr error
	)
	for rel := range c.walker.WalkFiles(abs, nil, &walkErr) {
		if matchAny(include, rel) {
			files = append(files, filepath.Join(abs, filepath.FromSlash(rel)))
		}
	}
	if walkErr != nil {
		return nil, zerr.With(zerr.Wrap(walkErr, "failed to walk artifacts"), "path", abs)
	}

	slices.Sort(files)
	return files, nil
}

func matchAny(patterns []string, rel string) bool {
	if len(patterns) == 0 {
		return true
	}
	for _, p := range patterns {
		if doublestar.MatchUnvalidated(p, rel) {
			return true
		}
	}
	return false
}
