package walker

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// skippedDirs are never descended into: VCS metadata, virtualenvs and the
// directories ecobot itself writes (vector index, audit database).
var skippedDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"__pycache__":  true,
	".venv":        true,
	"chroma_db":    true,
	".ecobot":      true,
}

// Filter decides which documents under a knowledge directory are ingested.
// Patterns use doublestar syntax; a pattern without a slash also matches
// the bare file name, so "faq*.json" works at any depth.
type Filter struct {
	include []string
	exclude []string
}

// NewFilter validates the patterns. An empty include list admits every
// supported document.
func NewFilter(include, exclude []string) (*Filter, error) {
	f := &Filter{}
	var err error
	if f.include, err = normalizePatterns(include); err != nil {
		return nil, err
	}
	if f.exclude, err = normalizePatterns(exclude); err != nil {
		return nil, err
	}
	return f, nil
}

func normalizePatterns(patterns []string) ([]string, error) {
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		p = strings.TrimSpace(filepath.ToSlash(p))
		if p == "" {
			continue
		}
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("walker: invalid pattern %q", p)
		}
		out = append(out, p)
	}
	return out, nil
}

// Allow reports whether the slash-separated relative path passes the filter.
func (f *Filter) Allow(relPath string) bool {
	relPath = filepath.ToSlash(relPath)
	if len(f.include) > 0 && !matchAny(f.include, relPath) {
		return false
	}
	return !matchAny(f.exclude, relPath)
}

// SkipDir reports whether a directory with this name is pruned.
func (f *Filter) SkipDir(name string) bool {
	return skippedDirs[strings.ToLower(name)]
}

func matchAny(patterns []string, relPath string) bool {
	base := path.Base(relPath)
	for _, p := range patterns {
		if doublestar.MatchUnvalidated(p, relPath) {
			return true
		}
		if !strings.Contains(p, "/") && doublestar.MatchUnvalidated(p, base) {
			return true
		}
	}
	return false
}
