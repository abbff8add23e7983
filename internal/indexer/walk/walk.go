// Package walk implements C11 step 3: traversing a directory tree honoring
// .gitignore and exclude rules, producing a stable-order stream of entries.
package walk

import (
	"bufio"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/amp-memory/amp/internal/indexer/classify"
)

// Entry is one file discovered by Walk.
type Entry struct {
	AbsPath string
	RelPath string // forward-slash, relative to the walk root
	IsDir   bool
}

// Options controls how Walk traverses root.
type Options struct {
	RespectGitignore bool
	Exclude          []string
}

// Walk traverses root in stable filesystem order, returning every
// non-excluded directory and file entry. Directories matched by the
// excluder are not descended into.
func Walk(root string, opts Options) ([]Entry, error) {
	excluder := classify.NewExcluder(opts.Exclude)

	var ignore *gitignore
	if opts.RespectGitignore {
		ignore = loadGitignore(root)
	}

	var entries []Entry
	var walkDir func(dir string) error
	walkDir = func(dir string) error {
		items, err := os.ReadDir(dir)
		if err != nil {
			return err
		}
		sort.Slice(items, func(i, j int) bool { return items[i].Name() < items[j].Name() })

		for _, item := range items {
			name := item.Name()
			absPath := filepath.Join(dir, name)
			relPath := toRelSlash(root, absPath)

			if item.IsDir() {
				if excluder.ExcludeDir(name) {
					continue
				}
				if ignore != nil && ignore.matches(relPath, true) {
					continue
				}
				entries = append(entries, Entry{AbsPath: absPath, RelPath: relPath, IsDir: true})
				if err := walkDir(absPath); err != nil {
					return err
				}
				continue
			}

			if excluder.ExcludeFile(name) {
				continue
			}
			if ignore != nil && ignore.matches(relPath, false) {
				continue
			}
			entries = append(entries, Entry{AbsPath: absPath, RelPath: relPath, IsDir: false})
		}
		return nil
	}

	if err := walkDir(root); err != nil {
		return nil, err
	}
	return entries, nil
}

func toRelSlash(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}
	return filepath.ToSlash(rel)
}

// gitignore is a minimal, non-nested .gitignore matcher: exact path or
// basename matches against the patterns found in root's top-level
// .gitignore. amp indexes projects shallow enough that a single root-level
// file covers the common case; nested .gitignore files are not merged.
type gitignore struct {
	patterns []string
}

func loadGitignore(root string) *gitignore {
	f, err := os.Open(filepath.Join(root, ".gitignore"))
	if err != nil {
		return &gitignore{}
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, strings.TrimSuffix(line, "/"))
	}
	return &gitignore{patterns: patterns}
}

func (g *gitignore) matches(relPath string, isDir bool) bool {
	base := relPath
	if idx := strings.LastIndex(relPath, "/"); idx >= 0 {
		base = relPath[idx+1:]
	}
	for _, p := range g.patterns {
		if p == relPath || p == base {
			return true
		}
		if strings.Contains(p, "*") {
			if ok, _ := filepath.Match(p, base); ok {
				return true
			}
		}
	}
	return false
}
