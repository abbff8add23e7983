// Package classify implements C11 step 5: deciding whether a discovered
// file is text (and therefore worth indexing) or binary (excluded).
package classify

import (
	"bytes"
	"path/filepath"
	"strings"

	"github.com/amp-memory/amp/internal/fsutil"
)

// textExtensions is the allow-list checked first: anything here is treated
// as text without a content sniff.
var textExtensions = map[string]bool{
	".go": true, ".py": true, ".js": true, ".jsx": true, ".ts": true, ".tsx": true,
	".java": true, ".c": true, ".h": true, ".cpp": true, ".hpp": true, ".cc": true, ".cxx": true,
	".rs": true, ".rb": true, ".php": true, ".cs": true, ".swift": true, ".kt": true, ".kts": true,
	".scala": true, ".sh": true, ".bash": true, ".sql": true, ".md": true, ".txt": true,
	".json": true, ".yaml": true, ".yml": true, ".toml": true, ".xml": true, ".html": true,
	".css": true, ".scss": true, ".less": true, ".proto": true, ".graphql": true, ".mod": true,
	".sum": true, ".cfg": true, ".ini": true, ".env": true, ".gitignore": true, ".dockerfile": true,
}

// binaryExtensions is the deny-list checked second: anything here is
// excluded without a content sniff.
var binaryExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".bmp": true, ".ico": true, ".webp": true,
	".pdf": true, ".zip": true, ".tar": true, ".gz": true, ".bz2": true, ".7z": true, ".rar": true,
	".exe": true, ".dll": true, ".so": true, ".dylib": true, ".a": true, ".o": true, ".obj": true,
	".class": true, ".jar": true, ".war": true, ".wasm": true,
	".mp3": true, ".mp4": true, ".avi": true, ".mov": true, ".wav": true, ".flac": true,
	".ttf": true, ".otf": true, ".woff": true, ".woff2": true, ".eot": true,
	".db": true, ".sqlite": true, ".sqlite3": true, ".bin": true,
}

// sniffWindow is how many leading bytes are checked for a null byte when an
// extension is unrecognized.
const sniffWindow = 512

// IsText decides whether content at path should be indexed as text.
func IsText(path string, content []byte) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if textExtensions[ext] {
		return true
	}
	if binaryExtensions[ext] {
		return false
	}

	window := content
	if len(window) > sniffWindow {
		window = window[:sniffWindow]
	}
	if bytes.IndexByte(window, 0) >= 0 {
		return false
	}

	mimeType := fsutil.DetectMIME(path, window)
	return strings.HasPrefix(mimeType, "text/") || strings.Contains(mimeType, "json") || strings.Contains(mimeType, "xml")
}

// builtinExcludeDirs covers VCS metadata, virtual environments, and common
// build/dependency caches that should never be walked.
var builtinExcludeDirs = map[string]bool{
	".git": true, ".hg": true, ".svn": true,
	"node_modules": true, "vendor": true,
	".venv": true, "venv": true, "__pycache__": true,
	".idea": true, ".vscode": true, ".DS_Store": true,
	"dist": true, "build": true, "target": true, ".next": true,
	".cache": true, ".pytest_cache": true, ".mypy_cache": true,
}

// builtinExcludeSuffixes covers lockfile/cache artifacts excluded by
// glob-style suffix regardless of directory.
var builtinExcludeSuffixes = []string{
	".lock", ".log", ".pyc", ".pyo",
}

// Excluder decides whether a path component should be skipped during the
// directory walk, combining amp's built-in exclusions with user-supplied
// exact names and glob suffixes.
type Excluder struct {
	extraNames    map[string]bool
	extraSuffixes []string
}

// NewExcluder builds an Excluder from user-supplied exclude patterns. Each
// pattern is either an exact component name or a "*.ext" glob suffix.
func NewExcluder(userExcludes []string) *Excluder {
	e := &Excluder{extraNames: make(map[string]bool)}
	for _, pattern := range userExcludes {
		if strings.HasPrefix(pattern, "*") {
			e.extraSuffixes = append(e.extraSuffixes, strings.TrimPrefix(pattern, "*"))
		} else {
			e.extraNames[pattern] = true
		}
	}
	return e
}

// ExcludeDir reports whether a directory name should be skipped entirely.
func (e *Excluder) ExcludeDir(name string) bool {
	if builtinExcludeDirs[name] || e.extraNames[name] {
		return true
	}
	return e.hasExcludedSuffix(name)
}

// ExcludeFile reports whether a file name should be skipped.
func (e *Excluder) ExcludeFile(name string) bool {
	if e.extraNames[name] {
		return true
	}
	return e.hasExcludedSuffix(name)
}

func (e *Excluder) hasExcludedSuffix(name string) bool {
	for _, suffix := range builtinExcludeSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	for _, suffix := range e.extraSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}
