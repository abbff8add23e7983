// Package symbols implements C5: extracting named code structures (classes,
// functions, methods, types) from file content. Extraction is a pure
// function of file bytes and language — no store access happens here.
package symbols

import (
	"context"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/amp-memory/amp/internal/model"
)

// Symbol is a single extracted code structure.
type Symbol struct {
	Name          string
	Kind          model.SymbolKind
	StartLine     int // 1-indexed, inclusive
	EndLine       int // 1-indexed, inclusive
	Signature     string
	Documentation string
}

// Extract returns the symbols found in content for the given language name
// (as produced by filetype.DetectLanguage). Languages without a tree-sitter
// grammar fall back to a line-heuristic extractor; languages it has no
// patterns for yield no symbols.
func Extract(ctx context.Context, language string, content []byte) ([]Symbol, error) {
	if lang, ok := treeSitterLanguages[language]; ok {
		syms, err := extractTreeSitter(ctx, lang, content)
		if err == nil {
			return syms, nil
		}
		// fall through to the generic extractor on parse failure rather
		// than losing the file entirely
	}
	return extractGeneric(language, content), nil
}

var treeSitterLanguages map[string]*sitter.Language
