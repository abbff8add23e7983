package symbols

import (
	"bytes"
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/amp-memory/amp/internal/model"
)

func init() {
	treeSitterLanguages = map[string]*sitter.Language{
		"go":         golang.GetLanguage(),
		"python":     python.GetLanguage(),
		"javascript": javascript.GetLanguage(),
		"typescript": typescript.GetLanguage(),
	}
}

// nodeKind maps a tree-sitter node type, per language, to the symbol kind
// it represents and whether its "name" child field carries the identifier.
type nodeKind struct {
	kind      model.SymbolKind
	nameField string
}

var nodeKindsByLanguage = map[string]map[string]nodeKind{
	"go": {
		"function_declaration": {model.SymbolFunction, "name"},
		"method_declaration":   {model.SymbolFunction, "name"},
		"type_declaration":     {model.SymbolType, ""},
		"type_spec":            {model.SymbolType, "name"},
	},
	"python": {
		"function_definition": {model.SymbolFunction, "name"},
		"class_definition":    {model.SymbolClass, "name"},
	},
	"javascript": {
		"function_declaration": {model.SymbolFunction, "name"},
		"method_definition":    {model.SymbolFunction, "name"},
		"class_declaration":    {model.SymbolClass, "name"},
	},
	"typescript": {
		"function_declaration":  {model.SymbolFunction, "name"},
		"method_definition":     {model.SymbolFunction, "name"},
		"class_declaration":     {model.SymbolClass, "name"},
		"interface_declaration": {model.SymbolType, "name"},
	},
}

func extractTreeSitter(ctx context.Context, lang *sitter.Language, content []byte) ([]Symbol, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(lang)

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("parse source; %w", err)
	}
	defer tree.Close()

	langName := languageNameOf(lang)
	kinds := nodeKindsByLanguage[langName]

	var out []Symbol
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n == nil {
			return
		}
		if nk, ok := kinds[n.Type()]; ok {
			if sym, ok := symbolFromNode(n, nk, content); ok {
				out = append(out, sym)
			}
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(tree.RootNode())
	return out, nil
}

func symbolFromNode(n *sitter.Node, nk nodeKind, content []byte) (Symbol, bool) {
	name := ""
	if nk.nameField != "" {
		if child := n.ChildByFieldName(nk.nameField); child != nil {
			name = child.Content(content)
		}
	}
	if name == "" {
		// type_declaration wraps a type_spec; skip the wrapper itself so
		// we don't emit a nameless duplicate of its child.
		return Symbol{}, false
	}

	startLine := int(n.StartPoint().Row) + 1
	endLine := int(n.EndPoint().Row) + 1

	signature := firstLine(n.Content(content))

	return Symbol{
		Name:      name,
		Kind:      nk.kind,
		StartLine: startLine,
		EndLine:   endLine,
		Signature: signature,
	}, true
}

func firstLine(s string) string {
	if idx := bytes.IndexByte([]byte(s), '\n'); idx >= 0 {
		return s[:idx]
	}
	if len(s) > 200 {
		return s[:200]
	}
	return s
}

func languageNameOf(lang *sitter.Language) string {
	for name, l := range treeSitterLanguages {
		if l == lang {
			return name
		}
	}
	return ""
}
