package symbols

import (
	"bufio"
	"bytes"
	"regexp"

	"github.com/amp-memory/amp/internal/model"
)

// genericPattern is a line-oriented heuristic: if a line matches, group 1
// is taken as the symbol name.
type genericPattern struct {
	re   *regexp.Regexp
	kind model.SymbolKind
}

var genericPatternsByLanguage = map[string][]genericPattern{
	"java": {
		{regexp.MustCompile(`\bclass\s+(\w+)`), model.SymbolClass},
		{regexp.MustCompile(`\binterface\s+(\w+)`), model.SymbolType},
		{regexp.MustCompile(`\b(?:public|private|protected|static|final|\s)*[\w<>\[\]]+\s+(\w+)\s*\([^;]*\)\s*\{`), model.SymbolFunction},
	},
	"c": {
		{regexp.MustCompile(`^\s*[\w\*]+\s+(\w+)\s*\([^;]*\)\s*\{`), model.SymbolFunction},
		{regexp.MustCompile(`\bstruct\s+(\w+)\s*\{`), model.SymbolType},
	},
	"cpp": {
		{regexp.MustCompile(`\bclass\s+(\w+)`), model.SymbolClass},
		{regexp.MustCompile(`^\s*[\w:<>\*&]+\s+(\w+)\s*\([^;]*\)\s*\{`), model.SymbolFunction},
		{regexp.MustCompile(`\bstruct\s+(\w+)\s*\{`), model.SymbolType},
	},
	"rust": {
		{regexp.MustCompile(`\bfn\s+(\w+)`), model.SymbolFunction},
		{regexp.MustCompile(`\bstruct\s+(\w+)`), model.SymbolType},
		{regexp.MustCompile(`\benum\s+(\w+)`), model.SymbolType},
		{regexp.MustCompile(`\btrait\s+(\w+)`), model.SymbolType},
		{regexp.MustCompile(`\bimpl(?:<[^>]*>)?\s+(\w+)`), model.SymbolClass},
	},
	"ruby": {
		{regexp.MustCompile(`\bclass\s+(\w+)`), model.SymbolClass},
		{regexp.MustCompile(`\bmodule\s+(\w+)`), model.SymbolType},
		{regexp.MustCompile(`\bdef\s+(\w+[\?\!]?)`), model.SymbolFunction},
	},
	"php": {
		{regexp.MustCompile(`\bclass\s+(\w+)`), model.SymbolClass},
		{regexp.MustCompile(`\binterface\s+(\w+)`), model.SymbolType},
		{regexp.MustCompile(`\bfunction\s+(\w+)`), model.SymbolFunction},
	},
	"csharp": {
		{regexp.MustCompile(`\bclass\s+(\w+)`), model.SymbolClass},
		{regexp.MustCompile(`\binterface\s+(\w+)`), model.SymbolType},
		{regexp.MustCompile(`\b(?:public|private|protected|internal|static|\s)*[\w<>\[\]]+\s+(\w+)\s*\([^;]*\)\s*\{`), model.SymbolFunction},
	},
	"swift": {
		{regexp.MustCompile(`\bclass\s+(\w+)`), model.SymbolClass},
		{regexp.MustCompile(`\bstruct\s+(\w+)`), model.SymbolType},
		{regexp.MustCompile(`\bfunc\s+(\w+)`), model.SymbolFunction},
	},
	"kotlin": {
		{regexp.MustCompile(`\bclass\s+(\w+)`), model.SymbolClass},
		{regexp.MustCompile(`\bfun\s+(\w+)`), model.SymbolFunction},
	},
	"scala": {
		{regexp.MustCompile(`\bclass\s+(\w+)`), model.SymbolClass},
		{regexp.MustCompile(`\bobject\s+(\w+)`), model.SymbolClass},
		{regexp.MustCompile(`\bdef\s+(\w+)`), model.SymbolFunction},
	},
	"bash": {
		{regexp.MustCompile(`^\s*(?:function\s+)?(\w+)\s*\(\)\s*\{`), model.SymbolFunction},
	},
	"sql": {
		{regexp.MustCompile(`(?i)\bcreate\s+(?:or\s+replace\s+)?(?:table|view)\s+(\w+)`), model.SymbolType},
		{regexp.MustCompile(`(?i)\bcreate\s+(?:or\s+replace\s+)?(?:procedure|function)\s+(\w+)`), model.SymbolFunction},
	},
}

// extractGeneric applies per-language line regexes. Unrecognized languages
// return no symbols, which is correct: the file still gets a filelog
// summary, it simply contributes no fine-grained symbol nodes.
func extractGeneric(language string, content []byte) []Symbol {
	patterns := genericPatternsByLanguage[language]
	if len(patterns) == 0 {
		return nil
	}

	var out []Symbol
	scanner := bufio.NewScanner(bytes.NewReader(content))
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		for _, p := range patterns {
			m := p.re.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			out = append(out, Symbol{
				Name:      m[1],
				Kind:      p.kind,
				StartLine: lineNum,
				EndLine:   lineNum,
				Signature: line,
			})
		}
	}
	return out
}
