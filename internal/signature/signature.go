// Package signature reads the name and arity of a relation body from its
// leading JavaScript function declaration.
package signature

import (
	"context"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
)

const declarationQuery = `(function_declaration
	name: (identifier) @name
	parameters: (formal_parameters) @params)`

// Parser extracts function signatures. It is safe for concurrent use.
type Parser struct {
	lang  *sitter.Language
	query *sitter.Query
}

// NewParser creates a parser for JavaScript function declarations.
func NewParser() *Parser {
	lang := javascript.GetLanguage()
	query, err := sitter.NewQuery([]byte(declarationQuery), lang)
	if err != nil {
		panic("signature: bad declaration query: " + err.Error())
	}
	return &Parser{lang: lang, query: query}
}

// ParseSignature returns the name and parameter count of the first top-level
// function declaration in source. ok is false when there is none.
func (p *Parser) ParseSignature(source string) (name string, argCount int, ok bool) {
	code := []byte(source)

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(p.lang)
	tree, err := parser.ParseCtx(context.Background(), nil, code)
	if err != nil {
		return "", 0, false
	}
	defer tree.Close()

	root := tree.RootNode()
	for i := 0; i < int(root.NamedChildCount()); i++ {
		decl := root.NamedChild(i)
		if decl.Type() != "function_declaration" {
			continue
		}
		return p.match(decl, code)
	}
	return "", 0, false
}

func (p *Parser) match(decl *sitter.Node, code []byte) (string, int, bool) {
	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(p.query, decl)

	m, found := qc.NextMatch()
	if !found {
		return "", 0, false
	}

	var name string
	var params *sitter.Node
	for _, c := range m.Captures {
		switch p.query.CaptureNameForId(c.Index) {
		case "name":
			name = c.Node.Content(code)
		case "params":
			params = c.Node
		}
	}
	if name == "" || params == nil {
		return "", 0, false
	}
	return name, countParams(params), true
}

func countParams(params *sitter.Node) int {
	n := 0
	for i := 0; i < int(params.NamedChildCount()); i++ {
		if params.NamedChild(i).Type() == "comment" {
			continue
		}
		n++
	}
	return n
}
