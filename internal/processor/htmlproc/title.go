package htmlproc

import (
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/ast"
	"github.com/gomarkdown/markdown/parser"
)

// extractTitle walks the parsed Markdown preview's AST looking for the
// first level-1 heading, the same node-by-node AST-walk technique the
// teacher's RAG-normalization stage used to validate document
// structure, repurposed here to pull a title for the Codex Entry's
// hints[] instead of a structural constraint check.
func extractTitle(mdContent []byte) string {
	p := parser.NewWithExtensions(parser.CommonExtensions)
	doc := markdown.Parse(mdContent, p)

	var title string
	ast.Walk(doc, ast.WalkFunc(func(node ast.Node, entering bool) ast.WalkStatus {
		if !entering || title != "" {
			return ast.GoToNext
		}
		heading, ok := node.(*ast.Heading)
		if !ok || heading.Level != 1 {
			return ast.GoToNext
		}
		title = headingText(heading)
		return ast.SkipChildren
	}))
	return strings.TrimSpace(title)
}

// headingText flattens a heading node's inline children into plain text.
func headingText(heading *ast.Heading) string {
	var b strings.Builder
	ast.Walk(heading, ast.WalkFunc(func(node ast.Node, entering bool) ast.WalkStatus {
		if !entering {
			return ast.GoToNext
		}
		switch n := node.(type) {
		case *ast.Text:
			b.Write(n.Literal)
		case *ast.Code:
			b.Write(n.Literal)
		}
		return ast.GoToNext
	}))
	return b.String()
}
