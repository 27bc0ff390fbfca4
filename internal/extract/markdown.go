package extract

import (
	"fmt"
	"os"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownReader renders markdown to plain text using the goldmark AST.
// Headings, paragraphs, list items, code blocks and table rows each end
// with a newline; blocks are separated by a blank line.
type MarkdownReader struct {
	parser goldmark.Markdown
}

// NewMarkdownReader creates a markdown reader with table support.
func NewMarkdownReader() *MarkdownReader {
	return &MarkdownReader{
		parser: goldmark.New(
			goldmark.WithExtensions(extension.Table),
		),
	}
}

func (r *MarkdownReader) CanRead(path string) bool {
	return hasExt(path, ".md", ".markdown")
}

func (r *MarkdownReader) ReadText(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading markdown file: %w", err)
	}
	return r.Text(content), nil
}

// Text returns the plain text of markdown content.
func (r *MarkdownReader) Text(content []byte) string {
	doc := r.parser.Parser().Parse(text.NewReader(content))

	var b strings.Builder
	block := func() {
		s := b.String()
		if len(s) > 0 && !strings.HasSuffix(s, "\n\n") {
			if strings.HasSuffix(s, "\n") {
				b.WriteString("\n")
			} else {
				b.WriteString("\n\n")
			}
		}
	}
	line := func() {
		s := b.String()
		if len(s) > 0 && !strings.HasSuffix(s, "\n") {
			b.WriteString("\n")
		}
	}

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		switch node := n.(type) {
		case *ast.Heading, *ast.Paragraph, *ast.List, *extast.Table:
			block()
		case *ast.ListItem:
			line()
		case *ast.Text:
			b.Write(node.Segment.Value(content))
			if node.SoftLineBreak() || node.HardLineBreak() {
				b.WriteString("\n")
			}
		case *ast.String:
			b.Write(node.Value)
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			block()
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				b.Write(seg.Value(content))
			}
			return ast.WalkSkipChildren, nil
		case *extast.TableHeader, *extast.TableRow:
			line()
			b.WriteString(tableRowText(n, content))
			b.WriteString("\n")
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})

	return strings.TrimSpace(b.String())
}

// tableRowText joins the cells of a table row with pipe separators.
func tableRowText(row ast.Node, content []byte) string {
	var cells []string
	for c := row.FirstChild(); c != nil; c = c.NextSibling() {
		cells = append(cells, inlineText(c, content))
	}
	return strings.Join(cells, " | ")
}

// inlineText collects the text below n.
func inlineText(n ast.Node, content []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch v := node.(type) {
		case *ast.Text:
			b.Write(v.Segment.Value(content))
		case *ast.String:
			b.Write(v.Value)
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(b.String())
}
