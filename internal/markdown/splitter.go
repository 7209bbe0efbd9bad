// Package markdown splits knowledge documents into header-scoped sections.
package markdown

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"go.abhg.dev/goldmark/toc"
)

// splitDepth is the deepest heading level that starts a new section.
const splitDepth = 2

// Section is a part of a document under one H1/H2 heading.
type Section struct {
	Index      int    // Position in document (0, 1, 2...)
	HeaderPath string // Hierarchy: "# Asthma > ## Treatment"
	Heading    string // Innermost heading text, empty for a preamble
	Content    string // Section text WITH header path prepended
	RawContent string // Section text without heading or header path
}

// Document is a split markdown file.
type Document struct {
	Title    string // First heading of the document, empty when there is none
	Sections []Section
}

// Splitter splits markdown documents at H1 and H2 boundaries.
type Splitter struct {
	md goldmark.Markdown
}

// NewSplitter creates a splitter configured with the goldmark parser.
func NewSplitter() *Splitter {
	return &Splitter{
		md: goldmark.New(
			goldmark.WithParserOptions(
				parser.WithAutoHeadingID(),
			),
		),
	}
}

// Split parses source and returns its title and sections. Text before the
// first heading becomes a section with an empty header path. Sections with no
// body text are omitted.
func (s *Splitter) Split(source []byte) (*Document, error) {
	doc := s.md.Parser().Parse(text.NewReader(source))

	tree, err := toc.Inspect(doc, source, toc.Compact(true))
	if err != nil {
		return nil, fmt.Errorf("inspect TOC: %w", err)
	}

	out := &Document{}
	if len(tree.Items) > 0 {
		out.Title = strings.TrimSpace(string(tree.Items[0].Title))
	}

	boundaries := collectBoundaries(doc, source)

	// Preamble before the first heading.
	preambleEnd := len(source)
	if len(boundaries) > 0 {
		preambleEnd = boundaries[0].lineStart
	}
	out.addSection(nil, source[:preambleEnd])

	var open []boundary
	for i, b := range boundaries {
		for len(open) > 0 && open[len(open)-1].level >= b.level {
			open = open[:len(open)-1]
		}
		open = append(open, b)
		path := make([]string, len(open))
		for j, o := range open {
			path[j] = o.title
		}

		end := len(source)
		if i+1 < len(boundaries) {
			end = boundaries[i+1].lineStart
		}
		body := source[min(b.bodyStart, end):end]
		out.addSection(path, body)
	}

	return out, nil
}

// SplitText wraps plain text as a single untitled section.
func SplitText(content string) *Document {
	d := &Document{}
	d.addSection(nil, []byte(content))
	return d
}

func (d *Document) addSection(path []string, body []byte) {
	raw := strings.TrimSpace(string(body))
	if raw == "" {
		return
	}

	section := Section{
		Index:      len(d.Sections),
		HeaderPath: formatHeaderPath(path),
		RawContent: raw,
		Content:    raw,
	}
	if len(path) > 0 {
		section.Heading = path[len(path)-1]
		section.Content = fmt.Sprintf("%s\n\n%s", section.HeaderPath, raw)
	}
	d.Sections = append(d.Sections, section)
}

type boundary struct {
	level     int
	title     string
	lineStart int // Offset of the first byte of the heading line
	bodyStart int // Offset just past the heading
}

// collectBoundaries returns the top-level H1/H2 headings in document order.
func collectBoundaries(doc ast.Node, source []byte) []boundary {
	var out []boundary
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		heading, ok := n.(*ast.Heading)
		if !ok || heading.Level > splitDepth {
			continue
		}
		lines := heading.Lines()
		if lines.Len() == 0 {
			continue
		}
		first := lines.At(0)
		last := lines.At(lines.Len() - 1)

		bodyStart := len(source)
		if nl := bytes.IndexByte(source[last.Stop:], '\n'); nl >= 0 {
			bodyStart = last.Stop + nl + 1
		}
		lineStart := bytes.LastIndexByte(source[:first.Start], '\n') + 1
		// Setext headings carry their underline on the next line.
		if !isATX(source[lineStart:]) && bodyStart < len(source) {
			if nl := bytes.IndexByte(source[bodyStart:], '\n'); nl >= 0 {
				bodyStart += nl + 1
			} else {
				bodyStart = len(source)
			}
		}

		out = append(out, boundary{
			level:     heading.Level,
			title:     headingText(heading, source),
			lineStart: lineStart,
			bodyStart: bodyStart,
		})
	}
	return out
}

func isATX(line []byte) bool {
	return bytes.HasPrefix(bytes.TrimLeft(line, " "), []byte("#"))
}

// headingText concatenates the literal text under a heading, dropping inline
// markup such as emphasis and links.
func headingText(heading *ast.Heading, source []byte) string {
	var b strings.Builder
	_ = ast.Walk(heading, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := n.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(source))
			if t.SoftLineBreak() || t.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(t.Value)
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(b.String())
}

// formatHeaderPath builds a header hierarchy string.
// Example: ["Asthma", "Treatment"] -> "# Asthma > ## Treatment"
func formatHeaderPath(path []string) string {
	if len(path) == 0 {
		return ""
	}

	parts := make([]string, len(path))
	for i, segment := range path {
		parts[i] = fmt.Sprintf("%s %s", strings.Repeat("#", i+1), segment)
	}
	return strings.Join(parts, " > ")
}
