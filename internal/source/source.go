// Package source provides the knowledge documents the indexer reads.
package source

import (
	"context"
	"errors"
	"path"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ErrNotFound is returned by Fetch for a path the source does not hold.
var ErrNotFound = errors.New("document not found")

// Document is one knowledge file.
type Document struct {
	Path    string // Slash-separated path relative to the source root
	Title   string // Optional; derived from content when empty
	Content string
	URL     string // Where the document can be read, if anywhere
	Authors []string

	// Curated annotations. Zero values are derived from the content instead.
	Specialty   string
	Keywords    []string
	Credibility float64
}

// Source lists and fetches knowledge documents.
type Source interface {
	// Name identifies the source in logs and metadata.
	Name() string
	// Revision changes whenever the content of the source changes.
	Revision(ctx context.Context) (string, error)
	// List returns every document path, sorted.
	List(ctx context.Context) ([]string, error)
	Fetch(ctx context.Context, path string) (*Document, error)
}

// Extensions are the file types indexed from local directories and repositories.
var Extensions = []string{".md", ".markdown", ".txt"}

// IsKnowledgeFile reports whether name has an indexed extension.
func IsKnowledgeFile(name string) bool {
	ext := strings.ToLower(path.Ext(name))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// IsMarkdown reports whether name is a markdown file.
func IsMarkdown(name string) bool {
	ext := strings.ToLower(path.Ext(name))
	return ext == ".md" || ext == ".markdown"
}

// TitleFromPath turns "cardiology/heart_failure.md" into "Heart Failure".
func TitleFromPath(p string) string {
	base := strings.TrimSuffix(path.Base(p), path.Ext(p))
	words := strings.FieldsFunc(base, func(r rune) bool {
		return r == '_' || r == '-' || r == ' '
	})
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}
