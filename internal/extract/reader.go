// Package extract turns documents on disk into plain text.
package extract

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsupported is returned when no reader handles a file's extension.
var ErrUnsupported = errors.New("unsupported document type")

// Reader extracts the text of one kind of document.
type Reader interface {
	CanRead(path string) bool
	ReadText(path string) (string, error)
}

// Registry dispatches to the first reader that accepts a path.
type Registry struct {
	readers []Reader
}

// NewRegistry creates a registry trying readers in order.
func NewRegistry(readers ...Reader) *Registry {
	return &Registry{readers: readers}
}

// DefaultRegistry handles PDF, office documents, markdown and plain text.
func DefaultRegistry() *Registry {
	return NewRegistry(
		&DocumentReader{},
		NewMarkdownReader(),
		&TxtReader{},
	)
}

// CanRead reports whether any reader accepts path.
func (r *Registry) CanRead(path string) bool {
	for _, rd := range r.readers {
		if rd.CanRead(path) {
			return true
		}
	}
	return false
}

// ReadText extracts the text of path.
// A missing file, an unsupported extension and a failed conversion are all errors.
func (r *Registry) ReadText(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("failed to stat document: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory", path)
	}
	for _, rd := range r.readers {
		if rd.CanRead(path) {
			return rd.ReadText(path)
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupported, filepath.Ext(path))
}

func hasExt(path string, exts ...string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}
