package common

import (
	"fmt"
	"os"
	"path/filepath"
)

// Document represents a text source file loaded for in-place rewriting
type Document struct {
	Path    string // Path as found on disk
	RelPath string // Path relative to the project root, for reporting

	Content string

	mode os.FileMode
}

// ReadDocument reads a document and records its path relative to root
func ReadDocument(root, path string) (*Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}

	return &Document{
		Path:    path,
		RelPath: filepath.ToSlash(rel),
		Content: string(data),
		mode:    info.Mode().Perm(),
	}, nil
}

// Write replaces the document content on disk, keeping its permissions
func (d *Document) Write(content string) error {
	mode := d.mode
	if mode == 0 {
		mode = 0644
	}

	if err := os.WriteFile(d.Path, []byte(content), mode); err != nil {
		return fmt.Errorf("failed to write %s: %w", d.Path, err)
	}

	d.Content = content
	return nil
}
