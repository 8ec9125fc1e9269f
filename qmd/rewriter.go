package qmd

import (
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"strings"

	"epubprep/common"
	"epubprep/config"
)

// FileReport records the replacements made in one document
type FileReport struct {
	RelPath      string
	Replacements int
}

// Report summarizes a rewriter run
type Report struct {
	Files []FileReport
}

// UpdatedFiles returns the number of documents that were written back
func (r *Report) UpdatedFiles() int {
	return len(r.Files)
}

// Replacements returns the total number of rewritten image references
func (r *Report) Replacements() int {
	total := 0
	for _, f := range r.Files {
		total += f.Replacements
	}
	return total
}

// Rewriter applies Rewrite to every document below a root directory
type Rewriter struct {
	cfg    config.DocumentsConfig
	layout *Layout
	out    io.Writer
}

// New creates a rewriter. Per-file updates and the summary are written to out.
func New(cfg *config.Config, out io.Writer) *Rewriter {
	return &Rewriter{
		cfg:    cfg.Documents,
		layout: NewLayout(cfg.Documents.ImagesDir, cfg.Documents.EpubImagesDir),
		out:    out,
	}
}

// Root returns the directory documents are discovered under
func (r *Rewriter) Root() string {
	return r.cfg.RootDir
}

// IsDocument reports whether path has the configured document extension
func (r *Rewriter) IsDocument(path string) bool {
	return strings.EqualFold(filepath.Ext(path), r.cfg.Extension)
}

// IsExcluded reports whether dir, relative to the root, is a build output
// directory that must not be touched
func (r *Rewriter) IsExcluded(rel string) bool {
	rel = filepath.ToSlash(rel)
	for _, ex := range r.cfg.ExcludeDirs {
		ex = strings.Trim(filepath.ToSlash(ex), "/")
		if ex == "" {
			continue
		}
		if rel == ex || strings.HasPrefix(rel, ex+"/") {
			return true
		}
	}
	return false
}

// Documents returns every document below the root in lexical order,
// skipping excluded directories
func (r *Rewriter) Documents() ([]string, error) {
	var docs []string

	err := filepath.WalkDir(r.cfg.RootDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(r.cfg.RootDir, path)
		if err != nil {
			return err
		}

		if d.IsDir() {
			if rel != "." && r.IsExcluded(rel) {
				return filepath.SkipDir
			}
			return nil
		}

		if r.IsDocument(path) && !r.IsExcluded(rel) {
			docs = append(docs, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", r.cfg.RootDir, err)
	}

	return docs, nil
}

// ProcessFile rewrites one document in place and returns the number of
// replacements. Documents without matches are never written.
func (r *Rewriter) ProcessFile(path string) (int, error) {
	fr, err := r.processFile(path)
	return fr.Replacements, err
}

func (r *Rewriter) processFile(path string) (FileReport, error) {
	doc, err := common.ReadDocument(r.cfg.RootDir, path)
	if err != nil {
		return FileReport{}, err
	}

	content, n := r.layout.Rewrite(doc.Content)
	if n == 0 || content == doc.Content {
		return FileReport{RelPath: doc.RelPath}, nil
	}

	if err := doc.Write(content); err != nil {
		return FileReport{RelPath: doc.RelPath}, err
	}

	fmt.Fprintf(r.out, "  Updated %s: %d image(s)\n", doc.RelPath, n)
	return FileReport{RelPath: doc.RelPath, Replacements: n}, nil
}

// Run rewrites all documents below the root. The first read or write error
// aborts the run.
func (r *Rewriter) Run() (*Report, error) {
	fmt.Fprintln(r.out, "Updating QMD files with conditional image formatting")
	fmt.Fprintln(r.out, strings.Repeat("=", 60))

	docs, err := r.Documents()
	if err != nil {
		return nil, err
	}

	report := &Report{}
	for _, path := range docs {
		fr, err := r.processFile(path)
		if err != nil {
			return report, err
		}
		if fr.Replacements > 0 {
			report.Files = append(report.Files, fr)
		}
	}

	fmt.Fprintln(r.out, strings.Repeat("=", 60))
	fmt.Fprintf(r.out, "Summary: Updated %d files with %d image references\n", report.UpdatedFiles(), report.Replacements())

	return report, nil
}
