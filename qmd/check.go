package qmd

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"epubprep/common"
)

// MissingImage is an image reference whose target file does not exist
type MissingImage struct {
	Document    string // document path relative to the root
	Destination string // destination as written in the markdown
	Resolved    string // filesystem path that was checked
}

// CheckImages parses documents and reports references to images/ or
// epub_images/ whose files are missing. It never modifies documents.
func (r *Rewriter) CheckImages(docs []string) ([]MissingImage, error) {
	md := goldmark.New()

	var missing []MissingImage
	for _, path := range docs {
		doc, err := common.ReadDocument(r.cfg.RootDir, path)
		if err != nil {
			return missing, err
		}

		source := []byte(doc.Content)
		root := md.Parser().Parse(text.NewReader(source))

		err = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
			if !entering {
				return ast.WalkContinue, nil
			}
			img, ok := n.(*ast.Image)
			if !ok {
				return ast.WalkContinue, nil
			}

			dest := string(img.Destination)
			resolved, tracked := r.resolveImage(dest)
			if !tracked {
				return ast.WalkContinue, nil
			}
			if _, err := os.Stat(resolved); os.IsNotExist(err) {
				missing = append(missing, MissingImage{
					Document:    doc.RelPath,
					Destination: dest,
					Resolved:    resolved,
				})
			}
			return ast.WalkContinue, nil
		})
		if err != nil {
			return missing, fmt.Errorf("failed to walk %s: %w", path, err)
		}
	}

	return missing, nil
}

// resolveImage maps a root-relative image destination to a file below the
// root. The second result is false for destinations outside the image dirs.
func (r *Rewriter) resolveImage(dest string) (string, bool) {
	rel := strings.TrimPrefix(dest, "/")
	if unescaped, err := url.PathUnescape(rel); err == nil {
		rel = unescaped
	}

	for _, dir := range []string{r.cfg.ImagesDir, r.cfg.EpubImagesDir} {
		prefix := strings.Trim(filepath.ToSlash(dir), "/") + "/"
		if strings.HasPrefix(rel, prefix) {
			return filepath.Join(r.cfg.RootDir, filepath.FromSlash(rel)), true
		}
	}

	return "", false
}
