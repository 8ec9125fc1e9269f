package qmd

import (
	"fmt"
	"regexp"
	"strings"
)

// epubFencePattern matches the opening line of an epub conditional block
var epubFencePattern = regexp.MustCompile(
	`^:{3,}\s*\{\.content-(?:visible|hidden) when-format="epub"\}\s*$`,
)

// fenceOpenPattern matches any fenced div opening line, fenceClosePattern a
// line of colons only
var (
	fenceOpenPattern  = regexp.MustCompile(`^:{3,}\s*\S`)
	fenceClosePattern = regexp.MustCompile(`^:{3,}\s*$`)
)

var rasterExtPattern = regexp.MustCompile(`(?i)\.(png|jpe?g|gif)$`)

// Layout holds the image directory names references are rewritten between
type Layout struct {
	ImagesDir     string
	EpubImagesDir string

	pattern *regexp.Regexp
}

// NewLayout compiles the reference pattern for images below imagesDir.
// The pattern captures alt text, leading slash, path and attributes.
func NewLayout(imagesDir, epubImagesDir string) *Layout {
	imagesDir = trimDir(imagesDir)
	epubImagesDir = trimDir(epubImagesDir)

	return &Layout{
		ImagesDir:     imagesDir,
		EpubImagesDir: epubImagesDir,
		pattern: regexp.MustCompile(
			`!\[([^\]]*)\]\((/?)` + regexp.QuoteMeta(imagesDir) + `/([^)]+\.(?i:png|jpg|jpeg|gif))\)(\{[^}]*\})?`,
		),
	}
}

func trimDir(dir string) string {
	return strings.Trim(strings.ReplaceAll(dir, "\\", "/"), "/")
}

// DefaultLayout rewrites images/ references to epub_images/
var DefaultLayout = NewLayout("images", "epub_images")

// Reference is a single image reference found in a document
type Reference struct {
	Alt          string
	LeadingSlash string // "/" or ""
	Dir          string // images directory the path is below
	Path         string // path below Dir, original case
	Attributes   string // "{...}" or ""

	Start, End int // byte span of the match
}

// Original returns the markdown the reference was parsed from
func (r Reference) Original() string {
	return fmt.Sprintf("![%s](%s%s/%s)%s", r.Alt, r.LeadingSlash, r.Dir, r.Path, r.Attributes)
}

// JPEGPath swaps a png, jpeg or gif extension for .jpg, matching the file
// names the image converter writes
func JPEGPath(path string) string {
	return rasterExtPattern.ReplaceAllString(path, ".jpg")
}

// ConditionalBlock renders the epub-visible and epub-hidden pair for ref
func (l *Layout) ConditionalBlock(ref Reference) string {
	var b strings.Builder

	b.WriteString("::: {.content-visible when-format=\"epub\"}\n")
	fmt.Fprintf(&b, "![%s](%s%s/%s)%s\n", ref.Alt, ref.LeadingSlash, l.EpubImagesDir, JPEGPath(ref.Path), ref.Attributes)
	b.WriteString(":::\n\n")
	b.WriteString("::: {.content-hidden when-format=\"epub\"}\n")
	fmt.Fprintf(&b, "![%s](%s%s/%s)%s\n", ref.Alt, ref.LeadingSlash, l.ImagesDir, ref.Path, ref.Attributes)
	b.WriteString(":::")

	return b.String()
}

// FindReferences returns the rewritable image references in content, in
// order. References already inside an epub conditional block are skipped.
func (l *Layout) FindReferences(content string) []Reference {
	guarded := guardedSpans(content)

	var refs []Reference
	for _, m := range l.pattern.FindAllStringSubmatchIndex(content, -1) {
		if insideAny(m[0], guarded) {
			continue
		}

		ref := Reference{
			Alt:          content[m[2]:m[3]],
			LeadingSlash: content[m[4]:m[5]],
			Dir:          l.ImagesDir,
			Path:         content[m[6]:m[7]],
			Start:        m[0],
			End:          m[1],
		}
		if m[8] >= 0 {
			ref.Attributes = content[m[8]:m[9]]
		}
		refs = append(refs, ref)
	}

	return refs
}

// Rewrite replaces every rewritable reference in content with its
// conditional block and returns the new content and the number of
// replacements. Everything outside the matched spans is copied unchanged.
func (l *Layout) Rewrite(content string) (string, int) {
	refs := l.FindReferences(content)
	if len(refs) == 0 {
		return content, 0
	}

	var b strings.Builder
	b.Grow(len(content) + len(refs)*160)

	last := 0
	for _, ref := range refs {
		b.WriteString(content[last:ref.Start])
		b.WriteString(l.ConditionalBlock(ref))
		last = ref.End
	}
	b.WriteString(content[last:])

	return b.String(), len(refs)
}

// ConditionalBlock renders ref with the default layout
func ConditionalBlock(ref Reference) string {
	return DefaultLayout.ConditionalBlock(ref)
}

// FindReferences finds references with the default layout
func FindReferences(content string) []Reference {
	return DefaultLayout.FindReferences(content)
}

// Rewrite rewrites content with the default layout
func Rewrite(content string) (string, int) {
	return DefaultLayout.Rewrite(content)
}

// guardedSpans returns the byte spans of epub conditional blocks, from the
// opening fence to the end of its matching closing fence. Nested fenced divs
// are tracked by depth. An unclosed block runs to the end of content.
func guardedSpans(content string) [][]int {
	var spans [][]int

	start, depth := -1, 0
	for pos := 0; pos < len(content); {
		end := strings.IndexByte(content[pos:], '\n')
		next := len(content)
		if end >= 0 {
			next = pos + end + 1
		}
		line := strings.TrimRight(content[pos:next], "\r\n")

		switch {
		case depth == 0:
			if epubFencePattern.MatchString(line) {
				start, depth = pos, 1
			}
		case fenceClosePattern.MatchString(line):
			depth--
			if depth == 0 {
				spans = append(spans, []int{start, next})
			}
		case fenceOpenPattern.MatchString(line):
			depth++
		}

		pos = next
	}

	if depth > 0 {
		spans = append(spans, []int{start, len(content)})
	}

	return spans
}

func insideAny(pos int, spans [][]int) bool {
	for _, s := range spans {
		if pos >= s[0] && pos < s[1] {
			return true
		}
	}
	return false
}
