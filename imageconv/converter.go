package imageconv

// Image converter for shrinking book images before the EPUB build
//
// Responsibilities:
// 1. Walk the source root one group subfolder at a time
// 2. Decode every supported raster image
// 3. Flatten transparency and palettes onto white, coerce the rest to full color
// 4. Encode as JPEG at the configured quality into the mirrored destination tree
// 5. Report per-file and aggregate size changes

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"epubprep/common"
	"epubprep/config"
)

// Result is the outcome of converting a single image
type Result struct {
	Group    string
	Src      string
	Dst      string
	Mode     string // color mode of the decoded source
	SrcBytes int64
	DstBytes int64
	Err      error
}

// OK reports whether the conversion succeeded
func (r Result) OK() bool {
	return r.Err == nil
}

// Summary aggregates results over a whole run
type Summary struct {
	Converted int
	Failed    int
	SrcBytes  int64
	DstBytes  int64
}

// ReductionPercent returns the aggregate size reduction of converted images
func (s Summary) ReductionPercent() float64 {
	return common.ReductionPercent(s.SrcBytes, s.DstBytes)
}

// Summarize reduces per-file results into a Summary. Failed files do not
// contribute to the size totals.
func Summarize(results []Result) Summary {
	var s Summary
	for _, r := range results {
		if !r.OK() {
			s.Failed++
			continue
		}
		s.Converted++
		s.SrcBytes += r.SrcBytes
		s.DstBytes += r.DstBytes
	}
	return s
}

// Converter converts a tree of grouped images to JPEG
type Converter struct {
	cfg  config.ImagesConfig
	exts map[string]bool
	out  io.Writer
}

// New creates a converter. Progress and the summary are written to out.
func New(cfg *config.Config, out io.Writer) *Converter {
	exts := make(map[string]bool, len(cfg.Images.Extensions))
	for _, ext := range cfg.Images.Extensions {
		exts[strings.ToLower(ext)] = true
	}

	return &Converter{
		cfg:  cfg.Images,
		exts: exts,
		out:  out,
	}
}

// IsSupported reports whether name has one of the configured image extensions
func (c *Converter) IsSupported(name string) bool {
	return c.exts[strings.ToLower(filepath.Ext(name))]
}

// DestName returns the JPEG file name for a source image name
func DestName(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name)) + ".jpg"
}

// Run converts every supported image in every group subfolder of the source
// root. Individual failures are recorded in the results and never stop the
// batch; an error is only returned when the source root cannot be listed.
func (c *Converter) Run() (Summary, []Result, error) {
	fmt.Fprintf(c.out, "Converting images to JPEG (quality=%d)\n", c.cfg.Quality)
	fmt.Fprintf(c.out, "Source: %s\n", c.cfg.SourceDir)
	fmt.Fprintf(c.out, "Destination: %s\n", c.cfg.DestDir)
	fmt.Fprintln(c.out, strings.Repeat("-", 60))

	groups, err := os.ReadDir(c.cfg.SourceDir)
	if err != nil {
		return Summary{}, nil, fmt.Errorf("failed to list source directory: %w", err)
	}

	var results []Result
	for _, group := range groups {
		if !group.IsDir() {
			continue
		}
		results = append(results, c.convertGroup(group.Name())...)
	}

	summary := Summarize(results)
	c.printSummary(summary)

	return summary, results, nil
}

// convertGroup converts the images directly inside one group subfolder
func (c *Converter) convertGroup(group string) []Result {
	srcDir := filepath.Join(c.cfg.SourceDir, group)
	dstDir := filepath.Join(c.cfg.DestDir, group)

	fmt.Fprintf(c.out, "\n%s/\n", group)

	if err := os.MkdirAll(dstDir, 0755); err != nil {
		log.Printf("Failed to create destination folder %s: %v", dstDir, err)
		fmt.Fprintf(c.out, "  ERROR creating %s: %v\n", dstDir, err)
		return []Result{{Group: group, Src: srcDir, Dst: dstDir, Err: err}}
	}

	entries, err := os.ReadDir(srcDir)
	if err != nil {
		log.Printf("Failed to list %s: %v", srcDir, err)
		fmt.Fprintf(c.out, "  ERROR reading %s: %v\n", srcDir, err)
		return []Result{{Group: group, Src: srcDir, Dst: dstDir, Err: err}}
	}

	var results []Result
	for _, entry := range entries {
		if entry.IsDir() || !c.IsSupported(entry.Name()) {
			continue
		}

		src := filepath.Join(srcDir, entry.Name())
		dst := filepath.Join(dstDir, DestName(entry.Name()))

		res := ConvertFile(src, dst, c.cfg.Quality)
		res.Group = group
		c.printResult(res)
		results = append(results, res)
	}

	return results
}

// ConvertFile converts one image to a JPEG at dst. The returned Result carries
// the error instead of the function failing.
func ConvertFile(src, dst string, quality int) Result {
	res := Result{Src: src, Dst: dst}

	info, err := os.Stat(src)
	if err != nil {
		res.Err = fmt.Errorf("stat source: %w", err)
		return res
	}
	res.SrcBytes = info.Size()

	data, err := os.ReadFile(src)
	if err != nil {
		res.Err = fmt.Errorf("read source: %w", err)
		return res
	}

	img, mode, err := decodeImage(data)
	if err != nil {
		res.Err = fmt.Errorf("decode: %w", err)
		return res
	}
	res.Mode = mode

	if err := writeJPEG(dst, flattenMode(img, mode), quality); err != nil {
		res.Err = err
		return res
	}

	out, err := os.Stat(dst)
	if err != nil {
		res.Err = fmt.Errorf("stat output: %w", err)
		return res
	}
	res.DstBytes = out.Size()

	return res
}

func (c *Converter) printResult(res Result) {
	if !res.OK() {
		log.Printf("Failed to convert %s: %v", res.Src, res.Err)
		fmt.Fprintf(c.out, "  ERROR converting %s: %v\n", res.Src, res.Err)
		return
	}

	fmt.Fprintf(c.out, "  %s -> %s: %s -> %s (%+.1f%%)\n",
		filepath.Base(res.Src),
		filepath.Base(res.Dst),
		common.FormatKB(res.SrcBytes),
		common.FormatKB(res.DstBytes),
		common.ChangePercent(res.SrcBytes, res.DstBytes))
}

func (c *Converter) printSummary(s Summary) {
	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out, strings.Repeat("=", 60))
	fmt.Fprintln(c.out, "Summary:")
	fmt.Fprintf(c.out, "  Converted: %d images\n", s.Converted)
	if s.Failed > 0 {
		fmt.Fprintf(c.out, "  Failed: %d images\n", s.Failed)
	}
	fmt.Fprintf(c.out, "  Original total: %s\n", common.FormatMB(s.SrcBytes))
	fmt.Fprintf(c.out, "  JPEG total: %s\n", common.FormatMB(s.DstBytes))
	fmt.Fprintf(c.out, "  Reduction: %.1f%%\n", s.ReductionPercent())
	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out, "To adjust quality, run: convert-images <quality>")
	fmt.Fprintf(c.out, "Quality range: %d-%d (higher = better quality, larger file)\n", config.MinQuality, config.MaxQuality)
}
