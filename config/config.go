package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	DefaultQuality = 85
	MinQuality     = 1
	MaxQuality     = 100
)

// Config represents the application configuration
type Config struct {
	Images    ImagesConfig    `yaml:"images"`
	Documents DocumentsConfig `yaml:"documents"`
	Watch     WatchConfig     `yaml:"watch"`
}

type ImagesConfig struct {
	SourceDir  string   `yaml:"source_dir"`
	DestDir    string   `yaml:"dest_dir"`
	Quality    int      `yaml:"quality"`
	Extensions []string `yaml:"extensions"`
}

type DocumentsConfig struct {
	RootDir       string   `yaml:"root_dir"`
	Extension     string   `yaml:"extension"`
	ExcludeDirs   []string `yaml:"exclude_dirs"`
	ImagesDir     string   `yaml:"images_dir"`
	EpubImagesDir string   `yaml:"epub_images_dir"`
	CheckImages   bool     `yaml:"check_images"`
}

type WatchConfig struct {
	DebounceMS int `yaml:"debounce_ms"`
}

// Default returns the layout the book build expects when no config file is given.
func Default() *Config {
	return &Config{
		Images: ImagesConfig{
			SourceDir:  "images",
			DestDir:    "epub_images",
			Quality:    DefaultQuality,
			Extensions: []string{".png", ".jpg", ".jpeg", ".gif", ".bmp", ".tiff", ".tif", ".webp"},
		},
		Documents: DocumentsConfig{
			RootDir:       ".",
			Extension:     ".qmd",
			ExcludeDirs:   []string{"docs", "print-build"},
			ImagesDir:     "images",
			EpubImagesDir: "epub_images",
		},
		Watch: WatchConfig{
			DebounceMS: 500,
		},
	}
}

// Load reads and parses the configuration file on top of the defaults.
// An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// normalize lower-cases extensions and makes sure they carry a leading dot
func (c *Config) normalize() {
	for i, ext := range c.Images.Extensions {
		c.Images.Extensions[i] = normalizeExt(ext)
	}
	c.Documents.Extension = normalizeExt(c.Documents.Extension)
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// Validate checks if required configuration fields are set
func (c *Config) Validate() error {
	if c.Images.SourceDir == "" {
		return fmt.Errorf("images.source_dir is required")
	}
	if c.Images.DestDir == "" {
		return fmt.Errorf("images.dest_dir is required")
	}
	if err := ValidateQuality(c.Images.Quality); err != nil {
		return fmt.Errorf("images.quality: %w", err)
	}
	if len(c.Images.Extensions) == 0 {
		return fmt.Errorf("images.extensions must not be empty")
	}
	if c.Documents.RootDir == "" {
		return fmt.Errorf("documents.root_dir is required")
	}
	if c.Documents.Extension == "" {
		return fmt.Errorf("documents.extension is required")
	}
	if c.Documents.ImagesDir == "" || c.Documents.EpubImagesDir == "" {
		return fmt.Errorf("documents.images_dir and documents.epub_images_dir are required")
	}
	if c.Watch.DebounceMS < 0 {
		return fmt.Errorf("watch.debounce_ms must not be negative")
	}
	return nil
}

// ValidateQuality rejects JPEG qualities outside 1-100 instead of clamping them
func ValidateQuality(q int) error {
	if q < MinQuality || q > MaxQuality {
		return fmt.Errorf("quality %d out of range %d-%d", q, MinQuality, MaxQuality)
	}
	return nil
}
