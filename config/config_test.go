package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfig(t *testing.T) {
	// Create temp config file
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "config.yaml")

	configContent := `
images:
  source_dir: "book/images"
  dest_dir: "book/epub_images"
  quality: 70
  extensions: ["PNG", ".gif", "webp"]

documents:
  root_dir: "book"
  extension: "qmd"
  exclude_dirs:
    - _book
  check_images: true

watch:
  debounce_ms: 250
`

	if err := os.WriteFile(configFile, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to create test config: %v", err)
	}

	cfg, err := Load(configFile)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Images.SourceDir != "book/images" {
		t.Errorf("Expected source_dir 'book/images', got '%s'", cfg.Images.SourceDir)
	}

	if cfg.Images.Quality != 70 {
		t.Errorf("Expected quality 70, got %d", cfg.Images.Quality)
	}

	wantExt := []string{".png", ".gif", ".webp"}
	if len(cfg.Images.Extensions) != len(wantExt) {
		t.Fatalf("Expected %d extensions, got %d", len(wantExt), len(cfg.Images.Extensions))
	}
	for i, ext := range wantExt {
		if cfg.Images.Extensions[i] != ext {
			t.Errorf("Extension %d: expected '%s', got '%s'", i, ext, cfg.Images.Extensions[i])
		}
	}

	if cfg.Documents.Extension != ".qmd" {
		t.Errorf("Expected extension '.qmd', got '%s'", cfg.Documents.Extension)
	}

	if len(cfg.Documents.ExcludeDirs) != 1 || cfg.Documents.ExcludeDirs[0] != "_book" {
		t.Errorf("Expected exclude_dirs [_book], got %v", cfg.Documents.ExcludeDirs)
	}

	// Fields absent from the file keep their defaults
	if cfg.Documents.EpubImagesDir != "epub_images" {
		t.Errorf("Expected default epub_images_dir, got '%s'", cfg.Documents.EpubImagesDir)
	}

	if !cfg.Documents.CheckImages {
		t.Error("Expected check_images to be true")
	}

	if cfg.Watch.DebounceMS != 250 {
		t.Errorf("Expected debounce 250, got %d", cfg.Watch.DebounceMS)
	}
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Images.Quality != DefaultQuality {
		t.Errorf("Expected default quality %d, got %d", DefaultQuality, cfg.Images.Quality)
	}
	if cfg.Documents.Extension != ".qmd" {
		t.Errorf("Expected '.qmd', got '%s'", cfg.Documents.Extension)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Expected error for missing config file")
	}
}

func TestLoadRejectsBadQuality(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configFile, []byte("images:\n  quality: 150\n"), 0644); err != nil {
		t.Fatalf("Failed to create test config: %v", err)
	}
	if _, err := Load(configFile); err == nil {
		t.Error("Expected error for quality 150")
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{
			name:    "defaults",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "missing source_dir",
			mutate:  func(c *Config) { c.Images.SourceDir = "" },
			wantErr: true,
		},
		{
			name:    "quality zero",
			mutate:  func(c *Config) { c.Images.Quality = 0 },
			wantErr: true,
		},
		{
			name:    "quality 100",
			mutate:  func(c *Config) { c.Images.Quality = 100 },
			wantErr: false,
		},
		{
			name:    "no extensions",
			mutate:  func(c *Config) { c.Images.Extensions = nil },
			wantErr: true,
		},
		{
			name:    "missing document extension",
			mutate:  func(c *Config) { c.Documents.Extension = "" },
			wantErr: true,
		},
		{
			name:    "negative debounce",
			mutate:  func(c *Config) { c.Watch.DebounceMS = -1 },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
