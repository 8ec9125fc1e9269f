package watcher

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"epubprep/config"
	"epubprep/qmd"
)

func newTestWatcher(t *testing.T, root string) *Watcher {
	t.Helper()
	cfg := config.Default()
	cfg.Documents.RootDir = root
	cfg.Watch.DebounceMS = 50

	w, err := New(cfg, qmd.New(cfg, &bytes.Buffer{}))
	if err != nil {
		t.Fatalf("Failed to create watcher: %v", err)
	}
	t.Cleanup(func() { w.Stop() })

	if err := w.Start(); err != nil {
		t.Fatalf("Failed to start watcher: %v", err)
	}
	return w
}

// waitForRewrite returns the first event that rewrote something
func waitForRewrite(t *testing.T, w *Watcher, timeout time.Duration) Event {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case event := <-w.Events():
			if event.Err != nil {
				t.Fatalf("Unexpected rewrite error: %v", event.Err)
			}
			if event.Replacements > 0 {
				return event
			}
		case <-deadline:
			t.Fatal("Timeout waiting for rewrite event")
		}
	}
}

func TestWatcherRewritesNewDocument(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "chapters"), 0755); err != nil {
		t.Fatalf("Failed to create folder: %v", err)
	}

	w := newTestWatcher(t, root)

	testFile := filepath.Join(root, "chapters", "intro.qmd")
	if err := os.WriteFile(testFile, []byte("![A cat](images/cat.png){.border}\n"), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	event := waitForRewrite(t, w, 3*time.Second)
	if event.FilePath != testFile {
		t.Errorf("Expected filepath %s, got %s", testFile, event.FilePath)
	}
	if event.Replacements != 1 {
		t.Errorf("Expected 1 replacement, got %d", event.Replacements)
	}

	data, err := os.ReadFile(testFile)
	if err != nil {
		t.Fatalf("Failed to read back: %v", err)
	}
	if !strings.Contains(string(data), "epub_images/cat.jpg") {
		t.Errorf("Document was not rewritten:\n%s", data)
	}
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "docs"), 0755); err != nil {
		t.Fatalf("Failed to create folder: %v", err)
	}

	w := newTestWatcher(t, root)

	content := []byte("![A cat](images/cat.png)\n")
	for _, rel := range []string{"notes.md", ".hidden.qmd", "docs/built.qmd"} {
		if err := os.WriteFile(filepath.Join(root, filepath.FromSlash(rel)), content, 0644); err != nil {
			t.Fatalf("Failed to create %s: %v", rel, err)
		}
	}

	select {
	case event := <-w.Events():
		t.Errorf("Should not receive event, got: %+v", event)
	case <-time.After(500 * time.Millisecond):
		// Expected - no event received
	}

	for _, rel := range []string{"notes.md", ".hidden.qmd", "docs/built.qmd"} {
		data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
		if err != nil {
			t.Fatalf("Failed to read %s: %v", rel, err)
		}
		if string(data) != string(content) {
			t.Errorf("%s should not be rewritten", rel)
		}
	}
}

func TestWatcherPicksUpNewFolders(t *testing.T) {
	root := t.TempDir()
	w := newTestWatcher(t, root)

	dir := filepath.Join(root, "appendix")
	if err := os.Mkdir(dir, 0755); err != nil {
		t.Fatalf("Failed to create folder: %v", err)
	}

	// Give the event loop time to register the new folder
	time.Sleep(200 * time.Millisecond)

	testFile := filepath.Join(dir, "a.qmd")
	if err := os.WriteFile(testFile, []byte("![](/images/a.gif)\n"), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	event := waitForRewrite(t, w, 3*time.Second)
	if event.FilePath != testFile {
		t.Errorf("Expected filepath %s, got %s", testFile, event.FilePath)
	}
}

func TestEventTypeString(t *testing.T) {
	if EventCreated.String() != "created" || EventModified.String() != "modified" {
		t.Errorf("Unexpected names %s / %s", EventCreated, EventModified)
	}
}

func TestWatcherStopClosesEvents(t *testing.T) {
	w := newTestWatcher(t, t.TempDir())

	if err := w.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	// Second stop must not panic
	if err := w.Stop(); err != nil {
		t.Errorf("Second Stop failed: %v", err)
	}

	select {
	case _, ok := <-w.Events():
		if ok {
			t.Error("Expected event channel to be closed")
		}
	case <-time.After(time.Second):
		t.Error("Event channel was not closed after Stop")
	}
}

func TestWatcherStopBeforeStart(t *testing.T) {
	cfg := config.Default()
	cfg.Documents.RootDir = t.TempDir()

	w, err := New(cfg, qmd.New(cfg, &bytes.Buffer{}))
	if err != nil {
		t.Fatalf("Failed to create watcher: %v", err)
	}

	if err := w.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	w.Stop()

	if _, ok := <-w.Events(); ok {
		t.Error("Expected event channel to be closed")
	}
}
