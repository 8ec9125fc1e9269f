package watcher

import (
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"epubprep/config"
)

// Rewriter is the document rewriter the watcher drives
type Rewriter interface {
	Root() string
	IsDocument(path string) bool
	IsExcluded(rel string) bool
	ProcessFile(path string) (int, error)
}

// Watcher monitors the document tree and rewrites documents as they change
type Watcher struct {
	rewriter Rewriter
	debounce time.Duration
	watcher  *fsnotify.Watcher
	events   chan Event
	ready    chan fsnotify.Event
	done     chan struct{}
	loopDone chan struct{}
	started  bool
	stopOnce sync.Once
	stopErr  error
}

// Event represents a processed document change
type Event struct {
	Type         EventType
	FilePath     string
	Replacements int
	Err          error
}

// EventType represents the type of file event
type EventType int

const (
	EventCreated EventType = iota
	EventModified
)

func (t EventType) String() string {
	switch t {
	case EventCreated:
		return "created"
	case EventModified:
		return "modified"
	default:
		return "unknown"
	}
}

// New creates a new document watcher
func New(cfg *config.Config, rewriter Rewriter) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &Watcher{
		rewriter: rewriter,
		debounce: time.Duration(cfg.Watch.DebounceMS) * time.Millisecond,
		watcher:  fsWatcher,
		events:   make(chan Event, 100),
		ready:    make(chan fsnotify.Event, 100),
		done:     make(chan struct{}),
		loopDone: make(chan struct{}),
	}, nil
}

// Start adds every non-excluded directory below the root and begins
// processing events
func (w *Watcher) Start() error {
	if err := w.addTree(w.rewriter.Root()); err != nil {
		return err
	}

	w.started = true
	go w.processEvents()

	return nil
}

// addTree watches dir and all of its subdirectories that are not excluded
func (w *Watcher) addTree(dir string) error {
	root := w.rewriter.Root()

	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if rel != "." && w.rewriter.IsExcluded(rel) {
			return filepath.SkipDir
		}

		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("failed to watch folder %s: %w", path, err)
		}
		log.Printf("Watching folder: %s", path)
		return nil
	})
}

// processEvents filters fsnotify events and debounces them per file.
// Timers only hand the event back to this loop, so processing stays sequential.
// The loop is the only sender on events and closes it on exit.
func (w *Watcher) processEvents() {
	defer close(w.loopDone)
	defer close(w.events)

	pending := make(map[string]*time.Timer)

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			if event.Op&fsnotify.Create == fsnotify.Create && w.isNewDir(event.Name) {
				if err := w.addTree(event.Name); err != nil {
					log.Printf("Failed to watch new folder: %v", err)
				}
				continue
			}

			if !w.relevant(event) {
				continue
			}

			if timer, exists := pending[event.Name]; exists {
				timer.Stop()
			}

			ev := event
			pending[event.Name] = time.AfterFunc(w.debounce, func() {
				select {
				case w.ready <- ev:
				case <-w.done:
				}
			})

		case event := <-w.ready:
			delete(pending, event.Name)
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("Watcher error: %v", err)

		case <-w.done:
			for _, timer := range pending {
				timer.Stop()
			}
			return
		}
	}
}

func (w *Watcher) isNewDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// relevant reports whether an event concerns a document that may need rewriting
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return false
	}

	// Skip editor temp files
	if strings.HasPrefix(filepath.Base(event.Name), ".") {
		return false
	}

	if !w.rewriter.IsDocument(event.Name) {
		return false
	}

	rel, err := filepath.Rel(w.rewriter.Root(), event.Name)
	if err != nil {
		return false
	}
	return !w.rewriter.IsExcluded(rel)
}

// handleEvent rewrites a single changed document
func (w *Watcher) handleEvent(event fsnotify.Event) {
	eventType := EventModified
	if event.Op&fsnotify.Create == fsnotify.Create {
		eventType = EventCreated
	}

	n, err := w.rewriter.ProcessFile(event.Name)
	if err != nil {
		log.Printf("Failed to rewrite %s: %v", event.Name, err)
	} else if n > 0 {
		log.Printf("Rewrote %d image(s) in %s", n, event.Name)
	}

	select {
	case w.events <- Event{Type: eventType, FilePath: event.Name, Replacements: n, Err: err}:
	default:
		log.Printf("Event channel full, dropping event for %s", event.Name)
	}
}

// Events returns the event channel
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Stop stops the watcher and closes the event channel. It is safe to call
// more than once.
func (w *Watcher) Stop() error {
	w.stopOnce.Do(func() {
		close(w.done)
		w.stopErr = w.watcher.Close()
		if w.started {
			<-w.loopDone
		} else {
			close(w.events)
		}
	})
	return w.stopErr
}
