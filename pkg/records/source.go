package records

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ritzau/thoughtgraph/pkg/logging"
	"github.com/ritzau/thoughtgraph/pkg/model"
	"github.com/ritzau/thoughtgraph/pkg/watcher"
)

// Source holds the current record collections. Readers always get a copy.
type Source struct {
	path string

	mu        sync.RWMutex
	library   *Library
	loadedAt  time.Time
	listeners []func(model.Snapshot)
}

// NewSource creates a source for a library file without loading it
func NewSource(path string) *Source {
	return &Source{path: path, library: &Library{}}
}

// NewStaticSource wraps an in-memory library, for tests and one-shot commands
func NewStaticSource(lib *Library) *Source {
	lib.normalize()
	return &Source{library: lib, loadedAt: time.Now()}
}

// Path returns the library file this source reads
func (s *Source) Path() string {
	return s.path
}

// Load reads the library file and replaces the current snapshot
func (s *Source) Load() error {
	if s.path == "" {
		return nil
	}
	lib, err := LoadFile(s.path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.library = lib
	s.loadedAt = time.Now()
	listeners := append([]func(model.Snapshot){}, s.listeners...)
	s.mu.Unlock()

	logging.Info("library loaded",
		"path", s.path, "contents", len(lib.Contents), "memos", len(lib.Memos), "tags", len(lib.Tags))

	snap := lib.Snapshot()
	for _, fn := range listeners {
		fn(snap)
	}
	return nil
}

// Snapshot returns the current records
func (s *Source) Snapshot() model.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.library.Snapshot()
}

// LoadedAt reports when the current records were read
func (s *Source) LoadedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadedAt
}

// OnChange registers a callback run after every successful reload
func (s *Source) OnChange(fn func(model.Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Watch reloads the library whenever the file changes, until ctx is done.
// Parse errors keep the previous snapshot.
func (s *Source) Watch(ctx context.Context) error {
	if s.path == "" {
		return fmt.Errorf("no library file to watch")
	}

	fw, err := watcher.NewFileWatcher(s.path)
	if err != nil {
		return err
	}
	if err := fw.Start(ctx); err != nil {
		fw.Stop()
		return err
	}

	debouncer := watcher.NewDebouncer(fw.Events(), 300*time.Millisecond, 2*time.Second)
	debouncer.Start(ctx)

	go func() {
		for event := range debouncer.Output() {
			analysis := watcher.AnalyzeChanges(event)
			switch {
			case analysis.NeedReload:
				if err := s.Load(); err != nil {
					logging.Warn("library reload failed, keeping previous records", "error", err)
				}
			case analysis.SourceGone:
				logging.Warn("library file removed, keeping previous records", "path", s.path)
			}
		}
	}()
	return nil
}
