// Package watcher turns file system notifications into debounced batches of
// add, change and unlink events.
package watcher

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/conneroisu/sfcpreview/internal/logging"
)

// DefaultDebounce is the quiet period used when none is configured.
const DefaultDebounce = 100 * time.Millisecond

// FileWatcher watches a directory tree and delivers debounced batches to
// its handlers. Handlers run sequentially on a single goroutine, so events
// for the same path are never processed concurrently.
type FileWatcher struct {
	watcher   *fsnotify.Watcher
	debouncer *Debouncer
	filters   []FileFilter
	skipDir   DirFilter
	handlers  []ChangeHandler
	logger    logging.Logger
	mutex     sync.RWMutex
	stopOnce  sync.Once
}

// ChangeEvent represents a file change event
type ChangeEvent struct {
	Type    EventType
	Path    string
	ModTime time.Time
	Size    int64
}

// EventType represents the type of file change
type EventType int

const (
	EventTypeAdd EventType = iota
	EventTypeChange
	EventTypeUnlink
)

// String returns the string representation of the EventType
func (e EventType) String() string {
	switch e {
	case EventTypeAdd:
		return "add"
	case EventTypeChange:
		return "change"
	case EventTypeUnlink:
		return "unlink"
	default:
		return "unknown"
	}
}

// FileFilter determines if a file should be reported
type FileFilter func(path string) bool

// DirFilter reports whether a directory should be left unwatched.
type DirFilter func(path string) bool

// ChangeHandler handles a debounced batch
type ChangeHandler func(ctx context.Context, events []ChangeEvent) error

// Options configures a FileWatcher.
type Options struct {
	Debounce time.Duration
	// SkipDir excludes directories from recursive watching.
	SkipDir DirFilter
	Logger  logging.Logger
}

// NewFileWatcher creates a new file watcher
func NewFileWatcher(opts Options) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	if opts.SkipDir == nil {
		opts.SkipDir = func(string) bool { return false }
	}

	return &FileWatcher{
		watcher:   watcher,
		debouncer: NewDebouncer(opts.Debounce),
		filters:   make([]FileFilter, 0),
		skipDir:   opts.SkipDir,
		handlers:  make([]ChangeHandler, 0),
		logger:    opts.Logger.WithComponent("watcher"),
	}, nil
}

// AddFilter adds a file filter. A path is reported only when every filter
// accepts it.
func (fw *FileWatcher) AddFilter(filter FileFilter) {
	fw.mutex.Lock()
	defer fw.mutex.Unlock()
	fw.filters = append(fw.filters, filter)
}

// AddHandler adds a change handler
func (fw *FileWatcher) AddHandler(handler ChangeHandler) {
	fw.mutex.Lock()
	defer fw.mutex.Unlock()
	fw.handlers = append(fw.handlers, handler)
}

// AddRecursive watches root and every directory below it that is not
// skipped.
func (fw *FileWatcher) AddRecursive(root string) error {
	cleanRoot, err := filepath.Abs(filepath.Clean(root))
	if err != nil {
		return err
	}

	return filepath.WalkDir(cleanRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != cleanRoot && fw.skipDir(path) {
			return filepath.SkipDir
		}
		return fw.watcher.Add(path)
	})
}

// Start runs the watcher until ctx is cancelled or Stop is called.
func (fw *FileWatcher) Start(ctx context.Context) error {
	go fw.debouncer.Run(ctx)
	go fw.processEvents(ctx)
	go fw.watchLoop(ctx)

	return nil
}

// Stop closes the underlying notifier. It is safe to call more than once.
func (fw *FileWatcher) Stop() error {
	var err error
	fw.stopOnce.Do(func() {
		err = fw.watcher.Close()
	})
	return err
}

func (fw *FileWatcher) watchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			fw.handleFsnotifyEvent(ctx, event)
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Warn(ctx, err, "File watcher error")
		}
	}
}

func (fw *FileWatcher) handleFsnotifyEvent(ctx context.Context, event fsnotify.Event) {
	info, statErr := os.Stat(event.Name)

	if statErr == nil && info.IsDir() {
		if event.Op.Has(fsnotify.Create) && !fw.skipDir(event.Name) {
			fw.addDirectory(ctx, event.Name)
		}
		return
	}

	if !fw.accepts(event.Name) {
		return
	}

	changeEvent, ok := toChangeEvent(event, info, statErr)
	if !ok {
		return
	}
	fw.debouncer.Add(ctx, changeEvent)
}

// addDirectory watches a new directory and reports the files already in
// it. Files written before the watch was registered produce no
// notification of their own.
func (fw *FileWatcher) addDirectory(ctx context.Context, dir string) {
	if err := fw.AddRecursive(dir); err != nil {
		fw.logger.Warn(ctx, err, "Failed to watch new directory", "path", dir)
	}

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != dir && fw.skipDir(path) {
				return filepath.SkipDir
			}
			return nil
		}
		if !fw.accepts(path) {
			return nil
		}

		changeEvent := ChangeEvent{Type: EventTypeAdd, Path: path}
		if info, err := d.Info(); err == nil {
			changeEvent.ModTime = info.ModTime()
			changeEvent.Size = info.Size()
		}
		fw.debouncer.Add(ctx, changeEvent)
		return nil
	})
	if err != nil {
		fw.logger.Warn(ctx, err, "Failed to list new directory", "path", dir)
	}
}

// accepts reports whether every filter accepts path.
func (fw *FileWatcher) accepts(path string) bool {
	fw.mutex.RLock()
	filters := fw.filters
	fw.mutex.RUnlock()

	for _, filter := range filters {
		if !filter(path) {
			return false
		}
	}
	return true
}

// toChangeEvent maps a notification to one of the three change types. A
// rename or remove of a path that still exists is reported as a change.
func toChangeEvent(event fsnotify.Event, info os.FileInfo, statErr error) (ChangeEvent, bool) {
	changeEvent := ChangeEvent{Path: event.Name}
	if statErr == nil && info != nil {
		changeEvent.ModTime = info.ModTime()
		changeEvent.Size = info.Size()
	}
	missing := errors.Is(statErr, fs.ErrNotExist)

	switch {
	case event.Op.Has(fsnotify.Remove), event.Op.Has(fsnotify.Rename):
		if missing {
			changeEvent.Type = EventTypeUnlink
		} else {
			changeEvent.Type = EventTypeChange
		}
	case event.Op.Has(fsnotify.Create):
		changeEvent.Type = EventTypeAdd
	case event.Op.Has(fsnotify.Write):
		changeEvent.Type = EventTypeChange
	default:
		return changeEvent, false
	}

	if missing && changeEvent.Type != EventTypeUnlink {
		changeEvent.Type = EventTypeUnlink
	}
	return changeEvent, true
}

func (fw *FileWatcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case events := <-fw.debouncer.Output():
			fw.mutex.RLock()
			handlers := fw.handlers
			fw.mutex.RUnlock()

			for _, handler := range handlers {
				if err := handler(ctx, events); err != nil {
					fw.logger.Error(ctx, err, "File watcher handler error", "events", len(events))
				}
			}
		}
	}
}
