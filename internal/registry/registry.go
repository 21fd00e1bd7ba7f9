// Package registry keeps the component record of every source file under
// the project root and serializes them into the component index module.
package registry

import (
	"context"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/conneroisu/sfcpreview/internal/analyze"
	"github.com/conneroisu/sfcpreview/internal/descriptor"
	"github.com/conneroisu/sfcpreview/internal/logging"
)

// DefaultAnalysisTimeout bounds a single component analysis.
const DefaultAnalysisTimeout = 2 * time.Second

// SnapshotSource provides parsed snapshots of source files.
type SnapshotSource interface {
	Get(ctx context.Context, path string) (*descriptor.Snapshot, error)
}

// Options configures a Store.
type Options struct {
	Root            string
	Extension       string
	DefaultDevice   string
	Analyzer        analyze.Analyzer
	AnalysisTimeout time.Duration
	Logger          logging.Logger
}

// Store is the component metadata store. It is safe for concurrent use;
// readers always observe fully built records.
type Store struct {
	root            string
	extension       string
	defaultDevice   string
	snapshots       SnapshotSource
	host            descriptor.FileSystemHost
	analyzer        analyze.Analyzer
	analysisTimeout time.Duration
	logger          logging.Logger

	mutex       sync.RWMutex
	components  map[string]*Component
	generations map[string]uint64
	generation  uint64
	text        string
	watchers    []chan Event

	analysis sync.WaitGroup
}

// NewStore creates an empty store for the given root.
func NewStore(snapshots SnapshotSource, host descriptor.FileSystemHost, opts Options) *Store {
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		root = filepath.Clean(opts.Root)
	}
	if opts.Extension == "" {
		opts.Extension = ".vue"
	}
	if opts.DefaultDevice == "" {
		opts.DefaultDevice = DefaultDevice
	}
	if opts.AnalysisTimeout <= 0 {
		opts.AnalysisTimeout = DefaultAnalysisTimeout
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}

	return &Store{
		root:            root,
		extension:       opts.Extension,
		defaultDevice:   opts.DefaultDevice,
		snapshots:       snapshots,
		host:            host,
		analyzer:        opts.Analyzer,
		analysisTimeout: opts.AnalysisTimeout,
		logger:          opts.Logger.WithComponent("registry"),
		components:      make(map[string]*Component),
		generations:     make(map[string]uint64),
		watchers:        make([]chan Event, 0),
	}
}

// Root returns the absolute project root.
func (s *Store) Root() string {
	return s.root
}

// Extension returns the supported source extension.
func (s *Store) Extension() string {
	return s.extension
}

// AbsPath resolves fileName against the root. Slash and backslash
// separators are both accepted for relative names.
func (s *Store) AbsPath(fileName string) string {
	if filepath.IsAbs(fileName) {
		return filepath.Clean(fileName)
	}
	normalized := strings.ReplaceAll(fileName, "\\", "/")
	return filepath.Join(s.root, filepath.FromSlash(normalized))
}

// RelPath returns the root-relative, slash-separated form of fileName.
func (s *Store) RelPath(fileName string) string {
	rel, err := filepath.Rel(s.root, s.AbsPath(fileName))
	if err != nil {
		return filepath.ToSlash(fileName)
	}
	return filepath.ToSlash(rel)
}

// IsSupported reports whether fileName stays under the root and has the
// supported extension.
func (s *Store) IsSupported(fileName string) bool {
	if !strings.HasSuffix(fileName, s.extension) {
		return false
	}

	var rel string
	if filepath.IsAbs(fileName) {
		r, err := filepath.Rel(s.root, filepath.Clean(fileName))
		if err != nil {
			return false
		}
		rel = filepath.ToSlash(r)
	} else {
		rel = path.Clean(strings.ReplaceAll(fileName, "\\", "/"))
	}

	return rel != ".." && !strings.HasPrefix(rel, "../")
}

// Add creates a fresh record for fileName with its previews. The record is
// published once it is complete. When the file cannot be parsed the record
// is published without previews and the error is returned.
func (s *Store) Add(ctx context.Context, fileName string) error {
	abs := s.AbsPath(fileName)
	rel := s.RelPath(abs)
	id := strings.TrimSuffix(rel, s.extension)

	component := Component{
		ID:       id,
		Name:     path.Base(id),
		Path:     rel,
		Previews: []Preview{},
		absPath:  abs,
	}

	s.mutex.Lock()
	gen := s.bump(abs)
	s.mutex.Unlock()

	snapshot, err := s.snapshots.Get(ctx, abs)
	if err == nil {
		component.Previews = derivePreviews(snapshot.Previews, s.defaultDevice)
	}

	s.mutex.Lock()
	if s.generations[abs] != gen {
		s.mutex.Unlock()
		s.logger.Debug(ctx, "Discarding stale add", "file", abs)
		return err
	}
	s.components[abs] = &component
	s.text = ""
	s.mutex.Unlock()

	s.notify(EventTypeAdded, component)

	if err != nil {
		return err
	}
	s.startAnalysis(abs, gen, snapshot)
	return nil
}

// Remove deletes the record of fileName. Removing an unknown file is a
// no-op. Adds and reloads of fileName that are still running are
// discarded.
func (s *Store) Remove(fileName string) {
	abs := s.AbsPath(fileName)

	s.mutex.Lock()
	// generations are never reused, so dropping the entry invalidates
	// every one handed out for abs
	delete(s.generations, abs)
	component, exists := s.components[abs]
	if exists {
		delete(s.components, abs)
		s.text = ""
	}
	s.mutex.Unlock()

	if exists {
		s.notify(EventTypeRemoved, *component)
	}
}

// Reload re-derives the previews of an existing record from the current
// snapshot. It does nothing when fileName was never added.
func (s *Store) Reload(ctx context.Context, fileName string) error {
	abs := s.AbsPath(fileName)

	s.mutex.RLock()
	_, exists := s.components[abs]
	gen := s.generations[abs]
	s.mutex.RUnlock()

	if !exists {
		return nil
	}

	snapshot, err := s.snapshots.Get(ctx, abs)
	if err != nil {
		return err
	}
	previews := derivePreviews(snapshot.Previews, s.defaultDevice)

	s.mutex.Lock()
	current, exists := s.components[abs]
	if !exists || s.generations[abs] != gen {
		s.mutex.Unlock()
		s.logger.Debug(ctx, "Discarding stale reload", "file", abs)
		return nil
	}

	next := *current
	next.Previews = previews
	s.components[abs] = &next
	s.text = ""
	s.mutex.Unlock()

	s.notify(EventTypeUpdated, next)
	s.startAnalysis(abs, gen, snapshot)
	return nil
}

func (s *Store) startAnalysis(abs string, gen uint64, snapshot *descriptor.Snapshot) {
	if s.analyzer == nil {
		return
	}
	s.analysis.Add(1)
	go s.analyze(abs, gen, snapshot)
}

// analyze enriches the record in the background. Failures only cost the
// enrichment.
func (s *Store) analyze(abs string, gen uint64, snapshot *descriptor.Snapshot) {
	defer s.analysis.Done()

	ctx, cancel := context.WithTimeout(context.Background(), s.analysisTimeout)
	defer cancel()

	info, err := s.analyzer.Analyze(ctx, snapshot.Descriptor)
	if err != nil {
		s.logger.Debug(ctx, "Static analysis failed", "file", abs, "error", err.Error())
		return
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	current, exists := s.components[abs]
	if !exists || s.generations[abs] != gen {
		return
	}
	next := *current
	next.Info = info
	s.components[abs] = &next
}

// WaitForAnalysis blocks until background analyses have finished.
func (s *Store) WaitForAnalysis() {
	s.analysis.Wait()
}

// Get returns the record of fileName. A supported file that exists on disk
// but was never added is added first.
func (s *Store) Get(ctx context.Context, fileName string) (Component, bool) {
	abs := s.AbsPath(fileName)

	s.mutex.RLock()
	component, exists := s.components[abs]
	s.mutex.RUnlock()

	if exists {
		return *component, true
	}

	if s.host == nil || !s.IsSupported(abs) || !s.host.Exists(abs) {
		return Component{}, false
	}
	if err := s.Add(ctx, abs); err != nil {
		s.logger.Warn(ctx, err, "Lazy add failed", "file", abs)
	}

	s.mutex.RLock()
	defer s.mutex.RUnlock()
	component, exists = s.components[abs]
	if !exists {
		return Component{}, false
	}
	return *component, true
}

// Info returns the analysis of fileName, running the analyzer inline when
// the background analysis has not finished yet. It returns nil when no
// analysis is available.
func (s *Store) Info(ctx context.Context, fileName string) *analyze.Info {
	component, ok := s.Get(ctx, fileName)
	if !ok {
		return nil
	}
	if component.Info != nil || s.analyzer == nil {
		return component.Info
	}

	snapshot, err := s.snapshots.Get(ctx, component.absPath)
	if err != nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.analysisTimeout)
	defer cancel()
	info, err := s.analyzer.Analyze(ctx, snapshot.Descriptor)
	if err != nil {
		return nil
	}
	return info
}

// PreviewCount returns the number of previews recorded for fileName and
// whether a record exists.
func (s *Store) PreviewCount(fileName string) (int, bool) {
	abs := s.AbsPath(fileName)

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	component, exists := s.components[abs]
	if !exists {
		return 0, false
	}
	return len(component.Previews), true
}

// All returns every record in index order.
func (s *Store) All() []Component {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return s.sorted()
}

// Count returns the number of records.
func (s *Store) Count() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return len(s.components)
}

// Watch returns a channel that receives component events
func (s *Store) Watch() <-chan Event {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	ch := make(chan Event, 100)
	s.watchers = append(s.watchers, ch)
	return ch
}

// UnWatch removes a watcher channel and closes it
func (s *Store) UnWatch(ch <-chan Event) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for i, watcher := range s.watchers {
		if watcher == ch {
			close(watcher)
			s.watchers = append(s.watchers[:i], s.watchers[i+1:]...)
			break
		}
	}
}

func (s *Store) notify(eventType EventType, component Component) {
	event := Event{
		Type:      eventType,
		Component: component,
		Timestamp: time.Now(),
	}

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	for _, watcher := range s.watchers {
		select {
		case watcher <- event:
		default:
			// Skip if channel is full
		}
	}
}

// bump starts a new generation for abs. Callers hold s.mutex.
func (s *Store) bump(abs string) uint64 {
	s.generation++
	s.generations[abs] = s.generation
	return s.generation
}
