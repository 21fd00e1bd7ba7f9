package server

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/conneroisu/sfcpreview/internal/analyze"
	"github.com/conneroisu/sfcpreview/internal/compiler"
	"github.com/conneroisu/sfcpreview/internal/config"
	"github.com/conneroisu/sfcpreview/internal/descriptor"
	previewerrors "github.com/conneroisu/sfcpreview/internal/errors"
	"github.com/conneroisu/sfcpreview/internal/logging"
	"github.com/conneroisu/sfcpreview/internal/reconcile"
	"github.com/conneroisu/sfcpreview/internal/registry"
	"github.com/conneroisu/sfcpreview/internal/renderer"
	"github.com/conneroisu/sfcpreview/internal/resource"
	"github.com/conneroisu/sfcpreview/internal/scanner"
	"github.com/conneroisu/sfcpreview/internal/watcher"
)

// ReconcileHook observes every reconciliation of a session. result is nil
// when err is set.
type ReconcileHook func(event watcher.ChangeEvent, result *reconcile.Result, err error)

// SessionOptions configures a Session.
type SessionOptions struct {
	// Host defaults to the operating system file system.
	Host        descriptor.FileSystemHost
	Logger      logging.Logger
	OnReconcile ReconcileHook
}

// Session owns the stores of one project and ties file changes to
// hot-update messages.
type Session struct {
	cfg         *config.Config
	root        string
	host        descriptor.FileSystemHost
	snapshots   *descriptor.Store
	components  *registry.Store
	engine      *reconcile.Engine
	loader      *renderer.Loader
	scanner     *scanner.ComponentScanner
	graph       *ModuleGraph
	errors      *previewerrors.ErrorCollector
	onReconcile ReconcileHook
	logger      logging.Logger
}

// NewSession creates the stores for the project described by cfg.
func NewSession(cfg *config.Config, opts SessionOptions) (*Session, error) {
	if opts.Host == nil {
		opts.Host = descriptor.OSHost{}
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}

	root, err := filepath.Abs(cfg.Components.Root)
	if err != nil {
		return nil, previewerrors.NewConfigError(previewerrors.ErrCodeConfigInvalid, "resolve component root: "+err.Error())
	}

	snapshots, err := descriptor.NewStore(opts.Host, descriptor.Options{
		Capacity:        cfg.Preview.CacheSize,
		CompanionSuffix: cfg.Components.CompanionSuffix,
	})
	if err != nil {
		return nil, err
	}

	components := registry.NewStore(snapshots, opts.Host, registry.Options{
		Root:            root,
		Extension:       cfg.Components.Extension,
		DefaultDevice:   cfg.Preview.DefaultDevice,
		Analyzer:        analyze.NewScriptAnalyzer(),
		AnalysisTimeout: cfg.Preview.AnalysisTimeout,
		Logger:          opts.Logger,
	})

	shellDir := cfg.Preview.ShellDir
	if shellDir != "" && !filepath.IsAbs(shellDir) {
		shellDir = filepath.Join(root, shellDir)
	}

	return &Session{
		cfg:        cfg,
		root:       root,
		host:       opts.Host,
		snapshots:  snapshots,
		components: components,
		engine: reconcile.NewEngine(snapshots, components, reconcile.Options{
			IndexDiffs: opts.OnReconcile != nil,
			Logger:     opts.Logger,
		}),
		loader: renderer.NewLoader(components, snapshots, compiler.NewRuntimeCompiler(compiler.Options{}), opts.Host, renderer.Options{
			SetupFiles: cfg.Preview.SetupFiles,
			ShellDir:   shellDir,
			Logger:     opts.Logger,
		}),
		scanner: scanner.NewComponentScanner(components, scanner.Options{
			Workers:         cfg.Preview.ScanWorkers,
			ExcludePatterns: cfg.Components.ExcludePatterns,
			Logger:          opts.Logger,
		}),
		graph:       NewModuleGraph(),
		errors:      previewerrors.NewErrorCollector(),
		onReconcile: opts.OnReconcile,
		logger:      opts.Logger.WithComponent("session"),
	}, nil
}

// Root returns the absolute component root.
func (s *Session) Root() string { return s.root }

// Components returns the metadata store.
func (s *Session) Components() *registry.Store { return s.components }

// Loader returns the virtual module loader.
func (s *Session) Loader() *renderer.Loader { return s.loader }

// Graph returns the served module graph.
func (s *Session) Graph() *ModuleGraph { return s.graph }

// Errors returns the failures that are still unresolved.
func (s *Session) Errors() []previewerrors.OverlayPayload { return s.errors.All() }

// Scan registers every component below the root. Files that fail to parse
// are recorded for the overlay and do not fail the scan.
func (s *Session) Scan(ctx context.Context) (*scanner.Stats, error) {
	stats, err := s.scanner.ScanDirectory(ctx, s.root)
	if err != nil {
		return nil, err
	}
	for file, failure := range stats.Failed {
		s.errors.Set(s.components.RelPath(file), failure)
	}
	s.logger.Info(ctx, "Initial scan complete", "components", s.components.Count(), "failed", len(stats.Failed))
	return stats, nil
}

// Load resolves a virtual address and records it as served.
func (s *Session) Load(ctx context.Context, address string) (string, error) {
	canonical, ok := resource.Canonical(address)
	if !ok {
		return "", previewerrors.ErrInvalidPath(address)
	}
	res, _ := resource.Decode(canonical)

	text, err := s.loader.Load(ctx, res)
	if err != nil {
		return "", err
	}
	s.graph.Record(canonical)
	return text, nil
}

// ReadSource returns a project file by its root-relative path.
func (s *Session) ReadSource(ctx context.Context, rel string) (string, error) {
	full := filepath.Join(s.root, filepath.FromSlash(rel))
	if full != s.root && !strings.HasPrefix(full, s.root+string(filepath.Separator)) {
		return "", previewerrors.ErrPathTraversal(rel)
	}

	content, err := s.host.ReadFile(ctx, full)
	if err != nil {
		return "", previewerrors.NewIOError(previewerrors.ErrCodeFileNotFound, "read "+rel, err)
	}
	return content, nil
}

// NewWatcher creates a file watcher over the root that feeds HandleChanges
// and hands the resulting messages to publish.
func (s *Session) NewWatcher(publish func(Message)) (*watcher.FileWatcher, error) {
	fw, err := watcher.NewFileWatcher(watcher.Options{
		Debounce: s.cfg.Development.Debounce,
		SkipDir:  func(path string) bool { return s.scanner.IsExcluded(filepath.Base(path)) },
		Logger:   s.logger,
	})
	if err != nil {
		return nil, err
	}

	fw.AddFilter(s.isRelevant)
	fw.AddHandler(func(ctx context.Context, events []watcher.ChangeEvent) error {
		for _, message := range s.HandleChanges(ctx, events) {
			publish(message)
		}
		return nil
	})

	if err := fw.AddRecursive(s.root); err != nil {
		fw.Stop()
		return nil, err
	}
	return fw, nil
}

func (s *Session) isRelevant(path string) bool {
	return s.loader.IsSetupFile(path) || s.components.IsSupported(path) || s.engine.IsCompanion(path)
}

// HandleChanges reconciles a batch of file events and returns the messages
// to push to connected clients. Only modules that a client has loaded are
// announced.
func (s *Session) HandleChanges(ctx context.Context, events []watcher.ChangeEvent) []Message {
	var messages []Message
	var updates []Update
	fullReload := false
	now := time.Now().UnixMilli()

	for _, event := range events {
		if s.loader.IsSetupFile(event.Path) {
			s.logger.Info(ctx, "Setup file changed", "file", event.Path, "event", event.Type.String())
			fullReload = true
			continue
		}
		if !s.components.IsSupported(event.Path) && !s.engine.IsCompanion(event.Path) {
			continue
		}

		owner := s.components.RelPath(strings.TrimSuffix(event.Path, s.snapshots.CompanionSuffix()))
		result, err := s.apply(ctx, event)
		if s.onReconcile != nil {
			s.onReconcile(event, result, err)
		}
		if err != nil {
			payload := s.errors.Set(owner, err)
			s.logger.Error(ctx, err, "Reconciliation failed", "file", event.Path)
			if s.cfg.Development.ErrorOverlay {
				messages = append(messages, Message{Type: MessageError, Err: &payload})
			}
			continue
		}
		s.errors.Clear(owner)
		s.logger.Debug(ctx, "Reconciled", "file", result.File, "event", event.Type.String(), "invalidate", len(result.Invalidate))

		updates = append(updates, s.updatesFor(result, now)...)
	}

	if !s.cfg.Development.HotReload {
		return messages
	}
	if fullReload {
		return append(messages, Message{Type: MessageFullReload})
	}
	if len(updates) > 0 {
		messages = append(messages, Message{Type: MessageUpdate, Updates: updates})
	}
	return messages
}

func (s *Session) apply(ctx context.Context, event watcher.ChangeEvent) (*reconcile.Result, error) {
	if event.Type == watcher.EventTypeUnlink {
		return s.engine.Remove(ctx, event.Path)
	}

	content, err := s.host.ReadFile(ctx, event.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return s.engine.Remove(ctx, event.Path)
	}
	if err != nil {
		return nil, previewerrors.NewIOError(previewerrors.ErrCodeFileNotFound, "read "+event.Path, err)
	}
	return s.engine.Reconcile(ctx, event.Path, content)
}

// updatesFor maps invalidated addresses to updates of served modules.
// Instances of removed previews are forgotten instead of announced; no
// client can import them anymore.
func (s *Session) updatesFor(result *reconcile.Result, timestamp int64) []Update {
	removed := make(map[string]bool, len(result.Removed))
	for _, index := range result.Removed {
		removed[resource.Encode(resource.ComponentInstance{FileName: result.File, Index: resource.At(index)})] = true
	}

	var updates []Update
	for _, address := range result.Invalidate {
		if removed[address] {
			s.graph.Forget(address)
			continue
		}
		if s.graph.Has(address) {
			updates = append(updates, Update{Type: UpdateJS, Path: "/" + address, Timestamp: timestamp})
		}
	}

	// the component source itself is served as a plain module
	source := strings.TrimPrefix(compiler.ComponentURL(result.File), "/")
	if s.graph.Has(source) {
		updates = append(updates, Update{Type: UpdateJS, Path: "/" + source, Timestamp: timestamp})
	}
	return updates
}
