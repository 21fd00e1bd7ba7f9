// Package reconcile computes which synthetic modules go stale when a
// source file changes.
//
// The engine compares the previous and next snapshot of a file position by
// position, commits the new state to the metadata store and returns the
// addresses a dev server has to invalidate. A parse failure leaves both
// stores on the previous content.
package reconcile

import (
	"context"
	"strings"

	"github.com/conneroisu/sfcpreview/internal/descriptor"
	"github.com/conneroisu/sfcpreview/internal/logging"
	"github.com/conneroisu/sfcpreview/internal/resource"
	"github.com/conneroisu/sfcpreview/internal/sfc"
)

// Snapshots is the descriptor store as seen by the engine.
type Snapshots interface {
	GetOrNull(path string) *descriptor.Snapshot
	Set(path, content string) (*descriptor.Snapshot, error)
	SetCompanion(ctx context.Context, path, companion string) (*descriptor.Snapshot, error)
	Delete(path string)
	CompanionSuffix() string
}

// Components is the metadata store as seen by the engine.
type Components interface {
	AbsPath(fileName string) string
	RelPath(fileName string) string
	IsSupported(fileName string) bool
	Add(ctx context.Context, fileName string) error
	Reload(ctx context.Context, fileName string) error
	Remove(fileName string)
	PreviewCount(fileName string) (int, bool)
	Text() string
	RecordText(fileName string) string
}

// Result describes one reconciliation.
type Result struct {
	// File is the root-relative path of the component source.
	File      string
	Added     []int
	Removed   []int
	Updated   []int
	Unchanged []int
	// Invalidate lists distinct module addresses in the order they were
	// computed.
	Invalidate []string
	// IndexDiff is a unified diff of the index text when it changed and
	// diffs are enabled.
	IndexDiff string
}

// IndexChanged reports whether the component index went stale.
func (r *Result) IndexChanged() bool {
	return r.Invalidates(resource.ListComponents{})
}

// Invalidates reports whether the result contains the address of res.
func (r *Result) Invalidates(res resource.Resource) bool {
	address := resource.Encode(res)
	for _, candidate := range r.Invalidate {
		if candidate == address {
			return true
		}
	}
	return false
}

// Options configures an Engine.
type Options struct {
	// IndexDiffs enables Result.IndexDiff.
	IndexDiffs bool
	Logger     logging.Logger
}

// Engine reconciles file changes against the stores.
type Engine struct {
	snapshots  Snapshots
	components Components
	indexDiffs bool
	logger     logging.Logger
}

// NewEngine creates an engine over the given stores.
func NewEngine(snapshots Snapshots, components Components, opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	return &Engine{
		snapshots:  snapshots,
		components: components,
		indexDiffs: opts.IndexDiffs,
		logger:     opts.Logger.WithComponent("reconcile"),
	}
}

// IsCompanion reports whether fileName is a companion preview file.
func (e *Engine) IsCompanion(fileName string) bool {
	owner, ok := strings.CutSuffix(fileName, e.snapshots.CompanionSuffix())
	return ok && e.components.IsSupported(owner)
}

// Reconcile applies new content of fileName, which is either a component
// source or a companion file, and returns what went stale. A file that has
// no record yet is added.
func (e *Engine) Reconcile(ctx context.Context, fileName, content string) (*Result, error) {
	op := logging.StartOperation(e.logger, "reconcile")

	abs := e.components.AbsPath(fileName)
	owner := abs
	companion := e.IsCompanion(abs)
	if companion {
		owner = strings.TrimSuffix(abs, e.snapshots.CompanionSuffix())
	}

	prev := e.snapshots.GetOrNull(owner)

	var (
		next *descriptor.Snapshot
		err  error
	)
	if companion {
		next, err = e.snapshots.SetCompanion(ctx, owner, content)
	} else {
		next, err = e.snapshots.Set(owner, content)
	}
	if err != nil {
		op.EndWithError(ctx, err)
		return nil, err
	}

	result, err := e.commit(ctx, owner, prev, next)
	if err != nil {
		op.EndWithError(ctx, err)
		return nil, err
	}

	op.End(ctx, "file", result.File, "invalidated", len(result.Invalidate))
	return result, nil
}

// Remove forgets a deleted file. Deleting a companion file drops its
// previews from the owning component.
func (e *Engine) Remove(ctx context.Context, fileName string) (*Result, error) {
	abs := e.components.AbsPath(fileName)
	if e.IsCompanion(abs) {
		return e.Reconcile(ctx, abs, "")
	}

	rel := e.components.RelPath(abs)
	prev := e.snapshots.GetOrNull(abs)
	beforeText := e.components.Text()
	beforeRecord := e.components.RecordText(abs)

	e.snapshots.Delete(abs)
	e.components.Remove(abs)

	afterText := e.components.Text()
	result := &Result{File: rel}
	set := newAddressSet()

	if beforeText != afterText {
		set.add(resource.ListComponents{})
		result.IndexDiff = e.diff(beforeText, afterText)
	}
	if beforeRecord != "" {
		set.add(resource.ComponentMeta{FileName: rel})
	}
	set.add(resource.ComponentInstance{FileName: rel, Index: resource.Default})
	if prev != nil {
		for i := range prev.Previews {
			result.Removed = append(result.Removed, i)
			set.add(resource.ComponentInstance{FileName: rel, Index: resource.At(i)})
		}
	}

	result.Invalidate = set.addresses
	e.logger.Debug(ctx, "Removed component", "file", rel, "invalidated", len(result.Invalidate))
	return result, nil
}

func (e *Engine) commit(ctx context.Context, abs string, prev, next *descriptor.Snapshot) (*Result, error) {
	rel := e.components.RelPath(abs)
	beforeText := e.components.Text()
	beforeRecord := e.components.RecordText(abs)
	recorded, known := e.components.PreviewCount(abs)

	var err error
	if beforeRecord == "" && e.components.IsSupported(abs) {
		err = e.components.Add(ctx, abs)
	} else {
		err = e.components.Reload(ctx, abs)
	}
	if err != nil {
		return nil, err
	}

	afterText := e.components.Text()
	afterRecord := e.components.RecordText(abs)

	var prevPreviews []*sfc.Block
	if prev != nil {
		prevPreviews = prev.Previews
	}

	result := &Result{File: rel}
	set := newAddressSet()

	// a record without a snapshot lost it to eviction; its old content is
	// unknown, so every recorded position is stale
	evicted := prev == nil && known
	prevCount := len(prevPreviews)
	if evicted {
		prevCount = recorded
	}

	if (prevCount == 0) != (len(next.Previews) == 0) {
		set.add(resource.ComponentInstance{FileName: rel, Index: resource.Default})
	}
	if beforeText != afterText {
		set.add(resource.ListComponents{})
		result.IndexDiff = e.diff(beforeText, afterText)
	}
	if beforeRecord != afterRecord {
		set.add(resource.ComponentMeta{FileName: rel})
	}

	changes := Diff(prevPreviews, next.Previews)
	if evicted {
		changes = staleChanges(recorded, len(next.Previews))
	}

	for i, change := range changes {
		switch change {
		case Unchanged:
			result.Unchanged = append(result.Unchanged, i)
		case Added:
			result.Added = append(result.Added, i)
		case Updated:
			result.Updated = append(result.Updated, i)
			set.add(resource.ComponentInstance{FileName: rel, Index: resource.At(i)})
		case Removed:
			result.Removed = append(result.Removed, i)
			set.add(resource.ComponentInstance{FileName: rel, Index: resource.At(i)})
		}
	}

	result.Invalidate = set.addresses
	return result, nil
}

// staleChanges classifies positions when the previous blocks are unknown.
// Positions the record already had are updated, the rest added or removed.
func staleChanges(recorded, next int) []Change {
	changes := make([]Change, max(recorded, next))
	for i := range changes {
		switch {
		case i >= recorded:
			changes[i] = Added
		case i >= next:
			changes[i] = Removed
		default:
			changes[i] = Updated
		}
	}
	return changes
}

func (e *Engine) diff(before, after string) string {
	if !e.indexDiffs {
		return ""
	}
	return unifiedDiff(before, after)
}

type addressSet struct {
	seen      map[string]struct{}
	addresses []string
}

func newAddressSet() *addressSet {
	return &addressSet{seen: make(map[string]struct{}), addresses: []string{}}
}

func (s *addressSet) add(r resource.Resource) {
	address := resource.Encode(r)
	if _, ok := s.seen[address]; ok {
		return
	}
	s.seen[address] = struct{}{}
	s.addresses = append(s.addresses, address)
}
