// Package descriptor caches parsed snapshots of source files.
//
// A Store maps a source path to the snapshot of its last seen content.
// Parsing is content-addressed: handing the store the same text twice
// returns the identical *Snapshot without parsing again. Snapshots live in
// a bounded LRU so that long watch sessions keep a fixed memory ceiling;
// an evicted path simply behaves as never loaded.
package descriptor

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/zeebo/xxh3"

	previewerrors "github.com/conneroisu/sfcpreview/internal/errors"
	"github.com/conneroisu/sfcpreview/internal/sfc"
)

// DefaultCapacity is the snapshot cache size used when none is configured.
const DefaultCapacity = 512

// DefaultCompanionSuffix is appended to a source path to find the file
// holding its extra preview blocks.
const DefaultCompanionSuffix = ".p"

// FileSystemHost is the file access the store needs.
type FileSystemHost interface {
	Exists(path string) bool
	ReadFile(ctx context.Context, path string) (string, error)
}

// ParseFunc splits a source text into blocks.
type ParseFunc func(fileName, source string) (*sfc.Descriptor, error)

// Snapshot is the parsed state of one source file and its companion.
// Snapshots are immutable.
type Snapshot struct {
	Path             string
	Content          string
	CompanionContent string
	Descriptor       *sfc.Descriptor
	// Previews lists the companion's preview blocks first, then the
	// source file's own.
	Previews []*sfc.Block
	// Hash identifies Content and CompanionContent together.
	Hash uint64
}

// Options configures a Store.
type Options struct {
	Capacity        int
	CompanionSuffix string
	Parse           ParseFunc
}

// Store is a bounded, content-addressed snapshot cache. It is safe for
// concurrent use.
type Store struct {
	host            FileSystemHost
	parse           ParseFunc
	companionSuffix string

	cache *lru.Cache[string, *Snapshot]
	mutex sync.Mutex
}

// NewStore creates a snapshot store reading files through host.
func NewStore(host FileSystemHost, opts Options) (*Store, error) {
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}
	if opts.CompanionSuffix == "" {
		opts.CompanionSuffix = DefaultCompanionSuffix
	}
	if opts.Parse == nil {
		opts.Parse = sfc.Parse
	}

	cache, err := lru.New[string, *Snapshot](opts.Capacity)
	if err != nil {
		return nil, previewerrors.NewInternalError(previewerrors.ErrCodeInternalError, "create snapshot cache", err)
	}

	return &Store{
		host:            host,
		parse:           opts.Parse,
		companionSuffix: opts.CompanionSuffix,
		cache:           cache,
	}, nil
}

// CompanionPath returns the companion file path of a source path.
func (s *Store) CompanionPath(path string) string {
	return path + s.companionSuffix
}

// CompanionSuffix returns the configured companion suffix.
func (s *Store) CompanionSuffix() string {
	return s.companionSuffix
}

// Get returns the snapshot for path, reading and parsing the file on first
// access.
func (s *Store) Get(ctx context.Context, path string) (*Snapshot, error) {
	if snapshot, ok := s.cache.Get(path); ok {
		return snapshot, nil
	}

	return s.Reload(ctx, path)
}

// GetOrNull returns the cached snapshot for path, or nil. It never reads
// or parses.
func (s *Store) GetOrNull(path string) *Snapshot {
	snapshot, _ := s.cache.Get(path)
	return snapshot
}

// Set records new content for path. The file is parsed again only if
// content differs from the content of the cached snapshot.
func (s *Store) Set(path, content string) (*Snapshot, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	prev, cached := s.cache.Get(path)
	if cached && prev.Content == content {
		return prev, nil
	}

	companion := ""
	if cached {
		companion = prev.CompanionContent
	} else {
		companion = s.readCompanion(context.Background(), path)
	}

	return s.commit(path, content, companion)
}

// SetCompanion records new companion content for the source file at path.
func (s *Store) SetCompanion(ctx context.Context, path, companion string) (*Snapshot, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	prev, cached := s.cache.Get(path)
	if cached && prev.CompanionContent == companion {
		return prev, nil
	}

	var content string
	if cached {
		content = prev.Content
	} else {
		read, err := s.host.ReadFile(ctx, path)
		if err != nil {
			return nil, previewerrors.NewIOError(previewerrors.ErrCodeFileNotFound, "read "+path, err)
		}
		content = read
	}

	return s.commit(path, content, companion)
}

// Reload reads path and its companion from the host and updates the
// snapshot. Unchanged content keeps the cached snapshot.
func (s *Store) Reload(ctx context.Context, path string) (*Snapshot, error) {
	content, err := s.host.ReadFile(ctx, path)
	if err != nil {
		return nil, previewerrors.NewIOError(previewerrors.ErrCodeFileNotFound, "read "+path, err)
	}
	companion := s.readCompanion(ctx, path)

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if prev, ok := s.cache.Get(path); ok && prev.Hash == hashContent(content, companion) {
		return prev, nil
	}

	return s.commit(path, content, companion)
}

// Delete forgets the snapshot for path.
func (s *Store) Delete(path string) {
	s.cache.Remove(path)
}

// Len returns the number of cached snapshots.
func (s *Store) Len() int {
	return s.cache.Len()
}

func (s *Store) readCompanion(ctx context.Context, path string) string {
	companionPath := s.CompanionPath(path)
	if !s.host.Exists(companionPath) {
		return ""
	}
	content, err := s.host.ReadFile(ctx, companionPath)
	if err != nil {
		return ""
	}
	return content
}

// commit parses and caches. Callers hold s.mutex. A parse failure leaves
// the cached snapshot untouched.
func (s *Store) commit(path, content, companion string) (*Snapshot, error) {
	desc, err := s.parse(path, content)
	if err != nil {
		return nil, err
	}

	var previews []*sfc.Block
	if companion != "" {
		companionDesc, err := s.parse(s.CompanionPath(path), companion)
		if err != nil {
			return nil, err
		}
		previews = append(previews, companionDesc.Blocks(sfc.TypePreview)...)
	}
	previews = append(previews, desc.Blocks(sfc.TypePreview)...)
	if previews == nil {
		previews = []*sfc.Block{}
	}

	snapshot := &Snapshot{
		Path:             path,
		Content:          content,
		CompanionContent: companion,
		Descriptor:       desc,
		Previews:         previews,
		Hash:             hashContent(content, companion),
	}
	s.cache.Add(path, snapshot)

	return snapshot, nil
}

func hashContent(content, companion string) uint64 {
	h := xxh3.New()
	_, _ = h.WriteString(content)
	_, _ = h.WriteString("\x00")
	_, _ = h.WriteString(companion)
	return h.Sum64()
}
