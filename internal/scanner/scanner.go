// Package scanner discovers single-file components below the component root.
//
// The scanner walks the root, skips excluded directories and files, and
// hands every supported file to the metadata store through a pool of
// workers. Registration parses the file, so a large project is primed in
// parallel before the dev server accepts its first request.
package scanner

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	previewerrors "github.com/conneroisu/sfcpreview/internal/errors"
	"github.com/conneroisu/sfcpreview/internal/logging"
)

// DefaultWorkers is the pool size when none is configured.
const DefaultWorkers = 4

// Registry receives discovered files.
type Registry interface {
	Root() string
	IsSupported(fileName string) bool
	Add(ctx context.Context, fileName string) error
}

// ScanJob represents a scanning job for the worker pool.
type ScanJob struct {
	filePath string
	result   chan<- ScanResult
}

// ScanResult is the outcome of registering one file.
type ScanResult struct {
	filePath string
	err      error
}

// Stats summarizes a directory scan.
type Stats struct {
	// Files is the number of supported files found.
	Files int
	// Registered is the number of files added without error.
	Registered int
	// Failed maps paths to their registration error.
	Failed map[string]error
}

// Options configures a ComponentScanner.
type Options struct {
	Workers         int
	ExcludePatterns []string
	Logger          logging.Logger
}

// ComponentScanner discovers components and registers them.
type ComponentScanner struct {
	registry Registry
	workers  int
	excludes []string
	logger   logging.Logger
}

// NewComponentScanner creates a scanner feeding registry.
func NewComponentScanner(registry Registry, opts Options) *ComponentScanner {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	return &ComponentScanner{
		registry: registry,
		workers:  opts.Workers,
		excludes: opts.ExcludePatterns,
		logger:   opts.Logger.WithComponent("scanner"),
	}
}

// IsExcluded reports whether a base name matches one of the exclude
// patterns. Patterns use filepath.Match syntax.
func (s *ComponentScanner) IsExcluded(name string) bool {
	for _, pattern := range s.excludes {
		if pattern == name {
			return true
		}
		if matched, err := filepath.Match(pattern, name); err == nil && matched {
			return true
		}
	}
	return false
}

// Discover returns the supported files below dir in walk order.
func (s *ComponentScanner) Discover(ctx context.Context, dir string) ([]string, error) {
	cleanDir, err := s.validatePath(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	err = filepath.WalkDir(cleanDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if path != cleanDir && s.IsExcluded(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !s.registry.IsSupported(path) {
			return nil
		}

		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return files, nil
}

// ScanDirectory discovers the files below dir and registers them.
// Registration failures are collected in the stats; the returned error is
// reserved for a failed walk.
func (s *ComponentScanner) ScanDirectory(ctx context.Context, dir string) (*Stats, error) {
	timer := logging.StartOperation(s.logger, "scan")

	files, err := s.Discover(ctx, dir)
	if err != nil {
		timer.EndWithError(ctx, err)
		return nil, err
	}

	stats := s.processBatch(ctx, files)
	timer.End(ctx, "files", stats.Files, "failed", len(stats.Failed))
	return stats, nil
}

// ScanFile registers a single file.
func (s *ComponentScanner) ScanFile(ctx context.Context, path string) error {
	cleanPath, err := s.validatePath(path)
	if err != nil {
		return err
	}
	if !s.registry.IsSupported(cleanPath) {
		return previewerrors.NewValidationError(previewerrors.ErrCodeInvalidPath, "unsupported file: "+path)
	}
	return s.registry.Add(ctx, cleanPath)
}

func (s *ComponentScanner) processBatch(ctx context.Context, files []string) *Stats {
	stats := &Stats{Files: len(files), Failed: make(map[string]error)}
	if len(files) == 0 {
		return stats
	}

	results := make(chan ScanResult, len(files))
	pool := NewWorkerPool(ctx, min(s.workers, len(files)), s)
	for _, file := range files {
		pool.Submit(ScanJob{filePath: file, result: results})
	}
	pool.Stop()
	close(results)

	for result := range results {
		if result.err != nil {
			stats.Failed[result.filePath] = result.err
			s.logger.Warn(ctx, result.err, "Failed to register component", "file", result.filePath)
			continue
		}
		stats.Registered++
	}

	return stats
}

// validatePath cleans path and makes sure it stays inside the registry
// root.
func (s *ComponentScanner) validatePath(path string) (string, error) {
	root, err := filepath.Abs(s.registry.Root())
	if err != nil {
		return "", previewerrors.NewIOError(previewerrors.ErrCodeInvalidPath, "resolve root", err)
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	cleanPath := filepath.Clean(path)

	rel, err := filepath.Rel(root, cleanPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", previewerrors.ErrPathTraversal(path)
	}

	if _, err := os.Stat(cleanPath); err != nil {
		return "", previewerrors.NewIOError(previewerrors.ErrCodeFileNotFound, fmt.Sprintf("stat %s", cleanPath), err)
	}

	return cleanPath, nil
}

// WorkerPool registers files concurrently.
type WorkerPool struct {
	jobQueue chan ScanJob
	wg       sync.WaitGroup
	once     sync.Once
}

// NewWorkerPool starts workerCount workers that register files through
// scanner until Stop is called.
func NewWorkerPool(ctx context.Context, workerCount int, scanner *ComponentScanner) *WorkerPool {
	if workerCount <= 0 {
		workerCount = 1
	}
	pool := &WorkerPool{jobQueue: make(chan ScanJob, workerCount*2)}

	pool.wg.Add(workerCount)
	for i := 0; i < workerCount; i++ {
		go func() {
			defer pool.wg.Done()
			for job := range pool.jobQueue {
				err := ctx.Err()
				if err == nil {
					err = scanner.registry.Add(ctx, job.filePath)
				}
				job.result <- ScanResult{filePath: job.filePath, err: err}
			}
		}()
	}

	return pool
}

// Submit queues a job, blocking while the queue is full.
func (p *WorkerPool) Submit(job ScanJob) {
	p.jobQueue <- job
}

// Stop closes the queue and waits for queued jobs to finish.
func (p *WorkerPool) Stop() {
	p.once.Do(func() {
		close(p.jobQueue)
	})
	p.wg.Wait()
}
