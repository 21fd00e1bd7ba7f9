package testutils

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/conneroisu/sfcpreview/internal/config"
	"github.com/conneroisu/sfcpreview/internal/sfc"
)

// CreateTempProject creates a temporary project and writes files into it.
// Keys are slash-separated paths relative to the project root.
func CreateTempProject(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()

	for rel, content := range files {
		WriteFile(t, root, rel, content)
	}

	return root
}

// WriteFile writes content to root/rel, creating parent directories, and
// returns the absolute path.
func WriteFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// CreateTestConfig returns a configuration rooted at projectDir with hot
// reload enabled and a short debounce.
func CreateTestConfig(projectDir string) *config.Config {
	cfg := config.Default()
	cfg.Components.Root = projectDir
	cfg.Server.Port = 0
	cfg.Development.Debounce = 10 * time.Millisecond
	cfg.Preview.AnalysisTimeout = time.Second
	return cfg
}

// Component builds a source file with a template and one preview block per
// entry of previews. An entry may start with attributes, separated from the
// body by "|", e.g. `name="Primary"|<Button />`.
func Component(template string, previews ...string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<template>\n  %s\n</template>\n", template)
	for _, preview := range previews {
		attrs, body := "", preview
		if i := strings.Index(preview, "|"); i >= 0 {
			attrs, body = " "+preview[:i], preview[i+1:]
		}
		fmt.Fprintf(&b, "\n<preview%s>\n  %s\n</preview>\n", attrs, body)
	}
	return b.String()
}

// MapFS is an in-memory file host keyed by path.
type MapFS struct {
	mu    sync.RWMutex
	files map[string]string
	reads map[string]int
}

// NewMapFS creates a host holding a copy of files.
func NewMapFS(files map[string]string) *MapFS {
	m := &MapFS{
		files: make(map[string]string, len(files)),
		reads: make(map[string]int),
	}
	for path, content := range files {
		m.files[path] = content
	}
	return m
}

// Exists reports whether path is present.
func (m *MapFS) Exists(path string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.files[path]
	return ok
}

// ReadFile returns the content of path or fs.ErrNotExist.
func (m *MapFS) ReadFile(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	content, ok := m.files[path]
	if !ok {
		return "", fmt.Errorf("open %s: %w", path, fs.ErrNotExist)
	}
	m.reads[path]++
	return content, nil
}

// Write sets the content of path.
func (m *MapFS) Write(path, content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = content
}

// Remove deletes path.
func (m *MapFS) Remove(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, path)
}

// Reads returns how many times path was read.
func (m *MapFS) Reads(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.reads[path]
}

// CountingParser wraps sfc.Parse and counts invocations.
type CountingParser struct {
	calls atomic.Int64
}

// Parse parses source and increments the call counter.
func (c *CountingParser) Parse(fileName, source string) (*sfc.Descriptor, error) {
	c.calls.Add(1)
	return sfc.Parse(fileName, source)
}

// Calls returns the number of Parse invocations.
func (c *CountingParser) Calls() int {
	return int(c.calls.Load())
}

// WaitFor polls cond until it holds or timeout elapses.
func WaitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}

	t.Fatalf("condition not met within %v", timeout)
}
