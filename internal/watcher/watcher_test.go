package watcher

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/sfcpreview/internal/testutils"
)

func TestEventTypeString(t *testing.T) {
	assert.Equal(t, "add", EventTypeAdd.String())
	assert.Equal(t, "change", EventTypeChange.String())
	assert.Equal(t, "unlink", EventTypeUnlink.String())
	assert.Equal(t, "unknown", EventType(99).String())
}

func TestToChangeEvent(t *testing.T) {
	missing := fs.ErrNotExist

	tests := []struct {
		name     string
		op       fsnotify.Op
		statErr  error
		expected EventType
		ok       bool
	}{
		{"create", fsnotify.Create, nil, EventTypeAdd, true},
		{"write", fsnotify.Write, nil, EventTypeChange, true},
		{"remove", fsnotify.Remove, missing, EventTypeUnlink, true},
		{"rename away", fsnotify.Rename, missing, EventTypeUnlink, true},
		{"atomic save", fsnotify.Rename, nil, EventTypeChange, true},
		{"create then gone", fsnotify.Create, missing, EventTypeUnlink, true},
		{"chmod", fsnotify.Chmod, nil, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, ok := toChangeEvent(fsnotify.Event{Name: "/p/A.vue", Op: tt.op}, nil, tt.statErr)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.expected, event.Type)
				assert.Equal(t, "/p/A.vue", event.Path)
			}
		})
	}

	_, ok := toChangeEvent(fsnotify.Event{Name: "x", Op: fsnotify.Write}, nil, errors.New("permission denied"))
	assert.True(t, ok)
}

func TestDebouncerBatches(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	d.Add(ctx, ChangeEvent{Type: EventTypeAdd, Path: "b.vue"})
	d.Add(ctx, ChangeEvent{Type: EventTypeChange, Path: "a.vue"})
	d.Add(ctx, ChangeEvent{Type: EventTypeChange, Path: "b.vue"})
	d.Add(ctx, ChangeEvent{Type: EventTypeUnlink, Path: "c.vue"})
	d.Add(ctx, ChangeEvent{Type: EventTypeAdd, Path: "c.vue"})

	select {
	case batch := <-d.Output():
		require.Len(t, batch, 3)
		assert.Equal(t, ChangeEvent{Type: EventTypeAdd, Path: "b.vue"}, batch[0])
		assert.Equal(t, ChangeEvent{Type: EventTypeChange, Path: "a.vue"}, batch[1])
		assert.Equal(t, ChangeEvent{Type: EventTypeChange, Path: "c.vue"}, batch[2])
	case <-time.After(2 * time.Second):
		t.Fatal("no batch emitted")
	}

	d.Add(ctx, ChangeEvent{Type: EventTypeAdd, Path: "d.vue"})
	d.Add(ctx, ChangeEvent{Type: EventTypeUnlink, Path: "d.vue"})
	select {
	case batch := <-d.Output():
		require.Len(t, batch, 1)
		assert.Equal(t, EventTypeUnlink, batch[0].Type)
	case <-time.After(2 * time.Second):
		t.Fatal("no second batch emitted")
	}
}

func TestDebouncerStopsOnCancel(t *testing.T) {
	d := NewDebouncer(time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	d.Add(ctx, ChangeEvent{Type: EventTypeChange, Path: "a.vue"})
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("debouncer did not stop")
	}
}

type collector struct {
	mu     sync.Mutex
	events []ChangeEvent
}

func (c *collector) handle(_ context.Context, events []ChangeEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, events...)
	return nil
}

func (c *collector) find(path string, eventType EventType) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, event := range c.events {
		if event.Path == path && event.Type == eventType {
			return true
		}
	}
	return false
}

func TestFileWatcherReportsChanges(t *testing.T) {
	root := testutils.CreateTempProject(t, map[string]string{
		"A.vue":                "<template/>",
		"node_modules/x/X.vue": "<template/>",
	})

	fw, err := NewFileWatcher(Options{
		Debounce: 20 * time.Millisecond,
		SkipDir:  func(path string) bool { return filepath.Base(path) == "node_modules" },
	})
	require.NoError(t, err)
	defer fw.Stop()

	fw.AddFilter(func(path string) bool { return filepath.Ext(path) == ".vue" })
	c := &collector{}
	fw.AddHandler(c.handle)
	require.NoError(t, fw.AddRecursive(root))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, fw.Start(ctx))

	a := filepath.Join(root, "A.vue")
	require.NoError(t, os.WriteFile(a, []byte("<template><div/></template>"), 0644))
	testutils.WaitFor(t, 5*time.Second, func() bool { return c.find(a, EventTypeChange) })

	require.NoError(t, os.Mkdir(filepath.Join(root, "nested"), 0755))
	time.Sleep(50 * time.Millisecond)
	b := testutils.WriteFile(t, root, "nested/B.vue", "<template/>")
	testutils.WaitFor(t, 5*time.Second, func() bool { return c.find(b, EventTypeAdd) })

	require.NoError(t, os.Remove(a))
	testutils.WaitFor(t, 5*time.Second, func() bool { return c.find(a, EventTypeUnlink) })

	testutils.WriteFile(t, root, "notes.txt", "ignored")
	testutils.WriteFile(t, root, "node_modules/x/X.vue", "<template><p/></template>")
	time.Sleep(100 * time.Millisecond)
	assert.False(t, c.find(filepath.Join(root, "notes.txt"), EventTypeAdd))
	assert.False(t, c.find(filepath.Join(root, "node_modules", "x", "X.vue"), EventTypeChange))
}

func TestFileWatcherReportsFilesOfNewDirectories(t *testing.T) {
	root := testutils.CreateTempProject(t, map[string]string{"A.vue": "<template/>"})
	staging := testutils.CreateTempProject(t, map[string]string{
		"forms/Input.vue":          "<template/>",
		"forms/fields/Select.vue":  "<template/>",
		"forms/notes.txt":          "ignored",
		"forms/node_modules/X.vue": "<template/>",
	})

	fw, err := NewFileWatcher(Options{
		Debounce: 20 * time.Millisecond,
		SkipDir:  func(path string) bool { return filepath.Base(path) == "node_modules" },
	})
	require.NoError(t, err)
	defer fw.Stop()

	fw.AddFilter(func(path string) bool { return filepath.Ext(path) == ".vue" })
	c := &collector{}
	fw.AddHandler(c.handle)
	require.NoError(t, fw.AddRecursive(root))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, fw.Start(ctx))

	// a moved-in directory produces a single notification for itself
	require.NoError(t, os.Rename(filepath.Join(staging, "forms"), filepath.Join(root, "forms")))

	input := filepath.Join(root, "forms", "Input.vue")
	selectPath := filepath.Join(root, "forms", "fields", "Select.vue")
	testutils.WaitFor(t, 5*time.Second, func() bool {
		return c.find(input, EventTypeAdd) && c.find(selectPath, EventTypeAdd)
	})
	assert.False(t, c.find(filepath.Join(root, "forms", "notes.txt"), EventTypeAdd))
	assert.False(t, c.find(filepath.Join(root, "forms", "node_modules", "X.vue"), EventTypeAdd))

	// the moved-in tree is watched as well
	later := testutils.WriteFile(t, root, "forms/fields/Radio.vue", "<template/>")
	testutils.WaitFor(t, 5*time.Second, func() bool { return c.find(later, EventTypeAdd) })
}

func TestStopIsIdempotent(t *testing.T) {
	fw, err := NewFileWatcher(Options{})
	require.NoError(t, err)
	assert.NoError(t, fw.Stop())
	assert.NoError(t, fw.Stop())
}
