package registry

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/sfcpreview/internal/analyze"
	"github.com/conneroisu/sfcpreview/internal/descriptor"
	"github.com/conneroisu/sfcpreview/internal/sfc"
	"github.com/conneroisu/sfcpreview/internal/testutils"
)

const root = "/project"

func abs(rel string) string {
	return filepath.Join(root, filepath.FromSlash(rel))
}

type fixture struct {
	host      *testutils.MapFS
	snapshots *descriptor.Store
	store     *Store
}

func newFixture(t *testing.T, files map[string]string, analyzer analyze.Analyzer) *fixture {
	t.Helper()
	absFiles := make(map[string]string, len(files))
	for rel, content := range files {
		absFiles[abs(rel)] = content
	}

	host := testutils.NewMapFS(absFiles)
	snapshots, err := descriptor.NewStore(host, descriptor.Options{})
	require.NoError(t, err)

	return &fixture{
		host:      host,
		snapshots: snapshots,
		store:     NewStore(snapshots, host, Options{Root: root, Analyzer: analyzer}),
	}
}

func TestAddWithoutPreviews(t *testing.T) {
	f := newFixture(t, map[string]string{"src/Alert.vue": testutils.Component("<div/>")}, nil)
	ctx := context.Background()

	require.NoError(t, f.store.Add(ctx, "src/Alert.vue"))

	component, ok := f.store.Get(ctx, "src/Alert.vue")
	require.True(t, ok)
	assert.Equal(t, "src/Alert", component.ID)
	assert.Equal(t, "Alert", component.Name)
	assert.Equal(t, "src/Alert.vue", component.Path)
	assert.Equal(t, abs("src/Alert.vue"), component.AbsPath())
	assert.NotNil(t, component.Previews)
	assert.Empty(t, component.Previews)

	text := f.store.Text()
	assert.True(t, strings.HasPrefix(text, "export const components = [\n  {\n"))
	assert.Contains(t, text, `"name": "Alert"`)
	assert.Contains(t, text, `"previews": []`)
	assert.Contains(t, text, "import.meta.hot.accept")
}

func TestPreviewMetadata(t *testing.T) {
	source := testutils.Component("<button/>",
		`name="Primary" device="iphone-x" dark|<Button />`,
		`width="320"|<Button />`,
		`name|<Button />`,
	)
	f := newFixture(t, map[string]string{"Button.vue": source}, nil)

	require.NoError(t, f.store.Add(context.Background(), "Button.vue"))
	component, ok := f.store.Get(context.Background(), "Button.vue")
	require.True(t, ok)

	assert.Equal(t, []Preview{
		{ID: 0, Name: "Primary", Device: "iphone-x", DeviceProps: sfc.Attrs{"dark": true}},
		{ID: 1, Name: "Preview 2", Device: DefaultDevice, DeviceProps: sfc.Attrs{"width": "320"}},
		{ID: 2, Name: "Preview 3", Device: DefaultDevice, DeviceProps: sfc.Attrs{}},
	}, component.Previews)
}

func TestWindowsSeparatorsAreNormalized(t *testing.T) {
	f := newFixture(t, map[string]string{"a/b/Card.vue": testutils.Component("<div/>")}, nil)

	require.NoError(t, f.store.Add(context.Background(), `a\b\Card.vue`))

	component, ok := f.store.Get(context.Background(), "a/b/Card.vue")
	require.True(t, ok)
	assert.Equal(t, "a/b/Card", component.ID)
	assert.Equal(t, 1, f.store.Count())
}

func TestReloadAndRemoveUnknownAreNoOps(t *testing.T) {
	f := newFixture(t, nil, nil)

	assert.NoError(t, f.store.Reload(context.Background(), "Missing.vue"))
	assert.NotPanics(t, func() { f.store.Remove("Missing.vue") })
	assert.Equal(t, 0, f.store.Count())
}

func TestReloadPicksUpSnapshot(t *testing.T) {
	f := newFixture(t, map[string]string{"A.vue": testutils.Component("<div/>")}, nil)
	ctx := context.Background()
	require.NoError(t, f.store.Add(ctx, "A.vue"))
	before := f.store.Text()

	_, err := f.snapshots.Set(abs("A.vue"), testutils.Component("<div/>", `name="Default"|<A />`))
	require.NoError(t, err)
	require.NoError(t, f.store.Reload(ctx, "A.vue"))

	component, _ := f.store.Get(ctx, "A.vue")
	require.Len(t, component.Previews, 1)
	assert.Equal(t, "Default", component.Previews[0].Name)
	assert.NotEqual(t, before, f.store.Text())
}

func TestTextIsMemoized(t *testing.T) {
	f := newFixture(t, map[string]string{"A.vue": testutils.Component("<div/>")}, nil)
	require.NoError(t, f.store.Add(context.Background(), "A.vue"))

	first := f.store.Text()
	second := f.store.Text()
	assert.Equal(t, first, second)

	f.store.Remove("A.vue")
	assert.NotEqual(t, first, f.store.Text())
	assert.Contains(t, f.store.Text(), "export const components = []")
}

func TestTextIsIndependentOfAddOrder(t *testing.T) {
	files := map[string]string{
		"z/Button.vue": testutils.Component("<b/>"),
		"a/Button.vue": testutils.Component("<b/>"),
		"Card.vue":     testutils.Component("<c/>"),
		"alert.vue":    testutils.Component("<a/>"),
	}
	orders := [][]string{
		{"z/Button.vue", "a/Button.vue", "Card.vue", "alert.vue"},
		{"alert.vue", "Card.vue", "a/Button.vue", "z/Button.vue"},
		{"Card.vue", "z/Button.vue", "alert.vue", "a/Button.vue"},
	}

	var texts []string
	for _, order := range orders {
		f := newFixture(t, files, nil)
		for _, rel := range order {
			require.NoError(t, f.store.Add(context.Background(), rel))
		}
		texts = append(texts, f.store.Text())
	}

	assert.Equal(t, texts[0], texts[1])
	assert.Equal(t, texts[0], texts[2])

	names := []string{}
	f := newFixture(t, files, nil)
	for _, rel := range orders[0] {
		require.NoError(t, f.store.Add(context.Background(), rel))
	}
	for _, component := range f.store.All() {
		names = append(names, component.Path)
	}
	assert.Equal(t, []string{"a/Button.vue", "z/Button.vue", "Card.vue", "alert.vue"}, names)
}

func TestIsSupported(t *testing.T) {
	f := newFixture(t, nil, nil)

	tests := []struct {
		path     string
		expected bool
	}{
		{"src/Button.vue", true},
		{abs("src/Button.vue"), true},
		{"src/Button.ts", false},
		{"../outside/Button.vue", false},
		{"src/../../Button.vue", false},
		{"/elsewhere/Button.vue", false},
		{"/projectile/Button.vue", false},
		{"..hidden.vue", true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.expected, f.store.IsSupported(tt.path))
		})
	}
}

func TestGetAddsLazily(t *testing.T) {
	f := newFixture(t, map[string]string{"Late.vue": testutils.Component("<div/>", "<Late />")}, nil)

	component, ok := f.store.Get(context.Background(), "Late.vue")
	require.True(t, ok)
	assert.Len(t, component.Previews, 1)

	_, ok = f.store.Get(context.Background(), "Nope.vue")
	assert.False(t, ok)
	_, ok = f.store.Get(context.Background(), "Late.txt")
	assert.False(t, ok)
}

// gatedSource blocks Get until released.
type gatedSource struct {
	inner   SnapshotSource
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedSource) Get(ctx context.Context, path string) (*descriptor.Snapshot, error) {
	g.once.Do(func() {
		close(g.entered)
		<-g.release
	})
	return g.inner.Get(ctx, path)
}

func TestRemoveWinsOverInFlightReload(t *testing.T) {
	host := testutils.NewMapFS(map[string]string{abs("A.vue"): testutils.Component("<div/>", "<A />")})
	snapshots, err := descriptor.NewStore(host, descriptor.Options{})
	require.NoError(t, err)

	plain := NewStore(snapshots, host, Options{Root: root})
	require.NoError(t, plain.Add(context.Background(), "A.vue"))

	gated := &gatedSource{inner: snapshots, entered: make(chan struct{}), release: make(chan struct{})}
	store := NewStore(gated, host, Options{Root: root})
	store.components = plain.components
	store.generations = plain.generations
	store.generation = plain.generation

	done := make(chan error, 1)
	go func() { done <- store.Reload(context.Background(), "A.vue") }()

	<-gated.entered
	store.Remove("A.vue")
	close(gated.release)

	require.NoError(t, <-done)
	_, exists := store.components[abs("A.vue")]
	assert.False(t, exists)
	assert.Equal(t, 0, store.Count())
}

func TestWatchEvents(t *testing.T) {
	f := newFixture(t, map[string]string{"A.vue": testutils.Component("<div/>", `name="First"|<A />`)}, nil)
	events := f.store.Watch()
	defer f.store.UnWatch(events)

	ctx := context.Background()
	require.NoError(t, f.store.Add(ctx, "A.vue"))
	require.NoError(t, f.store.Reload(ctx, "A.vue"))
	f.store.Remove("A.vue")

	var received []Event
	for i := 0; i < 3; i++ {
		select {
		case event := <-events:
			received = append(received, event)
		case <-time.After(time.Second):
			t.Fatal("missing event")
		}
	}

	assert.Equal(t, EventTypeAdded, received[0].Type)
	require.Len(t, received[0].Component.Previews, 1, "added records are published complete")
	assert.Equal(t, "First", received[0].Component.Previews[0].Name)
	assert.Equal(t, EventTypeUpdated, received[1].Type)
	assert.Equal(t, EventTypeRemoved, received[2].Type)

	select {
	case event := <-events:
		t.Fatalf("unexpected %s event", event.Type)
	default:
	}
}

func TestAddPublishesCompleteRecord(t *testing.T) {
	host := testutils.NewMapFS(map[string]string{abs("A.vue"): testutils.Component("<div/>", `name="First"|<A />`)})
	snapshots, err := descriptor.NewStore(host, descriptor.Options{})
	require.NoError(t, err)

	gated := &gatedSource{inner: snapshots, entered: make(chan struct{}), release: make(chan struct{})}
	store := NewStore(gated, host, Options{Root: root})

	done := make(chan error, 1)
	go func() { done <- store.Add(context.Background(), "A.vue") }()

	<-gated.entered
	assert.Equal(t, 0, store.Count())
	assert.Contains(t, store.Text(), "export const components = []")
	close(gated.release)
	require.NoError(t, <-done)

	assert.Contains(t, store.Text(), `"name": "First"`)
}

func TestRemoveWinsOverInFlightAdd(t *testing.T) {
	host := testutils.NewMapFS(map[string]string{abs("A.vue"): testutils.Component("<div/>", "<A />")})
	snapshots, err := descriptor.NewStore(host, descriptor.Options{})
	require.NoError(t, err)

	gated := &gatedSource{inner: snapshots, entered: make(chan struct{}), release: make(chan struct{})}
	store := NewStore(gated, host, Options{Root: root})

	done := make(chan error, 1)
	go func() { done <- store.Add(context.Background(), "A.vue") }()

	<-gated.entered
	store.Remove("A.vue")
	close(gated.release)

	require.NoError(t, <-done)
	assert.Equal(t, 0, store.Count())
	assert.Empty(t, store.generations)
}

func TestRemoveForgetsGenerations(t *testing.T) {
	f := newFixture(t, map[string]string{
		"A.vue": testutils.Component("<div/>"),
		"B.vue": testutils.Component("<div/>"),
	}, nil)
	ctx := context.Background()

	require.NoError(t, f.store.Add(ctx, "A.vue"))
	require.NoError(t, f.store.Add(ctx, "B.vue"))
	f.store.Remove("A.vue")
	f.store.Remove("Missing.vue")

	assert.Len(t, f.store.generations, 1)
	assert.Contains(t, f.store.generations, abs("B.vue"))

	require.NoError(t, f.store.Add(ctx, "A.vue"))
	_, ok := f.store.Get(ctx, "A.vue")
	assert.True(t, ok)
}

type stubAnalyzer struct {
	info *analyze.Info
	err  error
}

func (s stubAnalyzer) Analyze(context.Context, *sfc.Descriptor) (*analyze.Info, error) {
	return s.info, s.err
}

func TestAnalysisEnrichesRecord(t *testing.T) {
	info := &analyze.Info{Props: []analyze.Prop{{Name: "label", Type: analyze.TypeString, Required: true}}}
	f := newFixture(t, map[string]string{"A.vue": testutils.Component("<div/>")}, stubAnalyzer{info: info})
	require.NoError(t, f.store.Add(context.Background(), "A.vue"))
	before := f.store.Text()

	f.store.WaitForAnalysis()

	component, _ := f.store.Get(context.Background(), "A.vue")
	assert.Equal(t, info, component.Info)
	assert.Equal(t, before, f.store.Text())
	assert.NotContains(t, f.store.Text(), "label")
	assert.Contains(t, f.store.RecordText("A.vue"), `"label"`)
}

func TestAnalysisFailureIsDiscarded(t *testing.T) {
	f := newFixture(t, map[string]string{"A.vue": testutils.Component("<div/>", "<A />")}, stubAnalyzer{err: errors.New("boom")})
	require.NoError(t, f.store.Add(context.Background(), "A.vue"))
	f.store.WaitForAnalysis()

	component, ok := f.store.Get(context.Background(), "A.vue")
	require.True(t, ok)
	assert.Nil(t, component.Info)
	assert.Len(t, component.Previews, 1)
	assert.Nil(t, f.store.Info(context.Background(), "A.vue"))
}

func TestAddParseFailure(t *testing.T) {
	f := newFixture(t, map[string]string{"Broken.vue": "<template>"}, nil)

	err := f.store.Add(context.Background(), "Broken.vue")
	require.Error(t, err)

	component, ok := f.store.Get(context.Background(), "Broken.vue")
	require.True(t, ok)
	assert.Empty(t, component.Previews)
}
