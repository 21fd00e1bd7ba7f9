package descriptor

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	previewerrors "github.com/conneroisu/sfcpreview/internal/errors"
	"github.com/conneroisu/sfcpreview/internal/testutils"
)

func newTestStore(t *testing.T, host FileSystemHost, parser *testutils.CountingParser, capacity int) *Store {
	t.Helper()
	store, err := NewStore(host, Options{Capacity: capacity, Parse: parser.Parse})
	require.NoError(t, err)
	return store
}

func TestSetIsContentAddressed(t *testing.T) {
	parser := &testutils.CountingParser{}
	store := newTestStore(t, testutils.NewMapFS(nil), parser, 0)
	source := testutils.Component("<Alert/>", `name="Default"|<Alert />`)

	first, err := store.Set("/p/Alert.vue", source)
	require.NoError(t, err)
	second, err := store.Set("/p/Alert.vue", source)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, parser.Calls())

	third, err := store.Set("/p/Alert.vue", source+"\n")
	require.NoError(t, err)
	assert.NotSame(t, first, third)
	assert.Equal(t, 2, parser.Calls())
	assert.NotEqual(t, first.Hash, third.Hash)
}

func TestZeroPreviewsIsEmptyList(t *testing.T) {
	store := newTestStore(t, testutils.NewMapFS(nil), &testutils.CountingParser{}, 0)

	snapshot, err := store.Set("/p/Alert.vue", "<template><div/></template>")
	require.NoError(t, err)

	assert.NotNil(t, snapshot.Previews)
	assert.Empty(t, snapshot.Previews)
}

func TestGetReadsLazily(t *testing.T) {
	host := testutils.NewMapFS(map[string]string{
		"/p/Alert.vue": testutils.Component("<div/>", "<Alert />"),
	})
	store := newTestStore(t, host, &testutils.CountingParser{}, 0)

	assert.Nil(t, store.GetOrNull("/p/Alert.vue"))
	assert.Equal(t, 0, host.Reads("/p/Alert.vue"))

	snapshot, err := store.Get(context.Background(), "/p/Alert.vue")
	require.NoError(t, err)
	require.Len(t, snapshot.Previews, 1)

	again, err := store.Get(context.Background(), "/p/Alert.vue")
	require.NoError(t, err)
	assert.Same(t, snapshot, again)
	assert.Equal(t, 1, host.Reads("/p/Alert.vue"))
	assert.Same(t, snapshot, store.GetOrNull("/p/Alert.vue"))
}

func TestGetMissingFile(t *testing.T) {
	store := newTestStore(t, testutils.NewMapFS(nil), &testutils.CountingParser{}, 0)

	_, err := store.Get(context.Background(), "/p/Missing.vue")
	require.Error(t, err)
	assert.True(t, previewerrors.IsNotFound(err))
}

func TestParseFailureKeepsPreviousSnapshot(t *testing.T) {
	store := newTestStore(t, testutils.NewMapFS(nil), &testutils.CountingParser{}, 0)

	good, err := store.Set("/p/A.vue", testutils.Component("<div/>", "<A />"))
	require.NoError(t, err)

	broken, err := store.Set("/p/A.vue", "<template>\n<div>")
	require.Error(t, err)
	assert.Nil(t, broken)
	assert.True(t, previewerrors.IsParseError(err))

	assert.Same(t, good, store.GetOrNull("/p/A.vue"))
}

func TestCompanionPreviewsComeFirst(t *testing.T) {
	host := testutils.NewMapFS(map[string]string{
		"/p/Button.vue":   testutils.Component("<button/>", `name="Main"|<Button />`),
		"/p/Button.vue.p": `<preview name="Side"><Button disabled /></preview>`,
	})
	store := newTestStore(t, host, &testutils.CountingParser{}, 0)

	snapshot, err := store.Get(context.Background(), "/p/Button.vue")
	require.NoError(t, err)
	require.Len(t, snapshot.Previews, 2)
	assert.Equal(t, "Side", snapshot.Previews[0].Attrs["name"])
	assert.Equal(t, "Main", snapshot.Previews[1].Attrs["name"])

	updated, err := store.SetCompanion(context.Background(), "/p/Button.vue", "")
	require.NoError(t, err)
	require.Len(t, updated.Previews, 1)
	assert.Equal(t, "Main", updated.Previews[0].Attrs["name"])

	same, err := store.SetCompanion(context.Background(), "/p/Button.vue", "")
	require.NoError(t, err)
	assert.Same(t, updated, same)
}

func TestSetPicksUpCompanionOnFirstSight(t *testing.T) {
	host := testutils.NewMapFS(map[string]string{
		"/p/Card.vue.p": `<preview name="Side"><Card /></preview>`,
	})
	store := newTestStore(t, host, &testutils.CountingParser{}, 0)

	snapshot, err := store.Set("/p/Card.vue", testutils.Component("<div/>"))
	require.NoError(t, err)
	require.Len(t, snapshot.Previews, 1)
	assert.Equal(t, "Side", snapshot.Previews[0].Attrs["name"])
}

func TestReloadUnchangedKeepsSnapshot(t *testing.T) {
	host := testutils.NewMapFS(map[string]string{"/p/A.vue": testutils.Component("<div/>")})
	parser := &testutils.CountingParser{}
	store := newTestStore(t, host, parser, 0)

	first, err := store.Reload(context.Background(), "/p/A.vue")
	require.NoError(t, err)
	second, err := store.Reload(context.Background(), "/p/A.vue")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, parser.Calls())

	host.Write("/p/A.vue", testutils.Component("<p/>"))
	third, err := store.Reload(context.Background(), "/p/A.vue")
	require.NoError(t, err)
	assert.NotSame(t, first, third)
}

func TestCapacityEvictsLeastRecentlyUsed(t *testing.T) {
	store := newTestStore(t, testutils.NewMapFS(nil), &testutils.CountingParser{}, 2)

	for i := 0; i < 3; i++ {
		_, err := store.Set(fmt.Sprintf("/p/C%d.vue", i), testutils.Component("<div/>"))
		require.NoError(t, err)
	}

	assert.Equal(t, 2, store.Len())
	assert.Nil(t, store.GetOrNull("/p/C0.vue"))
	assert.NotNil(t, store.GetOrNull("/p/C2.vue"))
}

func TestDelete(t *testing.T) {
	store := newTestStore(t, testutils.NewMapFS(nil), &testutils.CountingParser{}, 0)

	_, err := store.Set("/p/A.vue", testutils.Component("<div/>"))
	require.NoError(t, err)

	store.Delete("/p/A.vue")
	assert.Nil(t, store.GetOrNull("/p/A.vue"))
	assert.Equal(t, 0, store.Len())
}
