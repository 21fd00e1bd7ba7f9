//go:build integration
// +build integration

package integration_tests

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/sfcpreview/internal/resource"
	"github.com/conneroisu/sfcpreview/internal/server"
)

func instancePath(file string, i int) string {
	return resource.URL(resource.ComponentInstance{FileName: file, Index: resource.At(i)})
}

func TestEditingOnePreviewPushesOnlyItsModule(t *testing.T) {
	root := t.TempDir()
	writeProject(t, root, map[string]string{
		"Button.vue": component("<button><slot /></button>", "<Button>A</Button>", "<Button>B</Button>"),
	})
	d := startDevServer(t, root)

	d.get(t, instancePath("Button.vue", 0))
	d.get(t, instancePath("Button.vue", 1))
	conn := d.dial(t)

	d.write(t, "Button.vue", component("<button><slot /></button>", "<Button>A</Button>", "<Button>B2</Button>"))

	message := awaitMessage(t, conn, server.MessageUpdate)
	paths := updatedPaths(message)
	assert.Contains(t, paths, instancePath("Button.vue", 1))
	assert.NotContains(t, paths, instancePath("Button.vue", 0))

	body := d.get(t, instancePath("Button.vue", 1))
	assert.Contains(t, body, "B2")
}

func TestNewComponentRefreshesIndex(t *testing.T) {
	root := t.TempDir()
	d := startDevServer(t, root)
	conn := d.dial(t)

	index := d.get(t, resource.URL(resource.ListComponents{}))
	assert.Contains(t, index, "export const components = []")

	d.write(t, "forms/Input.vue", component("<input />", "<Input />"))

	message := awaitMessage(t, conn, server.MessageUpdate)
	assert.Contains(t, updatedPaths(message), resource.URL(resource.ListComponents{}))

	index = d.get(t, resource.URL(resource.ListComponents{}))
	assert.Contains(t, index, `"id": "forms/Input"`)
	assert.Contains(t, index, `"name": "Preview A"`)
}

func TestParseErrorShowsOverlayUntilFixed(t *testing.T) {
	root := t.TempDir()
	writeProject(t, root, map[string]string{"Card.vue": component("<div />", "<Card />")})
	d := startDevServer(t, root)
	d.get(t, instancePath("Card.vue", 0))
	conn := d.dial(t)

	d.write(t, "Card.vue", "<template>\n  <div>\n")

	failure := awaitMessage(t, conn, server.MessageError)
	require.NotNil(t, failure.Err)
	assert.Contains(t, failure.Err.File, "Card.vue")
	assert.NotEmpty(t, d.session.Errors())

	// the previous record stays authoritative
	record, ok := d.session.Components().Get(t.Context(), "Card.vue")
	require.True(t, ok)
	assert.Len(t, record.Previews, 1)

	d.write(t, "Card.vue", component("<div />", "<Card>fixed</Card>"))
	message := awaitMessage(t, conn, server.MessageUpdate)
	assert.Contains(t, updatedPaths(message), instancePath("Card.vue", 0))
	assert.Empty(t, d.session.Errors())
}

func TestSetupFileTriggersFullReload(t *testing.T) {
	d := startDevServer(t, t.TempDir())
	conn := d.dial(t)

	d.write(t, "preview.js", "export const x = { theme: 'dark' }\n")

	awaitMessage(t, conn, server.MessageFullReload)
	assert.Contains(t, d.get(t, resource.URL(resource.UserSetup{})), "preview.x")
}
