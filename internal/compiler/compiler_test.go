package compiler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompile(t *testing.T) {
	c := NewRuntimeCompiler(Options{})

	code, err := c.Compile(context.Background(), Unit{
		Template:      "\n  <Button label=\"Save\" />\n",
		ComponentName: "Button",
		ComponentURL:  "/src/Button.vue",
		ID:            "src/Button.vue:0",
		Attrs:         map[string]any{"name": "Primary", "dark": true},
	})
	require.NoError(t, err)

	assert.Contains(t, code, `import * as _Vue from "vue"`)
	assert.Contains(t, code, `import _component_self from "/src/Button.vue"`)
	assert.Contains(t, code, `name: "Preview(Button):Primary"`)
	assert.Contains(t, code, `components: { "Button": _component_self }`)
	assert.Contains(t, code, `template: "<Button label=\"Save\" />"`)
	assert.Contains(t, code, `attrs: {"dark":true,"name":"Primary"}`)
	assert.Contains(t, code, "_preview_main.__hmrId = '"+HMRID("src/Button.vue:0")+"'")
	assert.Contains(t, code, "export default _preview_main")
}

func TestCompileWithoutName(t *testing.T) {
	code, err := NewRuntimeCompiler(Options{VueImport: "/node_modules/vue/dist/vue.esm-browser.js"}).
		Compile(context.Background(), Unit{Template: "<A />", ComponentName: "A", ComponentURL: "/A.vue", ID: "A.vue:auto"})
	require.NoError(t, err)

	assert.Contains(t, code, `"Preview(A):unnamed"`)
	assert.Contains(t, code, `attrs: {}`)
	assert.Contains(t, code, `from "/node_modules/vue/dist/vue.esm-browser.js"`)
}

func TestCompileErrors(t *testing.T) {
	c := NewRuntimeCompiler(Options{})

	_, err := c.Compile(context.Background(), Unit{Template: "<A />"})
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Compile(ctx, Unit{Template: "<A />", ComponentName: "A"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHMRID(t *testing.T) {
	assert.Len(t, HMRID("a.vue:0"), 16)
	assert.Equal(t, HMRID("a.vue:0"), HMRID("a.vue:0"))
	assert.NotEqual(t, HMRID("a.vue:0"), HMRID("a.vue:1"))
}

func TestComponentURL(t *testing.T) {
	assert.Equal(t, "/src/Button.vue", ComponentURL("src/Button.vue"))
	assert.Equal(t, "/A.vue", ComponentURL("A.vue"))
}
