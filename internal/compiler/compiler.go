// Package compiler turns preview templates into browser modules.
//
// The RuntimeCompiler does not compile templates ahead of time. It emits a
// component definition carrying the template string, which the browser
// compiles with the full Vue build. Every module registers itself with the
// Vue HMR runtime under a stable id derived from the preview's identity.
package compiler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/zeebo/xxh3"
)

// Unit is one template to compile.
type Unit struct {
	// Template is the preview markup.
	Template string
	// ComponentName is the tag the previewed component is registered as.
	ComponentName string
	// ComponentURL is the browser import path of the component source.
	ComponentURL string
	// ID identifies the preview across edits, e.g. "src/Button.vue:1".
	ID string
	// Attrs are the preview block attributes.
	Attrs map[string]any
}

// Compiler compiles preview templates.
type Compiler interface {
	Compile(ctx context.Context, unit Unit) (string, error)
}

// Options configures the runtime compiler.
type Options struct {
	// VueImport is the module specifier of Vue.
	VueImport string
	// ProviderImport is the module specifier of the preview provider.
	ProviderImport string
}

// RuntimeCompiler emits runtime-compiled component modules.
type RuntimeCompiler struct {
	vueImport      string
	providerImport string
}

// NewRuntimeCompiler creates a runtime compiler.
func NewRuntimeCompiler(opts Options) *RuntimeCompiler {
	if opts.VueImport == "" {
		opts.VueImport = "vue"
	}
	if opts.ProviderImport == "" {
		opts.ProviderImport = "@preview/provider"
	}
	return &RuntimeCompiler{vueImport: opts.VueImport, providerImport: opts.ProviderImport}
}

// HMRID returns the hot-module id of a preview identity.
func HMRID(id string) string {
	return fmt.Sprintf("%016x", xxh3.HashString(id))
}

// Compile implements Compiler.
func (c *RuntimeCompiler) Compile(ctx context.Context, unit Unit) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if unit.ComponentName == "" {
		return "", fmt.Errorf("compile %s: missing component name", unit.ID)
	}

	attrs := unit.Attrs
	if attrs == nil {
		attrs = map[string]any{}
	}
	attrsJSON, err := marshal(attrs)
	if err != nil {
		return "", fmt.Errorf("compile %s: encode attrs: %w", unit.ID, err)
	}

	previewName := "unnamed"
	if name, ok := attrs["name"].(string); ok {
		previewName = name
	}

	var b strings.Builder
	fmt.Fprintf(&b, "import * as _Vue from %s\n", quote(c.vueImport))
	fmt.Fprintf(&b, "import * as _Preview from %s\n", quote(c.providerImport))
	fmt.Fprintf(&b, "import _component_self from %s\n", quote(unit.ComponentURL))
	b.WriteString("\n")
	b.WriteString("const _preview_main = _Vue.defineComponent({\n")
	fmt.Fprintf(&b, "  name: %s,\n", quote(fmt.Sprintf("Preview(%s):%s", unit.ComponentName, previewName)))
	b.WriteString("  inheritAttrs: false,\n")
	fmt.Fprintf(&b, "  _file: %s,\n", quote(unit.ComponentURL))
	fmt.Fprintf(&b, "  components: { %s: _component_self },\n", quote(unit.ComponentName))
	b.WriteString("  setup() {\n")
	fmt.Fprintf(&b, "    const $p = { ...(_Preview.provider ?? {}), attrs: %s, x: _Vue.inject('preview:UserProviders', null) }\n", attrsJSON)
	b.WriteString("    return { preview: $p }\n")
	b.WriteString("  },\n")
	b.WriteString("  created() {\n")
	b.WriteString("    this.$p = this.preview\n")
	b.WriteString("  },\n")
	fmt.Fprintf(&b, "  template: %s,\n", quote(strings.TrimSpace(unit.Template)))
	b.WriteString("})\n")
	b.WriteString("\n")
	fmt.Fprintf(&b, "_preview_main.__hmrId = '%s'\n", HMRID(unit.ID))
	b.WriteString("typeof __VUE_HMR_RUNTIME__ !== 'undefined' && __VUE_HMR_RUNTIME__.createRecord(_preview_main.__hmrId, _preview_main)\n")
	b.WriteString("if (import.meta.hot) {\n")
	b.WriteString("  import.meta.hot.accept(({ default: updated }) => {\n")
	b.WriteString("    __VUE_HMR_RUNTIME__.reload(updated.__hmrId, updated)\n")
	b.WriteString("  })\n")
	b.WriteString("}\n")
	b.WriteString("\n")
	b.WriteString("export default _preview_main\n")

	return b.String(), nil
}

// ComponentURL returns the browser import path of a root-relative source.
func ComponentURL(relPath string) string {
	return path.Join("/", relPath)
}

func quote(s string) string {
	data, _ := marshal(s)
	return data
}

// marshal encodes v as compact JSON without HTML escaping.
func marshal(v any) (string, error) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}
