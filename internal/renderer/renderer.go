// Package renderer resolves virtual resources to module text.
//
// The Loader is what the dev server calls for every /@preview/ request. It
// reads the component index and metadata from the registry, the preview
// blocks from the snapshot store, and hands preview templates to a
// compiler. Unresolvable resources fail with a descriptive not-found error
// instead of a module that throws at runtime.
package renderer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/conneroisu/sfcpreview/internal/analyze"
	"github.com/conneroisu/sfcpreview/internal/compiler"
	"github.com/conneroisu/sfcpreview/internal/descriptor"
	previewerrors "github.com/conneroisu/sfcpreview/internal/errors"
	"github.com/conneroisu/sfcpreview/internal/logging"
	"github.com/conneroisu/sfcpreview/internal/registry"
	"github.com/conneroisu/sfcpreview/internal/resource"
)

// DefaultSetupFiles are the root-level setup module names, in lookup order.
var DefaultSetupFiles = []string{"preview.ts", "preview.js"}

// Snapshots provides parsed source files.
type Snapshots interface {
	Get(ctx context.Context, path string) (*descriptor.Snapshot, error)
}

// Options configures a Loader.
type Options struct {
	SetupFiles []string
	ShellDir   string
	Logger     logging.Logger
}

// Loader turns resources into module text.
type Loader struct {
	components *registry.Store
	snapshots  Snapshots
	compiler   compiler.Compiler
	host       descriptor.FileSystemHost
	setupFiles []string
	shellDir   string
	logger     logging.Logger
}

// NewLoader creates a loader.
func NewLoader(components *registry.Store, snapshots Snapshots, c compiler.Compiler, host descriptor.FileSystemHost, opts Options) *Loader {
	if len(opts.SetupFiles) == 0 {
		opts.SetupFiles = DefaultSetupFiles
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	return &Loader{
		components: components,
		snapshots:  snapshots,
		compiler:   c,
		host:       host,
		setupFiles: opts.SetupFiles,
		shellDir:   opts.ShellDir,
		logger:     opts.Logger.WithComponent("loader"),
	}
}

// Load returns the module text of res.
func (l *Loader) Load(ctx context.Context, res resource.Resource) (string, error) {
	switch r := res.(type) {
	case resource.ListComponents:
		return l.components.Text(), nil
	case resource.UserSetup:
		return l.setupModule(), nil
	case resource.ComponentMeta:
		return l.metaModule(ctx, r.FileName)
	case resource.EntryScript:
		return l.entryModule(ctx, r)
	case resource.ComponentInstance:
		if !r.Index.Set {
			return l.defaultInstance(ctx, r.FileName)
		}
		return l.previewInstance(ctx, r.FileName, r.Index.Value)
	case resource.ShellAsset:
		return l.shellAsset(ctx, r.FileName)
	}

	return "", previewerrors.NewInternalError(previewerrors.ErrCodeInternalError, fmt.Sprintf("unsupported resource %T", res), nil)
}

// SetupFile returns the absolute path of the project's setup module, or ""
// when the project has none.
func (l *Loader) SetupFile() string {
	for _, name := range l.setupFiles {
		candidate := filepath.Join(l.components.Root(), name)
		if l.host.Exists(candidate) {
			return candidate
		}
	}
	return ""
}

// IsSetupFile reports whether fileName is one of the setup module names at
// the project root.
func (l *Loader) IsSetupFile(fileName string) bool {
	abs := l.components.AbsPath(fileName)
	for _, name := range l.setupFiles {
		if abs == filepath.Join(l.components.Root(), name) {
			return true
		}
	}
	return false
}

func (l *Loader) setupModule() string {
	lines := []string{}
	if setup := l.SetupFile(); setup != "" {
		lines = append(lines,
			fmt.Sprintf("import * as preview from %s", jsString(compiler.ComponentURL(l.components.RelPath(setup)))),
			"import * as vue from 'vue'",
			"",
			"export const createApp = preview.createApp ?? vue.createApp",
			"export const x = preview.x ?? {}",
		)
	} else {
		lines = append(lines,
			"import * as vue from 'vue'",
			"",
			"export const createApp = vue.createApp",
			"export const x = {}",
		)
	}
	return strings.Join(lines, "\n") + "\n"
}

func (l *Loader) metaModule(ctx context.Context, fileName string) (string, error) {
	if _, ok := l.components.Get(ctx, fileName); !ok {
		return "", previewerrors.ErrComponentNotFound(fileName)
	}
	return "export default " + l.components.RecordText(fileName) + "\n", nil
}

func (l *Loader) entryModule(ctx context.Context, r resource.EntryScript) (string, error) {
	attrs := map[string]any{}
	if r.Index.Set {
		snapshot, err := l.snapshot(ctx, r.FileName)
		if err != nil {
			return "", err
		}
		if r.Index.Value >= len(snapshot.Previews) {
			return "", previewerrors.ErrNoSuchPreview(r.FileName, r.Index.Value)
		}
		for key, value := range snapshot.Previews[r.Index.Value].Attrs {
			attrs[key] = value
		}
	} else if _, ok := l.components.Get(ctx, r.FileName); !ok {
		return "", previewerrors.ErrComponentNotFound(r.FileName)
	}

	var attrsJSON bytes.Buffer
	encoder := json.NewEncoder(&attrsJSON)
	encoder.SetEscapeHTML(false)
	err := encoder.Encode(attrs)
	if err != nil {
		return "", previewerrors.NewInternalError(previewerrors.ErrCodeInternalError, "encode preview attributes", err)
	}
	instance := resource.URL(resource.ComponentInstance{FileName: r.FileName, Index: r.Index})

	return strings.Join([]string{
		fmt.Sprintf("import { createApp, x } from %s", jsString(resource.URL(resource.UserSetup{}))),
		fmt.Sprintf("import App from %s", jsString(instance)),
		"",
		fmt.Sprintf("const app = createApp(App, %s)", strings.TrimSpace(attrsJSON.String())),
		"app.provide('preview:UserProviders', x)",
		"app.mount('#app')",
		"",
	}, "\n"), nil
}

func (l *Loader) previewInstance(ctx context.Context, fileName string, index int) (string, error) {
	snapshot, err := l.snapshot(ctx, fileName)
	if err != nil {
		return "", err
	}
	if index >= len(snapshot.Previews) {
		return "", previewerrors.ErrNoSuchPreview(fileName, index)
	}

	block := snapshot.Previews[index]
	template := block.Content
	if block.Src != "" {
		srcPath := filepath.Join(filepath.Dir(snapshot.Path), filepath.FromSlash(block.Src))
		if root := l.components.Root(); srcPath != root && !strings.HasPrefix(srcPath, root+string(filepath.Separator)) {
			return "", previewerrors.ErrPathTraversal(block.Src).WithLocation(fileName, block.Loc.Line, 0)
		}
		content, err := l.host.ReadFile(ctx, srcPath)
		if err != nil {
			return "", previewerrors.NewIOError(previewerrors.ErrCodeFileNotFound, "read preview source "+block.Src, err).
				WithLocation(fileName, block.Loc.Line, 0)
		}
		template = content
	}

	rel := l.components.RelPath(fileName)
	return l.compiler.Compile(ctx, compiler.Unit{
		Template:      template,
		ComponentName: ComponentName(rel),
		ComponentURL:  compiler.ComponentURL(rel),
		ID:            fmt.Sprintf("%s:%d", rel, index),
		Attrs:         block.Attrs,
	})
}

func (l *Loader) defaultInstance(ctx context.Context, fileName string) (string, error) {
	if _, ok := l.components.Get(ctx, fileName); !ok {
		return "", previewerrors.ErrComponentNotFound(fileName)
	}

	rel := l.components.RelPath(fileName)
	name := ComponentName(rel)
	info := l.components.Info(ctx, fileName)

	return l.compiler.Compile(ctx, compiler.Unit{
		Template:      DefaultTemplate(name, info),
		ComponentName: name,
		ComponentURL:  compiler.ComponentURL(rel),
		ID:            rel + ":auto",
	})
}

func (l *Loader) shellAsset(ctx context.Context, fileName string) (string, error) {
	if l.shellDir == "" {
		return "", previewerrors.ErrComponentNotFound(fileName)
	}
	// rooting the name before cleaning keeps it inside the shell directory
	clean := path.Clean("/" + strings.ReplaceAll(fileName, "\\", "/"))
	full := filepath.Join(l.shellDir, filepath.FromSlash(clean))

	content, err := l.host.ReadFile(ctx, full)
	if err != nil {
		return "", previewerrors.NewIOError(previewerrors.ErrCodeFileNotFound, "read shell asset "+fileName, err)
	}
	return content, nil
}

func (l *Loader) snapshot(ctx context.Context, fileName string) (*descriptor.Snapshot, error) {
	if _, ok := l.components.Get(ctx, fileName); !ok {
		return nil, previewerrors.ErrComponentNotFound(fileName)
	}
	return l.snapshots.Get(ctx, l.components.AbsPath(fileName))
}

// DefaultTemplate renders the markup of a file's default instance: the
// component with placeholder values for its required props and a stub in
// the default slot.
func DefaultTemplate(componentName string, info *analyze.Info) string {
	var props strings.Builder
	if info != nil {
		for _, prop := range info.Props {
			if prop.Required {
				value := strings.ReplaceAll(PropValue(prop), `"`, "'")
				fmt.Fprintf(&props, ` :%s="%s"`, prop.Name, value)
			}
		}
	}

	return strings.Join([]string{
		fmt.Sprintf("<%s%s>", componentName, props.String()),
		` <component :is="this.$p.stub.static('Slot: default')" />`,
		fmt.Sprintf("</%s>", componentName),
	}, "\n")
}

// PropValue returns a placeholder expression for a prop.
func PropValue(prop analyze.Prop) string {
	if prop.Default != "" {
		if strings.Contains(prop.Default, "=>") || strings.HasPrefix(prop.Default, "function") {
			return "(" + prop.Default + ")()"
		}
		return prop.Default
	}

	switch prop.Type {
	case analyze.TypeString:
		return "$p.string()"
	case analyze.TypeNumber:
		return "$p.number()"
	case analyze.TypeBoolean:
		return "$p.bool()"
	case analyze.TypeEnum:
		values, _ := json.Marshal(prop.Values)
		return fmt.Sprintf("(%s)[$p.number.int.in(0, %d)]", values, len(prop.Values)-1)
	}
	return "null"
}

func jsString(s string) string {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	_ = encoder.Encode(s)
	return strings.TrimSuffix(buf.String(), "\n")
}
