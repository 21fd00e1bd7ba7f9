package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/sfcpreview/internal/config"
	"github.com/conneroisu/sfcpreview/internal/resource"
)

func TestInitCommand(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "app")
	initForce, initNoSetup = false, false

	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)

	require.NoError(t, runInit(cmd, []string{dir}))

	data, err := os.ReadFile(filepath.Join(dir, config.FileName+".yml"))
	require.NoError(t, err)
	var written config.Config
	require.NoError(t, yaml.Unmarshal(data, &written))
	assert.Equal(t, config.Default().Server.Port, written.Server.Port)
	assert.Equal(t, config.Default().Components.Extension, written.Components.Extension)

	setup, err := os.ReadFile(filepath.Join(dir, "preview.js"))
	require.NoError(t, err)
	assert.Contains(t, string(setup), "export function createApp")
	assert.Contains(t, out.String(), "created:")
}

func TestInitSkipsExistingFiles(t *testing.T) {
	dir := t.TempDir()
	setupPath := filepath.Join(dir, "preview.js")
	require.NoError(t, os.WriteFile(setupPath, []byte("// mine\n"), 0644))

	initForce, initNoSetup = false, false
	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)

	require.NoError(t, runInit(cmd, []string{dir}))

	setup, err := os.ReadFile(setupPath)
	require.NoError(t, err)
	assert.Equal(t, "// mine\n", string(setup))
	assert.Contains(t, out.String(), "exists, skipped: "+setupPath)

	initForce = true
	defer func() { initForce = false }()
	require.NoError(t, runInit(cmd, []string{dir}))

	setup, err = os.ReadFile(setupPath)
	require.NoError(t, err)
	assert.Equal(t, setupTemplate, string(setup))
}

func TestInitWithoutSetup(t *testing.T) {
	dir := t.TempDir()
	initForce, initNoSetup = false, true
	defer func() { initNoSetup = false }()

	cmd := &cobra.Command{}
	cmd.SetOut(&bytes.Buffer{})
	require.NoError(t, runInit(cmd, []string{dir}))

	assert.FileExists(t, filepath.Join(dir, config.FileName+".yml"))
	assert.NoFileExists(t, filepath.Join(dir, "preview.js"))
}

func TestModuleAddress(t *testing.T) {
	tests := []struct {
		name     string
		file     string
		index    int
		kind     string
		args     []string
		address  string
		root     string
		hasError bool
	}{
		{
			name:    "raw address",
			args:    []string{"@preview/components.js", "./app"},
			address: "@preview/components.js",
			root:    "./app",
		},
		{
			name:     "no address",
			hasError: true,
		},
		{
			name:    "default instance",
			file:    "src/Button.vue",
			index:   -1,
			kind:    "component",
			address: resource.Encode(resource.ComponentInstance{FileName: "src/Button.vue", Index: resource.Default}),
		},
		{
			name:    "entry at index",
			file:    "src/Button.vue",
			index:   2,
			kind:    "entry",
			args:    []string{"./app"},
			address: resource.Encode(resource.EntryScript{FileName: "src/Button.vue", Index: resource.At(2)}),
			root:    "./app",
		},
		{
			name:    "meta",
			file:    "src/Button.vue",
			index:   -1,
			kind:    "meta",
			address: resource.Encode(resource.ComponentMeta{FileName: "src/Button.vue"}),
		},
		{
			name:     "unknown kind",
			file:     "src/Button.vue",
			kind:     "style",
			hasError: true,
		},
		{
			name:     "too many arguments",
			file:     "src/Button.vue",
			kind:     "component",
			args:     []string{"./app", "extra"},
			hasError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			moduleFile, moduleIndex, moduleKind = tt.file, tt.index, tt.kind
			defer func() { moduleFile, moduleIndex, moduleKind = "", -1, "component" }()

			address, root, err := moduleAddress(tt.args)
			if tt.hasError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.address, address)
			assert.Equal(t, tt.root, root)
		})
	}
}

func TestValidatePort(t *testing.T) {
	assert.NoError(t, ValidatePort("3000"))
	assert.NoError(t, ValidatePort("65535"))
	assert.Error(t, ValidatePort("0"))
	assert.Error(t, ValidatePort("70000"))
	assert.Error(t, ValidatePort("http"))
}

func TestValidateFormatWithSuggestion(t *testing.T) {
	valid := []string{"table", "json", "yaml"}

	assert.NoError(t, ValidateFormatWithSuggestion("JSON", valid))

	err := ValidateFormatWithSuggestion("yml", valid)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `did you mean "yaml"`)

	err = ValidateFormatWithSuggestion("xml", valid)
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "did you mean")
}

func TestFlagValidationRejectsBadValues(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	flags := AddStandardFlags(cmd, "output")

	assert.Error(t, cmd.Flags().Set("format", "csv"))
	assert.Equal(t, "table", flags.Format)

	require.NoError(t, cmd.Flags().Set("format", "json"))
	assert.Equal(t, "json", flags.Format)
}
