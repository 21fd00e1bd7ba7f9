package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/sfcpreview/internal/config"
)

var initCmd = &cobra.Command{
	Use:     "init [dir]",
	Aliases: []string{"i"},
	Short:   "Write a default configuration and setup file",
	Long: `Write .sfcpreview.yml with every default spelled out and, unless
--no-setup is given, a preview.js setup module that the previews of every
component share.

Examples:
  sfcpreview init                  # Initialize the current directory
  sfcpreview init ./app --force    # Overwrite existing files in ./app`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

var (
	initForce   bool
	initNoSetup bool
)

const setupTemplate = `// Shared setup of every preview. createApp may install plugins or global
// components; x is handed to previews as $p.x.
import { createApp as createVueApp } from 'vue'

export function createApp(component, props) {
  const app = createVueApp(component, props)
  return app
}

export const x = {}
`

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite existing files")
	initCmd.Flags().BoolVar(&initNoSetup, "no-setup", false, "Do not write preview.js")
}

func runInit(cmd *cobra.Command, args []string) error {
	dir := rootArg(args, 0)
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create project directory: %w", err)
	}

	cfg := config.Default()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}

	files := map[string]string{config.FileName + ".yml": string(data)}
	if !initNoSetup {
		files["preview.js"] = setupTemplate
	}

	out := cmd.OutOrStdout()
	for _, name := range []string{config.FileName + ".yml", "preview.js"} {
		content, ok := files[name]
		if !ok {
			continue
		}
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil && !initForce {
			fmt.Fprintln(out, Yellow.Render("exists, skipped: "+path))
			continue
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		fmt.Fprintln(out, Green.Render("created: "+path))
	}
	return nil
}
