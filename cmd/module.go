package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conneroisu/sfcpreview/internal/resource"
	"github.com/conneroisu/sfcpreview/internal/server"
)

var moduleCmd = &cobra.Command{
	Use:   "module <address> [root]",
	Short: "Print the module a virtual address resolves to",
	Long: `Resolve a virtual address the way the preview server does and print the
module text.

Examples:
  sfcpreview module @preview/components.js
  sfcpreview module '@preview/component.js?fileName=src%2FButton.vue&index=0'
  sfcpreview module --file src/Button.vue --index 0`,
	Args: cobra.RangeArgs(0, 2),
	RunE: runModule,
}

var (
	moduleFile  string
	moduleIndex int
	moduleKind  string
)

func init() {
	rootCmd.AddCommand(moduleCmd)

	moduleCmd.Flags().StringVar(&moduleFile, "file", "", "Build the address from a root-relative component file")
	moduleCmd.Flags().IntVar(&moduleIndex, "index", -1, "Preview index used with --file (default instance when negative)")
	moduleCmd.Flags().StringVar(&moduleKind, "kind", "component", "Module kind used with --file (component, entry, meta)")
}

func runModule(cmd *cobra.Command, args []string) error {
	address, root, err := moduleAddress(args)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	session, err := server.NewSession(cfg, server.SessionOptions{Logger: newLogger(cfg)})
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	if _, err := session.Scan(cmd.Context()); err != nil {
		return err
	}
	session.Components().WaitForAnalysis()

	text, err := session.Load(cmd.Context(), address)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), text)
	return nil
}

// moduleAddress returns the requested address and the optional root
// argument.
func moduleAddress(args []string) (string, string, error) {
	if moduleFile == "" {
		if len(args) == 0 {
			return "", "", fmt.Errorf("an address or --file is required")
		}
		return args[0], rootArg(args, 1), nil
	}

	if len(args) > 1 {
		return "", "", fmt.Errorf("--file takes at most one argument, the root")
	}

	index := resource.Default
	if moduleIndex >= 0 {
		index = resource.At(moduleIndex)
	}

	var r resource.Resource
	switch moduleKind {
	case "component":
		r = resource.ComponentInstance{FileName: moduleFile, Index: index}
	case "entry":
		r = resource.EntryScript{FileName: moduleFile, Index: index}
	case "meta":
		r = resource.ComponentMeta{FileName: moduleFile}
	default:
		return "", "", fmt.Errorf("unknown module kind %q (valid: component, entry, meta)", moduleKind)
	}
	return resource.Encode(r), rootArg(args, 0), nil
}
