package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/sfcpreview/internal/registry"
	"github.com/conneroisu/sfcpreview/internal/server"
)

var listCmd = &cobra.Command{
	Use:     "list [root]",
	Aliases: []string{"l"},
	Short:   "List all discovered components and their previews",
	Long: `List every component below root with its previews and declared props.

Examples:
  sfcpreview list                  # Table of components
  sfcpreview list -f json          # Output as JSON
  sfcpreview list ./src -f yaml    # Components below ./src as YAML`,
	Args: cobra.MaximumNArgs(1),
	RunE: runList,
}

var listFlags *StandardFlags

func init() {
	rootCmd.AddCommand(listCmd)
	listFlags = AddStandardFlags(listCmd, "output")
}

type listPreview struct {
	ID     int    `json:"id" yaml:"id"`
	Name   string `json:"name" yaml:"name"`
	Device string `json:"device" yaml:"device"`
}

type listProp struct {
	Name     string `json:"name" yaml:"name"`
	Type     string `json:"type" yaml:"type"`
	Required bool   `json:"required" yaml:"required"`
}

type listEntry struct {
	Name     string        `json:"name" yaml:"name"`
	Path     string        `json:"path" yaml:"path"`
	Previews []listPreview `json:"previews" yaml:"previews"`
	Props    []listProp    `json:"props,omitempty" yaml:"props,omitempty"`
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(rootArg(args, 0))
	if err != nil {
		return err
	}

	session, err := server.NewSession(cfg, server.SessionOptions{Logger: newLogger(cfg)})
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	stats, err := session.Scan(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for file, failure := range stats.Failed {
		fmt.Fprintln(cmd.ErrOrStderr(), Yellow.Render(fmt.Sprintf("skipped %s: %v", session.Components().RelPath(file), failure)))
	}

	// the analyzer runs asynchronously; props are only listed once it is done
	session.Components().WaitForAnalysis()
	entries := listEntries(session.Components().All())

	switch strings.ToLower(listFlags.Format) {
	case "json":
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(entries)
	case "yaml":
		encoder := yaml.NewEncoder(out)
		defer encoder.Close()
		return encoder.Encode(entries)
	default:
		return outputTable(out, entries)
	}
}

func listEntries(components []registry.Component) []listEntry {
	entries := make([]listEntry, 0, len(components))
	for _, component := range components {
		entry := listEntry{
			Name:     component.Name,
			Path:     component.Path,
			Previews: make([]listPreview, 0, len(component.Previews)),
		}
		for _, preview := range component.Previews {
			entry.Previews = append(entry.Previews, listPreview{ID: preview.ID, Name: preview.Name, Device: preview.Device})
		}
		if component.Info != nil {
			for _, prop := range component.Info.Props {
				entry.Props = append(entry.Props, listProp{Name: prop.Name, Type: prop.Type, Required: prop.Required})
			}
		}
		entries = append(entries, entry)
	}
	return entries
}

func outputTable(w io.Writer, entries []listEntry) error {
	if len(entries) == 0 {
		fmt.Fprintln(w, Faint.Render("No components found."))
		return nil
	}

	rows := make([][]string, 0, len(entries))
	for _, entry := range entries {
		previews := make([]string, 0, len(entry.Previews))
		for _, preview := range entry.Previews {
			previews = append(previews, fmt.Sprintf("%d:%s (%s)", preview.ID, preview.Name, preview.Device))
		}
		props := make([]string, 0, len(entry.Props))
		for _, prop := range entry.Props {
			name := prop.Name
			if !prop.Required {
				name += "?"
			}
			props = append(props, name+": "+prop.Type)
		}
		rows = append(rows, []string{entry.Name, entry.Path, strings.Join(previews, "\n"), strings.Join(props, "\n")})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(Faint).
		Headers("COMPONENT", "PATH", "PREVIEWS", "PROPS").
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return HeaderStyle
			}
			return CellStyle
		})

	fmt.Fprintln(w, t.Render())
	fmt.Fprintln(w, Faint.Render(fmt.Sprintf("%d component(s)", len(entries))))
	return nil
}
