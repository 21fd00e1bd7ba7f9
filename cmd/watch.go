package cmd

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/conneroisu/sfcpreview/internal/reconcile"
	"github.com/conneroisu/sfcpreview/internal/server"
	"github.com/conneroisu/sfcpreview/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:     "watch [root]",
	Aliases: []string{"w"},
	Short:   "Watch components and print what each change invalidates",
	Long: `Watch the component root without serving it. Every reconciliation is
printed: which previews were added, removed, updated or left unchanged, the
virtual modules that went stale, and how the component index changed.

Examples:
  sfcpreview watch                 # Watch the current directory
  sfcpreview watch ./src --diff    # Include the index diff`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

var watchDiff bool

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().BoolVar(&watchDiff, "diff", false, "Print the component index diff")
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(rootArg(args, 0))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	session, err := server.NewSession(cfg, server.SessionOptions{
		Logger: newLogger(cfg),
		OnReconcile: func(event watcher.ChangeEvent, result *reconcile.Result, err error) {
			printReconcile(out, event, result, err, watchDiff)
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	stats, err := session.Scan(ctx)
	if err != nil {
		return err
	}

	fw, err := session.NewWatcher(func(message server.Message) {
		if message.Type == server.MessageFullReload {
			fmt.Fprintln(out, Yellow.Render("setup file changed, clients reload"))
		}
	})
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer fw.Stop()

	if err := fw.Start(ctx); err != nil {
		return fmt.Errorf("failed to start file watcher: %w", err)
	}

	fmt.Fprintln(out, Green.Render(fmt.Sprintf("Watching %d component(s) in %s", stats.Registered, session.Root())))
	<-ctx.Done()
	fmt.Fprintln(out, Faint.Render("Stopped watching"))
	return nil
}

func printReconcile(w io.Writer, event watcher.ChangeEvent, result *reconcile.Result, err error, withDiff bool) {
	if err != nil {
		fmt.Fprintf(w, "%s %s %s\n", Red.Render("✗"), event.Path, Red.Render(err.Error()))
		return
	}

	fmt.Fprintf(w, "%s %s (%s)\n", Bold.Render("●"), result.File, event.Type)
	for _, group := range []struct {
		label   string
		indices []int
	}{
		{"added", result.Added},
		{"removed", result.Removed},
		{"updated", result.Updated},
		{"unchanged", result.Unchanged},
	} {
		if len(group.indices) > 0 {
			fmt.Fprintf(w, "  %-9s %s\n", group.label, joinInts(group.indices))
		}
	}
	for _, address := range result.Invalidate {
		fmt.Fprintf(w, "  %s %s\n", Yellow.Render("stale"), address)
	}
	if withDiff && result.IndexDiff != "" {
		fmt.Fprintln(w, Faint.Render(strings.TrimRight(result.IndexDiff, "\n")))
	}
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, ", ")
}
