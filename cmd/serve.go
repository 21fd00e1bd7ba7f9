package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/conneroisu/sfcpreview/internal/server"
)

var serveCmd = &cobra.Command{
	Use:     "serve [root]",
	Aliases: []string{"s"},
	Short:   "Start the preview server with hot reload",
	Long: `Start the preview server. Every component below root is scanned, the
directory is watched, and open previews update as you edit.

Examples:
  sfcpreview serve                 # Serve the current directory
  sfcpreview serve ./src --open    # Serve ./src and open the browser
  sfcpreview serve -p 4000         # Serve on port 4000`,
	Args: cobra.MaximumNArgs(1),
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	AddStandardFlags(serveCmd, "server")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(rootArg(args, 0))
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	session, err := server.NewSession(cfg, server.SessionOptions{Logger: logger})
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	srv := server.New(cfg, session, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go func() {
		<-ctx.Done()
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			fmt.Fprintln(os.Stderr, Red.Render(fmt.Sprintf("Error during server shutdown: %v", err)))
		}
	}()

	fmt.Fprintln(cmd.OutOrStdout(), BoxStyle.Render(fmt.Sprintf("sfcpreview serving %s\nhttp://%s:%d", session.Root(), cfg.Server.Host, cfg.Server.Port)))

	return srv.Start(ctx)
}
