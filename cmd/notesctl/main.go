package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"notesync/internal/client"
	"notesync/internal/client/remote"
	"notesync/internal/platform/config"
)

// readyTimeout bounds the wait for the first snapshot.
const readyTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(config.ClientFromEnv()).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// cli holds the flags shared by every subcommand.
type cli struct {
	serverURL string
	debounce  time.Duration
	verbose   bool
}

func newRootCmd(cfg config.Client) *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:          "notesctl",
		Short:        "Markdown notes synced live with a notesync server",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&c.serverURL, "server", cfg.ServerURL, "notesync server URL (env NOTES_SERVER)")
	root.PersistentFlags().DurationVar(&c.debounce, "debounce", cfg.Debounce, "idle time before edits are written (env NOTES_DEBOUNCE)")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "log sync activity to stderr")

	root.AddCommand(
		c.listCmd(),
		c.newCmd(),
		c.rmCmd(),
		c.showCmd(),
		c.editCmd(),
		c.watchCmd(),
	)
	return root
}

func (c *cli) logger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelWarn
	if c.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

// openWorkspace starts a workspace and waits for the first snapshot. The
// returned close function flushes pending edits.
func (c *cli) openWorkspace(cmd *cobra.Command) (*client.Workspace, func() error, error) {
	ctx := cmd.Context()
	log := c.logger(cmd)

	rc, err := remote.New(c.serverURL, remote.WithLogger(log))
	if err != nil {
		return nil, nil, err
	}
	ws := client.NewWorkspace(rc,
		client.WithLogger(log),
		client.WithDebounce(c.debounce),
	)

	changed := make(chan struct{}, 1)
	ws.OnChange(func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	if err := ws.Start(ctx); err != nil {
		return nil, nil, fmt.Errorf("subscribe: %w", err)
	}
	closeFn := func() error {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), readyTimeout)
		defer cancel()
		return ws.Close(closeCtx)
	}

	timeout := time.NewTimer(readyTimeout)
	defer timeout.Stop()
	for !ws.Ready() {
		select {
		case <-changed:
		case <-ctx.Done():
			_ = closeFn()
			return nil, nil, ctx.Err()
		case <-timeout.C:
			_ = closeFn()
			return nil, nil, fmt.Errorf("no snapshot from %s within %s", c.serverURL, readyTimeout)
		}
	}
	return ws, closeFn, nil
}
