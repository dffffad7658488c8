package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func (c *Cli) newWatchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Stay connected and synchronize whenever the server is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return c.runWatch(ctx)
		},
	}
}

// runWatch запускает монитор связи и фоновую синхронизацию до отмены ctx
func (c *Cli) runWatch(ctx context.Context) error {
	if _, err := c.device(ctx); err != nil {
		return err
	}

	watcher, err := c.newWatcher()
	if err != nil {
		return fmt.Errorf("failed to create connectivity monitor: %w", err)
	}

	c.io.Println("Watching connectivity. Press Ctrl+C to stop.")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return watcher.Run(ctx)
	})
	g.Go(func() error {
		return c.sync.Run(ctx, watcher)
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		c.io.Println("Stopped.")
		return nil
	}
	return err
}
