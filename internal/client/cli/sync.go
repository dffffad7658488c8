package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	clientsync "github.com/iudanet/agrisync/internal/client/sync"
)

func (c *Cli) newSyncCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Send queued changes and pull server updates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runSync(cmd.Context())
		},
	}
}

func (c *Cli) runSync(ctx context.Context) error {
	c.io.Println("=== Synchronization ===")
	c.io.Println()

	if _, err := c.device(ctx); err != nil {
		return err
	}

	outcome, err := c.sync.TriggerSync(ctx)
	if errors.Is(err, clientsync.ErrSyncAbandoned) {
		c.io.Println("⚠️  Server is unreachable. Changes stay queued until the next sync.")
		return err
	}
	if err != nil {
		return fmt.Errorf("synchronization failed: %w", err)
	}

	c.io.Println("✓ Synchronization completed")
	c.io.Printf("Sent:            %d\n", outcome.Sent)
	c.io.Printf("Acknowledged:    %d\n", outcome.Acked)
	c.io.Printf("Rejected:        %d\n", len(outcome.Rejected))
	c.io.Printf("Updates applied: %d\n", outcome.DeltasApplied)

	if len(outcome.Rejected) > 0 {
		c.io.Println()
		c.io.Println("Rejected changes:")
		for _, r := range outcome.Rejected {
			c.io.Printf("  - %s %s %s: %s\n", r.ChangeID, r.EntityType, r.EntityID, r.Reason)
		}
		c.io.Println("Run 'agrisync rejected list' to review them.")
	}

	return outcome.Err()
}
