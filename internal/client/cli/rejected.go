package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"
)

func (c *Cli) newRejectedCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rejected",
		Short: "Review changes the server rejected",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List rejected changes",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.runRejectedList(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "dismiss <change-id>",
			Short: "Remove a rejected change from the local log",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.runRejectedDismiss(cmd.Context(), args[0])
			},
		},
	)
	return cmd
}

func (c *Cli) runRejectedList(ctx context.Context) error {
	rejected, err := c.sync.Rejected(ctx)
	if err != nil {
		return err
	}

	c.io.Println("=== Rejected Changes ===")
	c.io.Println()
	if len(rejected) == 0 {
		c.io.Println("No rejected changes.")
		return nil
	}

	for i, r := range rejected {
		c.io.Printf("%d. %s\n", i+1, r.ChangeID)
		c.io.Printf("   Entity:   %s %s\n", r.EntityType, r.EntityID)
		c.io.Printf("   Priority: %s\n", r.Priority)
		c.io.Printf("   Reason:   %s\n", r.Reason)
		c.io.Printf("   Queued:   %s\n", r.WallTime.UTC().Format(time.RFC3339))
	}
	c.io.Println()
	c.io.Println("Use 'agrisync rejected dismiss <change-id>' once reviewed.")
	return nil
}

func (c *Cli) runRejectedDismiss(ctx context.Context, changeID string) error {
	if err := c.sync.Dismiss(ctx, changeID); err != nil {
		return err
	}
	c.io.Printf("✓ Change %s dismissed\n", changeID)
	return nil
}
