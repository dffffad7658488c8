package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/iudanet/agrisync/internal/client/storage"
)

func (c *Cli) newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show device registration and sync status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runStatus(cmd.Context())
		},
	}
}

func (c *Cli) runStatus(ctx context.Context) error {
	c.io.Println("=== Sync Status ===")
	c.io.Println()

	device, err := c.auth.Device(ctx)
	switch {
	case errors.Is(err, storage.ErrDeviceNotRegistered):
		c.io.Println("Device:      not registered")
	case err != nil:
		return fmt.Errorf("failed to get device: %w", err)
	default:
		c.io.Printf("Device:      %s\n", device.DeviceID)
		c.io.Printf("Farmer:      %s\n", device.UserID)
	}

	status, err := c.sync.Status(ctx)
	if err != nil {
		return fmt.Errorf("failed to get sync status: %w", err)
	}

	lastSynced := "never"
	if !status.LastSyncedAt.IsZero() {
		lastSynced = status.LastSyncedAt.UTC().Format(time.RFC3339)
	}

	c.io.Printf("State:       %s\n", status.State)
	c.io.Printf("Last synced: %s\n", lastSynced)
	c.io.Printf("Pending:     %d\n", status.Pending)
	c.io.Printf("In flight:   %d\n", status.InFlight)
	c.io.Printf("Rejected:    %d\n", status.Rejected)

	c.io.Println()
	switch {
	case device == nil:
		c.io.Println("Run 'agrisync register' to register this device.")
	case status.Pending > 0:
		c.io.Printf("⚠️  %d change(s) waiting to be synchronized. Run 'agrisync sync'.\n", status.Pending)
	default:
		c.io.Println("✓ All changes synchronized")
	}
	return nil
}
