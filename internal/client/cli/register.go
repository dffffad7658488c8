package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// EnrollmentKeyEnv переменная окружения с ключом регистрации
const EnrollmentKeyEnv = "AGRISYNC_ENROLLMENT_KEY"

func (c *Cli) newRegisterCommand() *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register this device for a farmer account",
		Long: `Register this device with the server. The device secret is generated
locally and never leaves the device except during registration.

The enrollment key is read from AGRISYNC_ENROLLMENT_KEY or prompted for.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runRegister(cmd.Context(), userID, os.Getenv(EnrollmentKeyEnv))
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "farmer id")
	return cmd
}

func (c *Cli) runRegister(ctx context.Context, userID, enrollmentKey string) error {
	c.io.Println("=== Device Registration ===")
	c.io.Println()

	var err error
	if userID == "" {
		userID, err = c.io.ReadInput("Farmer ID: ")
		if err != nil {
			return fmt.Errorf("failed to read farmer id: %w", err)
		}
	}
	if enrollmentKey == "" {
		enrollmentKey, err = c.io.ReadSecret("Enrollment key: ")
		if err != nil {
			return fmt.Errorf("failed to read enrollment key: %w", err)
		}
	}

	device, err := c.auth.Register(ctx, strings.TrimSpace(userID), enrollmentKey)
	if err != nil {
		return err
	}

	c.io.Println("✓ Device registered")
	c.io.Printf("Device ID: %s\n", device.DeviceID)
	c.io.Printf("Farmer ID: %s\n", device.UserID)
	c.io.Println()
	c.io.Println("Run 'agrisync sync' to send queued changes.")
	return nil
}
