package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/iudanet/agrisync/internal/client/data"
	"github.com/iudanet/agrisync/internal/client/storage"
	"github.com/iudanet/agrisync/internal/models"
)

func (c *Cli) newCacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Read server data cached on this device",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "get <entity-id>",
			Short: "Show one cached entity",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.runCacheGet(cmd.Context(), args[0])
			},
		},
		&cobra.Command{
			Use:   "list <entity-type>",
			Short: "List cached entities of a type",
			Long:  "List cached entities of a type: PRICE_QUERY, PROFILE_UPDATE, CROP_AVAILABILITY or ADVISORY_REQUEST.",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.runCacheList(cmd.Context(), args[0])
			},
		},
	)
	return cmd
}

func (c *Cli) runCacheGet(ctx context.Context, entityID string) error {
	view, err := c.data.GetCached(ctx, entityID)
	if errors.Is(err, storage.ErrEntityNotFound) {
		return fmt.Errorf("entity %s is not cached. Run 'agrisync sync' to fetch updates", entityID)
	}
	if err != nil {
		return fmt.Errorf("failed to read cache: %w", err)
	}

	e := view.Entity
	c.io.Printf("=== %s %s ===\n", e.EntityType, e.EntityID)
	c.io.Println()
	c.io.Printf("Version:    %d\n", e.ServerVersion)
	c.io.Printf("Written by: %s\n", e.DeviceID)
	c.io.Printf("Updated:    %s\n", e.UpdatedAt.UTC().Format(time.RFC3339))
	if view.Stale {
		c.io.Println("⚠️  Cached copy is older than its freshness window")
	}
	if e.Tombstone {
		c.io.Println("Withdrawn")
		return nil
	}

	body, err := json.MarshalIndent(view.Payload, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to render payload: %w", err)
	}
	c.io.Println()
	c.io.Println(string(body))
	return nil
}

func (c *Cli) runCacheList(ctx context.Context, typeArg string) error {
	entityType, err := models.ParseEntityType(strings.ToUpper(typeArg))
	if err != nil {
		return err
	}

	views, err := c.data.ListCached(ctx, entityType)
	if err != nil {
		return err
	}

	c.io.Printf("=== Cached %s ===\n", entityType)
	c.io.Println()
	if len(views) == 0 {
		c.io.Println("Nothing cached yet.")
		return nil
	}

	c.io.Printf("Found %d entit(ies):\n", len(views))
	c.io.Println()
	for i, v := range views {
		stale := ""
		if v.Stale {
			stale = " (stale)"
		}
		c.io.Printf("%d. %s v%d%s\n", i+1, v.Entity.EntityID, v.Entity.ServerVersion, stale)
		c.io.Printf("   %s\n", summarize(v))
	}
	return nil
}

// summarize короткое описание тела для списка
func summarize(v *data.CachedView) string {
	switch p := v.Payload.(type) {
	case models.PriceQuery:
		if p.PricePerQuintal > 0 {
			return fmt.Sprintf("%s at %s: %.2f INR/quintal", p.Crop, p.Mandi, p.PricePerQuintal)
		}
		return fmt.Sprintf("%s at %s: awaiting price", p.Crop, p.Mandi)
	case models.ProfileUpdate:
		return fmt.Sprintf("%s (%s) %s", p.Name, p.Language, p.District)
	case models.CropAvailability:
		return fmt.Sprintf("%s grade %s, %.1f quintal", p.Crop, p.QualityGrade, p.QuantityQuintal)
	case models.AdvisoryRequest:
		return p.Question
	}
	return ""
}
