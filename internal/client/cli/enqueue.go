package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/iudanet/agrisync/internal/models"
)

const dateLayout = "2006-01-02"

// enqueueOptions общие флаги команд постановки в очередь
type enqueueOptions struct {
	sync bool
}

func (c *Cli) newEnqueueCommand() *cobra.Command {
	opts := &enqueueOptions{}

	cmd := &cobra.Command{
		Use:   "enqueue",
		Short: "Queue a change locally (works offline)",
	}
	cmd.PersistentFlags().BoolVar(&opts.sync, "sync", false, "synchronize right after queueing")

	cmd.AddCommand(
		c.newPriceCommand(opts),
		c.newProfileCommand(opts),
		c.newAvailabilityCommand(opts),
		c.newAdvisoryCommand(opts),
		c.newWithdrawCommand(opts),
	)
	return cmd
}

func (c *Cli) newPriceCommand(opts *enqueueOptions) *cobra.Command {
	var q models.PriceQuery

	cmd := &cobra.Command{
		Use:   "price",
		Short: "Ask for the current mandi price of a crop",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := c.prompt(&q.Crop, "Crop: "); err != nil {
				return err
			}
			change, err := c.data.SubmitPriceQuery(ctx, q)
			return c.afterEnqueue(ctx, change, err, opts)
		},
	}
	cmd.Flags().StringVar(&q.Crop, "crop", "", "crop name")
	cmd.Flags().StringVar(&q.Variety, "variety", "", "crop variety")
	cmd.Flags().StringVar(&q.Mandi, "mandi", "", "market (mandi) name")
	cmd.Flags().StringVar(&q.District, "district", "", "district")
	cmd.Flags().Float64Var(&q.Lat, "lat", 0, "latitude")
	cmd.Flags().Float64Var(&q.Lon, "lon", 0, "longitude")
	return cmd
}

func (c *Cli) newProfileCommand(opts *enqueueOptions) *cobra.Command {
	var (
		profileID string
		language  string
		p         models.ProfileUpdate
	)

	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Create or update the farmer profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := c.prompt(&p.Name, "Name: "); err != nil {
				return err
			}
			p.Language = models.Language(language)
			change, err := c.data.UpdateProfile(ctx, profileID, p)
			return c.afterEnqueue(ctx, change, err, opts)
		},
	}
	cmd.Flags().StringVar(&profileID, "id", "", "profile id (empty creates a new profile)")
	cmd.Flags().StringVar(&p.Name, "name", "", "farmer name")
	cmd.Flags().StringVar(&language, "language", string(models.LanguageHindi), "language code (hi|ta|te|kn|mr|en)")
	cmd.Flags().StringVar(&p.District, "district", "", "district")
	cmd.Flags().StringVar(&p.SoilType, "soil", "", "soil type")
	cmd.Flags().StringSliceVar(&p.CropTypes, "crops", nil, "crops grown (comma separated)")
	cmd.Flags().Float64Var(&p.LandSizeAcres, "acres", 0, "land size in acres")
	return cmd
}

func (c *Cli) newAvailabilityCommand(opts *enqueueOptions) *cobra.Command {
	var (
		listingID string
		grade     string
		from      string
		a         models.CropAvailability
	)

	cmd := &cobra.Command{
		Use:   "availability",
		Short: "Offer harvested crop to buyers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := c.prompt(&a.Crop, "Crop: "); err != nil {
				return err
			}
			a.QualityGrade = models.QualityGrade(strings.ToUpper(grade))
			if from != "" {
				t, err := time.Parse(dateLayout, from)
				if err != nil {
					return fmt.Errorf("invalid --from date, expected YYYY-MM-DD: %w", err)
				}
				a.AvailableFrom = t
			}
			change, err := c.data.PostCropAvailability(ctx, listingID, a)
			return c.afterEnqueue(ctx, change, err, opts)
		},
	}
	cmd.Flags().StringVar(&listingID, "id", "", "listing id (empty creates a new listing)")
	cmd.Flags().StringVar(&a.Crop, "crop", "", "crop name")
	cmd.Flags().StringVar(&a.Variety, "variety", "", "crop variety")
	cmd.Flags().StringVar(&grade, "grade", string(models.GradeA), "quality grade (A|B|C)")
	cmd.Flags().StringVar(&a.District, "district", "", "district")
	cmd.Flags().Float64Var(&a.QuantityQuintal, "quantity", 0, "quantity in quintals")
	cmd.Flags().Float64Var(&a.AskingPrice, "price", 0, "asking price per quintal (INR)")
	cmd.Flags().StringVar(&from, "from", "", "available from date (YYYY-MM-DD)")
	return cmd
}

func (c *Cli) newAdvisoryCommand(opts *enqueueOptions) *cobra.Command {
	var (
		language string
		a        models.AdvisoryRequest
	)

	cmd := &cobra.Command{
		Use:   "advisory",
		Short: "Ask the advisory service a question",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := c.prompt(&a.Question, "Question: "); err != nil {
				return err
			}
			a.Language = models.Language(language)
			change, err := c.data.RequestAdvisory(ctx, a)
			return c.afterEnqueue(ctx, change, err, opts)
		},
	}
	cmd.Flags().StringVar(&a.Question, "question", "", "question text")
	cmd.Flags().StringVar(&a.Crop, "crop", "", "crop the question is about")
	cmd.Flags().StringVar(&language, "language", string(models.LanguageHindi), "language code (hi|ta|te|kn|mr|en)")
	cmd.Flags().StringVar(&a.District, "district", "", "district")
	return cmd
}

func (c *Cli) newWithdrawCommand(opts *enqueueOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "withdraw <entity-type> <entity-id>",
		Short: "Withdraw (logically delete) an entity",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			entityType, err := models.ParseEntityType(strings.ToUpper(args[0]))
			if err != nil {
				return err
			}
			change, err := c.data.Withdraw(ctx, entityType, args[1])
			return c.afterEnqueue(ctx, change, err, opts)
		},
	}
}

// prompt запрашивает значение, если оно не задано флагом
func (c *Cli) prompt(value *string, label string) error {
	if strings.TrimSpace(*value) != "" {
		return nil
	}
	input, err := c.io.ReadInput(label)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", strings.TrimSuffix(strings.ToLower(label), ": "), err)
	}
	*value = input
	return nil
}

func (c *Cli) afterEnqueue(ctx context.Context, change *models.ChangeRecord, err error, opts *enqueueOptions) error {
	if err != nil {
		return fmt.Errorf("failed to queue change: %w", err)
	}

	c.io.Println("✓ Change queued")
	c.io.Printf("Change ID: %s\n", change.ChangeID)
	c.io.Printf("Entity:    %s %s\n", change.EntityType, change.EntityID)
	c.io.Printf("Priority:  %s\n", change.Priority)

	if !opts.sync {
		return nil
	}
	c.io.Println()
	return c.runSync(ctx)
}
