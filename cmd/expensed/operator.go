package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/garyjia/expense-desk/internal/app"
	"github.com/garyjia/expense-desk/internal/container"
	"github.com/garyjia/expense-desk/internal/domain/entity"
	"github.com/garyjia/expense-desk/internal/infrastructure/worker"
)

var (
	flagEmail     string
	flagApproveAs string
	flagFile      string
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert sample expenses for a user",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(cmd.Context(), func(ctx context.Context, c *container.Container, logger *zap.Logger) error {
			owner, err := identityByEmail(ctx, c, flagEmail)
			if err != nil {
				return err
			}
			seeded, err := c.Services().Capture.SeedDummy(ctx, owner)
			if err != nil {
				return fmt.Errorf("seed expenses: %w", err)
			}

			approved := 0
			if flagApproveAs != "" {
				approver, err := identityByEmail(ctx, c, flagApproveAs)
				if err != nil {
					return err
				}
				for _, e := range seeded {
					if e.Status != entity.StatusPending {
						continue
					}
					if _, err := c.Services().Expenses.Approve(ctx, approver, e.ID); err != nil {
						return fmt.Errorf("approve %s: %w", e.ID, err)
					}
					approved++
				}
			}

			logger.Info("Seeded sample expenses",
				zap.String("email", flagEmail),
				zap.Int("count", len(seeded)),
				zap.Int("approved", approved))
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d expenses (%d approved)\n", len(seeded), approved)
			return nil
		})
	},
}

var promoteCmd = &cobra.Command{
	Use:   "promote <email>",
	Short: "Grant the admin role to a registered user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(cmd.Context(), func(ctx context.Context, c *container.Container, logger *zap.Logger) error {
			profile, err := c.Services().Profiles.BootstrapAdmin(ctx, args[0])
			if err != nil {
				return fmt.Errorf("promote %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", profile.Email, profile.Role)
			return nil
		})
	},
}

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Capture a draft expense from a text, email or receipt file",
	RunE: func(cmd *cobra.Command, args []string) error {
		content, err := os.ReadFile(flagFile)
		if err != nil {
			return fmt.Errorf("read %s: %w", flagFile, err)
		}
		input, err := worker.CaptureInputFor(filepath.Base(flagFile), content)
		if err != nil {
			return err
		}

		return withContainer(cmd.Context(), func(ctx context.Context, c *container.Container, logger *zap.Logger) error {
			owner, err := identityByEmail(ctx, c, flagEmail)
			if err != nil {
				return err
			}
			expense, err := c.Services().Capture.Capture(ctx, owner, input)
			if err != nil {
				return fmt.Errorf("capture %s: %w", flagFile, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s\n",
				expense.ID, expense.Merchant, app.FormatMoney(expense.Amount), expense.Confidence)
			return nil
		})
	},
}

// identityByEmail resolves a registered user for operator commands
func identityByEmail(ctx context.Context, c *container.Container, email string) (entity.Identity, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return entity.Identity{}, fmt.Errorf("an email is required")
	}
	profile, err := c.Repositories().Profile.GetByEmail(ctx, email)
	if err != nil {
		return entity.Identity{}, fmt.Errorf("look up %s: %w", email, err)
	}
	if profile == nil {
		return entity.Identity{}, fmt.Errorf("no user registered as %s", email)
	}
	return entity.Identity{UserID: profile.ID, Email: profile.Email, Role: profile.Role}, nil
}

func init() {
	seedCmd.Flags().StringVar(&flagEmail, "email", "", "owner of the sample expenses")
	seedCmd.Flags().StringVar(&flagApproveAs, "approve-as", "", "approver who approves the pending samples")
	_ = seedCmd.MarkFlagRequired("email")

	captureCmd.Flags().StringVar(&flagEmail, "email", "", "owner of the captured expense")
	captureCmd.Flags().StringVar(&flagFile, "file", "", "file to capture (.pdf, .png, .jpg, .eml, .csv or .txt)")
	_ = captureCmd.MarkFlagRequired("email")
	_ = captureCmd.MarkFlagRequired("file")

	rootCmd.AddCommand(seedCmd, promoteCmd, captureCmd)
}
