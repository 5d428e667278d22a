package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/garyjia/expense-desk/internal/app"
	"github.com/garyjia/expense-desk/internal/config"
	"github.com/garyjia/expense-desk/internal/domain/entity"
	"github.com/garyjia/expense-desk/internal/infrastructure/export"
	"github.com/garyjia/expense-desk/internal/remote"
)

var (
	flagUser     string
	flagPassword string
	flagOut      string
	flagStatus   string
	flagCategory string
	flagQuery    string
	flagReason   string
)

// session is a signed-in remote client with its settled auth context
type session struct {
	cfg    *config.Config
	client *remote.Client
	auth   app.AuthContext
	logger *zap.Logger
}

// runner builds a controller runner from the client settings
func (s *session) runner() *app.Runner {
	return app.NewRunner(app.RunnerConfig{
		Timeout: s.cfg.Client.Timeout,
		Retry: app.RetryPolicy{
			MaxAttempts: s.cfg.Client.MaxAttempts,
			Backoff:     s.cfg.Client.Backoff,
		},
	})
}

// withSession signs in against the configured API and runs fn
func withSession(ctx context.Context, fn func(ctx context.Context, s *session) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	password := flagPassword
	if password == "" {
		password = os.Getenv("EXPENSED_PASSWORD")
	}
	if flagUser == "" || password == "" {
		return fmt.Errorf("--user and --password (or EXPENSED_PASSWORD) are required")
	}

	client := remote.NewClient(remote.Config{BaseURL: cfg.Client.BaseURL, Timeout: cfg.Client.Timeout}, logger)
	sess, err := client.SignIn(ctx, flagUser, password)
	if err != nil {
		return fmt.Errorf("sign in as %s: %w", flagUser, err)
	}

	roles, err := cfg.ApproverRoles()
	if err != nil {
		return err
	}
	auth := app.NewAuthResolver(client, roles, logger).Resolve(ctx, sess)

	return fn(ctx, &session{cfg: cfg, client: client, auth: auth, logger: logger})
}

func resultErr(res app.Result) error {
	if res.Succeeded() {
		return nil
	}
	return fmt.Errorf("%s: %w", res.Kind, res.Err)
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the visible inbox rows as a spreadsheet",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd.Context(), func(ctx context.Context, s *session) error {
			inbox := app.NewInboxController(s.client, export.NewSpreadsheetWriter(s.logger), app.NewLogNotifier(s.logger), s.logger)
			if err := resultErr(inbox.Load(ctx, s.auth)); err != nil {
				return err
			}

			filter := app.InboxFilter{Query: flagQuery, Category: flagCategory, Limit: -1}
			if flagStatus != "" {
				status, err := entity.ParseStatus(flagStatus)
				if err != nil {
					return err
				}
				filter.Status = status
			}

			f, err := os.Create(flagOut)
			if err != nil {
				return fmt.Errorf("create %s: %w", flagOut, err)
			}
			defer f.Close()

			if err := resultErr(inbox.Export(f, filter)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d expenses to %s\n", len(inbox.Visible(filter)), flagOut)
			return nil
		})
	},
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print the dashboard summary",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd.Context(), func(ctx context.Context, s *session) error {
			dashboard := app.NewDashboardController(s.client, app.NewLogNotifier(s.logger), s.logger)
			if err := resultErr(dashboard.Load(ctx, s.auth)); err != nil {
				return err
			}
			stats := dashboard.Stats()

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "Total spent\t%s\n", stats.TotalSpent.StringFixed(2))
			fmt.Fprintf(w, "This month\t%s\n", stats.ThisMonthSpend.StringFixed(2))
			fmt.Fprintf(w, "Draft / pending\t%d / %d\n", stats.DraftCount, stats.PendingCount)
			fmt.Fprintf(w, "Approved / rejected\t%d / %d\n", stats.ApprovedCount, stats.RejectedCount)
			fmt.Fprintln(w)
			for _, m := range stats.Monthly {
				fmt.Fprintf(w, "%s\t%s\n", m.Label, m.Amount.StringFixed(2))
			}
			fmt.Fprintln(w)
			for _, c := range stats.ByCategory {
				fmt.Fprintf(w, "%s\t%s\n", c.Name, c.Amount.StringFixed(2))
			}
			return w.Flush()
		})
	},
}

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List expenses awaiting a decision",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd.Context(), func(ctx context.Context, s *session) error {
			approvals := app.NewApprovalsController(s.client, s.runner(), app.NewLogNotifier(s.logger), s.logger)
			if err := resultErr(approvals.Load(ctx, s.auth)); err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, e := range approvals.Pending() {
				submitter := e.UserID
				if e.Submitter != nil {
					submitter = e.Submitter.Email
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.ID, submitter, e.Merchant, app.FormatMoney(e.Amount))
			}
			return w.Flush()
		})
	},
}

var approveCmd = &cobra.Command{
	Use:   "approve <expense-id>",
	Short: "Approve a pending expense",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd.Context(), func(ctx context.Context, s *session) error {
			approvals := app.NewApprovalsController(s.client, s.runner(), app.NewLogNotifier(s.logger), s.logger)
			return resultErr(approvals.Approve(ctx, s.auth, args[0]))
		})
	},
}

var rejectCmd = &cobra.Command{
	Use:   "reject <expense-id>",
	Short: "Reject a pending expense with a reason",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd.Context(), func(ctx context.Context, s *session) error {
			approvals := app.NewApprovalsController(s.client, s.runner(), app.NewLogNotifier(s.logger), s.logger)
			return resultErr(approvals.Reject(ctx, s.auth, args[0], flagReason))
		})
	},
}

var actionsCmd = &cobra.Command{
	Use:   "actions <expense-id>",
	Short: "Show what the signed-in user may do with an expense",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd.Context(), func(ctx context.Context, s *session) error {
			actions, err := s.client.ExpenseActions(ctx, args[0])
			if err != nil {
				return err
			}
			if len(actions) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no actions available")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), strings.Join(actions, " "))
			return nil
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{exportCmd, reportCmd, pendingCmd, approveCmd, rejectCmd, actionsCmd} {
		c.Flags().StringVar(&flagUser, "user", "", "email to sign in with")
		c.Flags().StringVar(&flagPassword, "password", "", "password (defaults to $EXPENSED_PASSWORD)")
		rootCmd.AddCommand(c)
	}

	exportCmd.Flags().StringVarP(&flagOut, "out", "o", "expenses.xlsx", "output spreadsheet path")
	exportCmd.Flags().StringVar(&flagStatus, "status", "", "only export this status")
	exportCmd.Flags().StringVar(&flagCategory, "category", "", "only export this category")
	exportCmd.Flags().StringVarP(&flagQuery, "query", "q", "", "search merchant, description or amount")

	rejectCmd.Flags().StringVar(&flagReason, "reason", "", "reason shown to the submitter")
	_ = rejectCmd.MarkFlagRequired("reason")
}
