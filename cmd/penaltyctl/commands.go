package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bookwell/penalty-service/internal/auth"
	"github.com/bookwell/penalty-service/internal/bootstrap"
	"github.com/bookwell/penalty-service/internal/config"
	"github.com/bookwell/penalty-service/internal/domain"
	"github.com/bookwell/penalty-service/internal/observability"
	"github.com/bookwell/penalty-service/internal/service"
)

func init() {
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(sweepCertificatesCmd)
	rootCmd.AddCommand(liftExpiredCmd)
	rootCmd.AddCommand(tokenCmd)

	rootCmd.PersistentFlags().Duration("timeout", 10*time.Minute, "Abort the command after this long")
	tokenCmd.Flags().StringP("subject", "s", string(domain.SubjectTypeAdmin), "Subject type: CUSTOMER, PROVIDER, ADMIN or SERVICE")
}

var rootCmd = &cobra.Command{
	Use:          "penaltyctl",
	Short:        "Operate the penalty engine",
	SilenceUsage: true,
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Install the default violation catalog",
	Long:  `Upserts the default violation types. Existing codes are rewritten to their defaults.`,
	RunE: withContainer(func(ctx context.Context, c *bootstrap.Container, _ []string) error {
		n, err := c.Catalog.Seed(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "seeded %d violation types\n", n)
		return nil
	}),
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Restore every account below the maximum to full points",
	Long: `Runs the quarterly reset now. Accounts already at the maximum are skipped,
so running it twice in a quarter changes nothing.`,
	RunE: withContainer(func(ctx context.Context, c *bootstrap.Container, _ []string) error {
		report, err := c.Resets.ResetAll(ctx)
		fmt.Fprintf(os.Stdout, "restored %d customers, %d providers (skipped %d, failed %d)\n",
			report.Customers, report.Providers, report.Skipped, report.Failed)
		fmt.Fprintf(os.Stdout, "next scheduled reset: %s\n", service.NextQuarterStart(time.Now().UTC()).Format(time.DateOnly))
		return err
	}),
}

var sweepCertificatesCmd = &cobra.Command{
	Use:   "sweep-certificates",
	Short: "Send expiry reminders and penalise expired certificates",
	RunE: withContainer(func(ctx context.Context, c *bootstrap.Container, _ []string) error {
		report, err := c.Certificates.Sweep(ctx)
		fmt.Fprintf(os.Stdout, "reminders %d, expired %d, failed %d\n", report.Reminders, report.Expired, report.Failed)
		return err
	}),
}

var liftExpiredCmd = &cobra.Command{
	Use:   "lift-expired",
	Short: "Lift administrative suspensions whose term has ended",
	RunE: withContainer(func(ctx context.Context, c *bootstrap.Container, _ []string) error {
		n, err := c.Penalty.LiftExpiredSuspensions(ctx)
		fmt.Fprintf(os.Stdout, "lifted %d suspensions\n", n)
		return err
	}),
}

var tokenCmd = &cobra.Command{
	Use:   "token SUBJECT_ID",
	Short: "Issue a bearer token for an operator, service or test account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		raw, _ := cmd.Flags().GetString("subject")
		subject := domain.SubjectType(strings.ToUpper(strings.TrimSpace(raw)))
		switch subject {
		case domain.SubjectTypeCustomer, domain.SubjectTypeProvider, domain.SubjectTypeAdmin, domain.SubjectTypeService:
		default:
			return fmt.Errorf("unknown subject type %q", raw)
		}
		tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
		token, expires, err := tokens.GenerateToken(args[0], subject)
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, token)
		fmt.Fprintf(os.Stderr, "expires %s\n", expires.Format(time.RFC3339))
		return nil
	},
}

// withContainer loads config, assembles the engine and runs fn under the
// --timeout deadline.
func withContainer(fn func(ctx context.Context, c *bootstrap.Container, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		logger, err := observability.NewLogger(cfg.App, cfg.Logger)
		if err != nil {
			return err
		}
		defer logger.Sync() //nolint:errcheck

		timeout, _ := cmd.Flags().GetDuration("timeout")
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		container, err := bootstrap.Build(ctx, cfg, logger, nil)
		if err != nil {
			return err
		}
		defer container.Close()
		if !container.Postgres.Enabled() {
			logger.Warn("running against the in-memory store; changes are discarded on exit")
		}
		container.Notifications.RegisterHandlers()

		if err := fn(ctx, container, args); err != nil {
			logger.Error("command failed", zap.String("command", cmd.Name()), zap.Error(err))
			return err
		}
		return nil
	}
}
