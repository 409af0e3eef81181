package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/unfoldindia/unfold/internal/auth"
	"github.com/unfoldindia/unfold/internal/metrics"
	"github.com/unfoldindia/unfold/internal/retention"
	"github.com/unfoldindia/unfold/internal/store"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Apply every user's retention policy once",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		db, err := openDB(cfg, logger)
		if err != nil {
			return err
		}
		defer db.Close()

		deleted, err := retention.New(logger, metrics.New()).Sweep(cmd.Context(), db)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %d expired messages\n", deleted)
		return nil
	},
}

var tokenTTL time.Duration

var tokenCmd = &cobra.Command{
	Use:   "token <owner-id>",
	Short: "Mint a bearer token for a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		token, err := mintToken(cfg.Auth.JWTSecret, cfg.Auth.Issuer, args[0], tokenTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func mintToken(secret, issuer, ownerID string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("UNFOLD_JWT_SECRET is not set")
	}
	v, err := auth.NewVerifier(secret, issuer)
	if err != nil {
		return "", err
	}
	return v.Issue(ownerID, ttl)
}

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Show or change a user's retention policy",
}

var policyGetCmd = &cobra.Command{
	Use:   "get <owner-id>",
	Short: "Show a user's retention policy",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		db, err := openDB(cfg, logger)
		if err != nil {
			return err
		}
		defer db.Close()

		p, err := db.GetPolicy(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if p == nil {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: no policy (%s)\n", args[0], store.DefaultPeriod)
			return nil
		}
		updated := time.UnixMilli(p.UpdatedAt).UTC().Format(time.RFC3339)
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s (updated %s)\n", p.OwnerID, p.Period, updated)
		return nil
	},
}

var policySetCmd = &cobra.Command{
	Use:   "set <owner-id> <period>",
	Short: "Set a user's retention policy",
	Long:  "Set a user's retention policy. Periods: keep_forever, 1_month, 3_months, 6_months, 1_year.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		period, ok := retention.ParsePeriod(args[1])
		if !ok {
			return fmt.Errorf("unknown period %q (want one of %v)", args[1], retention.Periods)
		}

		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		db, err := openDB(cfg, logger)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.EnsureUser(cmd.Context(), args[0]); err != nil {
			return err
		}
		p, err := db.SetPolicy(cmd.Context(), args[0], string(period))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", p.OwnerID, p.Period)
		return nil
	},
}

func init() {
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 30*24*time.Hour, "token lifetime")

	policyCmd.AddCommand(policyGetCmd)
	policyCmd.AddCommand(policySetCmd)
}
