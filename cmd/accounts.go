package cmd

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/garytangtang2-bit/hkfirstclick/config"
	"github.com/garytangtang2-bit/hkfirstclick/database"
	"github.com/garytangtang2-bit/hkfirstclick/services"
	"github.com/spf13/cobra"
)

func newAccountsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Inspect and adjust accounts",
	}

	cmd.AddCommand(
		newAccountsCreateCmd(),
		newAccountsGrantCmd(),
		newAccountsSetTierCmd(),
		newAccountsStatsCmd(),
		newAccountsTokenCmd(),
	)

	return cmd
}

func withAccountStore(ctx context.Context, fn func(context.Context, *database.AccountStore) error) error {
	db, err := database.Open(config.Load().Database.DSN())
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(ctx, database.NewAccountStore(db))
}

func parseCredits(raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("credits must be a positive integer, got %q", raw)
	}
	return n, nil
}

func newAccountsCreateCmd() *cobra.Command {
	var email string
	var credits int

	cmd := &cobra.Command{
		Use:   "create <account-id>",
		Short: "Create a TRIAL account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if credits < 0 {
				credits = config.Load().Credits.Starting
			}
			return withAccountStore(cmd.Context(), func(ctx context.Context, store *database.AccountStore) error {
				acct, err := store.Create(ctx, args[0], email, string(services.TierTrial), credits)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%d\n", acct.ID, acct.Tier, acct.Credits)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().IntVar(&credits, "credits", -1, "starting credits (default STARTING_CREDITS)")
	return cmd
}

func newAccountsGrantCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "grant <account-id> <credits>",
		Short: "Add credits without changing the tier",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := parseCredits(args[1])
			if err != nil {
				return err
			}
			return withAccountStore(cmd.Context(), func(ctx context.Context, store *database.AccountStore) error {
				// passing TRIAL as the top-up tier leaves TRIAL accounts on TRIAL
				if err := store.AddCredits(ctx, args[0], string(services.TierTrial), n); err != nil {
					return notFoundHint(args[0], err)
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "granted %d credits to %s\n", n, args[0])
				return nil
			})
		},
	}
}

func newAccountsSetTierCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-tier <account-id> <TRIAL|PASS|YEARLY|TOPUP> <credits>",
		Short: "Move an account to a tier with a fresh credit balance",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			tier := services.Tier(strings.ToUpper(args[1]))
			switch tier {
			case services.TierTrial, services.TierPass, services.TierYearly, services.TierTopup:
			default:
				return fmt.Errorf("unknown tier %q", args[1])
			}
			n, err := parseCredits(args[2])
			if err != nil {
				return err
			}
			return withAccountStore(cmd.Context(), func(ctx context.Context, store *database.AccountStore) error {
				if err := store.ApplySubscription(ctx, args[0], string(tier), n); err != nil {
					return notFoundHint(args[0], err)
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s with %d credits\n", args[0], tier, n)
				return nil
			})
		},
	}
}

func newAccountsStatsCmd() *cobra.Command {
	var recent int

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Count trial and paid accounts and list recent activity",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withAccountStore(cmd.Context(), func(ctx context.Context, store *database.AccountStore) error {
				stats, err := store.Stats(ctx, string(services.TierTrial), recent)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				_, _ = fmt.Fprintf(out, "trial: %d\npaid: %d\n\n", stats.Trial, stats.Paid)

				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				_, _ = fmt.Fprintln(tw, "ID\tEMAIL\tTIER\tCREDITS\tUPDATED")
				for _, a := range stats.Recent {
					_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", a.ID, a.Email, a.Tier, a.Credits, a.UpdatedAt.Format(time.RFC3339))
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().IntVar(&recent, "recent", 10, "number of recently updated accounts to list")
	return cmd
}

func newAccountsTokenCmd() *cobra.Command {
	var email string
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token <account-id>",
		Short: "Sign a bearer token for local testing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := config.Load().Auth.JWTSecret
			if secret == "" {
				return errors.New("SUPABASE_JWT_SECRET is required")
			}
			token, err := services.NewTokenVerifier(secret).Issue(args[0], email, ttl)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email claim")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}

func notFoundHint(id string, err error) error {
	if errors.Is(err, database.ErrNotFound) {
		return fmt.Errorf("account %s does not exist", id)
	}
	return err
}
