package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"fintrack/internal/cli"
	"fintrack/internal/core"
	"fintrack/internal/export"
	applog "fintrack/internal/log"
	"fintrack/internal/services"
	"fintrack/internal/storage"
)

// withRuntime opens the ledger for the duration of one command.
func withRuntime(cmd *cobra.Command, fn func(ctx context.Context, rt *cli.Runtime) error) error {
	cfg, logger := cli.Bootstrap(applog.ComponentCLI)
	ctx := cmd.Context()
	rt, err := cli.OpenLedger(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			logger.Warn("Backend cleanup error", "error", err)
		}
	}()
	return fn(ctx, rt)
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print balance, budgets, alerts and forecast",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuntime(cmd, func(ctx context.Context, rt *cli.Runtime) error {
			d, err := rt.Ledger.Dashboard(ctx, userID)
			if err != nil {
				return err
			}
			return cli.WriteReport(cmd.OutOrStdout(), userID, d)
		})
	},
}

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the ledger as CSV",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuntime(cmd, func(ctx context.Context, rt *cli.Runtime) error {
			var w io.Writer = cmd.OutOrStdout()
			if exportOut != "" {
				name := exportOut
				if strings.HasSuffix(name, "/") {
					name += export.FileName(rt.Ledger.Today())
				}
				f, err := os.Create(name)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			return rt.Ledger.ExportCSV(ctx, userID, w)
		})
	},
}

var addFlags struct {
	typ, amount, category, payment, description, date string
}

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Record a transaction",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		typ, err := core.ParseTxType(addFlags.typ)
		if err != nil {
			return err
		}
		amount, err := core.ParseAmount(addFlags.amount)
		if err != nil {
			return fmt.Errorf("amount %q: %w", addFlags.amount, err)
		}
		payment, err := core.ParsePaymentMethod(addFlags.payment)
		if err != nil {
			return err
		}
		return withRuntime(cmd, func(ctx context.Context, rt *cli.Runtime) error {
			date := rt.Ledger.Today()
			if addFlags.date != "" {
				if date, err = core.ParseDate(addFlags.date); err != nil {
					return err
				}
			}
			t, err := rt.Ledger.AddTransaction(ctx, userID, core.Transaction{
				Type:          typ,
				Amount:        amount,
				Category:      addFlags.category,
				PaymentMethod: payment,
				Description:   addFlags.description,
				Date:          date,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added %s %s %s on %s (%s)\n", t.Type, t.Amount, t.Category, t.Date, t.ID)
			return nil
		})
	},
}

var autopayCmd = &cobra.Command{
	Use:   "autopay",
	Short: "Recurring monthly expenses",
}

var autopayAllUsers bool

var autopayRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Generate due autopay transactions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuntime(cmd, func(ctx context.Context, rt *cli.Runtime) error {
			out := cmd.OutOrStdout()
			if autopayAllUsers {
				sum, err := services.NewAutopayRunner(rt.Ledger, rt.Config.AutopayConcurrency).RunOnce(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "users=%d created=%d failed=%d\n", sum.Users, sum.Created, sum.Failed)
				return nil
			}
			res, err := rt.Ledger.ProcessAutopays(ctx, userID)
			if err != nil {
				return err
			}
			for _, t := range res.Transactions {
				fmt.Fprintf(out, "%s  %-30s %12s\n", t.Date, t.Description, t.Amount)
			}
			fmt.Fprintf(out, "created=%d\n", res.Created)
			return nil
		})
	},
}

var autopayListCmd = &cobra.Command{
	Use:   "list",
	Short: "List autopay rules",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuntime(cmd, func(ctx context.Context, rt *cli.Runtime) error {
			rules, err := rt.Ledger.Autopays(ctx, userID)
			if err != nil {
				return err
			}
			for _, r := range rules {
				state := "active"
				if !r.IsActive {
					state = "paused"
				}
				last := "-"
				if r.LastProcessed != nil {
					last = r.LastProcessed.String()
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %-20s %12s  day %-4s %-6s last %s\n",
					r.ID, r.Name, r.Amount, r.Day, state, last)
			}
			return nil
		})
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Store the profile's budgets, goal and categories for a new user",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuntime(cmd, func(ctx context.Context, rt *cli.Runtime) error {
			repo := rt.Backend.Repository
			_, err := repo.Load(ctx, userID)
			if err == nil {
				return fmt.Errorf("user %q already has a ledger", userID)
			}
			if !errors.Is(err, storage.ErrUserNotFound) {
				return err
			}
			s, err := rt.Profile.Seed()
			if err != nil {
				return err
			}
			if err := repo.Save(ctx, userID, s); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %s with %d budgets\n", userID, len(s.Budgets))
			return nil
		})
	},
}

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "List users with a stored ledger",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuntime(cmd, func(ctx context.Context, rt *cli.Runtime) error {
			users, err := rt.Ledger.Users(ctx)
			if err != nil {
				return err
			}
			for _, u := range users {
				fmt.Fprintln(cmd.OutOrStdout(), u)
			}
			return nil
		})
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output file, or a directory ending in /")

	addCmd.Flags().StringVar(&addFlags.typ, "type", "expense", "income or expense")
	addCmd.Flags().StringVar(&addFlags.amount, "amount", "", "amount, e.g. 12.50")
	addCmd.Flags().StringVar(&addFlags.category, "category", "", "category name")
	addCmd.Flags().StringVar(&addFlags.payment, "payment", "cash", "payment method")
	addCmd.Flags().StringVar(&addFlags.description, "description", "", "free text")
	addCmd.Flags().StringVar(&addFlags.date, "date", "", "YYYY-MM-DD, default today")
	_ = addCmd.MarkFlagRequired("amount")
	_ = addCmd.MarkFlagRequired("category")

	autopayRunCmd.Flags().BoolVar(&autopayAllUsers, "all", false, "process every stored user")
}
