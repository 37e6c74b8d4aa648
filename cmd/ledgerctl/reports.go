package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vereinskasse/vereinskasse-backend/internal/balances"
	"github.com/vereinskasse/vereinskasse-backend/pkg/db/models"
	"github.com/vereinskasse/vereinskasse-backend/pkg/enums"
	"github.com/vereinskasse/vereinskasse-backend/pkg/money"
)

var earmarkCmd = &cobra.Command{
	Use:   "earmark",
	Short: "Manage earmarks (Zweckbindungen) and show their usage",
}

var earmarkListCmd = &cobra.Command{
	Use:   "list",
	Short: "List earmarks by code",
	RunE: func(cmd *cobra.Command, args []string) error {
		activeOnly, _ := cmd.Flags().GetBool("active")
		rows, err := app.refs.ListEarmarks(cmd.Context(), activeOnly)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tCODE\tNAME\tBUDGET\tACTIVE")
		for _, e := range rows {
			budget := "-"
			if e.Budget != nil {
				budget = money.Format(*e.Budget)
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%t\n", e.ID, e.Code, e.Name, budget, e.IsActive)
		}
		return w.Flush()
	},
}

var earmarkCreateCmd = &cobra.Command{
	Use:   "create <code> <name>",
	Short: "Create an active earmark",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		e := &models.Earmark{Code: args[0], Name: args[1], IsActive: true}
		if raw, _ := cmd.Flags().GetString("budget"); raw != "" {
			amount, err := money.ParseAmount(raw)
			if err != nil {
				return err
			}
			e.Budget = &amount
		}
		if err := app.refs.CreateEarmark(cmd.Context(), e); err != nil {
			return err
		}
		return printJSON(e)
	},
}

var earmarkUsageCmd = &cobra.Command{
	Use:   "usage <id>",
	Short: "Show allocated, released and remaining amounts of an earmark",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		raw, _ := cmd.Flags().GetString("as-of")
		asOf, err := parseOptionalDate(raw)
		if err != nil {
			return err
		}
		usage, err := app.queries.EarmarkUsage(cmd.Context(), id, balances.Options{AsOf: asOf})
		if err != nil {
			return err
		}
		return printJSON(usage)
	},
}

var budgetCmd = &cobra.Command{
	Use:   "budget",
	Short: "Manage budgets and show their usage",
}

var budgetCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Plan a budget for a year and sphere",
	RunE: func(cmd *cobra.Command, args []string) error {
		year, _ := cmd.Flags().GetInt("year")
		sphere, _ := cmd.Flags().GetString("sphere")
		raw, _ := cmd.Flags().GetString("amount")
		amount, err := money.ParseAmount(raw)
		if err != nil {
			return err
		}
		b := &models.Budget{Year: year, Sphere: enums.Sphere(sphere), AmountPlanned: amount}
		if name, _ := cmd.Flags().GetString("name"); name != "" {
			b.Name = &name
		}
		if err := app.refs.CreateBudget(cmd.Context(), b); err != nil {
			return err
		}
		return printJSON(b)
	},
}

var budgetUsageCmd = &cobra.Command{
	Use:   "usage <id>",
	Short: "Show planned, spent and remaining amounts of a budget",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		usage, err := app.queries.BudgetUsage(cmd.Context(), id, balances.Options{})
		if err != nil {
			return err
		}
		return printJSON(usage)
	},
}

func init() {
	rootCmd.AddCommand(earmarkCmd, budgetCmd)
	earmarkCmd.AddCommand(earmarkListCmd, earmarkCreateCmd, earmarkUsageCmd)
	budgetCmd.AddCommand(budgetCreateCmd, budgetUsageCmd)

	earmarkListCmd.Flags().Bool("active", false, "only active earmarks")
	earmarkCreateCmd.Flags().String("budget", "", "optional ceiling amount")
	earmarkUsageCmd.Flags().String("as-of", "", "only vouchers dated on or before (YYYY-MM-DD)")

	budgetCreateCmd.Flags().Int("year", 0, "budget year")
	budgetCreateCmd.Flags().String("sphere", "", "IDEELL, ZWECK, VERMOEGEN or WGB")
	budgetCreateCmd.Flags().String("amount", "0", "planned amount")
	budgetCreateCmd.Flags().String("name", "", "optional label")
	_ = budgetCreateCmd.MarkFlagRequired("year")
	_ = budgetCreateCmd.MarkFlagRequired("sphere")
}
