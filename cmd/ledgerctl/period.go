package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vereinskasse/vereinskasse-backend/internal/periodlock"
	"github.com/vereinskasse/vereinskasse-backend/pkg/types"
)

var periodCmd = &cobra.Command{
	Use:   "period",
	Short: "Close or reopen booking periods",
}

var periodShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the current lock barrier",
	RunE: func(cmd *cobra.Command, args []string) error {
		state, err := app.lock.Load(cmd.Context())
		if err != nil {
			return err
		}
		printState(state)
		return nil
	},
}

var periodCloseCmd = &cobra.Command{
	Use:   "close <date>",
	Short: "Lock every voucher dated on or before date",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		until, err := types.ParseDate(args[0])
		if err != nil {
			return err
		}
		state, err := app.lock.CloseUntil(cmd.Context(), until, actor())
		if err != nil {
			return err
		}
		printState(state)
		return nil
	},
}

var periodReopenCmd = &cobra.Command{
	Use:   "reopen [date]",
	Short: "Move the barrier back to date, or open everything",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var until *types.Date
		if len(args) == 1 {
			d, err := types.ParseDate(args[0])
			if err != nil {
				return err
			}
			until = &d
		}
		state, err := app.lock.Reopen(cmd.Context(), until, actor())
		if err != nil {
			return err
		}
		printState(state)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(periodCmd)
	periodCmd.AddCommand(periodShowCmd, periodCloseCmd, periodReopenCmd)
}

func printState(state periodlock.State) {
	if state.IsOpen() {
		fmt.Println("all periods open")
		return
	}
	fmt.Printf("closed until %s\n", state.ClosedUntil)
}
