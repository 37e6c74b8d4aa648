package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vereinskasse/vereinskasse-backend/internal/audit"
	"github.com/vereinskasse/vereinskasse-backend/pkg/enums"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect the audit trail",
}

var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "List audit entries newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		entity, _ := cmd.Flags().GetString("entity")
		action, _ := cmd.Flags().GetString("action")
		limit, _ := cmd.Flags().GetInt("limit")
		f := audit.Filter{
			Entity: enums.AuditEntity(entity),
			Action: enums.AuditAction(action),
			Limit:  limit,
		}
		if id, _ := cmd.Flags().GetInt64("entity-id"); id > 0 {
			f.EntityID = &id
		}
		rows, err := app.audit.List(cmd.Context(), f)
		if err != nil {
			return err
		}

		verbose, _ := cmd.Flags().GetBool("diff")
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tAT\tACTOR\tENTITY\tENTITY ID\tACTION")
		for _, r := range rows {
			actorID := "-"
			if r.ActorUserID != nil {
				actorID = fmt.Sprint(*r.ActorUserID)
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%s\n", r.ID, r.CreatedAt, actorID, r.Entity, r.EntityID, r.Action)
			if verbose {
				fmt.Fprintf(w, "\t%s\n", r.DiffJSON)
			}
		}
		return w.Flush()
	},
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify <id>",
	Short: "Recompute the hash of an audit entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		ok, err := app.audit.Verify(cmd.Context(), id)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("audit entry %d: hash mismatch", id)
		}
		fmt.Printf("audit entry %d: ok\n", id)
		return nil
	},
}

var clearAllCmd = &cobra.Command{
	Use:   "clear-all",
	Short: "Delete every voucher and reset numbering",
	RunE: func(cmd *cobra.Command, args []string) error {
		if yes, _ := cmd.Flags().GetBool("yes"); !yes {
			return fmt.Errorf("refusing to delete all vouchers without --yes")
		}
		res, err := app.vouchers.ClearAll(cmd.Context(), actor())
		if err != nil {
			return err
		}
		fmt.Printf("deleted %d voucher(s)\n", res.Deleted)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(auditCmd, clearAllCmd)
	auditCmd.AddCommand(auditListCmd, auditVerifyCmd)

	auditListCmd.Flags().String("entity", "", "vouchers, period_lock or system")
	auditListCmd.Flags().Int64("entity-id", 0, "entity id")
	auditListCmd.Flags().String("action", "", "CREATE, UPDATE, DELETE, REVERSE, CLEAR_ALL, CLOSE, REOPEN or ATTACH")
	auditListCmd.Flags().Int("limit", 100, "maximum entries")
	auditListCmd.Flags().Bool("diff", false, "print the stored diff under each entry")

	clearAllCmd.Flags().Bool("yes", false, "confirm deletion")
}
