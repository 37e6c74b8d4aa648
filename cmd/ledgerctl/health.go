package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/vereinskasse/vereinskasse-backend/pkg/db"
	"github.com/vereinskasse/vereinskasse-backend/pkg/storage/local"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the database and the attachment store are reachable",
	RunE: func(cmd *cobra.Command, args []string) error {
		checks := []struct {
			name string
			ping func(context.Context) error
		}{
			{"database", db.Pinger(app.db).Ping},
			{"attachments", local.Pinger(app.blobs).Ping},
		}
		var errs error
		for _, c := range checks {
			if err := c.ping(cmd.Context()); err != nil {
				fmt.Printf("%-12s FAIL %v\n", c.name, err)
				errs = multierr.Append(errs, fmt.Errorf("%s: %w", c.name, err))
				continue
			}
			fmt.Printf("%-12s ok\n", c.name)
		}
		if errs == nil {
			fmt.Printf("attachments stored in %s\n", app.blobs.Root())
		}
		return errs
	},
}

var voucherFileCmd = &cobra.Command{
	Use:   "file <voucher-id> <file-id>",
	Short: "Write an attachment to stdout or --out",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		voucherID, err := parseID(args[0])
		if err != nil {
			return err
		}
		fileID, err := parseID(args[1])
		if err != nil {
			return err
		}
		view, err := app.vouchers.Get(cmd.Context(), voucherID)
		if err != nil {
			return err
		}
		key := ""
		for _, f := range view.Files {
			if f.ID == fileID {
				key = f.FilePath
			}
		}
		if key == "" {
			return fmt.Errorf("voucher %d has no file %d", voucherID, fileID)
		}

		rc, err := app.blobs.Open(cmd.Context(), key)
		if err != nil {
			return err
		}
		defer rc.Close()

		var w io.Writer = os.Stdout
		if out, _ := cmd.Flags().GetString("out"); out != "" {
			f, err := os.Create(out)
			if err != nil {
				return err
			}
			defer f.Close()
			w = f
		}
		_, err = io.Copy(w, rc)
		return err
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
	voucherCmd.AddCommand(voucherFileCmd)
	voucherFileCmd.Flags().StringP("out", "o", "", "target path instead of stdout")
}
