package main

import (
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vereinskasse/vereinskasse-backend/internal/balances"
	"github.com/vereinskasse/vereinskasse-backend/internal/vouchers"
	"github.com/vereinskasse/vereinskasse-backend/pkg/enums"
	"github.com/vereinskasse/vereinskasse-backend/pkg/money"
	"github.com/vereinskasse/vereinskasse-backend/pkg/pagination"
	"github.com/vereinskasse/vereinskasse-backend/pkg/types"
	"github.com/vereinskasse/vereinskasse-backend/pkg/validators"
)

var voucherCmd = &cobra.Command{
	Use:   "voucher",
	Short: "Book, correct and inspect vouchers",
}

var voucherCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Book a voucher from a JSON document",
	Example: `  ledgerctl voucher create --file beleg.json --attach rechnung.pdf
  echo '{"date":"2025-03-01","type":"OUT","sphere":"IDEELL","grossAmount":"12.50","paymentMethod":"BAR"}' | ledgerctl voucher create`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var in vouchers.CreateVoucherInput
		if err := decodeInput(cmd, &in); err != nil {
			return err
		}
		paths, _ := cmd.Flags().GetStringSlice("attach")
		for _, p := range paths {
			att, err := readAttachment(p)
			if err != nil {
				return err
			}
			in.Files = append(in.Files, att)
		}
		if in.ActorID == nil {
			in.ActorID = actor()
		}
		res, err := app.vouchers.Create(cmd.Context(), in)
		if err != nil {
			return err
		}
		return printJSON(res)
	},
}

var voucherUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Change a voucher from a JSON document carrying its id",
	RunE: func(cmd *cobra.Command, args []string) error {
		var in vouchers.UpdateVoucherInput
		if err := decodeInput(cmd, &in); err != nil {
			return err
		}
		if in.ActorID == nil {
			in.ActorID = actor()
		}
		res, err := app.vouchers.Update(cmd.Context(), in)
		if err != nil {
			return err
		}
		return printJSON(res)
	},
}

var voucherDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a voucher and unlink its files",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		if err := app.vouchers.Delete(cmd.Context(), id, actor()); err != nil {
			return err
		}
		fmt.Printf("voucher %d deleted\n", id)
		return nil
	},
}

var voucherReverseCmd = &cobra.Command{
	Use:   "reverse <id>",
	Short: "Book a dated-today counter voucher (Storno)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		res, err := app.vouchers.Reverse(cmd.Context(), id, actor())
		if err != nil {
			return err
		}
		return printJSON(res)
	},
}

var voucherGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show a voucher with tags, allocations and files",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		v, err := app.vouchers.Get(cmd.Context(), id)
		if err != nil {
			return err
		}
		return printJSON(v)
	},
}

var voucherAttachCmd = &cobra.Command{
	Use:   "attach <id> <file>",
	Short: "Attach a file to a voucher",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		att, err := readAttachment(args[1])
		if err != nil {
			return err
		}
		row, err := app.vouchers.AttachFile(cmd.Context(), id, att, actor())
		if err != nil {
			return err
		}
		return printJSON(row)
	},
}

var voucherListCmd = &cobra.Command{
	Use:   "list",
	Short: "List vouchers newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := filterFromFlags(cmd)
		if err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("limit")
		cursor, _ := cmd.Flags().GetString("cursor")
		page, err := app.queries.ListVouchers(cmd.Context(), f, pagination.Params{Limit: limit, Cursor: cursor})
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', tabwriter.AlignRight)
		fmt.Fprintln(w, "ID\tNUMBER\tDATE\tTYPE\tSPHERE\tGROSS\tDESCRIPTION\t")
		for _, v := range page.Items {
			desc := ""
			if v.Description != nil {
				desc = *v.Description
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
				v.ID, v.VoucherNo, v.Date, v.Type, v.Sphere, money.Format(v.GrossAmount), desc)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		if page.NextCursor != "" {
			fmt.Printf("next cursor: %s\n", page.NextCursor)
		}
		return nil
	},
}

var voucherSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Totals by sphere, payment method and type, or monthly/daily series",
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := filterFromFlags(cmd)
		if err != nil {
			return err
		}
		monthly, _ := cmd.Flags().GetBool("monthly")
		daily, _ := cmd.Flags().GetBool("daily")

		switch {
		case monthly:
			buckets, err := app.queries.Monthly(cmd.Context(), f)
			if err != nil {
				return err
			}
			return printBuckets("MONTH", buckets)
		case daily:
			buckets, err := app.queries.Daily(cmd.Context(), f)
			if err != nil {
				return err
			}
			return printBuckets("DAY", buckets)
		}

		summary, err := app.queries.Summarize(cmd.Context(), f)
		if err != nil {
			return err
		}
		summary.Totals.Key = "TOTAL"
		groups := [][]balances.Bucket{{summary.Totals}, summary.BySphere, summary.ByPaymentMethod, summary.ByType}
		var all []balances.Bucket
		for _, g := range groups {
			all = append(all, g...)
		}
		return printBuckets("KEY", all)
	},
}

func init() {
	rootCmd.AddCommand(voucherCmd)
	voucherCmd.AddCommand(voucherCreateCmd, voucherUpdateCmd, voucherDeleteCmd, voucherReverseCmd,
		voucherGetCmd, voucherAttachCmd, voucherListCmd, voucherSummaryCmd)

	for _, c := range []*cobra.Command{voucherCreateCmd, voucherUpdateCmd} {
		c.Flags().StringP("file", "f", "-", "JSON input file, - for stdin")
	}
	voucherCreateCmd.Flags().StringSlice("attach", nil, "file to attach (repeatable)")

	for _, c := range []*cobra.Command{voucherListCmd, voucherSummaryCmd} {
		c.Flags().String("from", "", "first date (YYYY-MM-DD)")
		c.Flags().String("to", "", "last date (YYYY-MM-DD)")
		c.Flags().String("type", "", "IN, OUT or TRANSFER")
		c.Flags().String("sphere", "", "IDEELL, ZWECK, VERMOEGEN or WGB")
		c.Flags().String("payment", "", "BAR (alias CASH) or BANK")
		c.Flags().Int64("earmark", 0, "earmark id")
		c.Flags().Int64("budget", 0, "budget id")
		c.Flags().String("tag", "", "tag name")
		c.Flags().StringP("query", "q", "", "text search in description, number and counterparty")
	}
	voucherListCmd.Flags().Int("limit", pagination.DefaultLimit, "page size")
	voucherListCmd.Flags().String("cursor", "", "cursor from the previous page")
	voucherSummaryCmd.Flags().Bool("monthly", false, "bucket by month")
	voucherSummaryCmd.Flags().Bool("daily", false, "bucket by day")
}

func decodeInput(cmd *cobra.Command, dest any) error {
	path, _ := cmd.Flags().GetString("file")
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		r = f
	}
	return validators.DecodeJSON(r, dest)
}

func readAttachment(path string) (vouchers.Attachment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return vouchers.Attachment{}, fmt.Errorf("read attachment: %w", err)
	}
	return vouchers.Attachment{
		FileName: filepath.Base(path),
		MimeType: mime.TypeByExtension(filepath.Ext(path)),
		Data:     data,
	}, nil
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}

func parseOptionalDate(raw string) (types.Date, error) {
	if raw == "" {
		return types.Date{}, nil
	}
	return types.ParseDate(raw)
}

func filterFromFlags(cmd *cobra.Command) (balances.Filter, error) {
	flags := cmd.Flags()
	fromRaw, _ := flags.GetString("from")
	toRaw, _ := flags.GetString("to")
	from, err := parseOptionalDate(fromRaw)
	if err != nil {
		return balances.Filter{}, err
	}
	to, err := parseOptionalDate(toRaw)
	if err != nil {
		return balances.Filter{}, err
	}

	typ, _ := flags.GetString("type")
	sphere, _ := flags.GetString("sphere")
	payment, _ := flags.GetString("payment")
	tag, _ := flags.GetString("tag")
	query, _ := flags.GetString("query")
	f := balances.Filter{
		From:          from,
		To:            to,
		Type:          enums.VoucherType(typ),
		Sphere:        enums.Sphere(sphere),
		PaymentMethod: enums.PaymentMethod(payment),
		Tag:           tag,
		Query:         query,
	}
	if payment != "" {
		if f.PaymentMethod, err = enums.ParsePaymentMethod(payment); err != nil {
			return balances.Filter{}, err
		}
	}
	if id, _ := flags.GetInt64("earmark"); id > 0 {
		f.EarmarkID = &id
	}
	if id, _ := flags.GetInt64("budget"); id > 0 {
		f.BudgetID = &id
	}
	return f, nil
}

func printBuckets(keyHeader string, buckets []balances.Bucket) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(w, "%s\tCOUNT\tIN\tOUT\tSALDO\t\n", keyHeader)
	for _, b := range buckets {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t\n", b.Key, b.Count, money.Format(b.In), money.Format(b.Out), money.Format(b.Saldo))
	}
	return w.Flush()
}
