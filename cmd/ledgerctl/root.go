package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/spf13/cobra"

	"github.com/vereinskasse/vereinskasse-backend/internal/audit"
	"github.com/vereinskasse/vereinskasse-backend/internal/balances"
	"github.com/vereinskasse/vereinskasse-backend/internal/periodlock"
	"github.com/vereinskasse/vereinskasse-backend/internal/references"
	"github.com/vereinskasse/vereinskasse-backend/internal/vouchers"
	"github.com/vereinskasse/vereinskasse-backend/pkg/config"
	"github.com/vereinskasse/vereinskasse-backend/pkg/db"
	pkgerrors "github.com/vereinskasse/vereinskasse-backend/pkg/errors"
	"github.com/vereinskasse/vereinskasse-backend/pkg/logger"
	"github.com/vereinskasse/vereinskasse-backend/pkg/metrics"
	"github.com/vereinskasse/vereinskasse-backend/pkg/migrate"
	"github.com/vereinskasse/vereinskasse-backend/pkg/storage/local"
)

var version = "0.1.0"

// runtime holds the wired ledger for one command invocation.
type runtime struct {
	cfg      *config.Config
	logg     *logger.Logger
	db       *db.Client
	registry *prometheus.Registry
	audit    *audit.Log
	lock     *periodlock.Service
	vouchers *vouchers.Service
	queries  *balances.Queries
	refs     *references.Repository
	blobs    *local.Client
}

var (
	app         *runtime
	actorFlag   int64
	metricsFlag bool
	debugFlag   bool
)

var rootCmd = &cobra.Command{
	Use:   "ledgerctl",
	Short: "Vereinskasse ledger command line",
	Long: `ledgerctl books, corrects and reports vouchers of the association ledger.

Configuration is read from VEREINSKASSE_* environment variables (a .env file in
the working directory is loaded first). VEREINSKASSE_DB_PATH is required.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		rt, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		app = rt
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if app == nil {
			return
		}
		if metricsFlag && app.registry != nil {
			if families, err := app.registry.Gather(); err == nil {
				printMetrics(families)
			}
		}
		_ = app.db.Close()
	},
}

func init() {
	rootCmd.PersistentFlags().Int64Var(&actorFlag, "actor", 0, "user id recorded as actor in the audit log")
	rootCmd.PersistentFlags().BoolVar(&metricsFlag, "metrics", false, "print collected ledger metrics to stderr on exit")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "print the full error chain on failure")
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		if app != nil {
			app.logg.Error(context.Background(), "command failed", err)
		}
		reportError(err)
		os.Exit(1)
	}
}

func setup(ctx context.Context) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logg := logger.New(logger.Options{
		ServiceName: "ledgerctl",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Output:      os.Stderr,
	})

	var (
		registry *prometheus.Registry
		reg      prometheus.Registerer
	)
	if cfg.Metrics.Enabled {
		registry = prometheus.NewRegistry()
		reg = registry
	}
	ledgerMetrics := metrics.NewLedgerMetrics(reg, cfg.Metrics.Namespace)
	migrationMetrics := metrics.NewMigrationMetrics(reg, cfg.Metrics.Namespace)

	client, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return nil, err
	}
	if err := migrate.MaybeRunOnStartup(ctx, cfg, logg, client, migrationMetrics); err != nil {
		_ = client.Close()
		return nil, err
	}

	blobs, err := local.NewClient(ctx, cfg.Attachments, logg)
	if err != nil {
		_ = client.Close()
		return nil, err
	}

	auditLog := audit.New(client.DB(), audit.Options{Logger: logg, Metrics: ledgerMetrics})
	lock, err := periodlock.NewService(client.DB(), auditLog, logg)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	svc, err := vouchers.NewService(vouchers.Deps{
		DB:      client,
		Audit:   auditLog,
		Lock:    lock,
		Blobs:   blobs,
		Logger:  logg,
		Metrics: ledgerMetrics,
		Config:  cfg.Ledger,
	})
	if err != nil {
		_ = client.Close()
		return nil, err
	}

	return &runtime{
		cfg:      cfg,
		logg:     logg,
		db:       client,
		registry: registry,
		audit:    auditLog,
		lock:     lock,
		vouchers: svc,
		queries:  balances.NewQueries(client.DB()),
		refs:     references.NewRepository(client.DB()),
		blobs:    blobs,
	}, nil
}

func actor() *int64 {
	if actorFlag <= 0 {
		return nil
	}
	id := actorFlag
	return &id
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// reportError writes the typed error code and details so scripts can branch on them.
func reportError(err error) {
	if debugFlag {
		raw, _ := json.MarshalIndent(pkgerrors.Dump(err), "", "  ")
		fmt.Fprintf(os.Stderr, "%s\n", raw)
	}
	typed := pkgerrors.As(err)
	if typed == nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return
	}
	meta := pkgerrors.MetadataFor(typed.Code())
	fmt.Fprintf(os.Stderr, "error [%s]: %s\n", typed.Code(), typed.Message())
	if details := typed.Details(); details != nil && meta.DetailsAllowed {
		raw, _ := json.Marshal(details)
		fmt.Fprintf(os.Stderr, "details: %s\n", raw)
	}
	if meta.Retryable {
		fmt.Fprintln(os.Stderr, "the operation may succeed if retried")
	}
}

func printMetrics(families []*dto.MetricFamily) {
	sort.Slice(families, func(i, j int) bool { return families[i].GetName() < families[j].GetName() })
	for _, f := range families {
		for _, m := range f.GetMetric() {
			labels := ""
			for _, lp := range m.GetLabel() {
				labels += fmt.Sprintf("%s=%q ", lp.GetName(), lp.GetValue())
			}
			switch f.GetType() {
			case dto.MetricType_COUNTER:
				fmt.Fprintf(os.Stderr, "%s {%s} %g\n", f.GetName(), labels, m.GetCounter().GetValue())
			case dto.MetricType_HISTOGRAM:
				h := m.GetHistogram()
				fmt.Fprintf(os.Stderr, "%s {%s} count=%d sum=%g\n", f.GetName(), labels, h.GetSampleCount(), h.GetSampleSum())
			}
		}
	}
}
