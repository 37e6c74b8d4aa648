package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/joho/godotenv"

	"github.com/vereinskasse/vereinskasse-backend/pkg/config"
	"github.com/vereinskasse/vereinskasse-backend/pkg/db"
	"github.com/vereinskasse/vereinskasse-backend/pkg/logger"
	"github.com/vereinskasse/vereinskasse-backend/pkg/migrate"
)

func main() {
	ctx := context.Background()
	// bootstrap logger early (then re-init after config load)
	logg := logger.New(logger.Options{ServiceName: "migrate"})

	_ = godotenv.Load()

	// Flags
	cmd := flag.String("cmd", "up", "migration command: up|down|status|version|create|validate")
	dir := flag.String("dir", migrate.DefaultDir, "SQL migrations directory (create/validate)")

	// Command-specific flags
	name := flag.String("name", "", "migration name (for create)")
	version := flag.String("version", "", "target version for -cmd=version")

	flag.Parse()

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx = logg.WithFields(context.Background(), map[string]any{
		"env": cfg.App.Env,
		"cmd": *cmd,
		"dir": *dir,
	})

	// Commands that do NOT require DB
	switch *cmd {
	case "create":
		if *name == "" {
			fmt.Fprintln(os.Stderr, "missing -name for create")
			os.Exit(1)
		}
		path, err := migrate.CreateSQLMigration(*dir, *name)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to create migration: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("created migration:", path)
		return

	case "validate":
		if err := migrate.ValidateDir(*dir); err != nil {
			fmt.Fprintf(os.Stderr, "migration validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("migration validation passed")
		return
	}

	// Everything else needs DB
	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer dbClient.Close()

	sqlDB, err := dbClient.SQL()
	requireResource(ctx, logg, "sql database", err)

	runner, err := migrate.NewRunner(sqlDB, migrate.Options{TableName: cfg.Migrations.TableName, Logger: logg})
	requireResource(ctx, logg, "migration runner", err)
	defer runner.Close()

	logg.Info(ctx, "migrate ready")

	switch *cmd {
	case "up":
		applied, err := runner.Up(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "migrate up failed after %d unit(s): %v\n", len(applied), err)
			os.Exit(1)
		}
		fmt.Printf("applied %d unit(s)\n", len(applied))

	case "down":
		if err := runner.Down(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "migrate down failed: %v\n", err)
			os.Exit(1)
		}

	case "status":
		statuses, err := runner.Status(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "migrate status failed: %v\n", err)
			os.Exit(1)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "VERSION\tSTATE\tAPPLIED AT\tSOURCE")
		for _, s := range statuses {
			state, at := "pending", "-"
			if s.Applied {
				state, at = "applied", s.AppliedAt.Format("2006-01-02 15:04:05")
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", s.Version, state, at, s.Source)
		}
		_ = w.Flush()

	case "version":
		if *version == "" {
			current, err := runner.Version(ctx)
			if err != nil {
				fmt.Fprintf(os.Stderr, "reading schema version failed: %v\n", err)
				os.Exit(1)
			}
			fmt.Println(current)
			return
		}
		if err := runner.MigrateToVersion(ctx, *version); err != nil {
			fmt.Fprintf(os.Stderr, "migrate to version failed: %v\n", err)
			os.Exit(1)
		}

	default:
		fmt.Fprintln(os.Stderr, "unknown -cmd value:", *cmd)
		os.Exit(1)
	}
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
