package migrate

import (
	"context"
	"fmt"

	"github.com/vereinskasse/vereinskasse-backend/pkg/config"
	"github.com/vereinskasse/vereinskasse-backend/pkg/db"
	"github.com/vereinskasse/vereinskasse-backend/pkg/logger"
	"github.com/vereinskasse/vereinskasse-backend/pkg/metrics"
)

// MaybeRunOnStartup applies pending units when the auto-migrate feature flag
// is enabled. A failing unit is fatal to startup.
func MaybeRunOnStartup(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client, m *metrics.MigrationMetrics) error {
	if !cfg.FeatureFlags.AutoMigrate {
		return nil
	}

	sqlDB, err := client.SQL()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	meta := map[string]any{"env": cfg.App.Env, "table": cfg.Migrations.TableName}
	ctx = logg.WithFields(ctx, meta)
	logg.Info(ctx, "running schema migrations (auto-run)")

	runner, err := NewRunner(sqlDB, Options{TableName: cfg.Migrations.TableName, Logger: logg, Metrics: m})
	if err != nil {
		return err
	}
	defer runner.Close()

	applied, err := runner.Up(ctx)
	if err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	logg.Info(logg.WithField(ctx, "applied", len(applied)), "schema migrations completed")
	return nil
}
