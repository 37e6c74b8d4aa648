package migrate

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"time"

	"github.com/pressly/goose/v3"
	"github.com/pressly/goose/v3/database"

	"github.com/vereinskasse/vereinskasse-backend/pkg/logger"
	"github.com/vereinskasse/vereinskasse-backend/pkg/metrics"
)

// DefaultDir is where SQL units live in the source tree (used by create/validate).
const DefaultDir = "pkg/migrate/migrations"

// DefaultTable is the versions table recording applied units.
const DefaultTable = "schema_migrations"

//go:embed migrations/*.sql
var embedded embed.FS

// Applied describes one unit the runner executed.
type Applied struct {
	Version  int64
	Source   string
	Duration time.Duration
}

// UnitStatus reports whether a known unit has been recorded as applied.
type UnitStatus struct {
	Version   int64
	Source    string
	Applied   bool
	AppliedAt time.Time
}

// Options configures a Runner.
type Options struct {
	TableName string
	Logger    *logger.Logger
	Metrics   *metrics.MigrationMetrics
}

// Runner applies the ordered list of schema units (embedded SQL files plus Go
// procedural units) to a SQLite database. Each unit runs in its own
// transaction that also records its version.
type Runner struct {
	provider *goose.Provider
	logg     *logger.Logger
	metrics  *metrics.MigrationMetrics
}

// NewRunner builds a Runner over db.
func NewRunner(db *sql.DB, opts Options) (*Runner, error) {
	return newRunner(db, opts, nil)
}

func newRunner(db *sql.DB, opts Options, extra []*goose.Migration) (*Runner, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	if opts.TableName == "" {
		opts.TableName = DefaultTable
	}
	logg := opts.Logger
	if logg == nil {
		logg = logger.Nop()
	}

	store, err := database.NewStore(database.DialectSQLite3, opts.TableName)
	if err != nil {
		return nil, fmt.Errorf("create goose store: %w", err)
	}

	sqlUnits, err := fs.Sub(embedded, "migrations")
	if err != nil {
		return nil, fmt.Errorf("open embedded migrations: %w", err)
	}

	units := append(goUnits(logg), extra...)
	provider, err := goose.NewProvider("", db, sqlUnits,
		goose.WithStore(store),
		goose.WithGoMigrations(units...),
		goose.WithDisableGlobalRegistry(true),
	)
	if err != nil {
		return nil, fmt.Errorf("create goose provider: %w", err)
	}

	return &Runner{provider: provider, logg: logg, metrics: opts.Metrics}, nil
}

// Up applies every pending unit in ascending version order. It stops at the
// first failing unit; units applied before the failure stay applied.
func (r *Runner) Up(ctx context.Context) ([]Applied, error) {
	results, err := r.provider.Up(ctx)
	applied := r.record(ctx, results)
	if err != nil {
		var partial *goose.PartialError
		if errors.As(err, &partial) {
			if len(applied) == 0 {
				applied = r.record(ctx, partial.Applied)
			}
			if partial.Failed != nil && partial.Failed.Source != nil {
				r.metrics.IncFailure(partial.Failed.Source.Version)
				return applied, fmt.Errorf("migration %d failed: %w", partial.Failed.Source.Version, partial.Err)
			}
		}
		return applied, fmt.Errorf("goose up: %w", err)
	}
	if len(applied) == 0 {
		r.logg.Info(ctx, "schema up to date")
	}
	return applied, nil
}

// UpTo applies pending units up to and including version.
func (r *Runner) UpTo(ctx context.Context, version int64) ([]Applied, error) {
	results, err := r.provider.UpTo(ctx, version)
	applied := r.record(ctx, results)
	if err != nil {
		return applied, fmt.Errorf("goose up-to %d: %w", version, err)
	}
	return applied, nil
}

// Down rolls back the most recently applied unit.
func (r *Runner) Down(ctx context.Context) error {
	result, err := r.provider.Down(ctx)
	if err != nil {
		return fmt.Errorf("goose down: %w", err)
	}
	if result != nil && result.Source != nil {
		r.logg.Info(r.logg.WithField(ctx, "version", result.Source.Version), "migration rolled back")
	}
	return nil
}

// Version returns the highest applied version.
func (r *Runner) Version(ctx context.Context) (int64, error) {
	v, err := r.provider.GetDBVersion(ctx)
	if err != nil {
		return 0, fmt.Errorf("get db version: %w", err)
	}
	return v, nil
}

// Status lists every known unit and whether it has been applied.
func (r *Runner) Status(ctx context.Context) ([]UnitStatus, error) {
	statuses, err := r.provider.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("goose status: %w", err)
	}
	out := make([]UnitStatus, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, UnitStatus{
			Version:   s.Source.Version,
			Source:    sourceName(s.Source),
			Applied:   s.State == goose.StateApplied,
			AppliedAt: s.AppliedAt,
		})
	}
	return out, nil
}

// MigrateToVersion migrates up/down to the requested version by comparing current DB version.
func (r *Runner) MigrateToVersion(ctx context.Context, targetVersion string) error {
	if targetVersion == "" {
		return fmt.Errorf("targetVersion is required")
	}

	target, err := strconv.ParseInt(targetVersion, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid version %q: %w", targetVersion, err)
	}

	current, err := r.Version(ctx)
	if err != nil {
		return err
	}

	switch {
	case current == target:
		return nil

	case current < target:
		_, err := r.UpTo(ctx, target)
		return err

	default:
		if _, err := r.provider.DownTo(ctx, target); err != nil {
			return fmt.Errorf("goose down-to %d: %w", target, err)
		}
		return nil
	}
}

// Close releases provider resources. It does not close the database.
func (r *Runner) Close() error {
	return r.provider.Close()
}

func (r *Runner) record(ctx context.Context, results []*goose.MigrationResult) []Applied {
	applied := make([]Applied, 0, len(results))
	for _, res := range results {
		if res == nil || res.Source == nil || res.Error != nil {
			continue
		}
		a := Applied{Version: res.Source.Version, Source: sourceName(res.Source), Duration: res.Duration}
		applied = append(applied, a)
		r.metrics.IncApplied(a.Version)
		r.logg.Info(r.logg.WithFields(ctx, map[string]any{
			"version":     a.Version,
			"source":      a.Source,
			"duration_ms": a.Duration.Milliseconds(),
		}), "migration applied")
	}
	return applied
}

func sourceName(src *goose.Source) string {
	if src == nil {
		return ""
	}
	if src.Path != "" {
		return src.Path
	}
	return fmt.Sprintf("go:%05d", src.Version)
}
