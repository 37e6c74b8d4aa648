package vouchers

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/vereinskasse/vereinskasse-backend/internal/audit"
	"github.com/vereinskasse/vereinskasse-backend/internal/balances"
	"github.com/vereinskasse/vereinskasse-backend/internal/numbering"
	"github.com/vereinskasse/vereinskasse-backend/internal/periodlock"
	"github.com/vereinskasse/vereinskasse-backend/internal/references"
	"github.com/vereinskasse/vereinskasse-backend/internal/settings"
	"github.com/vereinskasse/vereinskasse-backend/pkg/config"
	"github.com/vereinskasse/vereinskasse-backend/pkg/db"
	pkgerrors "github.com/vereinskasse/vereinskasse-backend/pkg/errors"
	"github.com/vereinskasse/vereinskasse-backend/pkg/logger"
	"github.com/vereinskasse/vereinskasse-backend/pkg/metrics"
	"github.com/vereinskasse/vereinskasse-backend/pkg/storage/local"
	"github.com/vereinskasse/vereinskasse-backend/pkg/types"
)

const (
	opCreate   = "create"
	opUpdate   = "update"
	opDelete   = "delete"
	opReverse  = "reverse"
	opClearAll = "clear_all"
	opAttach   = "attach"
)

// BlobStore keeps attachment bytes outside the database.
type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader) (*local.Object, error)
	Delete(ctx context.Context, key string) error
}

// Deps wires a Service.
type Deps struct {
	DB      *db.Client
	Audit   *audit.Log
	Lock    *periodlock.Service
	Blobs   BlobStore
	Logger  *logger.Logger
	Metrics *metrics.LedgerMetrics
	Config  config.LedgerConfig
	Clock   func() time.Time
}

// Service is the voucher ledger. Every mutation runs in one transaction and
// mutations are serialized by a process-wide lock.
type Service struct {
	mu sync.Mutex

	db       *db.Client
	audit    *audit.Log
	lock     *periodlock.Service
	blobs    BlobStore
	logg     *logger.Logger
	metrics  *metrics.LedgerMetrics
	cfg      config.LedgerConfig
	now      func() time.Time
	numbers  *numbering.Service
	queries  *balances.Queries
	refs     *references.Repository
	settings *settings.Store
}

func NewService(deps Deps) (*Service, error) {
	if deps.DB == nil {
		return nil, fmt.Errorf("db client required")
	}
	if deps.Audit == nil {
		return nil, fmt.Errorf("audit log required")
	}
	if deps.Lock == nil {
		return nil, fmt.Errorf("period lock service required")
	}
	if deps.Blobs == nil {
		return nil, fmt.Errorf("blob store required")
	}
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Config.NumberAttempts <= 0 {
		deps.Config.NumberAttempts = 5
	}
	if deps.Config.ReversalPrefix == "" {
		deps.Config.ReversalPrefix = "Storno"
	}

	conn := deps.DB.DB()
	return &Service{
		db:       deps.DB,
		audit:    deps.Audit,
		lock:     deps.Lock,
		blobs:    deps.Blobs,
		logg:     deps.Logger,
		metrics:  deps.Metrics,
		cfg:      deps.Config,
		now:      deps.Clock,
		numbers:  numbering.New(conn),
		queries:  balances.NewQueries(conn),
		refs:     references.NewRepository(conn),
		settings: settings.NewStore(conn),
	}, nil
}

func (s *Service) today() types.Date {
	return types.DateOf(s.now())
}

// mutate runs fn in one transaction under the write lock and records the outcome.
func (s *Service) mutate(ctx context.Context, op string, fn func(ctx context.Context, tx *gorm.DB) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx = s.logg.WithOperation(ctx, op)
	start := time.Now()
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		return fn(ctx, tx)
	})
	s.metrics.ObserveDuration(op, time.Since(start))
	if err == nil {
		s.metrics.IncSuccess(op)
		return nil
	}

	typed := pkgerrors.As(err)
	if typed == nil {
		typed = pkgerrors.Wrap(pkgerrors.CodeInternal, err, op+" voucher")
		err = typed
	}
	s.metrics.IncFailure(op, string(typed.Code()))
	switch typed.Code() {
	case pkgerrors.CodeInternal, pkgerrors.CodeDependency:
		s.logg.Error(ctx, "ledger operation failed", err)
	default:
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "ledger operation rejected")
	}
	return err
}

func (s *Service) warn(ctx context.Context, warnings *[]string, kind, msg string) {
	*warnings = append(*warnings, msg)
	s.metrics.IncWarning(kind)
	s.logg.Info(s.logg.WithField(ctx, "warning", msg), "ledger warning")
}
