package periodlock

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/vereinskasse/vereinskasse-backend/internal/audit"
	"github.com/vereinskasse/vereinskasse-backend/internal/settings"
	"github.com/vereinskasse/vereinskasse-backend/pkg/enums"
	pkgerrors "github.com/vereinskasse/vereinskasse-backend/pkg/errors"
	"github.com/vereinskasse/vereinskasse-backend/pkg/logger"
	"github.com/vereinskasse/vereinskasse-backend/pkg/types"
)

// State is the cumulative lock barrier. A zero ClosedUntil means fully open.
type State struct {
	ClosedUntil types.Date `json:"closedUntil"`
}

func (s State) IsOpen() bool {
	return s.ClosedUntil.IsZero()
}

// Covers reports whether d is at or before the barrier.
func (s State) Covers(d types.Date) bool {
	return !s.IsOpen() && !d.After(s.ClosedUntil)
}

// stored is the settings representation. Years is the legacy per-year form.
type stored struct {
	ClosedUntil *types.Date `json:"closedUntil"`
	Years       []int       `json:"years,omitempty"`
}

// Assert fails with PERIOD_LOCKED when d falls at or before the barrier.
func Assert(state State, d types.Date, op string) error {
	if !state.Covers(d) {
		return nil
	}
	return pkgerrors.Newf(pkgerrors.CodePeriodLocked,
		"period closed until %s: cannot %s voucher dated %s", state.ClosedUntil, op, d).
		WithDetails(map[string]any{
			"date":        d.String(),
			"closedUntil": state.ClosedUntil.String(),
			"op":          op,
		})
}

// Service reads and moves the lock barrier. It is loaded fresh on every call.
type Service struct {
	db    *gorm.DB
	audit *audit.Log
	logg  *logger.Logger
}

func NewService(db *gorm.DB, auditLog *audit.Log, logg *logger.Logger) (*Service, error) {
	if db == nil {
		return nil, fmt.Errorf("database required")
	}
	if auditLog == nil {
		return nil, fmt.Errorf("audit log required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{db: db, audit: auditLog, logg: logg}, nil
}

func (s *Service) WithTx(tx *gorm.DB) *Service {
	if tx == nil {
		return s
	}
	clone := *s
	clone.db = tx
	return &clone
}

// Load returns the current barrier. A legacy {"years":[...]} value is
// converted to December 31st of the latest year and written back.
func (s *Service) Load(ctx context.Context) (State, error) {
	store := settings.NewStore(s.db)
	var raw stored
	found, err := store.Get(ctx, settings.KeyPeriodLock, &raw)
	if err != nil {
		return State{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load period lock")
	}
	if !found {
		return State{}, nil
	}
	if raw.ClosedUntil != nil && !raw.ClosedUntil.IsZero() {
		return State{ClosedUntil: *raw.ClosedUntil}, nil
	}
	if len(raw.Years) == 0 {
		return State{}, nil
	}

	latest := raw.Years[0]
	for _, y := range raw.Years[1:] {
		latest = max(latest, y)
	}
	state := State{ClosedUntil: types.EndOfYear(latest)}
	if err := s.save(ctx, store, state); err != nil {
		return State{}, err
	}
	s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
		"years":        raw.Years,
		"closed_until": state.ClosedUntil.String(),
	}), "migrated legacy period lock")
	return state, nil
}

// CloseUntil moves the barrier forward to until (Jahresabschluss).
func (s *Service) CloseUntil(ctx context.Context, until types.Date, actorID *int64) (State, error) {
	if until.IsZero() {
		return State{}, pkgerrors.New(pkgerrors.CodeValidation, "closing date is required")
	}
	var next State
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		svc := s.WithTx(tx)
		current, err := svc.Load(ctx)
		if err != nil {
			return err
		}
		if !current.IsOpen() && !until.After(current.ClosedUntil) {
			return pkgerrors.Newf(pkgerrors.CodeValidation,
				"period is already closed until %s; use reopen to move the barrier back", current.ClosedUntil)
		}
		next = State{ClosedUntil: until}
		if err := svc.save(ctx, settings.NewStore(tx), next); err != nil {
			return err
		}
		svc.audit.WithTx(tx).Record(ctx, audit.Entry{
			ActorID: actorID,
			Entity:  enums.AuditEntityPeriodLock,
			Action:  enums.AuditActionClose,
			Diff:    map[string]any{"before": current, "after": next},
		})
		return nil
	})
	if err != nil {
		return State{}, err
	}
	s.logg.Info(s.logg.WithActorID(s.logg.WithField(ctx, "closed_until", until.String()), actorID), "period closed")
	return next, nil
}

// Reopen moves the barrier back to until, or opens every period when until is nil.
func (s *Service) Reopen(ctx context.Context, until *types.Date, actorID *int64) (State, error) {
	var next State
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		svc := s.WithTx(tx)
		current, err := svc.Load(ctx)
		if err != nil {
			return err
		}
		if current.IsOpen() {
			return pkgerrors.New(pkgerrors.CodeValidation, "no period is closed")
		}
		if until != nil && !until.IsZero() {
			if !until.Before(current.ClosedUntil) {
				return pkgerrors.Newf(pkgerrors.CodeValidation,
					"reopen date %s must be before the current barrier %s", *until, current.ClosedUntil)
			}
			next = State{ClosedUntil: *until}
		}
		if err := svc.save(ctx, settings.NewStore(tx), next); err != nil {
			return err
		}
		svc.audit.WithTx(tx).Record(ctx, audit.Entry{
			ActorID: actorID,
			Entity:  enums.AuditEntityPeriodLock,
			Action:  enums.AuditActionReopen,
			Diff:    map[string]any{"before": current, "after": next},
		})
		return nil
	})
	if err != nil {
		return State{}, err
	}
	s.logg.Info(s.logg.WithActorID(ctx, actorID), "period reopened")
	return next, nil
}

func (s *Service) save(ctx context.Context, store *settings.Store, state State) error {
	value := stored{}
	if !state.IsOpen() {
		d := state.ClosedUntil
		value.ClosedUntil = &d
	}
	if err := store.Set(ctx, settings.KeyPeriodLock, value); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save period lock")
	}
	return nil
}
