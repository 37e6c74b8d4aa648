package audit

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"gorm.io/gorm"

	"github.com/vereinskasse/vereinskasse-backend/pkg/db/models"
	"github.com/vereinskasse/vereinskasse-backend/pkg/enums"
	pkgerrors "github.com/vereinskasse/vereinskasse-backend/pkg/errors"
	"github.com/vereinskasse/vereinskasse-backend/pkg/logger"
	"github.com/vereinskasse/vereinskasse-backend/pkg/metrics"
)

// TimestampLayout is the ISO-8601 UTC form that is stored and hashed.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// Entry is one mutation to record. Diff is serialized with sorted keys.
type Entry struct {
	ActorID  *int64
	Entity   enums.AuditEntity
	EntityID int64
	Action   enums.AuditAction
	Diff     any
}

type Options struct {
	Logger  *logger.Logger
	Metrics *metrics.LedgerMetrics
	Clock   func() time.Time
}

// Log writes and reads the append-only audit trail.
type Log struct {
	db      *gorm.DB
	logg    *logger.Logger
	metrics *metrics.LedgerMetrics
	now     func() time.Time
}

func New(db *gorm.DB, opts Options) *Log {
	l := &Log{db: db, logg: opts.Logger, metrics: opts.Metrics, now: opts.Clock}
	if l.logg == nil {
		l.logg = logger.Nop()
	}
	if l.now == nil {
		l.now = time.Now
	}
	return l
}

// WithTx binds the log to the caller's transaction.
func (l *Log) WithTx(tx *gorm.DB) *Log {
	if tx == nil {
		return l
	}
	clone := *l
	clone.db = tx
	return &clone
}

// Write inserts one entry and returns the stored row.
func (l *Log) Write(ctx context.Context, e Entry) (*models.AuditLog, error) {
	if !e.Action.IsValid() {
		return nil, fmt.Errorf("invalid audit action %q", e.Action)
	}
	if e.Entity == "" {
		return nil, errors.New("audit entity is required")
	}
	diffJSON, err := Canonicalize(e.Diff)
	if err != nil {
		return nil, err
	}
	ts := l.now().UTC().Format(TimestampLayout)
	row := &models.AuditLog{
		ActorUserID: e.ActorID,
		Entity:      e.Entity,
		EntityID:    e.EntityID,
		Action:      e.Action,
		DiffJSON:    diffJSON,
		Hash:        Hash(diffJSON, ts, e.ActorID),
		CreatedAt:   ts,
	}
	if err := l.db.WithContext(ctx).Create(row).Error; err != nil {
		return nil, fmt.Errorf("insert audit entry: %w", err)
	}
	return row, nil
}

// Record writes e inside a savepoint of the bound transaction. A failed write
// is rolled back to the savepoint, logged and counted; it never fails the
// surrounding mutation. The stored row is nil in that case.
func (l *Log) Record(ctx context.Context, e Entry) *models.AuditLog {
	var row *models.AuditLog
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		written, err := l.WithTx(tx).Write(ctx, e)
		if err != nil {
			return err
		}
		row = written
		return nil
	})
	if err != nil {
		l.metrics.IncAuditFailure()
		l.logg.Error(l.logg.WithFields(ctx, map[string]any{
			"entity":    string(e.Entity),
			"entity_id": e.EntityID,
			"action":    string(e.Action),
		}), "audit write failed", err)
		return nil
	}
	return row
}

// Canonicalize renders diff as JSON with object keys sorted at every level.
// Numbers keep their literal form.
func Canonicalize(diff any) (string, error) {
	if diff == nil {
		return "{}", nil
	}
	raw, err := json.Marshal(diff)
	if err != nil {
		return "", fmt.Errorf("encode audit diff: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return "", fmt.Errorf("normalize audit diff: %w", err)
	}
	out, err := json.Marshal(generic)
	if err != nil {
		return "", fmt.Errorf("encode audit diff: %w", err)
	}
	return string(out), nil
}

// Hash is hex(sha256(diffJSON + timestamp + actorID)); a nil actor hashes as "".
func Hash(diffJSON, timestamp string, actorID *int64) string {
	actor := ""
	if actorID != nil {
		actor = strconv.FormatInt(*actorID, 10)
	}
	sum := sha256.Sum256([]byte(diffJSON + timestamp + actor))
	return hex.EncodeToString(sum[:])
}

// Filter narrows List. Zero values do not filter.
type Filter struct {
	Entity   enums.AuditEntity
	EntityID *int64
	Action   enums.AuditAction
	Limit    int
}

// List returns entries newest first.
func (l *Log) List(ctx context.Context, f Filter) ([]models.AuditLog, error) {
	q := l.db.WithContext(ctx).Model(&models.AuditLog{})
	if f.Entity != "" {
		q = q.Where("entity = ?", f.Entity)
	}
	if f.EntityID != nil {
		q = q.Where("entity_id = ?", *f.EntityID)
	}
	if f.Action != "" {
		q = q.Where("action = ?", f.Action)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	var rows []models.AuditLog
	if err := q.Order("id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	return rows, nil
}

// Verify recomputes the hash of entry id and reports whether it still matches.
func (l *Log) Verify(ctx context.Context, id int64) (bool, error) {
	var row models.AuditLog
	err := l.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, pkgerrors.Newf(pkgerrors.CodeNotFound, "audit entry %d not found", id)
	}
	if err != nil {
		return false, fmt.Errorf("read audit entry %d: %w", id, err)
	}
	return Hash(row.DiffJSON, row.CreatedAt, row.ActorUserID) == row.Hash, nil
}
