package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vereinskasse/vereinskasse-backend/pkg/db/models"
)

const (
	KeyPeriodLock            = "period_lock"
	KeyAllowNegativeEarmarks = "earmarks.allow_negative"
)

// Store is a key to JSON value store.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// WithTx binds the store to tx so reads and writes join the caller's transaction.
func (s *Store) WithTx(tx *gorm.DB) *Store {
	if tx == nil {
		return s
	}
	return &Store{db: tx}
}

// Get decodes the value stored under key into dest. It reports false when the
// key is absent.
func (s *Store) Get(ctx context.Context, key string, dest any) (bool, error) {
	var row models.Setting
	err := s.db.WithContext(ctx).Where("key = ?", key).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read setting %s: %w", key, err)
	}
	if dest == nil {
		return true, nil
	}
	if err := json.Unmarshal([]byte(row.ValueJSON), dest); err != nil {
		return true, fmt.Errorf("decode setting %s: %w", key, err)
	}
	return true, nil
}

// Set upserts value under key.
func (s *Store) Set(ctx context.Context, key string, value any) error {
	if strings.TrimSpace(key) == "" {
		return errors.New("setting key is required")
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode setting %s: %w", key, err)
	}
	row := models.Setting{Key: key, ValueJSON: string(raw), UpdatedAt: time.Now().UTC()}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value_json", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("write setting %s: %w", key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.db.WithContext(ctx).Where("key = ?", key).Delete(&models.Setting{}).Error; err != nil {
		return fmt.Errorf("delete setting %s: %w", key, err)
	}
	return nil
}

// List returns every setting ordered by key.
func (s *Store) List(ctx context.Context) ([]models.Setting, error) {
	var rows []models.Setting
	if err := s.db.WithContext(ctx).Order("key ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	return rows, nil
}

// Bool reads a boolean flag, returning fallback when the key is absent.
func (s *Store) Bool(ctx context.Context, key string, fallback bool) (bool, error) {
	var v bool
	found, err := s.Get(ctx, key, &v)
	if err != nil {
		return fallback, err
	}
	if !found {
		return fallback, nil
	}
	return v, nil
}
