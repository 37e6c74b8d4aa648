package models

import (
	"time"

	"github.com/vereinskasse/vereinskasse-backend/pkg/enums"
)

type Setting struct {
	Key       string    `gorm:"column:key;primaryKey"`
	ValueJSON string    `gorm:"column:value_json;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Setting) TableName() string { return "settings" }

// AuditLog rows are append-only; the table rejects UPDATE and DELETE.
// CreatedAt keeps the exact timestamp string that went into Hash.
type AuditLog struct {
	ID          int64             `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	ActorUserID *int64            `gorm:"column:actor_user_id" json:"actorUserId"`
	Entity      enums.AuditEntity `gorm:"column:entity;not null" json:"entity"`
	EntityID    int64             `gorm:"column:entity_id;not null" json:"entityId"`
	Action      enums.AuditAction `gorm:"column:action;not null" json:"action"`
	DiffJSON    string            `gorm:"column:diff_json;not null" json:"diff"`
	Hash        string            `gorm:"column:hash;not null" json:"hash"`
	CreatedAt   string            `gorm:"column:created_at;not null" json:"createdAt"`
}

func (AuditLog) TableName() string { return "audit_log" }

// VoucherSequence is the counter cache of the legacy year x sphere numbering mode.
type VoucherSequence struct {
	Year      int          `gorm:"column:year;primaryKey"`
	Sphere    enums.Sphere `gorm:"column:sphere;primaryKey"`
	LastSeqNo int64        `gorm:"column:last_seq_no;not null"`
}

func (VoucherSequence) TableName() string { return "voucher_sequences" }

type NumberSequence struct {
	Scope     string `gorm:"column:scope;primaryKey"`
	LastValue int64  `gorm:"column:last_value;not null"`
}

func (NumberSequence) TableName() string { return "number_sequences" }
