package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/vereinskasse/vereinskasse-backend/pkg/enums"
	"github.com/vereinskasse/vereinskasse-backend/pkg/types"
)

// Earmark is a purpose-restricted fund. Budget is an optional ceiling.
type Earmark struct {
	ID               int64            `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Code             string           `gorm:"column:code;not null" json:"code"`
	Name             string           `gorm:"column:name;not null" json:"name"`
	Budget           *decimal.Decimal `gorm:"column:budget;type:real" json:"budget"`
	IsActive         bool             `gorm:"column:is_active;not null" json:"isActive"`
	StartDate        types.Date       `gorm:"column:start_date;type:text" json:"startDate"`
	EndDate          types.Date       `gorm:"column:end_date;type:text" json:"endDate"`
	EnforceTimeRange bool             `gorm:"column:enforce_time_range;not null" json:"enforceTimeRange"`
	CreatedAt        time.Time        `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
}

func (Earmark) TableName() string { return "earmarks" }

// Budget is a planned spending envelope for year x sphere x (category|project|earmark).
type Budget struct {
	ID               int64           `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Year             int             `gorm:"column:year;not null" json:"year"`
	Sphere           enums.Sphere    `gorm:"column:sphere;not null" json:"sphere"`
	CategoryID       *int64          `gorm:"column:category_id" json:"categoryId"`
	ProjectID        *int64          `gorm:"column:project_id" json:"projectId"`
	EarmarkID        *int64          `gorm:"column:earmark_id" json:"earmarkId"`
	Name             *string         `gorm:"column:name" json:"name"`
	AmountPlanned    decimal.Decimal `gorm:"column:amount_planned;type:real;not null" json:"amountPlanned"`
	StartDate        types.Date      `gorm:"column:start_date;type:text" json:"startDate"`
	EndDate          types.Date      `gorm:"column:end_date;type:text" json:"endDate"`
	EnforceTimeRange bool            `gorm:"column:enforce_time_range;not null" json:"enforceTimeRange"`
	CreatedAt        time.Time       `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
}

func (Budget) TableName() string { return "budgets" }

type Tag struct {
	ID    int64   `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Name  string  `gorm:"column:name;not null" json:"name"`
	Color *string `gorm:"column:color" json:"color"`
}

func (Tag) TableName() string { return "tags" }

type VoucherTag struct {
	VoucherID int64 `gorm:"column:voucher_id;primaryKey"`
	TagID     int64 `gorm:"column:tag_id;primaryKey"`
}

func (VoucherTag) TableName() string { return "voucher_tags" }

// CashAdvance is owned by the cash advance module. The ledger only reads
// PlaceholderVoucherID to refuse edits on placeholder vouchers.
type CashAdvance struct {
	ID                   int64           `gorm:"column:id;primaryKey;autoIncrement"`
	OrderNo              string          `gorm:"column:order_no;not null"`
	EmployeeName         string          `gorm:"column:employee_name;not null"`
	Amount               decimal.Decimal `gorm:"column:amount;type:real;not null"`
	Status               string          `gorm:"column:status;not null;default:OPEN"`
	PlaceholderVoucherID *int64          `gorm:"column:placeholder_voucher_id"`
	CreatedAt            time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (CashAdvance) TableName() string { return "cash_advances" }
