package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/vereinskasse/vereinskasse-backend/pkg/enums"
	"github.com/vereinskasse/vereinskasse-backend/pkg/types"
)

// Voucher is one booked transaction. EarmarkID/EarmarkAmount and
// BudgetID/BudgetAmount mirror the first row of the matching junction table.
type Voucher struct {
	ID            int64                `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Year          int                  `gorm:"column:year;not null" json:"year"`
	SeqNo         int64                `gorm:"column:seq_no;not null" json:"seqNo"`
	VoucherNo     string               `gorm:"column:voucher_no;not null" json:"voucherNo"`
	Date          types.Date           `gorm:"column:date;type:text;not null" json:"date"`
	Type          enums.VoucherType    `gorm:"column:type;not null" json:"type"`
	Sphere        enums.Sphere         `gorm:"column:sphere;not null" json:"sphere"`
	CategoryID    *int64               `gorm:"column:category_id" json:"categoryId"`
	EarmarkID     *int64               `gorm:"column:earmark_id" json:"earmarkId"`
	EarmarkAmount *decimal.Decimal     `gorm:"column:earmark_amount;type:real" json:"earmarkAmount"`
	BudgetID      *int64               `gorm:"column:budget_id" json:"budgetId"`
	BudgetAmount  *decimal.Decimal     `gorm:"column:budget_amount;type:real" json:"budgetAmount"`
	Description   *string              `gorm:"column:description" json:"description"`
	NetAmount     decimal.Decimal      `gorm:"column:net_amount;type:real;not null" json:"netAmount"`
	VatRate       decimal.Decimal      `gorm:"column:vat_rate;type:real;not null" json:"vatRate"`
	VatAmount     decimal.Decimal      `gorm:"column:vat_amount;type:real;not null" json:"vatAmount"`
	GrossAmount   decimal.Decimal      `gorm:"column:gross_amount;type:real;not null" json:"grossAmount"`
	PaymentMethod *enums.PaymentMethod `gorm:"column:payment_method" json:"paymentMethod"`
	TransferFrom  *enums.PaymentMethod `gorm:"column:transfer_from" json:"transferFrom"`
	TransferTo    *enums.PaymentMethod `gorm:"column:transfer_to" json:"transferTo"`
	Counterparty  *string              `gorm:"column:counterparty" json:"counterparty"`
	CreatedBy     *int64               `gorm:"column:created_by" json:"createdBy"`
	CreatedAt     time.Time            `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt     *time.Time           `gorm:"column:updated_at;autoUpdateTime:false" json:"updatedAt"`
	ReversedByID  *int64               `gorm:"column:reversed_by_id" json:"reversedById"`
	OriginalID    *int64               `gorm:"column:original_id" json:"originalId"`
}

func (Voucher) TableName() string { return "vouchers" }

// VoucherBudget allocates part of a voucher to a budget.
type VoucherBudget struct {
	ID        int64           `gorm:"column:id;primaryKey;autoIncrement" json:"-"`
	VoucherID int64           `gorm:"column:voucher_id;not null" json:"voucherId"`
	BudgetID  int64           `gorm:"column:budget_id;not null" json:"budgetId"`
	Amount    decimal.Decimal `gorm:"column:amount;type:real;not null" json:"amount"`
}

func (VoucherBudget) TableName() string { return "voucher_budgets" }

// VoucherEarmark allocates part of a voucher to an earmark.
type VoucherEarmark struct {
	ID        int64           `gorm:"column:id;primaryKey;autoIncrement" json:"-"`
	VoucherID int64           `gorm:"column:voucher_id;not null" json:"voucherId"`
	EarmarkID int64           `gorm:"column:earmark_id;not null" json:"earmarkId"`
	Amount    decimal.Decimal `gorm:"column:amount;type:real;not null" json:"amount"`
}

func (VoucherEarmark) TableName() string { return "voucher_earmarks" }
