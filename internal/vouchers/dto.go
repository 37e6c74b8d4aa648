package vouchers

import (
	"github.com/shopspring/decimal"

	"github.com/vereinskasse/vereinskasse-backend/pkg/db/models"
	"github.com/vereinskasse/vereinskasse-backend/pkg/enums"
	"github.com/vereinskasse/vereinskasse-backend/pkg/types"
)

// Allocation assigns part of a voucher to a budget or an earmark.
type Allocation struct {
	ID     int64           `json:"id" validate:"gt=0"`
	Amount decimal.Decimal `json:"amount"`
}

// Attachment is a file handed to the blob store with a voucher.
type Attachment struct {
	FileName string `json:"fileName" validate:"required,max=255"`
	MimeType string `json:"mimeType,omitempty"`
	Data     []byte `json:"-"`
}

// CreateVoucherInput describes a new voucher. Exactly one of NetAmount and
// GrossAmount must be set. Budgets/Earmarks (list form) take precedence over
// BudgetID/EarmarkID (single form).
type CreateVoucherInput struct {
	Date          types.Date           `json:"date"`
	Type          enums.VoucherType    `json:"type" validate:"required,oneof=IN OUT TRANSFER"`
	Sphere        enums.Sphere         `json:"sphere" validate:"required,oneof=IDEELL ZWECK VERMOEGEN WGB"`
	NetAmount     *decimal.Decimal     `json:"netAmount,omitempty"`
	VatRate       *decimal.Decimal     `json:"vatRate,omitempty"`
	GrossAmount   *decimal.Decimal     `json:"grossAmount,omitempty"`
	PaymentMethod *enums.PaymentMethod `json:"paymentMethod,omitempty" validate:"omitempty,oneof=BAR BANK"`
	TransferFrom  *enums.PaymentMethod `json:"transferFrom,omitempty" validate:"omitempty,oneof=BAR BANK"`
	TransferTo    *enums.PaymentMethod `json:"transferTo,omitempty" validate:"omitempty,oneof=BAR BANK"`
	CategoryID    *int64               `json:"categoryId,omitempty" validate:"omitempty,gt=0"`
	EarmarkID     *int64               `json:"earmarkId,omitempty" validate:"omitempty,gt=0"`
	EarmarkAmount *decimal.Decimal     `json:"earmarkAmount,omitempty"`
	BudgetID      *int64               `json:"budgetId,omitempty" validate:"omitempty,gt=0"`
	BudgetAmount  *decimal.Decimal     `json:"budgetAmount,omitempty"`
	Budgets       []Allocation         `json:"budgets,omitempty" validate:"omitempty,dive"`
	Earmarks      []Allocation         `json:"earmarks,omitempty" validate:"omitempty,dive"`
	Description   string               `json:"description,omitempty" validate:"max=2000"`
	Counterparty  string               `json:"counterparty,omitempty" validate:"max=500"`
	Tags          []string             `json:"tags,omitempty" validate:"omitempty,dive,max=100"`
	Files         []Attachment         `json:"files,omitempty" validate:"omitempty,dive"`
	ActorID       *int64               `json:"actorId,omitempty"`
}

type CreateResult struct {
	ID          int64           `json:"id"`
	VoucherNo   string          `json:"voucherNo"`
	GrossAmount decimal.Decimal `json:"grossAmount"`
	Warnings    []string        `json:"warnings"`
}

// UpdateVoucherInput changes an existing voucher. Nil pointers leave a field
// untouched. A nil Budgets/Earmarks/Tags slice leaves the set untouched; an
// empty non-nil slice clears it.
type UpdateVoucherInput struct {
	ID            int64                `json:"id" validate:"gt=0"`
	Date          *types.Date          `json:"date,omitempty"`
	Type          *enums.VoucherType   `json:"type,omitempty" validate:"omitempty,oneof=IN OUT TRANSFER"`
	Sphere        *enums.Sphere        `json:"sphere,omitempty" validate:"omitempty,oneof=IDEELL ZWECK VERMOEGEN WGB"`
	NetAmount     *decimal.Decimal     `json:"netAmount,omitempty"`
	VatRate       *decimal.Decimal     `json:"vatRate,omitempty"`
	GrossAmount   *decimal.Decimal     `json:"grossAmount,omitempty"`
	PaymentMethod *enums.PaymentMethod `json:"paymentMethod,omitempty" validate:"omitempty,oneof=BAR BANK"`
	TransferFrom  *enums.PaymentMethod `json:"transferFrom,omitempty" validate:"omitempty,oneof=BAR BANK"`
	TransferTo    *enums.PaymentMethod `json:"transferTo,omitempty" validate:"omitempty,oneof=BAR BANK"`
	CategoryID    types.NullableInt64  `json:"categoryId"`
	EarmarkID     types.NullableInt64  `json:"earmarkId"`
	EarmarkAmount *decimal.Decimal     `json:"earmarkAmount,omitempty"`
	BudgetID      types.NullableInt64  `json:"budgetId"`
	BudgetAmount  *decimal.Decimal     `json:"budgetAmount,omitempty"`
	Budgets       []Allocation         `json:"budgets,omitempty" validate:"omitempty,dive"`
	Earmarks      []Allocation         `json:"earmarks,omitempty" validate:"omitempty,dive"`
	Description   *string              `json:"description,omitempty" validate:"omitempty,max=2000"`
	Counterparty  *string              `json:"counterparty,omitempty" validate:"omitempty,max=500"`
	Tags          []string             `json:"tags,omitempty" validate:"omitempty,dive,max=100"`
	ActorID       *int64               `json:"actorId,omitempty"`
}

type UpdateResult struct {
	ID        int64    `json:"id"`
	VoucherNo string   `json:"voucherNo"`
	Warnings  []string `json:"warnings"`
}

type ReverseResult struct {
	ID         int64    `json:"id"`
	VoucherNo  string   `json:"voucherNo"`
	OriginalID int64    `json:"originalId"`
	Warnings   []string `json:"warnings"`
}

type ClearResult struct {
	Deleted int64 `json:"deleted"`
}

// VoucherView is a voucher with its resolved tags, allocations and files.
type VoucherView struct {
	models.Voucher
	Tags     []string                `json:"tags"`
	Budgets  []models.VoucherBudget  `json:"budgets"`
	Earmarks []models.VoucherEarmark `json:"earmarks"`
	Files    []models.VoucherFile    `json:"files"`
}
