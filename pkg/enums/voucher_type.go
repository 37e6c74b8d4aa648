package enums

import (
	"fmt"
	"strings"
)

// VoucherType classifies the direction of a voucher.
type VoucherType string

const (
	VoucherTypeIn       VoucherType = "IN"
	VoucherTypeOut      VoucherType = "OUT"
	VoucherTypeTransfer VoucherType = "TRANSFER"
)

var validVoucherTypes = []VoucherType{
	VoucherTypeIn,
	VoucherTypeOut,
	VoucherTypeTransfer,
}

// String implements fmt.Stringer.
func (t VoucherType) String() string {
	return string(t)
}

// IsValid reports whether the value is a known VoucherType.
func (t VoucherType) IsValid() bool {
	for _, candidate := range validVoucherTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// Inverted returns the counter type used for reversals. TRANSFER stays TRANSFER.
func (t VoucherType) Inverted() VoucherType {
	switch t {
	case VoucherTypeIn:
		return VoucherTypeOut
	case VoucherTypeOut:
		return VoucherTypeIn
	default:
		return t
	}
}

// ParseVoucherType converts raw input into a VoucherType.
func ParseVoucherType(value string) (VoucherType, error) {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	for _, candidate := range validVoucherTypes {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid voucher type %q", value)
}
