package enums

import (
	"fmt"
	"strings"
)

// PaymentMethod describes the account a voucher settles against.
type PaymentMethod string

const (
	PaymentMethodCash PaymentMethod = "BAR"
	PaymentMethodBank PaymentMethod = "BANK"
)

var validPaymentMethods = []PaymentMethod{
	PaymentMethodCash,
	PaymentMethodBank,
}

// String implements fmt.Stringer.
func (p PaymentMethod) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentMethod.
func (p PaymentMethod) IsValid() bool {
	for _, candidate := range validPaymentMethods {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePaymentMethod converts raw input into a PaymentMethod, case-insensitively.
// "CASH" is accepted as an alias of BAR, which is the stored value.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	if normalized == "CASH" {
		return PaymentMethodCash, nil
	}
	for _, candidate := range validPaymentMethods {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment method %q", value)
}
