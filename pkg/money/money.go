package money

import (
	"strings"

	gomoney "github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Currency is the single currency the ledger books in.
const Currency = gomoney.EUR

// display renders cents the German way: "1.234,50 €".
var display = gomoney.NewFormatter(2, ",", ".", gomoney.GetCurrency(Currency).Grapheme, "1 $")

var hundred = decimal.NewFromInt(100)

// Round2 rounds half away from zero to cents.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Amounts holds the derived financial fields of a voucher.
type Amounts struct {
	Net   decimal.Decimal
	Rate  decimal.Decimal
	Vat   decimal.Decimal
	Gross decimal.Decimal
}

// FromNet derives vat and gross from a net amount:
// vat = round2(net*rate/100), gross = round2(net+vat).
func FromNet(net, rate decimal.Decimal) Amounts {
	vat := Round2(net.Mul(rate).Div(hundred))
	return Amounts{
		Net:   Round2(net),
		Rate:  rate,
		Vat:   vat,
		Gross: Round2(net.Add(vat)),
	}
}

// FromGross keeps the gross amount and leaves net and vat at zero. There is
// no back-calculation from gross.
func FromGross(gross, rate decimal.Decimal) Amounts {
	return Amounts{
		Net:   decimal.Zero,
		Rate:  rate,
		Vat:   decimal.Zero,
		Gross: Round2(gross),
	}
}

// Negate flips the sign of every monetary field; the rate is kept.
func (a Amounts) Negate() Amounts {
	return Amounts{
		Net:   a.Net.Neg(),
		Rate:  a.Rate,
		Vat:   a.Vat.Neg(),
		Gross: a.Gross.Neg(),
	}
}

// Format renders d with German grouping and decimal separators ("1.234,50 €").
func Format(d decimal.Decimal) string {
	return display.Format(Round2(d).Shift(2).IntPart())
}

// ParseAmount accepts "1234.5" as well as German "1.234,50".
func ParseAmount(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimSuffix(s, "€")
	s = strings.TrimSpace(s)
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}
	return decimal.NewFromString(s)
}
