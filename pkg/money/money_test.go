package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestFromNet(t *testing.T) {
	tests := []struct {
		net, rate, vat, gross string
	}{
		{"100", "19", "19", "119"},
		{"10.01", "7", "0.70", "10.71"},
		{"33.33", "19", "6.33", "39.66"},
		{"0.05", "19", "0.01", "0.06"},
		{"-50", "19", "-9.50", "-59.50"},
		{"12.5", "0", "0", "12.5"},
	}
	for _, tt := range tests {
		got := FromNet(dec(tt.net), dec(tt.rate))
		assert.True(t, got.Vat.Equal(dec(tt.vat)), "net %s rate %s: vat %s", tt.net, tt.rate, got.Vat)
		assert.True(t, got.Gross.Equal(dec(tt.gross)), "net %s rate %s: gross %s", tt.net, tt.rate, got.Gross)
		assert.True(t, got.Gross.Equal(Round2(got.Net.Add(got.Vat))))
	}
}

func TestFromGrossLeavesNetAndVatZero(t *testing.T) {
	got := FromGross(dec("119.999"), dec("19"))
	assert.True(t, got.Net.IsZero())
	assert.True(t, got.Vat.IsZero())
	assert.True(t, got.Gross.Equal(dec("120")))
}

func TestNegate(t *testing.T) {
	got := FromNet(dec("100"), dec("19")).Negate()
	assert.True(t, got.Gross.Equal(dec("-119")))
	assert.True(t, got.Net.Equal(dec("-100")))
	assert.True(t, got.Rate.Equal(dec("19")))
}

func TestParseAmount(t *testing.T) {
	tests := []struct{ raw, want string }{
		{raw: "1234.5", want: "1234.5"},
		{raw: "1.234,50", want: "1234.50"},
		{raw: "12,3 €", want: "12.3"},
		{raw: " -7.00 ", want: "-7"},
	}
	for _, tt := range tests {
		got, err := ParseAmount(tt.raw)
		require.NoError(t, err, tt.raw)
		assert.True(t, got.Equal(dec(tt.want)), "%q parsed as %s", tt.raw, got)
	}
	_, err := ParseAmount("zwölf")
	assert.Error(t, err)
}

func TestFormat(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "1234.5", want: "1.234,50 €"},
		{in: "0", want: "0,00 €"},
		{in: "0.5", want: "0,50 €"},
		{in: "-100", want: "-100,00 €"},
		{in: "1234567.891", want: "1.234.567,89 €"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Format(dec(tt.in)), tt.in)
	}
}

func TestFormatRoundTripsThroughParseAmount(t *testing.T) {
	got, err := ParseAmount(Format(dec("-1234.56")))
	require.NoError(t, err)
	assert.True(t, got.Equal(dec("-1234.56")), "got %s", got)
}
