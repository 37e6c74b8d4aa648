package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vereinskasse/vereinskasse-backend/pkg/enums"
)

func TestParseID(t *testing.T) {
	id, err := parseID("42")
	require.NoError(t, err)
	assert.EqualValues(t, 42, id)

	for _, raw := range []string{"0", "-1", "abc", ""} {
		_, err := parseID(raw)
		assert.Error(t, err, raw)
	}
}

func TestFilterFromFlags(t *testing.T) {
	flags := voucherListCmd.Flags()
	require.NoError(t, flags.Set("from", "2025-01-01"))
	require.NoError(t, flags.Set("to", "2025-03-31"))
	require.NoError(t, flags.Set("sphere", "WGB"))
	require.NoError(t, flags.Set("earmark", "7"))
	require.NoError(t, flags.Set("payment", "cash"))
	t.Cleanup(func() {
		for _, name := range []string{"from", "to", "sphere", "payment"} {
			_ = flags.Set(name, "")
		}
		_ = flags.Set("earmark", "0")
	})

	f, err := filterFromFlags(voucherListCmd)
	require.NoError(t, err)
	assert.Equal(t, "2025-01-01", f.From.String())
	assert.Equal(t, "2025-03-31", f.To.String())
	assert.Equal(t, enums.SphereWGB, f.Sphere)
	assert.Equal(t, enums.PaymentMethodCash, f.PaymentMethod)
	require.NotNil(t, f.EarmarkID)
	assert.EqualValues(t, 7, *f.EarmarkID)
	assert.Nil(t, f.BudgetID)
	assert.NoError(t, f.Validate())
}

func TestFilterFromFlagsRejectsBadDate(t *testing.T) {
	flags := voucherSummaryCmd.Flags()
	require.NoError(t, flags.Set("from", "01.01.2025"))
	t.Cleanup(func() { _ = flags.Set("from", "") })

	_, err := filterFromFlags(voucherSummaryCmd)
	assert.Error(t, err)
}

func TestReadAttachment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rechnung.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4"), 0o600))

	att, err := readAttachment(path)
	require.NoError(t, err)
	assert.Equal(t, "rechnung.pdf", att.FileName)
	assert.Equal(t, "application/pdf", att.MimeType)
	assert.Equal(t, []byte("%PDF-1.4"), att.Data)

	_, err = readAttachment(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}
