package model

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRowCatalog(t *testing.T) {
	catalog, err := DefaultRowCatalog()
	require.NoError(t, err)

	rows := catalog.Rows()
	require.NotEmpty(t, rows)

	// Financial rows come from the offer's side-channel fields and must
	// all be present in the embedded catalogue.
	for _, code := range []string{CodePremiumTotal, CodeInsuredAmount, CodePeriod} {
		row := catalog.ByCode(code)
		require.NotNil(t, row, "missing row %s", code)
		assert.True(t, row.IsFinancial())
	}

	// Coverage rows keep catalogue order and exclude the financial rows.
	codes := catalog.CoverageCodes()
	assert.NotEmpty(t, codes)
	for _, code := range codes {
		row := catalog.ByCode(code)
		require.NotNil(t, row)
		assert.False(t, row.IsFinancial())
	}

	assert.Len(t, codes, len(rows)-3)
}

func TestDefaultRowCatalog_Order(t *testing.T) {
	catalog, err := DefaultRowCatalog()
	require.NoError(t, err)

	rows := catalog.Rows()
	assert.Equal(t, "fire", rows[0].Code)

	// Financials close the catalogue.
	last := rows[len(rows)-1]
	assert.Equal(t, CodePeriod, last.Code)
}

func TestNewRowCatalog_DuplicateCode(t *testing.T) {
	_, err := NewRowCatalog([]ComparisonRow{
		{Code: "fire", Label: "Fire", Group: "coverage", Type: RowTypeFlag},
		{Code: "fire", Label: "Fire again", Group: "coverage", Type: RowTypeFlag},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate row code")
}

func TestNewRowCatalog_ReservedSeparator(t *testing.T) {
	_, err := NewRowCatalog([]ComparisonRow{
		{Code: "fire::ext", Label: "Fire", Group: "coverage", Type: RowTypeFlag},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reserved separator")
}

func TestNewRowCatalog_Invalid(t *testing.T) {
	for name, rows := range map[string][]ComparisonRow{
		"empty":        nil,
		"empty code":   {{Code: "", Label: "X", Type: RowTypeFlag}},
		"unknown type": {{Code: "fire", Label: "Fire", Type: RowType("boolean")}},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := NewRowCatalog(rows)
			assert.Error(t, err)
		})
	}
}

func TestLoadRowCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rows.yaml")
	data := []byte(`rows:
  - code: cyber
    label: Cyber
    group: coverage
    type: flag
  - code: premium_total
    label: Premium
    group: financials
    type: currency
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	catalog, err := LoadRowCatalog(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"cyber"}, catalog.CoverageCodes())
	assert.Nil(t, catalog.ByCode("fire"))
}

func TestLoadRowCatalog_Missing(t *testing.T) {
	_, err := LoadRowCatalog(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
