package matrix

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/brokerdesk/coverage-cli/internal/model"
)

func TestWriteXLSX(t *testing.T) {
	catalog := testCatalog(t)
	premium := 1450.0

	records := []model.StoredOfferRecord{
		{
			ID: "r1",
			OfferRecord: model.OfferRecord{
				VendorName:   "ACME",
				Coverage:     map[string]any{"fire": true, "theft": false, "exclusions": []any{"war", "nuclear"}},
				PremiumTotal: &premium,
				Period:       "12 months",
			},
		},
		{
			ID: "r2",
			OfferRecord: model.OfferRecord{
				VendorName: "Allianz",
				Coverage:   map[string]any{"fire": true},
			},
		},
	}

	m := Build(catalog, records)
	path := filepath.Join(t.TempDir(), "comparison.xlsx")

	require.NoError(t, WriteXLSX(m, path))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	require.Len(t, f.Sheets, 1)
	sheet := f.Sheets[0]
	assert.Equal(t, "Comparison", sheet.Name)

	header := sheet.Rows[0]
	require.True(t, len(header.Cells) >= 3)
	assert.Equal(t, "ACME", header.Cells[1].String())
	assert.Equal(t, "Allianz", header.Cells[2].String())

	cells := map[string][]string{}
	for _, row := range sheet.Rows[1:] {
		if len(row.Cells) == 0 {
			continue
		}
		vals := make([]string, 0, len(row.Cells)-1)
		for _, c := range row.Cells[1:] {
			vals = append(vals, c.String())
		}
		cells[row.Cells[0].String()] = vals
	}

	fire := catalog.ByCode("fire")
	require.NotNil(t, fire)
	assert.Equal(t, []string{"yes", "yes"}, cells[fire.Label])

	theft := catalog.ByCode("theft")
	require.NotNil(t, theft)
	assert.Equal(t, []string{"no", "—"}, cells[theft.Label])

	excl := catalog.ByCode("exclusions")
	require.NotNil(t, excl)
	assert.Equal(t, []string{"war, nuclear", "—"}, cells[excl.Label])

	prem := catalog.ByCode(model.CodePremiumTotal)
	require.NotNil(t, prem)
	assert.Equal(t, []string{"1450.00", "—"}, cells[prem.Label])
}

func TestWriteXLSX_GroupHeaders(t *testing.T) {
	catalog := testCatalog(t)
	m := Build(catalog, []model.StoredOfferRecord{record("r1", "ACME", nil)})
	path := filepath.Join(t.TempDir(), "grouped.xlsx")

	require.NoError(t, WriteXLSX(m, path))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	sheet := f.Sheets[0]

	groups := map[string]bool{}
	for _, row := range sheet.Rows {
		if len(row.Cells) == 1 {
			groups[row.Cells[0].String()] = true
		}
	}

	seen := map[string]bool{}
	for _, row := range catalog.Rows() {
		seen[row.Group] = true
	}
	for g := range seen {
		assert.True(t, groups[strings.ToUpper(g)], "missing group header %q", g)
	}
}
