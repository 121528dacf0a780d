package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brokerdesk/coverage-cli/internal/model"
)

func testCatalog(t *testing.T) *model.RowCatalog {
	t.Helper()
	catalog, err := model.DefaultRowCatalog()
	require.NoError(t, err)
	return catalog
}

func TestValidateOffers_NoOffersCollection(t *testing.T) {
	catalog := testCatalog(t)

	cases := map[string]map[string]any{
		"missing key": {"something_else": true},
		"wrong type":  {"offers": "not a list"},
		"empty list":  {"offers": []any{}},
	}
	for name, parsed := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := ValidateOffers(parsed, catalog, "ACME", "offer.pdf")
			require.ErrorIs(t, err, ErrNoOffers)
		})
	}
}

func TestValidateOffers_Valid(t *testing.T) {
	catalog := testCatalog(t)

	parsed := map[string]any{
		"offers": []any{
			map[string]any{
				"structured": map[string]any{
					"vendor_name": "Allianz",
					"theft":       true,
					"fire":        false,
					"territory":   "Europe",
					"exclusions":  []any{"war", "nuclear"},
					"premium_total": 1250.50,
					"period":      "12 months",
				},
				"raw_text": "Theft is covered per section 4.",
			},
		},
	}

	records, warnings, err := ValidateOffers(parsed, catalog, "Allianz", "allianz.pdf")
	require.NoError(t, err)
	assert.Empty(t, warnings)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, "Allianz", rec.VendorName)
	assert.Equal(t, "allianz.pdf", rec.Filename)
	assert.Equal(t, "Theft is covered per section 4.", rec.RawText)
	assert.Equal(t, true, rec.Coverage["theft"])
	assert.Equal(t, false, rec.Coverage["fire"])
	assert.Equal(t, "Europe", rec.Coverage["territory"])
	require.NotNil(t, rec.PremiumTotal)
	assert.InDelta(t, 1250.50, *rec.PremiumTotal, 0.001)
	assert.Equal(t, "12 months", rec.Period)

	// Coverage is completed to the full canonical field list; absent
	// fields are present and nil.
	for _, code := range catalog.CoverageCodes() {
		_, present := rec.Coverage[code]
		assert.True(t, present, "coverage code %s missing", code)
	}
	assert.Nil(t, rec.Coverage["water_damage"])
}

func TestValidateOffers_NonObjectElementDropped(t *testing.T) {
	catalog := testCatalog(t)

	parsed := map[string]any{
		"offers": []any{
			"just a string",
			map[string]any{
				"structured": map[string]any{"vendor_name": "AXA"},
				"raw_text":   "x",
			},
		},
	}

	records, warnings, err := ValidateOffers(parsed, catalog, "AXA", "")
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "not an object")
}

func TestValidateOffers_MissingStructuredCompleted(t *testing.T) {
	catalog := testCatalog(t)

	// An element with neither the structured sub-object nor raw_text is
	// completed rather than dropped.
	parsed := map[string]any{
		"offers": []any{map[string]any{}},
	}

	records, warnings, err := ValidateOffers(parsed, catalog, "Zurich", "zurich.txt")
	require.NoError(t, err)
	assert.Empty(t, warnings)
	require.Len(t, records, 1)
	assert.Equal(t, "Zurich", records[0].VendorName)
	assert.Equal(t, "zurich.txt", records[0].Filename)
	assert.Equal(t, "", records[0].RawText)
}

func TestValidateOffers_MissingVendorNameDropsRecord(t *testing.T) {
	catalog := testCatalog(t)

	parsed := map[string]any{
		"offers": []any{
			map[string]any{"structured": map[string]any{"vendor_name": "A"}, "raw_text": ""},
			map[string]any{"structured": map[string]any{"theft": true}, "raw_text": ""},
			map[string]any{"structured": map[string]any{"vendor_name": "B"}, "raw_text": ""},
		},
	}

	records, warnings, err := ValidateOffers(parsed, catalog, "requested", "")
	require.NoError(t, err)
	assert.Len(t, records, 2)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "vendor_name")
}

func TestValidateOffers_TypeMismatchDropsSingleRecord(t *testing.T) {
	catalog := testCatalog(t)

	parsed := map[string]any{
		"offers": []any{
			map[string]any{"structured": map[string]any{"vendor_name": "Good", "theft": true}},
			map[string]any{"structured": map[string]any{"vendor_name": "Bad", "theft": "yes"}},
			map[string]any{"structured": map[string]any{"vendor_name": "AlsoBad", "exclusions": []any{"war", 42.0}}},
		},
	}

	records, warnings, err := ValidateOffers(parsed, catalog, "x", "")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Good", records[0].VendorName)
	assert.Len(t, warnings, 2)
}

func TestValidateOffers_AllRecordsInvalid(t *testing.T) {
	catalog := testCatalog(t)

	parsed := map[string]any{
		"offers": []any{
			"nope",
			map[string]any{"structured": map[string]any{"theft": true}},
		},
	}

	_, _, err := ValidateOffers(parsed, catalog, "x", "")
	var allInvalid *AllRecordsInvalidError
	require.ErrorAs(t, err, &allInvalid)
	assert.Equal(t, 2, allInvalid.Candidates)
	assert.Len(t, allInvalid.Warnings, 2)
}

func TestValidateOffers_FinancialCoercion(t *testing.T) {
	catalog := testCatalog(t)

	parsed := map[string]any{
		"offers": []any{
			map[string]any{
				"structured": map[string]any{
					"vendor_name":    "HDI",
					"premium_total":  "1.234,56 €",
					"insured_amount": 500000.0,
				},
			},
		},
	}

	records, _, err := ValidateOffers(parsed, catalog, "HDI", "")
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.NotNil(t, records[0].PremiumTotal)
	assert.InDelta(t, 1234.56, *records[0].PremiumTotal, 0.001)
	require.NotNil(t, records[0].InsuredAmount)
	assert.Equal(t, "500000", *records[0].InsuredAmount)
}

func TestValidateOffers_PremiumWrongTypeDropsRecord(t *testing.T) {
	catalog := testCatalog(t)

	parsed := map[string]any{
		"offers": []any{
			map[string]any{
				"structured": map[string]any{
					"vendor_name":   "X",
					"premium_total": true,
				},
			},
			map[string]any{
				"structured": map[string]any{"vendor_name": "Y"},
			},
		},
	}

	records, warnings, err := ValidateOffers(parsed, catalog, "x", "")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Y", records[0].VendorName)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "premium_total")
}
