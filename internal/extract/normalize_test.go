package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brokerdesk/coverage-cli/internal/model"
)

func TestNormalize_InsuredAmountOverride(t *testing.T) {
	extracted := "EUR 2,000,000"
	records := []model.OfferRecord{
		{VendorName: "ACME", InsuredAmount: &extracted},
		{VendorName: "Beta"},
	}

	Normalize(records)

	// The override is unconditional: extracted values and missing values
	// both end up at the fixed display string.
	for _, rec := range records {
		require.NotNil(t, rec.InsuredAmount)
		assert.Equal(t, insuredAmountDisplay, *rec.InsuredAmount)
	}
}

func TestNormalize_VendorName(t *testing.T) {
	// "ö" written as "o" + combining diaeresis vs precomposed.
	decomposed := "  Württembergische "
	records := []model.OfferRecord{{VendorName: decomposed}}

	Normalize(records)

	assert.Equal(t, "Württembergische", records[0].VendorName)
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"1200", 1200, true},
		{"1.234,56 €", 1234.56, true},
		{"1,234.56", 1234.56, true},
		{"1.234.567,89 EUR", 1234567.89, true},
		{"$99.50", 99.50, true},
		{"n/a", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseAmount(tt.in)
		assert.Equal(t, tt.ok, ok, "input %q", tt.in)
		if tt.ok {
			assert.InDelta(t, tt.want, got, 0.001, "input %q", tt.in)
		}
	}
}
