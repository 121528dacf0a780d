package extract

import (
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/brokerdesk/coverage-cli/internal/model"
)

// insuredAmountDisplay is the fixed business display value for the insured
// amount column. Brokers present the contractually agreed sum from the
// policy schedule, not whatever figure the model lifted from the offer
// text, so the field is overridden unconditionally after validation.
const insuredAmountDisplay = "acc. to policy schedule"

// Normalize applies the post-validation business rules to validated
// records, in place, and returns the slice for chaining:
//
//   - vendor names are trimmed and NFC-normalized so the same insurer
//     always yields byte-identical column ids
//   - insured_amount is forced to the fixed display value
func Normalize(records []model.OfferRecord) []model.OfferRecord {
	for i := range records {
		rec := &records[i]
		rec.VendorName = norm.NFC.String(strings.TrimSpace(rec.VendorName))

		display := insuredAmountDisplay
		rec.InsuredAmount = &display
	}
	return records
}

// parseAmount parses a monetary string such as "1.234,56 €", "1,234.56"
// or "1200" into a float64.
func parseAmount(s string) (float64, bool) {
	cleaned := strings.TrimSpace(s)
	cleaned = strings.TrimSuffix(cleaned, "€")
	cleaned = strings.TrimSuffix(cleaned, "EUR")
	cleaned = strings.TrimSpace(strings.TrimPrefix(cleaned, "$"))

	lastComma := strings.LastIndexByte(cleaned, ',')
	lastDot := strings.LastIndexByte(cleaned, '.')
	if lastComma > lastDot {
		// European format: dots group thousands, comma is the decimal mark.
		cleaned = strings.ReplaceAll(cleaned, ".", "")
		cleaned = strings.Replace(cleaned, ",", ".", 1)
	} else {
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	}

	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func formatAmount(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
