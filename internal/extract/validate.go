package extract

import (
	"fmt"
	"strings"

	"github.com/brokerdesk/coverage-cli/internal/model"
)

// ValidateOffers checks a parsed wrapper object against the coverage field
// catalogue and promotes the surviving candidates to OfferRecords.
//
// Individual bad records are dropped with a warning, never failing the
// batch; structural problems with the wrapper itself (no offers collection)
// and a batch with zero survivors are attempt-level errors.
func ValidateOffers(parsed map[string]any, catalog *model.RowCatalog, vendorName, filename string) ([]model.OfferRecord, []string, error) {
	offersAny, ok := parsed["offers"].([]any)
	if !ok || len(offersAny) == 0 {
		return nil, nil, ErrNoOffers
	}

	var records []model.OfferRecord
	var warnings []string

	for i, elem := range offersAny {
		obj, ok := elem.(map[string]any)
		if !ok {
			warnings = append(warnings, fmt.Sprintf("offer %d: not an object, dropped", i))
			continue
		}

		rec, warn := validateOffer(obj, catalog, vendorName, filename, i)
		if warn != "" {
			warnings = append(warnings, warn)
			continue
		}
		records = append(records, *rec)
	}

	if len(records) == 0 {
		return nil, nil, &AllRecordsInvalidError{Candidates: len(offersAny), Warnings: warnings}
	}
	return records, warnings, nil
}

// validateOffer validates one candidate. A non-empty warning means the
// record was dropped.
func validateOffer(obj map[string]any, catalog *model.RowCatalog, vendorName, filename string, idx int) (*model.OfferRecord, string) {
	// A candidate missing the structured sub-object gets a minimal one so
	// the schema check below never fails on absent wrapper keys alone.
	structured, ok := obj["structured"].(map[string]any)
	if !ok {
		structured = map[string]any{
			"vendor_name": vendorName,
			"filename":    filename,
		}
	}

	rawText, ok := obj["raw_text"].(string)
	if !ok {
		rawText = ""
	}

	vendor, _ := structured["vendor_name"].(string)
	if strings.TrimSpace(vendor) == "" {
		return nil, fmt.Sprintf("offer %d: missing vendor_name, dropped", idx)
	}

	rec := model.OfferRecord{
		VendorName: vendor,
		Filename:   filename,
		RawText:    rawText,
		Coverage:   make(map[string]any, len(catalog.Rows())),
	}
	if fn, ok := structured["filename"].(string); ok && fn != "" {
		rec.Filename = fn
	}

	// Schema check against the full declared field catalogue. Coverage is
	// completed to the canonical field list: absent fields are nulled,
	// never omitted.
	for _, code := range catalog.CoverageCodes() {
		val, present := structured[code]
		if !present || val == nil {
			rec.Coverage[code] = nil
			continue
		}
		if !valueMatchesType(val, catalog.ByCode(code).Type) {
			return nil, fmt.Sprintf("offer %d (%s): field %q has %T value, want %s, dropped",
				idx, vendor, code, val, catalog.ByCode(code).Type)
		}
		rec.Coverage[code] = val
	}

	if warn := readFinancials(structured, &rec, idx, vendor); warn != "" {
		return nil, warn
	}

	return &rec, ""
}

// readFinancials fills the side-channel financial attributes. These are
// optional; an unusable value nulls the attribute rather than dropping the
// record, except for outright type violations.
func readFinancials(structured map[string]any, rec *model.OfferRecord, idx int, vendor string) string {
	if v, present := structured[model.CodePremiumTotal]; present && v != nil {
		switch p := v.(type) {
		case float64:
			rec.PremiumTotal = &p
		case string:
			if parsed, ok := parseAmount(p); ok {
				rec.PremiumTotal = &parsed
			}
		default:
			return fmt.Sprintf("offer %d (%s): premium_total has %T value, want number, dropped", idx, vendor, v)
		}
	}

	if v, present := structured[model.CodeInsuredAmount]; present && v != nil {
		switch a := v.(type) {
		case string:
			rec.InsuredAmount = &a
		case float64:
			s := formatAmount(a)
			rec.InsuredAmount = &s
		default:
			return fmt.Sprintf("offer %d (%s): insured_amount has %T value, want text or number, dropped", idx, vendor, v)
		}
	}

	if v, ok := structured[model.CodePeriod].(string); ok {
		rec.Period = v
	}
	return ""
}

// valueMatchesType checks an extracted value against a row's declared type.
// Values arrive from encoding/json, so numbers are float64 and lists []any.
func valueMatchesType(val any, t model.RowType) bool {
	switch t {
	case model.RowTypeFlag:
		_, ok := val.(bool)
		return ok
	case model.RowTypeText:
		_, ok := val.(string)
		return ok
	case model.RowTypeNumber:
		_, ok := val.(float64)
		return ok
	case model.RowTypeCurrency:
		switch val.(type) {
		case float64, string:
			return true
		}
		return false
	case model.RowTypeList:
		items, ok := val.([]any)
		if !ok {
			return false
		}
		for _, it := range items {
			if _, ok := it.(string); !ok {
				return false
			}
		}
		return true
	}
	return false
}
