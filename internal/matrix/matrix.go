// Package matrix assembles validated offer records into the cross-vendor
// comparison structure used for tabular rendering. Building is a pure
// computation: no I/O, no mutation of the input records.
package matrix

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/brokerdesk/coverage-cli/internal/model"
)

// valueKeySeparator joins row code and column id in the flattened
// serialization. Column ids are sanitized so they never contain it.
const valueKeySeparator = "::"

// ValueKey addresses one cell of the matrix.
type ValueKey struct {
	Code   string
	Column string
}

// ColumnMeta carries per-offer attributes that the flat values map does
// not support well: sorting keys, the storage back-reference, and the list
// of fields actually extracted (so "unknown" and "explicitly absent"
// remain distinguishable even when both render as a dash).
type ColumnMeta struct {
	PremiumTotal    *float64 `json:"premium_total"`
	InsuredAmount   *string  `json:"insured_amount"`
	Period          string   `json:"period,omitempty"`
	RecordID        string   `json:"record_id"`
	Filename        string   `json:"filename,omitempty"`
	FieldsExtracted []string `json:"fields_extracted"`
}

// Matrix is the rows × columns × values × metadata comparison structure.
type Matrix struct {
	Rows     []model.ComparisonRow
	Columns  []string
	Values   map[ValueKey]any
	Metadata map[string]ColumnMeta
}

// Build computes a comparison matrix from stored offer records. Row order
// comes from the catalogue, column order from the input record order.
// Records sharing a vendor name get numbered column ids; the first
// occurrence is renamed retroactively so "ACME" never coexists with
// "ACME #2".
func Build(catalog *model.RowCatalog, records []model.StoredOfferRecord) *Matrix {
	m := &Matrix{
		Rows:     catalog.Rows(),
		Columns:  make([]string, 0, len(records)),
		Values:   make(map[ValueKey]any, len(records)*len(catalog.Rows())),
		Metadata: make(map[string]ColumnMeta, len(records)),
	}

	counts := make(map[string]int, len(records))
	firstIdx := make(map[string]int, len(records))
	assigned := make(map[string]bool, len(records))

	for i, rec := range records {
		name := sanitizeColumnName(rec.VendorName)
		counts[name]++
		switch counts[name] {
		case 1:
			firstIdx[name] = i
			id := name
			// A vendor literally named like a generated id ("ACME #1")
			// can clash with a rename that already happened; bump past it.
			if assigned[id] {
				id = uniqueColumnID(assigned, name, 1)
			}
			m.Columns = append(m.Columns, id)
			assigned[id] = true
		case 2:
			first := firstIdx[name]
			delete(assigned, m.Columns[first])
			renamed := uniqueColumnID(assigned, name, 1)
			m.Columns[first] = renamed
			assigned[renamed] = true

			id := uniqueColumnID(assigned, name, 2)
			m.Columns = append(m.Columns, id)
			assigned[id] = true
		default:
			id := uniqueColumnID(assigned, name, counts[name])
			m.Columns = append(m.Columns, id)
			assigned[id] = true
		}
	}

	// Second pass: columns are final, fill cells and metadata. Column ids
	// are unique by construction, so no record can overwrite another's
	// entries.
	for i, rec := range records {
		col := m.Columns[i]

		for _, row := range m.Rows {
			m.Values[ValueKey{Code: row.Code, Column: col}] = cellValue(row, rec)
		}

		m.Metadata[col] = ColumnMeta{
			PremiumTotal:    rec.PremiumTotal,
			InsuredAmount:   rec.InsuredAmount,
			Period:          rec.Period,
			RecordID:        rec.ID,
			Filename:        rec.Filename,
			FieldsExtracted: extractedFields(rec),
		}
	}

	return m
}

// uniqueColumnID returns "<name> #<n>", bumping n past ids already taken.
func uniqueColumnID(assigned map[string]bool, name string, n int) string {
	id := fmt.Sprintf("%s #%d", name, n)
	for assigned[id] {
		n++
		id = fmt.Sprintf("%s #%d", name, n)
	}
	return id
}

// cellValue looks up the value backing one cell. Financial rows read the
// record's side-channel attributes; coverage rows read the coverage map.
func cellValue(row model.ComparisonRow, rec model.StoredOfferRecord) any {
	switch row.Code {
	case model.CodePremiumTotal:
		if rec.PremiumTotal == nil {
			return nil
		}
		return *rec.PremiumTotal
	case model.CodeInsuredAmount:
		if rec.InsuredAmount == nil {
			return nil
		}
		return *rec.InsuredAmount
	case model.CodePeriod:
		if rec.Period == "" {
			return nil
		}
		return rec.Period
	default:
		return rec.Coverage[row.Code]
	}
}

// extractedFields lists coverage codes with a non-nil value, in the
// record's own key set, sorted for stable serialization.
func extractedFields(rec model.StoredOfferRecord) []string {
	fields := make([]string, 0, len(rec.Coverage))
	for code, val := range rec.Coverage {
		if val != nil {
			fields = append(fields, code)
		}
	}
	sort.Strings(fields)
	return fields
}

// sanitizeColumnName keeps the reserved key separator out of column ids.
func sanitizeColumnName(name string) string {
	return strings.ReplaceAll(name, valueKeySeparator, ":")
}

// SortColumnsByPremium returns the column ids ordered by ascending annual
// premium. Columns without a premium sort last, keeping their relative
// order.
func (m *Matrix) SortColumnsByPremium() []string {
	cols := make([]string, len(m.Columns))
	copy(cols, m.Columns)

	sort.SliceStable(cols, func(i, j int) bool {
		pi := m.Metadata[cols[i]].PremiumTotal
		pj := m.Metadata[cols[j]].PremiumTotal
		if pi == nil {
			return false
		}
		if pj == nil {
			return true
		}
		return *pi < *pj
	})
	return cols
}

// matrixJSON is the wire shape for any boundary that renders the matrix.
type matrixJSON struct {
	Rows     []model.ComparisonRow `json:"rows"`
	Columns  []string              `json:"columns"`
	Values   map[string]any        `json:"values"`
	Metadata map[string]ColumnMeta `json:"metadata"`
}

// MarshalJSON flattens the values map to "<code>::<column_id>" keys.
func (m *Matrix) MarshalJSON() ([]byte, error) {
	out := matrixJSON{
		Rows:     m.Rows,
		Columns:  m.Columns,
		Values:   make(map[string]any, len(m.Values)),
		Metadata: m.Metadata,
	}
	if out.Columns == nil {
		out.Columns = []string{}
	}
	for key, val := range m.Values {
		out.Values[key.Code+valueKeySeparator+key.Column] = val
	}
	return json.Marshal(out)
}
