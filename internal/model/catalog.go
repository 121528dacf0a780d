package model

import (
	_ "embed"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed rows.yaml
var defaultRowsYAML []byte

// RowType is the rendering hint for a comparison row.
type RowType string

const (
	RowTypeFlag     RowType = "flag"
	RowTypeText     RowType = "text"
	RowTypeNumber   RowType = "number"
	RowTypeList     RowType = "list"
	RowTypeCurrency RowType = "currency"
)

// valueKeySeparator joins row code and column id in the flattened matrix
// serialization. Codes and column ids must not contain it.
const valueKeySeparator = "::"

// Financial attribute codes. These rows are read from an offer's
// side-channel fields rather than its coverage map.
const (
	CodePremiumTotal  = "premium_total"
	CodeInsuredAmount = "insured_amount"
	CodePeriod        = "period"
)

// ComparisonRow is one fixed catalogue entry defining a line of the
// rendered comparison table. Catalogue order defines row order.
type ComparisonRow struct {
	Code  string  `yaml:"code" json:"code"`
	Label string  `yaml:"label" json:"label"`
	Group string  `yaml:"group" json:"group"`
	Type  RowType `yaml:"type" json:"type"`
}

// IsFinancial reports whether the row is populated from an offer's
// financial attributes instead of its coverage map.
func (r ComparisonRow) IsFinancial() bool {
	switch r.Code {
	case CodePremiumTotal, CodeInsuredAmount, CodePeriod:
		return true
	}
	return false
}

// RowCatalog is the indexed, order-preserving comparison row catalogue.
// It is immutable after construction and safe for concurrent use.
type RowCatalog struct {
	rows   []ComparisonRow
	byCode map[string]*ComparisonRow
}

type catalogFile struct {
	Rows []ComparisonRow `yaml:"rows"`
}

// NewRowCatalog builds a catalogue from rows, rejecting duplicate or
// malformed codes and unknown row types.
func NewRowCatalog(rows []ComparisonRow) (*RowCatalog, error) {
	if len(rows) == 0 {
		return nil, eris.New("catalog: no rows")
	}

	c := &RowCatalog{
		rows:   rows,
		byCode: make(map[string]*ComparisonRow, len(rows)),
	}
	for i := range c.rows {
		r := &c.rows[i]
		if r.Code == "" {
			return nil, eris.Errorf("catalog: row %d has empty code", i)
		}
		if strings.Contains(r.Code, valueKeySeparator) {
			return nil, eris.Errorf("catalog: row code %q contains reserved separator %q", r.Code, valueKeySeparator)
		}
		if _, dup := c.byCode[r.Code]; dup {
			return nil, eris.Errorf("catalog: duplicate row code %q", r.Code)
		}
		switch r.Type {
		case RowTypeFlag, RowTypeText, RowTypeNumber, RowTypeList, RowTypeCurrency:
		default:
			return nil, eris.Errorf("catalog: row %q has unknown type %q", r.Code, r.Type)
		}
		c.byCode[r.Code] = r
	}
	return c, nil
}

// DefaultRowCatalog parses the embedded catalogue.
func DefaultRowCatalog() (*RowCatalog, error) {
	return parseCatalog(defaultRowsYAML)
}

// LoadRowCatalog reads a broker-specific catalogue override from a YAML file.
func LoadRowCatalog(path string) (*RowCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "catalog: read %s", path)
	}
	return parseCatalog(data)
}

func parseCatalog(data []byte) (*RowCatalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrap(err, "catalog: unmarshal yaml")
	}
	return NewRowCatalog(f.Rows)
}

// Rows returns the catalogue entries in declaration order.
func (c *RowCatalog) Rows() []ComparisonRow {
	return c.rows
}

// ByCode returns the row with the given code, or nil.
func (c *RowCatalog) ByCode(code string) *ComparisonRow {
	return c.byCode[code]
}

// CoverageCodes returns the codes of non-financial rows in catalogue order.
// This is the canonical coverage field list the validator checks against.
func (c *RowCatalog) CoverageCodes() []string {
	codes := make([]string, 0, len(c.rows))
	for _, r := range c.rows {
		if !r.IsFinancial() {
			codes = append(codes, r.Code)
		}
	}
	return codes
}
