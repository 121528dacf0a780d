package model

import "time"

// OfferRecord is one insurer's extracted coverage offer. Instances of this
// type have always passed validation; partially-parsed model output is kept
// as map[string]any until the validator promotes it.
type OfferRecord struct {
	VendorName string `json:"vendor_name"`
	Filename   string `json:"filename,omitempty"`

	// Coverage holds one entry per coverage code in the row catalogue.
	// A nil value means the field was not extracted; absence of a key
	// never occurs for catalogue codes.
	Coverage map[string]any `json:"coverage"`

	// RawText is the excerpt of the source document justifying the
	// extraction. Always present, may be empty.
	RawText string `json:"raw_text"`

	PremiumTotal  *float64 `json:"premium_total,omitempty"`
	InsuredAmount *string  `json:"insured_amount,omitempty"`
	Period        string   `json:"period,omitempty"`
}

// StoredOfferRecord is an OfferRecord as read back from persistence.
type StoredOfferRecord struct {
	ID        string    `json:"id"`
	RunID     string    `json:"run_id"`
	CaseID    string    `json:"case_id"`
	CreatedAt time.Time `json:"created_at"`
	OfferRecord
}

// RunStatus tracks the lifecycle of one extraction run.
type RunStatus string

const (
	RunStatusQueued   RunStatus = "queued"
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// ExtractionRun records one document's extraction: which vendor and file it
// targeted, how many attempts it took, and any non-fatal warnings.
type ExtractionRun struct {
	ID         string    `json:"id"`
	CaseID     string    `json:"case_id"`
	VendorName string    `json:"vendor_name"`
	Filename   string    `json:"filename,omitempty"`
	Status     RunStatus `json:"status"`
	Attempts   int       `json:"attempts"`
	Warnings   []string  `json:"warnings,omitempty"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
