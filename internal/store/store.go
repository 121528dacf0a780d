// Package store persists extraction runs and validated offer records.
// Two backends exist: SQLite for single-machine use and Postgres for
// shared deployments.
package store

import (
	"context"

	"github.com/brokerdesk/coverage-cli/internal/model"
)

// RunFilter specifies criteria for listing extraction runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	CaseID string          `json:"case_id,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for runs and offers.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, caseID, vendorName, filename string) (*model.ExtractionRun, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	CompleteRun(ctx context.Context, runID string, attempts int, warnings []string) error
	FailRun(ctx context.Context, runID string, attempts int, cause error) error
	GetRun(ctx context.Context, runID string) (*model.ExtractionRun, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.ExtractionRun, error)

	// Offers. ListOffers returns a case's records in insertion order,
	// which fixes the column order of the comparison matrix.
	SaveOffers(ctx context.Context, runID, caseID string, offers []model.OfferRecord) ([]model.StoredOfferRecord, error)
	ListOffers(ctx context.Context, caseID string) ([]model.StoredOfferRecord, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
