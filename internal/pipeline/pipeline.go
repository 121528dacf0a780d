// Package pipeline orchestrates one offer document end to end: read its
// text, extract and validate offer records, persist the run and its
// surviving records.
package pipeline

import (
	"context"
	"errors"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/brokerdesk/coverage-cli/internal/doctext"
	"github.com/brokerdesk/coverage-cli/internal/extract"
	"github.com/brokerdesk/coverage-cli/internal/model"
	"github.com/brokerdesk/coverage-cli/internal/store"
	"github.com/brokerdesk/coverage-cli/pkg/anthropic"
)

// Pipeline runs extraction for offer documents and persists results.
type Pipeline struct {
	store     store.Store
	doc       doctext.Extractor
	extractor *extract.Extractor
}

// New creates a Pipeline with all dependencies.
func New(st store.Store, doc doctext.Extractor, ex *extract.Extractor) *Pipeline {
	return &Pipeline{
		store:     st,
		doc:       doc,
		extractor: ex,
	}
}

// DocumentResult is the outcome of processing one offer document.
type DocumentResult struct {
	RunID    string                    `json:"run_id"`
	CaseID   string                    `json:"case_id"`
	Records  []model.StoredOfferRecord `json:"records"`
	Warnings []string                  `json:"warnings,omitempty"`
	Attempts int                       `json:"attempts"`
	Usage    anthropic.TokenUsage      `json:"usage"`
}

// StartRun registers a queued extraction run for one document. Callers
// that need the run id before processing begins (the HTTP surface) use
// this and then Process; everyone else calls ProcessDocument.
func (p *Pipeline) StartRun(ctx context.Context, caseID, vendorName, path string) (*model.ExtractionRun, error) {
	run, err := p.store.CreateRun(ctx, caseID, vendorName, filepath.Base(path))
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: create run")
	}
	return run, nil
}

// ProcessDocument extracts offer records from one document and persists
// them under the given case. The run record survives either way: completed
// with its warnings, or failed with the terminal error.
func (p *Pipeline) ProcessDocument(ctx context.Context, caseID, vendorName, path string) (*DocumentResult, error) {
	run, err := p.StartRun(ctx, caseID, vendorName, path)
	if err != nil {
		return nil, err
	}
	return p.Process(ctx, run, path)
}

// Process drives an already-registered run through text extraction,
// model extraction, and persistence.
func (p *Pipeline) Process(ctx context.Context, run *model.ExtractionRun, path string) (*DocumentResult, error) {
	caseID := run.CaseID
	vendorName := run.VendorName
	filename := filepath.Base(path)
	log := zap.L().With(
		zap.String("case_id", caseID),
		zap.String("vendor", vendorName),
		zap.String("file", filename),
	)
	log.Info("pipeline: processing document")

	if err := p.store.UpdateRunStatus(ctx, run.ID, model.RunStatusRunning); err != nil {
		log.Warn("pipeline: failed to update status", zap.Error(err))
	}

	text, err := p.doc.ExtractText(ctx, path)
	if err != nil {
		p.failRun(ctx, run.ID, 0, err)
		return nil, eris.Wrapf(err, "pipeline: read document %s", path)
	}

	res, err := p.extractor.ExtractAndValidate(ctx, text, vendorName, filename)
	if err != nil {
		attempts := 0
		var exhausted *extract.RetriesExhaustedError
		if errors.As(err, &exhausted) {
			attempts = exhausted.Attempts
		}
		p.failRun(ctx, run.ID, attempts, err)
		return nil, eris.Wrapf(err, "pipeline: extract %s", filename)
	}

	stored, err := p.store.SaveOffers(ctx, run.ID, caseID, res.Records)
	if err != nil {
		p.failRun(ctx, run.ID, res.Attempts, err)
		return nil, eris.Wrap(err, "pipeline: save offers")
	}

	if err := p.store.CompleteRun(ctx, run.ID, res.Attempts, res.Warnings); err != nil {
		log.Warn("pipeline: failed to complete run", zap.Error(err))
	}

	log.Info("pipeline: document complete",
		zap.Int("records", len(stored)),
		zap.Int("attempts", res.Attempts),
		zap.Int("warnings", len(res.Warnings)),
	)

	return &DocumentResult{
		RunID:    run.ID,
		CaseID:   caseID,
		Records:  stored,
		Warnings: res.Warnings,
		Attempts: res.Attempts,
		Usage:    res.Usage,
	}, nil
}

func (p *Pipeline) failRun(ctx context.Context, runID string, attempts int, cause error) {
	if err := p.store.FailRun(ctx, runID, attempts, cause); err != nil {
		zap.L().Warn("pipeline: failed to record run failure",
			zap.String("run_id", runID),
			zap.Error(err),
		)
	}
}
