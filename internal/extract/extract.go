// Package extract turns untrusted model output into validated coverage
// offer records: prompt construction, response validation, and the bounded
// retry loop around the model call.
package extract

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/brokerdesk/coverage-cli/internal/config"
	"github.com/brokerdesk/coverage-cli/internal/model"
	"github.com/brokerdesk/coverage-cli/internal/repair"
	"github.com/brokerdesk/coverage-cli/pkg/anthropic"
)

// Stages an attempt can fail at, reported by the terminal error.
const (
	stageTransport = "transport"
	stageEmpty     = "empty-response"
	stageParse     = "parse"
	stageValidate  = "validate"
)

// Extractor coordinates bounded extraction attempts for one document at a
// time. One ExtractAndValidate call owns its attempt counter and warning
// accumulation; instances are safe for concurrent use across documents.
type Extractor struct {
	client  anthropic.Client
	catalog *model.RowCatalog
	cfg     config.ExtractConfig
	model   string
}

// NewExtractor creates an Extractor backed by the given model client.
func NewExtractor(client anthropic.Client, catalog *model.RowCatalog, modelID string, cfg config.ExtractConfig) *Extractor {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 3
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}
	return &Extractor{client: client, catalog: catalog, cfg: cfg, model: modelID}
}

// Result is the outcome of a successful extraction run.
type Result struct {
	Records  []model.OfferRecord
	Warnings []string
	Attempts int
	Usage    anthropic.TokenUsage
}

// attemptFailure tags one failed attempt with the stage it failed at.
// Attempt control flow runs on these values, not on raised errors.
type attemptFailure struct {
	stage string
	err   error
}

// ExtractAndValidate runs the attempt loop for one document: model call,
// repair parse, then validation, retrying any failure until the attempt
// budget is spent. Attempts are strictly sequential; each consumes a unit
// of the upstream rate budget. On exhaustion the terminal error wraps the
// last failure and the attempt count.
func (e *Extractor) ExtractAndValidate(ctx context.Context, docText, vendorName, filename string) (*Result, error) {
	prompt := BuildPrompt(docText, vendorName, filename, e.catalog)

	var usage anthropic.TokenUsage
	var last attemptFailure
	attempts := 0

	for attempt := 0; attempt < e.cfg.MaxAttempts; attempt++ {
		attempts = attempt + 1
		records, warnings, fail := e.attempt(ctx, prompt, vendorName, filename, &usage)
		if fail == nil {
			usage.LogCost(e.model, "extract")
			return &Result{
				Records:  Normalize(records),
				Warnings: warnings,
				Attempts: attempt + 1,
				Usage:    usage,
			}, nil
		}
		last = *fail

		zap.L().Warn("extract: attempt failed",
			zap.String("vendor", vendorName),
			zap.String("filename", filename),
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", e.cfg.MaxAttempts),
			zap.String("stage", fail.stage),
			zap.Error(fail.err),
		)

		// A cancelled context fails every further attempt the same way;
		// stop burning the budget.
		if ctx.Err() != nil {
			break
		}
	}

	return nil, &RetriesExhaustedError{
		Attempts: attempts,
		Stage:    last.stage,
		Cause:    last.err,
	}
}

// attempt performs one model call and interpretation pass. A nil
// attemptFailure means success.
func (e *Extractor) attempt(ctx context.Context, prompt Prompt, vendorName, filename string, usage *anthropic.TokenUsage) ([]model.OfferRecord, []string, *attemptFailure) {
	resp, err := e.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     e.model,
		MaxTokens: e.cfg.MaxTokens,
		System:    anthropic.BuildCachedSystemBlocks(prompt.System),
		Messages: []anthropic.Message{
			{Role: "user", Content: prompt.User},
		},
	})
	if err != nil {
		return nil, nil, &attemptFailure{stage: stageTransport, err: err}
	}
	usage.Add(resp.Usage)

	text := responseText(resp)
	if strings.TrimSpace(text) == "" {
		return nil, nil, &attemptFailure{stage: stageEmpty, err: ErrEmptyResponse}
	}

	parsed, err := repair.Parse(text)
	if err != nil {
		return nil, nil, &attemptFailure{stage: stageParse, err: err}
	}

	records, warnings, err := ValidateOffers(parsed, e.catalog, vendorName, filename)
	if err != nil {
		return nil, nil, &attemptFailure{stage: stageValidate, err: err}
	}

	return records, warnings, nil
}

// responseText concatenates all text content blocks.
func responseText(resp *anthropic.MessageResponse) string {
	if resp == nil {
		return ""
	}
	var sb strings.Builder
	for _, b := range resp.Content {
		if b.Type == "" || b.Type == "text" {
			sb.WriteString(b.Text)
		}
	}
	return sb.String()
}
