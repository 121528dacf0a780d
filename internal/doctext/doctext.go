// Package doctext turns offer documents into plain text for extraction.
// Plain text files pass through unchanged; PDFs go through pdftotext or
// the Mistral OCR API depending on configuration.
package doctext

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/brokerdesk/coverage-cli/internal/config"
)

// Extractor extracts text content from offer documents.
type Extractor interface {
	ExtractText(ctx context.Context, path string) (string, error)
}

// NewExtractor creates an Extractor based on config.
func NewExtractor(cfg config.DocTextConfig) (Extractor, error) {
	switch cfg.Provider {
	case "plain", "":
		return NewPlain(), nil
	case "pdftotext":
		return NewPdfToText(cfg.PdfToTextPath), nil
	case "mistral":
		if cfg.MistralKey == "" {
			return nil, eris.New("doctext: mistral provider requires mistral_api_key")
		}
		return NewMistralOCR(cfg.MistralKey, cfg.MistralModel), nil
	default:
		return nil, eris.Errorf("doctext: unknown provider %q", cfg.Provider)
	}
}
