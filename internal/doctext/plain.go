package doctext

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// Plain reads text documents directly from disk.
type Plain struct{}

// NewPlain creates a Plain extractor.
func NewPlain() *Plain {
	return &Plain{}
}

// ExtractText returns the file content. PDFs are rejected since they need
// one of the OCR providers.
func (p *Plain) ExtractText(_ context.Context, path string) (string, error) {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return "", eris.Errorf("doctext: %s is a PDF, use the pdftotext or mistral provider", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", eris.Wrapf(err, "doctext: read %s", path)
	}
	return string(data), nil
}
