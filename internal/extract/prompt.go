package extract

import (
	"fmt"
	"strings"

	"github.com/brokerdesk/coverage-cli/internal/model"
)

// systemText instructs the model to extract coverage offers as strict JSON.
const systemText = "You are an insurance analyst extracting coverage offers from documents. " +
	"Return only a valid JSON object matching the requested schema, with no markdown fences and no commentary. " +
	"Use null for fields the document does not state. Never guess coverage that is not in the text."

const userTemplate = `Extract every coverage offer made by %s in the document below.

Return a JSON object of this exact shape:
{"offers": [{"structured": {%s}, "raw_text": "<short excerpt justifying the extraction>"}]}

Field schema for "structured":
%s

Document (%s):
%s`

// Prompt is the pair of instruction strings sent with one model call.
type Prompt struct {
	System string
	User   string
}

// BuildPrompt assembles the extraction instructions for one document. The
// field schema block is enumerated from the row catalogue so prompt and
// validator can never disagree about the declared fields.
func BuildPrompt(docText, vendorName, filename string, catalog *model.RowCatalog) Prompt {
	var schema strings.Builder
	for _, row := range catalog.Rows() {
		fmt.Fprintf(&schema, "- %q: %s — %s\n", row.Code, typeHint(row.Type), row.Label)
	}

	structuredKeys := `"vendor_name": "<insurer name>", "filename": "<source file>", ...fields from the schema`

	label := filename
	if label == "" {
		label = "untitled"
	}

	return Prompt{
		System: systemText,
		User:   fmt.Sprintf(userTemplate, vendorName, structuredKeys, schema.String(), label, docText),
	}
}

func typeHint(t model.RowType) string {
	switch t {
	case model.RowTypeFlag:
		return "true/false/null"
	case model.RowTypeNumber, model.RowTypeCurrency:
		return "number or null"
	case model.RowTypeList:
		return "list of strings or null"
	default:
		return "string or null"
	}
}
