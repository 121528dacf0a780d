// Package repair recovers a decodable JSON object from near-valid model
// output: fenced payloads, surrounding prose, trailing commas, and stray
// control characters. It is deterministic and makes no network calls.
package repair

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

const (
	// previewLen bounds the head/tail excerpts carried by a RepairError.
	previewLen = 200
	// windowRadius is the half-width of the excerpt centered on the
	// decoder's reported failure offset.
	windowRadius = 120
)

var trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)

// RepairError reports that every repair heuristic was exhausted. It carries
// enough context to diagnose the malformed token without re-reading the
// full response.
type RepairError struct {
	Cause  error
	Head   string
	Tail   string
	Offset int64
	Window string
}

func (e *RepairError) Error() string {
	msg := fmt.Sprintf("repair: payload not decodable: %v (head: %q, tail: %q", e.Cause, e.Head, e.Tail)
	if e.Window != "" {
		msg += fmt.Sprintf(", near offset %d: %q", e.Offset, e.Window)
	}
	return msg + ")"
}

func (e *RepairError) Unwrap() error {
	return e.Cause
}

// Parse turns a raw model response into a decoded JSON object. Repair steps
// are attempted in order, each only when the previous one did not yield a
// decodable payload:
//
//  1. strip markdown code fences at the string boundaries
//  2. cut to the outermost {...} span
//  3. direct decode
//  4. cosmetic repair (trailing commas, control characters), decode again
//
// On failure it returns a *RepairError.
func Parse(raw string) (map[string]any, error) {
	cleaned := stripFences(strings.TrimSpace(raw))
	cleaned = extractObject(cleaned)

	obj, err := decodeObject(cleaned)
	if err == nil {
		return obj, nil
	}

	repaired := stripControlChars(cleaned)
	repaired = trailingCommaRe.ReplaceAllString(repaired, "$1")

	obj, repairErr := decodeObject(repaired)
	if repairErr == nil {
		return obj, nil
	}

	return nil, newRepairError(repaired, repairErr)
}

// stripFences removes a leading ``` marker (with optional language tag) and
// the matching trailing marker. Payloads without boundary fences pass
// through unchanged.
func stripFences(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	// Drop the language tag up to the first newline.
	if nl := strings.IndexByte(text, '\n'); nl >= 0 {
		firstLine := strings.TrimSpace(text[:nl])
		if firstLine != "" && !strings.ContainsAny(firstLine, "{}") {
			text = text[nl+1:]
		}
	}
	if idx := strings.LastIndex(text, "```"); idx >= 0 {
		text = text[:idx]
	}
	return strings.TrimSpace(text)
}

// extractObject cuts the substring from the first '{' to the last '}',
// defending against commentary the model added around the payload.
func extractObject(text string) string {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start >= 0 && end > start {
		return text[start : end+1]
	}
	return text
}

// stripControlChars removes non-printable control characters except
// newline, carriage return, and tab.
func stripControlChars(text string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x20 && r != '\n' && r != '\r' && r != '\t' {
			return -1
		}
		return r
	}, text)
}

func decodeObject(text string) (map[string]any, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("empty payload")
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(text), &obj); err != nil {
		return nil, err
	}
	return obj, nil
}

func newRepairError(text string, cause error) *RepairError {
	e := &RepairError{
		Cause: cause,
		Head:  excerpt(text, 0, previewLen),
	}
	if len(text) > previewLen {
		e.Tail = excerpt(text, len(text)-previewLen, len(text))
	}

	var offset int64 = -1
	switch c := cause.(type) {
	case *json.SyntaxError:
		offset = c.Offset
	case *json.UnmarshalTypeError:
		offset = c.Offset
	}
	if offset >= 0 {
		e.Offset = offset
		e.Window = excerpt(text, int(offset)-windowRadius, int(offset)+windowRadius)
	}
	return e
}

// excerpt returns text[from:to] clamped to valid bounds.
func excerpt(text string, from, to int) string {
	if from < 0 {
		from = 0
	}
	if to > len(text) {
		to = len(text)
	}
	if from >= to {
		return ""
	}
	return text[from:to]
}
