package profile

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// Some trace producers emit description fields as triple-double-quoted
// literals spanning multiple lines, which breaks strict JSON parsing.
// (?s) makes the inner match span newlines.
var tripleQuotedDescription = regexp.MustCompile(`(?s)"description":\s*"""(.*?)"""`)

// SanitizeDocument rewrites triple-quoted description fields into regular
// JSON string literals. The captured text is re-encoded through the JSON
// encoder so embedded quotes, newlines, and control characters survive a
// strict parse. All other content is left untouched.
func SanitizeDocument(raw string) string {
	return tripleQuotedDescription.ReplaceAllStringFunc(raw, func(match string) string {
		groups := tripleQuotedDescription.FindStringSubmatch(match)
		encoded, err := json.Marshal(groups[1])
		if err != nil {
			// Marshal of a string cannot fail; fall back to quote escaping.
			encoded = []byte(`"` + strings.ReplaceAll(groups[1], `"`, `\"`) + `"`)
		}
		return `"description": ` + string(encoded)
	})
}

// ParseDocument sanitizes and strictly parses a raw profile response.
// Oversized input fails fast with TraceTooLargeError before any parse
// attempt; a parse failure after sanitization yields MalformedTraceError
// with a bounded diagnostic snippet.
func ParseDocument(raw string) (Document, error) {
	if len(raw) > MaxDocumentSize {
		return nil, &TraceTooLargeError{Size: len(raw), Limit: MaxDocumentSize}
	}

	cleaned := SanitizeDocument(raw)

	var doc Document
	if err := json.Unmarshal([]byte(cleaned), &doc); err != nil {
		return nil, &MalformedTraceError{Snippet: parseFailureSnippet(cleaned, err), Err: err}
	}
	return doc, nil
}

func parseFailureSnippet(cleaned string, err error) string {
	offset := int64(-1)
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntaxErr):
		offset = syntaxErr.Offset
	case errors.As(err, &typeErr):
		offset = typeErr.Offset
	}
	if offset < 0 || offset > int64(len(cleaned)) {
		return excerpt(cleaned, diagnosticSnippetLimit)
	}

	start := offset - diagnosticSnippetLimit/2
	if start < 0 {
		start = 0
	}
	end := start + diagnosticSnippetLimit
	if end > int64(len(cleaned)) {
		end = int64(len(cleaned))
	}
	return cleaned[start:end]
}

func excerpt(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
