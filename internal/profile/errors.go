package profile

import "fmt"

// MaxDocumentSize is the hard ceiling on raw profile document size. Inputs
// beyond this are rejected before any parse attempt so a runaway paste
// cannot stall the session.
const MaxDocumentSize = 10_000_000

const diagnosticSnippetLimit = 200

// TraceTooLargeError reports a raw document that exceeds MaxDocumentSize.
type TraceTooLargeError struct {
	Size  int
	Limit int
}

func (e *TraceTooLargeError) Error() string {
	return fmt.Sprintf("profile document is too large: %d characters (limit %d)", e.Size, e.Limit)
}

// MalformedTraceError reports a document that failed strict JSON parsing
// even after sanitization. Snippet is a bounded diagnostic excerpt around
// the failure point, never the full document.
type MalformedTraceError struct {
	Snippet string
	Err     error
}

func (e *MalformedTraceError) Error() string {
	return fmt.Sprintf("profile document is not valid JSON: %v (near %q)", e.Err, e.Snippet)
}

func (e *MalformedTraceError) Unwrap() error {
	return e.Err
}

// MissingProfileError reports a well-formed response that carries no
// profile section. The parsed document is retained so callers can surface
// it for inspection.
type MissingProfileError struct {
	Document Document
}

func (e *MissingProfileError) Error() string {
	return "response contains no profile data"
}
