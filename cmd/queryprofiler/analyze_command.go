package main

import (
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/aswath86/opensearch-query-profiler/internal/profile"
)

func runAnalyze(args []string, stdin io.Reader, out io.Writer, errOut io.Writer) int {
	flagSet := flag.NewFlagSet("analyze", flag.ContinueOnError)
	flagSet.SetOutput(errOut)
	filePath := flagSet.String("file", "-", "Profile document to analyze (path or - for stdin)")
	format := flagSet.String("format", "text", "Output format: text or json")
	top := flagSet.Int("top", 10, "Number of most expensive components to show")
	if err := flagSet.Parse(args); err != nil {
		return 2
	}
	if flagSet.NArg() != 0 {
		fmt.Fprintln(errOut, "analyze does not accept positional arguments")
		return 2
	}

	normalizedFormat, err := normalizeTextJSONFormat("analyze", *format, "text")
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}

	raw, err := readInputDocument(*filePath, stdin)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}

	report, code := analyzeDocument(raw, errOut)
	if code != 0 {
		return code
	}

	if err := writeReport(out, report, normalizedFormat, *top); err != nil {
		fmt.Fprintf(errOut, "failed to render report: %v\n", err)
		return 1
	}
	return 0
}

// analyzeDocument maps analysis failures to distinct exit codes so scripted
// callers can tell input problems apart.
func analyzeDocument(raw string, errOut io.Writer) (*profile.Report, int) {
	doc, err := profile.ParseDocument(raw)
	if err != nil {
		return nil, writeAnalyzeError(errOut, err)
	}
	report, err := profile.Analyze(doc)
	if err != nil {
		return nil, writeAnalyzeError(errOut, err)
	}
	return report, 0
}

func writeAnalyzeError(errOut io.Writer, err error) int {
	var (
		tooLarge  *profile.TraceTooLargeError
		malformed *profile.MalformedTraceError
		missing   *profile.MissingProfileError
	)
	switch {
	case errors.As(err, &tooLarge):
		fmt.Fprintf(errOut, "document too large: %v\n", err)
		return 3
	case errors.As(err, &malformed):
		fmt.Fprintf(errOut, "document is not valid JSON: %v\n", err)
		return 4
	case errors.As(err, &missing):
		fmt.Fprintf(errOut, "document has no profile section: %v\n", err)
		return 5
	default:
		fmt.Fprintf(errOut, "failed to analyze document: %v\n", err)
		return 1
	}
}
