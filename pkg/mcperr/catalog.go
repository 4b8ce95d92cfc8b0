package mcperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// Code defines a canonical error code used across MCP tools and HTTP responses.
type Code string

const (
	// Validation & Input
	Validation        Code = "VALIDATION"
	UnknownSelection  Code = "UNKNOWN_SELECTION"
	CursorInvalid     Code = "CURSOR_INVALID"
	CursorBuildFailed Code = "CURSOR_BUILD_FAILED"

	// Resource & Limits
	BusyResource  Code = "BUSY_RESOURCE"
	Timeout       Code = "TIMEOUT"
	LimitExceeded Code = "LIMIT_EXCEEDED"

	// Data availability
	LoadFailed         Code = "LOAD_FAILED"
	ClusterUnavailable Code = "CLUSTER_UNAVAILABLE"
	NoData             Code = "NO_DATA"
	SchemaMismatch     Code = "SCHEMA_MISMATCH"

	// Analysis & export
	AnalysisFailed Code = "ANALYSIS_FAILED"
	ExportFailed   Code = "EXPORT_FAILED"

	// Integrity
	UnsupportedFormat Code = "UNSUPPORTED_FORMAT"
	PermissionDenied  Code = "PERMISSION_DENIED"
)

// Entry documents a code's standard message, retry semantics, HTTP status and next steps.
type Entry struct {
	Code      Code
	Message   string
	Retryable bool
	Status    int
	NextSteps []string
}

// catalog maps canonical codes to guidance. Messages can be overridden per error.
var catalog = map[Code]Entry{
	Validation:        {Code: Validation, Message: "invalid inputs", Retryable: true, Status: http.StatusBadRequest, NextSteps: []string{"Correct the inputs per schema and retry", "See examples in tool description"}},
	UnknownSelection:  {Code: UnknownSelection, Message: "selection not present in data", Retryable: true, Status: http.StatusBadRequest, NextSteps: []string{"Call list_selectors for available years, regions and crops"}},
	CursorInvalid:     {Code: CursorInvalid, Message: "cursor is invalid for current snapshot", Retryable: true, Status: http.StatusBadRequest, NextSteps: []string{"Restart pagination from the first page", "Sources may have changed between pages"}},
	CursorBuildFailed: {Code: CursorBuildFailed, Message: "failed to encode next page cursor", Retryable: true, Status: http.StatusInternalServerError, NextSteps: []string{"Retry or use a smaller page size"}},

	BusyResource:  {Code: BusyResource, Message: "concurrent request limit reached", Retryable: true, Status: http.StatusServiceUnavailable, NextSteps: []string{"Retry after a short delay"}},
	Timeout:       {Code: Timeout, Message: "operation exceeded configured time limit", Retryable: true, Status: http.StatusGatewayTimeout, NextSteps: []string{"Retry; the first call after a source change reloads data"}},
	LimitExceeded: {Code: LimitExceeded, Message: "operation exceeded configured limits", Retryable: true, Status: http.StatusBadRequest, NextSteps: []string{"Lower page size or narrow the selection"}},

	LoadFailed:         {Code: LoadFailed, Message: "primary dataset could not be loaded", Retryable: false, Status: http.StatusServiceUnavailable, NextSteps: []string{"Verify dataset_final exists in the data directory and has region and year columns"}},
	ClusterUnavailable: {Code: ClusterUnavailable, Message: "cluster data unavailable", Retryable: false, Status: http.StatusNotFound, NextSteps: []string{"Provide cluster_<year> sources with a Cluster column"}},
	NoData:             {Code: NoData, Message: "no data for this selection", Retryable: true, Status: http.StatusNotFound, NextSteps: []string{"Choose another year, region or crop"}},
	SchemaMismatch:     {Code: SchemaMismatch, Message: "source columns do not match the expected schema", Retryable: false, Status: http.StatusUnprocessableEntity, NextSteps: []string{"Inspect diagnostics from list_selectors"}},

	AnalysisFailed: {Code: AnalysisFailed, Message: "analysis failed", Retryable: true, Status: http.StatusInternalServerError, NextSteps: []string{"Retry or narrow the selection"}},
	ExportFailed:   {Code: ExportFailed, Message: "export failed", Retryable: true, Status: http.StatusInternalServerError, NextSteps: []string{"Verify the output directory is writable"}},

	UnsupportedFormat: {Code: UnsupportedFormat, Message: "unsupported source format", Retryable: false, Status: http.StatusUnprocessableEntity, NextSteps: []string{"Provide .csv or .xlsx sources"}},
	PermissionDenied:  {Code: PermissionDenied, Message: "insufficient permissions to access path", Retryable: false, Status: http.StatusForbidden, NextSteps: []string{"Adjust permissions or choose an allowed directory"}},
}

// Lookup returns the catalog entry for a code.
func Lookup(code Code) (Entry, bool) {
	e, ok := catalog[code]
	return e, ok
}

// HTTPStatus returns the HTTP status for a code, 500 when unknown.
func HTTPStatus(code Code) int {
	if e, ok := catalog[code]; ok && e.Status != 0 {
		return e.Status
	}
	return http.StatusInternalServerError
}

// normalize builds a standard error string including next steps for MCP clients that
// surface only a message string. Format: "CODE: message" followed by a guidance tail.
func normalize(code Code, msg string) string {
	base := strings.TrimSpace(msg)
	e, ok := catalog[code]
	if !ok {
		// Unknown code; preserve as-is
		if base == "" {
			return string(code)
		}
		return fmt.Sprintf("%s: %s", string(code), base)
	}
	if base == "" {
		base = e.Message
	}
	guidance := ""
	if len(e.NextSteps) > 0 {
		guidance = " | nextSteps: " + strings.Join(e.NextSteps, "; ")
	}
	return fmt.Sprintf("%s: %s%s", e.Code, base, guidance)
}

// Split parses a "CODE: message" string. Text without a known code is
// reported as Validation.
func Split(text string) (Code, string) {
	t := strings.TrimSpace(text)
	parts := strings.SplitN(t, ":", 2)
	code := Code(strings.TrimSpace(parts[0]))
	if _, ok := catalog[code]; !ok || len(parts) < 2 {
		return Validation, t
	}
	return code, strings.TrimSpace(parts[1])
}

// FromText parses a "CODE: message" string, enriches it with catalog guidance,
// and returns an MCP tool error result.
func FromText(text string) *mcp.CallToolResult {
	if strings.TrimSpace(text) == "" {
		return mcp.NewToolResultError(normalize(Validation, ""))
	}
	code, msg := Split(text)
	return mcp.NewToolResultError(normalize(code, msg))
}

// New returns an MCP error result for a given code and optional message override.
func New(code Code, message string) *mcp.CallToolResult {
	return mcp.NewToolResultError(normalize(code, message))
}

// Wrapf formats details and returns an MCP error result for the code.
func Wrapf(code Code, format string, args ...any) *mcp.CallToolResult {
	return mcp.NewToolResultError(normalize(code, fmt.Sprintf(format, args...)))
}

// Mapping binds a sentinel error to a code.
type Mapping struct {
	Err  error
	Code Code
}

// Classify returns the code of the first mapping matching err via errors.Is,
// or fallback.
func Classify(err error, fallback Code, mappings ...Mapping) Code {
	for _, m := range mappings {
		if errors.Is(err, m.Err) {
			return m.Code
		}
	}
	return fallback
}
