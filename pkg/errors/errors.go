package errors

import (
	stderrors "errors"
	"fmt"
	"io"
	"strings"
)

// ModuleError is the interface implemented by all pipeline errors.
type ModuleError interface {
	error
	Kind() string // e.g., "Network", "Parse", "Transform"
	// Message returns the specific error message without location info.
	Message() string
	Unwrap() error
}

// --- Concrete Error Types ---

// NetworkError is returned when fetching a module's source does not succeed.
type NetworkError struct {
	URL        string
	StatusCode int // 0 when no response was received
	Msg        string
	Cause      error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("Network Error: failed to fetch %s: %d %s", e.URL, e.StatusCode, e.Msg)
	}
	return fmt.Sprintf("Network Error: failed to fetch %s: %s", e.URL, e.Msg)
}
func (e *NetworkError) Kind() string    { return "Network" }
func (e *NetworkError) Message() string { return e.Msg }
func (e *NetworkError) Unwrap() error   { return e.Cause }
func (e *NetworkError) CausedBy(cause error) *NetworkError {
	e.Cause = cause
	return e
}

// ParseError represents malformed module source.
type ParseError struct {
	Position
	Msg   string
	Cause error
}

func (e *ParseError) Error() string {
	if e.Source != nil {
		return fmt.Sprintf("Parse Error at %s:%d:%d: %s", e.Source.DisplayPath(), e.Line, e.Column, e.Msg)
	}
	return fmt.Sprintf("Parse Error at %d:%d: %s", e.Line, e.Column, e.Msg)
}
func (e *ParseError) Pos() Position   { return e.Position }
func (e *ParseError) Kind() string    { return "Parse" }
func (e *ParseError) Message() string { return e.Msg }
func (e *ParseError) Unwrap() error   { return e.Cause }
func (e *ParseError) CausedBy(cause error) *ParseError {
	e.Cause = cause
	return e
}

// TransformError represents a fault while rewriting, lowering or printing a module.
type TransformError struct {
	URL   string
	Msg   string
	Cause error
}

func (e *TransformError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("Transform Error in %s: %s: %v", e.URL, e.Msg, e.Cause)
	}
	return fmt.Sprintf("Transform Error in %s: %s", e.URL, e.Msg)
}
func (e *TransformError) Kind() string    { return "Transform" }
func (e *TransformError) Message() string { return e.Msg }
func (e *TransformError) Unwrap() error   { return e.Cause }
func (e *TransformError) CausedBy(cause error) *TransformError {
	e.Cause = cause
	return e
}

// UnsupportedKindError is returned when a transform is requested for an unknown resource kind.
type UnsupportedKindError struct {
	Requested string
}

func (e *UnsupportedKindError) Error() string {
	return fmt.Sprintf("Unsupported resource type: %q", e.Requested)
}
func (e *UnsupportedKindError) Kind() string    { return "UnsupportedKind" }
func (e *UnsupportedKindError) Message() string { return "unsupported resource type " + e.Requested }
func (e *UnsupportedKindError) Unwrap() error   { return nil }

// ImportMapError reports a declared import map that could not be parsed.
// It is recoverable: the offending table is skipped.
type ImportMapError struct {
	Index int // Position of the table among the declared tables
	Msg   string
	Cause error
}

func (e *ImportMapError) Error() string {
	return fmt.Sprintf("Import Map Error in table #%d: %s", e.Index, e.Msg)
}
func (e *ImportMapError) Kind() string    { return "ImportMap" }
func (e *ImportMapError) Message() string { return e.Msg }
func (e *ImportMapError) Unwrap() error   { return e.Cause }
func (e *ImportMapError) CausedBy(cause error) *ImportMapError {
	e.Cause = cause
	return e
}

// KindOf returns the Kind of the first ModuleError in err's chain, or "" if there is none.
func KindOf(err error) string {
	var me ModuleError
	if stderrors.As(err, &me) {
		return me.Kind()
	}
	return ""
}

// --- Error Reporting ---

// DisplayErrors writes errors to w in a user-friendly format. Parse errors
// additionally show the offending source line and a position marker.
func DisplayErrors(w io.Writer, errs []error) {
	for _, err := range errs {
		var parseErr *ParseError
		if !stderrors.As(err, &parseErr) || parseErr.Source == nil {
			fmt.Fprintf(w, "%v\n", err)
			continue
		}

		lines := parseErr.Source.Lines()
		lineIdx := parseErr.Line - 1
		fmt.Fprintf(w, "%v\n", parseErr)
		if lineIdx < 0 || lineIdx >= len(lines) {
			continue
		}

		sourceLine := strings.TrimRight(lines[lineIdx], "\r\n\t ")
		fmt.Fprintf(w, "  %s\n", sourceLine)
		marker := strings.Repeat(" ", max(parseErr.Column-1, 0)) + "^"
		fmt.Fprintf(w, "  %s\n\n", marker)
	}
}
