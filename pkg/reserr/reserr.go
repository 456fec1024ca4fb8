// Package reserr defines the error taxonomy shared by every Meridian
// operation. Operations never signal failure by panicking or by returning a
// bare error across the host boundary: they return a typed *Error carrying a
// stable machine-readable code and a details map the caller can act on.
package reserr

import (
	"encoding/json"
	"fmt"
)

// Code identifies a failure class. Codes are stable across releases; hosts
// dispatch on them.
type Code string

const (
	// Argument and shape errors.
	CodeInvalidArgs            Code = "INVALID_ARGS"
	CodeInvalidJSON            Code = "INVALID_JSON"
	CodeInvalidJSONL           Code = "INVALID_JSONL"
	CodeSchemaValidationFailed Code = "SCHEMA_VALIDATION_FAILED"

	// Existence errors.
	CodeNotFound            Code = "NOT_FOUND"
	CodeMissingArtifact     Code = "MISSING_ARTIFACT"
	CodeOutputNotFound      Code = "OUTPUT_NOT_FOUND"
	CodePerspectiveNotFound Code = "PERSPECTIVE_NOT_FOUND"

	// Concurrency and lifecycle errors.
	CodeRevisionMismatch       Code = "REVISION_MISMATCH"
	CodeImmutableField         Code = "IMMUTABLE_FIELD"
	CodeLifecycleRuleViolation Code = "LIFECYCLE_RULE_VIOLATION"
	CodeAlreadyExistsConflict  Code = "ALREADY_EXISTS_CONFLICT"

	// Policy and budget errors.
	CodeRetryExhausted   Code = "RETRY_EXHAUSTED"
	CodeGateBlocked      Code = "GATE_BLOCKED"
	CodeWaveCapExceeded  Code = "WAVE_CAP_EXCEEDED"
	CodeSizeCapExceeded  Code = "SIZE_CAP_EXCEEDED"
	CodeRawURLNotAllowed Code = "RAW_URL_NOT_ALLOWED"
	CodeUnknownCID       Code = "UNKNOWN_CID"

	// Content errors.
	CodeMissingRequiredSection Code = "MISSING_REQUIRED_SECTION"
	CodeTooManyWords           Code = "TOO_MANY_WORDS"
	CodeTooManySources         Code = "TOO_MANY_SOURCES"
	CodeMalformedSources       Code = "MALFORMED_SOURCES"
	CodeGapsSectionNotFound    Code = "GAPS_SECTION_NOT_FOUND"
	CodeGapsParseFailed        Code = "GAPS_PARSE_FAILED"
	CodeNoURLsExtracted        Code = "NO_URLS_EXTRACTED"

	// Operational errors.
	CodeWriteFailed Code = "WRITE_FAILED"
	CodeDisabled    Code = "DISABLED"
	CodeTimeout     Code = "TIMEOUT"
)

// Error is the single failure type returned by Meridian operations.
type Error struct {
	Code    Code           `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// New creates an Error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates an Error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error whose message includes the underlying error.
func Wrap(code Code, context string, err error) *Error {
	return &Error{Code: code, Message: fmt.Sprintf("%s: %v", context, err)}
}

// With attaches a detail key and returns the same Error for chaining.
func (e *Error) With(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// Envelope is the discriminated result object every operation produces at
// the host boundary: {ok:true, ...data} or {ok:false, error:{...}}.
type Envelope struct {
	OK    bool
	Data  any
	Error *Error
}

// Ok wraps data in a success envelope. Data must marshal to a JSON object;
// its fields are inlined next to "ok".
func Ok(data any) Envelope {
	return Envelope{OK: true, Data: data}
}

// Fail wraps an Error in a failure envelope.
func Fail(err *Error) Envelope {
	return Envelope{OK: false, Error: err}
}

// MarshalJSON flattens Data's fields into the top-level object on success.
func (v Envelope) MarshalJSON() ([]byte, error) {
	if !v.OK {
		return json.Marshal(map[string]any{"ok": false, "error": v.Error})
	}
	out := map[string]any{"ok": true}
	if v.Data != nil {
		raw, err := json.Marshal(v.Data)
		if err != nil {
			return nil, err
		}
		fields := map[string]any{}
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, fmt.Errorf("envelope data must be a JSON object: %w", err)
		}
		for k, val := range fields {
			out[k] = val
		}
	}
	return json.Marshal(out)
}
