// Package errors provides the unified error type and factory functions for the
// Anchor retrieval engine. Every stage of the pipeline (parser, store, walk,
// inflator, assembler) uses AppError as the single carrier for structured
// error information, enabling consistent CLI output, logging, and metrics.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strings"
)

// ─────────────────────────────────────────────────────────────────────────────
// Stack capture
//
// A stack trace is captured on every New/Wrap call and by the convenience
// factories below; there is no build tag or option that turns it off.
// ─────────────────────────────────────────────────────────────────────────────

// stackDepth is the maximum number of frames captured per error.
const stackDepth = 32

// captureStack returns a formatted call-stack string starting two frames above
// the caller (skipping captureStack itself and New/Wrap).
func captureStack(skip int) string {
	pcs := make([]uintptr, stackDepth)
	n := runtime.Callers(skip+2, pcs)
	if n == 0 {
		return ""
	}
	frames := runtime.CallersFrames(pcs[:n])
	var sb strings.Builder
	for {
		f, more := frames.Next()
		if !strings.Contains(f.File, "runtime/") {
			fmt.Fprintf(&sb, "\n\t%s:%d %s", f.File, f.Line, f.Function)
		}
		if !more {
			break
		}
	}
	return sb.String()
}

// ─────────────────────────────────────────────────────────────────────────────
// AppError — the canonical error type
// ─────────────────────────────────────────────────────────────────────────────

// AppError is the single structured error type used throughout Anchor. It
// satisfies the standard error interface and supports Go 1.13+ error
// wrapping so that errors.Is / errors.As / errors.Unwrap work transparently
// across every pipeline stage.
//
// Usage:
//
//	return errors.New(errors.CodeNotFound, "engram not found")
//	return errors.Wrap(repoErr, errors.CodeStoreQueryFailed, "failed to query atoms")
//	return errors.NotFound("compound with id XXXXXXXX not found").
//	           WithDetail("searched mirror root and store")
type AppError struct {
	// Code is the typed error code that uniquely identifies the failure category.
	Code ErrorCode

	// Message is the primary human-readable description of the error.
	Message string

	// Detail carries supplementary context (ids, byte ranges, query text)
	// that aids debugging without leaking sensitive internals.
	Detail string

	// Cause is the underlying error that triggered this AppError, enabling
	// errors.Is / errors.As traversal of the full error chain.
	Cause error

	// Stack contains the formatted call-stack captured at the point of error
	// creation. It is populated by New, Wrap and the convenience
	// factories. Stack is intentionally not included in
	// Error() output to keep messages clean; callers that need it can
	// inspect the field directly (e.g. structured logger middleware).
	Stack string
}

// ─────────────────────────────────────────────────────────────────────────────
// error interface implementation
// ─────────────────────────────────────────────────────────────────────────────

// Error implements the standard error interface.
// Format: "[<code_name>(<code_int>)] <message>: <detail>"
// The detail segment is omitted when Detail is empty.
func (e *AppError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("[%s(%d)] %s: %s", e.Code.String(), int(e.Code), e.Message, e.Detail)
	}
	return fmt.Sprintf("[%s(%d)] %s", e.Code.String(), int(e.Code), e.Message)
}

// Unwrap returns the underlying cause error, enabling errors.Is and errors.As
// to traverse the full error chain without any additional boilerplate at
// call sites.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// ─────────────────────────────────────────────────────────────────────────────
// Fluent builder methods
// ─────────────────────────────────────────────────────────────────────────────

// WithDetail returns a shallow copy of the receiver with Detail set to the
// supplied string. Safe to call on a nil pointer (returns nil).
func (e *AppError) WithDetail(detail string) *AppError {
	if e == nil {
		return nil
	}
	clone := *e
	clone.Detail = detail
	return &clone
}

// WithCause returns a shallow copy of the receiver with Cause set to err.
// Use this to attach a lower-level error to an already-constructed AppError
// without going through Wrap.
func (e *AppError) WithCause(err error) *AppError {
	if e == nil {
		return nil
	}
	clone := *e
	clone.Cause = err
	return &clone
}

// ─────────────────────────────────────────────────────────────────────────────
// Primary factory functions
// ─────────────────────────────────────────────────────────────────────────────

// New constructs a fresh AppError with the given code and message. A
// call-stack snapshot is captured automatically.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Stack:   captureStack(1),
	}
}

// Wrap constructs an AppError that wraps an existing error. If err is nil,
// Wrap returns nil so it can be used inline:
//
//	return errors.Wrap(store.FindAtom(ctx, id), errors.CodeStoreQueryFailed, "lookup failed")
//
// When err is already an *AppError and code is CodeUnknown, the original
// code is preserved, preventing loss of the original classification during
// cross-stage propagation.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	if code == CodeUnknown {
		var ae *AppError
		if errors.As(err, &ae) {
			code = ae.Code
		}
	}
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   err,
		Stack:   captureStack(1),
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Error-chain inspection helpers
// ─────────────────────────────────────────────────────────────────────────────

// IsCode reports whether any error in err's chain is an *AppError with the
// given code.
//
//	if errors.IsCode(err, errors.CodeWalkTimeout) { ... }
func IsCode(err error, code ErrorCode) bool {
	var ae *AppError
	for err != nil {
		if errors.As(err, &ae) && ae.Code == code {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}

// IsNotFound reports whether any error in err's chain is an *AppError with
// CodeNotFound.
func IsNotFound(err error) bool {
	return IsCode(err, CodeNotFound)
}

// GetCode extracts the ErrorCode from the first *AppError found in err's
// chain. If no *AppError is present, CodeUnknown is returned; if err is nil,
// CodeOK is returned.
//
// Useful in logging/metrics layers that need a single code to emit as a
// label without coupling to specific pipeline-stage errors.
func GetCode(err error) ErrorCode {
	if err == nil {
		return CodeOK
	}
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return CodeUnknown
}

// ─────────────────────────────────────────────────────────────────────────────
// HTTPStatus — status code mapping
//
// Anchor exposes no HTTP transport (see SPEC_FULL.md §6), but the mapping is
// kept because CLI exit-code selection and any future transport binding both
// need a stable code→severity classification, and the teacher codebase's
// convention is to carry this mapping alongside the code definitions rather
// than duplicate it at each call site.
// ─────────────────────────────────────────────────────────────────────────────

// HTTPStatus returns the conventional HTTP status code associated with an
// ErrorCode, for use by any future transport binding or by CLI exit-code
// selection.
func (c ErrorCode) HTTPStatus() int {
	switch c {
	case CodeOK:
		return http.StatusOK
	case CodeInvalidParam, CodeEmptyQuery, CodeNoSurvivingTokens, CodeAnchorCapExceeded:
		return http.StatusBadRequest
	case CodeNotFound, CodeSchemaMissing, CodeSourceUnavailable:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeDeadlineExceeded, CodeWalkTimeout:
		return http.StatusGatewayTimeout
	case CodeUnavailable, CodeStoreUnavailable, CodeDBConnectionError, CodeCacheError,
		CodeMessageQueueError, CodeStorageError:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Convenience factory functions for the most common error conditions
// ─────────────────────────────────────────────────────────────────────────────

// NotFound constructs a CodeNotFound AppError.
func NotFound(message string) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: message,
		Stack:   captureStack(1),
	}
}

// InvalidParam constructs a CodeInvalidParam AppError.
func InvalidParam(message string) *AppError {
	return &AppError{
		Code:    CodeInvalidParam,
		Message: message,
		Stack:   captureStack(1),
	}
}

// InvalidState constructs a CodeConflict AppError, used for state violations
// such as writing an engram whose compound no longer exists.
func InvalidState(message string) *AppError {
	return &AppError{
		Code:    CodeConflict,
		Message: message,
		Stack:   captureStack(1),
	}
}

// Internal constructs a CodeInternal AppError. Use this for unexpected
// failures where no more specific code applies. Always log the underlying
// cause before or after calling Internal.
func Internal(message string) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: message,
		Stack:   captureStack(1),
	}
}

// Conflict constructs a CodeConflict AppError.
func Conflict(message string) *AppError {
	return &AppError{
		Code:    CodeConflict,
		Message: message,
		Stack:   captureStack(1),
	}
}

// Unavailable constructs a CodeUnavailable AppError, for dependencies that
// cannot be reached at all.
func Unavailable(message string) *AppError {
	return &AppError{
		Code:    CodeUnavailable,
		Message: message,
		Stack:   captureStack(1),
	}
}

// DeadlineExceeded constructs a CodeDeadlineExceeded AppError.
func DeadlineExceeded(message string) *AppError {
	return &AppError{
		Code:    CodeDeadlineExceeded,
		Message: message,
		Stack:   captureStack(1),
	}
}
