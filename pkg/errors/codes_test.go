// Package errors_test provides comprehensive table-driven unit tests for the
// error code definitions in pkg/errors/codes.go.
package errors_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/RSBalchII/anchor/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// Test data — exhaustive table of every declared ErrorCode
// ─────────────────────────────────────────────────────────────────────────────

type codeEntry struct {
	code           errors.ErrorCode
	expectedString string
	expectedHTTP   int
}

// allCodes enumerates every ErrorCode constant defined in codes.go together
// with its expected String() output and expected HTTPStatus() mapping.
var allCodes = []codeEntry{
	// ── General ──────────────────────────────────────────────────────────────
	{errors.CodeOK, "OK", http.StatusOK},
	{errors.CodeUnknown, "UNKNOWN", http.StatusInternalServerError},
	{errors.CodeInvalidParam, "INVALID_PARAM", http.StatusBadRequest},
	{errors.CodeNotFound, "NOT_FOUND", http.StatusNotFound},
	{errors.CodeConflict, "CONFLICT", http.StatusConflict},
	{errors.CodeInternal, "INTERNAL_ERROR", http.StatusInternalServerError},
	{errors.CodeDeadlineExceeded, "DEADLINE_EXCEEDED", http.StatusGatewayTimeout},
	{errors.CodeUnavailable, "UNAVAILABLE", http.StatusServiceUnavailable},

	// ── Parser ────────────────────────────────────────────────────────────────
	{errors.CodeEmptyQuery, "EMPTY_QUERY", http.StatusBadRequest},
	{errors.CodeNoSurvivingTokens, "NO_SURVIVING_TOKENS", http.StatusBadRequest},

	// ── Store ─────────────────────────────────────────────────────────────────
	{errors.CodeStoreUnavailable, "STORE_UNAVAILABLE", http.StatusServiceUnavailable},
	{errors.CodeStoreQueryFailed, "STORE_QUERY_FAILED", http.StatusInternalServerError},
	{errors.CodeSchemaMissing, "SCHEMA_MISSING", http.StatusNotFound},

	// ── Walk ──────────────────────────────────────────────────────────────────
	{errors.CodeWalkTimeout, "WALK_TIMEOUT", http.StatusGatewayTimeout},
	{errors.CodeAnchorCapExceeded, "ANCHOR_CAP_EXCEEDED", http.StatusBadRequest},

	// ── Inflator ──────────────────────────────────────────────────────────────
	{errors.CodeSourceUnavailable, "SOURCE_UNAVAILABLE", http.StatusNotFound},
	{errors.CodeDecodingFailed, "DECODING_FAILED", http.StatusInternalServerError},

	// ── Assembler / fingerprint ───────────────────────────────────────────────
	{errors.CodeBudgetExhausted, "BUDGET_EXHAUSTED", http.StatusInternalServerError},
	{errors.CodeFingerprintParseFailed, "FINGERPRINT_PARSE_FAILED", http.StatusInternalServerError},

	// ── Infrastructure ────────────────────────────────────────────────────────
	{errors.CodeDBConnectionError, "DB_CONNECTION_ERROR", http.StatusServiceUnavailable},
	{errors.CodeCacheError, "CACHE_ERROR", http.StatusServiceUnavailable},
	{errors.CodeMessageQueueError, "MESSAGE_QUEUE_ERROR", http.StatusServiceUnavailable},
	{errors.CodeStorageError, "STORAGE_ERROR", http.StatusServiceUnavailable},
	{errors.CodeSerialization, "SERIALIZATION_ERROR", http.StatusInternalServerError},
}

// ─────────────────────────────────────────────────────────────────────────────
// TestErrorCode_String
// ─────────────────────────────────────────────────────────────────────────────

func TestErrorCode_String(t *testing.T) {
	t.Parallel()

	for _, tc := range allCodes {
		tc := tc
		t.Run(tc.expectedString, func(t *testing.T) {
			t.Parallel()

			got := tc.code.String()

			assert.NotEmpty(t, got,
				"String() for code %d must not be empty", int(tc.code))
			assert.Equal(t, tc.expectedString, got,
				"String() for code %d returned unexpected value", int(tc.code))
		})
	}
}

func TestErrorCode_String_Unknown(t *testing.T) {
	t.Parallel()

	unknownCodes := []errors.ErrorCode{
		errors.ErrorCode(99999),
		errors.ErrorCode(-1),
		errors.ErrorCode(1),
		errors.ErrorCode(12345),
	}

	for _, code := range unknownCodes {
		code := code
		t.Run("", func(t *testing.T) {
			t.Parallel()
			got := code.String()
			assert.NotEmpty(t, got,
				"String() must never return an empty string even for unknown codes")
			assert.Equal(t, "UNKNOWN_CODE", got,
				"String() for undeclared code %d should return UNKNOWN_CODE", int(code))
		})
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// TestErrorCode_HTTPStatus
// ─────────────────────────────────────────────────────────────────────────────

func TestErrorCode_HTTPStatus(t *testing.T) {
	t.Parallel()

	for _, tc := range allCodes {
		tc := tc
		t.Run(tc.expectedString, func(t *testing.T) {
			t.Parallel()

			got := tc.code.HTTPStatus()

			assert.Equal(t, tc.expectedHTTP, got,
				"HTTPStatus() for %s (code %d) returned %d, want %d",
				tc.expectedString, int(tc.code), got, tc.expectedHTTP)
		})
	}
}

func TestErrorCode_HTTPStatus_SpecificMappings(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		code errors.ErrorCode
		want int
	}{
		{"NotFound→404", errors.CodeNotFound, http.StatusNotFound},
		{"InvalidParam→400", errors.CodeInvalidParam, http.StatusBadRequest},
		{"Internal→500", errors.CodeInternal, http.StatusInternalServerError},
		{"WalkTimeout→504", errors.CodeWalkTimeout, http.StatusGatewayTimeout},
		{"StoreUnavailable→503", errors.CodeStoreUnavailable, http.StatusServiceUnavailable},
		{"DBConnectionError→503", errors.CodeDBConnectionError, http.StatusServiceUnavailable},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, tc.code.HTTPStatus(),
				"HTTPStatus() mismatch for %s", tc.name)
		})
	}
}

func TestErrorCode_HTTPStatus_Unknown(t *testing.T) {
	t.Parallel()

	unknownCodes := []errors.ErrorCode{
		errors.ErrorCode(99999),
		errors.ErrorCode(-1),
		errors.ErrorCode(1),
	}

	for _, code := range unknownCodes {
		code := code
		t.Run("", func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, http.StatusInternalServerError, code.HTTPStatus(),
				"HTTPStatus() for undeclared code %d should default to 500", int(code))
		})
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// TestErrorCode_AllCodesHaveValidHTTPStatus guards against typos such as
// returning 40 instead of 400.
// ─────────────────────────────────────────────────────────────────────────────
func TestErrorCode_AllCodesHaveValidHTTPStatus(t *testing.T) {
	t.Parallel()

	validStatuses := map[int]bool{
		http.StatusOK:                  true,
		http.StatusBadRequest:          true,
		http.StatusNotFound:            true,
		http.StatusConflict:            true,
		http.StatusInternalServerError: true,
		http.StatusServiceUnavailable:  true,
		http.StatusGatewayTimeout:      true,
	}

	for _, tc := range allCodes {
		tc := tc
		t.Run(tc.expectedString, func(t *testing.T) {
			t.Parallel()
			status := tc.code.HTTPStatus()
			assert.True(t, validStatuses[status],
				"HTTPStatus() for %s returned unexpected status code %d",
				tc.expectedString, status)
		})
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// TestErrorCode_DomainRanges validates that each error code integer value
// falls within the expected numeric range for its pipeline stage. This
// prevents accidental cross-stage code collisions as the codebase grows.
// ─────────────────────────────────────────────────────────────────────────────
func TestErrorCode_DomainRanges(t *testing.T) {
	t.Parallel()

	type rangeEntry struct {
		code errors.ErrorCode
		low  int
		high int
		name string
	}

	ranges := []rangeEntry{
		// General
		{errors.CodeOK, 0, 0, "CodeOK"},
		{errors.CodeUnknown, 10000, 10999, "CodeUnknown"},
		{errors.CodeInvalidParam, 10000, 10999, "CodeInvalidParam"},
		{errors.CodeNotFound, 10000, 10999, "CodeNotFound"},
		{errors.CodeConflict, 10000, 10999, "CodeConflict"},
		{errors.CodeInternal, 10000, 10999, "CodeInternal"},
		{errors.CodeDeadlineExceeded, 10000, 10999, "CodeDeadlineExceeded"},
		{errors.CodeUnavailable, 10000, 10999, "CodeUnavailable"},
		// Parser
		{errors.CodeEmptyQuery, 20000, 29999, "CodeEmptyQuery"},
		{errors.CodeNoSurvivingTokens, 20000, 29999, "CodeNoSurvivingTokens"},
		// Store
		{errors.CodeStoreUnavailable, 30000, 39999, "CodeStoreUnavailable"},
		{errors.CodeStoreQueryFailed, 30000, 39999, "CodeStoreQueryFailed"},
		{errors.CodeSchemaMissing, 30000, 39999, "CodeSchemaMissing"},
		// Walk
		{errors.CodeWalkTimeout, 40000, 49999, "CodeWalkTimeout"},
		{errors.CodeAnchorCapExceeded, 40000, 49999, "CodeAnchorCapExceeded"},
		// Inflator
		{errors.CodeSourceUnavailable, 50000, 59999, "CodeSourceUnavailable"},
		{errors.CodeDecodingFailed, 50000, 59999, "CodeDecodingFailed"},
		// Assembler / fingerprint
		{errors.CodeBudgetExhausted, 60000, 69999, "CodeBudgetExhausted"},
		{errors.CodeFingerprintParseFailed, 60000, 69999, "CodeFingerprintParseFailed"},
		// Infrastructure
		{errors.CodeDBConnectionError, 70000, 79999, "CodeDBConnectionError"},
		{errors.CodeCacheError, 70000, 79999, "CodeCacheError"},
		{errors.CodeMessageQueueError, 70000, 79999, "CodeMessageQueueError"},
		{errors.CodeStorageError, 70000, 79999, "CodeStorageError"},
		{errors.CodeSerialization, 70000, 79999, "CodeSerialization"},
	}

	for _, r := range ranges {
		r := r
		t.Run(r.name, func(t *testing.T) {
			t.Parallel()
			v := int(r.code)
			assert.GreaterOrEqual(t, v, r.low,
				"%s value %d is below domain lower bound %d", r.name, v, r.low)
			assert.LessOrEqual(t, v, r.high,
				"%s value %d is above domain upper bound %d", r.name, v, r.high)
		})
	}
}
