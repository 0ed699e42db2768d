// Package api exposes the simulation over HTTP.
package api

import "github.com/pthm-cable/wealthsim/archive"

// HealthResponse is returned by GET /.
type HealthResponse struct {
	Message string `json:"message"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// RunListResponse is returned by GET /runs.
type RunListResponse struct {
	Runs []archive.RunRecord `json:"runs"`
}

// Response headers set by POST /simulate.
const (
	HeaderRequestID = "X-Request-ID"
	HeaderSeed      = "X-Seed"
	HeaderRunID     = "X-Run-ID"
)

// Error codes.
const (
	CodeInvalidConfig = "INVALID_CONFIG"
	CodeInvalidSeed   = "INVALID_SEED"
	CodeTooLarge      = "RUN_TOO_LARGE"
	CodeNonFinite     = "NON_FINITE_RESULT"
	CodeNotFound      = "NOT_FOUND"
	CodeInternal      = "INTERNAL"
)
