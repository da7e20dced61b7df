package audit

import (
	"errors"
	"fmt"

	"auditlog/pkg/platform/sentinel"
)

// Sentinel errors for the audit pipeline. Stores wrap these with context so
// callers can classify failures with errors.Is.
var (
	// ErrBackendUnavailable means the primary store could not be reached or is not configured.
	ErrBackendUnavailable = fmt.Errorf("audit backend %w", sentinel.ErrUnavailable)
	// ErrBackendPartialFailure means a pipelined write raised part-way through.
	ErrBackendPartialFailure = errors.New("audit backend pipeline failed")
	// ErrFallbackWrite means the fallback file could not be written.
	ErrFallbackWrite = errors.New("audit fallback write failed")
	// ErrClosed is returned once the engine has been shut down.
	ErrClosed = fmt.Errorf("audit engine closed: %w", sentinel.ErrInvalidState)
	// ErrMalformedEntry means a persisted entry could not be decoded.
	ErrMalformedEntry = errors.New("malformed audit entry")
)
