package domain

import "github.com/pkg/errors"

// Error kinds a cycle can end with. Components wrap them, callers match with errors.Is.
var (
	// ErrMalformedDecision structured output present but unusable.
	ErrMalformedDecision = errors.New("malformed decision")
	// ErrQuoteUnavailable book quote could not be fetched.
	ErrQuoteUnavailable = errors.New("quote unavailable")
	// ErrExecutionFailure exchange rejected or failed the order.
	ErrExecutionFailure = errors.New("execution failure")
	// ErrFatalStartup required credentials or configuration missing at start.
	ErrFatalStartup = errors.New("fatal startup error")
)
