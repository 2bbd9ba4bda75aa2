// Package errors provides common domain error types for granola-mcp.
//
// This package defines sentinel errors for the conditions the query engine
// distinguishes: a missing or corrupt meeting source is fatal, while an
// unavailable calendar or classifier degrades the result instead of failing
// the call. Using typed errors enables consistent handling with errors.Is()
// checks.
//
// Usage:
//
//	import gmerrors "github.com/otherjamesbrown/granola-mcp/pkg/errors"
//
//	// Return a domain error
//	return nil, gmerrors.ErrSourceUnavailable
//
//	// Check for domain errors
//	if gmerrors.IsSourceUnavailable(err) {
//	    // no meaningful result exists, surface to the caller
//	}
package errors

import (
	"errors"
	"fmt"
)

// Domain errors - sentinel errors for the core error taxonomy.
var (
	// ErrSourceUnavailable indicates the meeting cache source is missing or
	// corrupt. This is fatal for the call: no meaningful result exists
	// without the source, and it is not retried.
	ErrSourceUnavailable = errors.New("meeting source unavailable")

	// ErrCalendarUnavailable indicates the calendar adapter has no
	// credentials or failed. Non-fatal: upcoming results degrade to empty.
	ErrCalendarUnavailable = errors.New("calendar unavailable")

	// ErrClassificationUnavailable indicates the remote classification tier
	// failed. Non-fatal: the record stays unresolved for a later retry.
	ErrClassificationUnavailable = errors.New("classification unavailable")

	// ErrInvalidArgument indicates a rejected tool argument (bad limit,
	// unknown pattern type, malformed meeting id).
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotFound indicates the requested meeting was not found.
	ErrNotFound = errors.New("not found")
)

// IsSourceUnavailable reports whether any error in err's chain is ErrSourceUnavailable.
func IsSourceUnavailable(err error) bool {
	return errors.Is(err, ErrSourceUnavailable)
}

// IsCalendarUnavailable reports whether any error in err's chain is ErrCalendarUnavailable.
func IsCalendarUnavailable(err error) bool {
	return errors.Is(err, ErrCalendarUnavailable)
}

// IsClassificationUnavailable reports whether any error in err's chain is ErrClassificationUnavailable.
func IsClassificationUnavailable(err error) bool {
	return errors.Is(err, ErrClassificationUnavailable)
}

// IsInvalidArgument reports whether any error in err's chain is ErrInvalidArgument.
func IsInvalidArgument(err error) bool {
	return errors.Is(err, ErrInvalidArgument)
}

// IsNotFound reports whether any error in err's chain is ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// InvalidArgumentf wraps ErrInvalidArgument with a descriptive message so the
// caller sees which argument was rejected and why.
func InvalidArgumentf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// ClassificationUnavailablef wraps ErrClassificationUnavailable with a
// descriptive message.
func ClassificationUnavailablef(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrClassificationUnavailable, fmt.Sprintf(format, args...))
}

// CalendarUnavailablef wraps ErrCalendarUnavailable with a descriptive message.
func CalendarUnavailablef(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrCalendarUnavailable, fmt.Sprintf(format, args...))
}
