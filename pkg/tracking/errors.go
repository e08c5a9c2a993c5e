// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-tracking.
//
// go-tracking is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package tracking

import (
	"errors"
	"fmt"
)

var (
	// Caller errors

	// ErrValidation is returned when an input is malformed or violates a domain rule.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when a tracking key has no records.
	ErrNotFound = errors.New("tracking record not found")

	// ErrAlreadySealed is returned when a write targets a sealed record.
	ErrAlreadySealed = errors.New("tracking record already sealed")

	// ErrUnsupported is returned for operations the ledger cannot answer, such as
	// listing in-progress tracking keys.
	ErrUnsupported = errors.New("operation not supported")

	// Infrastructure errors

	// ErrTransportUnavailable is returned when the ledger backend stays unreachable
	// after a reconnect attempt.
	ErrTransportUnavailable = errors.New("ledger transport unavailable")

	// ErrCollaborator is returned when a downstream service fails or answers with an
	// unexpected status.
	ErrCollaborator = errors.New("collaborator failure")
)

// CollaboratorError describes a failed call to a downstream service.
type CollaboratorError struct {
	Service    string
	StatusCode int
	Message    string
	Err        error
}

// NewCollaboratorError creates a CollaboratorError for the given service.
func NewCollaboratorError(service string, status int, message string, err error) *CollaboratorError {
	return &CollaboratorError{Service: service, StatusCode: status, Message: message, Err: err}
}

func (e *CollaboratorError) Error() string {
	msg := fmt.Sprintf("%s: %s", ErrCollaborator, e.Service)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" returned status %d", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *CollaboratorError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrCollaborator.
func (e *CollaboratorError) Is(target error) bool {
	return target == ErrCollaborator
}

// validationError wraps ErrValidation with a field-level reason.
func validationError(field, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrValidation, field, fmt.Sprintf(format, args...))
}
