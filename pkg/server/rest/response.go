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

package rest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jeremyhahn/go-tracking/pkg/adapters"
	"github.com/jeremyhahn/go-tracking/pkg/guard"
	"github.com/jeremyhahn/go-tracking/pkg/tracking"
)

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`
	ErrorID string `json:"errorId,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

// ImportResponse reports how many records an import wrote.
type ImportResponse struct {
	Imported int `json:"imported"`
}

// EventResponse reports what the listener did with an event.
type EventResponse struct {
	Result string `json:"result"`
}

// RespondWithError sends a standard error response
func RespondWithError(c *gin.Context, code int, message string) {
	c.JSON(code, ErrorResponse{
		Error:   http.StatusText(code),
		Code:    code,
		Message: message,
	})
}

// StatusFor maps a domain error to its HTTP status.
func StatusFor(err error) int {
	// Collaborator and transport failures may wrap a caller-side sentinel
	// from the remote answer, so they are matched first.
	switch {
	case errors.Is(err, tracking.ErrCollaborator):
		return http.StatusBadGateway
	case errors.Is(err, tracking.ErrTransportUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, tracking.ErrValidation), errors.Is(err, guard.ErrDeletionDenied):
		return http.StatusBadRequest
	case errors.Is(err, tracking.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, tracking.ErrAlreadySealed):
		return http.StatusConflict
	case errors.Is(err, tracking.ErrUnsupported):
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

// respondWithDomainError logs err under a fresh error id and sends the
// mapped status. Server-side failures hide their detail from the caller.
func respondWithDomainError(c *gin.Context, logger adapters.Logger, err error) {
	code := StatusFor(err)
	errorID := uuid.NewString()

	fields := []adapters.Field{
		adapters.F("error_id", errorID),
		adapters.F("status", code),
		adapters.F("path", c.Request.URL.Path),
		adapters.Err(err),
	}
	message := err.Error()
	if code >= http.StatusInternalServerError {
		logger.Error(c.Request.Context(), "Request failed", fields...)
		if code == http.StatusInternalServerError {
			message = "internal error"
		}
	} else {
		logger.Debug(c.Request.Context(), "Request rejected", fields...)
	}

	_ = c.Error(err) // #nosec G104 -- recorded for the audit middleware
	c.JSON(code, ErrorResponse{
		Error:   http.StatusText(code),
		Code:    code,
		Message: message,
		ErrorID: errorID,
	})
}
