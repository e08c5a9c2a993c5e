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

package audit

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Context keys for storing audit logger and request info
type contextKey string

const (
	// AuditLoggerKey is the context key for the audit logger
	AuditLoggerKey contextKey = "audit_logger"

	// RequestIDKey is the context key for the request ID
	RequestIDKey contextKey = "request_id"
)

// GetAuditLogger retrieves the audit logger from the context
func GetAuditLogger(ctx context.Context) AuditLogger {
	if logger, ok := ctx.Value(AuditLoggerKey).(AuditLogger); ok {
		return logger
	}
	return NewNoOpAuditLogger()
}

// GetRequestID retrieves the request ID from the context
func GetRequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// WithRequestID returns a context carrying id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

// AuditMiddleware creates a Gin middleware for audit logging
func AuditMiddleware(auditLogger AuditLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := GetRequestID(c.Request.Context())
		if requestID == "" {
			requestID = c.GetHeader("X-Request-ID")
		}
		if requestID == "" {
			requestID = uuid.New().String()
			c.Header("X-Request-ID", requestID)
		}

		startTime := time.Now()

		ctx := context.WithValue(c.Request.Context(), AuditLoggerKey, auditLogger)
		c.Request = c.Request.WithContext(WithRequestID(ctx, requestID))
		c.Set(string(RequestIDKey), requestID)

		c.Next()

		route := c.FullPath()
		method := c.Request.Method
		if !shouldAuditRequest(route, method) {
			return
		}

		statusCode := c.Writer.Status()
		result := ResultSuccess
		errorMessage := ""
		if statusCode >= 400 {
			result = ResultFailure
			if len(c.Errors) > 0 {
				errorMessage = c.Errors.Last().Error()
			}
		}

		eventType := determineEventType(method, route)
		event := &AuditEvent{
			Timestamp:    startTime,
			EventType:    eventType,
			TrackingID:   c.Param("id"),
			Action:       actionFor(eventType),
			Result:       result,
			ErrorMessage: errorMessage,
			Source:       c.ClientIP(),
			RequestID:    requestID,
			Method:       method,
			StatusCode:   statusCode,
			Duration:     time.Since(startTime),
			Metadata:     map[string]any{"path": c.Request.URL.Path},
		}
		if v, ok := c.Get(annotationKey); ok {
			if a, ok := v.(annotation); ok {
				if event.TrackingID == "" {
					event.TrackingID = a.trackingID
				}
				event.StoreKey = a.storeKey
				event.Count = a.count
			}
		}

		_ = auditLogger.LogEvent(c.Request.Context(), event) // #nosec G104 -- Audit logging errors are logged internally, should not block operations
	}
}

const annotationKey = "audit_annotation"

type annotation struct {
	trackingID string
	storeKey   string
	count      int
}

// Annotate attaches details only the handler knows to the request's audit
// event.
func Annotate(c *gin.Context, trackingID, storeKey string, count int) {
	c.Set(annotationKey, annotation{trackingID: trackingID, storeKey: storeKey, count: count})
}

// determineEventType maps a route template to an event type.
func determineEventType(method, route string) EventType {
	switch {
	case strings.HasSuffix(route, "/batch/delete"):
		return EventContentBatchDeleted
	case strings.HasSuffix(route, "/report/import"):
		return EventRecordsImported
	case strings.HasSuffix(route, "/report/export"):
		return EventRecordsExported
	case strings.HasSuffix(route, "/record/recalculate"):
		return EventRecordRecalculated
	case strings.Contains(route, "/artifactRecord/"):
		return EventArtifactRecorded
	case strings.HasSuffix(route, "/record"):
		switch method {
		case "POST":
			return EventRecordSealed
		case "PUT":
			return EventRecordInitialized
		case "DELETE":
			return EventRecordDeleted
		}
	}
	return EventRecordAccessed
}

// shouldAuditRequest skips unmatched routes, probes and the event feed.
func shouldAuditRequest(route, method string) bool {
	if route == "" || method == "OPTIONS" {
		return false
	}
	switch route {
	case "/health", "/metrics", "/api/folo/events":
		return false
	}
	return true
}
