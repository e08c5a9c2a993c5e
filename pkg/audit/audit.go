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

// Package audit records who changed the tracking ledger and how.
package audit

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/jeremyhahn/go-tracking/pkg/adapters"
)

// EventType represents the type of audit event
type EventType string

const (
	// EventRecordAccessed indicates a tracking record or report was read
	EventRecordAccessed EventType = "RECORD_ACCESSED"

	// EventRecordInitialized indicates a tracking session was opened
	EventRecordInitialized EventType = "RECORD_INITIALIZED"

	// EventRecordSealed indicates a tracking record was sealed
	EventRecordSealed EventType = "RECORD_SEALED"

	// EventRecordDeleted indicates a tracking record was deleted
	EventRecordDeleted EventType = "RECORD_DELETED"

	// EventRecordRecalculated indicates a record was rewritten from the content service
	EventRecordRecalculated EventType = "RECORD_RECALCULATED"

	// EventArtifactRecorded indicates an entry was added through the admin API
	EventArtifactRecorded EventType = "ARTIFACT_RECORDED"

	// EventRecordsExported indicates the ledger was exported
	EventRecordsExported EventType = "RECORDS_EXPORTED"

	// EventRecordsImported indicates records were imported from an archive
	EventRecordsImported EventType = "RECORDS_IMPORTED"

	// EventContentBatchDeleted indicates tracked content was deleted from a store
	EventContentBatchDeleted EventType = "CONTENT_BATCH_DELETED"
)

// Result represents the outcome of an audited operation
type Result string

const (
	// ResultSuccess indicates the operation succeeded
	ResultSuccess Result = "SUCCESS"

	// ResultFailure indicates the operation failed
	ResultFailure Result = "FAILURE"
)

// ResultOf maps an operation error to a Result.
func ResultOf(err error) Result {
	if err != nil {
		return ResultFailure
	}
	return ResultSuccess
}

// AuditEvent represents a single audit log entry
type AuditEvent struct {
	// Timestamp when the event occurred
	Timestamp time.Time `json:"timestamp"`

	// EventType categorizes the type of event
	EventType EventType `json:"event_type"`

	// TrackingID is the tracking session the event concerns
	TrackingID string `json:"tracking_id,omitempty"`

	// StoreKey is the store affected, for batch deletes
	StoreKey string `json:"store_key,omitempty"`

	// Action describes what was attempted
	Action string `json:"action"`

	// Result indicates success or failure
	Result Result `json:"result"`

	// ErrorMessage contains error details if the operation failed
	ErrorMessage string `json:"error_message,omitempty"`

	// Source is the client IP for HTTP requests or "cli"
	Source string `json:"source,omitempty"`

	// RequestID uniquely identifies the request
	RequestID string `json:"request_id,omitempty"`

	// Method is the HTTP method
	Method string `json:"method,omitempty"`

	// StatusCode is the HTTP status code
	StatusCode int `json:"status_code,omitempty"`

	// Count is the number of records or paths affected
	Count int `json:"count,omitempty"`

	// Duration is how long the operation took
	Duration time.Duration `json:"duration,omitempty"`

	// Metadata contains additional event-specific data
	Metadata map[string]any `json:"metadata,omitempty"`
}

// AuditLogger defines the interface for audit logging
type AuditLogger interface {
	// LogEvent logs a generic audit event
	LogEvent(ctx context.Context, event *AuditEvent) error

	// LogRecordMutation logs a change to one tracking record, or to many when
	// trackingID is empty
	LogRecordMutation(ctx context.Context, eventType EventType, trackingID, source string, count int, err error) error

	// LogBatchDelete logs a guarded batch delete
	LogBatchDelete(ctx context.Context, trackingID, storeKey, source string, paths int, err error) error

	// SetLevel sets the minimum audit level (for filtering)
	SetLevel(level adapters.LogLevel)

	// GetLevel returns the current audit level
	GetLevel() adapters.LogLevel
}

// OutputFormat specifies the format for audit log output
type OutputFormat string

const (
	// FormatJSON outputs audit logs in JSON format
	FormatJSON OutputFormat = "json"

	// FormatText outputs audit logs in human-readable text format
	FormatText OutputFormat = "text"
)

// Config holds configuration for the audit logger
type Config struct {
	// Enabled determines if audit logging is active
	Enabled bool

	// Format specifies the output format (JSON or text)
	Format OutputFormat

	// Level sets the minimum log level
	Level adapters.LogLevel

	// Output specifies where to write logs (defaults to stdout)
	Output io.Writer

	// IncludeMetadata determines if extra metadata should be logged
	IncludeMetadata bool
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Enabled:         true,
		Format:          FormatJSON,
		Level:           adapters.InfoLevel,
		Output:          os.Stdout,
		IncludeMetadata: true,
	}
}

// DefaultAuditLogger implements AuditLogger using slog
type DefaultAuditLogger struct {
	config *Config
	logger *slog.Logger
	level  adapters.LogLevel
}

// NewAuditLogger creates a new audit logger with the specified configuration
func NewAuditLogger(config *Config) AuditLogger {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Output == nil {
		config.Output = os.Stdout
	}

	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	var handler slog.Handler
	if config.Format == FormatText {
		handler = slog.NewTextHandler(config.Output, opts)
	} else {
		handler = slog.NewJSONHandler(config.Output, opts)
	}

	return &DefaultAuditLogger{
		config: config,
		logger: slog.New(handler),
		level:  config.Level,
	}
}

// LogEvent logs a generic audit event
func (a *DefaultAuditLogger) LogEvent(ctx context.Context, event *AuditEvent) error {
	if !a.config.Enabled || event == nil {
		return nil
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.RequestID == "" {
		event.RequestID = GetRequestID(ctx)
	}

	attrs := []slog.Attr{
		slog.Time("timestamp", event.Timestamp),
		slog.String("event_type", string(event.EventType)),
		slog.String("action", event.Action),
		slog.String("result", string(event.Result)),
	}
	if event.TrackingID != "" {
		attrs = append(attrs, slog.String("tracking_id", event.TrackingID))
	}
	if event.StoreKey != "" {
		attrs = append(attrs, slog.String("store_key", event.StoreKey))
	}
	if event.ErrorMessage != "" {
		attrs = append(attrs, slog.String("error", event.ErrorMessage))
	}
	if event.Source != "" {
		attrs = append(attrs, slog.String("source", event.Source))
	}
	if event.RequestID != "" {
		attrs = append(attrs, slog.String("request_id", event.RequestID))
	}
	if event.Method != "" {
		attrs = append(attrs, slog.String("method", event.Method))
	}
	if event.StatusCode > 0 {
		attrs = append(attrs, slog.Int("status_code", event.StatusCode))
	}
	if event.Count > 0 {
		attrs = append(attrs, slog.Int("count", event.Count))
	}
	if event.Duration > 0 {
		attrs = append(attrs, slog.Duration("duration", event.Duration))
	}
	if a.config.IncludeMetadata && len(event.Metadata) > 0 {
		metadataJSON, _ := json.Marshal(event.Metadata) //nolint:errcheck // marshaling simple map types is safe
		attrs = append(attrs, slog.String("metadata", string(metadataJSON)))
	}

	a.logger.LogAttrs(ctx, slog.LevelInfo, "Audit event: "+event.Action, attrs...)
	return nil
}

// LogRecordMutation logs a change to tracking records
func (a *DefaultAuditLogger) LogRecordMutation(ctx context.Context, eventType EventType, trackingID, source string, count int, err error) error {
	event := &AuditEvent{
		Timestamp:  time.Now(),
		EventType:  eventType,
		TrackingID: trackingID,
		Action:     actionFor(eventType),
		Result:     ResultOf(err),
		Source:     source,
		Count:      count,
	}
	if err != nil {
		event.ErrorMessage = err.Error()
	}
	return a.LogEvent(ctx, event)
}

// LogBatchDelete logs a guarded batch delete
func (a *DefaultAuditLogger) LogBatchDelete(ctx context.Context, trackingID, storeKey, source string, paths int, err error) error {
	event := &AuditEvent{
		Timestamp:  time.Now(),
		EventType:  EventContentBatchDeleted,
		TrackingID: trackingID,
		StoreKey:   storeKey,
		Action:     actionFor(EventContentBatchDeleted),
		Result:     ResultOf(err),
		Source:     source,
		Count:      paths,
	}
	if err != nil {
		event.ErrorMessage = err.Error()
	}
	return a.LogEvent(ctx, event)
}

func actionFor(eventType EventType) string {
	switch eventType {
	case EventRecordInitialized:
		return "init_record"
	case EventRecordSealed:
		return "seal_record"
	case EventRecordDeleted:
		return "delete_record"
	case EventRecordRecalculated:
		return "recalculate_record"
	case EventArtifactRecorded:
		return "record_artifact"
	case EventRecordsExported:
		return "export_records"
	case EventRecordsImported:
		return "import_records"
	case EventContentBatchDeleted:
		return "batch_delete"
	case EventRecordAccessed:
		return "get_record"
	default:
		return "modify_record"
	}
}

// SetLevel sets the minimum audit level
func (a *DefaultAuditLogger) SetLevel(level adapters.LogLevel) {
	a.level = level
}

// GetLevel returns the current audit level
func (a *DefaultAuditLogger) GetLevel() adapters.LogLevel {
	return a.level
}

// NoOpAuditLogger is an audit logger that discards all events
type NoOpAuditLogger struct {
	level adapters.LogLevel
}

// NewNoOpAuditLogger creates a new no-op audit logger
func NewNoOpAuditLogger() AuditLogger {
	return &NoOpAuditLogger{level: adapters.InfoLevel}
}

func (n *NoOpAuditLogger) LogEvent(ctx context.Context, event *AuditEvent) error {
	return nil
}

func (n *NoOpAuditLogger) LogRecordMutation(ctx context.Context, eventType EventType, trackingID, source string, count int, err error) error {
	return nil
}

func (n *NoOpAuditLogger) LogBatchDelete(ctx context.Context, trackingID, storeKey, source string, paths int, err error) error {
	return nil
}

func (n *NoOpAuditLogger) SetLevel(level adapters.LogLevel) {
	n.level = level
}

func (n *NoOpAuditLogger) GetLevel() adapters.LogLevel {
	return n.level
}
