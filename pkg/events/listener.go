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

// Package events turns repository file events into ledger entries.
package events

import (
	"context"
	"strings"

	"github.com/jeremyhahn/go-tracking/pkg/adapters"
	"github.com/jeremyhahn/go-tracking/pkg/tracking"
)

// Metadata keys read from FileEvent.Metadata.
const (
	MetaOriginPath    = "ORIGIN_PATH"
	MetaAccessChannel = "ACCESS_CHANNEL"
)

// selfTrackingPath marks requests the ledger's own API made through the
// generic proxy; they were already tracked once.
const selfTrackingPath = "api/folo/track"

// EventType is the kind of file event.
type EventType string

const (
	EventAccess  EventType = "ACCESS"
	EventStorage EventType = "STORAGE"
)

// Operation is the transfer operation behind a storage event.
type Operation string

const (
	OperationUpload   Operation = "UPLOAD"
	OperationDownload Operation = "DOWNLOAD"
)

// FileEvent is a content access or storage notification from the
// repository.
type FileEvent struct {
	EventType      EventType         `json:"eventType"`
	SessionID      string            `json:"sessionId"`
	StoreKey       string            `json:"storeKey"`
	TargetPath     string            `json:"targetPath"`
	SourceLocation string            `json:"sourceLocation,omitempty"`
	SourcePath     string            `json:"sourcePath,omitempty"`
	Size           int64             `json:"size"`
	MD5            string            `json:"md5,omitempty"`
	SHA1           string            `json:"sha1,omitempty"`
	Checksum       string            `json:"checksum,omitempty"`
	Operation      Operation         `json:"operation,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// Result is what the listener did with an event.
type Result string

const (
	Recorded Result = "recorded"
	Skipped  Result = "skipped"
	Failed   Result = "failed"
)

// Recorder stores entries and reports whether they were written.
type Recorder interface {
	RecordArtifact(ctx context.Context, entry tracking.TrackedContentEntry) bool
}

// Listener records downloads from access events and uploads from storage
// events.
type Listener struct {
	recorder          Recorder
	trackGroupContent bool
	logger            adapters.Logger
}

// NewListener creates a Listener. Content served directly from group stores
// is ignored unless trackGroupContent is set.
func NewListener(recorder Recorder, trackGroupContent bool, logger adapters.Logger) *Listener {
	if logger == nil {
		logger = adapters.NewNoOpLogger()
	}
	return &Listener{recorder: recorder, trackGroupContent: trackGroupContent, logger: logger}
}

// Handle processes one event. Failures are logged and reported as Failed;
// they never propagate.
func (l *Listener) Handle(ctx context.Context, ev FileEvent) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error(ctx, "Failed to handle file event",
				adapters.F("event_type", ev.EventType), adapters.F("panic", r))
			result = Failed
		}
	}()

	switch ev.EventType {
	case EventAccess:
		return l.handleAccess(ctx, ev)
	case EventStorage:
		return l.handleStorage(ctx, ev)
	default:
		l.logger.Debug(ctx, "Ignoring file event", adapters.F("event_type", ev.EventType))
		return Skipped
	}
}

func (l *Listener) handleAccess(ctx context.Context, ev FileEvent) Result {
	originPath := ev.Metadata[MetaOriginPath]
	if strings.Contains(originPath, selfTrackingPath) {
		l.logger.Debug(ctx, "Not tracking request made by the ledger itself",
			adapters.F("path", tracking.SanitizeForLog(originPath)))
		return Skipped
	}

	path := ev.TargetPath
	if originPath != "" {
		path = originPath
	}
	return l.record(ctx, ev, path, tracking.EffectDownload)
}

func (l *Listener) handleStorage(ctx context.Context, ev FileEvent) Result {
	if ev.Operation != OperationUpload {
		l.logger.Debug(ctx, "Not a client upload, skipping storage event",
			adapters.F("operation", ev.Operation))
		return Skipped
	}
	return l.record(ctx, ev, ev.TargetPath, tracking.EffectUpload)
}

func (l *Listener) record(ctx context.Context, ev FileEvent, path string, effect tracking.StoreEffect) Result {
	if strings.TrimSpace(ev.SessionID) == "" {
		l.logger.Debug(ctx, "No tracking key, not recording",
			adapters.F("path", tracking.SanitizeForLog(ev.TargetPath)))
		return Skipped
	}
	if strings.TrimSpace(ev.StoreKey) == "" {
		l.logger.Debug(ctx, "No store key, not recording",
			adapters.F("path", tracking.SanitizeForLog(ev.TargetPath)))
		return Skipped
	}

	log := l.logger.WithFields(
		adapters.F("tracking_id", tracking.SanitizeForLog(ev.SessionID)),
		adapters.F("path", tracking.SanitizeForLog(path)),
		adapters.F("effect", effect))

	storeKey, err := tracking.ParseStoreKey(ev.StoreKey)
	if err != nil {
		log.Error(ctx, "Failed to record entry", adapters.Err(err))
		return Failed
	}
	if storeKey.Type == tracking.StoreTypeGroup && !l.trackGroupContent {
		log.Debug(ctx, "Not tracking content stored directly in group",
			adapters.F("store", storeKey.String()))
		return Skipped
	}

	channel, err := tracking.ParseAccessChannel(ev.Metadata[MetaAccessChannel])
	if err != nil {
		log.Error(ctx, "Failed to record entry", adapters.Err(err))
		return Failed
	}

	var originURL string
	if ev.SourceLocation != "" && ev.SourcePath != "" {
		originURL, err = tracking.JoinURL(ev.SourceLocation, ev.SourcePath)
		if err != nil {
			log.Error(ctx, "Cannot build origin URL", adapters.Err(err))
			return Failed
		}
	}

	entry := tracking.TrackedContentEntry{
		TrackingKey:   tracking.TrackingKey(ev.SessionID),
		StoreKey:      storeKey,
		AccessChannel: channel,
		OriginURL:     originURL,
		Path:          path,
		Effect:        effect,
		Size:          ev.Size,
		MD5:           ev.MD5,
		SHA1:          ev.SHA1,
		SHA256:        ev.Checksum,
	}
	if !l.recorder.RecordArtifact(ctx, entry) {
		return Failed
	}
	log.Debug(ctx, "Tracked content", adapters.F("store", storeKey.String()))
	return Recorded
}
