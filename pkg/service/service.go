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

// Package service orchestrates the ledger: it records and seals tracking
// sessions, falls back to the legacy table on reads, moves records in and out
// of bulk archives and reconciles records with the content service.
package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/jeremyhahn/go-tracking/pkg/adapters"
	"github.com/jeremyhahn/go-tracking/pkg/archive"
	"github.com/jeremyhahn/go-tracking/pkg/ledger"
	"github.com/jeremyhahn/go-tracking/pkg/metrics"
	"github.com/jeremyhahn/go-tracking/pkg/tracking"
)

// ErrNoContentService is returned by operations that need the content
// service when none is configured.
var ErrNoContentService = fmt.Errorf("%w: content service not configured", tracking.ErrUnsupported)

// ContentService re-derives artifact metadata and bundles artifacts.
type ContentService interface {
	Recalculate(ctx context.Context, transfers []tracking.ContentTransfer) ([]tracking.TrackedContentEntry, error)
	RepositoryZip(ctx context.Context, content *tracking.TrackedContent) (io.ReadCloser, error)
}

// IDKind selects which tracking ids TrackingIDs reports.
type IDKind string

const (
	IDsSealed     IDKind = "sealed"
	IDsInProgress IDKind = "in_progress"
	IDsAll        IDKind = "all"
	IDsLegacy     IDKind = "legacy"
)

// ParseIDKind parses sealed, in_progress, all or legacy.
func ParseIDKind(s string) (IDKind, error) {
	switch k := IDKind(s); k {
	case IDsSealed, IDsInProgress, IDsAll, IDsLegacy:
		return k, nil
	default:
		return "", fmt.Errorf("%w: unknown id type %q", tracking.ErrValidation, s)
	}
}

// TrackingIDs is the answer to an id listing. InProgress is never populated.
type TrackingIDs struct {
	InProgress []string `json:"inProgress,omitempty" yaml:"inProgress,omitempty"`
	Sealed     []string `json:"sealed,omitempty" yaml:"sealed,omitempty"`
}

// IsEmpty reports whether no ids were found.
func (t TrackingIDs) IsEmpty() bool {
	return len(t.InProgress) == 0 && len(t.Sealed) == 0
}

// Config wires the service's collaborators. Only Store is required.
type Config struct {
	Store ledger.Store

	// Content is needed by Recalculate and RepositoryZip.
	Content ContentService

	// ContentBaseURL prefixes the localUrl of rendered entries.
	ContentBaseURL string

	Logger  adapters.Logger
	Metrics *metrics.Metrics
}

// Service implements the ledger operations used by the admin surface, the
// CLI and event ingestion.
type Service struct {
	store          ledger.Store
	content        ContentService
	contentBaseURL string
	logger         adapters.Logger
	metrics        *metrics.Metrics
}

// New creates a Service.
func New(cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = adapters.NewNoOpLogger()
	}
	return &Service{
		store:          cfg.Store,
		content:        cfg.Content,
		contentBaseURL: cfg.ContentBaseURL,
		logger:         logger,
		metrics:        cfg.Metrics,
	}
}

// Record writes entry and returns the store outcome. A sealed session is
// reported as tracking.ErrAlreadySealed alongside ledger.AlreadySealed.
func (s *Service) Record(ctx context.Context, entry tracking.TrackedContentEntry) (ledger.PutOutcome, error) {
	if err := entry.Validate(); err != nil {
		s.metrics.RecordPut(string(entry.Effect), "invalid")
		return ledger.Recorded, err
	}

	start := time.Now()
	outcome, err := s.store.Put(ctx, entry)
	s.metrics.ObserveStore("put", start)
	if err != nil {
		s.metrics.RecordPut(string(entry.Effect), "error")
		return outcome, err
	}

	s.metrics.RecordPut(string(entry.Effect), outcome.String())
	if outcome == ledger.AlreadySealed {
		return outcome, fmt.Errorf("%w: %s", tracking.ErrAlreadySealed, entry.TrackingKey)
	}
	return outcome, nil
}

// RecordArtifact records entry and reports whether it was written. Failures
// are logged, never returned, since event ingestion must keep going.
func (s *Service) RecordArtifact(ctx context.Context, entry tracking.TrackedContentEntry) bool {
	outcome, err := s.Record(ctx, entry)
	switch {
	case errors.Is(err, tracking.ErrAlreadySealed):
		s.logger.Debug(ctx, "Tracking record already sealed, entry skipped",
			adapters.F("tracking_id", tracking.SanitizeForLog(entry.TrackingKey.ID())),
			adapters.F("store", entry.StoreKey.String()),
			adapters.F("path", tracking.SanitizeForLog(entry.Path)))
		return false
	case err != nil:
		s.logger.Error(ctx, "Failed to record entry",
			adapters.F("tracking_id", tracking.SanitizeForLog(entry.TrackingKey.ID())),
			adapters.F("store", entry.StoreKey.String()),
			adapters.F("path", tracking.SanitizeForLog(entry.Path)),
			adapters.F("effect", entry.Effect),
			adapters.Err(err))
		return false
	}
	return outcome == ledger.Recorded
}

// Seal closes the session and returns its content. Unknown ids seal to an
// empty record.
func (s *Service) Seal(ctx context.Context, id string) (*tracking.TrackedContent, error) {
	key, err := tracking.NewTrackingKey(id)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	content, err := s.store.Seal(ctx, key)
	s.metrics.ObserveStore("seal", start)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordSeal()
	s.logger.Info(ctx, "Tracking record sealed",
		adapters.F("tracking_id", key.ID()),
		adapters.F("uploads", len(content.Uploads)),
		adapters.F("downloads", len(content.Downloads)))
	return content, nil
}

// Get returns the current record of id, falling back to the legacy table.
func (s *Service) Get(ctx context.Context, id string) (*tracking.TrackedContent, error) {
	key, err := tracking.NewTrackingKey(id)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	content, err := s.store.Get(ctx, key)
	s.metrics.ObserveStore("get", start)
	if !errors.Is(err, tracking.ErrNotFound) {
		return content, err
	}

	s.logger.Debug(ctx, "Tracking record not in current table, trying legacy",
		adapters.F("tracking_id", key.ID()))
	return s.getLegacy(ctx, key)
}

// GetLegacy returns the legacy record of id.
func (s *Service) GetLegacy(ctx context.Context, id string) (*tracking.TrackedContent, error) {
	key, err := tracking.NewTrackingKey(id)
	if err != nil {
		return nil, err
	}
	return s.getLegacy(ctx, key)
}

func (s *Service) getLegacy(ctx context.Context, key tracking.TrackingKey) (*tracking.TrackedContent, error) {
	start := time.Now()
	defer s.metrics.ObserveStore("get_legacy", start)
	return s.store.GetLegacy(ctx, key)
}

// Delete removes the current record of id. Deleting an unknown id succeeds.
func (s *Service) Delete(ctx context.Context, id string) error {
	key, err := tracking.NewTrackingKey(id)
	if err != nil {
		return err
	}

	start := time.Now()
	err = s.store.Delete(ctx, key)
	s.metrics.ObserveStore("delete", start)
	if err != nil {
		return err
	}
	s.metrics.RecordDelete()
	s.logger.Info(ctx, "Tracking record deleted", adapters.F("tracking_id", key.ID()))
	return nil
}

// TrackingIDs lists ids of the given kind. In-progress ids are not tracked,
// so in_progress and all fail with tracking.ErrUnsupported.
func (s *Service) TrackingIDs(ctx context.Context, kind IDKind) (TrackingIDs, error) {
	var (
		keys []tracking.TrackingKey
		err  error
	)
	switch kind {
	case IDsInProgress, IDsAll:
		return TrackingIDs{}, fmt.Errorf("%w: listing in-progress tracking ids", tracking.ErrUnsupported)
	case IDsSealed:
		keys, err = s.store.SealedKeys(ctx)
	case IDsLegacy:
		keys, err = s.store.LegacyKeys(ctx)
	default:
		return TrackingIDs{}, fmt.Errorf("%w: unknown id type %q", tracking.ErrValidation, kind)
	}
	if err != nil {
		return TrackingIDs{}, err
	}
	return TrackingIDs{Sealed: sortedIDs(keys)}, nil
}

func sortedIDs(keys []tracking.TrackingKey) []string {
	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		ids = append(ids, k.ID())
	}
	sort.Strings(ids)
	return ids
}

// ExportAll writes an archive of every record in the current table to w and
// returns the number of records written.
func (s *Service) ExportAll(ctx context.Context, w io.Writer) (int, error) {
	keys, err := s.store.SealedKeys(ctx)
	if err != nil {
		return 0, err
	}

	contents := make([]*tracking.TrackedContent, 0, len(keys))
	for _, key := range keys {
		content, err := s.store.Get(ctx, key)
		if errors.Is(err, tracking.ErrNotFound) {
			// Deleted between listing and reading.
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("export %s: %w", key, err)
		}
		contents = append(contents, content)
	}

	if err := archive.Write(w, contents); err != nil {
		return 0, err
	}
	s.logger.Info(ctx, "Exported tracking records", adapters.F("records", len(contents)))
	return len(contents), nil
}

// ExportBytes is ExportAll into memory.
func (s *Service) ExportBytes(ctx context.Context) ([]byte, int, error) {
	var buf bytes.Buffer
	n, err := s.ExportAll(ctx, &buf)
	if err != nil {
		return nil, 0, err
	}
	return buf.Bytes(), n, nil
}

// ImportAll replaces the ledger records found in archive data. A malformed
// archive is rejected before anything is written; once writing starts each
// record is committed on its own.
func (s *Service) ImportAll(ctx context.Context, data []byte) (int, error) {
	contents, err := archive.ReadBytes(data)
	if err != nil {
		return 0, err
	}

	imported := 0
	for _, content := range contents {
		start := time.Now()
		err := s.store.Replace(ctx, content)
		s.metrics.ObserveStore("replace", start)
		if err != nil {
			s.metrics.RecordImported(imported)
			return imported, fmt.Errorf("import %s: %w", content.Key, err)
		}
		imported++
	}

	s.metrics.RecordImported(imported)
	s.logger.Info(ctx, "Imported tracking records", adapters.F("records", imported))
	return imported, nil
}

// Recalculate asks the content service to re-derive every entry of the
// current record of id and stores the result. Nothing is stored unless both
// uploads and downloads recalculate.
func (s *Service) Recalculate(ctx context.Context, id string) (*tracking.TrackedContent, error) {
	if s.content == nil {
		return nil, ErrNoContentService
	}
	key, err := tracking.NewTrackingKey(id)
	if err != nil {
		return nil, err
	}

	record, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	uploads, err := s.recalculateSet(ctx, key, record.Uploads)
	if err != nil {
		return nil, s.recalculateFailed(ctx, key, err)
	}
	downloads, err := s.recalculateSet(ctx, key, record.Downloads)
	if err != nil {
		return nil, s.recalculateFailed(ctx, key, err)
	}

	recalculated := &tracking.TrackedContent{Key: key, Uploads: uploads, Downloads: downloads}
	start := time.Now()
	err = s.store.Replace(ctx, recalculated)
	s.metrics.ObserveStore("replace", start)
	if err != nil {
		return nil, err
	}
	recalculated.Sort()
	return recalculated, nil
}

func (s *Service) recalculateSet(ctx context.Context, key tracking.TrackingKey, entries []tracking.TrackedContentEntry) ([]tracking.TrackedContentEntry, error) {
	if len(entries) == 0 {
		return []tracking.TrackedContentEntry{}, nil
	}
	transfers := make([]tracking.ContentTransfer, 0, len(entries))
	previous := make(map[tracking.NaturalKey][]int64, len(entries))
	for _, e := range entries {
		transfers = append(transfers, tracking.TransferOf(e))
		previous[e.NaturalKey()] = e.Timestamps
	}

	out, err := s.content.Recalculate(ctx, transfers)
	if err != nil {
		return nil, err
	}
	for i := range out {
		if out[i].TrackingKey == "" {
			out[i].TrackingKey = key
		}
		if out[i].TrackingKey != key {
			return nil, tracking.NewCollaboratorError("content", 0,
				fmt.Sprintf("recalculated entry %s belongs to %s", out[i].Path, out[i].TrackingKey), nil)
		}
		if len(out[i].Timestamps) == 0 {
			out[i].Timestamps = previous[out[i].NaturalKey()]
		}
		// Reported as a collaborator failure, not ErrValidation.
		if err := out[i].Validate(); err != nil {
			return nil, tracking.NewCollaboratorError("content", 0, "recalculated entry is invalid: "+err.Error(), nil)
		}
	}
	return out, nil
}

func (s *Service) recalculateFailed(ctx context.Context, key tracking.TrackingKey, err error) error {
	s.logger.Error(ctx, "Failed to recalculate tracking record",
		adapters.F("tracking_id", key.ID()), adapters.Err(err))
	if errors.Is(err, tracking.ErrCollaborator) {
		return fmt.Errorf("recalculate %s: %w", key, err)
	}
	return fmt.Errorf("recalculate %s: %w", key, tracking.NewCollaboratorError("content", 0, "", err))
}

// RepositoryZip streams a zip of the artifacts in the current record of id
// from the content service. The caller must close the reader.
func (s *Service) RepositoryZip(ctx context.Context, id string) (io.ReadCloser, error) {
	if s.content == nil {
		return nil, ErrNoContentService
	}
	key, err := tracking.NewTrackingKey(id)
	if err != nil {
		return nil, err
	}
	record, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return s.content.RepositoryZip(ctx, record)
}
