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

package guard

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jeremyhahn/go-tracking/pkg/adapters"
	"github.com/jeremyhahn/go-tracking/pkg/client"
	"github.com/jeremyhahn/go-tracking/pkg/tracking"
)

// ErrDeletionDenied is returned when the guard check refuses a batch delete.
var ErrDeletionDenied = errors.New("deletion denied by guard check")

// RecordSource reads tracking records.
type RecordSource interface {
	Get(ctx context.Context, id string) (*tracking.TrackedContent, error)
}

// ContentRemover deletes content paths from a store.
type ContentRemover interface {
	BatchDelete(ctx context.Context, req client.BatchDeleteRequest) error
}

// Deleter runs guarded batch deletes.
type Deleter struct {
	records     RecordSource
	guard       *Guard
	maintenance ContentRemover
	cleaner     *Cleaner
	logger      adapters.Logger
}

// NewDeleter creates a Deleter. cleaner may be nil.
func NewDeleter(records RecordSource, g *Guard, maintenance ContentRemover, cleaner *Cleaner, logger adapters.Logger) *Deleter {
	if logger == nil {
		logger = adapters.NewNoOpLogger()
	}
	return &Deleter{records: records, guard: g, maintenance: maintenance, cleaner: cleaner, logger: logger}
}

// Delete removes req.Paths from req.StoreKey. Without explicit paths the
// session's uploads to that store are used; a request that resolves to no
// paths is rejected before any collaborator is called. On success the parent
// folders are cleaned up in the background. The resolved request is
// returned.
func (d *Deleter) Delete(ctx context.Context, req client.BatchDeleteRequest) (client.BatchDeleteRequest, error) {
	if err := tracking.ValidateTrackingID(req.TrackingID); err != nil {
		return req, err
	}
	if req.StoreKey.IsZero() {
		return req, fmt.Errorf("%w: storeKey: must be set", tracking.ErrValidation)
	}
	if d.maintenance == nil {
		return req, fmt.Errorf("%w: maintenance service not configured", tracking.ErrUnsupported)
	}

	if len(req.Paths) == 0 {
		paths, err := d.uploadPaths(ctx, req.TrackingID, req.StoreKey)
		if err != nil {
			return req, err
		}
		if len(paths) == 0 {
			return req, fmt.Errorf("%w: no paths given and no uploads to %s tracked under %s",
				tracking.ErrValidation, req.StoreKey, req.TrackingID)
		}
		d.logger.Info(ctx, "Using tracked uploads as batch delete paths",
			adapters.F("tracking_id", req.TrackingID),
			adapters.F("paths", len(paths)))
		req.Paths = paths
	}

	if !d.guard.Check(ctx, req.TrackingID, req.StoreKey) {
		return req, fmt.Errorf("%w: %s from %s", ErrDeletionDenied, req.TrackingID, req.StoreKey)
	}

	if err := d.maintenance.BatchDelete(ctx, req); err != nil {
		return req, err
	}
	d.logger.Info(ctx, "Batch delete done",
		adapters.F("tracking_id", req.TrackingID),
		adapters.F("store", req.StoreKey.String()),
		adapters.F("paths", len(req.Paths)))

	if d.cleaner != nil {
		d.cleaner.Cleanup(ctx, req.TrackingID, req.StoreKey.String(), req.Paths)
	}
	return req, nil
}

func (d *Deleter) uploadPaths(ctx context.Context, id string, store tracking.StoreKey) ([]string, error) {
	content, err := d.records.Get(ctx, id)
	if errors.Is(err, tracking.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var paths []string
	for _, e := range content.UploadsFor(store) {
		if _, ok := seen[e.Path]; !ok {
			seen[e.Path] = struct{}{}
			paths = append(paths, e.Path)
		}
	}
	sort.Strings(paths)
	return paths, nil
}
