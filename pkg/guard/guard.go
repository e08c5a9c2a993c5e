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

// Package guard gates batch deletion of tracked content on promotion
// history and tidies up empty folders afterwards.
package guard

import (
	"context"
	"errors"

	"github.com/jeremyhahn/go-tracking/pkg/adapters"
	"github.com/jeremyhahn/go-tracking/pkg/client"
	"github.com/jeremyhahn/go-tracking/pkg/metrics"
	"github.com/jeremyhahn/go-tracking/pkg/tracking"
)

// PromotionSource looks up the promotions performed under a tracking id.
// A missing record must be reported as tracking.ErrNotFound.
type PromotionSource interface {
	PromotionRecords(ctx context.Context, trackingID string) (*client.PromoteTrackingRecords, error)
}

// Guard decides whether content may be deleted from a store.
type Guard struct {
	promote PromotionSource
	enabled bool
	logger  adapters.Logger
	metrics *metrics.Metrics
}

// NewGuard creates a Guard. A disabled guard allows every deletion.
func NewGuard(promote PromotionSource, enabled bool, logger adapters.Logger, m *metrics.Metrics) *Guard {
	if logger == nil {
		logger = adapters.NewNoOpLogger()
	}
	if promote == nil {
		enabled = false
	}
	return &Guard{promote: promote, enabled: enabled, logger: logger, metrics: m}
}

// Check reports whether content tracked under trackingID may be deleted from
// store. Sessions the promotion service does not know are allowed since they
// predate promotion tracking. Otherwise some promotion must have targeted
// store. Any other failure denies.
func (g *Guard) Check(ctx context.Context, trackingID string, store tracking.StoreKey) bool {
	if g == nil || !g.enabled {
		return true
	}
	allowed := g.check(ctx, trackingID, store)
	g.metrics.RecordGuardCheck(allowed)
	return allowed
}

func (g *Guard) check(ctx context.Context, trackingID string, store tracking.StoreKey) bool {
	log := g.logger.WithFields(
		adapters.F("tracking_id", tracking.SanitizeForLog(trackingID)),
		adapters.F("store", store.String()))

	records, err := g.promote.PromotionRecords(ctx, trackingID)
	switch {
	case errors.Is(err, tracking.ErrNotFound):
		log.Info(ctx, "Promotion record not found, allowing deletion")
		return true
	case err != nil:
		log.Warn(ctx, "Deletion guard check failed", adapters.Err(err))
		return false
	}

	for _, result := range records.ResultMap {
		if result.Request.Target == store {
			log.Info(ctx, "Deletion guard check passed")
			return true
		}
	}
	log.Warn(ctx, "Deletion denied, no promotion targeted the store")
	return false
}
