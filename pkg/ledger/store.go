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

// Package ledger defines the persistence contract for tracking records and
// the conversion between stored rows and domain entries.
package ledger

import (
	"context"

	"github.com/jeremyhahn/go-tracking/pkg/tracking"
)

// Table names shared by the SQL-like backends.
const (
	CurrentTable = "records2"
	LegacyTable  = "records"
)

// PutOutcome reports what Put did with an entry.
type PutOutcome int

const (
	// Recorded means the entry was written.
	Recorded PutOutcome = iota
	// AlreadySealed means the target session is sealed and nothing was written.
	AlreadySealed
)

func (o PutOutcome) String() string {
	switch o {
	case Recorded:
		return "recorded"
	case AlreadySealed:
		return "already_sealed"
	default:
		return "unknown"
	}
}

// Store persists tracking records. Implementations must be safe for
// concurrent use.
//
// Get, GetLegacy and Seal return tracking.ErrNotFound only where noted; an
// unreachable backend surfaces as tracking.ErrTransportUnavailable.
type Store interface {
	// Configure applies backend settings. Must be called before use.
	Configure(settings map[string]string) error

	// Put records entry unless its session is sealed. Writing the same
	// natural key again replaces every field and adds a timestamp.
	Put(ctx context.Context, entry tracking.TrackedContentEntry) (PutOutcome, error)

	// Get aggregates the current records for key, or returns
	// tracking.ErrNotFound when there are none.
	Get(ctx context.Context, key tracking.TrackingKey) (*tracking.TrackedContent, error)

	// GetLegacy aggregates records from the read-only legacy table, or returns
	// tracking.ErrNotFound when there are none.
	GetLegacy(ctx context.Context, key tracking.TrackingKey) (*tracking.TrackedContent, error)

	// Seal marks every record of key sealed and returns the aggregate. An
	// unknown key yields an empty aggregate.
	Seal(ctx context.Context, key tracking.TrackingKey) (*tracking.TrackedContent, error)

	// Delete removes every current record of key. Unknown keys are not an error.
	Delete(ctx context.Context, key tracking.TrackingKey) error

	// SealedKeys lists every distinct tracking key in the current table.
	SealedKeys(ctx context.Context) ([]tracking.TrackingKey, error)

	// LegacyKeys lists every distinct tracking key in the legacy table.
	LegacyKeys(ctx context.Context) ([]tracking.TrackingKey, error)

	// Replace writes every entry of content as a sealed record, bypassing
	// the sealed check.
	Replace(ctx context.Context, content *tracking.TrackedContent) error

	// Close releases backend resources.
	Close() error
}
