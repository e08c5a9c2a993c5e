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

// Package memory provides an in-memory ledger store.
// This is useful for testing, development, and single-process deployments
// where persistence is not required.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jeremyhahn/go-tracking/pkg/ledger"
	"github.com/jeremyhahn/go-tracking/pkg/tracking"
)

// table holds the records of one ledger table keyed by tracking key.
type table map[tracking.TrackingKey]map[tracking.NaturalKey]ledger.Record

func (t table) records(key tracking.TrackingKey) []ledger.Record {
	rows := t[key]
	out := make([]ledger.Record, 0, len(rows))
	for _, r := range rows {
		out = append(out, r)
	}
	return out
}

func (t table) keys() []tracking.TrackingKey {
	out := make([]tracking.TrackingKey, 0, len(t))
	for k := range t {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (t table) write(r ledger.Record) {
	key := tracking.TrackingKey(r.TrackingKey)
	rows, ok := t[key]
	if !ok {
		rows = make(map[tracking.NaturalKey]ledger.Record)
		t[key] = rows
	}
	rows[r.NaturalKey()] = r
}

// Memory is a ledger store that keeps records in process memory. Put and
// Seal hold the same lock, so a sealed session can never gain records
// through Put.
type Memory struct {
	mu      sync.RWMutex
	current table
	legacy  table
	now     func() time.Time
}

// New creates a new Memory ledger store.
func New() *Memory {
	return &Memory{
		current: make(table),
		legacy:  make(table),
		now:     time.Now,
	}
}

// Configure sets up the backend. The memory backend has no settings.
func (m *Memory) Configure(settings map[string]string) error {
	return nil
}

// LoadLegacy seeds the read-only legacy table, typically from a migration
// snapshot.
func (m *Memory) LoadLegacy(records ...ledger.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range records {
		m.legacy.write(r)
	}
}

// Put records an entry unless its session holds sealed records.
func (m *Memory) Put(ctx context.Context, entry tracking.TrackedContentEntry) (ledger.PutOutcome, error) {
	if err := ctx.Err(); err != nil {
		return ledger.Recorded, err
	}

	next := ledger.FromEntry(entry, m.now())

	m.mu.Lock()
	defer m.mu.Unlock()

	rows := m.current[entry.TrackingKey]
	for _, r := range rows {
		if r.Sealed {
			return ledger.AlreadySealed, nil
		}
	}

	var existing *ledger.Record
	if r, ok := rows[next.NaturalKey()]; ok {
		existing = &r
	}
	m.current.write(ledger.Merge(existing, next))
	return ledger.Recorded, nil
}

// Get aggregates the current records of key.
func (m *Memory) Get(ctx context.Context, key tracking.TrackingKey) (*tracking.TrackedContent, error) {
	return m.get(ctx, m.current, key)
}

// GetLegacy aggregates the legacy records of key.
func (m *Memory) GetLegacy(ctx context.Context, key tracking.TrackingKey) (*tracking.TrackedContent, error) {
	return m.get(ctx, m.legacy, key)
}

func (m *Memory) get(ctx context.Context, t table, key tracking.TrackingKey) (*tracking.TrackedContent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	records := t.records(key)
	m.mu.RUnlock()

	if len(records) == 0 {
		return nil, tracking.ErrNotFound
	}
	content, _, err := ledger.Aggregate(key, records)
	return content, err
}

// Seal marks every record of key sealed.
func (m *Memory) Seal(ctx context.Context, key tracking.TrackingKey) (*tracking.TrackedContent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	for nk, r := range m.current[key] {
		if !r.Sealed {
			r.Sealed = true
			m.current[key][nk] = r
		}
	}
	records := m.current.records(key)
	m.mu.Unlock()

	content, _, err := ledger.Aggregate(key, records)
	return content, err
}

// Delete removes the current records of key.
func (m *Memory) Delete(ctx context.Context, key tracking.TrackingKey) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.current, key)
	m.mu.Unlock()
	return nil
}

// SealedKeys lists the tracking keys of the current table.
func (m *Memory) SealedKeys(ctx context.Context) ([]tracking.TrackingKey, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current.keys(), nil
}

// LegacyKeys lists the tracking keys of the legacy table.
func (m *Memory) LegacyKeys(ctx context.Context) ([]tracking.TrackingKey, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.legacy.keys(), nil
}

// Replace writes every entry of content as a sealed record.
func (m *Memory) Replace(ctx context.Context, content *tracking.TrackedContent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range content.Entries() {
		next := ledger.FromSealedEntry(e, now)
		var existing *ledger.Record
		if r, ok := m.current[e.TrackingKey][next.NaturalKey()]; ok {
			existing = &r
		}
		m.current.write(ledger.Merge(existing, next))
	}
	return nil
}

// Close releases nothing; the data is dropped with the store.
func (m *Memory) Close() error {
	return nil
}
