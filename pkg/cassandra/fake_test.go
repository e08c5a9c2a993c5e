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

package cassandra

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gocql/gocql"

	"github.com/jeremyhahn/go-tracking/pkg/adapters"
	"github.com/jeremyhahn/go-tracking/pkg/tracking"
)

// fakeCluster interprets the store's statements against in-memory tables so
// the store logic can be tested without a cluster.
type fakeCluster struct {
	mu     sync.Mutex
	stmts  statements
	tables map[string]map[string]map[string]any // table -> row key -> row
	dials  int

	// failures is consumed one error per statement before it runs.
	failures []error
	dialErr  error
}

func newFakeCluster(keyspace string) *fakeCluster {
	return &fakeCluster{
		stmts: newStatements(keyspace),
		tables: map[string]map[string]map[string]any{
			"current": {},
			"legacy":  {},
		},
	}
}

func (f *fakeCluster) dial() (session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dials++
	if f.dialErr != nil {
		return nil, f.dialErr
	}
	return &fakeSession{cluster: f}, nil
}

func (f *fakeCluster) failNext(errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = append(f.failures, errs...)
}

func (f *fakeCluster) dialCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dials
}

func (f *fakeCluster) seedLegacy(row map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tables["legacy"][rowKey(row)] = row
}

func rowKey(row map[string]any) string {
	return fmt.Sprintf("%v|%v|%v|%v", row["tracking_key"], row["store_key"], row["path"], row["store_effect"])
}

func (f *fakeCluster) popFailure() error {
	if len(f.failures) == 0 {
		return nil
	}
	err := f.failures[0]
	f.failures = f.failures[1:]
	return err
}

func (f *fakeCluster) rowsFor(table, key string) []map[string]any {
	var out []map[string]any
	for _, row := range f.tables[table] {
		if row["tracking_key"] == key {
			out = append(out, copyRow(row))
		}
	}
	sort.Slice(out, func(i, j int) bool { return rowKey(out[i]) < rowKey(out[j]) })
	return out
}

func (f *fakeCluster) distinct(table string) []map[string]any {
	seen := map[string]bool{}
	var out []map[string]any
	for _, row := range f.tables[table] {
		k := row["tracking_key"].(string)
		if !seen[k] {
			seen[k] = true
			out = append(out, map[string]any{"tracking_key": k})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i]["tracking_key"].(string) < out[j]["tracking_key"].(string) })
	return out
}

func copyRow(row map[string]any) map[string]any {
	c := make(map[string]any, len(row))
	for k, v := range row {
		if ts, ok := v.([]int64); ok {
			v = append([]int64(nil), ts...)
		}
		c[k] = v
	}
	return c
}

type fakeSession struct {
	cluster *fakeCluster
	closed  bool
}

func (s *fakeSession) Closed() bool { return s.closed }
func (s *fakeSession) Close()       { s.closed = true }

func (s *fakeSession) Query(ctx context.Context, stmt string, values ...any) ([]map[string]any, error) {
	f := s.cluster
	f.mu.Lock()
	defer f.mu.Unlock()
	if s.closed {
		return nil, gocql.ErrSessionClosed
	}
	if err := f.popFailure(); err != nil {
		return nil, err
	}

	switch stmt {
	case f.stmts.selectRecord:
		row, ok := f.tables["current"][fmt.Sprintf("%v|%v|%v|%v", values...)]
		if !ok {
			return nil, nil
		}
		return []map[string]any{copyRow(row)}, nil
	case f.stmts.selectByKey:
		return f.rowsFor("current", values[0].(string)), nil
	case f.stmts.selectLegacy:
		return f.rowsFor("legacy", values[0].(string)), nil
	case f.stmts.selectSealed:
		for _, row := range f.rowsFor("current", values[0].(string)) {
			if row["sealed"] == true {
				return []map[string]any{{"sealed": true}}, nil
			}
		}
		return nil, nil
	case f.stmts.selectKeys:
		return f.distinct("current"), nil
	case f.stmts.selectLegKeys:
		return f.distinct("legacy"), nil
	}
	return nil, fmt.Errorf("unexpected query %q", stmt)
}

func (s *fakeSession) Exec(ctx context.Context, stmt string, values ...any) error {
	f := s.cluster
	f.mu.Lock()
	defer f.mu.Unlock()
	if s.closed {
		return gocql.ErrSessionClosed
	}
	if err := f.popFailure(); err != nil {
		return err
	}

	current := f.tables["current"]
	switch stmt {
	case f.stmts.upsert:
		key := fmt.Sprintf("%v|%v|%v|%v", values[10], values[11], values[12], values[13])
		var prior []int64
		if old, ok := current[key]; ok {
			prior, _ = old["timestamps"].([]int64)
		}
		current[key] = map[string]any{
			"sealed":         values[0],
			"access_channel": values[1],
			"origin_url":     values[2],
			"local_url":      values[3],
			"md5":            values[4],
			"sha256":         values[5],
			"sha1":           values[6],
			"size":           values[7],
			"started":        values[8],
			"timestamps":     tracking.MergeTimestamps(prior, values[9].([]int64)),
			"tracking_key":   values[10],
			"store_key":      values[11],
			"path":           values[12],
			"store_effect":   values[13],
		}
		return nil
	case f.stmts.sealRecord:
		if row, ok := current[fmt.Sprintf("%v|%v|%v|%v", values...)]; ok {
			row["sealed"] = true
		}
		return nil
	case f.stmts.deleteByKey:
		for k, row := range current {
			if row["tracking_key"] == values[0] {
				delete(current, k)
			}
		}
		return nil
	}
	return fmt.Errorf("unexpected statement %q", stmt)
}

// newFakeStore returns a store wired to a fresh fake cluster.
func newFakeStore() (*Cassandra, *fakeCluster) {
	cluster := newFakeCluster(defaultKeyspace)
	c := New(adapters.NewNoOpLogger())
	c.stmts = cluster.stmts
	c.conn = newConnector(cluster.dial, c.logger)
	c.now = func() time.Time { return time.UnixMilli(1_700_000_000_000) }
	return c, cluster
}

var errBoom = errors.New("boom")
