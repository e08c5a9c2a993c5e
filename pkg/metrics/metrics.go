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

// Package metrics exposes Prometheus metrics for the tracking ledger.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	defaultOnce     sync.Once
	defaultInstance *Metrics
)

// Metrics holds the ledger's collectors. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	Records        *prometheus.CounterVec   // folo_records_total{effect,outcome}
	Seals          prometheus.Counter       // folo_seals_total
	Deletes        prometheus.Counter       // folo_deletes_total
	Reconnects     prometheus.Counter       // folo_store_reconnects_total
	GuardChecks    *prometheus.CounterVec   // folo_guard_checks_total{result}
	Cleanups       *prometheus.CounterVec   // folo_cleanups_total{result}
	Imported       prometheus.Counter       // folo_imported_records_total
	StoreDurations *prometheus.HistogramVec // folo_store_operation_duration_seconds{operation}
}

// New registers a fresh set of collectors with registry.
func New(registry prometheus.Registerer) *Metrics {
	f := promauto.With(registry)
	return &Metrics{
		Records: f.NewCounterVec(prometheus.CounterOpts{
			Name: "folo_records_total",
			Help: "Content entries offered to the ledger by effect and outcome",
		}, []string{"effect", "outcome"}),

		Seals: f.NewCounter(prometheus.CounterOpts{
			Name: "folo_seals_total",
			Help: "Tracking sessions sealed",
		}),

		Deletes: f.NewCounter(prometheus.CounterOpts{
			Name: "folo_deletes_total",
			Help: "Tracking sessions deleted",
		}),

		Reconnects: f.NewCounter(prometheus.CounterOpts{
			Name: "folo_store_reconnects_total",
			Help: "Ledger backend sessions reinitialized after connection loss",
		}),

		GuardChecks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "folo_guard_checks_total",
			Help: "Deletion guard decisions by result",
		}, []string{"result"}),

		Cleanups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "folo_cleanups_total",
			Help: "Empty-folder cleanup requests by result",
		}, []string{"result"}),

		Imported: f.NewCounter(prometheus.CounterOpts{
			Name: "folo_imported_records_total",
			Help: "Tracked content records written by bulk import",
		}),

		StoreDurations: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "folo_store_operation_duration_seconds",
			Help:    "Ledger store operation latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
	}
}

// Init registers the process-wide metrics once. A nil registry uses the
// default Prometheus registerer. Later calls return the same instance.
func Init(registry prometheus.Registerer) *Metrics {
	defaultOnce.Do(func() {
		if registry == nil {
			registry = prometheus.DefaultRegisterer
		}
		defaultInstance = New(registry)
	})
	return defaultInstance
}

// Get returns the process-wide metrics, or nil before Init.
func Get() *Metrics {
	return defaultInstance
}

// RecordPut counts one put by effect and outcome.
func (m *Metrics) RecordPut(effect, outcome string) {
	if m == nil {
		return
	}
	m.Records.WithLabelValues(effect, outcome).Inc()
}

// RecordSeal counts one seal.
func (m *Metrics) RecordSeal() {
	if m == nil {
		return
	}
	m.Seals.Inc()
}

// RecordDelete counts one delete.
func (m *Metrics) RecordDelete() {
	if m == nil {
		return
	}
	m.Deletes.Inc()
}

// RecordReconnect counts one backend reconnect.
func (m *Metrics) RecordReconnect() {
	if m == nil {
		return
	}
	m.Reconnects.Inc()
}

// RecordGuardCheck counts one guard decision.
func (m *Metrics) RecordGuardCheck(allowed bool) {
	if m == nil {
		return
	}
	result := "denied"
	if allowed {
		result = "allowed"
	}
	m.GuardChecks.WithLabelValues(result).Inc()
}

// RecordCleanup counts one cleanup attempt.
func (m *Metrics) RecordCleanup(err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.Cleanups.WithLabelValues(result).Inc()
}

// RecordCleanupDropped counts a cleanup that was never scheduled.
func (m *Metrics) RecordCleanupDropped() {
	if m == nil {
		return
	}
	m.Cleanups.WithLabelValues("dropped").Inc()
}

// RecordImported adds n imported records.
func (m *Metrics) RecordImported(n int) {
	if m == nil {
		return
	}
	m.Imported.Add(float64(n))
}

// ObserveStore records how long a store operation took since start.
func (m *Metrics) ObserveStore(operation string, start time.Time) {
	if m == nil {
		return
	}
	m.StoreDurations.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
