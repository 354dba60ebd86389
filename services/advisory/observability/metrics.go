// Copyright (C) 2026 FinHaven Technologies (dev@finhaven.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package observability provides Prometheus metrics for the advisory
// service: engagement state-machine operations, realtime room traffic and
// media capture lifecycle.
//
// Metrics are exposed on the /metrics endpoint. All operations are
// thread-safe via Prometheus's internal locking. Every helper method is
// nil-receiver safe so components can run without metrics in tests.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "finhaven"
	advisorySystem   = "advisory"
)

// Operation outcomes used as the "outcome" label value. Kept in sync with
// the engagement error codes plus "ok" and "error".
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Metrics holds all Prometheus instruments for the advisory service.
type Metrics struct {
	// EngagementOps counts state-machine operations.
	// Labels: op (request, approve, decline, cancel), outcome.
	EngagementOps *prometheus.CounterVec

	// ResolutionSeconds measures how long a request stayed pending
	// before resolution, by outcome.
	ResolutionSeconds *prometheus.HistogramVec

	// RoomMembers tracks currently joined realtime connections.
	RoomMembers prometheus.Gauge

	// ActiveRooms tracks rooms with at least one member.
	ActiveRooms prometheus.Gauge

	// MessagesRelayed counts room messages accepted for relay.
	MessagesRelayed prometheus.Counter

	// DeliveriesDropped counts per-recipient delivery failures. Drops
	// are expected on disconnect; there is no retry buffer.
	DeliveriesDropped prometheus.Counter

	// BroadcastsTotal counts advisor feed broadcasts.
	BroadcastsTotal prometheus.Counter

	// MediaAcquisitions counts capture acquisitions by result.
	// Labels: result (ok, error, aborted).
	MediaAcquisitions *prometheus.CounterVec

	// ActiveCaptures tracks currently held media captures.
	ActiveCaptures prometheus.Gauge
}

// DefaultMetrics is the process-wide instance registered against the
// default Prometheus registry. Initialized by InitMetrics; nil until then.
var DefaultMetrics *Metrics

// InitMetrics registers the advisory metrics with the default registry.
// Idempotent: repeated calls return the existing instance, so constructing
// multiple services in one process never double-registers.
func InitMetrics() *Metrics {
	if DefaultMetrics == nil {
		DefaultMetrics = NewMetrics(prometheus.DefaultRegisterer)
	}
	return DefaultMetrics
}

// NewMetrics creates and registers all instruments against reg. Tests pass
// prometheus.NewRegistry() to avoid cross-test registration panics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		EngagementOps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: advisorySystem,
				Name:      "engagement_ops_total",
				Help:      "Engagement state-machine operations by op and outcome",
			},
			[]string{"op", "outcome"},
		),

		ResolutionSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: advisorySystem,
				Name:      "request_resolution_seconds",
				Help:      "Time from request creation to resolution",
				Buckets:   []float64{1, 10, 60, 600, 3600, 21600, 86400},
			},
			[]string{"outcome"},
		),

		RoomMembers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: advisorySystem,
			Name:      "room_members",
			Help:      "Currently joined realtime connections",
		}),

		ActiveRooms: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: advisorySystem,
			Name:      "active_rooms",
			Help:      "Rooms with at least one joined connection",
		}),

		MessagesRelayed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: advisorySystem,
			Name:      "messages_relayed_total",
			Help:      "Room messages accepted for relay",
		}),

		DeliveriesDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: advisorySystem,
			Name:      "deliveries_dropped_total",
			Help:      "Per-recipient delivery failures during relay",
		}),

		BroadcastsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: advisorySystem,
			Name:      "broadcasts_total",
			Help:      "Advisor feed broadcasts",
		}),

		MediaAcquisitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: advisorySystem,
				Name:      "media_acquisitions_total",
				Help:      "Media capture acquisitions by result",
			},
			[]string{"result"},
		),

		ActiveCaptures: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: advisorySystem,
			Name:      "active_captures",
			Help:      "Currently held media captures",
		}),
	}
}

// RecordEngagementOp records one state-machine operation.
func (m *Metrics) RecordEngagementOp(op, outcome string) {
	if m == nil {
		return
	}
	m.EngagementOps.WithLabelValues(op, outcome).Inc()
}

// RecordResolution records how long a request was pending.
func (m *Metrics) RecordResolution(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.ResolutionSeconds.WithLabelValues(outcome).Observe(seconds)
}

// MemberJoined updates the room gauges after a join. newRoom indicates the
// join created the room.
func (m *Metrics) MemberJoined(newRoom bool) {
	if m == nil {
		return
	}
	m.RoomMembers.Inc()
	if newRoom {
		m.ActiveRooms.Inc()
	}
}

// MemberLeft updates the room gauges after a leave. roomGone indicates the
// leave emptied the room.
func (m *Metrics) MemberLeft(roomGone bool) {
	if m == nil {
		return
	}
	m.RoomMembers.Dec()
	if roomGone {
		m.ActiveRooms.Dec()
	}
}

// RecordRelay records an accepted message and its failed deliveries.
func (m *Metrics) RecordRelay(dropped int) {
	if m == nil {
		return
	}
	m.MessagesRelayed.Inc()
	if dropped > 0 {
		m.DeliveriesDropped.Add(float64(dropped))
	}
}

// RecordBroadcast records a feed broadcast and its failed deliveries.
func (m *Metrics) RecordBroadcast(dropped int) {
	if m == nil {
		return
	}
	m.BroadcastsTotal.Inc()
	if dropped > 0 {
		m.DeliveriesDropped.Add(float64(dropped))
	}
}

// RecordAcquisition records a media capture attempt by result.
func (m *Metrics) RecordAcquisition(result string) {
	if m == nil {
		return
	}
	m.MediaAcquisitions.WithLabelValues(result).Inc()
}

// CaptureStarted increments the active capture gauge.
func (m *Metrics) CaptureStarted() {
	if m == nil {
		return
	}
	m.ActiveCaptures.Inc()
}

// CaptureEnded decrements the active capture gauge.
func (m *Metrics) CaptureEnded() {
	if m == nil {
		return
	}
	m.ActiveCaptures.Dec()
}
