// Copyright (C) 2026 FinHaven Technologies (dev@finhaven.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics_RegistersInstruments(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	require.NotNil(t, m)

	m.RecordEngagementOp("request", OutcomeOK)
	m.RecordEngagementOp("request", "DUPLICATE_PENDING")
	m.RecordResolution("APPROVED", 1.5)
	m.MemberJoined(true)
	m.MemberJoined(false)
	m.MemberLeft(false)
	m.RecordRelay(0)
	m.RecordBroadcast(1)
	m.RecordAcquisition("ok")
	m.CaptureStarted()
	m.CaptureEnded()

	assert.Equal(t, float64(1), testutil.ToFloat64(
		m.EngagementOps.WithLabelValues("request", OutcomeOK)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ActiveRooms))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.RoomMembers))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.MessagesRelayed))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.DeliveriesDropped))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.ActiveCaptures))
}

// Components treat metrics as optional; every helper must be a no-op on a
// nil receiver.
func TestMetrics_NilReceiverSafe(t *testing.T) {
	var m *Metrics

	m.RecordEngagementOp("request", OutcomeOK)
	m.RecordResolution("APPROVED", 1)
	m.MemberJoined(true)
	m.MemberLeft(true)
	m.RecordRelay(2)
	m.RecordBroadcast(0)
	m.RecordAcquisition("error")
	m.CaptureStarted()
	m.CaptureEnded()
}

func TestInitMetrics_Idempotent(t *testing.T) {
	first := InitMetrics()
	second := InitMetrics()
	assert.Same(t, first, second)
}
