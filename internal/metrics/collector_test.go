// Copyright (c) 2025-2026, the tierd contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metrics

import (
	"testing"

	io_prometheus_client "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dualtier/tierd/internal/domain"
	"github.com/dualtier/tierd/internal/orchestrator"
)

type fakeSource struct {
	status orchestrator.Status
}

func (f fakeSource) Status() orchestrator.Status { return f.status }

func metricValue(t *testing.T, families []*io_prometheus_client.MetricFamily, name string) float64 {
	t.Helper()
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		require.NotEmpty(t, f.Metric)
		m := f.Metric[0]
		if m.Gauge != nil {
			return m.Gauge.GetValue()
		}
		if m.Counter != nil {
			return m.Counter.GetValue()
		}
	}
	t.Fatalf("metric %s not found", name)
	return 0
}

func TestOrchestratorCollectorReportsQueueDepthsAndCounters(t *testing.T) {
	source := fakeSource{status: orchestrator.Status{
		QueuedTorrents:  2,
		RunningTorrents: 1,
		QueuedCopies:    3,
		RunningCopies:   1,
		Stats: domain.Statistics{
			TorrentsProcessed:   10,
			CopiesCompleted:     8,
			CopiesFailed:        2,
			SpaceManagementRuns: 1,
			APIRequests:         42,
		},
	}}

	registry := NewRegistry(source)
	families, err := registry.Gather()
	require.NoError(t, err)

	assert.Equal(t, float64(2), metricValue(t, families, "tierd_queued_torrents"))
	assert.Equal(t, float64(1), metricValue(t, families, "tierd_running_torrents"))
	assert.Equal(t, float64(3), metricValue(t, families, "tierd_queued_copies"))
	assert.Equal(t, float64(1), metricValue(t, families, "tierd_running_copies"))
	assert.Equal(t, float64(10), metricValue(t, families, "tierd_torrents_processed_total"))
	assert.Equal(t, float64(8), metricValue(t, families, "tierd_copies_completed_total"))
	assert.Equal(t, float64(2), metricValue(t, families, "tierd_copies_failed_total"))
	assert.Equal(t, float64(1), metricValue(t, families, "tierd_space_management_runs_total"))
	assert.Equal(t, float64(42), metricValue(t, families, "tierd_api_requests_total"))
}
