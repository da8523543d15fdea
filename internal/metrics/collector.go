// Copyright (c) 2025-2026, the tierd contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package metrics exposes the orchestrator's live queue and lifetime
// counters as a Prometheus collector, following the pull-on-scrape
// pattern of internal/metrics.TorrentCollector: no internal state of its
// own, just a reference to the orchestrator queried fresh on every
// Collect call.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/dualtier/tierd/internal/orchestrator"
)

// StatusSource is the subset of *orchestrator.Orchestrator the collector
// depends on, kept narrow so tests can supply a fake.
type StatusSource interface {
	Status() orchestrator.Status
}

// OrchestratorCollector reports queue depths and lifetime counters.
type OrchestratorCollector struct {
	source StatusSource

	queuedTorrentsDesc  *prometheus.Desc
	runningTorrentsDesc *prometheus.Desc
	queuedCopiesDesc    *prometheus.Desc
	runningCopiesDesc   *prometheus.Desc
	torrentsProcessedDesc *prometheus.Desc
	copiesCompletedDesc *prometheus.Desc
	copiesFailedDesc    *prometheus.Desc
	spaceRunsDesc       *prometheus.Desc
	apiRequestsDesc     *prometheus.Desc
}

// NewOrchestratorCollector builds a collector reading from source.
func NewOrchestratorCollector(source StatusSource) *OrchestratorCollector {
	return &OrchestratorCollector{
		source: source,
		queuedTorrentsDesc: prometheus.NewDesc(
			"tierd_queued_torrents", "Torrents currently waiting in the torrent-finish queue", nil, nil),
		runningTorrentsDesc: prometheus.NewDesc(
			"tierd_running_torrents", "Torrent-finish operations currently executing", nil, nil),
		queuedCopiesDesc: prometheus.NewDesc(
			"tierd_queued_copies", "Copy operations currently waiting in the copy queue", nil, nil),
		runningCopiesDesc: prometheus.NewDesc(
			"tierd_running_copies", "Copy operations currently executing", nil, nil),
		torrentsProcessedDesc: prometheus.NewDesc(
			"tierd_torrents_processed_total", "Lifetime count of torrents that completed the finish pipeline", nil, nil),
		copiesCompletedDesc: prometheus.NewDesc(
			"tierd_copies_completed_total", "Lifetime count of successfully verified copy operations", nil, nil),
		copiesFailedDesc: prometheus.NewDesc(
			"tierd_copies_failed_total", "Lifetime count of copy operations that exhausted retries", nil, nil),
		spaceRunsDesc: prometheus.NewDesc(
			"tierd_space_management_runs_total", "Lifetime count of space-reclamation passes", nil, nil),
		apiRequestsDesc: prometheus.NewDesc(
			"tierd_api_requests_total", "Lifetime count of accepted torrent enqueue requests; other control-surface requests are not counted", nil, nil),
	}
}

func (c *OrchestratorCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.queuedTorrentsDesc
	ch <- c.runningTorrentsDesc
	ch <- c.queuedCopiesDesc
	ch <- c.runningCopiesDesc
	ch <- c.torrentsProcessedDesc
	ch <- c.copiesCompletedDesc
	ch <- c.copiesFailedDesc
	ch <- c.spaceRunsDesc
	ch <- c.apiRequestsDesc
}

func (c *OrchestratorCollector) Collect(ch chan<- prometheus.Metric) {
	status := c.source.Status()

	ch <- prometheus.MustNewConstMetric(c.queuedTorrentsDesc, prometheus.GaugeValue, float64(status.QueuedTorrents))
	ch <- prometheus.MustNewConstMetric(c.runningTorrentsDesc, prometheus.GaugeValue, float64(status.RunningTorrents))
	ch <- prometheus.MustNewConstMetric(c.queuedCopiesDesc, prometheus.GaugeValue, float64(status.QueuedCopies))
	ch <- prometheus.MustNewConstMetric(c.runningCopiesDesc, prometheus.GaugeValue, float64(status.RunningCopies))
	ch <- prometheus.MustNewConstMetric(c.torrentsProcessedDesc, prometheus.CounterValue, float64(status.Stats.TorrentsProcessed))
	ch <- prometheus.MustNewConstMetric(c.copiesCompletedDesc, prometheus.CounterValue, float64(status.Stats.CopiesCompleted))
	ch <- prometheus.MustNewConstMetric(c.copiesFailedDesc, prometheus.CounterValue, float64(status.Stats.CopiesFailed))
	ch <- prometheus.MustNewConstMetric(c.spaceRunsDesc, prometheus.CounterValue, float64(status.Stats.SpaceManagementRuns))
	ch <- prometheus.MustNewConstMetric(c.apiRequestsDesc, prometheus.CounterValue, float64(status.Stats.APIRequests))
}

// NewRegistry builds a Prometheus registry carrying the Go/process
// collectors plus the orchestrator collector, mirroring
// internal/metrics.NewManager's registry assembly.
func NewRegistry(source StatusSource) *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	registry.MustRegister(NewOrchestratorCollector(source))
	return registry
}
