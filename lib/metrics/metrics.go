// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package metrics provides Prometheus metrics for padfs. Each method
// matches the observer hook of the component it measures, so wiring is
// a matter of passing the method value.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bureau-foundation/padfs/lib/merge"
	"github.com/bureau-foundation/padfs/lib/repotree"
	"github.com/bureau-foundation/padfs/lib/vfs"
	"github.com/bureau-foundation/padfs/lib/writequeue"
)

// Metrics holds the padfs collectors registered on one registry.
type Metrics struct {
	gatherer prometheus.Gatherer

	flushesTotal     *prometheus.CounterVec
	flushDuration    prometheus.Histogram
	flushedFiles     prometheus.Counter
	refreshesTotal   *prometheus.CounterVec
	refreshDuration  prometheus.Histogram
	backlinkPasses   prometheus.Counter
	backlinks        *prometheus.GaugeVec
	mergesTotal      *prometheus.CounterVec
	openRepositories prometheus.Gauge
}

// New registers the collectors on a fresh registry that also carries
// the Go runtime and process collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return newMetrics(registry, registry)
}

func newMetrics(registerer prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		gatherer: gatherer,

		flushesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "padfs_snippet_flushes_total",
				Help: "Batched snippet store updates by result",
			},
			[]string{"result"},
		),
		flushDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "padfs_snippet_flush_duration_seconds",
				Help:    "Duration of one batched snippet store update",
				Buckets: prometheus.DefBuckets,
			},
		),
		flushedFiles: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "padfs_snippet_flushed_files_total",
				Help: "Files carried by batched snippet store updates",
			},
		),
		refreshesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "padfs_tree_refreshes_total",
				Help: "Repository tree refreshes by result",
			},
			[]string{"result"},
		),
		refreshDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "padfs_tree_refresh_duration_seconds",
				Help:    "Duration of one repository tree refresh, including backlink indexing",
				Buckets: prometheus.DefBuckets,
			},
		),
		backlinkPasses: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "padfs_backlink_passes_total",
				Help: "Full rebuilds of a wiki backlink index",
			},
		),
		backlinks: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "padfs_backlinks",
				Help: "Resolved backlinks in the latest index of each wiki",
			},
			[]string{"repository"},
		),
		mergesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "padfs_merges_total",
				Help: "Merges of writes made against a stale version, by outcome",
			},
			[]string{"outcome"},
		),
		openRepositories: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "padfs_open_repositories",
				Help: "Repositories with a live tree cache",
			},
		),
	}
}

// Handler returns the Prometheus metrics HTTP handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// ObserveFlush is a writequeue.Observer.
func (m *Metrics) ObserveFlush(batch writequeue.Batch, duration time.Duration, err error) {
	m.flushesTotal.WithLabelValues(result(err)).Inc()
	m.flushDuration.Observe(duration.Seconds())
	m.flushedFiles.Add(float64(len(batch.Files)))
}

// ObserveRefresh matches repotree.Options.OnRefresh.
func (m *Metrics) ObserveRefresh(id repotree.RepoID, refresh repotree.RefreshResult, duration time.Duration, err error) {
	label := "unchanged"
	switch {
	case err != nil:
		label = result(err)
	case refresh.Changed:
		label = "replaced"
	}
	m.refreshesTotal.WithLabelValues(label).Inc()
	m.refreshDuration.Observe(duration.Seconds())
	if refresh.Reindexed {
		m.backlinkPasses.Inc()
		m.backlinks.WithLabelValues(id.String()).Set(float64(refresh.Links))
	}
}

// ObserveMerge matches merge.Options.Observer.
func (m *Metrics) ObserveMerge(outcome merge.Outcome) {
	m.mergesTotal.WithLabelValues(string(outcome)).Inc()
}

// SetOpenRepositories records how many repositories are open.
func (m *Metrics) SetOpenRepositories(n int) {
	m.openRepositories.Set(float64(n))
}

// ForgetRepository drops the per-repository series of a closed
// repository.
func (m *Metrics) ForgetRepository(id repotree.RepoID) {
	m.backlinks.DeleteLabelValues(id.String())
}

func result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, vfs.ErrTransient):
		return "transient"
	case errors.Is(err, vfs.ErrAuthRequired):
		return "auth"
	default:
		return "error"
	}
}
