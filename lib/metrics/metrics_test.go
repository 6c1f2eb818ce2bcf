// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/bureau-foundation/padfs/lib/merge"
	"github.com/bureau-foundation/padfs/lib/repotree"
	"github.com/bureau-foundation/padfs/lib/vfs"
	"github.com/bureau-foundation/padfs/lib/writequeue"
)

func newTestMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	return newMetrics(registry, registry)
}

func TestObserveFlush(t *testing.T) {
	m := newTestMetrics()
	batch := writequeue.Batch{StoreID: "g", Files: map[string]writequeue.FileChange{
		"a.md": {Content: "a"},
		"b.md": {Deleted: true},
	}}
	m.ObserveFlush(batch, 20*time.Millisecond, nil)
	m.ObserveFlush(batch, time.Second, fmt.Errorf("flushing: %w", vfs.ErrTransient))

	if got := testutil.ToFloat64(m.flushesTotal.WithLabelValues("ok")); got != 1 {
		t.Errorf("ok flushes = %v", got)
	}
	if got := testutil.ToFloat64(m.flushesTotal.WithLabelValues("transient")); got != 1 {
		t.Errorf("transient flushes = %v", got)
	}
	if got := testutil.ToFloat64(m.flushedFiles); got != 4 {
		t.Errorf("flushed files = %v", got)
	}
}

func TestObserveRefresh(t *testing.T) {
	m := newTestMetrics()
	id := repotree.RepoID{Owner: "acme", Name: "wiki", Branch: "main"}

	m.ObserveRefresh(id, repotree.RefreshResult{}, time.Millisecond, nil)
	m.ObserveRefresh(id, repotree.RefreshResult{Changed: true, Reindexed: true, Links: 7}, time.Millisecond, nil)
	m.ObserveRefresh(id, repotree.RefreshResult{}, time.Millisecond, vfs.ErrNotFound)

	for label, want := range map[string]float64{"unchanged": 1, "replaced": 1, "error": 1} {
		if got := testutil.ToFloat64(m.refreshesTotal.WithLabelValues(label)); got != want {
			t.Errorf("%s refreshes = %v, want %v", label, got, want)
		}
	}
	if got := testutil.ToFloat64(m.backlinkPasses); got != 1 {
		t.Errorf("backlink passes = %v", got)
	}
	if got := testutil.ToFloat64(m.backlinks.WithLabelValues(id.String())); got != 7 {
		t.Errorf("backlinks = %v", got)
	}

	m.ForgetRepository(id)
	if got := testutil.CollectAndCount(m.backlinks); got != 0 {
		t.Errorf("backlink series after forget = %d", got)
	}
}

func TestHandler(t *testing.T) {
	m := newTestMetrics()
	m.ObserveMerge(merge.OutcomeConflict)
	m.SetOpenRepositories(2)

	server := httptest.NewServer(m.Handler())
	defer server.Close()
	response, err := server.Client().Get(server.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer response.Body.Close()
	body, _ := io.ReadAll(response.Body)
	for _, want := range []string{`padfs_merges_total{outcome="conflict"} 1`, "padfs_open_repositories 2"} {
		if !strings.Contains(string(body), want) {
			t.Errorf("exposition lacks %q", want)
		}
	}
}
