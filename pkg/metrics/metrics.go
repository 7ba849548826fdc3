// Package metrics collects and exposes Prometheus metrics for the sync
// engine and the realtime channel.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector records sync-engine and realtime counters. A nil *Collector is
// safe to call, so wiring metrics stays optional in tests.
type Collector struct {
	cacheHits      *prometheus.CounterVec
	cacheMisses    *prometheus.CounterVec
	realtimeEvents *prometheus.CounterVec
	reconciles     *prometheus.CounterVec
	rollbacks      *prometheus.CounterVec
}

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "commonshub_cache_hits_total",
			Help: "Read-through cache hits by entity.",
		}, []string{"entity"}),
		cacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "commonshub_cache_misses_total",
			Help: "Read-through cache misses by entity.",
		}, []string{"entity"}),
		realtimeEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "commonshub_realtime_events_total",
			Help: "Change events applied by subscription listeners.",
		}, []string{"table", "op"}),
		reconciles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "commonshub_reconcile_refetch_total",
			Help: "Delayed reconcile refetches issued after committed mutations.",
		}, []string{"entity"}),
		rollbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "commonshub_optimistic_rollbacks_total",
			Help: "Optimistic patches rolled back after remote failures.",
		}, []string{"entity"}),
	}

	reg.MustRegister(
		c.cacheHits,
		c.cacheMisses,
		c.realtimeEvents,
		c.reconciles,
		c.rollbacks,
	)

	return c
}

// RecordCacheHit counts a read served from the cache.
func (c *Collector) RecordCacheHit(entity string) {
	if c == nil {
		return
	}
	c.cacheHits.WithLabelValues(entity).Inc()
}

// RecordCacheMiss counts a read that fell through to the fetch layer.
func (c *Collector) RecordCacheMiss(entity string) {
	if c == nil {
		return
	}
	c.cacheMisses.WithLabelValues(entity).Inc()
}

// RecordRealtimeEvent counts one applied change event.
func (c *Collector) RecordRealtimeEvent(table string, op string) {
	if c == nil {
		return
	}
	c.realtimeEvents.WithLabelValues(table, op).Inc()
}

// RecordReconcile counts a delayed reconcile refetch.
func (c *Collector) RecordReconcile(entity string) {
	if c == nil {
		return
	}
	c.reconciles.WithLabelValues(entity).Inc()
}

// RecordRollback counts a rolled-back optimistic patch.
func (c *Collector) RecordRollback(entity string) {
	if c == nil {
		return
	}
	c.rollbacks.WithLabelValues(entity).Inc()
}

// Handler returns the Prometheus scrape handler for the given gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
