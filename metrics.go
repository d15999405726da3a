package oidcmetadata

import (
	"errors"
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metric names reported by the Service. Every metric carries a "document"
// label, "discovery" or "keys"; fetch errors also carry "reason".
const (
	MetricCacheHits     = "oidc_metadata_cache_hits_total"
	MetricCacheMisses   = "oidc_metadata_cache_misses_total"
	MetricFetchDuration = "oidc_metadata_fetch_duration_seconds"
	MetricFetchErrors   = "oidc_metadata_fetch_errors_total"
	MetricEvictions     = "oidc_metadata_evictions_total"
	MetricCacheEntries  = "oidc_metadata_cache_entries"
)

// Metrics is the metrics sink the Service reports to.
type Metrics interface {
	IncCounter(name string, tags map[string]string)
	AddCounter(name string, value float64, tags map[string]string)
	ObserveHistogram(name string, value float64, tags map[string]string)
	SetGauge(name string, value float64, tags map[string]string)
}

// NoopMetrics discards everything.
type NoopMetrics struct{}

func (m *NoopMetrics) IncCounter(name string, tags map[string]string)                      {}
func (m *NoopMetrics) AddCounter(name string, value float64, tags map[string]string)       {}
func (m *NoopMetrics) ObserveHistogram(name string, value float64, tags map[string]string) {}
func (m *NoopMetrics) SetGauge(name string, value float64, tags map[string]string)         {}

// PrometheusMetrics implements Metrics with Prometheus collectors.
//
// The collectors for the Metric* names are registered by
// NewPrometheusMetrics. Any other name is registered the first time it is
// used, and its label set is fixed by that first use.
type PrometheusMetrics struct {
	registerer prometheus.Registerer

	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	histograms map[string]*prometheus.HistogramVec
	gauges     map[string]*prometheus.GaugeVec
}

// NewPrometheusMetrics returns a Metrics implementation registering its
// collectors with reg, or with prometheus.DefaultRegisterer when reg is nil.
//
// Collectors already registered by another PrometheusMetrics are shared.
// It panics, like prometheus.MustRegister, when reg holds a different
// collector under one of the Metric* names.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &PrometheusMetrics{
		registerer: reg,
		counters:   make(map[string]*prometheus.CounterVec),
		histograms: make(map[string]*prometheus.HistogramVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
	}

	document := []string{"document"}
	for _, name := range []string{MetricCacheHits, MetricCacheMisses, MetricEvictions} {
		m.counters[name] = m.newCounter(name, document)
	}
	m.counters[MetricFetchErrors] = m.newCounter(MetricFetchErrors, []string{"document", "reason"})
	m.histograms[MetricFetchDuration] = m.newHistogram(MetricFetchDuration, document)
	m.gauges[MetricCacheEntries] = m.newGauge(MetricCacheEntries, document)

	return m
}

func (m *PrometheusMetrics) newCounter(name string, labels []string) *prometheus.CounterVec {
	return register(m.registerer, prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: help(name)}, labels))
}

func (m *PrometheusMetrics) newHistogram(name string, labels []string) *prometheus.HistogramVec {
	return register(m.registerer, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    name,
		Help:    help(name),
		Buckets: prometheus.DefBuckets,
	}, labels))
}

func (m *PrometheusMetrics) newGauge(name string, labels []string) *prometheus.GaugeVec {
	return register(m.registerer, prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: name, Help: help(name)}, labels))
}

func (m *PrometheusMetrics) IncCounter(name string, tags map[string]string) {
	m.AddCounter(name, 1, tags)
}

func (m *PrometheusMetrics) AddCounter(name string, value float64, tags map[string]string) {
	m.mu.Lock()
	vec, ok := m.counters[name]
	if !ok {
		vec = m.newCounter(name, labelNames(tags))
		m.counters[name] = vec
	}
	m.mu.Unlock()

	vec.With(tags).Add(value)
}

func (m *PrometheusMetrics) ObserveHistogram(name string, value float64, tags map[string]string) {
	m.mu.Lock()
	vec, ok := m.histograms[name]
	if !ok {
		vec = m.newHistogram(name, labelNames(tags))
		m.histograms[name] = vec
	}
	m.mu.Unlock()

	vec.With(tags).Observe(value)
}

func (m *PrometheusMetrics) SetGauge(name string, value float64, tags map[string]string) {
	m.mu.Lock()
	vec, ok := m.gauges[name]
	if !ok {
		vec = m.newGauge(name, labelNames(tags))
		m.gauges[name] = vec
	}
	m.mu.Unlock()

	vec.With(tags).Set(value)
}

// register adopts an identical collector someone else registered first,
// so two Services can share a registry.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

var helpText = map[string]string{
	MetricCacheHits:     "Lookups served from a valid cache entry.",
	MetricCacheMisses:   "Lookups that found no valid cache entry.",
	MetricFetchDuration: "Time spent fetching a document from the identity provider.",
	MetricFetchErrors:   "Failed document fetches by reason.",
	MetricEvictions:     "Expired entries removed by the sweep.",
	MetricCacheEntries:  "Entries held by a cache after the last sweep.",
}

func help(name string) string {
	if h, ok := helpText[name]; ok {
		return h
	}
	return name
}

// labelNames returns the keys of tags, sorted.
func labelNames(tags map[string]string) []string {
	names := make([]string, 0, len(tags))
	for k := range tags {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
