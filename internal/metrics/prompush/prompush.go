// Package prompush implements a metrics backend that accumulates counters
// and summaries in a local Prometheus registry and pushes them to a
// Pushgateway on Flush.
//
// A push-based backend fits a batch pipeline better than scrape-based
// exposition: the process is short-lived, so there is no long-running HTTP
// endpoint for Prometheus to scrape.
package prompush

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"pimdb/internal/metrics"
)

// Backend pushes metrics to a Prometheus Pushgateway.
type Backend struct {
	mu       sync.Mutex
	registry *prometheus.Registry
	pusher   *push.Pusher

	counters   map[string]*prometheus.CounterVec
	histograms map[string]*prometheus.SummaryVec
}

// New creates a Pushgateway backend. url is the gateway base URL
// (e.g. "http://localhost:9091"), job names the push group.
func New(url, job string) *Backend {
	reg := prometheus.NewRegistry()
	return &Backend{
		registry:   reg,
		pusher:     push.New(url, job).Gatherer(reg),
		counters:   make(map[string]*prometheus.CounterVec),
		histograms: make(map[string]*prometheus.SummaryVec),
	}
}

// Grouping adds a grouping label to the push group, e.g. the database kind
// or an instance name. Returns the backend for chaining.
func (b *Backend) Grouping(name, value string) *Backend {
	b.pusher = b.pusher.Grouping(name, value)
	return b
}

func labelNames(labels metrics.Labels) []string {
	names := make([]string, 0, len(labels))
	for k := range labels {
		names = append(names, k)
	}
	return names
}

// IncCounter implements metrics.Backend.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	b.mu.Lock()
	defer b.mu.Unlock()

	vec, ok := b.counters[name]
	if !ok {
		vec = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: name,
			Help: name,
		}, labelNames(labels))
		if err := b.registry.Register(vec); err != nil {
			return
		}
		b.counters[name] = vec
	}
	vec.With(prometheus.Labels(labels)).Add(delta)
}

// ObserveHistogram implements metrics.Backend. Values are recorded as
// summaries, which push more compactly than full histograms.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	b.mu.Lock()
	defer b.mu.Unlock()

	vec, ok := b.histograms[name]
	if !ok {
		vec = prometheus.NewSummaryVec(prometheus.SummaryOpts{
			Name:       name,
			Help:       name,
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
			MaxAge:     10 * time.Minute,
		}, labelNames(labels))
		if err := b.registry.Register(vec); err != nil {
			return
		}
		b.histograms[name] = vec
	}
	vec.With(prometheus.Labels(labels)).Observe(value)
}

// Flush pushes all accumulated metrics to the gateway.
func (b *Backend) Flush() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.pusher.Push(); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
