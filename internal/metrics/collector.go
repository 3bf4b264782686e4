// Package metrics exposes signalbot counters in the Prometheus text format.
// The exposition format is small enough that pulling in client_golang is not worth it.
package metrics

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Default is the process-wide collector used by transports and the relay.
var Default = NewCollector()

// Collector holds every registered series.
type Collector struct {
	mu         sync.RWMutex
	counters   map[string]*Counter
	histograms map[string]*Histogram
	startTime  time.Time
}

func NewCollector() *Collector {
	return &Collector{
		counters:   make(map[string]*Counter),
		histograms: make(map[string]*Histogram),
		startTime:  time.Now(),
	}
}

// Counter is a monotonically increasing value.
type Counter struct {
	name   string
	help   string
	labels string
	value  atomic.Int64
}

func (c *Counter) Inc()         { c.value.Add(1) }
func (c *Counter) Value() int64 { return c.value.Load() }

// Histogram tracks the distribution of observed values in cumulative buckets.
type Histogram struct {
	name   string
	help   string
	mu     sync.Mutex
	bounds []float64
	counts []int64
	count  int64
	sum    float64
}

func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += v
	for i, le := range h.bounds {
		if v <= le {
			h.counts[i]++
		}
	}
}

// Count returns the number of observations.
func (h *Histogram) Count() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

// Counter returns the counter for name and labels, creating it on first use.
// labels is the raw label set, e.g. `kind="react"`.
func (c *Collector) Counter(name, help, labels string) *Counter {
	key := name + "{" + labels + "}"
	c.mu.RLock()
	ctr, ok := c.counters[key]
	c.mu.RUnlock()
	if ok {
		return ctr
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if ctr, ok := c.counters[key]; ok {
		return ctr
	}
	ctr = &Counter{name: name, help: help, labels: labels}
	c.counters[key] = ctr
	return ctr
}

// Histogram returns the histogram for name, creating it with buckets on first use.
func (c *Collector) Histogram(name, help string, buckets []float64) *Histogram {
	c.mu.RLock()
	h, ok := c.histograms[name]
	c.mu.RUnlock()
	if ok {
		return h
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if h, ok := c.histograms[name]; ok {
		return h
	}
	bounds := append([]float64(nil), buckets...)
	sort.Float64s(bounds)
	if len(bounds) == 0 || !math.IsInf(bounds[len(bounds)-1], 1) {
		bounds = append(bounds, math.Inf(1))
	}
	h = &Histogram{name: name, help: help, bounds: bounds, counts: make([]int64, len(bounds))}
	c.histograms[name] = h
	return h
}

// WriteTo renders every series in Prometheus text format.
func (c *Collector) WriteTo(w io.Writer) (int64, error) {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# HELP signalbot_uptime_seconds Time since start in seconds\n")
	fmt.Fprintf(&sb, "# TYPE signalbot_uptime_seconds gauge\n")
	fmt.Fprintf(&sb, "signalbot_uptime_seconds %d\n", int64(time.Since(c.startTime).Seconds()))

	c.mu.RLock()
	counterKeys := sortedKeys(c.counters)
	histKeys := sortedKeys(c.histograms)
	c.mu.RUnlock()

	helpWritten := make(map[string]bool)
	for _, key := range counterKeys {
		c.mu.RLock()
		ctr := c.counters[key]
		c.mu.RUnlock()
		if !helpWritten[ctr.name] {
			fmt.Fprintf(&sb, "# HELP %s %s\n# TYPE %s counter\n", ctr.name, ctr.help, ctr.name)
			helpWritten[ctr.name] = true
		}
		if ctr.labels != "" {
			fmt.Fprintf(&sb, "%s{%s} %d\n", ctr.name, ctr.labels, ctr.Value())
		} else {
			fmt.Fprintf(&sb, "%s %d\n", ctr.name, ctr.Value())
		}
	}

	for _, key := range histKeys {
		c.mu.RLock()
		h := c.histograms[key]
		c.mu.RUnlock()

		h.mu.Lock()
		fmt.Fprintf(&sb, "# HELP %s %s\n# TYPE %s histogram\n", h.name, h.help, h.name)
		for i, le := range h.bounds {
			bound := fmt.Sprintf("%g", le)
			if math.IsInf(le, 1) {
				bound = "+Inf"
			}
			fmt.Fprintf(&sb, "%s_bucket{le=\"%s\"} %d\n", h.name, bound, h.counts[i])
		}
		fmt.Fprintf(&sb, "%s_count %d\n%s_sum %f\n", h.name, h.count, h.name, h.sum)
		h.mu.Unlock()
	}

	n, err := io.WriteString(w, sb.String())
	return int64(n), err
}

// Handler serves the collector over HTTP.
func (c *Collector) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		if _, err := c.WriteTo(w); err != nil {
			slog.Warn("metrics write failed", "remote", r.RemoteAddr, "err", err)
		}
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// --- Series used across signalbot ---

const (
	PayloadsName = "signalbot_payloads_total"
	PayloadsHelp = "Payloads accepted by the transport"

	TransportFailuresName = "signalbot_transport_failures_total"
	TransportFailuresHelp = "Payloads the transport failed to accept"

	SendLatencyName = "signalbot_send_latency_seconds"
	SendLatencyHelp = "Transport send latency in seconds"

	RelayRequestsName = "signalbot_relay_requests_total"
	RelayRequestsHelp = "Requests read by the relay"

	RelayRejectedName = "signalbot_relay_rejected_total"
	RelayRejectedHelp = "Relay requests that could not be processed"
)

var SendLatencyBuckets = []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5}
