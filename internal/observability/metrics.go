package observability

import (
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// MetricType identifies the kind of metric.
type MetricType string

const (
	MetricCounter   MetricType = "counter"
	MetricGauge     MetricType = "gauge"
	MetricHistogram MetricType = "histogram"
)

// MetricEntry is a point-in-time view of one series.
type MetricEntry struct {
	Name      string            `json:"name"`
	Type      MetricType        `json:"type"`
	Help      string            `json:"help"`
	Value     float64           `json:"value"`
	Labels    map[string]string `json:"labels,omitempty"`
	Timestamp time.Time         `json:"ts"`
}

// series is the identity shared by every metric kind.
type series struct {
	name   string
	help   string
	labels map[string]string
}

func (s series) entry(t MetricType, v float64) MetricEntry {
	return MetricEntry{
		Name:      s.name,
		Type:      t,
		Help:      s.help,
		Value:     v,
		Labels:    copyLabels(s.labels),
		Timestamp: time.Now(),
	}
}

// -----------------------------------------------------------------------
// Counter
// -----------------------------------------------------------------------

// Counter only goes up. Values are kept in thousandths so Add stays lock-free.
type Counter struct {
	series
	milli atomic.Int64
}

// Inc adds one.
func (c *Counter) Inc() {
	c.milli.Add(1000)
}

// Add adds delta; negative deltas are ignored.
func (c *Counter) Add(delta float64) {
	if delta < 0 {
		return
	}
	c.milli.Add(int64(math.Round(delta * 1000)))
}

// Value returns the current count.
func (c *Counter) Value() float64 {
	return float64(c.milli.Load()) / 1000
}

// Entry snapshots the counter.
func (c *Counter) Entry() MetricEntry {
	return c.entry(MetricCounter, c.Value())
}

// -----------------------------------------------------------------------
// Gauge
// -----------------------------------------------------------------------

// Gauge holds the last value set.
type Gauge struct {
	series
	bits atomic.Uint64
}

// Set stores v.
func (g *Gauge) Set(v float64) {
	g.bits.Store(math.Float64bits(v))
}

// Add moves the gauge by delta.
func (g *Gauge) Add(delta float64) {
	for {
		old := g.bits.Load()
		next := math.Float64bits(math.Float64frombits(old) + delta)
		if g.bits.CompareAndSwap(old, next) {
			return
		}
	}
}

// Value returns the current value.
func (g *Gauge) Value() float64 {
	return math.Float64frombits(g.bits.Load())
}

// Entry snapshots the gauge.
func (g *Gauge) Entry() MetricEntry {
	return g.entry(MetricGauge, g.Value())
}

// -----------------------------------------------------------------------
// Histogram
// -----------------------------------------------------------------------

// Histogram counts observations into cumulative upper-bound buckets.
type Histogram struct {
	series
	mu      sync.Mutex
	buckets []float64
	counts  []int64 // counts[i] = observations <= buckets[i]
	sum     float64
	count   int64
}

// Observe records v.
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sum += v
	h.count++
	for i, b := range h.buckets {
		if v <= b {
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

// Sum returns the total of all observations.
func (h *Histogram) Sum() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sum
}

// Quantile estimates the q-th quantile (0..1) by interpolating inside the
// bucket that holds the target rank.
func (h *Histogram) Quantile(q float64) float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.count == 0 || q < 0 || q > 1 || len(h.buckets) == 0 {
		return 0
	}

	target := q * float64(h.count)
	var lower, below float64
	for i, upper := range h.buckets {
		cum := float64(h.counts[i])
		if cum >= target {
			inBucket := cum - below
			if inBucket == 0 {
				return upper
			}
			return lower + (target-below)/inBucket*(upper-lower)
		}
		lower, below = upper, cum
	}
	return h.buckets[len(h.buckets)-1]
}

// Entry snapshots the histogram; Value is the observation count.
func (h *Histogram) Entry() MetricEntry {
	return h.entry(MetricHistogram, float64(h.Count()))
}

// BucketCounts copies the bucket bounds and cumulative counts.
func (h *Histogram) BucketCounts() (buckets []float64, counts []int64, sum float64, count int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]float64(nil), h.buckets...), append([]int64(nil), h.counts...), h.sum, h.count
}

// -----------------------------------------------------------------------
// Registry
// -----------------------------------------------------------------------

// Registry owns every series. A series is identified by name plus labels, so
// one metric name may carry several labelled series.
type Registry struct {
	mu         sync.RWMutex
	counters   map[string]*Counter
	gauges     map[string]*Gauge
	histograms map[string]*Histogram
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		counters:   make(map[string]*Counter),
		gauges:     make(map[string]*Gauge),
		histograms: make(map[string]*Histogram),
	}
}

func seriesKey(name string, labels map[string]string) string {
	return name + formatLabels(labels)
}

// Counter returns the counter for name and labels, creating it on first use.
func (r *Registry) Counter(name, help string, labels map[string]string) *Counter {
	key := seriesKey(name, labels)
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.counters[key]; ok {
		return c
	}
	c := &Counter{series: series{name: name, help: help, labels: copyLabels(labels)}}
	r.counters[key] = c
	return c
}

// Gauge returns the gauge for name and labels, creating it on first use.
func (r *Registry) Gauge(name, help string, labels map[string]string) *Gauge {
	key := seriesKey(name, labels)
	r.mu.Lock()
	defer r.mu.Unlock()
	if g, ok := r.gauges[key]; ok {
		return g
	}
	g := &Gauge{series: series{name: name, help: help, labels: copyLabels(labels)}}
	r.gauges[key] = g
	return g
}

// Histogram returns the histogram for name and labels, creating it with the
// given buckets on first use.
func (r *Registry) Histogram(name, help string, labels map[string]string, buckets []float64) *Histogram {
	key := seriesKey(name, labels)
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.histograms[key]; ok {
		return h
	}
	sorted := append([]float64(nil), buckets...)
	sort.Float64s(sorted)
	h := &Histogram{
		series:  series{name: name, help: help, labels: copyLabels(labels)},
		buckets: sorted,
		counts:  make([]int64, len(sorted)),
	}
	r.histograms[key] = h
	return h
}

// AllMetrics snapshots every series: counters, then gauges, then histograms,
// each sorted by series key.
func (r *Registry) AllMetrics() []MetricEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]MetricEntry, 0, len(r.counters)+len(r.gauges)+len(r.histograms))
	for _, k := range sortedKeys(r.counters) {
		entries = append(entries, r.counters[k].Entry())
	}
	for _, k := range sortedKeys(r.gauges) {
		entries = append(entries, r.gauges[k].Entry())
	}
	for _, k := range sortedKeys(r.histograms) {
		entries = append(entries, r.histograms[k].Entry())
	}
	return entries
}

// DurationBuckets are analysis latency bounds in milliseconds.
var DurationBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000}

// SizeBuckets are input size bounds (transactions per run).
var SizeBuckets = []float64{10, 100, 1000, 10000, 100000, 1000000}

func copyLabels(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
