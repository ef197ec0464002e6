package observability

import (
	"fmt"
	"math"
	"net/http"
	"sort"
	"strings"
)

// PrometheusExporter renders a Registry in the Prometheus text format.
type PrometheusExporter struct {
	registry *Registry
}

// NewPrometheusExporter creates an exporter over registry.
func NewPrometheusExporter(registry *Registry) *PrometheusExporter {
	return &PrometheusExporter{registry: registry}
}

// ServeHTTP serves the /metrics endpoint.
func (e *PrometheusExporter) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(e.Format()))
}

// Format writes every series. HELP and TYPE are emitted once per metric
// name, followed by all of its labelled series:
//
//	# HELP <name> <help>
//	# TYPE <name> <type>
//	<name>{labels} <value>
func (e *PrometheusExporter) Format() string {
	var b strings.Builder

	e.registry.mu.RLock()
	defer e.registry.mu.RUnlock()

	writeFamilies(&b, e.registry.counters, MetricCounter, func(b *strings.Builder, c *Counter) {
		fmt.Fprintf(b, "%s%s %s\n", c.name, formatLabels(c.labels), formatFloat(c.Value()))
	})
	writeFamilies(&b, e.registry.gauges, MetricGauge, func(b *strings.Builder, g *Gauge) {
		fmt.Fprintf(b, "%s%s %s\n", g.name, formatLabels(g.labels), formatFloat(g.Value()))
	})
	writeFamilies(&b, e.registry.histograms, MetricHistogram, func(b *strings.Builder, h *Histogram) {
		buckets, counts, sum, count := h.BucketCounts()
		for i, bound := range buckets {
			fmt.Fprintf(b, "%s_bucket%s %d\n", h.name, addLabel(h.labels, "le", formatFloat(bound)), counts[i])
		}
		fmt.Fprintf(b, "%s_bucket%s %d\n", h.name, addLabel(h.labels, "le", "+Inf"), count)
		fmt.Fprintf(b, "%s_sum%s %s\n", h.name, formatLabels(h.labels), formatFloat(sum))
		fmt.Fprintf(b, "%s_count%s %d\n", h.name, formatLabels(h.labels), count)
	})
	return b.String()
}

type named interface {
	meta() series
}

func (s series) meta() series { return s }

// writeFamilies groups series by metric name in sorted key order.
func writeFamilies[M named](b *strings.Builder, all map[string]M, t MetricType, line func(*strings.Builder, M)) {
	current := ""
	for _, key := range sortedKeys(all) {
		m := all[key]
		s := m.meta()
		if s.name != current {
			if current != "" {
				b.WriteByte('\n')
			}
			fmt.Fprintf(b, "# HELP %s %s\n", s.name, s.help)
			fmt.Fprintf(b, "# TYPE %s %s\n", s.name, t)
			current = s.name
		}
		line(b, m)
	}
	if current != "" {
		b.WriteByte('\n')
	}
}

// formatLabels renders {k1="v1",k2="v2"} with sorted keys, or "" when empty.
func formatLabels(labels map[string]string) string {
	if len(labels) == 0 {
		return ""
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%q", k, labels[k]))
	}
	return "{" + strings.Join(parts, ",") + "}"
}

func addLabel(base map[string]string, key, value string) string {
	merged := copyLabels(base)
	if merged == nil {
		merged = make(map[string]string, 1)
	}
	merged[key] = value
	return formatLabels(merged)
}

func formatFloat(v float64) string {
	switch {
	case math.IsInf(v, 1):
		return "+Inf"
	case math.IsInf(v, -1):
		return "-Inf"
	case math.IsNaN(v):
		return "NaN"
	}
	return fmt.Sprintf("%g", v)
}
