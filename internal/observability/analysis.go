package observability

import "time"

// -----------------------------------------------------------------------
// Analysis metrics: one set per process, fed after every engine run
// -----------------------------------------------------------------------

const (
	metricRuns         = "sleuth_analysis_runs_total"
	metricFindings     = "sleuth_findings_total"
	metricTransactions = "sleuth_transactions_analyzed_total"
	metricSuspicious   = "sleuth_suspicious_wallets"
	metricGraphNodes   = "sleuth_graph_nodes"
	metricDuration     = "sleuth_analysis_duration_ms"
	metricInputSize    = "sleuth_analysis_input_transactions"
	metricStreamPeers  = "sleuth_stream_subscribers"
	metricInputIssues  = "sleuth_input_issues_total"
)

// RunSample is what one analysis run reports.
type RunSample struct {
	Transactions      int
	GraphNodes        int
	SuspiciousWallets int
	FindingsByPattern map[string]int
	IssuesByKind      map[string]int
	Duration          time.Duration
}

// AnalysisMetrics holds the series the engine and API update.
type AnalysisMetrics struct {
	registry     *Registry
	runs         *Counter
	transactions *Counter
	suspicious   *Gauge
	graphNodes   *Gauge
	duration     *Histogram
	inputSize    *Histogram
	subscribers  *Gauge
}

// NewAnalysisMetrics registers the analysis series on r.
func NewAnalysisMetrics(r *Registry) *AnalysisMetrics {
	return &AnalysisMetrics{
		registry:     r,
		runs:         r.Counter(metricRuns, "Completed analysis runs", nil),
		transactions: r.Counter(metricTransactions, "Transactions fed into analysis", nil),
		suspicious:   r.Gauge(metricSuspicious, "Wallets above the suspicious threshold in the last run", nil),
		graphNodes:   r.Gauge(metricGraphNodes, "Graph size of the last run", nil),
		duration:     r.Histogram(metricDuration, "Analysis wall time in milliseconds", nil, DurationBuckets),
		inputSize:    r.Histogram(metricInputSize, "Transactions per analysis run", nil, SizeBuckets),
		subscribers:  r.Gauge(metricStreamPeers, "Connected stream subscribers", nil),
	}
}

// SleuthMetrics creates a registry with the analysis series registered.
func SleuthMetrics() (*Registry, *AnalysisMetrics) {
	r := NewRegistry()
	return r, NewAnalysisMetrics(r)
}

// Registry returns the backing registry.
func (m *AnalysisMetrics) Registry() *Registry {
	return m.registry
}

// ObserveRun records one completed analysis.
func (m *AnalysisMetrics) ObserveRun(s RunSample) {
	m.runs.Inc()
	m.transactions.Add(float64(s.Transactions))
	m.suspicious.Set(float64(s.SuspiciousWallets))
	m.graphNodes.Set(float64(s.GraphNodes))
	m.duration.Observe(float64(s.Duration.Microseconds()) / 1000)
	m.inputSize.Observe(float64(s.Transactions))
	for pattern, n := range s.FindingsByPattern {
		m.registry.Counter(metricFindings, "Findings emitted per pattern", map[string]string{"pattern": pattern}).
			Add(float64(n))
	}
	for kind, n := range s.IssuesByKind {
		m.registry.Counter(metricInputIssues, "Input data issues per kind", map[string]string{"kind": kind}).
			Add(float64(n))
	}
}

// SetSubscribers records the live stream subscriber count.
func (m *AnalysisMetrics) SetSubscribers(n int) {
	m.subscribers.Set(float64(n))
}
