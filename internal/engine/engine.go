package engine

import (
	"fmt"
	"time"

	"github.com/chainsleuth/sleuth/internal/detect"
	"github.com/chainsleuth/sleuth/internal/graph"
	"github.com/chainsleuth/sleuth/internal/narrative"
	"github.com/chainsleuth/sleuth/internal/observability"
	"github.com/chainsleuth/sleuth/internal/quality"
	"github.com/chainsleuth/sleuth/internal/risk"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ---------------------------------------------------------------------------
// Analysis Engine: one call turns a wallet/transaction snapshot into
// findings, risk scores, explanations and confidences.
// Every call builds its own graph and index; the Engine itself is immutable.
// ---------------------------------------------------------------------------

// DefaultSuspiciousThreshold is the risk total above which a wallet counts
// as suspicious in run statistics.
const DefaultSuspiciousThreshold = 50

// Config configures an Engine.
type Config struct {
	Rules       detect.Rules                                   `yaml:"rules"`
	Order       []detect.PatternType                           `yaml:"order"`
	ExtraMixers map[string]string                              `yaml:"extra_mixers"` // address -> service name
	Templates   map[detect.PatternType]string                  `yaml:"templates"`
	Confidence  map[detect.PatternType]narrative.ConfidenceRule `yaml:"confidence"`

	SuspiciousThreshold int `yaml:"suspicious_threshold"`
}

// DefaultConfig returns the production engine configuration.
func DefaultConfig() Config {
	return Config{
		Rules:               detect.DefaultRules(),
		Order:               append([]detect.PatternType(nil), detect.DefaultOrder...),
		SuspiciousThreshold: DefaultSuspiciousThreshold,
	}
}

// Option customizes an Engine.
type Option func(*Engine)

// WithMetrics records every run on m.
func WithMetrics(m *observability.AnalysisMetrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// Engine runs analyses. It is safe for concurrent use.
type Engine struct {
	analyzer  *detect.Analyzer
	scorer    *risk.Calculator
	estimator *narrative.Estimator
	explainer *narrative.Explainer
	metrics   *observability.AnalysisMetrics
	threshold int
}

// New validates cfg and builds an Engine.
func New(cfg Config, opts ...Option) (*Engine, error) {
	mixers := graph.DefaultMixerSet().With(cfg.ExtraMixers)

	analyzer, err := detect.NewAnalyzer(cfg.Rules, mixers, cfg.Order)
	if err != nil {
		return nil, fmt.Errorf("engine: rules: %w", err)
	}
	estimator, err := narrative.NewEstimator(cfg.Confidence)
	if err != nil {
		return nil, fmt.Errorf("engine: confidence: %w", err)
	}
	explainer, err := narrative.NewExplainer(cfg.Templates)
	if err != nil {
		return nil, fmt.Errorf("engine: templates: %w", err)
	}

	threshold := cfg.SuspiciousThreshold
	if threshold <= 0 {
		threshold = DefaultSuspiciousThreshold
	}

	e := &Engine{
		analyzer:  analyzer,
		scorer:    risk.New(cfg.Rules.MaxRiskScore),
		estimator: estimator,
		explainer: explainer,
		threshold: threshold,
	}
	for _, opt := range opts {
		opt(e)
	}

	log.Debug().
		Int("mixers", mixers.Len()).
		Int("detectors", len(analyzer.Order())).
		Msg("engine: initialized")
	return e, nil
}

// Result is the output of one analysis run.
type Result struct {
	RunID        string                          `json:"runId"`
	Findings     []detect.Finding                `json:"findings"`
	RiskScores   map[string]risk.Score           `json:"riskScores"`
	Explanations map[string]string               `json:"explanations"`
	Confidences  map[string]narrative.Confidence `json:"confidences"`
	Statistics   Statistics                      `json:"statistics"`
	Quality      quality.Report                  `json:"quality"`
	Duration     time.Duration                   `json:"-"`
	DurationMs   float64                         `json:"durationMs"`
}

// RiskScore returns the score for hash; unknown hashes score zero.
func (r *Result) RiskScore(hash string) risk.Score {
	if s, ok := r.RiskScores[hash]; ok {
		return s
	}
	return risk.Zero()
}

// FindingsFor returns the findings anchored to hash, in result order.
func (r *Result) FindingsFor(hash string) []detect.Finding {
	var out []detect.Finding
	for _, f := range r.Findings {
		if f.WalletHash == hash {
			out = append(out, f)
		}
	}
	return out
}

// Analyze runs every detector over one snapshot. It never fails: bad
// timestamps are skipped and unknown endpoints become bare graph nodes.
func (e *Engine) Analyze(wallets []detect.Wallet, txs []detect.Transaction) *Result {
	start := time.Now()
	runID := uuid.New().String()

	g := detect.BuildGraph(txs)
	findings := e.analyzer.Run(g, wallets, txs)
	scores := e.scorer.Score(findings, scoredWallets(g, wallets))

	res := &Result{
		RunID:        runID,
		Findings:     findings,
		RiskScores:   scores,
		Explanations: e.explainer.ExplainAll(findings),
		Confidences:  e.estimator.EstimateAll(findings),
		Statistics:   computeStatistics(g, wallets, txs, scores, e.threshold),
		Quality:      quality.Inspect(wallets, txs),
	}
	res.Duration = time.Since(start)
	res.DurationMs = float64(res.Duration.Microseconds()) / 1000

	detect.LogSummary(findings)
	log.Info().
		Str("run_id", runID).
		Int("transactions", len(txs)).
		Int("wallets", res.Statistics.UniqueWallets).
		Int("findings", len(findings)).
		Int("suspicious", res.Statistics.SuspiciousWallets).
		Dur("took", res.Duration).
		Msg("engine: analysis complete")

	if e.metrics != nil {
		byPattern := make(map[string]int)
		for t, n := range detect.Summary(findings) {
			byPattern[string(t)] = n
		}
		issues := make(map[string]int, len(res.Quality.Counts))
		for k, n := range res.Quality.Counts {
			issues[string(k)] = n
		}
		e.metrics.ObserveRun(observability.RunSample{
			Transactions:      len(txs),
			GraphNodes:        g.Len(),
			SuspiciousWallets: res.Statistics.SuspiciousWallets,
			FindingsByPattern: byPattern,
			IssuesByKind:      issues,
			Duration:          res.Duration,
		})
	}
	return res
}

// scoredWallets is the wallet list followed by graph-only nodes.
func scoredWallets(g *graph.Graph, wallets []detect.Wallet) []string {
	seen := make(map[string]struct{}, len(wallets)+g.Len())
	out := make([]string, 0, len(wallets)+g.Len())
	for _, w := range wallets {
		if _, ok := seen[w.Hash]; !ok {
			seen[w.Hash] = struct{}{}
			out = append(out, w.Hash)
		}
	}
	for _, n := range g.Nodes() {
		if _, ok := seen[n]; !ok {
			seen[n] = struct{}{}
			out = append(out, n)
		}
	}
	return out
}
