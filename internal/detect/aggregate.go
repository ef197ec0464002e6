package detect

import (
	"github.com/chainsleuth/sleuth/internal/graph"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Analyzer runs the detectors in a fixed order and aggregates their output.
// It holds only configuration and is safe for concurrent use.
type Analyzer struct {
	rules  Rules
	mixers graph.MixerSet
	order  []PatternType
}

// NewAnalyzer validates the rule table and detector order.
func NewAnalyzer(rules Rules, mixers graph.MixerSet, order []PatternType) (*Analyzer, error) {
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	if order == nil {
		order = DefaultOrder
	}
	if err := ValidateOrder(order); err != nil {
		return nil, err
	}
	return &Analyzer{
		rules:  rules,
		mixers: mixers,
		order:  append([]PatternType(nil), order...),
	}, nil
}

// Rules returns the analyzer's rule table.
func (a *Analyzer) Rules() Rules {
	return a.rules
}

// Order returns the detector evaluation order.
func (a *Analyzer) Order() []PatternType {
	return append([]PatternType(nil), a.order...)
}

// Run evaluates every detector against one snapshot and returns the
// deduplicated findings in evaluation order.
func (a *Analyzer) Run(g *graph.Graph, wallets []Wallet, txs []Transaction) []Finding {
	s := &scan{
		graph:  g,
		stats:  NewStats(wallets, txs, decimal.NewFromFloat(a.rules.Structuring.SmallTxThreshold)),
		rules:  a.rules,
		mixers: a.mixers,
	}

	var candidates []Finding
	for _, t := range a.order {
		found := detectors[t](s)
		log.Debug().Str("pattern", string(t)).Int("candidates", len(found)).Msg("detect: detector finished")
		candidates = append(candidates, found...)
	}

	findings := Deduplicate(candidates)
	a.finalize(findings, newEvidenceIndex(txs))
	return findings
}

// Deduplicate keeps the first finding for each (wallet, type) key.
func Deduplicate(findings []Finding) []Finding {
	seen := make(map[string]struct{}, len(findings))
	out := make([]Finding, 0, len(findings))
	for _, f := range findings {
		key := f.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, f)
	}
	return out
}

// finalize attaches the label, the fixed risk contribution and, for evidence
// carrying types, the transactions and their time window.
func (a *Analyzer) finalize(findings []Finding, ix *evidenceIndex) {
	for i := range findings {
		f := &findings[i]
		f.Label = Label(f.WalletHash)
		f.Wallets = ensureAnchor(f.Wallets, f.WalletHash)
		f.RiskScore = a.rules.RiskScoreFor(f.Type)

		if a.rules.CollectsEvidence(f.Type) {
			f.Transactions, f.StartTime, f.EndTime = ix.gather(f.Wallets)
		} else {
			f.Transactions = []Transaction{}
		}
	}
}

func ensureAnchor(wallets []string, anchor string) []string {
	for _, w := range wallets {
		if w == anchor {
			return wallets
		}
	}
	return append([]string{anchor}, wallets...)
}

// Summary counts findings per pattern type.
func Summary(findings []Finding) map[PatternType]int {
	counts := make(map[PatternType]int, len(AllPatterns))
	for _, f := range findings {
		counts[f.Type]++
	}
	return counts
}

// LogSummary writes the per-pattern detection summary at debug level.
func LogSummary(findings []Finding) {
	counts := Summary(findings)
	ev := log.Debug()
	for _, t := range AllPatterns {
		ev = ev.Int(string(t), counts[t])
	}
	ev.Int("total", len(findings)).Msg("detect: pattern detection summary")
}
