package detect

import (
	"fmt"

	"github.com/chainsleuth/sleuth/internal/graph"
	"github.com/shopspring/decimal"
)

// scan is the read-only input every detector evaluates.
type scan struct {
	graph  *graph.Graph
	stats  *Stats
	rules  Rules
	mixers graph.MixerSet
}

// detector emits candidate findings for one pattern type. Candidates carry
// no label, risk score or evidence; the aggregator attaches those.
type detector func(s *scan) []Finding

var detectors = map[PatternType]detector{
	PatternCircular:    detectCircular,
	PatternLayering:    detectLayering,
	PatternStructuring: detectStructuring,
	PatternPassThrough: detectPassThrough,
	PatternPeelChain:   detectPeelChain,
	PatternMixer:       detectMixer,
	PatternFanOut:      detectFanOut,
	PatternFanIn:       detectFanIn,
	PatternHighVolume:  detectHighVolume,
}

func degreeSeverity(n int, rule DegreeRule) Severity {
	if n >= rule.CriticalAt {
		return SeverityCritical
	}
	return SeverityHigh
}

// detectCircular flags every wallet on a discovered cycle. The implicated set
// is the wallet plus its direct recipients, not the exact cycle.
func detectCircular(s *scan) []Finding {
	report := s.graph.DetectCycles()

	out := make([]Finding, 0, len(report.Wallets))
	for _, w := range report.Wallets {
		wallets := append([]string{w}, without(s.graph.Successors(w), w)...)
		out = append(out, Finding{
			Type:       PatternCircular,
			WalletHash: w,
			Details:    "Part of circular transaction loop",
			Severity:   SeverityCritical,
			Count:      1,
			Wallets:    wallets,
		})
	}
	return out
}

func detectLayering(s *scan) []Finding {
	rule := s.rules.Layering
	var out []Finding
	for _, w := range s.graph.Nodes() {
		outDegree := s.graph.OutDegree(w)
		if outDegree < rule.MinOutDegree {
			continue
		}
		branching := 0
		for _, child := range s.graph.Successors(w) {
			if s.graph.OutDegree(child) >= rule.MinChildOutDegree {
				branching++
			}
		}
		if branching < rule.MinBranchingChildren {
			continue
		}
		out = append(out, Finding{
			Type:       PatternLayering,
			WalletHash: w,
			Details:    fmt.Sprintf("Multi-level branching: %d → %d branches", outDegree, branching),
			Severity:   SeverityHigh,
			Count:      outDegree,
			Wallets:    []string{w},
		})
	}
	return out
}

func detectStructuring(s *scan) []Finding {
	rule := s.rules.Structuring
	minOutflow := decimal.NewFromFloat(rule.MinOutflow)

	var out []Finding
	for _, w := range s.stats.Wallets() {
		ws := s.stats.Get(w)
		if ws.SmallTxCount < rule.MinSmallTx || !ws.Outflow.GreaterThan(minOutflow) {
			continue
		}
		out = append(out, Finding{
			Type:       PatternStructuring,
			WalletHash: w,
			Details: fmt.Sprintf("%d small transactions (<$%s)",
				ws.SmallTxCount, decimal.NewFromFloat(rule.SmallTxThreshold).String()),
			Severity: SeverityHigh,
			Count:    ws.SmallTxCount,
			Wallets:  []string{w},
		})
	}
	return out
}

func detectPassThrough(s *scan) []Finding {
	ratio := decimal.NewFromFloat(s.rules.PassThrough.MinRatio)
	hundred := decimal.NewFromInt(100)

	var out []Finding
	for _, w := range s.stats.Wallets() {
		ws := s.stats.Get(w)
		if !ws.Inflow.IsPositive() || ws.Outflow.LessThan(ws.Inflow.Mul(ratio)) {
			continue
		}
		pct := ws.Outflow.Div(ws.Inflow).Mul(hundred).StringFixed(0)
		out = append(out, Finding{
			Type:       PatternPassThrough,
			WalletHash: w,
			Details:    fmt.Sprintf("Rapid turnover: %s%% of inflow", pct),
			Severity:   SeverityHigh,
			Count:      ws.TxCount,
			Wallets:    []string{w},
		})
	}
	return out
}

// detectPeelChain walks from every single-successor wallet while the next
// wallet also has exactly one successor, stopping on a revisit or MaxHops.
func detectPeelChain(s *scan) []Finding {
	rule := s.rules.PeelChain

	var out []Finding
	for _, w := range s.graph.Nodes() {
		if s.graph.OutDegree(w) != 1 {
			continue
		}
		length := peelChainLength(s.graph, w, rule.MaxHops)
		if length < rule.MinLength {
			continue
		}
		out = append(out, Finding{
			Type:       PatternPeelChain,
			WalletHash: w,
			Details:    fmt.Sprintf("Linear chain of %d wallets", length),
			Severity:   SeverityMedium,
			Count:      length,
			Wallets:    []string{w},
		})
	}
	return out
}

func peelChainLength(g *graph.Graph, start string, maxHops int) int {
	length := 1
	current := start
	visited := map[string]bool{start: true}

	for length < maxHops {
		next, ok := g.Node(current).Out.First()
		if !ok || visited[next] || g.OutDegree(next) != 1 {
			break
		}
		visited[next] = true
		current = next
		length++
	}
	return length
}

func detectMixer(s *scan) []Finding {
	var out []Finding
	for _, w := range s.graph.Nodes() {
		if _, ok := s.graph.TouchesMixer(w, s.mixers); !ok {
			continue
		}
		out = append(out, Finding{
			Type:       PatternMixer,
			WalletHash: w,
			Details:    "Interacts with known mixer service",
			Severity:   SeverityCritical,
			Count:      1,
			Wallets:    []string{w},
		})
	}
	return out
}

func detectFanOut(s *scan) []Finding {
	rule := s.rules.FanOut
	var out []Finding
	for _, w := range s.graph.Nodes() {
		n := s.graph.OutDegree(w)
		if n < rule.Min {
			continue
		}
		out = append(out, Finding{
			Type:       PatternFanOut,
			WalletHash: w,
			Details:    fmt.Sprintf("Sends to %d wallets", n),
			Severity:   degreeSeverity(n, rule),
			Count:      n,
			Wallets:    append([]string{w}, without(s.graph.Successors(w), w)...),
		})
	}
	return out
}

func detectFanIn(s *scan) []Finding {
	rule := s.rules.FanIn
	var out []Finding
	for _, w := range s.graph.Nodes() {
		n := s.graph.InDegree(w)
		if n < rule.Min {
			continue
		}
		out = append(out, Finding{
			Type:       PatternFanIn,
			WalletHash: w,
			Details:    fmt.Sprintf("Receives from %d wallets", n),
			Severity:   degreeSeverity(n, rule),
			Count:      n,
			Wallets:    append([]string{w}, without(s.graph.Predecessors(w), w)...),
		})
	}
	return out
}

func detectHighVolume(s *scan) []Finding {
	rule := s.rules.HighVolume
	var out []Finding
	for _, w := range s.stats.Wallets() {
		ws := s.stats.Get(w)
		if ws.TxCount < rule.Min {
			continue
		}
		out = append(out, Finding{
			Type:       PatternHighVolume,
			WalletHash: w,
			Details:    fmt.Sprintf("%d transactions", ws.TxCount),
			Severity:   degreeSeverity(ws.TxCount, rule),
			Count:      ws.TxCount,
			Wallets:    []string{w},
		})
	}
	return out
}

// without returns addrs minus self, preserving order.
func without(addrs []string, self string) []string {
	out := addrs[:0]
	for _, a := range addrs {
		if a != self {
			out = append(out, a)
		}
	}
	return out
}
