package risk

import (
	"sync/atomic"

	"github.com/chainsleuth/sleuth/internal/detect"
	"github.com/rs/zerolog/log"
)

// Calculator folds findings into per-wallet risk scores.
//
// A wallet's total is the sum of the fixed contributions of the findings
// anchored to it, capped at the configured maximum. Findings without a risk
// score are advisory and never contribute.
type Calculator struct {
	max int

	// Metrics
	scored  atomic.Int64
	flagged atomic.Int64
	capped  atomic.Int64
}

// Contribution is one finding's share of a wallet score.
type Contribution struct {
	Pattern string `json:"pattern"`
	Score   int    `json:"score"`
}

// Score is the risk verdict for one wallet.
type Score struct {
	Total         int            `json:"total"`
	Contributions []Contribution `json:"contributions"`
}

// Zero is the score of an unflagged wallet.
func Zero() Score {
	return Score{Contributions: []Contribution{}}
}

// DefaultMax is the risk ceiling.
const DefaultMax = 100

// New creates a calculator capping totals at max. A non-positive max falls
// back to DefaultMax.
func New(max int) *Calculator {
	if max <= 0 || max > DefaultMax {
		max = DefaultMax
	}
	return &Calculator{max: max}
}

// Score computes a verdict for every hash in wallets. Wallets that appear
// only as finding anchors are scored too.
func (c *Calculator) Score(findings []detect.Finding, wallets []string) map[string]Score {
	scores := make(map[string]Score, len(wallets))
	for _, w := range wallets {
		scores[w] = Zero()
	}

	sums := make(map[string]int)
	for _, f := range findings {
		s, ok := scores[f.WalletHash]
		if !ok {
			s = Zero()
		}
		if f.RiskScore > 0 {
			s.Contributions = append(s.Contributions, Contribution{
				Pattern: f.Type.DisplayName(),
				Score:   f.RiskScore,
			})
			sums[f.WalletHash] += f.RiskScore
		}
		scores[f.WalletHash] = s
	}

	for w, sum := range sums {
		s := scores[w]
		s.Total = sum
		if sum > c.max {
			s.Total = c.max
			c.capped.Add(1)
			log.Debug().Str("wallet", w).Int("sum", sum).Int("max", c.max).Msg("risk: score capped")
		}
		scores[w] = s
		c.flagged.Add(1)
	}
	c.scored.Add(int64(len(scores)))
	return scores
}

// Suspicious counts wallets whose total exceeds threshold.
func Suspicious(scores map[string]Score, threshold int) int {
	n := 0
	for _, s := range scores {
		if s.Total > threshold {
			n++
		}
	}
	return n
}

// Metrics returns calculator counters since creation.
func (c *Calculator) Metrics() map[string]interface{} {
	return map[string]interface{}{
		"max_score":     c.max,
		"scored_total":  c.scored.Load(),
		"flagged_total": c.flagged.Load(),
		"capped_total":  c.capped.Load(),
	}
}
