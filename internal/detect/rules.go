package detect

import (
	"errors"
	"fmt"
)

// ErrInvalidRules is returned when a rule table or detector order cannot be used.
var ErrInvalidRules = errors.New("detect: invalid rules")

// DegreeRule triggers on a count (distinct counterparts or transactions)
// reaching Min; CriticalAt upgrades the severity from high to critical.
type DegreeRule struct {
	Min        int  `yaml:"min"`
	CriticalAt int  `yaml:"critical_at"`
	RiskScore  int  `yaml:"risk_score"`
	Evidence   bool `yaml:"evidence"` // attach transactions and a time window
}

// LayeringRule triggers on multi-level branching.
type LayeringRule struct {
	MinOutDegree         int  `yaml:"min_out_degree"`
	MinChildOutDegree    int  `yaml:"min_child_out_degree"`
	MinBranchingChildren int  `yaml:"min_branching_children"`
	RiskScore            int  `yaml:"risk_score"`
	Evidence             bool `yaml:"evidence"`
}

// StructuringRule triggers on many sub-threshold outgoing transfers.
type StructuringRule struct {
	SmallTxThreshold float64 `yaml:"small_tx_threshold"` // amount < threshold counts as small
	MinSmallTx       int     `yaml:"min_small_tx"`
	MinOutflow       float64 `yaml:"min_outflow"` // outflow must exceed this
	RiskScore        int     `yaml:"risk_score"`
	Evidence         bool    `yaml:"evidence"`
}

// PassThroughRule triggers when outflow tracks inflow.
type PassThroughRule struct {
	MinRatio  float64 `yaml:"min_ratio"` // outflow >= ratio * inflow
	RiskScore int     `yaml:"risk_score"`
	Evidence  bool    `yaml:"evidence"`
}

// PeelChainRule triggers on long single-successor chains.
type PeelChainRule struct {
	MaxHops   int  `yaml:"max_hops"`
	MinLength int  `yaml:"min_length"`
	RiskScore int  `yaml:"risk_score"`
	Evidence  bool `yaml:"evidence"`
}

// FlatRule is a pattern with no tunable threshold.
type FlatRule struct {
	RiskScore int  `yaml:"risk_score"`
	Evidence  bool `yaml:"evidence"`
}

// Rules is the full per-pattern rule table.
type Rules struct {
	FanOut       DegreeRule      `yaml:"fan_out"`
	FanIn        DegreeRule      `yaml:"fan_in"`
	Layering     LayeringRule    `yaml:"layering"`
	Structuring  StructuringRule `yaml:"structuring"`
	PassThrough  PassThroughRule `yaml:"pass_through"`
	PeelChain    PeelChainRule   `yaml:"peel_chain"`
	Mixer        FlatRule        `yaml:"mixer"`
	HighVolume   DegreeRule      `yaml:"high_volume"`
	Circular     FlatRule        `yaml:"circular"`
	MaxRiskScore int             `yaml:"max_risk_score"`
}

// DefaultRules returns the production rule table.
// Only circular, mixer, fan-out, fan-in and high-volume carry a risk score.
func DefaultRules() Rules {
	return Rules{
		FanOut: DegreeRule{Min: 4, CriticalAt: 8, RiskScore: 25, Evidence: true},
		FanIn:  DegreeRule{Min: 4, CriticalAt: 8, RiskScore: 20, Evidence: true},
		Layering: LayeringRule{
			MinOutDegree:         3,
			MinChildOutDegree:    2,
			MinBranchingChildren: 2,
		},
		Structuring: StructuringRule{
			SmallTxThreshold: 10,
			MinSmallTx:       10,
			MinOutflow:       100,
		},
		PassThrough:  PassThroughRule{MinRatio: 0.9},
		PeelChain:    PeelChainRule{MaxHops: 8, MinLength: 5},
		Mixer:        FlatRule{RiskScore: 40},
		HighVolume:   DegreeRule{Min: 15, CriticalAt: 30, RiskScore: 15, Evidence: true},
		Circular:     FlatRule{RiskScore: 35, Evidence: true},
		MaxRiskScore: 100,
	}
}

// DefaultOrder is the detector evaluation order. Deduplication keeps the first
// finding per (wallet, type), so this order decides survivorship.
var DefaultOrder = []PatternType{
	PatternCircular,
	PatternLayering,
	PatternStructuring,
	PatternPassThrough,
	PatternPeelChain,
	PatternMixer,
	PatternFanOut,
	PatternFanIn,
	PatternHighVolume,
}

// RiskScoreFor returns the fixed contribution of pattern t (0 = none).
func (r Rules) RiskScoreFor(t PatternType) int {
	score, _ := r.meta(t)
	return score
}

// CollectsEvidence reports whether findings of type t carry transactions.
func (r Rules) CollectsEvidence(t PatternType) bool {
	_, evidence := r.meta(t)
	return evidence
}

func (r Rules) meta(t PatternType) (int, bool) {
	switch t {
	case PatternFanOut:
		return r.FanOut.RiskScore, r.FanOut.Evidence
	case PatternFanIn:
		return r.FanIn.RiskScore, r.FanIn.Evidence
	case PatternLayering:
		return r.Layering.RiskScore, r.Layering.Evidence
	case PatternStructuring:
		return r.Structuring.RiskScore, r.Structuring.Evidence
	case PatternPassThrough:
		return r.PassThrough.RiskScore, r.PassThrough.Evidence
	case PatternPeelChain:
		return r.PeelChain.RiskScore, r.PeelChain.Evidence
	case PatternMixer:
		return r.Mixer.RiskScore, r.Mixer.Evidence
	case PatternHighVolume:
		return r.HighVolume.RiskScore, r.HighVolume.Evidence
	case PatternCircular:
		return r.Circular.RiskScore, r.Circular.Evidence
	default:
		return 0, false
	}
}

// Validate checks the table for values no detector can work with.
func (r Rules) Validate() error {
	for name, d := range map[string]DegreeRule{"fan_out": r.FanOut, "fan_in": r.FanIn, "high_volume": r.HighVolume} {
		if d.Min <= 0 {
			return fmt.Errorf("%w: %s.min must be positive", ErrInvalidRules, name)
		}
		if d.CriticalAt < d.Min {
			return fmt.Errorf("%w: %s.critical_at below min", ErrInvalidRules, name)
		}
	}
	if r.Layering.MinOutDegree <= 0 || r.Layering.MinBranchingChildren <= 0 {
		return fmt.Errorf("%w: layering thresholds must be positive", ErrInvalidRules)
	}
	if r.Structuring.MinSmallTx <= 0 || r.Structuring.SmallTxThreshold <= 0 {
		return fmt.Errorf("%w: structuring thresholds must be positive", ErrInvalidRules)
	}
	if r.PassThrough.MinRatio <= 0 {
		return fmt.Errorf("%w: pass_through.min_ratio must be positive", ErrInvalidRules)
	}
	if r.PeelChain.MaxHops < 1 || r.PeelChain.MinLength < 1 {
		return fmt.Errorf("%w: peel_chain hops and length must be at least 1", ErrInvalidRules)
	}
	if r.MaxRiskScore <= 0 || r.MaxRiskScore > 100 {
		return fmt.Errorf("%w: max_risk_score must be in (0,100]", ErrInvalidRules)
	}
	for _, t := range AllPatterns {
		if s := r.RiskScoreFor(t); s < 0 {
			return fmt.Errorf("%w: %s risk_score is negative", ErrInvalidRules, t)
		}
	}
	return nil
}

// ValidateOrder checks that order names each known pattern at most once.
func ValidateOrder(order []PatternType) error {
	if len(order) == 0 {
		return fmt.Errorf("%w: empty detector order", ErrInvalidRules)
	}
	seen := make(map[PatternType]bool, len(order))
	for _, t := range order {
		if !t.Valid() {
			return fmt.Errorf("%w: unknown pattern %q in order", ErrInvalidRules, t)
		}
		if seen[t] {
			return fmt.Errorf("%w: pattern %q listed twice", ErrInvalidRules, t)
		}
		seen[t] = true
	}
	return nil
}
