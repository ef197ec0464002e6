package narrative

import (
	"errors"
	"fmt"
	"math"

	"github.com/chainsleuth/sleuth/internal/detect"
)

// ---------------------------------------------------------------------------
// Detection Confidence: rule-based, advisory only
// Confidence grows with the evidence behind a finding up to a per-type
// ceiling. It never feeds the risk score.
// ---------------------------------------------------------------------------

// ErrInvalidConfidence is returned for a confidence table no finding can use.
var ErrInvalidConfidence = errors.New("narrative: invalid confidence rules")

// ConfidenceRule computes
// min(Ceiling, Base + min(BonusCap, PerEvidence*tx + PerWallet*wallets)).
type ConfidenceRule struct {
	Base        float64 `yaml:"base"`
	PerEvidence float64 `yaml:"per_evidence"` // per attached transaction
	PerWallet   float64 `yaml:"per_wallet"`   // per implicated wallet
	BonusCap    float64 `yaml:"bonus_cap"`    // 0 = uncapped bonus
	Ceiling     float64 `yaml:"ceiling"`
}

// DefaultConfidenceRules returns the built-in per-type table.
func DefaultConfidenceRules() map[detect.PatternType]ConfidenceRule {
	return map[detect.PatternType]ConfidenceRule{
		detect.PatternCircular:    {Base: 70, PerEvidence: 2, Ceiling: 95},
		detect.PatternMixer:       {Base: 90, Ceiling: 90},
		detect.PatternFanOut:      {Base: 60, PerWallet: 5, Ceiling: 92},
		detect.PatternFanIn:       {Base: 60, PerWallet: 5, Ceiling: 92},
		detect.PatternPeelChain:   {Base: 75, PerEvidence: 1, Ceiling: 88},
		detect.PatternLayering:    {Base: 65, PerWallet: 3, Ceiling: 85},
		detect.PatternStructuring: {Base: 70, PerEvidence: 1, Ceiling: 82},
		detect.PatternPassThrough: {Base: 65, PerEvidence: 1.5, Ceiling: 80},
		detect.PatternHighVolume:  {Base: 60, PerEvidence: 0.5, BonusCap: 20, Ceiling: 78},
	}
}

// UnknownConfidence applies to pattern types missing from the table.
const UnknownConfidence = 70

// Confidence is the advisory certainty attached to one finding.
type Confidence struct {
	Value int    `json:"confidence"`
	Level string `json:"level"`
	Basis string `json:"basis"`
}

// Level thresholds.
const (
	LevelHigh   = "High confidence"
	LevelMedium = "Medium confidence"
	LevelLow    = "Low confidence"

	BasisRuleBased = "rule-based"
)

// LevelFor maps a confidence value to its display level.
func LevelFor(value int) string {
	switch {
	case value >= 80:
		return LevelHigh
	case value >= 70:
		return LevelMedium
	default:
		return LevelLow
	}
}

// Estimator scores findings against a confidence table.
type Estimator struct {
	rules map[detect.PatternType]ConfidenceRule
}

// NewEstimator merges overrides onto the default table.
func NewEstimator(overrides map[detect.PatternType]ConfidenceRule) (*Estimator, error) {
	rules := DefaultConfidenceRules()
	for t, r := range overrides {
		if !t.Valid() {
			return nil, fmt.Errorf("%w: unknown pattern %q", ErrInvalidConfidence, t)
		}
		if r.Ceiling <= 0 || r.Base < 0 || r.BonusCap < 0 {
			return nil, fmt.Errorf("%w: %s needs a positive ceiling and non-negative base", ErrInvalidConfidence, t)
		}
		rules[t] = r
	}
	return &Estimator{rules: rules}, nil
}

// Estimate returns the confidence for f.
func (e *Estimator) Estimate(f detect.Finding) Confidence {
	value := float64(UnknownConfidence)
	if r, ok := e.rules[f.Type]; ok {
		bonus := r.PerEvidence*float64(len(f.Transactions)) + r.PerWallet*float64(len(f.Wallets))
		if r.BonusCap > 0 {
			bonus = math.Min(bonus, r.BonusCap)
		}
		value = math.Min(r.Ceiling, r.Base+bonus)
	}
	v := int(math.Round(math.Max(0, math.Min(100, value))))
	return Confidence{Value: v, Level: LevelFor(v), Basis: BasisRuleBased}
}

// EstimateAll keys confidences by finding key.
func (e *Estimator) EstimateAll(findings []detect.Finding) map[string]Confidence {
	out := make(map[string]Confidence, len(findings))
	for _, f := range findings {
		out[f.Key()] = e.Estimate(f)
	}
	return out
}
