package risk

import (
	"testing"

	"github.com/chainsleuth/sleuth/internal/detect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func finding(wallet string, t detect.PatternType, score int) detect.Finding {
	return detect.Finding{Type: t, WalletHash: wallet, RiskScore: score}
}

func TestScore_SumsContributionsInFindingOrder(t *testing.T) {
	c := New(DefaultMax)
	scores := c.Score([]detect.Finding{
		finding("w1", detect.PatternCircular, 35),
		finding("w1", detect.PatternLayering, 0),
		finding("w1", detect.PatternFanOut, 25),
	}, []string{"w1"})

	s := scores["w1"]
	assert.Equal(t, 60, s.Total)
	assert.Equal(t, []Contribution{
		{Pattern: "Circular", Score: 35},
		{Pattern: "Fan-out", Score: 25},
	}, s.Contributions)
}

func TestScore_CappedAtMax(t *testing.T) {
	c := New(DefaultMax)
	scores := c.Score([]detect.Finding{
		finding("w", detect.PatternCircular, 35),
		finding("w", detect.PatternMixer, 40),
		finding("w", detect.PatternFanOut, 25),
		finding("w", detect.PatternFanIn, 20),
		finding("w", detect.PatternHighVolume, 15),
	}, nil)

	assert.Equal(t, 100, scores["w"].Total)
	assert.Len(t, scores["w"].Contributions, 5)
	assert.Equal(t, int64(1), c.Metrics()["capped_total"])
}

func TestScore_UnflaggedWalletsGetZero(t *testing.T) {
	c := New(0)
	scores := c.Score([]detect.Finding{finding("a", detect.PatternPassThrough, 0)}, []string{"a", "b"})

	require.Contains(t, scores, "a")
	require.Contains(t, scores, "b")
	for _, w := range []string{"a", "b"} {
		assert.Zero(t, scores[w].Total)
		assert.NotNil(t, scores[w].Contributions)
		assert.Empty(t, scores[w].Contributions)
	}
}

func TestScore_CustomMax(t *testing.T) {
	c := New(50)
	scores := c.Score([]detect.Finding{
		finding("w", detect.PatternMixer, 40),
		finding("w", detect.PatternCircular, 35),
	}, nil)
	assert.Equal(t, 50, scores["w"].Total)
}

func TestSuspicious(t *testing.T) {
	scores := map[string]Score{
		"a": {Total: 50},
		"b": {Total: 51},
		"c": {Total: 100},
		"d": Zero(),
	}
	assert.Equal(t, 2, Suspicious(scores, 50))
}

func TestMetrics(t *testing.T) {
	c := New(DefaultMax)
	c.Score([]detect.Finding{finding("x", detect.PatternMixer, 40)}, []string{"x", "y"})

	m := c.Metrics()
	assert.Equal(t, 100, m["max_score"])
	assert.Equal(t, int64(2), m["scored_total"])
	assert.Equal(t, int64(1), m["flagged_total"])
	assert.Equal(t, int64(0), m["capped_total"])
}
