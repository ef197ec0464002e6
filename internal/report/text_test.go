package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/chainsleuth/sleuth/internal/engine"
	"github.com/chainsleuth/sleuth/internal/risk"
	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteText(t *testing.T) {
	color.NoColor = true
	res := analyze(t)

	var buf bytes.Buffer
	WriteText(&buf, res, 5)
	out := buf.String()

	assert.Contains(t, out, "Run "+res.RunID)
	assert.Contains(t, out, "transactions: 30")
	assert.Contains(t, out, "Findings (2)")
	assert.Contains(t, out, "[critical]")
	assert.Contains(t, out, "fan-out")
	assert.Contains(t, out, "0xhubw...0001")
	assert.Contains(t, out, res.Explanations[res.Findings[0].Key()])
	assert.Contains(t, out, "Top wallets")
	assert.Contains(t, out, " 40 "+hub)
	assert.Contains(t, out, "Fan-out+25")
}

func TestWriteText_NoFindings(t *testing.T) {
	color.NoColor = true
	e, err := engine.New(engine.DefaultConfig())
	require.NoError(t, err)

	var buf bytes.Buffer
	WriteText(&buf, e.Analyze(nil, nil), 5)
	assert.Contains(t, buf.String(), "none")
	assert.NotContains(t, buf.String(), "Top wallets")
}

func TestRankWallets(t *testing.T) {
	res := &engine.Result{RiskScores: map[string]risk.Score{
		"b": {Total: 40},
		"a": {Total: 40},
		"c": {Total: 75},
		"d": risk.Zero(),
	}}
	assert.Equal(t, []string{"c", "a", "b"}, rankWallets(res, 0))
	assert.Equal(t, []string{"c"}, rankWallets(res, 1))
}

func TestTruncateWallet(t *testing.T) {
	assert.Equal(t, "short", TruncateWallet("short"))
	long := "0x" + strings.Repeat("ab", 20)
	assert.Equal(t, "0xabab...abab", TruncateWallet(long))
}
