package narrative

import (
	"testing"
	"time"

	"github.com/chainsleuth/sleuth/internal/detect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newExplainer(t *testing.T) *Explainer {
	t.Helper()
	e, err := NewExplainer(nil)
	require.NoError(t, err)
	return e
}

func TestTruncateHash(t *testing.T) {
	assert.Equal(t, "0xabcdef...", TruncateHash("0xabcdef0123456789"))
	assert.Equal(t, "0xab...", TruncateHash("0xab"))
}

func TestExplain_FanOut(t *testing.T) {
	f := detect.Finding{
		Type:       detect.PatternFanOut,
		WalletHash: "0x1234567890abcdef",
		Wallets:    []string{"0x1234567890abcdef", "a", "b", "c", "d"},
	}
	got := newExplainer(t).Explain(f)
	assert.Equal(t, "Fan-out pattern detected: A single wallet (0x123456...) sent funds to 4 recipient wallets. "+
		"This dispersal pattern may be used to break transaction chains and avoid detection.", got)
}

func TestExplain_FanIn(t *testing.T) {
	f := detect.Finding{
		Type:       detect.PatternFanIn,
		WalletHash: "0xsinkwallet",
		Wallets:    []string{"0xsinkwallet", "a", "b", "c", "d", "e"},
	}
	got := newExplainer(t).Explain(f)
	assert.Contains(t, got, "Fan-in pattern detected: 5 different wallets sent funds to a single wallet (0xsinkwa...).")
}

func TestExplain_CircularTimeframe(t *testing.T) {
	e := newExplainer(t)
	f := detect.Finding{Type: detect.PatternCircular, WalletHash: "A", Wallets: []string{"A", "B"}}

	assert.Contains(t, e.Explain(f), "through 2 wallets and returned to the original wallet within an unknown timeframe")

	end := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	f.EndTime = &end
	assert.Contains(t, e.Explain(f), "within minutes with minimal value loss")
}

func TestExplain_HighVolumeUsesEvidenceCount(t *testing.T) {
	f := detect.Finding{
		Type:         detect.PatternHighVolume,
		WalletHash:   "0xbusybusybusy",
		Wallets:      []string{"0xbusybusybusy"},
		Transactions: make([]detect.Transaction, 17),
	}
	assert.Contains(t, newExplainer(t).Explain(f), "Wallet 0xbusybu... processed 17 transactions.")
}

func TestExplain_EmptyWalletsCountAsOne(t *testing.T) {
	f := detect.Finding{Type: detect.PatternPassThrough, WalletHash: "w"}
	assert.Contains(t, newExplainer(t).Explain(f), "Pass-through wallet detected: 1 wallet(s)")
}

func TestExplain_EveryTypeHasText(t *testing.T) {
	e := newExplainer(t)
	for _, pt := range detect.AllPatterns {
		got := e.Explain(detect.Finding{Type: pt, WalletHash: "0xdeadbeefcafe", Wallets: []string{"0xdeadbeefcafe"}})
		assert.NotEqual(t, FallbackExplanation, got, pt)
		assert.NotEmpty(t, got)
	}
	assert.Contains(t, e.Explain(detect.Finding{Type: detect.PatternStructuring}), `"smurfing"`)
}

func TestExplain_UnknownTypeFallback(t *testing.T) {
	assert.Equal(t, FallbackExplanation, newExplainer(t).Explain(detect.Finding{Type: "unheard-of"}))
}

func TestNewExplainer_Overrides(t *testing.T) {
	e, err := NewExplainer(map[detect.PatternType]string{
		detect.PatternMixer: "Mixer near {{.ShortHash}} ({{.Details}})",
	})
	require.NoError(t, err)
	got := e.Explain(detect.Finding{Type: detect.PatternMixer, WalletHash: "0x0123456789", Details: "pool 2"})
	assert.Equal(t, "Mixer near 0x012345... (pool 2)", got)
}

func TestNewExplainer_RejectsBadTemplates(t *testing.T) {
	tests := []struct {
		name      string
		overrides map[detect.PatternType]string
	}{
		{"syntax", map[detect.PatternType]string{detect.PatternMixer: "{{.ShortHash"}},
		{"unknown field", map[detect.PatternType]string{detect.PatternMixer: "{{.Nope}}"}},
		{"unknown type", map[detect.PatternType]string{"bogus": "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewExplainer(tt.overrides)
			assert.ErrorIs(t, err, ErrInvalidTemplate)
		})
	}
}

func TestExplainAll(t *testing.T) {
	out := newExplainer(t).ExplainAll([]detect.Finding{
		{Type: detect.PatternMixer, WalletHash: "w"},
		{Type: detect.PatternFanOut, WalletHash: "w", Wallets: []string{"w", "x", "y", "z", "q"}},
	})
	require.Len(t, out, 2)
	assert.Contains(t, out["w:mixer"], "Mixer interaction detected")
	assert.Contains(t, out["w:fan-out"], "4 recipient wallets")
}
