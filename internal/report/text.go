package report

import (
	"fmt"
	"io"
	"sort"

	"github.com/chainsleuth/sleuth/internal/detect"
	"github.com/chainsleuth/sleuth/internal/engine"
	"github.com/fatih/color"
)

var (
	headerColor   = color.New(color.FgCyan, color.Bold)
	criticalColor = color.New(color.FgRed, color.Bold)
	highColor     = color.New(color.FgRed)
	mediumColor   = color.New(color.FgYellow)
	dimColor      = color.New(color.Faint)
)

func severityColor(s detect.Severity) *color.Color {
	switch s {
	case detect.SeverityCritical:
		return criticalColor
	case detect.SeverityHigh:
		return highColor
	default:
		return mediumColor
	}
}

// WriteText renders res for a terminal: snapshot statistics, every finding
// with its explanation, then the top wallets by risk score.
func WriteText(w io.Writer, res *engine.Result, top int) {
	st := res.Statistics
	headerColor.Fprintf(w, "Run %s\n", res.RunID)
	fmt.Fprintf(w, "  transactions: %d  wallets: %d  suspicious: %d  volume: %s\n",
		st.TotalTransactions, st.UniqueWallets, st.SuspiciousWallets, st.TotalVolume.String())
	if st.DateRange != nil {
		fmt.Fprintf(w, "  window: %s .. %s\n",
			st.DateRange.Start.Format("2006-01-02 15:04"), st.DateRange.End.Format("2006-01-02 15:04"))
	}

	headerColor.Fprintf(w, "\nFindings (%d)\n", len(res.Findings))
	if len(res.Findings) == 0 {
		dimColor.Fprintln(w, "  none")
	}
	for _, f := range res.Findings {
		key := f.Key()
		severityColor(f.Severity).Fprintf(w, "  [%-8s] ", f.Severity)
		fmt.Fprintf(w, "%-12s %s  %s", f.Type, TruncateWallet(f.WalletHash), f.Details)
		if conf, ok := res.Confidences[key]; ok {
			dimColor.Fprintf(w, "  (%d%% %s)", conf.Value, conf.Level)
		}
		fmt.Fprintln(w)
		if text := res.Explanations[key]; text != "" {
			dimColor.Fprintf(w, "             %s\n", text)
		}
	}

	ranked := rankWallets(res, top)
	if len(ranked) > 0 {
		headerColor.Fprintf(w, "\nTop wallets\n")
	}
	for _, hash := range ranked {
		score := res.RiskScores[hash]
		c := mediumColor
		if score.Total > engine.DefaultSuspiciousThreshold {
			c = criticalColor
		}
		c.Fprintf(w, "  %3d ", score.Total)
		fmt.Fprintf(w, "%s", hash)
		for _, contrib := range score.Contributions {
			dimColor.Fprintf(w, "  %s+%d", contrib.Pattern, contrib.Score)
		}
		fmt.Fprintln(w)
	}
}

// rankWallets returns up to n flagged wallets ordered by descending score,
// ties broken by hash.
func rankWallets(res *engine.Result, n int) []string {
	var hashes []string
	for hash, s := range res.RiskScores {
		if s.Total > 0 {
			hashes = append(hashes, hash)
		}
	}
	sort.Slice(hashes, func(i, j int) bool {
		a, b := res.RiskScores[hashes[i]].Total, res.RiskScores[hashes[j]].Total
		if a != b {
			return a > b
		}
		return hashes[i] < hashes[j]
	})
	if n > 0 && len(hashes) > n {
		hashes = hashes[:n]
	}
	return hashes
}

// TruncateWallet shortens long hashes to their first six and last four
// characters.
func TruncateWallet(hash string) string {
	if len(hash) <= 12 {
		return hash
	}
	return hash[:6] + "..." + hash[len(hash)-4:]
}
