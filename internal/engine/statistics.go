package engine

import (
	"time"

	"github.com/chainsleuth/sleuth/internal/detect"
	"github.com/chainsleuth/sleuth/internal/graph"
	"github.com/chainsleuth/sleuth/internal/risk"
	"github.com/shopspring/decimal"
)

// DefaultTokenType is assumed for transactions that do not name a token.
const DefaultTokenType = "ETH"

// DateRange is the span of parseable transaction timestamps.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Statistics summarizes the analyzed snapshot.
type Statistics struct {
	TotalTransactions int              `json:"totalTransactions"`
	UniqueWallets     int              `json:"uniqueWallets"`
	SuspiciousWallets int              `json:"suspiciousWallets"`
	TotalVolume       decimal.Decimal  `json:"totalVolume"`
	DateRange         *DateRange       `json:"dateRange,omitempty"`
	TokenTypes        []string         `json:"tokenTypes"`
	Graph             graph.GraphStats `json:"graph"`
}

func computeStatistics(g *graph.Graph, wallets []detect.Wallet, txs []detect.Transaction,
	scores map[string]risk.Score, threshold int) Statistics {

	volume := decimal.Zero
	tokens := make([]string, 0, 1)
	seenToken := make(map[string]struct{})
	for _, tx := range txs {
		volume = volume.Add(tx.Amount)
		token := tx.TokenType
		if token == "" {
			token = DefaultTokenType
		}
		if _, ok := seenToken[token]; !ok {
			seenToken[token] = struct{}{}
			tokens = append(tokens, token)
		}
	}

	stats := Statistics{
		TotalTransactions: len(txs),
		UniqueWallets:     len(scoredWallets(g, wallets)),
		SuspiciousWallets: risk.Suspicious(scores, threshold),
		TotalVolume:       volume,
		TokenTypes:        tokens,
		Graph:             g.Stats(),
	}
	if start, end := detect.TimeWindow(txs); start != nil {
		stats.DateRange = &DateRange{Start: *start, End: *end}
	}
	return stats
}
