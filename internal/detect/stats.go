package detect

import (
	"sort"
	"time"

	"github.com/chainsleuth/sleuth/internal/graph"
	"github.com/shopspring/decimal"
)

// WalletStats are the per-wallet aggregates shared by statistic detectors.
type WalletStats struct {
	Inflow       decimal.Decimal
	Outflow      decimal.Decimal
	TxCount      int
	SmallTxCount int // outgoing transactions below the structuring threshold
}

// Stats holds WalletStats for every wallet record, in wallet-list order.
type Stats struct {
	order    []string
	byWallet map[string]*WalletStats
}

// NewStats precomputes statistics from wallet records. Transactions only
// feed SmallTxCount, and only for wallets that have a record.
func NewStats(wallets []Wallet, txs []Transaction, smallTx decimal.Decimal) *Stats {
	s := &Stats{byWallet: make(map[string]*WalletStats, len(wallets))}
	for _, w := range wallets {
		ws := &WalletStats{
			Inflow:  w.Inflow,
			Outflow: w.Outflow,
			TxCount: w.TransactionCount,
		}
		// A repeated record replaces the earlier one in place.
		if _, dup := s.byWallet[w.Hash]; !dup {
			s.order = append(s.order, w.Hash)
		}
		s.byWallet[w.Hash] = ws
	}

	for _, tx := range txs {
		if tx.Amount.LessThan(smallTx) {
			if ws := s.byWallet[tx.From]; ws != nil {
				ws.SmallTxCount++
			}
		}
	}
	return s
}

// Get returns the statistics for hash, or nil when no record was supplied.
func (s *Stats) Get(hash string) *WalletStats {
	return s.byWallet[hash]
}

// Wallets returns hashes with a record, in input order.
func (s *Stats) Wallets() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// BuildGraph turns a transaction list into the adjacency graph.
func BuildGraph(txs []Transaction) *graph.Graph {
	g := graph.New()
	for _, tx := range txs {
		g.AddTransfer(tx.From, tx.To)
	}
	return g
}

// evidenceIndex maps each wallet to the positions of the transactions that
// touch it, so evidence lookups avoid rescanning the full list per finding.
type evidenceIndex struct {
	txs      []Transaction
	byWallet map[string][]int
}

func newEvidenceIndex(txs []Transaction) *evidenceIndex {
	ix := &evidenceIndex{
		txs:      txs,
		byWallet: make(map[string][]int),
	}
	for i, tx := range txs {
		ix.byWallet[tx.From] = append(ix.byWallet[tx.From], i)
		if tx.To != tx.From {
			ix.byWallet[tx.To] = append(ix.byWallet[tx.To], i)
		}
	}
	return ix
}

// gather returns every transaction with an endpoint in wallets, in input
// order, plus the min/max parseable timestamp among them.
func (ix *evidenceIndex) gather(wallets []string) ([]Transaction, *time.Time, *time.Time) {
	seen := make(map[int]struct{})
	var positions []int
	for _, w := range wallets {
		for _, pos := range ix.byWallet[w] {
			if _, ok := seen[pos]; ok {
				continue
			}
			seen[pos] = struct{}{}
			positions = append(positions, pos)
		}
	}
	sort.Ints(positions)

	txs := make([]Transaction, 0, len(positions))
	for _, pos := range positions {
		txs = append(txs, ix.txs[pos])
	}
	start, end := TimeWindow(txs)
	return txs, start, end
}

// TimeWindow returns the earliest and latest parseable timestamps in txs.
// Both are nil when none parse.
func TimeWindow(txs []Transaction) (*time.Time, *time.Time) {
	var start, end time.Time
	found := false
	for _, tx := range txs {
		ts, ok := ParseTimestamp(tx.Timestamp)
		if !ok {
			continue
		}
		if !found || ts.Before(start) {
			start = ts
		}
		if !found || ts.After(end) {
			end = ts
		}
		found = true
	}
	if !found {
		return nil, nil
	}
	return &start, &end
}
