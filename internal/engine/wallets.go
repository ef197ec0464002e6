package engine

import (
	"github.com/chainsleuth/sleuth/internal/detect"
	"github.com/shopspring/decimal"
)

// WalletsFromTransactions derives wallet records for sources that supply
// only transactions. Each transaction adds its amount to the sender's
// outflow and the recipient's inflow and counts once for each endpoint.
// Wallets are returned in first-seen order.
func WalletsFromTransactions(txs []detect.Transaction) []detect.Wallet {
	index := make(map[string]int)
	var out []detect.Wallet

	touch := func(hash string) *detect.Wallet {
		if i, ok := index[hash]; ok {
			return &out[i]
		}
		index[hash] = len(out)
		out = append(out, detect.Wallet{Hash: hash, Inflow: decimal.Zero, Outflow: decimal.Zero})
		return &out[len(out)-1]
	}

	for _, tx := range txs {
		from := touch(tx.From)
		from.Outflow = from.Outflow.Add(tx.Amount)
		from.TransactionCount++

		to := touch(tx.To)
		to.Inflow = to.Inflow.Add(tx.Amount)
		to.TransactionCount++
	}
	return out
}
