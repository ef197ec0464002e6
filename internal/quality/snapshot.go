package quality

import (
	"fmt"

	"github.com/chainsleuth/sleuth/internal/detect"
	"github.com/rs/zerolog/log"
)

// Level grades an input issue.
type Level string

const (
	LevelWarn     Level = "warn"
	LevelCritical Level = "critical"
)

// Kind names a class of input issue.
type Kind string

const (
	KindEmptyEndpoint     Kind = "empty-endpoint"
	KindSelfTransfer      Kind = "self-transfer"
	KindNonPositiveAmount Kind = "non-positive-amount"
	KindBadTimestamp      Kind = "bad-timestamp"
	KindDuplicateID       Kind = "duplicate-id"
	KindCountMismatch     Kind = "count-mismatch"
)

// MaxIssues caps the issues listed in a report; Counts stay complete.
const MaxIssues = 50

// Issue is one problem found in the analyzed snapshot.
type Issue struct {
	Level   Level  `json:"level"`
	Kind    Kind   `json:"kind"`
	TxID    string `json:"txId,omitempty"`
	Wallet  string `json:"wallet,omitempty"`
	Message string `json:"message"`
}

// Report summarizes data quality for one snapshot. Issues never stop an
// analysis; they explain why some transactions carry less weight.
type Report struct {
	Transactions int          `json:"transactions"`
	Counts       map[Kind]int `json:"counts"`
	Issues       []Issue      `json:"issues"`
	Truncated    bool         `json:"truncated,omitempty"`
}

// Clean reports whether no issues were found.
func (r Report) Clean() bool {
	return len(r.Counts) == 0
}

// Critical counts the issues graded critical.
func (r Report) Critical() int {
	return r.Counts[KindEmptyEndpoint]
}

func (r *Report) add(issue Issue) {
	r.Counts[issue.Kind]++
	if len(r.Issues) >= MaxIssues {
		r.Truncated = true
		return
	}
	r.Issues = append(r.Issues, issue)
}

// Inspect checks txs and the supplied wallet records for malformed or
// inconsistent entries. Issues are listed in input order.
func Inspect(wallets []detect.Wallet, txs []detect.Transaction) Report {
	r := Report{
		Transactions: len(txs),
		Counts:       make(map[Kind]int),
		Issues:       []Issue{},
	}

	seenID := make(map[string]struct{}, len(txs))
	observed := make(map[string]int)
	for _, tx := range txs {
		if tx.From == "" || tx.To == "" {
			r.add(Issue{
				Level:   LevelCritical,
				Kind:    KindEmptyEndpoint,
				TxID:    tx.ID,
				Message: "Transaction is missing a sender or recipient",
			})
		}
		if tx.From != "" && tx.From == tx.To {
			r.add(Issue{
				Level:   LevelWarn,
				Kind:    KindSelfTransfer,
				TxID:    tx.ID,
				Wallet:  tx.From,
				Message: "Wallet sends to itself",
			})
		}
		if !tx.Amount.IsPositive() {
			r.add(Issue{
				Level:   LevelWarn,
				Kind:    KindNonPositiveAmount,
				TxID:    tx.ID,
				Message: fmt.Sprintf("Amount %s is not positive", tx.Amount.String()),
			})
		}
		if _, ok := detect.ParseTimestamp(tx.Timestamp); !ok && tx.Timestamp != "" {
			r.add(Issue{
				Level:   LevelWarn,
				Kind:    KindBadTimestamp,
				TxID:    tx.ID,
				Message: fmt.Sprintf("Unparseable timestamp %q", tx.Timestamp),
			})
		}
		if tx.ID != "" {
			if _, dup := seenID[tx.ID]; dup {
				r.add(Issue{
					Level:   LevelWarn,
					Kind:    KindDuplicateID,
					TxID:    tx.ID,
					Message: "Transaction id appears more than once",
				})
			}
			seenID[tx.ID] = struct{}{}
		}
		observed[tx.From]++
		observed[tx.To]++
	}

	for _, w := range wallets {
		if w.TransactionCount == 0 {
			continue
		}
		if n := observed[w.Hash]; n != w.TransactionCount {
			r.add(Issue{
				Level:   LevelWarn,
				Kind:    KindCountMismatch,
				Wallet:  w.Hash,
				Message: fmt.Sprintf("Wallet record lists %d transactions, snapshot has %d", w.TransactionCount, n),
			})
		}
	}

	if !r.Clean() {
		ev := log.Warn()
		for kind, n := range r.Counts {
			ev = ev.Int(string(kind), n)
		}
		ev.Int("transactions", r.Transactions).Msg("quality: snapshot has input issues")
	}
	return r
}
