package detect

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PatternType identifies a laundering pattern.
type PatternType string

const (
	PatternFanOut      PatternType = "fan-out"
	PatternFanIn       PatternType = "fan-in"
	PatternLayering    PatternType = "layering"
	PatternStructuring PatternType = "structuring"
	PatternPassThrough PatternType = "pass-through"
	PatternPeelChain   PatternType = "peel-chain"
	PatternMixer       PatternType = "mixer"
	PatternHighVolume  PatternType = "high-volume"
	PatternCircular    PatternType = "circular"
)

// AllPatterns lists every known pattern type.
var AllPatterns = []PatternType{
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

// Valid reports whether p is one of the known pattern types.
func (p PatternType) Valid() bool {
	for _, known := range AllPatterns {
		if p == known {
			return true
		}
	}
	return false
}

// DisplayName is the capitalized form used in risk breakdowns ("Fan-out").
func (p PatternType) DisplayName() string {
	s := string(p)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// Severity grades a finding.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
)

// Wallet is an externally supplied wallet record.
type Wallet struct {
	Hash             string          `json:"hash"`
	Inflow           decimal.Decimal `json:"inflow"`
	Outflow          decimal.Decimal `json:"outflow"`
	TransactionCount int             `json:"transactionCount"`
}

// Transaction is an externally supplied value transfer. Timestamp is
// ISO-8601 or empty.
type Transaction struct {
	ID        string          `json:"id"`
	From      string          `json:"from"`
	To        string          `json:"to"`
	Amount    decimal.Decimal `json:"amount"`
	Timestamp string          `json:"timestamp,omitempty"`
	TokenType string          `json:"tokenType,omitempty"`
}

// Finding is one detected pattern anchored to a wallet.
type Finding struct {
	Type         PatternType   `json:"type"`
	WalletHash   string        `json:"walletHash"`
	Label        string        `json:"walletLabel"`
	Details      string        `json:"details"`
	Severity     Severity      `json:"severity"`
	Count        int           `json:"count"`
	Wallets      []string      `json:"wallets"`
	Transactions []Transaction `json:"transactions"`
	StartTime    *time.Time    `json:"startTime,omitempty"`
	EndTime      *time.Time    `json:"endTime,omitempty"`
	RiskScore    int           `json:"riskScore,omitempty"` // 0 = no contribution
}

// Key identifies a finding after deduplication: wallet hash and type.
func (f Finding) Key() string {
	return FindingKey(f.WalletHash, f.Type)
}

// FindingKey builds the key for walletHash and t.
func FindingKey(walletHash string, t PatternType) string {
	return walletHash + ":" + string(t)
}

// Label is the display form of a wallet hash.
func Label(hash string) string {
	if len(hash) > 12 {
		hash = hash[:12]
	}
	return hash + "..."
}

// timestampLayouts are tried in order by ParseTimestamp.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02",
}

// ParseTimestamp parses an evidence timestamp. Empty or unrecognized values
// report false and are left out of time windows.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}
