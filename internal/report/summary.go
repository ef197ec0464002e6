package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chainsleuth/sleuth/internal/detect"
	"github.com/chainsleuth/sleuth/internal/engine"
	"github.com/chainsleuth/sleuth/internal/risk"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ErrNoSelection is returned when no wallet was chosen for the summary.
var ErrNoSelection = errors.New("report: no wallet selected")

// MaxKeyTransactions caps the evidence copied into a summary.
const MaxKeyTransactions = 20

// TimeWindow is the evidence span of one pattern; nil ends are unknown.
type TimeWindow struct {
	Start *time.Time `json:"start"`
	End   *time.Time `json:"end"`
}

// PatternSummary is one detected pattern as exported for investigators.
type PatternSummary struct {
	Type             detect.PatternType `json:"type"`
	Severity         detect.Severity    `json:"severity"`
	Details          string             `json:"details"`
	WalletCount      int                `json:"walletCount"`
	TransactionCount int                `json:"transactionCount"`
	TimeWindow       TimeWindow         `json:"timeWindow"`
	Explanation      string             `json:"explanation,omitempty"`
	Confidence       int                `json:"confidence,omitempty"`
	ConfidenceLevel  string             `json:"confidenceLevel,omitempty"`
}

// Summary is the investigation export for a single wallet.
type Summary struct {
	ID                 string               `json:"id"`
	RunID              string               `json:"runId"`
	InvestigationDate  time.Time            `json:"investigationDate"`
	Wallet             string               `json:"wallet"`
	RiskScore          int                  `json:"riskScore"`
	RiskScoreBreakdown []risk.Contribution  `json:"riskScoreBreakdown"`
	DetectedPatterns   []PatternSummary     `json:"detectedPatterns"`
	KeyTransactions    []detect.Transaction `json:"keyTransactions"`
}

// Build assembles the summary for wallet from a finished analysis.
func Build(res *engine.Result, wallet string, now time.Time) (*Summary, error) {
	if wallet == "" {
		return nil, ErrNoSelection
	}

	score := res.RiskScore(wallet)
	findings := res.FindingsFor(wallet)

	s := &Summary{
		ID:                 uuid.New().String(),
		RunID:              res.RunID,
		InvestigationDate:  now.UTC(),
		Wallet:             wallet,
		RiskScore:          score.Total,
		RiskScoreBreakdown: score.Contributions,
		DetectedPatterns:   make([]PatternSummary, 0, len(findings)),
		KeyTransactions:    []detect.Transaction{},
	}

	for _, f := range findings {
		conf := res.Confidences[f.Key()]
		s.DetectedPatterns = append(s.DetectedPatterns, PatternSummary{
			Type:             f.Type,
			Severity:         f.Severity,
			Details:          f.Details,
			WalletCount:      len(f.Wallets),
			TransactionCount: len(f.Transactions),
			TimeWindow:       TimeWindow{Start: f.StartTime, End: f.EndTime},
			Explanation:      res.Explanations[f.Key()],
			Confidence:       conf.Value,
			ConfidenceLevel:  conf.Level,
		})
	}

	if len(findings) > 0 {
		key := findings[0].Transactions
		if len(key) > MaxKeyTransactions {
			key = key[:MaxKeyTransactions]
		}
		s.KeyTransactions = append(s.KeyTransactions, key...)
	}
	return s, nil
}

// FileName is the export name for s: investigation-<hash[:8]>-<unix ms>.json.
func FileName(s *Summary) string {
	prefix := s.Wallet
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	return fmt.Sprintf("investigation-%s-%d.json", prefix, s.InvestigationDate.UnixMilli())
}

// Save writes s into dir atomically (temp file + rename) and returns the path.
func Save(dir string, s *Summary) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("report: create dir: %w", err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", fmt.Errorf("report: marshal: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".investigation-*.tmp")
	if err != nil {
		return "", fmt.Errorf("report: create temp: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("report: write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("report: close temp: %w", err)
	}

	path := filepath.Join(dir, FileName(s))
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("report: rename: %w", err)
	}

	log.Info().
		Str("path", path).
		Str("wallet", s.Wallet).
		Int("patterns", len(s.DetectedPatterns)).
		Msg("report: investigation summary saved")
	return path, nil
}

// Load reads a saved summary.
func Load(path string) (*Summary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("report: read: %w", err)
	}
	var s Summary
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("report: unmarshal: %w", err)
	}
	return &s, nil
}
