package narrative

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"text/template"

	"github.com/chainsleuth/sleuth/internal/detect"
	"github.com/rs/zerolog/log"
)

// ---------------------------------------------------------------------------
// Explanations: plain-language text per finding
// One template per pattern type; deployments may replace any of them.
// ---------------------------------------------------------------------------

// ErrInvalidTemplate is returned when an explanation template fails to parse.
var ErrInvalidTemplate = errors.New("narrative: invalid explanation template")

// FallbackExplanation is used for pattern types without a template.
const FallbackExplanation = "Pattern detected with suspicious characteristics."

// DefaultTemplates returns the built-in explanation templates.
func DefaultTemplates() map[detect.PatternType]string {
	return map[detect.PatternType]string{
		detect.PatternCircular: "Circular transaction detected: Funds moved through {{.WalletCount}} wallets " +
			"and returned to the original wallet within {{.Timeframe}} with minimal value loss. " +
			"This is often used to obfuscate fund origins.",
		detect.PatternFanOut: "Fan-out pattern detected: A single wallet ({{.ShortHash}}) sent funds to " +
			"{{.Counterparts}} recipient wallets. This dispersal pattern may be used to break " +
			"transaction chains and avoid detection.",
		detect.PatternFanIn: "Fan-in pattern detected: {{.Counterparts}} different wallets sent funds to a " +
			"single wallet ({{.ShortHash}}). This consolidation pattern may indicate proceeds from " +
			"multiple sources being collected.",
		detect.PatternHighVolume: "High-volume activity detected: Wallet {{.ShortHash}} processed {{.TxCount}} " +
			"transactions. The unusually high transaction frequency may indicate layering or " +
			"structuring attempts.",
		detect.PatternPeelChain: "Peel-chain pattern detected: A linear chain of {{.WalletCount}} wallets each " +
			"sending to the next. This sequential structure is often used to gradually separate funds " +
			"while maintaining plausible deniability.",
		detect.PatternLayering: "Layering pattern detected: Multi-level branching structure with " +
			"{{.WalletCount}} wallets. Complex hierarchies like this are often used to obscure the " +
			"paper trail of illicit funds.",
		detect.PatternStructuring: "Structuring pattern detected: Wallet made multiple small transactions " +
			"(<$10 threshold). This \"smurfing\" technique is designed to avoid transaction " +
			"monitoring thresholds.",
		detect.PatternPassThrough: "Pass-through wallet detected: {{.WalletCount}} wallet(s) with rapid " +
			"inflow-to-outflow turnover (>90% of inflow). Funds pass through almost immediately, " +
			"suggesting a transit point rather than legitimate holding.",
		detect.PatternMixer: "Mixer interaction detected: Wallet interacted with a known cryptocurrency " +
			"mixer/tumbler service. This service is often used to obfuscate transaction histories " +
			"and break blockchain traceability.",
	}
}

// ExplanationData is the value every template renders against.
type ExplanationData struct {
	Type         string
	WalletHash   string
	ShortHash    string // first 8 characters + "..."
	WalletCount  int    // implicated wallets, at least 1
	Counterparts int    // WalletCount - 1
	TxCount      int    // attached evidence
	Count        int
	Details      string
	Timeframe    string
}

// TruncateHash shortens a wallet hash for display.
func TruncateHash(hash string) string {
	if len(hash) > 8 {
		hash = hash[:8]
	}
	return hash + "..."
}

func dataFor(f detect.Finding) ExplanationData {
	walletCount := len(f.Wallets)
	if walletCount == 0 {
		walletCount = 1
	}
	timeframe := "an unknown timeframe"
	if f.EndTime != nil {
		timeframe = "minutes"
	}
	return ExplanationData{
		Type:         string(f.Type),
		WalletHash:   f.WalletHash,
		ShortHash:    TruncateHash(f.WalletHash),
		WalletCount:  walletCount,
		Counterparts: walletCount - 1,
		TxCount:      len(f.Transactions),
		Count:        f.Count,
		Details:      f.Details,
		Timeframe:    timeframe,
	}
}

// Explainer renders explanations from parsed templates.
type Explainer struct {
	templates map[detect.PatternType]*template.Template
}

// NewExplainer parses the default templates with overrides applied.
func NewExplainer(overrides map[detect.PatternType]string) (*Explainer, error) {
	texts := DefaultTemplates()
	for t, text := range overrides {
		if !t.Valid() {
			return nil, fmt.Errorf("%w: unknown pattern %q", ErrInvalidTemplate, t)
		}
		texts[t] = text
	}

	e := &Explainer{templates: make(map[detect.PatternType]*template.Template, len(texts))}
	for t, text := range texts {
		tmpl, err := template.New(string(t)).Option("missingkey=error").Parse(text)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidTemplate, t, err)
		}
		// Catch references to fields ExplanationData does not have.
		if err := tmpl.Execute(io.Discard, dataFor(detect.Finding{Type: t})); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidTemplate, t, err)
		}
		e.templates[t] = tmpl
	}
	return e, nil
}

// Explain renders the explanation for f. Unknown types and render failures
// fall back to FallbackExplanation.
func (e *Explainer) Explain(f detect.Finding) string {
	tmpl, ok := e.templates[f.Type]
	if !ok {
		return FallbackExplanation
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, dataFor(f)); err != nil {
		log.Warn().Err(err).Str("pattern", string(f.Type)).Msg("narrative: template render failed")
		return FallbackExplanation
	}
	return buf.String()
}

// ExplainAll keys explanations by finding key.
func (e *Explainer) ExplainAll(findings []detect.Finding) map[string]string {
	out := make(map[string]string, len(findings))
	for _, f := range findings {
		out[f.Key()] = e.Explain(f)
	}
	return out
}
