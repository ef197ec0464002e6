package api

import (
	"net/http"
	"time"

	"github.com/chainsleuth/sleuth/internal/detect"
	"github.com/chainsleuth/sleuth/internal/engine"
	"github.com/chainsleuth/sleuth/internal/observability"
	"github.com/chainsleuth/sleuth/internal/report"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// AnalyzeRequest is the snapshot posted by the data source. Wallets may be
// omitted; they are then derived from the transactions.
type AnalyzeRequest struct {
	Wallets      []detect.Wallet      `json:"wallets"`
	Transactions []detect.Transaction `json:"transactions"`
}

func (h *Handler) handleHealth(c *gin.Context) {
	if h.opts.Health == nil {
		c.JSON(http.StatusOK, gin.H{"status": observability.StatusHealthy})
		return
	}
	health := h.opts.Health.Check(c.Request.Context())
	code := http.StatusOK
	if health.Status == observability.StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, health)
}

// analyze decodes the request body, runs the engine and records the run.
func (h *Handler) analyze(c *gin.Context) (*engine.Result, bool) {
	if h.opts.MaxBodyBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.opts.MaxBodyBytes)
	}

	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn().Err(err).Msg("api: rejected analyze request")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return nil, false
	}

	wallets := req.Wallets
	if wallets == nil {
		wallets = engine.WalletsFromTransactions(req.Transactions)
	}

	res := h.engine.Analyze(wallets, req.Transactions)
	h.trail.RecordRun(c.Request.Context(), res)
	return res, true
}

func (h *Handler) handleAnalyze(c *gin.Context) {
	res, ok := h.analyze(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) handleSummary(c *gin.Context) {
	wallet := c.Query("wallet")
	if wallet == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": report.ErrNoSelection.Error()})
		return
	}

	res, ok := h.analyze(c)
	if !ok {
		return
	}

	summary, err := report.Build(res, wallet, time.Now())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if c.Query("save") == "true" && h.opts.ReportDir != "" {
		path, err := report.Save(h.opts.ReportDir, summary)
		if err != nil {
			log.Error().Err(err).Str("wallet", wallet).Msg("api: saving investigation summary failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save summary"})
			return
		}
		c.Header("X-Report-Path", path)
	}
	c.JSON(http.StatusOK, summary)
}

func (h *Handler) handleRuns(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"runs": h.trail.Entries()})
}

func (h *Handler) handleRun(c *gin.Context) {
	entry, ok := h.trail.Query(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	c.JSON(http.StatusOK, entry)
}
