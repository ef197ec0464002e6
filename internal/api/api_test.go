package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/chainsleuth/sleuth/internal/engine"
	"github.com/chainsleuth/sleuth/internal/observability"
	"github.com/chainsleuth/sleuth/internal/report"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fixture struct {
	router *gin.Engine
	hub    *Hub
	trail  *report.Trail
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	eng, err := engine.New(engine.DefaultConfig())
	require.NoError(t, err)

	hub := NewHub(opts.AllowedOrigins)
	trail := report.NewTrail(hub, 8)
	return &fixture{
		router: SetupRouter(NewHandler(eng, trail, hub, opts)),
		hub:    hub,
		trail:  trail,
	}
}

func fanOutBody(sender string, n int) string {
	var txs []string
	for i := 0; i < n; i++ {
		txs = append(txs, fmt.Sprintf(`{"id":"t%d","from":%q,"to":"r%d","amount":"5","timestamp":"2024-01-01T00:0%d:00Z"}`, i, sender, i, i%10))
	}
	return `{"transactions":[` + strings.Join(txs, ",") + `]}`
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	f := newFixture(t, Options{})
	rec := do(f.router, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
}

func TestHealth_WithMonitor(t *testing.T) {
	mon := observability.NewHealthMonitor(time.Minute)
	mon.Register("reports", func(ctx context.Context) observability.ComponentHealth {
		return observability.ComponentHealth{Status: observability.StatusUnhealthy, Message: "dir not writable"}
	})
	f := newFixture(t, Options{Health: mon})

	rec := do(f.router, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "dir not writable")
}

func TestAnalyze_DerivesWallets(t *testing.T) {
	f := newFixture(t, Options{})
	rec := do(f.router, http.MethodPost, "/api/analyze", fanOutBody("hub", 5))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res engine.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.NotEmpty(t, res.RunID)
	require.NotEmpty(t, res.Findings)
	assert.Equal(t, "hub", res.Findings[0].WalletHash)
	assert.Equal(t, 25, res.RiskScores["hub"].Total)
	assert.Contains(t, res.Explanations, "hub:fan-out")
	assert.Equal(t, 5, res.Statistics.TotalTransactions)
	assert.Equal(t, 6, res.Statistics.UniqueWallets)

	assert.Equal(t, 1, f.trail.Len())
}

func TestAnalyze_BadJSON(t *testing.T) {
	f := newFixture(t, Options{})
	rec := do(f.router, http.MethodPost, "/api/analyze", `{"transactions": [`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error"`)
	assert.Zero(t, f.trail.Len())
}

func TestAnalyze_BodyTooLarge(t *testing.T) {
	f := newFixture(t, Options{MaxBodyBytes: 64})
	rec := do(f.router, http.MethodPost, "/api/analyze", fanOutBody("hub", 10))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSummary(t *testing.T) {
	dir := t.TempDir()
	f := newFixture(t, Options{ReportDir: dir})

	rec := do(f.router, http.MethodPost, "/api/analyze/summary?wallet=hub&save=true", fanOutBody("hub", 8))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var s report.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &s))
	assert.Equal(t, "hub", s.Wallet)
	assert.Equal(t, 25, s.RiskScore)
	require.Len(t, s.DetectedPatterns, 1)
	assert.Len(t, s.KeyTransactions, 8)

	path := rec.Header().Get("X-Report-Path")
	require.NotEmpty(t, path)
	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestSummary_MissingWallet(t *testing.T) {
	f := newFixture(t, Options{})
	rec := do(f.router, http.MethodPost, "/api/analyze/summary", fanOutBody("hub", 4))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "no wallet selected")
}

func TestRuns(t *testing.T) {
	f := newFixture(t, Options{})
	analyzed := do(f.router, http.MethodPost, "/api/analyze", fanOutBody("hub", 4))
	require.Equal(t, http.StatusOK, analyzed.Code)
	var res engine.Result
	require.NoError(t, json.Unmarshal(analyzed.Body.Bytes(), &res))

	rec := do(f.router, http.MethodGet, "/api/runs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Runs []report.Entry `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Runs, 1)
	assert.Equal(t, res.RunID, body.Runs[0].RunID)

	rec = do(f.router, http.MethodGet, "/api/runs/"+res.RunID, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(f.router, http.MethodGet, "/api/runs/unknown", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	reg, _ := observability.SleuthMetrics()
	f := newFixture(t, Options{Registry: reg})
	rec := do(f.router, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "sleuth_analysis_runs_total")

	f = newFixture(t, Options{})
	assert.Equal(t, http.StatusNotFound, do(f.router, http.MethodGet, "/metrics", "").Code)
}

func TestCORS(t *testing.T) {
	f := newFixture(t, Options{AllowedOrigins: []string{"https://app.example"}})

	req := httptest.NewRequest(http.MethodOptions, "/api/analyze", nil)
	req.Header.Set("Origin", "https://app.example")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestStream_BroadcastsRunEvents(t *testing.T) {
	f := newFixture(t, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.hub.Run(ctx)

	srv := httptest.NewServer(f.router)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/stream"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return f.hub.Clients() == 1 }, time.Second, 10*time.Millisecond)

	resp, err := http.Post(srv.URL+"/api/analyze", "application/json", bytes.NewBufferString(fanOutBody("hub", 9)))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var ev RunEvent
	require.NoError(t, json.Unmarshal(msg, &ev))
	assert.NotEmpty(t, ev.RunID)
	assert.Equal(t, 1, ev.Findings)
	assert.Zero(t, ev.SuspiciousWallets)
}

func TestHub_BroadcastFull(t *testing.T) {
	h := NewHub(nil)
	for i := 0; i < cap(h.broadcast); i++ {
		require.NoError(t, h.Broadcast([]byte("x")))
	}
	assert.ErrorIs(t, h.Broadcast([]byte("x")), ErrStreamFull)
}

func TestOriginAllowed(t *testing.T) {
	assert.True(t, originAllowed(nil, "https://any"))
	assert.True(t, originAllowed([]string{"*"}, "https://any"))
	assert.True(t, originAllowed([]string{" https://a "}, "https://a"))
	assert.False(t, originAllowed([]string{"https://a"}, "https://b"))
}
