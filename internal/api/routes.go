package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/chainsleuth/sleuth/internal/engine"
	"github.com/chainsleuth/sleuth/internal/observability"
	"github.com/chainsleuth/sleuth/internal/report"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Options configures the HTTP surface.
type Options struct {
	AllowedOrigins []string
	MaxBodyBytes   int64
	ReportDir      string // empty disables ?save=true

	Registry *observability.Registry       // nil disables /metrics
	Health   *observability.HealthMonitor // nil reports healthy
}

// Handler serves the analysis API.
type Handler struct {
	engine *engine.Engine
	trail  *report.Trail
	hub    *Hub
	opts   Options
}

// NewHandler wires the API to its collaborators.
func NewHandler(eng *engine.Engine, trail *report.Trail, hub *Hub, opts Options) *Handler {
	return &Handler{engine: eng, trail: trail, hub: hub, opts: opts}
}

// SetupRouter builds the gin router.
func SetupRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(), cors(h.opts.AllowedOrigins))

	api := r.Group("/api")
	{
		api.GET("/health", h.handleHealth)
		api.POST("/analyze", h.handleAnalyze)
		api.POST("/analyze/summary", h.handleSummary)
		api.GET("/runs", h.handleRuns)
		api.GET("/runs/:id", h.handleRun)
		api.GET("/stream", h.hub.Subscribe)
	}

	if h.opts.Registry != nil {
		r.GET("/metrics", gin.WrapH(observability.NewPrometheusExporter(h.opts.Registry)))
	}
	return r
}

func cors(allowedOrigins []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if len(allowedOrigins) == 0 || (len(allowedOrigins) == 1 && allowedOrigins[0] == "*") {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		} else if originAllowed(allowedOrigins, origin) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func originAllowed(allowed []string, origin string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		a = strings.TrimSpace(a)
		if a == "*" || a == origin {
			return true
		}
	}
	return false
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("took", time.Since(start)).
			Msg("api: request")
	}
}
