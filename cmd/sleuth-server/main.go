package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/chainsleuth/sleuth/internal/api"
	"github.com/chainsleuth/sleuth/internal/config"
	"github.com/chainsleuth/sleuth/internal/engine"
	"github.com/chainsleuth/sleuth/internal/observability"
	"github.com/chainsleuth/sleuth/internal/report"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config (defaults when empty)")
	flag.Parse()

	_ = godotenv.Load()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMicro
	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		cfg = loaded
	}
	logger, err := cfg.General.Logger("sleuth-server", os.Stdout)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log.Logger = logger

	log.Info().
		Str("environment", cfg.General.Environment).
		Str("addr", cfg.Server.Addr).
		Msg("ChainSleuth server - Starting")

	if cfg.General.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	var (
		registry *observability.Registry
		opts     []engine.Option
		metrics  *observability.AnalysisMetrics
	)
	if cfg.Metrics.Enabled {
		registry, metrics = observability.SleuthMetrics()
		opts = append(opts, engine.WithMetrics(metrics))
	}

	eng, err := engine.New(cfg.EngineConfig(), opts...)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build engine")
	}

	hub := api.NewHub(cfg.Server.AllowedOrigins)
	if metrics != nil {
		hub.OnSubscribersChanged(metrics.SetSubscribers)
	}
	trail := report.NewTrail(hub, cfg.Report.TrailSize)

	health := observability.NewHealthMonitor(30 * time.Second)
	health.Register("stream", streamCheck(hub))
	health.Register("reports", reportDirCheck(cfg.Report.Dir))

	router := api.SetupRouter(api.NewHandler(eng, trail, hub, api.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
		ReportDir:      cfg.Report.Dir,
		Registry:       registry,
		Health:         health,
	}))
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Msg("HTTP API listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error { return hub.Run(gctx) })
	g.Go(func() error { return health.Start(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		log.Warn().Msg("Shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Server stopped with error")
		os.Exit(1)
	}
	log.Info().Int("runs", trail.Len()).Msg("ChainSleuth server - Shutdown complete")
}

// streamCheck reports the number of live stream subscribers.
func streamCheck(hub *api.Hub) observability.HealthCheck {
	return func(ctx context.Context) observability.ComponentHealth {
		return observability.ComponentHealth{
			Status:  observability.StatusHealthy,
			Message: fmt.Sprintf("%d subscribers", hub.Clients()),
		}
	}
}

// reportDirCheck verifies summaries can be written under dir.
func reportDirCheck(dir string) observability.HealthCheck {
	return func(ctx context.Context) observability.ComponentHealth {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return observability.ComponentHealth{Status: observability.StatusDegraded, Message: err.Error()}
		}
		f, err := os.CreateTemp(dir, ".health-*")
		if err != nil {
			return observability.ComponentHealth{Status: observability.StatusDegraded, Message: err.Error()}
		}
		name := f.Name()
		f.Close()
		os.Remove(name)
		return observability.ComponentHealth{Status: observability.StatusHealthy, Message: filepath.Clean(dir)}
	}
}
