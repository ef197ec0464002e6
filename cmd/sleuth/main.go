package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/chainsleuth/sleuth/internal/config"
	"github.com/chainsleuth/sleuth/internal/detect"
	"github.com/chainsleuth/sleuth/internal/engine"
	"github.com/chainsleuth/sleuth/internal/report"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// dataset is the snapshot file format; wallets may be omitted.
type dataset struct {
	Wallets      []detect.Wallet      `json:"wallets"`
	Transactions []detect.Transaction `json:"transactions"`
}

func main() {
	var (
		configPath = flag.String("config", "", "path to YAML config (defaults when empty)")
		inputPath  = flag.String("input", "", "path to JSON snapshot {wallets, transactions}")
		wallet     = flag.String("wallet", "", "wallet to export an investigation summary for")
		outDir     = flag.String("out", "", "directory for the summary (overrides report.dir)")
		asJSON     = flag.Bool("json", false, "print the full result as JSON instead of text")
		top        = flag.Int("top", 10, "number of top wallets to list")
	)
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
	logger, err := cfg.General.Logger("sleuth", os.Stderr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log.Logger = logger

	if *inputPath == "" {
		log.Fatal().Msg("-input is required")
	}
	data, err := readDataset(*inputPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read snapshot")
	}

	eng, err := engine.New(cfg.EngineConfig())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build engine")
	}

	wallets := data.Wallets
	if wallets == nil {
		wallets = engine.WalletsFromTransactions(data.Transactions)
	}
	res := eng.Analyze(wallets, data.Transactions)

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			log.Fatal().Err(err).Msg("Failed to encode result")
		}
	} else {
		report.WriteText(os.Stdout, res, *top)
	}

	if *wallet == "" {
		return
	}
	summary, err := report.Build(res, *wallet, time.Now())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build summary")
	}
	dir := cfg.Report.Dir
	if *outDir != "" {
		dir = *outDir
	}
	path, err := report.Save(dir, summary)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to save summary")
	}
	log.Info().Str("path", path).Str("wallet", *wallet).Int("risk", summary.RiskScore).Msg("Investigation summary written")
}

func readDataset(path string) (*dataset, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var d dataset
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &d, nil
}
