package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/chainsleuth/sleuth/internal/detect"
	"github.com/chainsleuth/sleuth/internal/engine"
	"github.com/chainsleuth/sleuth/internal/narrative"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned when a loaded configuration cannot be used.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Config is the root configuration structure for sleuth.
type Config struct {
	General GeneralConfig `yaml:"general"`
	Engine  EngineConfig  `yaml:"engine"`
	Server  ServerConfig  `yaml:"server"`
	Report  ReportConfig  `yaml:"report"`
	Metrics MetricsConfig `yaml:"metrics"`
}

type GeneralConfig struct {
	InstanceID  string `yaml:"instance_id"`
	Environment string `yaml:"environment"` // production|staging|development
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"` // json|text
}

// EngineConfig overrides the built-in analysis tables. Rules start from the
// defaults, so a file only needs the fields it changes.
type EngineConfig struct {
	Rules               detect.Rules                                   `yaml:"rules"`
	Order               []detect.PatternType                           `yaml:"order"`
	ExtraMixers         map[string]string                              `yaml:"extra_mixers"`
	Templates           map[detect.PatternType]string                  `yaml:"templates"`
	Confidence          map[detect.PatternType]narrative.ConfidenceRule `yaml:"confidence"`
	SuspiciousThreshold int                                            `yaml:"suspicious_threshold"`
}

type ServerConfig struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	MaxBodyBytes   int64    `yaml:"max_body_bytes"`
}

type ReportConfig struct {
	Dir       string `yaml:"dir"`
	TrailSize int    `yaml:"trail_size"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{Engine: EngineConfig{Rules: detect.DefaultRules()}}
	applyDefaults(cfg)
	return cfg
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration, expanding ${VAR} references first.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	// Unset rule fields keep their defaults.
	cfg := &Config{Engine: EngineConfig{Rules: detect.DefaultRules()}}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.General.InstanceID == "" {
		cfg.General.InstanceID = "sleuth-1"
	}
	if cfg.General.Environment == "" {
		cfg.General.Environment = "development"
	}
	if cfg.General.LogLevel == "" {
		cfg.General.LogLevel = "info"
	}
	if cfg.General.LogFormat == "" {
		cfg.General.LogFormat = "json"
	}
	if len(cfg.Engine.Order) == 0 {
		cfg.Engine.Order = append([]detect.PatternType(nil), detect.DefaultOrder...)
	}
	if cfg.Engine.SuspiciousThreshold == 0 {
		cfg.Engine.SuspiciousThreshold = engine.DefaultSuspiciousThreshold
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = []string{"http://localhost:5173"}
	}
	if cfg.Server.MaxBodyBytes == 0 {
		cfg.Server.MaxBodyBytes = 32 << 20
	}
	if cfg.Report.Dir == "" {
		cfg.Report.Dir = "investigations"
	}
	if cfg.Report.TrailSize == 0 {
		cfg.Report.TrailSize = 256
	}
}

func (c *Config) validate() error {
	switch c.General.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("%w: general.log_format must be json or text, got %q", ErrInvalidConfig, c.General.LogFormat)
	}
	if _, err := zerolog.ParseLevel(c.General.LogLevel); err != nil {
		return fmt.Errorf("%w: general.log_level: %v", ErrInvalidConfig, err)
	}
	if c.Server.MaxBodyBytes < 0 {
		return fmt.Errorf("%w: server.max_body_bytes is negative", ErrInvalidConfig)
	}
	if c.Report.TrailSize < 0 {
		return fmt.Errorf("%w: report.trail_size is negative", ErrInvalidConfig)
	}
	if err := c.Engine.Rules.Validate(); err != nil {
		return fmt.Errorf("config: engine.rules: %w", err)
	}
	if err := detect.ValidateOrder(c.Engine.Order); err != nil {
		return fmt.Errorf("config: engine.order: %w", err)
	}
	return nil
}

// EngineConfig converts the engine section into engine.Config.
func (c *Config) EngineConfig() engine.Config {
	return engine.Config{
		Rules:               c.Engine.Rules,
		Order:               c.Engine.Order,
		ExtraMixers:         c.Engine.ExtraMixers,
		Templates:           c.Engine.Templates,
		Confidence:          c.Engine.Confidence,
		SuspiciousThreshold: c.Engine.SuspiciousThreshold,
	}
}

// Logger builds the process logger for service. Text format writes through
// zerolog's console writer.
func (g GeneralConfig) Logger(service string, w io.Writer) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(g.LogLevel)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("config: log level: %w", err)
	}
	if g.LogFormat == "text" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(level).With().
		Timestamp().
		Str("service", service).
		Str("instance", g.InstanceID).
		Logger(), nil
}
