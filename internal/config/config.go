// Package config loads vsakit settings. Precedence, lowest first: built-in
// defaults, a YAML file, the environment (optionally seeded from a .env
// file) and finally command-line flags, which the caller applies on top.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/23skdu/vsakit/internal/campaign"
	kerrors "github.com/23skdu/vsakit/internal/errors"
	"github.com/23skdu/vsakit/internal/logging"
)

// EnvPrefix prefixes every environment variable, e.g. VSAKIT_DIMS.
const EnvPrefix = "VSAKIT"

// Config validation errors
var (
	ErrInvalidLogFormat    = errors.New("log_format must be 'json' or 'console'")
	ErrInvalidLogLevel     = errors.New("log_level must be debug, info, warn, or error")
	ErrSparsityExceedsDims = errors.New("sparsity cannot exceed dims")
)

// Config holds every tunable of the CLI.
type Config struct {
	LogFormat string `yaml:"log_format" envconfig:"LOG_FORMAT"`
	LogLevel  string `yaml:"log_level" envconfig:"LOG_LEVEL"`

	Seeds      int     `yaml:"seeds" envconfig:"SEEDS" validate:"gte=1"`
	StartSeed  uint64  `yaml:"start_seed" envconfig:"START_SEED"`
	Dims       int     `yaml:"dims" envconfig:"DIMS" validate:"gte=1"`
	Sparsity   int     `yaml:"sparsity" envconfig:"SPARSITY" validate:"gte=0"`
	BufferSize int     `yaml:"buffer_size" envconfig:"BUFFER_SIZE" validate:"gte=0"`
	ErrorRate  float64 `yaml:"error_rate" envconfig:"ERROR_RATE" validate:"gte=0,lte=1"`
	LossRate   float64 `yaml:"loss_rate" envconfig:"LOSS_RATE" validate:"gte=0,lte=1"`
	PacketSize int     `yaml:"packet_size" envconfig:"PACKET_SIZE" validate:"gte=1"`
	Erasures   int     `yaml:"erasures" envconfig:"ERASURES" validate:"gte=0"`
	Workers    int     `yaml:"workers" envconfig:"WORKERS" validate:"gte=0"`
	Verbose    bool    `yaml:"verbose" envconfig:"VERBOSE"`
}

var validate = validator.New()

// DefaultConfig returns a Config with default values
func DefaultConfig() Config {
	c := campaign.DefaultConfig()
	return Config{
		LogFormat:  "console",
		LogLevel:   "info",
		Seeds:      c.Seeds,
		StartSeed:  c.StartSeed,
		Dims:       c.Dims,
		Sparsity:   c.Sparsity,
		BufferSize: c.BufferSize,
		ErrorRate:  c.ErrorRate,
		LossRate:   c.LossRate,
		PacketSize: c.PacketSize,
		Erasures:   c.Erasures,
		Workers:    c.Workers,
	}
}

// ValidateConfig validates the configuration and returns an error if invalid
func ValidateConfig(cfg *Config) error {
	if cfg.LogFormat != "json" && cfg.LogFormat != "console" {
		return ErrInvalidLogFormat
	}
	if cfg.LogLevel != "debug" && cfg.LogLevel != "info" && cfg.LogLevel != "warn" && cfg.LogLevel != "error" {
		return ErrInvalidLogLevel
	}
	if cfg.Sparsity > cfg.Dims {
		return ErrSparsityExceedsDims
	}
	if err := validate.Struct(cfg); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			fields := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				fields = append(fields, fmt.Sprintf("%s(%s=%s)", fe.Field(), fe.Tag(), fe.Param()))
			}
			return kerrors.NewValidationError("config.Validate", strings.Join(fields, ", "))
		}
		return kerrors.WrapConfigurationError(err, "config.Validate", "validate struct")
	}
	return nil
}

// Load builds a Config from defaults, the optional YAML file at path and the
// environment. envFile names a dotenv file; a missing file is ignored and
// variables already set in the environment take precedence over it.
func Load(path, envFile string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		if err := LoadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, kerrors.WrapConfigurationError(err, "config.Load", "read "+envFile)
		}
	}
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return Config{}, kerrors.WrapConfigurationError(err, "config.Load", "process environment")
	}
	return cfg, nil
}

// LoadFile overlays the YAML document at path onto cfg. Keys absent from the
// document leave cfg untouched; unknown keys are rejected.
func LoadFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return kerrors.WrapConfigurationError(err, "config.LoadFile", "open "+path)
	}
	defer func() { _ = f.Close() }()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return kerrors.WrapConfigurationError(err, "config.LoadFile", "decode "+path)
	}
	return nil
}

// Campaign returns the campaign section.
func (c Config) Campaign() campaign.Config {
	return campaign.Config{
		Seeds:      c.Seeds,
		StartSeed:  c.StartSeed,
		Dims:       c.Dims,
		Sparsity:   c.Sparsity,
		BufferSize: c.BufferSize,
		ErrorRate:  c.ErrorRate,
		LossRate:   c.LossRate,
		PacketSize: c.PacketSize,
		Erasures:   c.Erasures,
		Workers:    c.Workers,
		Verbose:    c.Verbose,
	}
}

// Logging returns the logger settings writing to out.
func (c Config) Logging(out io.Writer) logging.Config {
	return logging.Config{Format: c.LogFormat, Level: c.LogLevel, Output: out}
}
