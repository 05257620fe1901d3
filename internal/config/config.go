package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Solver struct {
		MaxDepth    int           `yaml:"max_depth"`
		CallTimeout time.Duration `yaml:"call_timeout"` // per relation invocation, e.g. "5s"
		BatchLimit  int           `yaml:"batch_limit"`  // concurrent queries in one batch
	} `yaml:"solver"`
	Storage struct {
		Path string `yaml:"path"`
	} `yaml:"storage"`
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"` // text or json
	} `yaml:"log"`
	Telemetry struct {
		Traces  string `yaml:"traces"`  // stdout or none
		Metrics string `yaml:"metrics"` // prometheus or none
	} `yaml:"telemetry"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	var cfg Config
	cfg.Solver.MaxDepth = 10000
	cfg.Solver.CallTimeout = 5 * time.Second
	cfg.Solver.BatchLimit = 4
	cfg.Storage.Path = "mivar.db"
	cfg.Server.Addr = ":8080"
	cfg.Log.Level = "info"
	cfg.Log.Format = "text"
	cfg.Telemetry.Traces = "none"
	cfg.Telemetry.Metrics = "prometheus"
	return &cfg
}

// LoadConfig layers .env, the YAML file at path and MIVAR_* environment
// variables over the defaults. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	// 1. Load .env if exists
	_ = godotenv.Load()

	cfg := Default()

	// 2. Load YAML config
	file, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(file, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, err
	}

	// 3. Override with Environment Variables if present
	if db := os.Getenv("MIVAR_DB"); db != "" {
		cfg.Storage.Path = db
	}
	if addr := os.Getenv("MIVAR_ADDR"); addr != "" {
		cfg.Server.Addr = addr
	}
	if level := os.Getenv("MIVAR_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	if traces := os.Getenv("OTEL_TRACES_EXPORTER"); traces != "" {
		cfg.Telemetry.Traces = traces
	}
	if metrics := os.Getenv("OTEL_METRICS_EXPORTER"); metrics != "" {
		cfg.Telemetry.Metrics = metrics
	}
	if depth := os.Getenv("MIVAR_MAX_DEPTH"); depth != "" {
		n, err := strconv.Atoi(depth)
		if err != nil {
			return nil, fmt.Errorf("MIVAR_MAX_DEPTH: %w", err)
		}
		cfg.Solver.MaxDepth = n
	}

	return cfg, nil
}
