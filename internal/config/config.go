// Package config loads contextgraph settings from defaults, an optional YAML
// file, an optional .env file, and the environment, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/lazypower/contextgraph/internal/scoring"
	"gopkg.in/yaml.v3"
)

// Config holds all contextgraph configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Scoring  scoring.Config `yaml:"scoring"`
	Log      LogConfig      `yaml:"log"`
}

type ServerConfig struct {
	Bind        string   `yaml:"bind"`
	Port        int      `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`
}

type DatabaseConfig struct {
	Backend string `yaml:"backend"` // "sqlite" or "memory"
	Path    string `yaml:"path"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or console
}

const (
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Environment variables consulted by Load.
const (
	EnvDB               = "CONTEXTGRAPH_DB"
	EnvBackend          = "CONTEXTGRAPH_BACKEND"
	EnvBind             = "CONTEXTGRAPH_BIND"
	EnvPort             = "CONTEXTGRAPH_PORT"
	EnvLogLevel         = "CONTEXTGRAPH_LOG_LEVEL"
	EnvDecayRate        = "CONTEXTGRAPH_DECAY_RATE"
	EnvEdgeWeightFactor = "CONTEXTGRAPH_EDGE_WEIGHT_FACTOR"
)

// EnvFile is the dotenv file Load reads from the working directory.
const EnvFile = ".env"

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 37778,
		},
		Database: DatabaseConfig{
			Backend: BackendSQLite,
			Path:    "", // resolved at runtime via DefaultDBPath()
		},
		Scoring: scoring.DefaultConfig(),
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}

// DefaultDBPath returns the default database path: ~/.contextgraph/graph.db
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".contextgraph", "graph.db"), nil
}

// Load builds a Config. An empty path or a missing file means no YAML
// layer; a file that exists but does not parse is an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	dotenv, err := godotenv.Read(EnvFile)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("read %s: %w", EnvFile, err)
	}
	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}
	if err := cfg.applyEnv(lookup); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvDB); ok && v != "" {
		c.Database.Path = v
	}
	if v, ok := lookup(EnvBackend); ok && v != "" {
		c.Database.Backend = v
	}
	if v, ok := lookup(EnvBind); ok && v != "" {
		c.Server.Bind = v
	}
	if v, ok := lookup(EnvPort); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvPort, err)
		}
		c.Server.Port = port
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.Log.Level = v
	}
	for _, f := range []struct {
		key string
		dst *float64
	}{
		{EnvDecayRate, &c.Scoring.DecayRate},
		{EnvEdgeWeightFactor, &c.Scoring.EdgeWeightFactor},
	} {
		v, ok := lookup(f.key)
		if !ok || v == "" {
			continue
		}
		x, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", f.key, err)
		}
		*f.dst = x
	}
	return nil
}

// Validate checks the values Load cannot coerce.
func (c *Config) Validate() error {
	switch c.Database.Backend {
	case BackendSQLite, BackendMemory:
	default:
		return fmt.Errorf("database.backend: unknown backend %q (want sqlite or memory)", c.Database.Backend)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port: %d out of range", c.Server.Port)
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("log.format: unknown format %q (want json or console)", c.Log.Format)
	}
	if err := c.Scoring.Validate(); err != nil {
		return fmt.Errorf("scoring: %w", err)
	}
	return nil
}
