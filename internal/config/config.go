// Package config loads ifgate settings from the environment.
package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/aretw0/ifgate/internal/logging"
	"github.com/caarlos0/env/v11"
)

// Store backends.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
)

// Config holds every setting of an ifgate process. HOST, PORT and GAME_PATH keep
// their historical names; everything else is prefixed with IFGATE_.
type Config struct {
	Host     string `env:"HOST" envDefault:"0.0.0.0"`
	Port     int    `env:"PORT" envDefault:"3000"`
	GamePath string `env:"GAME_PATH" envDefault:"games"`
	// GameCatalog defaults to games.yaml inside GamePath.
	GameCatalog string `env:"IFGATE_GAME_CATALOG"`

	Interpreter     string        `env:"IFGATE_INTERPRETER" envDefault:"dfrotz"`
	InterpreterArgs []string      `env:"IFGATE_INTERPRETER_ARGS" envSeparator:" " envDefault:"-p"`
	PagerMarker     string        `env:"IFGATE_PAGER_MARKER" envDefault:"***MORE***"`
	PromptMarker    string        `env:"IFGATE_PROMPT_MARKER" envDefault:">"`
	TurnTimeout     time.Duration `env:"IFGATE_TURN_TIMEOUT" envDefault:"5s"`

	IdleTimeout    time.Duration `env:"IFGATE_IDLE_TIMEOUT" envDefault:"30m"`
	SweepInterval  time.Duration `env:"IFGATE_SWEEP_INTERVAL" envDefault:"5m"`
	MaxQueue       int           `env:"IFGATE_MAX_QUEUE" envDefault:"0"`
	MaxCommandSize int           `env:"IFGATE_MAX_COMMAND_SIZE" envDefault:"4096"`

	Store      string        `env:"IFGATE_STORE" envDefault:"sqlite"`
	SQLitePath string        `env:"IFGATE_SQLITE_PATH" envDefault:"ifgate.db"`
	RedisURL   string        `env:"IFGATE_REDIS_URL" envDefault:"redis://localhost:6379/0"`
	RedisTTL   time.Duration `env:"IFGATE_REDIS_TTL"`

	// Base64 AES-256 keys. An empty TranscriptKey stores transcripts in plain text.
	TranscriptKey          string   `env:"IFGATE_TRANSCRIPT_KEY"`
	TranscriptFallbackKeys []string `env:"IFGATE_TRANSCRIPT_FALLBACK_KEYS" envSeparator:","`

	LogLevel     string `env:"IFGATE_LOG_LEVEL" envDefault:"info"`
	LogFormat    string `env:"IFGATE_LOG_FORMAT" envDefault:"text"`
	OTelEndpoint string `env:"IFGATE_OTEL_ENDPOINT"`
}

// Load parses the environment into a Config and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT %d out of range", c.Port))
	}
	if strings.TrimSpace(c.Interpreter) == "" {
		errs = append(errs, errors.New("IFGATE_INTERPRETER is required"))
	}
	if c.TurnTimeout <= 0 {
		errs = append(errs, errors.New("IFGATE_TURN_TIMEOUT must be positive"))
	}
	if c.IdleTimeout <= 0 || c.SweepInterval <= 0 {
		errs = append(errs, errors.New("IFGATE_IDLE_TIMEOUT and IFGATE_SWEEP_INTERVAL must be positive"))
	}
	if c.MaxQueue < 0 {
		errs = append(errs, errors.New("IFGATE_MAX_QUEUE must not be negative"))
	}
	switch c.Store {
	case StoreMemory, StoreSQLite, StoreRedis:
	default:
		errs = append(errs, fmt.Errorf("IFGATE_STORE %q is not one of memory, sqlite, redis", c.Store))
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if _, _, err := c.TranscriptKeys(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// TranscriptKeys decodes the transcript encryption keys. active is nil when encryption is off.
func (c Config) TranscriptKeys() (active []byte, fallback [][]byte, err error) {
	if c.TranscriptKey == "" {
		if len(c.TranscriptFallbackKeys) > 0 {
			return nil, nil, errors.New("IFGATE_TRANSCRIPT_FALLBACK_KEYS requires IFGATE_TRANSCRIPT_KEY")
		}
		return nil, nil, nil
	}
	active, err = decodeKey("IFGATE_TRANSCRIPT_KEY", c.TranscriptKey)
	if err != nil {
		return nil, nil, err
	}
	for i, raw := range c.TranscriptFallbackKeys {
		k, err := decodeKey(fmt.Sprintf("IFGATE_TRANSCRIPT_FALLBACK_KEYS[%d]", i), raw)
		if err != nil {
			return nil, nil, err
		}
		fallback = append(fallback, k)
	}
	return active, fallback, nil
}

func decodeKey(name, raw string) ([]byte, error) {
	k, err := base64.StdEncoding.DecodeString(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("%s is not valid base64: %w", name, err)
	}
	if len(k) != 32 {
		return nil, fmt.Errorf("%s must decode to 32 bytes, got %d", name, len(k))
	}
	return k, nil
}

// Addr is the HTTP listen address.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// CatalogPath is the game catalog file.
func (c Config) CatalogPath() string {
	if c.GameCatalog != "" {
		return c.GameCatalog
	}
	return filepath.Join(c.GamePath, "games.yaml")
}
