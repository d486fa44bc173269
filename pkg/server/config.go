package server

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/NicolasHaas/sosmeet/pkg/logging"
	"github.com/NicolasHaas/sosmeet/pkg/protocol"
)

// Store backends selectable with STORE_BACKEND.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// Config holds server configuration. LoadConfig fills it from the
// environment; DefaultConfig gives the same values without reading it.
type Config struct {
	Port           int      `envconfig:"PORT" default:"3000"`
	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS"` // empty or "*" allows every origin
	MaxMessageSize int64    `envconfig:"MAX_MESSAGE_SIZE" default:"65536"`
	OutboundQueue  int      `envconfig:"OUTBOUND_QUEUE" default:"256"`
	StoreBackend   string   `envconfig:"STORE_BACKEND" default:"memory"`

	AlarmPolicy  AlarmPolicy `envconfig:"ALARM_POLICY" default:"accept"`
	SoundKeys    []string    `envconfig:"SOUND_KEYS" default:"sos,ping,soft"`
	AlarmCatalog string      `envconfig:"ALARM_CATALOG"` // YAML file replacing the default codes
	StrictAuthz  bool        `envconfig:"STRICT_AUTHZ" default:"false"`

	MetricsLogInterval time.Duration `envconfig:"METRICS_LOG_INTERVAL" default:"60s"`
	LogLevel           string        `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat          string        `envconfig:"LOG_FORMAT" default:"text"`
}

// DefaultConfig returns a config with the documented defaults.
func DefaultConfig() Config {
	return Config{
		Port:               3000,
		MaxMessageSize:     protocol.MaxMessageSize,
		OutboundQueue:      256,
		StoreBackend:       BackendMemory,
		AlarmPolicy:        PolicyAccept,
		SoundKeys:          []string{"sos", "ping", "soft"},
		MetricsLogInterval: 60 * time.Second,
		LogLevel:           "info",
		LogFormat:          "text",
	}
}

// LoadConfig reads an optional .env file and then the process environment.
func LoadConfig() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("config: load .env: %w", err)
	}
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges and enumerations.
func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: invalid PORT %d", c.Port)
	}
	if c.MaxMessageSize <= 0 {
		return fmt.Errorf("config: MAX_MESSAGE_SIZE must be positive")
	}
	if c.OutboundQueue <= 0 {
		return fmt.Errorf("config: OUTBOUND_QUEUE must be positive")
	}
	switch strings.ToLower(c.StoreBackend) {
	case BackendMemory, BackendSQLite:
	default:
		return fmt.Errorf("config: unknown STORE_BACKEND %q", c.StoreBackend)
	}
	if !c.AlarmPolicy.Valid() {
		return fmt.Errorf("config: unknown ALARM_POLICY %q", c.AlarmPolicy)
	}
	if err := logging.Validate(c.LogLevel); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Addr is the HTTP listen address.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
