// Package config loads add-on configuration from the environment.
package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	"github.com/xeipuuv/gojsonschema"
)

// Config carries the add-on settings. Everything comes from environment
// variables set by the Home Assistant Supervisor (or a local .env file
// during development).
type Config struct {
	// TTRMinutes is the cooldown between allowed cache refreshes.
	TTRMinutes int `env:"OP_TTR" envDefault:"1"`

	// ConfigFolder is the Home Assistant configuration directory that
	// holds secrets.yaml and the YAML files scanned for !secret references.
	ConfigFolder string `env:"HA_CONFIG_FOLDER" envDefault:"/config"`

	// DBPath is the SQLite database location.
	DBPath string `env:"OP_DB_PATH" envDefault:"/data/opsync.db"`

	// SupervisorToken authenticates against the Supervisor API.
	// When empty, event and notification delivery is skipped.
	SupervisorToken string `env:"SUPERVISOR_TOKEN"`

	// SupervisorURL is the Home Assistant core API base URL.
	SupervisorURL string `env:"SUPERVISOR_URL" envDefault:"http://supervisor/core/api"`

	// ServiceAccountToken authenticates the 1Password CLI.
	ServiceAccountToken string `env:"OP_SERVICE_ACCOUNT_TOKEN"`

	// ListenAddr is the HTTP listen address for the web UI backend.
	ListenAddr string `env:"LISTEN_ADDR" envDefault:":8099"`

	// LogLevel is "debug" or "info".
	LogLevel string `env:"APP_LOG_LEVEL" envDefault:"debug"`
}

// Load reads configuration from a .env file (if present) and the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	// A missing or broken TTR falls back to one minute.
	if cfg.TTRMinutes <= 0 {
		cfg.TTRMinutes = 1
	}

	return cfg, nil
}

// optionsSchema validates the add-on options.json written by the Supervisor.
const optionsSchema = `{
  "type": "object",
  "properties": {
    "ttr": {"type": "integer", "minimum": 1},
    "log_level": {"type": "string", "enum": ["debug", "info"]},
    "service_account_token": {"type": "string", "minLength": 1}
  },
  "additionalProperties": true
}`

// ValidateOptions checks the Supervisor-provided options.json against the
// add-on schema. A missing file is not an error; the Supervisor only writes
// one when the user changed a setting.
func ValidateOptions(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read options file: %w", err)
	}

	schema := gojsonschema.NewStringLoader(optionsSchema)
	document := gojsonschema.NewBytesLoader(data)

	result, err := gojsonschema.Validate(schema, document)
	if err != nil {
		return fmt.Errorf("failed to validate options: %w", err)
	}

	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			msgs = append(msgs, desc.String())
		}
		return fmt.Errorf("invalid options: %v", msgs)
	}

	return nil
}
