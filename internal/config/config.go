// Package config loads server and simulation settings from an optional
// config file, a .env file and FARM_ environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the main configuration struct combining all sub-configs
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Simulation SimulationConfig `mapstructure:"simulation"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

// ServerConfig holds the HTTP listener settings
type ServerConfig struct {
	Addr           string   `mapstructure:"addr" validate:"required"`
	StaticDir      string   `mapstructure:"static_dir"`
	AllowedOrigins []string `mapstructure:"allowed_origins" validate:"min=1"`
}

// DatabaseConfig points at the trade ledger. An empty URL disables it.
type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

// AuthConfig protects the control endpoints with an operator token
type AuthConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	JWTSecret         string        `mapstructure:"jwt_secret" validate:"required_if=Enabled true"`
	AdminPasswordHash string        `mapstructure:"admin_password_hash" validate:"required_if=Enabled true"`
	TokenTTL          time.Duration `mapstructure:"token_ttl" validate:"gt=0"`
}

// SimulationConfig holds competition settings
type SimulationConfig struct {
	// Rules file; empty means built-in defaults
	RulesPath string `mapstructure:"rules_path"`

	// Pause between turns when streaming, 0 for none
	TurnInterval time.Duration `mapstructure:"turn_interval" validate:"gte=0"`

	// PRNG seed; 0 draws a fresh one per competition
	Seed int64 `mapstructure:"seed"`

	DecisionTimeout time.Duration `mapstructure:"decision_timeout" validate:"gt=0"`

	// Agent endpoint per farm; an empty entry uses the built-in greedy player
	AgentURLs []string `mapstructure:"agent_urls" validate:"max=2,dive,omitempty,url"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	// Log level: debug, info, warn, error
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`

	// Log format: json, text
	Format string `mapstructure:"format" validate:"required,oneof=json text"`

	// Output destination: stdout, stderr
	Output string `mapstructure:"output" validate:"required,oneof=stdout stderr"`
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path" validate:"required_if=Enabled true"`
}

// LoadConfig loads configuration from multiple sources with priority:
// 1. Environment variables (highest priority)
// 2. Config file (config.yaml)
// 3. Defaults (lowest priority)
func LoadConfig(configPath string) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	v := viper.New()
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	v.SetEnvPrefix("FARM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// DATABASE_URL without prefix, as most hosting platforms set it
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		v.Set("database.url", dbURL)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	SetDefaults(&cfg)

	if err := ValidateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// bindEnv registers every key so AutomaticEnv can fill keys absent from
// the config file
func bindEnv(v *viper.Viper) {
	for _, key := range []string{
		"server.addr", "server.static_dir", "server.allowed_origins",
		"database.url",
		"auth.enabled", "auth.jwt_secret", "auth.admin_password_hash", "auth.token_ttl",
		"simulation.rules_path", "simulation.turn_interval", "simulation.seed",
		"simulation.decision_timeout", "simulation.agent_urls",
		"logging.level", "logging.format", "logging.output",
		"metrics.enabled", "metrics.path",
	} {
		_ = v.BindEnv(key)
	}
}
