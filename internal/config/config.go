// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds everything the server needs to start.
type Config struct {
	Server    ServerConfig
	Logging   LoggingConfig
	Database  DatabaseConfig
	Oracle    OracleConfig
	Wrapper   WrapperConfig
	Registrar RegistrarConfig
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host string
	Port int
	// RateLimit is requests per second per client, 0 disables limiting.
	RateLimit float64
	RateBurst int
}

// LoggingConfig mirrors pkg/logger's settings.
type LoggingConfig struct {
	Level  string
	Format string
	Output string
}

// DatabaseConfig selects the persistence backend. An empty DSN keeps
// everything in memory.
type DatabaseConfig struct {
	DSN string
}

// OracleConfig configures the price source.
type OracleConfig struct {
	// RPCURL and FeedAddress select the on-chain aggregator. When RPCURL
	// is empty a static price is used instead.
	RPCURL       string
	FeedAddress  string
	StaticPrice8 int64
	MaxAge       time.Duration
	PollInterval time.Duration
}

// WrapperConfig configures the name wrapper backend. When RPCURL is empty
// an in-memory registry is used.
type WrapperConfig struct {
	RPCURL   string
	Contract string
	TLD      string
}

// RegistrarConfig configures settlement behaviour.
type RegistrarConfig struct {
	// Operator is the registrar's settlement account checked against the
	// owner's approvals.
	Operator          string
	MaxBatchSize      int
	LicensePriceCents int64
	// PayoutAccount receives collected fees. Empty holds settlements for
	// out-of-band payout.
	PayoutAccount string
	// TiersFile points to a YAML tier table; empty uses the built-in one.
	TiersFile string
}

// Load reads configuration from the environment, applying defaults.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:      getenv("SERVER_HOST", "0.0.0.0"),
			Port:      8080,
			RateLimit: 0,
			RateBurst: 20,
		},
		Logging: LoggingConfig{
			Level:  getenv("LOG_LEVEL", "info"),
			Format: getenv("LOG_FORMAT", "json"),
			Output: getenv("LOG_OUTPUT", "stdout"),
		},
		Database: DatabaseConfig{
			DSN: os.Getenv("DATABASE_DSN"),
		},
		Oracle: OracleConfig{
			RPCURL:       os.Getenv("ORACLE_RPC_URL"),
			FeedAddress:  os.Getenv("ORACLE_FEED_ADDRESS"),
			StaticPrice8: 300000000000,
			MaxAge:       3 * time.Hour,
			PollInterval: time.Minute,
		},
		Wrapper: WrapperConfig{
			RPCURL:   os.Getenv("WRAPPER_RPC_URL"),
			Contract: os.Getenv("WRAPPER_CONTRACT"),
			TLD:      getenv("WRAPPER_TLD", "eth"),
		},
		Registrar: RegistrarConfig{
			Operator:          os.Getenv("REGISTRAR_OPERATOR"),
			MaxBatchSize:      100,
			LicensePriceCents: 2500,
			PayoutAccount:     os.Getenv("REGISTRAR_PAYOUT_ACCOUNT"),
			TiersFile:         os.Getenv("PRICING_TIERS_FILE"),
		},
	}

	var err error
	if cfg.Server.Port, err = intEnv("SERVER_PORT", cfg.Server.Port); err != nil {
		return nil, err
	}
	if cfg.Server.RateLimit, err = floatEnv("SERVER_RATE_LIMIT", cfg.Server.RateLimit); err != nil {
		return nil, err
	}
	if cfg.Server.RateBurst, err = intEnv("SERVER_RATE_BURST", cfg.Server.RateBurst); err != nil {
		return nil, err
	}
	if cfg.Oracle.StaticPrice8, err = int64Env("ORACLE_STATIC_PRICE8", cfg.Oracle.StaticPrice8); err != nil {
		return nil, err
	}
	if cfg.Oracle.MaxAge, err = durationEnv("ORACLE_MAX_AGE", cfg.Oracle.MaxAge); err != nil {
		return nil, err
	}
	if cfg.Oracle.PollInterval, err = durationEnv("ORACLE_POLL_INTERVAL", cfg.Oracle.PollInterval); err != nil {
		return nil, err
	}
	if cfg.Registrar.MaxBatchSize, err = intEnv("REGISTRAR_MAX_BATCH", cfg.Registrar.MaxBatchSize); err != nil {
		return nil, err
	}
	if cfg.Registrar.LicensePriceCents, err = int64Env("LICENSE_PRICE_CENTS", cfg.Registrar.LicensePriceCents); err != nil {
		return nil, err
	}

	if cfg.Oracle.RPCURL != "" && cfg.Oracle.FeedAddress == "" {
		return nil, fmt.Errorf("ORACLE_FEED_ADDRESS required when ORACLE_RPC_URL is set")
	}
	if cfg.Wrapper.RPCURL != "" && cfg.Wrapper.Contract == "" {
		return nil, fmt.Errorf("WRAPPER_CONTRACT required when WRAPPER_RPC_URL is set")
	}
	return cfg, nil
}

// Addr returns the listen address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func intEnv(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func int64Env(key string, def int64) (int64, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func floatEnv(key string, def float64) (float64, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}
