package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

// Config is the full engine configuration. A JSON file provides the base
// values; environment variables override individual settings.
type Config struct {
	EngineConfig   EngineConfig   `json:"engine"`
	SignalConfig   SignalConfig   `json:"signal"`
	BacktestConfig BacktestConfig `json:"backtest"`
	LearningConfig LearningConfig `json:"learning"`
	DatabaseConfig DatabaseConfig `json:"database"`
	RedisConfig    RedisConfig    `json:"redis"`
	ServerConfig   ServerConfig   `json:"server"`
	LoggingConfig  LoggingConfig  `json:"logging"`
}

// EngineConfig controls confluence analysis
type EngineConfig struct {
	ConfluenceThreshold float64 `json:"confluence_threshold"` // minimum |score| for a verdict
}

// SignalConfig controls signal construction and sizing
type SignalConfig struct {
	ATRMultiplier  float64 `json:"atr_multiplier"`   // stop distance in ATRs
	BaseRiskReward float64 `json:"base_risk_reward"` // default target multiple
	WideRiskReward float64 `json:"wide_risk_reward"` // used on strong consensus
	RiskPercent    float64 `json:"risk_percent"`     // account risk per trade
	ExpirySeconds  int     `json:"expiry_seconds"`   // signal validity window
	InitialBalance float64 `json:"initial_balance"`  // sizing base
}

// BacktestConfig controls historical replay
type BacktestConfig struct {
	InitialBalance float64 `json:"initial_balance"`
	CommissionPct  float64 `json:"commission_pct"` // per side
	SlippagePct    float64 `json:"slippage_pct"`   // applied against the trader
	ATRStopMult    float64 `json:"atr_stop_mult"`
	RiskReward     float64 `json:"risk_reward"`
}

// LearningConfig controls the feedback loop and the kill switch
type LearningConfig struct {
	BufferSize     int     `json:"buffer_size"`     // outcome window for retraining
	RetrainEvery   int     `json:"retrain_every"`   // outcomes between retrains
	MinSamples     int     `json:"min_samples"`     // usable samples required
	LookbackTrades int     `json:"lookback_trades"` // kill switch window
	MinWinRate     float64 `json:"min_win_rate"`    // percent
	MaxDrawdownPct float64 `json:"max_drawdown_pct"`
	MinSharpe      float64 `json:"min_sharpe"`
}

// DatabaseConfig holds PostgreSQL connection settings. Persistence is
// optional; an empty host disables it.
type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"ssl_mode"`
}

// RedisConfig holds Redis settings for kill switch state persistence.
// An empty address degrades to in-memory state.
type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string `json:"host"`
	Port            int    `json:"port"`
	ProductionMode  bool   `json:"production_mode"`
	ShutdownTimeout int    `json:"shutdown_timeout"` // Seconds
}

// LoggingConfig controls log output
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json or console
	Output string `json:"output"` // stdout, stderr, or file path
}

// Load reads the config file when present, then applies environment
// overrides. A missing file is not an error; overrides alone are enough.
func Load(path string) (*Config, error) {
	cfg, err := loadFromFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		cfg = &Config{}
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)
	return cfg, nil
}

func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}
	return &cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the config
func applyEnvOverrides(cfg *Config) {
	cfg.EngineConfig.ConfluenceThreshold = getEnvFloatOrDefault("ENGINE_CONFLUENCE_THRESHOLD", cfg.EngineConfig.ConfluenceThreshold)

	cfg.SignalConfig.RiskPercent = getEnvFloatOrDefault("SIGNAL_RISK_PERCENT", cfg.SignalConfig.RiskPercent)
	cfg.SignalConfig.InitialBalance = getEnvFloatOrDefault("SIGNAL_INITIAL_BALANCE", cfg.SignalConfig.InitialBalance)

	cfg.DatabaseConfig.Host = getEnvOrDefault("DB_HOST", cfg.DatabaseConfig.Host)
	cfg.DatabaseConfig.Port = getEnvIntOrDefault("DB_PORT", cfg.DatabaseConfig.Port)
	cfg.DatabaseConfig.User = getEnvOrDefault("DB_USER", cfg.DatabaseConfig.User)
	cfg.DatabaseConfig.Password = getEnvOrDefault("DB_PASSWORD", cfg.DatabaseConfig.Password)
	cfg.DatabaseConfig.Database = getEnvOrDefault("DB_NAME", cfg.DatabaseConfig.Database)
	cfg.DatabaseConfig.SSLMode = getEnvOrDefault("DB_SSL_MODE", cfg.DatabaseConfig.SSLMode)

	cfg.RedisConfig.Addr = getEnvOrDefault("REDIS_ADDR", cfg.RedisConfig.Addr)
	cfg.RedisConfig.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.RedisConfig.Password)
	cfg.RedisConfig.DB = getEnvIntOrDefault("REDIS_DB", cfg.RedisConfig.DB)

	cfg.ServerConfig.Host = getEnvOrDefault("SERVER_HOST", cfg.ServerConfig.Host)
	cfg.ServerConfig.Port = getEnvIntOrDefault("SERVER_PORT", cfg.ServerConfig.Port)
	cfg.ServerConfig.ProductionMode = getEnvOrDefault("SERVER_PRODUCTION", boolString(cfg.ServerConfig.ProductionMode)) == "true"

	cfg.LoggingConfig.Level = getEnvOrDefault("LOG_LEVEL", cfg.LoggingConfig.Level)
	cfg.LoggingConfig.Format = getEnvOrDefault("LOG_FORMAT", cfg.LoggingConfig.Format)
	cfg.LoggingConfig.Output = getEnvOrDefault("LOG_OUTPUT", cfg.LoggingConfig.Output)
}

// applyDefaults fills anything still unset. Component constructors apply
// their own defaults for zero values, so only the wiring-level settings
// need filling here.
func applyDefaults(cfg *Config) {
	if cfg.SignalConfig.InitialBalance <= 0 {
		cfg.SignalConfig.InitialBalance = 10000
	}
	if cfg.ServerConfig.Host == "" {
		cfg.ServerConfig.Host = "0.0.0.0"
	}
	if cfg.ServerConfig.Port <= 0 {
		cfg.ServerConfig.Port = 8080
	}
	if cfg.ServerConfig.ShutdownTimeout <= 0 {
		cfg.ServerConfig.ShutdownTimeout = 10
	}
	if cfg.DatabaseConfig.Port <= 0 {
		cfg.DatabaseConfig.Port = 5432
	}
	if cfg.DatabaseConfig.SSLMode == "" {
		cfg.DatabaseConfig.SSLMode = "disable"
	}
	if cfg.LoggingConfig.Level == "" {
		cfg.LoggingConfig.Level = "info"
	}
	if cfg.LoggingConfig.Format == "" {
		cfg.LoggingConfig.Format = "json"
	}
	if cfg.LoggingConfig.Output == "" {
		cfg.LoggingConfig.Output = "stdout"
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// GenerateSampleConfig writes a config file with workable defaults
func GenerateSampleConfig(path string) error {
	cfg := Config{
		EngineConfig: EngineConfig{
			ConfluenceThreshold: 0.60,
		},
		SignalConfig: SignalConfig{
			ATRMultiplier:  1.5,
			BaseRiskReward: 2.0,
			WideRiskReward: 3.0,
			RiskPercent:    1.0,
			ExpirySeconds:  3600,
			InitialBalance: 10000,
		},
		BacktestConfig: BacktestConfig{
			InitialBalance: 10000,
			CommissionPct:  0.1,
			SlippagePct:    0.05,
			ATRStopMult:    1.5,
			RiskReward:     2.0,
		},
		LearningConfig: LearningConfig{
			BufferSize:     100,
			RetrainEvery:   20,
			MinSamples:     10,
			LookbackTrades: 50,
			MinWinRate:     40,
			MaxDrawdownPct: 10,
			MinSharpe:      0.5,
		},
		DatabaseConfig: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "trading",
			Password: "trading",
			Database: "trading_engine",
			SSLMode:  "disable",
		},
		RedisConfig: RedisConfig{
			Addr: "localhost:6379",
		},
		ServerConfig: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ShutdownTimeout: 10,
		},
		LoggingConfig: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
