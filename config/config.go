// Package config loads run configuration for the backtest CLI via
// viper, the way the ambient stack's configuration layer is described in
// SPEC_FULL §9: environment overrides plus an optional YAML/JSON file,
// no bespoke flag parsing.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// AssetConfig describes one asset's replay inputs and contract
// parameters, the unit the CLI's `run` subcommand iterates over.
type AssetConfig struct {
	Name            string   `mapstructure:"name"`
	DataFiles       []string `mapstructure:"data_files"`
	SnapshotFile    string   `mapstructure:"snapshot_file"`
	TickSize        float64  `mapstructure:"tick_size"`
	LotSize         float64  `mapstructure:"lot_size"`
	MakerFee        float64  `mapstructure:"maker_fee"`
	TakerFee        float64  `mapstructure:"taker_fee"`
	AssetType       string   `mapstructure:"asset_type"` // "linear" | "inverse"
	QueueModel      string   `mapstructure:"queue_model"` // "risk_averse" | "prob_log" | "prob_identity" | "prob_square"
	LatencyModel    string   `mapstructure:"latency_model"` // "constant" | "feed"
	EntryLatencyNS  int64    `mapstructure:"entry_latency_ns"`
	ResponseLatency int64    `mapstructure:"response_latency_ns"`
	StartPosition   float64  `mapstructure:"start_position"`
	StartBalance    float64  `mapstructure:"start_balance"`
	LastTradesCap   int      `mapstructure:"last_trades_cap"`
}

// RunConfig is the full configuration for one backtest invocation.
type RunConfig struct {
	Assets       []AssetConfig `mapstructure:"assets"`
	LogLevel     string        `mapstructure:"log_level"`
	MetricsAddr  string        `mapstructure:"metrics_addr"`
}

// Load reads configuration from an optional file plus BACKTEST_*
// environment overrides, mirroring the viper setup the wider example
// pack uses for CLI tools: a config file path supplied by the caller,
// environment variables layered on top.
func Load(configPath string) (*RunConfig, error) {
	v := viper.New()
	v.SetEnvPrefix("BACKTEST")
	v.AutomaticEnv()

	v.SetDefault("log_level", "info")
	v.SetDefault("metrics_addr", ":9090")

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", configPath, err)
		}
	}

	var cfg RunConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshalling: %w", err)
	}
	return &cfg, nil
}
