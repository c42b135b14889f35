package config

import "time"

// DaemonConfig is the root configuration for an economy daemon instance.
type DaemonConfig struct {
	Instance InstanceConfig `yaml:"instance"`
	Database DBConfig       `yaml:"database"`
	Economy  EconomyConfig  `yaml:"economy"`
	Flush    FlushConfig    `yaml:"flush"`
	Shops    ShopsConfig    `yaml:"shops"`
	Market   MarketConfig   `yaml:"market"`
	Ops      OpsConfig      `yaml:"ops"`
}

// InstanceConfig identifies this daemon.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// DBConfig holds the PostgreSQL connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// EconomyConfig holds currency settings.
type EconomyConfig struct {
	StartingBalance int64  `yaml:"starting_balance"` // Cents granted to new accounts
	CurrencySymbol  string `yaml:"currency_symbol"`
}

// FlushConfig holds dirty write-back worker settings.
type FlushConfig struct {
	BatchSize       int           `yaml:"batch_size"`
	FlushInterval   time.Duration `yaml:"flush_interval"`
	BufferSize      int           `yaml:"buffer_size"`
	MaxRetries      int           `yaml:"max_retries"`
	RetryBaseDelay  time.Duration `yaml:"retry_base_delay"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// ShopsConfig enables or disables each shop subsystem.
type ShopsConfig struct {
	ChestEnabled  bool `yaml:"chest_enabled"`
	SignEnabled   bool `yaml:"sign_enabled"`
	ServerEnabled bool `yaml:"server_enabled"`
	MarketEnabled bool `yaml:"market_enabled"`
}

// MarketConfig holds player market settings.
type MarketConfig struct {
	ListingDuration      time.Duration `yaml:"listing_duration"`
	MaxListingsPerPlayer int           `yaml:"max_listings_per_player"`
	SweepInterval        time.Duration `yaml:"sweep_interval"`
	Retention            time.Duration `yaml:"retention"` // Kept after expiry before purge
}

// OpsConfig holds the health/live-feed HTTP surface settings.
type OpsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}
