package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultDBPort               = 5432
	DefaultDBSSLMode            = "prefer"
	DefaultMaxConns             = 10
	DefaultMinConns             = 2
	DefaultStartingBalance      = 10000 // $100.00
	DefaultCurrencySymbol       = "$"
	DefaultBatchSize            = 500
	DefaultFlushInterval        = 1 * time.Second
	DefaultBufferSize           = 10000
	DefaultMaxRetries           = 5
	DefaultRetryBaseDelay       = 250 * time.Millisecond
	DefaultShutdownTimeout      = 10 * time.Second
	DefaultListingDuration      = 48 * time.Hour
	DefaultMaxListingsPerPlayer = 8
	DefaultSweepInterval        = 5 * time.Minute
	DefaultRetention            = 7 * 24 * time.Hour
	DefaultOpsPort              = 8925
)

func (c *DaemonConfig) applyDefaults() {
	// Database defaults
	if c.Database.Port == 0 {
		c.Database.Port = DefaultDBPort
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = DefaultDBSSLMode
	}
	if c.Database.MaxConns == 0 {
		c.Database.MaxConns = DefaultMaxConns
	}
	if c.Database.MinConns == 0 {
		c.Database.MinConns = DefaultMinConns
	}

	// Economy defaults
	if c.Economy.StartingBalance == 0 {
		c.Economy.StartingBalance = DefaultStartingBalance
	}
	if c.Economy.CurrencySymbol == "" {
		c.Economy.CurrencySymbol = DefaultCurrencySymbol
	}

	// Flush defaults
	if c.Flush.BatchSize == 0 {
		c.Flush.BatchSize = DefaultBatchSize
	}
	if c.Flush.FlushInterval == 0 {
		c.Flush.FlushInterval = DefaultFlushInterval
	}
	if c.Flush.BufferSize == 0 {
		c.Flush.BufferSize = DefaultBufferSize
	}
	if c.Flush.MaxRetries == 0 {
		c.Flush.MaxRetries = DefaultMaxRetries
	}
	if c.Flush.RetryBaseDelay == 0 {
		c.Flush.RetryBaseDelay = DefaultRetryBaseDelay
	}
	if c.Flush.ShutdownTimeout == 0 {
		c.Flush.ShutdownTimeout = DefaultShutdownTimeout
	}

	// Market defaults
	if c.Market.ListingDuration == 0 {
		c.Market.ListingDuration = DefaultListingDuration
	}
	if c.Market.MaxListingsPerPlayer == 0 {
		c.Market.MaxListingsPerPlayer = DefaultMaxListingsPerPlayer
	}
	if c.Market.SweepInterval == 0 {
		c.Market.SweepInterval = DefaultSweepInterval
	}
	if c.Market.Retention == 0 {
		c.Market.Retention = DefaultRetention
	}

	// Ops defaults
	if c.Ops.Port == 0 {
		c.Ops.Port = DefaultOpsPort
	}
}
