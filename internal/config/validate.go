package config

import (
	"errors"
	"fmt"
)

// Validate checks that all required fields are set and values are valid.
func (c *DaemonConfig) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if err := c.Database.validate("database"); err != nil {
		return err
	}

	if c.Economy.StartingBalance < 0 {
		return errors.New("economy.starting_balance must be >= 0")
	}

	if c.Flush.BatchSize < 1 {
		return errors.New("flush.batch_size must be >= 1")
	}
	if c.Flush.BufferSize < 1 {
		return errors.New("flush.buffer_size must be >= 1")
	}
	if c.Flush.MaxRetries < 0 {
		return errors.New("flush.max_retries must be >= 0")
	}

	if c.Market.MaxListingsPerPlayer < 1 {
		return errors.New("market.max_listings_per_player must be >= 1")
	}
	if c.Market.ListingDuration <= 0 {
		return errors.New("market.listing_duration must be positive")
	}

	if c.Ops.Port < 1 || c.Ops.Port > 65535 {
		return fmt.Errorf("ops.port must be between 1 and 65535, got %d", c.Ops.Port)
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
