package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	yaml := `
instance:
  id: test-economyd
database:
  host: localhost
  port: 5432
  name: test_db
  user: testuser
  password: testpass
economy:
  starting_balance: 50000
  currency_symbol: "€"
shops:
  sign_enabled: true
  market_enabled: true
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Instance.ID != "test-economyd" {
		t.Errorf("Instance.ID = %q, want %q", cfg.Instance.ID, "test-economyd")
	}
	if cfg.Database.Host != "localhost" {
		t.Errorf("Database.Host = %q, want %q", cfg.Database.Host, "localhost")
	}
	if cfg.Economy.StartingBalance != 50000 {
		t.Errorf("Economy.StartingBalance = %d, want 50000", cfg.Economy.StartingBalance)
	}
	if cfg.Economy.CurrencySymbol != "€" {
		t.Errorf("Economy.CurrencySymbol = %q, want %q", cfg.Economy.CurrencySymbol, "€")
	}
	if !cfg.Shops.SignEnabled {
		t.Error("Shops.SignEnabled = false, want true")
	}
	if cfg.Shops.ChestEnabled {
		t.Error("Shops.ChestEnabled = true, want false")
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_DB_PASSWORD", "secret123")

	yaml := `
instance:
  id: test-economyd
database:
  host: localhost
  name: test_db
  user: testuser
  password: ${TEST_DB_PASSWORD}
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Database.Password != "secret123" {
		t.Errorf("Database.Password = %q, want %q", cfg.Database.Password, "secret123")
	}
}

func TestLoadWithEnvFallback(t *testing.T) {
	t.Setenv("TEST_DB_USER", "fromenv")

	yaml := `
instance:
  id: test-economyd
database:
  host: ${TEST_DB_HOST:-db.fallback.local}
  name: test_db
  user: ${TEST_DB_USER:-unused}
  password: ${TEST_DB_PASSWORD_UNSET}
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Database.Host != "db.fallback.local" {
		t.Errorf("Database.Host = %q, want fallback %q", cfg.Database.Host, "db.fallback.local")
	}
	if cfg.Database.User != "fromenv" {
		t.Errorf("Database.User = %q, want env value %q", cfg.Database.User, "fromenv")
	}
	if cfg.Database.Password != "" {
		t.Errorf("Database.Password = %q, want empty for unset variable", cfg.Database.Password)
	}
}

func TestLoadWithDefaults(t *testing.T) {
	yaml := `
instance:
  id: test-economyd
database:
  host: localhost
  name: test_db
  user: testuser
  password: testpass
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	// Check defaults were applied
	if cfg.Database.Port != DefaultDBPort {
		t.Errorf("Database.Port = %d, want default %d", cfg.Database.Port, DefaultDBPort)
	}
	if cfg.Database.MaxConns != DefaultMaxConns {
		t.Errorf("Database.MaxConns = %d, want default %d", cfg.Database.MaxConns, DefaultMaxConns)
	}
	if cfg.Economy.StartingBalance != DefaultStartingBalance {
		t.Errorf("Economy.StartingBalance = %d, want default %d", cfg.Economy.StartingBalance, DefaultStartingBalance)
	}
	if cfg.Flush.BatchSize != DefaultBatchSize {
		t.Errorf("Flush.BatchSize = %d, want default %d", cfg.Flush.BatchSize, DefaultBatchSize)
	}
	if cfg.Flush.FlushInterval != DefaultFlushInterval {
		t.Errorf("Flush.FlushInterval = %v, want default %v", cfg.Flush.FlushInterval, DefaultFlushInterval)
	}
	if cfg.Market.ListingDuration != DefaultListingDuration {
		t.Errorf("Market.ListingDuration = %v, want default %v", cfg.Market.ListingDuration, DefaultListingDuration)
	}
	if cfg.Market.MaxListingsPerPlayer != DefaultMaxListingsPerPlayer {
		t.Errorf("Market.MaxListingsPerPlayer = %d, want default %d", cfg.Market.MaxListingsPerPlayer, DefaultMaxListingsPerPlayer)
	}
	if cfg.Ops.Port != DefaultOpsPort {
		t.Errorf("Ops.Port = %d, want default %d", cfg.Ops.Port, DefaultOpsPort)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load of missing file should fail")
	}
}

func TestValidate(t *testing.T) {
	valid := func() DaemonConfig {
		return DaemonConfig{
			Instance: InstanceConfig{ID: "test"},
			Database: DBConfig{Host: "localhost", Name: "db", User: "user", Password: "pass", MaxConns: 10, MinConns: 2},
			Economy:  EconomyConfig{StartingBalance: 10000},
			Flush:    FlushConfig{BatchSize: 500, BufferSize: 10000, FlushInterval: time.Second},
			Market:   MarketConfig{ListingDuration: 48 * time.Hour, MaxListingsPerPlayer: 8},
			Ops:      OpsConfig{Port: 8925},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*DaemonConfig)
		wantErr string
	}{
		{
			name:    "valid config",
			mutate:  func(c *DaemonConfig) {},
			wantErr: "",
		},
		{
			name:    "missing instance id",
			mutate:  func(c *DaemonConfig) { c.Instance.ID = "" },
			wantErr: "instance.id is required",
		},
		{
			name:    "missing database host",
			mutate:  func(c *DaemonConfig) { c.Database.Host = "" },
			wantErr: "database.host is required",
		},
		{
			name:    "missing database password",
			mutate:  func(c *DaemonConfig) { c.Database.Password = "" },
			wantErr: "database.password is required",
		},
		{
			name:    "min_conns exceeds max_conns",
			mutate:  func(c *DaemonConfig) { c.Database.MinConns = 20 },
			wantErr: "database.min_conns (20) cannot exceed max_conns (10)",
		},
		{
			name:    "negative starting balance",
			mutate:  func(c *DaemonConfig) { c.Economy.StartingBalance = -1 },
			wantErr: "economy.starting_balance must be >= 0",
		},
		{
			name:    "zero batch size",
			mutate:  func(c *DaemonConfig) { c.Flush.BatchSize = 0 },
			wantErr: "flush.batch_size must be >= 1",
		},
		{
			name:    "zero listing cap",
			mutate:  func(c *DaemonConfig) { c.Market.MaxListingsPerPlayer = 0 },
			wantErr: "market.max_listings_per_player must be >= 1",
		},
		{
			name:    "port out of range",
			mutate:  func(c *DaemonConfig) { c.Ops.Port = 70000 },
			wantErr: "ops.port must be between 1 and 65535, got 70000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
			} else {
				if err == nil {
					t.Errorf("Validate() expected error %q, got nil", tt.wantErr)
				} else if err.Error() != tt.wantErr {
					t.Errorf("Validate() error = %q, want %q", err.Error(), tt.wantErr)
				}
			}
		})
	}
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}
