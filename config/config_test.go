package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"marketescrow/crypto"
)

func TestLoadCreatesDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DBBackend != BackendLevelDB {
		t.Fatalf("unexpected backend %q", cfg.DBBackend)
	}
	if cfg.Escrow.NativeMinimumBalance != 890880 {
		t.Fatalf("unexpected minimum balance %d", cfg.Escrow.NativeMinimumBalance)
	}
	if cfg.KeystorePath != filepath.Join(dir, "operator.keystore") {
		t.Fatalf("unexpected keystore path %q", cfg.KeystorePath)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config not persisted: %v", err)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.RPC.Address != cfg.RPC.Address {
		t.Fatalf("reloaded address mismatch: %q != %q", reloaded.RPC.Address, cfg.RPC.Address)
	}
}

func TestLoadParsesSections(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	program := crypto.FromKey([20]byte{0x42}).String()
	contents := `DataDir = "./data"
DBBackend = "bolt"
GenesisFile = "genesis.yaml"
IndexerPath = "./index.db"

[rpc]
address = "0.0.0.0:9000"
rate_limit = 5.5
rate_burst = 10
token_env = "TEST_ESCROW_TOKEN"

[escrow]
program_id = "` + program + `"
native_minimum_balance = 1000
notify_reputation = true

[escrow.quota]
max_requests_per_epoch = 10
max_value_per_epoch = 5000
epoch_seconds = 3600

[pauses]
marketplace = true

[log]
env = "prod"
file = "./escrowd.log"
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DBBackend != BackendBolt || cfg.GenesisFile != "genesis.yaml" || cfg.IndexerPath != "./index.db" {
		t.Fatalf("unexpected top-level fields: %+v", cfg)
	}
	if cfg.RPC.Address != "0.0.0.0:9000" || cfg.RPC.RateLimit != 5.5 || cfg.RPC.RateBurst != 10 {
		t.Fatalf("unexpected rpc section: %+v", cfg.RPC)
	}
	if cfg.RPC.ReadTimeout != 15 {
		t.Fatalf("expected defaults to survive partial sections, got read timeout %d", cfg.RPC.ReadTimeout)
	}
	if !cfg.Escrow.NotifyReputation || cfg.Escrow.NativeMinimumBalance != 1000 {
		t.Fatalf("unexpected escrow section: %+v", cfg.Escrow)
	}
	if cfg.Escrow.Quota.MaxRequestsPerEpoch != 10 || cfg.Escrow.Quota.EpochSeconds != 3600 {
		t.Fatalf("unexpected quota: %+v", cfg.Escrow.Quota)
	}
	if !cfg.Pauses.IsPaused("marketplace") || cfg.Pauses.IsPaused("escrow") {
		t.Fatalf("unexpected pauses: %+v", cfg.Pauses)
	}

	t.Setenv("TEST_ESCROW_TOKEN", " secret ")
	if got := cfg.RPCToken(); got != "secret" {
		t.Fatalf("unexpected token %q", got)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("ValidatorKey = \"abc\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "ValidatorKey") {
		t.Fatalf("expected unknown key error, got %v", err)
	}
}

func TestValidateConfig(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"backend", func(c *Config) { c.DBBackend = "postgres" }, "db_backend"},
		{"datadir", func(c *Config) { c.DataDir = "" }, "data_dir"},
		{"memory without datadir", func(c *Config) { c.DBBackend = BackendMemory; c.DataDir = "" }, ""},
		{"burst", func(c *Config) { c.RPC.RateBurst = 0 }, "rate_burst"},
		{"program id", func(c *Config) { c.Escrow.ProgramID = "not-bech32" }, "program_id"},
		{"quota epoch", func(c *Config) { c.Escrow.Quota.MaxRequestsPerEpoch = 1 }, "epoch_seconds"},
		{"quota epoch too long", func(c *Config) {
			c.Escrow.Quota.MaxValuePerEpoch = 1
			c.Escrow.Quota.EpochSeconds = MaxQuotaEpochSeconds + 1
		}, "exceeds"},
		{"log env", func(c *Config) { c.Log.Env = "staging" }, "log"},
		{"sample ratio", func(c *Config) { c.Telemetry.SampleRatio = 1.5 }, "sample_ratio"},
		{"origin scheme", func(c *Config) { c.RPC.AllowedOrigins = []string{"example.com"} }, "allowed_origins"},
		{"wildcard origin", func(c *Config) { c.RPC.AllowedOrigins = []string{"*", "https://shop.example"} }, ""},
		{"trusted proxy hostname", func(c *Config) { c.RPC.TrustedProxies = []string{"lb.internal"} }, "trusted_proxies"},
		{"trusted proxy cidr", func(c *Config) { c.RPC.TrustedProxies = []string{"10.0.0.0/8", "192.0.2.1"} }, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := ValidateConfig(cfg)
			if tc.want == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestPausesIsPaused(t *testing.T) {
	p := Pauses{Escrow: true}
	if !p.IsPaused("escrow") || !p.IsPaused(" Escrow ") {
		t.Fatalf("escrow should be paused")
	}
	if p.IsPaused("reputation") || p.IsPaused("unknown") {
		t.Fatalf("unexpected pause")
	}
}

func TestEnsureKeystore(t *testing.T) {
	cfg := Default()
	cfg.KeystorePath = filepath.Join(t.TempDir(), "keys", "operator.keystore")
	path, err := cfg.EnsureKeystore("pass")
	if err != nil {
		t.Fatalf("ensure keystore: %v", err)
	}
	if _, err := crypto.LoadFromKeystore(path, "pass"); err != nil {
		t.Fatalf("load generated key: %v", err)
	}
}
