package config

import "strings"

// Pauses toggles individual native modules off without restarting the node.
type Pauses struct {
	Escrow      bool `toml:"escrow"`
	Marketplace bool `toml:"marketplace"`
	Reputation  bool `toml:"reputation"`
}

// IsPaused reports whether the named module is paused.
func (p Pauses) IsPaused(module string) bool {
	switch strings.ToLower(strings.TrimSpace(module)) {
	case "escrow":
		return p.Escrow
	case "marketplace":
		return p.Marketplace
	case "reputation":
		return p.Reputation
	default:
		return false
	}
}

// Quota defines rate limits for module interactions on a per-address basis.
// The request limit counts escrows across all currencies. The value cap is
// applied to each currency separately, in that currency's base units.
type Quota struct {
	MaxRequestsPerEpoch uint32 `toml:"max_requests_per_epoch"`
	MaxValuePerEpoch    uint64 `toml:"max_value_per_epoch"` // base units, per currency
	EpochSeconds        uint32 `toml:"epoch_seconds"`       // e.g., 3600
}

// Escrow groups the escrow host settings.
type Escrow struct {
	// ProgramID scopes custody derivation. Empty uses the built-in id.
	ProgramID            string `toml:"program_id"`
	NativeMinimumBalance uint64 `toml:"native_minimum_balance"`
	NotifyReputation     bool   `toml:"notify_reputation"`
	Quota                Quota  `toml:"quota"`
}

// RPC controls the JSON-RPC listener.
type RPC struct {
	Address           string   `toml:"address"`
	ReadHeaderTimeout int      `toml:"read_header_timeout"` // seconds
	ReadTimeout       int      `toml:"read_timeout"`
	WriteTimeout      int      `toml:"write_timeout"`
	IdleTimeout       int      `toml:"idle_timeout"`
	RateLimit         float64  `toml:"rate_limit"` // requests per second per client, 0 disables
	RateBurst         int      `toml:"rate_burst"`
	AllowedOrigins    []string `toml:"allowed_origins"`
	// TrustedProxies lists addresses or CIDRs allowed to set X-Forwarded-For.
	TrustedProxies []string `toml:"trusted_proxies"`
	// TokenEnv names the environment variable holding the admin bearer token.
	TokenEnv string `toml:"token_env"`
}

// Log configures structured logging.
type Log struct {
	Level      string `toml:"level"`
	Env        string `toml:"env"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
}

// Telemetry configures OTLP export. An empty endpoint disables export.
type Telemetry struct {
	Endpoint        string            `toml:"endpoint"`
	Insecure        bool              `toml:"insecure"`
	Headers         map[string]string `toml:"headers"`
	MetricsInterval int               `toml:"metrics_interval"` // seconds
	SampleRatio     float64           `toml:"sample_ratio"`     // 0 keeps every trace
}
