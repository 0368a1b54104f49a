package config

import (
	"fmt"
	"net/netip"
	"strings"

	"marketescrow/crypto"
)

// MaxQuotaEpochSeconds bounds the quota window to one week.
var MaxQuotaEpochSeconds = uint32(7 * 24 * 3600)

func ValidateConfig(c *Config) error {
	if c == nil {
		return fmt.Errorf("config: nil")
	}
	switch c.DBBackend {
	case BackendLevelDB, BackendBolt, BackendMemory:
	default:
		return fmt.Errorf("db_backend: unsupported backend %q", c.DBBackend)
	}
	if c.DBBackend != BackendMemory && strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("data_dir: required for %s backend", c.DBBackend)
	}
	if strings.TrimSpace(c.RPC.Address) == "" {
		return fmt.Errorf("rpc: address required")
	}
	if c.RPC.RateLimit < 0 {
		return fmt.Errorf("rpc: rate_limit < 0")
	}
	if c.RPC.RateLimit > 0 && c.RPC.RateBurst <= 0 {
		return fmt.Errorf("rpc: rate_burst must be positive when rate_limit is set")
	}
	if c.RPC.ReadTimeout < 0 || c.RPC.WriteTimeout < 0 || c.RPC.IdleTimeout < 0 || c.RPC.ReadHeaderTimeout < 0 {
		return fmt.Errorf("rpc: negative timeout")
	}
	for _, origin := range c.RPC.AllowedOrigins {
		origin = strings.TrimSpace(origin)
		if origin == "*" {
			continue
		}
		if !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
			return fmt.Errorf("rpc: allowed_origins entry %q must be * or an http(s) origin", origin)
		}
	}
	for _, proxy := range c.RPC.TrustedProxies {
		proxy = strings.TrimSpace(proxy)
		if proxy == "" {
			continue
		}
		var err error
		if strings.Contains(proxy, "/") {
			_, err = netip.ParsePrefix(proxy)
		} else {
			_, err = netip.ParseAddr(proxy)
		}
		if err != nil {
			return fmt.Errorf("rpc: trusted_proxies entry %q: %w", proxy, err)
		}
	}
	if id := strings.TrimSpace(c.Escrow.ProgramID); id != "" {
		if _, err := crypto.ParseKey(id); err != nil {
			return fmt.Errorf("escrow: program_id: %w", err)
		}
	}
	q := c.Escrow.Quota
	if q.MaxRequestsPerEpoch > 0 || q.MaxValuePerEpoch > 0 {
		if q.EpochSeconds == 0 {
			return fmt.Errorf("escrow.quota: epoch_seconds required when a limit is set")
		}
		if q.EpochSeconds > MaxQuotaEpochSeconds {
			return fmt.Errorf("escrow.quota: epoch_seconds exceeds %d", MaxQuotaEpochSeconds)
		}
	}
	switch strings.ToLower(c.Log.Env) {
	case "", "dev", "prod":
	default:
		return fmt.Errorf("log: env must be dev or prod")
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry: sample_ratio must be within [0,1]")
	}
	if c.Telemetry.MetricsInterval < 0 {
		return fmt.Errorf("telemetry: metrics_interval < 0")
	}
	return nil
}
