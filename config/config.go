package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"marketescrow/crypto"

	"github.com/BurntSushi/toml"
)

// Supported storage backends.
const (
	BackendLevelDB = "leveldb"
	BackendBolt    = "bolt"
	BackendMemory  = "memory"
)

// DefaultTokenEnv is consulted for the admin bearer token when the config does
// not name another variable.
const DefaultTokenEnv = "ESCROW_RPC_TOKEN"

type Config struct {
	DataDir      string    `toml:"DataDir"`
	DBBackend    string    `toml:"DBBackend"`
	GenesisFile  string    `toml:"GenesisFile"`
	IndexerPath  string    `toml:"IndexerPath"`
	KeystorePath string    `toml:"KeystorePath"`
	RPC          RPC       `toml:"rpc"`
	Escrow       Escrow    `toml:"escrow"`
	Pauses       Pauses    `toml:"pauses"`
	Log          Log       `toml:"log"`
	Telemetry    Telemetry `toml:"telemetry"`
}

// Load loads the configuration from the given path. A missing file is
// replaced by a default configuration written to disk.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	} else if err != nil {
		return nil, err
	}

	cfg := Default()
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config file %s has unknown key %s", path, undecoded[0])
	}
	if strings.TrimSpace(cfg.KeystorePath) == "" {
		cfg.KeystorePath = defaultKeystorePath(path)
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used when no file exists yet.
func Default() *Config {
	return &Config{
		DataDir:   "./escrow-data",
		DBBackend: BackendLevelDB,
		RPC: RPC{
			Address:           "127.0.0.1:8545",
			ReadHeaderTimeout: 5,
			ReadTimeout:       15,
			WriteTimeout:      15,
			IdleTimeout:       60,
			RateLimit:         20,
			RateBurst:         40,
			TokenEnv:          DefaultTokenEnv,
		},
		Escrow: Escrow{
			NativeMinimumBalance: 890880,
		},
		Log: Log{
			Level:      "info",
			Env:        "dev",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Telemetry: Telemetry{MetricsInterval: 15},
	}
}

// RPCToken resolves the admin bearer token from the environment.
func (c *Config) RPCToken() string {
	name := strings.TrimSpace(c.RPC.TokenEnv)
	if name == "" {
		name = DefaultTokenEnv
	}
	return strings.TrimSpace(os.Getenv(name))
}

// EnsureKeystore returns the configured keystore path, generating a fresh
// operator key when the file does not exist.
func (c *Config) EnsureKeystore(passphrase string) (string, error) {
	path := c.KeystorePath
	if path == "" {
		return "", fmt.Errorf("config: keystore path not set")
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		key, genErr := crypto.GeneratePrivateKey()
		if genErr != nil {
			return "", genErr
		}
		if err := crypto.SaveToKeystore(path, key, passphrase); err != nil {
			return "", err
		}
	} else if err != nil {
		return "", err
	}
	return path, nil
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	cfg.KeystorePath = defaultKeystorePath(path)
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

func defaultKeystorePath(configPath string) string {
	dir := filepath.Dir(configPath)
	if dir == "." || dir == "" {
		dir = ""
	}
	return filepath.Join(dir, "operator.keystore")
}
