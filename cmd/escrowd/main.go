package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"marketescrow/cmd/internal/passphrase"
	"marketescrow/config"
	"marketescrow/core"
	"marketescrow/core/genesis"
	"marketescrow/crypto"
	"marketescrow/indexer"
	"marketescrow/native/common"
	"marketescrow/observability/logging"
	telemetry "marketescrow/observability/otel"
	"marketescrow/rpc"
	"marketescrow/storage"
)

const (
	serviceName       = "escrowd"
	operatorPassEnv   = "ESCROW_OPERATOR_PASS"
	genesisPathEnv    = "ESCROW_GENESIS"
	boltFileName      = "state.bolt"
	shutdownTelemetry = 5 * time.Second
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	genesisFlag := flag.String("genesis", "", "Path to a genesis spec (overrides ESCROW_GENESIS and config GenesisFile)")
	initOperator := flag.Bool("init-operator", false, "Create the operator keystore if missing, print its address and exit")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, logCloser := logging.SetupWithOptions(logging.Options{
		Service:    serviceName,
		Env:        cfg.Log.Env,
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	defer logCloser.Close()

	if *initOperator {
		if err := printOperator(cfg); err != nil {
			logger.Error("Failed to prepare operator keystore", slog.Any("error", err))
			os.Exit(1)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, resolveGenesisPath(*genesisFlag, cfg.GenesisFile), logger); err != nil {
		logger.Error("escrowd stopped with error", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("escrowd stopped")
}

func run(ctx context.Context, cfg *config.Config, genesisPath string, logger *slog.Logger) error {
	if endpoint := strings.TrimSpace(cfg.Telemetry.Endpoint); endpoint != "" {
		shutdown, err := telemetry.Init(ctx, telemetry.Config{
			ServiceName:     serviceName,
			Environment:     cfg.Log.Env,
			Endpoint:        endpoint,
			Insecure:        cfg.Telemetry.Insecure,
			Headers:         telemetry.MergeHeaders(cfg.Telemetry.Headers, telemetry.ParseHeaders(os.Getenv(telemetry.HeadersEnv))),
			Metrics:         true,
			Traces:          true,
			SampleRatio:     cfg.Telemetry.SampleRatio,
			MetricsInterval: time.Duration(cfg.Telemetry.MetricsInterval) * time.Second,
		})
		if err != nil {
			return fmt.Errorf("init telemetry: %w", err)
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTelemetry)
			defer cancel()
			if err := shutdown(flushCtx); err != nil {
				logger.Warn("telemetry shutdown failed", slog.Any("error", err))
			}
		}()
	}

	db, err := openDatabase(cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := applyGenesis(db, genesisPath, logger); err != nil {
		return err
	}

	opts := core.Options{
		MinimumBalance:   cfg.Escrow.NativeMinimumBalance,
		Pauses:           cfg.Pauses,
		NotifyReputation: cfg.Escrow.NotifyReputation,
		Logger:           logger,
		Quota: common.Quota{
			MaxRequestsPerEpoch: cfg.Escrow.Quota.MaxRequestsPerEpoch,
			MaxValuePerEpoch:    cfg.Escrow.Quota.MaxValuePerEpoch,
			EpochSeconds:        cfg.Escrow.Quota.EpochSeconds,
		},
	}
	if programID := strings.TrimSpace(cfg.Escrow.ProgramID); programID != "" {
		if opts.ProgramID, err = crypto.ParseKey(programID); err != nil {
			return fmt.Errorf("escrow.program_id: %w", err)
		}
	}

	var index *indexer.Store
	if path := strings.TrimSpace(cfg.IndexerPath); path != "" {
		if index, err = indexer.Open(path); err != nil {
			return fmt.Errorf("open indexer: %w", err)
		}
		defer index.Close()
		opts.Index = index
	}

	node, err := core.NewNode(db, opts)
	if err != nil {
		return fmt.Errorf("create node: %w", err)
	}
	if index != nil {
		count, err := node.RebuildIndex(ctx)
		if err != nil {
			return fmt.Errorf("rebuild index: %w", err)
		}
		logger.Info("escrow index rebuilt", slog.Int("escrows", count))
	}

	token := cfg.RPCToken()
	if token == "" {
		logger.Warn("admin RPC methods disabled; no bearer token configured", slog.String("env", cfg.RPC.TokenEnv))
	}
	server := rpc.NewServer(node, rpc.ServerConfig{
		AuthToken:         token,
		RateLimit:         cfg.RPC.RateLimit,
		RateBurst:         cfg.RPC.RateBurst,
		ReadHeaderTimeout: seconds(cfg.RPC.ReadHeaderTimeout),
		ReadTimeout:       seconds(cfg.RPC.ReadTimeout),
		WriteTimeout:      seconds(cfg.RPC.WriteTimeout),
		IdleTimeout:       seconds(cfg.RPC.IdleTimeout),
		AllowedOrigins:    cfg.RPC.AllowedOrigins,
		TrustedProxies:    cfg.RPC.TrustedProxies,
		Logger:            logger,
	})
	logger.Info("escrow host ready",
		slog.String("program_id", crypto.FromKey(node.ProgramID()).String()),
		slog.String("backend", cfg.DBBackend))
	return server.Serve(ctx, cfg.RPC.Address)
}

func openDatabase(cfg *config.Config) (storage.Database, error) {
	switch cfg.DBBackend {
	case config.BackendMemory:
		return storage.NewMemDB(), nil
	case config.BackendBolt:
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, err
		}
		return storage.NewBoltDB(filepath.Join(cfg.DataDir, boltFileName), nil)
	default:
		return storage.NewLevelDB(cfg.DataDir)
	}
}

func applyGenesis(db storage.Database, path string, logger *slog.Logger) error {
	applied, err := genesis.Applied(db)
	if err != nil {
		return fmt.Errorf("check genesis: %w", err)
	}
	if applied {
		if path != "" {
			logger.Info("genesis already applied; ignoring spec", slog.String("path", path))
		}
		return nil
	}
	if path == "" {
		logger.Warn("starting without genesis spec; state is empty")
		return nil
	}
	spec, err := genesis.LoadGenesisSpec(path)
	if err != nil {
		return fmt.Errorf("load genesis spec: %w", err)
	}
	result, err := genesis.Apply(spec, db)
	if err != nil && !errors.Is(err, genesis.ErrAlreadyApplied) {
		return fmt.Errorf("apply genesis: %w", err)
	}
	if result != nil {
		logger.Info("genesis applied",
			slog.Int("marketplaces", len(result.Marketplaces)),
			slog.Int("products", len(result.Products)))
	}
	return nil
}

func resolveGenesisPath(flagValue, configValue string) string {
	if v := strings.TrimSpace(flagValue); v != "" {
		return v
	}
	if v := strings.TrimSpace(os.Getenv(genesisPathEnv)); v != "" {
		return v
	}
	return strings.TrimSpace(configValue)
}

func printOperator(cfg *config.Config) error {
	source := passphrase.NewSource(operatorPassEnv, "Enter operator keystore passphrase: ")
	if _, err := os.Stat(cfg.KeystorePath); os.IsNotExist(err) {
		source.WithConfirm()
	}
	pass, err := source.Get()
	if err != nil {
		return err
	}
	path, err := cfg.EnsureKeystore(pass)
	if err != nil {
		return err
	}
	key, err := crypto.LoadFromKeystore(path, pass)
	if err != nil {
		return err
	}
	fmt.Println(key.PubKey().Address().String())
	return nil
}

func seconds(v int) time.Duration { return time.Duration(v) * time.Second }
