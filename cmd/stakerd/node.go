package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"rangestaker/config"
	"rangestaker/core/events"
	"rangestaker/core/state"
	"rangestaker/indexer"
	"rangestaker/native/bank"
	"rangestaker/native/pool"
	"rangestaker/native/staker"
	"rangestaker/observability/metrics"
	"rangestaker/rpc"
	"rangestaker/storage"
)

// node owns every long-lived component of the daemon.
type node struct {
	db       storage.Database
	manager  *state.Manager
	ledger   *bank.Ledger
	registry *pool.Registry
	engine   *staker.Engine
	journal  *indexer.Journal
	server   *rpc.Server
}

func buildNode(cfg *config.Config, logger *slog.Logger) (n *node, err error) {
	if cfg.DBBackend != config.BackendMemory {
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	db, err := storage.Open(cfg.DBBackend, cfg.DBPath())
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.DBBackend, err)
	}
	n = &node{db: db}
	defer func() {
		if err != nil {
			n.close()
		}
	}()

	n.manager = state.NewManager(db)
	engineAddr := cfg.Staker.Engine()
	n.ledger = bank.NewLedger(n.manager, engineAddr)
	n.registry = pool.NewRegistry(n.manager)

	n.journal, err = indexer.Open(cfg.Indexer.Driver, cfg.Indexer.DSN)
	if err != nil {
		return nil, err
	}
	n.journal.SetLogger(logger)

	n.engine = staker.NewEngine(engineAddr)
	n.engine.SetState(n.manager)
	n.engine.SetOracle(n.registry)
	n.engine.SetCustody(n.registry)
	n.engine.SetLedger(n.ledger)
	n.engine.SetEmitter(events.Multi{n.journal, metrics.Staker().EventEmitter()})
	params, err := n.engine.InitParams(staker.Params{
		Owner:                     cfg.Staker.OwnerAddress(),
		MaxIncentiveStartLeadTime: cfg.Staker.MaxIncentiveStartLeadTimeSecs,
		MaxIncentiveDuration:      cfg.Staker.MaxIncentiveDurationSecs,
	})
	if err != nil {
		return nil, fmt.Errorf("init staker params: %w", err)
	}
	n.registry.RegisterReceiver(engineAddr, n.engine)
	logger.Info("staker engine ready",
		slog.String("engine", engineAddr.Hex()),
		slog.String("owner", params.Owner.Hex()),
		slog.Uint64("maxIncentiveDuration", params.MaxIncentiveDuration))

	if cfg.Dev.Enabled && strings.TrimSpace(cfg.Dev.PoolSeedFile) != "" {
		seed, err := pool.LoadSeed(cfg.Dev.PoolSeedFile)
		if err != nil {
			return nil, err
		}
		minted, err := seed.Apply(n.registry)
		if err != nil {
			return nil, fmt.Errorf("apply pool seed: %w", err)
		}
		logger.Info("pool seed applied", slog.Int("pools", len(seed.Pools)), slog.Int("positionsMinted", len(minted)))
	}

	secret := strings.TrimSpace(os.Getenv(cfg.RPC.JWTSecretEnv))
	if secret == "" {
		return nil, fmt.Errorf("jwt secret env %s is empty", cfg.RPC.JWTSecretEnv)
	}
	n.server, err = rpc.NewServer(rpc.Backend{
		Engine:  n.engine,
		Pools:   n.registry,
		Ledger:  n.ledger,
		Journal: n.journal,
	}, rpc.ServerConfig{
		JWTSecret:          secret,
		JWTIssuer:          cfg.RPC.JWTIssuer,
		MutationsPerMinute: float64(cfg.RPC.MutationsPerMinute),
		MutationBurst:      int(cfg.RPC.MutationBurst),
		DevEnabled:         cfg.Dev.Enabled,
	}, logger)
	if err != nil {
		return nil, err
	}
	return n, nil
}

func (n *node) close() error {
	var errs []error
	if n.journal != nil {
		errs = append(errs, n.journal.Close())
	}
	if n.manager != nil {
		n.manager.Discard()
	}
	if n.db != nil {
		errs = append(errs, n.db.Close())
	}
	return errors.Join(errs...)
}
