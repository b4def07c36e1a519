// wesenditd wires the token ecosystem together: configuration, SQLite
// persistence, the fee manager, the staking pool, cron-driven pool
// updates and snapshots, and the read-only query server.
package main

import (
	"context"
	"errors"
	"flag"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/wesenditmedia/contracts-sub001/access_control"
	"github.com/wesenditmedia/contracts-sub001/config"
	"github.com/wesenditmedia/contracts-sub001/dynamic_fee_manager"
	"github.com/wesenditmedia/contracts-sub001/queryapi"
	"github.com/wesenditmedia/contracts-sub001/staking_pool"
	"github.com/wesenditmedia/contracts-sub001/store"
	"github.com/wesenditmedia/contracts-sub001/token"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(*configPath, logger); err != nil {
		logger.Fatal("wesenditd exited", zap.Error(err))
	}
}

func run(configPath string, logger *zap.Logger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	st, err := store.Open(cfg.Database.SQLitePath, store.WithLogger(logger))
	if err != nil {
		return err
	}
	defer st.Close()

	owner := config.Matcher(cfg.Token.Owner)
	acl := access_control.New(owner)

	tok, err := token.NewToken(
		cfg.Token.Name, cfg.Token.Symbol,
		config.Matcher(cfg.Token.Address), owner,
		config.Amount(cfg.Token.InitialSupply), acl,
		token.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	if cfg.Token.MinTxAmount != "" {
		if err := tok.SetMinTxAmount(owner, config.Amount(cfg.Token.MinTxAmount)); err != nil {
			return err
		}
	}

	manager := dynamic_fee_manager.NewManager(
		config.Matcher(cfg.FeeManager.Address), tok.Address(), tok, acl,
		dynamic_fee_manager.WithLogger(logger),
		dynamic_fee_manager.WithRecorder(st),
		dynamic_fee_manager.WithStableToken(config.Matcher(cfg.FeeManager.StableToken)),
		dynamic_fee_manager.WithWrappedNative(config.Matcher(cfg.FeeManager.WrappedNative)),
	)
	if err := acl.GrantRole(owner, access_control.CallReflectFeesRole, tok.Address()); err != nil {
		return err
	}
	if err := tok.SetFeeManager(owner, manager); err != nil {
		return err
	}

	poolOpts := []staking_pool.Option{
		staking_pool.WithLogger(logger),
		staking_pool.WithRecorder(st),
	}
	if cfg.Staking.ShareCapacity != "" {
		poolOpts = append(poolOpts, staking_pool.WithShareCapacity(config.Amount(cfg.Staking.ShareCapacity)))
	}
	if cfg.Staking.MaxPoolBalance != "" {
		poolOpts = append(poolOpts, staking_pool.WithMaxPoolBalance(config.Amount(cfg.Staking.MaxPoolBalance)))
	}
	pool := staking_pool.NewPool(config.Matcher(cfg.Staking.Address), tok, acl, poolOpts...)

	if err := restore(st, manager, pool, cfg, owner, logger); err != nil {
		return err
	}

	scheduler := cron.New(cron.WithSeconds())
	if _, err := scheduler.AddFunc(cfg.Schedule.PoolUpdateCron, func() {
		if err := pool.UpdatePool(); err != nil {
			logger.Error("pool update", zap.Error(err))
		}
	}); err != nil {
		return err
	}
	if _, err := scheduler.AddFunc(cfg.Schedule.SnapshotCron, func() {
		snapshot(st, manager, pool, logger)
	}); err != nil {
		return err
	}
	scheduler.Start()
	defer scheduler.Stop()

	server := &http.Server{
		Addr:    cfg.Query.ListenAddr,
		Handler: queryapi.NewServer(manager, pool, logger),
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("query server listening", zap.String("addr", cfg.Query.ListenAddr))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		logger.Info("shutting down", zap.Stringer("signal", sig))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Warn("query server shutdown", zap.Error(err))
	}
	snapshot(st, manager, pool, logger)
	return nil
}

// restore loads the persisted state; a fresh database is seeded with the
// configured fee entries instead.
func restore(st *store.Store, manager *dynamic_fee_manager.Manager, pool *staking_pool.Pool, cfg *config.Config, owner common.Address, logger *zap.Logger) error {
	feeState, err := st.LoadFeeState()
	if err != nil {
		return err
	}
	if len(feeState.Entries) > 0 {
		if err := manager.Restore(feeState); err != nil {
			return err
		}
		logger.Info("fee state restored", zap.Int("entries", len(feeState.Entries)))
	} else {
		for _, e := range cfg.FeeManager.Entries {
			_, err := manager.AddFee(owner,
				config.Matcher(e.From), config.Matcher(e.To),
				big.NewInt(e.Percentage), config.Matcher(e.Destination),
				e.DoCallback, e.DoLiquify, e.DoSwapForStable,
				config.Amount(e.SwapOrLiquifyAmount),
			)
			if err != nil {
				return err
			}
		}
		logger.Info("fee entries seeded", zap.Int("entries", len(cfg.FeeManager.Entries)))
	}

	stakingState, err := st.LoadStakingState()
	if err != nil {
		return err
	}
	if stakingState != nil {
		if err := pool.Restore(stakingState); err != nil {
			return err
		}
		logger.Info("staking state restored", zap.Int("positions", len(stakingState.Positions)))
	}
	return nil
}

func snapshot(st *store.Store, manager *dynamic_fee_manager.Manager, pool *staking_pool.Pool, logger *zap.Logger) {
	if err := st.SaveFeeState(manager.Snapshot()); err != nil {
		logger.Error("save fee state", zap.Error(err))
	}
	if err := st.SaveStakingState(pool.Snapshot()); err != nil {
		logger.Error("save staking state", zap.Error(err))
	}
}
