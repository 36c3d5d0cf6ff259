// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package node

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gitlab.com/xpchain/xpcd/config"
	"gitlab.com/xpchain/xpcd/node/chainstore"
	"gitlab.com/xpchain/xpcd/node/mempool"
	"gitlab.com/xpchain/xpcd/node/mining"
	"gitlab.com/xpchain/xpcd/node/mining/cpuminer"
	"gitlab.com/xpchain/xpcd/node/mining/minter"
	"gitlab.com/xpchain/xpcd/node/wallet"
	"gitlab.com/xpchain/xpcd/types/chaincfg"
)

const (
	// chainDbName is the directory of the chain index under the data
	// directory.
	chainDbName = "chain"

	sigCacheMaxSize = 100000
)

type chainController struct {
	logger zerolog.Logger
	cfg    *config.Config
	params *chaincfg.Params

	// controller runtime
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	store     *chainstore.Store
	txPool    *mempool.TxPool
	assembler *mining.BlockAssembler
	// -------------------------------

	miner   *cpuminer.CPUMiner
	keyring *wallet.Keyring
	minter  *minter.Minter
	metrics IMetricManager
}

// Controller returns the controller running a node with logger.
func Controller(logger zerolog.Logger) *chainController {
	return &chainController{logger: logger}
}

// Run opens the chain, starts the enabled block producers and blocks until
// ctx is done.
func (chainCtl *chainController) Run(ctx context.Context, cfg *config.Config) error {
	params, err := cfg.ChainParams()
	if err != nil {
		return err
	}
	chainCtl.cfg = cfg
	chainCtl.params = params
	chainCtl.ctx, chainCtl.cancel = context.WithCancel(ctx)
	defer chainCtl.cancel()

	if err := chainCtl.openChain(filepath.Join(cfg.DataDir, chainDbName)); err != nil {
		chainCtl.logger.Error().Err(err).Msg("Can't open chain")
		return err
	}
	defer chainCtl.closeChain()

	if cfg.Metrics.Enable {
		chainCtl.runMetricsServer(chainCtl.ctx, cfg)
	}

	if cfg.Mining.Generate {
		if err := chainCtl.InitCPUMiner(); err != nil {
			chainCtl.logger.Error().Err(err).Msg("Can't init CPU miner")
			return err
		}
		chainCtl.wg.Add(1)
		go func() {
			defer chainCtl.wg.Done()
			chainCtl.miner.Run(chainCtl.ctx)
		}()
	}

	if cfg.Staking.Enable {
		if err := chainCtl.InitMinter(); err != nil {
			chainCtl.logger.Error().Err(err).Msg("Can't init stake minter")
			return err
		}
		chainCtl.wg.Add(1)
		go func() {
			defer chainCtl.wg.Done()
			chainCtl.minter.Run(chainCtl.ctx)
		}()
	}

	<-chainCtl.ctx.Done()
	chainCtl.wg.Wait()
	return nil
}

func (chainCtl *chainController) openChain(dataDir string) error {
	store, err := chainstore.Open(chainstore.Config{
		DataDir:     dataDir,
		ChainParams: chainCtl.params,
		TimeSource:  blockchain.NewMedianTime(),
		KernelCache: chainCtl.cfg.Staking.KernelCache,
		SigCache:    txscript.NewSigCache(sigCacheMaxSize),
	})
	if err != nil {
		return err
	}
	chainCtl.store = store

	chainCtl.txPool = mempool.New(mempool.Config{TimeSource: store.AdjustedTime})
	store.Subscribe(chainCtl.txPool.ProcessBlock)

	chainCtl.assembler = mining.NewBlockAssembler(mining.Config{
		ChainParams: chainCtl.params,
		Chain:       store,
		TxSource:    chainCtl.txPool,
		Options:     chainCtl.cfg.Mining.Options,
	})

	best := store.BestSnapshot()
	chainCtl.logger.Info().
		Str("net", chainCtl.params.Name).
		Int32("height", best.Height).
		Stringer("hash", &best.Hash).
		Msg("Chain loaded")
	return nil
}

func (chainCtl *chainController) closeChain() {
	if err := chainCtl.store.Close(); err != nil {
		chainCtl.logger.Error().Err(err).Msg("Can't close chain")
	}
}

// InitCPUMiner creates the proof-of-work miner paying to the configured
// mining addresses.
func (chainCtl *chainController) InitCPUMiner() error {
	addrs, err := chainCtl.cfg.Mining.MiningAddresses(chainCtl.params)
	if err != nil {
		return err
	}
	if len(addrs) == 0 {
		return errors.New("generate requires at least one mining address")
	}

	chainCtl.miner = cpuminer.New(cpuminer.Config{
		ChainParams:  chainCtl.params,
		Assembler:    chainCtl.assembler,
		MiningAddrs:  addrs,
		ProcessBlock: chainCtl.store.ProcessBlock,
	})
	if chainCtl.cfg.Mining.NumWorkers >= 0 {
		chainCtl.miner.SetNumWorkers(chainCtl.cfg.Mining.NumWorkers)
	}
	return nil
}

// InitMinter loads the staking keys, scans the chain for their coins and
// creates the stake minter.
func (chainCtl *chainController) InitMinter() error {
	staking := &chainCtl.cfg.Staking
	if len(staking.PrivateKeys) == 0 {
		return errors.New("staking requires at least one private key")
	}

	keyring := wallet.New(chainCtl.params)
	for i, key := range staking.PrivateKeys {
		if _, err := importKey(keyring, key); err != nil {
			return errors.Wrapf(err, "staking key #%d", i)
		}
	}

	distribution, err := staking.Distribution(chainCtl.params)
	if err != nil {
		return err
	}
	if err := keyring.SetRewardDistribution(distribution); err != nil {
		return err
	}

	if err := keyring.Rescan(chainCtl.store, chainCtl.store.BestSnapshot().Height); err != nil {
		return errors.Wrap(err, "unable to rescan chain")
	}
	chainCtl.store.Subscribe(func(block *btcutil.Block) {
		keyring.ConnectBlock(block)
	})

	chainCtl.keyring = keyring
	chainCtl.minter = minter.New(minter.Config{
		ChainParams:  chainCtl.params,
		Assembler:    chainCtl.assembler,
		Wallet:       keyring,
		ProcessBlock: chainCtl.store.ProcessBlock,
		CoinStakeFee: staking.CoinStakeFee,
	})
	return nil
}

// importKey accepts WIF and hex encoded private keys.
func importKey(keyring *wallet.Keyring, key string) (*wallet.KeyData, error) {
	key = strings.TrimSpace(key)
	if kd, err := keyring.ImportWIF(key); err == nil {
		return kd, nil
	}
	return keyring.ImportKey(key)
}

// NetName is the name of the network the node runs on.
func (chainCtl *chainController) NetName() string {
	return chainCtl.params.Name
}

// Stats reports the state of the chain and of the block producers.
func (chainCtl *chainController) Stats() map[string]float64 {
	snapshot := chainCtl.store.BestSnapshot()
	stats := map[string]float64{
		"height":             float64(snapshot.Height),
		"size":               float64(snapshot.BlockSize),
		"weight":             float64(snapshot.BlockWeight),
		"transactions":       float64(snapshot.NumTxns),
		"total_transactions": float64(snapshot.TotalTxns),
		"median_time":        float64(snapshot.MedianTime.Unix()),
		"bits":               float64(snapshot.Bits),
		"mempool_size":       float64(chainCtl.txPool.Count()),
		"proof_of_stake":     0,
	}
	if chainCtl.params.IsPoSHeight(snapshot.Height) {
		stats["proof_of_stake"] = 1
	}
	if chainCtl.miner != nil {
		stats["hashes_per_second"] = chainCtl.miner.HashesPerSecond()
	}
	if chainCtl.minter != nil {
		stats["minted_blocks"] = float64(chainCtl.minter.Minted())
		stats["stake_coins"] = float64(len(chainCtl.keyring.Coins()))
	}
	return stats
}

func (chainCtl *chainController) runMetricsServer(ctx context.Context, cfg *config.Config) {
	chainCtl.logger.Info().Msg("Metrics Enabled")
	interval := cfg.Metrics.Interval
	if interval == 0 {
		interval = 5
	}
	port := cfg.Metrics.Port
	if port == 0 {
		port = 2112
	}

	chainCtl.metrics = Metrics(ctx, time.Duration(interval)*time.Second, chainCtl.logger)
	chainCtl.metrics.Add(MetricsOfChain(chainCtl, chainCtl.metrics.Registry(), chainCtl.logger))

	chainCtl.wg.Add(1)
	go func() {
		defer chainCtl.wg.Done()
		if err := chainCtl.metrics.Listen(ctx, "/metrics", port); err != nil {
			chainCtl.logger.Error().Err(err).Msg("listen metrics server")
		}
	}()
}
