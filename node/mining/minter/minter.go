/*
 * Copyright (c) 2022 The JaxNetwork developers
 * Use of this source code is governed by an ISC
 * license that can be found in the LICENSE file.
 */

// Package minter runs the proof-of-stake loop: once per interval it searches
// the wallet coins for a kernel hitting the stake target and turns the first
// hit into a signed block.
package minter

import (
	"context"
	"sync"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/pkg/errors"
	"gitlab.com/xpchain/xpcd/node/chaindata"
	"gitlab.com/xpchain/xpcd/node/kernel"
	"gitlab.com/xpchain/xpcd/node/mining"
	"gitlab.com/xpchain/xpcd/node/wallet"
	"gitlab.com/xpchain/xpcd/types/chaincfg"
	"gitlab.com/xpchain/xpcd/types/pow"
)

const defaultInterval = time.Second

var (
	// ErrWalletLocked is returned while the wallet can't sign.
	ErrWalletLocked = errors.New("wallet is locked")

	// ErrNotCurrent is returned while the chain is still syncing.
	ErrNotCurrent = errors.New("chain is not current")

	// ErrProofOfWorkHeight is returned below the switch height.
	ErrProofOfWorkHeight = errors.New("next block height requires proof of work")

	// ErrNoKernel is returned when no wallet coin meets the stake target.
	ErrNoKernel = errors.New("no kernel found")
)

// StakeWallet is the wallet side of minting: the coins to stake and the
// keys to sign coinstakes and blocks with.
type StakeWallet interface {
	mining.Wallet

	IsLocked() bool
	Coins() []wallet.StakeCoin
	CreateCoinStake(coin wallet.StakeCoin, fee int64) (*wire.MsgTx, error)
	AddCoin(coin wallet.StakeCoin) error
	RemoveCoin(op wire.OutPoint)
}

// Config is a descriptor containing the minter configuration.
type Config struct {
	ChainParams *chaincfg.Params
	Assembler   *mining.BlockAssembler
	Wallet      StakeWallet

	// ProcessBlock defines the function to call with minted blocks.
	ProcessBlock func(*btcutil.Block) error

	// CoinStakeFee is paid by every coinstake the minter creates.
	CoinStakeFee int64

	// Interval between two kernel searches, one second by default.
	Interval time.Duration
}

// Minter searches for stake kernels.
type Minter struct {
	cfg Config

	mtx    sync.Mutex
	minted int
}

// New returns a minter for the given configuration.
func New(cfg Config) *Minter {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	return &Minter{cfg: cfg}
}

// Minted returns the number of blocks minted so far.
func (m *Minter) Minted() int {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	return m.minted
}

// Run mints until ctx is cancelled.
func (m *Minter) Run(ctx context.Context) {
	log.Info().Dur("interval", m.cfg.Interval).Msg("Stake minter started")
	defer log.Info().Msg("Stake minter stopped")

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		hash, err := m.MintOnce()
		switch {
		case err == nil:
			log.Info().Stringer("hash", hash).Msg("Minted proof-of-stake block")
		case errors.Is(err, ErrNoKernel), errors.Is(err, ErrProofOfWorkHeight),
			errors.Is(err, ErrWalletLocked), errors.Is(err, ErrNotCurrent):
			log.Trace().Err(err).Msg("Nothing to mint")
		default:
			log.Warn().Err(err).Msg("Stake minting failed")
		}
	}
}

// MintOnce makes one pass over the wallet coins. The first coin whose kernel
// hits the target is turned into a block on the current tip, which is
// processed and returned.
func (m *Minter) MintOnce() (*chainhash.Hash, error) {
	params := m.cfg.ChainParams
	chain := m.cfg.Assembler.Chain()

	if m.cfg.Wallet.IsLocked() {
		return nil, ErrWalletLocked
	}
	if !chain.IsCurrent() {
		return nil, ErrNotCurrent
	}

	best := chain.BestSnapshot()
	if !params.IsPoSHeight(best.Height + 1) {
		return nil, ErrProofOfWorkHeight
	}

	bits, err := m.nextBits(chain, best)
	if err != nil {
		return nil, err
	}
	claimTime := uint32(mining.MedianAdjustedTime(best, chain.AdjustedTime()).Unix())

	for _, coin := range m.cfg.Wallet.Coins() {
		_, loc, err := chain.FetchTransaction(&coin.OutPoint.Hash)
		if err != nil {
			log.Trace().Err(err).Stringer("outpoint", coin.OutPoint).Msg("Coin is not confirmed")
			continue
		}

		proof, ok := kernel.CheckStakeKernelHash(params, bits, loc.BlockTime, loc.TxOffset,
			coin.Value, coin.OutPoint.Index, claimTime)
		if !ok {
			continue
		}
		log.Debug().Stringer("outpoint", coin.OutPoint).Stringer("kernel", proof.Hash).
			Msg("Kernel found")

		hash, err := m.mint(coin, best, bits, claimTime)
		if errors.Is(err, mining.ErrStaleTip) {
			return nil, err
		}
		if err != nil {
			log.Warn().Err(err).Stringer("outpoint", coin.OutPoint).Msg("Unable to mint with kernel")
			continue
		}
		return hash, nil
	}

	return nil, ErrNoKernel
}

func (m *Minter) nextBits(chain chaindata.ChainView, best *chaindata.BestState) (uint32, error) {
	last, err := chain.HeaderByHeight(best.Height)
	if err != nil {
		return 0, err
	}

	var prev *wire.BlockHeader
	if best.Height > 0 {
		if prev, err = chain.HeaderByHeight(best.Height - 1); err != nil {
			return 0, err
		}
	}
	return pow.CalcNextStakeBits(m.cfg.ChainParams, last, prev), nil
}

// mint builds, submits and books the block staking coin.
func (m *Minter) mint(coin wallet.StakeCoin, best *chaindata.BestState, bits, claimTime uint32) (*chainhash.Hash, error) {
	coinstake, err := m.cfg.Wallet.CreateCoinStake(coin, m.cfg.CoinStakeFee)
	if err != nil {
		return nil, err
	}

	template, err := m.cfg.Assembler.CreateNewBlock(mining.BlockRequest{
		Wallet:       m.cfg.Wallet,
		ClaimTime:    claimTime,
		Bits:         bits,
		CoinStake:    coinstake,
		CoinStakeFee: m.cfg.CoinStakeFee,
		ExpectedTip:  &best.Hash,
	})
	if err != nil {
		return nil, err
	}

	block := btcutil.NewBlock(template.Block)
	if err := m.cfg.ProcessBlock(block); err != nil {
		return nil, errors.Wrap(err, "minted block rejected")
	}

	m.cfg.Wallet.RemoveCoin(coin.OutPoint)
	restake := wallet.StakeCoin{
		OutPoint: wire.OutPoint{Hash: coinstake.TxHash(), Index: 0},
		Value:    coinstake.TxOut[0].Value,
		PkScript: coinstake.TxOut[0].PkScript,
	}
	if err := m.cfg.Wallet.AddCoin(restake); err != nil {
		log.Warn().Err(err).Stringer("outpoint", restake.OutPoint).Msg("Unable to track coinstake output")
	}

	m.mtx.Lock()
	m.minted++
	m.mtx.Unlock()

	return block.Hash(), nil
}
