/*
 * Copyright (c) 2022 The JaxNetwork developers
 * Use of this source code is governed by an ISC
 * license that can be found in the LICENSE file.
 */

package kernel

import (
	"sync"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/xpchain/xpcd/node/chaindata"
	"gitlab.com/xpchain/xpcd/types/chaincfg"
)

type fakeChain struct {
	mtx sync.RWMutex
	txs map[chainhash.Hash]*wire.MsgTx
	loc map[chainhash.Hash]*chaindata.TxLocation
	err error
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		txs: make(map[chainhash.Hash]*wire.MsgTx),
		loc: make(map[chainhash.Hash]*chaindata.TxLocation),
	}
}

func (c *fakeChain) BestSnapshot() *chaindata.BestState { return &chaindata.BestState{} }

func (c *fakeChain) HeaderByHeight(int32) (*wire.BlockHeader, error) {
	return nil, chaindata.NewRuleError(chaindata.ErrBlockNotFound, "no headers")
}

func (c *fakeChain) FetchHeader(*chainhash.Hash) (*wire.BlockHeader, int32, error) {
	return nil, 0, chaindata.NewRuleError(chaindata.ErrBlockNotFound, "no headers")
}

func (c *fakeChain) FetchTransaction(hash *chainhash.Hash) (*wire.MsgTx, *chaindata.TxLocation, error) {
	c.mtx.RLock()
	defer c.mtx.RUnlock()
	if c.err != nil {
		return nil, nil, c.err
	}
	tx, ok := c.txs[*hash]
	if !ok {
		return nil, nil, chaindata.NewRuleError(chaindata.ErrPrevOutNotFound, "not found")
	}
	return tx, c.loc[*hash], nil
}

func (c *fakeChain) AdjustedTime() time.Time { return time.Now() }
func (c *fakeChain) IsCurrent() bool         { return true }
func (c *fakeChain) ChainLock() sync.Locker  { return c.mtx.RLocker() }

func (c *fakeChain) CheckConnectBlockTemplate(*btcutil.Block) error { return nil }

func (c *fakeChain) add(hash chainhash.Hash, tx *wire.MsgTx, loc *chaindata.TxLocation) {
	c.mtx.Lock()
	c.txs[hash] = tx
	c.loc[hash] = loc
	c.mtx.Unlock()
}

type stakeFixture struct {
	key       *btcec.PrivateKey
	prevTx    *wire.MsgTx
	coinstake *wire.MsgTx
	loc       *chaindata.TxLocation
}

const fixtureBlockTime = 1540301656

func newStakeFixture(t *testing.T, amount int64) *stakeFixture {
	key, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	addr, err := btcutil.NewAddressPubKeyHash(btcutil.Hash160(key.PubKey().SerializeCompressed()),
		regtest.AddressParams)
	require.NoError(t, err)
	pkScript, err := txscript.PayToAddrScript(addr)
	require.NoError(t, err)

	prevTx := wire.NewMsgTx(1)
	prevTx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&chainhash.Hash{7}, 0), nil, nil))
	prevTx.AddTxOut(wire.NewTxOut(1, []byte{txscript.OP_TRUE}))
	prevTx.AddTxOut(wire.NewTxOut(amount, pkScript))
	prevHash := prevTx.TxHash()

	coinstake := wire.NewMsgTx(1)
	coinstake.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&prevHash, 1), nil, nil))
	coinstake.AddTxOut(wire.NewTxOut(amount, pkScript))
	sigScript, err := txscript.SignatureScript(coinstake, 0, pkScript, txscript.SigHashAll, key, true)
	require.NoError(t, err)
	coinstake.TxIn[0].SignatureScript = sigScript

	return &stakeFixture{
		key:       key,
		prevTx:    prevTx,
		coinstake: coinstake,
		loc: &chaindata.TxLocation{
			BlockHash:   chainhash.Hash{1},
			BlockHeight: 10,
			BlockTime:   fixtureBlockTime,
			TxOffset:    250,
			TxLen:       uint32(prevTx.SerializeSize()),
		},
	}
}

func TestCheckProofOfStake(t *testing.T) {
	amount := int64(1e6 * chaincfg.CoinUnits)
	claim := uint32(fixtureBlockTime + chaincfg.SecondsPerDay)

	t.Run("valid and cached", func(t *testing.T) {
		fx := newStakeFixture(t, amount)
		chain := newFakeChain()
		chain.add(fx.prevTx.TxHash(), fx.prevTx, fx.loc)
		k := New(Config{ChainParams: regtest, Chain: chain})

		proof, err := k.CheckProofOfStake(fx.coinstake, regtest.PowLimitBits, claim)
		require.NoError(t, err)

		expected, ok := CheckStakeKernelHash(regtest, regtest.PowLimitBits, fixtureBlockTime, 250, amount, 1, claim)
		require.True(t, ok)
		assert.Equal(t, expected.Hash, proof.Hash)
		assert.Equal(t, 1, k.Cache().Len())

		// the cached candidate is used even when the chain can no longer
		// be read.
		chain.err = errors.New("disk failure")
		_, err = k.CheckProofOfStake(fx.coinstake, regtest.PowLimitBits, claim)
		assert.NoError(t, err)
	})

	t.Run("unknown previous transaction", func(t *testing.T) {
		fx := newStakeFixture(t, amount)
		k := New(Config{ChainParams: regtest, Chain: newFakeChain()})

		_, err := k.CheckProofOfStake(fx.coinstake, regtest.PowLimitBits, claim)
		require.Error(t, err)
		assert.True(t, chaindata.IsTransient(err))
		assert.True(t, chaindata.IsErrorCode(err, chaindata.ErrPrevOutNotFound))
		assert.Zero(t, k.Cache().Len())
	})

	t.Run("storage failure is not a success", func(t *testing.T) {
		fx := newStakeFixture(t, amount)
		chain := newFakeChain()
		chain.err = errors.New("disk failure")
		k := New(Config{ChainParams: regtest, Chain: chain})

		_, err := k.CheckProofOfStake(fx.coinstake, regtest.PowLimitBits, claim)
		require.Error(t, err)
		assert.True(t, chaindata.IsTransient(err))
		assert.True(t, chaindata.IsErrorCode(err, chaindata.ErrStorage))
	})

	t.Run("bad signature", func(t *testing.T) {
		fx := newStakeFixture(t, amount)
		fx.coinstake.TxIn[0].SignatureScript = []byte{txscript.OP_TRUE}
		chain := newFakeChain()
		chain.add(fx.prevTx.TxHash(), fx.prevTx, fx.loc)
		k := New(Config{ChainParams: regtest, Chain: chain})

		_, err := k.CheckProofOfStake(fx.coinstake, regtest.PowLimitBits, claim)
		assert.True(t, chaindata.IsErrorCode(err, chaindata.ErrScriptVerify))
		assert.True(t, chaindata.IsRejection(err))
	})

	t.Run("txid mismatch", func(t *testing.T) {
		fx := newStakeFixture(t, amount)
		other := fx.prevTx.Copy()
		other.LockTime = 1
		chain := newFakeChain()
		chain.add(fx.prevTx.TxHash(), other, fx.loc)
		k := New(Config{ChainParams: regtest, Chain: chain})

		_, err := k.CheckProofOfStake(fx.coinstake, regtest.PowLimitBits, claim)
		assert.True(t, chaindata.IsErrorCode(err, chaindata.ErrTxIDMismatch))
	})

	t.Run("min age", func(t *testing.T) {
		fx := newStakeFixture(t, amount)
		chain := newFakeChain()
		chain.add(fx.prevTx.TxHash(), fx.prevTx, fx.loc)
		k := New(Config{ChainParams: regtest, Chain: chain})

		_, err := k.CheckProofOfStake(fx.coinstake, regtest.PowLimitBits, fixtureBlockTime+5)
		assert.True(t, chaindata.IsErrorCode(err, chaindata.ErrMinAge))
	})

	t.Run("target miss", func(t *testing.T) {
		fx := newStakeFixture(t, 1)
		chain := newFakeChain()
		chain.add(fx.prevTx.TxHash(), fx.prevTx, fx.loc)
		k := New(Config{ChainParams: regtest, Chain: chain})

		// a target of one can only be met by a zero hash.
		_, err := k.CheckProofOfStake(fx.coinstake, 0x01010000, claim)
		assert.True(t, chaindata.IsErrorCode(err, chaindata.ErrKernelTargetMiss))
	})

	t.Run("two inputs", func(t *testing.T) {
		fx := newStakeFixture(t, amount)
		fx.coinstake.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&chainhash.Hash{2}, 0), nil, nil))
		k := New(Config{ChainParams: regtest, Chain: newFakeChain()})

		_, err := k.CheckProofOfStake(fx.coinstake, regtest.PowLimitBits, claim)
		assert.True(t, chaindata.IsErrorCode(err, chaindata.ErrBadTxShape))
	})
}
