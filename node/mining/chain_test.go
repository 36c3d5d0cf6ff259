// Copyright (c) 2022 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mining

import (
	"sync"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
	"gitlab.com/xpchain/xpcd/node/chaindata"
	"gitlab.com/xpchain/xpcd/types/chaincfg"
)

// testChain is a ChainView over a straight list of headers.
type testChain struct {
	headers  []*wire.BlockHeader
	txs      map[chainhash.Hash]*wire.MsgTx
	locs     map[chainhash.Hash]*chaindata.TxLocation
	now      time.Time
	lock     sync.RWMutex
	checkErr error
}

// newTestChain returns a chain of n+1 blocks spaced by one minute, tip at
// height n.
func newTestChain(params *chaincfg.Params, n int32) *testChain {
	c := &testChain{
		txs:  make(map[chainhash.Hash]*wire.MsgTx),
		locs: make(map[chainhash.Hash]*chaindata.TxLocation),
	}
	start := params.GenesisBlock.Header.Timestamp
	c.headers = append(c.headers, &params.GenesisBlock.Header)
	for i := int32(1); i <= n; i++ {
		prev := c.headers[i-1]
		c.headers = append(c.headers, &wire.BlockHeader{
			Version:   4,
			PrevBlock: prev.BlockHash(),
			Timestamp: start.Add(time.Duration(i) * time.Minute),
			Bits:      params.PowLimitBits,
			Nonce:     uint32(i),
		})
	}
	c.now = c.headers[n].Timestamp.Add(time.Minute)
	return c
}

func (c *testChain) BestSnapshot() *chaindata.BestState {
	height := int32(len(c.headers) - 1)
	tip := c.headers[height]
	return chaindata.NewBestState(tip, height, 0, 0, 1, uint64(height+1), c.medianTime(height))
}

func (c *testChain) medianTime(height int32) time.Time {
	// the headers are ordered, the median is the middle one of the window.
	first := height - chaindata.MedianTimeBlocks + 1
	if first < 0 {
		first = 0
	}
	return c.headers[(first+height)/2].Timestamp
}

func (c *testChain) HeaderByHeight(height int32) (*wire.BlockHeader, error) {
	if height < 0 || int(height) >= len(c.headers) {
		return nil, chaindata.NewRuleError(chaindata.ErrBlockNotFound, "no block")
	}
	return c.headers[height], nil
}

func (c *testChain) FetchHeader(hash *chainhash.Hash) (*wire.BlockHeader, int32, error) {
	for i, h := range c.headers {
		if h.BlockHash() == *hash {
			return h, int32(i), nil
		}
	}
	return nil, 0, chaindata.NewRuleError(chaindata.ErrBlockNotFound, "no block")
}

func (c *testChain) FetchTransaction(hash *chainhash.Hash) (*wire.MsgTx, *chaindata.TxLocation, error) {
	tx, ok := c.txs[*hash]
	if !ok {
		return nil, nil, chaindata.NewRuleError(chaindata.ErrPrevOutNotFound, "no transaction")
	}
	return tx, c.locs[*hash], nil
}

func (c *testChain) AdjustedTime() time.Time { return c.now }
func (c *testChain) IsCurrent() bool         { return true }
func (c *testChain) ChainLock() sync.Locker  { return c.lock.RLocker() }

func (c *testChain) CheckConnectBlockTemplate(*btcutil.Block) error { return c.checkErr }

// confirm records tx as mined in the block at height.
func (c *testChain) confirm(tx *wire.MsgTx, height int32) {
	hash := tx.TxHash()
	c.txs[hash] = tx
	c.locs[hash] = &chaindata.TxLocation{
		BlockHash:   c.headers[height].BlockHash(),
		BlockHeight: height,
		BlockTime:   uint32(c.headers[height].Timestamp.Unix()),
		TxOffset:    81,
		TxLen:       uint32(tx.SerializeSize()),
	}
}

// testWallet signs with a single key.
type testWallet struct {
	key          *btcec.PrivateKey
	distribution RewardDistribution
	fail         error
}

func newTestWallet(t *testing.T) *testWallet {
	key, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	return &testWallet{key: key}
}

func (w *testWallet) SignHash(hash chainhash.Hash, pubKeyHash []byte) ([]byte, *btcec.PublicKey, error) {
	if w.fail != nil {
		return nil, nil, w.fail
	}
	if string(pubKeyHash) != string(btcutil.Hash160(w.key.PubKey().SerializeCompressed())) {
		return nil, nil, ErrSignerUnavailable
	}
	return ecdsa.Sign(w.key, hash[:]).Serialize(), w.key.PubKey(), nil
}

func (w *testWallet) RewardDistribution() RewardDistribution { return w.distribution }

func (w *testWallet) address(t *testing.T) *btcutil.AddressPubKeyHash {
	addr, err := btcutil.NewAddressPubKeyHash(btcutil.Hash160(w.key.PubKey().SerializeCompressed()),
		chaincfg.RegressionNetParams.AddressParams)
	require.NoError(t, err)
	return addr
}
