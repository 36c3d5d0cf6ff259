// Copyright (c) 2022 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package cpuminer

import (
	"testing"
	"time"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/xpchain/xpcd/node/chaindata"
	"gitlab.com/xpchain/xpcd/node/chainstore"
	"gitlab.com/xpchain/xpcd/node/mempool"
	"gitlab.com/xpchain/xpcd/node/mining"
	"gitlab.com/xpchain/xpcd/types/chaincfg"
)

func newTestMiner(t *testing.T, switchHeight int32) (*CPUMiner, *chainstore.Store) {
	params := chaincfg.RegressionNetParams
	params.SwitchHeight = switchHeight

	store, err := chainstore.OpenMem(chainstore.Config{
		ChainParams: &params,
		TimeSource:  blockchain.NewMedianTime(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	pool := mempool.New(mempool.Config{})
	store.Subscribe(pool.ProcessBlock)

	key, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	addr, err := btcutil.NewAddressPubKeyHash(
		btcutil.Hash160(key.PubKey().SerializeCompressed()), params.AddressParams)
	require.NoError(t, err)

	miner := New(Config{
		ChainParams: &params,
		Assembler: mining.NewBlockAssembler(mining.Config{
			ChainParams: &params,
			Chain:       store,
			TxSource:    pool,
			Options:     mining.DefaultOptions(&params),
		}),
		MiningAddrs:  []btcutil.Address{addr},
		ProcessBlock: store.ProcessBlock,
	})
	return miner, store
}

func TestGenerateNBlocks(t *testing.T) {
	miner, store := newTestMiner(t, 100)

	hashes, err := miner.GenerateNBlocks(3)
	require.NoError(t, err)
	require.Len(t, hashes, 3)
	assert.False(t, miner.IsMining())

	best := store.BestSnapshot()
	assert.Equal(t, int32(3), best.Height)
	assert.Equal(t, *hashes[2], best.Hash)

	for i, hash := range hashes {
		header, height, err := store.FetchHeader(hash)
		require.NoError(t, err)
		assert.Equal(t, int32(i+1), height)
		assert.NotZero(t, header.Nonce)
		assert.NoError(t, chaindata.CheckProofOfWork(header, miner.cfg.ChainParams))
	}
}

func TestGenerateNBlocksStopsAtSwitch(t *testing.T) {
	miner, store := newTestMiner(t, 2)

	hashes, err := miner.GenerateNBlocks(5)
	assert.ErrorIs(t, err, ErrProofOfStakeHeight)
	assert.Len(t, hashes, 2)
	assert.Equal(t, int32(2), store.BestSnapshot().Height)
}

func TestStartStop(t *testing.T) {
	miner, store := newTestMiner(t, 2)

	miner.Start()
	assert.True(t, miner.IsMining())

	_, err := miner.GenerateNBlocks(1)
	assert.ErrorIs(t, err, ErrAlreadyMining)

	require.Eventually(t, func() bool {
		return store.BestSnapshot().Height == 2
	}, 10*time.Second, 10*time.Millisecond)

	miner.Stop()
	assert.False(t, miner.IsMining())
	assert.Zero(t, miner.HashesPerSecond())
	assert.Equal(t, int32(2), store.BestSnapshot().Height)
}
