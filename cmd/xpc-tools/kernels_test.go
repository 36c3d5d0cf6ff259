// Copyright (c) 2022 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/xpchain/xpcd/node/chainstore"
	"gitlab.com/xpchain/xpcd/node/mempool"
	"gitlab.com/xpchain/xpcd/node/mining"
	"gitlab.com/xpchain/xpcd/node/mining/cpuminer"
	"gitlab.com/xpchain/xpcd/types/chaincfg"
)

func TestCollectKernels(t *testing.T) {
	params := chaincfg.RegressionNetParams
	store, err := chainstore.OpenMem(chainstore.Config{ChainParams: &params})
	require.NoError(t, err)
	defer store.Close()

	key, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	addr, err := btcutil.NewAddressPubKeyHash(
		btcutil.Hash160(key.PubKey().SerializeCompressed()), params.AddressParams)
	require.NoError(t, err)

	pool := mempool.New(mempool.Config{})
	miner := cpuminer.New(cpuminer.Config{
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
	hashes, err := miner.GenerateNBlocks(3)
	require.NoError(t, err)

	now := time.Now().Add(49 * time.Hour)
	records, err := collectKernels(store, &params, []btcutil.Address{addr}, now)
	require.NoError(t, err)
	require.Len(t, records, 3)

	byTxID := make(map[string]int, len(records))
	for i, record := range records {
		byTxID[record.TxID] = i
	}
	for i, hash := range hashes {
		block, err := store.BlockByHeight(int32(i + 1))
		require.NoError(t, err)
		require.Equal(t, *hash, *block.Hash())

		idx, ok := byTxID[block.Transactions()[0].Hash().String()]
		require.True(t, ok)
		record := records[idx]
		assert.Equal(t, uint32(0), record.Index)
		assert.Equal(t, addr.EncodeAddress(), record.Address)
		assert.Equal(t, params.CalcBlockSubsidy(int32(i+1)), record.Value)
		assert.Equal(t, int64(2), record.Age)
		assert.NotZero(t, record.CoinDay)
		assert.Greater(t, record.ProbToMintInDay, 0.0)
	}

	other, err := btcutil.NewAddressPubKeyHash(make([]byte, 20), params.AddressParams)
	require.NoError(t, err)
	none, err := collectKernels(store, &params, []btcutil.Address{other}, now)
	require.NoError(t, err)
	assert.Empty(t, none)

	var buf bytes.Buffer
	require.NoError(t, writeKernelsCSV(&buf, records))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "txid,vout,time,address,value,age_days,coin_days,prob_per_second,prob_within_day,reward", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], records[0].TxID+",0,"))
}
