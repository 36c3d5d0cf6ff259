/*
 * Copyright (c) 2022 The JaxNetwork developers
 * Use of this source code is governed by an ISC
 * license that can be found in the LICENSE file.
 */

package wallet

import (
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/xpchain/xpcd/types/chaincfg"
)

type blockList []*btcutil.Block

func (l blockList) BlockByHeight(height int32) (*btcutil.Block, error) {
	if int(height) >= len(l) {
		return nil, errors.New("no block")
	}
	return l[height], nil
}

func TestConnectBlock(t *testing.T) {
	k := New(&chaincfg.RegressionNetParams)
	kd, err := k.GenerateKey()
	require.NoError(t, err)
	ours, err := txscript.PayToAddrScript(kd.WitnessKey)
	require.NoError(t, err)

	funding := wire.NewMsgTx(wire.TxVersion)
	funding.AddTxIn(wire.NewTxIn(&wire.OutPoint{Index: wire.MaxPrevOutIndex}, []byte{0x51, 0x51}, nil))
	funding.AddTxOut(wire.NewTxOut(5000, ours))
	funding.AddTxOut(wire.NewTxOut(7000, []byte{txscript.OP_TRUE}))
	funding.AddTxOut(wire.NewTxOut(0, ours))

	first := btcutil.NewBlock(&wire.MsgBlock{Transactions: []*wire.MsgTx{funding}})
	assert.Equal(t, 1, k.ConnectBlock(first))
	coins := k.Coins()
	require.Len(t, coins, 1)
	assert.Equal(t, int64(5000), coins[0].Value)

	spend := wire.NewMsgTx(wire.TxVersion)
	spend.AddTxIn(wire.NewTxIn(&coins[0].OutPoint, nil, nil))
	spend.AddTxOut(wire.NewTxOut(4000, []byte{txscript.OP_TRUE}))
	second := btcutil.NewBlock(&wire.MsgBlock{Transactions: []*wire.MsgTx{spend}})
	assert.Zero(t, k.ConnectBlock(second))
	assert.Empty(t, k.Coins())

	rescanned := New(&chaincfg.RegressionNetParams)
	_, err = rescanned.AddKey(kd.PrivateKey)
	require.NoError(t, err)
	require.NoError(t, rescanned.Rescan(blockList{first}, 0))
	assert.Len(t, rescanned.Coins(), 1)
	require.NoError(t, rescanned.Rescan(blockList{first, second}, 1))
	assert.Empty(t, rescanned.Coins())
	assert.Error(t, rescanned.Rescan(blockList{first}, 3))
}
