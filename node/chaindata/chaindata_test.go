/*
 * Copyright (c) 2022 The JaxNetwork developers
 * Use of this source code is governed by an ISC
 * license that can be found in the LICENSE file.
 */

package chaindata

import (
	"bytes"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/xpchain/xpcd/types/chaincfg"
)

func testCoinbase(height int64) *wire.MsgTx {
	script, _ := txscript.NewScriptBuilder().AddInt64(height).AddOp(txscript.OP_0).Script()
	tx := wire.NewMsgTx(1)
	tx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: *wire.NewOutPoint(&chainhash.Hash{}, wire.MaxPrevOutIndex),
		SignatureScript:  script,
		Sequence:         wire.MaxTxInSequenceNum,
	})
	tx.AddTxOut(wire.NewTxOut(chaincfg.BaseSubsidy, []byte{txscript.OP_TRUE}))
	return tx
}

func testSpend(prev *wire.MsgTx, value int64) *wire.MsgTx {
	prevHash := prev.TxHash()
	tx := wire.NewMsgTx(1)
	tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&prevHash, 0), []byte{txscript.OP_TRUE}, nil))
	tx.AddTxOut(wire.NewTxOut(value, []byte{txscript.OP_TRUE}))
	return tx
}

func testBlock(txs ...*wire.MsgTx) *wire.MsgBlock {
	block := &wire.MsgBlock{
		Header: wire.BlockHeader{
			Version:   4,
			Timestamp: time.Unix(1540301900, 0),
			Bits:      chaincfg.RegressionNetParams.PowLimitBits,
		},
		Transactions: txs,
	}
	utxs := btcutil.NewBlock(block).Transactions()
	block.Header.MerkleRoot = MerkleRoot(utxs)
	return block
}

func TestTxOffsets(t *testing.T) {
	coinbase := testCoinbase(1)
	spend := testSpend(coinbase, 1000)
	block := testBlock(coinbase, spend)

	var buf bytes.Buffer
	require.NoError(t, block.Serialize(&buf))
	raw := buf.Bytes()

	offsets := TxOffsets(block)
	require.Len(t, offsets, 2)
	assert.Equal(t, uint32(81), offsets[0])

	for i, tx := range block.Transactions {
		var txBuf bytes.Buffer
		require.NoError(t, tx.Serialize(&txBuf))
		start := offsets[i]
		assert.Equal(t, txBuf.Bytes(), raw[start:start+uint32(txBuf.Len())])
	}
}

func TestCheckBlockSanity(t *testing.T) {
	params := &chaincfg.RegressionNetParams
	coinbase := testCoinbase(1)

	t.Run("valid", func(t *testing.T) {
		block := testBlock(coinbase, testSpend(coinbase, 1000))
		assert.NoError(t, CheckBlockSanity(btcutil.NewBlock(block), params, BFNoPoWCheck))
	})

	t.Run("no coinbase", func(t *testing.T) {
		block := testBlock(testSpend(coinbase, 1000))
		err := CheckBlockSanity(btcutil.NewBlock(block), params, BFNoPoWCheck)
		assert.True(t, IsErrorCode(err, ErrFirstTxNotCoinbase))
	})

	t.Run("bad merkle root", func(t *testing.T) {
		block := testBlock(coinbase)
		block.Header.MerkleRoot = chainhash.Hash{1}
		err := CheckBlockSanity(btcutil.NewBlock(block), params, BFNoPoWCheck)
		assert.True(t, IsErrorCode(err, ErrBadMerkleRoot))
	})

	t.Run("duplicate", func(t *testing.T) {
		spend := testSpend(coinbase, 1000)
		block := testBlock(coinbase, spend, spend)
		err := CheckBlockSanity(btcutil.NewBlock(block), params, BFNoPoWCheck)
		assert.True(t, IsErrorCode(err, ErrDuplicateTx))
	})

	t.Run("empty", func(t *testing.T) {
		block := &wire.MsgBlock{}
		err := CheckBlockSanity(btcutil.NewBlock(block), params, BFNoPoWCheck)
		assert.True(t, IsErrorCode(err, ErrNoTransactions))
	})
}

func TestCheckSerializedHeight(t *testing.T) {
	coinbase := btcutil.NewTx(testCoinbase(1700))
	assert.NoError(t, CheckSerializedHeight(coinbase, 1700))
	assert.True(t, IsErrorCode(CheckSerializedHeight(coinbase, 1701), ErrBadCoinbaseHeight))
}

func TestRuleErrorClassification(t *testing.T) {
	notFound := errors.Wrap(NewRuleError(ErrPrevOutNotFound, "missing"), "check coinstake")
	assert.True(t, IsTransient(notFound))
	assert.False(t, IsRejection(notFound))

	mismatch := NewRuleError(ErrTxIDMismatch, "mismatch")
	assert.False(t, IsTransient(mismatch))
	assert.True(t, IsRejection(mismatch))

	assert.False(t, IsTransient(errors.New("io")))
	assert.False(t, IsRejection(errors.New("io")))

	for code := ErrorCode(0); code < numErrorCodes; code++ {
		assert.NotContains(t, code.String(), "Unknown", "code %d has no name", code)
	}
}

func TestCheckNoDoubleSpends(t *testing.T) {
	spend := func(value int64, prev ...wire.OutPoint) *wire.MsgTx {
		tx := wire.NewMsgTx(1)
		for i := range prev {
			tx.AddTxIn(wire.NewTxIn(&prev[i], nil, nil))
		}
		tx.AddTxOut(wire.NewTxOut(value, []byte{txscript.OP_TRUE}))
		return tx
	}
	a := *wire.NewOutPoint(&chainhash.Hash{1}, 0)
	b := *wire.NewOutPoint(&chainhash.Hash{1}, 1)

	tests := []struct {
		name string
		txs  []*wire.MsgTx
		ok   bool
	}{
		{"coinbase only", nil, true},
		{"distinct outputs", []*wire.MsgTx{spend(1, a), spend(2, b)}, true},
		{"same output twice", []*wire.MsgTx{spend(1, a), spend(2, b, a)}, false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			msgBlock := wire.NewMsgBlock(&wire.BlockHeader{})
			require.NoError(t, msgBlock.AddTransaction(testCoinbase(1)))
			for _, tx := range test.txs {
				require.NoError(t, msgBlock.AddTransaction(tx))
			}
			err := CheckNoDoubleSpends(btcutil.NewBlock(msgBlock))
			if test.ok {
				assert.NoError(t, err)
				return
			}
			assert.True(t, IsErrorCode(err, ErrDoubleSpend))
		})
	}
}
