// Copyright (c) 2014-2016 The btcsuite developers
// Copyright (c) 2022 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mining

import (
	"fmt"
	"time"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"gitlab.com/xpchain/xpcd/node/chaindata"
	"gitlab.com/xpchain/xpcd/types/chaincfg"
	"gitlab.com/xpchain/xpcd/types/pow"
)

// CoinbaseFlags is added to the coinbase script of a generated block once
// the extra nonce is rolled.
const CoinbaseFlags = "/P2SH/xpcd/"

// StandardCoinbaseScript returns a standard script suitable for use as the
// signature script of the coinbase transaction of a new proof-of-work block:
// the block height followed by the extra nonce.
func StandardCoinbaseScript(nextBlockHeight int32, extraNonce uint64) ([]byte, error) {
	return txscript.NewScriptBuilder().
		AddInt64(int64(nextBlockHeight)).
		AddInt64(int64(extraNonce)).
		Script()
}

// StakeCoinbaseScript returns the signature script of the coinbase of a
// proof-of-stake block before it is signed: the block height only.
func StakeCoinbaseScript(nextBlockHeight int32) ([]byte, error) {
	return txscript.NewScriptBuilder().
		AddInt64(int64(nextBlockHeight)).
		Script()
}

// createCoinbaseTx returns a coinbase transaction with the given signature
// script and outputs.
func createCoinbaseTx(coinbaseScript []byte, outputs []*wire.TxOut) *wire.MsgTx {
	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(&wire.TxIn{
		// Coinbase transactions have no inputs, so previous outpoint is
		// zero hash and max index.
		PreviousOutPoint: *wire.NewOutPoint(&chainhash.Hash{}, wire.MaxPrevOutIndex),
		SignatureScript:  coinbaseScript,
		Sequence:         wire.MaxTxInSequenceNum,
	})
	for _, out := range outputs {
		tx.AddTxOut(out)
	}
	return tx
}

// addWitnessCommitment adds the witness commitment output to the coinbase of
// txs and returns the commitment script.
func addWitnessCommitment(coinbase *btcutil.Tx, txs []*btcutil.Tx) []byte {
	var witnessNonce [blockchain.CoinbaseWitnessDataLen]byte
	coinbase.MsgTx().TxIn[0].Witness = wire.TxWitness{witnessNonce[:]}

	// the coinbase witness is hashed as zero, its own commitment does not
	// change the root.
	witnessMerkleTree := blockchain.BuildMerkleTreeStore(txs, true)
	witnessMerkleRoot := witnessMerkleTree[len(witnessMerkleTree)-1]

	var witnessPreimage [chainhash.HashSize * 2]byte
	copy(witnessPreimage[:chainhash.HashSize], witnessMerkleRoot[:])
	copy(witnessPreimage[chainhash.HashSize:], witnessNonce[:])

	witnessCommitment := chainhash.DoubleHashB(witnessPreimage[:])
	witnessScript := append(append([]byte{}, blockchain.WitnessMagicBytes...), witnessCommitment...)

	coinbase.MsgTx().AddTxOut(&wire.TxOut{Value: 0, PkScript: witnessScript})
	return witnessScript
}

// MedianAdjustedTime returns the current time adjusted to ensure it is at
// least one second after the median timestamp of the last several blocks
// per the chain consensus rules.
func MedianAdjustedTime(best *chaindata.BestState, adjusted time.Time) time.Time {
	newTimestamp := time.Unix(adjusted.Unix(), 0)
	minTimestamp := best.MedianTime.Add(time.Second)
	if newTimestamp.Before(minTimestamp) {
		newTimestamp = minTimestamp
	}
	return newTimestamp
}

// UpdateBlockTime updates the timestamp in the header of the passed block to
// the current time while taking into account the median time of the last
// several blocks to ensure the new time is after that time per the chain
// consensus rules. Finally, it will update the target difficulty if needed
// based on the new time for the test networks since their target difficulty
// can change based upon time.
func UpdateBlockTime(msgBlock *wire.MsgBlock, chain chaindata.ChainView, params *chaincfg.Params) error {
	best := chain.BestSnapshot()
	newTime := MedianAdjustedTime(best, chain.AdjustedTime())
	if msgBlock.Header.Timestamp.Before(newTime) {
		msgBlock.Header.Timestamp = newTime
	}

	// If running on a network that requires recalculating the difficulty,
	// do so now.
	if params.ReduceMinDifficulty {
		lastHeader, err := chain.HeaderByHeight(best.Height)
		if err != nil {
			return err
		}
		difficulty, err := pow.CalcNextRequiredDifficulty(params, chain, lastHeader, best.Height,
			msgBlock.Header.Timestamp)
		if err != nil {
			return err
		}
		msgBlock.Header.Bits = difficulty
	}

	return nil
}

// UpdateExtraNonce updates the extra nonce in the coinbase script of the
// passed block by regenerating the coinbase script with the passed value and
// block height. It also recalculates and updates the new merkle root that
// results from changing the coinbase script.
func UpdateExtraNonce(msgBlock *wire.MsgBlock, blockHeight int32, extraNonce uint64) error {
	coinbaseScript, err := StandardCoinbaseScript(blockHeight, extraNonce)
	if err != nil {
		return err
	}
	coinbaseScript = append(coinbaseScript, []byte(CoinbaseFlags)...)
	if len(coinbaseScript) > blockchain.MaxCoinbaseScriptLen {
		return fmt.Errorf("coinbase transaction script length of %d is out of range (min: %d, max: %d)",
			len(coinbaseScript), blockchain.MinCoinbaseScriptLen, blockchain.MaxCoinbaseScriptLen)
	}
	msgBlock.Transactions[0].TxIn[0].SignatureScript = coinbaseScript

	// Recalculate the merkle root with the updated extra nonce.
	block := btcutil.NewBlock(msgBlock)
	msgBlock.Header.MerkleRoot = chaindata.MerkleRoot(block.Transactions())
	return nil
}

// ExtraNonce counts the extra nonce rolled into the coinbase of the block
// built on one tip. The counter restarts when the tip changes.
type ExtraNonce struct {
	prevBlock chainhash.Hash
	value     uint64
}

// Increment advances the counter for msgBlock and writes it into the
// coinbase.
func (n *ExtraNonce) Increment(msgBlock *wire.MsgBlock, blockHeight int32) error {
	if n.prevBlock != msgBlock.Header.PrevBlock {
		n.value = 0
		n.prevBlock = msgBlock.Header.PrevBlock
	}
	n.value++
	return UpdateExtraNonce(msgBlock, blockHeight, n.value)
}
