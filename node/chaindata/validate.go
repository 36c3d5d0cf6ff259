// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chaindata

import (
	"fmt"
	"time"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"gitlab.com/xpchain/xpcd/types/chaincfg"
)

// BehaviorFlags is a bitmask defining tweaks to the normal behavior when
// performing chain processing and consensus rules checks.
type BehaviorFlags uint32

const (
	// BFNoPoWCheck may be set to indicate the proof of work check which
	// ensures a block hashes to a value less than the required target will
	// not be performed.
	BFNoPoWCheck BehaviorFlags = 1 << iota

	// BFNone is a convenience value to specifically indicate no flags.
	BFNone BehaviorFlags = 0
)

// IsCoinBaseTx determines whether or not a transaction is a coinbase.  A coinbase
// is a special transaction created by miners that has no inputs.  This is
// represented in the block chain by a transaction with a single input that has
// a previous output transaction index set to the maximum value along with a
// zero hash.
func IsCoinBaseTx(msgTx *wire.MsgTx) bool {
	return blockchain.IsCoinBaseTx(msgTx)
}

// IsFinalizedTransaction determines whether or not a transaction is finalized.
func IsFinalizedTransaction(tx *btcutil.Tx, blockHeight int32, blockTime time.Time) bool {
	return blockchain.IsFinalizedTransaction(tx, blockHeight, blockTime)
}

// CheckProofOfWork ensures the block header bits which indicate the target
// difficulty is in min/max range and that the block hash is less than the
// target difficulty as claimed.
func CheckProofOfWork(header *wire.BlockHeader, powLimit *chaincfg.Params) error {
	target := blockchain.CompactToBig(header.Bits)
	if target.Sign() <= 0 {
		str := fmt.Sprintf("block target difficulty of %064x is too low", target)
		return NewRuleError(ErrHighHash, str)
	}

	if target.Cmp(powLimit.PowLimit) > 0 {
		str := fmt.Sprintf("block target difficulty of %064x is higher than max of %064x",
			target, powLimit.PowLimit)
		return NewRuleError(ErrHighHash, str)
	}

	hash := header.BlockHash()
	hashNum := blockchain.HashToBig(&hash)
	if hashNum.Cmp(target) > 0 {
		str := fmt.Sprintf("block hash of %064x is higher than expected max of %064x",
			hashNum, target)
		return NewRuleError(ErrHighHash, str)
	}

	return nil
}

// CheckBlockSanity performs some preliminary checks on a block to ensure it is
// sane before continuing with block processing.  These checks are context free.
func CheckBlockSanity(block *btcutil.Block, params *chaincfg.Params, flags BehaviorFlags) error {
	msgBlock := block.MsgBlock()
	if flags&BFNoPoWCheck != BFNoPoWCheck {
		if err := CheckProofOfWork(&msgBlock.Header, params); err != nil {
			return err
		}
	}

	// A block must have at least one transaction.
	numTx := len(msgBlock.Transactions)
	if numTx == 0 {
		return NewRuleError(ErrNoTransactions, "block does not contain any transactions")
	}

	weight := blockchain.GetBlockWeight(block)
	if weight > params.MaxBlockWeight {
		str := fmt.Sprintf("block weight of %d is higher than max of %d", weight, params.MaxBlockWeight)
		return NewRuleError(ErrBlockWeightTooHigh, str)
	}

	// The first transaction in a block must be a coinbase.
	transactions := block.Transactions()
	if !IsCoinBaseTx(transactions[0].MsgTx()) {
		return NewRuleError(ErrFirstTxNotCoinbase, "first transaction in block is not a coinbase")
	}

	// A block must not have more than one coinbase.
	for i, tx := range transactions[1:] {
		if IsCoinBaseTx(tx.MsgTx()) {
			str := fmt.Sprintf("block contains second coinbase at index %d", i+1)
			return NewRuleError(ErrMultipleCoinbases, str)
		}
	}

	// Do some preliminary checks on each transaction to ensure they are
	// sane before continuing.
	for _, tx := range transactions {
		if err := blockchain.CheckTransactionSanity(tx); err != nil {
			return NewRuleError(ErrBadTxInput, fmt.Sprintf("transaction %v: %v", tx.Hash(), err))
		}
	}

	// Build merkle tree and ensure the calculated merkle root matches the
	// entry in the block header.  This also has the effect of caching all
	// of the transaction hashes in the block to speed up future Hash
	// checks.
	calculatedMerkleRoot := MerkleRoot(transactions)
	if !msgBlock.Header.MerkleRoot.IsEqual(&calculatedMerkleRoot) {
		str := fmt.Sprintf("block merkle root is invalid - block header indicates %v, but calculated value is %v",
			msgBlock.Header.MerkleRoot, calculatedMerkleRoot)
		return NewRuleError(ErrBadMerkleRoot, str)
	}

	// Check for duplicate transactions.  This check will be fairly quick
	// since the transaction hashes are already cached due to building the
	// merkle tree above.
	existingTxHashes := make(map[chainhash.Hash]struct{})
	for _, tx := range transactions {
		hash := tx.Hash()
		if _, exists := existingTxHashes[*hash]; exists {
			str := fmt.Sprintf("block contains duplicate transaction %v", hash)
			return NewRuleError(ErrDuplicateTx, str)
		}
		existingTxHashes[*hash] = struct{}{}
	}

	// The number of signature operations must be less than the maximum
	// allowed per block.
	totalSigOps := int64(0)
	for _, tx := range transactions {
		totalSigOps += int64(blockchain.CountSigOps(tx) * blockchain.WitnessScaleFactor)
		if totalSigOps > params.MaxBlockSigOpsCost {
			str := fmt.Sprintf("block contains too many signature operations - got %v, max %v",
				totalSigOps, params.MaxBlockSigOpsCost)
			return NewRuleError(ErrTooManySigOps, str)
		}
	}

	for _, tx := range transactions {
		if tx.HasWitness() {
			if err := blockchain.ValidateWitnessCommitment(block); err != nil {
				return NewRuleError(ErrBadMerkleRoot, err.Error())
			}
			break
		}
	}

	return nil
}

// MerkleRoot returns the root of the merkle tree built from the transaction
// hashes of txs.
func MerkleRoot(txs []*btcutil.Tx) chainhash.Hash {
	merkles := blockchain.BuildMerkleTreeStore(txs, false)
	return *merkles[len(merkles)-1]
}

// CheckSerializedHeight checks if the signature script in the passed
// transaction starts with the serialized block height of wantHeight.
func CheckSerializedHeight(coinbaseTx *btcutil.Tx, wantHeight int32) error {
	serializedHeight, err := blockchain.ExtractCoinbaseHeight(coinbaseTx)
	if err != nil {
		return NewRuleError(ErrBadCoinbaseHeight, err.Error())
	}

	if serializedHeight != wantHeight {
		str := fmt.Sprintf("the coinbase signature script serialized "+
			"block height is %d when %d was expected",
			serializedHeight, wantHeight)
		return NewRuleError(ErrBadCoinbaseHeight, str)
	}
	return nil
}

// CheckTransactionsFinalized ensures every transaction of the block is final
// at height under the lock time cutoff.
func CheckTransactionsFinalized(block *btcutil.Block, height int32, lockTimeCutoff time.Time) error {
	for _, tx := range block.Transactions() {
		if !IsFinalizedTransaction(tx, height, lockTimeCutoff) {
			str := fmt.Sprintf("block contains unfinalized transaction %v", tx.Hash())
			return NewRuleError(ErrUnfinalizedTx, str)
		}
	}
	return nil
}

// CheckNoDoubleSpends ensures no output is spent by more than one input of
// the block. The coinbase input spends nothing and is skipped.
func CheckNoDoubleSpends(block *btcutil.Block) error {
	spent := make(map[wire.OutPoint]chainhash.Hash)
	for _, tx := range block.Transactions()[1:] {
		for _, txIn := range tx.MsgTx().TxIn {
			if first, ok := spent[txIn.PreviousOutPoint]; ok {
				str := fmt.Sprintf("output %v is spent by both transaction %v and %v",
					txIn.PreviousOutPoint, first, tx.Hash())
				return NewRuleError(ErrDoubleSpend, str)
			}
			spent[txIn.PreviousOutPoint] = *tx.Hash()
		}
	}
	return nil
}
