// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2022 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chainstore

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"gitlab.com/xpchain/xpcd/node/chaindata"
	"gitlab.com/xpchain/xpcd/node/stakepolicy"
	"gitlab.com/xpchain/xpcd/types/pow"
)

// CheckConnectBlockTemplate fully validates that connecting the passed block
// to the main chain does not violate any consensus rules, aside from the
// proof of work requirement and the nonce of a proof-of-work template.
//
// This function MUST be called with the chain lock held (for reads).
func (s *Store) CheckConnectBlockTemplate(block *btcutil.Block) error {
	// Skip the proof of work check as this is just a block template.
	_, err := s.checkConnectBlock(block, chaindata.BFNoPoWCheck)
	return err
}

// checkBlockHeaderContext performs the checks of the header which depend on
// its position within the block chain.
func (s *Store) checkBlockHeaderContext(header *wire.BlockHeader, tip *chaindata.BestState,
	flags chaindata.BehaviorFlags) error {
	params := s.cfg.ChainParams
	template := flags&chaindata.BFNoPoWCheck == chaindata.BFNoPoWCheck
	blockHeight := tip.Height + 1

	if params.IsPoSHeight(blockHeight) {
		if !stakepolicy.IsProofOfStake(header) {
			str := fmt.Sprintf("block at height %d must be proof-of-stake", blockHeight)
			return chaindata.NewRuleError(chaindata.ErrUnexpectedBlockKind, str)
		}
	} else if !stakepolicy.IsProofOfWork(header) && !(template && header.Nonce == 0) {
		str := fmt.Sprintf("block at height %d must be proof-of-work", blockHeight)
		return chaindata.NewRuleError(chaindata.ErrUnexpectedBlockKind, str)
	}

	// Ensure the difficulty specified in the block header matches
	// the calculated difficulty based on the previous block and
	// difficulty retarget rules.
	expectedDifficulty, err := s.calcNextRequiredDifficulty(header, tip)
	if err != nil {
		return err
	}
	if header.Bits != expectedDifficulty {
		str := "block difficulty of %0x is not the expected value of %0x, with time(%s)"
		str = fmt.Sprintf(str, header.Bits, expectedDifficulty, header.Timestamp)
		return chaindata.NewRuleError(chaindata.ErrUnexpectedDifficulty, str)
	}

	// Ensure the timestamp for the block header is after the
	// median time of the last several blocks (medianTimeBlocks).
	if !header.Timestamp.After(tip.MedianTime) {
		str := "block timestamp of %v is not after expected %v"
		str = fmt.Sprintf(str, header.Timestamp, tip.MedianTime)
		return chaindata.NewRuleError(chaindata.ErrTimeTooOld, str)
	}

	maxTimestamp := s.AdjustedTime().Add(maxTimeOffset)
	if header.Timestamp.After(maxTimestamp) {
		str := "block timestamp of %v is too far in the future"
		str = fmt.Sprintf(str, header.Timestamp)
		return chaindata.NewRuleError(chaindata.ErrTimeTooNew, str)
	}

	return nil
}

// calcNextRequiredDifficulty returns the bits the block following tip must
// carry.
func (s *Store) calcNextRequiredDifficulty(header *wire.BlockHeader, tip *chaindata.BestState) (uint32, error) {
	params := s.cfg.ChainParams
	lastHeader, err := s.HeaderByHeight(tip.Height)
	if err != nil {
		return 0, err
	}

	if !params.IsPoSHeight(tip.Height + 1) {
		return pow.CalcNextRequiredDifficulty(params, s, lastHeader, tip.Height, header.Timestamp)
	}

	var prevHeader *wire.BlockHeader
	if tip.Height > 0 {
		if prevHeader, err = s.HeaderByHeight(tip.Height - 1); err != nil {
			return 0, err
		}
	}
	return pow.CalcNextStakeBits(params, lastHeader, prevHeader), nil
}

// checkConnectBlock validates block as the next block of the main chain and
// returns its height.
//
// This function MUST be called with the chain lock held.
func (s *Store) checkConnectBlock(block *btcutil.Block, flags chaindata.BehaviorFlags) (int32, error) {
	params := s.cfg.ChainParams
	msgBlock := block.MsgBlock()
	header := &msgBlock.Header

	// This only checks whether the block can be connected to the tip of the
	// current chain.
	tip := s.BestSnapshot()
	if !header.PrevBlock.IsEqual(&tip.Hash) {
		str := fmt.Sprintf("previous block must be the current chain tip %v, instead got %v",
			tip.Hash, header.PrevBlock)
		return 0, chaindata.NewRuleError(chaindata.ErrPrevBlockNotBest, str)
	}
	blockHeight := tip.Height + 1
	proofOfStake := params.IsPoSHeight(blockHeight)

	if err := chaindata.CheckBlockSanity(block, params, chaindata.BFNoPoWCheck); err != nil {
		return 0, err
	}
	if err := s.checkBlockHeaderContext(header, tip, flags); err != nil {
		return 0, err
	}
	if !proofOfStake && flags&chaindata.BFNoPoWCheck != chaindata.BFNoPoWCheck {
		if err := chaindata.CheckProofOfWork(header, params); err != nil {
			return 0, err
		}
	}

	// Ensure all transactions in the block are finalized.
	if err := chaindata.CheckTransactionsFinalized(block, blockHeight, tip.MedianTime); err != nil {
		return 0, err
	}

	transactions := block.Transactions()
	if err := chaindata.CheckSerializedHeight(transactions[0], blockHeight); err != nil {
		return 0, err
	}

	fees, err := s.checkTransactionInputs(block)
	if err != nil {
		return 0, err
	}

	// Proof-of-stake blocks mint the stake reward only, their fees are
	// not collected.
	maxCoinbaseValue := params.CalcBlockSubsidy(blockHeight) + fees
	if proofOfStake {
		if maxCoinbaseValue, err = s.checkProofOfStake(block, blockHeight); err != nil {
			return 0, err
		}
	}

	totalOut := int64(0)
	for _, out := range transactions[0].MsgTx().TxOut {
		totalOut += out.Value
	}
	if totalOut > maxCoinbaseValue {
		str := fmt.Sprintf("coinbase transaction for block pays %v which is more than expected value of %v",
			totalOut, maxCoinbaseValue)
		return 0, chaindata.NewRuleError(chaindata.ErrBadCoinbaseValue, str)
	}

	return blockHeight, nil
}

// checkProofOfStake verifies the coinstake, the kernel, the block signature
// and the reward commitment of a proof-of-stake block. It returns the
// reward the coinbase may claim.
func (s *Store) checkProofOfStake(block *btcutil.Block, blockHeight int32) (int64, error) {
	params := s.cfg.ChainParams
	msgBlock := block.MsgBlock()
	transactions := msgBlock.Transactions

	if len(transactions) < 2 || !stakepolicy.IsPayToYourselfTx(transactions[1]) {
		return 0, chaindata.NewRuleError(chaindata.ErrMissingCoinStake,
			"proof-of-stake block carries no coinstake at index 1")
	}
	coinstake := transactions[1]

	prevTx, loc, err := stakepolicy.IsCoinStakeTx(coinstake, s)
	if err != nil {
		return 0, err
	}

	blockTime := uint32(msgBlock.Header.Timestamp.Unix())
	proof, err := s.kernel.CheckProofOfStake(coinstake, msgBlock.Header.Bits, blockTime)
	if err != nil {
		return 0, err
	}
	log.Trace().Stringer("kernel", proof.Hash).Int32("height", blockHeight).Msg("Proof of stake accepted")

	if err := stakepolicy.CheckBlockSignature(msgBlock); err != nil {
		return 0, err
	}

	coinbase := transactions[0]
	if stakepolicy.IsRewardCommitment(coinbase.TxOut[0]) {
		if err := stakepolicy.VerifyRewardCommitment(coinbase, coinstake, blockTime); err != nil {
			return 0, err
		}
	}

	staked := prevTx.TxOut[coinstake.TxIn[0].PreviousOutPoint.Index].Value
	return params.ProofOfStakeReward(blockHeight, staked, int64(blockTime)-int64(loc.BlockTime)), nil
}

// checkTransactionInputs resolves the outputs spent by the transactions of
// block, from the block itself or from the chain, and returns the total fee
// they pay. An output spent twice inside the block is rejected, outputs
// spent by earlier blocks are not tracked since the index has no utxo set.
func (s *Store) checkTransactionInputs(block *btcutil.Block) (int64, error) {
	if err := chaindata.CheckNoDoubleSpends(block); err != nil {
		return 0, err
	}

	inBlock := make(map[chainhash.Hash]*wire.MsgTx, len(block.Transactions()))
	totalFees := int64(0)

	for i, tx := range block.Transactions() {
		inBlock[*tx.Hash()] = tx.MsgTx()
		if i == 0 {
			continue
		}

		totalIn := int64(0)
		for _, txIn := range tx.MsgTx().TxIn {
			prevOut := txIn.PreviousOutPoint
			prevTx, ok := inBlock[prevOut.Hash]
			if !ok {
				var err error
				prevTx, _, err = s.FetchTransaction(&prevOut.Hash)
				if chaindata.IsErrorCode(err, chaindata.ErrPrevOutNotFound) {
					str := fmt.Sprintf("output %v referenced from transaction %v either does not exist or "+
						"has already been spent", prevOut, tx.Hash())
					return 0, chaindata.NewRuleError(chaindata.ErrMissingTxOut, str)
				}
				if err != nil {
					return 0, err
				}
			}
			if prevOut.Index >= uint32(len(prevTx.TxOut)) {
				str := fmt.Sprintf("transaction %v spends output %v which does not exist", tx.Hash(), prevOut)
				return 0, chaindata.NewRuleError(chaindata.ErrMissingTxOut, str)
			}
			totalIn += prevTx.TxOut[prevOut.Index].Value
		}

		totalOut := int64(0)
		for _, txOut := range tx.MsgTx().TxOut {
			totalOut += txOut.Value
		}
		if totalIn < totalOut {
			str := fmt.Sprintf("total value of all transaction inputs for transaction %v is %v which is less "+
				"than the amount spent of %v", tx.Hash(), totalIn, totalOut)
			return 0, chaindata.NewRuleError(chaindata.ErrSpendTooHigh, str)
		}
		totalFees += totalIn - totalOut
	}

	return totalFees, nil
}
