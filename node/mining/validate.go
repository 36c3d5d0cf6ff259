// Copyright (c) 2022 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mining

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/pkg/errors"
	"gitlab.com/xpchain/xpcd/node/chaindata"
	"gitlab.com/xpchain/xpcd/node/stakepolicy"
	"gitlab.com/xpchain/xpcd/types/chaincfg"
)

var (
	// ErrConsensusFatal is returned when an assembled template fails
	// validation. It points at a bug in the assembler or a corrupted
	// chain state and is never retried.
	ErrConsensusFatal = errors.New("block template violates consensus")

	// ErrStaleTip is returned when the tip moved away from the block the
	// caller expected to build on.
	ErrStaleTip = errors.New("chain tip changed")

	// ErrSigningFailed is returned when a proof-of-stake template can't be
	// signed.
	ErrSigningFailed = errors.New("block signing failed")
)

// CheckBlockTemplate runs the context free checks of a freshly assembled
// block. maxCoinbaseValue is the sum the coinbase may claim.
func CheckBlockTemplate(block *btcutil.Block, params *chaincfg.Params, height int32,
	maxCoinbaseValue int64) error {
	if err := chaindata.CheckBlockSanity(block, params, chaindata.BFNoPoWCheck); err != nil {
		return err
	}

	transactions := block.Transactions()
	if err := chaindata.CheckSerializedHeight(transactions[0], height); err != nil {
		return err
	}
	if err := chaindata.CheckNoDoubleSpends(block); err != nil {
		return err
	}

	coinbase := transactions[0].MsgTx()
	total := int64(0)
	for _, out := range coinbase.TxOut {
		total += out.Value
	}
	if total > maxCoinbaseValue {
		str := fmt.Sprintf("coinbase transaction for block pays %v which is more than expected value of %v",
			total, maxCoinbaseValue)
		return chaindata.NewRuleError(chaindata.ErrBadCoinbaseValue, str)
	}

	if !params.IsPoSHeight(height) {
		return nil
	}

	msgBlock := block.MsgBlock()
	if len(transactions) < 2 || !stakepolicy.IsPayToYourselfTx(transactions[1].MsgTx()) {
		return chaindata.NewRuleError(chaindata.ErrMissingCoinStake,
			"proof-of-stake block carries no coinstake at index 1")
	}
	if err := stakepolicy.CheckBlockSignature(msgBlock); err != nil {
		return err
	}
	if stakepolicy.IsRewardCommitment(coinbase.TxOut[0]) {
		return stakepolicy.VerifyRewardCommitment(coinbase, transactions[1].MsgTx(),
			uint32(msgBlock.Header.Timestamp.Unix()))
	}
	return nil
}

// checkTemplate validates block and turns every failure into
// ErrConsensusFatal.
func (a *BlockAssembler) checkTemplate(block *btcutil.Block, height int32, maxCoinbaseValue int64) error {
	err := CheckBlockTemplate(block, a.cfg.ChainParams, height, maxCoinbaseValue)
	if err == nil {
		err = a.cfg.Chain.CheckConnectBlockTemplate(block)
	}
	if err != nil {
		log.Error().Err(err).Int32("height", height).Stringer("hash", block.Hash()).
			Msg("Assembled block template is invalid")
		return errors.Wrap(ErrConsensusFatal, err.Error())
	}
	return nil
}
