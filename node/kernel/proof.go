/*
 * Copyright (c) 2022 The JaxNetwork developers
 * Use of this source code is governed by an ISC
 * license that can be found in the LICENSE file.
 */

package kernel

import (
	"fmt"
	"time"

	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/pkg/errors"
	"gitlab.com/xpchain/xpcd/node/chaindata"
	"gitlab.com/xpchain/xpcd/types/chaincfg"
)

// Config is a descriptor containing the kernel configuration.
type Config struct {
	// ChainParams identifies which chain parameters the kernel is
	// associated with.
	ChainParams *chaincfg.Params

	// Chain resolves the outputs spent by coinstakes.
	Chain chaindata.ChainView

	// Cache keeps resolved candidates by coinstake id. A nil cache is
	// replaced by an unbounded one.
	Cache *CoinCache

	// SigCache is an optional signature cache for script verification.
	SigCache *txscript.SigCache
}

// Kernel verifies the proof-of-stake of coinstake transactions.
//
// Kernel is safe for concurrent use.
type Kernel struct {
	cfg Config
}

// New returns a kernel verifier.
func New(cfg Config) *Kernel {
	if cfg.Cache == nil {
		cfg.Cache = NewCoinCache(CachePolicy{})
	}
	return &Kernel{cfg: cfg}
}

// Cache returns the candidate cache of the kernel.
func (k *Kernel) Cache() *CoinCache { return k.cfg.Cache }

// Params returns the chain parameters of the kernel.
func (k *Kernel) Params() *chaincfg.Params { return k.cfg.ChainParams }

// CheckStakeKernelHash checks the kernel with the parameters of the kernel.
func (k *Kernel) CheckStakeKernelHash(bits, blockTime, txOffset uint32, amount int64,
	outputIndex, claimTime uint32) (StakeProof, bool) {
	return CheckStakeKernelHash(k.cfg.ChainParams, bits, blockTime, txOffset, amount, outputIndex, claimTime)
}

// CheckProofOfStake verifies that the coinstake tx spends an output which
// satisfies the kernel for target bits at claimTime.
//
// Missing chain data is reported with an error for which
// chaindata.IsTransient returns true, the caller may retry once the chain
// has caught up. Any other error rejects the coinstake.
func (k *Kernel) CheckProofOfStake(tx *wire.MsgTx, bits, claimTime uint32) (StakeProof, error) {
	if len(tx.TxIn) != 1 {
		str := fmt.Sprintf("coinstake %v has %d inputs, expected 1", tx.TxHash(), len(tx.TxIn))
		return StakeProof{}, chaindata.NewRuleError(chaindata.ErrBadTxShape, str)
	}

	txHash := tx.TxHash()
	candidate, ok := k.cfg.Cache.Lookup(&txHash)
	if !ok {
		var err error
		candidate, err = k.resolveCandidate(tx)
		if err != nil {
			return StakeProof{}, err
		}
		candidate, _ = k.cfg.Cache.Add(&txHash, candidate)
	}

	minAge := int64(k.cfg.ChainParams.StakeMinAge / time.Second)
	if int64(candidate.BlockTime)+minAge > int64(claimTime) {
		str := fmt.Sprintf("coinstake %v violates min age: output time %d, block time %d",
			txHash, candidate.BlockTime, claimTime)
		return StakeProof{}, chaindata.NewRuleError(chaindata.ErrMinAge, str)
	}

	proof, ok := k.CheckStakeKernelHash(bits, candidate.BlockTime, candidate.TxOffset,
		candidate.Amount, candidate.OutputIndex, claimTime)
	if !ok {
		log.Debug().Stringer("coinstake", txHash).Stringer("hash", proof.Hash).
			Msg("Check kernel failed")
		str := fmt.Sprintf("kernel hash %v of coinstake %v is above the target", proof.Hash, txHash)
		return proof, chaindata.NewRuleError(chaindata.ErrKernelTargetMiss, str)
	}

	return proof, nil
}

// resolveCandidate looks the spent output up, verifies the coinstake
// signature against it and reduces it to a candidate.
func (k *Kernel) resolveCandidate(tx *wire.MsgTx) (CoinCandidate, error) {
	prevOut := tx.TxIn[0].PreviousOutPoint

	prevTx, loc, err := k.cfg.Chain.FetchTransaction(&prevOut.Hash)
	if err != nil {
		if _, ok := chaindata.AsRuleError(err); ok {
			return CoinCandidate{}, errors.Wrapf(err, "coinstake %v", tx.TxHash())
		}

		// A failed read is never taken as a valid stake.
		str := fmt.Sprintf("unable to read transaction %v: %v", prevOut.Hash, err)
		return CoinCandidate{}, chaindata.NewRuleError(chaindata.ErrStorage, str)
	}

	if prevOut.Index >= uint32(len(prevTx.TxOut)) {
		str := fmt.Sprintf("coinstake %v spends output %v which does not exist", tx.TxHash(), prevOut)
		return CoinCandidate{}, chaindata.NewRuleError(chaindata.ErrBadTxInput, str)
	}
	spent := prevTx.TxOut[prevOut.Index]

	if err := verifyScript(tx, spent, k.cfg.SigCache); err != nil {
		str := fmt.Sprintf("signature of coinstake %v failed: %v", tx.TxHash(), err)
		return CoinCandidate{}, chaindata.NewRuleError(chaindata.ErrScriptVerify, str)
	}

	if found := prevTx.TxHash(); !found.IsEqual(&prevOut.Hash) {
		str := fmt.Sprintf("txid mismatch: looked up %v, found %v", prevOut.Hash, found)
		return CoinCandidate{}, chaindata.NewRuleError(chaindata.ErrTxIDMismatch, str)
	}

	return CoinCandidate{
		BlockTime:   loc.BlockTime,
		TxOffset:    loc.TxOffset,
		Amount:      spent.Value,
		OutputIndex: prevOut.Index,
	}, nil
}

// verifyScript runs the script engine over the sole input of tx.
func verifyScript(tx *wire.MsgTx, spent *wire.TxOut, sigCache *txscript.SigCache) error {
	fetcher := txscript.NewCannedPrevOutputFetcher(spent.PkScript, spent.Value)
	hashCache := txscript.NewTxSigHashes(tx, fetcher)

	vm, err := txscript.NewEngine(spent.PkScript, tx, 0, txscript.StandardVerifyFlags,
		sigCache, hashCache, spent.Value, fetcher)
	if err != nil {
		return err
	}
	return vm.Execute()
}
