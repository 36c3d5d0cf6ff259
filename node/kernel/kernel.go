/*
 * Copyright (c) 2022 The JaxNetwork developers
 * Use of this source code is governed by an ISC
 * license that can be found in the LICENSE file.
 */

// Package kernel implements the proof-of-stake kernel protocol.
//
// A coinstake wins the right to mint a block when the hash of its kernel is
// not above the block target multiplied by the coin-day weight of the
// output it spends:
//
//	hash(bits + prev.block.time + prev.offset + prev.block.time + prev.vout.n + time) <= target * coinDayWeight
//
// The coin-day weight grows linearly from zero at the minimum stake age up to
// the maximum stake age, so new outputs can not stake and hoarding beyond the
// maximum age gains nothing.
package kernel

import (
	"encoding/binary"
	"math/big"
	"time"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/minio/sha256-simd"
	"gitlab.com/xpchain/xpcd/types/chaincfg"
)

// KernelPreimageSize is the size of the serialized kernel.
const KernelPreimageSize = 28

// CoinCandidate is the previous output spent by a coinstake, reduced to the
// fields the kernel hashes.
type CoinCandidate struct {
	// BlockTime is the timestamp of the block containing the output.
	BlockTime uint32
	// TxOffset is the byte offset of the transaction inside that block.
	TxOffset    uint32
	Amount      int64
	OutputIndex uint32
}

// StakeProof is the kernel hash together with the coin-day weighted target
// it was compared against.
type StakeProof struct {
	Hash   chainhash.Hash
	Target *big.Int
}

// KernelHash returns the double sha256 of the kernel preimage:
//
//	bits u32 | blockTime u32 | txOffset u32 | blockTime u32 | outputIndex u64 | claimTime u32
//
// all little-endian.
func KernelHash(bits, blockTime, txOffset uint32, outputIndex uint32, claimTime uint32) chainhash.Hash {
	var buf [KernelPreimageSize]byte
	binary.LittleEndian.PutUint32(buf[0:4], bits)
	binary.LittleEndian.PutUint32(buf[4:8], blockTime)
	binary.LittleEndian.PutUint32(buf[8:12], txOffset)
	binary.LittleEndian.PutUint32(buf[12:16], blockTime)
	binary.LittleEndian.PutUint64(buf[16:24], uint64(outputIndex))
	binary.LittleEndian.PutUint32(buf[24:28], claimTime)

	first := sha256.Sum256(buf[:])
	return sha256.Sum256(first[:])
}

// TimeWeight returns the part of age, in seconds, that counts toward the
// coin-day weight: min(age, maxAge) - minAge clamped to
// [0, maxAge - minAge].
func TimeWeight(params *chaincfg.Params, age int64) int64 {
	minAge := int64(params.StakeMinAge / time.Second)
	maxAge := int64(params.StakeMaxAge / time.Second)

	if age > maxAge {
		age = maxAge
	}
	weight := age - minAge
	if weight < 0 {
		return 0
	}
	return weight
}

// CoinDayWeight returns amount * timeWeight / (CoinUnits * SecondsPerDay),
// rounded down.
func CoinDayWeight(amount, timeWeight int64) *big.Int {
	if amount <= 0 || timeWeight <= 0 {
		return new(big.Int)
	}

	weight := new(big.Int).Mul(big.NewInt(amount), big.NewInt(timeWeight))
	return weight.Div(weight, big.NewInt(chaincfg.CoinUnits*chaincfg.SecondsPerDay))
}

// CheckStakeKernelHash checks whether the output described by blockTime,
// txOffset, amount and outputIndex may mint a block at claimTime with target
// bits. It is a pure function of its arguments.
//
// The product of the weight and the target is not truncated, any target
// combined with any weight is compared exactly.
func CheckStakeKernelHash(params *chaincfg.Params, bits, blockTime, txOffset uint32,
	amount int64, outputIndex, claimTime uint32) (StakeProof, bool) {
	// Min age requirement.
	minAge := int64(params.StakeMinAge / time.Second)
	if int64(blockTime)+minAge > int64(claimTime) {
		return StakeProof{}, false
	}

	target := blockchain.CompactToBig(bits)
	weight := CoinDayWeight(amount, TimeWeight(params, int64(claimTime)-int64(blockTime)))
	weightedTarget := new(big.Int).Mul(weight, target)

	proof := StakeProof{
		Hash:   KernelHash(bits, blockTime, txOffset, outputIndex, claimTime),
		Target: weightedTarget,
	}

	if target.Sign() <= 0 {
		return proof, false
	}

	return proof, blockchain.HashToBig(&proof.Hash).Cmp(weightedTarget) <= 0
}
