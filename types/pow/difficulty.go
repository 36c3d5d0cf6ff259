// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2022 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package pow

import (
	"math/big"
	"time"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/wire"
	"github.com/pkg/errors"
	"gitlab.com/xpchain/xpcd/types/chaincfg"
)

// HeaderSource provides the headers of the main chain by height.
type HeaderSource interface {
	HeaderByHeight(height int32) (*wire.BlockHeader, error)
}

// CompactToBig converts a compact representation of a whole number N to an
// unsigned 256-bit target.
func CompactToBig(bits uint32) *big.Int { return blockchain.CompactToBig(bits) }

// BigToCompact converts a whole number N to the compact representation.
func BigToCompact(n *big.Int) uint32 { return blockchain.BigToCompact(n) }

// Difficulty returns the proof-of-work limit of the main network divided by
// the target encoded in bits, the way difficulty is shown to users.
func Difficulty(bits uint32) float64 {
	target := CompactToBig(bits)
	if target.Sign() <= 0 {
		return 0
	}

	maxTarget := new(big.Float).SetInt(CompactToBig(0x1d00ffff))
	diff, _ := new(big.Float).Quo(maxTarget, new(big.Float).SetInt(target)).Float64()
	return diff
}

// blocksPerRetarget is the number of blocks between each difficulty retarget.
func blocksPerRetarget(params *chaincfg.Params) int32 {
	return int32(params.TargetTimespan / params.TargetTimePerBlock)
}

// findPrevTestNetDifficulty returns the difficulty of the previous block which
// did not have the special testnet minimum difficulty rule applied.
func findPrevTestNetDifficulty(params *chaincfg.Params, chain HeaderSource,
	lastHeader *wire.BlockHeader, lastHeight int32) (uint32, error) {
	perRetarget := blocksPerRetarget(params)

	header, height := lastHeader, lastHeight
	for height > 0 && height%perRetarget != 0 && header.Bits == params.PowLimitBits {
		height--

		var err error
		header, err = chain.HeaderByHeight(height)
		if err != nil {
			return 0, err
		}
	}

	return header.Bits, nil
}

// CalcNextRequiredDifficulty calculates the required proof-of-work difficulty
// for the block after lastHeader based on the difficulty retarget rules.
// A nil lastHeader means the next block is the genesis block.
func CalcNextRequiredDifficulty(params *chaincfg.Params, chain HeaderSource,
	lastHeader *wire.BlockHeader, lastHeight int32, newBlockTime time.Time) (uint32, error) {
	// Genesis block.
	if lastHeader == nil {
		return params.PowLimitBits, nil
	}

	if params.NoRetargeting {
		return lastHeader.Bits, nil
	}

	perRetarget := blocksPerRetarget(params)

	// Return the previous block's difficulty requirements if this block
	// is not at a difficulty retarget interval.
	if (lastHeight+1)%perRetarget != 0 {
		// For networks that support it, allow special reduction of the
		// required difficulty once too much time has elapsed without
		// mining a block.
		if params.ReduceMinDifficulty {
			allowMinTime := lastHeader.Timestamp.Add(params.MinDiffReductionTime)
			if newBlockTime.After(allowMinTime) {
				return params.PowLimitBits, nil
			}

			return findPrevTestNetDifficulty(params, chain, lastHeader, lastHeight)
		}

		return lastHeader.Bits, nil
	}

	// Get the block at the previous retarget (targetTimespan days worth of
	// blocks).
	firstHeight := lastHeight - (perRetarget - 1)
	if firstHeight < 0 {
		firstHeight = 0
	}
	firstHeader, err := chain.HeaderByHeight(firstHeight)
	if err != nil {
		return 0, errors.Wrap(err, "unable to obtain previous retarget block")
	}

	targetTimespan := int64(params.TargetTimespan / time.Second)
	actualTimespan := lastHeader.Timestamp.Unix() - firstHeader.Timestamp.Unix()

	newTargetBits := retarget(params, lastHeader.Bits, actualTimespan, targetTimespan)

	log.Debug().Msgf("Difficulty retarget at block height %d", lastHeight+1)
	log.Debug().Msgf("Old target %08x (%064x)", lastHeader.Bits, CompactToBig(lastHeader.Bits))
	log.Debug().Msgf("New target %08x (%064x)", newTargetBits, CompactToBig(newTargetBits))
	log.Debug().Msgf("Actual timespan %v, target timespan %v",
		time.Duration(actualTimespan)*time.Second, params.TargetTimespan)

	return newTargetBits, nil
}

// CalcNextStakeBits returns the target of the proof-of-stake block that
// follows lastHeader. Stake blocks retarget every block against the target
// spacing, using the time between lastHeader and its parent.
func CalcNextStakeBits(params *chaincfg.Params, lastHeader, prevHeader *wire.BlockHeader) uint32 {
	if lastHeader == nil || prevHeader == nil {
		return params.PowLimitBits
	}

	if params.NoRetargeting {
		return lastHeader.Bits
	}

	spacing := int64(params.TargetTimePerBlock / time.Second)
	actual := lastHeader.Timestamp.Unix() - prevHeader.Timestamp.Unix()
	return retarget(params, lastHeader.Bits, actual, spacing)
}

// retarget scales the target encoded in bits by actual/expected. The actual
// timespan is clamped by the retarget adjustment factor and the result is
// limited to the proof-of-work limit.
func retarget(params *chaincfg.Params, bits uint32, actual, expected int64) uint32 {
	factor := params.RetargetAdjustmentFactor
	if factor <= 0 {
		factor = 1
	}

	minTimespan := expected / factor
	maxTimespan := expected * factor
	if actual < minTimespan {
		actual = minTimespan
	} else if actual > maxTimespan {
		actual = maxTimespan
	}

	// Calculate new target difficulty as:
	//  currentDifficulty * (adjustedTimespan / targetTimespan)
	// The result uses integer division which means it will be slightly
	// rounded down.
	newTarget := new(big.Int).Mul(CompactToBig(bits), big.NewInt(actual))
	newTarget.Div(newTarget, big.NewInt(expected))

	if newTarget.Cmp(params.PowLimit) > 0 {
		newTarget.Set(params.PowLimit)
	}

	return BigToCompact(newTarget)
}
