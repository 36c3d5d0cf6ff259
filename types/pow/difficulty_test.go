// Copyright (c) 2022 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package pow

import (
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/xpchain/xpcd/types/chaincfg"
)

type headerList []*wire.BlockHeader

func (l headerList) HeaderByHeight(height int32) (*wire.BlockHeader, error) {
	if height < 0 || int(height) >= len(l) {
		return nil, fmt.Errorf("no header at height %d", height)
	}
	return l[height], nil
}

func buildChain(n int, bits uint32, spacing time.Duration) headerList {
	start := time.Unix(1540301656, 0)
	chain := make(headerList, n)
	for i := range chain {
		chain[i] = &wire.BlockHeader{
			Version:   4,
			Bits:      bits,
			Timestamp: start.Add(time.Duration(i) * spacing),
			Nonce:     1,
		}
	}
	return chain
}

func TestCalcNextRequiredDifficulty(t *testing.T) {
	params := chaincfg.MainNetParams
	params.TargetTimespan = time.Minute * 10
	params.TargetTimePerBlock = time.Minute
	const bits = 0x1c0ffff0

	t.Run("genesis", func(t *testing.T) {
		next, err := CalcNextRequiredDifficulty(&params, nil, nil, 0, time.Now())
		require.NoError(t, err)
		assert.Equal(t, params.PowLimitBits, next)
	})

	t.Run("between retargets", func(t *testing.T) {
		chain := buildChain(5, bits, time.Minute)
		last := chain[4]
		next, err := CalcNextRequiredDifficulty(&params, chain, last, 4, last.Timestamp.Add(time.Minute))
		require.NoError(t, err)
		assert.Equal(t, uint32(bits), next)
	})

	t.Run("blocks twice as slow", func(t *testing.T) {
		chain := buildChain(10, bits, 2*time.Minute)
		last := chain[9]
		next, err := CalcNextRequiredDifficulty(&params, chain, last, 9, last.Timestamp.Add(time.Minute))
		require.NoError(t, err)

		// nine intervals of two minutes against a ten minute timespan.
		expected := new(big.Int).Mul(CompactToBig(bits), big.NewInt(18*60))
		expected.Div(expected, big.NewInt(10*60))
		assert.Equal(t, BigToCompact(expected), next)
	})

	t.Run("adjustment is clamped", func(t *testing.T) {
		chain := buildChain(10, bits, time.Hour)
		last := chain[9]
		next, err := CalcNextRequiredDifficulty(&params, chain, last, 9, last.Timestamp.Add(time.Minute))
		require.NoError(t, err)

		expected := new(big.Int).Mul(CompactToBig(bits), big.NewInt(4))
		assert.Equal(t, BigToCompact(expected), next)
	})

	t.Run("no retargeting", func(t *testing.T) {
		regtest := chaincfg.RegressionNetParams
		chain := buildChain(10, regtest.PowLimitBits, time.Hour)
		next, err := CalcNextRequiredDifficulty(&regtest, chain, chain[9], 9, time.Now())
		require.NoError(t, err)
		assert.Equal(t, regtest.PowLimitBits, next)
	})
}

func TestCalcNextStakeBits(t *testing.T) {
	params := chaincfg.MainNetParams
	const bits = 0x1c0ffff0
	chain := buildChain(2, bits, time.Minute)

	// on schedule keeps the target.
	assert.Equal(t, uint32(bits), CalcNextStakeBits(&params, chain[1], chain[0]))

	// a slow block doubles the target.
	slow := *chain[1]
	slow.Timestamp = chain[0].Timestamp.Add(2 * time.Minute)
	expected := new(big.Int).Mul(CompactToBig(bits), big.NewInt(2))
	assert.Equal(t, BigToCompact(expected), CalcNextStakeBits(&params, &slow, chain[0]))

	// the target never exceeds the limit.
	easy := buildChain(2, params.PowLimitBits, time.Hour)
	assert.Equal(t, params.PowLimitBits, CalcNextStakeBits(&params, easy[1], easy[0]))

	assert.Equal(t, params.PowLimitBits, CalcNextStakeBits(&params, nil, nil))
}

func TestDifficulty(t *testing.T) {
	assert.Equal(t, 1.0, Difficulty(0x1d00ffff))
	assert.InDelta(t, 256.0, Difficulty(0x1c00ffff), 1e-9)
	assert.Zero(t, Difficulty(0))
}
