/*
 * Copyright (c) 2022 The JaxNetwork developers
 * Use of this source code is governed by an ISC
 * license that can be found in the LICENSE file.
 */

package chaincfg

import (
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenesisBlock(t *testing.T) {
	const merkleRoot = "daa610662c202dd51c892e6ff17ac1812a3ddcb998ec4923a3a315c409019739"

	tests := []struct {
		params *Params
		hash   string
	}{
		{&MainNetParams, "000000009f4a28557aad6be5910c39d40e8a44e596d5ad485a9e4a7d4d72937c"},
		{&TestNetParams, "00000000f04d3bdebf907f79b4b096a05d763ac890612202ff9c9cc685221617"},
		{&RegressionNetParams, "4fd557af2a383e80d0ea23ab05b50a3d62ccf675258ab734aaa0e87432864ebd"},
	}

	for _, tt := range tests {
		t.Run(tt.params.Name, func(t *testing.T) {
			expected, err := chainhash.NewHashFromStr(tt.hash)
			require.NoError(t, err)
			assert.Equal(t, *expected, *tt.params.GenesisHash)
			assert.Equal(t, merkleRoot, tt.params.GenesisBlock.Header.MerkleRoot.String())
		})
	}
}

func TestParamsForNet(t *testing.T) {
	for tag, name := range map[string]string{
		"mainnet": "mainnet",
		"TESTNET": "testnet",
		"regtest": "regtest",
	} {
		params, err := ParamsForNet(tag)
		require.NoError(t, err)
		assert.Equal(t, name, params.Name)
	}

	_, err := ParamsForNet("simnet")
	assert.Error(t, err)
}

func TestIsPoSHeight(t *testing.T) {
	params := &RegressionNetParams
	assert.False(t, params.IsPoSHeight(params.SwitchHeight))
	assert.True(t, params.IsPoSHeight(params.SwitchHeight+1))
	assert.False(t, params.IsPoSHeight(1))
}

func TestCalcBlockSubsidy(t *testing.T) {
	params := &RegressionNetParams
	assert.Equal(t, int64(BaseSubsidy), params.CalcBlockSubsidy(0))
	assert.Equal(t, int64(BaseSubsidy), params.CalcBlockSubsidy(149))
	assert.Equal(t, int64(BaseSubsidy/2), params.CalcBlockSubsidy(150))
	assert.Equal(t, int64(0), params.CalcBlockSubsidy(150*64))
}

func TestProofOfStakeReward(t *testing.T) {
	params := &MainNetParams
	amount := int64(1000 * CoinUnits)

	// one year of 5% would need more than the max age, the reward is
	// capped at 60 days.
	capped := params.ProofOfStakeReward(20000, amount, SecondsPerYear)
	expected := amount * 5 * int64(params.StakeMaxAge/time.Second) / (100 * SecondsPerYear)
	assert.Equal(t, expected, capped)

	day := params.ProofOfStakeReward(20000, amount, SecondsPerDay)
	assert.Equal(t, amount*5*SecondsPerDay/(100*SecondsPerYear), day)

	assert.Zero(t, params.ProofOfStakeReward(20000, 0, SecondsPerDay))
	assert.Zero(t, params.ProofOfStakeReward(20000, amount, -1))
}

func TestAddressEncoding(t *testing.T) {
	pkHash := btcutil.Hash160([]byte("xpc"))

	for _, params := range []*Params{&MainNetParams, &TestNetParams, &RegressionNetParams} {
		addr, err := btcutil.NewAddressWitnessPubKeyHash(pkHash, params.AddressParams)
		require.NoError(t, err)

		decoded, err := btcutil.DecodeAddress(addr.EncodeAddress(), params.AddressParams)
		require.NoError(t, err, params.Name)
		assert.Equal(t, addr.ScriptAddress(), decoded.ScriptAddress())
		assert.True(t, decoded.IsForNet(params.AddressParams))
	}

	addr, err := btcutil.NewAddressPubKeyHash(pkHash, MainNetParams.AddressParams)
	require.NoError(t, err)
	assert.Equal(t, byte('X'), addr.EncodeAddress()[0])
}
