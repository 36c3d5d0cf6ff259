/*
 * Copyright (c) 2022 The JaxNetwork developers
 * Use of this source code is governed by an ISC
 * license that can be found in the LICENSE file.
 */

package wallet

import (
	"testing"

	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/xpchain/xpcd/node/mining"
	"gitlab.com/xpchain/xpcd/node/stakepolicy"
	"gitlab.com/xpchain/xpcd/types/chaincfg"
)

func TestSignHash(t *testing.T) {
	k := New(&chaincfg.RegressionNetParams)
	kd, err := k.GenerateKey()
	require.NoError(t, err)

	hash := chainhash.DoubleHashH([]byte("header"))
	raw, pub, err := k.SignHash(hash, kd.PubKeyHash.ScriptAddress())
	require.NoError(t, err)
	assert.True(t, pub.IsEqual(kd.PrivateKey.PubKey()))

	sig, err := ecdsa.ParseDERSignature(raw)
	require.NoError(t, err)
	assert.True(t, sig.Verify(hash[:], pub))

	_, _, err = k.SignHash(hash, make([]byte, 20))
	assert.ErrorIs(t, err, ErrUnknownKey)

	k.Lock()
	assert.True(t, k.IsLocked())
	_, _, err = k.SignHash(hash, kd.PubKeyHash.ScriptAddress())
	assert.ErrorIs(t, err, mining.ErrSignerUnavailable)

	k.Unlock()
	_, _, err = k.SignHash(hash, kd.PubKeyHash.ScriptAddress())
	assert.NoError(t, err)
}

func TestImportKey(t *testing.T) {
	k := New(&chaincfg.RegressionNetParams)
	kd, err := k.ImportKey("0101010101010101010101010101010101010101010101010101010101010101")
	require.NoError(t, err)

	other := New(&chaincfg.RegressionNetParams)
	again, err := other.ImportKey("0101010101010101010101010101010101010101010101010101010101010101")
	require.NoError(t, err)
	assert.Equal(t, kd.PubKeyHash.EncodeAddress(), again.PubKeyHash.EncodeAddress())

	_, err = k.ImportKey("zz")
	assert.Error(t, err)
}

func TestRewardDistribution(t *testing.T) {
	k := New(&chaincfg.RegressionNetParams)
	a, err := k.GenerateKey()
	require.NoError(t, err)
	b, err := k.GenerateKey()
	require.NoError(t, err)

	d := mining.RewardDistribution{
		{Destination: a.PubKeyHash, Percent: 60},
		{Destination: b.WitnessKey, Percent: 30},
	}
	require.NoError(t, k.SetRewardDistribution(d))
	assert.Len(t, k.RewardDistribution(), 2)

	err = k.SetRewardDistribution(mining.RewardDistribution{
		{Destination: a.PubKeyHash, Percent: 60},
		{Destination: b.PubKeyHash, Percent: 50},
	})
	assert.ErrorIs(t, err, mining.ErrBadRewardDistribution)
	assert.Len(t, k.RewardDistribution(), 2, "a rejected table keeps the old one")
}

func TestCreateCoinStake(t *testing.T) {
	k := New(&chaincfg.RegressionNetParams)
	kd, err := k.GenerateKey()
	require.NoError(t, err)

	for _, addr := range []btcutil.Address{kd.PubKeyHash, kd.WitnessKey} {
		pkScript, err := txscript.PayToAddrScript(addr)
		require.NoError(t, err)

		coin := StakeCoin{
			OutPoint: wire.OutPoint{Hash: chainhash.DoubleHashH(pkScript), Index: 1},
			Value:    5000000,
			PkScript: pkScript,
		}
		require.NoError(t, k.AddCoin(coin))

		tx, err := k.CreateCoinStake(coin, 1000)
		require.NoError(t, err)
		require.Len(t, tx.TxIn, 1)
		require.Len(t, tx.TxOut, 1)
		assert.Equal(t, int64(4999000), tx.TxOut[0].Value)
		assert.True(t, stakepolicy.IsPayToYourselfTx(tx), "%v", addr)

		fetcher := txscript.NewCannedPrevOutputFetcher(pkScript, coin.Value)
		vm, err := txscript.NewEngine(pkScript, tx, 0, txscript.StandardVerifyFlags, nil,
			txscript.NewTxSigHashes(tx, fetcher), coin.Value, fetcher)
		require.NoError(t, err)
		assert.NoError(t, vm.Execute())

		keys, err := stakepolicy.PubKeysFromCoinStake(tx)
		require.NoError(t, err)
		assert.True(t, keys[0].IsEqual(kd.PrivateKey.PubKey()))

		_, err = k.CreateCoinStake(coin, coin.Value)
		assert.ErrorIs(t, err, ErrFeeTooHigh)
	}

	assert.Len(t, k.Coins(), 2)

	err = k.AddCoin(StakeCoin{PkScript: []byte{txscript.OP_TRUE}})
	assert.ErrorIs(t, err, ErrUnsupportedScript)

	stranger := New(&chaincfg.RegressionNetParams)
	other, err := stranger.GenerateKey()
	require.NoError(t, err)
	pkScript, err := txscript.PayToAddrScript(other.PubKeyHash)
	require.NoError(t, err)
	err = k.AddCoin(StakeCoin{PkScript: pkScript, Value: 1})
	assert.ErrorIs(t, err, ErrUnknownKey)
}
