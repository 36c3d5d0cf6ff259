/*
 * Copyright (c) 2022 The JaxNetwork developers
 * Use of this source code is governed by an ISC
 * license that can be found in the LICENSE file.
 */

package stakepolicy

import (
	"crypto/sha256"
	"sync"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/xpchain/xpcd/node/chaindata"
	"gitlab.com/xpchain/xpcd/types/chaincfg"
)

var params = &chaincfg.RegressionNetParams

func TestBlockKind(t *testing.T) {
	tests := []struct {
		name  string
		bits  uint32
		nonce uint32
		pow   bool
		pos   bool
	}{
		{"null", 0, 5, false, false},
		{"null stake", 0, 0, false, false},
		{"stake", 0x207fffff, 0, false, true},
		{"work", 0x207fffff, 1, true, false},
		{"work high nonce", 0x207fffff, 0xFFFFFFFE, true, false},
		{"reserved nonce", 0x207fffff, 0xFFFFFFFF, false, false},
	}

	for _, test := range tests {
		h := &wire.BlockHeader{Bits: test.bits, Nonce: test.nonce}
		assert.Equal(t, test.pow, IsProofOfWork(h), test.name)
		assert.Equal(t, test.pos, IsProofOfStake(h), test.name)
	}
	assert.False(t, IsProofOfWork(nil))
}

type keyFixture struct {
	priv *btcec.PrivateKey
	pub  []byte
}

func newKey(t *testing.T) keyFixture {
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	return keyFixture{priv: priv, pub: priv.PubKey().SerializeCompressed()}
}

func (k keyFixture) p2pkh(t *testing.T) []byte {
	addr, err := btcutil.NewAddressPubKeyHash(btcutil.Hash160(k.pub), params.AddressParams)
	require.NoError(t, err)
	script, err := txscript.PayToAddrScript(addr)
	require.NoError(t, err)
	return script
}

func (k keyFixture) p2wpkh(t *testing.T) []byte {
	addr, err := btcutil.NewAddressWitnessPubKeyHash(btcutil.Hash160(k.pub), params.AddressParams)
	require.NoError(t, err)
	script, err := txscript.PayToAddrScript(addr)
	require.NoError(t, err)
	return script
}

func pushScript(t *testing.T, items ...[]byte) []byte {
	b := txscript.NewScriptBuilder()
	for _, item := range items {
		b.AddData(item)
	}
	script, err := b.Script()
	require.NoError(t, err)
	return script
}

func spendTx(pkScript, sigScript []byte, witness wire.TxWitness) *wire.MsgTx {
	tx := wire.NewMsgTx(1)
	tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&chainhash.Hash{9}, 0), sigScript, witness))
	tx.AddTxOut(wire.NewTxOut(1000, pkScript))
	return tx
}

func TestIsPayToYourselfTx(t *testing.T) {
	key := newKey(t)
	other := newKey(t)
	sig := []byte{0x30, 0x01, 0x02}

	redeem := []byte{txscript.OP_TRUE}
	p2sh, err := txscript.PayToAddrScript(mustScriptHash(t, redeem))
	require.NoError(t, err)

	witnessScript := pushScript(t, key.pub)
	witnessScript = append(witnessScript, txscript.OP_CHECKSIG)
	wsh := sha256.Sum256(witnessScript)
	p2wshAddr, err := btcutil.NewAddressWitnessScriptHash(wsh[:], params.AddressParams)
	require.NoError(t, err)
	p2wsh, err := txscript.PayToAddrScript(p2wshAddr)
	require.NoError(t, err)

	nullData, err := txscript.NullDataScript([]byte("stake"))
	require.NoError(t, err)
	multiSig, err := txscript.MultiSigScript([]*btcutil.AddressPubKey{mustPubKeyAddr(t, key.pub)}, 1)
	require.NoError(t, err)
	bareKey := pushScript(t, key.pub)
	bareKey = append(bareKey, txscript.OP_CHECKSIG)

	tests := []struct {
		name string
		tx   *wire.MsgTx
		want bool
	}{
		{"p2pkh", spendTx(key.p2pkh(t), pushScript(t, sig, key.pub), nil), true},
		{"p2pkh other key", spendTx(other.p2pkh(t), pushScript(t, sig, key.pub), nil), false},
		{"p2pkh with witness", spendTx(key.p2pkh(t), pushScript(t, sig, key.pub), wire.TxWitness{sig, key.pub}), false},
		{"p2pkh bad key", spendTx(key.p2pkh(t), pushScript(t, sig, []byte{1, 2, 3}), nil), false},
		{"p2pkh not push only", spendTx(key.p2pkh(t), append(pushScript(t, sig, key.pub), txscript.OP_DROP), nil), false},
		{"p2wpkh", spendTx(key.p2wpkh(t), nil, wire.TxWitness{sig, key.pub}), true},
		{"p2wpkh without witness", spendTx(key.p2wpkh(t), pushScript(t, sig, key.pub), nil), false},
		{"p2sh", spendTx(p2sh, pushScript(t, redeem), nil), true},
		{"p2sh wrong redeem", spendTx(p2sh, pushScript(t, []byte{txscript.OP_FALSE}), nil), false},
		{"p2wsh", spendTx(p2wsh, nil, wire.TxWitness{sig, witnessScript}), true},
		{"p2wsh empty script", spendTx(p2wsh, nil, wire.TxWitness{sig, {}}), false},
		{"null data", spendTx(nullData, pushScript(t, sig), nil), false},
		{"multisig", spendTx(multiSig, pushScript(t, sig), nil), false},
		{"bare pubkey", spendTx(bareKey, pushScript(t, sig), nil), false},
	}

	for _, test := range tests {
		assert.Equal(t, test.want, IsPayToYourselfTx(test.tx), test.name)
	}

	twoOuts := spendTx(key.p2pkh(t), pushScript(t, sig, key.pub), nil)
	twoOuts.AddTxOut(wire.NewTxOut(1, key.p2pkh(t)))
	assert.False(t, IsPayToYourselfTx(twoOuts))
	assert.False(t, IsPayToYourselfTx(nil))
}

func mustScriptHash(t *testing.T, script []byte) btcutil.Address {
	addr, err := btcutil.NewAddressScriptHash(script, params.AddressParams)
	require.NoError(t, err)
	return addr
}

func mustPubKeyAddr(t *testing.T, pub []byte) *btcutil.AddressPubKey {
	addr, err := btcutil.NewAddressPubKey(pub, params.AddressParams)
	require.NoError(t, err)
	return addr
}

func TestIsDestinationSame(t *testing.T) {
	key := newKey(t)
	other := newKey(t)
	bareKey := append(pushScript(t, key.pub), txscript.OP_CHECKSIG)

	for _, script := range [][]byte{key.p2pkh(t), key.p2wpkh(t), bareKey} {
		assert.True(t, IsDestinationSame(script, script))
	}

	// the same key hash in another script form is another destination.
	assert.False(t, IsDestinationSame(key.p2pkh(t), key.p2wpkh(t)))
	assert.False(t, IsDestinationSame(key.p2pkh(t), other.p2pkh(t)))
	assert.False(t, IsDestinationSame([]byte{txscript.OP_TRUE}, []byte{txscript.OP_TRUE}))
}

type mapChain struct {
	txs map[chainhash.Hash]*wire.MsgTx
}

func (c *mapChain) BestSnapshot() *chaindata.BestState { return &chaindata.BestState{} }
func (c *mapChain) HeaderByHeight(int32) (*wire.BlockHeader, error) {
	return nil, chaindata.NewRuleError(chaindata.ErrBlockNotFound, "none")
}
func (c *mapChain) FetchHeader(*chainhash.Hash) (*wire.BlockHeader, int32, error) {
	return nil, 0, chaindata.NewRuleError(chaindata.ErrBlockNotFound, "none")
}
func (c *mapChain) FetchTransaction(hash *chainhash.Hash) (*wire.MsgTx, *chaindata.TxLocation, error) {
	tx, ok := c.txs[*hash]
	if !ok {
		return nil, nil, chaindata.NewRuleError(chaindata.ErrPrevOutNotFound, "none")
	}
	return tx, &chaindata.TxLocation{BlockTime: 100, TxOffset: 81}, nil
}
func (c *mapChain) AdjustedTime() time.Time                       { return time.Now() }
func (c *mapChain) IsCurrent() bool                               { return true }
func (c *mapChain) ChainLock() sync.Locker                        { return &sync.Mutex{} }
func (c *mapChain) CheckConnectBlockTemplate(*btcutil.Block) error { return nil }

func TestIsCoinStakeTx(t *testing.T) {
	key := newKey(t)
	prev := wire.NewMsgTx(1)
	prev.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&chainhash.Hash{3}, 0), nil, nil))
	prev.AddTxOut(wire.NewTxOut(5000, key.p2pkh(t)))
	prevHash := prev.TxHash()
	chain := &mapChain{txs: map[chainhash.Hash]*wire.MsgTx{prevHash: prev}}

	coinstake := func(pkScript []byte) *wire.MsgTx {
		tx := wire.NewMsgTx(1)
		tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&prevHash, 0), nil, nil))
		tx.AddTxOut(wire.NewTxOut(5000, pkScript))
		return tx
	}

	gotPrev, loc, err := IsCoinStakeTx(coinstake(key.p2pkh(t)), chain)
	require.NoError(t, err)
	assert.Equal(t, prevHash, gotPrev.TxHash())
	assert.Equal(t, uint32(81), loc.TxOffset)

	_, _, err = IsCoinStakeTx(coinstake(key.p2wpkh(t)), chain)
	assert.True(t, chaindata.IsErrorCode(err, chaindata.ErrDestinationMismatch))

	orphan := coinstake(key.p2pkh(t))
	orphan.TxIn[0].PreviousOutPoint.Hash = chainhash.Hash{4}
	_, _, err = IsCoinStakeTx(orphan, chain)
	assert.True(t, chaindata.IsTransient(err))

	badIndex := coinstake(key.p2pkh(t))
	badIndex.TxIn[0].PreviousOutPoint.Index = 3
	_, _, err = IsCoinStakeTx(badIndex, chain)
	assert.True(t, chaindata.IsErrorCode(err, chaindata.ErrBadTxInput))

	split := coinstake(key.p2pkh(t))
	split.AddTxOut(wire.NewTxOut(1, key.p2pkh(t)))
	_, _, err = IsCoinStakeTx(split, chain)
	assert.True(t, chaindata.IsErrorCode(err, chaindata.ErrBadTxShape))
}

func signedStakeBlock(t *testing.T, signer, staker keyFixture) *wire.MsgBlock {
	coinbase := wire.NewMsgTx(1)
	height, err := txscript.NewScriptBuilder().AddInt64(int64(params.SwitchHeight + 1)).Script()
	require.NoError(t, err)
	coinbase.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&chainhash.Hash{}, wire.MaxPrevOutIndex), height, nil))
	coinbase.AddTxOut(wire.NewTxOut(10, staker.p2pkh(t)))

	coinstake := spendTx(staker.p2pkh(t), pushScript(t, []byte{0x30}, staker.pub), nil)

	block := wire.NewMsgBlock(wire.NewBlockHeader(4, &chainhash.Hash{1}, &chainhash.Hash{}, params.PowLimitBits, 0))
	block.AddTransaction(coinbase)
	block.AddTransaction(coinstake)

	block.Header.MerkleRoot = chaindata.MerkleRoot([]*btcutil.Tx{btcutil.NewTx(coinbase), btcutil.NewTx(coinstake)})
	hash := block.Header.BlockHash()
	sig := ecdsa.Sign(signer.priv, hash[:]).Serialize()

	coinbase.TxIn[0].SignatureScript = append(height, pushScript(t, sig)...)
	block.Header.MerkleRoot = chaindata.MerkleRoot([]*btcutil.Tx{btcutil.NewTx(coinbase), btcutil.NewTx(coinstake)})
	return block
}

func TestCheckBlockSignature(t *testing.T) {
	staker := newKey(t)

	block := signedStakeBlock(t, staker, staker)
	require.NoError(t, CheckBlockSignature(block))

	keys, err := PubKeysFromCoinStake(block.Transactions[1])
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.True(t, keys[0].IsEqual(staker.priv.PubKey()))

	forged := signedStakeBlock(t, newKey(t), staker)
	err = CheckBlockSignature(forged)
	assert.True(t, chaindata.IsErrorCode(err, chaindata.ErrBadBlockSignature))

	// a signature over another header is rejected.
	block.Header.Timestamp = block.Header.Timestamp.Add(time.Second)
	err = CheckBlockSignature(block)
	assert.True(t, chaindata.IsErrorCode(err, chaindata.ErrBadBlockSignature))

	unsigned := signedStakeBlock(t, staker, staker)
	unsigned.Transactions[0].TxIn[0].SignatureScript = []byte{txscript.OP_1}
	assert.Error(t, CheckBlockSignature(unsigned))
}

func TestPubKeysFromCoinStakeUncompressed(t *testing.T) {
	staker := newKey(t)
	uncompressed := staker.priv.PubKey().SerializeUncompressed()
	require.Len(t, uncompressed, 65)

	coinstake := spendTx(staker.p2pkh(t), pushScript(t, []byte{0x30}, uncompressed), nil)
	keys, err := PubKeysFromCoinStake(coinstake)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.True(t, keys[0].IsEqual(staker.priv.PubKey()))

	witness := spendTx(staker.p2wpkh(t), nil, wire.TxWitness{{0x30}, staker.pub})
	keys, err = PubKeysFromCoinStake(witness)
	require.NoError(t, err)
	require.Len(t, keys, 1)

	bare := spendTx(staker.p2pkh(t), pushScript(t, []byte{0x30}), nil)
	_, err = PubKeysFromCoinStake(bare)
	assert.True(t, chaindata.IsErrorCode(err, chaindata.ErrBadScriptClass))
}
