/*
 * Copyright (c) 2022 The JaxNetwork developers
 * Use of this source code is governed by an ISC
 * license that can be found in the LICENSE file.
 */

package stakepolicy

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/pkg/errors"
	"gitlab.com/xpchain/xpcd/node/chaindata"
)

// pubKeyBytesLenUncompressed is the length of a serialized uncompressed
// public key.
const pubKeyBytesLenUncompressed = 65

// IsCoinStakeTx checks that tx spends a single output of a known
// transaction back to the same destination. It returns the spent
// transaction and its location.
//
// An unknown previous transaction is reported with a transient error.
func IsCoinStakeTx(tx *wire.MsgTx, chain chaindata.ChainView) (*wire.MsgTx, *chaindata.TxLocation, error) {
	if len(tx.TxIn) != 1 || len(tx.TxOut) != 1 {
		str := fmt.Sprintf("coinstake %v has %d inputs and %d outputs, expected 1 and 1",
			tx.TxHash(), len(tx.TxIn), len(tx.TxOut))
		return nil, nil, chaindata.NewRuleError(chaindata.ErrBadTxShape, str)
	}

	prevOut := tx.TxIn[0].PreviousOutPoint
	prevTx, loc, err := chain.FetchTransaction(&prevOut.Hash)
	if err != nil {
		if _, ok := chaindata.AsRuleError(err); ok {
			return nil, nil, err
		}
		str := fmt.Sprintf("unable to read transaction %v: %v", prevOut.Hash, err)
		return nil, nil, chaindata.NewRuleError(chaindata.ErrStorage, str)
	}

	if found := prevTx.TxHash(); !found.IsEqual(&prevOut.Hash) {
		str := fmt.Sprintf("txid mismatch: looked up %v, found %v", prevOut.Hash, found)
		return nil, nil, chaindata.NewRuleError(chaindata.ErrTxIDMismatch, str)
	}

	if prevOut.Index >= uint32(len(prevTx.TxOut)) {
		str := fmt.Sprintf("coinstake %v spends output %v which does not exist", tx.TxHash(), prevOut)
		return nil, nil, chaindata.NewRuleError(chaindata.ErrBadTxInput, str)
	}

	if !IsDestinationSame(prevTx.TxOut[prevOut.Index].PkScript, tx.TxOut[0].PkScript) {
		str := fmt.Sprintf("coinstake %v does not pay back to the staked destination", tx.TxHash())
		return nil, nil, chaindata.NewRuleError(chaindata.ErrDestinationMismatch, str)
	}

	return prevTx, loc, nil
}

// PubKeysFromCoinStake returns every public key revealed by the input of the
// coinstake, in the order they are pushed.
func PubKeysFromCoinStake(tx *wire.MsgTx) ([]*btcec.PublicKey, error) {
	if len(tx.TxIn) != 1 {
		str := fmt.Sprintf("coinstake %v has %d inputs, expected 1", tx.TxHash(), len(tx.TxIn))
		return nil, chaindata.NewRuleError(chaindata.ErrBadTxShape, str)
	}

	txIn := tx.TxIn[0]
	items := [][]byte(txIn.Witness)
	if len(items) == 0 {
		pushes, err := txscript.PushedData(txIn.SignatureScript)
		if err != nil {
			return nil, errors.Wrap(err, "can't parse coinstake signature script")
		}
		items = pushes
	}

	var keys []*btcec.PublicKey
	for _, item := range items {
		if len(item) != btcec.PubKeyBytesLenCompressed && len(item) != pubKeyBytesLenUncompressed {
			continue
		}
		if key, err := btcec.ParsePubKey(item); err == nil {
			keys = append(keys, key)
		}
	}

	if len(keys) == 0 {
		str := fmt.Sprintf("coinstake %v reveals no public key", tx.TxHash())
		return nil, chaindata.NewRuleError(chaindata.ErrBadScriptClass, str)
	}
	return keys, nil
}

// SplitBlockSignature separates the block signature, the last push of the
// coinbase signature script, from the rest of the script.
func SplitBlockSignature(sigScript []byte) (unsigned []byte, sig []byte, err error) {
	tokenizer := txscript.MakeScriptTokenizer(0, sigScript)
	lastStart := int32(-1)
	for {
		start := tokenizer.ByteIndex()
		if !tokenizer.Next() {
			break
		}
		lastStart = start
		sig = tokenizer.Data()
	}
	if err := tokenizer.Err(); err != nil {
		return nil, nil, err
	}
	if lastStart <= 0 || len(sig) == 0 {
		return nil, nil, errors.New("coinbase carries no block signature")
	}
	return sigScript[:lastStart], sig, nil
}

// SignatureHash returns the hash a proof-of-stake block signature commits
// to: the header hash of the block with the signature stripped from the
// coinbase.
func SignatureHash(block *wire.MsgBlock) (chainhash.Hash, error) {
	if len(block.Transactions) < 2 {
		return chainhash.Hash{}, chaindata.NewRuleError(chaindata.ErrMissingCoinStake,
			"proof-of-stake block has no coinstake")
	}

	coinbase := block.Transactions[0].Copy()
	if len(coinbase.TxIn) != 1 {
		return chainhash.Hash{}, chaindata.NewRuleError(chaindata.ErrFirstTxNotCoinbase,
			"coinbase must have exactly one input")
	}

	unsigned, _, err := SplitBlockSignature(coinbase.TxIn[0].SignatureScript)
	if err != nil {
		return chainhash.Hash{}, chaindata.NewRuleError(chaindata.ErrBadBlockSignature, err.Error())
	}
	coinbase.TxIn[0].SignatureScript = unsigned

	txs := make([]*btcutil.Tx, len(block.Transactions))
	txs[0] = btcutil.NewTx(coinbase)
	for i := 1; i < len(block.Transactions); i++ {
		txs[i] = btcutil.NewTx(block.Transactions[i])
	}

	header := block.Header
	header.MerkleRoot = chaindata.MerkleRoot(txs)
	return header.BlockHash(), nil
}

// CheckBlockSignature verifies the signature a proof-of-stake block carries
// at the end of its coinbase signature script against the keys revealed by
// its coinstake.
func CheckBlockSignature(block *wire.MsgBlock) error {
	hash, err := SignatureHash(block)
	if err != nil {
		return err
	}

	_, rawSig, err := SplitBlockSignature(block.Transactions[0].TxIn[0].SignatureScript)
	if err != nil {
		return chaindata.NewRuleError(chaindata.ErrBadBlockSignature, err.Error())
	}

	sig, err := ecdsa.ParseDERSignature(rawSig)
	if err != nil {
		str := fmt.Sprintf("malformed block signature: %v", err)
		return chaindata.NewRuleError(chaindata.ErrBadBlockSignature, str)
	}

	keys, err := PubKeysFromCoinStake(block.Transactions[1])
	if err != nil {
		return err
	}

	for _, key := range keys {
		if sig.Verify(hash[:], key) {
			return nil
		}
	}

	log.Debug().Stringer("hash", hash).Int("keys", len(keys)).
		Msg("Block signature does not match any coinstake key")
	str := fmt.Sprintf("signature of block %v does not match the coinstake", block.BlockHash())
	return chaindata.NewRuleError(chaindata.ErrBadBlockSignature, str)
}
