/*
 * Copyright (c) 2022 The JaxNetwork developers
 * Use of this source code is governed by an ISC
 * license that can be found in the LICENSE file.
 */

package chaincfg

import (
	"encoding/hex"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

const (
	genesisTimestamp = `Xpc developers are Pretty Cute. Of course it is a joke. "Now" yet.`
	genesisPubKey    = "04678afdb0fe5548271967f1a67130b7105cd6a828e03909a67962e0ea1f61de" +
		"b649f6bc3f4cef38c4f35504e51ec112de5c384df7ba0b8d578a4c702b6bf11d5f"
	genesisVersion = 4
)

type genesisOpts struct {
	Timestamp int64
	Nonce     uint32
	Bits      uint32
}

// genesisCoinbaseTx builds the coinbase shared by the genesis blocks of all
// networks.
func genesisCoinbaseTx() *wire.MsgTx {
	// <486604799> <4> <timestamp>, the 4 is pushed as data rather than
	// as OP_4.
	sigScript := []byte{0x04, 0xff, 0xff, 0x00, 0x1d, 0x01, 0x04, byte(len(genesisTimestamp))}
	sigScript = append(sigScript, genesisTimestamp...)

	pubKey, _ := hex.DecodeString(genesisPubKey)
	pkScript, _ := txscript.NewScriptBuilder().
		AddData(pubKey).
		AddOp(txscript.OP_CHECKSIG).
		Script()

	tx := wire.NewMsgTx(1)
	tx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Index: wire.MaxPrevOutIndex},
		SignatureScript:  sigScript,
		Sequence:         wire.MaxTxInSequenceNum,
	})
	tx.AddTxOut(wire.NewTxOut(BaseSubsidy, pkScript))
	return tx
}

func genesisBlock(p *Params) *wire.MsgBlock {
	coinbase := genesisCoinbaseTx()
	return &wire.MsgBlock{
		Header: wire.BlockHeader{
			Version:    genesisVersion,
			PrevBlock:  chainhash.Hash{},
			MerkleRoot: coinbase.TxHash(),
			Timestamp:  time.Unix(p.genesis.Timestamp, 0),
			Bits:       p.genesis.Bits,
			Nonce:      p.genesis.Nonce,
		},
		Transactions: []*wire.MsgTx{coinbase},
	}
}
