/*
 * Copyright (c) 2022 The JaxNetwork developers
 * Use of this source code is governed by an ISC
 * license that can be found in the LICENSE file.
 */

// Package stakepolicy holds the structural rules of proof-of-stake blocks:
// how a header tells proof-of-work from proof-of-stake, which transactions
// may claim a stake and how a minted block is signed.
package stakepolicy

import (
	"bytes"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/minio/sha256-simd"
)

// maxPoWNonce is reserved and never classifies a header.
const maxPoWNonce = 0xFFFFFFFF

// IsNullHeader reports whether the header carries no target at all.
func IsNullHeader(h *wire.BlockHeader) bool {
	return h == nil || h.Bits == 0
}

// IsProofOfWork reports whether the header was produced by hashing.
func IsProofOfWork(h *wire.BlockHeader) bool {
	return !IsNullHeader(h) && h.Nonce > 0 && h.Nonce < maxPoWNonce
}

// IsProofOfStake reports whether the header was minted with a coinstake.
func IsProofOfStake(h *wire.BlockHeader) bool {
	return !IsNullHeader(h) && h.Nonce == 0
}

// IsPayToYourselfTx reports whether tx is shaped like a coinstake: a single
// input whose revealed key or script hashes to the commitment of the single
// output.
func IsPayToYourselfTx(tx *wire.MsgTx) bool {
	if tx == nil || len(tx.TxIn) != 1 || len(tx.TxOut) != 1 {
		return false
	}

	pkScript := tx.TxOut[0].PkScript
	class := txscript.GetScriptClass(pkScript)
	commitment := committedHash(class, pkScript)
	if commitment == nil {
		return false
	}

	// the signature form must match the output.
	witnessClass := class == txscript.WitnessV0PubKeyHashTy || class == txscript.WitnessV0ScriptHashTy
	if witnessClass != tx.HasWitness() {
		return false
	}

	var destination []byte
	if witnessClass {
		witness := tx.TxIn[0].Witness
		destination = witness[len(witness)-1]
	} else {
		sigScript := tx.TxIn[0].SignatureScript
		if !txscript.IsPushOnlyScript(sigScript) {
			return false
		}
		pushes, err := txscript.PushedData(sigScript)
		if err != nil || len(pushes) == 0 {
			return false
		}
		destination = pushes[len(pushes)-1]
	}

	if len(destination) == 0 {
		return false
	}

	if class == txscript.PubKeyHashTy || class == txscript.WitnessV0PubKeyHashTy {
		if _, err := btcec.ParsePubKey(destination); err != nil {
			return false
		}
	}

	var hash []byte
	if class == txscript.WitnessV0ScriptHashTy {
		sum := sha256.Sum256(destination)
		hash = sum[:]
	} else {
		hash = btcutil.Hash160(destination)
	}

	return bytes.Equal(hash, commitment)
}

// committedHash returns the key or script hash committed to by a standard
// single-destination output. Classes without a recoverable hash return nil.
func committedHash(class txscript.ScriptClass, pkScript []byte) []byte {
	switch class {
	case txscript.PubKeyHashTy:
		// OP_DUP OP_HASH160 <20> OP_EQUALVERIFY OP_CHECKSIG
		return pkScript[3:23]
	case txscript.ScriptHashTy:
		// OP_HASH160 <20> OP_EQUAL
		return pkScript[2:22]
	case txscript.WitnessV0PubKeyHashTy:
		return pkScript[2:22]
	case txscript.WitnessV0ScriptHashTy:
		return pkScript[2:34]
	}
	return nil
}

// scriptDestination returns the class of a script together with the bytes
// that identify who can spend it. ok is false for scripts without a single
// destination.
func scriptDestination(pkScript []byte) (class txscript.ScriptClass, dest []byte, ok bool) {
	class = txscript.GetScriptClass(pkScript)
	switch class {
	case txscript.PubKeyHashTy, txscript.ScriptHashTy,
		txscript.WitnessV0PubKeyHashTy, txscript.WitnessV0ScriptHashTy:
		return class, committedHash(class, pkScript), true

	case txscript.WitnessV1TaprootTy:
		return class, pkScript[2:34], true

	case txscript.PubKeyTy:
		pushes, err := txscript.PushedData(pkScript)
		if err != nil || len(pushes) != 1 {
			return class, nil, false
		}
		return class, pushes[0], true
	}
	return class, nil, false
}

// IsDestinationSame reports whether two output scripts pay the same
// destination in the same script form.
func IsDestinationSame(a, b []byte) bool {
	classA, destA, ok := scriptDestination(a)
	if !ok {
		return false
	}
	classB, destB, ok := scriptDestination(b)
	if !ok {
		return false
	}
	return classA == classB && bytes.Equal(destA, destB)
}
