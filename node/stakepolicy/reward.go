/*
 * Copyright (c) 2022 The JaxNetwork developers
 * Use of this source code is governed by an ISC
 * license that can be found in the LICENSE file.
 */

package stakepolicy

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/minio/sha256-simd"
	"github.com/pkg/errors"
	"gitlab.com/xpchain/xpcd/node/chaindata"
)

// RewardCommitment is the content of the zero-value output that opens the
// coinbase of a proof-of-stake block paying a reward distribution.
type RewardCommitment struct {
	// Count is the number of reward outputs following the commitment.
	Count     int64
	Signature []byte
	PubKey    []byte
}

// RewardHash returns the hash signed by a reward commitment. It covers every
// reward output, the coinstake and the block time.
func RewardHash(outputs []*wire.TxOut, coinstake chainhash.Hash, blockTime uint32) chainhash.Hash {
	var buf bytes.Buffer
	_ = wire.WriteVarInt(&buf, 0, uint64(len(outputs)))
	for _, out := range outputs {
		_ = wire.WriteVarBytes(&buf, 0, out.PkScript)
		var value [8]byte
		binary.LittleEndian.PutUint64(value[:], uint64(out.Value))
		buf.Write(value[:])
	}
	buf.Write(coinstake[:])
	var ts [4]byte
	binary.LittleEndian.PutUint32(ts[:], blockTime)
	buf.Write(ts[:])

	first := sha256.Sum256(buf.Bytes())
	return sha256.Sum256(first[:])
}

// Script returns the output script carrying the commitment:
// OP_RETURN <count> <signature> <pubkey>.
func (c *RewardCommitment) Script() ([]byte, error) {
	return txscript.NewScriptBuilder().
		AddOp(txscript.OP_RETURN).
		AddInt64(c.Count).
		AddData(c.Signature).
		AddData(c.PubKey).
		Script()
}

// ParseRewardCommitment decodes a commitment script.
func ParseRewardCommitment(script []byte) (*RewardCommitment, error) {
	if len(script) == 0 || script[0] != txscript.OP_RETURN {
		return nil, errors.New("reward commitment must start with OP_RETURN")
	}

	tokenizer := txscript.MakeScriptTokenizer(0, script[1:])
	var items [][]byte
	var count int64
	for i := 0; tokenizer.Next(); i++ {
		op := tokenizer.Opcode()
		if i == 0 {
			switch {
			case op == txscript.OP_0:
				count = 0
			case op >= txscript.OP_1 && op <= txscript.OP_16:
				count = int64(op - (txscript.OP_1 - 1))
			default:
				n, err := decodeScriptNum(tokenizer.Data())
				if err != nil {
					return nil, err
				}
				count = n
			}
			continue
		}
		items = append(items, tokenizer.Data())
	}
	if err := tokenizer.Err(); err != nil {
		return nil, err
	}
	if len(items) != 2 {
		return nil, fmt.Errorf("reward commitment carries %d items, expected 2", len(items))
	}

	return &RewardCommitment{Count: count, Signature: items[0], PubKey: items[1]}, nil
}

// decodeScriptNum decodes a minimally encoded script number of up to four
// bytes.
func decodeScriptNum(v []byte) (int64, error) {
	if len(v) == 0 {
		return 0, nil
	}
	if len(v) > 4 {
		return 0, fmt.Errorf("script number of %d bytes is too long", len(v))
	}

	var n int64
	for i, b := range v {
		n |= int64(b) << uint8(8*i)
	}
	if v[len(v)-1]&0x80 != 0 {
		n &= ^(int64(0x80) << uint8(8*(len(v)-1)))
		return -n, nil
	}
	return n, nil
}

// IsRewardCommitment reports whether the output opens a reward
// distribution.
func IsRewardCommitment(out *wire.TxOut) bool {
	if out.Value != 0 {
		return false
	}
	_, err := ParseRewardCommitment(out.PkScript)
	return err == nil
}

// RewardOutputs returns the reward outputs of a proof-of-stake coinbase
// opened by a commitment: every output after the first one except a
// trailing witness commitment.
func RewardOutputs(coinbase *wire.MsgTx) []*wire.TxOut {
	if len(coinbase.TxOut) < 2 {
		return nil
	}
	outputs := coinbase.TxOut[1:]
	if last := outputs[len(outputs)-1]; isWitnessCommitment(last) {
		outputs = outputs[:len(outputs)-1]
	}
	return outputs
}

func isWitnessCommitment(out *wire.TxOut) bool {
	return out.Value == 0 &&
		len(out.PkScript) >= len(blockchain.WitnessMagicBytes)+chainhash.HashSize &&
		bytes.HasPrefix(out.PkScript, blockchain.WitnessMagicBytes)
}

// KeyHashDestination returns the public key hash paid by a key-hash output.
// The reward commitment and the block signature can only be produced for
// such outputs.
func KeyHashDestination(pkScript []byte) ([]byte, bool) {
	class := txscript.GetScriptClass(pkScript)
	if class != txscript.PubKeyHashTy && class != txscript.WitnessV0PubKeyHashTy {
		return nil, false
	}
	return committedHash(class, pkScript), true
}

// VerifyRewardCommitment checks the reward distribution of a proof-of-stake
// coinbase: the commitment must count every reward output and carry a
// signature over them made by the key the coinstake pays to.
func VerifyRewardCommitment(coinbase, coinstake *wire.MsgTx, blockTime uint32) error {
	if len(coinbase.TxOut) < 2 || len(coinstake.TxOut) != 1 {
		return chaindata.NewRuleError(chaindata.ErrBadRewardCommitment,
			"coinbase carries no reward distribution")
	}

	commitment, err := ParseRewardCommitment(coinbase.TxOut[0].PkScript)
	if err != nil || coinbase.TxOut[0].Value != 0 {
		str := fmt.Sprintf("malformed reward commitment: %v", err)
		return chaindata.NewRuleError(chaindata.ErrBadRewardCommitment, str)
	}

	outputs := RewardOutputs(coinbase)
	if commitment.Count != int64(len(outputs)) {
		str := fmt.Sprintf("reward commitment counts %d outputs, coinbase has %d",
			commitment.Count, len(outputs))
		return chaindata.NewRuleError(chaindata.ErrBadRewardCommitment, str)
	}

	keyHash, ok := KeyHashDestination(coinstake.TxOut[0].PkScript)
	if !ok || !bytes.Equal(keyHash, btcutil.Hash160(commitment.PubKey)) {
		return chaindata.NewRuleError(chaindata.ErrBadRewardCommitment,
			"reward commitment key does not control the coinstake")
	}

	pubKey, err := btcec.ParsePubKey(commitment.PubKey)
	if err != nil {
		return chaindata.NewRuleError(chaindata.ErrBadRewardCommitment, err.Error())
	}
	sig, err := ecdsa.ParseDERSignature(commitment.Signature)
	if err != nil {
		return chaindata.NewRuleError(chaindata.ErrBadRewardCommitment, err.Error())
	}

	hash := RewardHash(outputs, coinstake.TxHash(), blockTime)
	if !sig.Verify(hash[:], pubKey) {
		return chaindata.NewRuleError(chaindata.ErrBadRewardCommitment,
			"reward commitment signature is invalid")
	}
	return nil
}
