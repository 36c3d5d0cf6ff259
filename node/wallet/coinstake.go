/*
 * Copyright (c) 2022 The JaxNetwork developers
 * Use of this source code is governed by an ISC
 * license that can be found in the LICENSE file.
 */

package wallet

import (
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/pkg/errors"
	"gitlab.com/xpchain/xpcd/node/stakepolicy"
)

// ErrFeeTooHigh is returned when the coinstake fee eats the whole coin.
var ErrFeeTooHigh = errors.New("coinstake fee exceeds the staked value")

// CreateCoinStake builds and signs the coinstake claiming a stake slot with
// coin: one input spending it and one output paying value - fee back to the
// same script.
func (k *Keyring) CreateCoinStake(coin StakeCoin, fee int64) (*wire.MsgTx, error) {
	if fee < 0 || fee >= coin.Value {
		return nil, errors.Wrapf(ErrFeeTooHigh, "fee %d, value %d", fee, coin.Value)
	}

	keyHash, ok := stakepolicy.KeyHashDestination(coin.PkScript)
	if !ok {
		return nil, errors.Wrapf(ErrUnsupportedScript, "%v", txscript.GetScriptClass(coin.PkScript))
	}

	k.mtx.RLock()
	kd, err := k.key(keyHash)
	k.mtx.RUnlock()
	if err != nil {
		return nil, err
	}

	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(wire.NewTxIn(&coin.OutPoint, nil, nil))
	tx.AddTxOut(wire.NewTxOut(coin.Value-fee, coin.PkScript))

	switch txscript.GetScriptClass(coin.PkScript) {
	case txscript.WitnessV0PubKeyHashTy:
		fetcher := txscript.NewCannedPrevOutputFetcher(coin.PkScript, coin.Value)
		sigHashes := txscript.NewTxSigHashes(tx, fetcher)
		witness, err := txscript.WitnessSignature(tx, sigHashes, 0, coin.Value, coin.PkScript,
			txscript.SigHashAll, kd.PrivateKey, true)
		if err != nil {
			return nil, errors.Wrap(err, "unable to sign coinstake")
		}
		tx.TxIn[0].Witness = witness

	default:
		sigScript, err := txscript.SignatureScript(tx, 0, coin.PkScript, txscript.SigHashAll,
			kd.PrivateKey, true)
		if err != nil {
			return nil, errors.Wrap(err, "unable to sign coinstake")
		}
		tx.TxIn[0].SignatureScript = sigScript
	}

	log.Debug().Stringer("coin", coin.OutPoint).Stringer("coinstake", tx.TxHash()).
		Int64("fee", fee).Msg("Created coinstake")
	return tx, nil
}
