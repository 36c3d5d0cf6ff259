// Copyright (c) 2022 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mining

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/pkg/errors"
	"gitlab.com/xpchain/xpcd/node/stakepolicy"
)

// ErrBadRewardDistribution is returned for a share table that can't be
// applied to a reward.
var ErrBadRewardDistribution = errors.New("bad reward distribution")

// RewardShare pays Percent of a minted reward to Destination.
type RewardShare struct {
	Destination btcutil.Address
	Percent     uint8
}

// RewardDistribution is an ordered share table. The percentages sum to at
// most 100, the remainder goes to the destination of the coinstake.
type RewardDistribution []RewardShare

// Validate checks the share table.
func (d RewardDistribution) Validate() error {
	total := 0
	seen := make(map[string]struct{}, len(d))
	for i, share := range d {
		if share.Destination == nil {
			return errors.Wrapf(ErrBadRewardDistribution, "share %d has no destination", i)
		}
		if share.Percent > 100 {
			return errors.Wrapf(ErrBadRewardDistribution, "share %d is %d%%", i, share.Percent)
		}

		addr := share.Destination.EncodeAddress()
		if _, ok := seen[addr]; ok {
			return errors.Wrapf(ErrBadRewardDistribution, "duplicate destination %s", addr)
		}
		seen[addr] = struct{}{}

		total += int(share.Percent)
	}
	if total > 100 {
		return errors.Wrapf(ErrBadRewardDistribution, "shares sum to %d%%", total)
	}
	return nil
}

// Outputs splits reward over the share table. The part left by the table and
// the rounding dust of every share are paid to defaultScript, so the values
// of the returned outputs always sum to reward.
func (d RewardDistribution) Outputs(reward int64, defaultScript []byte) ([]*wire.TxOut, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	if reward < 0 {
		return nil, errors.Wrapf(ErrBadRewardDistribution, "negative reward %d", reward)
	}

	outputs := make([]*wire.TxOut, 0, len(d)+1)
	paid := int64(0)
	remainder := 100
	for _, share := range d {
		remainder -= int(share.Percent)
		if share.Percent == 0 {
			continue
		}

		pkScript, err := txscript.PayToAddrScript(share.Destination)
		if err != nil {
			return nil, errors.Wrapf(ErrBadRewardDistribution, "destination %s: %v",
				share.Destination.EncodeAddress(), err)
		}

		value := reward * int64(share.Percent) / 100
		paid += value
		outputs = append(outputs, wire.NewTxOut(value, pkScript))
	}

	if rest := reward - paid; remainder > 0 || rest > 0 {
		outputs = append(outputs, wire.NewTxOut(rest, defaultScript))
	}
	return outputs, nil
}

// rewardCommitment builds the coinbase outputs of a proof-of-stake block
// paying reward through the distribution of wallet. The first output
// commits to the others with a signature of the coinstake key.
func rewardCommitment(wallet Wallet, coinstake *wire.MsgTx, reward int64,
	blockTime uint32) ([]*wire.TxOut, error) {
	if wallet == nil {
		return nil, ErrSignerUnavailable
	}

	stakeScript := coinstake.TxOut[0].PkScript
	keyHash, ok := stakepolicy.KeyHashDestination(stakeScript)
	if !ok {
		return nil, fmt.Errorf("coinstake pays to %v, a key hash is required",
			txscript.GetScriptClass(stakeScript))
	}

	outputs, err := wallet.RewardDistribution().Outputs(reward, stakeScript)
	if err != nil {
		return nil, err
	}

	hash := stakepolicy.RewardHash(outputs, coinstake.TxHash(), blockTime)
	sig, pubKey, err := wallet.SignHash(hash, keyHash)
	if err != nil {
		return nil, err
	}

	commitment := stakepolicy.RewardCommitment{
		Count:     int64(len(outputs)),
		Signature: sig,
		PubKey:    pubKey.SerializeCompressed(),
	}
	script, err := commitment.Script()
	if err != nil {
		return nil, err
	}

	return append([]*wire.TxOut{wire.NewTxOut(0, script)}, outputs...), nil
}
