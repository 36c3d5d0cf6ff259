/*
 * Copyright (c) 2022 The JaxNetwork developers
 * Use of this source code is governed by an ISC
 * license that can be found in the LICENSE file.
 */

package wallet

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
)

// ConnectBlock updates the coins of the keyring with a block connected to
// the main chain: outputs it spends are dropped and outputs paying to a key
// of the keyring become stakeable. It returns the number of coins added.
func (k *Keyring) ConnectBlock(block *btcutil.Block) int {
	added := 0
	for _, tx := range block.Transactions() {
		msgTx := tx.MsgTx()
		for _, txIn := range msgTx.TxIn {
			k.RemoveCoin(txIn.PreviousOutPoint)
		}

		for i, out := range msgTx.TxOut {
			if out.Value <= 0 {
				continue
			}
			coin := StakeCoin{
				OutPoint: wire.OutPoint{Hash: *tx.Hash(), Index: uint32(i)},
				Value:    out.Value,
				PkScript: out.PkScript,
			}
			if k.AddCoin(coin) == nil {
				added++
			}
		}
	}

	if added > 0 {
		log.Debug().Stringer("block", block.Hash()).Int("coins", added).Msg("Found stakeable outputs")
	}
	return added
}

// BlockSource is the part of the chain the keyring rescans.
type BlockSource interface {
	BlockByHeight(height int32) (*btcutil.Block, error)
}

// Rescan feeds the blocks at heights [0, tip] to ConnectBlock.
func (k *Keyring) Rescan(chain BlockSource, tip int32) error {
	for height := int32(0); height <= tip; height++ {
		block, err := chain.BlockByHeight(height)
		if err != nil {
			return err
		}
		k.ConnectBlock(block)
	}
	log.Info().Int32("tip", tip).Int("coins", len(k.Coins())).Msg("Keyring rescan complete")
	return nil
}
