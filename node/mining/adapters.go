// Copyright (c) 2017 The btcsuite developers
// Copyright (c) 2022 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mining

import (
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/pkg/errors"
	"gitlab.com/xpchain/xpcd/node/chaindata"
)

// ErrSignerUnavailable is returned by a Signer which holds no usable key,
// for example because the wallet is locked.
var ErrSignerUnavailable = errors.New("signer unavailable")

// TxSource represents a source of transactions to consider for inclusion in
// new blocks.
//
// The block assembler holds the read lock for the whole build, so the
// query methods must not take it again.
type TxSource interface {
	RLock()
	RUnlock()

	// LastUpdated returns the last time a transaction was added to or
	// removed from the source pool.
	LastUpdated() time.Time

	// MiningDescs returns a slice of mining descriptors for all the
	// transactions in the source pool, ordered by ancestor score.
	MiningDescs() []*chaindata.TxDesc

	// Ancestors returns the unconfirmed ancestors of the transaction.
	Ancestors(hash *chainhash.Hash) []*chaindata.TxDesc

	// Descendants returns the unconfirmed descendants of the transaction.
	Descendants(hash *chainhash.Hash) []*chaindata.TxDesc
}

// Signer signs hashes with the private key behind a public key hash.
type Signer interface {
	// SignHash returns a DER encoded signature of hash together with the
	// public key it verifies with.
	SignHash(hash chainhash.Hash, pubKeyHash []byte) ([]byte, *btcec.PublicKey, error)
}

// Wallet is the staking capability used to build proof-of-stake blocks.
type Wallet interface {
	Signer

	// RewardDistribution returns the share table applied to minted
	// rewards.
	RewardDistribution() RewardDistribution
}
