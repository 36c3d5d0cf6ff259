/*
 * Copyright (c) 2022 The JaxNetwork developers
 * Use of this source code is governed by an ISC
 * license that can be found in the LICENSE file.
 */

package chaindata

import (
	"math/big"
	"math/bits"
	"time"

	"github.com/btcsuite/btcd/btcutil"
)

// TxDesc is a descriptor about a transaction in a transaction source along
// with additional metadata.
type TxDesc struct {
	// Tx is the transaction associated with the entry.
	Tx *btcutil.Tx

	// Added is the time when the entry was added to the source pool.
	Added time.Time

	// Height is the block height when the entry was added to the source
	// pool.
	Height int32

	// Fee is the total fee the transaction associated with the entry pays.
	Fee int64

	// FeePerKB is the fee the transaction pays in base units per 1000 bytes.
	FeePerKB int64

	// SigOpCost is the sigop cost of the transaction, scaled by the witness
	// factor.
	SigOpCost int64

	// Size is the virtual size of the transaction.
	Size   int64
	Weight int64

	// The aggregates below cover the transaction and all of its
	// unconfirmed ancestors.
	SizeWithAncestors      int64
	FeesWithAncestors      int64
	SigOpCostWithAncestors int64
	AncestorCount          int64

	// Seq orders entries by arrival.
	Seq uint64
}

// CompareFeeRate compares feeA/sizeA with feeB/sizeB without dividing. It
// returns -1, 0 or 1.
func CompareFeeRate(feeA, sizeA, feeB, sizeB int64) int {
	if feeA >= 0 && feeB >= 0 && sizeA >= 0 && sizeB >= 0 {
		hiA, loA := bits.Mul64(uint64(feeA), uint64(sizeB))
		hiB, loB := bits.Mul64(uint64(feeB), uint64(sizeA))
		switch {
		case hiA != hiB:
			if hiA < hiB {
				return -1
			}
			return 1
		case loA != loB:
			if loA < loB {
				return -1
			}
			return 1
		}
		return 0
	}

	a := new(big.Int).Mul(big.NewInt(feeA), big.NewInt(sizeB))
	b := new(big.Int).Mul(big.NewInt(feeB), big.NewInt(sizeA))
	return a.Cmp(b)
}

// AncestorScoreLess reports whether a sorts before b in an ancestor score
// ordering: higher package feerate first, earlier arrival on ties.
func AncestorScoreLess(a, b *TxDesc) bool {
	if cmp := CompareFeeRate(a.FeesWithAncestors, a.SizeWithAncestors,
		b.FeesWithAncestors, b.SizeWithAncestors); cmp != 0 {
		return cmp > 0
	}
	return a.Seq < b.Seq
}
