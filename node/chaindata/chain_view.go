/*
 * Copyright (c) 2022 The JaxNetwork developers
 * Use of this source code is governed by an ISC
 * license that can be found in the LICENSE file.
 */

package chaindata

import (
	"sync"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// MedianTimeBlocks is the number of previous blocks which should be
// used to calculate the median time used to validate block timestamps.
const MedianTimeBlocks = 11

// TxLocation describes where a confirmed transaction lives in the main chain.
type TxLocation struct {
	BlockHash   chainhash.Hash
	BlockHeight int32

	// BlockTime is the timestamp of the containing block.
	BlockTime uint32

	// TxOffset is the byte offset of the transaction inside the
	// serialized block, counted from the first byte of the header.
	TxOffset uint32

	// TxLen is the serialized size of the transaction.
	TxLen uint32
}

// ChainView is a read-only view of the main chain.
//
// Lookups return a RuleError with ErrPrevOutNotFound or ErrBlockNotFound when
// the data is unknown and ErrStorage when the backing store fails.
type ChainView interface {
	// BestSnapshot returns information about the current best chain block.
	BestSnapshot() *BestState

	// HeaderByHeight returns the main chain header at height.
	HeaderByHeight(height int32) (*wire.BlockHeader, error)

	// FetchHeader returns the header of the block identified by hash and
	// its height.
	FetchHeader(hash *chainhash.Hash) (*wire.BlockHeader, int32, error)

	// FetchTransaction returns a confirmed transaction and its location.
	FetchTransaction(hash *chainhash.Hash) (*wire.MsgTx, *TxLocation, error)

	// AdjustedTime returns the network adjusted time.
	AdjustedTime() time.Time

	// IsCurrent returns whether the chain believes it is synced with the
	// network.
	IsCurrent() bool

	// ChainLock returns the reader side of the chain state lock. Block
	// construction holds it to keep the tip stable.
	ChainLock() sync.Locker

	// CheckConnectBlockTemplate runs the contextual checks of block
	// against the current tip. The chain lock must be held.
	CheckConnectBlockTemplate(block *btcutil.Block) error
}

// TxOffsets returns the byte offset of every transaction of block inside its
// serialized form, counted from the first byte of the header.
func TxOffsets(block *wire.MsgBlock) []uint32 {
	offsets := make([]uint32, len(block.Transactions))

	offset := uint32(wire.MaxBlockHeaderPayload) +
		uint32(wire.VarIntSerializeSize(uint64(len(block.Transactions))))
	for i, tx := range block.Transactions {
		offsets[i] = offset
		offset += uint32(tx.SerializeSize())
	}
	return offsets
}
