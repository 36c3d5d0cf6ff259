// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2022 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chainstore

import (
	"fmt"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/goleveldb/leveldb"
	"gitlab.com/xpchain/xpcd/node/chaindata"
)

// ProcessBlock validates block and connects it on top of the main chain.
// Blocks that don't extend the tip are rejected, there is no side chain
// handling.
//
// This function is safe for concurrent access.
func (s *Store) ProcessBlock(block *btcutil.Block) error {
	s.chainLock.Lock()
	defer s.chainLock.Unlock()

	blockHash := block.Hash()
	log.Trace().Stringer("hash", blockHash).Msg("Processing block")

	if _, _, err := s.FetchHeader(blockHash); err == nil {
		str := fmt.Sprintf("already have block %v", blockHash)
		return chaindata.NewRuleError(chaindata.ErrDuplicateBlock, str)
	}

	height, err := s.checkConnectBlock(block, chaindata.BFNone)
	if err != nil {
		return err
	}

	if err := s.connectBlock(block, height); err != nil {
		return err
	}

	s.sendNotification(block)
	return nil
}

// connectBlock stores block as the new tip at height and updates the best
// state.
//
// This function MUST be called with the chain lock held (for writes).
func (s *Store) connectBlock(block *btcutil.Block, height int32) error {
	block.SetHeight(height)

	totalTxns := uint64(len(block.Transactions()))
	if prev := s.BestSnapshot(); prev != nil {
		totalTxns += prev.TotalTxns
	}

	batch := new(leveldb.Batch)
	if err := dbPutBlock(batch, block, height); err != nil {
		return err
	}
	batch.Put(chainStateKey, serializeChainState(chainState{hash: *block.Hash(), totalTxns: totalTxns}))
	if err := s.db.Write(batch, nil); err != nil {
		return dbError(err, "store block "+block.Hash().String())
	}

	header := new(wire.BlockHeader)
	*header = block.MsgBlock().Header

	s.stateLock.Lock()
	s.headers = append(s.headers, header)
	s.heights[*block.Hash()] = height
	s.stateSnapshot = chaindata.NewBestState(header, height,
		uint64(block.MsgBlock().SerializeSize()), uint64(blockchain.GetBlockWeight(block)),
		uint64(len(block.Transactions())), totalTxns, s.calcPastMedianTime(height))
	s.stateLock.Unlock()

	log.Debug().Int32("height", height).Stringer("hash", block.Hash()).
		Int("txs", len(block.Transactions())).Msg("Connected block")
	return nil
}
