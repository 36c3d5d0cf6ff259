// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2022 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package chainstore keeps the main chain in a leveldb index: headers by
// height, blocks by hash and the location of every confirmed transaction.
// It validates and connects new blocks on top of the tip and serves the
// read-only chain view used by the stake kernel and the block assembler.
package chainstore

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/goleveldb/leveldb"
	"github.com/btcsuite/goleveldb/leveldb/opt"
	"github.com/btcsuite/goleveldb/leveldb/storage"
	"github.com/pkg/errors"
	"gitlab.com/xpchain/xpcd/node/chaindata"
	"gitlab.com/xpchain/xpcd/node/kernel"
	"gitlab.com/xpchain/xpcd/types/chaincfg"
)

// maxTimeOffset is how far into the future of the adjusted time a block
// timestamp may be.
const maxTimeOffset = 2 * time.Hour

// Config is a descriptor which specifies the chain store instance
// configuration.
type Config struct {
	// DataDir is the directory of the leveldb index. OpenMem ignores it.
	DataDir string

	// ChainParams identifies which chain parameters the chain is
	// associated with.
	ChainParams *chaincfg.Params

	// TimeSource defines the median time source to use for things such as
	// block processing and determining whether or not the chain is
	// current. It defaults to a fresh median time source.
	TimeSource blockchain.MedianTimeSource

	// KernelCache bounds the coinstake candidate cache of the stake
	// kernel.
	KernelCache kernel.CachePolicy

	// SigCache is an optional signature cache for coinstake scripts.
	SigCache *txscript.SigCache
}

// NotificationCallback is called with every block connected to the main
// chain.
type NotificationCallback func(block *btcutil.Block)

// Store is the main chain with its leveldb index.
type Store struct {
	cfg    Config
	db     *leveldb.DB
	kernel *kernel.Kernel

	// chainLock serializes block processing against template building.
	chainLock sync.RWMutex

	// stateLock protects the in-memory chain below. Lookups take only
	// this lock.
	stateLock     sync.RWMutex
	headers       []*wire.BlockHeader
	heights       map[chainhash.Hash]int32
	stateSnapshot *chaindata.BestState

	notificationsLock sync.RWMutex
	notifications     []NotificationCallback
}

// Open opens or creates the chain index under cfg.DataDir.
func Open(cfg Config) (*Store, error) {
	db, err := leveldb.OpenFile(cfg.DataDir, &opt.Options{
		Strict:      opt.DefaultStrict,
		Compression: opt.NoCompression,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open chain index at %s", cfg.DataDir)
	}
	return newStore(cfg, db)
}

// OpenMem creates a chain index kept in memory.
func OpenMem(cfg Config) (*Store, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "unable to open memory chain index")
	}
	return newStore(cfg, db)
}

func newStore(cfg Config, db *leveldb.DB) (*Store, error) {
	if cfg.TimeSource == nil {
		cfg.TimeSource = blockchain.NewMedianTime()
	}

	s := &Store{
		cfg:     cfg,
		db:      db,
		heights: make(map[chainhash.Hash]int32),
	}
	s.kernel = kernel.New(kernel.Config{
		ChainParams: cfg.ChainParams,
		Chain:       s,
		Cache:       kernel.NewCoinCache(cfg.KernelCache),
		SigCache:    cfg.SigCache,
	})

	if err := s.initChainState(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// initChainState loads the main chain or stores the genesis block into an
// empty index.
func (s *Store) initChainState() error {
	headers, err := dbLoadHeaders(s.db)
	if err != nil {
		return errors.Wrap(err, "unable to load headers")
	}

	if len(headers) == 0 {
		genesis := btcutil.NewBlock(s.cfg.ChainParams.GenesisBlock)
		log.Info().Stringer("hash", genesis.Hash()).Msg("Creating chain index with the genesis block")
		return s.connectBlock(genesis, 0)
	}

	if genesisHash := headers[0].BlockHash(); !genesisHash.IsEqual(s.cfg.ChainParams.GenesisHash) {
		return errors.Errorf("chain index belongs to genesis %v, expected %v",
			genesisHash, s.cfg.ChainParams.GenesisHash)
	}

	raw, err := s.db.Get(chainStateKey, nil)
	if err != nil {
		return errors.Wrap(err, "unable to load chain state")
	}
	state, err := deserializeChainState(raw)
	if err != nil {
		return err
	}

	tipHeight := int32(len(headers) - 1)
	if tipHash := headers[tipHeight].BlockHash(); !tipHash.IsEqual(&state.hash) {
		return errors.Errorf("chain state tip %v does not match the header at height %d", state.hash, tipHeight)
	}

	tip, err := dbFetchBlock(s.db, &state.hash)
	if err != nil {
		return errors.Wrap(err, "unable to load tip block")
	}

	s.headers = headers
	for height, header := range headers {
		s.heights[header.BlockHash()] = int32(height)
	}
	s.stateSnapshot = chaindata.NewBestState(&tip.MsgBlock().Header, tipHeight,
		uint64(tip.MsgBlock().SerializeSize()), uint64(blockchain.GetBlockWeight(tip)),
		uint64(len(tip.Transactions())), state.totalTxns, s.calcPastMedianTime(tipHeight))

	log.Info().Int32("height", tipHeight).Stringer("hash", &state.hash).
		Uint64("totaltx", state.totalTxns).Msg("Chain state loaded")
	return nil
}

// Close flushes and closes the index.
func (s *Store) Close() error {
	return s.db.Close()
}

// Kernel returns the stake kernel verifier bound to this chain.
func (s *Store) Kernel() *kernel.Kernel { return s.kernel }

// Params returns the chain parameters.
func (s *Store) Params() *chaincfg.Params { return s.cfg.ChainParams }

// TimeSource returns the median time source of the chain.
func (s *Store) TimeSource() blockchain.MedianTimeSource { return s.cfg.TimeSource }

// Subscribe registers callback for connected blocks.
func (s *Store) Subscribe(callback NotificationCallback) {
	s.notificationsLock.Lock()
	s.notifications = append(s.notifications, callback)
	s.notificationsLock.Unlock()
}

func (s *Store) sendNotification(block *btcutil.Block) {
	s.notificationsLock.RLock()
	defer s.notificationsLock.RUnlock()
	for _, callback := range s.notifications {
		callback(block)
	}
}

// BestSnapshot returns information about the current best chain block and
// related state as of the current point in time.  The returned instance must be
// treated as immutable since it is shared by all callers.
//
// This function is safe for concurrent access.
func (s *Store) BestSnapshot() *chaindata.BestState {
	s.stateLock.RLock()
	snapshot := s.stateSnapshot
	s.stateLock.RUnlock()
	return snapshot
}

// HeaderByHeight returns the main chain header at height.
func (s *Store) HeaderByHeight(height int32) (*wire.BlockHeader, error) {
	s.stateLock.RLock()
	defer s.stateLock.RUnlock()

	if height < 0 || int(height) >= len(s.headers) {
		str := fmt.Sprintf("no block at height %d exists", height)
		return nil, chaindata.NewRuleError(chaindata.ErrBlockNotFound, str)
	}
	return s.headers[height], nil
}

// FetchHeader returns the header of the main chain block identified by hash
// and its height.
func (s *Store) FetchHeader(hash *chainhash.Hash) (*wire.BlockHeader, int32, error) {
	s.stateLock.RLock()
	defer s.stateLock.RUnlock()

	height, ok := s.heights[*hash]
	if !ok {
		return nil, 0, chaindata.NewRuleError(chaindata.ErrBlockNotFound, "block "+hash.String()+" is not known")
	}
	return s.headers[height], height, nil
}

// BlockByHeight returns the main chain block at height.
func (s *Store) BlockByHeight(height int32) (*btcutil.Block, error) {
	header, err := s.HeaderByHeight(height)
	if err != nil {
		return nil, err
	}

	hash := header.BlockHash()
	block, err := dbFetchBlock(s.db, &hash)
	if err != nil {
		return nil, dbError(err, "load block "+hash.String())
	}
	block.SetHeight(height)
	return block, nil
}

// FetchTransaction returns a confirmed transaction and its location.
func (s *Store) FetchTransaction(hash *chainhash.Hash) (*wire.MsgTx, *chaindata.TxLocation, error) {
	raw, err := s.db.Get(prefixedKey(txPrefix, hash[:]), nil)
	if err == leveldb.ErrNotFound {
		return nil, nil, chaindata.NewRuleError(chaindata.ErrPrevOutNotFound,
			"transaction "+hash.String()+" is not in the main chain")
	}
	if err != nil {
		return nil, nil, dbError(err, "read location of "+hash.String())
	}

	loc, err := deserializeTxLocation(raw)
	if err != nil {
		return nil, nil, dbError(err, "decode location of "+hash.String())
	}

	tx, err := dbFetchTransaction(s.db, loc)
	if err == leveldb.ErrNotFound {
		return nil, nil, chaindata.NewRuleError(chaindata.ErrBlockNotFound,
			"block "+loc.BlockHash.String()+" is missing")
	}
	if err != nil {
		return nil, nil, dbError(err, "read transaction "+hash.String())
	}
	return tx, loc, nil
}

// AdjustedTime returns the network adjusted time.
func (s *Store) AdjustedTime() time.Time {
	return s.cfg.TimeSource.AdjustedTime()
}

// ChainLock returns the reader side of the chain lock.
func (s *Store) ChainLock() sync.Locker {
	return s.chainLock.RLocker()
}

// isCurrent reports whether the tip is recent enough. Test networks are
// always current.
func (s *Store) isCurrent() bool {
	if s.cfg.ChainParams.Net != chaincfg.MainNet {
		return true
	}

	minus24Hours := s.AdjustedTime().Add(-24 * time.Hour)
	return !s.BestSnapshot().Timestamp.Before(minus24Hours)
}

// IsCurrent returns whether or not the chain believes it is current.  The
// key factor is a latest block with a timestamp newer than 24 hours ago.
//
// This function is safe for concurrent access.
func (s *Store) IsCurrent() bool {
	return s.isCurrent()
}

// CalcPastMedianTime returns the median time of the blocks ending at
// height.
func (s *Store) CalcPastMedianTime(height int32) time.Time {
	s.stateLock.RLock()
	defer s.stateLock.RUnlock()
	return s.calcPastMedianTime(height)
}

// calcPastMedianTime must be called with the state lock held or before the
// store is shared.
func (s *Store) calcPastMedianTime(height int32) time.Time {
	timestamps := make([]int64, 0, chaindata.MedianTimeBlocks)
	for i := height; i >= 0 && len(timestamps) < chaindata.MedianTimeBlocks; i-- {
		timestamps = append(timestamps, s.headers[i].Timestamp.Unix())
	}
	sort.Slice(timestamps, func(i, j int) bool { return timestamps[i] < timestamps[j] })

	// With an even number of timestamps the later of the two middle
	// ones is used.
	return time.Unix(timestamps[len(timestamps)/2], 0)
}
