// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2022 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package mempool keeps the unconfirmed transactions a block template is
// built from, together with the package aggregates of each entry.
package mempool

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"gitlab.com/xpchain/xpcd/node/chaindata"
)

type poolEntry struct {
	desc     *chaindata.TxDesc
	parents  map[chainhash.Hash]*poolEntry
	children map[chainhash.Hash]*poolEntry
}

// Config is a descriptor containing the memory pool configuration.
type Config struct {
	// TimeSource defines the clock used to stamp entries. It defaults to
	// time.Now.
	TimeSource func() time.Time
}

// TxPool is a pool of unconfirmed transactions with ancestor aggregates.
//
// Mutating methods are safe for concurrent use. The query methods used by
// block assembly (MiningDescs, Ancestors, Descendants) expect the caller to
// hold the read lock via RLock so that a template sees one consistent
// snapshot.
type TxPool struct {
	lastUpdated int64 // last time pool was updated, unix nanoseconds

	mtx       sync.RWMutex
	cfg       Config
	pool      map[chainhash.Hash]*poolEntry
	outpoints map[wire.OutPoint]*btcutil.Tx
	seq       uint64
}

// New returns a new memory pool.
func New(cfg Config) *TxPool {
	if cfg.TimeSource == nil {
		cfg.TimeSource = time.Now
	}
	return &TxPool{
		cfg:       cfg,
		pool:      make(map[chainhash.Hash]*poolEntry),
		outpoints: make(map[wire.OutPoint]*btcutil.Tx),
	}
}

// RLock holds the pool unchanged until RUnlock is called.
func (mp *TxPool) RLock() { mp.mtx.RLock() }

// RUnlock releases the read lock taken by RLock.
func (mp *TxPool) RUnlock() { mp.mtx.RUnlock() }

// Count returns the number of transactions in the pool.
func (mp *TxPool) Count() int {
	mp.mtx.RLock()
	defer mp.mtx.RUnlock()
	return len(mp.pool)
}

// HaveTransaction returns whether the pool contains the transaction.
func (mp *TxPool) HaveTransaction(hash *chainhash.Hash) bool {
	mp.mtx.RLock()
	_, ok := mp.pool[*hash]
	mp.mtx.RUnlock()
	return ok
}

// LastUpdated returns the last time a transaction was added to or removed
// from the pool.
func (mp *TxPool) LastUpdated() time.Time {
	return time.Unix(0, atomic.LoadInt64(&mp.lastUpdated))
}

func (mp *TxPool) touch() {
	atomic.StoreInt64(&mp.lastUpdated, mp.cfg.TimeSource().UnixNano())
}

// AddTransaction adds tx, which pays fee and was received at the given
// chain height, to the pool. The sigop cost is counted from the legacy
// scripts of the transaction.
func (mp *TxPool) AddTransaction(tx *btcutil.Tx, height int32, fee int64) (*chaindata.TxDesc, error) {
	sigOpCost := int64(blockchain.CountSigOps(tx)) * blockchain.WitnessScaleFactor
	return mp.AddTransactionWithSigOps(tx, height, fee, sigOpCost)
}

// AddTransactionWithSigOps is AddTransaction with a sigop cost computed by
// the caller.
func (mp *TxPool) AddTransactionWithSigOps(tx *btcutil.Tx, height int32, fee,
	sigOpCost int64) (*chaindata.TxDesc, error) {
	mp.mtx.Lock()
	defer mp.mtx.Unlock()

	hash := tx.Hash()
	if _, ok := mp.pool[*hash]; ok {
		return nil, txRuleError(RejectDuplicate, fmt.Sprintf("already have transaction %v", hash))
	}
	if blockchain.IsCoinBase(tx) {
		return nil, txRuleError(RejectCoinbase, fmt.Sprintf("transaction %v is a coinbase", hash))
	}
	if fee < 0 {
		return nil, txRuleError(RejectInvalid, fmt.Sprintf("transaction %v pays a negative fee", hash))
	}
	for _, txIn := range tx.MsgTx().TxIn {
		if spender, ok := mp.outpoints[txIn.PreviousOutPoint]; ok {
			str := fmt.Sprintf("output %v already spent by transaction %v in the memory pool",
				txIn.PreviousOutPoint, spender.Hash())
			return nil, txRuleError(RejectConflict, str)
		}
	}

	weight := blockchain.GetTransactionWeight(tx)
	size := (weight + blockchain.WitnessScaleFactor - 1) / blockchain.WitnessScaleFactor

	mp.seq++
	entry := &poolEntry{
		desc: &chaindata.TxDesc{
			Tx:        tx,
			Added:     mp.cfg.TimeSource(),
			Height:    height,
			Fee:       fee,
			FeePerKB:  fee * 1000 / size,
			SigOpCost: sigOpCost,
			Size:      size,
			Weight:    weight,
			Seq:       mp.seq,
		},
		parents:  make(map[chainhash.Hash]*poolEntry),
		children: make(map[chainhash.Hash]*poolEntry),
	}

	for _, txIn := range tx.MsgTx().TxIn {
		if parent, ok := mp.pool[txIn.PreviousOutPoint.Hash]; ok {
			entry.parents[txIn.PreviousOutPoint.Hash] = parent
			parent.children[*hash] = entry
		}
		mp.outpoints[txIn.PreviousOutPoint] = tx
	}

	mp.pool[*hash] = entry
	mp.refreshAncestorState(entry)
	mp.touch()

	log.Debug().Stringer("txid", hash).Int64("fee", fee).Int64("vsize", size).
		Int64("ancestors", entry.desc.AncestorCount).Msg("Accepted transaction")
	return entry.desc, nil
}

// refreshAncestorState recomputes the package aggregates of entry from its
// in-pool ancestors.
func (mp *TxPool) refreshAncestorState(entry *poolEntry) {
	d := entry.desc
	d.SizeWithAncestors = d.Size
	d.FeesWithAncestors = d.Fee
	d.SigOpCostWithAncestors = d.SigOpCost
	d.AncestorCount = 1

	for _, anc := range collect(entry, func(e *poolEntry) map[chainhash.Hash]*poolEntry { return e.parents }) {
		d.SizeWithAncestors += anc.desc.Size
		d.FeesWithAncestors += anc.desc.Fee
		d.SigOpCostWithAncestors += anc.desc.SigOpCost
		d.AncestorCount++
	}
}

// collect walks the graph from entry along next and returns every entry
// reached, entry itself excluded.
func collect(entry *poolEntry, next func(*poolEntry) map[chainhash.Hash]*poolEntry) map[chainhash.Hash]*poolEntry {
	seen := make(map[chainhash.Hash]*poolEntry)
	stack := []*poolEntry{entry}
	for len(stack) > 0 {
		e := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for hash, n := range next(e) {
			if _, ok := seen[hash]; ok {
				continue
			}
			seen[hash] = n
			stack = append(stack, n)
		}
	}
	return seen
}

func sortedDescs(entries map[chainhash.Hash]*poolEntry) []*chaindata.TxDesc {
	descs := make([]*chaindata.TxDesc, 0, len(entries))
	for _, e := range entries {
		descs = append(descs, e.desc)
	}
	sort.Slice(descs, func(i, j int) bool { return descs[i].Seq < descs[j].Seq })
	return descs
}

// MiningDescs returns the descriptors of every pooled transaction ordered
// by ancestor score, best first. The caller must hold RLock.
func (mp *TxPool) MiningDescs() []*chaindata.TxDesc {
	descs := make([]*chaindata.TxDesc, 0, len(mp.pool))
	for _, e := range mp.pool {
		descs = append(descs, e.desc)
	}
	sort.Slice(descs, func(i, j int) bool {
		return chaindata.AncestorScoreLess(descs[i], descs[j])
	})
	return descs
}

// Ancestors returns the in-pool ancestors of the transaction in arrival
// order. The caller must hold RLock.
func (mp *TxPool) Ancestors(hash *chainhash.Hash) []*chaindata.TxDesc {
	entry, ok := mp.pool[*hash]
	if !ok {
		return nil
	}
	return sortedDescs(collect(entry, func(e *poolEntry) map[chainhash.Hash]*poolEntry { return e.parents }))
}

// Descendants returns the in-pool descendants of the transaction in arrival
// order. The caller must hold RLock.
func (mp *TxPool) Descendants(hash *chainhash.Hash) []*chaindata.TxDesc {
	entry, ok := mp.pool[*hash]
	if !ok {
		return nil
	}
	return sortedDescs(collect(entry, func(e *poolEntry) map[chainhash.Hash]*poolEntry { return e.children }))
}

// RemoveTransaction removes tx from the pool. When removeRedeemers is set,
// every in-pool descendant is removed as well, otherwise descendants stay
// and their aggregates are recomputed.
func (mp *TxPool) RemoveTransaction(tx *btcutil.Tx, removeRedeemers bool) {
	mp.mtx.Lock()
	mp.removeTransaction(tx.Hash(), removeRedeemers)
	mp.mtx.Unlock()
}

func (mp *TxPool) removeTransaction(hash *chainhash.Hash, removeRedeemers bool) {
	entry, ok := mp.pool[*hash]
	if !ok {
		return
	}

	descendants := collect(entry, func(e *poolEntry) map[chainhash.Hash]*poolEntry { return e.children })
	if removeRedeemers {
		for childHash := range entry.children {
			mp.removeTransaction(&childHash, true)
		}
		descendants = nil
	}

	for parentHash, parent := range entry.parents {
		delete(parent.children, *hash)
		delete(entry.parents, parentHash)
	}
	for childHash, child := range entry.children {
		delete(child.parents, *hash)
		delete(entry.children, childHash)
	}
	for _, txIn := range entry.desc.Tx.MsgTx().TxIn {
		delete(mp.outpoints, txIn.PreviousOutPoint)
	}
	delete(mp.pool, *hash)

	for _, d := range descendants {
		mp.refreshAncestorState(d)
	}
	mp.touch()
}

// RemoveDoubleSpends removes every pooled transaction spending an output
// spent by tx, together with their descendants.
func (mp *TxPool) RemoveDoubleSpends(tx *btcutil.Tx) {
	mp.mtx.Lock()
	defer mp.mtx.Unlock()

	for _, txIn := range tx.MsgTx().TxIn {
		if spender, ok := mp.outpoints[txIn.PreviousOutPoint]; ok && !spender.Hash().IsEqual(tx.Hash()) {
			mp.removeTransaction(spender.Hash(), true)
		}
	}
}

// ProcessBlock drops the transactions confirmed by block and every
// transaction conflicting with them.
func (mp *TxPool) ProcessBlock(block *btcutil.Block) {
	for _, tx := range block.Transactions()[1:] {
		mp.RemoveTransaction(tx, false)
		mp.RemoveDoubleSpends(tx)
	}
}
