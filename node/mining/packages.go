// Copyright (c) 2022 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mining

import (
	"container/heap"
	"math/big"
	"sort"
	"time"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"gitlab.com/xpchain/xpcd/node/chaindata"
	"gitlab.com/xpchain/xpcd/types/chaincfg"
)

const (
	// maxConsecutiveFailures bounds the attempts to fill a nearly full
	// block.
	maxConsecutiveFailures = 1000

	// nearlyFullWeight is the free weight below which a block counts as
	// nearly full.
	nearlyFullWeight = 4000
)

// FeeForSize returns the fee the rate, in base units per 1000 bytes,
// requires from size bytes. A positive rate never requires less than one
// unit.
func FeeForSize(rate, size int64) int64 {
	fee := new(big.Int).Mul(big.NewInt(rate), big.NewInt(size))
	fee.Quo(fee, big.NewInt(1000))
	if !fee.IsInt64() {
		return int64(^uint64(0) >> 1)
	}
	if fee.Sign() == 0 && size != 0 && rate > 0 {
		return 1
	}
	return fee.Int64()
}

// modifiedEntry is a mempool entry some ancestors of which are already in
// the block. Its aggregates only count the ancestors still outside.
type modifiedEntry struct {
	desc                   *chaindata.TxDesc
	sizeWithAncestors      int64
	feesWithAncestors      int64
	sigOpCostWithAncestors int64
	index                  int
}

func (e *modifiedEntry) better(o *modifiedEntry) bool {
	if cmp := chaindata.CompareFeeRate(e.feesWithAncestors, e.sizeWithAncestors,
		o.feesWithAncestors, o.sizeWithAncestors); cmp != 0 {
		return cmp > 0
	}
	return e.desc.Seq < o.desc.Seq
}

// modifiedIndex is a max-heap of modified entries by ancestor feerate with
// lookup by transaction hash.
type modifiedIndex struct {
	entries []*modifiedEntry
	byHash  map[chainhash.Hash]*modifiedEntry
}

func newModifiedIndex() *modifiedIndex {
	return &modifiedIndex{byHash: make(map[chainhash.Hash]*modifiedEntry)}
}

func (m *modifiedIndex) Len() int           { return len(m.entries) }
func (m *modifiedIndex) Less(i, j int) bool { return m.entries[i].better(m.entries[j]) }
func (m *modifiedIndex) Swap(i, j int) {
	m.entries[i], m.entries[j] = m.entries[j], m.entries[i]
	m.entries[i].index = i
	m.entries[j].index = j
}

func (m *modifiedIndex) Push(x interface{}) {
	e := x.(*modifiedEntry)
	e.index = len(m.entries)
	m.entries = append(m.entries, e)
}

func (m *modifiedIndex) Pop() interface{} {
	n := len(m.entries)
	e := m.entries[n-1]
	m.entries[n-1] = nil
	m.entries = m.entries[:n-1]
	e.index = -1
	return e
}

func (m *modifiedIndex) peek() *modifiedEntry {
	if len(m.entries) == 0 {
		return nil
	}
	return m.entries[0]
}

func (m *modifiedIndex) get(hash *chainhash.Hash) (*modifiedEntry, bool) {
	e, ok := m.byHash[*hash]
	return e, ok
}

func (m *modifiedIndex) remove(hash *chainhash.Hash) {
	e, ok := m.byHash[*hash]
	if !ok {
		return
	}
	heap.Remove(m, e.index)
	delete(m.byHash, *hash)
}

// subtractAncestor updates the entry of desc for the inclusion of its
// ancestor added.
func (m *modifiedIndex) subtractAncestor(desc, added *chaindata.TxDesc) {
	e, ok := m.byHash[*desc.Tx.Hash()]
	if !ok {
		e = &modifiedEntry{
			desc:                   desc,
			sizeWithAncestors:      desc.SizeWithAncestors,
			feesWithAncestors:      desc.FeesWithAncestors,
			sigOpCostWithAncestors: desc.SigOpCostWithAncestors,
		}
		e.sizeWithAncestors -= added.Size
		e.feesWithAncestors -= added.Fee
		e.sigOpCostWithAncestors -= added.SigOpCost
		heap.Push(m, e)
		m.byHash[*desc.Tx.Hash()] = e
		return
	}

	e.sizeWithAncestors -= added.Size
	e.feesWithAncestors -= added.Fee
	e.sigOpCostWithAncestors -= added.SigOpCost
	heap.Fix(m, e.index)
}

// selectionState tracks the resources used by one block under
// construction.
type selectionState struct {
	inBlock         map[chainhash.Hash]struct{}
	spent           map[wire.OutPoint]struct{}
	blockWeight     int64
	blockSigOpsCost int64
	txCount         int
	totalFees       int64

	txs        []*btcutil.Tx
	fees       []int64
	sigOpCosts []int64

	// packaging parameters
	height         int32
	lockTimeCutoff time.Time
	includeWitness bool
	maxWeight      int64
	maxSigOpsCost  int64
	minFeeRate     int64
	printPriority  bool
}

// reset clears the state and reserves room for the coinbase.
func (s *selectionState) reset() {
	s.inBlock = make(map[chainhash.Hash]struct{})
	s.spent = make(map[wire.OutPoint]struct{})
	s.blockWeight = chaincfg.BlockReserveWeight
	s.blockSigOpsCost = chaincfg.BlockReserveSigOpsCost
	s.txCount = 0
	s.totalFees = 0
	s.txs = nil
	s.fees = nil
	s.sigOpCosts = nil
}

// testPackage reports whether a package of the given virtual size and sigop
// cost still fits in the block.
func (s *selectionState) testPackage(packageSize, packageSigOpsCost int64) bool {
	if s.blockWeight+blockchain.WitnessScaleFactor*packageSize >= s.maxWeight {
		return false
	}
	if s.blockSigOpsCost+packageSigOpsCost >= s.maxSigOpsCost {
		return false
	}
	return true
}

// testPackageTransactions checks the finality of every transaction of the
// package, that witness transactions may be included and that no output
// spent by the block is spent again.
func (s *selectionState) testPackageTransactions(pkg []*chaindata.TxDesc) bool {
	for _, desc := range pkg {
		if !chaindata.IsFinalizedTransaction(desc.Tx, s.height, s.lockTimeCutoff) {
			return false
		}
		if !s.includeWitness && desc.Tx.HasWitness() {
			return false
		}
		if s.conflicts(desc.Tx) {
			return false
		}
	}
	return true
}

// reserveInputs marks the outputs spent by tx as taken by the block.
func (s *selectionState) reserveInputs(tx *btcutil.Tx) {
	for _, txIn := range tx.MsgTx().TxIn {
		s.spent[txIn.PreviousOutPoint] = struct{}{}
	}
}

// conflicts reports whether tx spends an output already spent by the block.
func (s *selectionState) conflicts(tx *btcutil.Tx) bool {
	for _, txIn := range tx.MsgTx().TxIn {
		if _, ok := s.spent[txIn.PreviousOutPoint]; ok {
			return true
		}
	}
	return false
}

func (s *selectionState) addToBlock(desc *chaindata.TxDesc) {
	s.txs = append(s.txs, desc.Tx)
	s.fees = append(s.fees, desc.Fee)
	s.sigOpCosts = append(s.sigOpCosts, desc.SigOpCost)
	s.blockWeight += desc.Weight
	s.txCount++
	s.blockSigOpsCost += desc.SigOpCost
	s.totalFees += desc.Fee
	s.inBlock[*desc.Tx.Hash()] = struct{}{}
	s.reserveInputs(desc.Tx)

	if s.printPriority {
		log.Info().Int64("fee_per_kb", desc.Fee*1000/desc.Size).
			Stringer("txid", desc.Tx.Hash()).Msg("Added transaction to block")
	}
}

// updatePackagesForAdded moves every descendant of the added transactions
// into the modified index with aggregates excluding them. It returns the
// number of descendants updated.
func (s *selectionState) updatePackagesForAdded(source TxSource, added []*chaindata.TxDesc,
	modified *modifiedIndex) int {
	addedSet := make(map[chainhash.Hash]struct{}, len(added))
	for _, desc := range added {
		addedSet[*desc.Tx.Hash()] = struct{}{}
	}

	updated := 0
	for _, desc := range added {
		for _, child := range source.Descendants(desc.Tx.Hash()) {
			if _, ok := addedSet[*child.Tx.Hash()]; ok {
				continue
			}
			updated++
			modified.subtractAncestor(child, desc)
		}
	}
	return updated
}

// addPackageTxs selects transactions from source by ancestor feerate. A
// transaction is only added together with all of its ancestors not yet in
// the block. It returns the number of packages selected and the number of
// descendant updates done.
func (s *selectionState) addPackageTxs(source TxSource) (packagesSelected, descendantsUpdated int) {
	modified := newModifiedIndex()
	failed := make(map[chainhash.Hash]struct{})

	descs := source.MiningDescs()

	// Entries double spending an output reserved before the selection,
	// the coinstake input, never fit together with their descendants.
	for _, desc := range descs {
		if _, ok := s.inBlock[*desc.Tx.Hash()]; ok || !s.conflicts(desc.Tx) {
			continue
		}
		failed[*desc.Tx.Hash()] = struct{}{}
		for _, child := range source.Descendants(desc.Tx.Hash()) {
			failed[*child.Tx.Hash()] = struct{}{}
		}
	}

	consecutiveFailed := 0
	mi := 0

	for mi < len(descs) || modified.Len() > 0 {
		// First try to find a new transaction in the mempool order to
		// evaluate.
		if mi < len(descs) {
			hash := descs[mi].Tx.Hash()
			_, inModified := modified.get(hash)
			_, inBlock := s.inBlock[*hash]
			_, isFailed := failed[*hash]
			if inModified || inBlock || isFailed {
				mi++
				continue
			}
		}

		// Now that mi is not stale, determine which transaction to
		// evaluate: the next entry of the mempool order, or the best
		// entry of the modified index.
		var (
			desc          *chaindata.TxDesc
			usingModified bool
			best          = modified.peek()
		)

		packageSize, packageFees, packageSigOpsCost := int64(0), int64(0), int64(0)
		if mi >= len(descs) {
			usingModified = true
		} else {
			cur := descs[mi]
			if best != nil && chaindata.CompareFeeRate(best.feesWithAncestors, best.sizeWithAncestors,
				cur.FeesWithAncestors, cur.SizeWithAncestors) > 0 {
				usingModified = true
			} else {
				desc = cur
				packageSize = cur.SizeWithAncestors
				packageFees = cur.FeesWithAncestors
				packageSigOpsCost = cur.SigOpCostWithAncestors
				mi++
			}
		}
		if usingModified {
			desc = best.desc
			packageSize = best.sizeWithAncestors
			packageFees = best.feesWithAncestors
			packageSigOpsCost = best.sigOpCostWithAncestors
		}
		hash := desc.Tx.Hash()

		if packageFees < FeeForSize(s.minFeeRate, packageSize) {
			// Everything else we might consider has a lower fee rate.
			return packagesSelected, descendantsUpdated
		}

		if !s.testPackage(packageSize, packageSigOpsCost) {
			if usingModified {
				// The best entry of the modified index is always looked
				// at, failed entries must leave it.
				modified.remove(hash)
				failed[*hash] = struct{}{}
			}

			consecutiveFailed++
			if consecutiveFailed > maxConsecutiveFailures &&
				s.blockWeight > s.maxWeight-nearlyFullWeight {
				// Give up if we're close to full and haven't succeeded
				// in a while.
				break
			}
			continue
		}

		pkg := []*chaindata.TxDesc{desc}
		for _, anc := range source.Ancestors(hash) {
			if _, ok := s.inBlock[*anc.Tx.Hash()]; !ok {
				pkg = append(pkg, anc)
			}
		}

		if !s.testPackageTransactions(pkg) {
			if usingModified {
				modified.remove(hash)
				failed[*hash] = struct{}{}
			}
			continue
		}

		// This transaction will make it in; reset the failed counter.
		consecutiveFailed = 0

		// A parent always has fewer ancestors than its children, so the
		// ancestor count is a valid block order.
		sort.SliceStable(pkg, func(i, j int) bool {
			if pkg[i].AncestorCount != pkg[j].AncestorCount {
				return pkg[i].AncestorCount < pkg[j].AncestorCount
			}
			return pkg[i].Seq < pkg[j].Seq
		})

		for _, entry := range pkg {
			s.addToBlock(entry)
			modified.remove(entry.Tx.Hash())
		}

		packagesSelected++
		descendantsUpdated += s.updatePackagesForAdded(source, pkg, modified)
	}

	return packagesSelected, descendantsUpdated
}
