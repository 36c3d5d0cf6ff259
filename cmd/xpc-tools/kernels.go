// Copyright (c) 2022 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"io"
	"sort"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"
	"gitlab.com/xpchain/xpcd/node/chaindata"
	"gitlab.com/xpchain/xpcd/node/kernel"
	"gitlab.com/xpchain/xpcd/types/chaincfg"
	"gitlab.com/xpchain/xpcd/types/pow"
)

// chainReader is the part of the chain store the kernel report reads.
type chainReader interface {
	BestSnapshot() *chaindata.BestState
	BlockByHeight(height int32) (*btcutil.Block, error)
	HeaderByHeight(height int32) (*wire.BlockHeader, error)
}

// collectKernels walks the main chain and returns the unspent outputs paying
// to addrs, with their staking statistics at now.
func collectKernels(chain chainReader, params *chaincfg.Params, addrs []btcutil.Address,
	now time.Time) ([]kernel.KernelRecord, error) {
	mine := make(map[string]struct{}, len(addrs))
	for _, addr := range addrs {
		mine[addr.EncodeAddress()] = struct{}{}
	}
	isMine := func(addr btcutil.Address) bool {
		_, ok := mine[addr.EncodeAddress()]
		return ok
	}

	best := chain.BestSnapshot()
	unspent := make(map[wire.OutPoint]kernel.KernelRecord)
	for height := int32(0); height <= best.Height; height++ {
		block, err := chain.BlockByHeight(height)
		if err != nil {
			return nil, errors.Wrapf(err, "block at height %d", height)
		}
		blockTime := block.MsgBlock().Header.Timestamp.Unix()

		for _, tx := range block.Transactions() {
			msgTx := tx.MsgTx()
			for _, txIn := range msgTx.TxIn {
				delete(unspent, txIn.PreviousOutPoint)
			}
			for _, record := range kernel.DecomposeOutputs(msgTx, blockTime, params, isMine) {
				unspent[wire.OutPoint{Hash: *tx.Hash(), Index: record.Index}] = record
			}
		}
	}

	bits, err := nextStakeBits(chain, params, best.Height)
	if err != nil {
		return nil, err
	}
	difficulty := pow.Difficulty(bits)

	records := make([]kernel.KernelRecord, 0, len(unspent))
	for _, record := range unspent {
		record.Fill(params, best.Height, now, difficulty)
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].Time != records[j].Time {
			return records[i].Time < records[j].Time
		}
		if records[i].TxID != records[j].TxID {
			return records[i].TxID < records[j].TxID
		}
		return records[i].Index < records[j].Index
	})
	return records, nil
}

func nextStakeBits(chain chainReader, params *chaincfg.Params, height int32) (uint32, error) {
	last, err := chain.HeaderByHeight(height)
	if err != nil {
		return 0, err
	}
	var prev *wire.BlockHeader
	if height > 0 {
		if prev, err = chain.HeaderByHeight(height - 1); err != nil {
			return 0, err
		}
	}
	return pow.CalcNextStakeBits(params, last, prev), nil
}

func writeKernelsCSV(w io.Writer, records []kernel.KernelRecord) error {
	return gocsv.Marshal(records, w)
}
