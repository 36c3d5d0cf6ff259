// Copyright (c) 2015-2017 The btcsuite developers
// Copyright (c) 2022 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chainstore

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/goleveldb/leveldb"
	"github.com/btcsuite/goleveldb/leveldb/util"
	"gitlab.com/xpchain/xpcd/node/chaindata"
)

// Key prefixes of the chain index. Heights are serialized big-endian so the
// header keys iterate in chain order.
var (
	// headerPrefix + height -> serialized header
	headerPrefix = []byte("h")

	// heightPrefix + block hash -> height
	heightPrefix = []byte("i")

	// blockPrefix + block hash -> serialized block
	blockPrefix = []byte("k")

	// txPrefix + txid -> serialized TxLocation
	txPrefix = []byte("t")

	// chainStateKey -> tip hash | total transactions
	chainStateKey = []byte("chainstate")
)

// txLocationSize is the size of a serialized TxLocation.
const txLocationSize = chainhash.HashSize + 4*4

func prefixedKey(prefix []byte, suffix []byte) []byte {
	key := make([]byte, len(prefix)+len(suffix))
	copy(key, prefix)
	copy(key[len(prefix):], suffix)
	return key
}

func heightKey(height int32) []byte {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(height))
	return prefixedKey(headerPrefix, buf[:])
}

// dbError turns a failure of the backing store into a transient rule error.
func dbError(err error, what string) error {
	str := fmt.Sprintf("failed to %s: %v", what, err)
	return chaindata.NewRuleError(chaindata.ErrStorage, str)
}

// serializeTxLocation returns the index record of loc:
//
//	block hash | height u32 | block time u32 | offset u32 | length u32
func serializeTxLocation(loc *chaindata.TxLocation) []byte {
	buf := make([]byte, txLocationSize)
	copy(buf, loc.BlockHash[:])
	offset := chainhash.HashSize
	binary.LittleEndian.PutUint32(buf[offset:], uint32(loc.BlockHeight))
	binary.LittleEndian.PutUint32(buf[offset+4:], loc.BlockTime)
	binary.LittleEndian.PutUint32(buf[offset+8:], loc.TxOffset)
	binary.LittleEndian.PutUint32(buf[offset+12:], loc.TxLen)
	return buf
}

func deserializeTxLocation(buf []byte) (*chaindata.TxLocation, error) {
	if len(buf) != txLocationSize {
		return nil, fmt.Errorf("corrupt transaction location of %d bytes", len(buf))
	}

	loc := new(chaindata.TxLocation)
	copy(loc.BlockHash[:], buf)
	offset := chainhash.HashSize
	loc.BlockHeight = int32(binary.LittleEndian.Uint32(buf[offset:]))
	loc.BlockTime = binary.LittleEndian.Uint32(buf[offset+4:])
	loc.TxOffset = binary.LittleEndian.Uint32(buf[offset+8:])
	loc.TxLen = binary.LittleEndian.Uint32(buf[offset+12:])
	return loc, nil
}

// chainState is the persisted tip of the main chain.
type chainState struct {
	hash      chainhash.Hash
	totalTxns uint64
}

func serializeChainState(state chainState) []byte {
	buf := make([]byte, chainhash.HashSize+8)
	copy(buf, state.hash[:])
	binary.LittleEndian.PutUint64(buf[chainhash.HashSize:], state.totalTxns)
	return buf
}

func deserializeChainState(buf []byte) (chainState, error) {
	var state chainState
	if len(buf) != chainhash.HashSize+8 {
		return state, fmt.Errorf("corrupt chain state of %d bytes", len(buf))
	}
	copy(state.hash[:], buf)
	state.totalTxns = binary.LittleEndian.Uint64(buf[chainhash.HashSize:])
	return state, nil
}

// dbPutBlock adds block, connected at height, to the batch together with
// the locations of its transactions.
func dbPutBlock(batch *leveldb.Batch, block *btcutil.Block, height int32) error {
	msgBlock := block.MsgBlock()
	raw, err := block.Bytes()
	if err != nil {
		return err
	}

	var header bytes.Buffer
	if err := msgBlock.Header.Serialize(&header); err != nil {
		return err
	}

	hash := block.Hash()
	var heightBuf [4]byte
	binary.BigEndian.PutUint32(heightBuf[:], uint32(height))

	batch.Put(heightKey(height), header.Bytes())
	batch.Put(prefixedKey(heightPrefix, hash[:]), heightBuf[:])
	batch.Put(prefixedKey(blockPrefix, hash[:]), raw)

	offsets := chaindata.TxOffsets(msgBlock)
	for i, tx := range block.Transactions() {
		loc := &chaindata.TxLocation{
			BlockHash:   *hash,
			BlockHeight: height,
			BlockTime:   uint32(msgBlock.Header.Timestamp.Unix()),
			TxOffset:    offsets[i],
			TxLen:       uint32(tx.MsgTx().SerializeSize()),
		}
		batch.Put(prefixedKey(txPrefix, tx.Hash()[:]), serializeTxLocation(loc))
	}
	return nil
}

// dbFetchTransaction reads the transaction at loc out of the stored block.
func dbFetchTransaction(db *leveldb.DB, loc *chaindata.TxLocation) (*wire.MsgTx, error) {
	raw, err := db.Get(prefixedKey(blockPrefix, loc.BlockHash[:]), nil)
	if err != nil {
		return nil, err
	}

	end := uint64(loc.TxOffset) + uint64(loc.TxLen)
	if end > uint64(len(raw)) {
		return nil, fmt.Errorf("transaction region %d:%d is out of block %v of %d bytes",
			loc.TxOffset, end, loc.BlockHash, len(raw))
	}

	var tx wire.MsgTx
	if err := tx.Deserialize(bytes.NewReader(raw[loc.TxOffset:end])); err != nil {
		return nil, err
	}
	return &tx, nil
}

// dbFetchBlock reads a stored block.
func dbFetchBlock(db *leveldb.DB, hash *chainhash.Hash) (*btcutil.Block, error) {
	raw, err := db.Get(prefixedKey(blockPrefix, hash[:]), nil)
	if err != nil {
		return nil, err
	}
	return btcutil.NewBlockFromBytes(raw)
}

// dbLoadHeaders returns the main chain headers in height order.
func dbLoadHeaders(db *leveldb.DB) ([]*wire.BlockHeader, error) {
	iter := db.NewIterator(util.BytesPrefix(headerPrefix), nil)
	defer iter.Release()

	var headers []*wire.BlockHeader
	for iter.Next() {
		height := int32(binary.BigEndian.Uint32(iter.Key()[len(headerPrefix):]))
		if height != int32(len(headers)) {
			return nil, fmt.Errorf("header index has a gap at height %d", len(headers))
		}

		header := new(wire.BlockHeader)
		if err := header.Deserialize(bytes.NewReader(iter.Value())); err != nil {
			return nil, err
		}
		headers = append(headers, header)
	}
	return headers, iter.Error()
}
