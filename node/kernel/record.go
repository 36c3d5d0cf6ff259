/*
 * Copyright (c) 2022 The JaxNetwork developers
 * Use of this source code is governed by an ISC
 * license that can be found in the LICENSE file.
 */

package kernel

import (
	"math"
	"math/big"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"gitlab.com/xpchain/xpcd/types/chaincfg"
)

// KernelRecord is a stakeable output of the wallet together with the
// statistics shown to the staker.
type KernelRecord struct {
	TxID    string `csv:"txid"`
	Index   uint32 `csv:"vout"`
	Time    int64  `csv:"time"`
	Address string `csv:"address"`
	Value   int64  `csv:"value"`

	// the fields below are filled by Fill
	Age             int64   `csv:"age_days"`
	CoinDay         uint64  `csv:"coin_days"`
	ProbToMint      float64 `csv:"prob_per_second"`
	ProbToMintInDay float64 `csv:"prob_within_day"`
	PoSReward       int64   `csv:"reward"`
}

// DecomposeOutputs returns a record for every output of tx paying to one of
// the addresses accepted by isMine.
func DecomposeOutputs(tx *wire.MsgTx, blockTime int64, params *chaincfg.Params,
	isMine func(btcutil.Address) bool) []KernelRecord {
	hash := tx.TxHash()

	var records []KernelRecord
	for i, out := range tx.TxOut {
		_, addrs, _, err := txscript.ExtractPkScriptAddrs(out.PkScript, params.AddressParams)
		if err != nil || len(addrs) != 1 || !isMine(addrs[0]) {
			continue
		}

		records = append(records, KernelRecord{
			TxID:    hash.String(),
			Index:   uint32(i),
			Time:    blockTime,
			Address: addrs[0].EncodeAddress(),
			Value:   out.Value,
		})
	}
	return records
}

// Hash returns the id of the transaction holding the output.
func (r *KernelRecord) Hash() (*chainhash.Hash, error) {
	return chainhash.NewHashFromStr(r.TxID)
}

// AgeDays returns the age of the output in whole days.
func (r *KernelRecord) AgeDays(now time.Time) int64 {
	return (now.Unix() - r.Time) / chaincfg.SecondsPerDay
}

// CoinDays returns the coin-day weight the output would have in a kernel
// checked at now.
func (r *KernelRecord) CoinDays(params *chaincfg.Params, now time.Time) uint64 {
	weight := CoinDayWeight(r.Value, TimeWeight(params, now.Unix()-r.Time))
	return weight.Uint64()
}

// ProbToMintStake returns the probability that a single kernel check of the
// output, timeOffset seconds after now, meets a target of the given
// difficulty.
func (r *KernelRecord) ProbToMintStake(params *chaincfg.Params, now time.Time, difficulty float64,
	timeOffset int64) float64 {
	if difficulty <= 0 {
		return 0
	}

	weight := CoinDayWeight(r.Value, TimeWeight(params, now.Unix()-r.Time+timeOffset))
	coinDays, _ := new(big.Float).SetInt(weight).Float64()

	probability := coinDays / (math.Pow(2, 32) * difficulty)
	if probability > 1 {
		return 1
	}
	return probability
}

// ProbToMintWithinMinutes returns the probability of minting with the output
// at least once within the next minutes, checking one kernel per second.
func (r *KernelRecord) ProbToMintWithinMinutes(params *chaincfg.Params, now time.Time,
	difficulty float64, minutes int) float64 {
	if minutes <= 0 {
		return 0
	}

	days := minutes / (60 * 24)
	rest := minutes % (60 * 24)

	prob := 1.0
	for i := 0; i < days; i++ {
		p := r.ProbToMintStake(params, now, difficulty, int64(i)*chaincfg.SecondsPerDay)
		prob *= math.Pow(1-p, chaincfg.SecondsPerDay)
	}

	p := r.ProbToMintStake(params, now, difficulty, int64(days)*chaincfg.SecondsPerDay)
	prob *= math.Pow(1-p, float64(60*rest))

	return 1 - prob
}

// ProofOfStakeReward returns the reward of minting with the output minutes
// after now.
func (r *KernelRecord) ProofOfStakeReward(params *chaincfg.Params, height int32, now time.Time,
	minutes int) int64 {
	return params.ProofOfStakeReward(height, r.Value, now.Unix()-r.Time+int64(minutes)*60)
}

// Fill computes the statistics of the record at now for the given tip height
// and stake difficulty.
func (r *KernelRecord) Fill(params *chaincfg.Params, height int32, now time.Time, difficulty float64) {
	r.Age = r.AgeDays(now)
	r.CoinDay = r.CoinDays(params, now)
	r.ProbToMint = r.ProbToMintStake(params, now, difficulty, 0)
	r.ProbToMintInDay = r.ProbToMintWithinMinutes(params, now, difficulty, 60*24)
	r.PoSReward = r.ProofOfStakeReward(params, height, now, 0)
}
