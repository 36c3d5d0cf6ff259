/*
 * Copyright (c) 2022 The JaxNetwork developers
 * Use of this source code is governed by an ISC
 * license that can be found in the LICENSE file.
 */

package chaincfg

const (
	// CoinUnits is the number of base units in one XPC.
	CoinUnits = 1e4

	// MaxCoinAmount is the maximum transaction amount allowed in base units.
	MaxCoinAmount = 21e6 * CoinUnits

	// BaseSubsidy is the proof-of-work reward of the first halving era.
	BaseSubsidy = 50 * CoinUnits

	SecondsPerDay  = 24 * 60 * 60
	SecondsPerYear = 365 * SecondsPerDay
)

const (
	// BlockReserveWeight is the weight kept free for the coinbase while the
	// assembler selects mempool packages.
	BlockReserveWeight = 4000

	// BlockReserveSigOpsCost is the sigop cost kept free for the coinbase.
	BlockReserveSigOpsCost = 400

	// DefaultBlockMinFeeRate is the minimum fee in base units per 1000
	// bytes a package needs to be included in a block template.
	DefaultBlockMinFeeRate = 1
)
