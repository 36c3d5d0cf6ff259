/*
 * Copyright (c) 2022 The JaxNetwork developers
 * Use of this source code is governed by an ISC
 * license that can be found in the LICENSE file.
 */

package chaincfg

import (
	"math"
	"math/big"
	"time"

	"github.com/btcsuite/btcd/blockchain"
)

var (
	// regressionPowLimit is the highest proof of work value a block can
	// have for the regression test network. It is the value 2^255 - 1.
	regressionPowLimit            = new(big.Int).Sub(new(big.Int).Lsh(bigOne, 255), bigOne)
	regressionPowLimitBits uint32 = 0x207fffff
)

// RegressionNetParams defines the network parameters for the regression test
// network. Blocks are cheap to mine and the chain switches to proof-of-stake
// early, so it is used by tests and local setups.
var RegressionNetParams = Params{
	Name:        "regtest",
	Net:         RegTestNet,
	DefaultPort: "28798",

	PowParams: PowParams{
		PowLimit:                 regressionPowLimit,
		PowLimitBits:             regressionPowLimitBits,
		TargetTimespan:           time.Hour * 24 * 14, // 14 days
		TargetTimePerBlock:       time.Minute,         // 1 minute
		RetargetAdjustmentFactor: 4,                   // 25% less, 400% more
		ReduceMinDifficulty:      true,
		MinDiffReductionTime:     time.Minute * 2,
		NoRetargeting:            true,
	},

	StakeParams: StakeParams{
		SwitchHeight:       1680,
		StakeMinAge:        time.Second * 10,
		StakeMaxAge:        time.Hour * 24 * 100, // 100 days
		StakeRewardPercent: 5,
	},

	Policy: Policy{
		BlockMinFeeRate:    DefaultBlockMinFeeRate,
		MaxBlockWeight:     blockchain.MaxBlockWeight,
		MaxBlockSigOpsCost: blockchain.MaxBlockSigOpsCost,
	},

	SubsidyReductionInterval: 150,
	CoinbaseMaturity:         100,

	RuleChangeActivationThreshold: 108, // 75% for testchains
	MinerConfirmationWindow:       144,
	Deployments: [DefinedDeployments]ConsensusDeployment{
		DeploymentTestDummy: {
			BitNumber:  28,
			StartTime:  0,
			ExpireTime: math.MaxUint64,
		},
		DeploymentCSV: {
			BitNumber:  0,
			StartTime:  0,
			ExpireTime: math.MaxUint64,
		},
		DeploymentSegwit: {
			BitNumber:    1,
			AlwaysActive: true,
			ExpireTime:   math.MaxUint64,
		},
		DeploymentCheckDupTxIn: {
			BitNumber:    3,
			AlwaysActive: true,
			ExpireTime:   math.MaxUint64,
		},
		DeploymentBlockSignature: {
			BitNumber:    2,
			AlwaysActive: true,
			ExpireTime:   math.MaxUint64,
		},
	},

	AddressParams: newAddressParams("regtest", RegTestNet, "xpcrt", 138, 88, 239,
		[4]byte{0x04, 0x35, 0x83, 0x94}, // starts with tprv
		[4]byte{0x04, 0x35, 0x87, 0xcf}, // starts with tpub
	),

	genesis: genesisOpts{
		Timestamp: 1540301856,
		Nonce:     0,
		Bits:      regressionPowLimitBits,
	},
}
