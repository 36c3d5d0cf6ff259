/*
 * Copyright (c) 2022 The JaxNetwork developers
 * Use of this source code is governed by an ISC
 * license that can be found in the LICENSE file.
 */

package chaincfg

import (
	"math"
	"time"

	"github.com/btcsuite/btcd/blockchain"
)

// TestNetParams defines the network parameters for the public test network.
// It shares the proof-of-work limit and the stake ages of the main network.
var TestNetParams = Params{
	Name:        "testnet",
	Net:         TestNet,
	DefaultPort: "18798",

	PowParams: PowParams{
		PowLimit:                 mainPowLimit,
		PowLimitBits:             mainPowLimitBits,
		TargetTimespan:           time.Hour * 24 * 14, // 14 days
		TargetTimePerBlock:       time.Minute,         // 1 minute
		RetargetAdjustmentFactor: 4,                   // 25% less, 400% more
		ReduceMinDifficulty:      true,
		MinDiffReductionTime:     time.Minute * 2, // TargetTimePerBlock * 2
	},

	StakeParams: StakeParams{
		SwitchHeight:       10275,
		StakeMinAge:        time.Hour * 24 * 3,  // 3 days
		StakeMaxAge:        time.Hour * 24 * 60, // 60 days
		StakeRewardPercent: 5,
	},

	Policy: Policy{
		BlockMinFeeRate:    DefaultBlockMinFeeRate,
		MaxBlockWeight:     blockchain.MaxBlockWeight,
		MaxBlockSigOpsCost: blockchain.MaxBlockSigOpsCost,
	},

	SubsidyReductionInterval: 210000,
	CoinbaseMaturity:         100,

	RuleChangeActivationThreshold: 15120, // 75% for testchains
	MinerConfirmationWindow:       20160,
	Deployments: [DefinedDeployments]ConsensusDeployment{
		DeploymentTestDummy: {
			BitNumber:  28,
			StartTime:  1199145601, // January 1, 2008 UTC
			ExpireTime: 1230767999, // December 31, 2008 UTC
		},
		DeploymentCSV: {
			BitNumber:    0,
			AlwaysActive: true,
			ExpireTime:   math.MaxUint64,
		},
		DeploymentSegwit: {
			BitNumber:    1,
			AlwaysActive: true,
			ExpireTime:   math.MaxUint64,
		},
		DeploymentCheckDupTxIn: {
			BitNumber:  3,
			StartTime:  1554076800, // April 1, 2019 UTC
			ExpireTime: 1585699200,
		},
		DeploymentBlockSignature: {
			BitNumber:  2,
			StartTime:  1554076800, // April 1, 2019 UTC
			ExpireTime: 1585699200,
		},
	},

	AddressParams: newAddressParams("testnet", TestNet, "txpc", 138, 88, 239,
		[4]byte{0x04, 0x35, 0x83, 0x94}, // starts with tprv
		[4]byte{0x04, 0x35, 0x87, 0xcf}, // starts with tpub
	),

	genesis: genesisOpts{
		Timestamp: 1540301756,
		Nonce:     3632110353,
		Bits:      mainPowLimitBits,
	},
}
