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
	// mainPowLimit is the highest proof of work value a block can have for
	// the main network. It is the value 2^224 - 1.
	mainPowLimit            = new(big.Int).Sub(new(big.Int).Lsh(bigOne, 224), bigOne)
	mainPowLimitBits uint32 = 0x1d00ffff
)

// MainNetParams defines the network parameters for the main XPChain network.
var MainNetParams = Params{
	Name:        "mainnet",
	Net:         MainNet,
	DefaultPort: "8798",

	PowParams: PowParams{
		PowLimit:                 mainPowLimit,
		PowLimitBits:             mainPowLimitBits,
		TargetTimespan:           time.Hour * 24 * 14, // 14 days
		TargetTimePerBlock:       time.Minute,         // 1 minute
		RetargetAdjustmentFactor: 4,                   // 25% less, 400% more
		ReduceMinDifficulty:      false,
		MinDiffReductionTime:     0,
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

	// The miner confirmation window is defined as:
	//   target proof of work timespan / target proof of work spacing
	RuleChangeActivationThreshold: 19152, // 95% of MinerConfirmationWindow
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

	AddressParams: newAddressParams("mainnet", MainNet, "xpc", 76, 28, 128,
		[4]byte{0x04, 0x88, 0xad, 0xe4}, // starts with xprv
		[4]byte{0x04, 0x88, 0xb2, 0x1e}, // starts with xpub
	),

	genesis: genesisOpts{
		Timestamp: 1540301656,
		Nonce:     1280281997,
		Bits:      mainPowLimitBits,
	},
}
