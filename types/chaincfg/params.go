/*
 * Copyright (c) 2022 The JaxNetwork developers
 * Use of this source code is governed by an ISC
 * license that can be found in the LICENSE file.
 */

package chaincfg

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	btcdcfg "github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

var bigOne = big.NewInt(1)

// Network magic values, little-endian encoding of the message start bytes.
const (
	MainNet    wire.BitcoinNet = 0xc0ba87fc
	TestNet    wire.BitcoinNet = 0xc1bb87fc
	RegTestNet wire.BitcoinNet = 0xc1bc87fc
)

// DeploymentID identifies a soft fork deployment signalled through the block
// version bits.
type DeploymentID int

const (
	DeploymentTestDummy DeploymentID = iota
	DeploymentCSV
	DeploymentSegwit
	DeploymentCheckDupTxIn
	DeploymentBlockSignature

	// DefinedDeployments is the number of currently defined deployments.
	// It must always come last since it is used to determine how many
	// defined deployments there currently are.
	DefinedDeployments
)

// ConsensusDeployment defines details related to a specific consensus rule
// change that is voted in.
type ConsensusDeployment struct {
	// BitNumber defines the specific bit number within the block version
	// this particular soft-fork deployment refers to.
	BitNumber uint8

	// StartTime is the median block time after which voting on the
	// deployment starts.
	StartTime uint64

	// ExpireTime is the median block time after which the attempted
	// deployment expires.
	ExpireTime uint64

	// AlwaysActive deployments are enforced from genesis and never
	// signalled.
	AlwaysActive bool
}

// PowParams are the proof-of-work difficulty rules.
type PowParams struct {
	// PowLimit defines the highest allowed proof of work value for a block
	// as a uint256.
	PowLimit *big.Int

	// PowLimitBits defines the highest allowed proof of work value for a
	// block in compact form.
	PowLimitBits uint32

	TargetTimespan           time.Duration
	TargetTimePerBlock       time.Duration
	RetargetAdjustmentFactor int64

	// ReduceMinDifficulty defines whether the network should reduce the
	// minimum required difficulty after a long enough period of time has
	// passed without finding a block.
	ReduceMinDifficulty  bool
	MinDiffReductionTime time.Duration

	// NoRetargeting keeps the difficulty of the previous block.
	NoRetargeting bool
}

// StakeParams are the proof-of-stake rules.
type StakeParams struct {
	// SwitchHeight is the last proof-of-work height, every block above it
	// must be minted with a coinstake.
	SwitchHeight int32

	// StakeMinAge is the age an output needs before its kernel can be
	// checked. The kernel weight grows from zero at this age.
	StakeMinAge time.Duration

	// StakeMaxAge caps the age counted into the kernel weight.
	StakeMaxAge time.Duration

	// StakeRewardPercent is the yearly interest paid to a staked amount.
	StakeRewardPercent int64
}

// Policy holds the block template limits.
type Policy struct {
	BlockMinFeeRate    int64
	MaxBlockWeight     int64
	MaxBlockSigOpsCost int64
}

// Params defines a XPChain network by its parameters.
type Params struct {
	// Name defines a human-readable identifier for the network.
	Name string

	// Net defines the magic bytes used to identify the network.
	Net         wire.BitcoinNet
	DefaultPort string

	PowParams
	StakeParams
	Policy

	GenesisBlock *wire.MsgBlock
	GenesisHash  *chainhash.Hash

	// SubsidyReductionInterval is the interval of blocks before the
	// proof-of-work subsidy is halved.
	SubsidyReductionInterval int32
	CoinbaseMaturity         uint16

	// RuleChangeActivationThreshold is the number of blocks in a threshold
	// state retarget window for which a positive vote for a rule change
	// must be cast in order to lock in a rule change.
	RuleChangeActivationThreshold uint32
	MinerConfirmationWindow       uint32
	Deployments                   [DefinedDeployments]ConsensusDeployment

	// AddressParams carries the address encoding magics in the form the
	// btcutil address codecs consume.
	AddressParams *btcdcfg.Params

	genesis genesisOpts
}

// IsPoSHeight reports whether the block at height must carry a coinstake.
func (p *Params) IsPoSHeight(height int32) bool {
	return height > p.SwitchHeight
}

// CalcBlockSubsidy returns the proof-of-work subsidy for a block at height.
func (p *Params) CalcBlockSubsidy(height int32) int64 {
	if p.SubsidyReductionInterval == 0 {
		return int64(BaseSubsidy)
	}

	halvings := uint(height / p.SubsidyReductionInterval)
	if halvings >= 64 {
		return 0
	}
	return int64(BaseSubsidy) >> halvings
}

// ProofOfStakeReward returns the reward minted by a coinstake spending
// amount whose containing block is timeDelta seconds older than the new
// block. The age counted is capped by StakeMaxAge.
func (p *Params) ProofOfStakeReward(height int32, amount int64, timeDelta int64) int64 {
	if amount <= 0 || timeDelta <= 0 {
		return 0
	}

	maxAge := int64(p.StakeMaxAge / time.Second)
	if timeDelta > maxAge {
		timeDelta = maxAge
	}

	reward := new(big.Int).SetInt64(amount)
	reward.Mul(reward, big.NewInt(p.StakeRewardPercent))
	reward.Mul(reward, big.NewInt(timeDelta))
	reward.Div(reward, big.NewInt(100*SecondsPerYear))
	if !reward.IsInt64() || reward.Int64() > MaxCoinAmount {
		return MaxCoinAmount
	}
	return reward.Int64()
}

// ParamsForNet returns the parameters of the network named by tag. Accepted
// tags are mainnet, testnet and regtest.
func ParamsForNet(tag string) (*Params, error) {
	switch strings.ToLower(tag) {
	case "mainnet", "main", "":
		return &MainNetParams, nil
	case "testnet", "test":
		return &TestNetParams, nil
	case "regtest", "regression":
		return &RegressionNetParams, nil
	}
	return nil, fmt.Errorf("unknown network %q", tag)
}

// newAddressParams derives the btcd address parameters used to encode and
// decode XPChain addresses.
func newAddressParams(name string, net wire.BitcoinNet, hrp string, pkh, sh, wif byte,
	hdPriv, hdPub [4]byte) *btcdcfg.Params {
	return &btcdcfg.Params{
		Name:                    name,
		Net:                     net,
		Bech32HRPSegwit:         hrp,
		PubKeyHashAddrID:        pkh,
		ScriptHashAddrID:        sh,
		PrivateKeyID:            wif,
		WitnessPubKeyHashAddrID: 0x06,
		WitnessScriptHashAddrID: 0x0A,
		HDPrivateKeyID:          hdPriv,
		HDPublicKeyID:           hdPub,
	}
}

func init() {
	for _, p := range []*Params{&MainNetParams, &TestNetParams, &RegressionNetParams} {
		p.GenesisBlock = genesisBlock(p)
		hash := p.GenesisBlock.BlockHash()
		p.GenesisHash = &hash
		p.AddressParams.GenesisHash = &hash
		p.AddressParams.PowLimit = p.PowLimit
		p.AddressParams.PowLimitBits = p.PowLimitBits

		// segwit address decoding looks the hrp up in the registry.
		if err := btcdcfg.Register(p.AddressParams); err != nil {
			panic(fmt.Sprintf("failed to register network %s: %v", p.Name, err))
		}
	}
}
