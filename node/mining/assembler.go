// Copyright (c) 2014-2016 The btcsuite developers
// Copyright (c) 2022 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mining

import (
	"fmt"
	"sync"
	"time"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/pkg/errors"
	"gitlab.com/xpchain/xpcd/node/chaindata"
	"gitlab.com/xpchain/xpcd/node/stakepolicy"
	"gitlab.com/xpchain/xpcd/types/chaincfg"
	"gitlab.com/xpchain/xpcd/types/pow"
)

// Options are the block template limits set by the node operator.
type Options struct {
	// BlockMinFeeRate is the minimum fee in base units per 1000 bytes a
	// package must pay.
	BlockMinFeeRate int64 `yaml:"block_min_fee_rate" long:"blockminfeerate" description:"Minimum fee rate in base units per 1000 bytes of a mined package" validate:"gte=0"`

	// BlockMaxWeight is the weight the selected transactions may use.
	BlockMaxWeight int64 `yaml:"block_max_weight" long:"blockmaxweight" description:"Maximum block weight to be used when creating a block" validate:"gte=0"`

	// IncludeWitness allows transactions with witness data into
	// templates.
	IncludeWitness bool `yaml:"include_witness" long:"includewitness" description:"Mine transactions carrying witness data"`

	// PrintPriority logs every transaction added to a template.
	PrintPriority bool `yaml:"print_priority" long:"printpriority" description:"Log the fee rate of every transaction added to a block"`
}

// DefaultOptions returns the options of a node without mining settings.
func DefaultOptions(params *chaincfg.Params) Options {
	return Options{
		BlockMinFeeRate: params.BlockMinFeeRate,
		BlockMaxWeight:  params.MaxBlockWeight - chaincfg.BlockReserveWeight,
		IncludeWitness:  true,
	}
}

// clampedMaxWeight limits the configured weight to
// [BlockReserveWeight, MaxBlockWeight - BlockReserveWeight].
func (o Options) clampedMaxWeight(params *chaincfg.Params) int64 {
	weight := o.BlockMaxWeight
	if weight == 0 {
		weight = params.MaxBlockWeight - chaincfg.BlockReserveWeight
	}
	if weight < chaincfg.BlockReserveWeight {
		weight = chaincfg.BlockReserveWeight
	}
	if weight > params.MaxBlockWeight-chaincfg.BlockReserveWeight {
		weight = params.MaxBlockWeight - chaincfg.BlockReserveWeight
	}
	return weight
}

// Config is the set of collaborators of a BlockAssembler.
type Config struct {
	ChainParams *chaincfg.Params
	Chain       chaindata.ChainView
	TxSource    TxSource
	Options     Options
}

// BlockRequest describes the block to assemble.
type BlockRequest struct {
	// PayToScript receives the proof-of-work reward. A nil script makes
	// the coinbase redeemable by anyone.
	PayToScript []byte

	// Wallet signs proof-of-stake blocks and provides the reward
	// distribution.
	Wallet Wallet

	// ClaimTime is the timestamp of a proof-of-stake block, the one its
	// kernel was checked with.
	ClaimTime uint32

	// Bits is the target a proof-of-stake kernel was checked against.
	// Zero lets the assembler compute it.
	Bits uint32

	// CoinStake and CoinStakeFee are the stake claiming transaction of a
	// proof-of-stake block and the fee it pays.
	CoinStake    *wire.MsgTx
	CoinStakeFee int64

	// ExpectedTip, when set, makes the build fail with ErrStaleTip if
	// the chain moved on.
	ExpectedTip *chainhash.Hash
}

// BlockStats describes the last assembled block.
type BlockStats struct {
	Height             int32
	Weight             int64
	TxCount            int
	SigOpsCost         int64
	Fees               int64
	PackagesSelected   int
	DescendantsUpdated int
	Elapsed            time.Duration
}

// BlockAssembler builds block templates out of the transactions of a
// TxSource on top of the current tip of a ChainView.
type BlockAssembler struct {
	cfg Config

	// one template at a time.
	mtx sync.Mutex

	statsMtx  sync.RWMutex
	lastStats BlockStats
}

// NewBlockAssembler returns a block assembler for the given configuration.
func NewBlockAssembler(cfg Config) *BlockAssembler {
	return &BlockAssembler{cfg: cfg}
}

// Params returns the chain parameters of the assembler.
func (a *BlockAssembler) Params() *chaincfg.Params { return a.cfg.ChainParams }

// Chain returns the chain view the assembler builds on.
func (a *BlockAssembler) Chain() chaindata.ChainView { return a.cfg.Chain }

// TxSource returns the pool templates take their transactions from.
func (a *BlockAssembler) TxSource() TxSource { return a.cfg.TxSource }

// LastBlockStats returns the statistics of the last successful build.
func (a *BlockAssembler) LastBlockStats() BlockStats {
	a.statsMtx.RLock()
	defer a.statsMtx.RUnlock()
	return a.lastStats
}

// stakeInput is the checked coinstake of a proof-of-stake build.
type stakeInput struct {
	tx     *btcutil.Tx
	amount int64
	loc    *chaindata.TxLocation
}

// CreateNewBlock returns a new block template ready to be solved (PoW) or
// signed and ready to be submitted (PoS).
//
// The transactions of the template are selected by ancestor feerate: every
// transaction enters together with its unconfirmed ancestors, so the
// template is valid whatever the dependency graph of the source looks like.
//
// The chain lock and the source lock are held for the whole build.
func (a *BlockAssembler) CreateNewBlock(req BlockRequest) (*chaindata.BlockTemplate, error) {
	a.mtx.Lock()
	defer a.mtx.Unlock()

	chainLock := a.cfg.Chain.ChainLock()
	chainLock.Lock()
	defer chainLock.Unlock()

	a.cfg.TxSource.RLock()
	defer a.cfg.TxSource.RUnlock()

	start := time.Now()
	params := a.cfg.ChainParams

	best := a.cfg.Chain.BestSnapshot()
	if req.ExpectedTip != nil && !req.ExpectedTip.IsEqual(&best.Hash) {
		return nil, errors.Wrapf(ErrStaleTip, "expected tip %v, chain is at %v", req.ExpectedTip, best.Hash)
	}

	nextBlockHeight := best.Height + 1
	proofOfStake := params.IsPoSHeight(nextBlockHeight)

	var (
		blockTime time.Time
		stake     *stakeInput
	)
	if proofOfStake {
		var err error
		if stake, err = a.checkCoinStake(req.CoinStake); err != nil {
			return nil, err
		}
		blockTime = time.Unix(int64(req.ClaimTime), 0)
	} else {
		blockTime = MedianAdjustedTime(best, a.cfg.Chain.AdjustedTime())
	}

	state := &selectionState{
		height:         nextBlockHeight,
		lockTimeCutoff: best.MedianTime,
		includeWitness: a.cfg.Options.IncludeWitness && DeploymentActive(params, chaincfg.DeploymentSegwit),
		maxWeight:      a.cfg.Options.clampedMaxWeight(params),
		maxSigOpsCost:  params.MaxBlockSigOpsCost,
		minFeeRate:     a.cfg.Options.BlockMinFeeRate,
		printPriority:  a.cfg.Options.PrintPriority,
	}
	state.reset()

	// The coinstake takes slot 1, neither the mempool copy of it nor any
	// other spend of the staked output may be selected.
	if stake != nil {
		state.inBlock[*stake.tx.Hash()] = struct{}{}
		state.reserveInputs(stake.tx)
		state.blockWeight += blockchain.GetTransactionWeight(stake.tx)
		state.blockSigOpsCost += int64(blockchain.CountSigOps(stake.tx) * blockchain.WitnessScaleFactor)
	}

	packagesSelected, descendantsUpdated := state.addPackageTxs(a.cfg.TxSource)

	var (
		coinbaseTx       *btcutil.Tx
		maxCoinbaseValue int64
		validPayAddress  = req.PayToScript != nil
		totalFees        = state.totalFees
	)
	if stake == nil {
		maxCoinbaseValue = params.CalcBlockSubsidy(nextBlockHeight) + state.totalFees

		pkScript := req.PayToScript
		if pkScript == nil {
			var err error
			pkScript, err = txscript.NewScriptBuilder().AddOp(txscript.OP_TRUE).Script()
			if err != nil {
				return nil, err
			}
		}

		coinbaseScript, err := StandardCoinbaseScript(nextBlockHeight, 0)
		if err != nil {
			return nil, err
		}
		coinbaseTx = btcutil.NewTx(createCoinbaseTx(coinbaseScript,
			[]*wire.TxOut{wire.NewTxOut(maxCoinbaseValue, pkScript)}))
	} else {
		totalFees += req.CoinStakeFee
		validPayAddress = true

		age := blockTime.Unix() - int64(stake.loc.BlockTime)
		maxCoinbaseValue = params.ProofOfStakeReward(nextBlockHeight, stake.amount, age)

		coinbaseScript, err := StakeCoinbaseScript(nextBlockHeight)
		if err != nil {
			return nil, err
		}

		coinstake := stake.tx.MsgTx()
		outputs, err := rewardCommitment(req.Wallet, coinstake, maxCoinbaseValue, uint32(blockTime.Unix()))
		if err != nil {
			log.Warn().Err(err).Msg("Reward distribution unavailable, paying the reward to the coinstake")
			outputs = []*wire.TxOut{wire.NewTxOut(maxCoinbaseValue, coinstake.TxOut[0].PkScript)}
		}
		coinbaseTx = btcutil.NewTx(createCoinbaseTx(coinbaseScript, outputs))
	}

	coinbaseSigOpCost := int64(blockchain.CountSigOps(coinbaseTx) * blockchain.WitnessScaleFactor)

	blockTxns := make([]*btcutil.Tx, 0, len(state.txs)+2)
	fees := make([]int64, 0, len(state.txs)+2)
	sigOpCosts := make([]int64, 0, len(state.txs)+2)

	blockTxns = append(blockTxns, coinbaseTx)
	fees = append(fees, -totalFees)
	sigOpCosts = append(sigOpCosts, coinbaseSigOpCost)
	if stake != nil {
		blockTxns = append(blockTxns, stake.tx)
		fees = append(fees, req.CoinStakeFee)
		sigOpCosts = append(sigOpCosts, int64(blockchain.CountSigOps(stake.tx)*blockchain.WitnessScaleFactor))
	}
	blockTxns = append(blockTxns, state.txs...)
	fees = append(fees, state.fees...)
	sigOpCosts = append(sigOpCosts, state.sigOpCosts...)

	// IncludeWitness only filters the source, a witness coinstake still
	// needs the commitment.
	var witnessCommitment []byte
	for _, tx := range blockTxns {
		if tx.HasWitness() {
			witnessCommitment = addWitnessCommitment(coinbaseTx, blockTxns)
			break
		}
	}

	lastHeader, err := a.cfg.Chain.HeaderByHeight(best.Height)
	if err != nil {
		return nil, err
	}

	var msgBlock wire.MsgBlock
	msgBlock.Header = wire.BlockHeader{
		Version:    ComputeBlockVersion(params, best.MedianTime),
		PrevBlock:  best.Hash,
		MerkleRoot: chaindata.MerkleRoot(blockTxns),
		Timestamp:  blockTime,
	}
	for _, tx := range blockTxns {
		msgBlock.AddTransaction(tx.MsgTx())
	}

	if stake == nil {
		msgBlock.Header.Bits, err = pow.CalcNextRequiredDifficulty(params, a.cfg.Chain, lastHeader,
			best.Height, blockTime)
		if err != nil {
			return nil, err
		}
		if err := UpdateBlockTime(&msgBlock, a.cfg.Chain, params); err != nil {
			return nil, err
		}
	} else {
		msgBlock.Header.Bits = req.Bits
		if msgBlock.Header.Bits == 0 {
			if msgBlock.Header.Bits, err = a.nextStakeBits(lastHeader, best.Height); err != nil {
				return nil, err
			}
		}
		if err := signBlock(&msgBlock, req.Wallet); err != nil {
			return nil, err
		}
	}

	block := btcutil.NewBlock(&msgBlock)
	block.SetHeight(nextBlockHeight)
	if err := a.checkTemplate(block, nextBlockHeight, maxCoinbaseValue); err != nil {
		return nil, err
	}

	stats := BlockStats{
		Height:             nextBlockHeight,
		Weight:             state.blockWeight,
		TxCount:            len(blockTxns),
		SigOpsCost:         state.blockSigOpsCost + coinbaseSigOpCost,
		Fees:               totalFees,
		PackagesSelected:   packagesSelected,
		DescendantsUpdated: descendantsUpdated,
		Elapsed:            time.Since(start),
	}
	a.statsMtx.Lock()
	a.lastStats = stats
	a.statsMtx.Unlock()

	log.Debug().Int32("height", nextBlockHeight).Bool("pos", proofOfStake).
		Int("txs", stats.TxCount).Int64("weight", stats.Weight).Int64("fees", stats.Fees).
		Int("packages", packagesSelected).Int("updated", descendantsUpdated).
		Dur("elapsed", stats.Elapsed).Msg("Created new block template")

	return &chaindata.BlockTemplate{
		Block:             &msgBlock,
		Fees:              fees,
		SigOpCosts:        sigOpCosts,
		Height:            nextBlockHeight,
		ProofOfStake:      proofOfStake,
		ValidPayAddress:   validPayAddress,
		WitnessCommitment: witnessCommitment,
	}, nil
}

// checkCoinStake resolves the output spent by the coinstake of a
// proof-of-stake build. Missing chain data is returned as is, any other
// failure is fatal.
func (a *BlockAssembler) checkCoinStake(coinstake *wire.MsgTx) (*stakeInput, error) {
	if coinstake == nil {
		return nil, errors.Wrap(ErrConsensusFatal, "proof-of-stake block requires a coinstake")
	}

	prevTx, loc, err := stakepolicy.IsCoinStakeTx(coinstake, a.cfg.Chain)
	if err != nil {
		if chaindata.IsTransient(err) {
			return nil, err
		}
		return nil, errors.Wrap(ErrConsensusFatal, err.Error())
	}

	prevOut := coinstake.TxIn[0].PreviousOutPoint
	return &stakeInput{
		tx:     btcutil.NewTx(coinstake),
		amount: prevTx.TxOut[prevOut.Index].Value,
		loc:    loc,
	}, nil
}

// nextStakeBits returns the target of the proof-of-stake block that follows
// lastHeader.
func (a *BlockAssembler) nextStakeBits(lastHeader *wire.BlockHeader, lastHeight int32) (uint32, error) {
	if lastHeight == 0 {
		return pow.CalcNextStakeBits(a.cfg.ChainParams, lastHeader, nil), nil
	}
	prevHeader, err := a.cfg.Chain.HeaderByHeight(lastHeight - 1)
	if err != nil {
		return 0, err
	}
	return pow.CalcNextStakeBits(a.cfg.ChainParams, lastHeader, prevHeader), nil
}

// signBlock signs the header of a proof-of-stake block with the key its
// coinstake pays to and appends the signature to the coinbase signature
// script.
func signBlock(msgBlock *wire.MsgBlock, signer Signer) error {
	if signer == nil {
		return errors.Wrap(ErrSigningFailed, ErrSignerUnavailable.Error())
	}

	coinstake := msgBlock.Transactions[1]
	keyHash, ok := stakepolicy.KeyHashDestination(coinstake.TxOut[0].PkScript)
	if !ok {
		return errors.Wrapf(ErrSigningFailed, "coinstake pays to %v",
			txscript.GetScriptClass(coinstake.TxOut[0].PkScript))
	}

	hash := msgBlock.Header.BlockHash()
	sig, _, err := signer.SignHash(hash, keyHash)
	if err != nil {
		return errors.Wrap(ErrSigningFailed, err.Error())
	}

	push, err := txscript.NewScriptBuilder().AddData(sig).Script()
	if err != nil {
		return errors.Wrap(ErrSigningFailed, err.Error())
	}

	coinbase := msgBlock.Transactions[0]
	script := append(append([]byte{}, coinbase.TxIn[0].SignatureScript...), push...)
	if len(script) > blockchain.MaxCoinbaseScriptLen {
		return errors.Wrap(ErrSigningFailed, fmt.Sprintf("signed coinbase script length %d", len(script)))
	}
	coinbase.TxIn[0].SignatureScript = script

	block := btcutil.NewBlock(msgBlock)
	msgBlock.Header.MerkleRoot = chaindata.MerkleRoot(block.Transactions())
	return nil
}
