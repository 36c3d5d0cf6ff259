// Copyright (c) 2014-2016 The btcsuite developers
// Copyright (c) 2022 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package cpuminer

import (
	"bytes"
	"context"
	"encoding/binary"
	"math/rand"
	"sync"
	"time"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/minio/sha256-simd"
	"github.com/pkg/errors"
	"gitlab.com/xpchain/xpcd/node/chaindata"
	"gitlab.com/xpchain/xpcd/node/mining"
	"gitlab.com/xpchain/xpcd/types/chaincfg"
	"gitlab.com/xpchain/xpcd/types/pow"
)

const (
	// maxNonce is the maximum value a nonce can be in a block header.
	// Nonces 0 and maxNonce are never tried, a zero nonce marks a
	// proof-of-stake block.
	maxNonce = ^uint32(0) // 2^32 - 1

	// maxExtraNonce is the maximum value an extra nonce used in a coinbase
	// transaction can be.
	maxExtraNonce = ^uint64(0) // 2^64 - 1

	// hpsUpdateSecs is the number of seconds to wait in between each
	// update to the hashes per second monitor.
	hpsUpdateSecs = 10

	// hashUpdateSec is the number of seconds each worker waits in between
	// notifying the speed monitor with how many hashes have been completed
	// while they are actively searching for a solution.  This is done to
	// reduce the amount of syncs between the workers that must be done to
	// keep track of the hashes per second.
	hashUpdateSecs = 15

	// nonceOffset is the position of the nonce in a serialized header.
	nonceOffset = 76
)

var (
	// defaultNumWorkers is the default number of workers to use for mining.
	defaultNumWorkers = uint32(1)

	// ErrAlreadyMining is returned by GenerateNBlocks while the workers run.
	ErrAlreadyMining = errors.New("already CPU mining, stop it before generating discrete blocks")

	// ErrProofOfStakeHeight is returned by GenerateNBlocks when the next
	// block must be minted with a coinstake.
	ErrProofOfStakeHeight = errors.New("next block height requires proof of stake")
)

// Config is a descriptor containing the cpu miner configuration.
type Config struct {
	// ChainParams identifies which chain parameters the cpu miner is
	// associated with.
	ChainParams *chaincfg.Params

	// Assembler builds the block templates the miner attempts to solve.
	Assembler *mining.BlockAssembler

	// MiningAddrs is a list of payment addresses to use for the generated
	// blocks.  Each generated block will randomly choose one of them.
	MiningAddrs []btcutil.Address

	// ProcessBlock defines the function to call with any solved blocks.
	ProcessBlock func(*btcutil.Block) error

	// IsCurrent defines the function to use to obtain whether or not the
	// block chain is current.  There is no point in mining if the chain is
	// not current since any solved blocks would end up orphaned.
	IsCurrent func() bool
}

// CPUMiner provides facilities for solving proof-of-work blocks using the
// CPU in a concurrency-safe manner.  It consists of two main goroutines: a
// speed monitor and a controller for worker goroutines which generate and
// solve blocks.  Workers idle once the chain passes the switch height.
type CPUMiner struct {
	sync.Mutex
	assembler         *mining.BlockAssembler
	cfg               Config
	numWorkers        uint32
	started           bool
	discreteMining    bool
	submitBlockLock   sync.Mutex
	wg                sync.WaitGroup
	workerWg          sync.WaitGroup
	updateNumWorkers  chan struct{}
	queryHashesPerSec chan float64
	updateHashes      chan uint64
	speedMonitorQuit  chan struct{}
	quit              chan struct{}
}

// New returns a new instance of a CPU miner for the provided configuration.
// Use Start to begin the mining process.
func New(cfg Config) *CPUMiner {
	if cfg.IsCurrent == nil {
		cfg.IsCurrent = cfg.Assembler.Chain().IsCurrent
	}
	return &CPUMiner{
		assembler:         cfg.Assembler,
		cfg:               cfg,
		numWorkers:        defaultNumWorkers,
		updateNumWorkers:  make(chan struct{}),
		queryHashesPerSec: make(chan float64),
		updateHashes:      make(chan uint64),
	}
}

// speedMonitor handles tracking the number of hashes per second the mining
// process is performing.  It must be run as a goroutine.
func (miner *CPUMiner) speedMonitor() {
	log.Debug().Msg("CPU miner speed monitor started")

	var hashesPerSec float64
	var totalHashes uint64
	ticker := time.NewTicker(time.Second * hpsUpdateSecs)
	defer ticker.Stop()

out:
	for {
		select {
		// Periodic updates from the workers with how many hashes they
		// have performed.
		case numHashes := <-miner.updateHashes:
			totalHashes += numHashes

		// Time to update the hashes per second.
		case <-ticker.C:
			curHashesPerSec := float64(totalHashes) / hpsUpdateSecs
			if hashesPerSec == 0 {
				hashesPerSec = curHashesPerSec
			}
			hashesPerSec = (hashesPerSec + curHashesPerSec) / 2
			totalHashes = 0
			if hashesPerSec != 0 {
				log.Debug().Float64("khps", hashesPerSec/1000).Msg("Hash speed")
			}

		// Request for the number of hashes per second.
		case miner.queryHashesPerSec <- hashesPerSec:
			// Nothing to do.

		case <-miner.speedMonitorQuit:
			break out
		}
	}

	miner.wg.Done()
	log.Debug().Msg("CPU miner speed monitor done")
}

// submitBlock submits the passed block after ensuring it is still built on
// the best chain.
func (miner *CPUMiner) submitBlock(block *btcutil.Block) bool {
	miner.submitBlockLock.Lock()
	defer miner.submitBlockLock.Unlock()

	// Ensure the block is not stale since a new block could have shown up
	// while the solution was being found.
	msgBlock := block.MsgBlock()
	best := miner.assembler.Chain().BestSnapshot()
	if !msgBlock.Header.PrevBlock.IsEqual(&best.Hash) {
		log.Debug().Stringer("prev", &msgBlock.Header.PrevBlock).
			Msg("Block submitted via CPU miner is stale")
		return false
	}

	if err := miner.cfg.ProcessBlock(block); err != nil {
		// Anything other than a rule violation is an unexpected error,
		// so log that error as an internal error.
		if _, ok := chaindata.AsRuleError(err); !ok {
			log.Error().Err(err).Msg("Unexpected error while processing block submitted via CPU miner")
			return false
		}

		log.Debug().Err(err).Msg("Block submitted via CPU miner rejected")
		return false
	}

	coinbaseTx := msgBlock.Transactions[0].TxOut[0]
	log.Info().Stringer("hash", block.Hash()).Int32("height", best.Height+1).
		Int64("amount", coinbaseTx.Value).Msg("Block submitted via CPU miner accepted")
	return true
}

// doubleHashH hashes a serialized header with the simd sha256.
func doubleHashH(b []byte) chainhash.Hash {
	first := sha256.Sum256(b)
	return sha256.Sum256(first[:])
}

func serializeHeader(header *wire.BlockHeader) []byte {
	var buf bytes.Buffer
	buf.Grow(wire.MaxBlockHeaderPayload)
	// Writes to a bytes.Buffer never fail.
	_ = header.Serialize(&buf)
	return buf.Bytes()
}

// isStale reports whether the template built on prevBlock lost its tip, or
// the pool changed and the template is older than a minute.
func (miner *CPUMiner) isStale(prevBlock *chainhash.Hash, lastTxUpdate, lastGenerated time.Time) bool {
	best := miner.assembler.Chain().BestSnapshot()
	if !prevBlock.IsEqual(&best.Hash) {
		return true
	}

	return !lastTxUpdate.Equal(miner.assembler.TxSource().LastUpdated()) &&
		time.Now().After(lastGenerated.Add(time.Minute))
}

// solveBlock attempts to find some combination of a nonce, extra nonce, and
// current timestamp which makes the passed block hash to a value less than the
// target difficulty.  The timestamp is updated periodically and the passed
// block is modified with all tweaks during this process.  This means that
// when the function returns true, the block is ready for submission.
//
// This function will return early with false when conditions that trigger a
// stale block such as a new block showing up or periodically when there are
// new transactions and enough time has elapsed without finding a solution.
func (miner *CPUMiner) solveBlock(msgBlock *wire.MsgBlock, blockHeight int32,
	ticker *time.Ticker, quit chan struct{}) bool {
	// Choose a random extra nonce offset for this block template and
	// worker.
	enOffset := rand.Uint64()

	header := &msgBlock.Header
	lastGenerated := time.Now()
	lastTxUpdate := miner.assembler.TxSource().LastUpdated()
	hashesCompleted := uint64(0)

	// Note that the entire extra nonce range is iterated and the offset is
	// added relying on the fact that overflow will wrap around 0 as
	// provided by the language.
	for extraNonce := uint64(0); extraNonce < maxExtraNonce; extraNonce++ {
		// Update the extra nonce in the block template with the
		// new value by regenerating the coinbase script and
		// setting the merkle root to the new value.
		if err := mining.UpdateExtraNonce(msgBlock, blockHeight, extraNonce+enOffset); err != nil {
			log.Error().Err(err).Msg("Unable to update extra nonce")
			return false
		}

		targetDifficulty := pow.CompactToBig(header.Bits)
		raw := serializeHeader(header)

		// Search through the entire nonce range for a solution while
		// periodically checking for early quit and stale block
		// conditions along with updates to the speed monitor.
		for i := uint32(1); i < maxNonce; i++ {
			select {
			case <-quit:
				return false

			case <-ticker.C:
				miner.updateHashes <- hashesCompleted
				hashesCompleted = 0

				if miner.isStale(&header.PrevBlock, lastTxUpdate, lastGenerated) {
					return false
				}

				err := mining.UpdateBlockTime(msgBlock, miner.assembler.Chain(), miner.cfg.ChainParams)
				if err != nil {
					log.Warn().Err(err).Msg("Unable to update block time")
				}
				targetDifficulty = pow.CompactToBig(header.Bits)
				raw = serializeHeader(header)

			default:
				// Non-blocking select to fall through
			}

			// Update the nonce and hash the block header.  Each
			// hash is actually a double sha256 (two hashes), so
			// increment the number of hashes completed for each
			// attempt accordingly.
			binary.LittleEndian.PutUint32(raw[nonceOffset:], i)
			hash := doubleHashH(raw)
			hashesCompleted += 2

			// The block is solved when the new block hash is less
			// than the target difficulty.
			if blockchain.HashToBig(&hash).Cmp(targetDifficulty) <= 0 {
				header.Nonce = i
				miner.updateHashes <- hashesCompleted
				return true
			}
		}
	}

	return false
}

// nextTemplate builds a template on the current tip paying to one of the
// mining addresses. It fails with ErrProofOfStakeHeight once proof of work
// is over.
func (miner *CPUMiner) nextTemplate() (*chaindata.BlockTemplate, error) {
	miner.submitBlockLock.Lock()
	defer miner.submitBlockLock.Unlock()

	best := miner.assembler.Chain().BestSnapshot()
	if miner.cfg.ChainParams.IsPoSHeight(best.Height + 1) {
		return nil, ErrProofOfStakeHeight
	}

	payToAddr := miner.cfg.MiningAddrs[rand.Intn(len(miner.cfg.MiningAddrs))]
	pkScript, err := txscript.PayToAddrScript(payToAddr)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to pay to %s", payToAddr)
	}

	return miner.assembler.CreateNewBlock(mining.BlockRequest{PayToScript: pkScript})
}

// generateBlocks is a worker that is controlled by the miningWorkerController.
// It is self contained in that it creates block templates and attempts to solve
// them while detecting when it is performing stale work and reacting
// accordingly by generating a new block template.  When a block is solved, it
// is submitted.
//
// It must be run as a goroutine.
func (miner *CPUMiner) generateBlocks(quit chan struct{}) {
	// Start a ticker which is used to signal checks for stale work and
	// updates to the speed monitor.
	ticker := time.NewTicker(time.Second * hashUpdateSecs)
	defer ticker.Stop()

	pause := func() bool {
		select {
		case <-quit:
			return false
		case <-time.After(time.Second):
			return true
		}
	}

out:
	for {
		// Quit when the miner is stopped.
		select {
		case <-quit:
			break out
		default:
			// Non-blocking select to fall through
		}

		// No point in searching for a solution before the chain is
		// synced.
		curHeight := miner.assembler.Chain().BestSnapshot().Height
		if curHeight != 0 && !miner.cfg.IsCurrent() {
			if !pause() {
				break out
			}
			continue
		}

		template, err := miner.nextTemplate()
		if err != nil {
			if !errors.Is(err, ErrProofOfStakeHeight) {
				log.Error().Err(err).Msg("Failed to create new block template")
			}
			if !pause() {
				break out
			}
			continue
		}

		// Attempt to solve the block.  The function will exit early
		// with false when conditions that trigger a stale block, so
		// a new block template can be generated.  When the return is
		// true a solution was found, so submit the solved block.
		if miner.solveBlock(template.Block, template.Height, ticker, quit) {
			miner.submitBlock(btcutil.NewBlock(template.Block))
		}
	}

	miner.workerWg.Done()
	log.Debug().Msg("Generate blocks worker done")
}

// miningWorkerController launches the worker goroutines that are used to
// generate block templates and solve them.  It also provides the ability to
// dynamically adjust the number of running worker goroutines.
//
// It must be run as a goroutine.
func (miner *CPUMiner) miningWorkerController() {
	var runningWorkers []chan struct{}
	launchWorkers := func(numWorkers uint32) {
		for i := uint32(0); i < numWorkers; i++ {
			quit := make(chan struct{})
			runningWorkers = append(runningWorkers, quit)

			miner.workerWg.Add(1)
			go miner.generateBlocks(quit)
		}
	}

	// Launch the current number of workers by default.
	runningWorkers = make([]chan struct{}, 0, miner.numWorkers)
	launchWorkers(miner.numWorkers)

out:
	for {
		select {
		// Update the number of running workers.
		case <-miner.updateNumWorkers:
			numRunning := uint32(len(runningWorkers))
			if miner.numWorkers == numRunning {
				continue
			}

			// Add new workers.
			if miner.numWorkers > numRunning {
				launchWorkers(miner.numWorkers - numRunning)
				continue
			}

			// Signal the most recently created goroutines to exit.
			for i := numRunning - 1; i >= miner.numWorkers; i-- {
				close(runningWorkers[i])
				runningWorkers[i] = nil
				runningWorkers = runningWorkers[:i]
			}

		case <-miner.quit:
			for _, quit := range runningWorkers {
				close(quit)
			}
			break out
		}
	}

	// Wait until all workers shut down to stop the speed monitor since
	// they rely on being able to send updates to it.
	miner.workerWg.Wait()
	close(miner.speedMonitorQuit)
	miner.wg.Done()
}

// Run mines until ctx is cancelled.
func (miner *CPUMiner) Run(ctx context.Context) {
	miner.Start()
	<-ctx.Done()
	miner.Stop()
}

// Start begins the CPU mining process as well as the speed monitor used to
// track hashing metrics.  Calling this function when the CPU miner has
// already been started will have no effect.
//
// This function is safe for concurrent access.
func (miner *CPUMiner) Start() {
	miner.Lock()
	defer miner.Unlock()

	// Nothing to do if the miner is already running or if running in
	// discrete mode (using GenerateNBlocks).
	if miner.started || miner.discreteMining || len(miner.cfg.MiningAddrs) == 0 {
		return
	}

	miner.quit = make(chan struct{})
	miner.speedMonitorQuit = make(chan struct{})
	miner.wg.Add(2)
	go miner.speedMonitor()
	go miner.miningWorkerController()

	miner.started = true
	log.Info().Uint32("workers", miner.numWorkers).Msg("CPU miner started")
}

// Stop gracefully stops the mining process by signalling all workers, and the
// speed monitor to quit.  Calling this function when the CPU miner has not
// already been started will have no effect.
//
// This function is safe for concurrent access.
func (miner *CPUMiner) Stop() {
	miner.Lock()
	defer miner.Unlock()

	if !miner.started || miner.discreteMining {
		return
	}

	close(miner.quit)
	miner.wg.Wait()
	miner.started = false
	log.Info().Msg("CPU miner stopped")
}

// IsMining returns whether or not the CPU miner has been started and is
// therefore currently mining.
//
// This function is safe for concurrent access.
func (miner *CPUMiner) IsMining() bool {
	miner.Lock()
	defer miner.Unlock()

	return miner.started
}

// HashesPerSecond returns the number of hashes per second the mining process
// is performing.  0 is returned if the miner is not currently running.
//
// This function is safe for concurrent access.
func (miner *CPUMiner) HashesPerSecond() float64 {
	miner.Lock()
	defer miner.Unlock()

	if !miner.started {
		return 0
	}

	return <-miner.queryHashesPerSec
}

// SetNumWorkers sets the number of workers to create which solve blocks.  Any
// negative values will cause a default number of workers to be used.  A value
// of 0 will cause all CPU mining to be stopped.
//
// This function is safe for concurrent access.
func (miner *CPUMiner) SetNumWorkers(numWorkers int32) {
	if numWorkers == 0 {
		miner.Stop()
	}

	// Don't lock until after the first check since Stop does its own
	// locking.
	miner.Lock()
	defer miner.Unlock()

	if numWorkers < 0 {
		miner.numWorkers = defaultNumWorkers
	} else {
		miner.numWorkers = uint32(numWorkers)
	}

	// When the miner is already running, notify the controller about the
	// the change.
	if miner.started {
		miner.updateNumWorkers <- struct{}{}
	}
}

// NumWorkers returns the number of workers which are running to solve blocks.
//
// This function is safe for concurrent access.
func (miner *CPUMiner) NumWorkers() int32 {
	miner.Lock()
	defer miner.Unlock()

	return int32(miner.numWorkers)
}

// GenerateNBlocks generates the requested number of blocks and returns their
// hashes. It stops early with ErrProofOfStakeHeight when the chain reaches
// the switch height.
func (miner *CPUMiner) GenerateNBlocks(n uint32) ([]*chainhash.Hash, error) {
	miner.Lock()
	if miner.started || miner.discreteMining {
		miner.Unlock()
		return nil, ErrAlreadyMining
	}
	if len(miner.cfg.MiningAddrs) == 0 {
		miner.Unlock()
		return nil, errors.New("no mining addresses configured")
	}

	miner.started = true
	miner.discreteMining = true

	miner.speedMonitorQuit = make(chan struct{})
	miner.wg.Add(1)
	go miner.speedMonitor()
	miner.Unlock()

	defer func() {
		miner.Lock()
		close(miner.speedMonitorQuit)
		miner.wg.Wait()
		miner.started = false
		miner.discreteMining = false
		miner.Unlock()
	}()

	log.Debug().Uint32("count", n).Msg("Generating blocks")

	blockHashes := make([]*chainhash.Hash, 0, n)

	// Start a ticker which is used to signal checks for stale work and
	// updates to the speed monitor.
	ticker := time.NewTicker(time.Second * hashUpdateSecs)
	defer ticker.Stop()

	for uint32(len(blockHashes)) < n {
		// Drain updateNumWorkers in case someone changes the worker
		// count while we're generating.
		select {
		case <-miner.updateNumWorkers:
		default:
		}

		template, err := miner.nextTemplate()
		if err != nil {
			return blockHashes, err
		}

		if miner.solveBlock(template.Block, template.Height, ticker, nil) {
			block := btcutil.NewBlock(template.Block)
			if miner.submitBlock(block) {
				blockHashes = append(blockHashes, block.Hash())
			}
		}
	}

	log.Debug().Int("count", len(blockHashes)).Msg("Generated blocks")
	return blockHashes, nil
}
