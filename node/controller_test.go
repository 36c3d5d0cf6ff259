// Copyright (c) 2022 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package node

import (
	"context"
	"encoding/hex"
	"path/filepath"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/xpchain/xpcd/config"
	"gitlab.com/xpchain/xpcd/types/chaincfg"
)

const testKeyHex = "0101010101010101010101010101010101010101010101010101010101010101"

func testConfig(t *testing.T) *config.Config {
	params := &chaincfg.RegressionNetParams

	keyBytes, err := hex.DecodeString(testKeyHex)
	require.NoError(t, err)
	key, _ := btcec.PrivKeyFromBytes(keyBytes)
	addr, err := btcutil.NewAddressPubKeyHash(
		btcutil.Hash160(key.PubKey().SerializeCompressed()), params.AddressParams)
	require.NoError(t, err)

	cfg := config.Default()
	cfg.Net = "regtest"
	cfg.DataDir = t.TempDir()
	cfg.Mining.MiningAddrs = []string{addr.EncodeAddress()}
	cfg.Mining.NumWorkers = 1
	cfg.Staking.PrivateKeys = []string{testKeyHex}
	return &cfg
}

func testController(t *testing.T, cfg *config.Config) *chainController {
	ctl := Controller(zerolog.Nop())
	params, err := cfg.ChainParams()
	require.NoError(t, err)
	ctl.cfg = cfg
	ctl.params = params
	return ctl
}

func TestControllerProducers(t *testing.T) {
	cfg := testConfig(t)
	ctl := testController(t, cfg)
	dbDir := filepath.Join(cfg.DataDir, chainDbName)

	require.NoError(t, ctl.openChain(dbDir))
	require.NoError(t, ctl.InitCPUMiner())

	_, err := ctl.miner.GenerateNBlocks(2)
	require.NoError(t, err)

	require.NoError(t, ctl.InitMinter())
	assert.Len(t, ctl.keyring.Coins(), 2)

	// Blocks connected after the rescan reach the keyring through the
	// store notifications.
	_, err = ctl.miner.GenerateNBlocks(1)
	require.NoError(t, err)
	assert.Len(t, ctl.keyring.Coins(), 3)

	stats := ctl.Stats()
	assert.Equal(t, float64(3), stats["height"])
	assert.Equal(t, float64(0), stats["proof_of_stake"])
	assert.Equal(t, float64(0), stats["minted_blocks"])
	assert.Equal(t, float64(3), stats["stake_coins"])
	assert.Contains(t, stats, "hashes_per_second")
	ctl.closeChain()

	reopened := testController(t, cfg)
	require.NoError(t, reopened.openChain(dbDir))
	defer reopened.closeChain()
	assert.Equal(t, int32(3), reopened.store.BestSnapshot().Height)
}

func TestInitMinterErrors(t *testing.T) {
	cfg := testConfig(t)
	cfg.Staking.PrivateKeys = nil
	ctl := testController(t, cfg)
	require.NoError(t, ctl.openChain(filepath.Join(cfg.DataDir, chainDbName)))
	defer ctl.closeChain()

	assert.Error(t, ctl.InitMinter())

	cfg.Staking.PrivateKeys = []string{"not a key"}
	assert.Error(t, ctl.InitMinter())

	cfg.Mining.MiningAddrs = nil
	assert.Error(t, ctl.InitCPUMiner())
}

func TestImportKey(t *testing.T) {
	cfg := testConfig(t)
	ctl := testController(t, cfg)
	require.NoError(t, ctl.openChain(filepath.Join(cfg.DataDir, chainDbName)))
	defer ctl.closeChain()
	require.NoError(t, ctl.InitMinter())

	kd, err := importKey(ctl.keyring, testKeyHex)
	require.NoError(t, err)

	wif, err := btcutil.NewWIF(kd.PrivateKey, ctl.params.AddressParams, true)
	require.NoError(t, err)
	again, err := importKey(ctl.keyring, " "+wif.String()+"\n")
	require.NoError(t, err)
	assert.Equal(t, kd.PubKeyHash.EncodeAddress(), again.PubKeyHash.EncodeAddress())
}

func TestRunStopsOnCancel(t *testing.T) {
	cfg := testConfig(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- Controller(zerolog.Nop()).Run(ctx, cfg)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("controller did not stop")
	}
}

type fixedStats map[string]float64

func (fixedStats) NetName() string               { return "regtest" }
func (s fixedStats) Stats() map[string]float64 { return s }

func TestChainMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	metric := MetricsOfChain(fixedStats{"height": 7, "bits": 3}, registry, zerolog.Nop())
	metric.Read()
	metric.Read()

	families, err := registry.Gather()
	require.NoError(t, err)

	values := make(map[string]float64)
	for _, family := range families {
		require.Len(t, family.GetMetric(), 1)
		m := family.GetMetric()[0]
		require.Len(t, m.GetLabel(), 1)
		assert.Equal(t, "regtest", m.GetLabel()[0].GetValue())
		values[family.GetName()] = m.GetGauge().GetValue()
	}
	assert.Equal(t, map[string]float64{"xpcd_chain_height": 7, "xpcd_chain_bits": 3}, values)
}
