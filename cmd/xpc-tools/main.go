// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/davecgh/go-spew/spew"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"gitlab.com/xpchain/xpcd/node/chainstore"
	"gitlab.com/xpchain/xpcd/node/kernel"
	"gitlab.com/xpchain/xpcd/types/chaincfg"
	"gitlab.com/xpchain/xpcd/types/pow"
)

const (
	flagNet       = "net"
	flagDataDir   = "datadir"
	flagAddress   = "address"
	flagOutput    = "output"
	flagBits      = "bits"
	flagBlockTime = "block-time"
	flagTxOffset  = "tx-offset"
	flagAmount    = "amount"
	flagOutIndex  = "vout"
	flagClaimTime = "claim-time"
)

func main() {
	app := &App{}
	cliApp := &cli.App{
		Name:     "xpc-tools",
		Usage:    "routine chain and staking tasks",
		Flags:    app.InitFlags(),
		Before:   app.InitCfg,
		Commands: app.getCommands(),
	}

	err := cliApp.Run(os.Args)
	if err != nil {
		println(err.Error())
		os.Exit(1)
	}
}

type App struct {
	params *chaincfg.Params
}

func (app *App) InitFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  flagNet,
			Usage: "network: mainnet, testnet or regtest",
			Value: "mainnet",
		},
	}
}

func (app *App) InitCfg(c *cli.Context) error {
	params, err := chaincfg.ParamsForNet(c.String(flagNet))
	if err != nil {
		return cli.Exit(err, 1)
	}
	app.params = params
	return nil
}

func (app *App) getCommands() cli.Commands {
	return []*cli.Command{
		{
			Name:   "gen-kp",
			Usage:  "generate new key pair and addresses",
			Action: app.genKp,
		},
		{
			Name:   "netparams",
			Usage:  "dump the parameters of the network",
			Action: app.netParams,
		},
		{
			Name:  "kernel-hash",
			Usage: "check a stake kernel against a target",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: flagBits, Usage: "compact target, hex", Required: true},
				&cli.Uint64Flag{Name: flagBlockTime, Usage: "timestamp of the block holding the output", Required: true},
				&cli.Uint64Flag{Name: flagTxOffset, Usage: "offset of the transaction in its block", Required: true},
				&cli.Int64Flag{Name: flagAmount, Usage: "value of the output in base units", Required: true},
				&cli.Uint64Flag{Name: flagOutIndex, Usage: "index of the output"},
				&cli.Uint64Flag{Name: flagClaimTime, Usage: "timestamp of the new block", Required: true},
			},
			Action: app.kernelHash,
		},
		{
			Name:  "kernels",
			Usage: "write the stakeable outputs of addresses to CSV file",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: flagDataDir, Usage: "data directory of the node", Required: true},
				&cli.StringSliceFlag{Name: flagAddress, Aliases: []string{"a"}, Usage: "staking address", Required: true},
				&cli.StringFlag{Name: flagOutput, Aliases: []string{"o"}, Usage: "CSV file, stdout when empty"},
			},
			Action: app.kernels,
		},
		{
			Name:  "chain-info",
			Usage: "open a chain index and print its tip",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: flagDataDir, Usage: "data directory of the node", Required: true},
			},
			Action: app.chainInfo,
		},
	}
}

func (app *App) genKp(*cli.Context) error {
	key, err := btcec.NewPrivateKey()
	if err != nil {
		return cli.Exit(errors.Wrap(err, "failed to generate kp"), 1)
	}

	fmt.Printf("PrivateKey: %x\n", key.Serialize())

	wif, err := btcutil.NewWIF(key, app.params.AddressParams, true)
	if err != nil {
		return cli.Exit(errors.Wrap(err, "failed to generate wif"), 1)
	}
	fmt.Printf("WIF: %s\n", wif.String())

	hash := btcutil.Hash160(key.PubKey().SerializeCompressed())
	pkh, err := btcutil.NewAddressPubKeyHash(hash, app.params.AddressParams)
	if err != nil {
		return cli.Exit(err, 1)
	}
	wpkh, err := btcutil.NewAddressWitnessPubKeyHash(hash, app.params.AddressParams)
	if err != nil {
		return cli.Exit(err, 1)
	}
	fmt.Printf("AddressPubKeyHash: %s\n", pkh.EncodeAddress())
	fmt.Printf("AddressWitnessPubKeyHash: %s\n", wpkh.EncodeAddress())
	return nil
}

func (app *App) netParams(*cli.Context) error {
	config := spew.ConfigState{Indent: "  ", DisablePointerAddresses: true, MaxDepth: 2}
	config.Dump(app.params.PowParams, app.params.StakeParams, app.params.Policy)

	bits := app.params.PowLimitBits
	fmt.Printf("genesis: %s\n", app.params.GenesisHash)
	fmt.Printf("pow limit: bits=%08x, target=%064x, difficulty=%f\n",
		bits, pow.CompactToBig(bits), pow.Difficulty(bits))
	fmt.Printf("switch height: %d, subsidy: %d\n",
		app.params.SwitchHeight, app.params.CalcBlockSubsidy(1))
	return nil
}

func (app *App) kernelHash(c *cli.Context) error {
	bits, err := strconv.ParseUint(c.String(flagBits), 16, 32)
	if err != nil {
		return cli.Exit(errors.Wrap(err, "invalid bits"), 1)
	}

	proof, ok := kernel.CheckStakeKernelHash(app.params, uint32(bits),
		uint32(c.Uint64(flagBlockTime)), uint32(c.Uint64(flagTxOffset)),
		c.Int64(flagAmount), uint32(c.Uint64(flagOutIndex)), uint32(c.Uint64(flagClaimTime)))

	fmt.Printf("hash:   %s\n", proof.Hash)
	if proof.Target != nil {
		fmt.Printf("target: %064x\n", proof.Target)
	}
	fmt.Printf("valid:  %t\n", ok)
	return nil
}

func (app *App) openChain(c *cli.Context) (*chainstore.Store, error) {
	dataDir := filepath.Join(c.String(flagDataDir), app.params.Name, "chain")
	return chainstore.Open(chainstore.Config{
		DataDir:     dataDir,
		ChainParams: app.params,
	})
}

func (app *App) kernels(c *cli.Context) error {
	var addrs []btcutil.Address
	for _, str := range c.StringSlice(flagAddress) {
		addr, err := btcutil.DecodeAddress(str, app.params.AddressParams)
		if err != nil {
			return cli.Exit(errors.Wrapf(err, "address %q", str), 1)
		}
		addrs = append(addrs, addr)
	}

	store, err := app.openChain(c)
	if err != nil {
		return cli.Exit(err, 1)
	}
	defer store.Close()

	records, err := collectKernels(store, app.params, addrs, time.Now())
	if err != nil {
		return cli.Exit(errors.Wrap(err, "unable to collect kernels"), 1)
	}

	out := os.Stdout
	if path := c.String(flagOutput); path != "" {
		file, err := os.Create(path)
		if err != nil {
			return cli.Exit(err, 1)
		}
		defer file.Close()
		out = file
		defer fmt.Printf("Found %d stakeable outputs\n", len(records))
	}
	return writeKernelsCSV(out, records)
}

func (app *App) chainInfo(c *cli.Context) error {
	store, err := app.openChain(c)
	if err != nil {
		return cli.Exit(err, 1)
	}
	defer store.Close()

	best := store.BestSnapshot()
	kind := "proof-of-work"
	if app.params.IsPoSHeight(best.Height) {
		kind = "proof-of-stake"
	}
	fmt.Printf("height: %d (%s)\n", best.Height, kind)
	fmt.Printf("hash: %s\n", best.Hash)
	fmt.Printf("bits: %08x, difficulty=%f\n", best.Bits, pow.Difficulty(best.Bits))
	fmt.Printf("time: %s, median time: %s\n", best.Timestamp, best.MedianTime)
	fmt.Printf("transactions: %d\n", best.TotalTxns)

	next, err := nextStakeBits(store, app.params, best.Height)
	if err != nil {
		return cli.Exit(err, 1)
	}
	fmt.Printf("next stake bits: %08x\n", next)
	return nil
}

