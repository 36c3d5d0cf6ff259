// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	_ "net/http/pprof"
	"os"
	"runtime"
	"runtime/debug"
	"runtime/pprof"

	"github.com/jessevdk/go-flags"
	"gitlab.com/xpchain/xpcd/config"
	"gitlab.com/xpchain/xpcd/node"
	"gitlab.com/xpchain/xpcd/version"
)

func main() {
	// Use all processor cores.
	runtime.GOMAXPROCS(runtime.NumCPU())

	// Block and transaction processing can cause bursty allocations.  This
	// limits the garbage collector from excessively overallocating during
	// bursts.
	debug.SetGCPercent(10)

	// Work around defer not working after os.Exit()
	if err := xpcdMain(); err != nil {
		fmt.Println("FATAL:", err)
		os.Exit(1)
	}
}

// xpcdMain is the real main function for xpcd.  It is necessary to work
// around the fact that deferred functions do not run when os.Exit() is
// called.
func xpcdMain() error {
	// Load configuration and parse command line.
	cfg, _, err := config.LoadConfig(os.Args[1:])
	if err != nil {
		if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
			return nil
		}
		return err
	}

	if cfg.ShowVersion {
		fmt.Println("xpcd version", version.GetExtendedVersion())
		return nil
	}

	if cfg.DebugLevel == "show" {
		fmt.Println("Supported subsystems", config.SupportedSubsystems())
		return nil
	}

	if err := config.SetupLogging(cfg.DebugLevel, cfg.LogConfig); err != nil {
		return err
	}

	defer config.Log.Info().Msg("Shutdown complete")

	// Show version at startup.
	config.Log.Info().Msgf("Version %s", version.GetVersion())

	// Enable http profiling server if requested.
	if cfg.Profile != "" {
		go func() {
			listenAddr := net.JoinHostPort("", cfg.Profile)
			config.Log.Info().Msgf("Profile server listening on %s", listenAddr)
			profileRedirect := http.RedirectHandler("/debug/pprof",
				http.StatusSeeOther)
			http.Handle("/", profileRedirect)
			if err := http.ListenAndServe(listenAddr, nil); err != nil {
				config.Log.Error().Err(err).Msg("listen and serve failed")
			}
		}()
	}

	// Write cpu profile if requested.
	if cfg.CPUProfile != "" {
		f, err := os.Create(cfg.CPUProfile)
		if err != nil {
			config.Log.Error().Err(err).Msg("Unable to create cpu profile")
			return err
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			f.Close()
			return err
		}
		defer f.Close()
		defer pprof.StopCPUProfile()
	}

	ctx, stop := interruptContext(context.Background(),
		config.Log.With().Str("ctx", "interruptListener").Logger())
	defer stop()

	controller := node.Controller(config.Log.With().Str("ctx", "NodeController").Logger())
	if err := controller.Run(ctx, cfg); err != nil {
		config.Log.Error().Err(err).Msg("Can't run node")
		return err
	}

	return nil
}
