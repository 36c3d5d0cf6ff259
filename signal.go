// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
)

// interruptSignals defines the default signals to catch in order to do a proper
// shutdown.
var interruptSignals = []os.Signal{syscall.SIGINT, syscall.SIGTERM}

// interruptContext returns a context cancelled on the first interrupt signal.
// Repeated signals are only logged so the user knows the shutdown is in
// progress and the process is not hung.
func interruptContext(parent context.Context, log zerolog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	interruptChannel := make(chan os.Signal, 1)
	signal.Notify(interruptChannel, interruptSignals...)

	go func() {
		select {
		case sig := <-interruptChannel:
			log.Info().Str("signal", sig.String()).Msg("Received signal. Shutting down...")
			cancel()
		case <-ctx.Done():
			signal.Stop(interruptChannel)
			return
		}

		for sig := range interruptChannel {
			log.Info().Str("signal", sig.String()).Msg("Received signal. Already shutting down...")
		}
	}()

	return ctx, func() {
		signal.Stop(interruptChannel)
		cancel()
	}
}
