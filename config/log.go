// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2017 The Decred developers
// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/btcsuite/btcd/txscript"
	"github.com/rs/zerolog"
	"gitlab.com/xpchain/xpcd/corelog"
	"gitlab.com/xpchain/xpcd/node/chaindata"
	"gitlab.com/xpchain/xpcd/node/chainstore"
	"gitlab.com/xpchain/xpcd/node/kernel"
	"gitlab.com/xpchain/xpcd/node/mempool"
	"gitlab.com/xpchain/xpcd/node/mining"
	"gitlab.com/xpchain/xpcd/node/mining/cpuminer"
	"gitlab.com/xpchain/xpcd/node/mining/minter"
	"gitlab.com/xpchain/xpcd/node/stakepolicy"
	"gitlab.com/xpchain/xpcd/node/wallet"
	"gitlab.com/xpchain/xpcd/types/pow"
)

const (
	logUnitCHDT = "CHDT"
	logUnitCHST = "CHST"
	logUnitCNFG = "CNFG"
	logUnitCPUM = "CPUM"
	logUnitKRNL = "KRNL"
	logUnitMINR = "MINR"
	logUnitMNTR = "MNTR"
	logUnitPOW  = "POW"
	logUnitSCRP = "SCRP"
	logUnitSTKP = "STKP"
	logUnitTXMP = "TXMP"
	logUnitWLLT = "WLLT"
)

// unitLogs routes the logger of every subsystem into its package.
var unitLogs = map[string]func(zerolog.Logger){
	logUnitCHDT: chaindata.UseLogger,
	logUnitCHST: chainstore.UseLogger,
	logUnitCNFG: func(logger zerolog.Logger) { Log = logger },
	logUnitCPUM: cpuminer.UseLogger,
	logUnitKRNL: kernel.UseLogger,
	logUnitMINR: mining.UseLogger,
	logUnitMNTR: minter.UseLogger,
	logUnitPOW:  pow.UseLogger,
	logUnitSCRP: func(logger zerolog.Logger) { txscript.UseLogger(corelog.BtclogAdapter(logger)) },
	logUnitSTKP: stakepolicy.UseLogger,
	logUnitTXMP: mempool.UseLogger,
	logUnitWLLT: wallet.UseLogger,
}

// Log is the logger of the node itself.
var Log = corelog.Disabled

// validLogLevel returns whether or not logLevel is a valid debug log level.
func validLogLevel(logLevel string) bool {
	switch logLevel {
	case "trace", "debug", "info", "warn", "error", "critical", "off":
		return true
	}
	return false
}

// supportedSubsystems returns a sorted slice of the supported subsystems for
// logging purposes.
func supportedSubsystems() []string {
	subsystems := make([]string, 0, len(unitLogs))
	for subsysID := range unitLogs {
		subsystems = append(subsystems, subsysID)
	}

	// Sort the subsystems for stable display.
	sort.Strings(subsystems)
	return subsystems
}

// setLogLevel sets the logging level for provided subsystem.  Invalid
// subsystems are ignored.
func setLogLevel(subsystemID, logLevel string, logConfig corelog.Config) {
	useLogger, ok := unitLogs[subsystemID]
	if !ok {
		return
	}

	level, err := corelog.ParseLevel(logLevel)
	if err != nil {
		level = corelog.DefaultLevel
	}
	useLogger(corelog.New(subsystemID, level, logConfig))
}

// setLogLevels sets the log level for all subsystem loggers to the passed
// level.
func setLogLevels(logLevel string, logConfig corelog.Config) {
	for subsystemID := range unitLogs {
		setLogLevel(subsystemID, logLevel, logConfig)
	}
}

// SetupLogging attempts to parse the specified debug level and set the
// levels accordingly.  An appropriate error is returned if anything is
// invalid.
func SetupLogging(debugLevel string, logConfig corelog.Config) error {
	// When the specified string doesn't have any delimiters, treat it as
	// the log level for all subsystems.
	if !strings.Contains(debugLevel, ",") && !strings.Contains(debugLevel, "=") {
		if !validLogLevel(debugLevel) {
			return fmt.Errorf("the specified debug level [%v] is invalid", debugLevel)
		}

		setLogLevels(debugLevel, logConfig)
		return nil
	}

	// Everything not named in the list logs at the default level.
	setLogLevels(defaultLogLevel, logConfig)

	// Split the specified string into subsystem/level pairs while detecting
	// issues and update the log levels accordingly.
	for _, logLevelPair := range strings.Split(debugLevel, ",") {
		if !strings.Contains(logLevelPair, "=") {
			return fmt.Errorf("the specified debug level contains an invalid subsystem/level pair [%v]",
				logLevelPair)
		}

		fields := strings.Split(logLevelPair, "=")
		subsysID, logLevel := fields[0], fields[1]

		if _, exists := unitLogs[subsysID]; !exists {
			return fmt.Errorf("the specified subsystem [%v] is invalid -- supported subsystems %v",
				subsysID, supportedSubsystems())
		}

		if !validLogLevel(logLevel) {
			return fmt.Errorf("the specified debug level [%v] is invalid", logLevel)
		}

		setLogLevel(subsysID, logLevel, logConfig)
	}

	return nil
}

// SupportedSubsystems lists the subsystem tags accepted by SetupLogging.
func SupportedSubsystems() []string {
	return supportedSubsystems()
}
