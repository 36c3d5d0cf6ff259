// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2020 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/go-playground/validator/v10"
	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
	"gitlab.com/xpchain/xpcd/corelog"
	"gitlab.com/xpchain/xpcd/node/kernel"
	"gitlab.com/xpchain/xpcd/node/mining"
	"gitlab.com/xpchain/xpcd/types/chaincfg"
	"gopkg.in/yaml.v3"
)

const (
	defaultConfigFilename = "xpcd.yaml"
	defaultDataDirname    = "data"
	defaultLogLevel       = "info"
	defaultNet            = "mainnet"

	defaultKernelCacheSize = 100000
	defaultCoinStakeFee    = 0

	defaultMetricsPort     = 2112
	defaultMetricsInterval = 5
)

var defaultHomeDir = btcutil.AppDataDir("xpcd", false)

// RewardShareConfig is one row of the reward distribution table.
type RewardShareConfig struct {
	Address string `yaml:"address" validate:"required"`
	Percent uint8  `yaml:"percent" validate:"lte=100"`
}

// MiningConfig configures block templates and the proof-of-work miner.
type MiningConfig struct {
	mining.Options `yaml:",inline"`

	Generate    bool     `yaml:"generate" long:"generate" description:"Generate (mine) proof-of-work blocks using the CPU"`
	NumWorkers  int32    `yaml:"num_workers" long:"genworkers" description:"Number of CPU mining workers, negative for the default" validate:"gte=-1"`
	MiningAddrs []string `yaml:"mining_addrs" long:"miningaddr" description:"Add the specified payment address to the list of addresses to use for generated blocks"`
}

// StakingConfig configures the stake minter and its keyring.
type StakingConfig struct {
	Enable       bool     `yaml:"enable" long:"staking" description:"Mint proof-of-stake blocks with the configured keys"`
	PrivateKeys  []string `yaml:"private_keys" long:"stakekey" description:"Private key, hex or WIF encoded, to stake with"`
	CoinStakeFee int64    `yaml:"coinstake_fee" long:"coinstakefee" description:"Fee in base units paid by every coinstake" validate:"gte=0"`

	KernelCache kernel.CachePolicy `yaml:"kernel_cache"`

	RewardDistribution []RewardShareConfig `yaml:"reward_distribution" validate:"rewardsum,dive"`
}

// MetricsConfig configures the prometheus endpoint.
type MetricsConfig struct {
	Enable   bool   `yaml:"enable" long:"metrics" description:"Serve prometheus metrics"`
	Port     uint16 `yaml:"port" long:"metricsport" description:"Port of the metrics endpoint"`
	Interval int    `yaml:"interval" long:"metricsinterval" description:"Seconds between two metric reads" validate:"gte=0"`
}

// Config defines the configuration options for xpcd.
type Config struct {
	ConfigFile  string `yaml:"-" short:"C" long:"configfile" description:"Path to configuration file"`
	ShowVersion bool   `yaml:"-" short:"V" long:"version" description:"Display version information and exit"`

	DataDir    string `yaml:"data_dir" short:"b" long:"datadir" description:"Directory to store data"`
	Net        string `yaml:"net" long:"net" description:"Network to join: mainnet, testnet or regtest" validate:"oneof=mainnet testnet regtest"`
	DebugLevel string `yaml:"debug_level" short:"d" long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} -- You may also specify <subsystem>=<level>,<subsystem2>=<level>,... to set the log level for individual subsystems -- Use show to list available subsystems"`

	Profile    string `yaml:"profile" long:"profile" description:"Enable HTTP profiling on given port -- NOTE port must be between 1024 and 65536"`
	CPUProfile string `yaml:"cpu_profile" long:"cpuprofile" description:"Write CPU profile to the specified file"`

	LogConfig corelog.Config `yaml:"log_config" group:"Logging"`
	Mining    MiningConfig   `yaml:"mining" group:"Mining"`
	Staking   StakingConfig  `yaml:"staking" group:"Staking"`
	Metrics   MetricsConfig  `yaml:"metrics" group:"Metrics"`
}

// Default returns the configuration of a node started without options.
func Default() Config {
	params, _ := chaincfg.ParamsForNet(defaultNet)
	return Config{
		ConfigFile: filepath.Join(defaultHomeDir, defaultConfigFilename),
		DataDir:    filepath.Join(defaultHomeDir, defaultDataDirname),
		Net:        defaultNet,
		DebugLevel: defaultLogLevel,
		LogConfig:  corelog.Config{}.Default(),
		Mining: MiningConfig{
			Options:    mining.DefaultOptions(params),
			NumWorkers: -1,
		},
		Staking: StakingConfig{
			CoinStakeFee: defaultCoinStakeFee,
			KernelCache:  kernel.CachePolicy{MaxEntries: defaultKernelCacheSize},
		},
		Metrics: MetricsConfig{
			Port:     defaultMetricsPort,
			Interval: defaultMetricsInterval,
		},
	}
}

// ChainParams returns the parameters of the configured network.
func (cfg *Config) ChainParams() (*chaincfg.Params, error) {
	return chaincfg.ParamsForNet(cfg.Net)
}

// Distribution decodes the reward table for the given network.
func (cfg *StakingConfig) Distribution(params *chaincfg.Params) (mining.RewardDistribution, error) {
	distribution := make(mining.RewardDistribution, 0, len(cfg.RewardDistribution))
	for _, row := range cfg.RewardDistribution {
		addr, err := btcutil.DecodeAddress(row.Address, params.AddressParams)
		if err != nil {
			return nil, errors.Wrapf(err, "reward address %q", row.Address)
		}
		distribution = append(distribution, mining.RewardShare{Destination: addr, Percent: row.Percent})
	}
	return distribution, distribution.Validate()
}

// MiningAddresses decodes the proof-of-work payment addresses.
func (cfg *MiningConfig) MiningAddresses(params *chaincfg.Params) ([]btcutil.Address, error) {
	addrs := make([]btcutil.Address, 0, len(cfg.MiningAddrs))
	for _, str := range cfg.MiningAddrs {
		addr, err := btcutil.DecodeAddress(str, params.AddressParams)
		if err != nil {
			return nil, errors.Wrapf(err, "mining address %q", str)
		}
		if !addr.IsForNet(params.AddressParams) {
			return nil, errors.Errorf("mining address %q is on the wrong network", str)
		}
		addrs = append(addrs, addr)
	}
	return addrs, nil
}

// validateRewardSum checks that the shares of a reward table sum to at most
// 100 percent.
func validateRewardSum(fl validator.FieldLevel) bool {
	rows, ok := fl.Field().Interface().([]RewardShareConfig)
	if !ok {
		return false
	}
	total := 0
	for _, row := range rows {
		total += int(row.Percent)
	}
	return total <= 100
}

func newValidator() *validator.Validate {
	validate := validator.New(validator.WithRequiredStructEnabled())
	// rewardsum is checked on the whole slice before dive descends.
	_ = validate.RegisterValidation("rewardsum", validateRewardSum)
	return validate
}

// Validate checks the field constraints of cfg.
func (cfg *Config) Validate() error {
	if err := newValidator().Struct(cfg); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}
	_, err := cfg.ChainParams()
	return err
}

// cleanAndExpandPath expands environment variables and leading ~ in the
// passed path, cleans the result, and returns it.
func cleanAndExpandPath(path string) string {
	// Expand initial ~ to OS specific home directory.
	if strings.HasPrefix(path, "~") {
		homeDir := filepath.Dir(defaultHomeDir)
		path = strings.Replace(path, "~", homeDir, 1)
	}

	// NOTE: The os.ExpandEnv doesn't work with Windows-style %VARIABLE%,
	// but they variables can still be expanded via POSIX-style $VARIABLE.
	return filepath.Clean(os.ExpandEnv(path))
}

// fileExists reports whether the named file or directory exists.
func fileExists(name string) bool {
	if _, err := os.Stat(name); err != nil {
		if os.IsNotExist(err) {
			return false
		}
	}
	return true
}

// LoadConfig initializes and parses the config using a config file and command
// line options.
//
// The configuration proceeds as follows:
//  1. Start with a default config with sane settings
//  2. Pre-parse the command line to check for an alternative config file
//  3. Load configuration file overwriting defaults with any specified options
//  4. Parse CLI options and overwrite/add any specified options
//
// Command line options always take precedence.
func LoadConfig(args []string) (*Config, []string, error) {
	cfg := Default()

	// Pre-parse the command line options to see if an alternative config
	// file or the version flag was specified.  Any errors aside from the
	// help message error can be ignored here since they will be caught by
	// the final parse below.
	preCfg := cfg
	preParser := flags.NewParser(&preCfg, flags.HelpFlag)
	if _, err := preParser.ParseArgs(args); err != nil {
		if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
			return nil, nil, err
		}
	}
	if preCfg.ShowVersion {
		return &preCfg, nil, nil
	}

	configFile := cleanAndExpandPath(preCfg.ConfigFile)
	if !fileExists(configFile) {
		if err := createDefaultConfigFile(configFile, cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Error creating a default config file: %v\n", err)
		}
	}

	if err := loadConfigFile(configFile, &cfg); err != nil {
		return nil, nil, err
	}

	// Parse command line options again to ensure they take precedence.
	parser := flags.NewParser(&cfg, flags.Default)
	remainingArgs, err := parser.ParseArgs(args)
	if err != nil {
		return nil, nil, err
	}

	cfg.ConfigFile = configFile
	cfg.DataDir = filepath.Join(cleanAndExpandPath(cfg.DataDir), cfg.Net)
	if cfg.LogConfig.Directory != "" {
		cfg.LogConfig.Directory = filepath.Join(cleanAndExpandPath(cfg.LogConfig.Directory), cfg.Net)
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	return &cfg, remainingArgs, nil
}

// loadConfigFile decodes the yaml file at path over cfg.
func loadConfigFile(path string, cfg *Config) error {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrap(err, "unable to open config file")
	}
	defer file.Close()

	if err := yaml.NewDecoder(file).Decode(cfg); err != nil {
		return errors.Wrapf(err, "unable to parse config file %s", path)
	}
	return nil
}

// createDefaultConfigFile writes cfg as yaml to destinationPath.
func createDefaultConfigFile(destinationPath string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(destinationPath), 0o700); err != nil {
		return err
	}

	file, err := os.OpenFile(destinationPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := yaml.NewEncoder(file)
	encoder.SetIndent(2)
	if err := encoder.Encode(cfg); err != nil {
		return err
	}
	return encoder.Close()
}
