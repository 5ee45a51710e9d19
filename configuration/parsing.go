// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package configuration

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bitmark-inc/latticed/chain"
	"github.com/bitmark-inc/logger"
)

// basic defaults (directories and files are relative to the
// "DataDirectory" from the Configuration file)
const (
	defaultDataDirectory = "" // this will error; use "." for the same directory as the config file
	defaultPidFile       = "latticed.pid"

	defaultPrivateKeyFile = "latticed.private"
	defaultPublicKeyFile  = "latticed.public"

	defaultLogDirectory = "log"
	defaultLogFile      = "latticed.log"
	defaultLogCount     = 10          // number of log files retained
	defaultLogSize      = 1024 * 1024 // rotate when <logfile> exceeds this size

	defaultMaxPeers        = 125
	defaultPeerRateLimit   = 1 << 20 // 1 MiB/s, see p2p.defaultRateLimit
	defaultBanDuration     = 24 * 60 * 60
	defaultMempoolMaxBytes = 32 * 1024 * 1024
	defaultMinFeePerByte   = 1.0
)

// LoglevelMap - per-tag log level overrides
type LoglevelMap map[string]string

var defaultLogLevels = LoglevelMap{
	"main":            "info",
	"config":          "info",
	logger.DefaultTag: "critical",
}

// PeerConnection - a statically configured peer to dial at startup,
// one entry of Peering.Connect
type PeerConnection struct {
	PublicKey string `gluamapper:"public_key"`
	Address   string `gluamapper:"address"`
}

// PeerType - P2P policy: listen endpoints, static connect list, and
// this node's own curve keypair (kept file paths here, the way the
// teacher's RPC/Peering sections already do, rather than raw key
// material inline in the config file)
type PeerType struct {
	Listen     []string         `gluamapper:"listen"`
	Connect    []PeerConnection `gluamapper:"connect"`
	PrivateKey string           `gluamapper:"private_key"`
	PublicKey  string           `gluamapper:"public_key"`

	MaxPeers      int     `gluamapper:"max_peers"`
	PeerRateLimit uint64  `gluamapper:"peer_rate_limit"`
	BanDuration   int     `gluamapper:"ban_duration"`
}

// MempoolType - pool admission policy: byte budget and fee floor
type MempoolType struct {
	MaxBytes      int     `gluamapper:"max_bytes"`
	MinFeePerByte float64 `gluamapper:"min_fee_per_byte"`
}

// MiningType - miner thread count and payout address; zero threads
// disables mining entirely
type MiningType struct {
	Threads int    `gluamapper:"threads"`
	Address string `gluamapper:"address"`
}

// ConsensusType - the parameters that must be identical across every
// peer on a network; mapped onto chain.Parameters by Parameters.
type ConsensusType struct {
	ReorgLimit          uint64  `gluamapper:"reorg_limit"`
	RetargetWindow      uint64  `gluamapper:"retarget_window"`
	NMeasurement        uint64  `gluamapper:"n_measurement"`
	Kp                  float64 `gluamapper:"kp"`
	BlockTimingSeconds  float64 `gluamapper:"block_timing_seconds"`
	MaxAdjustmentFactor float64 `gluamapper:"max_adjustment_factor"`
	AllowedDriftSeconds uint64  `gluamapper:"allowed_drift_seconds"`
	MaxCoinSupply       uint64  `gluamapper:"max_coin_supply"`
	HalvingInterval     uint64  `gluamapper:"halving_interval"`
}

// Configuration - the node's complete configuration. Logging
// uses logger.Configuration directly (not a locally redefined type) so
// it can be passed straight to logger.Initialise, matching every one
// of the teacher's command/*/configuration.go files.
type Configuration struct {
	DataDirectory string               `gluamapper:"data_directory"`
	PidFile       string               `gluamapper:"pidfile"`
	NetworkType   string               `gluamapper:"network_type"`
	Peering       PeerType             `gluamapper:"peering"`
	Mempool       MempoolType          `gluamapper:"mempool"`
	Mining        MiningType           `gluamapper:"mining"`
	Consensus     ConsensusType        `gluamapper:"consensus"`
	Logging       logger.Configuration `gluamapper:"logging"`
}

// GetConfiguration - read, decode and verify the configuration
func GetConfiguration(configurationFileName string) (*Configuration, error) {

	configurationFileName, err := filepath.Abs(filepath.Clean(configurationFileName))
	if nil != err {
		return nil, err
	}

	// absolute path to the main directory
	dataDirectory, _ := filepath.Split(configurationFileName)

	defaultParams := chain.DefaultParameters()
	defaults := ConsensusType{
		ReorgLimit:          defaultParams.ReorgLimit,
		RetargetWindow:      defaultParams.RetargetWindow,
		NMeasurement:        defaultParams.NMeasurement,
		Kp:                  defaultParams.Kp,
		BlockTimingSeconds:  defaultParams.BlockTimingSeconds,
		MaxAdjustmentFactor: defaultParams.MaxAdjustmentFactor,
		AllowedDriftSeconds: defaultParams.AllowedDriftSeconds,
		MaxCoinSupply:       defaultParams.InitialSubsidy * defaultParams.HalvingInterval * 2,
		HalvingInterval:     defaultParams.HalvingInterval,
	}

	options := &Configuration{
		DataDirectory: defaultDataDirectory,
		PidFile:       defaultPidFile,
		NetworkType:   chain.Mainnet,

		Peering: PeerType{
			PrivateKey:    defaultPrivateKeyFile,
			PublicKey:     defaultPublicKeyFile,
			MaxPeers:      defaultMaxPeers,
			PeerRateLimit: defaultPeerRateLimit,
			BanDuration:   defaultBanDuration,
		},

		Mempool: MempoolType{
			MaxBytes:      defaultMempoolMaxBytes,
			MinFeePerByte: defaultMinFeePerByte,
		},

		Mining: MiningType{
			Threads: 0, // disabled unless the configuration file overrides it
		},

		Consensus: defaults,

		Logging: logger.Configuration{
			Directory: defaultLogDirectory,
			File:      defaultLogFile,
			Size:      defaultLogSize,
			Count:     defaultLogCount,
			Levels:    defaultLogLevels,
		},
	}

	if err := ParseConfigurationFile(configurationFileName, options); err != nil {
		return nil, err
	}

	// if any test mode and the database file was not specified
	// switch to appropriate default.  Abort if then chain name is
	// not recognised.
	options.NetworkType = strings.ToLower(options.NetworkType)
	if !chain.Valid(options.NetworkType) {
		return nil, fmt.Errorf("network_type: %q is not supported", options.NetworkType)
	}

	// ensure absolute data directory
	if "" == options.DataDirectory || "~" == options.DataDirectory {
		return nil, fmt.Errorf("path: %q is not a valid directory", options.DataDirectory)
	} else if "." == options.DataDirectory {
		options.DataDirectory = dataDirectory // same directory as the configuration file
	} else {
		options.DataDirectory = filepath.Clean(options.DataDirectory)
	}

	// this directory must exist - i.e. must be created prior to running
	if fileInfo, err := os.Stat(options.DataDirectory); nil != err {
		return nil, err
	} else if !fileInfo.IsDir() {
		return nil, fmt.Errorf("path: %q is not a directory", options.DataDirectory)
	}

	// force all relevant items to be absolute paths
	mustBeAbsolute := []*string{
		&options.PidFile,
		&options.Peering.PrivateKey,
		&options.Peering.PublicKey,
		&options.Logging.Directory,
	}
	for _, f := range mustBeAbsolute {
		*f = ensureAbsolute(options.DataDirectory, *f)
	}

	// fail if any of these are not simple file names i.e. must not
	// contain a path separator, then add the correct directory prefix
	mustNotBePaths := [][2]*string{
		{&options.Logging.File, &options.Logging.Directory},
	}
	for _, f := range mustNotBePaths {
		switch filepath.Dir(*f[0]) {
		case "", ".":
			*f[0] = ensureAbsolute(*f[1], *f[0])
		default:
			return nil, fmt.Errorf("files: %q is not a plain name", *f[0])
		}
	}

	// make absolute and create directories if they do not already exist
	for _, d := range []*string{&options.Logging.Directory} {
		*d = ensureAbsolute(options.DataDirectory, *d)
		if err := os.MkdirAll(*d, 0700); nil != err {
			return nil, err
		}
	}

	return options, nil
}

// Parameters - the Configuration's consensus section as chain.Parameters
func (c *Configuration) Parameters() chain.Parameters {
	return chain.Parameters{
		ReorgLimit:          c.Consensus.ReorgLimit,
		RetargetWindow:      c.Consensus.RetargetWindow,
		NMeasurement:        c.Consensus.NMeasurement,
		Kp:                  c.Consensus.Kp,
		BlockTimingSeconds:  c.Consensus.BlockTimingSeconds,
		MaxAdjustmentFactor: c.Consensus.MaxAdjustmentFactor,
		AllowedDriftSeconds: c.Consensus.AllowedDriftSeconds,
		InitialSubsidy:      initialSubsidy(c.Consensus.MaxCoinSupply, c.Consensus.HalvingInterval),
		HalvingInterval:     c.Consensus.HalvingInterval,
	}
}

// initialSubsidy - derives the first halving epoch's per-block subsidy
// from a configured total coin supply, so operators name the quantity
// they actually care about (max_coin_supply) rather than reverse
// engineering it from a subsidy constant
func initialSubsidy(maxCoinSupply uint64, halvingInterval uint64) uint64 {
	if 0 == halvingInterval {
		return 0
	}
	// sum_{i=0}^{inf} halvingInterval * (subsidy >> i) == halvingInterval * subsidy * 2,
	// so subsidy == maxCoinSupply / (2 * halvingInterval)
	return maxCoinSupply / (2 * halvingInterval)
}

// ensureAbsolute - the path is absolute
func ensureAbsolute(directory string, filePath string) string {
	if !filepath.IsAbs(filePath) {
		filePath = filepath.Join(directory, filePath)
	}
	return filepath.Clean(filePath)
}
