// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bitmark-inc/latticed/account"
	"github.com/bitmark-inc/latticed/cache"
	"github.com/bitmark-inc/latticed/chain"
	"github.com/bitmark-inc/latticed/configuration"
	"github.com/bitmark-inc/latticed/fault"
	"github.com/bitmark-inc/latticed/mempool"
	"github.com/bitmark-inc/latticed/mine"
	"github.com/bitmark-inc/latticed/mode"
	"github.com/bitmark-inc/latticed/p2p"
	"github.com/bitmark-inc/latticed/storage"
	"github.com/bitmark-inc/latticed/syncer"
	"github.com/bitmark-inc/latticed/version"
	"github.com/bitmark-inc/exitwithstatus"
	"github.com/bitmark-inc/getoptions"
	"github.com/bitmark-inc/logger"
)

// set by the linker: go build -ldflags "-X main.buildVersion=M.N" ./...
var buildVersion = "zero" // do not change this value

func main() {
	// ensure exit handler is first
	defer exitwithstatus.Handler()

	flags := []getoptions.Option{
		{Long: "help", HasArg: getoptions.NO_ARGUMENT, Short: 'h'},
		{Long: "verbose", HasArg: getoptions.NO_ARGUMENT, Short: 'v'},
		{Long: "quiet", HasArg: getoptions.NO_ARGUMENT, Short: 'q'},
		{Long: "version", HasArg: getoptions.NO_ARGUMENT, Short: 'V'},
		{Long: "config-file", HasArg: getoptions.REQUIRED_ARGUMENT, Short: 'c'},
	}

	program, options, arguments, err := getoptions.GetOS(flags)
	if nil != err {
		exitwithstatus.Message("%s: getoptions error: %s", program, err)
	}

	if len(options["version"]) > 0 {
		fmt.Printf("%s\n", version.Version)
		return
	}

	if len(options["help"]) > 0 {
		printHelp(program)
		return
	}

	// commands that need no configuration file at all
	if len(arguments) > 0 && processSetupCommand(arguments) {
		return
	}

	if 1 != len(options["config-file"]) {
		exitwithstatus.Message("%s: exactly one --config-file option is required, %d were given", program, len(options["config-file"]))
	}

	configurationFile := options["config-file"][0]
	theConfiguration, err := configuration.GetConfiguration(configurationFile)
	if nil != err {
		exitwithstatus.Message("%s: failed to read configuration from: %q  error: %s", program, configurationFile, err)
	}

	// commands that read the configuration but touch nothing persistent
	if len(arguments) > 0 && processConfigCommand(arguments, theConfiguration) {
		return
	}

	if err := logger.Initialise(theConfiguration.Logging); nil != err {
		exitwithstatus.Message("%s: logger setup failed: %s", program, err)
	}
	defer logger.Finalise()

	fault.Initialise()
	defer fault.Finalise()

	log := logger.New("main")
	defer log.Info("finished")
	log.Info("starting…")
	log.Infof("version: %s", buildVersion)
	log.Debugf("configuration: %#v", theConfiguration)

	// optional PID file, skipped if running under a supervisor
	if "" != theConfiguration.PidFile {
		lockFile, err := os.OpenFile(theConfiguration.PidFile, os.O_WRONLY|os.O_EXCL|os.O_CREATE, os.ModeExclusive|0600)
		if nil != err {
			if os.IsExist(err) {
				exitwithstatus.Message("%s: another instance is already running", program)
			}
			exitwithstatus.Message("%s: PID file: %q creation failed: %s", program, theConfiguration.PidFile, err)
		}
		fmt.Fprintf(lockFile, "%d\n", os.Getpid())
		lockFile.Close()
		defer os.Remove(theConfiguration.PidFile)
	}

	// set the initial system mode before any background task starts
	if err := mode.Initialise(theConfiguration.NetworkType); nil != err {
		log.Criticalf("mode initialise error: %s", err)
		exitwithstatus.Message("mode initialise error: %s", err)
	}
	defer mode.Finalise()

	log.Info("initialise cache")
	if err := cache.Initialise(); nil != err {
		log.Criticalf("cache initialise error: %s", err)
		exitwithstatus.Message("cache initialise error: %s", err)
	}
	defer cache.Finalise()

	log.Info("initialise storage")
	if err := storage.Initialise(theConfiguration.DataDirectory, false); nil != err {
		log.Criticalf("storage initialise error: %s", err)
		exitwithstatus.Message("storage initialise error: %s", err)
	}
	defer storage.Finalise()

	log.Info("initialise chain")
	if err := chain.Initialise(theConfiguration.NetworkType, theConfiguration.Parameters()); nil != err {
		log.Criticalf("chain initialise error: %s", err)
		exitwithstatus.Message("chain initialise error: %s", err)
	}
	defer chain.Finalise()

	log.Info("initialise mempool")
	if err := mempool.Initialise(theConfiguration.Mempool.MaxBytes, theConfiguration.Mempool.MinFeePerByte); nil != err {
		log.Criticalf("mempool initialise error: %s", err)
		exitwithstatus.Message("mempool initialise error: %s", err)
	}
	defer mempool.Finalise()

	var coinbaseRecipient account.Address
	if theConfiguration.Mining.Threads > 0 {
		coinbaseRecipient, err = account.AddressFromBase58(theConfiguration.Mining.Address)
		if nil != err {
			log.Criticalf("mining address error: %s", err)
			exitwithstatus.Message("mining address error: %s", err)
		}
	}
	log.Info("initialise mine")
	if err := mine.Initialise(theConfiguration.Mining.Threads, coinbaseRecipient); nil != err {
		log.Criticalf("mine initialise error: %s", err)
		exitwithstatus.Message("mine initialise error: %s", err)
	}
	defer mine.Finalise()

	log.Info("initialise p2p")
	if err := p2p.Initialise(&theConfiguration.Peering, theConfiguration.NetworkType); nil != err {
		log.Criticalf("p2p initialise error: %s", err)
		exitwithstatus.Message("p2p initialise error: %s", err)
	}
	defer p2p.Finalise()

	log.Info("initialise syncer")
	if err := syncer.Initialise(); nil != err {
		log.Criticalf("syncer initialise error: %s", err)
		exitwithstatus.Message("syncer initialise error: %s", err)
	}
	defer syncer.Finalise()

	mode.Set(mode.Normal)

	if 0 == len(options["quiet"]) {
		fmt.Printf("\n\nWaiting for CTRL-C (SIGINT) or 'kill <pid>' (SIGTERM)…\n")
	}

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	sig := <-ch
	log.Infof("received signal: %v", sig)
	if 0 == len(options["quiet"]) {
		fmt.Printf("\nreceived signal: %v\nshutting down…\n", sig)
	}

	log.Info("shutting down…")
	mode.Set(mode.Stopped)
}

func printHelp(program string) {
	fmt.Printf("usage: %s [options]\n\n", program)
	fmt.Printf("options:\n")
	fmt.Printf("  -h, --help             display this help\n")
	fmt.Printf("  -V, --version          display version\n")
	fmt.Printf("  -c, --config-file=FILE configuration file (required to run)\n")
	fmt.Printf("  -v, --verbose          accepted, has no effect\n")
	fmt.Printf("  -q, --quiet            suppress startup/shutdown banners\n")
	fmt.Printf("\nsetup commands (no configuration file needed):\n")
	fmt.Printf("  %s gen-peer-identity public-key-file private-key-file\n", program)
	fmt.Printf("\nconfig commands (configuration file required, no database access):\n")
	fmt.Printf("  %s -c FILE config-test\n", program)
}
