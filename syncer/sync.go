// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package syncer implements header-first catch-up sync, grounded on
// the teacher's peer/synchronise.go "poll for a better chain, fetch
// and apply the difference" shape, generalized from its single-track
// whole-block polling to a windowed header-then-block
// backfill against the peer with the highest cumulative difficulty.
package syncer

import (
	"sync"
	"time"

	"github.com/bitmark-inc/latticed/background"
	"github.com/bitmark-inc/latticed/chain"
	"github.com/bitmark-inc/latticed/constants"
	"github.com/bitmark-inc/latticed/fault"
	"github.com/bitmark-inc/latticed/p2p"
	"github.com/bitmark-inc/logger"
)

// headerWindow - hashes requested per HEADERHASHES round trip; the
// listener independently caps its reply at the same size, this is
// just this node's request size
const headerWindow = 2000

var globalData struct {
	sync.Mutex
	log         *logger.L
	processes   *background.T
	initialised bool
}

// Initialise - start the background catch-up loop
func Initialise() error {
	globalData.Lock()
	defer globalData.Unlock()

	if globalData.initialised {
		return fault.ErrAlreadyInitialised
	}
	globalData.log = logger.New("syncer")
	globalData.processes = background.Start(background.Processes{syncLoop}, nil)
	globalData.initialised = true
	globalData.log.Info("started")
	return nil
}

// Finalise - stop the background catch-up loop
func Finalise() error {
	globalData.Lock()
	defer globalData.Unlock()

	if !globalData.initialised {
		return fault.ErrNotInitialised
	}
	background.Stop(globalData.processes)
	globalData.initialised = false
	globalData.log.Info("stopped")
	return nil
}

func syncLoop(args interface{}, shutdown <-chan bool, finished chan<- bool) {
	log := logger.New("syncer")
	log.Info("starting…")

	ticker := time.NewTicker(constants.CatchUpInterval)
	defer ticker.Stop()

loop:
	for {
		select {
		case <-shutdown:
			break loop
		case <-ticker.C:
			runOnce(log)
		}
	}

	log.Info("stopped")
	finished <- true
}
