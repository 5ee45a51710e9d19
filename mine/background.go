// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mine

import (
	"sync"
	"time"

	"github.com/bitmark-inc/latticed/account"
	"github.com/bitmark-inc/latticed/background"
	"github.com/bitmark-inc/latticed/fault"
	"github.com/bitmark-inc/logger"
)

// templateRefreshInterval - how often the template is rebuilt from the
// current tip and pending pool; mirrors the teacher's polling interval
// for gathering newly available transactions
const templateRefreshInterval = 10 * time.Second

var global struct {
	sync.RWMutex

	log               *logger.L
	background        *background.T
	coinbaseRecipient account.Address
	threads           int
	initialised       bool
}

// Initialise - start threads worker goroutines mining against
// coinbaseRecipient; threads <= 0 disables mining entirely
// and Initialise becomes a no-op that
// still reports success, so callers don't need an extra branch
func Initialise(threads int, coinbaseRecipient account.Address) error {
	global.Lock()
	defer global.Unlock()

	if global.initialised {
		return fault.ErrAlreadyInitialised
	}

	global.log = logger.New("mine")
	global.log.Info("starting…")
	global.coinbaseRecipient = coinbaseRecipient
	global.threads = threads

	if threads <= 0 {
		global.log.Info("mining disabled: mining_threads is 0")
		global.initialised = true
		return nil
	}

	if _, err := refreshTemplate(coinbaseRecipient); nil != err {
		return err
	}

	processes := make(background.Processes, 0, threads+1)
	processes = append(processes, refreshLoop)
	for id := 0; id < threads; id++ {
		processes = append(processes, workerProcess(id, threads))
	}

	global.background = background.Start(processes, global.log)
	global.initialised = true
	return nil
}

// Finalise - stop the template refresh loop and every worker
func Finalise() error {
	global.Lock()
	defer global.Unlock()

	if !global.initialised {
		return fault.ErrNotInitialised
	}
	if nil != global.background {
		background.Stop(global.background)
	}
	global.initialised = false
	return nil
}

func refreshLoop(args interface{}, shutdown <-chan bool, done chan<- bool) {
	log := args.(*logger.L)
	defer close(done)

	ticker := time.NewTicker(templateRefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-shutdown:
			return
		case <-ticker.C:
			global.RLock()
			recipient := global.coinbaseRecipient
			global.RUnlock()
			if _, err := refreshTemplate(recipient); nil != err {
				log.Warnf("mine: template refresh failed: %s", err)
			}
		}
	}
}
