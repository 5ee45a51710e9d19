// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mine

import (
	"time"

	"github.com/bitmark-inc/latticed/background"
	"github.com/bitmark-inc/latticed/block"
	"github.com/bitmark-inc/latticed/chain"
	"github.com/bitmark-inc/logger"
)

// noTemplatePause - how long a worker waits before checking again when
// no template has been published yet
const noTemplatePause = 200 * time.Millisecond

// attemptsPerCheck - how many nonce attempts a worker makes between
// checks of the template's sequence number and the shutdown signal
const attemptsPerCheck = 1 << 12

// workerProcess - builds a background.Process for worker id of count,
// searching the nonce subrange id, id+count, id+2*count, ... so no two
// workers ever test the same nonce against the same template
func workerProcess(id, count int) background.Process {
	return func(args interface{}, shutdown <-chan bool, done chan<- bool) {
		log := args.(*logger.L)
		defer close(done)

		for {
			select {
			case <-shutdown:
				return
			default:
			}

			t := Current()
			if nil == t {
				// no template yet; refreshLoop or Initialise will
				// publish one shortly
				if !sleep(shutdown) {
					return
				}
				continue
			}

			blk := buildBlock(t)
			found, ok := search(blk, t.Sequence, id, count, shutdown)
			if !ok {
				return // shutdown requested mid-search
			}
			if !found {
				continue // template went stale, refetch and rebuild
			}

			log.Infof("mine: worker %d found block at height %d", id, blk.Header.BlockNumber)
			if err := chain.SubmitBlock(blk, "miner"); nil != err {
				log.Warnf("mine: submit failed: %s", err)
			}

			global.RLock()
			recipient := global.coinbaseRecipient
			global.RUnlock()
			if _, err := refreshTemplate(recipient); nil != err {
				log.Warnf("mine: template refresh after submit failed: %s", err)
			}
		}
	}
}

// search - try nonces id, id+count, id+2*count, ... until CheckPoW
// succeeds (found==true), the template goes stale (found==false,
// ok==true), or shutdown fires (ok==false)
func search(blk *block.Block, sequence uint64, id, count int, shutdown <-chan bool) (found bool, ok bool) {
	attempts := uint64(0)
	for nonce := uint64(id); ; nonce += uint64(count) {
		blk.Header.Nonce = nonce
		if blk.Header.CheckPoW() {
			return true, true
		}

		attempts++
		if 0 == attempts%attemptsPerCheck {
			select {
			case <-shutdown:
				return false, false
			default:
			}
			if cur := Current(); nil == cur || cur.Sequence != sequence {
				return false, true
			}
		}
	}
}

func sleep(shutdown <-chan bool) bool {
	select {
	case <-shutdown:
		return false
	case <-time.After(noTemplatePause):
		return true
	}
}
