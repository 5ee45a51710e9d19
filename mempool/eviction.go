// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

import (
	"time"

	"github.com/bitmark-inc/latticed/constants"
	"github.com/bitmark-inc/latticed/merkle"
)

// evictLowestFeeRateLocked - drop the single lowest fee-rate entry to
// make room for a newly admitted, higher fee-rate transaction; never
// evicts the entry just inserted. Caller must hold global.Lock.
// Returns false when there is nothing left to evict.
func evictLowestFeeRateLocked(protect merkle.Digest) bool {
	var worst *Entry
	for hash, e := range global.byHash {
		if hash == protect {
			continue
		}
		if nil == worst || e.FeeRate < worst.FeeRate {
			worst = e
		}
	}
	if nil == worst {
		return false
	}
	remove(worst.Hash)
	return true
}

// expireOldEntries - background.Process sweep dropping any entry that
// has sat in the pool longer than global.expireAfter; prevents a low
// fee-rate transaction from lingering forever once demand has dropped
// below the byte budget that would otherwise have evicted it
func expireOldEntries(args interface{}, shutdown <-chan bool, done chan<- bool) {
	defer close(done)

	delay := constants.MempoolSweepInterval
	timer := time.NewTimer(delay)
	defer timer.Stop()

loop:
	for {
		select {
		case <-shutdown:
			break loop
		case <-timer.C:
			sweepExpired()
			timer.Reset(delay)
		}
	}
}

func sweepExpired() {
	global.Lock()
	defer global.Unlock()

	cutoff := nowFunc().Add(-global.expireAfter)
	for hash, e := range global.byHash {
		if e.ReceivedAt.Before(cutoff) {
			remove(hash)
		}
	}
}
