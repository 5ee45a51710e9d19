// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package p2p

import (
	"sync"
	"time"
)

// banList - addresses currently banned, keyed by canonical address,
// guarded by its own mutex and kept out
// of the chain write path; unlike the gossip dedup sets (limitedset,
// a fixed-capacity recency ring with no notion of expiry) a ban needs
// an explicit expiry time, so this is a plain map rather than a
// limitedset.LimitedSet.
type banList struct {
	sync.Mutex
	bannedUntil map[string]time.Time
}

func newBanList() *banList {
	return &banList{bannedUntil: make(map[string]time.Time)}
}

// ban - bans addr until now+duration, extending any existing ban
// rather than shortening it
func (b *banList) ban(addr string, now time.Time, duration time.Duration) {
	b.Lock()
	defer b.Unlock()
	until := now.Add(duration)
	if existing, ok := b.bannedUntil[addr]; ok && existing.After(until) {
		return
	}
	b.bannedUntil[addr] = until
}

// isBanned - true while addr's ban has not yet expired
func (b *banList) isBanned(addr string, now time.Time) bool {
	b.Lock()
	defer b.Unlock()
	until, ok := b.bannedUntil[addr]
	return ok && until.After(now)
}

// sweep - drop bans that have already expired, called periodically so
// the map does not grow without bound
func (b *banList) sweep(now time.Time) {
	b.Lock()
	defer b.Unlock()
	for addr, until := range b.bannedUntil {
		if !until.After(now) {
			delete(b.bannedUntil, addr)
		}
	}
}
