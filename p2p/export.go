// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package p2p

import "time"

// ForEachPeer - apply fn to every currently connected peer session;
// exported so syncer can pick a sync source without reaching into the
// package's internal table, the same boundary gossip.go already
// crosses for fan-out
func ForEachPeer(fn func(addr string, session *Session)) {
	globalTable.forEach(fn)
}

// PeerCount - number of currently connected peers
func PeerCount() int {
	return globalTable.count()
}

// DropPeer - close and forget a session, called by syncer on a
// malformed or inconsistent response
func DropPeer(addr string) {
	globalTable.drop(addr)
}

// BanPeer - drop and ban a peer for duration, called by syncer when a
// peer serves an invalid header chain
func BanPeer(addr string, duration time.Duration) {
	globalBans.ban(addr, timeNow(), duration)
	globalTable.drop(addr)
}
