// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package constants - timing policy shared across subsystems
//
// consensus parameters live in chain.Parameters; the values here only
// shape local resource housekeeping and may differ between nodes
package constants

import (
	"time"
)

// the time a pending transaction may wait in the pool before the
// expiry sweep drops it
const MempoolTimeout = 72 * time.Hour

// interval between mempool expiry sweeps
const MempoolSweepInterval = 5 * time.Minute

// a peer silent for longer than this is probed and, failing that,
// disconnected
const PeerIdleTimeout = 60 * time.Second

// one request/reply round trip on a peer session
const PeerRequestTimeout = 10 * time.Second

// interval between bootstrap attempts while below the target peer
// count, also the cadence of the ban/idle sweeps
const BootstrapInterval = 15 * time.Second

// interval between sync-source polls
const CatchUpInterval = 10 * time.Second

// ban applied to a peer that serves an invalid header chain or block
const ProtocolViolationBan = 1 * time.Hour
