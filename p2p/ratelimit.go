// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package p2p

import (
	"time"

	"golang.org/x/time/rate"

	"github.com/bitmark-inc/latticed/counter"
)

// peerLimiter - per-peer flow control: a token-bucket limiter gating
// how many bytes a peer may send per second, plus a cumulative byte
// counter for P2P_ACK frames. No listener or session code creates a
// peerLimiter, so received traffic is not rate-checked and byteCount is
// not sent in any P2P_ACK frame.
type peerLimiter struct {
	limiter     *rate.Limiter
	receivedSum counter.Counter
}

// newPeerLimiter - bytesPerSecond is the peer's own declared rate
// limit from its VE handshake; burst allows one full envelope through
// even when the bucket is momentarily empty
func newPeerLimiter(bytesPerSecond uint64, burst int) *peerLimiter {
	if 0 == bytesPerSecond {
		bytesPerSecond = defaultRateLimit
	}
	return &peerLimiter{
		limiter: rate.NewLimiter(rate.Limit(bytesPerSecond), burst),
	}
}

// allow - records n received bytes and reports whether they fall
// within the peer's declared rate; it has no caller, so a false result
// leads to no credibility penalty or ban
func (pl *peerLimiter) allow(n int) bool {
	pl.receivedSum.Add(uint64(n))
	return pl.limiter.AllowN(timeNow(), n)
}

// byteCount - the cumulative count to echo back in the next P2P_ACK
func (pl *peerLimiter) byteCount() uint64 {
	return pl.receivedSum.Uint64()
}

const defaultRateLimit = 1 << 20 // 1 MiB/s, used when a peer declares none
