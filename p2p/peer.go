// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package p2p - stream-oriented peer sessions: handshake, gossip
// dispatch, ban/rate-limit policy and peer-table bookkeeping,
// rebuilt on zmqutil rather than the teacher's libp2p pubsub layer.
package p2p

import (
	"time"

	"github.com/bitmark-inc/latticed/zmqutil"
)

// lastContactWindow - length of the last-contact timestamp ring
const lastContactWindow = 8

// PeerState - the bookkeeping kept per connected or known peer
type PeerState struct {
	Address         string
	ProtocolVersion uint16
	BannedUntil     time.Time
	Credibility     int
	lastContact     [lastContactWindow]time.Time
	lastContactNext int

	client *zmqutil.Client
}

// recordContact - push a new successful-contact timestamp into the ring
func (p *PeerState) recordContact(when time.Time) {
	p.lastContact[p.lastContactNext] = when
	p.lastContactNext = (p.lastContactNext + 1) % lastContactWindow
}

// lastContactAt - the most recent recorded contact time, the zero
// value if the peer has never been successfully contacted
func (p *PeerState) lastContactAt() time.Time {
	latest := time.Time{}
	for _, t := range p.lastContact {
		if t.After(latest) {
			latest = t
		}
	}
	return latest
}

// Idle - true once more than timeout has elapsed since the last
// successful contact
func (p *PeerState) Idle(now time.Time, timeout time.Duration) bool {
	last := p.lastContactAt()
	if last.IsZero() {
		return false
	}
	return now.Sub(last) > timeout
}

// Banned - true while BannedUntil is still in the future
func (p *PeerState) Banned(now time.Time) bool {
	return p.BannedUntil.After(now)
}

// reward/penalty steps applied to Credibility, bounded by creditMin and
// creditMax; adjustCredibility has no caller in session.go or elsewhere
// in this package, so no disconnect or ban threshold on Credibility is
// applied
const (
	creditGoodMessage   = 1
	creditBadMessage    = -10
	creditRateViolation = -25
	creditMax           = 100
	creditMin           = -100
)

func (p *PeerState) adjustCredibility(delta int) {
	p.Credibility += delta
	if p.Credibility > creditMax {
		p.Credibility = creditMax
	}
	if p.Credibility < creditMin {
		p.Credibility = creditMin
	}
}
