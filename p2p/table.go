// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package p2p

import (
	"sync"
	"time"

	"github.com/bitmark-inc/latticed/codec"
	"github.com/bitmark-inc/latticed/fault"
	"github.com/bitmark-inc/latticed/util"
	"github.com/bitmark-inc/logger"
)

// timeNow - indirection matching chain's nowFunc idiom, kept so the
// rate limiter in ratelimit.go does not call time.Now directly
func timeNow() time.Time { return time.Now() }

// globalBans - the single ban list shared by listener and outbound
// sessions; package level since both sides of a connection consult it
var globalBans = newBanList()

// peerTable - the set of peers this node is currently connected to or
// knows about, grounded on peer/addressbook.go's "single map guarded
// by one mutex, capped by a configured maximum" shape
type peerTable struct {
	sync.Mutex
	log        *logger.L
	self       string
	privateKey []byte
	publicKey  []byte
	network    string
	rateLimit  uint64
	banDuration time.Duration
	maxPeers   int

	sessions map[string]*Session
	known    map[string][]byte // address -> declared public key, for reconnect
}

var globalTable = &peerTable{}

func (t *peerTable) initialise(network string, privateKey, publicKey []byte, maxPeers int, rateLimit uint64, banDuration time.Duration) {
	t.log = logger.New("p2p-table")
	t.privateKey = privateKey
	t.publicKey = publicKey
	t.network = network
	t.rateLimit = rateLimit
	t.banDuration = banDuration
	t.maxPeers = maxPeers
	t.sessions = make(map[string]*Session)
	t.known = make(map[string][]byte)
}

// connectTo - dial addr with serverPublicKey and register the session,
// a no-op if already connected or banned
func (t *peerTable) connectTo(addr string, serverPublicKey []byte) error {
	t.Lock()
	if _, exists := t.sessions[addr]; exists {
		t.Unlock()
		return nil
	}
	if globalBans.isBanned(addr, timeNow()) {
		t.Unlock()
		return fault.ErrPeerBanned
	}
	if len(t.sessions) >= t.maxPeers {
		t.Unlock()
		return fault.ErrProtocolViolation
	}
	t.Unlock()

	conn, err := util.NewConnection(addr)
	if nil != err {
		return err
	}
	session, err := NewSession(t.network, t.privateKey, t.publicKey)
	if nil != err {
		return err
	}
	if err := session.Connect(conn, serverPublicKey, t.rateLimit, t.banDuration); nil != err {
		session.Close()
		return err
	}

	t.Lock()
	t.sessions[addr] = session
	t.known[addr] = serverPublicKey
	t.Unlock()
	t.log.Infof("connected to %s", addr)
	return nil
}

// drop - close and forget a session, called on repeated protocol
// violations or after BannedUntil
func (t *peerTable) drop(addr string) {
	t.Lock()
	session, ok := t.sessions[addr]
	delete(t.sessions, addr)
	t.Unlock()
	if ok {
		session.Close()
	}
}

// count - number of currently connected peers
func (t *peerTable) count() int {
	t.Lock()
	defer t.Unlock()
	return len(t.sessions)
}

// forEach - apply fn to a snapshot of the current sessions; broadcast
// helpers iterate the table this way so a slow peer cannot hold the
// table lock for the whole fan-out
func (t *peerTable) forEach(fn func(addr string, session *Session)) {
	t.Lock()
	snapshot := make(map[string]*Session, len(t.sessions))
	for addr, session := range t.sessions {
		snapshot[addr] = session
	}
	t.Unlock()
	for addr, session := range snapshot {
		fn(addr, session)
	}
}

// packPeerList - the PL reply body: addresses of currently connected peers
func (t *peerTable) packPeerList() []byte {
	t.Lock()
	addresses := make([]string, 0, len(t.sessions))
	for addr := range t.sessions {
		addresses = append(addresses, addr)
	}
	t.Unlock()
	return (&codec.PeerList{Addresses: addresses}).Pack()
}

// sweepIdle - disconnect peers that have not answered a PONG within
// timeout, called periodically from the bootstrap background process
func (t *peerTable) sweepIdle(timeout time.Duration) {
	now := timeNow()
	t.forEach(func(addr string, session *Session) {
		if session.state.Idle(now, timeout) {
			if err := session.Ping(); nil != err {
				t.drop(addr)
			} else {
				session.state.recordContact(now)
			}
		}
	})
}
