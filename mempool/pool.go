// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package mempool - the pending-transaction pool: admission,
// fee-rate/byte-budget eviction, and the address/fee-rate secondary
// indices the miner and P2P gossip both read from
//
// grounded on the teacher's reservoir package for the overall shape
// (a lock-guarded map of pending records with secondary indices and a
// background expiry sweep) generalized from its asset/issue/transfer
// provenance bookkeeping to a balance-account admission
// pipeline; the expiry/background wiring follows cache's
// background.Processes cleaner loop, with one fixed expiry duration in
// place of cache.Initialise's reflect-tag-driven per-pool setup
package mempool

import (
	"sort"
	"sync"
	"time"

	"github.com/bitmark-inc/latticed/account"
	"github.com/bitmark-inc/latticed/background"
	"github.com/bitmark-inc/latticed/constants"
	"github.com/bitmark-inc/latticed/fault"
	"github.com/bitmark-inc/latticed/merkle"
	"github.com/bitmark-inc/latticed/transactionrecord"
	"github.com/bitmark-inc/logger"
)

// Entry - a single pending transaction plus the bookkeeping fields
// the eviction and selection logic need
type Entry struct {
	Hash       merkle.Digest
	Tx         transactionrecord.Transaction
	Packed     transactionrecord.Packed
	Signer     account.Address
	FeeRate    float64 // Envelope.Fee / len(Packed), higher sorts first
	ReceivedAt time.Time
}

var global struct {
	sync.RWMutex

	byHash    map[merkle.Digest]*Entry
	byAddress map[account.Address]map[merkle.Digest]struct{}

	totalBytes int

	maxBytes      int
	minFeePerByte float64
	expireAfter   time.Duration

	log         *logger.L
	background  *background.T
	initialised bool
}

var processes = background.Processes{
	expireOldEntries,
}

// Initialise - start the pool; maxBytes bounds the admitted transaction
// bytes held in the pool, minFeePerByte is the admission floor
func Initialise(maxBytes int, minFeePerByte float64) error {
	global.Lock()
	defer global.Unlock()

	if global.initialised {
		return fault.ErrAlreadyInitialised
	}

	global.log = logger.New("mempool")
	global.log.Info("starting…")

	global.byHash = make(map[merkle.Digest]*Entry)
	global.byAddress = make(map[account.Address]map[merkle.Digest]struct{})
	global.maxBytes = maxBytes
	global.minFeePerByte = minFeePerByte
	global.expireAfter = constants.MempoolTimeout

	global.background = background.Start(processes, global.log)
	global.initialised = true
	return nil
}

// Finalise - stop the expiry sweep
func Finalise() {
	global.Lock()
	defer global.Unlock()

	if !global.initialised {
		return
	}
	background.Stop(global.background)
	global.initialised = false
}

// Get - look up a pending transaction by its content hash
func Get(hash merkle.Digest) (*Entry, bool) {
	global.RLock()
	defer global.RUnlock()
	e, ok := global.byHash[hash]
	return e, ok
}

// Size - number of pending transactions
func Size() int {
	global.RLock()
	defer global.RUnlock()
	return len(global.byHash)
}

// ByAddress - every pending transaction hash signed by addr, used by
// the RPC/wallet boundary to show an account's unconfirmed activity
func ByAddress(addr account.Address) []merkle.Digest {
	global.RLock()
	defer global.RUnlock()

	hashes := make([]merkle.Digest, 0, len(global.byAddress[addr]))
	for h := range global.byAddress[addr] {
		hashes = append(hashes, h)
	}
	return hashes
}

// Select - the pending transactions a block template should carry,
// highest fee rate first, up to maxBytes of packed transaction data;
// used by the miner to build a candidate block body
func Select(maxBytes int) []transactionrecord.Packed {
	global.RLock()
	entries := make([]*Entry, 0, len(global.byHash))
	for _, e := range global.byHash {
		entries = append(entries, e)
	}
	global.RUnlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].FeeRate > entries[j].FeeRate })

	picked := make([]*Entry, 0, len(entries))
	used := 0
	for _, e := range entries {
		if used+len(e.Packed) > maxBytes {
			continue
		}
		picked = append(picked, e)
		used += len(e.Packed)
	}

	// fee-rate order may interleave one signer's transactions out of
	// nonce order, which would fail block application; keep the
	// cross-signer ordering but restore nonce order within each signer
	bySigner := make(map[account.Address][]*Entry)
	for _, e := range picked {
		bySigner[e.Signer] = append(bySigner[e.Signer], e)
	}
	for _, group := range bySigner {
		sort.Slice(group, func(i, j int) bool {
			return group[i].Tx.GetEnvelope().Nonce < group[j].Tx.GetEnvelope().Nonce
		})
	}
	taken := make(map[account.Address]int)
	selected := make([]transactionrecord.Packed, 0, len(picked))
	for _, e := range picked {
		group := bySigner[e.Signer]
		next := group[taken[e.Signer]]
		taken[e.Signer]++
		selected = append(selected, next.Packed)
	}
	return selected
}

// insert - add entry under both indices and account for its bytes;
// caller must hold global.Lock
func insert(e *Entry) {
	global.byHash[e.Hash] = e
	if nil == global.byAddress[e.Signer] {
		global.byAddress[e.Signer] = make(map[merkle.Digest]struct{})
	}
	global.byAddress[e.Signer][e.Hash] = struct{}{}
	global.totalBytes += len(e.Packed)
}

// remove - drop entry from both indices; caller must hold global.Lock
func remove(hash merkle.Digest) {
	e, ok := global.byHash[hash]
	if !ok {
		return
	}
	delete(global.byHash, hash)
	delete(global.byAddress[e.Signer], hash)
	if 0 == len(global.byAddress[e.Signer]) {
		delete(global.byAddress, e.Signer)
	}
	global.totalBytes -= len(e.Packed)
}

// Remove - drop a transaction from the pool without applying it;
// used when a caller independently learns it can never be valid
func Remove(hash merkle.Digest) {
	global.Lock()
	defer global.Unlock()
	remove(hash)
}
