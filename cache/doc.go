// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package cache - expiring in-memory pools for artifacts that are
// waiting on something else to arrive and must not be held forever
//
//  ***** Data Structure *****
//
//  Pool                        Key                  Value                 ExpiresAfter
//  |___ OrphanBlocks           orphan header hash   chain orphan record   1h
//  |___ RejectedTransactions   transaction id       rejection error       30m
//  |___ TestA                  (tests only)                               3s
//  |___ TestB                  (tests only)                               never
//
//  ***** Purpose *****
//
//  OrphanBlocks:
//    a block whose parent is not yet known cannot be validated; it is
//    parked here keyed by its own header hash until the parent arrives
//    through gossip or sync, and silently dropped if it never does
//
//  RejectedTransactions:
//    signature verification is the expensive step of admission; a
//    transaction that already failed it once is remembered so repeated
//    gossip of the same bad record is refused without re-verifying
package cache
