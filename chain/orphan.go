// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chain

import (
	"github.com/bitmark-inc/latticed/block"
	"github.com/bitmark-inc/latticed/cache"
	"github.com/bitmark-inc/latticed/merkle"
)

// bound on parked blocks so a peer cannot flood memory with fake
// orphans; anything past this is dropped and re-fetched by the syncer
const maximumOrphanBlocks = 256

type orphanRecord struct {
	packed []byte
	parent merkle.Digest
	source string
}

// queueOrphan - park a block whose parent is not yet known. Only
// blocks that already carry valid proof-of-work are worth holding:
// the hash check needs no ancestor context and filters out free junk.
func queueOrphan(blk *block.Block, source string) {
	if !blk.Header.CheckPoW() {
		return
	}
	if cache.Pool.OrphanBlocks.Size() >= maximumOrphanBlocks {
		return
	}
	packed, err := blk.Pack()
	if nil != err {
		return
	}
	hash := blk.Header.Digest()
	cache.Pool.OrphanBlocks.Put(string(hash[:]), orphanRecord{
		packed: packed,
		parent: blk.Header.PreviousBlock,
		source: source,
	})
}

// adoptOrphans - after a block is accepted, resubmit any parked blocks
// that were waiting for it, walking the chain of adoptions breadth
// first so an orphan's own children are picked up too
func adoptOrphans(parent merkle.Digest) {
	pending := []merkle.Digest{parent}

	for 0 != len(pending) {
		want := pending[0]
		pending = pending[1:]

		for key, value := range cache.Pool.OrphanBlocks.Items() {
			record, ok := value.(orphanRecord)
			if !ok || record.parent != want {
				continue
			}
			cache.Pool.OrphanBlocks.Delete(key)

			blk, err := block.Unpack(record.packed)
			if nil != err {
				continue
			}
			if err := submitBlock(blk, record.source); nil == err {
				pending = append(pending, blk.Header.Digest())
			}
		}
	}
}
