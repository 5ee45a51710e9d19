// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package state

import (
	"github.com/bitmark-inc/latticed/merkle"
	"github.com/bitmark-inc/latticed/storage"
)

// RevertBlock - revert_block: the exact inverse of ApplyBlock,
// consulting the write set stashed at commit time instead of
// re-deriving anything from the transactions themselves. headerHash
// identifies the block being reverted; its write set is deleted as
// part of the same atomic batch since a block can only be reverted once.
func RevertBlock(headerHash merkle.Digest) error {
	entries, err := getWriteSet(headerHash)
	if nil != err {
		return err
	}

	batch := storage.NewBatch()
	for _, e := range entries {
		pool := poolForPrefix(e.Prefix)
		if nil == e.PriorValue {
			batch.Delete(pool, e.Key)
		} else {
			batch.Put(pool, e.Key, e.PriorValue)
		}
	}
	batch.Delete(storage.Pool.WriteSet, headerHash[:])
	return batch.Commit()
}
