// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chain

import (
	"github.com/bitmark-inc/latticed/fault"
	"github.com/bitmark-inc/latticed/mempool"
	"github.com/bitmark-inc/latticed/merkle"
	"github.com/bitmark-inc/latticed/messagebus"
	"github.com/bitmark-inc/latticed/state"
	"github.com/bitmark-inc/latticed/storage"
)

// commonAncestor - walk both branches back to their heights matching,
// then together, until the hashes agree; returns the ancestor hash and
// the two paths from it (exclusive) to each tip, oldest first
func commonAncestor(a, b merkle.Digest) (ancestor merkle.Digest, pathA, pathB []merkle.Digest, err error) {
	metaA, err := getBlockMeta(a)
	if nil != err {
		return merkle.Digest{}, nil, nil, err
	}
	metaB, err := getBlockMeta(b)
	if nil != err {
		return merkle.Digest{}, nil, nil, err
	}

	for metaA.Height > metaB.Height {
		pathA = append([]merkle.Digest{a}, pathA...)
		blk, err := BlockByHash(a)
		if nil != err {
			return merkle.Digest{}, nil, nil, err
		}
		a = blk.Header.PreviousBlock
		metaA, err = getBlockMeta(a)
		if nil != err {
			return merkle.Digest{}, nil, nil, err
		}
	}
	for metaB.Height > metaA.Height {
		pathB = append([]merkle.Digest{b}, pathB...)
		blk, err := BlockByHash(b)
		if nil != err {
			return merkle.Digest{}, nil, nil, err
		}
		b = blk.Header.PreviousBlock
		metaB, err = getBlockMeta(b)
		if nil != err {
			return merkle.Digest{}, nil, nil, err
		}
	}

	for a != b {
		pathA = append([]merkle.Digest{a}, pathA...)
		pathB = append([]merkle.Digest{b}, pathB...)

		blkA, err := BlockByHash(a)
		if nil != err {
			return merkle.Digest{}, nil, nil, err
		}
		blkB, err := BlockByHash(b)
		if nil != err {
			return merkle.Digest{}, nil, nil, err
		}
		a = blkA.Header.PreviousBlock
		b = blkB.Header.PreviousBlock
	}

	return a, pathA, pathB, nil
}

// reorganise - locate the lowest common
// ancestor, persist a ForkState so a crash mid-reorg can be resumed,
// revert the old path, apply the new path, and roll the whole thing
// back if any new-path block fails to validate.
//
// Caller must already hold global's write lock.
func reorganise(candidateTip merkle.Digest, candidateMeta *BlockMetaData) error {
	oldPath, newPath, ancestor, err := pathsTo(candidateTip)
	if nil != err {
		return err
	}

	if uint64(len(oldPath)) > global.params.ReorgLimit {
		return fault.ErrReorgTooDeep
	}

	fs := &ForkState{Initiator: "submit_block", ForkPoint: ancestor, OldPath: oldPath, NewPath: newPath}
	persistForkState(fs)

	if err := revertPath(oldPath); nil != err {
		// the revert itself failing means storage is already
		// inconsistent; nothing further can be done safely
		return err
	}

	applied, applyErr := applyPath(newPath)
	if nil != applyErr {
		// roll back: undo whatever prefix of new_path committed, then
		// replay old_path to restore the chain to exactly where it was;
		// applied is oldest-first and revertPath unwinds newest-first
		if rollbackErr := revertPath(applied); nil != rollbackErr {
			return rollbackErr
		}
		if _, err := applyPath(oldPath); nil != err {
			// both paths now fail to apply; storage is left with
			// neither chain fully committed
			return err
		}
		clearForkState()
		return applyErr
	}

	clearForkState()

	global.tipHash = candidateTip
	global.tipHeight = candidateMeta.Height
	global.tipWork = candidateMeta.CumulativeDifficulty

	if err := rewriteBlockNumberIndex(ancestor, newPath); nil != err {
		return err
	}
	storage.Pool.ChainTip.Put(chainTipKey, candidateTip[:])

	mempool.OnReorg(global.tipHeight)
	messagebus.Send("chain", BlockAnnouncement{Hash: global.tipHash, Height: global.tipHeight})
	return nil
}

func pathsTo(candidateTip merkle.Digest) (oldPath, newPath []merkle.Digest, ancestor merkle.Digest, err error) {
	ancestor, oldPath, newPath, err = commonAncestor(global.tipHash, candidateTip)
	return oldPath, newPath, ancestor, err
}

func revertPath(path []merkle.Digest) error {
	for i := len(path) - 1; i >= 0; i-- {
		if err := state.RevertBlock(path[i]); nil != err {
			return err
		}
	}
	return nil
}

// applyPath - applies each block in order, returning the prefix that
// actually committed so a mid-apply failure only has to unwind that
// much rather than the whole path
func applyPath(path []merkle.Digest) (applied []merkle.Digest, err error) {
	for _, hash := range path {
		blk, err := BlockByHash(hash)
		if nil != err {
			return applied, err
		}
		if err := state.ApplyBlock(blk); nil != err {
			storage.Pool.Invalid.Put(hash[:], []byte{1})
			return applied, err
		}
		applied = append(applied, hash)
	}
	return applied, nil
}

// rewriteBlockNumberIndex - after a reorg, block_number -> header_hash
// must point at new_path's blocks, not old_path's, for every height
// from the fork point forward
func rewriteBlockNumberIndex(ancestor merkle.Digest, newPath []merkle.Digest) error {
	ancestorMeta, err := getBlockMeta(ancestor)
	if nil != err {
		return err
	}
	batch := storage.NewBatch()
	height := ancestorMeta.Height
	for _, hash := range newPath {
		height++
		batch.Put(storage.Pool.BlockNumber, blockNumberKey(height), hash[:])
	}
	return batch.Commit()
}
