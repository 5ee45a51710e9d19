// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chain

import (
	"math/big"
	"sort"
	"time"

	"github.com/bitmark-inc/latticed/block"
	"github.com/bitmark-inc/latticed/fault"
	"github.com/bitmark-inc/latticed/mempool"
	"github.com/bitmark-inc/latticed/merkle"
	"github.com/bitmark-inc/latticed/messagebus"
	"github.com/bitmark-inc/latticed/state"
	"github.com/bitmark-inc/latticed/storage"
)

// BlockAnnouncement - published on the message bus whenever the tip
// hash changes, the signal p2p's gossip fan-out subscribes to so newly
// committed blocks reach other peers without chain importing p2p
type BlockAnnouncement struct {
	Hash   merkle.Digest
	Height uint64
}

// nowFunc - indirection so tests can pin wall-clock time instead of
// racing real time in the allowed-drift check
var nowFunc = time.Now

// SubmitBlock - validate a candidate block and thread it into the
// header tree, committing it if it extends the current tip, enqueuing
// it as a recognised-but-losing branch if it doesn't, and triggering a
// reorg if it newly outweighs the current tip. source is an opaque
// label (peer address, "miner", ...) used only for logging.
//
// A block arriving before its parent is parked in the orphan pool and
// still reported as ErrUnknownParent; acceptance of any block retries
// the orphans that were waiting on it.
func SubmitBlock(blk *block.Block, source string) error {
	err := submitBlock(blk, source)

	switch {
	case fault.ErrUnknownParent == err:
		queueOrphan(blk, source)
	case nil == err:
		adoptOrphans(blk.Header.Digest())
	}

	return err
}

func submitBlock(blk *block.Block, source string) error {
	global.Lock()
	defer global.Unlock()

	headerHash := blk.Header.Digest()

	if storage.Pool.Invalid.Has(headerHash[:]) {
		return fault.ErrInvalidBranch
	}
	if _, err := getBlockMeta(headerHash); nil == err {
		return fault.ErrDuplicateBlock
	}

	parentMeta, err := getBlockMeta(blk.Header.PreviousBlock)
	if nil != err {
		return fault.ErrUnknownParent
	}

	subsidy := block.Subsidy(blk.Header.BlockNumber, global.params.InitialSubsidy, global.params.HalvingInterval)
	if err := blk.BasicValidate(parentMeta.Height, blk.Header.PreviousBlock, subsidy); nil != err {
		return err
	}
	if err := checkTimestamp(blk.Header.Timestamp, parentMeta); nil != err {
		return err
	}

	wantBits, err := expectedBits(blk.Header.PreviousBlock, parentMeta)
	if nil != err {
		return err
	}
	if blk.Header.Bits != wantBits {
		return fault.ErrBadDifficultyBits
	}

	extendsTip := blk.Header.PreviousBlock == global.tipHash
	if extendsTip {
		// a direct extension of the tip is validated against live
		// storage state right now — this is the one case where that
		// state actually corresponds to this block's ancestor
		if err := state.ApplyBlock(blk); nil != err {
			return err
		}
	}

	work := new(big.Int).Add(parentMeta.CumulativeDifficulty, workOfBits(blk.Header.Bits))
	meta := &BlockMetaData{
		Height:               parentMeta.Height + 1,
		CumulativeDifficulty: work,
		LastNHeaderHashes:    appendHistory(parentMeta.LastNHeaderHashes, headerHash),
	}
	parentMeta.ChildHeaderHashes = append(parentMeta.ChildHeaderHashes, headerHash)

	packed, err := blk.Pack()
	if nil != err {
		return err
	}
	if _, err := storage.AppendBlock(headerHash[:], packed); nil != err {
		return err
	}

	batch := storage.NewBatch()
	putBlockMeta(batch, headerHash, meta)
	putBlockMeta(batch, blk.Header.PreviousBlock, parentMeta)
	if extendsTip {
		batch.Put(storage.Pool.BlockNumber, blockNumberKey(meta.Height), headerHash[:])
		batch.Put(storage.Pool.ChainTip, chainTipKey, headerHash[:])
	}
	if err := batch.Commit(); nil != err {
		return err
	}

	if extendsTip {
		global.tipHash = headerHash
		global.tipHeight = meta.Height
		global.tipWork = work
		mempool.OnBlockCommitted(blk, meta.Height)
		messagebus.Send("chain", BlockAnnouncement{Hash: headerHash, Height: meta.Height})
		global.log.Infof("extended tip to height %d from %s", meta.Height, source)
		return nil
	}

	if work.Cmp(global.tipWork) > 0 {
		global.log.Infof("candidate at height %d outweighs tip, reorganising", meta.Height)
		return reorganise(headerHash, meta)
	}

	global.log.Infof("stored losing branch block at height %d from %s", meta.Height, source)
	return nil
}

// checkTimestamp - median-time-past plus allowed-drift-into-the-future,
// the latter measured against the node's own wall clock rather than any
// ancestor's timestamp, since a fixed-in-the-past genesis timestamp
// would otherwise make every later block look "too far in the future"
func checkTimestamp(timestamp uint64, parentMeta *BlockMetaData) error {
	samples := make([]uint64, 0, historyLength)
	for _, hash := range parentMeta.LastNHeaderHashes {
		blk, err := BlockByHash(hash)
		if nil != err {
			return err
		}
		samples = append(samples, blk.Header.Timestamp)
	}
	if 0 == len(samples) {
		return nil // genesis has no ancestors to measure against
	}

	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	median := samples[len(samples)/2]

	if timestamp <= median {
		return fault.ErrBadTimestamp
	}

	now := uint64(nowFunc().Unix())
	if timestamp > now+global.params.AllowedDriftSeconds {
		return fault.ErrBadTimestamp
	}

	return nil
}
