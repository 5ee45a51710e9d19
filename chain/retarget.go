// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chain

import (
	"github.com/bitmark-inc/latticed/difficulty"
	"github.com/bitmark-inc/latticed/merkle"
)

// expectedBits - the bits value a block extending parentHash at
// parentMeta.Height+1 must carry. Every height keeps its parent's
// difficulty except the first block of a new retarget window, which
// recomputes it from the actual time taken by the last n_measurement
// blocks via a proportional controller.
func expectedBits(parentHash merkle.Digest, parentMeta *BlockMetaData) (uint32, error) {
	parentBlk, err := BlockByHash(parentHash)
	if nil != err {
		return 0, err
	}

	height := parentMeta.Height + 1
	window := global.params.RetargetWindow
	measurement := global.params.NMeasurement

	if 0 == height || 0 != height%window || height < measurement {
		return parentBlk.Header.Bits, nil
	}

	startHash, err := walkBack(parentHash, measurement)
	if nil != err {
		return 0, err
	}
	startBlk, err := BlockByHash(startHash)
	if nil != err {
		return 0, err
	}

	actualSeconds := float64(parentBlk.Header.Timestamp - startBlk.Header.Timestamp)
	targetSeconds := float64(measurement) * global.params.BlockTimingSeconds

	d := difficulty.New()
	d.SetBits(parentBlk.Header.Bits)
	d.Retarget(targetSeconds, actualSeconds, global.params.Kp, global.params.MaxAdjustmentFactor)
	return d.Bits(), nil
}

// walkBack - the header hash n blocks before hash, following
// previous-block links
func walkBack(hash merkle.Digest, n uint64) (merkle.Digest, error) {
	for i := uint64(0); i < n; i++ {
		blk, err := BlockByHash(hash)
		if nil != err {
			return merkle.Digest{}, err
		}
		hash = blk.Header.PreviousBlock
	}
	return hash, nil
}
