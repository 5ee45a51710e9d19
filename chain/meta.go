// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chain

import (
	"math/big"

	"github.com/bitmark-inc/latticed/difficulty"
	"github.com/bitmark-inc/latticed/fault"
	"github.com/bitmark-inc/latticed/merkle"
	"github.com/bitmark-inc/latticed/storage"
	"github.com/bitmark-inc/latticed/util"
)

// historyLength - how many ancestor header hashes BlockMetaData keeps
// inline, enough for the syncer's HEADERHASHES exchange to short-circuit
// without walking the BlockMeta chain one hop at a time
const historyLength = 11

// BlockMetaData - the per-header bookkeeping the fork-choice rule and
// syncer need, keyed by header hash under storage.PrefixBlockMeta
//
// Height is carried alongside the stored fields because header_at
// and the reorg walk both need O(1) height lookup by hash, and storing
// it alongside cumulative difficulty is cheaper than re-unpacking the
// stored block just to read one field back out of it.
type BlockMetaData struct {
	Height               uint64
	CumulativeDifficulty *big.Int
	ChildHeaderHashes    []merkle.Digest
	LastNHeaderHashes    []merkle.Digest
}

func (m *BlockMetaData) pack() []byte {
	buf := util.ToVarint64(m.Height)

	work := m.CumulativeDifficulty.Bytes()
	buf = append(buf, util.ToVarint64(uint64(len(work)))...)
	buf = append(buf, work...)

	buf = append(buf, util.ToVarint64(uint64(len(m.ChildHeaderHashes)))...)
	for _, h := range m.ChildHeaderHashes {
		buf = append(buf, h[:]...)
	}

	buf = append(buf, util.ToVarint64(uint64(len(m.LastNHeaderHashes)))...)
	for _, h := range m.LastNHeaderHashes {
		buf = append(buf, h[:]...)
	}

	return buf
}

func unpackBlockMeta(data []byte) *BlockMetaData {
	height, n := util.FromVarint64(data)
	data = data[n:]

	workLen, n := util.FromVarint64(data)
	data = data[n:]
	work := new(big.Int).SetBytes(data[:workLen])
	data = data[workLen:]

	childCount, n := util.FromVarint64(data)
	data = data[n:]
	children := make([]merkle.Digest, childCount)
	for i := range children {
		copy(children[i][:], data[:merkle.DigestLength])
		data = data[merkle.DigestLength:]
	}

	historyCount, n := util.FromVarint64(data)
	data = data[n:]
	history := make([]merkle.Digest, historyCount)
	for i := range history {
		copy(history[i][:], data[:merkle.DigestLength])
		data = data[merkle.DigestLength:]
	}

	return &BlockMetaData{
		Height:               height,
		CumulativeDifficulty: work,
		ChildHeaderHashes:    children,
		LastNHeaderHashes:    history,
	}
}

func decodeBlockMeta(data []byte) (meta *BlockMetaData, err error) {
	defer func() {
		if r := recover(); nil != r {
			meta = nil
			err = fault.ErrStoreCorruption
		}
	}()
	return unpackBlockMeta(data), nil
}

func getBlockMeta(headerHash merkle.Digest) (*BlockMetaData, error) {
	raw := storage.Pool.BlockMeta.Get(headerHash[:])
	if nil == raw {
		return nil, fault.ErrBlockNotFound
	}
	return decodeBlockMeta(raw)
}

func putBlockMeta(batch *storage.Batch, headerHash merkle.Digest, meta *BlockMetaData) {
	batch.Put(storage.Pool.BlockMeta, headerHash[:], meta.pack())
}

// appendHistory - cons parentMeta's history onto this header, capped
// at historyLength, newest first
func appendHistory(parentHistory []merkle.Digest, headerHash merkle.Digest) []merkle.Digest {
	history := make([]merkle.Digest, 0, historyLength)
	history = append(history, headerHash)
	history = append(history, parentHistory...)
	if len(history) > historyLength {
		history = history[:historyLength]
	}
	return history
}

// workOfBits - the proof-of-work contribution of a single header: the
// number of hash attempts expected to find a value <= target, i.e.
// (2^256) / (target + 1)
func workOfBits(bits uint32) *big.Int {
	d := difficulty.New()
	d.SetBits(bits)
	target := d.Target()

	maxWork := new(big.Int).Lsh(big.NewInt(1), 256)
	denominator := new(big.Int).Add(target, big.NewInt(1))
	return new(big.Int).Div(maxWork, denominator)
}
