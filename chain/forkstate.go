// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chain

import (
	"github.com/bitmark-inc/latticed/fault"
	"github.com/bitmark-inc/latticed/merkle"
	"github.com/bitmark-inc/latticed/storage"
	"github.com/bitmark-inc/latticed/util"
)

// forkStateKey - storage.PrefixForkState carries no key suffix: there
// is at most one reorg in flight at a time
var forkStateKey = []byte{}

// ForkState - persisted record of a reorg in progress, so a crash
// mid-reorg can be resumed on restart rather than leaving the store in
// whatever partial state the crash caught it in
type ForkState struct {
	Initiator string
	ForkPoint merkle.Digest
	OldPath   []merkle.Digest // fork point (exclusive) -> old tip, oldest first
	NewPath   []merkle.Digest // fork point (exclusive) -> new tip, oldest first
}

func (s *ForkState) pack() []byte {
	buf := util.ToVarint64(uint64(len(s.Initiator)))
	buf = append(buf, []byte(s.Initiator)...)
	buf = append(buf, s.ForkPoint[:]...)
	buf = append(buf, packDigestList(s.OldPath)...)
	buf = append(buf, packDigestList(s.NewPath)...)
	return buf
}

func packDigestList(list []merkle.Digest) []byte {
	buf := util.ToVarint64(uint64(len(list)))
	for _, h := range list {
		buf = append(buf, h[:]...)
	}
	return buf
}

func unpackDigestList(data []byte) ([]merkle.Digest, []byte) {
	count, n := util.FromVarint64(data)
	data = data[n:]
	list := make([]merkle.Digest, count)
	for i := range list {
		copy(list[i][:], data[:merkle.DigestLength])
		data = data[merkle.DigestLength:]
	}
	return list, data
}

func unpackForkState(data []byte) *ForkState {
	nameLen, n := util.FromVarint64(data)
	data = data[n:]
	initiator := string(data[:nameLen])
	data = data[nameLen:]

	var forkPoint merkle.Digest
	copy(forkPoint[:], data[:merkle.DigestLength])
	data = data[merkle.DigestLength:]

	oldPath, data := unpackDigestList(data)
	newPath, _ := unpackDigestList(data)

	return &ForkState{Initiator: initiator, ForkPoint: forkPoint, OldPath: oldPath, NewPath: newPath}
}

func decodeForkState(data []byte) (state *ForkState, err error) {
	defer func() {
		if r := recover(); nil != r {
			state = nil
			err = fault.ErrStoreCorruption
		}
	}()
	return unpackForkState(data), nil
}

func persistForkState(state *ForkState) {
	storage.Pool.ForkState.Put(forkStateKey, state.pack())
}

// loadForkState - the in-progress reorg record, if a crash interrupted
// one; nil if the chain is in a settled state
func loadForkState() (*ForkState, error) {
	raw := storage.Pool.ForkState.Get(forkStateKey)
	if nil == raw {
		return nil, nil
	}
	return decodeForkState(raw)
}

func clearForkState() {
	storage.Pool.ForkState.Delete(forkStateKey)
}
