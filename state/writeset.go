// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package state

import (
	"github.com/bitmark-inc/latticed/fault"
	"github.com/bitmark-inc/latticed/merkle"
	"github.com/bitmark-inc/latticed/storage"
	"github.com/bitmark-inc/latticed/util"
)

// writeSetEntry - one (pool, key, prior value) triple captured the
// first time apply_block touches a storage key; nil PriorValue means
// the key did not exist before the block, so revert deletes it
// instead of restoring a value
type writeSetEntry struct {
	Prefix     byte
	Key        []byte
	PriorValue []byte
}

func poolForPrefix(prefix byte) *storage.PoolHandle {
	switch prefix {
	case storage.PrefixAccount:
		return storage.Pool.Account
	case storage.PrefixToken:
		return storage.Pool.Token
	case storage.PrefixMultiSig:
		return storage.Pool.MultiSig
	case storage.PrefixPendingSpend:
		return storage.Pool.PendingSpend
	default:
		fault.Panic("state: write-set entry references an unexpected pool")
		return nil
	}
}

// pack - the stored form of a block's whole write set, in the order
// entries were first touched (deterministic: first-touch order is
// apply_block's transaction-then-field processing order)
func packWriteSet(entries []writeSetEntry) []byte {
	buffer := make([]byte, 0, 128)
	buffer = append(buffer, util.ToVarint64(uint64(len(entries)))...)
	for _, e := range entries {
		buffer = append(buffer, e.Prefix)
		buffer = append(buffer, util.ToVarint64(uint64(len(e.Key)))...)
		buffer = append(buffer, e.Key...)
		if nil == e.PriorValue {
			buffer = append(buffer, 0)
		} else {
			buffer = append(buffer, 1)
			buffer = append(buffer, util.ToVarint64(uint64(len(e.PriorValue)))...)
			buffer = append(buffer, e.PriorValue...)
		}
	}
	return buffer
}

func unpackWriteSet(data []byte) []writeSetEntry {
	pos := 0
	readVarint := func() uint64 {
		v, n := util.FromVarint64(data[pos:])
		if 0 == n {
			panic(fault.ErrMalformed)
		}
		pos += n
		return v
	}
	readByte := func() byte {
		if pos >= len(data) {
			panic(fault.ErrMalformed)
		}
		b := data[pos]
		pos++
		return b
	}
	readBytes := func(n int) []byte {
		if n < 0 || pos+n > len(data) {
			panic(fault.ErrMalformed)
		}
		b := make([]byte, n)
		copy(b, data[pos:pos+n])
		pos += n
		return b
	}

	count := readVarint()
	entries := make([]writeSetEntry, count)
	for i := range entries {
		prefix := readByte()
		keyLen := readVarint()
		key := readBytes(int(keyLen))
		hasPrior := readByte()
		var prior []byte
		if 1 == hasPrior {
			priorLen := readVarint()
			prior = readBytes(int(priorLen))
		}
		entries[i] = writeSetEntry{Prefix: prefix, Key: key, PriorValue: prior}
	}
	return entries
}

// putWriteSet - stage the write set for headerHash into the batch,
// alongside the account/token mutations it describes
func putWriteSet(batch *storage.Batch, headerHash merkle.Digest, entries []writeSetEntry) {
	batch.Put(storage.Pool.WriteSet, headerHash[:], packWriteSet(entries))
}

// getWriteSet - fetch a previously stored write set, used by RevertBlock
func getWriteSet(headerHash merkle.Digest) (entries []writeSetEntry, err error) {
	raw := storage.Pool.WriteSet.Get(headerHash[:])
	if nil == raw {
		return nil, fault.ErrBlockNotFound
	}
	defer func() {
		if r := recover(); nil != r {
			entries, err = nil, fault.ErrStoreCorruption
		}
	}()
	return unpackWriteSet(raw), nil
}
