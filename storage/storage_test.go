// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package storage_test

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bitmark-inc/latticed/storage"
)

func withStore(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, storage.Initialise(dir, false))
	t.Cleanup(storage.Finalise)
}

func TestAccountPoolPutGet(t *testing.T) {
	withStore(t)

	key := []byte("an-address")
	storage.Pool.Account.Put(key, []byte("balance=100"))
	require.True(t, storage.Pool.Account.Has(key))
	require.Equal(t, []byte("balance=100"), storage.Pool.Account.Get(key))

	storage.Pool.Account.Delete(key)
	require.False(t, storage.Pool.Account.Has(key))
}

func TestBlockNumberPoolOrderingAndLastElement(t *testing.T) {
	withStore(t)

	for n := uint64(1); n <= 5; n++ {
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, n)
		storage.Pool.BlockNumber.Put(key, []byte{byte(n)})
	}

	last, found := storage.Pool.BlockNumber.LastElement()
	require.True(t, found)
	require.Equal(t, uint64(5), binary.BigEndian.Uint64(last.Key))
}

func TestBatchIsAtomicAcrossPools(t *testing.T) {
	withStore(t)

	batch := storage.NewBatch()
	batch.Put(storage.Pool.Account, []byte("addr"), []byte("v1"))
	batch.Put(storage.Pool.ChainTip, []byte{}, []byte("tip-hash"))
	require.NoError(t, batch.Commit())

	require.Equal(t, []byte("v1"), storage.Pool.Account.Get([]byte("addr")))
	require.Equal(t, []byte("tip-hash"), storage.Pool.ChainTip.Get([]byte{}))
}

func TestAppendAndReadBlock(t *testing.T) {
	withStore(t)

	headerHash := []byte("header-hash-1")
	data := []byte("a serialized block goes here, padded a bit for realism")

	loc, err := storage.AppendBlock(headerHash, data)
	require.NoError(t, err)
	require.Equal(t, uint32(len(data)), loc.Length)

	readBack, err := storage.ReadBlock(headerHash)
	require.NoError(t, err)
	require.Equal(t, data, readBack)
}

func TestReadBlockMissingHash(t *testing.T) {
	withStore(t)

	_, err := storage.ReadBlock([]byte("no-such-hash"))
	require.Error(t, err)
}

func TestBlockLocationPackUnpack(t *testing.T) {
	loc := storage.BlockLocation{FileID: 3, Offset: 128, Length: 4096}
	decoded, err := storage.UnpackBlockLocation(loc.Pack())
	require.NoError(t, err)
	require.Equal(t, loc, decoded)
}

func TestInitialiseTwiceFails(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, storage.Initialise(dir, false))
	defer storage.Finalise()

	err := storage.Initialise(dir, false)
	require.Error(t, err)
}
