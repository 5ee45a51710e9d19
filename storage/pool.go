// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package storage - persistence: an append-only, rotating block file
// store plus a single ordered key-value index over a fixed prefix
// schema (account state, block metadata, the block-number and
// block-file indices, token metadata, chain tip, per-block write
// sets, and in-progress fork state)
package storage

import (
	"github.com/syndtr/goleveldb/leveldb"
	ldb_util "github.com/syndtr/goleveldb/leveldb/util"

	"github.com/bitmark-inc/logger"
)

// PoolHandle - a byte-prefixed view over the shared index database
type PoolHandle struct {
	prefix byte
	limit  []byte
	db     *leveldb.DB
}

// Element - a single stored record, with its prefix stripped
type Element struct {
	Key   []byte
	Value []byte
}

func (p *PoolHandle) prefixKey(key []byte) []byte {
	prefixedKey := make([]byte, 1, len(key)+1)
	prefixedKey[0] = p.prefix
	return append(prefixedKey, key...)
}

// Put - write a single key/value pair immediately
func (p *PoolHandle) Put(key []byte, value []byte) {
	err := p.db.Put(p.prefixKey(key), value, nil)
	logger.PanicIfError("storage.Put", err)
}

// Delete - remove a key
func (p *PoolHandle) Delete(key []byte) {
	err := p.db.Delete(p.prefixKey(key), nil)
	logger.PanicIfError("storage.Delete", err)
}

// Get - read a value, nil if not present; callers must copy the
// result before holding onto it past a subsequent write
func (p *PoolHandle) Get(key []byte) []byte {
	value, err := p.db.Get(p.prefixKey(key), nil)
	if leveldb.ErrNotFound == err {
		return nil
	}
	logger.PanicIfError("storage.Get", err)
	return value
}

// Has - does the key exist
func (p *PoolHandle) Has(key []byte) bool {
	value, err := p.db.Has(p.prefixKey(key), nil)
	logger.PanicIfError("storage.Has", err)
	return value
}

// LastElement - the highest-keyed record in the pool, used on startup
// to recover the current chain tip / block-file cursor
func (p *PoolHandle) LastElement() (Element, bool) {
	search := ldb_util.Range{Start: []byte{p.prefix}, Limit: p.limit}

	iter := p.db.NewIterator(&search, nil)
	defer iter.Release()

	if !iter.Last() {
		logger.PanicIfError("storage.LastElement", iter.Error())
		return Element{}, false
	}

	key := iter.Key()
	value := iter.Value()

	dataKey := make([]byte, len(key)-1)
	copy(dataKey, key[1:])
	dataValue := make([]byte, len(value))
	copy(dataValue, value)

	logger.PanicIfError("storage.LastElement", iter.Error())
	return Element{Key: dataKey, Value: dataValue}, true
}

// Iterate - call f for every key/value pair in the pool, in key
// order, stopping early if f returns false
func (p *PoolHandle) Iterate(f func(Element) bool) {
	search := ldb_util.Range{Start: []byte{p.prefix}, Limit: p.limit}
	iter := p.db.NewIterator(&search, nil)
	defer iter.Release()

	for iter.Next() {
		key := make([]byte, len(iter.Key())-1)
		copy(key, iter.Key()[1:])
		value := make([]byte, len(iter.Value()))
		copy(value, iter.Value())
		if !f(Element{Key: key, Value: value}) {
			break
		}
	}
	logger.PanicIfError("storage.Iterate", iter.Error())
}

// Batch - a set of writes spanning any number of pools, applied
// atomically by Commit. All pools share a single underlying database,
// so a Batch is how state.ApplyBlock makes "update every touched
// account, record the write-set" a single atomic write, and how
// revert_block undoes exactly that same set. Package chain advances the
// tip in a Batch of its own.
type Batch struct {
	db    *leveldb.DB
	batch *leveldb.Batch
}

func (b *Batch) Put(pool *PoolHandle, key []byte, value []byte) {
	b.batch.Put(pool.prefixKey(key), value)
}

func (b *Batch) Delete(pool *PoolHandle, key []byte) {
	b.batch.Delete(pool.prefixKey(key))
}

// Commit - write every queued operation atomically
func (b *Batch) Commit() error {
	return b.db.Write(b.batch, nil)
}
