// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package storage

import (
	"encoding/binary"
	"fmt"
	"reflect"
	"strconv"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	ldb_opt "github.com/syndtr/goleveldb/leveldb/opt"

	"github.com/bitmark-inc/latticed/fault"
	"github.com/bitmark-inc/logger"
)

// key-prefix schema: one byte ahead of every key, all
// sharing the single "state" index database
const (
	PrefixAccount      = byte(0x01) // address -> AccountState
	PrefixBlockMeta    = byte(0x02) // header_hash -> BlockMetaData
	PrefixBlockNumber  = byte(0x03) // block_number (8B BE) -> header_hash
	PrefixBlockFile    = byte(0x04) // header_hash -> (file_id, offset, length)
	PrefixToken        = byte(0x05) // token_hash -> TokenMeta
	PrefixChainTip     = byte(0x06) // (no key suffix) -> header hash
	PrefixWriteSet     = byte(0x07) // header_hash -> write-set for revert
	PrefixForkState    = byte(0x08) // (no key suffix) -> fork state
	PrefixInvalid      = byte(0x09) // header_hash -> present means permanently rejected
	PrefixMultiSig     = byte(0x0a) // multi-sig address -> MultiSigMeta
	PrefixPendingSpend = byte(0x0b) // spend tx hash -> PendingSpend
)

// note all fields must be exported or reflection-based setup panics
type pools struct {
	Account      *PoolHandle `prefix:"1"`
	BlockMeta    *PoolHandle `prefix:"2"`
	BlockNumber  *PoolHandle `prefix:"3"`
	BlockFile    *PoolHandle `prefix:"4"`
	Token        *PoolHandle `prefix:"5"`
	ChainTip     *PoolHandle `prefix:"6"`
	WriteSet     *PoolHandle `prefix:"7"`
	ForkState    *PoolHandle `prefix:"8"`
	Invalid      *PoolHandle `prefix:"9"`
	MultiSig     *PoolHandle `prefix:"10"`
	PendingSpend *PoolHandle `prefix:"11"`
}

// Pool - the set of exported pool handles, populated by Initialise
var Pool pools

const currentIndexDBVersion = 0x100

var versionKey = []byte{0x00, 'V', 'E', 'R', 'S', 'I', 'O', 'N'}

var global struct {
	sync.RWMutex
	log         *logger.L
	db          *leveldb.DB
	blockStore  *blockFileStore
	initialised bool
}

// Initialise - open the index database and the rotating block file
// store under dataDirectory; must be called before any pool or
// BlockStore access
func Initialise(dataDirectory string, readOnly bool) error {
	global.Lock()
	defer global.Unlock()

	if global.initialised {
		return fault.ErrAlreadyInitialised
	}

	global.log = logger.New("storage")
	global.log.Info("starting…")

	indexPath := dataDirectory + "/state"
	db, version, err := openIndexDB(indexPath, readOnly)
	if nil != err {
		return err
	}
	global.db = db

	if version > currentIndexDBVersion {
		return fmt.Errorf("index database version: %d > current version: %d", version, currentIndexDBVersion)
	}
	if 0 == version {
		if err := putVersion(db, currentIndexDBVersion); nil != err {
			return err
		}
	}

	populatePools(db)

	store, err := openBlockFileStore(dataDirectory + "/blocks")
	if nil != err {
		return err
	}
	global.blockStore = store

	global.initialised = true
	return nil
}

// populatePools - reflection wiring identical in spirit to teacher's
// tag-driven setup, simplified to a single shared database since this
// schema no longer splits blocks/index across two leveldb instances
func populatePools(db *leveldb.DB) {
	poolType := reflect.TypeOf(Pool)
	poolValue := reflect.ValueOf(&Pool).Elem()

	for i := 0; i < poolType.NumField(); i++ {
		fieldInfo := poolType.Field(i)
		prefixTag := fieldInfo.Tag.Get("prefix")
		n, err := strconv.Atoi(prefixTag)
		if nil != err || n < 0 || n > 255 {
			fault.Panic("storage: pool field has invalid prefix tag: " + fieldInfo.Name)
		}
		prefix := byte(n)
		limit := []byte(nil)
		if prefix < 255 {
			limit = []byte{prefix + 1}
		}
		poolValue.Field(i).Set(reflect.ValueOf(&PoolHandle{prefix: prefix, limit: limit, db: db}))
	}
}

// Finalise - close the database and block file store
func Finalise() {
	global.Lock()
	defer global.Unlock()

	if !global.initialised {
		return
	}
	global.log.Info("shutting down…")

	if nil != global.blockStore {
		global.blockStore.close()
	}
	if nil != global.db {
		global.db.Close()
	}
	global.initialised = false
}

// NewBatch - start a cross-pool atomic write batch
func NewBatch() *Batch {
	return &Batch{db: global.db, batch: new(leveldb.Batch)}
}

func openIndexDB(path string, readOnly bool) (*leveldb.DB, int, error) {
	opt := &ldb_opt.Options{ErrorIfMissing: readOnly, ReadOnly: readOnly}
	db, err := leveldb.OpenFile(path, opt)
	if nil != err {
		return nil, 0, err
	}
	versionValue, err := db.Get(versionKey, nil)
	if leveldb.ErrNotFound == err {
		return db, 0, nil
	} else if nil != err {
		db.Close()
		return nil, 0, err
	}
	if 4 != len(versionValue) {
		db.Close()
		return nil, 0, fmt.Errorf("incompatible database version length: expected: 4  actual: %d", len(versionValue))
	}
	return db, int(binary.BigEndian.Uint32(versionValue)), nil
}

func putVersion(db *leveldb.DB, version int) error {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, uint32(version))
	return db.Put(versionKey, buf, nil)
}
