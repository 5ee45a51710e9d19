// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package storage

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/bitmark-inc/latticed/fault"
)

// blockFileMagic - leads every file under blocks/, and every record
// within it; lets an external tool recognise a truncated/corrupt file
// without reading the index
const blockFileMagic = uint32(0xd9b4bef9)

// rotate to a new file once the current one reaches this size
const maxBlockFileSize = 128 * 1024 * 1024

// BlockLocation - (file_id, offset, length) index entry, the value
// stored under storage.PrefixBlockFile
type BlockLocation struct {
	FileID uint32
	Offset uint32
	Length uint32
}

const blockLocationSize = 4 + 4 + 4

// Pack/Unpack - the fixed on-disk form of a BlockLocation
func (l BlockLocation) Pack() []byte {
	buf := make([]byte, blockLocationSize)
	binary.BigEndian.PutUint32(buf[0:], l.FileID)
	binary.BigEndian.PutUint32(buf[4:], l.Offset)
	binary.BigEndian.PutUint32(buf[8:], l.Length)
	return buf
}

func UnpackBlockLocation(b []byte) (BlockLocation, error) {
	if len(b) != blockLocationSize {
		return BlockLocation{}, fault.ErrMalformed
	}
	return BlockLocation{
		FileID: binary.BigEndian.Uint32(b[0:]),
		Offset: binary.BigEndian.Uint32(b[4:]),
		Length: binary.BigEndian.Uint32(b[8:]),
	}, nil
}

// blockFileStore - append-only rotating block files
//
// grounded on the teacher's idea of a single append-only blocks pool
// (block/blockstore.go kept raw blocks directly in leveldb); this
// generalises that to a separate flat-file layout so large
// block bodies don't bloat the leveldb index's LSM tree
type blockFileStore struct {
	sync.Mutex
	dir         string
	currentFile *os.File
	currentID   uint32
	currentSize uint32
}

func openBlockFileStore(dir string) (*blockFileStore, error) {
	if err := os.MkdirAll(dir, 0o755); nil != err {
		return nil, err
	}

	store := &blockFileStore{dir: dir}

	ids, err := existingFileIDs(dir)
	if nil != err {
		return nil, err
	}
	if 0 == len(ids) {
		if err := store.openFile(0); nil != err {
			return nil, err
		}
		return store, nil
	}

	latest := ids[len(ids)-1]
	if err := store.openFile(latest); nil != err {
		return nil, err
	}
	info, err := store.currentFile.Stat()
	if nil != err {
		return nil, err
	}
	store.currentSize = uint32(info.Size())
	return store, nil
}

func existingFileIDs(dir string) ([]uint32, error) {
	entries, err := os.ReadDir(dir)
	if nil != err {
		return nil, err
	}
	ids := make([]uint32, 0, len(entries))
	for _, e := range entries {
		var id uint32
		if _, err := fmt.Sscanf(e.Name(), "%05d.dat", &id); nil == err {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *blockFileStore) fileName(id uint32) string {
	return filepath.Join(s.dir, fmt.Sprintf("%05d.dat", id))
}

func (s *blockFileStore) openFile(id uint32) error {
	f, err := os.OpenFile(s.fileName(id), os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if nil != err {
		return err
	}
	if nil != s.currentFile {
		s.currentFile.Close()
	}
	s.currentFile = f
	s.currentID = id
	s.currentSize = 0
	return nil
}

// Append - write a packed block, rotating to a new file if the
// current one would exceed maxBlockFileSize; returns its location
func (s *blockFileStore) Append(data []byte) (BlockLocation, error) {
	s.Lock()
	defer s.Unlock()

	record := make([]byte, 0, 4+4+len(data))
	header := make([]byte, 8)
	binary.BigEndian.PutUint32(header[0:], blockFileMagic)
	binary.BigEndian.PutUint32(header[4:], uint32(len(data)))
	record = append(record, header...)
	record = append(record, data...)

	if s.currentSize > 0 && s.currentSize+uint32(len(record)) > maxBlockFileSize {
		if err := s.openFile(s.currentID + 1); nil != err {
			return BlockLocation{}, err
		}
	}

	offset := s.currentSize
	n, err := s.currentFile.Write(record)
	if nil != err {
		return BlockLocation{}, err
	}
	if err := s.currentFile.Sync(); nil != err {
		return BlockLocation{}, err
	}
	s.currentSize += uint32(n)

	// location points at the payload, past the 8 byte record header
	return BlockLocation{FileID: s.currentID, Offset: offset + 8, Length: uint32(len(data))}, nil
}

// Read - fetch a previously appended block's raw bytes
func (s *blockFileStore) Read(loc BlockLocation) ([]byte, error) {
	s.Lock()
	defer s.Unlock()

	var f *os.File
	if loc.FileID == s.currentID {
		f = s.currentFile
	} else {
		var err error
		f, err = os.Open(s.fileName(loc.FileID))
		if nil != err {
			return nil, err
		}
		defer f.Close()
	}

	buf := make([]byte, loc.Length)
	n, err := f.ReadAt(buf, int64(loc.Offset))
	if nil != err {
		return nil, err
	}
	if n != int(loc.Length) {
		return nil, fault.ErrStoreCorruption
	}
	return buf, nil
}

func (s *blockFileStore) close() {
	s.Lock()
	defer s.Unlock()
	if nil != s.currentFile {
		s.currentFile.Close()
		s.currentFile = nil
	}
}

// AppendBlock - store a packed block's bytes and index its location
// under header_hash (the file write happens first and is immutable once
// fsynced; the index write is what makes it reachable, so a crash
// between the two leaves an orphaned, unindexed record in the file;
// files are opened for append, so later records follow it and it stays
// in place)
func AppendBlock(headerHash []byte, data []byte) (BlockLocation, error) {
	global.RLock()
	store := global.blockStore
	global.RUnlock()

	loc, err := store.Append(data)
	if nil != err {
		return BlockLocation{}, err
	}
	Pool.BlockFile.Put(headerHash, loc.Pack())
	return loc, nil
}

// ReadBlock - fetch a block's bytes by header hash
func ReadBlock(headerHash []byte) ([]byte, error) {
	raw := Pool.BlockFile.Get(headerHash)
	if nil == raw {
		return nil, fault.ErrBlockNotFound
	}
	loc, err := UnpackBlockLocation(raw)
	if nil != err {
		return nil, err
	}

	global.RLock()
	store := global.blockStore
	global.RUnlock()

	return store.Read(loc)
}
