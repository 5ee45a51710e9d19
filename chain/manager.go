// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package chain - the single-writer chain manager: block submission,
// fork choice, reorg, and difficulty retarget orchestration
//
// grounded on the teacher's single-file network enum (chains.go,
// generalized to mainnet/testnet/dev) for the Network concept, and on
// the single-writer discipline already established by state's applier
// and mempool's lock-guarded pool for "one goroutine's worth of
// mutation visible at a time" — here backed by a plain sync.RWMutex
// rather than a command-queue goroutine, an acceptable alternative
// implementation of the same exclusivity guarantee.
package chain

import (
	"encoding/binary"
	"math/big"
	"sync"

	"github.com/bitmark-inc/latticed/block"
	"github.com/bitmark-inc/latticed/fault"
	"github.com/bitmark-inc/latticed/genesis"
	"github.com/bitmark-inc/latticed/mempool"
	"github.com/bitmark-inc/latticed/merkle"
	"github.com/bitmark-inc/latticed/state"
	"github.com/bitmark-inc/latticed/storage"
	"github.com/bitmark-inc/latticed/transactionrecord"
	"github.com/bitmark-inc/logger"
)

var chainTipKey = []byte{}

var global struct {
	sync.RWMutex

	network string
	params  Parameters
	log     *logger.L

	tipHash   merkle.Digest
	tipHeight uint64
	tipWork   *big.Int

	initialised bool
}

// Initialise - load the persisted tip, or bootstrap the network's
// genesis block if the store is empty. storage.Initialise must already
// have been called.
func Initialise(network string, params Parameters) error {
	global.Lock()
	defer global.Unlock()

	if global.initialised {
		return fault.ErrAlreadyInitialised
	}
	if !Valid(network) {
		return fault.ErrInvalidChain
	}

	global.log = logger.New("chain")
	global.log.Info("starting…")
	global.network = network
	global.params = params

	tipRaw := storage.Pool.ChainTip.Get(chainTipKey)
	if nil == tipRaw {
		if err := bootstrapGenesis(network); nil != err {
			return err
		}
	} else {
		copy(global.tipHash[:], tipRaw)
		meta, err := getBlockMeta(global.tipHash)
		if nil != err {
			return err
		}
		global.tipHeight = meta.Height
		global.tipWork = meta.CumulativeDifficulty
	}

	if err := resumeForkState(); nil != err {
		return err
	}

	global.initialised = true
	return nil
}

// resumeForkState - a crash between revert_path(old_path) and the final
// tip update leaves a persisted ForkState behind; replay apply_path on
// the recorded new_path to finish what submit_block started
func resumeForkState() error {
	fs, err := loadForkState()
	if nil != err {
		return err
	}
	if nil == fs {
		return nil
	}

	global.log.Warnf("resuming interrupted reorg from fork point %s", fs.ForkPoint)

	if _, err := applyPath(fs.NewPath); nil != err {
		return err
	}

	tip := fs.ForkPoint
	if 0 != len(fs.NewPath) {
		tip = fs.NewPath[len(fs.NewPath)-1]
	}
	meta, err := getBlockMeta(tip)
	if nil != err {
		return err
	}

	global.tipHash = tip
	global.tipHeight = meta.Height
	global.tipWork = meta.CumulativeDifficulty

	if err := rewriteBlockNumberIndex(fs.ForkPoint, fs.NewPath); nil != err {
		return err
	}
	storage.Pool.ChainTip.Put(chainTipKey, tip[:])

	clearForkState()
	return nil
}

// Finalise - chain keeps no background goroutines or file handles of
// its own; this exists for symmetry with every other package's
// Initialise/Finalise lifecycle
func Finalise() {
	global.Lock()
	defer global.Unlock()
	global.initialised = false
}

func bootstrapGenesis(network string) error {
	g, err := genesis.For(network)
	if nil != err {
		return err
	}

	if err := state.Genesis(g); nil != err {
		return err
	}

	headerHash := g.Block.Header.Digest()
	work := workOfBits(g.Block.Header.Bits)

	meta := &BlockMetaData{
		Height:               0,
		CumulativeDifficulty: work,
		LastNHeaderHashes:    []merkle.Digest{headerHash},
	}

	packed, err := g.Block.Pack()
	if nil != err {
		return err
	}

	batch := storage.NewBatch()
	if _, err := storage.AppendBlock(headerHash[:], packed); nil != err {
		return err
	}
	putBlockMeta(batch, headerHash, meta)
	batch.Put(storage.Pool.BlockNumber, blockNumberKey(0), headerHash[:])
	batch.Put(storage.Pool.ChainTip, chainTipKey, headerHash[:])
	if err := batch.Commit(); nil != err {
		return err
	}

	global.tipHash = headerHash
	global.tipHeight = 0
	global.tipWork = work
	return nil
}

func blockNumberKey(n uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, n)
	return buf
}

// Tip - the current best header hash and height
func Tip() (merkle.Digest, uint64) {
	global.RLock()
	defer global.RUnlock()
	return global.tipHash, global.tipHeight
}

// Params - the network's consensus parameters, as passed to Initialise
func Params() Parameters {
	global.RLock()
	defer global.RUnlock()
	return global.params
}

// NextBits - the difficulty bits a block extending the current tip
// must carry, per the retarget schedule
func NextBits() (uint32, error) {
	global.RLock()
	tip := global.tipHash
	global.RUnlock()

	meta, err := getBlockMeta(tip)
	if nil != err {
		return 0, err
	}
	return expectedBits(tip, meta)
}

// CumulativeDifficulty - the proof-of-work total behind the current tip
func CumulativeDifficulty() *big.Int {
	global.RLock()
	defer global.RUnlock()
	return new(big.Int).Set(global.tipWork)
}

// HeaderAt - the header hash of the main-chain block at height n
func HeaderAt(n uint64) (merkle.Digest, error) {
	raw := storage.Pool.BlockNumber.Get(blockNumberKey(n))
	if nil == raw {
		return merkle.Digest{}, fault.ErrBlockNotFound
	}
	var hash merkle.Digest
	copy(hash[:], raw)
	return hash, nil
}

// BlockByHash - the full block named by a header hash, from any
// branch the node has ever stored (not necessarily the main chain)
func BlockByHash(hash merkle.Digest) (*block.Block, error) {
	raw, err := storage.ReadBlock(hash[:])
	if nil != err {
		return nil, err
	}
	return block.Unpack(raw)
}

// SubmitTransaction - delegates to the pending-transaction pool's
// admission pipeline against the current tip
func SubmitTransaction(packed transactionrecord.Packed) (merkle.Digest, error) {
	_, height := Tip()
	return mempool.Submit(packed, height)
}
