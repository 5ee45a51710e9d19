// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package block - the block type: a header plus its ordered
// transaction list, with the reward schedule and merkle wiring that
// connect the two
package block

import (
	"encoding/binary"

	"github.com/bitmark-inc/latticed/blockheader"
	"github.com/bitmark-inc/latticed/fault"
	"github.com/bitmark-inc/latticed/merkle"
	"github.com/bitmark-inc/latticed/transactionrecord"
)

// consensus parameters for the reward schedule; InitialSubsidy and
// HalvingInterval are overridable per network by package chain, these
// are the mainnet defaults
const (
	InitialSubsidy  = 50_00000000 // 50 coins, 8 decimal places
	HalvingInterval = 210_000     // blocks
)

// maximum transactions in a single block, keeps the tx-count prefix
// inside a uint32 with headroom and bounds merkle tree construction
const MaxTransactions = 1 << 20

// Block - header plus ordered transactions; Transactions[0] must be a Coinbase
type Block struct {
	Header       blockheader.Header
	Transactions []transactionrecord.Packed
}

// Subsidy - the block reward schedule: halves every HalvingInterval
// blocks, clamped to zero once halved past the available bit width
func Subsidy(blockNumber uint64, initialSubsidy uint64, halvingInterval uint64) uint64 {
	if 0 == halvingInterval {
		return initialSubsidy
	}
	halvings := blockNumber / halvingInterval
	if halvings >= 64 {
		return 0
	}
	return initialSubsidy >> halvings
}

// TxIds - content hash of every transaction in declared order, used
// as the merkle tree's leaves
func (blk *Block) TxIds() []merkle.Digest {
	ids := make([]merkle.Digest, len(blk.Transactions))
	for i, tx := range blk.Transactions {
		ids[i] = tx.TxId()
	}
	return ids
}

// MerkleRoot - recompute the merkle root over the current transaction list
func (blk *Block) MerkleRoot() merkle.Digest {
	return merkle.Root(blk.TxIds())
}

// FeeSum - total declared fee of every non-coinbase transaction
func (blk *Block) FeeSum() (uint64, error) {
	var sum uint64
	for i, packed := range blk.Transactions {
		if 0 == i {
			continue // coinbase
		}
		tx, _, err := packed.Unpack()
		if nil != err {
			return 0, err
		}
		fee := tx.GetEnvelope().Fee
		if sum+fee < sum {
			return 0, fault.ErrCoinbaseAmount
		}
		sum += fee
	}
	return sum, nil
}

// Coinbase - the first transaction, asserted to be a Coinbase record
func (blk *Block) Coinbase() (*transactionrecord.Coinbase, error) {
	if 0 == len(blk.Transactions) {
		return nil, fault.ErrMalformed
	}
	tx, _, err := blk.Transactions[0].Unpack()
	if nil != err {
		return nil, err
	}
	coinbase, ok := tx.(*transactionrecord.Coinbase)
	if !ok {
		return nil, fault.ErrMalformed
	}
	return coinbase, nil
}

// BasicValidate - structural/arithmetic checks that don't need chain
// state: block number linkage, PoW, merkle root, coinbase amount.
// previousNumber/previousDigest are the parent header's fields.
func (blk *Block) BasicValidate(previousNumber uint64, previousDigest merkle.Digest, subsidy uint64) error {
	if 0 == len(blk.Transactions) || len(blk.Transactions) > MaxTransactions {
		return fault.ErrMalformed
	}
	if blk.Header.BlockNumber != previousNumber+1 {
		return fault.ErrBadHeight
	}
	if blk.Header.PreviousBlock != previousDigest {
		return fault.ErrUnknownParent
	}
	if !blk.Header.CheckPoW() {
		return fault.ErrBadPoW
	}
	if blk.Header.MerkleRoot != blk.MerkleRoot() {
		return fault.ErrBadMerkleRoot
	}

	coinbase, err := blk.Coinbase()
	if nil != err {
		return err
	}
	feeSum, err := blk.FeeSum()
	if nil != err {
		return err
	}
	if coinbase.Amount != subsidy+feeSum {
		return fault.ErrCoinbaseAmount
	}
	if blk.Header.Reward != subsidy || blk.Header.FeeSum != feeSum {
		return fault.ErrCoinbaseAmount
	}

	for i, packed := range blk.Transactions {
		if 0 == i {
			continue // coinbase is verified separately, never individually signed
		}
		tx, _, err := packed.Unpack()
		if nil != err {
			return err
		}
		if err := transactionrecord.Verify(tx); nil != err {
			return err
		}
	}

	return nil
}

// Pack - canonical on-wire/on-disk form: header, transaction count,
// then each transaction length-prefixed by a uint32 big-endian length
func (blk *Block) Pack() ([]byte, error) {
	if len(blk.Transactions) > MaxTransactions {
		return nil, fault.ErrMalformed
	}

	header := blk.Header.Pack()
	buffer := make([]byte, 0, len(header)+4+len(blk.Transactions)*64)
	buffer = append(buffer, header...)

	countField := make([]byte, 4)
	binary.BigEndian.PutUint32(countField, uint32(len(blk.Transactions)))
	buffer = append(buffer, countField...)

	lengthField := make([]byte, 4)
	for _, tx := range blk.Transactions {
		binary.BigEndian.PutUint32(lengthField, uint32(len(tx)))
		buffer = append(buffer, lengthField...)
		buffer = append(buffer, tx...)
	}
	return buffer, nil
}

// Unpack - parse the canonical form produced by Pack
func Unpack(data []byte) (*Block, error) {
	if len(data) < blockheader.TotalBlockSize+4 {
		return nil, fault.ErrMalformed
	}

	var header blockheader.Header
	if err := blockheader.PackedHeader(data[:blockheader.TotalBlockSize]).Unpack(&header); nil != err {
		return nil, err
	}
	pos := blockheader.TotalBlockSize

	count := binary.BigEndian.Uint32(data[pos:])
	pos += 4
	if count == 0 || count > MaxTransactions {
		return nil, fault.ErrMalformed
	}

	transactions := make([]transactionrecord.Packed, count)
	for i := 0; i < int(count); i++ {
		if pos+4 > len(data) {
			return nil, fault.ErrMalformed
		}
		txLen := int(binary.BigEndian.Uint32(data[pos:]))
		pos += 4
		if txLen <= 0 || pos+txLen > len(data) {
			return nil, fault.ErrMalformed
		}
		transactions[i] = transactionrecord.Packed(data[pos : pos+txLen])
		pos += txLen
	}
	if pos != len(data) {
		return nil, fault.ErrMalformed
	}

	return &Block{Header: header, Transactions: transactions}, nil
}

// Digest - the header's content hash, used as the block's identifier
// everywhere (storage key, P2P references, BlockMetaData)
func (blk *Block) Digest() merkle.Digest {
	return blk.Header.Digest()
}
