// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package blockheader - the fixed-width block header record and its
// canonical, deterministic on-wire/on-disk encoding
package blockheader

import (
	"encoding/binary"

	"github.com/bitmark-inc/latticed/difficulty"
	"github.com/bitmark-inc/latticed/fault"
	"github.com/bitmark-inc/latticed/merkle"
)

// PackedHeader - a packed header is just a byte slice
type PackedHeader []byte

// Version - format version, bumped only on a hard fork of the header layout
const Version = 1

// byte sizes for the fixed-width fields, all big-endian
const (
	versionSize       = 2
	previousBlockSize = merkle.DigestLength
	merkleRootSize    = merkle.DigestLength
	blockNumberSize   = 8
	timestampSize     = 8
	bitsSize          = 4
	nonceSize         = 8
	extraNonceSize    = 8
	rewardSize        = 8
	feeSumSize        = 8
)

// field offsets within the packed record
const (
	versionOffset       = 0
	previousBlockOffset = versionOffset + versionSize
	merkleRootOffset    = previousBlockOffset + previousBlockSize
	blockNumberOffset   = merkleRootOffset + merkleRootSize
	timestampOffset     = blockNumberOffset + blockNumberSize
	bitsOffset          = timestampOffset + timestampSize
	nonceOffset         = bitsOffset + bitsSize
	extraNonceOffset    = nonceOffset + nonceSize
	rewardOffset        = extraNonceOffset + extraNonceSize
	feeSumOffset        = rewardOffset + rewardSize

	TotalBlockSize = feeSumOffset + feeSumSize // total bytes in the packed header
)

// Header - the unpacked header structure; field order here is
// irrelevant, only Pack's offsets are consensus-critical
type Header struct {
	Version       uint16
	PreviousBlock merkle.Digest
	MerkleRoot    merkle.Digest
	BlockNumber   uint64
	Timestamp     uint64 // UTC seconds
	Bits          uint32 // compact difficulty
	Nonce         uint64 // mining nonce
	ExtraNonce    uint64
	Reward        uint64 // subsidy credited to coinbase
	FeeSum        uint64 // total fees of the included transactions
}

// Pack - produce the canonical fixed-width byte encoding of a header
func (header *Header) Pack() PackedHeader {
	buffer := make([]byte, TotalBlockSize)

	binary.BigEndian.PutUint16(buffer[versionOffset:], header.Version)
	copy(buffer[previousBlockOffset:], header.PreviousBlock[:])
	copy(buffer[merkleRootOffset:], header.MerkleRoot[:])
	binary.BigEndian.PutUint64(buffer[blockNumberOffset:], header.BlockNumber)
	binary.BigEndian.PutUint64(buffer[timestampOffset:], header.Timestamp)
	binary.BigEndian.PutUint32(buffer[bitsOffset:], header.Bits)
	binary.BigEndian.PutUint64(buffer[nonceOffset:], header.Nonce)
	binary.BigEndian.PutUint64(buffer[extraNonceOffset:], header.ExtraNonce)
	binary.BigEndian.PutUint64(buffer[rewardOffset:], header.Reward)
	binary.BigEndian.PutUint64(buffer[feeSumOffset:], header.FeeSum)

	return buffer
}

// Unpack - turn a byte slice into a header record
func (record PackedHeader) Unpack(header *Header) error {
	if len(record) != TotalBlockSize {
		return fault.ErrInvalidBlockHeader
	}

	header.Version = binary.BigEndian.Uint16(record[versionOffset:])
	copy(header.PreviousBlock[:], record[previousBlockOffset:merkleRootOffset])
	copy(header.MerkleRoot[:], record[merkleRootOffset:blockNumberOffset])
	header.BlockNumber = binary.BigEndian.Uint64(record[blockNumberOffset:])
	header.Timestamp = binary.BigEndian.Uint64(record[timestampOffset:])
	header.Bits = binary.BigEndian.Uint32(record[bitsOffset:])
	header.Nonce = binary.BigEndian.Uint64(record[nonceOffset:])
	header.ExtraNonce = binary.BigEndian.Uint64(record[extraNonceOffset:])
	header.Reward = binary.BigEndian.Uint64(record[rewardOffset:])
	header.FeeSum = binary.BigEndian.Uint64(record[feeSumOffset:])

	return nil
}

// Digest - the header hash; includes the mining nonce and extra nonce,
// so it changes on every PoW search attempt
func (record PackedHeader) Digest() merkle.Digest {
	return merkle.NewDigest(record)
}

// Digest - convenience: pack then hash
func (header *Header) Digest() merkle.Digest {
	return header.Pack().Digest()
}

// ValidBits - whether the compact bits field is a well-formed
// difficulty encoding; difficulty.SetBits treats a malformed value as
// a programming error and panics, so headers arriving off the network
// are screened here first
func (header *Header) ValidBits() bool {
	if difficulty.DefaultUint32 == header.Bits {
		return true
	}
	exponent := 8 * (int(header.Bits>>24)&0xff - 3)
	mantissa := int64(header.Bits & 0x00ffffff)
	return mantissa <= 0x7fffff && mantissa >= 0x008000 && exponent >= 0
}

// Difficulty - materialize the compact bits field into a difficulty value
func (header *Header) Difficulty() *difficulty.Difficulty {
	d := difficulty.New()
	d.SetBits(header.Bits)
	return d
}

// CheckPoW - H(header) <= target(difficulty); false, not a panic, on
// a malformed bits field
func (header *Header) CheckPoW() bool {
	if !header.ValidBits() {
		return false
	}
	digest := header.Digest()
	return digest.Cmp(header.Difficulty().Target()) <= 0
}
