// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package codec

import (
	"math/big"

	"github.com/bitmark-inc/latticed/fault"
	"github.com/bitmark-inc/latticed/merkle"
	"github.com/bitmark-inc/latticed/util"
)

// Version - the VE handshake payload: protocol version, the genesis
// hash partitioning this node's network, and a declared byte-rate limit
// the peer is expected to self-enforce
type Version struct {
	ProtocolVersion uint16
	GenesisHash     merkle.Digest
	RateLimit       uint64
}

// Pack - fixed version field, fixed-width digest, varint rate limit
func (v *Version) Pack() []byte {
	buffer := make([]byte, 2, 2+merkle.DigestLength+10)
	buffer[0] = byte(v.ProtocolVersion >> 8)
	buffer[1] = byte(v.ProtocolVersion)
	buffer = append(buffer, v.GenesisHash[:]...)
	buffer = append(buffer, util.ToVarint64(v.RateLimit)...)
	return buffer
}

// Unpack - inverse of Pack
func (v *Version) Unpack(buffer []byte) error {
	if len(buffer) < 2+merkle.DigestLength {
		return fault.ErrMalformed
	}
	v.ProtocolVersion = uint16(buffer[0])<<8 | uint16(buffer[1])
	if err := merkle.DigestFromBytes(&v.GenesisHash, buffer[2:2+merkle.DigestLength]); nil != err {
		return err
	}
	rateLimit, n := util.FromVarint64(buffer[2+merkle.DigestLength:])
	if 0 == n {
		return fault.ErrMalformed
	}
	v.RateLimit = rateLimit
	return nil
}

// bounds on variable-count payloads; a count past these is malformed,
// not merely large, so the decoder can reject it before allocating
const (
	MaxPeerListEntries  = 1000
	MaxHeaderHashCount  = 2000
)

// PeerList - the PL response: a set of addresses a peer is willing to
// introduce, one string per entry (host:port, already canonicalised)
type PeerList struct {
	Addresses []string
}

// Pack - varint count, then each address length-prefixed
func (pl *PeerList) Pack() []byte {
	buffer := util.ToVarint64(uint64(len(pl.Addresses)))
	for _, addr := range pl.Addresses {
		buffer = append(buffer, util.ToVarint64(uint64(len(addr)))...)
		buffer = append(buffer, []byte(addr)...)
	}
	return buffer
}

// Unpack - inverse of Pack
func (pl *PeerList) Unpack(buffer []byte) error {
	count, n := util.FromVarint64(buffer)
	if 0 == n || count > MaxPeerListEntries {
		return fault.ErrMalformed
	}
	buffer = buffer[n:]
	addresses := make([]string, 0, count)
	for i := uint64(0); i < count; i++ {
		length, n := util.FromVarint64(buffer)
		if 0 == n || uint64(len(buffer)) < uint64(n)+length {
			return fault.ErrMalformed
		}
		buffer = buffer[n:]
		addresses = append(addresses, string(buffer[:length]))
		buffer = buffer[length:]
	}
	pl.Addresses = addresses
	return nil
}

// Height - the BH payload: a peer's current chain height
type Height struct {
	Height uint64
}

func (h *Height) Pack() []byte {
	return util.ToVarint64(h.Height)
}

func (h *Height) Unpack(buffer []byte) error {
	height, n := util.FromVarint64(buffer)
	if 0 == n {
		return fault.ErrMalformed
	}
	h.Height = height
	return nil
}

// SyncRequest - the SYNC payload: the requester's known common point,
// used to bound the syncer's backward walk
type SyncRequest struct {
	FromHeight uint64
}

func (s *SyncRequest) Pack() []byte {
	return util.ToVarint64(s.FromHeight)
}

func (s *SyncRequest) Unpack(buffer []byte) error {
	height, n := util.FromVarint64(buffer)
	if 0 == n {
		return fault.ErrMalformed
	}
	s.FromHeight = height
	return nil
}

// ChainStateMessage - the CHAINSTATE payload: enough for a peer to
// decide whether it is worth requesting HEADERHASHES from us
type ChainStateMessage struct {
	Tip                  merkle.Digest
	Height               uint64
	CumulativeDifficulty *big.Int
}

func (c *ChainStateMessage) Pack() []byte {
	buffer := make([]byte, 0, merkle.DigestLength+20)
	buffer = append(buffer, c.Tip[:]...)
	buffer = append(buffer, util.ToVarint64(c.Height)...)
	work := c.CumulativeDifficulty.Bytes()
	buffer = append(buffer, util.ToVarint64(uint64(len(work)))...)
	buffer = append(buffer, work...)
	return buffer
}

func (c *ChainStateMessage) Unpack(buffer []byte) error {
	if len(buffer) < merkle.DigestLength {
		return fault.ErrMalformed
	}
	if err := merkle.DigestFromBytes(&c.Tip, buffer[:merkle.DigestLength]); nil != err {
		return err
	}
	buffer = buffer[merkle.DigestLength:]
	height, n := util.FromVarint64(buffer)
	if 0 == n {
		return fault.ErrMalformed
	}
	buffer = buffer[n:]
	workLen, n := util.FromVarint64(buffer)
	if 0 == n || uint64(len(buffer)-n) < workLen {
		return fault.ErrMalformed
	}
	buffer = buffer[n:]
	c.Height = height
	c.CumulativeDifficulty = new(big.Int).SetBytes(buffer[:workLen])
	return nil
}

// HeaderHashesMessage - the HEADERHASHES payload: a contiguous run of
// header hashes the syncer walks backward/forward to find the common
// ancestor and the blocks still missing
type HeaderHashesMessage struct {
	StartHeight uint64
	Hashes      []merkle.Digest
}

func (h *HeaderHashesMessage) Pack() []byte {
	buffer := util.ToVarint64(h.StartHeight)
	buffer = append(buffer, util.ToVarint64(uint64(len(h.Hashes)))...)
	for _, hash := range h.Hashes {
		buffer = append(buffer, hash[:]...)
	}
	return buffer
}

func (h *HeaderHashesMessage) Unpack(buffer []byte) error {
	startHeight, n := util.FromVarint64(buffer)
	if 0 == n {
		return fault.ErrMalformed
	}
	buffer = buffer[n:]
	count, n := util.FromVarint64(buffer)
	if 0 == n || count > MaxHeaderHashCount {
		return fault.ErrMalformed
	}
	buffer = buffer[n:]
	if uint64(len(buffer)) != count*merkle.DigestLength {
		return fault.ErrMalformed
	}
	hashes := make([]merkle.Digest, count)
	for i := range hashes {
		if err := merkle.DigestFromBytes(&hashes[i], buffer[:merkle.DigestLength]); nil != err {
			return err
		}
		buffer = buffer[merkle.DigestLength:]
	}
	h.StartHeight = startHeight
	h.Hashes = hashes
	return nil
}

// AckMessage - the P2P_ACK payload: a cumulative byte counter the
// receiver uses to enforce the sender's declared rate limit
type AckMessage struct {
	ByteCount uint64
}

func (a *AckMessage) Pack() []byte {
	return util.ToVarint64(a.ByteCount)
}

func (a *AckMessage) Unpack(buffer []byte) error {
	count, n := util.FromVarint64(buffer)
	if 0 == n {
		return fault.ErrMalformed
	}
	a.ByteCount = count
	return nil
}

// FetchBlockMessage - the FB payload: a request for a single block by height
type FetchBlockMessage struct {
	Height uint64
}

func (f *FetchBlockMessage) Pack() []byte {
	return util.ToVarint64(f.Height)
}

func (f *FetchBlockMessage) Unpack(buffer []byte) error {
	height, n := util.FromVarint64(buffer)
	if 0 == n {
		return fault.ErrMalformed
	}
	f.Height = height
	return nil
}
