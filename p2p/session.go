// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package p2p

import (
	"math"
	"math/big"
	"time"

	zmq "github.com/pebbe/zmq4"

	"github.com/bitmark-inc/latticed/block"
	"github.com/bitmark-inc/latticed/codec"
	"github.com/bitmark-inc/latticed/constants"
	"github.com/bitmark-inc/latticed/fault"
	"github.com/bitmark-inc/latticed/genesis"
	"github.com/bitmark-inc/latticed/merkle"
	"github.com/bitmark-inc/latticed/transactionrecord"
	"github.com/bitmark-inc/latticed/util"
	"github.com/bitmark-inc/latticed/zmqutil"
)

// Session - an outbound REQ connection to one peer, grounded on
// peer/upstream/upstream.go's "critical section: Send then Receive
// under one lock" idiom, generalized from that file's fixed "N"/"B"/"H"
// token set to the full codec.FunctionCode union this protocol
// set names.
type Session struct {
	state   *PeerState
	client  *zmqutil.Client
	network string
}

// NewSession - a fresh, unconnected outbound session
func NewSession(network string, privateKey []byte, publicKey []byte) (*Session, error) {
	c, err := zmqutil.NewClient(zmq.REQ, privateKey, publicKey, constants.PeerRequestTimeout)
	if nil != err {
		return nil, err
	}
	return &Session{
		state:   &PeerState{},
		client:  c,
		network: network,
	}, nil
}

// Connect - dial the peer and perform the VE handshake; a genesis hash
// mismatch disconnects immediately and bans the peer permanently
func (s *Session) Connect(conn *util.Connection, serverPublicKey []byte, rateLimit uint64, banDuration time.Duration) error {
	if err := s.client.Connect(conn, serverPublicKey); nil != err {
		return err
	}
	s.state.Address = conn.String()

	g, err := genesis.For(s.network)
	if nil != err {
		return err
	}
	genesisHash := g.Block.Header.Digest()

	reply, err := s.call(codec.VersionCode, (&codec.Version{
		ProtocolVersion: protocolVersion,
		GenesisHash:     genesisHash,
		RateLimit:       rateLimit,
	}).Pack())
	if nil != err {
		return err
	}

	var ve codec.Version
	if err := ve.Unpack(reply); nil != err {
		globalBans.ban(s.state.Address, time.Now(), banDuration)
		return err
	}
	if ve.GenesisHash != genesisHash {
		globalBans.ban(s.state.Address, time.Now(), time.Duration(math.MaxInt64))
		s.client.Close()
		return fault.ErrGenesisMismatch
	}
	s.state.ProtocolVersion = ve.ProtocolVersion
	s.state.recordContact(time.Now())
	return nil
}

// call - send a function code frame plus a single payload frame and
// return the response payload, translating an "E" status frame into a
// Go error the same way upstream.go's switch on data[0] does
func (s *Session) call(fn codec.FunctionCode, payload []byte) ([]byte, error) {
	if err := s.client.Send(string(fn), payload); nil != err {
		return nil, err
	}
	data, err := s.client.Receive(0)
	if nil != err {
		return nil, err
	}
	if len(data) < 2 {
		return nil, fault.ErrInvalidResponse
	}
	if "E" == string(data[0]) {
		return nil, mapErrorText(string(data[1]))
	}
	return data[1], nil
}

// ChainState - CHAINSTATE request: the peer's tip, height and
// cumulative difficulty, used by the syncer to decide whether this
// peer is worth pulling HEADERHASHES from
func (s *Session) ChainState() (merkle.Digest, uint64, *big.Int, error) {
	reply, err := s.call(codec.ChainState, nil)
	if nil != err {
		return merkle.Digest{}, 0, nil, err
	}
	var msg codec.ChainStateMessage
	if err := msg.Unpack(reply); nil != err {
		return merkle.Digest{}, 0, nil, err
	}
	return msg.Tip, msg.Height, msg.CumulativeDifficulty, nil
}

// HeaderHashes - HEADERHASHES request: a contiguous run of header
// hashes starting at fromHeight, the syncer's sliding window
func (s *Session) HeaderHashes(fromHeight uint64) (*codec.HeaderHashesMessage, error) {
	reply, err := s.call(codec.HeaderHashes, (&codec.SyncRequest{FromHeight: fromHeight}).Pack())
	if nil != err {
		return nil, err
	}
	msg := &codec.HeaderHashesMessage{}
	if err := msg.Unpack(reply); nil != err {
		return nil, err
	}
	return msg, nil
}

// FetchBlock - FB request: the full block at a given height
func (s *Session) FetchBlock(height uint64) (*block.Block, error) {
	reply, err := s.call(codec.FetchBlock, (&codec.FetchBlockMessage{Height: height}).Pack())
	if nil != err {
		return nil, err
	}
	return block.Unpack(reply)
}

// PushBlock - PB request: submit a full block to the peer
func (s *Session) PushBlock(blk *block.Block) error {
	packed, err := blk.Pack()
	if nil != err {
		return err
	}
	_, err = s.call(codec.PushBlock, packed)
	return err
}

// PushTransaction - submit a full typed-transaction record to the peer
func (s *Session) PushTransaction(fn codec.FunctionCode, packed transactionrecord.Packed) error {
	_, err := s.call(fn, packed)
	return err
}

// Announce - MR gossip: tell the peer about a hash; if it replies SFM
// (it doesn't already have the item), push the full record immediately
// with a follow-up request, so the announce-then-request exchange
// completes within the round trips this session already holds open
func (s *Session) Announce(hash merkle.Digest, fn codec.FunctionCode, fetch func(merkle.Digest) ([]byte, error)) error {
	reply, err := s.call(codec.HaveHash, hash[:])
	if nil != err {
		return err
	}
	if string(codec.SendFull) != string(reply) {
		return nil
	}
	full, err := fetch(hash)
	if nil != err {
		return err
	}
	_, err = s.call(fn, full)
	return err
}

// Ack - report a cumulative received-byte count so the peer can
// enforce its own declared rate limit against us
func (s *Session) Ack(byteCount uint64) error {
	_, err := s.call(codec.Ack, (&codec.AckMessage{ByteCount: byteCount}).Pack())
	return err
}

// Ping - PONG liveness probe, used by the idle sweep before disconnecting
func (s *Session) Ping() error {
	_, err := s.call(codec.Pong, nil)
	return err
}

// Close - disconnect the underlying client
func (s *Session) Close() {
	s.client.Close()
}

// protocolVersion - the VE handshake's declared wire version
const protocolVersion uint16 = 1

func mapErrorText(text string) error {
	switch text {
	case fault.ErrBlockNotFound.Error():
		return fault.ErrBlockNotFound
	case fault.ErrGenesisMismatch.Error():
		return fault.ErrGenesisMismatch
	case fault.ErrUnknownParent.Error():
		return fault.ErrUnknownParent
	default:
		return fault.ProcessError(text)
	}
}
