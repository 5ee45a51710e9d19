// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package p2p

import (
	zmq "github.com/pebbe/zmq4"

	"github.com/bitmark-inc/latticed/block"
	"github.com/bitmark-inc/latticed/chain"
	"github.com/bitmark-inc/latticed/codec"
	"github.com/bitmark-inc/latticed/fault"
	"github.com/bitmark-inc/latticed/genesis"
	"github.com/bitmark-inc/latticed/mempool"
	"github.com/bitmark-inc/latticed/merkle"
	"github.com/bitmark-inc/latticed/transactionrecord"
	"github.com/bitmark-inc/latticed/util"
	"github.com/bitmark-inc/latticed/zmqutil"
	"github.com/bitmark-inc/logger"
)

const (
	listenerZapDomain = "p2p-listen"
	listenerSignal    = "inproc://latticed-listener-signal"

	// headerHashesWindow - the per-request cap on a HEADERHASHES reply,
	// bounding a single peer's ability to force an unbounded response
	headerHashesWindow = 2000
)

// listener - binds the REP socket(s) peers connect to, grounded on
// peer/listener.go's "Run spawns a poller goroutine, signal socket
// breaks the loop" shape
type listener struct {
	log     *logger.L
	push    *zmq.Socket
	pull    *zmq.Socket
	socket4 *zmq.Socket
	socket6 *zmq.Socket

	network string
}

func (l *listener) initialise(network string, privateKey, publicKey []byte, listen []*util.Connection) error {
	l.log = logger.New("p2p-listener")
	l.network = network

	var err error
	l.push, l.pull, err = zmqutil.NewSignalPair(listenerSignal)
	if nil != err {
		return err
	}

	l.socket4, l.socket6, err = zmqutil.NewBind(l.log, zmq.REP, listenerZapDomain, privateKey, publicKey, listen)
	return err
}

func (l *listener) run() {
	l.log.Info("starting…")

	poller := zmq.NewPoller()
	if nil != l.socket4 {
		poller.Add(l.socket4, zmq.POLLIN)
	}
	if nil != l.socket6 {
		poller.Add(l.socket6, zmq.POLLIN)
	}
	poller.Add(l.pull, zmq.POLLIN)

loop:
	for {
		sockets, _ := poller.Poll(-1)
		for _, socket := range sockets {
			switch s := socket.Socket; s {
			case l.socket4:
				l.process(l.socket4)
			case l.socket6:
				l.process(l.socket6)
			case l.pull:
				s.RecvMessageBytes(0)
				break loop
			}
		}
	}

	if nil != l.socket4 {
		l.socket4.Close()
	}
	if nil != l.socket6 {
		l.socket6.Close()
	}
	l.pull.Close()
	l.log.Info("stopped")
}

func (l *listener) stop() {
	l.push.SendMessage("stop")
	l.push.Close()
}

// process - receive one request, dispatch, reply; never leaves a
// request unanswered since the peer's REQ socket would otherwise block
// forever
func (l *listener) process(socket *zmq.Socket) {
	data, err := socket.RecvMessageBytes(0)
	if nil != err {
		l.log.Errorf("receive error: %v", err)
		return
	}
	if len(data) < 1 {
		return
	}

	fn := codec.FunctionCode(data[0])
	var parameter []byte
	if len(data) > 1 {
		parameter = data[1]
	}

	result, err := l.dispatch(fn, parameter)
	if nil != err {
		sendError(socket, err)
		return
	}
	sendResult(socket, fn, result)
}

func (l *listener) dispatch(fn codec.FunctionCode, parameter []byte) ([]byte, error) {
	switch fn {
	case codec.VersionCode:
		return l.handleVersion(parameter)
	case codec.Pong:
		return nil, nil
	case codec.Ack:
		return nil, nil
	case codec.PeerListCode:
		return globalTable.packPeerList(), nil

	case codec.HaveHash:
		return l.handleHaveHash(parameter)

	case codec.ChainState:
		return l.handleChainState()
	case codec.HeaderHashes:
		return l.handleHeaderHashes(parameter)
	case codec.FetchBlock:
		return l.handleFetchBlock(parameter)
	case codec.PushBlock, codec.Block:
		return l.handlePushBlock(parameter)

	case codec.Transfer, codec.Message, codec.TokenCreate, codec.TokenTransfer,
		codec.Slave, codec.MultiSigCreate, codec.MultiSigSpend, codec.MultiSigVote:
		return l.handleTransaction(parameter)

	default:
		return nil, fault.ErrProtocolViolation
	}
}

func (l *listener) handleVersion(parameter []byte) ([]byte, error) {
	var ve codec.Version
	if err := ve.Unpack(parameter); nil != err {
		return nil, err
	}
	g, err := genesis.For(l.network)
	if nil != err {
		return nil, err
	}
	genesisHash := g.Block.Header.Digest()
	if ve.GenesisHash != genesisHash {
		return nil, fault.ErrGenesisMismatch
	}
	reply := &codec.Version{ProtocolVersion: protocolVersion, GenesisHash: genesisHash}
	return reply.Pack(), nil
}

func (l *listener) handleHaveHash(parameter []byte) ([]byte, error) {
	if merkle.DigestLength != len(parameter) {
		return nil, fault.ErrMalformed
	}
	var hash merkle.Digest
	copy(hash[:], parameter)

	if _, ok := mempool.Get(hash); ok {
		return []byte(codec.Pong), nil
	}
	tip, _ := chain.Tip()
	if hash == tip {
		return []byte(codec.Pong), nil
	}
	if _, err := chain.BlockByHash(hash); nil == err {
		return []byte(codec.Pong), nil
	}
	return []byte(codec.SendFull), nil
}

func (l *listener) handleChainState() ([]byte, error) {
	tip, height := chain.Tip()
	msg := &codec.ChainStateMessage{Tip: tip, Height: height, CumulativeDifficulty: chain.CumulativeDifficulty()}
	return msg.Pack(), nil
}

func (l *listener) handleHeaderHashes(parameter []byte) ([]byte, error) {
	var req codec.SyncRequest
	if err := req.Unpack(parameter); nil != err {
		return nil, err
	}
	hashes := make([]merkle.Digest, 0, headerHashesWindow)
	for n := req.FromHeight; n < req.FromHeight+headerHashesWindow; n++ {
		hash, err := chain.HeaderAt(n)
		if nil != err {
			break
		}
		hashes = append(hashes, hash)
	}
	msg := &codec.HeaderHashesMessage{StartHeight: req.FromHeight, Hashes: hashes}
	return msg.Pack(), nil
}

func (l *listener) handleFetchBlock(parameter []byte) ([]byte, error) {
	var req codec.FetchBlockMessage
	if err := req.Unpack(parameter); nil != err {
		return nil, err
	}
	hash, err := chain.HeaderAt(req.Height)
	if nil != err {
		return nil, err
	}
	blk, err := chain.BlockByHash(hash)
	if nil != err {
		return nil, err
	}
	return blk.Pack()
}

func (l *listener) handlePushBlock(parameter []byte) ([]byte, error) {
	blk, err := block.Unpack(parameter)
	if nil != err {
		return nil, err
	}
	if err := chain.SubmitBlock(blk, "p2p"); nil != err {
		return nil, err
	}
	return nil, nil
}

func (l *listener) handleTransaction(parameter []byte) ([]byte, error) {
	packed := transactionrecord.Packed(parameter)
	tx, _, err := packed.Unpack()
	if nil != err {
		return nil, err
	}
	if _, ok := tx.(*transactionrecord.Coinbase); ok {
		return nil, fault.ErrInvalidTransaction // a coinbase only ever travels inside its block
	}
	_, height := chain.Tip()
	if _, err := mempool.Submit(packed, height); nil != err && fault.ErrDuplicateTransaction != err {
		return nil, err
	}
	return nil, nil
}

func sendResult(socket *zmq.Socket, fn codec.FunctionCode, result []byte) {
	socket.Send(string(fn), zmq.SNDMORE)
	socket.SendBytes(result, 0)
}

func sendError(socket *zmq.Socket, err error) {
	socket.Send("E", zmq.SNDMORE)
	socket.Send(err.Error(), 0)
}
