// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package p2p

import (
	"github.com/bitmark-inc/latticed/chain"
	"github.com/bitmark-inc/latticed/codec"
	"github.com/bitmark-inc/latticed/limitedset"
	"github.com/bitmark-inc/latticed/mempool"
	"github.com/bitmark-inc/latticed/merkle"
	"github.com/bitmark-inc/latticed/messagebus"
	"github.com/bitmark-inc/logger"
)

// transactionFunctionCodeByType - the typed-transaction tag name
// mempool.GossipRecord.Type carries, mapped to the wire function code
// that announces it; grounded on codec/function.go's TransactionFunctionCodes set
var transactionFunctionCodeByType = map[string]codec.FunctionCode{
	"Transfer":       codec.Transfer,
	"Message":        codec.Message,
	"TokenCreate":    codec.TokenCreate,
	"TokenTransfer":  codec.TokenTransfer,
	"Slave":          codec.Slave,
	"MultiSigCreate": codec.MultiSigCreate,
	"MultiSigSpend":  codec.MultiSigSpend,
	"MultiSigVote":   codec.MultiSigVote,
}

// recentlyAnnounced - hashes this node has already gossiped; a relayed
// item circling back through the bus (mempool re-admission after a
// reorg, a block announced by both the tip extension and a resumed
// fork) is announced once, not once per arrival path
var recentlyAnnounced = limitedset.New(1024)

// gossipFanOut - a background.Process: drains the message bus and
// re-announces every locally admitted transaction or newly committed
// block to every connected peer, grounded on the teacher's
// subscriber.go "single goroutine draining messagebus.Chan(), one
// switch per message type" loop
func gossipFanOut(args interface{}, shutdown <-chan bool, finished chan<- bool) {
	log := logger.New("p2p-gossip")
	log.Info("starting…")

loop:
	for {
		select {
		case <-shutdown:
			break loop
		case msg := <-messagebus.Chan():
			switch item := msg.Item.(type) {
			case mempool.GossipRecord:
				announceTransaction(log, item)
			case chain.BlockAnnouncement:
				announceBlock(log, item)
			}
		}
	}

	log.Info("stopped")
	finished <- true
}

func announceTransaction(log *logger.L, record mempool.GossipRecord) {
	fn, ok := transactionFunctionCodeByType[record.Type]
	if !ok {
		return
	}
	if recentlyAnnounced.Exists(string(record.Hash[:])) {
		return
	}
	recentlyAnnounced.Add(string(record.Hash[:]))
	fetch := func(hash merkle.Digest) ([]byte, error) {
		entry, ok := mempool.Get(hash)
		if !ok {
			return nil, nil
		}
		return entry.Packed, nil
	}
	globalTable.forEach(func(addr string, session *Session) {
		if err := session.Announce(record.Hash, fn, fetch); nil != err {
			log.Debugf("announce transaction to %s failed: %v", addr, err)
		}
	})
}

func announceBlock(log *logger.L, item chain.BlockAnnouncement) {
	if recentlyAnnounced.Exists(string(item.Hash[:])) {
		return
	}
	recentlyAnnounced.Add(string(item.Hash[:]))
	fetch := func(hash merkle.Digest) ([]byte, error) {
		blk, err := chain.BlockByHash(hash)
		if nil != err {
			return nil, err
		}
		return blk.Pack()
	}
	globalTable.forEach(func(addr string, session *Session) {
		if err := session.Announce(item.Hash, codec.PushBlock, fetch); nil != err {
			log.Debugf("announce block to %s failed: %v", addr, err)
		}
	})
}
