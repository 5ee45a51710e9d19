// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package syncer

import (
	"math/big"

	"github.com/bitmark-inc/latticed/chain"
	"github.com/bitmark-inc/latticed/constants"
	"github.com/bitmark-inc/latticed/fault"
	"github.com/bitmark-inc/latticed/p2p"
	"github.com/bitmark-inc/logger"
)

// candidate - a connected peer claiming a better chain than this node's
type candidate struct {
	addr       string
	session    *p2p.Session
	height     uint64
	difficulty *big.Int
}

// runOnce - compare every connected peer's chain state against the
// local tip and catch up against the single best one; a block is only
// fetched once its header hash has been announced and checked
func runOnce(log *logger.L) {
	_, localHeight := chain.Tip()
	localDifficulty := chain.CumulativeDifficulty()

	var best *candidate
	p2p.ForEachPeer(func(addr string, session *p2p.Session) {
		_, height, difficulty, err := session.ChainState()
		if nil != err {
			log.Debugf("chainstate from %s failed: %v", addr, err)
			return
		}
		if difficulty.Cmp(localDifficulty) <= 0 {
			return
		}
		if nil == best || difficulty.Cmp(best.difficulty) > 0 {
			best = &candidate{addr: addr, session: session, height: height, difficulty: difficulty}
		}
	})

	if nil == best {
		return
	}

	log.Infof("catching up to %s: local height %d, remote height %d", best.addr, localHeight, best.height)
	if err := syncFrom(log, best, localHeight); nil != err {
		log.Errorf("sync from %s failed: %v", best.addr, err)
	}
}

// syncFrom - header-first windowed backfill: fetch a window of header
// hashes, then fetch and apply each block in order, verifying every
// fetched block's digest against the header hash that announced it
// before the block is ever submitted to the chain manager
func syncFrom(log *logger.L, c *candidate, localHeight uint64) error {
	height := localHeight + 1

	for height <= c.height {
		msg, err := c.session.HeaderHashes(height)
		if nil != err {
			return err
		}
		if 0 == len(msg.Hashes) {
			return nil // peer has nothing further to offer right now
		}
		if msg.StartHeight != height {
			p2p.BanPeer(c.addr, constants.ProtocolViolationBan)
			return fault.ErrProtocolViolation
		}

		for i, hash := range msg.Hashes {
			blk, err := c.session.FetchBlock(height + uint64(i))
			if nil != err {
				return err
			}
			if blk.Digest() != hash {
				p2p.BanPeer(c.addr, constants.ProtocolViolationBan)
				return fault.ErrProtocolViolation
			}
			if err := chain.SubmitBlock(blk, "sync"); nil != err && fault.ErrDuplicateBlock != err {
				if fault.IsErrConsensus(err) {
					p2p.BanPeer(c.addr, constants.ProtocolViolationBan)
				}
				return err
			}
		}

		height += uint64(len(msg.Hashes))
		if uint64(len(msg.Hashes)) < headerWindow {
			break // short reply means the peer has caught us up to its tip
		}
	}
	return nil
}
