// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

import (
	"github.com/bitmark-inc/latticed/block"
	"github.com/bitmark-inc/latticed/merkle"
	"github.com/bitmark-inc/latticed/state"
)

// OnBlockCommitted - a new tip just became the committed chain; drop
// every pool entry that block included (it is confirmed, not pending
// any more) and re-validate everything that is left, since one of the
// committed transactions may have consumed a signing key, nonce or
// balance a still-pending entry depended on
func OnBlockCommitted(blk *block.Block, blockNumber uint64) {
	included := make(map[merkle.Digest]bool, len(blk.Transactions))
	for _, packed := range blk.Transactions {
		included[packed.TxId()] = true
	}

	global.Lock()
	for hash := range global.byHash {
		if included[hash] {
			remove(hash)
		}
	}
	global.Unlock()

	revalidate(blockNumber)
}

// OnReorg - the committed chain changed branch: every pending entry is
// re-checked against the new tip, since balances, nonces and used-key
// sets may differ on the new branch. Transactions that came from
// blocks the reorg orphaned are the caller's responsibility to resubmit.
func OnReorg(newTipBlockNumber uint64) {
	revalidate(newTipBlockNumber)
}

func revalidate(currentBlockNumber uint64) {
	global.Lock()
	defer global.Unlock()

	for hash, e := range global.byHash {
		if err := state.ValidateTransaction(e.Tx, currentBlockNumber+1); nil != err {
			remove(hash)
		}
	}
}
