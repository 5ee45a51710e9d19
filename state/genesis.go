// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package state

import (
	"github.com/bitmark-inc/latticed/genesis"
)

// Genesis - credit a network's pre-declared opening balances directly,
// bypassing ApplyBlock/ApplyTransaction entirely: a coinbase can only
// name one recipient, so the allocations in g.Allocations are applied
// as plain balance credits against the genesis block's header hash,
// recorded under the same write-set discipline as any other block so
// RevertBlock still has something consistent to undo if a reorg ever
// unwinds past block 0 (state itself does not forbid that; it makes no
// assumption about package chain's care here).
func Genesis(g *genesis.Genesis) error {
	ap := newApplier()

	for _, alloc := range g.Allocations {
		acc := ap.account(alloc.Address)
		acc.Balance += alloc.Amount
	}

	return ap.commit(g.Block.Header.Digest())
}
