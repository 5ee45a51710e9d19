// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package mine - the in-process proof-of-work worker pool: template
// construction from the chain tip and pending pool, nonce-range search,
// and sequence-counter invalidation when a fresher template appears
//
// grounded on the teacher's mine/background.go assembly loop for the
// "periodically rebuild a job from available transactions, restart
// workers when it goes stale" shape, generalized from its external
// JSON-RPC stratum-style job queue (job-queue.go, jsonrpc.go, rpc.go -
// this system has no pool of external miners to serve work to) down to
// a simpler in-process worker-pool model: one template,
// swapped atomically, with a sequence number workers poll instead of a
// job-id index external clients fetch by.
package mine

import (
	"sync/atomic"
	"time"

	"github.com/bitmark-inc/latticed/account"
	"github.com/bitmark-inc/latticed/block"
	"github.com/bitmark-inc/latticed/blockheader"
	"github.com/bitmark-inc/latticed/chain"
	"github.com/bitmark-inc/latticed/mempool"
	"github.com/bitmark-inc/latticed/merkle"
	"github.com/bitmark-inc/latticed/transactionrecord"
)

// maxTemplateBytes - how much pending-transaction payload a template
// carries, mirroring the teacher's maximumTransactions cap in spirit
// but expressed in bytes since fee-rate admission is already byte-based
const maxTemplateBytes = 1 << 22

// Template - everything a worker needs to build and search a candidate
// header: previous hash, height, difficulty, coinbase recipient and
// the selected transactions
type Template struct {
	Sequence          uint64
	PreviousBlock     merkle.Digest
	Height            uint64
	Bits              uint32
	Timestamp         uint64
	CoinbaseRecipient account.Address
	Subsidy           uint64
	FeeSum            uint64
	Transactions      []transactionrecord.Packed // excludes the coinbase, which the worker builds itself
}

var currentTemplate atomic.Value // holds *Template

var sequenceCounter uint64

// Current - the most recently built template, or nil before the first
// refresh has run
func Current() *Template {
	t, _ := currentTemplate.Load().(*Template)
	return t
}

// refreshTemplate - rebuild the template from the current tip and
// pending pool; publishes and returns the new template
func refreshTemplate(coinbaseRecipient account.Address) (*Template, error) {
	previousBlock, height := chain.Tip()
	bits, err := chain.NextBits()
	if nil != err {
		return nil, err
	}
	params := chain.Params()

	selected := mempool.Select(maxTemplateBytes)
	feeSum, err := sumFees(selected)
	if nil != err {
		return nil, err
	}

	nextHeight := height + 1
	subsidy := block.Subsidy(nextHeight, params.InitialSubsidy, params.HalvingInterval)

	seq := atomic.AddUint64(&sequenceCounter, 1)
	t := &Template{
		Sequence:          seq,
		PreviousBlock:     previousBlock,
		Height:            nextHeight,
		Bits:              bits,
		Timestamp:         uint64(time.Now().Unix()),
		CoinbaseRecipient: coinbaseRecipient,
		Subsidy:           subsidy,
		FeeSum:            feeSum,
		Transactions:      selected,
	}
	currentTemplate.Store(t)
	return t, nil
}

func sumFees(packed []transactionrecord.Packed) (uint64, error) {
	var sum uint64
	for _, p := range packed {
		tx, _, err := p.Unpack()
		if nil != err {
			return 0, err
		}
		sum += tx.GetEnvelope().Fee
	}
	return sum, nil
}

// buildBlock - assemble a full, unmined block from a template: coinbase
// first, then the selected transactions, header fields filled in except
// the nonce a worker still has to search for
func buildBlock(t *Template) *block.Block {
	coinbase := &transactionrecord.Coinbase{
		Envelope:  transactionrecord.Envelope{MasterAddress: t.CoinbaseRecipient},
		Recipient: t.CoinbaseRecipient,
		Amount:    t.Subsidy + t.FeeSum,
	}
	packedCoinbase, err := coinbase.Pack()
	if nil != err {
		// a coinbase record has no variable-length field that can fail
		// to pack; a failure here means the account/amount types
		// themselves are broken, not a transient condition a worker
		// can recover from
		panic(err)
	}

	blk := &block.Block{
		Transactions: append([]transactionrecord.Packed{packedCoinbase}, t.Transactions...),
	}
	blk.Header.Version = blockheader.Version
	blk.Header.PreviousBlock = t.PreviousBlock
	blk.Header.MerkleRoot = blk.MerkleRoot()
	blk.Header.BlockNumber = t.Height
	blk.Header.Timestamp = t.Timestamp
	blk.Header.Bits = t.Bits
	blk.Header.Reward = t.Subsidy
	blk.Header.FeeSum = t.FeeSum

	return blk
}
