// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

import (
	"time"

	"github.com/bitmark-inc/latticed/cache"
	"github.com/bitmark-inc/latticed/fault"
	"github.com/bitmark-inc/latticed/merkle"
	"github.com/bitmark-inc/latticed/messagebus"
	"github.com/bitmark-inc/latticed/state"
	"github.com/bitmark-inc/latticed/transactionrecord"
)

// GossipRecord - the bare announcement broadcast to peers and local
// listeners (the miner's template assembler among them) whenever a
// transaction is admitted
type GossipRecord struct {
	Hash merkle.Digest
	Type string
}

// Submit - the admission pipeline: stateless signature/shape checks,
// then a copy-on-write state validation against the chain tip named by
// currentBlockNumber, then fee-rate admission and indexing. The pool
// never mutates real chain state; state.ValidateTransaction runs
// against a throwaway overlay that is discarded either way.
func Submit(packed transactionrecord.Packed, currentBlockNumber uint64) (merkle.Digest, error) {
	hash := packed.TxId()

	global.RLock()
	_, already := global.byHash[hash]
	global.RUnlock()
	if already {
		return hash, fault.ErrDuplicateTransaction
	}

	if len(packed) > maxTransactionBytes {
		return hash, fault.ErrTransactionTooLarge
	}

	// a record that already failed signature/shape checks is refused
	// without repeating the expensive verification
	if cached, ok := cache.Pool.RejectedTransactions.Get(string(hash[:])); ok {
		return hash, cached.(error)
	}

	tx, _, err := packed.Unpack()
	if nil != err {
		cache.Pool.RejectedTransactions.Put(string(hash[:]), err)
		return hash, err
	}

	if err := transactionrecord.Verify(tx); nil != err {
		cache.Pool.RejectedTransactions.Put(string(hash[:]), err)
		return hash, err
	}

	if err := state.ValidateTransaction(tx, currentBlockNumber+1); nil != err {
		return hash, err
	}

	envelope := tx.GetEnvelope()
	feeRate := float64(envelope.Fee) / float64(len(packed))

	global.Lock()
	if feeRate < global.minFeePerByte {
		global.Unlock()
		return hash, fault.ErrInsufficientBalance
	}

	entry := &Entry{
		Hash:       hash,
		Tx:         tx,
		Packed:     packed,
		Signer:     envelope.MasterAddress,
		FeeRate:    feeRate,
		ReceivedAt: nowFunc(),
	}
	insert(entry)

	for global.totalBytes > global.maxBytes {
		if !evictLowestFeeRateLocked(hash) {
			break
		}
	}
	global.Unlock()

	name, _ := transactionrecord.RecordName(tx)
	messagebus.Send("mempool", GossipRecord{Hash: hash, Type: name})

	return hash, nil
}

const maxTransactionBytes = 1 << 16

// nowFunc - indirected so tests can pin received-at timestamps without
// depending on wall-clock time
var nowFunc = time.Now
