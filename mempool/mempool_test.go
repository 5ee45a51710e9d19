// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bitmark-inc/latticed/account"
	"github.com/bitmark-inc/latticed/block"
	"github.com/bitmark-inc/latticed/cache"
	"github.com/bitmark-inc/latticed/blockheader"
	"github.com/bitmark-inc/latticed/difficulty"
	"github.com/bitmark-inc/latticed/fault"
	"github.com/bitmark-inc/latticed/mempool"
	"github.com/bitmark-inc/latticed/merkle"
	"github.com/bitmark-inc/latticed/pqcrypto"
	"github.com/bitmark-inc/latticed/state"
	"github.com/bitmark-inc/latticed/storage"
	"github.com/bitmark-inc/latticed/transactionrecord"
)

func withStoreAndPool(t *testing.T, maxBytes int, minFeePerByte float64) {
	t.Helper()
	require.NoError(t, cache.Initialise())
	t.Cleanup(cache.Finalise)

	dir := t.TempDir()
	require.NoError(t, storage.Initialise(dir, false))
	t.Cleanup(storage.Finalise)

	require.NoError(t, mempool.Initialise(maxBytes, minFeePerByte))
	t.Cleanup(mempool.Finalise)
}

func newSigner(t *testing.T) (account.Address, pqcrypto.PublicKey, pqcrypto.PrivateKey) {
	t.Helper()
	publicKey, privateKey, err := pqcrypto.GenerateKey()
	require.NoError(t, err)
	addr := account.AddressOf(account.VersionTestnet, publicKey)
	return addr, publicKey, privateKey
}

func mineOnto(t *testing.T, blockNumber uint64, previous merkle.Digest, coinbaseRecipient account.Address, subsidy uint64, feeSum uint64, extra []transactionrecord.Packed) *block.Block {
	t.Helper()

	coinbase := &transactionrecord.Coinbase{
		Envelope:  transactionrecord.Envelope{MasterAddress: coinbaseRecipient},
		Recipient: coinbaseRecipient,
		Amount:    subsidy + feeSum,
	}
	packedCoinbase, err := coinbase.Pack()
	require.NoError(t, err)

	transactions := append([]transactionrecord.Packed{packedCoinbase}, extra...)
	blk := &block.Block{Transactions: transactions}

	d := difficulty.New()
	d.SetPdiff(1.0)

	header := blockheader.Header{
		Version:       blockheader.Version,
		PreviousBlock: previous,
		MerkleRoot:    blk.MerkleRoot(),
		BlockNumber:   blockNumber,
		Timestamp:     uint64(time.Now().Unix()),
		Bits:          d.Bits(),
		Reward:        subsidy,
		FeeSum:        feeSum,
	}
	for nonce := uint64(0); nonce < 1<<20; nonce++ {
		header.Nonce = nonce
		if header.CheckPoW() {
			break
		}
	}
	blk.Header = header
	return blk
}

func fundedTransfer(t *testing.T, sender account.Address, senderPub pqcrypto.PublicKey, senderPriv pqcrypto.PrivateKey, nonce uint64, fee, amount uint64, recipient account.Address) transactionrecord.Packed {
	t.Helper()
	tx := &transactionrecord.Transfer{
		Envelope: transactionrecord.Envelope{
			MasterAddress: sender,
			PublicKey:     senderPub,
			Fee:           fee,
			Nonce:         nonce,
		},
		Outputs: []transactionrecord.Output{{Recipient: recipient, Amount: amount}},
	}
	require.NoError(t, transactionrecord.Sign(tx, senderPriv))
	packed, err := tx.Pack()
	require.NoError(t, err)
	return packed
}

func TestSubmitAdmitsValidTransaction(t *testing.T) {
	withStoreAndPool(t, 1<<20, 0)

	sender, senderPub, senderPriv := newSigner(t)
	recipient, _, _ := newSigner(t)

	fundBlock := mineOnto(t, 1, merkle.Digest{}, sender, 1_000_000, 0, nil)
	require.NoError(t, state.ApplyBlock(fundBlock))

	packed := fundedTransfer(t, sender, senderPub, senderPriv, 0, 10, 500, recipient)

	hash, err := mempool.Submit(packed, fundBlock.Header.BlockNumber)
	require.NoError(t, err)
	require.Equal(t, packed.TxId(), hash)

	entry, ok := mempool.Get(hash)
	require.True(t, ok)
	require.Equal(t, sender, entry.Signer)
	require.Equal(t, 1, mempool.Size())
}

func TestSubmitRejectsDuplicate(t *testing.T) {
	withStoreAndPool(t, 1<<20, 0)

	sender, senderPub, senderPriv := newSigner(t)
	recipient, _, _ := newSigner(t)

	fundBlock := mineOnto(t, 1, merkle.Digest{}, sender, 1_000_000, 0, nil)
	require.NoError(t, state.ApplyBlock(fundBlock))

	packed := fundedTransfer(t, sender, senderPub, senderPriv, 0, 10, 500, recipient)

	_, err := mempool.Submit(packed, fundBlock.Header.BlockNumber)
	require.NoError(t, err)

	_, err = mempool.Submit(packed, fundBlock.Header.BlockNumber)
	require.ErrorIs(t, err, fault.ErrDuplicateTransaction)
}

func TestSubmitRejectsInsufficientBalance(t *testing.T) {
	withStoreAndPool(t, 1<<20, 0)

	sender, senderPub, senderPriv := newSigner(t)
	recipient, _, _ := newSigner(t)

	fundBlock := mineOnto(t, 1, merkle.Digest{}, sender, 100, 0, nil)
	require.NoError(t, state.ApplyBlock(fundBlock))

	packed := fundedTransfer(t, sender, senderPub, senderPriv, 0, 10, 5_000, recipient)

	_, err := mempool.Submit(packed, fundBlock.Header.BlockNumber)
	require.ErrorIs(t, err, fault.ErrInsufficientBalance)
	require.Equal(t, 0, mempool.Size())
}

func TestSubmitRejectsBelowMinimumFeeRate(t *testing.T) {
	withStoreAndPool(t, 1<<20, 1000.0)

	sender, senderPub, senderPriv := newSigner(t)
	recipient, _, _ := newSigner(t)

	fundBlock := mineOnto(t, 1, merkle.Digest{}, sender, 1_000_000, 0, nil)
	require.NoError(t, state.ApplyBlock(fundBlock))

	packed := fundedTransfer(t, sender, senderPub, senderPriv, 0, 1, 500, recipient)

	_, err := mempool.Submit(packed, fundBlock.Header.BlockNumber)
	require.ErrorIs(t, err, fault.ErrInsufficientBalance)
	require.Equal(t, 0, mempool.Size())
}

func TestByteBudgetEvictsLowestFeeRate(t *testing.T) {
	sender, senderPub, senderPriv := newSigner(t)
	recipient, _, _ := newSigner(t)

	fundBlock := mineOnto(t, 1, merkle.Digest{}, sender, 1_000_000_000, 0, nil)

	low := fundedTransfer(t, sender, senderPub, senderPriv, 0, 1, 1, recipient)

	withStoreAndPool(t, len(low)+10, 0)
	require.NoError(t, state.ApplyBlock(fundBlock))

	_, err := mempool.Submit(low, fundBlock.Header.BlockNumber)
	require.NoError(t, err)

	high := fundedTransfer(t, sender, senderPub, senderPriv, 1, 10_000, 1, recipient)
	highHash, err := mempool.Submit(high, fundBlock.Header.BlockNumber)
	require.NoError(t, err)

	_, stillThere := mempool.Get(low.TxId())
	require.False(t, stillThere)

	_, ok := mempool.Get(highHash)
	require.True(t, ok)
}

func TestOnBlockCommittedRemovesIncludedTransactions(t *testing.T) {
	withStoreAndPool(t, 1<<20, 0)

	sender, senderPub, senderPriv := newSigner(t)
	recipient, _, _ := newSigner(t)

	fundBlock := mineOnto(t, 1, merkle.Digest{}, sender, 1_000_000, 0, nil)
	require.NoError(t, state.ApplyBlock(fundBlock))

	packed := fundedTransfer(t, sender, senderPub, senderPriv, 0, 10, 500, recipient)
	hash, err := mempool.Submit(packed, fundBlock.Header.BlockNumber)
	require.NoError(t, err)

	spendBlock := mineOnto(t, 2, fundBlock.Header.Digest(), sender, 1_000_000, 10, []transactionrecord.Packed{packed})
	require.NoError(t, state.ApplyBlock(spendBlock))

	mempool.OnBlockCommitted(spendBlock, spendBlock.Header.BlockNumber)

	_, ok := mempool.Get(hash)
	require.False(t, ok)
	require.Equal(t, 0, mempool.Size())
}

func TestOnReorgDropsNowInvalidTransactions(t *testing.T) {
	withStoreAndPool(t, 1<<20, 0)

	sender, senderPub, senderPriv := newSigner(t)
	recipient, _, _ := newSigner(t)

	fundBlock := mineOnto(t, 1, merkle.Digest{}, sender, 1_000, 0, nil)
	require.NoError(t, state.ApplyBlock(fundBlock))

	packed := fundedTransfer(t, sender, senderPub, senderPriv, 0, 10, 500, recipient)
	hash, err := mempool.Submit(packed, fundBlock.Header.BlockNumber)
	require.NoError(t, err)

	// reverting the funding block drops the sender's balance back to
	// zero, so the pending transfer can no longer validate
	require.NoError(t, state.RevertBlock(fundBlock.Header.Digest()))

	mempool.OnReorg(0)

	_, ok := mempool.Get(hash)
	require.False(t, ok)
}
