// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package transactionrecord_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bitmark-inc/latticed/account"
	"github.com/bitmark-inc/latticed/pqcrypto"
	"github.com/bitmark-inc/latticed/transactionrecord"
)

func newSigner(t *testing.T) (account.Address, pqcrypto.PublicKey, pqcrypto.PrivateKey) {
	t.Helper()
	publicKey, privateKey, err := pqcrypto.GenerateKey()
	require.NoError(t, err)
	addr := account.AddressOf(account.VersionTestnet, publicKey)
	return addr, publicKey, privateKey
}

func TestTransferPackUnpackRoundTrip(t *testing.T) {
	addr, publicKey, privateKey := newSigner(t)
	recipient, _, _ := newSigner(t)

	tx := &transactionrecord.Transfer{
		Envelope: transactionrecord.Envelope{
			MasterAddress: addr,
			Fee:           10,
			PublicKey:     publicKey,
			Nonce:         1,
		},
		Outputs: []transactionrecord.Output{{Recipient: recipient, Amount: 500}},
		Message: []byte("hello"),
	}

	require.NoError(t, transactionrecord.Sign(tx, privateKey))
	require.NoError(t, transactionrecord.Verify(tx))

	packed, err := tx.Pack()
	require.NoError(t, err)
	require.Equal(t, transactionrecord.TransferTag, packed.Type())

	decoded, n, err := packed.Unpack()
	require.NoError(t, err)
	require.Equal(t, len(packed), n)

	transfer, ok := decoded.(*transactionrecord.Transfer)
	require.True(t, ok)
	require.Equal(t, tx.Outputs, transfer.Outputs)
	require.Equal(t, tx.Message, transfer.Message)
	require.Equal(t, tx.MasterAddress, transfer.MasterAddress)
	require.NoError(t, transactionrecord.Verify(transfer))
}

func TestVerifyRejectsTamperedOutput(t *testing.T) {
	addr, publicKey, privateKey := newSigner(t)
	recipient, _, _ := newSigner(t)

	tx := &transactionrecord.Transfer{
		Envelope: transactionrecord.Envelope{
			MasterAddress: addr,
			PublicKey:     publicKey,
		},
		Outputs: []transactionrecord.Output{{Recipient: recipient, Amount: 500}},
	}
	require.NoError(t, transactionrecord.Sign(tx, privateKey))

	tx.Outputs[0].Amount = 5000
	require.Error(t, transactionrecord.Verify(tx))
}

func TestCoinbasePackUnpack(t *testing.T) {
	addr, _, _ := newSigner(t)
	tx := &transactionrecord.Coinbase{
		Envelope:  transactionrecord.Envelope{MasterAddress: addr},
		Recipient: addr,
		Amount:    5_000_000_000,
	}
	require.NoError(t, transactionrecord.Verify(tx)) // always nil for coinbase

	packed, err := tx.Pack()
	require.NoError(t, err)

	decoded, _, err := packed.Unpack()
	require.NoError(t, err)
	coinbase, ok := decoded.(*transactionrecord.Coinbase)
	require.True(t, ok)
	require.Equal(t, tx.Amount, coinbase.Amount)
}

func TestTokenCreateAndTransferRoundTrip(t *testing.T) {
	addr, publicKey, privateKey := newSigner(t)
	recipient, _, _ := newSigner(t)

	create := &transactionrecord.TokenCreate{
		Envelope: transactionrecord.Envelope{
			MasterAddress: addr,
			PublicKey:     publicKey,
		},
		Symbol:          "QRT",
		Name:            "Quantum Resistant Token",
		Owner:           addr,
		Decimals:        8,
		InitialBalances: []transactionrecord.Output{{Recipient: addr, Amount: 1_000_000}},
	}
	require.NoError(t, transactionrecord.Sign(create, privateKey))
	packed, err := create.Pack()
	require.NoError(t, err)
	require.Equal(t, transactionrecord.TokenCreateTag, packed.Type())

	tokenHash := packed.TxId()

	transfer := &transactionrecord.TokenTransfer{
		Envelope: transactionrecord.Envelope{
			MasterAddress: addr,
			PublicKey:     publicKey,
		},
		TokenCreateHash: tokenHash,
		Outputs:         []transactionrecord.Output{{Recipient: recipient, Amount: 250}},
	}
	require.NoError(t, transactionrecord.Sign(transfer, privateKey))
	transferPacked, err := transfer.Pack()
	require.NoError(t, err)

	decoded, _, err := transferPacked.Unpack()
	require.NoError(t, err)
	out, ok := decoded.(*transactionrecord.TokenTransfer)
	require.True(t, ok)
	require.Equal(t, tokenHash, out.TokenCreateHash)
	require.NoError(t, transactionrecord.Verify(out))
}

func TestSlavePackUnpack(t *testing.T) {
	addr, publicKey, privateKey := newSigner(t)
	_, delegatedKey, _ := newSigner(t)

	tx := &transactionrecord.Slave{
		Envelope: transactionrecord.Envelope{MasterAddress: addr, PublicKey: publicKey},
		Delegates: []transactionrecord.DelegatedKey{
			{PublicKey: delegatedKey, AccessType: transactionrecord.AccessTransfer | transactionrecord.AccessMessage},
		},
	}
	require.NoError(t, transactionrecord.Sign(tx, privateKey))
	packed, err := tx.Pack()
	require.NoError(t, err)

	decoded, _, err := packed.Unpack()
	require.NoError(t, err)
	slave, ok := decoded.(*transactionrecord.Slave)
	require.True(t, ok)
	require.Len(t, slave.Delegates, 1)
	require.Equal(t, transactionrecord.AccessTransfer|transactionrecord.AccessMessage, slave.Delegates[0].AccessType)
}

func TestMultiSigCreateSpendVoteRoundTrip(t *testing.T) {
	addr, publicKey, privateKey := newSigner(t)
	signer2, _, _ := newSigner(t)
	target, _, _ := newSigner(t)

	create := &transactionrecord.MultiSigCreate{
		Envelope: transactionrecord.Envelope{MasterAddress: addr, PublicKey: publicKey},
		Signatories: []transactionrecord.Signatory{
			{Address: addr, Weight: 1},
			{Address: signer2, Weight: 1},
		},
		Threshold: 2,
	}
	require.NoError(t, transactionrecord.Sign(create, privateKey))
	createPacked, err := create.Pack()
	require.NoError(t, err)

	spend := &transactionrecord.MultiSigSpend{
		Envelope: transactionrecord.Envelope{MasterAddress: addr, PublicKey: publicKey},
		Target:   target,
		Outputs:  []transactionrecord.Output{{Recipient: target, Amount: 100}},
		Expiry:   1000,
	}
	require.NoError(t, transactionrecord.Sign(spend, privateKey))
	spendPacked, err := spend.Pack()
	require.NoError(t, err)
	spendHash := spendPacked.TxId()

	vote := &transactionrecord.MultiSigVote{
		Envelope:  transactionrecord.Envelope{MasterAddress: addr, PublicKey: publicKey},
		SpendHash: spendHash,
		Vote:      true,
	}
	require.NoError(t, transactionrecord.Sign(vote, privateKey))
	votePacked, err := vote.Pack()
	require.NoError(t, err)

	decodedCreate, _, err := createPacked.Unpack()
	require.NoError(t, err)
	require.Equal(t, transactionrecord.MultiSigCreateTag, decodedCreate.Tag())

	decodedVote, _, err := votePacked.Unpack()
	require.NoError(t, err)
	v, ok := decodedVote.(*transactionrecord.MultiSigVote)
	require.True(t, ok)
	require.Equal(t, spendHash, v.SpendHash)
	require.True(t, v.Vote)
}

func TestUnpackRejectsTruncatedRecord(t *testing.T) {
	addr, publicKey, privateKey := newSigner(t)
	tx := &transactionrecord.Message{
		Envelope: transactionrecord.Envelope{MasterAddress: addr, PublicKey: publicKey},
		Payload:  []byte("hi"),
	}
	require.NoError(t, transactionrecord.Sign(tx, privateKey))
	packed, err := tx.Pack()
	require.NoError(t, err)

	truncated := packed[:len(packed)-5]
	_, _, err = truncated.Unpack()
	require.Error(t, err)
}
