// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package transactionrecord

import (
	"github.com/bitmark-inc/latticed/account"
	"github.com/bitmark-inc/latticed/fault"
	"github.com/bitmark-inc/latticed/pqcrypto"
)

// Sign - compute the signature over a transaction's unsigned message
// and set envelope.Signature, ready for a final Pack
//
// the caller's envelope.PublicKey must already be the signer's key;
// for a master-address signature that is the account's own key, for a
// delegated signature it is one of its Slave.Delegates keys
func Sign(tx Transaction, privateKey pqcrypto.PrivateKey) error {
	envelope := tx.GetEnvelope()
	envelope.Signature = nil
	unsigned, err := tx.Pack()
	if nil != err {
		return err
	}
	signature, err := pqcrypto.Sign(privateKey, unsigned)
	if nil != err {
		return err
	}
	envelope.Signature = account.Signature(signature)
	return nil
}

// Verify - basic_validate: check structural bounds and signature
// validity only; this does NOT consult account state (nonce, balance,
// used_signature_keys, delegated_keys) — that is state.ValidateTransaction
// and state.ApplyBlock
func Verify(tx Transaction) error {
	envelope := tx.GetEnvelope()

	if _, ok := tx.(*Coinbase); ok {
		return nil // never individually signed
	}

	if 0 == len(envelope.PublicKey) || 0 == len(envelope.Signature) {
		return fault.ErrInvalidSignature
	}

	signature := envelope.Signature
	envelope.Signature = nil
	unsigned, err := tx.Pack()
	envelope.Signature = signature
	if nil != err {
		return err
	}

	if !pqcrypto.Verify(envelope.PublicKey, unsigned, pqcrypto.Signature(signature)) {
		return fault.ErrInvalidSignature
	}
	return nil
}
