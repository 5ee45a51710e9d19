// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package state - the account/nonce ledger: an overlay over the
// storage key-value index that turns a sequence of transactions and
// blocks into balance changes, with an explicit per-block write set
// so a reorg can revert exactly what a block changed
package state

import (
	"github.com/bitmark-inc/latticed/account"
	"github.com/bitmark-inc/latticed/fault"
	"github.com/bitmark-inc/latticed/merkle"
	"github.com/bitmark-inc/latticed/pqcrypto"
	"github.com/bitmark-inc/latticed/storage"
	"github.com/bitmark-inc/latticed/transactionrecord"
	"github.com/bitmark-inc/latticed/util"
)

// AccountState - per-address ledger entry
//
// UsedKeys records every signing key this address has ever signed
// with, by digest rather than full key, so that a key cannot be
// reused once retired (stateful-signature discipline); UsedKeysCount
// is simply len(UsedKeys), kept as a method rather than a duplicated
// field to avoid the two ever drifting apart.
type AccountState struct {
	Balance       uint64
	Nonce         uint64
	TokenBalances map[merkle.Digest]uint64
	UsedKeys      map[merkle.Digest]struct{}
	Delegates     []transactionrecord.DelegatedKey
}

// zeroAccount - the default-zero account returned for any address
// that has never been touched
func zeroAccount() *AccountState {
	return &AccountState{
		TokenBalances: make(map[merkle.Digest]uint64),
		UsedKeys:      make(map[merkle.Digest]struct{}),
	}
}

// UsedKeysCount - number of signing keys retired by this account
func (a *AccountState) UsedKeysCount() int { return len(a.UsedKeys) }

// HasUsedKey - has this public key ever signed for this account
func (a *AccountState) HasUsedKey(publicKey pqcrypto.PublicKey) bool {
	_, ok := a.UsedKeys[merkle.NewDigest(publicKey)]
	return ok
}

// markKeyUsed - retire a signing key, at-most-once per key forever
func (a *AccountState) markKeyUsed(publicKey pqcrypto.PublicKey) {
	a.UsedKeys[merkle.NewDigest(publicKey)] = struct{}{}
}

// delegateFor - the DelegatedKey entry matching publicKey, if the
// account has registered one via a Slave transaction
func (a *AccountState) delegateFor(publicKey pqcrypto.PublicKey) (transactionrecord.DelegatedKey, bool) {
	for _, d := range a.Delegates {
		if string(d.PublicKey) == string(publicKey) {
			return d, true
		}
	}
	return transactionrecord.DelegatedKey{}, false
}

// clone - a deep copy, so an overlay entry can be mutated without
// affecting the value a caller already holds
func (a *AccountState) clone() *AccountState {
	c := &AccountState{
		Balance:       a.Balance,
		Nonce:         a.Nonce,
		TokenBalances: make(map[merkle.Digest]uint64, len(a.TokenBalances)),
		UsedKeys:      make(map[merkle.Digest]struct{}, len(a.UsedKeys)),
		Delegates:     append([]transactionrecord.DelegatedKey(nil), a.Delegates...),
	}
	for k, v := range a.TokenBalances {
		c.TokenBalances[k] = v
	}
	for k := range a.UsedKeys {
		c.UsedKeys[k] = struct{}{}
	}
	return c
}

// pack - the stored binary form: balance, nonce, then the variable
// sections, each varint-count-prefixed in the transactionrecord style
func (a *AccountState) pack() []byte {
	buffer := make([]byte, 0, 64)
	buffer = append(buffer, util.ToVarint64(a.Balance)...)
	buffer = append(buffer, util.ToVarint64(a.Nonce)...)

	buffer = append(buffer, util.ToVarint64(uint64(len(a.TokenBalances)))...)
	for tokenHash, amount := range a.TokenBalances {
		buffer = append(buffer, tokenHash[:]...)
		buffer = append(buffer, util.ToVarint64(amount)...)
	}

	buffer = append(buffer, util.ToVarint64(uint64(len(a.UsedKeys)))...)
	for keyDigest := range a.UsedKeys {
		buffer = append(buffer, keyDigest[:]...)
	}

	buffer = append(buffer, util.ToVarint64(uint64(len(a.Delegates)))...)
	for _, d := range a.Delegates {
		buffer = append(buffer, util.ToVarint64(uint64(len(d.PublicKey)))...)
		buffer = append(buffer, d.PublicKey...)
		buffer = append(buffer, d.AccessType)
	}
	return buffer
}

// unpackAccountState - inverse of pack; panics on truncation, caught
// by the package-level recover in decodeAccount
func unpackAccountState(data []byte) *AccountState {
	pos := 0
	readVarint := func() uint64 {
		v, n := util.FromVarint64(data[pos:])
		if 0 == n {
			panic(fault.ErrMalformed)
		}
		pos += n
		return v
	}
	readDigest := func() merkle.Digest {
		if pos+merkle.DigestLength > len(data) {
			panic(fault.ErrMalformed)
		}
		var d merkle.Digest
		copy(d[:], data[pos:pos+merkle.DigestLength])
		pos += merkle.DigestLength
		return d
	}
	readBytes := func(n int) []byte {
		if n < 0 || pos+n > len(data) {
			panic(fault.ErrMalformed)
		}
		b := make([]byte, n)
		copy(b, data[pos:pos+n])
		pos += n
		return b
	}

	a := zeroAccount()
	a.Balance = readVarint()
	a.Nonce = readVarint()

	tokenCount := readVarint()
	for i := uint64(0); i < tokenCount; i++ {
		tokenHash := readDigest()
		a.TokenBalances[tokenHash] = readVarint()
	}

	keyCount := readVarint()
	for i := uint64(0); i < keyCount; i++ {
		a.UsedKeys[readDigest()] = struct{}{}
	}

	delegateCount := readVarint()
	for i := uint64(0); i < delegateCount; i++ {
		keyLen := readVarint()
		publicKey := pqcrypto.PublicKey(readBytes(int(keyLen)))
		accessType := readBytes(1)[0]
		a.Delegates = append(a.Delegates, transactionrecord.DelegatedKey{PublicKey: publicKey, AccessType: accessType})
	}
	return a
}

// decodeAccount - safe wrapper, turns a malformed stored record into
// an error instead of a panic
func decodeAccount(data []byte) (account *AccountState, err error) {
	defer func() {
		if r := recover(); nil != r {
			account, err = nil, fault.ErrStoreCorruption
		}
	}()
	return unpackAccountState(data), nil
}

// GetAccount - get_account: the committed, default-zero account for
// addr, read straight from storage without consulting any in-flight
// block's overlay
func GetAccount(addr account.Address) (*AccountState, error) {
	raw := storage.Pool.Account.Get(addr.Bytes())
	if nil == raw {
		return zeroAccount(), nil
	}
	return decodeAccount(raw)
}
