// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package account - addresses and signing envelopes
//
// An Address is the network-visible identifier for an account: a
// version byte (selecting mainnet/testnet/dev) followed by a truncated
// hash of the owning post-quantum public key. The checksummed base-58
// form is canonical for user interfaces; the raw, unchecksummed binary
// form is canonical inside blocks.
package account

import (
	"bytes"
	"encoding/hex"

	"github.com/mr-tron/base58"

	"github.com/bitmark-inc/latticed/fault"
	"github.com/bitmark-inc/latticed/merkle"
	"github.com/bitmark-inc/latticed/pqcrypto"
)

// version bytes, one per network — selection happens in package chain
const (
	VersionMainnet = 0x17
	VersionTestnet = 0x6f
	VersionDev     = 0xef
)

const (
	hashLength     = 20 // truncated from the 32 byte pqcrypto.Hash digest
	checksumLength = 4

	// binary (unchecksummed) length: version + hash
	AddressLength = 1 + hashLength
)

// Address - binary account identifier
type Address [AddressLength]byte

// AddressOf - derive the address belonging to a public key under a
// given network version byte
func AddressOf(version byte, publicKey pqcrypto.PublicKey) Address {
	digest := merkle.NewDigest(publicKey)
	var a Address
	a[0] = version
	copy(a[1:], digest[:hashLength])
	return a
}

// multiSigDomain - domain-separation prefix so a multi-sig address can
// never collide with AddressOf's public-key derivation, even if some
// public key's digest happened to equal a creation transaction's hash
var multiSigDomain = []byte("multisig:")

// AddressOfMultiSig - derive the address of the multi-sig account a
// MultiSigCreate transaction declares, from that transaction's own
// content hash rather than from any public key — the account has no
// controlling signer of its own, only the signatories/threshold
// recorded alongside it
func AddressOfMultiSig(version byte, creationTxHash merkle.Digest) Address {
	digest := merkle.NewDigest(append(append([]byte(nil), multiSigDomain...), creationTxHash[:]...))
	var a Address
	a[0] = version
	copy(a[1:], digest[:hashLength])
	return a
}

// Version - the network version byte embedded in the address
func (a Address) Version() byte { return a[0] }

// Bytes - canonical binary form (as used inside blocks)
func (a Address) Bytes() []byte {
	return a[:]
}

// checksum - sha3 digest of the binary address, truncated
func (a Address) checksum() []byte {
	digest := merkle.NewDigest(a[:])
	return digest[:checksumLength]
}

// String - checksummed base-58 form, canonical for user interfaces
func (a Address) String() string {
	buffer := make([]byte, 0, AddressLength+checksumLength)
	buffer = append(buffer, a[:]...)
	buffer = append(buffer, a.checksum()...)
	return base58.Encode(buffer)
}

// GoString - for %#v formatting
func (a Address) GoString() string {
	return "<address:" + hex.EncodeToString(a[:]) + ">"
}

// MarshalText - JSON/text form is the base-58 string
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText - parse the base-58 string form
func (a *Address) UnmarshalText(s []byte) error {
	decoded, err := AddressFromBase58(string(s))
	if nil != err {
		return err
	}
	*a = decoded
	return nil
}

// AddressFromBase58 - decode and checksum-verify the string form
func AddressFromBase58(s string) (Address, error) {
	decoded, err := base58.Decode(s)
	if nil != err {
		return Address{}, fault.ErrCannotDecodeAccount
	}
	if len(decoded) != AddressLength+checksumLength {
		return Address{}, fault.ErrInvalidKeyLength
	}

	var a Address
	copy(a[:], decoded[:AddressLength])

	if !bytes.Equal(a.checksum(), decoded[AddressLength:]) {
		return Address{}, fault.ErrChecksumMismatch
	}
	return a, nil
}

// AddressFromBytes - decode the raw, unchecksummed binary form
func AddressFromBytes(b []byte) (Address, error) {
	if len(b) != AddressLength {
		return Address{}, fault.ErrInvalidKeyLength
	}
	var a Address
	copy(a[:], b)
	return a, nil
}
