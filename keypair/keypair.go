// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package keypair - human-manageable seeds for deterministic key
// generation, and the resulting (public, private) key pair
package keypair

import (
	"crypto/rand"
	"encoding/hex"
	"io"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/sha3"

	"github.com/bitmark-inc/latticed/account"
	"github.com/bitmark-inc/latticed/fault"
	"github.com/bitmark-inc/latticed/pqcrypto"
)

const (
	seedCoreLength = 32
	seedChecksum   = 4

	seedPrefix0 = 0x5a
	seedPrefix1 = 0xfe
	seedPrefix2 = 0x01
)

// KeyPair - public and private keys plus the seed used to derive them
type KeyPair struct {
	Seed       string
	PublicKey  pqcrypto.PublicKey
	PrivateKey pqcrypto.PrivateKey
}

// RawKeyPair - hex/text form, suitable for JSON display or file storage
type RawKeyPair struct {
	Seed       string `json:"seed"`
	PublicKey  string `json:"public_key"`
	PrivateKey string `json:"private_key"`
}

// NewSeed - create a new seed from secure random data
//
// layout: 3 magic bytes | 1 network byte | 32 byte core | 4 byte checksum
func NewSeed(test bool) (string, error) {
	seedCore := make([]byte, seedCoreLength)
	if _, err := rand.Read(seedCore); nil != err {
		return "", err
	}

	net := byte(0x00)
	if test {
		net = 0x01
	}
	packed := []byte{seedPrefix0, seedPrefix1, seedPrefix2, net}
	packed = append(packed, seedCore...)
	checksum := sha3.Sum256(packed)
	packed = append(packed, checksum[:seedChecksum]...)

	return base58.Encode(packed), nil
}

// seedReader - expand a 32-byte seed core into an arbitrarily long,
// deterministic keystream via SHAKE256, giving dilithium.GenerateKey a
// reproducible io.Reader
func seedReader(seedCore []byte) io.Reader {
	xof := sha3.NewShake256()
	xof.Write(seedCore)
	return xof
}

// MakeRawKeyPair - create a new seed and generate a key pair from it
func MakeRawKeyPair(test bool) (*RawKeyPair, *KeyPair, error) {
	seed, err := NewSeed(test)
	if nil != err {
		return nil, nil, err
	}
	return MakeRawKeyPairFromSeed(seed, test)
}

// MakeRawKeyPairFromSeed - regenerate a key pair from an existing seed
func MakeRawKeyPairFromSeed(seed string, test bool) (*RawKeyPair, *KeyPair, error) {
	packed, err := base58.Decode(seed)
	if nil != err {
		return nil, nil, fault.ErrCannotDecodeAccount
	}
	if len(packed) != 4+seedCoreLength+seedChecksum {
		return nil, nil, fault.ErrKeyLength
	}

	checksumStart := len(packed) - seedChecksum
	checksum := sha3.Sum256(packed[:checksumStart])
	for i, b := range checksum[:seedChecksum] {
		if packed[checksumStart+i] != b {
			return nil, nil, fault.ErrChecksumMismatch
		}
	}

	seedCore := packed[4:checksumStart]

	publicKey, privateKey, err := pqcrypto.GenerateKeyFromReader(seedReader(seedCore))
	if nil != err {
		return nil, nil, err
	}

	keyPair := &KeyPair{
		Seed:       seed,
		PublicKey:  publicKey,
		PrivateKey: privateKey,
	}
	rawKeyPair := &RawKeyPair{
		Seed:       seed,
		PublicKey:  hex.EncodeToString(publicKey),
		PrivateKey: hex.EncodeToString(privateKey),
	}
	return rawKeyPair, keyPair, nil
}

// AddressFromHexPublicKey - build an address from a hex-encoded public key
func AddressFromHexPublicKey(version byte, hexPublicKey string) (account.Address, error) {
	publicKey, err := hex.DecodeString(hexPublicKey)
	if nil != err {
		return account.Address{}, fault.ErrInvalidPublicKey
	}
	if len(publicKey) != pqcrypto.PublicKeySize {
		return account.Address{}, fault.ErrInvalidKeyLength
	}
	return account.AddressOf(version, pqcrypto.PublicKey(publicKey)), nil
}
