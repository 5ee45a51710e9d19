// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package pqcrypto - post-quantum signing, verification and content
// hashing primitives
//
// The signature scheme is CRYSTALS-Dilithium (mode 3, NIST security
// category 3) as implemented by cloudflare/circl. Content hashing (used
// both for addresses and for proof of work) is SHA3-256. Both choices
// are deliberately kept to a single fixed algorithm: the chain records
// no algorithm tag, so changing either is a hard fork.
package pqcrypto

import (
	"crypto/rand"
	"io"

	"github.com/cloudflare/circl/sign/dilithium"

	"github.com/bitmark-inc/latticed/fault"
)

// the one supported mode for the lifetime of this chain
var mode = dilithium.Mode3

// byte sizes of the scheme's keys and signatures
const (
	PublicKeySize  = 1952 // dilithium.Mode3 public key size
	PrivateKeySize = 4000 // dilithium.Mode3 private key size
	SignatureSize  = 3293 // dilithium.Mode3 signature size
)

// PublicKey - raw public key bytes
type PublicKey []byte

// PrivateKey - raw private key bytes
type PrivateKey []byte

// Signature - raw signature bytes
type Signature []byte

// GenerateKey - create a new random key pair
func GenerateKey() (PublicKey, PrivateKey, error) {
	return GenerateKeyFromReader(rand.Reader)
}

// GenerateKeyFromReader - create a key pair from an arbitrary entropy
// source; used with a seed-derived deterministic reader by package
// keypair so that a seed can be backed up and keys later regenerated
func GenerateKeyFromReader(source io.Reader) (PublicKey, PrivateKey, error) {
	pub, priv, err := mode.GenerateKey(source)
	if nil != err {
		return nil, nil, err
	}
	return PublicKey(pub.Bytes()), PrivateKey(priv.Bytes()), nil
}

// Sign - sign a message with a private key
//
// callers must zero the signature field of the record before calling
// this so that Verify can be computed over the same canonical bytes
func Sign(privateKey PrivateKey, message []byte) (Signature, error) {
	if len(privateKey) != PrivateKeySize {
		return nil, fault.ErrInvalidPrivateKey
	}
	priv := mode.PrivateKeyFromBytes(privateKey)
	sig := mode.Sign(priv, message)
	return Signature(sig), nil
}

// Verify - verify a signature over a message under a public key
//
// deterministic, side-effect free and safe to call concurrently; state
// calls it sequentially, once per transaction, inside applyTransaction
func Verify(publicKey PublicKey, message []byte, signature Signature) bool {
	if len(publicKey) != PublicKeySize || len(signature) != SignatureSize {
		return false
	}
	pub := mode.PublicKeyFromBytes(publicKey)
	return mode.Verify(pub, message, signature)
}
