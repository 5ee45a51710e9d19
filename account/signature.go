// Copyright (c) 2014-2017 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package account

import (
	"encoding/hex"

	"github.com/bitmark-inc/latticed/pqcrypto"
)

// Signature - hex-encoded wire/JSON form of a pqcrypto.Signature
type Signature pqcrypto.Signature

// String - hex string, for use by the fmt package (%s)
func (signature Signature) String() string {
	return hex.EncodeToString(signature)
}

// GoString - for %#v
func (signature Signature) GoString() string {
	return "<signature:" + hex.EncodeToString(signature) + ">"
}

// MarshalText - hex encoding
func (signature Signature) MarshalText() ([]byte, error) {
	size := hex.EncodedLen(len(signature))
	b := make([]byte, size)
	hex.Encode(b, signature)
	return b, nil
}

// UnmarshalText - hex decoding
func (signature *Signature) UnmarshalText(s []byte) error {
	sig := make([]byte, hex.DecodedLen(len(s)))
	n, err := hex.Decode(sig, s)
	if nil != err {
		return err
	}
	*signature = sig[:n]
	return nil
}
