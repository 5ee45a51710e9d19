// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package pqcrypto_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bitmark-inc/latticed/pqcrypto"
)

func TestSignAndVerify(t *testing.T) {
	publicKey, privateKey, err := pqcrypto.GenerateKey()
	require.NoError(t, err)
	require.Len(t, publicKey, pqcrypto.PublicKeySize)
	require.Len(t, privateKey, pqcrypto.PrivateKeySize)

	message := []byte("a lattice-resistant transaction")
	signature, err := pqcrypto.Sign(privateKey, message)
	require.NoError(t, err)
	require.Len(t, signature, pqcrypto.SignatureSize)

	require.True(t, pqcrypto.Verify(publicKey, message, signature))
}

func TestVerifyRejectsTamperedMessage(t *testing.T) {
	publicKey, privateKey, err := pqcrypto.GenerateKey()
	require.NoError(t, err)

	signature, err := pqcrypto.Sign(privateKey, []byte("original"))
	require.NoError(t, err)

	require.False(t, pqcrypto.Verify(publicKey, []byte("tampered"), signature))
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	publicKeyA, privateKeyA, err := pqcrypto.GenerateKey()
	require.NoError(t, err)
	publicKeyB, _, err := pqcrypto.GenerateKey()
	require.NoError(t, err)

	message := []byte("who signed this")
	signature, err := pqcrypto.Sign(privateKeyA, message)
	require.NoError(t, err)

	require.True(t, pqcrypto.Verify(publicKeyA, message, signature))
	require.False(t, pqcrypto.Verify(publicKeyB, message, signature))
}
