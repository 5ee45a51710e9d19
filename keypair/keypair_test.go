// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package keypair_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bitmark-inc/latticed/keypair"
)

func TestMakeRawKeyPair(t *testing.T) {
	raw, kp, err := keypair.MakeRawKeyPair(true)
	require.NoError(t, err)
	require.NotEmpty(t, raw.Seed)
	require.NotEmpty(t, kp.PublicKey)
	require.NotEmpty(t, kp.PrivateKey)
}

func TestMakeRawKeyPairFromSeedIsDeterministic(t *testing.T) {
	seed, err := keypair.NewSeed(false)
	require.NoError(t, err)

	_, kp1, err := keypair.MakeRawKeyPairFromSeed(seed, false)
	require.NoError(t, err)

	_, kp2, err := keypair.MakeRawKeyPairFromSeed(seed, false)
	require.NoError(t, err)

	require.Equal(t, kp1.PublicKey, kp2.PublicKey)
	require.Equal(t, kp1.PrivateKey, kp2.PrivateKey)
}

func TestMakeRawKeyPairFromSeedRejectsUndecodableSeed(t *testing.T) {
	_, _, err := keypair.MakeRawKeyPairFromSeed("not a real seed", false)
	require.Error(t, err)
}
