// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package codec_test

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bitmark-inc/latticed/codec"
	"github.com/bitmark-inc/latticed/merkle"
)

func TestVersionRoundTrip(t *testing.T) {
	want := codec.Version{
		ProtocolVersion: 1,
		GenesisHash:     merkle.NewDigest([]byte("genesis")),
		RateLimit:       1_000_000,
	}
	var got codec.Version
	require.NoError(t, got.Unpack(want.Pack()))
	require.Equal(t, want, got)
}

func TestPeerListRoundTrip(t *testing.T) {
	want := codec.PeerList{Addresses: []string{"127.0.0.1:1234", "[::1]:1234"}}
	var got codec.PeerList
	require.NoError(t, got.Unpack(want.Pack()))
	require.Equal(t, want, got)
}

func TestPeerListRoundTripEmpty(t *testing.T) {
	want := codec.PeerList{}
	var got codec.PeerList
	require.NoError(t, got.Unpack(want.Pack()))
	require.Empty(t, got.Addresses)
}

func TestHeightRoundTrip(t *testing.T) {
	want := codec.Height{Height: 123456}
	var got codec.Height
	require.NoError(t, got.Unpack(want.Pack()))
	require.Equal(t, want, got)
}

func TestChainStateRoundTrip(t *testing.T) {
	want := codec.ChainStateMessage{
		Tip:                  merkle.NewDigest([]byte("tip")),
		Height:               42,
		CumulativeDifficulty: big.NewInt(123456789),
	}
	var got codec.ChainStateMessage
	require.NoError(t, got.Unpack(want.Pack()))
	require.Equal(t, want.Tip, got.Tip)
	require.Equal(t, want.Height, got.Height)
	require.Zero(t, want.CumulativeDifficulty.Cmp(got.CumulativeDifficulty))
}

func TestHeaderHashesRoundTrip(t *testing.T) {
	want := codec.HeaderHashesMessage{
		StartHeight: 10,
		Hashes: []merkle.Digest{
			merkle.NewDigest([]byte("a")),
			merkle.NewDigest([]byte("b")),
			merkle.NewDigest([]byte("c")),
		},
	}
	var got codec.HeaderHashesMessage
	require.NoError(t, got.Unpack(want.Pack()))
	require.Equal(t, want, got)
}

func TestAckRoundTrip(t *testing.T) {
	want := codec.AckMessage{ByteCount: 9999999}
	var got codec.AckMessage
	require.NoError(t, got.Unpack(want.Pack()))
	require.Equal(t, want, got)
}

func TestFetchBlockRoundTrip(t *testing.T) {
	want := codec.FetchBlockMessage{Height: 7}
	var got codec.FetchBlockMessage
	require.NoError(t, got.Unpack(want.Pack()))
	require.Equal(t, want, got)
}

func TestUnpackRejectsTruncatedBuffers(t *testing.T) {
	var v codec.Version
	require.Error(t, v.Unpack(nil))

	var pl codec.PeerList
	require.Error(t, pl.Unpack([]byte{5})) // claims 5 entries, none present

	var hh codec.HeaderHashesMessage
	require.Error(t, hh.Unpack([]byte{0, 1})) // claims 1 hash, no bytes for it
}
