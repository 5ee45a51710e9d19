// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockheader_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bitmark-inc/latticed/blockheader"
	"github.com/bitmark-inc/latticed/merkle"
)

func sampleHeader() blockheader.Header {
	return blockheader.Header{
		Version:       blockheader.Version,
		PreviousBlock: merkle.NewDigest([]byte("previous")),
		MerkleRoot:    merkle.NewDigest([]byte("merkle")),
		BlockNumber:   42,
		Timestamp:     1700000000,
		Bits:          0x1d00ffff,
		Nonce:         123456789,
		ExtraNonce:    987654321,
		Reward:        5000000000,
		FeeSum:        12345,
	}
}

func TestHeaderRoundTrip(t *testing.T) {
	header := sampleHeader()
	packed := header.Pack()
	require.Len(t, packed, blockheader.TotalBlockSize)

	var decoded blockheader.Header
	err := packed.Unpack(&decoded)
	require.NoError(t, err)
	require.Equal(t, header, decoded)
}

func TestHeaderUnpackMalformed(t *testing.T) {
	var decoded blockheader.Header
	err := blockheader.PackedHeader([]byte{1, 2, 3}).Unpack(&decoded)
	require.Error(t, err)
}

func TestHeaderDigestChangesWithNonce(t *testing.T) {
	header := sampleHeader()
	d1 := header.Digest()
	header.Nonce++
	d2 := header.Digest()
	require.NotEqual(t, d1, d2)
}
