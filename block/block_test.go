// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package block_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bitmark-inc/latticed/account"
	"github.com/bitmark-inc/latticed/block"
	"github.com/bitmark-inc/latticed/blockheader"
	"github.com/bitmark-inc/latticed/difficulty"
	"github.com/bitmark-inc/latticed/merkle"
	"github.com/bitmark-inc/latticed/pqcrypto"
	"github.com/bitmark-inc/latticed/transactionrecord"
)

func TestSubsidyHalves(t *testing.T) {
	require.Equal(t, uint64(block.InitialSubsidy), block.Subsidy(0, block.InitialSubsidy, block.HalvingInterval))
	require.Equal(t, uint64(block.InitialSubsidy), block.Subsidy(block.HalvingInterval-1, block.InitialSubsidy, block.HalvingInterval))
	require.Equal(t, uint64(block.InitialSubsidy/2), block.Subsidy(block.HalvingInterval, block.InitialSubsidy, block.HalvingInterval))
	require.Equal(t, uint64(block.InitialSubsidy/4), block.Subsidy(2*block.HalvingInterval, block.InitialSubsidy, block.HalvingInterval))
	require.Equal(t, uint64(0), block.Subsidy(64*block.HalvingInterval, block.InitialSubsidy, block.HalvingInterval))
}

func buildMinedBlock(t *testing.T, blockNumber uint64, previous merkle.Digest, subsidy uint64) *block.Block {
	t.Helper()

	minerAddr := account.AddressOf(account.VersionTestnet, pqcrypto.PublicKey("miner"))
	coinbase := &transactionrecord.Coinbase{
		Envelope:  transactionrecord.Envelope{MasterAddress: minerAddr},
		Recipient: minerAddr,
		Amount:    subsidy,
	}
	packedCoinbase, err := coinbase.Pack()
	require.NoError(t, err)

	blk := &block.Block{Transactions: []transactionrecord.Packed{packedCoinbase}}

	d := difficulty.New()
	d.SetBits(0x207fffff)

	header := blockheader.Header{
		Version:       blockheader.Version,
		PreviousBlock: previous,
		MerkleRoot:    blk.MerkleRoot(),
		BlockNumber:   blockNumber,
		Timestamp:     uint64(time.Now().Unix()),
		Bits:          d.Bits(),
		Reward:        subsidy,
		FeeSum:        0,
	}

	// even the easiest legal difficulty (0x207fffff) is still a real
	// search, but about half of all header hashes fall under its target,
	// so looping over a few nonces finds a passing one quickly
	for nonce := uint64(0); nonce < 1<<20; nonce++ {
		header.Nonce = nonce
		if header.CheckPoW() {
			break
		}
	}

	blk.Header = header
	return blk
}

func TestBlockPackUnpackRoundTrip(t *testing.T) {
	blk := buildMinedBlock(t, 1, merkle.Digest{}, block.Subsidy(1, block.InitialSubsidy, block.HalvingInterval))

	packed, err := blk.Pack()
	require.NoError(t, err)

	decoded, err := block.Unpack(packed)
	require.NoError(t, err)
	require.Equal(t, blk.Header, decoded.Header)
	require.Equal(t, blk.Transactions, decoded.Transactions)
	require.Equal(t, blk.Digest(), decoded.Digest())
}

func TestBasicValidateAcceptsWellFormedBlock(t *testing.T) {
	subsidy := block.Subsidy(1, block.InitialSubsidy, block.HalvingInterval)
	blk := buildMinedBlock(t, 1, merkle.Digest{}, subsidy)

	require.NoError(t, blk.BasicValidate(0, merkle.Digest{}, subsidy))
}

func TestBasicValidateRejectsWrongHeight(t *testing.T) {
	subsidy := block.Subsidy(1, block.InitialSubsidy, block.HalvingInterval)
	blk := buildMinedBlock(t, 1, merkle.Digest{}, subsidy)

	err := blk.BasicValidate(5, merkle.Digest{}, subsidy)
	require.Error(t, err)
}

func TestBasicValidateRejectsBadCoinbaseAmount(t *testing.T) {
	subsidy := block.Subsidy(1, block.InitialSubsidy, block.HalvingInterval)
	blk := buildMinedBlock(t, 1, merkle.Digest{}, subsidy+1)

	err := blk.BasicValidate(0, merkle.Digest{}, subsidy)
	require.Error(t, err)
}

func TestUnpackRejectsTruncatedData(t *testing.T) {
	blk := buildMinedBlock(t, 1, merkle.Digest{}, block.Subsidy(1, block.InitialSubsidy, block.HalvingInterval))
	packed, err := blk.Pack()
	require.NoError(t, err)

	_, err = block.Unpack(packed[:len(packed)-3])
	require.Error(t, err)
}
