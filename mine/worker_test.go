// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bitmark-inc/latticed/block"
	"github.com/bitmark-inc/latticed/blockheader"
	"github.com/bitmark-inc/latticed/difficulty"
)

func easyBlock(t *testing.T) *block.Block {
	t.Helper()
	blk := &block.Block{}
	d := difficulty.New()
	d.SetBits(0x207fffff) // lowest legal difficulty, succeeds almost immediately
	blk.Header = blockheader.Header{
		Version: blockheader.Version,
		Bits:    d.Bits(),
	}
	return blk
}

func hardBlock(t *testing.T) *block.Block {
	t.Helper()
	blk := &block.Block{}
	d := difficulty.New()
	d.SetBits(difficulty.DefaultUint32) // production difficulty-1, never found within attemptsPerCheck
	blk.Header = blockheader.Header{
		Version: blockheader.Version,
		Bits:    d.Bits(),
	}
	return blk
}

func TestSearchFindsNonceAtEasyDifficulty(t *testing.T) {
	blk := easyBlock(t)
	shutdown := make(chan bool)

	found, ok := search(blk, 1, 0, 1, shutdown)
	require.True(t, ok)
	require.True(t, found)
	require.True(t, blk.Header.CheckPoW())
}

func TestSearchRespectsNonceSubrange(t *testing.T) {
	blk := easyBlock(t)
	shutdown := make(chan bool)

	found, ok := search(blk, 1, 3, 4, shutdown)
	require.True(t, ok)
	require.True(t, found)
	require.Equal(t, uint64(3), blk.Header.Nonce%4)
}

func TestSearchAbortsOnStaleSequence(t *testing.T) {
	blk := hardBlock(t)
	shutdown := make(chan bool)

	currentTemplate.Store(&Template{Sequence: 2})
	defer currentTemplate.Store((*Template)(nil))

	found, ok := search(blk, 1, 0, 1, shutdown)
	require.True(t, ok)
	require.False(t, found, "a mismatched sequence number must abort the search before exhausting nonces")
}

func TestSearchAbortsOnShutdown(t *testing.T) {
	blk := hardBlock(t)
	shutdown := make(chan bool)
	close(shutdown)

	currentTemplate.Store(&Template{Sequence: 1})
	defer currentTemplate.Store((*Template)(nil))

	found, ok := search(blk, 1, 0, 1, shutdown)
	require.False(t, ok)
	require.False(t, found)
}
