// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package genesis - the hardcoded genesis block and pre-declared
// opening balances for each network
//
// Unlike every later block, the genesis block is not mined: its nonce
// and bits are fixed by convention and package chain's genesis
// bootstrap stores it without a CheckPoW call. Its coinbase transaction records the total
// of the pre-declared allocations for audit purposes; the allocations
// themselves are credited directly to their named addresses by
// state.Genesis, not by replaying the coinbase as an ordinary
// transaction (there is, deliberately, only one recipient a coinbase
// can name).
package genesis

import (
	"github.com/bitmark-inc/latticed/account"
	"github.com/bitmark-inc/latticed/block"
	"github.com/bitmark-inc/latticed/blockheader"
	"github.com/bitmark-inc/latticed/difficulty"
	"github.com/bitmark-inc/latticed/fault"
	"github.com/bitmark-inc/latticed/merkle"
	"github.com/bitmark-inc/latticed/transactionrecord"
)

// Allocation - a single pre-declared opening balance
type Allocation struct {
	Address account.Address
	Amount  uint64
}

// Genesis - the genesis block plus the allocations it accounts for
type Genesis struct {
	Block       *block.Block
	Allocations []Allocation
}

// treasuryAddress - a fixed, unspendable address used only as the
// genesis coinbase's nominal recipient; no private key corresponds to
// it, so nothing can ever move funds out of it directly
func treasuryAddress(version byte, label string) account.Address {
	digest := merkle.NewDigest([]byte(label))
	return account.AddressOf(version, digest[:])
}

func totalOf(allocations []Allocation) uint64 {
	var total uint64
	for _, a := range allocations {
		total += a.Amount
	}
	return total
}

// minimumBits - the lowest (easiest) difficulty SetBits accepts, used
// as the starting point for networks that need fast local iteration
// rather than the production difficulty-1 default
const minimumBits = 0x207fffff

func build(version byte, label string, timestamp uint64, bits uint32, allocations []Allocation) *Genesis {
	total := totalOf(allocations)

	coinbase := &transactionrecord.Coinbase{
		Envelope:  transactionrecord.Envelope{MasterAddress: treasuryAddress(version, label)},
		Recipient: treasuryAddress(version, label),
		Amount:    total,
	}
	packed, err := coinbase.Pack()
	fault.PanicIfError("genesis.build - coinbase", err)

	blk := &block.Block{Transactions: []transactionrecord.Packed{packed}}

	d := difficulty.New()
	d.SetBits(bits)

	blk.Header = blockheader.Header{
		Version:       blockheader.Version,
		PreviousBlock: merkle.Digest{}, // no parent
		MerkleRoot:    blk.MerkleRoot(),
		BlockNumber:   0,
		Timestamp:     timestamp,
		Bits:          d.Bits(),
		Nonce:         0,
		ExtraNonce:    0,
		Reward:        total,
		FeeSum:        0,
	}

	return &Genesis{Block: blk, Allocations: allocations}
}

// Mainnet - the production network's genesis block, starting at the
// real difficulty-1 target
func Mainnet() *Genesis {
	return build(account.VersionMainnet, "latticed genesis: mainnet", 1_700_000_000, difficulty.DefaultUint32, nil)
}

// Testnet - the public test network's genesis block, with a faucet
// allocation for exercising the node without mining from zero and an
// easy starting difficulty so public testing doesn't need real hash power
func Testnet() *Genesis {
	faucet := treasuryAddress(account.VersionTestnet, "latticed genesis: testnet faucet")
	return build(account.VersionTestnet, "latticed genesis: testnet", 1_700_000_000, minimumBits, []Allocation{
		{Address: faucet, Amount: 1_000_000_00000000},
	})
}

// Dev - the local development network's genesis block, heavily funded
// and at the easiest legal difficulty for fast iteration
func Dev() *Genesis {
	faucet := treasuryAddress(account.VersionDev, "latticed genesis: dev faucet")
	return build(account.VersionDev, "latticed genesis: dev", 1_700_000_000, minimumBits, []Allocation{
		{Address: faucet, Amount: 100_000_000_00000000},
	})
}

// For - look up a network's genesis by name, as read from configuration
func For(networkType string) (*Genesis, error) {
	switch networkType {
	case "mainnet":
		return Mainnet(), nil
	case "testnet":
		return Testnet(), nil
	case "dev":
		return Dev(), nil
	default:
		return nil, fault.ErrInvalidChain
	}
}
