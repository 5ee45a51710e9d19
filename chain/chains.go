// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chain

// names of the networks this node can run, generalized from the
// teacher's production/test/local split to mainnet/testnet/dev, the
// names genesis.For and configuration use
const (
	Mainnet = "mainnet"
	Testnet = "testnet"
	Dev     = "dev"
)

// Valid - validate a network name
func Valid(name string) bool {
	switch name {
	case Mainnet, Testnet, Dev:
		return true
	default:
		return false
	}
}
