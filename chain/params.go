// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chain

// Parameters - the consensus parameters that must be identical across
// every peer on a network
type Parameters struct {
	ReorgLimit          uint64
	RetargetWindow      uint64
	NMeasurement        uint64
	Kp                  float64
	BlockTimingSeconds  float64
	MaxAdjustmentFactor float64
	AllowedDriftSeconds uint64
	InitialSubsidy      uint64
	HalvingInterval     uint64
}

// DefaultParameters - the mainnet-shaped defaults; test networks may
// override RetargetWindow/ReorgLimit for faster iteration
func DefaultParameters() Parameters {
	return Parameters{
		ReorgLimit:          10_000,
		RetargetWindow:      2_016,
		NMeasurement:        2_016,
		Kp:                  1.0,
		BlockTimingSeconds:  60,
		MaxAdjustmentFactor: 4.0,
		AllowedDriftSeconds: 2 * 60 * 60,
		InitialSubsidy:      50_00000000,
		HalvingInterval:     210_000,
	}
}
