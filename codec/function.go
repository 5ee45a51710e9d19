// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package codec - the P2P wire envelope: function codes and the small
// set of control-message structures carried alongside them
//
// Every envelope is a function code frame followed by zero or more
// payload frames; block, header and transaction payloads are already
// packed by block/blockheader/transactionrecord, so this package only
// defines the handful of structures (Version, PeerList, Height,
// SyncRequest, ChainStateMessage, HeaderHashesMessage, AckMessage,
// FetchBlockMessage) those packages don't already cover, following the same length-prefixed/fixed-width packing
// idiom chain/meta.go and state use via util.ToVarint64.
package codec

// FunctionCode - the token carried in the first frame of every envelope
type FunctionCode string

const (
	VersionCode  FunctionCode = "VE"
	PeerListCode FunctionCode = "PL"
	Pong         FunctionCode = "PONG"
	HaveHash     FunctionCode = "MR"
	SendFull     FunctionCode = "SFM"
	Block        FunctionCode = "BK"
	FetchBlock   FunctionCode = "FB"
	PushBlock    FunctionCode = "PB"
	BlockHeight  FunctionCode = "BH"
	Sync         FunctionCode = "SYNC"
	ChainState   FunctionCode = "CHAINSTATE"
	HeaderHashes FunctionCode = "HEADERHASHES"
	Ack          FunctionCode = "P2P_ACK"

	Transfer       FunctionCode = "TX"
	Message        FunctionCode = "MT"
	TokenCreate    FunctionCode = "TK"
	TokenTransfer  FunctionCode = "TT"
	Slave          FunctionCode = "SL"
	MultiSigCreate FunctionCode = "MC"
	MultiSigSpend  FunctionCode = "MS"
	MultiSigVote   FunctionCode = "MV"
	ReservedLT     FunctionCode = "LT" // reserved; no transactionrecord tag currently maps to it
)

// TransactionFunctionCodes - the set of typed-transaction message
// codes, one per transactionrecord.TagType except Coinbase (a coinbase
// is only ever carried inside a block, never gossiped on its own)
var TransactionFunctionCodes = map[FunctionCode]bool{
	Transfer: true, Message: true, TokenCreate: true, TokenTransfer: true,
	Slave: true, MultiSigCreate: true, MultiSigSpend: true, MultiSigVote: true,
}
