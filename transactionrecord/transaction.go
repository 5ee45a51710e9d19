// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package transactionrecord - the transaction taxonomy and its
// canonical, deterministic wire/storage encoding
//
// Every record is a Varint64 tag followed by its fields in struct
// order, signature last. The tag discriminates the variant on unpack;
// OBSOLETE tags (none yet, but the slot is reserved) must stay decodable
// forever because older blocks still reference them.
package transactionrecord

import (
	"encoding/hex"

	"github.com/bitmark-inc/latticed/account"
	"github.com/bitmark-inc/latticed/merkle"
	"github.com/bitmark-inc/latticed/pqcrypto"
	"github.com/bitmark-inc/latticed/util"
)

// TagType - type code for a transaction record, encoded as a Varint64
// at the start of Packed
type TagType uint64

const (
	// null marks the beginning of the list, never used as a record type
	NullTag = TagType(iota)

	TransferTag
	CoinbaseTag
	MessageTag
	TokenCreateTag
	TokenTransferTag
	SlaveTag
	MultiSigCreateTag
	MultiSigSpendTag
	MultiSigVoteTag

	// this item must be last
	InvalidTag
)

// field size limits
const (
	maxSymbolLength   = 12
	maxTokenNameLength = 64
	maxMessageLength  = 2048
	maxOutputs        = 256
	maxDelegates      = 32
	maxSignatories    = 32
)

// Packed - a packed record is just a byte slice
type Packed []byte

// Transaction - generic interface implemented by every variant
type Transaction interface {
	Pack() (Packed, error)
	Tag() TagType
	GetEnvelope() *Envelope
}

// Envelope - fields common to every transaction variant
//
// PublicKey and Signature are zero-length for Coinbase, which is
// synthesized by the block producer rather than signed by an account
type Envelope struct {
	MasterAddress account.Address    `json:"master_address"`
	Fee           uint64             `json:"fee,string"`
	PublicKey     pqcrypto.PublicKey `json:"public_key"`
	Signature     account.Signature  `json:"signature"`
	Nonce         uint64             `json:"nonce,string"`
}

// GetEnvelope - every variant embeds Envelope by value; this helper
// lets callers reach it through the Transaction interface
func (envelope *Envelope) GetEnvelope() *Envelope { return envelope }

// Output - a single (recipient, amount) pair used by several variants
type Output struct {
	Recipient account.Address `json:"recipient"`
	Amount    uint64          `json:"amount,string"`
}

// DelegatedKey - a public key delegated by a Slave record, with the
// scope of actions it may sign for
type DelegatedKey struct {
	PublicKey  pqcrypto.PublicKey `json:"public_key"`
	AccessType uint8              `json:"access_type"`
}

// access type flags for DelegatedKey
const (
	AccessTransfer = uint8(1 << iota)
	AccessMessage
	AccessToken
)

// Signatory - one signer of a multi-signature account, with its
// relative weight toward the threshold
type Signatory struct {
	Address account.Address `json:"address"`
	Weight  uint16          `json:"weight"`
}

// Transfer - ordered outputs plus an optional opaque message
type Transfer struct {
	Envelope
	Outputs []Output `json:"outputs"`
	Message []byte   `json:"message,omitempty"`
}

// Coinbase - first transaction of a block, pays the miner subsidy plus fees
type Coinbase struct {
	Envelope
	Recipient account.Address `json:"recipient"`
	Amount    uint64          `json:"amount,string"`
}

// Message - opaque payload, optionally addressed to a recipient
type Message struct {
	Envelope
	Recipient *account.Address `json:"recipient,omitempty"`
	Payload   []byte           `json:"payload"`
}

// TokenCreate - declares a new fungible token and its initial distribution
type TokenCreate struct {
	Envelope
	Symbol          string          `json:"symbol"`
	Name            string          `json:"name"`
	Owner           account.Address `json:"owner"`
	Decimals        uint8           `json:"decimals"`
	InitialBalances []Output        `json:"initial_balances"`
}

// TokenTransfer - moves a declared token between accounts
type TokenTransfer struct {
	Envelope
	TokenCreateHash merkle.Digest `json:"token_create_hash"`
	Outputs         []Output      `json:"outputs"`
}

// Slave - delegates signing authority for MasterAddress to other keys
type Slave struct {
	Envelope
	Delegates []DelegatedKey `json:"delegates"`
}

// MultiSigCreate - declares a multi-signature account
type MultiSigCreate struct {
	Envelope
	Signatories []Signatory `json:"signatories"`
	Threshold   uint16      `json:"threshold"`
}

// MultiSigSpend - a proposed spend from a multi-signature account,
// pending enough MultiSigVote weight to clear Threshold
type MultiSigSpend struct {
	Envelope
	Target  account.Address `json:"target"`
	Outputs []Output        `json:"outputs"`
	Expiry  uint64          `json:"expiry"` // block number after which the spend lapses
}

// MultiSigVote - a signatory's vote for or against a pending spend
type MultiSigVote struct {
	Envelope
	SpendHash merkle.Digest `json:"spend_hash"`
	Vote      bool          `json:"vote"`
}

// Tag - the record tag for each variant
func (t *Transfer) Tag() TagType       { return TransferTag }
func (t *Coinbase) Tag() TagType       { return CoinbaseTag }
func (t *Message) Tag() TagType        { return MessageTag }
func (t *TokenCreate) Tag() TagType    { return TokenCreateTag }
func (t *TokenTransfer) Tag() TagType  { return TokenTransferTag }
func (t *Slave) Tag() TagType          { return SlaveTag }
func (t *MultiSigCreate) Tag() TagType { return MultiSigCreateTag }
func (t *MultiSigSpend) Tag() TagType  { return MultiSigSpendTag }
func (t *MultiSigVote) Tag() TagType   { return MultiSigVoteTag }

// RecordName - the name of a transaction record, for logging and RPC display
func RecordName(record interface{}) (string, bool) {
	switch record.(type) {
	case *Transfer, Transfer:
		return "Transfer", true
	case *Coinbase, Coinbase:
		return "Coinbase", true
	case *Message, Message:
		return "Message", true
	case *TokenCreate, TokenCreate:
		return "TokenCreate", true
	case *TokenTransfer, TokenTransfer:
		return "TokenTransfer", true
	case *Slave, Slave:
		return "Slave", true
	case *MultiSigCreate, MultiSigCreate:
		return "MultiSigCreate", true
	case *MultiSigSpend, MultiSigSpend:
		return "MultiSigSpend", true
	case *MultiSigVote, MultiSigVote:
		return "MultiSigVote", true
	default:
		return "*unknown*", false
	}
}

// Type - the tag of a packed record, without fully unpacking it
func (record Packed) Type() TagType {
	recordType, n := util.FromVarint64(record)
	if 0 == n {
		return NullTag
	}
	return TagType(recordType)
}

// TxId - content hash of a packed record, used as its identifier
// everywhere else in the system references a transaction (mempool
// index, TokenTransfer.TokenCreateHash, MultiSigVote.SpendHash, block
// merkle leaves)
func (record Packed) TxId() merkle.Digest {
	return merkle.NewDigest(record)
}

// MarshalText - hex form, for JSON/log output
func (record Packed) MarshalText() ([]byte, error) {
	b := make([]byte, hex.EncodedLen(len(record)))
	hex.Encode(b, record)
	return b, nil
}

// UnmarshalText - parse the hex form
func (record *Packed) UnmarshalText(s []byte) error {
	b := make([]byte, hex.DecodedLen(len(s)))
	n, err := hex.Decode(b, s)
	if nil != err {
		return err
	}
	*record = b[:n]
	return nil
}
