// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package transactionrecord

import (
	"github.com/bitmark-inc/latticed/account"
	"github.com/bitmark-inc/latticed/fault"
	"github.com/bitmark-inc/latticed/merkle"
	"github.com/bitmark-inc/latticed/pqcrypto"
	"github.com/bitmark-inc/latticed/util"
)

// cursor - a tiny bounds-checked reader over a packed record
//
// every read panics on truncation; Unpack recovers the panic and turns
// it into fault.ErrMalformed, the same discipline the teacher's
// ClippedVarint64-based unpacker used, just centralised in one place
// instead of repeated at every field
type cursor struct {
	record []byte
	pos    int
}

func (c *cursor) varint() uint64 {
	value, n := util.FromVarint64(c.record[c.pos:])
	if 0 == n {
		panic(fault.ErrMalformed)
	}
	c.pos += n
	return value
}

func (c *cursor) byte() byte {
	if c.pos >= len(c.record) {
		panic(fault.ErrMalformed)
	}
	b := c.record[c.pos]
	c.pos++
	return b
}

func (c *cursor) bytes() []byte {
	n := c.varint()
	if n > uint64(len(c.record)-c.pos) {
		panic(fault.ErrMalformed)
	}
	b := make([]byte, n)
	copy(b, c.record[c.pos:c.pos+int(n)])
	c.pos += int(n)
	return b
}

func (c *cursor) str() string { return string(c.bytes()) }

func (c *cursor) address() account.Address {
	a, err := account.AddressFromBytes(c.bytes())
	if nil != err {
		panic(err)
	}
	return a
}

// digest - fixed width, no length prefix; matches the raw 32 bytes
// the pack side appends
func (c *cursor) digest() merkle.Digest {
	if c.pos+merkle.DigestLength > len(c.record) {
		panic(fault.ErrMalformed)
	}
	var d merkle.Digest
	copy(d[:], c.record[c.pos:c.pos+merkle.DigestLength])
	c.pos += merkle.DigestLength
	return d
}

func (c *cursor) publicKey() pqcrypto.PublicKey { return pqcrypto.PublicKey(c.bytes()) }
func (c *cursor) signature() account.Signature  { return account.Signature(c.bytes()) }

func (c *cursor) remaining() bool { return c.pos < len(c.record) }

func (c *cursor) envelope() Envelope {
	return Envelope{
		MasterAddress: c.address(),
		Fee:           c.varint(),
		PublicKey:     c.publicKey(),
		Nonce:         c.varint(),
	}
}

func (c *cursor) outputs() []Output {
	count := c.varint()
	if count == 0 || count > maxOutputs {
		panic(fault.ErrMalformed)
	}
	outputs := make([]Output, count)
	for i := range outputs {
		outputs[i] = Output{Recipient: c.address(), Amount: c.varint()}
	}
	return outputs
}

// Unpack - turn a packed record back into a concrete Transaction
//
// Note: the non-Coinbase variants leave envelope.Signature set from
// the trailing field; callers that need to re-verify build the
// unsigned form themselves via Pack after clearing it
func (record Packed) Unpack() (t Transaction, n int, e error) {
	defer func() {
		if r := recover(); nil != r {
			if err, ok := r.(error); ok {
				e = err
			} else {
				e = fault.ErrMalformed
			}
			t, n = nil, 0
		}
	}()

	c := &cursor{record: record}
	tag := TagType(c.varint())

	switch tag {

	case TransferTag:
		envelope := c.envelope()
		outputs := c.outputs()
		message := c.bytes()
		envelope.Signature = c.signature()
		return &Transfer{Envelope: envelope, Outputs: outputs, Message: message}, c.pos, nil

	case CoinbaseTag:
		master := c.address()
		recipient := c.address()
		amount := c.varint()
		return &Coinbase{
			Envelope:  Envelope{MasterAddress: master},
			Recipient: recipient,
			Amount:    amount,
		}, c.pos, nil

	case MessageTag:
		envelope := c.envelope()
		var recipient *account.Address
		if 1 == c.byte() {
			a := c.address()
			recipient = &a
		}
		payload := c.bytes()
		envelope.Signature = c.signature()
		return &Message{Envelope: envelope, Recipient: recipient, Payload: payload}, c.pos, nil

	case TokenCreateTag:
		envelope := c.envelope()
		symbol := c.str()
		name := c.str()
		owner := c.address()
		decimals := c.byte()
		balances := c.outputs()
		envelope.Signature = c.signature()
		return &TokenCreate{
			Envelope:        envelope,
			Symbol:          symbol,
			Name:            name,
			Owner:           owner,
			Decimals:        decimals,
			InitialBalances: balances,
		}, c.pos, nil

	case TokenTransferTag:
		envelope := c.envelope()
		tokenHash := c.digest()
		outputs := c.outputs()
		envelope.Signature = c.signature()
		return &TokenTransfer{Envelope: envelope, TokenCreateHash: tokenHash, Outputs: outputs}, c.pos, nil

	case SlaveTag:
		envelope := c.envelope()
		count := c.varint()
		if count == 0 || count > maxDelegates {
			panic(fault.ErrMalformed)
		}
		delegates := make([]DelegatedKey, count)
		for i := range delegates {
			delegates[i] = DelegatedKey{PublicKey: c.publicKey(), AccessType: c.byte()}
		}
		envelope.Signature = c.signature()
		return &Slave{Envelope: envelope, Delegates: delegates}, c.pos, nil

	case MultiSigCreateTag:
		envelope := c.envelope()
		count := c.varint()
		if count == 0 || count > maxSignatories {
			panic(fault.ErrMalformed)
		}
		signatories := make([]Signatory, count)
		for i := range signatories {
			signatories[i] = Signatory{Address: c.address(), Weight: uint16(c.varint())}
		}
		threshold := uint16(c.varint())
		envelope.Signature = c.signature()
		return &MultiSigCreate{Envelope: envelope, Signatories: signatories, Threshold: threshold}, c.pos, nil

	case MultiSigSpendTag:
		envelope := c.envelope()
		target := c.address()
		outputs := c.outputs()
		expiry := c.varint()
		envelope.Signature = c.signature()
		return &MultiSigSpend{Envelope: envelope, Target: target, Outputs: outputs, Expiry: expiry}, c.pos, nil

	case MultiSigVoteTag:
		envelope := c.envelope()
		spendHash := c.digest()
		vote := 1 == c.byte()
		envelope.Signature = c.signature()
		return &MultiSigVote{Envelope: envelope, SpendHash: spendHash, Vote: vote}, c.pos, nil

	default:
		return nil, 0, fault.ErrMalformed
	}
}
