// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package transactionrecord

import (
	"unicode/utf8"

	"github.com/bitmark-inc/latticed/fault"
	"github.com/bitmark-inc/latticed/util"
)

// append a length-prefixed byte slice
func appendBytes(buffer Packed, data []byte) Packed {
	buffer = append(buffer, util.ToVarint64(uint64(len(data)))...)
	return append(buffer, data...)
}

// append a length-prefixed string
func appendString(buffer Packed, s string) Packed {
	return appendBytes(buffer, []byte(s))
}

// append a bare Varint64
func appendUint64(buffer Packed, value uint64) Packed {
	return append(buffer, util.ToVarint64(value)...)
}

// appendEnvelopeUnsigned - pack the common fields, everything except the
// trailing signature which callers append once they know the full
// unsigned message
func appendEnvelopeUnsigned(buffer Packed, envelope *Envelope) Packed {
	buffer = appendBytes(buffer, envelope.MasterAddress.Bytes())
	buffer = appendUint64(buffer, envelope.Fee)
	buffer = appendBytes(buffer, envelope.PublicKey)
	buffer = appendUint64(buffer, envelope.Nonce)
	return buffer
}

func appendOutputs(buffer Packed, outputs []Output) (Packed, error) {
	if len(outputs) == 0 || len(outputs) > maxOutputs {
		return nil, fault.ErrMalformed
	}
	buffer = appendUint64(buffer, uint64(len(outputs)))
	for _, o := range outputs {
		buffer = appendBytes(buffer, o.Recipient.Bytes())
		buffer = appendUint64(buffer, o.Amount)
	}
	return buffer, nil
}

// Pack - Transfer: tag, envelope, outputs, message, signature
func (transfer *Transfer) Pack() (Packed, error) {
	if len(transfer.Outputs) == 0 || len(transfer.Outputs) > maxOutputs {
		return nil, fault.ErrMalformed
	}
	if len(transfer.Message) > maxMessageLength {
		return nil, fault.ErrMalformed
	}

	message := util.ToVarint64(uint64(TransferTag))
	message = appendEnvelopeUnsigned(message, &transfer.Envelope)
	message, err := appendOutputs(message, transfer.Outputs)
	if nil != err {
		return nil, err
	}
	message = appendBytes(message, transfer.Message)

	return signAndAppend(message, &transfer.Envelope)
}

// Pack - Coinbase: tag, master address, recipient, amount (no other
// envelope field and no signature)
//
// coinbase records are synthesized by the block producer and are never
// individually signed or gossiped; Fee/PublicKey/Signature/Nonce stay zero
func (coinbase *Coinbase) Pack() (Packed, error) {
	message := util.ToVarint64(uint64(CoinbaseTag))
	message = appendBytes(message, coinbase.MasterAddress.Bytes())
	message = appendBytes(message, coinbase.Recipient.Bytes())
	message = appendUint64(message, coinbase.Amount)
	return message, nil
}

// Pack - Message: tag, envelope, optional recipient, payload, signature
func (msg *Message) Pack() (Packed, error) {
	if len(msg.Payload) == 0 || len(msg.Payload) > maxMessageLength {
		return nil, fault.ErrMalformed
	}

	message := util.ToVarint64(uint64(MessageTag))
	message = appendEnvelopeUnsigned(message, &msg.Envelope)
	if nil == msg.Recipient {
		message = append(message, 0)
	} else {
		message = append(message, 1)
		message = appendBytes(message, msg.Recipient.Bytes())
	}
	message = appendBytes(message, msg.Payload)

	return signAndAppend(message, &msg.Envelope)
}

// Pack - TokenCreate: tag, envelope, symbol, name, owner, decimals,
// initial balances, signature
func (token *TokenCreate) Pack() (Packed, error) {
	if utf8.RuneCountInString(token.Symbol) == 0 || utf8.RuneCountInString(token.Symbol) > maxSymbolLength {
		return nil, fault.ErrMalformed
	}
	if utf8.RuneCountInString(token.Name) > maxTokenNameLength {
		return nil, fault.ErrMalformed
	}

	message := util.ToVarint64(uint64(TokenCreateTag))
	message = appendEnvelopeUnsigned(message, &token.Envelope)
	message = appendString(message, token.Symbol)
	message = appendString(message, token.Name)
	message = appendBytes(message, token.Owner.Bytes())
	message = append(message, token.Decimals)
	message, err := appendOutputs(message, token.InitialBalances)
	if nil != err {
		return nil, err
	}

	return signAndAppend(message, &token.Envelope)
}

// Pack - TokenTransfer: tag, envelope, token create hash, outputs, signature
func (transfer *TokenTransfer) Pack() (Packed, error) {
	message := util.ToVarint64(uint64(TokenTransferTag))
	message = appendEnvelopeUnsigned(message, &transfer.Envelope)
	message = append(message, transfer.TokenCreateHash[:]...)
	message, err := appendOutputs(message, transfer.Outputs)
	if nil != err {
		return nil, err
	}

	return signAndAppend(message, &transfer.Envelope)
}

// Pack - Slave: tag, envelope, delegated keys, signature
func (slave *Slave) Pack() (Packed, error) {
	if len(slave.Delegates) == 0 || len(slave.Delegates) > maxDelegates {
		return nil, fault.ErrMalformed
	}

	message := util.ToVarint64(uint64(SlaveTag))
	message = appendEnvelopeUnsigned(message, &slave.Envelope)
	message = appendUint64(message, uint64(len(slave.Delegates)))
	for _, d := range slave.Delegates {
		message = appendBytes(message, d.PublicKey)
		message = append(message, d.AccessType)
	}

	return signAndAppend(message, &slave.Envelope)
}

// Pack - MultiSigCreate: tag, envelope, signatories, threshold, signature
func (create *MultiSigCreate) Pack() (Packed, error) {
	if len(create.Signatories) == 0 || len(create.Signatories) > maxSignatories {
		return nil, fault.ErrMalformed
	}

	message := util.ToVarint64(uint64(MultiSigCreateTag))
	message = appendEnvelopeUnsigned(message, &create.Envelope)
	message = appendUint64(message, uint64(len(create.Signatories)))
	for _, s := range create.Signatories {
		message = appendBytes(message, s.Address.Bytes())
		message = appendUint64(message, uint64(s.Weight))
	}
	message = appendUint64(message, uint64(create.Threshold))

	return signAndAppend(message, &create.Envelope)
}

// Pack - MultiSigSpend: tag, envelope, target, outputs, expiry, signature
func (spend *MultiSigSpend) Pack() (Packed, error) {
	message := util.ToVarint64(uint64(MultiSigSpendTag))
	message = appendEnvelopeUnsigned(message, &spend.Envelope)
	message = appendBytes(message, spend.Target.Bytes())
	message, err := appendOutputs(message, spend.Outputs)
	if nil != err {
		return nil, err
	}
	message = appendUint64(message, spend.Expiry)

	return signAndAppend(message, &spend.Envelope)
}

// Pack - MultiSigVote: tag, envelope, spend hash, vote, signature
func (vote *MultiSigVote) Pack() (Packed, error) {
	message := util.ToVarint64(uint64(MultiSigVoteTag))
	message = appendEnvelopeUnsigned(message, &vote.Envelope)
	message = append(message, vote.SpendHash[:]...)
	if vote.Vote {
		message = append(message, 1)
	} else {
		message = append(message, 0)
	}

	return signAndAppend(message, &vote.Envelope)
}

// signAndAppend - append the envelope's signature field, if any
//
// Pack never computes a signature itself. Callers build the unsigned
// message (Signature left nil), pass it to pqcrypto.Sign, set
// envelope.Signature, then Pack again to get the final wire record.
// Verify (see verify.go) checks that the appended signature is valid.
func signAndAppend(message Packed, envelope *Envelope) (Packed, error) {
	if len(envelope.Signature) == 0 {
		return message, nil
	}
	return appendBytes(message, envelope.Signature), nil
}
