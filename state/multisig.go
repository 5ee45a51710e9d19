// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package state

import (
	"github.com/bitmark-inc/latticed/account"
	"github.com/bitmark-inc/latticed/fault"
	"github.com/bitmark-inc/latticed/merkle"
	"github.com/bitmark-inc/latticed/storage"
	"github.com/bitmark-inc/latticed/transactionrecord"
	"github.com/bitmark-inc/latticed/util"
)

// MultiSigMeta - the signatories/threshold declared once by a
// MultiSigCreate transaction, stored under the address that
// transaction's own hash derives (account.AddressOfMultiSig); the
// multi-sig account's Balance otherwise lives in the ordinary
// AccountState record at that same address, funded by plain Transfer
// transactions like any other account
type MultiSigMeta struct {
	CreationTxId merkle.Digest
	Signatories  []transactionrecord.Signatory
	Threshold    uint16
}

func (m *MultiSigMeta) pack() []byte {
	buffer := make([]byte, 0, 64)
	buffer = append(buffer, m.CreationTxId[:]...)
	buffer = append(buffer, util.ToVarint64(uint64(len(m.Signatories)))...)
	for _, s := range m.Signatories {
		buffer = append(buffer, s.Address.Bytes()...)
		buffer = append(buffer, util.ToVarint64(uint64(s.Weight))...)
	}
	buffer = append(buffer, util.ToVarint64(uint64(m.Threshold))...)
	return buffer
}

func unpackMultiSigMeta(data []byte) *MultiSigMeta {
	pos := 0
	readVarint := func() uint64 {
		v, n := util.FromVarint64(data[pos:])
		if 0 == n {
			panic(fault.ErrMalformed)
		}
		pos += n
		return v
	}
	readBytes := func(n int) []byte {
		if n < 0 || pos+n > len(data) {
			panic(fault.ErrMalformed)
		}
		b := data[pos : pos+n]
		pos += n
		return b
	}
	readDigest := func() merkle.Digest {
		var d merkle.Digest
		copy(d[:], readBytes(merkle.DigestLength))
		return d
	}
	readAddress := func() account.Address {
		a, err := account.AddressFromBytes(readBytes(account.AddressLength))
		if nil != err {
			panic(err)
		}
		return a
	}

	creationTxId := readDigest()
	count := readVarint()
	signatories := make([]transactionrecord.Signatory, count)
	for i := range signatories {
		signatories[i] = transactionrecord.Signatory{Address: readAddress(), Weight: uint16(readVarint())}
	}
	threshold := uint16(readVarint())

	return &MultiSigMeta{CreationTxId: creationTxId, Signatories: signatories, Threshold: threshold}
}

func decodeMultiSigMeta(data []byte) (meta *MultiSigMeta, err error) {
	defer func() {
		if r := recover(); nil != r {
			meta, err = nil, fault.ErrStoreCorruption
		}
	}()
	return unpackMultiSigMeta(data), nil
}

// weightOf - the voting weight address carries on this multi-sig
// account, 0 and false if addr is not one of its signatories
func (m *MultiSigMeta) weightOf(addr account.Address) (uint16, bool) {
	for _, s := range m.Signatories {
		if s.Address == addr {
			return s.Weight, true
		}
	}
	return 0, false
}

// GetMultiSig - look up a declared multi-sig account by its address
func GetMultiSig(addr account.Address) (*MultiSigMeta, error) {
	raw := storage.Pool.MultiSig.Get(addr.Bytes())
	if nil == raw {
		return nil, fault.ErrUnknownMultiSig
	}
	return decodeMultiSigMeta(raw)
}

// PendingSpend - a MultiSigSpend awaiting enough MultiSigVote weight
// to clear its target account's threshold; keyed by the spend
// transaction's own hash (MultiSigVote.SpendHash references it)
type PendingSpend struct {
	Target   account.Address
	Outputs  []transactionrecord.Output
	Expiry   uint64
	Votes    map[account.Address]bool // signatory -> vote (true = for)
	Executed bool
}

func (p *PendingSpend) pack() []byte {
	buffer := make([]byte, 0, 96)
	buffer = append(buffer, p.Target.Bytes()...)
	buffer = append(buffer, util.ToVarint64(uint64(len(p.Outputs)))...)
	for _, o := range p.Outputs {
		buffer = append(buffer, o.Recipient.Bytes()...)
		buffer = append(buffer, util.ToVarint64(o.Amount)...)
	}
	buffer = append(buffer, util.ToVarint64(p.Expiry)...)
	buffer = append(buffer, util.ToVarint64(uint64(len(p.Votes)))...)
	for addr, vote := range p.Votes {
		buffer = append(buffer, addr.Bytes()...)
		if vote {
			buffer = append(buffer, 1)
		} else {
			buffer = append(buffer, 0)
		}
	}
	if p.Executed {
		buffer = append(buffer, 1)
	} else {
		buffer = append(buffer, 0)
	}
	return buffer
}

func unpackPendingSpend(data []byte) *PendingSpend {
	pos := 0
	readVarint := func() uint64 {
		v, n := util.FromVarint64(data[pos:])
		if 0 == n {
			panic(fault.ErrMalformed)
		}
		pos += n
		return v
	}
	readBytes := func(n int) []byte {
		if n < 0 || pos+n > len(data) {
			panic(fault.ErrMalformed)
		}
		b := data[pos : pos+n]
		pos += n
		return b
	}
	readByte := func() byte {
		if pos >= len(data) {
			panic(fault.ErrMalformed)
		}
		b := data[pos]
		pos++
		return b
	}
	readAddress := func() account.Address {
		a, err := account.AddressFromBytes(readBytes(account.AddressLength))
		if nil != err {
			panic(err)
		}
		return a
	}

	target := readAddress()
	outCount := readVarint()
	outputs := make([]transactionrecord.Output, outCount)
	for i := range outputs {
		outputs[i] = transactionrecord.Output{Recipient: readAddress(), Amount: readVarint()}
	}
	expiry := readVarint()
	voteCount := readVarint()
	votes := make(map[account.Address]bool, voteCount)
	for i := uint64(0); i < voteCount; i++ {
		addr := readAddress()
		votes[addr] = 1 == readByte()
	}
	executed := 1 == readByte()

	return &PendingSpend{Target: target, Outputs: outputs, Expiry: expiry, Votes: votes, Executed: executed}
}

func decodePendingSpend(data []byte) (spend *PendingSpend, err error) {
	defer func() {
		if r := recover(); nil != r {
			spend, err = nil, fault.ErrStoreCorruption
		}
	}()
	return unpackPendingSpend(data), nil
}

// GetPendingSpend - look up a registered spend by its transaction hash
func GetPendingSpend(spendHash merkle.Digest) (*PendingSpend, error) {
	raw := storage.Pool.PendingSpend.Get(spendHash[:])
	if nil == raw {
		return nil, fault.ErrUnknownSpend
	}
	return decodePendingSpend(raw)
}

// tally - total weight of "for" votes cast so far, against meta's
// declared signatories (a vote from an address meta no longer lists,
// e.g. after a hypothetical re-create, carries no weight)
func tally(meta *MultiSigMeta, votes map[account.Address]bool) uint64 {
	var total uint64
	for addr, vote := range votes {
		if !vote {
			continue
		}
		if weight, ok := meta.weightOf(addr); ok {
			total += uint64(weight)
		}
	}
	return total
}
