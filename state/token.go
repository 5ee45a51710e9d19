// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package state

import (
	"github.com/bitmark-inc/latticed/account"
	"github.com/bitmark-inc/latticed/fault"
	"github.com/bitmark-inc/latticed/merkle"
	"github.com/bitmark-inc/latticed/storage"
	"github.com/bitmark-inc/latticed/util"
)

// TokenMeta - the declared identity of a token, created once by a
// TokenCreate transaction and referenced afterwards by its creating
// transaction's hash
type TokenMeta struct {
	Symbol      string
	Name        string
	Owner       account.Address
	Decimals    uint8
	TotalSupply uint64
}

func (t *TokenMeta) pack() []byte {
	buffer := make([]byte, 0, 64)
	buffer = append(buffer, util.ToVarint64(uint64(len(t.Symbol)))...)
	buffer = append(buffer, t.Symbol...)
	buffer = append(buffer, util.ToVarint64(uint64(len(t.Name)))...)
	buffer = append(buffer, t.Name...)
	buffer = append(buffer, t.Owner.Bytes()...)
	buffer = append(buffer, t.Decimals)
	buffer = append(buffer, util.ToVarint64(t.TotalSupply)...)
	return buffer
}

func unpackTokenMeta(data []byte) *TokenMeta {
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

	symbolLen := readVarint()
	symbol := string(readBytes(int(symbolLen)))
	nameLen := readVarint()
	name := string(readBytes(int(nameLen)))
	owner, err := account.AddressFromBytes(readBytes(account.AddressLength))
	if nil != err {
		panic(err)
	}
	decimals := readBytes(1)[0]
	totalSupply := readVarint()

	return &TokenMeta{
		Symbol:      symbol,
		Name:        name,
		Owner:       owner,
		Decimals:    decimals,
		TotalSupply: totalSupply,
	}
}

func decodeTokenMeta(data []byte) (meta *TokenMeta, err error) {
	defer func() {
		if r := recover(); nil != r {
			meta, err = nil, fault.ErrStoreCorruption
		}
	}()
	return unpackTokenMeta(data), nil
}

// GetToken - look up a declared token by its creating transaction's hash
func GetToken(tokenHash merkle.Digest) (*TokenMeta, error) {
	raw := storage.Pool.Token.Get(tokenHash[:])
	if nil == raw {
		return nil, fault.ErrUnknownToken
	}
	return decodeTokenMeta(raw)
}
