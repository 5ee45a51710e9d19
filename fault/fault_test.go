// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package fault_test

import (
	"testing"

	"github.com/bitmark-inc/latticed/fault"
)

var (
	ErrExistsOne      = fault.ExistsError("exists one")
	ErrInvalidOne      = fault.InvalidError("invalid one")
	ErrNotFoundOne     = fault.NotFoundError("not found one")
	ErrProcessOne      = fault.ProcessError("process one")
	ErrTransactionOne  = fault.TransactionError("transaction one")
	ErrConsensusOne    = fault.ConsensusError("consensus one")
	ErrFatalOne        = fault.FatalError("fatal one")
	ErrPeerOne         = fault.PeerError("peer one")
)

// test that the various error classes can be distinguished from one another
func TestErrorClasses(t *testing.T) {
	errorList := []struct {
		err         error
		exists      bool
		invalid     bool
		notFound    bool
		process     bool
		transaction bool
		consensus   bool
		fatal       bool
		peer        bool
	}{
		{ErrExistsOne, true, false, false, false, false, false, false, false},
		{ErrInvalidOne, false, true, false, false, false, false, false, false},
		{ErrNotFoundOne, false, false, true, false, false, false, false, false},
		{ErrProcessOne, false, false, false, true, false, false, false, false},
		{ErrTransactionOne, false, false, false, false, true, false, false, false},
		{ErrConsensusOne, false, false, false, false, false, true, false, false},
		{ErrFatalOne, false, false, false, false, false, false, true, false},
		{ErrPeerOne, false, false, false, false, false, false, false, true},
	}

	for i, e := range errorList {
		err := e.err
		if fault.IsErrExists(err) != e.exists {
			t.Errorf("%d: expected 'exists' == %v for err = %v", i, e.exists, err)
		}
		if fault.IsErrInvalid(err) != e.invalid {
			t.Errorf("%d: expected 'invalid' == %v for err = %v", i, e.invalid, err)
		}
		if fault.IsErrNotFound(err) != e.notFound {
			t.Errorf("%d: expected 'not found' == %v for err = %v", i, e.notFound, err)
		}
		if fault.IsErrProcess(err) != e.process {
			t.Errorf("%d: expected 'process' == %v for err = %v", i, e.process, err)
		}
		if fault.IsErrTransaction(err) != e.transaction {
			t.Errorf("%d: expected 'transaction' == %v for err = %v", i, e.transaction, err)
		}
		if fault.IsErrConsensus(err) != e.consensus {
			t.Errorf("%d: expected 'consensus' == %v for err = %v", i, e.consensus, err)
		}
		if fault.IsErrFatal(err) != e.fatal {
			t.Errorf("%d: expected 'fatal' == %v for err = %v", i, e.fatal, err)
		}
		if fault.IsErrPeer(err) != e.peer {
			t.Errorf("%d: expected 'peer' == %v for err = %v", i, e.peer, err)
		}
	}
}
