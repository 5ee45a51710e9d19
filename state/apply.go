// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package state

import (
	"github.com/bitmark-inc/latticed/account"
	"github.com/bitmark-inc/latticed/block"
	"github.com/bitmark-inc/latticed/fault"
	"github.com/bitmark-inc/latticed/merkle"
	"github.com/bitmark-inc/latticed/storage"
	"github.com/bitmark-inc/latticed/transactionrecord"
)

// applier - the in-memory overlay used while a single block is being
// applied; nothing it touches reaches storage until Commit, so a
// failed ApplyTransaction simply discards the applier and leaves
// storage untouched — this is what makes ApplyBlock all-or-nothing
// without needing a separate undo path for the failure case
type applier struct {
	accounts      map[account.Address]*AccountState
	tokens        map[merkle.Digest]*TokenMeta
	multiSigs     map[account.Address]*MultiSigMeta
	pendingSpends map[merkle.Digest]*PendingSpend
	written       []writeSetEntry
	seen          map[string]bool
}

func newApplier() *applier {
	return &applier{
		accounts:      make(map[account.Address]*AccountState),
		tokens:        make(map[merkle.Digest]*TokenMeta),
		multiSigs:     make(map[account.Address]*MultiSigMeta),
		pendingSpends: make(map[merkle.Digest]*PendingSpend),
		seen:          make(map[string]bool),
	}
}

func writeSetKey(prefix byte, key []byte) string {
	return string(append([]byte{prefix}, key...))
}

// recordOriginal - capture the pre-block value of a storage key the
// first time this block touches it; later touches within the same
// block are no-ops here, which is what makes the write set invert
// the whole block rather than just its last write to each key
func (ap *applier) recordOriginal(prefix byte, key []byte, priorValue []byte) {
	k := writeSetKey(prefix, key)
	if ap.seen[k] {
		return
	}
	ap.seen[k] = true
	ap.written = append(ap.written, writeSetEntry{Prefix: prefix, Key: append([]byte(nil), key...), PriorValue: priorValue})
}

// account - the overlay's working copy for addr, loading and
// recording its original value from storage on first touch
func (ap *applier) account(addr account.Address) *AccountState {
	if acc, ok := ap.accounts[addr]; ok {
		return acc
	}
	raw := storage.Pool.Account.Get(addr.Bytes())
	ap.recordOriginal(storage.PrefixAccount, addr.Bytes(), raw)

	var acc *AccountState
	if nil == raw {
		acc = zeroAccount()
	} else {
		decoded, err := decodeAccount(raw)
		if nil != err {
			decoded = zeroAccount()
		}
		acc = decoded
	}
	ap.accounts[addr] = acc
	return acc
}

func (ap *applier) token(tokenHash merkle.Digest) (*TokenMeta, bool) {
	if t, ok := ap.tokens[tokenHash]; ok {
		return t, true
	}
	raw := storage.Pool.Token.Get(tokenHash[:])
	ap.recordOriginal(storage.PrefixToken, tokenHash[:], raw)
	if nil == raw {
		return nil, false
	}
	meta, err := decodeTokenMeta(raw)
	if nil != err {
		return nil, false
	}
	ap.tokens[tokenHash] = meta
	return meta, true
}

func (ap *applier) putToken(tokenHash merkle.Digest, meta *TokenMeta) {
	ap.tokens[tokenHash] = meta
}

func (ap *applier) multiSig(addr account.Address) (*MultiSigMeta, bool) {
	if m, ok := ap.multiSigs[addr]; ok {
		return m, true
	}
	raw := storage.Pool.MultiSig.Get(addr.Bytes())
	ap.recordOriginal(storage.PrefixMultiSig, addr.Bytes(), raw)
	if nil == raw {
		return nil, false
	}
	meta, err := decodeMultiSigMeta(raw)
	if nil != err {
		return nil, false
	}
	ap.multiSigs[addr] = meta
	return meta, true
}

func (ap *applier) putMultiSig(addr account.Address, meta *MultiSigMeta) {
	ap.multiSigs[addr] = meta
}

func (ap *applier) pendingSpend(spendHash merkle.Digest) (*PendingSpend, bool) {
	if p, ok := ap.pendingSpends[spendHash]; ok {
		return p, true
	}
	raw := storage.Pool.PendingSpend.Get(spendHash[:])
	ap.recordOriginal(storage.PrefixPendingSpend, spendHash[:], raw)
	if nil == raw {
		return nil, false
	}
	spend, err := decodePendingSpend(raw)
	if nil != err {
		return nil, false
	}
	ap.pendingSpends[spendHash] = spend
	return spend, true
}

func (ap *applier) putPendingSpend(spendHash merkle.Digest, spend *PendingSpend) {
	ap.pendingSpends[spendHash] = spend
}

// commit - write every touched account/token and the block's write
// set into a single atomic batch
func (ap *applier) commit(headerHash merkle.Digest) error {
	batch := storage.NewBatch()
	for addr, acc := range ap.accounts {
		batch.Put(storage.Pool.Account, addr.Bytes(), acc.pack())
	}
	for tokenHash, meta := range ap.tokens {
		batch.Put(storage.Pool.Token, tokenHash[:], meta.pack())
	}
	for addr, meta := range ap.multiSigs {
		batch.Put(storage.Pool.MultiSig, addr.Bytes(), meta.pack())
	}
	for spendHash, spend := range ap.pendingSpends {
		batch.Put(storage.Pool.PendingSpend, spendHash[:], spend.pack())
	}
	putWriteSet(batch, headerHash, ap.written)
	return batch.Commit()
}

// ApplyBlock - apply_block: coinbase then transactions in order, as
// a single atomic unit. On any failure no mutation reaches storage.
func ApplyBlock(blk *block.Block) error {
	if 0 == len(blk.Transactions) {
		return fault.ErrMalformed
	}

	ap := newApplier()

	coinbase, err := blk.Coinbase()
	if nil != err {
		return err
	}
	applyCoinbase(ap, coinbase)

	for i := 1; i < len(blk.Transactions); i++ {
		tx, _, err := blk.Transactions[i].Unpack()
		if nil != err {
			return err
		}
		if err := applyTransaction(ap, tx, blk.Header.BlockNumber); nil != err {
			return err
		}
	}

	return ap.commit(blk.Header.Digest())
}

func applyCoinbase(ap *applier, coinbase *transactionrecord.Coinbase) {
	recipient := ap.account(coinbase.Recipient)
	recipient.Balance += coinbase.Amount
}

// applyTransaction - authority, signature, used-key and nonce checks
// followed by the type-specific balance validation and mutation
func applyTransaction(ap *applier, tx transactionrecord.Transaction, blockNumber uint64) error {
	envelope := tx.GetEnvelope()

	signer := ap.account(envelope.MasterAddress)

	// 1: signer's public key hashes to master_address, or is a
	// registered delegate with sufficient access for this tx type
	isMaster := envelope.MasterAddress == account.AddressOf(envelope.MasterAddress.Version(), envelope.PublicKey)
	if !isMaster {
		requiredAccess, delegatable := requiredAccessFor(tx)
		if !delegatable {
			return fault.ErrNotASlave
		}
		delegate, found := signer.delegateFor(envelope.PublicKey)
		if !found || 0 == delegate.AccessType&requiredAccess {
			return fault.ErrNotASlave
		}
	}

	// 2: signature verifies over the canonical unsigned bytes
	if err := transactionrecord.Verify(tx); nil != err {
		return err
	}

	// 3: the signing key has never been used before, by this address
	if signer.HasUsedKey(envelope.PublicKey) {
		return fault.ErrReusedSigningKey
	}

	// nonce must be exactly the next expected value for this account
	if envelope.Nonce != signer.Nonce {
		return fault.ErrNonceGap
	}

	// 4 & 5: balance and type-specific rules, then apply
	if err := stateValidateAndApply(ap, tx, blockNumber); nil != err {
		return err
	}

	signer.markKeyUsed(envelope.PublicKey)
	signer.Nonce++
	return nil
}

// ValidateTransaction - run a transaction through the same checks
// apply_block uses, against an overlay that is never committed. Used
// by the pending-transaction pool to admission-check a transaction
// without ever mutating real storage.
func ValidateTransaction(tx transactionrecord.Transaction, blockNumber uint64) error {
	return applyTransaction(newApplier(), tx, blockNumber)
}

// requiredAccessFor - the Slave access-type flag a delegated key must
// carry to sign this transaction type on the master's behalf
func requiredAccessFor(tx transactionrecord.Transaction) (uint8, bool) {
	switch tx.(type) {
	case *transactionrecord.Transfer, *transactionrecord.MultiSigSpend, *transactionrecord.MultiSigVote:
		return transactionrecord.AccessTransfer, true
	case *transactionrecord.Message:
		return transactionrecord.AccessMessage, true
	case *transactionrecord.TokenCreate, *transactionrecord.TokenTransfer:
		return transactionrecord.AccessToken, true
	case *transactionrecord.Slave, *transactionrecord.MultiSigCreate:
		return 0, false // delegation cannot re-delegate or create new multi-sig accounts
	default:
		return 0, false
	}
}

func stateValidateAndApply(ap *applier, tx transactionrecord.Transaction, blockNumber uint64) error {
	switch t := tx.(type) {

	case *transactionrecord.Transfer:
		return applyOutputs(ap, t.MasterAddress, t.Fee, t.Outputs)

	case *transactionrecord.Message:
		signer := ap.account(t.MasterAddress)
		if signer.Balance < t.Fee {
			return fault.ErrInsufficientBalance
		}
		signer.Balance -= t.Fee
		return nil

	case *transactionrecord.TokenCreate:
		tokenHash := mustTxId(t)
		if _, exists := ap.token(tokenHash); exists {
			return fault.ErrInvalidTransaction
		}
		signer := ap.account(t.MasterAddress)
		if signer.Balance < t.Fee {
			return fault.ErrInsufficientBalance
		}
		signer.Balance -= t.Fee

		var total uint64
		for _, out := range t.InitialBalances {
			if total+out.Amount < total {
				return fault.ErrInvalidTransaction
			}
			total += out.Amount
			recipient := ap.account(out.Recipient)
			recipient.TokenBalances[tokenHash] += out.Amount
		}
		ap.putToken(tokenHash, &TokenMeta{
			Symbol:      t.Symbol,
			Name:        t.Name,
			Owner:       t.Owner,
			Decimals:    t.Decimals,
			TotalSupply: total,
		})
		return nil

	case *transactionrecord.TokenTransfer:
		if _, exists := ap.token(t.TokenCreateHash); !exists {
			return fault.ErrUnknownToken
		}
		signer := ap.account(t.MasterAddress)
		if signer.Balance < t.Fee {
			return fault.ErrInsufficientBalance
		}
		var total uint64
		for _, out := range t.Outputs {
			if total+out.Amount < total {
				return fault.ErrInvalidTransaction
			}
			total += out.Amount
		}
		if signer.TokenBalances[t.TokenCreateHash] < total {
			return fault.ErrInsufficientBalance
		}
		signer.Balance -= t.Fee
		signer.TokenBalances[t.TokenCreateHash] -= total
		for _, out := range t.Outputs {
			recipient := ap.account(out.Recipient)
			recipient.TokenBalances[t.TokenCreateHash] += out.Amount
		}
		return nil

	case *transactionrecord.Slave:
		signer := ap.account(t.MasterAddress)
		if signer.Balance < t.Fee {
			return fault.ErrInsufficientBalance
		}
		signer.Balance -= t.Fee
		signer.Delegates = append(append([]transactionrecord.DelegatedKey(nil), signer.Delegates...), t.Delegates...)
		return nil

	case *transactionrecord.MultiSigCreate:
		if 0 == len(t.Signatories) || 0 == t.Threshold {
			return fault.ErrInvalidTransaction
		}
		var totalWeight uint64
		for _, s := range t.Signatories {
			totalWeight += uint64(s.Weight)
		}
		if uint64(t.Threshold) > totalWeight {
			// no combination of votes could ever clear the threshold
			return fault.ErrThresholdNotMet
		}

		createId := mustTxId(t)
		msAddr := account.AddressOfMultiSig(t.MasterAddress.Version(), createId)
		if _, exists := ap.multiSig(msAddr); exists {
			return fault.ErrInvalidTransaction
		}

		signer := ap.account(t.MasterAddress)
		if signer.Balance < t.Fee {
			return fault.ErrInsufficientBalance
		}
		signer.Balance -= t.Fee

		ap.putMultiSig(msAddr, &MultiSigMeta{
			CreationTxId: createId,
			Signatories:  t.Signatories,
			Threshold:    t.Threshold,
		})
		return nil

	case *transactionrecord.MultiSigSpend:
		if t.Expiry <= blockNumber {
			return fault.ErrExpired
		}
		meta, exists := ap.multiSig(t.Target)
		if !exists {
			return fault.ErrUnknownMultiSig
		}
		if _, ok := meta.weightOf(t.MasterAddress); !ok {
			return fault.ErrNotASignatory
		}

		spendId := mustTxId(t)
		if _, already := ap.pendingSpend(spendId); already {
			return fault.ErrInvalidTransaction
		}

		signer := ap.account(t.MasterAddress)
		if signer.Balance < t.Fee {
			return fault.ErrInsufficientBalance
		}
		signer.Balance -= t.Fee

		ap.putPendingSpend(spendId, &PendingSpend{
			Target:  t.Target,
			Outputs: t.Outputs,
			Expiry:  t.Expiry,
			Votes:   make(map[account.Address]bool),
		})
		return nil

	case *transactionrecord.MultiSigVote:
		spend, exists := ap.pendingSpend(t.SpendHash)
		if !exists {
			return fault.ErrUnknownSpend
		}
		if spend.Executed {
			return fault.ErrSpendAlreadyExecuted
		}
		if spend.Expiry <= blockNumber {
			return fault.ErrExpired
		}
		meta, ok := ap.multiSig(spend.Target)
		if !ok {
			return fault.ErrUnknownMultiSig
		}
		if _, ok := meta.weightOf(t.MasterAddress); !ok {
			return fault.ErrNotASignatory
		}

		signer := ap.account(t.MasterAddress)
		if signer.Balance < t.Fee {
			return fault.ErrInsufficientBalance
		}
		signer.Balance -= t.Fee

		spend.Votes[t.MasterAddress] = t.Vote
		ap.putPendingSpend(t.SpendHash, spend)

		if tally(meta, spend.Votes) >= uint64(meta.Threshold) {
			if err := executeSpend(ap, spend); nil != err {
				return err
			}
		}
		return nil

	default:
		return fault.ErrInvalidTransaction
	}
}

func applyOutputs(ap *applier, master account.Address, fee uint64, outputs []transactionrecord.Output) error {
	signer := ap.account(master)

	var total uint64
	for _, out := range outputs {
		if total+out.Amount < total {
			return fault.ErrInvalidTransaction
		}
		total += out.Amount
	}
	if total+fee < total {
		return fault.ErrInvalidTransaction
	}
	need := total + fee
	if signer.Balance < need {
		return fault.ErrInsufficientBalance
	}
	signer.Balance -= need
	for _, out := range outputs {
		recipient := ap.account(out.Recipient)
		recipient.Balance += out.Amount
	}
	return nil
}

// executeSpend - the threshold has been reached: move the declared
// outputs out of the multi-sig account's balance and retire the spend
func executeSpend(ap *applier, spend *PendingSpend) error {
	target := ap.account(spend.Target)

	var total uint64
	for _, out := range spend.Outputs {
		if total+out.Amount < total {
			return fault.ErrInvalidTransaction
		}
		total += out.Amount
	}
	if target.Balance < total {
		return fault.ErrInsufficientBalance
	}
	target.Balance -= total
	for _, out := range spend.Outputs {
		recipient := ap.account(out.Recipient)
		recipient.Balance += out.Amount
	}

	spend.Executed = true
	return nil
}

// mustTxId - a record's own content hash, used where a transaction
// names the account or spend it creates; computed by packing the
// transaction with its envelope signature already attached, exactly
// as it will be stored in the block
func mustTxId(tx transactionrecord.Transaction) merkle.Digest {
	packed, err := tx.Pack()
	if nil != err {
		fault.PanicWithError("state: mustTxId", err)
	}
	return packed.TxId()
}
