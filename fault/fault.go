// Copyright (c) 2014-2016 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// error instances
//
// Provides a single instance of errors to allow easy comparison
package fault

// error base
type GenericError string

// to allow for different classes of errors
type ExistsError GenericError
type InvalidError GenericError
type NotFoundError GenericError
type ProcessError GenericError

// transaction-level errors: rejected, not fatal, reported to the submitter
type TransactionError GenericError

// block-level errors: branch rejected or queued as orphan
type ConsensusError GenericError

// storage/process level errors that require shutdown
type FatalError GenericError

// peer session errors
type PeerError GenericError

// common errors - keep in alphabetic order
var (
	ErrAlreadyInitialised   = ProcessError("already initialised")
	ErrNotInitialised       = ProcessError("not initialised")
	ErrInvalidLoggerChannel = ProcessError("invalid logger channel")
	ErrInvalidChain        = InvalidError("invalid chain")
	ErrKeyLength           = InvalidError("key length is invalid")
	ErrInvalidKeyLength    = InvalidError("public key length is invalid")
	ErrInvalidKeyType      = InvalidError("key type is invalid")
	ErrInvalidPublicKey    = InvalidError("public key is invalid")
	ErrInvalidPrivateKey   = InvalidError("private key is invalid")
	ErrNotPublicKey        = InvalidError("not a public key")
	ErrCannotDecodeAccount = InvalidError("cannot decode account")
	ErrChecksumMismatch    = InvalidError("checksum mismatch")
	ErrInvalidIPAddress    = InvalidError("ip address is invalid")
	ErrInvalidPortNumber   = InvalidError("port number is invalid")
	ErrInvalidSignature    = InvalidError("invalid signature")
	ErrNotLink             = InvalidError("not a valid link")
	ErrInvalidBlockHeader  = InvalidError("invalid block header")
	ErrRequiredConfigDir   = InvalidError("config folder is required")
	ErrConfigDirPath       = InvalidError("config is not a folder")
	ErrNotFoundConfigFile  = NotFoundError("config file is not found")
	ErrBlockNotFound       = NotFoundError("block not found")
	ErrAccountNotFound     = NotFoundError("account not found")
	ErrTransactionNotFound = NotFoundError("transaction not found")
	ErrJsonParseFail       = ProcessError("parse to json failed")
	ErrUnmarshalTextFail   = ProcessError("unmarshal text failed")

	// Malformed — decoding failed, always safe to discard and ban the sender
	ErrMalformed = TransactionError("malformed record")

	// transaction-level
	ErrReusedSigningKey    = TransactionError("signing key already used")
	ErrInsufficientBalance = TransactionError("insufficient balance")
	ErrNonceGap            = TransactionError("nonce gap")
	ErrDuplicateTransaction = TransactionError("duplicate transaction")
	ErrUnknownToken        = TransactionError("unknown token")
	ErrThresholdNotMet     = TransactionError("multi-sig threshold not met")
	ErrExpired             = TransactionError("transaction expired")
	ErrTransactionTooLarge = TransactionError("transaction exceeds size limit")
	ErrInvalidTransaction  = TransactionError("invalid transaction")
	ErrNotASlave           = TransactionError("not a registered slave key")
	ErrUnknownMultiSig     = TransactionError("unknown multi-sig account")
	ErrNotASignatory       = TransactionError("signer is not a multi-sig signatory")
	ErrUnknownSpend        = TransactionError("unknown pending multi-sig spend")
	ErrSpendAlreadyExecuted = TransactionError("multi-sig spend already executed")

	// block-level
	ErrBadPoW         = ConsensusError("proof of work does not meet target")
	ErrBadMerkleRoot  = ConsensusError("merkle root mismatch")
	ErrBadTimestamp   = ConsensusError("block timestamp out of range")
	ErrBadHeight      = ConsensusError("block height out of sequence")
	ErrUnknownParent  = ConsensusError("unknown parent block")
	ErrInvalidBranch  = ConsensusError("branch previously marked invalid")
	ErrReorgTooDeep   = ConsensusError("reorg exceeds configured depth limit")
	ErrCoinbaseAmount = ConsensusError("coinbase amount does not match subsidy plus fees")
	ErrDuplicateBlock = ConsensusError("block already known")
	ErrBadDifficultyBits = ConsensusError("block bits do not match the expected retarget schedule")

	// storage
	ErrStoreCorruption = FatalError("store corruption detected")

	// peer / p2p
	ErrPeerTimeout        = PeerError("peer read/write timed out")
	ErrPeerRateExceeded   = PeerError("peer exceeded declared rate limit")
	ErrProtocolViolation  = PeerError("protocol violation")
	ErrGenesisMismatch    = PeerError("genesis hash mismatch")
	ErrPeerBanned         = PeerError("peer is banned")
	ErrNotConnected       = PeerError("not connected")
	ErrMissingParameters  = PeerError("missing parameters")
	ErrInvalidResponse    = PeerError("invalid peer response")
	ErrKeyFileAlreadyExists = ExistsError("key file already exists")
	ErrInvalidPublicKeyFile = InvalidError("invalid public key file")
	ErrInvalidPrivateKeyFile = InvalidError("invalid private key file")
)

// the error interface base method
func (e GenericError) Error() string { return string(e) }

// the error interface methods
func (e ExistsError) Error() string       { return string(e) }
func (e InvalidError) Error() string      { return string(e) }
func (e NotFoundError) Error() string     { return string(e) }
func (e ProcessError) Error() string      { return string(e) }
func (e TransactionError) Error() string  { return string(e) }
func (e ConsensusError) Error() string    { return string(e) }
func (e FatalError) Error() string        { return string(e) }
func (e PeerError) Error() string         { return string(e) }

// determine the class of an error
func IsErrExists(e error) bool      { _, ok := e.(ExistsError); return ok }
func IsErrInvalid(e error) bool     { _, ok := e.(InvalidError); return ok }
func IsErrNotFound(e error) bool    { _, ok := e.(NotFoundError); return ok }
func IsErrProcess(e error) bool     { _, ok := e.(ProcessError); return ok }
func IsErrTransaction(e error) bool { _, ok := e.(TransactionError); return ok }
func IsErrConsensus(e error) bool   { _, ok := e.(ConsensusError); return ok }
func IsErrFatal(e error) bool       { _, ok := e.(FatalError); return ok }
func IsErrPeer(e error) bool        { _, ok := e.(PeerError); return ok }
