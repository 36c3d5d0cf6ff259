// Copyright (c) 2014-2016 The btcsuite developers
// Copyright (c) 2022 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chaindata

import (
	"fmt"

	"github.com/pkg/errors"
)

// AssertError identifies an error that indicates an internal code consistency
// issue and should be treated as a critical and unrecoverable error.
type AssertError string

// Error returns the assertion error as a human-readable string and satisfies
// the error interface.
func (e AssertError) Error() string {
	return "assertion failed: " + string(e)
}

// ErrorCode identifies a kind of error.
type ErrorCode int

// These constants are used to identify a specific RuleError.
const (
	// ErrPrevOutNotFound indicates the transaction spent by a coinstake is
	// not known to the chain yet. It may show up later, so the failure is
	// transient.
	ErrPrevOutNotFound ErrorCode = iota

	// ErrBlockNotFound indicates the block containing a transaction could
	// not be loaded.
	ErrBlockNotFound

	// ErrStorage indicates a failed read of the chain storage.
	ErrStorage

	// ErrBadTxShape indicates a coinstake without exactly one input and
	// one output.
	ErrBadTxShape

	// ErrBadScriptClass indicates an output script that can not be
	// attributed to exactly one destination.
	ErrBadScriptClass

	// ErrDestinationMismatch indicates a coinstake which does not pay back
	// to the destination it spends from.
	ErrDestinationMismatch

	// ErrScriptVerify indicates the coinstake signature does not satisfy
	// the spent output script.
	ErrScriptVerify

	// ErrTxIDMismatch indicates the transaction found at the indexed
	// location is not the one that was asked for.
	ErrTxIDMismatch

	// ErrMinAge indicates the staked output is younger than the minimum
	// stake age.
	ErrMinAge

	// ErrKernelTargetMiss indicates the kernel hash is above the coin-day
	// weighted target.
	ErrKernelTargetMiss

	// ErrNoTransactions indicates the block does not have at least one
	// transaction.
	ErrNoTransactions

	// ErrBlockWeightTooHigh indicates the block weight is above the limit.
	ErrBlockWeightTooHigh

	// ErrFirstTxNotCoinbase indicates the first transaction in a block
	// is not a coinbase transaction.
	ErrFirstTxNotCoinbase

	// ErrMultipleCoinbases indicates a block contains more than one
	// coinbase transaction.
	ErrMultipleCoinbases

	// ErrBadMerkleRoot indicates the calculated merkle root does not match
	// the expected value.
	ErrBadMerkleRoot

	// ErrDuplicateTx indicates a block contains an identical transaction
	// (or at least two transactions which hash to the same value).
	ErrDuplicateTx

	// ErrTooManySigOps indicates the total number of signature operations
	// for a transaction or block exceed the maximum allowed limits.
	ErrTooManySigOps

	// ErrBadCoinbaseValue indicates the amount of a coinbase value does
	// not match the expected value of the subsidy plus the sum of all fees.
	ErrBadCoinbaseValue

	// ErrBadCoinbaseHeight indicates the serialized block height in the
	// coinbase transaction for version 2 and higher blocks does not match
	// the expected value.
	ErrBadCoinbaseHeight

	// ErrMissingCoinStake indicates a proof-of-stake block without a
	// coinstake transaction at index 1.
	ErrMissingCoinStake

	// ErrBadBlockSignature indicates a proof-of-stake block whose signature
	// does not match the coinstake key.
	ErrBadBlockSignature

	// ErrBadRewardCommitment indicates a reward distribution commitment
	// that does not verify.
	ErrBadRewardCommitment

	// ErrUnexpectedBlockKind indicates a proof-of-work block above the
	// switch height or a proof-of-stake block below it.
	ErrUnexpectedBlockKind

	// ErrHighHash indicates the block does not hash to a value which is
	// lower than the required target difficultly.
	ErrHighHash

	// ErrBadTxInput indicates a transaction input is invalid in some way
	// such as referencing a previous transaction outpoint which is out of
	// range or not referencing one at all.
	ErrBadTxInput

	// ErrUnfinalizedTx indicates a transaction has not been finalized.
	// A valid block may only contain finalized transactions.
	ErrUnfinalizedTx

	// ErrDuplicateBlock indicates a block with the same hash already
	// exists.
	ErrDuplicateBlock

	// ErrPrevBlockNotBest indicates that the block's previous block is not the
	// current chain tip.
	ErrPrevBlockNotBest

	// ErrUnexpectedDifficulty indicates specified bits do not align with
	// the expected value either because it doesn't match the calculated
	// valued based on difficulty regarted rules or it is out of the valid
	// range.
	ErrUnexpectedDifficulty

	// ErrTimeTooOld indicates the time is either before the median time of
	// the last several blocks per the chain consensus rules or prior to the
	// most recent checkpoint.
	ErrTimeTooOld

	// ErrTimeTooNew indicates the time is too far in the future as compared
	// the current time.
	ErrTimeTooNew

	// ErrMissingTxOut indicates a transaction output referenced by an input
	// either does not exist or has already been spent.
	ErrMissingTxOut

	// ErrSpendTooHigh indicates a transaction is attempting to spend more
	// value than the sum of all of its inputs.
	ErrSpendTooHigh

	// ErrDoubleSpend indicates an output spent by more than one input of
	// the same block.
	ErrDoubleSpend

	// numErrorCodes is the maximum error code number used in tests.
	numErrorCodes
)

// Map of ErrorCode values back to their constant names for pretty printing.
var errorCodeStrings = map[ErrorCode]string{
	ErrPrevOutNotFound:      "ErrPrevOutNotFound",
	ErrBlockNotFound:        "ErrBlockNotFound",
	ErrStorage:              "ErrStorage",
	ErrBadTxShape:           "ErrBadTxShape",
	ErrBadScriptClass:       "ErrBadScriptClass",
	ErrDestinationMismatch:  "ErrDestinationMismatch",
	ErrScriptVerify:         "ErrScriptVerify",
	ErrTxIDMismatch:         "ErrTxIDMismatch",
	ErrMinAge:               "ErrMinAge",
	ErrKernelTargetMiss:     "ErrKernelTargetMiss",
	ErrNoTransactions:       "ErrNoTransactions",
	ErrBlockWeightTooHigh:   "ErrBlockWeightTooHigh",
	ErrFirstTxNotCoinbase:   "ErrFirstTxNotCoinbase",
	ErrMultipleCoinbases:    "ErrMultipleCoinbases",
	ErrBadMerkleRoot:        "ErrBadMerkleRoot",
	ErrDuplicateTx:          "ErrDuplicateTx",
	ErrTooManySigOps:        "ErrTooManySigOps",
	ErrBadCoinbaseValue:     "ErrBadCoinbaseValue",
	ErrBadCoinbaseHeight:    "ErrBadCoinbaseHeight",
	ErrMissingCoinStake:     "ErrMissingCoinStake",
	ErrBadBlockSignature:    "ErrBadBlockSignature",
	ErrBadRewardCommitment:  "ErrBadRewardCommitment",
	ErrUnexpectedBlockKind:  "ErrUnexpectedBlockKind",
	ErrHighHash:             "ErrHighHash",
	ErrBadTxInput:           "ErrBadTxInput",
	ErrUnfinalizedTx:        "ErrUnfinalizedTx",
	ErrDuplicateBlock:       "ErrDuplicateBlock",
	ErrPrevBlockNotBest:     "ErrPrevBlockNotBest",
	ErrUnexpectedDifficulty: "ErrUnexpectedDifficulty",
	ErrTimeTooOld:           "ErrTimeTooOld",
	ErrTimeTooNew:           "ErrTimeTooNew",
	ErrMissingTxOut:         "ErrMissingTxOut",
	ErrSpendTooHigh:         "ErrSpendTooHigh",
	ErrDoubleSpend:          "ErrDoubleSpend",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if s := errorCodeStrings[e]; s != "" {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// Transient reports whether the condition may clear up once the node has
// seen more of the chain.
func (e ErrorCode) Transient() bool {
	switch e {
	case ErrPrevOutNotFound, ErrBlockNotFound, ErrStorage:
		return true
	}
	return false
}

// RuleError identifies a rule violation. It is used to indicate that
// processing of a block or transaction failed due to one of the many
// validation rules. The caller can use type assertions to determine if a
// failure was specifically due to a rule violation and access the ErrorCode
// field to ascertain the specific reason for the rule violation.
type RuleError struct {
	ErrorCode   ErrorCode // Describes the kind of error
	Description string    // Human readable description of the issue
}

// Error satisfies the error interface and prints human-readable errors.
func (e RuleError) Error() string {
	return e.Description
}

// NewRuleError creates an RuleError given a set of arguments.
func NewRuleError(c ErrorCode, desc string) RuleError {
	return RuleError{ErrorCode: c, Description: desc}
}

// AsRuleError unwraps err down to a RuleError.
func AsRuleError(err error) (RuleError, bool) {
	var ruleErr RuleError
	if errors.As(err, &ruleErr) {
		return ruleErr, true
	}
	return ruleErr, false
}

// IsErrorCode returns whether or not the provided error is a rule error with
// the provided error code.
func IsErrorCode(err error, c ErrorCode) bool {
	ruleErr, ok := AsRuleError(err)
	return ok && ruleErr.ErrorCode == c
}

// IsTransient returns true when err reports missing or unreadable chain data
// rather than an invalid transaction. Callers may retry later.
func IsTransient(err error) bool {
	ruleErr, ok := AsRuleError(err)
	return ok && ruleErr.ErrorCode.Transient()
}

// IsRejection returns true when err is a rule violation that will not go
// away by waiting.
func IsRejection(err error) bool {
	ruleErr, ok := AsRuleError(err)
	return ok && !ruleErr.ErrorCode.Transient()
}
