// Copyright (c) 2014-2016 The btcsuite developers
// Copyright (c) 2022 The JaxNetwork developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

import "fmt"

// RejectCode describes why a transaction was refused by the pool.
type RejectCode int

const (
	RejectDuplicate RejectCode = iota
	RejectCoinbase
	RejectConflict
	RejectInvalid
)

var rejectCodeStrings = map[RejectCode]string{
	RejectDuplicate: "duplicate",
	RejectCoinbase:  "coinbase",
	RejectConflict:  "conflict",
	RejectInvalid:   "invalid",
}

func (c RejectCode) String() string {
	if s, ok := rejectCodeStrings[c]; ok {
		return s
	}
	return fmt.Sprintf("Unknown RejectCode (%d)", int(c))
}

// TxRuleError identifies a transaction the pool will not accept.
type TxRuleError struct {
	RejectCode  RejectCode
	Description string
}

func (e TxRuleError) Error() string {
	return e.Description
}

func txRuleError(c RejectCode, desc string) TxRuleError {
	return TxRuleError{RejectCode: c, Description: desc}
}
