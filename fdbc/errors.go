// Copyright 2024 The fdbclient Authors
// This file is part of fdbclient.
//
// fdbclient is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// fdbclient is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with fdbclient. If not, see <http://www.gnu.org/licenses/>.

package fdbc

import "fmt"

// Code is a native error code, unclassified. The values below are the ones
// spec §6 names explicitly; a real driver surfaces many more, and Retryable
// reports false for any code it doesn't recognize.
type Code int32

const (
	CodeSuccess                  Code = 0
	CodeNotCommitted             Code = 1020
	CodeTransactionTooOld        Code = 1007
	CodeTransactionCancelled     Code = 1025
	CodeCommitUnknownResult      Code = 1021
	CodeFutureVersion            Code = 1009
	CodeTimedOut                 Code = 1031
	CodeKeyOutsideLegalRange     Code = 1059
	CodeInvalidMutationType      Code = 1052
	CodeAPIVersionNotSet         Code = 2200
	CodeOperationNotAllowed      Code = 2001 // client-side synthetic, not part of the native wire protocol
	CodeTransactionCancelledTask Code = 2002 // client-side synthetic: cancellation scope fired mid-call
)

// Error wraps a native Code with its message, the same shape fdb_get_error
// would hand back.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("fdbc: %s (code %d)", e.Message, e.Code)
}

func NewError(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// retryableCodes are errors the native on-error routine resolves into a
// retry decision (spec §7). CommitUnknownResult is conditionally retryable:
// only when the attempt contained nothing that would be unsafe to apply
// twice, a judgement this package defers to the driver's OnError (see
// memdriver's idempotentOnly tracking).
var retryableCodes = map[Code]bool{
	CodeNotCommitted:      true,
	CodeTransactionTooOld: true,
	CodeFutureVersion:     true,
}

// fatalCodes are never retried by OnError.
var fatalCodes = map[Code]bool{
	CodeTransactionCancelled:     true,
	CodeTransactionCancelledTask: true,
	CodeOperationNotAllowed:      true,
	CodeInvalidMutationType:      true,
	CodeKeyOutsideLegalRange:     true,
	CodeAPIVersionNotSet:         true,
}

// Retryable reports whether code is unconditionally retryable per the
// native classification.
func Retryable(code Code) bool { return retryableCodes[code] }

// Fatal reports whether code is unconditionally fatal.
func Fatal(code Code) bool { return fatalCodes[code] }

// AsError extracts an *Error from err, if any.
func AsError(err error) (*Error, bool) {
	fe, ok := err.(*Error)
	return fe, ok
}
