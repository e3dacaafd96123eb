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

package fdb

import (
	"errors"
	"fmt"

	"github.com/erigontech/fdbclient/fdbc"
)

// Error wraps a classified native error with the client-facing taxonomy from
// spec §7.
type Error struct {
	Code    fdbc.Code
	Message string
}

func (e *Error) Error() string { return fmt.Sprintf("fdb: %s (code %d)", e.Message, e.Code) }

func wrapNative(err error) error {
	if err == nil {
		return nil
	}
	if fe, ok := fdbc.AsError(err); ok {
		return &Error{Code: fe.Code, Message: fe.Message}
	}
	return err
}

// ErrOperationNotAllowed is returned for writes on a read-only transaction,
// use of a disposed transaction, or other invariant violations that are
// never retried (spec §7).
var ErrOperationNotAllowed = errors.New("fdb: operation not allowed")

// ErrTransactionCancelled is returned when commit is attempted after Cancel,
// or an in-flight call observes its transaction's cancellation scope firing.
// It is always fatal, never retried.
var ErrTransactionCancelled = errors.New("fdb: transaction cancelled")

// ErrInvalidMutationType is returned for an unrecognized atomic mutation
// kind, or a recognized kind not supported by the pinned API version.
var ErrInvalidMutationType = errors.New("fdb: invalid mutation type")

// ErrForeignScope is returned by Watch when the caller passes the owning
// transaction's own cancellation scope as the watch's external scope (it
// could not outlive its creator).
var ErrForeignScope = errors.New("fdb: watch cannot use its own transaction's cancellation scope")

// IsRetryable reports whether err, if a classified *Error, is one the retry
// loop should resolve via OnError rather than surface to the caller.
func IsRetryable(err error) bool {
	var fe *Error
	if errors.As(err, &fe) {
		return fdbc.Retryable(fe.Code)
	}
	return false
}
