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

package memdriver

import (
	"context"

	"github.com/erigontech/fdbclient/fdbc"
)

// immediateFuture wraps a value that is already known; memdriver has no
// asynchronous native thread to wait on, so everything resolves eagerly.
type immediateFutureT struct {
	value any
	err   error
}

func immediateFuture(value any, err error) fdbc.Future { return &immediateFutureT{value: value, err: err} }

func (f *immediateFutureT) Get(ctx context.Context) (any, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	return f.value, f.err
}

func (f *immediateFutureT) Cancel() {}

// deferredVersionstampFuture resolves only after the owning transaction has
// committed, matching the real API's "request before commit, resolve after"
// contract for GetVersionstamp (spec §4.4).
type deferredVersionstampFuture struct {
	tx *transaction
}

func (f *deferredVersionstampFuture) Get(ctx context.Context) (any, error) {
	f.tx.mu.Lock()
	committed := f.tx.committed
	cv := f.tx.committedVersion
	f.tx.mu.Unlock()
	if !committed {
		return nil, fdbc.NewError(fdbc.CodeOperationNotAllowed, "GetVersionstamp resolved before commit")
	}
	var stamp [10]byte
	binaryPutUint64(stamp[:8], uint64(cv))
	// memdriver applies one logical write batch per commit, so every
	// versionstamp issued by the same attempt shares intra-transaction
	// order 0; a real cluster would assign increasing order values here.
	return stamp, nil
}

func (f *deferredVersionstampFuture) Cancel() {}

// watchFuture resolves when the registered watch fires, is cancelled, or its
// owning transaction never committed.
type watchFuture struct {
	ch chan error
}

func (f *watchFuture) Get(ctx context.Context) (any, error) {
	select {
	case err := <-f.ch:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *watchFuture) Cancel() {
	select {
	case f.ch <- fdbc.NewError(fdbc.CodeTransactionCancelledTask, "watch cancelled"):
	default:
	}
}
