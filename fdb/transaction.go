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
	"context"
	"fmt"
	"sync"

	"github.com/erigontech/fdbclient/fdbc"
)

// state is a Transaction's position in the spec §3 lifecycle:
// ready -> committed | canceled | disposed.
type state int8

const (
	stateReady state = iota
	stateCommitted
	stateCanceled
	stateDisposed
)

// Transaction is one attempt at executing a set of reads and mutations
// atomically (spec §3/§4.4). Construct one via Database methods, never
// directly.
type Transaction struct {
	db      *Database
	handle  *fdbc.Handle
	ctx     *TransactionContext
	options DatabaseOptions

	readOnly bool
	snapshot bool // true for the view returned by Snapshot()

	// scope is this attempt's own cancellation scope: the context the retry
	// loop is driving the attempt under. Watch rejects this same context as
	// its external scope (spec §4.4/§4.8) since it could not outlive its
	// creator.
	scope context.Context

	mu            sync.Mutex
	st            state
	hasRead       bool
	snapshotView  *Transaction
	committedOnce bool
}

func newTransaction(db *Database, native fdbc.Transaction, scope context.Context, ctx *TransactionContext, opts DatabaseOptions, readOnly bool) *Transaction {
	return &Transaction{
		db:       db,
		handle:   fdbc.NewHandle(native),
		scope:    scope,
		ctx:      ctx,
		options:  opts,
		readOnly: readOnly,
	}
}

func (t *Transaction) nativeOrErr() (fdbc.Transaction, error) {
	n, ok := t.handle.Native()
	if !ok {
		return nil, ErrOperationNotAllowed
	}
	return n, nil
}

func (t *Transaction) checkWritable() error {
	if t.readOnly || t.snapshot {
		return ErrOperationNotAllowed
	}
	t.mu.Lock()
	st := t.st
	t.mu.Unlock()
	if st != stateReady {
		return ErrOperationNotAllowed
	}
	return nil
}

// Get returns the value stored at key, or nil if key is absent (spec §3:
// nil-vs-empty is observable).
func (t *Transaction) Get(ctx context.Context, key Key) ([]byte, error) {
	n, err := t.nativeOrErr()
	if err != nil {
		return nil, err
	}
	t.markRead()
	fut := n.Get(ctx, key, t.snapshot)
	release := t.handle.Track()
	defer release()
	v, err := fut.Get(ctx)
	if err != nil {
		return nil, wrapNative(err)
	}
	if v == nil {
		return nil, nil
	}
	return v.([]byte), nil
}

// GetKey resolves sel to a concrete key.
func (t *Transaction) GetKey(ctx context.Context, sel KeySelector) (Key, error) {
	n, err := t.nativeOrErr()
	if err != nil {
		return nil, err
	}
	t.markRead()
	fut := n.GetKey(ctx, sel.toNative(), t.snapshot)
	release := t.handle.Track()
	defer release()
	v, err := fut.Get(ctx)
	if err != nil {
		return nil, wrapNative(err)
	}
	return v.([]byte), nil
}

// GetValues reads each key in keys, preserving order; a missing key yields a
// nil entry at that position.
func (t *Transaction) GetValues(ctx context.Context, keys []Key) ([][]byte, error) {
	out := make([][]byte, len(keys))
	for i, k := range keys {
		v, err := t.Get(ctx, k)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// GetKeys resolves each selector in sels, preserving order.
func (t *Transaction) GetKeys(ctx context.Context, sels []KeySelector) ([]Key, error) {
	out := make([]Key, len(sels))
	for i, s := range sels {
		k, err := t.GetKey(ctx, s)
		if err != nil {
			return nil, err
		}
		out[i] = k
	}
	return out, nil
}

// GetReadVersion returns the transaction's read version, stable for its
// lifetime.
func (t *Transaction) GetReadVersion(ctx context.Context) (int64, error) {
	n, err := t.nativeOrErr()
	if err != nil {
		return 0, err
	}
	fut := n.GetReadVersion(ctx)
	v, err := fut.Get(ctx)
	if err != nil {
		return 0, wrapNative(err)
	}
	return v.(int64), nil
}

// SetReadVersion pins the transaction to an explicit read version, e.g. for
// causal-read pinning from another transaction's committed version.
func (t *Transaction) SetReadVersion(version int64) error {
	n, err := t.nativeOrErr()
	if err != nil {
		return err
	}
	n.SetReadVersion(version)
	return nil
}

// GetCommittedVersion returns the version this transaction committed at, or
// -1 if it has not yet committed successfully (spec §8 invariant).
func (t *Transaction) GetCommittedVersion() (int64, error) {
	n, err := t.nativeOrErr()
	if err != nil {
		return -1, err
	}
	return n.GetCommittedVersion()
}

// GetApproximateSize estimates the size in bytes of the mutations buffered
// so far in this attempt.
func (t *Transaction) GetApproximateSize(ctx context.Context) (int64, error) {
	n, err := t.nativeOrErr()
	if err != nil {
		return 0, err
	}
	fut := n.GetApproximateSize(ctx)
	v, err := fut.Get(ctx)
	if err != nil {
		return 0, wrapNative(err)
	}
	return v.(int64), nil
}

// GetAddressesForKey returns the storage addresses that currently hold key.
func (t *Transaction) GetAddressesForKey(ctx context.Context, key Key) ([]string, error) {
	n, err := t.nativeOrErr()
	if err != nil {
		return nil, err
	}
	fut := n.GetAddressesForKey(ctx, key)
	v, err := fut.Get(ctx)
	if err != nil {
		return nil, wrapNative(err)
	}
	return v.([]string), nil
}

// GetEstimatedRangeSizeBytes estimates the stored size of [begin, end).
func (t *Transaction) GetEstimatedRangeSizeBytes(ctx context.Context, begin, end Key) (int64, error) {
	n, err := t.nativeOrErr()
	if err != nil {
		return 0, err
	}
	fut := n.GetEstimatedRangeSizeBytes(ctx, begin, end)
	v, err := fut.Get(ctx)
	if err != nil {
		return 0, wrapNative(err)
	}
	return v.(int64), nil
}

// GetRangeSplitPoints returns keys partitioning [begin, end) into roughly
// chunkSize-byte pieces.
func (t *Transaction) GetRangeSplitPoints(ctx context.Context, begin, end Key, chunkSize int64) ([]Key, error) {
	n, err := t.nativeOrErr()
	if err != nil {
		return nil, err
	}
	fut := n.GetRangeSplitPoints(ctx, begin, end, chunkSize)
	v, err := fut.Get(ctx)
	if err != nil {
		return nil, wrapNative(err)
	}
	return v.([][]byte), nil
}

// metadataVersionUnknown distinguishes "this scope was touched earlier in
// this attempt" from a real stamp value (spec §4.4/§9).
var metadataVersionUnknown = fmt.Errorf("fdb: metadata version unknown in this attempt")

// GetMetadataVersionKey reads the metadata-version stamp for scope (nil for
// the default scope). Returns metadataVersionUnknown if this attempt already
// mutated that scope.
func (t *Transaction) GetMetadataVersionKey(ctx context.Context, scope []byte) ([]byte, error) {
	n, err := t.nativeOrErr()
	if err != nil {
		return nil, err
	}
	fut := n.GetMetadataVersionKey(ctx, scope)
	v, err := fut.Get(ctx)
	if err != nil {
		if fe, ok := fdbc.AsError(err); ok && fe.Code == fdbc.CodeSuccess {
			return nil, metadataVersionUnknown
		}
		return nil, wrapNative(err)
	}
	if v == nil {
		return nil, nil
	}
	return v.([]byte), nil
}

func (t *Transaction) markRead() {
	t.mu.Lock()
	t.hasRead = true
	t.mu.Unlock()
}

// Set writes key=value, replacing any prior value.
func (t *Transaction) Set(key Key, value []byte) error {
	if err := t.checkWritable(); err != nil {
		return err
	}
	n, err := t.nativeOrErr()
	if err != nil {
		return err
	}
	n.Set(key, value)
	return nil
}

// Clear removes key.
func (t *Transaction) Clear(key Key) error {
	if err := t.checkWritable(); err != nil {
		return err
	}
	n, err := t.nativeOrErr()
	if err != nil {
		return err
	}
	n.Clear(key)
	return nil
}

// ClearRange removes every key in [begin, end).
func (t *Transaction) ClearRange(begin, end Key) error {
	if err := t.checkWritable(); err != nil {
		return err
	}
	n, err := t.nativeOrErr()
	if err != nil {
		return err
	}
	n.ClearRange(begin, end)
	return nil
}

// AddReadConflictKey declares that this transaction's success depends on key
// not changing between its read and commit versions.
func (t *Transaction) AddReadConflictKey(key Key) error {
	if err := t.checkWritable(); err != nil {
		return err
	}
	n, err := t.nativeOrErr()
	if err != nil {
		return err
	}
	n.AddReadConflictRange(key, append(append([]byte{}, key...), 0x00))
	return nil
}

// AddReadConflictRange declares a read-conflict dependency over [begin, end).
func (t *Transaction) AddReadConflictRange(begin, end Key) error {
	if err := t.checkWritable(); err != nil {
		return err
	}
	n, err := t.nativeOrErr()
	if err != nil {
		return err
	}
	n.AddReadConflictRange(begin, end)
	return nil
}

// AddWriteConflictKey declares a write-conflict range covering exactly key,
// without actually writing it — for building custom conflict policies.
func (t *Transaction) AddWriteConflictKey(key Key) error {
	if err := t.checkWritable(); err != nil {
		return err
	}
	n, err := t.nativeOrErr()
	if err != nil {
		return err
	}
	n.AddWriteConflictRange(key, append(append([]byte{}, key...), 0x00))
	return nil
}

// AddWriteConflictRange declares a write-conflict dependency over [begin, end).
func (t *Transaction) AddWriteConflictRange(begin, end Key) error {
	if err := t.checkWritable(); err != nil {
		return err
	}
	n, err := t.nativeOrErr()
	if err != nil {
		return err
	}
	n.AddWriteConflictRange(begin, end)
	return nil
}

// Snapshot returns this transaction's read-only, non-conflicting view (spec
// §4.4): gets/selectors evaluate at the same read version but never add to
// the read conflict set. The same physical transaction underlies both
// views; Snapshot always returns the same object for a given Transaction.
func (t *Transaction) Snapshot() *Transaction {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.snapshotView != nil {
		return t.snapshotView
	}
	view := &Transaction{
		db:       t.db,
		handle:   t.handle,
		scope:    t.scope,
		ctx:      t.ctx,
		options:  t.options,
		readOnly: t.readOnly,
		snapshot: true,
	}
	t.snapshotView = view
	return view
}

// SetOption applies a native transaction option. Setting
// OptionReadYourWritesDisable after any read has occurred fails (spec
// §4.4).
func (t *Transaction) SetOption(opt fdbc.Option, value []byte) error {
	if opt == fdbc.OptionReadYourWritesDisable {
		t.mu.Lock()
		hasRead := t.hasRead
		t.mu.Unlock()
		if hasRead {
			return ErrOperationNotAllowed
		}
	}
	n, err := t.nativeOrErr()
	if err != nil {
		return err
	}
	return wrapNative(n.SetOption(opt, value))
}

// Commit attempts to commit this transaction's buffered mutations. It fails
// immediately with ErrTransactionCancelled if Cancel was already called
// (spec §4.7's special rule).
func (t *Transaction) Commit(ctx context.Context) error {
	t.mu.Lock()
	if t.st == stateCanceled {
		t.mu.Unlock()
		return ErrTransactionCancelled
	}
	if t.st != stateReady {
		t.mu.Unlock()
		return ErrOperationNotAllowed
	}
	t.mu.Unlock()

	if err := t.evaluateValueChecks(ctx); err != nil {
		return err
	}

	n, err := t.nativeOrErr()
	if err != nil {
		return err
	}
	fut := n.Commit(ctx)
	release := t.handle.Track()
	defer release()
	_, err = fut.Get(ctx)
	if err != nil {
		if fe, ok := fdbc.AsError(err); ok {
			t.ctx.recordError(fe.Code)
		}
		return wrapNative(err)
	}
	t.mu.Lock()
	t.st = stateCommitted
	t.committedOnce = true
	t.mu.Unlock()
	t.db.metrics.CommitsTotal.Inc()
	return nil
}

// Reset returns the transaction to the ready state: releases buffered
// mutations, clears the committed version, and reseeds the versionstamp
// token (spec §4.4/§9).
func (t *Transaction) Reset() error {
	n, err := t.nativeOrErr()
	if err != nil {
		return err
	}
	n.Reset()
	t.mu.Lock()
	t.st = stateReady
	t.hasRead = false
	t.mu.Unlock()
	return nil
}

// Cancel moves the transaction to the canceled state; any pending or future
// commit fails with ErrTransactionCancelled (fatal, never retried).
func (t *Transaction) Cancel() error {
	n, err := t.nativeOrErr()
	if err != nil {
		return err
	}
	n.Cancel()
	t.mu.Lock()
	t.st = stateCanceled
	t.mu.Unlock()
	return nil
}

// Dispose releases the native handle. Idempotent.
func (t *Transaction) Dispose() {
	t.mu.Lock()
	t.st = stateDisposed
	t.mu.Unlock()
	t.handle.Close()
}

// OnError classifies err and either returns nil after resetting the
// transaction for a retry, or returns the (possibly re-wrapped) fatal error.
func (t *Transaction) OnError(ctx context.Context, err error) error {
	n, nerr := t.nativeOrErr()
	if nerr != nil {
		return nerr
	}
	fut := n.OnError(ctx, unwrapToNative(err))
	_, oerr := fut.Get(ctx)
	if oerr != nil {
		return wrapNative(oerr)
	}
	t.mu.Lock()
	t.st = stateReady
	t.hasRead = false
	t.mu.Unlock()
	return nil
}

// AddValueCheck registers a commit-time cache-validation assertion for this
// attempt (spec §4.6): "key is expected to hold expected". Evaluated just
// before Commit actually commits.
func (t *Transaction) AddValueCheck(tag string, key Key, expected []byte) {
	t.ctx.AddValueCheck(tag, key, expected)
}

// TestValueCheckFromPreviousAttempt reports the outcome of tag from the
// attempt that just finished (or ValueCheckUnknown on the first attempt).
func (t *Transaction) TestValueCheckFromPreviousAttempt(tag string) ValueCheckOutcome {
	return t.ctx.TestValueCheckFromPreviousAttempt(tag)
}

// GetValueChecksFromPreviousAttempt lists the prior attempt's checks
// matching the optional tag/outcome filters.
func (t *Transaction) GetValueChecksFromPreviousAttempt(tag string, outcome *ValueCheckOutcome) []ValueCheckResult {
	return t.ctx.GetValueChecksFromPreviousAttempt(tag, outcome)
}

// Context returns the TransactionContext backing this attempt, for callers
// that need the raw attempt counter or previous-error code.
func (t *Transaction) Context() *TransactionContext { return t.ctx }

func unwrapToNative(err error) error {
	if fe, ok := err.(*Error); ok {
		return fdbc.NewError(fe.Code, fe.Message)
	}
	return err
}
