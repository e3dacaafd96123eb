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

// Package fdbc describes the capability the core consumes from the native
// C-ABI driver (what would be libfdb_c in a real binding). Nothing in this
// package talks to a real native library: the driver itself is explicitly
// out of scope (spec section 1). fdbc/memdriver provides an in-repo
// reference/test double backed by bbolt.
package fdbc

import "context"

// Variables naming, mirrored from the kv-engine wrapper this package is
// modeled on:
//   db  - native database handle
//   tx  - native transaction handle
//   k,v - key, value

// StreamingMode mirrors the native range-read chunking policies (spec §4.5).
type StreamingMode int8

const (
	StreamingModeIterator StreamingMode = iota
	StreamingModeSmall
	StreamingModeMedium
	StreamingModeLarge
	StreamingModeSerial
	StreamingModeWantAll
	StreamingModeExact
)

// MutationType mirrors the native atomic-mutation opcodes (spec §4.4).
type MutationType int8

const (
	MutationAdd MutationType = iota
	MutationBitAnd
	MutationBitOr
	MutationBitXor
	MutationMin
	MutationMax
	MutationCompareAndClear
	MutationAppendIfFits
	MutationVersionstampedKey
	MutationVersionstampedValue
	MutationSetVersionstampedKeyFixed
)

// Option identifies a native transaction or database option (spec §4.4: timeout,
// retry_limit, max_retry_delay, tracing, read_your_writes_disable,
// snapshot_read_your_writes_disable, read_access_to_system_keys, and the
// native set-option surface in general).
type Option int32

const (
	OptionTimeout Option = iota
	OptionRetryLimit
	OptionMaxRetryDelay
	OptionTracing
	OptionReadYourWritesDisable
	OptionSnapshotReadYourWritesDisable
	OptionReadAccessToSystemKeys
)

// KeyValue is a single row returned from a range read.
type KeyValue struct {
	Key   []byte
	Value []byte
}

// KeySelector is the wire shape of spec §3's key selector triple. The core's
// fdb.KeySelector is the caller-facing type; this is what crosses into the
// native call.
type KeySelector struct {
	Key      []byte
	OrEqual  bool
	Offset   int32
}

// RangeResult is one chunk returned by a ranged native call.
type RangeResult struct {
	KVs   []KeyValue
	More  bool // true if the range has more data beyond this chunk
}

// Future is a single pending native operation. Its one accessor, Get,
// returns an untyped result whose concrete type matches the call that
// produced it; callers know which from context, same as the real C API's
// typed fdb_future_get_* family.
type Future interface {
	// Get blocks (honoring ctx cancellation) until the native operation
	// completes, then returns its raw result. The concrete type of value
	// depends on which Transaction method produced this future.
	Get(ctx context.Context) (value any, err error)
	// Cancel requests best-effort cancellation of the in-flight operation.
	Cancel()
}

// Transaction is the native per-attempt handle. Every method either returns
// synchronously (registration-only calls, mirroring the real API's
// fire-and-forget setters) or returns a Future for the caller to await.
//
// Errors returned here are native error codes, unclassified: see
// Retryable and Fatal. This package never decides retryable vs fatal on the
// caller's behalf.
type Transaction interface {
	// Set/Clear/ClearRange/AtomicOp/AddReadConflictRange/AddWriteConflictRange
	// register a mutation or conflict-range declaration; they do not block.
	Set(key, value []byte)
	Clear(key []byte)
	ClearRange(begin, end []byte)
	AtomicOp(key, param []byte, kind MutationType)
	AddReadConflictRange(begin, end []byte)
	AddWriteConflictRange(begin, end []byte)

	Get(ctx context.Context, key []byte, snapshot bool) Future
	GetKey(ctx context.Context, sel KeySelector, snapshot bool) Future
	GetRange(ctx context.Context, begin, end KeySelector, limit int, targetBytes int, mode StreamingMode, reverse bool, snapshot bool) Future
	GetReadVersion(ctx context.Context) Future
	SetReadVersion(version int64)
	GetCommittedVersion() (int64, error)
	GetApproximateSize(ctx context.Context) Future
	GetAddressesForKey(ctx context.Context, key []byte) Future
	GetEstimatedRangeSizeBytes(ctx context.Context, begin, end []byte) Future
	GetRangeSplitPoints(ctx context.Context, begin, end []byte, chunkSize int64) Future
	GetVersionstamp() Future
	GetMetadataVersionKey(ctx context.Context, scope []byte) Future

	// VersionstampToken returns the 10-byte placeholder this attempt embeds
	// in any key or value written with a versionstamp mutation (spec §3/§6).
	// It is stable for the lifetime of the attempt and reseeded on Reset.
	VersionstampToken() [10]byte

	Watch(key []byte) Future

	SetOption(opt Option, value []byte) error

	Commit(ctx context.Context) Future
	Reset()
	Cancel()
	OnError(ctx context.Context, err error) Future

	Close()
}

// Database is the native per-cluster handle. BeginTransaction never blocks in
// the real API (transaction creation is local); it can still fail if the
// handle is already closed.
type Database interface {
	BeginTransaction() (Transaction, error)
	SetOption(opt Option, value []byte) error
	Close()
}

// Driver opens databases. A production binding would dial the C API's
// cluster-file based connection; fdbc/memdriver opens an in-process bbolt
// file instead.
type Driver interface {
	OpenDatabase(clusterFile string) (Database, error)
}
