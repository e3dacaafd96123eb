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

// Package memdriver is a reference implementation of the fdbc.Driver
// capability, backed by go.etcd.io/bbolt. It exists for tests and local
// experimentation in place of libfdb_c: it gives real, ordered,
// transactional byte-string storage, optimistic read/write conflict
// detection, and watch delivery, without pretending to be a distributed
// cluster.
package memdriver

import (
	"bytes"
	"context"
	"crypto/rand"
	"fmt"
	"sort"
	"sync"

	"go.etcd.io/bbolt"

	"github.com/erigontech/fdbclient/fdbc"
)

var dataBucket = []byte("data")

// Driver opens bbolt-backed databases: OpenDatabase creates (or opens) the
// file named by clusterFile, and "" or ":memory:" selects an always-fresh
// temp-file-backed store.
type Driver struct{}

func NewDriver() *Driver { return &Driver{} }

func (d *Driver) OpenDatabase(clusterFile string) (fdbc.Database, error) {
	path := clusterFile
	if path == "" || path == ":memory:" {
		path = tempDBPath()
	}
	bdb, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("memdriver: open %s: %w", path, err)
	}
	if err := bdb.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(dataBucket)
		return err
	}); err != nil {
		return nil, fmt.Errorf("memdriver: init bucket: %w", err)
	}
	return &database{bdb: bdb, watchers: map[string][]*watcher{}}, nil
}

type commitRecord struct {
	version int64
	writes  []keyRange
}

type keyRange struct{ begin, end []byte }

func (r keyRange) overlaps(o keyRange) bool {
	// end == nil means "unbounded"; ranges are half-open [begin, end).
	if r.end != nil && bytes.Compare(o.begin, r.end) >= 0 {
		return false
	}
	if o.end != nil && bytes.Compare(r.begin, o.end) >= 0 {
		return false
	}
	return true
}

func pointRange(k []byte) keyRange { return keyRange{begin: k, end: append(append([]byte{}, k...), 0x00)} }

type watcher struct {
	baseline []byte // nil means "key was absent"
	absent   bool
	ch       chan error
	fired    bool
}

type database struct {
	bdb *bbolt.DB

	mu      sync.Mutex
	version int64
	history []commitRecord

	watchMu  sync.Mutex
	watchers map[string][]*watcher

	closed bool
}

func (db *database) SetOption(fdbc.Option, []byte) error { return nil }

func (db *database) Close() {
	db.mu.Lock()
	db.closed = true
	db.mu.Unlock()
	_ = db.bdb.Close()
}

func (db *database) BeginTransaction() (fdbc.Transaction, error) {
	db.mu.Lock()
	readVersion := db.version
	db.mu.Unlock()

	btx, err := db.bdb.Begin(false)
	if err != nil {
		return nil, fmt.Errorf("memdriver: begin snapshot: %w", err)
	}
	tx := &transaction{
		db:             db,
		snapshot:       btx,
		readVersion:    readVersion,
		overlay:        map[string]*pendingOp{},
		idempotentOnly: true,
	}
	tx.reseedToken()
	return tx, nil
}

type opKind int8

const (
	opSet opKind = iota
	opClearKey
	opClearRange
)

type pendingOp struct {
	kind  opKind
	value []byte // for opSet
	end   []byte // for opClearRange
}

type transaction struct {
	db *database

	mu          sync.Mutex
	snapshot    *bbolt.Tx // frozen read view, captured at Begin
	readVersion int64
	closed      bool
	cancelled   bool
	committed   bool

	// overlay holds this attempt's pending mutations, applied on top of the
	// snapshot for read-your-writes. Keyed by string(key) for point ops;
	// clearRanges is scanned separately since a range clear has no single key.
	overlay     map[string]*pendingOp
	clearRanges []keyRange
	writeOrder  []string // insertion order, for deterministic conflict-range reporting

	readConflicts  []keyRange
	writeConflicts []keyRange

	committedVersion int64

	versionstampToken [10]byte
	pendingWatches    []*pendingWatch

	idempotentOnly bool // true until a non-idempotent mutation is registered
}

type pendingWatch struct {
	key      []byte
	baseline []byte
	absent   bool
	ch       chan error
}

func (t *transaction) reseedToken() {
	var tok [10]byte
	_, _ = rand.Read(tok[:])
	t.versionstampToken = tok
	t.committedVersion = -1
}

func (t *transaction) VersionstampToken() [10]byte { return t.versionstampToken }

func (t *transaction) Set(key, value []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	k := string(key)
	if _, ok := t.overlay[k]; !ok {
		t.writeOrder = append(t.writeOrder, k)
	}
	t.overlay[k] = &pendingOp{kind: opSet, value: append([]byte{}, value...)}
	t.writeConflicts = append(t.writeConflicts, pointRange(key))
}

func (t *transaction) Clear(key []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	k := string(key)
	if _, ok := t.overlay[k]; !ok {
		t.writeOrder = append(t.writeOrder, k)
	}
	t.overlay[k] = &pendingOp{kind: opClearKey}
	t.writeConflicts = append(t.writeConflicts, pointRange(key))
}

func (t *transaction) ClearRange(begin, end []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.clearRanges = append(t.clearRanges, keyRange{begin: append([]byte{}, begin...), end: append([]byte{}, end...)})
	t.writeConflicts = append(t.writeConflicts, keyRange{begin: begin, end: end})
}

func (t *transaction) AddReadConflictRange(begin, end []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.readConflicts = append(t.readConflicts, keyRange{begin: append([]byte{}, begin...), end: append([]byte{}, end...)})
}

func (t *transaction) AddWriteConflictRange(begin, end []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.writeConflicts = append(t.writeConflicts, keyRange{begin: append([]byte{}, begin...), end: append([]byte{}, end...)})
}

func (t *transaction) AtomicOp(key, param []byte, kind fdbc.MutationType) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch kind {
	case fdbc.MutationBitAnd, fdbc.MutationBitOr, fdbc.MutationMin, fdbc.MutationMax, fdbc.MutationCompareAndClear:
		// Applying one of these a second time leaves the same result.
	default:
		// ADD, XOR, append and the versionstamped kinds change the result
		// again when another copy of the same mutation lands twice.
		t.idempotentOnly = false
	}
	cur := t.rawGetLocked(key)
	next := applyAtomic(kind, cur, param)
	k := string(key)
	if _, ok := t.overlay[k]; !ok {
		t.writeOrder = append(t.writeOrder, k)
	}
	t.overlay[k] = &pendingOp{kind: opSet, value: next}
	t.writeConflicts = append(t.writeConflicts, pointRange(key))
}

// rawGetLocked reads the current value (overlay-aware) without adding a read
// conflict range; used internally by atomics, which read-modify-write against
// whatever is already staged.
func (t *transaction) rawGetLocked(key []byte) []byte {
	if op, ok := t.overlay[string(key)]; ok {
		if op.kind == opSet {
			return op.value
		}
		return nil
	}
	v := bucketGet(t.snapshot, key)
	return v
}

func (t *transaction) Get(ctx context.Context, key []byte, snapshot bool) fdbc.Future {
	t.mu.Lock()
	if !snapshot {
		t.readConflicts = append(t.readConflicts, pointRange(key))
	}
	var val []byte
	var found bool
	if op, ok := t.overlay[string(key)]; ok {
		if op.kind == opSet {
			val, found = op.value, true
		} else {
			found = false
		}
	} else {
		v := bucketGet(t.snapshot, key)
		val, found = v, v != nil
	}
	t.mu.Unlock()
	if !found {
		return immediateFuture(nil, nil)
	}
	return immediateFuture(append([]byte{}, val...), nil)
}

func (t *transaction) GetKey(ctx context.Context, sel fdbc.KeySelector, snapshot bool) fdbc.Future {
	t.mu.Lock()
	keys := t.sortedKeysLocked()
	resolved := resolveSelector(keys, sel)
	if !snapshot {
		// Resolving a selector conflicts with any write that would change
		// the resolution; approximate with a conflict range spanning the
		// reference key and the resolved key.
		lo, hi := sel.Key, resolved
		if bytes.Compare(hi, lo) < 0 {
			lo, hi = hi, lo
		}
		t.readConflicts = append(t.readConflicts, keyRange{begin: lo, end: append(append([]byte{}, hi...), 0x00)})
	}
	t.mu.Unlock()
	return immediateFuture(resolved, nil)
}

func (t *transaction) GetRange(ctx context.Context, begin, end fdbc.KeySelector, limit int, targetBytes int, mode fdbc.StreamingMode, reverse bool, snapshot bool) fdbc.Future {
	t.mu.Lock()
	keys := t.sortedKeysLocked()
	b := resolveSelector(keys, begin)
	e := resolveSelector(keys, end)
	if bytes.Compare(b, e) > 0 {
		b, e = e, b
	}
	if !snapshot {
		t.readConflicts = append(t.readConflicts, keyRange{begin: b, end: e})
	}
	var out []fdbc.KeyValue
	for _, k := range keys {
		kb := []byte(k)
		if bytes.Compare(kb, b) < 0 || bytes.Compare(kb, e) >= 0 {
			continue
		}
		v := t.viewGetLocked(kb)
		if v == nil {
			continue
		}
		out = append(out, fdbc.KeyValue{Key: kb, Value: v})
	}
	if reverse {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	more := false
	if limit > 0 && len(out) > limit {
		out = out[:limit]
		more = true
	}
	t.mu.Unlock()
	return immediateFuture(fdbc.RangeResult{KVs: out, More: more}, nil)
}

// sortedKeysLocked returns the union of snapshot keys and overlay keys, in
// order, with cleared keys/ranges removed. Callers must hold t.mu.
func (t *transaction) sortedKeysLocked() []string {
	set := map[string]bool{}
	_ = t.snapshot.Bucket(dataBucket).ForEach(func(k, _ []byte) error {
		set[string(k)] = true
		return nil
	})
	for k, op := range t.overlay {
		if op.kind == opSet {
			set[k] = true
		} else {
			delete(set, k)
		}
	}
	for k := range set {
		kb := []byte(k)
		for _, cr := range t.clearRanges {
			if bytes.Compare(kb, cr.begin) >= 0 && bytes.Compare(kb, cr.end) < 0 {
				if op, ok := t.overlay[k]; !ok || op.kind != opSet {
					delete(set, k)
				}
			}
		}
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (t *transaction) viewGetLocked(key []byte) []byte {
	if op, ok := t.overlay[string(key)]; ok {
		if op.kind == opSet {
			return op.value
		}
		return nil
	}
	return bucketGet(t.snapshot, key)
}

func (t *transaction) GetReadVersion(ctx context.Context) fdbc.Future {
	return immediateFuture(t.readVersion, nil)
}

func (t *transaction) SetReadVersion(version int64) {
	t.mu.Lock()
	t.readVersion = version
	t.mu.Unlock()
}

func (t *transaction) GetCommittedVersion() (int64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.committedVersion, nil
}

func (t *transaction) GetApproximateSize(ctx context.Context) fdbc.Future {
	t.mu.Lock()
	defer t.mu.Unlock()
	var n int64
	for _, op := range t.overlay {
		if op.kind == opSet {
			n += int64(len(op.value))
		}
	}
	return immediateFuture(n, nil)
}

func (t *transaction) GetAddressesForKey(ctx context.Context, key []byte) fdbc.Future {
	return immediateFuture([]string{"127.0.0.1:4500"}, nil)
}

func (t *transaction) GetEstimatedRangeSizeBytes(ctx context.Context, begin, end []byte) fdbc.Future {
	t.mu.Lock()
	keys := t.sortedKeysLocked()
	t.mu.Unlock()
	var n int64
	for _, k := range keys {
		kb := []byte(k)
		if bytes.Compare(kb, begin) >= 0 && bytes.Compare(kb, end) < 0 {
			n += int64(len(kb)) + int64(len(t.viewGetLocked(kb)))
		}
	}
	return immediateFuture(n, nil)
}

func (t *transaction) GetRangeSplitPoints(ctx context.Context, begin, end []byte, chunkSize int64) fdbc.Future {
	t.mu.Lock()
	keys := t.sortedKeysLocked()
	t.mu.Unlock()
	var points [][]byte
	var acc int64
	for _, k := range keys {
		kb := []byte(k)
		if bytes.Compare(kb, begin) < 0 || bytes.Compare(kb, end) >= 0 {
			continue
		}
		acc += int64(len(kb))
		if acc >= chunkSize {
			points = append(points, append([]byte{}, kb...))
			acc = 0
		}
	}
	return immediateFuture(points, nil)
}

func (t *transaction) GetVersionstamp() fdbc.Future {
	return &deferredVersionstampFuture{tx: t}
}

func (t *transaction) GetMetadataVersionKey(ctx context.Context, scope []byte) fdbc.Future {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := append(append([]byte{0xff, '/', 'm', 'e', 't', 'a', 'd', 'a', 't', 'a', 'V', 'e', 'r', 's', 'i', 'o', 'n'}), scope...)
	if _, touched := t.overlay[string(key)]; touched {
		return immediateFuture(nil, errMetadataVersionUnknown)
	}
	v := bucketGet(t.snapshot, key)
	return immediateFuture(v, nil)
}

func (t *transaction) Watch(key []byte) fdbc.Future {
	t.mu.Lock()
	baseline := t.viewGetLocked(key)
	absent := baseline == nil
	ch := make(chan error, 1)
	t.pendingWatches = append(t.pendingWatches, &pendingWatch{
		key:      append([]byte{}, key...),
		baseline: append([]byte{}, baseline...),
		absent:   absent,
		ch:       ch,
	})
	t.mu.Unlock()
	return &watchFuture{ch: ch}
}

func (t *transaction) SetOption(fdbc.Option, []byte) error { return nil }

func (t *transaction) Commit(ctx context.Context) fdbc.Future {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancelled {
		return immediateFuture(nil, fdbc.NewError(fdbc.CodeTransactionCancelled, "transaction is cancelled"))
	}
	if t.committed {
		return immediateFuture(nil, fdbc.NewError(fdbc.CodeOperationNotAllowed, "already committed"))
	}

	t.db.mu.Lock()
	defer t.db.mu.Unlock()

	for _, rec := range t.db.history {
		if rec.version <= t.readVersion {
			continue
		}
		for _, rc := range t.readConflicts {
			for _, wc := range rec.writes {
				if rc.overlaps(wc) {
					return immediateFuture(nil, fdbc.NewError(fdbc.CodeNotCommitted, "conflicting writes detected"))
				}
			}
		}
	}

	btx, err := t.db.bdb.Begin(true)
	if err != nil {
		return immediateFuture(nil, fmt.Errorf("memdriver: begin commit: %w", err))
	}
	b := btx.Bucket(dataBucket)

	newVersion := t.db.version + 1
	var stamp [10]byte
	binaryPutUint64(stamp[:8], uint64(newVersion))
	// order within the transaction: always 0 here, since memdriver applies
	// the whole attempt as a single logical write.

	touched := map[string][]byte{} // key -> new value (nil = deleted), for watch evaluation

	for _, cr := range t.clearRanges {
		c := b.Cursor()
		var toDelete [][]byte
		for k, _ := c.Seek(cr.begin); k != nil && bytes.Compare(k, cr.end) < 0; k, _ = c.Next() {
			toDelete = append(toDelete, append([]byte{}, k...))
		}
		for _, k := range toDelete {
			_ = b.Delete(k)
			touched[string(k)] = nil
		}
	}
	for _, k := range t.writeOrder {
		op := t.overlay[k]
		key := []byte(k)
		key = substituteVersionstamp(key, t.versionstampToken, stamp)
		switch op.kind {
		case opSet:
			val := substituteVersionstamp(op.value, t.versionstampToken, stamp)
			_ = b.Put(key, val)
			touched[string(key)] = val
		case opClearKey:
			_ = b.Delete(key)
			touched[string(key)] = nil
		}
	}

	if err := btx.Commit(); err != nil {
		return immediateFuture(nil, fmt.Errorf("memdriver: commit: %w", err))
	}

	t.db.version = newVersion
	var writes []keyRange
	for _, wc := range t.writeConflicts {
		writes = append(writes, wc)
	}
	t.db.history = append(t.db.history, commitRecord{version: newVersion, writes: writes})

	t.committed = true
	t.committedVersion = newVersion

	for _, pw := range t.pendingWatches {
		t.db.registerAndCheckWatch(pw)
	}
	t.db.fireWatches(touched)

	return immediateFuture(nil, nil)
}

func (t *transaction) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	_ = t.snapshot.Rollback()
	t.db.mu.Lock()
	rv := t.db.version
	t.db.mu.Unlock()
	btx, _ := t.db.bdb.Begin(false)
	t.snapshot = btx
	t.readVersion = rv
	t.overlay = map[string]*pendingOp{}
	t.clearRanges = nil
	t.writeOrder = nil
	t.readConflicts = nil
	t.writeConflicts = nil
	t.committed = false
	t.cancelled = false
	for _, pw := range t.pendingWatches {
		pw.ch <- fdbc.NewError(fdbc.CodeTransactionCancelledTask, "owning transaction was reset before commit")
	}
	t.pendingWatches = nil
	t.idempotentOnly = true
	t.reseedToken()
}

func (t *transaction) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelled = true
	for _, pw := range t.pendingWatches {
		pw.ch <- fdbc.NewError(fdbc.CodeTransactionCancelledTask, "owning transaction was cancelled before commit")
	}
	t.pendingWatches = nil
}

func (t *transaction) OnError(ctx context.Context, err error) fdbc.Future {
	fe, ok := fdbc.AsError(err)
	if !ok {
		return immediateFuture(nil, err)
	}
	if fe.Code == fdbc.CodeCommitUnknownResult {
		t.mu.Lock()
		idem := t.idempotentOnly
		t.mu.Unlock()
		if !idem {
			return immediateFuture(nil, fe)
		}
		t.Reset()
		return immediateFuture(nil, nil)
	}
	if fdbc.Fatal(fe.Code) {
		return immediateFuture(nil, fe)
	}
	if fdbc.Retryable(fe.Code) {
		t.Reset()
		return immediateFuture(nil, nil)
	}
	return immediateFuture(nil, fe)
}

func (t *transaction) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.closed = true
	if !t.committed {
		for _, pw := range t.pendingWatches {
			select {
			case pw.ch <- fdbc.NewError(fdbc.CodeTransactionCancelledTask, "owning transaction was closed before commit"):
			default:
			}
		}
		t.pendingWatches = nil
	}
	_ = t.snapshot.Rollback()
}

func bucketGet(tx *bbolt.Tx, key []byte) []byte {
	b := tx.Bucket(dataBucket)
	v := b.Get(key)
	if v == nil {
		return nil
	}
	return append([]byte{}, v...)
}

func binaryPutUint64(dst []byte, v uint64) {
	for i := 0; i < 8; i++ {
		dst[7-i] = byte(v)
		v >>= 8
	}
}

var errMetadataVersionUnknown = fdbc.NewError(fdbc.CodeSuccess, "metadata version unknown: key touched in this attempt")

func tempDBPath() string {
	f, err := randomTempFile()
	if err != nil {
		panic(err)
	}
	return f
}
