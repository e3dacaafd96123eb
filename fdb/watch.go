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
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pbnjay/memory"
	"github.com/spaolacci/murmur3"

	"github.com/erigontech/fdbclient/fdbc"
	"github.com/erigontech/fdbclient/internal/intutil"
)

// watchShardCount buckets the outstanding-watch registry so the soft cap
// below is tracked per shard instead of behind one global mutex; a watched
// key's murmur3 hash picks its shard.
const watchShardCount = 64

// maxOutstandingWatchesPerGiB bounds how many concurrently outstanding
// watches this process tracks per GiB of total system memory (spec §9's
// silence on a hard limit; pbnjay/memory gives the registry a
// capacity-appropriate default instead of an arbitrary constant).
const maxOutstandingWatchesPerGiB = 4096

var (
	watchShards   [watchShardCount]int64 // atomic per-shard outstanding counts
	watchCapacity = computeWatchCapacity()
)

// watchCapacityOverrideEnv lets an operator pin the outstanding-watch cap
// directly (decimal or 0x-hex) instead of deriving it from system memory,
// for containers where the memory cgroup limit undershoots actual capacity.
const watchCapacityOverrideEnv = "FDBCLIENT_WATCH_CAPACITY"

func computeWatchCapacity() int64 {
	if raw := os.Getenv(watchCapacityOverrideEnv); raw != "" {
		if v, ok := intutil.ParseUint64(raw); ok && v > 0 {
			return int64(v)
		}
	}
	gib := memory.TotalMemory() / (1 << 30)
	if gib == 0 {
		gib = 1
	}
	return int64(gib) * maxOutstandingWatchesPerGiB
}

func watchShardFor(key []byte) int {
	return int(murmur3.Sum32(key) % watchShardCount)
}

// ErrTooManyWatches is returned when the soft, memory-derived cap on
// concurrently outstanding watches is exceeded.
var ErrTooManyWatches = errors.New("fdb: too many outstanding watches")

// Watch is a long-lived change notification tied to an external cancellation
// scope distinct from the transaction that created it (spec §3/§4.8): it
// survives only if that transaction commits.
type Watch struct {
	future fdbc.Future
	shard  int
	key    []byte

	done chan struct{}
	once sync.Once
	err  error
}

// Watch registers a watch on key, active once the owning transaction
// commits. externalScope must not be this transaction's own scope (spec
// §4.4: "a watch must use a scope other than the transaction's own").
func (t *Transaction) Watch(externalScope context.Context, key Key) (*Watch, error) {
	if externalScope == t.scope {
		return nil, ErrForeignScope
	}
	n, err := t.nativeOrErr()
	if err != nil {
		return nil, err
	}

	shard := watchShardFor(key)
	if atomic.AddInt64(&watchShards[shard], 1) > watchCapacity/watchShardCount {
		atomic.AddInt64(&watchShards[shard], -1)
		return nil, ErrTooManyWatches
	}

	fut := n.Watch(key)
	w := &Watch{future: fut, shard: shard, key: append([]byte{}, key...), done: make(chan struct{})}

	go func() {
		<-externalScope.Done()
		w.cancel(ErrTransactionCancelled)
	}()

	return w, nil
}

func (w *Watch) cancel(err error) {
	w.once.Do(func() {
		w.err = err
		w.future.Cancel()
		close(w.done)
		atomic.AddInt64(&watchShards[w.shard], -1)
	})
}

// Wait blocks until the watch fires, its external scope ends, or ctx is
// cancelled — whichever happens first.
func (w *Watch) Wait(ctx context.Context) error {
	type result struct {
		err error
	}
	resCh := make(chan result, 1)
	go func() {
		_, err := w.future.Get(ctx)
		resCh <- result{err: wrapNative(err)}
	}()

	select {
	case r := <-resCh:
		w.once.Do(func() {
			w.err = r.err
			close(w.done)
			atomic.AddInt64(&watchShards[w.shard], -1)
		})
		return r.err
	case <-w.done:
		return w.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WaitTimeout is Wait bounded by d: it returns (true, nil) on fire, (false,
// nil) on timeout, matching spec §4.8's timed-wait variant.
func (w *Watch) WaitTimeout(ctx context.Context, d time.Duration) (bool, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	err := w.Wait(timeoutCtx)
	if errors.Is(err, context.DeadlineExceeded) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Cancel requests cancellation of the watch directly, without waiting for
// its external scope.
func (w *Watch) Cancel() {
	w.cancel(fmt.Errorf("fdb: watch cancelled"))
}
