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

	"golang.org/x/sync/errgroup"

	"github.com/erigontech/fdbclient/fdbc"
	"github.com/erigontech/fdbclient/internal/intutil"
)

// StreamingMode selects the range engine's chunking policy (spec §4.5).
type StreamingMode = fdbc.StreamingMode

const (
	StreamingModeIterator = fdbc.StreamingModeIterator
	StreamingModeSmall    = fdbc.StreamingModeSmall
	StreamingModeMedium   = fdbc.StreamingModeMedium
	StreamingModeLarge    = fdbc.StreamingModeLarge
	StreamingModeSerial   = fdbc.StreamingModeSerial
	StreamingModeWantAll  = fdbc.StreamingModeWantAll
	StreamingModeExact    = fdbc.StreamingModeExact
)

// KeyValue is one row of a range read.
type KeyValue struct {
	Key   Key
	Value []byte
}

// RangeOptions configures a GetRange call (spec §4.5).
type RangeOptions struct {
	Limit       int // <= 0 means unbounded
	TargetBytes int
	Mode        StreamingMode
	Reverse     bool
}

// chunkTargetBytes picks the next chunk's byte budget per mode; iterator
// mode starts small and doubles, matching the native client's own ramp-up,
// while want-all/serial/exact use a single fixed budget instead of ramping.
func chunkTargetBytes(mode StreamingMode, chunkIndex int) int {
	switch mode {
	case StreamingModeSerial:
		return 1 << 13 // 8 KiB, one-pair-at-a-time in spirit: small fixed chunks
	case StreamingModeSmall:
		return 1 << 14
	case StreamingModeMedium:
		return 1 << 17
	case StreamingModeLarge:
		return 1 << 20
	case StreamingModeWantAll, StreamingModeExact:
		return 0 // no target: a single whole-range request
	default: // iterator: geometric ramp, 32 KiB doubling each chunk up to 1 MiB
		target := uint64(1 << 15)
		const ceiling = uint64(1 << 20)
		for i := 0; i < chunkIndex && target < ceiling; i++ {
			doubled, overflowed := intutil.SafeMul(target, 2)
			if overflowed {
				target = ceiling
				break
			}
			target = doubled
		}
		if target > ceiling {
			target = ceiling
		}
		return int(target)
	}
}

// estimatedAvgRowBytes is a conservative guess at a typical key+value pair's
// size, used only to avoid over-requesting bytes for a chunk that a small
// remaining row limit can't possibly fill.
const estimatedAvgRowBytes = 100

// capTargetForLimit shrinks a byte target to roughly cover only the rows
// still owed under a caller-supplied limit, so a `Limit: 5` query doesn't
// request a full megabyte-sized chunk on its last few rows.
func capTargetForLimit(target, remaining int) int {
	if remaining <= 0 || target <= 0 {
		return target
	}
	rowsTarget := intutil.CeilDiv(target, estimatedAvgRowBytes)
	if rowsTarget <= remaining {
		return target
	}
	return remaining * estimatedAvgRowBytes
}

// RangeQuery is a lazy, chunked sequence over (key, value) pairs bounded by
// [begin, end) (spec §4.5). Construct with Transaction.GetRange.
type RangeQuery struct {
	t    *Transaction
	opts RangeOptions

	begin, end KeySelector

	current   []KeyValue
	idx       int
	returned  int
	fetched   int // rows handed back by fetchChunk so far, including prefetched ones
	exhausted bool
	chunkIdx  int

	prefetch     *errgroup.Group
	prefetched   []KeyValue
	prefetchMore bool
}

// GetRange starts a lazy range query over [begin, end) (spec §4.5).
func (t *Transaction) GetRange(begin, end KeySelector, opts RangeOptions) *RangeQuery {
	t.markRead()
	return &RangeQuery{t: t, opts: opts, begin: begin, end: end}
}

// fetchChunk issues one native GetRange call honoring the remaining limit
// and the mode's chunk-size ramp, returning whether more data remains.
func (rq *RangeQuery) fetchChunk(ctx context.Context) ([]KeyValue, bool, error) {
	n, err := rq.t.nativeOrErr()
	if err != nil {
		return nil, false, err
	}
	remaining := rq.opts.Limit
	if remaining > 0 {
		remaining -= rq.fetched
		if remaining <= 0 {
			return nil, false, nil
		}
	}
	target := rq.opts.TargetBytes
	if target == 0 {
		target = chunkTargetBytes(rq.opts.Mode, rq.chunkIdx)
		target = capTargetForLimit(target, remaining)
	}
	rq.chunkIdx++

	fut := n.GetRange(ctx, rq.begin.toNative(), rq.end.toNative(), remaining, target, rq.opts.Mode, rq.opts.Reverse, rq.t.snapshot)
	release := rq.t.handle.Track()
	defer release()
	v, err := fut.Get(ctx)
	if err != nil {
		return nil, false, wrapNative(err)
	}
	rr := v.(fdbc.RangeResult)
	kvs := make([]KeyValue, len(rr.KVs))
	for i, kv := range rr.KVs {
		kvs[i] = KeyValue{Key: kv.Key, Value: kv.Value}
	}
	rq.fetched += len(kvs)

	if len(kvs) > 0 {
		// Rewrite the moving selector to just past the last row returned,
		// preserving the fixed end (forward) or begin (reverse) selector and
		// the remaining limit via rq.fetched (spec §9).
		last := kvs[len(kvs)-1]
		if rq.opts.Reverse {
			rq.end = FirstGreaterOrEqual(last.Key)
		} else {
			rq.begin = FirstGreaterThan(last.Key)
		}
	}
	rq.t.db.metrics.RangeChunksTotal.Inc()
	return kvs, rr.More, nil
}

// prefetchNext kicks off the next chunk's fetch in the background, bounded
// by an errgroup so a caller that stops iterating early never leaks the
// goroutine past Wait/the query going out of scope.
func (rq *RangeQuery) prefetchNext(ctx context.Context) {
	if rq.exhausted {
		return
	}
	g, gctx := errgroup.WithContext(ctx)
	rq.prefetch = g
	g.Go(func() error {
		kvs, more, err := rq.fetchChunk(gctx)
		rq.prefetched = kvs
		rq.prefetchMore = more
		return err
	})
}

// Next advances to the next (key, value) pair, fetching additional chunks
// as needed. It returns (kv, true, nil) while data remains, and (_, false,
// nil) once the range is exhausted.
func (rq *RangeQuery) Next(ctx context.Context) (KeyValue, bool, error) {
	for rq.idx >= len(rq.current) {
		if rq.exhausted {
			return KeyValue{}, false, nil
		}
		var kvs []KeyValue
		var more bool
		var err error
		if rq.prefetch != nil {
			err = rq.prefetch.Wait()
			kvs, more = rq.prefetched, rq.prefetchMore
			rq.prefetch = nil
			rq.prefetched = nil
		} else {
			kvs, more, err = rq.fetchChunk(ctx)
		}
		if err != nil {
			return KeyValue{}, false, err
		}
		rq.current = kvs
		rq.idx = 0
		if len(kvs) == 0 || !more {
			rq.exhausted = true
		} else {
			rq.prefetchNext(ctx)
		}
		if len(kvs) == 0 {
			return KeyValue{}, false, nil
		}
	}
	kv := rq.current[rq.idx]
	rq.idx++
	rq.returned++
	return kv, true, nil
}

// Collect drains the entire range query into a slice. Only safe for bounded
// ranges or a caller-supplied limit; an unbounded want-all query over an
// unbounded range never returns.
func (rq *RangeQuery) Collect(ctx context.Context) ([]KeyValue, error) {
	var out []KeyValue
	for {
		kv, ok, err := rq.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, kv)
	}
}
