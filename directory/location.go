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

package directory

import (
	"context"
	"strings"
	"sync"

	"github.com/google/btree"
	"golang.org/x/sync/singleflight"

	"github.com/erigontech/fdbclient/fdb"
	"github.com/erigontech/fdbclient/subspace"
)

// pathSeparator joins path components into one cache/singleflight key. 0x00
// sorts below every path component byte a caller would plausibly use, so a
// parent path's entry always sorts immediately before its children's in the
// cache tree.
const pathSeparator = "\x00"

func joinPath(path []string) string {
	return strings.Join(path, pathSeparator)
}

type cacheEntry struct {
	path   string
	prefix []byte
}

func lessCacheEntry(a, b cacheEntry) bool { return a.path < b.path }

// Location is a lazy reference to a resolved Subspace (spec §4.9): "where"
// data lives, described as a path of logical components. Resolution is
// re-run every attempt — a Location never remembers a prefix across
// attempts, only within the one currently running.
type Location struct {
	resolver Resolver
	path     []string

	mu        sync.Mutex
	attemptOf *fdb.Transaction
	cache     *btree.BTreeG[cacheEntry]
	group     singleflight.Group
}

// New builds a Location over resolver for the given path components.
func New(resolver Resolver, path ...string) *Location {
	return &Location{resolver: resolver, path: append([]string{}, path...)}
}

// Child returns a new Location extending this one's path, sharing the same
// resolver and per-attempt cache.
func (l *Location) Child(component string) *Location {
	l.mu.Lock()
	cache, attemptOf := l.cache, l.attemptOf
	l.mu.Unlock()
	return &Location{
		resolver:  l.resolver,
		path:      append(append([]string{}, l.path...), component),
		cache:     cache,
		attemptOf: attemptOf,
	}
}

// Resolve returns the Subspace this Location names for the attempt
// underlying tx, consulting (and populating) the per-attempt cache first.
// Concurrent Resolve calls for the same path within one attempt collapse
// into a single resolver invocation.
func (l *Location) Resolve(ctx context.Context, tx *fdb.Transaction) (subspace.Subspace, error) {
	l.mu.Lock()
	if l.attemptOf != tx {
		// A new attempt: spec §4.9 forbids carrying a resolved prefix across
		// attempts, so the cache starts empty again.
		l.attemptOf = tx
		l.cache = btree.NewG[cacheEntry](32, lessCacheEntry)
		l.group = singleflight.Group{}
	}
	cache := l.cache
	group := &l.group
	l.mu.Unlock()

	key := joinPath(l.path)

	if prefix, ok := lookupCache(cache, key); ok {
		return subspace.FromBytes(prefix), nil
	}

	v, err, _ := group.Do(key, func() (any, error) {
		if prefix, ok := lookupCache(cache, key); ok {
			return prefix, nil
		}
		prefix, err := l.resolver.Resolve(ctx, tx, l.path)
		if err != nil {
			return nil, err
		}
		l.mu.Lock()
		cache.ReplaceOrInsert(cacheEntry{path: key, prefix: prefix})
		l.mu.Unlock()
		return prefix, nil
	})
	if err != nil {
		return subspace.Subspace{}, err
	}
	return subspace.FromBytes(v.([]byte)), nil
}

// lookupCache returns an exact cached prefix for key, or the cached prefix
// of the longest registered ancestor path of key (e.g. a cached "a\x00b"
// entry satisfies a lookup for "a\x00b\x00c").
func lookupCache(cache *btree.BTreeG[cacheEntry], key string) ([]byte, bool) {
	if cache == nil {
		return nil, false
	}
	if e, ok := cache.Get(cacheEntry{path: key}); ok {
		return e.prefix, true
	}
	var found []byte
	var ok bool
	cache.Descend(func(e cacheEntry) bool {
		if e.path >= key {
			return true // keep descending past entries not below key
		}
		if strings.HasPrefix(key, e.path+pathSeparator) {
			found, ok = e.prefix, true
			return false
		}
		return true
	})
	return found, ok
}
