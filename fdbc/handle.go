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

import "sync"

// Handle owns a single native Transaction and gives the rest of the core a
// place to hang close-idempotency and the "don't outlive your futures" rule
// (spec §4.3 / design notes: "dropping the wrapper while native futures
// borrow from it blocks until those futures complete or are cancelled").
//
// It deliberately does not know about retry semantics, commit, or anything
// above the native call boundary - that is fdb.Transaction's job. Handle
// only ever forwards to the wrapped native Transaction and tracks liveness.
type Handle struct {
	mu     sync.Mutex
	closed bool
	native Transaction

	// outstanding counts futures registered via Track whose release has not
	// yet been called. Close blocks until it reaches zero.
	outstanding sync.WaitGroup
}

// NewHandle wraps a freshly begun native transaction.
func NewHandle(native Transaction) *Handle {
	return &Handle{native: native}
}

// IsClosed reports whether Close has been called.
func (h *Handle) IsClosed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

// Close is idempotent: repeated calls after the first are no-ops. It waits
// for any in-flight futures registered via Track to finish before releasing
// the native handle.
func (h *Handle) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	h.mu.Unlock()

	h.outstanding.Wait()
	h.native.Close()
}

// Native returns the wrapped native transaction, or (nil, false) if this
// handle has already been closed.
func (h *Handle) Native() (Transaction, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, false
	}
	return h.native, true
}

// Track registers a future as in-flight against this handle and returns a
// release function the caller must invoke exactly once, whether the future
// resolved, errored, or was cancelled. Close will not return until every
// tracked future has been released.
func (h *Handle) Track() (release func()) {
	h.outstanding.Add(1)
	var once sync.Once
	return func() { once.Do(h.outstanding.Done) }
}
