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

// Package fdb implements the transactional client core: the database and
// transaction objects, the retry loop, range queries, watches, and the
// supporting context/value-check machinery described in spec §4.
package fdb

// ByteString is the slice primitive spec §3 names: an immutable view over a
// byte range that is either absent (nil), present but zero-length (empty,
// non-nil), or present and non-empty. Go's native []byte already carries
// this distinction (nil vs []byte{}), so ByteString is a named alias rather
// than a reimplementation — it exists so call sites that specifically mean
// "a key or value, with nil-vs-empty significance" read as such, distinct
// from an ordinary []byte used as scratch space.
type ByteString = []byte

// IsPresent reports whether b represents a stored value (empty or
// non-empty), as opposed to an absent key.
func IsPresent(b ByteString) bool { return b != nil }

// Clone returns an owned copy of b, safe to retain past the lifetime of
// whatever native future produced it. A nil input returns nil.
func Clone(b ByteString) ByteString {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
