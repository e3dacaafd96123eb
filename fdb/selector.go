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

import "github.com/erigontech/fdbclient/fdbc"

// KeySelector is the caller-facing triple (reference key, or-equal flag,
// offset) from spec §3: it resolves to the key that is the n-th key to the
// right of the largest key satisfying the reference, where n is Offset.
//
// The four named forms encode as:
//
//	FirstGreaterOrEqual(k) = (k, false, 1)  // last key <  k, offset 1
//	FirstGreaterThan(k)    = (k, true,  1)  // last key <= k, offset 1
//	LastLessOrEqual(k)     = (k, true,  0)  // last key <= k, offset 0
//	LastLessThan(k)        = (k, false, 0)  // last key <  k, offset 0
type KeySelector struct {
	Key     Key
	OrEqual bool
	Offset  int32
}

// FirstGreaterOrEqual selects the smallest key >= k.
func FirstGreaterOrEqual(k Key) KeySelector { return KeySelector{Key: k, OrEqual: false, Offset: 1} }

// FirstGreaterThan selects the smallest key > k.
func FirstGreaterThan(k Key) KeySelector { return KeySelector{Key: k, OrEqual: true, Offset: 1} }

// LastLessOrEqual selects the largest key <= k.
func LastLessOrEqual(k Key) KeySelector { return KeySelector{Key: k, OrEqual: true, Offset: 0} }

// LastLessThan selects the largest key < k.
func LastLessThan(k Key) KeySelector { return KeySelector{Key: k, OrEqual: false, Offset: 0} }

// Add shifts the selector by n additional keys to the right (n may be
// negative).
func (s KeySelector) Add(n int32) KeySelector {
	s.Offset += n
	return s
}

func (s KeySelector) toNative() fdbc.KeySelector {
	return fdbc.KeySelector{Key: s.Key, OrEqual: s.OrEqual, Offset: s.Offset}
}
