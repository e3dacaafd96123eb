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

// Key is a non-nil byte slice naming a single row (spec §3). Keys compare
// lexicographically.
type Key = []byte

// MIN and MAX bracket the user key-space: every key a caller constructs
// through the tuple/subspace layer falls in [MIN, MAX). The system
// key-space begins at MAX and requires OptionReadAccessToSystemKeys.
var (
	MIN = Key{0x00}
	MAX = Key{0xff}
)

// Range is a half-open [Begin, End) interval expressed as key selectors.
// GetRange takes its Begin and End as separate selector arguments, and the
// conflict-range setters take plain keys; neither accepts a Range value.
type Range struct {
	Begin KeySelector
	End   KeySelector
}

// KeyRange builds a Range from exact key boundaries using first-GE/first-GE
// selectors, i.e. [begin, end) of concrete keys.
func KeyRange(begin, end Key) Range {
	return Range{Begin: FirstGreaterOrEqual(begin), End: FirstGreaterOrEqual(end)}
}

// PrefixRange returns the Range covering every key beginning with prefix:
// [prefix, strinc(prefix)).
func PrefixRange(prefix []byte) Range {
	return Range{Begin: FirstGreaterOrEqual(prefix), End: FirstGreaterOrEqual(StrInc(prefix))}
}

// StrInc returns the smallest byte string greater than every string with b
// as a prefix: b with its trailing 0xff bytes stripped and the last
// remaining byte incremented. Panics if b is all 0xff (there is no strict
// successor prefix in that case; callers should use MAX directly).
func StrInc(b []byte) []byte {
	out := append([]byte{}, b...)
	for i := len(out) - 1; i >= 0; i-- {
		if out[i] != 0xff {
			out[i]++
			return out[:i+1]
		}
	}
	panic("fdb: StrInc of an all-0xff byte string has no successor")
}
