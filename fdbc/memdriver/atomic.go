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

package memdriver

import (
	"bytes"

	"github.com/erigontech/fdbclient/fdbc"
)

// applyAtomic implements the mutation semantics of spec §4.4 over
// little-endian integers, matching the native store's definition
// (wraparound on overflow, zero-extension of a missing key to param's
// length).
func applyAtomic(kind fdbc.MutationType, cur, param []byte) []byte {
	switch kind {
	case fdbc.MutationAdd:
		return addLE(zeroExtend(cur, len(param)), param)
	case fdbc.MutationBitAnd:
		return bitwise(zeroExtend(cur, len(param)), param, func(a, b byte) byte { return a & b })
	case fdbc.MutationBitOr:
		return bitwise(zeroExtend(cur, len(param)), param, func(a, b byte) byte { return a | b })
	case fdbc.MutationBitXor:
		return bitwise(zeroExtend(cur, len(param)), param, func(a, b byte) byte { return a ^ b })
	case fdbc.MutationMin:
		if cur == nil {
			return append([]byte{}, param...)
		}
		if bytes.Compare(leToBE(cur), leToBE(param)) <= 0 {
			return cur
		}
		return append([]byte{}, param...)
	case fdbc.MutationMax:
		if cur == nil {
			return append([]byte{}, param...)
		}
		if bytes.Compare(leToBE(cur), leToBE(param)) >= 0 {
			return cur
		}
		return append([]byte{}, param...)
	case fdbc.MutationCompareAndClear:
		if bytes.Equal(cur, param) {
			return nil
		}
		return cur
	case fdbc.MutationAppendIfFits:
		const maxValueSize = 100_000
		if cur == nil {
			return append([]byte{}, param...)
		}
		if len(cur)+len(param) > maxValueSize {
			return cur
		}
		return append(append([]byte{}, cur...), param...)
	case fdbc.MutationVersionstampedValue, fdbc.MutationVersionstampedKey, fdbc.MutationSetVersionstampedKeyFixed:
		// The placeholder substitution happens later, at commit, against
		// the raw bytes; at registration time we just stage param as-is.
		return append([]byte{}, param...)
	default:
		return cur
	}
}

func zeroExtend(b []byte, n int) []byte {
	if b == nil {
		return make([]byte, n)
	}
	if len(b) >= n {
		return b
	}
	out := make([]byte, n)
	copy(out, b)
	return out
}

func addLE(a, b []byte) []byte {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	out := make([]byte, n)
	var carry uint16
	for i := 0; i < n; i++ {
		var av, bv byte
		if i < len(a) {
			av = a[i]
		}
		if i < len(b) {
			bv = b[i]
		}
		sum := uint16(av) + uint16(bv) + carry
		out[i] = byte(sum)
		carry = sum >> 8
	}
	return out
}

func bitwise(a, b []byte, f func(a, b byte) byte) []byte {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		out[i] = f(a[i], b[i])
	}
	return out
}

// leToBE reverses a little-endian byte slice for magnitude comparison.
func leToBE(b []byte) []byte {
	out := make([]byte, len(b))
	for i, v := range b {
		out[len(b)-1-i] = v
	}
	return out
}

// substituteVersionstamp replaces the 10-byte incomplete-stamp placeholder
// (the first place token appears literally in buf) with the concrete stamp, mirroring
// the server-side substitution spec §3/§6 describe for MutationVersionstampedKey
// / MutationVersionstampedValue. Buffers that do not contain the token pass
// through untouched.
func substituteVersionstamp(buf []byte, token [10]byte, stamp [10]byte) []byte {
	idx := bytes.Index(buf, token[:])
	if idx < 0 {
		return buf
	}
	out := append([]byte{}, buf...)
	copy(out[idx:idx+10], stamp[:])
	return out
}
