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

package tuple

import (
	"fmt"
	"math/big"
)

// Integers encode around a center tag (tagIntZero, 0x14) with up to 8 tags on
// either side, one per additional byte of magnitude: 0x0c is the most
// negative (8-byte two's-complement-style magnitude, bit-flipped) and 0x1c is
// the most positive. This keeps lexicographic byte order equal to numeric
// order across the full signed range the tuple layer supports, including
// magnitudes beyond int64/uint64 (arbitrary-width via math/big).
const maxIntBytes = 8

func encodeInt(v *big.Int) []byte {
	if v.Sign() == 0 {
		return []byte{tagIntZero}
	}
	mag := new(big.Int).Abs(v).Bytes() // big-endian magnitude, no leading zero
	n := len(mag)

	if v.Sign() > 0 {
		if n <= maxIntBytes {
			out := make([]byte, 0, n+1)
			out = append(out, tagIntZero+byte(n))
			return append(out, mag...)
		}
		return encodeBigPositive(mag)
	}

	if n <= maxIntBytes {
		// Negative numbers store (2^(8n) - 1 - magnitude) so that a more
		// negative number (larger magnitude) sorts before a less negative
		// one.
		comp := onesComplement(mag, n)
		out := make([]byte, 0, n+1)
		out = append(out, tagIntZero-byte(n))
		return append(out, comp...)
	}
	return encodeBigNegative(mag)
}

func onesComplement(mag []byte, n int) []byte {
	full := make([]byte, n)
	copy(full[n-len(mag):], mag)
	for i := range full {
		full[i] = ^full[i]
	}
	return full
}

// encodeBigPositive handles magnitudes wider than 8 bytes using the
// length-prefixed extension tags (0x1d for positive, 0x0b for negative),
// where the prefix byte itself records how many magnitude bytes follow.
func encodeBigPositive(mag []byte) []byte {
	n := len(mag)
	out := []byte{0x1d, byte(n)}
	return append(out, mag...)
}

func encodeBigNegative(mag []byte) []byte {
	n := len(mag)
	comp := onesComplement(mag, n)
	out := []byte{0x0b, ^byte(n)}
	return append(out, comp...)
}

func decodeInt(b []byte) (any, []byte, error) {
	tag := b[0]
	switch {
	case tag == tagIntZero:
		return int64(0), b[1:], nil
	case tag == 0x1d:
		if len(b) < 2 {
			return nil, nil, fmt.Errorf("tuple: truncated big positive int")
		}
		n := int(b[1])
		if len(b) < 2+n {
			return nil, nil, fmt.Errorf("tuple: truncated big positive int body")
		}
		v := new(big.Int).SetBytes(b[2 : 2+n])
		return bigOrInt64(v), b[2+n:], nil
	case tag == 0x0b:
		if len(b) < 2 {
			return nil, nil, fmt.Errorf("tuple: truncated big negative int")
		}
		n := int(^b[1])
		if len(b) < 2+n {
			return nil, nil, fmt.Errorf("tuple: truncated big negative int body")
		}
		comp := b[2 : 2+n]
		mag := onesComplement(comp, n)
		v := new(big.Int).Neg(new(big.Int).SetBytes(mag))
		return bigOrInt64(v), b[2+n:], nil
	case tag > tagIntZero:
		n := int(tag - tagIntZero)
		if len(b) < 1+n {
			return nil, nil, fmt.Errorf("tuple: truncated positive int")
		}
		v := new(big.Int).SetBytes(b[1 : 1+n])
		return bigOrInt64(v), b[1+n:], nil
	default: // tag < tagIntZero
		n := int(tagIntZero - tag)
		if len(b) < 1+n {
			return nil, nil, fmt.Errorf("tuple: truncated negative int")
		}
		comp := b[1 : 1+n]
		mag := onesComplement(comp, n)
		v := new(big.Int).Neg(new(big.Int).SetBytes(mag))
		return bigOrInt64(v), b[1+n:], nil
	}
}

// bigOrInt64 downgrades to int64 whenever the value fits, since callers
// overwhelmingly expect a plain Go integer back from Unpack; magnitudes
// beyond int64 stay as *big.Int.
func bigOrInt64(v *big.Int) any {
	if v.IsInt64() {
		return v.Int64()
	}
	return v
}
