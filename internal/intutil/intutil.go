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

// Package intutil collects the small integer helpers this repo's chunking
// and backoff arithmetic reach for repeatedly: overflow-checked add/multiply
// and a permissive decimal-or-hex parser for config/env overrides.
package intutil

import (
	"math/bits"
	"strconv"
)

// SafeAdd returns x+y along with whether the addition overflowed a uint64.
func SafeAdd(x, y uint64) (sum uint64, overflowed bool) {
	sum, carryOut := bits.Add64(x, y, 0)
	return sum, carryOut != 0
}

// SafeMul returns x*y along with whether the multiplication overflowed a
// uint64.
func SafeMul(x, y uint64) (product uint64, overflowed bool) {
	hi, lo := bits.Mul64(x, y)
	return lo, hi != 0
}

// CeilDiv returns ceil(x/y), or 0 if y is 0.
func CeilDiv(x, y int) int {
	if y == 0 {
		return 0
	}
	return (x + y - 1) / y
}

// ParseUint64 parses s as a decimal or 0x-prefixed hexadecimal integer. The
// empty string parses as zero, matching the permissive config-override
// convention used across this repo's environment-variable knobs.
func ParseUint64(s string) (uint64, bool) {
	if s == "" {
		return 0, true
	}
	if len(s) >= 2 && (s[:2] == "0x" || s[:2] == "0X") {
		v, err := strconv.ParseUint(s[2:], 16, 64)
		return v, err == nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	return v, err == nil
}
