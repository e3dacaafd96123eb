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
	"sort"

	"github.com/erigontech/fdbclient/fdbc"
)

// resolveSelector implements spec §3's key-selector resolution against a
// sorted key list: the key that is the n-th key to the right of the largest
// key satisfying the reference, where n is the offset.
func resolveSelector(sortedKeys []string, sel fdbc.KeySelector) []byte {
	n := len(sortedKeys)
	geIdx := sort.Search(n, func(i int) bool { return bytes.Compare([]byte(sortedKeys[i]), sel.Key) >= 0 })
	gtIdx := sort.Search(n, func(i int) bool { return bytes.Compare([]byte(sortedKeys[i]), sel.Key) > 0 })

	var largestIdx int
	if sel.OrEqual {
		largestIdx = gtIdx - 1 // last key <= reference
	} else {
		largestIdx = geIdx - 1 // last key < reference
	}
	pos := largestIdx + int(sel.Offset)
	if pos < 0 {
		return []byte{} // below StartOfTable
	}
	if pos >= n {
		return []byte{0xff, 0xff} // beyond EndOfTable sentinel
	}
	return []byte(sortedKeys[pos])
}
