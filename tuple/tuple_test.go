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
	"bytes"
	"math/big"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/erigontech/fdbclient/versionstamp"
)

func roundTrip(t *testing.T, tup Tuple) Tuple {
	t.Helper()
	b, err := tup.Pack()
	require.NoError(t, err)
	out, err := Unpack(b)
	require.NoError(t, err)
	return out
}

func TestRoundTripScalars(t *testing.T) {
	tup := Tuple{nil, []byte("raw"), "text", int64(42), int64(-42), true, false, 3.5}
	out := roundTrip(t, tup)
	require.Equal(t, Tuple{nil, []byte("raw"), "text", int64(42), int64(-42), true, false, 3.5}, out)
}

func TestRoundTripUUIDAndVersionstamp(t *testing.T) {
	id := uuid.New()
	vs := versionstamp.NewComplete(99, 1, 0)
	tup := Tuple{id, vs}
	out := roundTrip(t, tup)
	require.Equal(t, id, out[0])
	require.Equal(t, vs, out[1])
}

func TestRoundTripNestedTuple(t *testing.T) {
	tup := Tuple{"outer", Tuple{int64(1), nil, "inner"}, int64(2)}
	out := roundTrip(t, tup)
	require.Equal(t, tup, out)
}

func TestIntegerOrderPreserved(t *testing.T) {
	values := []int64{-1 << 40, -1000, -1, 0, 1, 1000, 1 << 40}
	var packed [][]byte
	for _, v := range values {
		b, err := (Tuple{v}).Pack()
		require.NoError(t, err)
		packed = append(packed, b)
	}
	for i := 1; i < len(packed); i++ {
		require.True(t, bytes.Compare(packed[i-1], packed[i]) < 0, "index %d: %x should sort before %x", i, packed[i-1], packed[i])
	}
}

func TestBigIntBeyondInt64(t *testing.T) {
	huge := new(big.Int)
	huge.SetString("123456789012345678901234567890", 10)
	tup := Tuple{huge}
	b, err := tup.Pack()
	require.NoError(t, err)
	out, err := Unpack(b)
	require.NoError(t, err)
	gotBig, ok := out[0].(*big.Int)
	require.True(t, ok)
	require.Equal(t, 0, huge.Cmp(gotBig))

	negHuge := new(big.Int).Neg(huge)
	tup2 := Tuple{negHuge}
	b2, err := tup2.Pack()
	require.NoError(t, err)
	require.True(t, bytes.Compare(b2, b) < 0)
}

func TestByteStringOrderPreserved(t *testing.T) {
	a := Tuple{[]byte("abc")}
	b := Tuple{[]byte("abd")}
	pa, _ := a.Pack()
	pb, _ := b.Pack()
	require.True(t, bytes.Compare(pa, pb) < 0)
}

func TestFloatOrderPreserved(t *testing.T) {
	values := []float64{-100.5, -1, 0, 1, 100.5}
	var packed [][]byte
	for _, v := range values {
		b, err := (Tuple{v}).Pack()
		require.NoError(t, err)
		packed = append(packed, b)
	}
	for i := 1; i < len(packed); i++ {
		require.True(t, bytes.Compare(packed[i-1], packed[i]) < 0)
	}
}

func TestByteStringEscaping(t *testing.T) {
	raw := []byte{0x01, 0x00, 0x02}
	tup := Tuple{raw}
	out := roundTrip(t, tup)
	require.Equal(t, raw, out[0])
}

func TestDecodeFirstAndAt(t *testing.T) {
	tup := Tuple{"a", int64(1), "b"}
	b, err := tup.Pack()
	require.NoError(t, err)

	first, rest, err := DecodeFirst(b)
	require.NoError(t, err)
	require.Equal(t, "a", first)
	require.NotEmpty(t, rest)

	v, err := DecodeAt(b, 1)
	require.NoError(t, err)
	require.Equal(t, int64(1), v)

	last, err := DecodeLast(b)
	require.NoError(t, err)
	require.Equal(t, "b", last)
}

func TestMultipleIncompleteVersionstampsRejected(t *testing.T) {
	tup := Tuple{versionstamp.NewIncomplete(0), versionstamp.NewIncomplete(1)}
	_, err := tup.Pack()
	require.Error(t, err)
}
