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

package versionstamp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIncompleteCannotBeEncoded(t *testing.T) {
	s := NewIncomplete(0)
	require.True(t, s.Incomplete())
	_, err := s.Bytes()
	require.Error(t, err)
}

func TestResolveThenRoundTrip(t *testing.T) {
	s := NewIncomplete(7)
	resolved, err := s.Resolve(12345, 2)
	require.NoError(t, err)
	require.False(t, resolved.Incomplete())

	b, err := resolved.Bytes()
	require.NoError(t, err)
	require.Len(t, b, 12)

	back, err := Parse(b)
	require.NoError(t, err)
	require.Equal(t, resolved, back)
	require.Equal(t, uint64(12345), back.TxVersion())
	require.Equal(t, uint16(2), back.Order())
	require.Equal(t, uint16(7), back.UserVersion())
}

func TestResolveTwiceFails(t *testing.T) {
	s := NewComplete(1, 0, 0)
	_, err := s.Resolve(2, 0)
	require.Error(t, err)
}

func TestCompareOrdersByVersionThenOrderThenUser(t *testing.T) {
	a := NewComplete(1, 0, 0)
	b := NewComplete(2, 0, 0)
	require.Equal(t, -1, Compare(a, b))
	require.Equal(t, 1, Compare(b, a))

	c := NewComplete(5, 1, 0)
	d := NewComplete(5, 2, 0)
	require.Equal(t, -1, Compare(c, d))

	e := NewComplete(5, 1, 1)
	f := NewComplete(5, 1, 2)
	require.Equal(t, -1, Compare(e, f))
}

func TestStringFormIncompleteVsComplete(t *testing.T) {
	require.Equal(t, "@?", NewIncomplete(0).String())
	s := NewComplete(1, 2, 0)
	require.Equal(t, "@0000000000000001-0002", s.String())
}

func TestTokenDefaultsToAllOnes(t *testing.T) {
	s := NewIncomplete(3)
	tok := s.Token()
	var want [10]byte
	for i := range want {
		want[i] = 0xff
	}
	require.Equal(t, want, tok)
}

func TestNewIncompleteWithTokenRoundTripsThroughToken(t *testing.T) {
	var tok [10]byte
	for i := range tok {
		tok[i] = byte(i + 1)
	}
	s := NewIncompleteWithToken(tok, 9)
	require.Equal(t, tok, s.Token())
	require.Equal(t, uint16(9), s.UserVersion())
	require.True(t, s.Incomplete())
}
