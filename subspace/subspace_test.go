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

package subspace

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/erigontech/fdbclient/tuple"
)

func TestPackUnpackRoundTrip(t *testing.T) {
	s := FromBytes([]byte("users/"))
	key, err := s.Pack(tuple.Tuple{"alice", int64(30)})
	require.NoError(t, err)
	require.True(t, s.Contains(key))

	tup, err := s.Unpack(key)
	require.NoError(t, err)
	require.Equal(t, tuple.Tuple{"alice", int64(30)}, tup)
}

func TestUnpackForeignKeyFails(t *testing.T) {
	s := FromBytes([]byte("users/"))
	_, err := s.Unpack([]byte("other/alice"))
	require.ErrorIs(t, err, ErrForeignKey)
}

func TestSubRespectsParentPrefix(t *testing.T) {
	parent := FromBytes([]byte("app/"))
	child, err := parent.Sub(tuple.Tuple{"users"})
	require.NoError(t, err)
	require.True(t, child.Contains(child.AppendBytes(nil)))

	key, err := child.Pack(tuple.Tuple{"alice"})
	require.NoError(t, err)
	require.True(t, parent.Contains(key))
	require.True(t, child.Contains(key))
}

func TestRangeCoversAllChildKeys(t *testing.T) {
	s := FromBytes([]byte("ns/"))
	begin, end := s.Range()

	k1, _ := s.Pack(tuple.Tuple{"a"})
	k2, _ := s.Pack(tuple.Tuple{"z"})
	require.True(t, string(begin) <= string(k1) && string(k1) < string(end))
	require.True(t, string(begin) <= string(k2) && string(k2) < string(end))
}

func TestTypedSubspaceEnforcesArity(t *testing.T) {
	base := FromBytes([]byte("users/"))
	users := NewTyped(base, 1)

	key, err := users.Key("alice")
	require.NoError(t, err)

	_, err = users.Key("alice", "extra")
	require.Error(t, err)

	tup, err := users.Unpack(key)
	require.NoError(t, err)
	require.Equal(t, tuple.Tuple{"alice"}, tup)
}
