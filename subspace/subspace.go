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

// Package subspace implements the prefix-partitioned key range described in
// spec §2: a byte-string prefix plus the tuple layer, giving every key under
// a Subspace both a common namespace and a defined sort range.
package subspace

import (
	"bytes"
	"fmt"

	"github.com/erigontech/fdbclient/tuple"
)

// ErrForeignKey is returned by Unpack when the candidate key does not begin
// with the subspace's prefix.
var ErrForeignKey = fmt.Errorf("subspace: key does not belong to this subspace")

// Subspace is a prefix, optionally extended by a packed tuple, under which
// related keys live. Two Subspaces with equal Prefix() bytes are
// interchangeable, though the type is not comparable with == because it holds
// a byte slice. It is safe for concurrent read use.
type Subspace struct {
	prefix []byte
}

// FromBytes wraps a raw byte prefix with no tuple component.
func FromBytes(prefix []byte) Subspace {
	return Subspace{prefix: append([]byte{}, prefix...)}
}

// FromTuple builds a subspace whose prefix is t packed under the given raw
// byte prefix (commonly empty, or a parent subspace's own prefix).
func FromTuple(prefix []byte, t tuple.Tuple) (Subspace, error) {
	packed, err := t.Pack()
	if err != nil {
		return Subspace{}, fmt.Errorf("subspace: pack prefix tuple: %w", err)
	}
	return Subspace{prefix: append(append([]byte{}, prefix...), packed...)}, nil
}

// Sub returns a child subspace formed by appending t, packed, to this
// subspace's prefix (spec §2's directory-less nesting idiom).
func (s Subspace) Sub(t tuple.Tuple) (Subspace, error) {
	packed, err := t.Pack()
	if err != nil {
		return Subspace{}, fmt.Errorf("subspace: pack child tuple: %w", err)
	}
	return Subspace{prefix: append(append([]byte{}, s.prefix...), packed...)}, nil
}

// Prefix returns the raw bytes every key in this subspace begins with.
func (s Subspace) Prefix() []byte { return append([]byte{}, s.prefix...) }

// Contains reports whether key begins with this subspace's prefix.
func (s Subspace) Contains(key []byte) bool {
	return bytes.HasPrefix(key, s.prefix)
}

// Pack encodes t and appends it to this subspace's prefix, producing a
// concrete key.
func (s Subspace) Pack(t tuple.Tuple) ([]byte, error) {
	packed, err := t.Pack()
	if err != nil {
		return nil, fmt.Errorf("subspace: pack: %w", err)
	}
	return append(s.Prefix(), packed...), nil
}

// AppendBytes concatenates raw bytes directly onto the prefix, bypassing the
// tuple layer; for callers building keys from a foreign encoding nested
// inside this subspace's namespace.
func (s Subspace) AppendBytes(suffix []byte) []byte {
	return append(s.Prefix(), suffix...)
}

// Unpack strips this subspace's prefix from key and decodes the remainder as
// a Tuple. It fails with ErrForeignKey if key is not actually in this
// subspace.
func (s Subspace) Unpack(key []byte) (tuple.Tuple, error) {
	if !s.Contains(key) {
		return nil, ErrForeignKey
	}
	return tuple.Unpack(key[len(s.prefix):])
}

// DecodeFirst strips the prefix and decodes only the first tuple element.
// The rest of key is left undecoded and is not returned.
func (s Subspace) DecodeFirst(key []byte) (el any, err error) {
	if !s.Contains(key) {
		return nil, ErrForeignKey
	}
	el, _, err = tuple.DecodeFirst(key[len(s.prefix):])
	return el, err
}

// DecodeLast strips the prefix and decodes only the final tuple element.
func (s Subspace) DecodeLast(key []byte) (el any, err error) {
	if !s.Contains(key) {
		return nil, ErrForeignKey
	}
	return tuple.DecodeLast(key[len(s.prefix):])
}

// Range returns the [begin, end) byte range that covers every key in this
// subspace: the prefix itself through the prefix followed by 0xff (spec §2's
// "PrefixRange").
func (s Subspace) Range() (begin, end []byte) {
	begin = s.Prefix()
	end = append(s.Prefix(), 0xff)
	return begin, end
}

// RangeOf returns the [begin, end) range covering every key whose tuple
// strictly extends t: pack(t)+0x00 through pack(t)+0xff. The key that packs
// t alone sorts before begin and is not included.
func (s Subspace) RangeOf(t tuple.Tuple) (begin, end []byte, err error) {
	packed, err := t.Pack()
	if err != nil {
		return nil, nil, fmt.Errorf("subspace: pack range tuple: %w", err)
	}
	base := append(s.Prefix(), packed...)
	begin = append(append([]byte{}, base...), 0x00)
	end = append(append([]byte{}, base...), 0xff)
	return begin, end, nil
}
