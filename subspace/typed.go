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
	"fmt"

	"github.com/erigontech/fdbclient/tuple"
)

// Typed wraps a Subspace with a fixed key arity, catching the common mistake
// of packing a differently-shaped tuple into what is meant to be a
// single-purpose key layout (e.g. a "users" subspace keyed by exactly one
// UUID). It does not check element types, only count.
type Typed struct {
	Subspace
	arity int
}

// NewTyped fixes arity as the number of tuple elements every key packed
// through this subspace must have.
func NewTyped(s Subspace, arity int) Typed {
	return Typed{Subspace: s, arity: arity}
}

// Key packs exactly the declared arity of elements under the subspace
// prefix. It is the typed-subspace equivalent of Pack, named Key to read
// well at call sites (users.Key(id) rather than users.Pack(tuple.Tuple{id})).
func (t Typed) Key(elements ...any) ([]byte, error) {
	if len(elements) != t.arity {
		return nil, fmt.Errorf("subspace: typed subspace expects %d elements, got %d", t.arity, len(elements))
	}
	return t.Subspace.Pack(tuple.Tuple(elements))
}

// MustKey is Key, panicking on error; for call sites where the element count
// is a compile-time constant and a mismatch indicates a programming mistake.
func (t Typed) MustKey(elements ...any) []byte {
	k, err := t.Key(elements...)
	if err != nil {
		panic(err)
	}
	return k
}

// Unpack decodes key and validates it has exactly the declared arity.
func (t Typed) Unpack(key []byte) (tuple.Tuple, error) {
	tup, err := t.Subspace.Unpack(key)
	if err != nil {
		return nil, err
	}
	if len(tup) != t.arity {
		return nil, fmt.Errorf("subspace: decoded key has %d elements, typed subspace expects %d", len(tup), t.arity)
	}
	return tup, nil
}
