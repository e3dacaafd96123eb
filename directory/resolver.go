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

// Package directory resolves logical location paths to key-space prefixes
// (spec §4.9). The on-disk directory-layer schema itself is out of scope
// (spec §1's non-goals); this package defines only the consumed Resolver
// contract and the per-attempt Location that drives it.
package directory

import (
	"context"
	"errors"

	"github.com/erigontech/fdbclient/fdb"
)

// ErrNotFound is returned by a Resolver when no prefix is registered for a
// path (spec §4.9's "or none").
var ErrNotFound = errors.New("directory: path has no registered prefix")

// Resolver is the external collaborator consumed by Location: given a
// transaction attempt and a path, it returns the byte-string prefix backing
// that logical location, or ErrNotFound. Implementations may read inside tx
// to consult a directory prefix map; that read participates in tx's normal
// conflict tracking like any other.
type Resolver interface {
	Resolve(ctx context.Context, tx *fdb.Transaction, path []string) ([]byte, error)
}
