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

package directory_test

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/erigontech/fdbclient/directory"
	"github.com/erigontech/fdbclient/fdb"
	"github.com/erigontech/fdbclient/fdbc/memdriver"
)

type countingResolver struct {
	calls int64
	byPath map[string][]byte
}

func (r *countingResolver) Resolve(ctx context.Context, tx *fdb.Transaction, path []string) ([]byte, error) {
	atomic.AddInt64(&r.calls, 1)
	key := ""
	for _, p := range path {
		key += "/" + p
	}
	if v, ok := r.byPath[key]; ok {
		return v, nil
	}
	return nil, directory.ErrNotFound
}

func openTestDatabase(t *testing.T) *fdb.Database {
	t.Helper()
	db, err := fdb.Open(memdriver.NewDriver(), ":memory:", fdb.DefaultDatabaseOptions())
	require.NoError(t, err)
	t.Cleanup(db.Close)
	return db
}

func TestLocationResolvesAndCachesWithinAttempt(t *testing.T) {
	db := openTestDatabase(t)
	ctx := context.Background()

	resolver := &countingResolver{byPath: map[string][]byte{"/app/users": {0x01, 0x02}}}
	loc := directory.New(resolver, "app", "users")

	_, err := fdb.Write(ctx, db, func(tx *fdb.Transaction) (any, error) {
		s1, err := loc.Resolve(ctx, tx)
		if err != nil {
			return nil, err
		}
		s2, err := loc.Resolve(ctx, tx)
		if err != nil {
			return nil, err
		}
		require.Equal(t, s1.Prefix(), s2.Prefix())
		return nil, nil
	})
	require.NoError(t, err)
	require.EqualValues(t, 1, resolver.calls)
}

func TestLocationReresolvesOnNewAttempt(t *testing.T) {
	db := openTestDatabase(t)
	ctx := context.Background()

	resolver := &countingResolver{byPath: map[string][]byte{"/x": {0xaa}}}
	loc := directory.New(resolver, "x")

	for i := 0; i < 2; i++ {
		_, err := fdb.Write(ctx, db, func(tx *fdb.Transaction) (any, error) {
			_, err := loc.Resolve(ctx, tx)
			return nil, err
		})
		require.NoError(t, err)
	}
	require.EqualValues(t, 2, resolver.calls)
}

func TestLocationResolveNotFound(t *testing.T) {
	db := openTestDatabase(t)
	ctx := context.Background()

	resolver := &countingResolver{byPath: map[string][]byte{}}
	loc := directory.New(resolver, "missing")

	_, err := fdb.Write(ctx, db, func(tx *fdb.Transaction) (any, error) {
		_, err := loc.Resolve(ctx, tx)
		return nil, err
	})
	require.ErrorIs(t, err, directory.ErrNotFound)
}
