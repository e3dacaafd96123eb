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

package fdb_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/erigontech/fdbclient/fdb"
	"github.com/erigontech/fdbclient/fdbc/memdriver"
)

func openTestDatabase(t *testing.T) *fdb.Database {
	t.Helper()
	db, err := fdb.Open(memdriver.NewDriver(), ":memory:", fdb.DefaultDatabaseOptions())
	require.NoError(t, err)
	t.Cleanup(db.Close)
	return db
}

func TestWriteThenReadRoundTrips(t *testing.T) {
	db := openTestDatabase(t)
	ctx := context.Background()

	_, err := fdb.Write(ctx, db, func(tx *fdb.Transaction) (any, error) {
		return nil, tx.Set(fdb.Key("hello"), []byte("world"))
	})
	require.NoError(t, err)

	v, err := fdb.Read(ctx, db, func(tx *fdb.Transaction) (any, error) {
		return tx.Get(ctx, fdb.Key("hello"))
	})
	require.NoError(t, err)
	require.Equal(t, []byte("world"), v)
}

func TestReadOnlyRejectsWrites(t *testing.T) {
	db := openTestDatabase(t)
	ctx := context.Background()

	_, err := fdb.Read(ctx, db, func(tx *fdb.Transaction) (any, error) {
		return nil, tx.Set(fdb.Key("k"), []byte("v"))
	})
	require.ErrorIs(t, err, fdb.ErrOperationNotAllowed)
}

func TestAtomicAddAccumulates(t *testing.T) {
	db := openTestDatabase(t)
	ctx := context.Background()
	key := fdb.Key("counter")

	add := func(delta int64) {
		buf := make([]byte, 8)
		for i := 0; i < 8; i++ {
			buf[i] = byte(delta >> (8 * i))
		}
		_, err := fdb.Write(ctx, db, func(tx *fdb.Transaction) (any, error) {
			return nil, tx.AtomicOp(key, buf, fdb.MutationAdd)
		})
		require.NoError(t, err)
	}
	add(1)
	add(2)
	add(3)

	v, err := fdb.Read(ctx, db, func(tx *fdb.Transaction) (any, error) {
		return tx.Get(ctx, key)
	})
	require.NoError(t, err)
	raw := v.([]byte)
	var total int64
	for i := 0; i < 8; i++ {
		total |= int64(raw[i]) << (8 * i)
	}
	require.EqualValues(t, 6, total)
}

func TestValueCheckFailureForcesRetryThenSucceeds(t *testing.T) {
	db := openTestDatabase(t)
	ctx := context.Background()

	_, err := fdb.Write(ctx, db, func(tx *fdb.Transaction) (any, error) {
		return nil, tx.Set(fdb.Key("guarded"), []byte("v1"))
	})
	require.NoError(t, err)

	attempts := 0
	_, err = fdb.Write(ctx, db, func(tx *fdb.Transaction) (any, error) {
		attempts++
		if tx.TestValueCheckFromPreviousAttempt("guard") == fdb.ValueCheckFailed {
			return nil, tx.Set(fdb.Key("guarded"), []byte("reconciled"))
		}
		tx.AddValueCheck("guard", fdb.Key("guarded"), []byte("mismatch-on-purpose"))
		return nil, nil
	})
	require.NoError(t, err)
	require.GreaterOrEqual(t, attempts, 2)

	v, err := fdb.Read(ctx, db, func(tx *fdb.Transaction) (any, error) {
		return tx.Get(ctx, fdb.Key("guarded"))
	})
	require.NoError(t, err)
	require.Equal(t, []byte("reconciled"), v)
}

func TestWatchFiresOnCommittedChange(t *testing.T) {
	db := openTestDatabase(t)
	ctx := context.Background()
	key := fdb.Key("watched")

	_, err := fdb.Write(ctx, db, func(tx *fdb.Transaction) (any, error) {
		return nil, tx.Set(key, []byte("v0"))
	})
	require.NoError(t, err)

	watchScope, cancelWatch := context.WithCancel(context.Background())
	defer cancelWatch()

	var w *fdb.Watch
	_, err = fdb.Write(ctx, db, func(tx *fdb.Transaction) (any, error) {
		var werr error
		w, werr = tx.Watch(watchScope, key)
		return nil, werr
	})
	require.NoError(t, err)

	go func() {
		time.Sleep(10 * time.Millisecond)
		_, _ = fdb.Write(ctx, db, func(tx *fdb.Transaction) (any, error) {
			return nil, tx.Set(key, []byte("v1"))
		})
	}()

	waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	require.NoError(t, w.Wait(waitCtx))
}

func TestWatchRejectsOwnScope(t *testing.T) {
	db := openTestDatabase(t)
	ctx := context.Background()

	_, err := fdb.Write(ctx, db, func(tx *fdb.Transaction) (any, error) {
		_, werr := tx.Watch(ctx, fdb.Key("k"))
		return nil, werr
	})
	require.ErrorIs(t, err, fdb.ErrForeignScope)
}

func TestGetRangeCollectsAllRows(t *testing.T) {
	db := openTestDatabase(t)
	ctx := context.Background()

	_, err := fdb.Write(ctx, db, func(tx *fdb.Transaction) (any, error) {
		for _, k := range []string{"a", "b", "c", "d"} {
			if err := tx.Set(fdb.Key(k), []byte(k)); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	require.NoError(t, err)

	rows, err := fdb.Read(ctx, db, func(tx *fdb.Transaction) (any, error) {
		rq := tx.GetRange(fdb.FirstGreaterOrEqual(fdb.Key("a")), fdb.FirstGreaterOrEqual(fdb.Key("z")), fdb.RangeOptions{})
		return rq.Collect(ctx)
	})
	require.NoError(t, err)
	kvs := rows.([]fdb.KeyValue)
	require.Len(t, kvs, 4)
	require.Equal(t, fdb.Key("a"), kvs[0].Key)
	require.Equal(t, fdb.Key("d"), kvs[3].Key)
}

func TestCreateVersionStampEmbedsToken(t *testing.T) {
	db := openTestDatabase(t)
	ctx := context.Background()

	_, err := fdb.Write(ctx, db, func(tx *fdb.Transaction) (any, error) {
		stamp, verr := tx.CreateVersionStamp(0)
		if verr != nil {
			return nil, verr
		}
		require.True(t, stamp.Incomplete())
		return nil, nil
	})
	require.NoError(t, err)
}
