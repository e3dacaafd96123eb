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
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/erigontech/fdbclient/fdbc"
)

func openTestDB(t *testing.T) fdbc.Database {
	t.Helper()
	d := NewDriver()
	db, err := d.OpenDatabase(":memory:")
	require.NoError(t, err)
	t.Cleanup(db.Close)
	return db
}

func mustGet(t *testing.T, ctx context.Context, tx fdbc.Transaction, key []byte) []byte {
	t.Helper()
	v, err := tx.Get(ctx, key, false).Get(ctx)
	require.NoError(t, err)
	if v == nil {
		return nil
	}
	return v.([]byte)
}

func TestSetCommitGet(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	tx1, err := db.BeginTransaction()
	require.NoError(t, err)
	tx1.Set([]byte("a"), []byte("1"))
	_, err = tx1.Commit(ctx).Get(ctx)
	require.NoError(t, err)
	tx1.Close()

	tx2, err := db.BeginTransaction()
	require.NoError(t, err)
	defer tx2.Close()
	require.Equal(t, []byte("1"), mustGet(t, ctx, tx2, []byte("a")))
}

func TestClearRemovesKey(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	tx1, _ := db.BeginTransaction()
	tx1.Set([]byte("a"), []byte("1"))
	_, err := tx1.Commit(ctx).Get(ctx)
	require.NoError(t, err)
	tx1.Close()

	tx2, _ := db.BeginTransaction()
	tx2.Clear([]byte("a"))
	_, err = tx2.Commit(ctx).Get(ctx)
	require.NoError(t, err)
	tx2.Close()

	tx3, _ := db.BeginTransaction()
	defer tx3.Close()
	require.Nil(t, mustGet(t, ctx, tx3, []byte("a")))
}

func TestReadYourWrites(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	tx, _ := db.BeginTransaction()
	defer tx.Close()
	tx.Set([]byte("a"), []byte("1"))
	require.Equal(t, []byte("1"), mustGet(t, ctx, tx, []byte("a")))
}

func TestConflictingWritesAbort(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	tx1, _ := db.BeginTransaction()
	defer tx1.Close()
	tx2, _ := db.BeginTransaction()
	defer tx2.Close()

	_ = mustGet(t, ctx, tx1, []byte("a")) // tx1 reads a
	tx2.Set([]byte("a"), []byte("2"))
	_, err := tx2.Commit(ctx).Get(ctx)
	require.NoError(t, err)

	tx1.Set([]byte("b"), []byte("1"))
	_, err = tx1.Commit(ctx).Get(ctx)
	require.Error(t, err)
	fe, ok := fdbc.AsError(err)
	require.True(t, ok)
	require.Equal(t, fdbc.CodeNotCommitted, fe.Code)
}

func TestAtomicAddWraps(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	tx, _ := db.BeginTransaction()
	defer tx.Close()
	tx.Set([]byte("counter"), []byte{0xff, 0xff, 0xff, 0xff})
	tx.AtomicOp([]byte("counter"), []byte{0x01, 0x00, 0x00, 0x00}, fdbc.MutationAdd)
	require.Equal(t, []byte{0x00, 0x00, 0x00, 0x00}, mustGet(t, ctx, tx, []byte("counter")))
}

func TestAtomicMinMax(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	tx, _ := db.BeginTransaction()
	defer tx.Close()
	tx.Set([]byte("k"), []byte{5})
	tx.AtomicOp([]byte("k"), []byte{3}, fdbc.MutationMin)
	require.Equal(t, []byte{3}, mustGet(t, ctx, tx, []byte("k")))
	tx.AtomicOp([]byte("k"), []byte{9}, fdbc.MutationMax)
	require.Equal(t, []byte{9}, mustGet(t, ctx, tx, []byte("k")))
}

func TestResolveSelectorForms(t *testing.T) {
	keys := []string{"a", "b", "d", "e"}

	require.Equal(t, []byte("b"), resolveSelector(keys, fdbc.KeySelector{Key: []byte("b"), OrEqual: false, Offset: 1}))
	require.Equal(t, []byte("d"), resolveSelector(keys, fdbc.KeySelector{Key: []byte("c"), OrEqual: false, Offset: 1}))
	require.Equal(t, []byte("b"), resolveSelector(keys, fdbc.KeySelector{Key: []byte("b"), OrEqual: true, Offset: 0}))
	require.Equal(t, []byte("a"), resolveSelector(keys, fdbc.KeySelector{Key: []byte("b"), OrEqual: false, Offset: 0}))
}

func TestWatchFiresAfterCommit(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	tx1, _ := db.BeginTransaction()
	tx1.Set([]byte("w"), []byte("1"))
	_, err := tx1.Commit(ctx).Get(ctx)
	require.NoError(t, err)
	tx1.Close()

	watchTx, _ := db.BeginTransaction()
	fut := watchTx.Watch([]byte("w"))
	_, err = watchTx.Commit(ctx).Get(ctx)
	require.NoError(t, err)
	watchTx.Close()

	writerTx, _ := db.BeginTransaction()
	writerTx.Set([]byte("w"), []byte("2"))
	_, err = writerTx.Commit(ctx).Get(ctx)
	require.NoError(t, err)
	writerTx.Close()

	wctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	_, err = fut.Get(wctx)
	require.NoError(t, err)
}

func TestWatchDiscardedOnReset(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	tx, _ := db.BeginTransaction()
	defer tx.Close()
	fut := tx.Watch([]byte("w"))
	tx.Reset()

	wctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	_, err := fut.Get(wctx)
	require.Error(t, err)
}

func TestGetVersionstampResolvesAfterCommit(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	tx, _ := db.BeginTransaction()
	defer tx.Close()
	vsFut := tx.GetVersionstamp()
	tx.Set([]byte("k"), []byte("v"))
	_, err := tx.Commit(ctx).Get(ctx)
	require.NoError(t, err)

	raw, err := vsFut.Get(ctx)
	require.NoError(t, err)
	stamp := raw.([10]byte)
	require.NotEqual(t, [10]byte{}, stamp)
}

func TestVersionstampedKeySubstitution(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	tx, _ := db.BeginTransaction()
	token := tx.VersionstampToken()
	key := append([]byte("prefix-"), token[:]...)
	tx.AtomicOp(key, []byte{0x00, 0x00}, fdbc.MutationVersionstampedKey)
	vsFut := tx.GetVersionstamp()
	_, err := tx.Commit(ctx).Get(ctx)
	require.NoError(t, err)
	tx.Close()

	raw, err := vsFut.Get(ctx)
	require.NoError(t, err)
	stamp := raw.([10]byte)

	tx2, _ := db.BeginTransaction()
	defer tx2.Close()
	resolved := append([]byte("prefix-"), stamp[:]...)
	require.NotNil(t, mustGet(t, ctx, tx2, resolved))
}
