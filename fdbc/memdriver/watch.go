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
	"fmt"
	"os"

	"github.com/erigontech/fdbclient/fdbc"
)

// registerAndCheckWatch promotes a pendingWatch into the database-wide
// registry once its owning transaction has committed (spec §4.8: a watch
// "survives only if that transaction commits"). If the key's value has
// already diverged from the captured baseline by the time the commit lands,
// it fires immediately rather than waiting for a future commit to touch it.
func (db *database) registerAndCheckWatch(pw *pendingWatch) {
	db.watchMu.Lock()
	defer db.watchMu.Unlock()

	w := &watcher{baseline: pw.baseline, absent: pw.absent, ch: pw.ch}

	cur := db.currentValueLocked(pw.key)
	if watchDiverged(w, cur) {
		w.fired = true
		select {
		case w.ch <- nil:
		default:
		}
		return
	}
	k := string(pw.key)
	db.watchers[k] = append(db.watchers[k], w)
}

// fireWatches evaluates every registered watcher against the keys touched by
// a just-completed commit (touched[key] == nil means the key was cleared).
// Watchers whose value now differs from their captured baseline fire exactly
// once; a watch never re-fires after this (spec §4.8).
func (db *database) fireWatches(touched map[string][]byte) {
	db.watchMu.Lock()
	defer db.watchMu.Unlock()

	for k, newVal := range touched {
		watchers := db.watchers[k]
		if len(watchers) == 0 {
			continue
		}
		var remaining []*watcher
		for _, w := range watchers {
			if w.fired {
				continue
			}
			if watchDiverged(w, newVal) {
				w.fired = true
				select {
				case w.ch <- nil:
				default:
				}
				continue
			}
			remaining = append(remaining, w)
		}
		if len(remaining) == 0 {
			delete(db.watchers, k)
		} else {
			db.watchers[k] = remaining
		}
	}
}

// currentValueLocked reads a key's committed value directly from bbolt,
// bypassing any in-flight transaction overlay. Callers must not hold db.mu.
func (db *database) currentValueLocked(key []byte) []byte {
	btx, err := db.bdb.Begin(false)
	if err != nil {
		return nil
	}
	defer btx.Rollback()
	return bucketGet(btx, key)
}

func watchDiverged(w *watcher, newVal []byte) bool {
	if w.absent {
		return newVal != nil
	}
	if newVal == nil {
		return true
	}
	return !bytes.Equal(w.baseline, newVal)
}

// randomTempFile allocates a fresh on-disk path for an ":memory:" database,
// suitable for bbolt.Open. The file itself must not exist yet, since bbolt
// creates it.
func randomTempFile() (string, error) {
	f, err := os.CreateTemp("", "fdbclient-memdriver-*.db")
	if err != nil {
		return "", fmt.Errorf("memdriver: allocate temp file: %w", err)
	}
	path := f.Name()
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("memdriver: close temp file: %w", err)
	}
	if err := os.Remove(path); err != nil {
		return "", fmt.Errorf("memdriver: remove temp placeholder: %w", err)
	}
	return path, nil
}
