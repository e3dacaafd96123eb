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

package fdb

import (
	"fmt"
	"sync"
)

// These API levels gate which atomic mutation kinds are available; mutations
// introduced after a given level fail with invalid-mutation-type on an
// older-versioned database (spec §4.4).
const (
	apiVersionBase                 = 510
	apiVersionVersionstampedOps    = 520
	apiVersionSetVersionstampedKey = 600
)

var (
	apiVersionMu  sync.Mutex
	apiVersionSet bool
	apiVersion    int
)

// MustAPIVersion pins the process-wide API version exactly once. A second
// call with a different version panics: mixing API versions within one
// process is a configuration error, not a runtime condition to recover from.
func MustAPIVersion(version int) {
	if err := APIVersion(version); err != nil {
		panic(err)
	}
}

// APIVersion pins the process-wide API version exactly once, returning an
// error instead of panicking on a conflicting second call.
func APIVersion(version int) error {
	apiVersionMu.Lock()
	defer apiVersionMu.Unlock()
	if apiVersionSet {
		if apiVersion != version {
			return fmt.Errorf("fdb: API version already set to %d, cannot set to %d", apiVersion, version)
		}
		return nil
	}
	apiVersion = version
	apiVersionSet = true
	return nil
}

// currentAPIVersion returns the pinned version, or 0 if APIVersion has never
// been called (callers must treat 0 as api-version-not-set).
func currentAPIVersion() (int, bool) {
	apiVersionMu.Lock()
	defer apiVersionMu.Unlock()
	return apiVersion, apiVersionSet
}
