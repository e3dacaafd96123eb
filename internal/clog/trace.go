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

package clog

import (
	"fmt"
	"os"
	"sync"

	"github.com/gofrs/flock"
)

// TraceSink appends pre-encoded annotation payloads (msgpack, produced by
// internal/annotation) to a shared local file, guarded by an inter-process
// file lock since more than one instance of this client binding might trace
// to the same path concurrently when OptionTracing is enabled (spec §4.4).
type TraceSink struct {
	path string
	lock *flock.Flock
	mu   sync.Mutex
}

// NewTraceSink returns a sink for the trace file at path. It does not touch
// the file; each Write opens it, creating it if necessary.
func NewTraceSink(path string) (*TraceSink, error) {
	return &TraceSink{path: path, lock: flock.New(path + ".lock")}, nil
}

// Write appends one framed record (length-prefixed payload) to the trace
// file, taking the cross-process lock for the duration of the write.
func (s *TraceSink) Write(payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("clog: acquire trace lock: %w", err)
	}
	defer s.lock.Unlock()

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("clog: open trace file: %w", err)
	}
	defer f.Close()

	var lenPrefix [4]byte
	n := len(payload)
	lenPrefix[0] = byte(n >> 24)
	lenPrefix[1] = byte(n >> 16)
	lenPrefix[2] = byte(n >> 8)
	lenPrefix[3] = byte(n)
	if _, err := f.Write(lenPrefix[:]); err != nil {
		return fmt.Errorf("clog: write trace length prefix: %w", err)
	}
	if _, err := f.Write(payload); err != nil {
		return fmt.Errorf("clog: write trace payload: %w", err)
	}
	return nil
}

// Close releases the underlying lock handle.
func (s *TraceSink) Close() error {
	return s.lock.Close()
}
