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

// Package annotation holds lightweight, per-attempt tracing metadata: a
// caller frame and a set of free-form key/value notes, encoded compactly for
// a trace sink. fdb.TransactionContext has a field for a Set, but package fdb
// never creates one, so enabling tracing captures nothing here.
package annotation

import (
	"fmt"

	"github.com/go-stack/stack"
	"github.com/ugorji/go/codec"
)

// Frame is one captured caller location.
type Frame struct {
	Func string `codec:"func"`
	File string `codec:"file"`
	Line int    `codec:"line"`
}

// Set is the annotation payload for a single attempt: the call site that
// began the transaction, plus any notes the handler registered along the
// way (e.g. value-check tags, retry cause).
type Set struct {
	Caller Frame             `codec:"caller"`
	Notes  map[string]string `codec:"notes"`
}

// Capture records the immediate caller of the function calling Capture
// (skip=1 for the direct caller), matching the depth go-stack callers expect
// from a one-frame-removed helper.
func Capture(skip int) Frame {
	call := stack.Caller(skip + 1)
	return Frame{
		Func: fmt.Sprintf("%n", call),
		File: fmt.Sprintf("%v", call),
		Line: 0, // %v already embeds file:line; kept separately for structured sinks that want it split out later
	}
}

// NewSet starts an annotation set rooted at the given caller frame.
func NewSet(caller Frame) *Set {
	return &Set{Caller: caller, Notes: map[string]string{}}
}

// Note attaches a free-form key/value pair, overwriting any prior value for
// the same key.
func (s *Set) Note(key, value string) {
	s.Notes[key] = value
}

var mh codec.MsgpackHandle

// Encode serializes s to msgpack for the trace sink.
func Encode(s *Set) ([]byte, error) {
	var buf []byte
	enc := codec.NewEncoderBytes(&buf, &mh)
	if err := enc.Encode(s); err != nil {
		return nil, fmt.Errorf("annotation: encode: %w", err)
	}
	return buf, nil
}

// Decode parses a msgpack-encoded annotation Set, e.g. for an offline trace
// file reader.
func Decode(b []byte) (*Set, error) {
	var s Set
	dec := codec.NewDecoderBytes(b, &mh)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("annotation: decode: %w", err)
	}
	return &s, nil
}
