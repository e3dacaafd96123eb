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

// Package tuple implements the order-preserving element encoding described
// in spec §2: Tuple values, once packed to bytes, compare byte-for-byte the
// same way the original elements compare, which is what lets subspace ranges
// and key selectors work over structured keys at all.
package tuple

import (
	"fmt"
	"math"
	"math/big"

	"github.com/google/uuid"
	"github.com/holiman/uint256"

	"github.com/erigontech/fdbclient/versionstamp"
)

// Type tags, one byte each, ordered so that the tag byte alone sorts
// elements of different kinds correctly relative to one another.
const (
	tagNil        byte = 0x00
	tagBytes      byte = 0x01
	tagString     byte = 0x02
	tagNestedOpen byte = 0x05
	// 0x0b..0x13: negative integers, biggest magnitude (most negative) first
	tagIntZero byte = 0x14
	// 0x15..0x1d: positive integers, increasing width
	tagFloat32      byte = 0x20
	tagFloat64      byte = 0x21
	tagFalse        byte = 0x26
	tagTrue         byte = 0x27
	tagUUID         byte = 0x30
	tagVersionstamp byte = 0x33

	escapedByte byte = 0x00
	escapeFF    byte = 0xff
)

// Tuple is an ordered sequence of elements, each one of: nil, []byte,
// string, any signed integer type, *big.Int, *uint256.Int, float32, float64,
// bool, uuid.UUID, versionstamp.Stamp, or a nested Tuple.
type Tuple []any

// Pack encodes t to its order-preserving byte representation. A Tuple
// containing more than one incomplete versionstamp.Stamp is rejected: a key
// may carry at most one (spec §3's "at most one incomplete stamp per key"
// requirement, enforced here rather than only at commit time).
func (t Tuple) Pack() ([]byte, error) {
	var buf []byte
	incomplete := 0
	for _, el := range t {
		enc, isIncomplete, err := encodeElement(el)
		if err != nil {
			return nil, err
		}
		if isIncomplete {
			incomplete++
		}
		buf = append(buf, enc...)
	}
	if incomplete > 1 {
		return nil, fmt.Errorf("tuple: %d incomplete versionstamps, at most one is allowed", incomplete)
	}
	return buf, nil
}

// MustPack is Pack, panicking on error; for call sites constructing literal
// tuples where an encoding failure indicates a programming mistake.
func (t Tuple) MustPack() []byte {
	b, err := t.Pack()
	if err != nil {
		panic(err)
	}
	return b
}

// Unpack decodes a packed byte string back into a Tuple.
func Unpack(b []byte) (Tuple, error) {
	var out Tuple
	for len(b) > 0 {
		el, rest, err := decodeElement(b)
		if err != nil {
			return nil, err
		}
		out = append(out, el)
		b = rest
	}
	return out, nil
}

// DecodeFirst decodes only the first element of a packed byte string,
// returning it and the unconsumed remainder; useful for peeking at a
// subspace-prefixed key without unpacking the whole tuple (spec §2).
func DecodeFirst(b []byte) (el any, rest []byte, err error) {
	return decodeElement(b)
}

// DecodeLast decodes only the final element, re-parsing from the front since
// tuple encoding has no reverse cursor; cost is linear in len(b).
func DecodeLast(b []byte) (el any, err error) {
	t, err := Unpack(b)
	if err != nil {
		return nil, err
	}
	if len(t) == 0 {
		return nil, fmt.Errorf("tuple: empty")
	}
	return t[len(t)-1], nil
}

// DecodeAt decodes only the i-th element (0-based).
func DecodeAt(b []byte, i int) (el any, err error) {
	t, err := Unpack(b)
	if err != nil {
		return nil, err
	}
	if i < 0 || i >= len(t) {
		return nil, fmt.Errorf("tuple: index %d out of range [0,%d)", i, len(t))
	}
	return t[i], nil
}

func encodeElement(el any) (enc []byte, incomplete bool, err error) {
	switch v := el.(type) {
	case nil:
		return []byte{tagNil}, false, nil
	case []byte:
		return encodeBytesTag(tagBytes, v), false, nil
	case string:
		return encodeBytesTag(tagString, []byte(v)), false, nil
	case Tuple:
		return encodeNested(v)
	case bool:
		if v {
			return []byte{tagTrue}, false, nil
		}
		return []byte{tagFalse}, false, nil
	case float32:
		return encodeFloat32(v), false, nil
	case float64:
		return encodeFloat64(v), false, nil
	case uuid.UUID:
		b, _ := v.MarshalBinary()
		return append([]byte{tagUUID}, b...), false, nil
	case versionstamp.Stamp:
		enc, err := encodeVersionstamp(v)
		return enc, v.Incomplete(), err
	case int:
		return encodeInt(big.NewInt(int64(v))), false, nil
	case int8:
		return encodeInt(big.NewInt(int64(v))), false, nil
	case int16:
		return encodeInt(big.NewInt(int64(v))), false, nil
	case int32:
		return encodeInt(big.NewInt(int64(v))), false, nil
	case int64:
		return encodeInt(big.NewInt(v)), false, nil
	case uint:
		return encodeInt(new(big.Int).SetUint64(uint64(v))), false, nil
	case uint8:
		return encodeInt(new(big.Int).SetUint64(uint64(v))), false, nil
	case uint16:
		return encodeInt(new(big.Int).SetUint64(uint64(v))), false, nil
	case uint32:
		return encodeInt(new(big.Int).SetUint64(uint64(v))), false, nil
	case uint64:
		return encodeInt(new(big.Int).SetUint64(v)), false, nil
	case *big.Int:
		return encodeInt(v), false, nil
	case *uint256.Int:
		return encodeInt(v.ToBig()), false, nil
	default:
		return nil, false, fmt.Errorf("tuple: unsupported element type %T", el)
	}
}

func decodeElement(b []byte) (el any, rest []byte, err error) {
	if len(b) == 0 {
		return nil, nil, fmt.Errorf("tuple: unexpected end of input")
	}
	tag := b[0]
	switch {
	case tag == tagNil:
		return nil, b[1:], nil
	case tag == tagBytes:
		raw, rest, err := decodeEscaped(b[1:])
		return raw, rest, err
	case tag == tagString:
		raw, rest, err := decodeEscaped(b[1:])
		if err != nil {
			return nil, nil, err
		}
		return string(raw), rest, nil
	case tag == tagNestedOpen:
		return decodeNested(b[1:])
	case tag == tagFalse:
		return false, b[1:], nil
	case tag == tagTrue:
		return true, b[1:], nil
	case tag == tagFloat32:
		return decodeFloat32(b[1:])
	case tag == tagFloat64:
		return decodeFloat64(b[1:])
	case tag == tagUUID:
		if len(b) < 17 {
			return nil, nil, fmt.Errorf("tuple: truncated uuid")
		}
		u, err := uuid.FromBytes(b[1:17])
		if err != nil {
			return nil, nil, fmt.Errorf("tuple: uuid: %w", err)
		}
		return u, b[17:], nil
	case tag == tagVersionstamp:
		return decodeVersionstamp(b[1:])
	case tag >= 0x0b && tag <= 0x1d:
		return decodeInt(b)
	default:
		return nil, nil, fmt.Errorf("tuple: unknown type tag 0x%02x", tag)
	}
}

// encodeBytesTag encodes a byte string with FoundationDB's 0x00-escaping:
// every literal 0x00 byte becomes 0x00 0xff, terminated by a bare 0x00.
func encodeBytesTag(tag byte, raw []byte) []byte {
	out := make([]byte, 0, len(raw)+2)
	out = append(out, tag)
	for _, b := range raw {
		out = append(out, b)
		if b == escapedByte {
			out = append(out, escapeFF)
		}
	}
	out = append(out, escapedByte)
	return out
}

func decodeEscaped(b []byte) (raw []byte, rest []byte, err error) {
	for i := 0; i < len(b); i++ {
		if b[i] == escapedByte {
			if i+1 < len(b) && b[i+1] == escapeFF {
				raw = append(raw, escapedByte)
				i++
				continue
			}
			return raw, b[i+1:], nil
		}
		raw = append(raw, b[i])
	}
	return nil, nil, fmt.Errorf("tuple: unterminated byte string")
}

func encodeNested(t Tuple) ([]byte, bool, error) {
	out := []byte{tagNestedOpen}
	incomplete := 0
	for _, el := range t {
		if el == nil {
			// Nested nils use the two-byte 0x00 0xff escape so the
			// terminating 0x00 of the nested tuple is unambiguous.
			out = append(out, 0x00, 0xff)
			continue
		}
		enc, inc, err := encodeElement(el)
		if err != nil {
			return nil, false, err
		}
		if inc {
			incomplete++
		}
		out = append(out, enc...)
	}
	if incomplete > 1 {
		return nil, false, fmt.Errorf("tuple: %d incomplete versionstamps, at most one is allowed", incomplete)
	}
	out = append(out, escapedByte)
	return out, incomplete > 0, nil
}

func decodeNested(b []byte) (Tuple, []byte, error) {
	var out Tuple
	for {
		if len(b) == 0 {
			return nil, nil, fmt.Errorf("tuple: unterminated nested tuple")
		}
		if b[0] == 0x00 {
			if len(b) > 1 && b[1] == 0xff {
				out = append(out, nil)
				b = b[2:]
				continue
			}
			return out, b[1:], nil
		}
		el, rest, err := decodeElement(b)
		if err != nil {
			return nil, nil, err
		}
		out = append(out, el)
		b = rest
	}
}

func encodeFloat32(f float32) []byte {
	bits := math.Float32bits(f)
	bits = flipFloatBits32(bits)
	return []byte{tagFloat32, byte(bits >> 24), byte(bits >> 16), byte(bits >> 8), byte(bits)}
}

func decodeFloat32(b []byte) (float32, []byte, error) {
	if len(b) < 4 {
		return 0, nil, fmt.Errorf("tuple: truncated float32")
	}
	bits := uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
	bits = flipFloatBits32(bits)
	return math.Float32frombits(bits), b[4:], nil
}

func flipFloatBits32(bits uint32) uint32 {
	if bits&0x80000000 != 0 {
		return bits ^ 0x80000000
	}
	return ^bits
}

func encodeFloat64(f float64) []byte {
	bits := math.Float64bits(f)
	bits = flipFloatBits64(bits)
	out := make([]byte, 9)
	out[0] = tagFloat64
	for i := 0; i < 8; i++ {
		out[1+i] = byte(bits >> (56 - 8*i))
	}
	return out
}

func decodeFloat64(b []byte) (float64, []byte, error) {
	if len(b) < 8 {
		return 0, nil, fmt.Errorf("tuple: truncated float64")
	}
	var bits uint64
	for i := 0; i < 8; i++ {
		bits = bits<<8 | uint64(b[i])
	}
	bits = flipFloatBits64(bits)
	return math.Float64frombits(bits), b[8:], nil
}

func flipFloatBits64(bits uint64) uint64 {
	if bits&0x8000000000000000 != 0 {
		return bits ^ 0x8000000000000000
	}
	return ^bits
}

func encodeVersionstamp(v versionstamp.Stamp) ([]byte, error) {
	if v.Incomplete() {
		tok := v.Token()
		out := append([]byte{tagVersionstamp}, tok[:]...)
		return append(out, byte(v.UserVersion()>>8), byte(v.UserVersion())), nil
	}
	raw, err := v.Bytes()
	if err != nil {
		return nil, fmt.Errorf("tuple: versionstamp: %w", err)
	}
	return append([]byte{tagVersionstamp}, raw...), nil
}

func decodeVersionstamp(b []byte) (versionstamp.Stamp, []byte, error) {
	if len(b) < 12 {
		return versionstamp.Stamp{}, nil, fmt.Errorf("tuple: truncated versionstamp")
	}
	v, err := versionstamp.Parse(b[:12])
	if err != nil {
		return versionstamp.Stamp{}, nil, err
	}
	return v, b[12:], nil
}
